// Package instrument holds the command sets of the instruments taking part in
// the bandwidth check: a Tektronix TBS2000 oscilloscope and an Agilent N9310A
// RF signal generator.
package instrument

import (
	"context"
	"io"
	"log/slog"
)

// Session is the command channel to an instrument, satisfied by *visa.Session
type Session interface {
	Resource() string
	Write(ctx context.Context, cmd string) error
	Query(ctx context.Context, cmd string) (string, error)
	QueryBinaryValues(ctx context.Context, cmd string) ([]int8, error)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger
}

// writeAll sends the commands in order and stops at the first failure
func writeAll(ctx context.Context, s Session, commands ...string) error {
	for _, cmd := range commands {
		if err := s.Write(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}
