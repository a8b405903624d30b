package visa

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// serialPort adapts a serial port, which reports an expired read timeout
// as an empty read, to the session error model
type serialPort struct {
	*serial.Port
}

func openSerial(r Resource, baud int, timeout time.Duration) (io.ReadWriteCloser, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        r.Device,
		Baud:        baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", r.Device, err)
	}

	return &serialPort{port}, nil
}

func (p *serialPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if n == 0 && (err == nil || errors.Is(err, io.EOF)) {
		return 0, ErrTimeout
	}
	return n, err
}
