package visa

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

const (
	// DefaultTimeout bounds every write and every reply
	DefaultTimeout = 10 * time.Second

	// DefaultChunkSize is the read buffer size used for responses
	DefaultChunkSize = 20 * 1024

	// DefaultBaudRate is used for serial resources unless configured otherwise
	DefaultBaudRate = 9600
)

// LookupEncoding returns the text encoding for the given name.
// Supported names are "latin_1" (and its aliases), "utf-8" and "ascii".
func LookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "latin-1", "latin1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1, nil
	case "utf-8", "utf8":
		return unicode.UTF8, nil
	case "ascii", "us-ascii":
		return encoding.Nop, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// WithTimeout sets the time allowed for a single write or reply
func WithTimeout(timeout time.Duration) func(*Session) {
	return func(s *Session) {
		s.timeout = timeout
	}
}

// WithEncoding sets the text encoding of commands and replies
func WithEncoding(enc encoding.Encoding) func(*Session) {
	return func(s *Session) {
		s.encoding = enc
	}
}

// WithReadTermination sets the character that ends a reply
func WithReadTermination(term byte) func(*Session) {
	return func(s *Session) {
		s.readTermination = term
	}
}

// WithWriteTermination sets the suffix appended to every command.
// An empty suffix is valid for USBTMC, where the transfer itself marks the end of a message.
func WithWriteTermination(term string) func(*Session) {
	return func(s *Session) {
		s.writeTermination = term
	}
}

// WithBlockTermination sets whether a read termination is expected after a
// definite-length binary block. It is expected by default.
func WithBlockTermination(expect bool) func(*Session) {
	return func(s *Session) {
		s.blockTermination = expect
	}
}

// WithChunkSize sets the size of the read buffer
func WithChunkSize(size int) func(*Session) {
	return func(s *Session) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithBaudRate sets the line speed of serial resources
func WithBaudRate(baud int) func(*Session) {
	return func(s *Session) {
		if baud > 0 {
			s.baudRate = baud
		}
	}
}

// WithLogger sets the logger for the session
func WithLogger(logger *slog.Logger) func(*Session) {
	return func(s *Session) {
		s.logger = logger.With(slog.String("resource", s.resource))
	}
}

// Session is a command/response channel to a single instrument.
// Operations are serialised; a Session is safe for use by multiple goroutines.
type Session struct {
	resource string

	conn   io.ReadWriteCloser
	reader *bufio.Reader

	timeout          time.Duration
	readTermination  byte
	writeTermination string
	blockTermination bool
	encoding         encoding.Encoding
	chunkSize        int
	baudRate         int

	mu     sync.Mutex
	closed bool

	logger *slog.Logger
}

// NewSession wraps an already opened connection to an instrument
func NewSession(resource string, conn io.ReadWriteCloser, options ...func(*Session)) *Session {
	s := newSession(resource, "\n", options...)
	s.attach(conn)
	return s
}

func newSession(resource, writeTermination string, options ...func(*Session)) *Session {
	s := Session{
		resource:         resource,
		timeout:          DefaultTimeout,
		readTermination:  '\n',
		writeTermination: writeTermination,
		blockTermination: true,
		encoding:         charmap.ISO8859_1,
		chunkSize:        DefaultChunkSize,
		baudRate:         DefaultBaudRate,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

func (s *Session) attach(conn io.ReadWriteCloser) {
	s.conn = conn
	s.reader = bufio.NewReaderSize(conn, s.chunkSize)
}

// Resource returns the resource string the session was opened for
func (s *Session) Resource() string {
	return s.resource
}

// Timeout returns the time allowed for a single write or reply
func (s *Session) Timeout() time.Duration {
	return s.timeout
}

// Write sends a command that has no reply
func (s *Session) Write(ctx context.Context, cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	return s.write(ctx, cmd)
}

// Query sends a command and returns its text reply without the read termination
func (s *Session) Query(ctx context.Context, cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrClosed
	}

	if err := s.write(ctx, cmd); err != nil {
		return "", err
	}

	stop := s.armDeadline(ctx)
	defer stop()

	line, err := s.reader.ReadBytes(s.readTermination)
	if err != nil {
		return "", s.wrapError(ctx, fmt.Sprintf("reading reply to %q", cmd), err)
	}

	reply, err := s.encoding.NewDecoder().Bytes(line[:len(line)-1])
	if err != nil {
		return "", fmt.Errorf("decoding reply to %q: %w", cmd, err)
	}

	s.logger.Debug("query", slog.String("command", cmd), slog.String("reply", string(reply)))
	return strings.TrimSpace(string(reply)), nil
}

// QueryBinaryValues sends a command whose reply is an IEEE 488.2 binary block
// of signed 8-bit samples and returns the samples
func (s *Session) QueryBinaryValues(ctx context.Context, cmd string) ([]int8, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	if err := s.write(ctx, cmd); err != nil {
		return nil, err
	}

	stop := s.armDeadline(ctx)
	defer stop()

	data, err := readBlock(s.reader, s.readTermination, s.blockTermination)
	if err != nil {
		return nil, s.wrapError(ctx, fmt.Sprintf("reading block reply to %q", cmd), err)
	}

	samples := make([]int8, len(data))
	for i, b := range data {
		samples[i] = int8(b)
	}

	s.logger.Debug("binary query", slog.String("command", cmd), slog.Int("samples", len(samples)))
	return samples, nil
}

// Close closes the underlying connection. It is safe to call Close multiple times.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", s.resource, err)
	}
	return nil
}

func (s *Session) write(ctx context.Context, cmd string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := s.encoding.NewEncoder().String(cmd + s.writeTermination)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", cmd, err)
	}

	stop := s.armDeadline(ctx)
	defer stop()

	s.logger.Debug("write", slog.String("command", cmd))

	if _, err = io.WriteString(s.conn, payload); err != nil {
		return s.wrapError(ctx, fmt.Sprintf("writing %q", cmd), err)
	}
	return nil
}

// armDeadline bounds the next transport operation by the session timeout and the context.
// Transports without deadline support get their timeout when opened.
func (s *Session) armDeadline(ctx context.Context) func() {
	conn, ok := s.conn.(interface{ SetDeadline(time.Time) error })
	if !ok {
		return func() {}
	}

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now()) // unblock on cancellation
	})
	return func() { stop() }
}

func (s *Session) wrapError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	if errors.Is(err, os.ErrDeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%s: %w after %s", op, ErrTimeout, s.timeout)
	}
	return fmt.Errorf("%s: %w", op, err)
}
