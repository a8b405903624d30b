package instrument

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

const (
	// TektronixPattern selects Tektronix USB instruments by vendor ID
	TektronixPattern = "?*0x0699?*::INSTR"

	DefaultChannel        = "CH1"
	DefaultBytesPerSample = 1
)

var validChannels = map[string]struct{}{
	"CH1": {},
	"CH2": {},
	"CH3": {},
	"CH4": {},
}

// ScopeConfig configures the waveform transfer of the oscilloscope
type ScopeConfig struct {
	Channel        string `yaml:"channel" json:"channel"`               // data:source
	BytesPerSample int    `yaml:"bytesPerSample" json:"bytesPerSample"` // wfmpre:byt_nr, only 1 is supported
	CheckStatus    bool   `yaml:"checkStatus" json:"checkStatus"`       // read *esr? and allev? after every capture
}

func (c *ScopeConfig) Validate() error {
	if _, ok := validChannels[strings.ToUpper(c.Channel)]; !ok {
		return NewConfigError("instrument.ScopeConfig: channel must be one of CH1..CH4: %q given", c.Channel)
	}

	if c.BytesPerSample != 1 {
		return NewConfigError("instrument.ScopeConfig: only 1 byte per sample is supported: %d given", c.BytesPerSample)
	}

	return nil
}

// WithScopeLogger sets the logger for the scope
func WithScopeLogger(logger *slog.Logger) func(*Scope) {
	return func(s *Scope) {
		s.logger = logger.With(slog.String("instrument", "scope"), slog.String("resource", s.session.Resource()))
	}
}

// Scope is a Tektronix TBS2000 series oscilloscope
type Scope struct {
	session Session
	config  ScopeConfig
	logger  *slog.Logger
}

// NewScope creates a new Scope talking over the session
func NewScope(session Session, config ScopeConfig, options ...func(*Scope)) (*Scope, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.Channel = strings.ToUpper(config.Channel)

	s := Scope{
		session: session,
		config:  config,
		logger:  discardLogger(),
	}

	for _, option := range options {
		option(&s)
	}

	return &s, nil
}

// Init clears the status registers and returns the identification string
func (s *Scope) Init(ctx context.Context) (string, error) {
	if err := s.session.Write(ctx, "*cls"); err != nil {
		return "", fmt.Errorf("clearing scope status: %w", err)
	}

	idn, err := s.session.Query(ctx, "*idn?")
	if err != nil {
		return "", fmt.Errorf("identifying scope: %w", err)
	}

	s.logger.Info("scope identified", slog.String("idn", idn))
	return idn, nil
}

// Configure selects signed binary transfer of the whole record of the configured
// channel and returns the record length
func (s *Scope) Configure(ctx context.Context) (int, error) {
	err := writeAll(ctx, s.session,
		"header 0",
		"data:encdg RIBINARY",
		"data:source "+s.config.Channel,
		"data:start 1")
	if err != nil {
		return 0, fmt.Errorf("configuring waveform transfer: %w", err)
	}

	const query = "wfmpre:nr_pt?"
	reply, err := s.session.Query(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("querying record length: %w", err)
	}

	// the record length is reported either as an integer or in NR3 form
	points, err := strconv.ParseFloat(reply, 64)
	if err != nil {
		return 0, &ReplyError{Command: query, Reply: reply, Err: err}
	}
	if points < 1 || points != math.Trunc(points) {
		return 0, &ReplyError{Command: query, Reply: reply, Err: fmt.Errorf("invalid record length")}
	}
	recordLength := int(points)

	err = writeAll(ctx, s.session,
		fmt.Sprintf("data:stop %d", recordLength),
		fmt.Sprintf("wfmpre:byt_nr %d", s.config.BytesPerSample))
	if err != nil {
		return 0, fmt.Errorf("configuring waveform transfer: %w", err)
	}

	s.logger.Info("scope configured",
		slog.String("channel", s.config.Channel),
		slog.Int("recordLength", recordLength))

	return recordLength, nil
}

// Curve reads the current waveform as raw signed samples
func (s *Scope) Curve(ctx context.Context) ([]int8, error) {
	samples, err := s.session.QueryBinaryValues(ctx, "curve?")
	if err != nil {
		return nil, fmt.Errorf("reading curve: %w", err)
	}

	if s.config.CheckStatus {
		if err = s.checkStatus(ctx); err != nil {
			return nil, err
		}
	}

	return samples, nil
}

// checkStatus reports the events queued by the scope since the last check.
// Events are logged, they do not fail the capture.
func (s *Scope) checkStatus(ctx context.Context) error {
	const query = "*esr?"
	reply, err := s.session.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("querying event status: %w", err)
	}

	esr, err := strconv.Atoi(reply)
	if err != nil {
		return &ReplyError{Command: query, Reply: reply, Err: err}
	}
	if esr == 0 {
		return nil
	}

	events, err := s.session.Query(ctx, "allev?")
	if err != nil {
		return fmt.Errorf("querying event messages: %w", err)
	}

	s.logger.Warn("scope reported events",
		slog.String("esr", fmt.Sprintf("0b%08b", esr)),
		slog.String("events", events))

	return nil
}

// VerticalScale returns the volts per sample level of the current waveform.
// It is queried on every call since it follows the scope's volts/div setting.
func (s *Scope) VerticalScale(ctx context.Context) (float64, error) {
	const query = "wfmpre:ymult?"
	reply, err := s.session.Query(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("querying vertical scale: %w", err)
	}

	scale, err := strconv.ParseFloat(reply, 64)
	if err != nil {
		return 0, &ReplyError{Command: query, Reply: reply, Err: err}
	}
	return scale, nil
}
