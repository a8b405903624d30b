package instrument

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

const (
	// AgilentPattern selects Agilent USB instruments by vendor ID
	AgilentPattern = "?*0x0957?*::INSTR"

	// N9310A RF output range
	MinFrequencyKHz = 9
	MaxFrequencyKHz = 3_000_000

	DefaultAmplitude           = "500 mV"
	DefaultInitialFrequencyKHz = 5000
)

var amplitudePattern = regexp.MustCompile(`(?i)^(-?[0-9]*\.?[0-9]+)\s*(v|mv|uv|dbm|dbuv|dbmv)$`)

// GeneratorConfig configures the RF output of the signal generator
type GeneratorConfig struct {
	Amplitude            string  `yaml:"amplitude" json:"amplitude"`                       // AMPL:CW, e.g. "500 mV"
	InitialFrequencyKHz  float64 `yaml:"initialFrequencyKHz" json:"initialFrequencyKHz"`   // FREQ:CW before the sweep starts
	DisableOutputOnClose bool    `yaml:"disableOutputOnClose" json:"disableOutputOnClose"` // RFOutput:STATE OFF on shutdown
}

func (c *GeneratorConfig) Validate() error {
	m := amplitudePattern.FindStringSubmatch(strings.TrimSpace(c.Amplitude))
	if m == nil {
		return NewConfigError("instrument.GeneratorConfig: amplitude must be a number followed by V, mV, uV or dBm: %q given", c.Amplitude)
	}
	if strings.HasPrefix(m[1], "-") && !strings.HasPrefix(strings.ToLower(m[2]), "db") {
		return NewConfigError("instrument.GeneratorConfig: amplitude in volts cannot be negative: %q given", c.Amplitude)
	}

	if err := validateFrequency(c.InitialFrequencyKHz); err != nil {
		return NewConfigError("instrument.GeneratorConfig: initial frequency: %s", err.Error())
	}

	return nil
}

func validateFrequency(kHz float64) error {
	if kHz < MinFrequencyKHz || kHz > MaxFrequencyKHz {
		return fmt.Errorf("frequency must be between %d kHz and %d kHz: %s kHz given",
			MinFrequencyKHz, MaxFrequencyKHz, strconv.FormatFloat(kHz, 'f', -1, 64))
	}
	return nil
}

// WithGeneratorLogger sets the logger for the generator
func WithGeneratorLogger(logger *slog.Logger) func(*Generator) {
	return func(g *Generator) {
		g.logger = logger.With(slog.String("instrument", "generator"), slog.String("resource", g.session.Resource()))
	}
}

// Generator is an Agilent N9310A RF signal generator
type Generator struct {
	session Session
	config  GeneratorConfig
	logger  *slog.Logger
}

// NewGenerator creates a new Generator talking over the session
func NewGenerator(session Session, config GeneratorConfig, options ...func(*Generator)) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.Amplitude = strings.TrimSpace(config.Amplitude)

	g := Generator{
		session: session,
		config:  config,
		logger:  discardLogger(),
	}

	for _, option := range options {
		option(&g)
	}

	return &g, nil
}

// Init clears the status registers and resets the generator
func (g *Generator) Init(ctx context.Context) error {
	if err := writeAll(ctx, g.session, "*cls", "*rst"); err != nil {
		return fmt.Errorf("resetting generator: %w", err)
	}
	return nil
}

// Configure sets the output amplitude and initial frequency and enables the RF output
func (g *Generator) Configure(ctx context.Context) error {
	err := writeAll(ctx, g.session,
		"AMPL:CW "+g.config.Amplitude,
		frequencyCommand(g.config.InitialFrequencyKHz),
		"RFOutput:STATE ON")
	if err != nil {
		return fmt.Errorf("configuring generator: %w", err)
	}

	g.logger.Info("generator output enabled",
		slog.String("amplitude", g.config.Amplitude),
		slog.Float64("frequency", g.config.InitialFrequencyKHz))

	return nil
}

// SetFrequency tunes the output. The generator is addressed in whole kHz,
// fractional kHz are truncated.
func (g *Generator) SetFrequency(ctx context.Context, kHz float64) error {
	if err := validateFrequency(kHz); err != nil {
		return err
	}

	if err := g.session.Write(ctx, frequencyCommand(kHz)); err != nil {
		return fmt.Errorf("setting frequency: %w", err)
	}
	return nil
}

// Shutdown switches the RF output off if configured to do so
func (g *Generator) Shutdown(ctx context.Context) error {
	if !g.config.DisableOutputOnClose {
		return nil
	}

	if err := g.session.Write(ctx, "RFOutput:STATE OFF"); err != nil {
		return fmt.Errorf("disabling RF output: %w", err)
	}

	g.logger.Info("generator output disabled")
	return nil
}

func frequencyCommand(kHz float64) string {
	return fmt.Sprintf("FREQ:CW %d kHz", int64(kHz))
}
