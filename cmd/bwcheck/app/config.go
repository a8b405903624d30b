package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/scope-bandwidth/internal/instrument"
	"github.com/roman-kulish/scope-bandwidth/internal/sweep"
	"github.com/roman-kulish/scope-bandwidth/internal/visa"
)

const defaultEncoding = "latin_1"

// Duration is a time.Duration written as "2s", "10s", "500ms" in configuration files
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.Duration: failed to parse: %s", err)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalJSON(bytes []byte) error {
	var v string
	if err := json.Unmarshal(bytes, &v); err != nil {
		return err
	}

	duration, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("app.Duration: failed to parse: %s", err)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Config represents the main application configuration
type Config struct {
	Settings  Settings        `yaml:"settings" json:"settings"`
	Scope     ScopeConfig     `yaml:"scope" json:"scope"`
	Generator GeneratorConfig `yaml:"generator" json:"generator"`
	Sweep     SweepConfig     `yaml:"sweep" json:"sweep"`
	Resources []string        `yaml:"resources" json:"resources"` // instruments that cannot be discovered, e.g. TCPIP0::192.168.1.20::5025::SOCKET
	Output    OutputConfig    `yaml:"output" json:"output"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel" json:"logLevel"`
}

// SessionConfig selects an instrument and configures its session
type SessionConfig struct {
	Resource  string   `yaml:"resource" json:"resource"`   // exact resource, skips discovery
	Pattern   string   `yaml:"pattern" json:"pattern"`     // VISA search expression used when no resource is given
	Timeout   Duration `yaml:"timeout" json:"timeout"`     // per write/reply
	Encoding  string   `yaml:"encoding" json:"encoding"`   // latin_1, ascii or utf-8
	BaudRate  int      `yaml:"baudRate" json:"baudRate"`   // serial resources only
	ChunkSize int      `yaml:"chunkSize" json:"chunkSize"` // read buffer size

	SkipBlockTermination bool `yaml:"skipBlockTermination" json:"skipBlockTermination"` // binary replies end with the transfer, no trailing LF
}

// ScopeConfig represents the oscilloscope settings
type ScopeConfig struct {
	SessionConfig          `yaml:",inline"`
	instrument.ScopeConfig `yaml:",inline"`
}

// GeneratorConfig represents the RF signal generator settings
type GeneratorConfig struct {
	SessionConfig              `yaml:",inline"`
	instrument.GeneratorConfig `yaml:",inline"`
}

// SweepConfig represents the frequency plan
type SweepConfig struct {
	StartKHz float64  `yaml:"startKHz" json:"startKHz"`
	StopKHz  float64  `yaml:"stopKHz" json:"stopKHz"`
	Points   int      `yaml:"points" json:"points"` // log spaced points before the appended stop frequency
	Settle   Duration `yaml:"settle" json:"settle"`
	MinVpp   *float64 `yaml:"minVpp" json:"minVpp"` // required amplitude at the stop frequency, not checked if unset
}

// OutputConfig represents where and what results are written
type OutputConfig struct {
	Directory string `yaml:"directory" json:"directory"`
	Device    string `yaml:"device" json:"device"`   // file name prefix, defaults to the scope model
	Plot      bool   `yaml:"plot" json:"plot"`       // live chart next to the result table
	Archive   bool   `yaml:"archive" json:"archive"` // Sqlite copy of the run
}

// DefaultConfig returns the configuration of the standard bandwidth check:
// a Tektronix scope and an Agilent generator on USB, 5 MHz to 150 MHz at 500 mV.
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{
			LogLevel: "info",
		},
		Scope: ScopeConfig{
			SessionConfig: SessionConfig{
				Pattern:  instrument.TektronixPattern,
				Timeout:  Duration(visa.DefaultTimeout),
				Encoding: defaultEncoding,
			},
			ScopeConfig: instrument.ScopeConfig{
				Channel:        instrument.DefaultChannel,
				BytesPerSample: instrument.DefaultBytesPerSample,
			},
		},
		Generator: GeneratorConfig{
			SessionConfig: SessionConfig{
				Pattern:  instrument.AgilentPattern,
				Timeout:  Duration(visa.DefaultTimeout),
				Encoding: defaultEncoding,
			},
			GeneratorConfig: instrument.GeneratorConfig{
				Amplitude:           instrument.DefaultAmplitude,
				InitialFrequencyKHz: instrument.DefaultInitialFrequencyKHz,
			},
		},
		Sweep: SweepConfig{
			StartKHz: sweep.DefaultStartKHz,
			StopKHz:  sweep.DefaultStopKHz,
			Points:   sweep.DefaultPoints,
			Settle:   Duration(sweep.DefaultSettleTime),
		},
		Output: OutputConfig{
			Directory: ".",
			Plot:      true,
		},
	}
}

// LoadConfig reads the YAML file at path over the defaults and validates the result
func LoadConfig(path string) (*Config, error) {
	p, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	config := DefaultConfig()
	if err = yaml.Unmarshal(p, config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if _, err := c.Settings.Level(); err != nil {
		return err
	}

	if err := c.Scope.Validate(); err != nil {
		return fmt.Errorf("scope: %w", err)
	}
	if err := c.Generator.Validate(); err != nil {
		return fmt.Errorf("generator: %w", err)
	}
	if err := c.Sweep.Validate(); err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	for _, r := range c.Resources {
		if _, err := visa.ParseResource(r); err != nil {
			return fmt.Errorf("resources: %w", err)
		}
	}

	if c.Output.Directory == "" {
		return errors.New("output: directory is required")
	}

	return nil
}

// Level parses the log level
func (s *Settings) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s.LogLevel))); err != nil {
		return level, fmt.Errorf("settings: invalid log level %q", s.LogLevel)
	}
	return level, nil
}

func (c *SessionConfig) Validate() error {
	if c.Resource == "" && c.Pattern == "" {
		return errors.New("either resource or pattern is required")
	}
	if c.Resource != "" {
		if _, err := visa.ParseResource(c.Resource); err != nil {
			return err
		}
	}
	if c.Pattern != "" {
		if _, err := visa.CompilePattern(c.Pattern); err != nil {
			return err
		}
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive: %s given", c.Timeout)
	}
	if _, err := visa.LookupEncoding(c.Encoding); err != nil {
		return err
	}
	if c.BaudRate < 0 {
		return fmt.Errorf("baud rate cannot be negative: %d given", c.BaudRate)
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("chunk size cannot be negative: %d given", c.ChunkSize)
	}

	return nil
}

// Options returns the session options
func (c *SessionConfig) Options(logger *slog.Logger) ([]func(*visa.Session), error) {
	enc, err := visa.LookupEncoding(c.Encoding)
	if err != nil {
		return nil, err
	}

	return []func(*visa.Session){
		visa.WithTimeout(time.Duration(c.Timeout)),
		visa.WithEncoding(enc),
		visa.WithBaudRate(c.BaudRate),
		visa.WithChunkSize(c.ChunkSize),
		visa.WithBlockTermination(!c.SkipBlockTermination),
		visa.WithLogger(logger),
	}, nil
}

func (c *ScopeConfig) Validate() error {
	if err := c.SessionConfig.Validate(); err != nil {
		return err
	}
	return c.ScopeConfig.Validate()
}

func (c *GeneratorConfig) Validate() error {
	if err := c.SessionConfig.Validate(); err != nil {
		return err
	}
	return c.GeneratorConfig.Validate()
}

func (c *SweepConfig) Validate() error {
	if _, err := c.Plan(); err != nil {
		return err
	}

	if c.StartKHz < instrument.MinFrequencyKHz || c.StopKHz > instrument.MaxFrequencyKHz {
		return fmt.Errorf("frequencies must be between %d kHz and %d kHz", instrument.MinFrequencyKHz, instrument.MaxFrequencyKHz)
	}
	if c.Settle < 0 {
		return fmt.Errorf("settle time cannot be negative: %s given", c.Settle)
	}
	if c.MinVpp != nil && *c.MinVpp <= 0 {
		return fmt.Errorf("minimum Vpp must be positive: %g given", *c.MinVpp)
	}

	return nil
}

// Plan returns the frequency plan of the sweep
func (c *SweepConfig) Plan() (sweep.Plan, error) {
	return sweep.NewLogPlan(c.StartKHz, c.StopKHz, c.Points)
}
