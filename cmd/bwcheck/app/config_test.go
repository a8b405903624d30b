package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.Validate())

	plan, err := config.Sweep.Plan()
	require.NoError(t, err)
	assert.Equal(t, 21, plan.Len())
	assert.Equal(t, 5000.0, plan.Start())
	assert.Equal(t, 150000.0, plan.Stop())

	assert.Equal(t, 2*time.Second, time.Duration(config.Sweep.Settle))
	assert.Equal(t, 10*time.Second, time.Duration(config.Scope.Timeout))
	assert.Equal(t, "500 mV", config.Generator.Amplitude)
	assert.Equal(t, "CH1", config.Scope.Channel)
	assert.Nil(t, config.Sweep.MinVpp)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bwcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
settings:
  logLevel: debug
scope:
  resource: USB0::0x0699::0x0368::C012345::INSTR
  channel: CH2
  timeout: 5s
  skipBlockTermination: true
generator:
  resource: TCPIP0::192.168.1.20::5025::SOCKET
  amplitude: 1 V
sweep:
  points: 10
  settle: 500ms
  minVpp: 2.12
resources:
  - TCPIP0::192.168.1.20::5025::SOCKET
output:
  archive: true
`), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	level, err := config.Settings.Level()
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", level.String())

	assert.Equal(t, "USB0::0x0699::0x0368::C012345::INSTR", config.Scope.Resource)
	assert.Equal(t, "CH2", config.Scope.Channel)
	assert.Equal(t, 1, config.Scope.BytesPerSample)
	assert.Equal(t, 5*time.Second, time.Duration(config.Scope.Timeout))
	assert.True(t, config.Scope.SkipBlockTermination)
	assert.False(t, config.Generator.SkipBlockTermination)

	assert.Equal(t, "1 V", config.Generator.Amplitude)
	assert.Equal(t, 5000.0, config.Generator.InitialFrequencyKHz)
	assert.Equal(t, 10*time.Second, time.Duration(config.Generator.Timeout))

	assert.Equal(t, 10, config.Sweep.Points)
	assert.Equal(t, 150000.0, config.Sweep.StopKHz)
	assert.Equal(t, 500*time.Millisecond, time.Duration(config.Sweep.Settle))
	require.NotNil(t, config.Sweep.MinVpp)
	assert.Equal(t, 2.12, *config.Sweep.MinVpp)

	assert.True(t, config.Output.Archive)
	assert.True(t, config.Output.Plot)
}

func TestLoadConfig_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
	}{
		{"log level", "settings:\n  logLevel: loud\n"},
		{"channel", "scope:\n  channel: CH9\n"},
		{"resource", "scope:\n  resource: GPIB0::7::INSTR\n"},
		{"pattern", "generator:\n  pattern: \"*\"\n"},
		{"encoding", "scope:\n  encoding: ebcdic\n"},
		{"timeout", "scope:\n  timeout: 0s\n"},
		{"duration", "sweep:\n  settle: 2\n"},
		{"amplitude", "generator:\n  amplitude: loud\n"},
		{"plan", "sweep:\n  startKHz: 200000\n"},
		{"range", "sweep:\n  stopKHz: 4000000\n"},
		{"points", "sweep:\n  points: 0\n"},
		{"min vpp", "sweep:\n  minVpp: -1\n"},
		{"static resource", "resources:\n  - nonsense\n"},
		{"output", "output:\n  directory: \"\"\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bwcheck.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.yaml), 0o644))

			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestDeviceName(t *testing.T) {
	assert.Equal(t, "TBS2102B", deviceName("", "TEKTRONIX,TBS2102B,C010101,CF:91.1CT FV:v1.26.12"))
	assert.Equal(t, "bench-1", deviceName("bench-1", "TEKTRONIX,TBS2102B,C010101,CF:91.1CT FV:v1.26.12"))
	assert.Equal(t, "scope", deviceName("", "garbage"))
}
