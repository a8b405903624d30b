package app

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/scope-bandwidth/internal/storage"
	"github.com/roman-kulish/scope-bandwidth/internal/visa"
	"github.com/roman-kulish/scope-bandwidth/internal/visa/visatest"
)

const scopeIDN = "TEKTRONIX,TBS2102B,C010101,CF:91.1CT FV:v1.26.12"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func scopeReplies() map[string]visatest.Reply {
	return map[string]visatest.Reply{
		"*idn?":         visatest.Text(scopeIDN),
		"wfmpre:nr_pt?": visatest.Text("2000"),
		"curve?":        visatest.Int8Block(-64, -20, 0, 20, 63),
		"wfmpre:ymult?": visatest.Text("3.125E-2"),
	}
}

func benchConfig(t *testing.T, scopeResource, generatorResource string) *Config {
	t.Helper()

	config := DefaultConfig()
	config.Scope.Resource = scopeResource
	config.Generator.Resource = generatorResource
	config.Sweep.Settle = 0
	config.Output.Directory = t.TempDir()
	config.Output.Plot = false
	require.NoError(t, config.Validate())

	return config
}

func TestRun(t *testing.T) {
	scope, scopeResource := visatest.Listen(t, scopeReplies())
	generator, generatorResource := visatest.Listen(t, nil)

	config := benchConfig(t, scopeResource, generatorResource)
	config.Output.Plot = true
	config.Output.Archive = true
	minVpp := 2.12
	config.Sweep.MinVpp = &minVpp

	require.NoError(t, Run(context.Background(), config, discardLogger()))

	// result table
	files, err := filepath.Glob(filepath.Join(config.Output.Directory, "TBS2102B_*.csv"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	f, err := os.Open(files[0])
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 22)
	assert.Equal(t, []string{"Freq", "Amp"}, records[0])
	assert.Equal(t, []string{"5000", "3.96875"}, records[1])
	assert.Equal(t, []string{"150000", "3.96875"}, records[21])

	// chart and archive share the timestamp of the table
	base := filepath.Base(files[0])
	stamp := base[len("TBS2102B_") : len(base)-len(".csv")]
	assert.FileExists(t, filepath.Join(config.Output.Directory, "TBS2102B_"+stamp+".png"))

	store := storage.NewSqliteStore(filepath.Join(config.Output.Directory, "TBS2102B_"+stamp+".sqlite"))
	defer store.Close()

	run, err := store.LatestRun(context.Background())
	require.NoError(t, err)
	require.NotNil(t, run.ScopeIDN)
	assert.Equal(t, scopeIDN, *run.ScopeIDN)

	points, err := store.Points(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Len(t, points, 21)

	// instrument command sequences
	scopeCommands := scope.Commands()
	assert.Equal(t, []string{
		"*cls",
		"*idn?",
		"header 0",
		"data:encdg RIBINARY",
		"data:source CH1",
		"data:start 1",
		"wfmpre:nr_pt?",
		"data:stop 2000",
		"wfmpre:byt_nr 1",
	}, scopeCommands[:9])
	assert.Len(t, scopeCommands, 9+21*2)

	require.Eventually(t, func() bool { return len(generator.Commands()) == 5+21 }, time.Second, 10*time.Millisecond)
	generatorCommands := generator.Commands()
	assert.Equal(t, []string{"*cls", "*rst", "AMPL:CW 500 mV", "FREQ:CW 5000 kHz", "RFOutput:STATE ON"}, generatorCommands[:5])
	assert.Equal(t, "FREQ:CW 5000 kHz", generatorCommands[5])
	assert.Equal(t, "FREQ:CW 150000 kHz", generatorCommands[25])
}

func TestRun_TimeoutAbortsSweep(t *testing.T) {
	replies := scopeReplies()
	replies["curve?"] = visatest.Silent()

	scope, scopeResource := visatest.Listen(t, replies)
	generator, generatorResource := visatest.Listen(t, nil)

	config := benchConfig(t, scopeResource, generatorResource)
	config.Scope.Timeout = Duration(100 * time.Millisecond)

	err := Run(context.Background(), config, discardLogger())
	require.ErrorIs(t, err, visa.ErrTimeout)

	// nothing after the failing capture
	assert.Equal(t, "curve?", scope.Commands()[len(scope.Commands())-1])

	require.Eventually(t, func() bool { return len(generator.Commands()) == 6 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"*cls", "*rst", "AMPL:CW 500 mV", "FREQ:CW 5000 kHz", "RFOutput:STATE ON", "FREQ:CW 5000 kHz"}, generator.Commands())

	// no partial results
	files, err := os.ReadDir(config.Output.Directory)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestRun_BandwidthNotMet(t *testing.T) {
	_, scopeResource := visatest.Listen(t, scopeReplies())
	_, generatorResource := visatest.Listen(t, nil)

	config := benchConfig(t, scopeResource, generatorResource)
	minVpp := 5.0
	config.Sweep.MinVpp = &minVpp

	err := Run(context.Background(), config, discardLogger())
	require.Error(t, err)

	// the table is written before the verdict
	files, err := filepath.Glob(filepath.Join(config.Output.Directory, "*.csv"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestRun_ScopeNotFound(t *testing.T) {
	config := DefaultConfig()
	config.Output.Directory = t.TempDir()
	config.Scope.Pattern = "?*0xFFFF?*::INSTR"

	err := Run(context.Background(), config, discardLogger())
	assert.ErrorIs(t, err, visa.ErrResourceNotFound)
}

func TestDryRun(t *testing.T) {
	assert.NoError(t, DryRun(DefaultConfig(), discardLogger()))
}
