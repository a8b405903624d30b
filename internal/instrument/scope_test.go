package instrument_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/scope-bandwidth/internal/instrument"
	"github.com/roman-kulish/scope-bandwidth/internal/visa/visatest"
)

func newScope(t *testing.T, replies map[string]visatest.Reply) (*visatest.Instrument, *instrument.Scope) {
	t.Helper()

	inst, session := visatest.NewInstrument(t, replies)
	scope, err := instrument.NewScope(session, instrument.ScopeConfig{Channel: "ch1", BytesPerSample: 1})
	require.NoError(t, err)

	return inst, scope
}

func TestScope_InitAndConfigure(t *testing.T) {
	inst, scope := newScope(t, map[string]visatest.Reply{
		"*idn?":         visatest.Text("TEKTRONIX,TBS2102B,C010101,CF:91.1CT FV:v1.26.12"),
		"wfmpre:nr_pt?": visatest.Text("2000"),
	})

	ctx := context.Background()
	idn, err := scope.Init(ctx)
	require.NoError(t, err)
	assert.Equal(t, "TEKTRONIX,TBS2102B,C010101,CF:91.1CT FV:v1.26.12", idn)

	n, err := scope.Configure(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2000, n)

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
	}, inst.Commands())
}

func TestScope_ConfigureNR3RecordLength(t *testing.T) {
	_, scope := newScope(t, map[string]visatest.Reply{
		"wfmpre:nr_pt?": visatest.Text("2.5E+3"),
	})

	n, err := scope.Configure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2500, n)
}

func TestScope_ConfigureBadRecordLength(t *testing.T) {
	for _, reply := range []string{"none", "0", "12.5"} {
		t.Run(reply, func(t *testing.T) {
			inst, scope := newScope(t, map[string]visatest.Reply{
				"wfmpre:nr_pt?": visatest.Text(reply),
			})

			_, err := scope.Configure(context.Background())

			var replyErr *instrument.ReplyError
			require.True(t, errors.As(err, &replyErr), "unexpected error: %v", err)
			assert.Equal(t, "wfmpre:nr_pt?", replyErr.Command)
			assert.NotContains(t, inst.Commands(), "wfmpre:byt_nr 1")
		})
	}
}

func TestScope_CurveAndVerticalScale(t *testing.T) {
	inst, scope := newScope(t, map[string]visatest.Reply{
		"curve?":        visatest.Int8Block(-50, 0, 50),
		"wfmpre:ymult?": visatest.Text("4.0E-2"),
	})

	ctx := context.Background()
	samples, err := scope.Curve(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int8{-50, 0, 50}, samples)

	scale, err := scope.VerticalScale(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.04, scale, 1e-12)

	// the scale follows the scope's volts/div and is never cached
	inst.SetReply("wfmpre:ymult?", visatest.Text("8.0E-2"))
	scale, err = scope.VerticalScale(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.08, scale, 1e-12)

	assert.Equal(t, []string{"curve?", "wfmpre:ymult?", "wfmpre:ymult?"}, inst.Commands())
}

func TestScopeConfig_Validate(t *testing.T) {
	testCases := []struct {
		name   string
		config instrument.ScopeConfig
		valid  bool
	}{
		{"default", instrument.ScopeConfig{Channel: "CH1", BytesPerSample: 1}, true},
		{"lower case channel", instrument.ScopeConfig{Channel: "ch4", BytesPerSample: 1}, true},
		{"unknown channel", instrument.ScopeConfig{Channel: "CH5", BytesPerSample: 1}, false},
		{"math channel", instrument.ScopeConfig{Channel: "MATH", BytesPerSample: 1}, false},
		{"two bytes", instrument.ScopeConfig{Channel: "CH1", BytesPerSample: 2}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.Validate()
			if tc.valid {
				assert.NoError(t, err)
				return
			}

			var configErr *instrument.ConfigError
			assert.ErrorAs(t, err, &configErr)
		})
	}
}

func TestScope_CurveChecksStatus(t *testing.T) {
	inst, session := visatest.NewInstrument(t, map[string]visatest.Reply{
		"curve?": visatest.Int8Block(1, 2, 3),
		"*esr?":  visatest.Text("32"),
		"allev?": visatest.Text(`221,"Invalid parameter"`),
	})

	scope, err := instrument.NewScope(session, instrument.ScopeConfig{Channel: "CH1", BytesPerSample: 1, CheckStatus: true})
	require.NoError(t, err)

	samples, err := scope.Curve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int8{1, 2, 3}, samples)
	assert.Equal(t, []string{"curve?", "*esr?", "allev?"}, inst.Commands())

	inst.SetReply("*esr?", visatest.Text("0"))
	_, err = scope.Curve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"curve?", "*esr?", "allev?", "curve?", "*esr?"}, inst.Commands())
}
