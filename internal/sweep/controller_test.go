package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTimeout = errors.New("timeout")

// bench records every command sent to the simulated instruments in order
type bench struct {
	mu       sync.Mutex
	commands []string

	samples  []int8
	scale    float64
	failAt   int // index of the SetFrequency call that fails, -1 for never
	setCalls int
}

func newBench(samples []int8, scale float64) *bench {
	return &bench{samples: samples, scale: scale, failAt: -1}
}

func (b *bench) record(cmd string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = append(b.commands, cmd)
}

func (b *bench) SetFrequency(_ context.Context, kHz float64) error {
	b.record(fmt.Sprintf("FREQ:CW %d kHz", int64(kHz)))

	b.setCalls++
	if b.setCalls-1 == b.failAt {
		return errTimeout
	}
	return nil
}

func (b *bench) Curve(context.Context) ([]int8, error) {
	b.record("curve?")
	return b.samples, nil
}

func (b *bench) VerticalScale(context.Context) (float64, error) {
	b.record("wfmpre:ymult?")
	return b.scale, nil
}

type recordingPlotter struct {
	indexes []int
	err     error
}

func (p *recordingPlotter) Update(_ context.Context, res *Result, index int) error {
	p.indexes = append(p.indexes, index)
	if res.Amplitudes[index] == 0 {
		return errors.New("amplitude not stored before plot update")
	}
	return p.err
}

func defaultPlan(t *testing.T) Plan {
	t.Helper()
	plan, err := NewLogPlan(DefaultStartKHz, DefaultStopKHz, DefaultPoints)
	require.NoError(t, err)
	return plan
}

func TestController_Run(t *testing.T) {
	b := newBench([]int8{-64, -10, 0, 33, 63}, 0.03125)
	plotter := &recordingPlotter{}
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	c := NewController(b, b, WithSettleTime(0), WithPlotter(plotter), WithStartTime(started))
	res, err := c.Run(context.Background(), defaultPlan(t))
	require.NoError(t, err)

	require.Equal(t, 21, res.Len())
	require.Len(t, res.Amplitudes, 21)
	assert.Equal(t, started, res.Started)
	assert.Equal(t, defaultPlan(t).Values(), res.Frequencies)

	for i, a := range res.Amplitudes {
		assert.Equal(t, 127*0.03125, a, "index %d", i)
	}

	assert.Len(t, plotter.indexes, 21)
	assert.Equal(t, 0, plotter.indexes[0])
	assert.Equal(t, 20, plotter.indexes[20])

	assert.Len(t, b.commands, 21*3)
	assert.Equal(t, []string{"FREQ:CW 5000 kHz", "curve?", "wfmpre:ymult?"}, b.commands[:3])
	assert.Equal(t, "FREQ:CW 150000 kHz", b.commands[60])
}

func TestController_TimeoutAbortsSweep(t *testing.T) {
	b := newBench([]int8{-1, 1}, 1)
	b.failAt = 4

	c := NewController(b, b, WithSettleTime(0))
	res, err := c.Run(context.Background(), defaultPlan(t))

	require.ErrorIs(t, err, errTimeout)
	assert.Nil(t, res)

	// four complete steps, then the failing frequency command and nothing else
	require.Len(t, b.commands, 4*3+1)
	assert.Contains(t, b.commands[len(b.commands)-1], "FREQ:CW")
}

func TestController_PlotFailureDoesNotAbort(t *testing.T) {
	b := newBench([]int8{-1, 1}, 1)
	plotter := &recordingPlotter{err: errors.New("disk full")}

	c := NewController(b, b, WithSettleTime(0), WithPlotter(plotter))
	res, err := c.Run(context.Background(), defaultPlan(t))
	require.NoError(t, err)
	assert.Equal(t, 21, res.Len())
	assert.Len(t, plotter.indexes, 21)
}

func TestController_CancelDuringSettle(t *testing.T) {
	b := newBench([]int8{-1, 1}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	c := NewController(b, b, WithSettleTime(time.Minute))
	_, err := c.Run(ctx, defaultPlan(t))

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"FREQ:CW 5000 kHz"}, b.commands)
}

func TestController_EmptyPlan(t *testing.T) {
	b := newBench(nil, 1)

	_, err := NewController(b, b).Run(context.Background(), Plan{})
	assert.ErrorIs(t, err, ErrEmptyPlan)
	assert.Empty(t, b.commands)
}
