package binaural

import (
	"errors"
	"testing"

	"binaural/Filters"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingConditioner 记录调用顺序，实际处理交给 Filters
type countingConditioner struct {
	inner    *Filters.Conditioner
	calls    []string
	refErr   error
	lastSpec Filters.FilterSpec
}

func newCountingConditioner(layout Layout) *countingConditioner {
	return &countingConditioner{inner: Filters.NewConditioner(layout.Channels())}
}

func (c *countingConditioner) DetectMains(data [][]float64) (Filters.Band, error) {
	c.calls = append(c.calls, "mains")
	return c.inner.DetectMains(data)
}

func (c *countingConditioner) Quality(data [][]float64) []float64 {
	c.calls = append(c.calls, "quality")
	return c.inner.Quality(data)
}

func (c *countingConditioner) Reference(data [][]float64, mode Filters.ReferenceMode) ([][]float64, error) {
	c.calls = append(c.calls, "reference")
	if c.refErr != nil {
		return nil, c.refErr
	}
	return c.inner.Reference(data, mode)
}

func (c *countingConditioner) Filter(data [][]float64, spec Filters.FilterSpec) ([][]float64, error) {
	c.calls = append(c.calls, "filter")
	c.lastSpec = spec
	return c.inner.Filter(data, spec)
}

func newTestView(t *testing.T) (*AcquisitionView, *SyntheticBoard, *countingConditioner) {
	t.Helper()
	board := newManualBoard(t)
	cond := newCountingConditioner(board.Layout())
	return NewAcquisitionView(board, cond, DefaultConfig().View, zerolog.Nop()), board, cond
}

func TestViewTickBelowMinimum(t *testing.T) {
	v, board, cond := newTestView(t)

	_, ok := v.Tick()
	assert.False(t, ok, "empty buffer")

	board.Pump(3*250 - 1)
	_, ok = v.Tick()
	assert.False(t, ok, "just under 3 s")
	assert.Empty(t, cond.calls, "no conditioning before 3 s of data")

	_, hasMains := v.Mains()
	assert.False(t, hasMains)
}

func TestViewTickPipeline(t *testing.T) {
	v, board, cond := newTestView(t)
	board.Pump(3 * 250)

	frame, ok := v.Tick()
	require.True(t, ok)
	assert.Equal(t, []string{"mains", "quality", "reference", "filter"}, cond.calls)
	assert.Equal(t, 750, frame.Samples)

	// 模拟信号带 50Hz 工频
	assert.Equal(t, Filters.Band{Low: 48, High: 52}, frame.Mains)
	assert.Equal(t, frame.Mains, cond.lastSpec.Bandstop)
	assert.Equal(t, Filters.Band{Low: 3, High: 40}, cond.lastSpec.Bandpass)

	require.Len(t, frame.Traces, 4)
	for i, tr := range frame.Traces {
		assert.Equal(t, board.Layout().EEGNames[i], tr.Name)
		assert.Len(t, tr.Samples, 750)
		assert.GreaterOrEqual(t, tr.Quality, 0.0)
		assert.LessOrEqual(t, tr.Quality, Filters.QualityMax)
		assert.Equal(t, DefaultConfig().View.Level(tr.Quality), tr.Level)
	}
}

func TestViewMainsCached(t *testing.T) {
	v, board, cond := newTestView(t)
	board.Pump(3 * 250)
	_, ok := v.Tick()
	require.True(t, ok)

	board.Pump(250)
	cond.calls = nil
	_, ok = v.Tick()
	require.True(t, ok)
	assert.Equal(t, []string{"quality", "reference", "filter"}, cond.calls)
}

func TestViewWindowLimit(t *testing.T) {
	v, board, _ := newTestView(t)
	board.Pump(12 * 250)

	frame, ok := v.Tick()
	require.True(t, ok)
	assert.Equal(t, 10*250, frame.Samples)
	assert.Len(t, frame.Traces[0].Samples, 10*250)
}

func TestViewHalt(t *testing.T) {
	v, board, cond := newTestView(t)
	board.Pump(3 * 250)

	v.Halt()
	v.Halt()
	assert.True(t, v.Halted())
	_, ok := v.Tick()
	assert.False(t, ok)
	assert.Empty(t, cond.calls)
}

func TestViewConditioningErrorIsNoop(t *testing.T) {
	v, board, cond := newTestView(t)
	board.Pump(3 * 250)
	cond.refErr = errors.New("boom")

	_, ok := v.Tick()
	assert.False(t, ok)
	assert.NotContains(t, cond.calls, "filter")
}

func TestQualityLevel(t *testing.T) {
	cfg := DefaultConfig().View
	assert.Equal(t, QualityGood, cfg.Level(100))
	assert.Equal(t, QualityGood, cfg.Level(99))
	assert.Equal(t, QualityMarginal, cfg.Level(98.9))
	assert.Equal(t, QualityMarginal, cfg.Level(95))
	assert.Equal(t, QualityPoor, cfg.Level(94.9))
	assert.Equal(t, "marginal", QualityMarginal.String())
}
