package binaural

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManualBoard(t *testing.T) *SyntheticBoard {
	t.Helper()
	b := NewSyntheticBoard(DefaultConfig().Board, 7)
	b.Manual = true
	b.now = func() time.Time { return time.Unix(1700000000, 0) }
	require.NoError(t, b.Prepare())
	require.NoError(t, b.Start())
	return b
}

func TestSyntheticBoardPump(t *testing.T) {
	b := newManualBoard(t)
	b.Pump(500)

	data := b.ReadAll()
	layout := b.Layout()
	require.Len(t, data, layout.Rows)
	for _, row := range data {
		assert.Len(t, row, 500)
	}

	ts := data[layout.TimestampChannel]
	assert.InDelta(t, 1700000000.0, ts[0], 1e-9)
	assert.InDelta(t, 1700000000.0+499.0/250, ts[499], 1e-6)
	for i := 1; i < len(ts); i++ {
		require.Greater(t, ts[i], ts[i-1])
	}
}

func TestSyntheticBoardDeterministic(t *testing.T) {
	a, b := newManualBoard(t), newManualBoard(t)
	a.Pump(100)
	b.Pump(100)
	assert.Equal(t, a.ReadAll(), b.ReadAll())
}

func TestSyntheticBoardLive(t *testing.T) {
	b := NewSyntheticBoard(DefaultConfig().Board, 1)
	assert.Error(t, b.Start(), "start before prepare")
	require.NoError(t, b.Prepare())
	require.NoError(t, b.Start())
	require.Eventually(t, func() bool { return b.buf.Len() > 10 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, b.Stop())

	n := b.buf.Len()
	time.Sleep(3 * syntheticTick)
	assert.Equal(t, n, b.buf.Len(), "no samples after stop")
	require.NoError(t, b.Release())
}

func TestSampleBufferMarkersQueue(t *testing.T) {
	b := newManualBoard(t)
	b.Pump(3)

	require.NoError(t, b.InsertMarker(MarkerStimulus))
	require.NoError(t, b.InsertMarker(MarkerRelax))
	b.Pump(1)
	codes, _ := Markers(b.ReadAll(), b.Layout())
	assert.Equal(t, []Marker{MarkerStimulus}, codes, "second marker waits for the next sample")

	b.Pump(2)
	codes, index := Markers(b.ReadAll(), b.Layout())
	assert.Equal(t, []Marker{MarkerStimulus, MarkerRelax}, codes)
	assert.Equal(t, []int{3, 4}, index)
}

func TestSampleBufferWindow(t *testing.T) {
	layout := NewLayout(250, []string{"A1", "C3"})
	buf := NewSampleBuffer(layout)
	for i := 0; i < 10; i++ {
		buf.Append([]float64{float64(i), float64(-i)}, float64(i))
	}

	w := buf.Window(3)
	assert.Equal(t, []float64{7, 8, 9}, w[0])
	assert.Equal(t, []float64{-7, -8, -9}, w[1])
	assert.Len(t, buf.Window(100)[layout.TimestampChannel], 10)

	// 返回的是拷贝
	w[0][0] = 1000
	assert.Equal(t, 7.0, buf.Window(3)[0][0])
}

func TestMarkerString(t *testing.T) {
	assert.Equal(t, "experiment start", MarkerExperimentStart.String())
	assert.Equal(t, "unknown", Marker(42).String())
}
