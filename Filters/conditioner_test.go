package Filters

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectMains(t *testing.T) {
	for _, mains := range []float64{50, 60} {
		data := makeBuffer(func(ch int) []float64 {
			eeg := generateSineWave(10, 20, 4, testSampleRate)
			return addSignals(eeg, generateSineWave(mains, 5, 4, testSampleRate))
		})
		band, err := DetectMains(data, testChannels)
		require.NoError(t, err)
		require.Equal(t, Band{Low: mains - 2, High: mains + 2}, band)
	}
}

func TestDetectMains_NeedsThreeSeconds(t *testing.T) {
	data := noisyBuffer(2.9, 4)
	_, err := DetectMains(data, testChannels)
	require.ErrorIs(t, err, ErrInsufficientData)

	data = noisyBuffer(3, 4)
	_, err = DetectMains(data, testChannels)
	require.NoError(t, err)
}

func TestQuality_AlwaysBounded(t *testing.T) {
	buffers := map[string][][]float64{
		"one sample": makeBuffer(func(int) []float64 { return []float64{3} }),
		"two samples": makeBuffer(func(int) []float64 { return []float64{3, -3} }),
		"flat":       makeBuffer(func(int) []float64 { return make([]float64, 500) }),
		"noise":      noisyBuffer(10, 5),
		"railing":    makeBuffer(func(int) []float64 { return generateSineWave(10, 1e6, 2, testSampleRate) }),
		"nan": makeBuffer(func(int) []float64 {
			row := generateSineWave(10, 1, 2, testSampleRate)
			row[7] = math.NaN()
			return row
		}),
	}
	for name, data := range buffers {
		scores := Quality(data, testChannels)
		require.Len(t, scores, 4, name)
		for _, s := range scores {
			require.GreaterOrEqual(t, s, 0.0, name)
			require.LessOrEqual(t, s, QualityMax, name)
		}
	}
}

func TestQuality_Scores(t *testing.T) {
	clean := makeBuffer(func(int) []float64 { return generateSineWave(10, 20, 10, testSampleRate) })
	for _, s := range Quality(clean, testChannels) {
		require.InDelta(t, 100, s, 0.5)
	}

	// 一半功率在 50Hz 工频上
	hum := makeBuffer(func(int) []float64 {
		return addSignals(generateSineWave(10, 20, 10, testSampleRate), generateSineWave(50, 20, 10, testSampleRate))
	})
	for _, s := range Quality(hum, testChannels) {
		require.InDelta(t, 50, s, 1)
	}

	// 峰峰值 4000uV，按 1000/4000 扣分
	railing := makeBuffer(func(int) []float64 { return generateSineWave(10, 2000, 10, testSampleRate) })
	for _, s := range Quality(railing, testChannels) {
		require.InDelta(t, 25, s, 0.5)
	}

	flat := makeBuffer(func(int) []float64 { return make([]float64, 2500) })
	require.Equal(t, []float64{0, 0, 0, 0}, Quality(flat, testChannels))
}

func TestReference_Mastoid(t *testing.T) {
	data := makeBuffer(func(ch int) []float64 {
		// A2=4, A1=2, C4=10, C3=20
		v := []float64{4, 2, 10, 20}[ch]
		return []float64{v, v, v}
	})
	out, err := Reference(data, testChannels, ReferenceMastoid)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 1, 1}, out[0])
	require.Equal(t, []float64{-1, -1, -1}, out[1])
	require.Equal(t, []float64{7, 7, 7}, out[2])
	require.Equal(t, []float64{17, 17, 17}, out[3])
	require.Equal(t, data[4], out[4])
	require.Equal(t, 4.0, data[0][0], "input must not be modified")
}

func TestReference_AverageAndNone(t *testing.T) {
	data := makeBuffer(func(ch int) []float64 { return []float64{float64(ch)} })

	avg, err := Reference(data, testChannels, ReferenceAverage)
	require.NoError(t, err)
	require.Equal(t, []float64{-1.5}, avg[0])
	require.Equal(t, []float64{1.5}, avg[3])

	none, err := Reference(data, testChannels, ReferenceNone)
	require.NoError(t, err)
	require.Equal(t, data, none)
}

func TestReference_Errors(t *testing.T) {
	data := noisyBuffer(1, 6)
	noMastoid := Channels{SampleRate: testSampleRate, EEG: []int{0, 1}, Names: []string{"C3", "C4"}}

	_, err := Reference(data, noMastoid, ReferenceMastoid)
	require.True(t, errors.Is(err, ErrConfiguration))

	_, err = Reference(data, testChannels, ReferenceMode("bipolar"))
	require.True(t, errors.Is(err, ErrConfiguration))

	_, err = ParseReferenceMode("Mastoid")
	require.NoError(t, err)
	_, err = ParseReferenceMode("cz")
	require.True(t, errors.Is(err, ErrConfiguration))
}

func TestConditioner_Pipeline(t *testing.T) {
	c := NewConditioner(testChannels)
	data := noisyBuffer(5, 7)

	mains, err := c.DetectMains(data)
	require.NoError(t, err)
	require.False(t, mains.IsZero())

	ref, err := c.Reference(data, ReferenceMastoid)
	require.NoError(t, err)
	out, err := c.Filter(ref, FilterSpec{Cut: 250, Bandpass: Band{3, 40}, Bandstop: mains})
	require.NoError(t, err)
	require.Len(t, out, len(data))
	require.Len(t, c.Quality(out), 4)
}
