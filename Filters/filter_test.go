package Filters

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

const testSampleRate = 250.0

var testChannels = Channels{
	SampleRate: testSampleRate,
	EEG:        []int{0, 1, 2, 3},
	Names:      []string{"A2", "A1", "C4", "C3"},
}

// 生成正弦波辅助函数
func generateSineWave(freq, amplitude, durationSec, sampleRate float64) []float64 {
	samples := int(durationSec * sampleRate)
	data := make([]float64, samples)
	for i := range data {
		t := float64(i) / sampleRate
		data[i] = amplitude * math.Sin(2*math.Pi*freq*t)
	}
	return data
}

func addSignals(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

// 4 个 EEG 通道 + 时间戳 + 标记
func makeBuffer(row func(ch int) []float64) [][]float64 {
	data := make([][]float64, 6)
	for ch := 0; ch < 4; ch++ {
		data[ch] = row(ch)
	}
	n := len(data[0])
	data[4] = make([]float64, n)
	data[5] = make([]float64, n)
	for i := 0; i < n; i++ {
		data[4][i] = 1700000000 + float64(i)/testSampleRate
	}
	return data
}

func noisyBuffer(seconds float64, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	return makeBuffer(func(ch int) []float64 {
		row := generateSineWave(10, 20, seconds, testSampleRate)
		for i := range row {
			row[i] += rng.NormFloat64() * 5
		}
		return row
	})
}

func middle(row []float64) []float64 {
	return row[len(row)/4 : 3*len(row)/4]
}

func peak(row []float64) float64 {
	var p float64
	for _, v := range row {
		p = math.Max(p, math.Abs(v))
	}
	return p
}

func TestSignalFiltering_PreservesShape(t *testing.T) {
	spec := FilterSpec{Cut: 250, Bandpass: Band{3, 40}, Bandstop: Band{48, 52}}
	for _, n := range []int{1, 2, 3, 10, 249, 250, 251, 2500} {
		data := makeBuffer(func(int) []float64 { return generateSineWave(10, 1, float64(n)/testSampleRate, testSampleRate) })

		ref, err := Reference(data, testChannels, ReferenceMastoid)
		require.NoError(t, err)
		out, err := SignalFiltering(ref, testChannels, spec)
		require.NoError(t, err)

		require.Len(t, out, len(data), "n=%d", n)
		for i := range out {
			require.Len(t, out[i], len(data[i]), "n=%d row=%d", n, i)
		}
	}
}

func TestSignalFiltering_Deterministic(t *testing.T) {
	data := noisyBuffer(10, 1)
	spec := FilterSpec{Cut: 250, Bandpass: Band{0.1, 45}, Bandstop: Band{48, 52}}

	first, err := SignalFiltering(data, testChannels, spec)
	require.NoError(t, err)
	second, err := SignalFiltering(data, testChannels, spec)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestSignalFiltering_LeavesInputAndAuxRowsUntouched(t *testing.T) {
	data := noisyBuffer(4, 2)
	orig := cloneRows(data)

	out, err := SignalFiltering(data, testChannels, FilterSpec{Cut: 250, Bandpass: Band{3, 40}})
	require.NoError(t, err)
	require.Equal(t, orig, data)
	require.Equal(t, data[4], out[4])
	require.Equal(t, data[5], out[5])
}

func TestSignalFiltering_Response(t *testing.T) {
	spec := FilterSpec{Cut: 250, Bandpass: Band{3, 40}, Bandstop: Band{48, 52}}

	// 10Hz 在通带内，应基本无衰减
	pass := makeBuffer(func(int) []float64 { return generateSineWave(10, 1, 10, testSampleRate) })
	out, err := SignalFiltering(pass, testChannels, spec)
	require.NoError(t, err)
	require.InDelta(t, 1.0, peak(middle(out[2])), 0.05)

	// 50Hz 落在陷波中心
	hum := makeBuffer(func(int) []float64 { return generateSineWave(50, 1, 10, testSampleRate) })
	out, err = SignalFiltering(hum, testChannels, spec)
	require.NoError(t, err)
	require.Less(t, peak(middle(out[2])), 0.05)

	// 0.5Hz 漂移被高通去掉
	drift := makeBuffer(func(int) []float64 { return generateSineWave(0.5, 1, 10, testSampleRate) })
	out, err = SignalFiltering(drift, testChannels, spec)
	require.NoError(t, err)
	require.Less(t, peak(middle(out[2])), 0.05)
}

func TestFilterSpec_RejectsMalformedRanges(t *testing.T) {
	cases := map[string]FilterSpec{
		"low>=high":       {Bandpass: Band{40, 3}},
		"low==high":       {Bandpass: Band{10, 10}},
		"low<=0":          {Bandpass: Band{0, 40}},
		"above nyquist":   {Bandpass: Band{3, 125}},
		"bad bandstop":    {Bandpass: Band{3, 40}, Bandstop: Band{52, 48}},
		"negative cut":    {Cut: -1, Bandpass: Band{3, 40}},
		"bandstop nyquis": {Bandstop: Band{100, 130}},
	}
	data := noisyBuffer(4, 3)
	for name, spec := range cases {
		_, err := SignalFiltering(data, testChannels, spec)
		require.Error(t, err, name)
		require.True(t, errors.Is(err, ErrConfiguration), name)

		var cfgErr *ConfigurationError
		require.True(t, errors.As(err, &cfgErr), name)
		require.NotEmpty(t, cfgErr.Param, name)
	}
}

func TestButterworthLowpass_UnityDCGain(t *testing.T) {
	f := NewButterworthLowpass(4, testSampleRate, 40)
	var out float64
	for i := 0; i < 2000; i++ {
		out = f.Process(1.0)
	}
	require.InDelta(t, 1.0, out, 1e-6)
}

func TestButterworthHighpass_BlocksDC(t *testing.T) {
	f := NewButterworthHighpass(4, testSampleRate, 3)
	var out float64
	for i := 0; i < 5000; i++ {
		out = f.Process(1.0)
	}
	require.InDelta(t, 0.0, out, 1e-6)
}

func TestBlockMagnitude(t *testing.T) {
	// 4 秒整周期: 50Hz 与 60Hz 都落在频点上
	hum := generateSineWave(50, 1, 4, testSampleRate)

	require.InDelta(t, 500, BlockMagnitude(hum, testSampleRate, 50), 1e-3, "N*A/2")
	require.Less(t, BlockMagnitude(hum, testSampleRate, 60), 1e-3)
	require.Zero(t, BlockMagnitude(nil, testSampleRate, 50))
}
