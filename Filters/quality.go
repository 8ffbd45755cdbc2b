package Filters

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// 质量评分参数
const (
	QualityMax = 100.0

	qualitySignalLow  = 1.0    // EEG 有效频段下限 (Hz)
	qualitySignalHigh = 40.0   // EEG 有效频段上限 (Hz)
	qualityTotalLow   = 0.5    // 总功率统计下限，避开直流漂移
	qualityRailUV     = 1000.0 // 峰峰值超过该值 (uV) 视为电极饱和/接触不良
)

// Quality 计算每个 EEG 通道的信号质量评分，范围 [0, 100]
// 评分 = 1-40Hz 功率占 0.5Hz-Nyquist 总功率的比例，峰峰值过大时按比例扣分。
// 平直信号 (电极脱落) 或空通道为 0。
func Quality(data [][]float64, ch Channels) []float64 {
	scores := make([]float64, len(ch.EEG))
	if ch.SampleRate <= 0 {
		return scores
	}
	for i, r := range ch.EEG {
		if r < 0 || r >= len(data) {
			continue
		}
		scores[i] = channelQuality(data[r], ch.SampleRate)
	}
	return scores
}

func channelQuality(row []float64, sampleRate float64) float64 {
	n := len(row)
	if n < 2 {
		return 0
	}

	minV, maxV := row[0], row[0]
	for _, v := range row {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	ptp := maxV - minV
	if !(ptp > 1e-9) {
		// 平直或包含 NaN
		return 0
	}

	// 1. 去均值并加 Hann 窗
	x := removeMean(row)
	w := window.Hann(n)
	for i := range x {
		x[i] *= w[i]
	}

	// 2. 实数 FFT，统计各频段功率
	spectrum := fft.FFTReal(x)
	binWidth := sampleRate / float64(n)
	var signal, total float64
	for k := 0; k <= n/2; k++ {
		f := float64(k) * binWidth
		if f < qualityTotalLow {
			continue
		}
		p := cmplx.Abs(spectrum[k])
		p *= p
		total += p
		if f >= qualitySignalLow && f <= qualitySignalHigh {
			signal += p
		}
	}
	if total <= 0 {
		return 0
	}

	score := QualityMax * signal / total

	// 3. 饱和扣分
	if ptp > qualityRailUV {
		score *= qualityRailUV / ptp
	}

	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > QualityMax {
		score = QualityMax
	}
	return math.Round(score*10) / 10
}
