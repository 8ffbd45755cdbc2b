package Filters

import "math"

// BiquadFilter 表示一个二阶 IIR 滤波器节
// 用于级联实现高阶滤波器
type BiquadFilter struct {
	// 系数 (已按分母 a0 归一化)
	a0, a1, a2, b1, b2 float64
	// 状态 (延迟线)
	z1, z2 float64
}

// Process 处理单个采样点 (转置直接 II 型)
func (f *BiquadFilter) Process(in float64) float64 {
	out := in*f.a0 + f.z1
	f.z1 = in*f.a1 - out*f.b1 + f.z2
	f.z2 = in*f.a2 - out*f.b2
	return out
}

// Reset 清空延迟线
func (f *BiquadFilter) Reset() {
	f.z1, f.z2 = 0, 0
}

type biquadKind int

const (
	biquadLowpass biquadKind = iota
	biquadHighpass
	biquadNotch
)

// newBiquad 按 RBJ cookbook 公式 (双线性变换 + 预畸变) 计算系数
func newBiquad(kind biquadKind, sampleRate, freq, q float64) *BiquadFilter {
	w0 := 2 * math.Pi * freq / sampleRate
	cosW := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)

	var n0, n1, n2 float64
	switch kind {
	case biquadLowpass:
		n0 = (1 - cosW) / 2
		n1 = 1 - cosW
		n2 = (1 - cosW) / 2
	case biquadHighpass:
		n0 = (1 + cosW) / 2
		n1 = -(1 + cosW)
		n2 = (1 + cosW) / 2
	case biquadNotch:
		n0 = 1
		n1 = -2 * cosW
		n2 = 1
	}
	d0 := 1 + alpha
	return &BiquadFilter{
		a0: n0 / d0, a1: n1 / d0, a2: n2 / d0,
		b1: -2 * cosW / d0,
		b2: (1 - alpha) / d0,
	}
}

// ButterworthFilter 表示一个由多个 Biquad 节级联组成的滤波器
type ButterworthFilter struct {
	sections []*BiquadFilter
}

// butterworthQ 返回 N 阶巴特沃斯每个二阶节的 Q 值
// 级联顺序: Q 值较低的节放在前面 (Low Q -> High Q)
func butterworthQ(order int) []float64 {
	qs := make([]float64, order/2)
	for k := range qs {
		theta := math.Pi * (2*float64(k) + 1) / (2 * float64(order))
		qs[k] = 1 / (2 * math.Cos(theta))
	}
	return qs
}

func newButterworth(kind biquadKind, order int, sampleRate, cutoffFreq float64) *ButterworthFilter {
	if order%2 != 0 {
		panic("Butterworth filter order must be even")
	}
	qs := butterworthQ(order)
	sections := make([]*BiquadFilter, len(qs))
	for i, q := range qs {
		sections[i] = newBiquad(kind, sampleRate, cutoffFreq, q)
	}
	return &ButterworthFilter{sections: sections}
}

// NewButterworthLowpass 创建一个新的 N 阶巴特沃斯低通滤波器
// order: 滤波器阶数 (必须是偶数)
// sampleRate: 采样率 (Hz)
// cutoffFreq: 截止频率 (Hz)，调用方保证低于 Nyquist
func NewButterworthLowpass(order int, sampleRate, cutoffFreq float64) *ButterworthFilter {
	return newButterworth(biquadLowpass, order, sampleRate, cutoffFreq)
}

// NewButterworthHighpass 创建一个新的 N 阶巴特沃斯高通滤波器
func NewButterworthHighpass(order int, sampleRate, cutoffFreq float64) *ButterworthFilter {
	return newButterworth(biquadHighpass, order, sampleRate, cutoffFreq)
}

// NewBandstop 用 order/2 个相同的陷波节级联出带阻滤波器
// 陷波中心取频带中心，Q = 中心频率 / 带宽
func NewBandstop(order int, sampleRate float64, band Band) *ButterworthFilter {
	if order%2 != 0 {
		panic("bandstop order must be even")
	}
	q := band.Center() / (band.High - band.Low)
	sections := make([]*BiquadFilter, order/2)
	for i := range sections {
		sections[i] = newBiquad(biquadNotch, sampleRate, band.Center(), q)
	}
	return &ButterworthFilter{sections: sections}
}

// Chain 把多个滤波器串起来，返回一个新的级联
func Chain(filters ...*ButterworthFilter) *ButterworthFilter {
	var sections []*BiquadFilter
	for _, f := range filters {
		sections = append(sections, f.sections...)
	}
	return &ButterworthFilter{sections: sections}
}

// Process 处理单个采样点，通过所有级联节
func (f *ButterworthFilter) Process(in float64) float64 {
	out := in
	for _, s := range f.sections {
		out = s.Process(out)
	}
	return out
}

// Reset 清空所有节的状态
func (f *ButterworthFilter) Reset() {
	for _, s := range f.sections {
		s.Reset()
	}
}
