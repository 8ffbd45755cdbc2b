package Filters

import "fmt"

// Band 表示一个频带 [Low, High] (Hz)，零值表示空频带
type Band struct {
	Low  float64
	High float64
}

// IsZero 判断频带是否为空
func (b Band) IsZero() bool {
	return b.Low == 0 && b.High == 0
}

// Center 频带中心频率
func (b Band) Center() float64 {
	return (b.Low + b.High) / 2
}

func (b Band) String() string {
	if b.IsZero() {
		return "none"
	}
	return fmt.Sprintf("%g-%gHz", b.Low, b.High)
}

// validate 检查频带是否落在 (0, nyquist) 内且 Low < High
func (b Band) validate(param string, sampleRate float64) error {
	nyquist := sampleRate / 2
	if b.Low >= b.High {
		return configErr(param, "low %g >= high %g", b.Low, b.High)
	}
	if b.Low <= 0 {
		return configErr(param, "low %g must be > 0", b.Low)
	}
	if b.High >= nyquist {
		return configErr(param, "high %g must be below nyquist %g", b.High, nyquist)
	}
	return nil
}

// Channels 描述缓冲区中哪些行是 EEG 数据
// 其余行 (时间戳、标记) 原样复制，不参与任何处理
type Channels struct {
	SampleRate float64
	EEG        []int    // EEG 行索引
	Names      []string // 与 EEG 一一对应的通道名
}

func (c Channels) validate() error {
	if c.SampleRate <= 0 {
		return configErr("sample rate", "%g must be > 0", c.SampleRate)
	}
	if len(c.Names) != 0 && len(c.Names) != len(c.EEG) {
		return configErr("channel names", "%d names for %d channels", len(c.Names), len(c.EEG))
	}
	return nil
}

// cloneRows 深拷贝二维缓冲区，保证调用方的数据不被修改
func cloneRows(data [][]float64) [][]float64 {
	out := make([][]float64, len(data))
	for i, row := range data {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// rowsOf 返回 EEG 行，越界的索引直接跳过
func (c Channels) rowsOf(data [][]float64) []int {
	rows := make([]int, 0, len(c.EEG))
	for _, r := range c.EEG {
		if r >= 0 && r < len(data) {
			rows = append(rows, r)
		}
	}
	return rows
}
