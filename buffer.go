package binaural

import (
	"sync"

	"binaural/Filters"
)

// Marker 写入标记通道的同步码
type Marker int

const (
	MarkerRelax           Marker = 1 // 静息开始
	MarkerStimulus        Marker = 3 // 刺激开始
	MarkerExperimentStart Marker = 5 // 实验开始
	MarkerExperimentEnd   Marker = 6 // 实验结束
)

func (m Marker) String() string {
	switch m {
	case MarkerRelax:
		return "relax"
	case MarkerStimulus:
		return "stimulus"
	case MarkerExperimentStart:
		return "experiment start"
	case MarkerExperimentEnd:
		return "experiment end"
	default:
		return "unknown"
	}
}

// Layout 描述采样缓冲区的行布局，一个会话内固定不变
type Layout struct {
	SampleRate       int
	EEGChannels      []int    // EEG 行索引
	EEGNames         []string // 与 EEGChannels 一一对应
	TimestampChannel int      // Unix 时间戳 (秒) 行
	MarkerChannel    int      // 标记行
	Rows             int
}

// NewLayout 按 EEG 通道名生成默认布局: EEG 0..N-1，时间戳 N，标记 N+1
func NewLayout(sampleRate int, names []string) Layout {
	eeg := make([]int, len(names))
	for i := range eeg {
		eeg[i] = i
	}
	return Layout{
		SampleRate:       sampleRate,
		EEGChannels:      eeg,
		EEGNames:         append([]string(nil), names...),
		TimestampChannel: len(names),
		MarkerChannel:    len(names) + 1,
		Rows:             len(names) + 2,
	}
}

// Channels 转换成条件处理模块使用的通道描述
func (l Layout) Channels() Filters.Channels {
	return Filters.Channels{
		SampleRate: float64(l.SampleRate),
		EEG:        l.EEGChannels,
		Names:      l.EEGNames,
	}
}

// SampleBuffer 只追加的多通道采样存储
// Append 只由设备读取 goroutine 调用；InsertMarker / Window / All 可以并发调用
type SampleBuffer struct {
	layout Layout

	mu      sync.RWMutex
	rows    [][]float64
	pending []Marker // 等待写入下一个采样点的标记
}

// NewSampleBuffer 创建空缓冲区
func NewSampleBuffer(layout Layout) *SampleBuffer {
	return &SampleBuffer{
		layout: layout,
		rows:   make([][]float64, layout.Rows),
	}
}

// Layout 返回缓冲区布局
func (b *SampleBuffer) Layout() Layout {
	return b.layout
}

// Append 追加一个采样点，eeg 按 EEGChannels 顺序
// 若有等待中的标记，取最早的一个写入该采样点
func (b *SampleBuffer) Append(eeg []float64, timestamp float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, r := range b.layout.EEGChannels {
		var v float64
		if i < len(eeg) {
			v = eeg[i]
		}
		b.rows[r] = append(b.rows[r], v)
	}
	b.rows[b.layout.TimestampChannel] = append(b.rows[b.layout.TimestampChannel], timestamp)

	var marker float64
	if len(b.pending) > 0 {
		marker = float64(b.pending[0])
		b.pending = b.pending[1:]
	}
	b.rows[b.layout.MarkerChannel] = append(b.rows[b.layout.MarkerChannel], marker)
}

// InsertMarker 标记写入下一个到达的采样点
// 连续插入的多个标记依次落在相邻的采样点上，保证时间索引严格递增
func (b *SampleBuffer) InsertMarker(m Marker) {
	b.mu.Lock()
	b.pending = append(b.pending, m)
	b.mu.Unlock()
}

// Len 当前采样点数
func (b *SampleBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rows[b.layout.TimestampChannel])
}

// Window 返回最近 n 个采样点的拷贝 (不足 n 个时返回全部)
func (b *SampleBuffer) Window(n int) [][]float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([][]float64, len(b.rows))
	for i, row := range b.rows {
		start := max(len(row)-n, 0)
		out[i] = append([]float64(nil), row[start:]...)
	}
	return out
}

// All 返回全部采样点的拷贝
func (b *SampleBuffer) All() [][]float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([][]float64, len(b.rows))
	for i, row := range b.rows {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Markers 从缓冲区中提取非零标记及其采样索引
func Markers(data [][]float64, layout Layout) (codes []Marker, index []int) {
	if layout.MarkerChannel >= len(data) {
		return nil, nil
	}
	for i, v := range data[layout.MarkerChannel] {
		if v != 0 {
			codes = append(codes, Marker(v))
			index = append(index, i)
		}
	}
	return codes, index
}
