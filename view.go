package binaural

import (
	"sync"
	"sync/atomic"

	"binaural/Filters"
	"github.com/rs/zerolog"
)

// Conditioner 实时显示和导出共用的信号处理流程，由 Filters.Conditioner 实现
type Conditioner interface {
	DetectMains(data [][]float64) (Filters.Band, error)
	Quality(data [][]float64) []float64
	Reference(data [][]float64, mode Filters.ReferenceMode) ([][]float64, error)
	Filter(data [][]float64, spec Filters.FilterSpec) ([][]float64, error)
}

// QualityLevel 信号质量分级
type QualityLevel int

const (
	QualityPoor QualityLevel = iota
	QualityMarginal
	QualityGood
)

func (l QualityLevel) String() string {
	switch l {
	case QualityGood:
		return "good"
	case QualityMarginal:
		return "marginal"
	default:
		return "poor"
	}
}

// Level 按阈值给质量分数分级
func (c ViewConfig) Level(score float64) QualityLevel {
	switch {
	case score >= c.GoodThreshold:
		return QualityGood
	case score >= c.MarginalThreshold:
		return QualityMarginal
	default:
		return QualityPoor
	}
}

// Trace 一个通道的显示数据
type Trace struct {
	Name    string
	Samples []float64
	Quality float64
	Level   QualityLevel
}

// Frame 一次刷新的全部显示数据
type Frame struct {
	Traces  []Trace
	Mains   Filters.Band
	Samples int
}

// AcquisitionView 实验开始前的实时波形显示
// Tick 由界面定时调用，只读取设备缓冲区，不做任何阻塞 I/O
type AcquisitionView struct {
	board  Board
	cond   Conditioner
	cfg    ViewConfig
	logger zerolog.Logger

	mu       sync.Mutex
	mains    Filters.Band
	hasMains bool

	halted atomic.Bool
}

// NewAcquisitionView 创建实时显示
func NewAcquisitionView(board Board, cond Conditioner, cfg ViewConfig, logger zerolog.Logger) *AcquisitionView {
	return &AcquisitionView{
		board:  board,
		cond:   cond,
		cfg:    cfg,
		logger: logger.With().Str("component", "view").Logger(),
	}
}

// Tick 处理最近一个显示窗口的数据
// 数据不足 MinSeconds、已停止或处理出错时返回 false
func (v *AcquisitionView) Tick() (Frame, bool) {
	if v.halted.Load() {
		return Frame{}, false
	}
	layout := v.board.Layout()
	data := v.board.ReadWindow(v.cfg.WindowSeconds * layout.SampleRate)
	if layout.TimestampChannel >= len(data) {
		return Frame{}, false
	}
	n := len(data[layout.TimestampChannel])
	if n < v.cfg.MinSeconds*layout.SampleRate {
		return Frame{}, false
	}

	mains, err := v.detectMains(data)
	if err != nil {
		v.logger.Warn().Err(err).Int("samples", n).Msg("mains detection")
		return Frame{}, false
	}

	quality := v.cond.Quality(data)
	referenced, err := v.cond.Reference(data, v.cfg.Reference)
	if err != nil {
		v.logger.Error().Err(err).Str("mode", string(v.cfg.Reference)).Msg("reference")
		return Frame{}, false
	}
	filtered, err := v.cond.Filter(referenced, Filters.FilterSpec{
		Cut:      v.cfg.Cut,
		Bandpass: v.cfg.Bandpass,
		Bandstop: mains,
	})
	if err != nil {
		v.logger.Error().Err(err).Msg("filter")
		return Frame{}, false
	}

	frame := Frame{Mains: mains, Samples: n}
	for i, row := range layout.EEGChannels {
		tr := Trace{Name: layout.EEGNames[i], Samples: filtered[row]}
		if i < len(quality) {
			tr.Quality = quality[i]
		}
		tr.Level = v.cfg.Level(tr.Quality)
		frame.Traces = append(frame.Traces, tr)
	}
	return frame, true
}

// detectMains 每个会话只检测一次
func (v *AcquisitionView) detectMains(data [][]float64) (Filters.Band, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.hasMains {
		return v.mains, nil
	}
	band, err := v.cond.DetectMains(data)
	if err != nil {
		return Filters.Band{}, err
	}
	v.mains, v.hasMains = band, true
	v.logger.Info().Str("band", band.String()).Msg("mains detected")
	return band, nil
}

// Mains 返回已检测到的工频陷波带
func (v *AcquisitionView) Mains() (Filters.Band, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mains, v.hasMains
}

// Halt 永久停止实时显示
func (v *AcquisitionView) Halt() {
	if v.halted.CompareAndSwap(false, true) {
		v.logger.Info().Msg("live view halted")
	}
}

func (v *AcquisitionView) Halted() bool {
	return v.halted.Load()
}
