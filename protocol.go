package binaural

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// PhaseKind 实验阶段类型
type PhaseKind int

const (
	PhaseRelax PhaseKind = iota
	PhaseStimulus
)

func (k PhaseKind) String() string {
	if k == PhaseStimulus {
		return "stimulus"
	}
	return "relax"
}

// Phase 实验流程中的一个阶段
type Phase struct {
	Kind     PhaseKind
	Index    int // 刺激序号；开头的静息为 0
	Duration time.Duration
	Asset    string // 仅 Stimulus
}

// Phases 生成固定的阶段序列: Relax(0), [Stimulus(i), Relax(i)] i=1..N
func Phases(cfg ProtocolConfig) []Phase {
	phases := make([]Phase, 0, 1+2*cfg.NumStimuli)
	phases = append(phases, Phase{Kind: PhaseRelax, Index: 0, Duration: cfg.RelaxDuration})
	for i := 1; i <= cfg.NumStimuli; i++ {
		phases = append(phases,
			Phase{Kind: PhaseStimulus, Index: i, Duration: cfg.StimulusDuration, Asset: cfg.AssetPath(i)},
			Phase{Kind: PhaseRelax, Index: i, Duration: cfg.PauseDuration},
		)
	}
	return phases
}

// StatusKind 状态事件类型
type StatusKind int

const (
	StatusRelax StatusKind = iota
	StatusStimulus
	StatusComplete
)

func (k StatusKind) String() string {
	switch k {
	case StatusRelax:
		return "relax"
	case StatusStimulus:
		return "stimulus"
	case StatusComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// StatusEvent 发给界面的提示，显示 Duration 后自动清除
type StatusEvent struct {
	Kind     StatusKind
	Text     string
	Duration time.Duration
	Index    int
}

// Outcome 一次协议运行的结果
type Outcome struct {
	Markers []Marker // 本次运行写入的标记 (按顺序)
	Stimuli int      // 实际开始播放的刺激段数
	Err     error    // 中止原因，正常完成为 nil
}

// ProtocolController 在后台 goroutine 中按顺序执行实验阶段
// 写入同步标记、驱动音频播放，并通过 OnStatus 通知界面
type ProtocolController struct {
	board  Board
	player AudioPlayer
	cfg    ProtocolConfig
	logger zerolog.Logger

	// 回调
	OnStatus   func(StatusEvent) // 状态变化，在控制器 goroutine 中调用
	OnComplete func(Outcome)     // 完成 (成功或中止)，只调用一次

	// 可替换，方便测试
	Sleep func(time.Duration)

	ran        atomic.Bool
	startOnce  sync.Once
	finishOnce sync.Once
	done       chan struct{}
}

// NewProtocolController 创建控制器
func NewProtocolController(board Board, player AudioPlayer, cfg ProtocolConfig, logger zerolog.Logger) *ProtocolController {
	return &ProtocolController{
		board:  board,
		player: player,
		cfg:    cfg,
		logger: logger.With().Str("component", "protocol").Logger(),
		Sleep:  time.Sleep,
		done:   make(chan struct{}),
	}
}

// Start 在新 goroutine 中运行协议，重复调用无效
func (c *ProtocolController) Start() {
	c.startOnce.Do(func() {
		go c.Run()
	})
}

// Done 协议完成 (成功或中止) 后关闭
func (c *ProtocolController) Done() <-chan struct{} {
	return c.done
}

// Run 同步执行整个协议序列，只能运行一次
func (c *ProtocolController) Run() (out Outcome) {
	if !c.ran.CompareAndSwap(false, true) {
		return Outcome{Err: fmt.Errorf("protocol already ran")}
	}
	defer c.finish(&out)

	c.logger.Info().Int("num_stimuli", c.cfg.NumStimuli).Msg("protocol started")
	if err := c.mark(&out, MarkerExperimentStart, 0); err != nil {
		out.Err = err
		return out
	}
	c.Sleep(c.cfg.InterPhaseDelay)

	for _, ph := range Phases(c.cfg) {
		var err error
		switch ph.Kind {
		case PhaseRelax:
			err = c.relax(&out, ph)
		case PhaseStimulus:
			err = c.stimulus(&out, ph)
		}
		if err != nil {
			out.Err = err
			return out
		}
	}
	return out
}

func (c *ProtocolController) relax(out *Outcome, ph Phase) error {
	text := "Relax"
	if ph.Index == 0 {
		text = "Relax with eyes closed"
	}
	c.emit(StatusEvent{Kind: StatusRelax, Text: text, Duration: ph.Duration, Index: ph.Index})
	if err := c.mark(out, MarkerRelax, ph.Index); err != nil {
		return err
	}
	c.Sleep(ph.Duration)
	c.Sleep(c.cfg.InterPhaseDelay)
	return nil
}

func (c *ProtocolController) stimulus(out *Outcome, ph Phase) error {
	if _, err := os.Stat(ph.Asset); err != nil {
		return &MissingAssetError{Index: ph.Index, Path: ph.Asset}
	}

	c.emit(StatusEvent{Kind: StatusStimulus, Text: fmt.Sprintf("Stimulus %d", ph.Index), Duration: ph.Duration, Index: ph.Index})
	if err := c.mark(out, MarkerStimulus, ph.Index); err != nil {
		return err
	}
	out.Stimuli++

	// 播放失败不中止实验，等待时长以计时为准
	log := c.logger.With().Int("phase", ph.Index).Str("path", ph.Asset).Logger()
	if err := c.player.Load(ph.Asset); err != nil {
		log.Error().Err(err).Msg("load stimulus")
	} else if err := c.player.Play(); err != nil {
		log.Error().Err(err).Msg("play stimulus")
	}

	c.Sleep(ph.Duration)
	if err := c.player.Stop(); err != nil {
		log.Warn().Err(err).Msg("stop stimulus")
	}
	c.Sleep(c.cfg.InterPhaseDelay)
	return nil
}

func (c *ProtocolController) mark(out *Outcome, m Marker, phase int) error {
	if err := c.board.InsertMarker(m); err != nil {
		return fmt.Errorf("phase %d: %w", phase, err)
	}
	out.Markers = append(out.Markers, m)
	c.logger.Debug().Int("marker", int(m)).Str("name", m.String()).Int("phase", phase).Msg("marker inserted")
	return nil
}

func (c *ProtocolController) emit(ev StatusEvent) {
	c.logger.Info().Str("status", ev.Kind.String()).Str("text", ev.Text).Int("phase", ev.Index).Dur("duration", ev.Duration).Msg("status")
	if c.OnStatus != nil {
		c.OnStatus(ev)
	}
}

// finish 无论成功、出错还是 panic，都发出结束状态并通知完成
func (c *ProtocolController) finish(out *Outcome) {
	if r := recover(); r != nil {
		out.Err = fmt.Errorf("protocol panic: %v", r)
	}
	c.finishOnce.Do(func() {
		defer close(c.done)
		if err := c.player.Stop(); err != nil {
			c.logger.Warn().Err(err).Msg("stop player")
		}
		if out.Err != nil {
			c.logger.Error().Err(out.Err).Int("stimuli", out.Stimuli).Ints("markers", markerInts(out.Markers)).Msg("protocol aborted")
		} else {
			c.logger.Info().Int("stimuli", out.Stimuli).Msg("protocol finished")
		}
		c.emitComplete()
		if c.OnComplete != nil {
			c.OnComplete(*out)
		}
	})
}

// emitComplete 结束提示本身不能阻止完成通知
func (c *ProtocolController) emitComplete() {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("status observer")
		}
	}()
	c.emit(StatusEvent{Kind: StatusComplete, Text: "Experiment Complete", Duration: c.cfg.CompleteDuration})
}

func markerInts(ms []Marker) []int {
	out := make([]int, len(ms))
	for i, m := range ms {
		out[i] = int(m)
	}
	return out
}
