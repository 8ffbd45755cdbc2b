package binaural

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"binaural/Filters"
	"github.com/rs/zerolog"
)

// Experiment 管理一次实验会话的全部组件和生命周期
type Experiment struct {
	cfg     *Config
	subject string
	logger  zerolog.Logger

	// 组件
	Board      Board
	Player     AudioPlayer
	View       *AcquisitionView
	Controller *ProtocolController
	Finalizer  *SessionFinalizer

	startOnce sync.Once
	closeOnce sync.Once
	closeErr  error
}

// NewExperiment 组装各组件，此时不打开设备
func NewExperiment(cfg *Config, subject string, board Board, player AudioPlayer, logger zerolog.Logger) *Experiment {
	logger = logger.With().Str("subject", subject).Logger()
	cond := Filters.NewConditioner(board.Layout().Channels())

	finalizer := NewSessionFinalizer(board, cond, cfg.Export, cfg.Protocol.InterPhaseDelay, logger)
	finalizer.RecordingID = cfg.Board.MACAddress

	return &Experiment{
		cfg:        cfg,
		subject:    subject,
		logger:     logger,
		Board:      board,
		Player:     player,
		View:       NewAcquisitionView(board, cond, cfg.View, logger),
		Controller: NewProtocolController(board, player, cfg.Protocol, logger),
		Finalizer:  finalizer,
	}
}

// Subject 受试者编号
func (e *Experiment) Subject() string { return e.subject }

// Config 当前配置
func (e *Experiment) Config() *Config { return e.cfg }

// Open 打开设备会话并开始推流；受试者编号不合法时不打开设备
func (e *Experiment) Open() error {
	if err := ValidateSubject(e.subject); err != nil {
		return err
	}
	if err := e.Board.Prepare(); err != nil {
		return &AcquisitionSessionError{Op: "prepare", Err: err}
	}
	if err := e.Board.Start(); err != nil {
		if rerr := e.Board.Release(); rerr != nil {
			e.logger.Warn().Err(rerr).Msg("release after failed start")
		}
		return &AcquisitionSessionError{Op: "start", Err: err}
	}
	layout := e.Board.Layout()
	e.logger.Info().Int("rate", layout.SampleRate).Strs("channels", layout.EEGNames).Msg("acquisition started")
	return nil
}

// StartProtocol 停止实时显示并启动协议，只有第一次调用有效
func (e *Experiment) StartProtocol() bool {
	started := false
	e.startOnce.Do(func() {
		started = true
		e.View.Halt()
		e.Controller.Start()
	})
	if !started {
		e.logger.Debug().Msg("start trigger ignored, protocol already running")
	}
	return started
}

// Finalize 导出会话数据
func (e *Experiment) Finalize() (Report, error) {
	return e.Finalizer.Finalize(e.subject)
}

// Close 释放设备和音频资源，只执行一次
func (e *Experiment) Close() error {
	e.closeOnce.Do(func() {
		var errs []error
		if err := e.Player.Stop(); err != nil {
			errs = append(errs, err)
		}
		if c, ok := e.Player.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := e.Board.Release(); err != nil {
			errs = append(errs, err)
		}
		e.closeErr = errors.Join(errs...)
		if e.closeErr != nil {
			e.logger.Error().Err(e.closeErr).Msg("release resources")
		} else {
			e.logger.Info().Msg("resources released")
		}
	})
	return e.closeErr
}

// RunHeadless 无界面运行：等到有足够数据后自动开始，协议结束后导出
// ctx 只能取消开始前的等待，协议开始后会一直运行到结束
func (e *Experiment) RunHeadless(ctx context.Context) (Report, Outcome, error) {
	ticker := time.NewTicker(e.cfg.View.UpdateInterval)
	defer ticker.Stop()

	lastLog := time.Time{}
	for {
		frame, ok := e.View.Tick()
		if ok {
			e.logFrame(frame)
			break
		}
		if now := time.Now(); now.Sub(lastLog) >= time.Second {
			lastLog = now
			e.logger.Info().Msg("waiting for signal")
		}
		select {
		case <-ctx.Done():
			return Report{}, Outcome{}, ctx.Err()
		case <-ticker.C:
		}
	}

	outcomes := make(chan Outcome, 1)
	e.Controller.OnComplete = func(o Outcome) { outcomes <- o }
	e.StartProtocol()
	<-e.Controller.Done()
	outcome := <-outcomes

	report, err := e.Finalize()
	if outcome.Err != nil {
		err = errors.Join(outcome.Err, err)
	}
	return report, outcome, err
}

func (e *Experiment) logFrame(frame Frame) {
	ev := e.logger.Info().Int("samples", frame.Samples).Str("mains", frame.Mains.String())
	for _, tr := range frame.Traces {
		ev = ev.Str("quality_"+tr.Name, tr.Level.String()).Float64("score_"+tr.Name, tr.Quality)
	}
	ev.Msg("signal quality")
}
