package binaural

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// SyntheticBoard 生成模拟 EEG 数据的设备，用于没有头戴设备时的演示和测试
// 信号: 枕/中央区 10Hz alpha 波 + 50Hz 工频干扰 + 高斯噪声
type SyntheticBoard struct {
	cfg    BoardConfig
	layout Layout
	buf    *SampleBuffer

	// Manual 为 true 时不启动定时 goroutine，只能通过 Pump 推进数据
	Manual bool

	mu    sync.Mutex
	rng   *rand.Rand
	start time.Time
	n     int // 已生成的采样点数

	now     func() time.Time
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool

	prepared bool
}

const (
	syntheticAlphaUV = 20.0
	syntheticHumUV   = 5.0
	syntheticNoiseUV = 2.0
	syntheticTick    = 20 * time.Millisecond
)

// NewSyntheticBoard 使用固定随机种子，保证同一种子生成的数据相同
func NewSyntheticBoard(cfg BoardConfig, seed int64) *SyntheticBoard {
	layout := NewLayout(cfg.SampleRate, cfg.ChannelNames)
	return &SyntheticBoard{
		cfg:    cfg,
		layout: layout,
		buf:    NewSampleBuffer(layout),
		rng:    rand.New(rand.NewSource(seed)),
		now:    time.Now,
	}
}

func (b *SyntheticBoard) Prepare() error {
	b.prepared = true
	return nil
}

func (b *SyntheticBoard) Start() error {
	if !b.prepared {
		return fmt.Errorf("synthetic board: session not prepared")
	}
	if !b.started.CompareAndSwap(false, true) {
		return nil
	}
	b.mu.Lock()
	if b.start.IsZero() {
		b.start = b.now()
	}
	b.mu.Unlock()

	if b.Manual {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.wg.Add(1)
	go b.run(ctx)
	return nil
}

func (b *SyntheticBoard) Stop() error {
	if !b.started.CompareAndSwap(true, false) {
		return nil
	}
	if b.cancel != nil {
		b.cancel()
		b.wg.Wait()
		b.cancel = nil
	}
	return nil
}

func (b *SyntheticBoard) Release() error {
	err := b.Stop()
	b.prepared = false
	return err
}

func (b *SyntheticBoard) InsertMarker(m Marker) error {
	if !b.started.Load() {
		return fmt.Errorf("insert marker %d: stream not started", m)
	}
	b.buf.InsertMarker(m)
	return nil
}

func (b *SyntheticBoard) ReadWindow(n int) [][]float64 { return b.buf.Window(n) }
func (b *SyntheticBoard) ReadAll() [][]float64         { return b.buf.All() }
func (b *SyntheticBoard) Layout() Layout               { return b.layout }

// Pump 立即生成 n 个采样点
func (b *SyntheticBoard) Pump(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.start.IsZero() {
		b.start = b.now()
	}
	b.generate(n)
}

// run 按墙上时钟补齐应生成的采样点
func (b *SyntheticBoard) run(ctx context.Context) {
	defer b.wg.Done()
	ticker := time.NewTicker(syntheticTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			b.mu.Lock()
			due := int(t.Sub(b.start).Seconds() * float64(b.cfg.SampleRate))
			if due > b.n {
				b.generate(due - b.n)
			}
			b.mu.Unlock()
		}
	}
}

// generate 调用方持有 b.mu
func (b *SyntheticBoard) generate(n int) {
	rate := float64(b.cfg.SampleRate)
	base := float64(b.start.UnixNano()) / 1e9
	eeg := make([]float64, len(b.layout.EEGChannels))

	for k := 0; k < n; k++ {
		t := float64(b.n) / rate
		hum := syntheticHumUV * math.Sin(2*math.Pi*50*t)
		alpha := syntheticAlphaUV * math.Sin(2*math.Pi*10*t)
		for i, name := range b.layout.EEGNames {
			v := hum + syntheticNoiseUV*b.rng.NormFloat64()
			if !isMastoid(name) {
				v += alpha
			}
			eeg[i] = v
		}
		b.buf.Append(eeg, base+t)
		b.n++
	}
}

func isMastoid(name string) bool {
	switch strings.ToUpper(name) {
	case "A1", "A2", "M1", "M2":
		return true
	}
	return false
}
