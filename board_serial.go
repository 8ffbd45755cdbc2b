package binaural

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/tarm/serial"
)

// 头戴设备串口数据帧: [A0] [seq] [ch1 int24 BE] ... [chN int24 BE] [C0]
const (
	FRAME_START = 0xA0
	FRAME_END   = 0xC0

	CMD_STREAM_START = 'b'
	CMD_STREAM_STOP  = 's'
)

// SerialPort 定义串口操作接口，方便测试 Mock
type SerialPort interface {
	io.ReadWriteCloser
}

// SerialBoard 通过蓝牙 RFCOMM 串口读取头戴设备的原始数据流
type SerialBoard struct {
	cfg    BoardConfig
	layout Layout
	buf    *SampleBuffer
	logger zerolog.Logger

	// 可替换，方便测试
	openPort func(cfg *serial.Config) (SerialPort, error)
	now      func() time.Time

	conn    SerialPort
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool

	// 统计
	mu        sync.Mutex
	badFrames int
	lostSeq   int
}

// NewSerialBoard 创建串口设备，此时不打开串口
func NewSerialBoard(cfg BoardConfig, logger zerolog.Logger) *SerialBoard {
	layout := NewLayout(cfg.SampleRate, cfg.ChannelNames)
	return &SerialBoard{
		cfg:    cfg,
		layout: layout,
		buf:    NewSampleBuffer(layout),
		logger: logger.With().Str("board", "serial").Str("port", cfg.Port).Str("mac", cfg.MACAddress).Logger(),
		openPort: func(c *serial.Config) (SerialPort, error) {
			return serial.OpenPort(c)
		},
		now: time.Now,
	}
}

// Prepare 打开串口连接
func (b *SerialBoard) Prepare() error {
	if b.conn != nil {
		return nil
	}
	config := &serial.Config{
		Name:        b.cfg.Port,
		Baud:        b.cfg.BaudRate,
		ReadTimeout: b.cfg.ReadTimeout,
	}
	s, err := b.openPort(config)
	if err != nil {
		return fmt.Errorf("open %s: %w", b.cfg.Port, err)
	}
	b.conn = s
	b.logger.Info().Int("baud", b.cfg.BaudRate).Msg("serial port opened")
	return nil
}

// Start 发送开始推流指令并启动读取 goroutine
func (b *SerialBoard) Start() error {
	if b.conn == nil {
		return fmt.Errorf("connection not open")
	}
	if b.started.Load() {
		return nil
	}
	if _, err := b.conn.Write([]byte{CMD_STREAM_START}); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.started.Store(true)
	b.wg.Add(1)
	go b.readLoop(ctx)
	return nil
}

// Stop 停止推流，等待读取 goroutine 退出 (最多一个 ReadTimeout)
func (b *SerialBoard) Stop() error {
	if !b.started.CompareAndSwap(true, false) {
		return nil
	}
	b.cancel()
	b.wg.Wait()

	_, err := b.conn.Write([]byte{CMD_STREAM_STOP})
	b.mu.Lock()
	b.logger.Info().Int("samples", b.buf.Len()).Int("bad_frames", b.badFrames).Int("lost_frames", b.lostSeq).Msg("stream stopped")
	b.mu.Unlock()
	return err
}

// Release 关闭串口连接
func (b *SerialBoard) Release() error {
	if err := b.Stop(); err != nil {
		b.logger.Warn().Err(err).Msg("stop before release")
	}
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}

func (b *SerialBoard) InsertMarker(m Marker) error {
	if !b.started.Load() {
		return fmt.Errorf("insert marker %d: stream not started", m)
	}
	b.buf.InsertMarker(m)
	return nil
}

func (b *SerialBoard) ReadWindow(n int) [][]float64 { return b.buf.Window(n) }
func (b *SerialBoard) ReadAll() [][]float64         { return b.buf.All() }
func (b *SerialBoard) Layout() Layout               { return b.layout }

// readLoop 持续解析数据帧，直到收到停止信号
func (b *SerialBoard) readLoop(ctx context.Context) {
	defer b.wg.Done()

	reader := bufio.NewReader(b.conn)
	frame := make([]byte, 1+3*len(b.layout.EEGChannels)+1)
	eeg := make([]float64, len(b.layout.EEGChannels))
	lastSeq := -1

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// 1. 同步到帧头
		start, err := reader.ReadByte()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				b.logger.Error().Err(err).Msg("serial read")
				time.Sleep(b.cfg.ReadTimeout)
			}
			// 超时没有数据
			continue
		}
		if start != FRAME_START {
			continue
		}

		// 2. 读取剩余部分并检查帧尾
		if _, err := io.ReadFull(reader, frame); err != nil {
			b.countBad()
			continue
		}
		if frame[len(frame)-1] != FRAME_END {
			b.countBad()
			continue
		}

		// 3. 检查序号是否连续
		seq := int(frame[0])
		if lastSeq >= 0 && seq != (lastSeq+1)%256 {
			lost := (seq - lastSeq - 1 + 256) % 256
			b.mu.Lock()
			b.lostSeq += lost
			b.mu.Unlock()
			b.logger.Warn().Int("seq", seq).Int("last_seq", lastSeq).Int("lost", lost).Msg("frames lost")
		}
		lastSeq = seq

		// 4. 24 位补码 -> uV
		for i := range eeg {
			eeg[i] = float64(decodeInt24(frame[1+3*i:])) * b.cfg.ScaleMicrovolts
		}
		ts := float64(b.now().UnixNano()) / 1e9
		b.buf.Append(eeg, ts)
	}
}

func (b *SerialBoard) countBad() {
	b.mu.Lock()
	b.badFrames++
	n := b.badFrames
	b.mu.Unlock()
	b.logger.Debug().Int("bad_frames", n).Msg("dropped malformed frame")
}

// decodeInt24 大端 24 位有符号整数
func decodeInt24(p []byte) int32 {
	v := int32(p[0])<<16 | int32(p[1])<<8 | int32(p[2])
	if v&0x800000 != 0 {
		v -= 1 << 24
	}
	return v
}

// encodeInt24 decodeInt24 的逆运算，用于测试和模拟设备
func encodeInt24(v int32) [3]byte {
	u := uint32(v) & 0xFFFFFF
	return [3]byte{byte(u >> 16), byte(u >> 8), byte(u)}
}
