package binaural

import (
	"fmt"
	"strings"
	"sync"
	"unsafe"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"
)

// AudioPlayer 刺激音频播放的调用约定
// Stop 可以重复调用，播放自然结束后调用也是安全的
type AudioPlayer interface {
	Load(path string) error
	Play() error
	Stop() error
}

// MalgoPlayer 使用 malgo 播放设备输出 mp3 / wav 音频
type MalgoPlayer struct {
	ctx        *malgo.AllocatedContext
	deviceName string
	logger     zerolog.Logger

	mu         sync.Mutex
	device     *malgo.Device
	samples    []float32 // 交错排列
	channels   int
	sampleRate int
	pos        int
	path       string
}

// NewMalgoPlayer 创建播放器；targetDeviceName 为空时使用系统默认输出设备
func NewMalgoPlayer(targetDeviceName string, logger zerolog.Logger) (*MalgoPlayer, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init malgo context: %w", err)
	}
	return &MalgoPlayer{
		ctx:        ctx,
		deviceName: targetDeviceName,
		logger:     logger.With().Str("component", "audio").Logger(),
	}, nil
}

// Load 解码整个音频文件 (mp3 / wav)，替换当前音频
func (p *MalgoPlayer) Load(path string) error {
	clip, err := DecodeAudio(path)
	if err != nil {
		return err
	}

	if err := p.Stop(); err != nil {
		p.logger.Warn().Err(err).Msg("stop before load")
	}
	p.mu.Lock()
	p.samples = clip.Samples
	p.channels = clipChannels
	p.sampleRate = clip.SampleRate
	p.pos = 0
	p.path = path
	p.mu.Unlock()

	p.logger.Debug().Str("path", path).Int("rate", clip.SampleRate).Int("channels", clip.SourceChannels).
		Float64("seconds", clip.Duration()).Msg("audio loaded")
	return nil
}

// Play 按音频文件的采样率打开立体声输出设备并开始播放
func (p *MalgoPlayer) Play() error {
	p.mu.Lock()
	if p.samples == nil {
		p.mu.Unlock()
		return fmt.Errorf("play: no audio loaded")
	}
	if p.device != nil {
		p.mu.Unlock()
		return nil
	}
	channels, rate, path := p.channels, p.sampleRate, p.path
	p.pos = 0
	p.mu.Unlock()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(rate)
	deviceConfig.Alsa.NoMMap = 1

	if p.deviceName != "" {
		infos, err := p.ctx.Devices(malgo.Playback)
		if err == nil {
			for _, info := range infos {
				if strings.Contains(strings.ToLower(info.Name()), strings.ToLower(p.deviceName)) {
					deviceConfig.Playback.DeviceID = info.ID.Pointer()
					p.logger.Info().Str("device", info.Name()).Msg("selected audio device")
					break
				}
			}
		}
	}

	device, err := malgo.InitDevice(p.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: p.onSendFrames})
	if err != nil {
		return fmt.Errorf("failed to init playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	p.mu.Lock()
	p.device = device
	p.mu.Unlock()
	p.logger.Info().Str("path", path).Uint32("rate", device.SampleRate()).Msg("playback started")
	return nil
}

// onSendFrames 音频线程回调：拷贝下一段采样，播放结束后输出静音
func (p *MalgoPlayer) onSendFrames(pOutputSamples, _ []byte, framecount uint32) {
	if len(pOutputSamples) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	out := unsafe.Slice((*float32)(unsafe.Pointer(&pOutputSamples[0])), int(framecount)*p.channels)
	n := copy(out, p.samples[p.pos:])
	p.pos += n
	clear(out[n:])
}

// Finished 当前音频是否已经全部输出
func (p *MalgoPlayer) Finished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos >= len(p.samples)
}

// Stop 停止播放并释放输出设备
func (p *MalgoPlayer) Stop() error {
	p.mu.Lock()
	device, path := p.device, p.path
	p.device = nil
	p.mu.Unlock()
	if device == nil {
		return nil
	}

	// 回调里会拿 p.mu，Uninit 之前不能持有锁
	err := device.Stop()
	device.Uninit()
	p.logger.Debug().Str("path", path).Msg("playback stopped")
	return err
}

// Close 停止播放并释放 malgo 上下文
func (p *MalgoPlayer) Close() error {
	err := p.Stop()
	if p.ctx != nil {
		_ = p.ctx.Uninit()
		p.ctx.Free()
		p.ctx = nil
	}
	return err
}

// SilentPlayer 没有可用音频设备时使用，只检查文件能否解析
type SilentPlayer struct{}

func (SilentPlayer) Load(path string) error {
	_, err := DecodeAudio(path)
	return err
}

func (SilentPlayer) Play() error { return nil }
func (SilentPlayer) Stop() error { return nil }
