package binaural

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"binaural/Filters"
)

// Config 结构体用于集中管理实验的所有可调参数
type Config struct {
	Protocol ProtocolConfig
	View     ViewConfig
	Export   ExportConfig
	Board    BoardConfig
}

// ProtocolConfig 实验流程 (静息 / 刺激交替) 的时间参数
type ProtocolConfig struct {
	RelaxDuration    time.Duration // 开始时闭眼静息的时长
	StimulusDuration time.Duration // 每段刺激音频的播放时长
	PauseDuration    time.Duration // 两段刺激之间的静息时长
	NumStimuli       int           // 刺激段数
	InterPhaseDelay  time.Duration // 状态切换之间的固定间隔 (一般不需要改)
	CompleteDuration time.Duration // "实验结束" 提示的显示时长
	AssetDirectory   string        // 刺激音频目录
	AssetPattern     string        // 文件名格式，%d 为刺激序号 (从 1 开始)
}

// ViewConfig 实时波形显示参数
type ViewConfig struct {
	UpdateInterval    time.Duration // 刷新周期
	WindowSeconds     int           // 显示窗口长度 (秒)
	MinSeconds        int           // 少于该长度 (秒) 的数据不做处理
	Bandpass          Filters.Band
	Cut               int
	Reference         Filters.ReferenceMode
	GoodThreshold     float64 // 质量 >= 该值显示为良好
	MarginalThreshold float64 // 质量 >= 该值显示为一般，否则为差
}

// ExportConfig 实验结束后离线导出的参数
type ExportConfig struct {
	OutputDir         string
	Bandpass          Filters.Band // 比实时显示更宽的带通，便于离线分析
	Cut               int
	Reference         Filters.ReferenceMode
	MicrovoltsPerUnit float64 // 设备原始单位 (uV) 到导出单位 (V) 的换算
	RecordSeconds     int     // EDF 每个数据记录的时长
}

// BoardConfig 采集设备参数
type BoardConfig struct {
	Kind            string // serial / synthetic
	Port            string // 串口 (蓝牙 RFCOMM) 设备
	MACAddress      string
	BaudRate        int
	SampleRate      int
	ChannelNames    []string
	ScaleMicrovolts float64 // 每个 ADC 计数对应的 uV
	ReadTimeout     time.Duration
}

const (
	BoardSerial    = "serial"
	BoardSynthetic = "synthetic"
)

// DefaultConfig 返回一个包含默认实验流程的配置
func DefaultConfig() *Config {
	cfg := &Config{}

	// --- 实验流程 ---
	cfg.Protocol.RelaxDuration = 30 * time.Second
	cfg.Protocol.StimulusDuration = 120 * time.Second
	cfg.Protocol.PauseDuration = 30 * time.Second
	cfg.Protocol.NumStimuli = 5
	cfg.Protocol.InterPhaseDelay = 500 * time.Millisecond
	cfg.Protocol.CompleteDuration = 5 * time.Second
	cfg.Protocol.AssetDirectory = "./songs"
	cfg.Protocol.AssetPattern = "song%03d.mp3"

	// --- 实时显示 ---
	cfg.View.UpdateInterval = 50 * time.Millisecond
	cfg.View.WindowSeconds = 10
	cfg.View.MinSeconds = 3
	cfg.View.Bandpass = Filters.Band{Low: 3, High: 40}
	cfg.View.Cut = 250
	cfg.View.Reference = Filters.ReferenceMastoid
	cfg.View.GoodThreshold = 99
	cfg.View.MarginalThreshold = 95

	// --- 导出 ---
	cfg.Export.OutputDir = "."
	cfg.Export.Bandpass = Filters.Band{Low: 0.1, High: 45}
	cfg.Export.Cut = 250
	cfg.Export.Reference = Filters.ReferenceMastoid
	cfg.Export.MicrovoltsPerUnit = 1e6 // 设备数据是 uV，EDF 中存 V
	cfg.Export.RecordSeconds = 1

	// --- 设备 (Enophone: 4 通道 250Hz) ---
	cfg.Board.Kind = BoardSerial
	cfg.Board.Port = "/dev/rfcomm0"
	cfg.Board.MACAddress = "F4:0E:11:75:94:24"
	cfg.Board.BaudRate = 115200
	cfg.Board.SampleRate = 250
	cfg.Board.ChannelNames = []string{"A2", "A1", "C4", "C3"}
	cfg.Board.ScaleMicrovolts = 4.5 / 24 / float64(1<<23-1) * 1e6
	cfg.Board.ReadTimeout = 500 * time.Millisecond

	return cfg
}

// AssetPath 返回第 i 个刺激的文件路径
func (p ProtocolConfig) AssetPath(i int) string {
	return filepath.Join(p.AssetDirectory, fmt.Sprintf(p.AssetPattern, i))
}

// Validate 检查配置是否可用
func (c *Config) Validate() error {
	p := c.Protocol
	for name, d := range map[string]time.Duration{
		"relax_duration":    p.RelaxDuration,
		"stimulus_duration": p.StimulusDuration,
		"pause_duration":    p.PauseDuration,
		"inter_phase_delay": p.InterPhaseDelay,
		"complete_duration": p.CompleteDuration,
	} {
		if d < 0 {
			return fmt.Errorf("config: %s must be >= 0, got %s", name, d)
		}
	}
	if p.NumStimuli < 0 {
		return fmt.Errorf("config: num_stimuli must be >= 0, got %d", p.NumStimuli)
	}
	if strings.Contains(fmt.Sprintf(p.AssetPattern, 1), "%!") {
		return fmt.Errorf("config: asset_pattern %q must contain one integer verb", p.AssetPattern)
	}

	b := c.Board
	if b.Kind != BoardSerial && b.Kind != BoardSynthetic {
		return fmt.Errorf("config: unknown board kind %q", b.Kind)
	}
	if b.SampleRate <= 0 {
		return fmt.Errorf("config: sample_rate must be > 0, got %d", b.SampleRate)
	}
	if len(b.ChannelNames) == 0 {
		return fmt.Errorf("config: channel_names must not be empty")
	}
	// 超时为 0 时串口读会一直阻塞，Stop 等不到读协程退出
	if b.Kind == BoardSerial && b.ReadTimeout <= 0 {
		return fmt.Errorf("config: read_timeout must be > 0 for the serial board, got %s", b.ReadTimeout)
	}
	rate := float64(b.SampleRate)

	v := c.View
	if v.UpdateInterval <= 0 {
		return fmt.Errorf("config: update_interval must be > 0")
	}
	if v.MinSeconds <= 0 || v.WindowSeconds < v.MinSeconds {
		return fmt.Errorf("config: need 0 < min_seconds (%d) <= window_seconds (%d)", v.MinSeconds, v.WindowSeconds)
	}
	if err := (Filters.FilterSpec{Cut: v.Cut, Bandpass: v.Bandpass}).Validate(rate); err != nil {
		return fmt.Errorf("config: view: %w", err)
	}
	if _, err := Filters.ParseReferenceMode(string(v.Reference)); err != nil {
		return fmt.Errorf("config: view: %w", err)
	}

	e := c.Export
	if err := (Filters.FilterSpec{Cut: e.Cut, Bandpass: e.Bandpass}).Validate(rate); err != nil {
		return fmt.Errorf("config: export: %w", err)
	}
	if _, err := Filters.ParseReferenceMode(string(e.Reference)); err != nil {
		return fmt.Errorf("config: export: %w", err)
	}
	if e.MicrovoltsPerUnit <= 0 {
		return fmt.Errorf("config: microvolts_per_unit must be > 0")
	}
	if e.RecordSeconds <= 0 {
		return fmt.Errorf("config: record_seconds must be > 0")
	}
	// EDF 数据记录: 每个 EEG 通道加一个事件通道，每个采样 2 字节
	if size := 2 * (len(b.ChannelNames) + 1) * b.SampleRate * e.RecordSeconds; size > edfMaxRecordBytes {
		return fmt.Errorf("config: record_seconds %d gives %d byte EDF records, max %d", e.RecordSeconds, size, edfMaxRecordBytes)
	}
	return nil
}
