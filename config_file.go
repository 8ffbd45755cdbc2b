package binaural

import (
	"fmt"
	"strings"
	"time"

	"binaural/Filters"
	"github.com/BurntSushi/toml"
)

// experiment.toml 的键映射，时长统一用秒 (可以是小数)
type fileConfig struct {
	Protocol struct {
		RelaxDuration    float64 `toml:"relax_duration"`
		StimulusDuration float64 `toml:"stimulus_duration"`
		PauseDuration    float64 `toml:"pause_duration"`
		NumStimuli       int     `toml:"num_stimuli"`
		InterPhaseDelay  float64 `toml:"inter_phase_delay"`
		CompleteDuration float64 `toml:"complete_duration"`
		AssetDirectory   string  `toml:"asset_directory"`
		AssetPattern     string  `toml:"asset_pattern"`
	} `toml:"protocol"`
	View struct {
		UpdateIntervalMs  int       `toml:"update_interval_ms"`
		WindowSeconds     int       `toml:"window_seconds"`
		MinSeconds        int       `toml:"min_seconds"`
		Bandpass          []float64 `toml:"bandpass"`
		Cut               int       `toml:"cut"`
		Reference         string    `toml:"reference"`
		GoodThreshold     float64   `toml:"good_threshold"`
		MarginalThreshold float64   `toml:"marginal_threshold"`
	} `toml:"view"`
	Export struct {
		OutputDir         string    `toml:"output_dir"`
		Bandpass          []float64 `toml:"bandpass"`
		Cut               int       `toml:"cut"`
		Reference         string    `toml:"reference"`
		MicrovoltsPerUnit float64   `toml:"microvolts_per_unit"`
		RecordSeconds     int       `toml:"record_seconds"`
	} `toml:"export"`
	Board struct {
		Kind            string   `toml:"kind"`
		Port            string   `toml:"port"`
		MACAddress      string   `toml:"mac_address"`
		BaudRate        int      `toml:"baud_rate"`
		SampleRate      int      `toml:"sample_rate"`
		ChannelNames    []string `toml:"channel_names"`
		ScaleMicrovolts float64  `toml:"scale_microvolts"`
		ReadTimeoutMs   int      `toml:"read_timeout_ms"`
	} `toml:"board"`
}

// LoadConfig 读取 TOML 配置，只覆盖文件中出现的键，其余保持默认值
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("load config: unknown keys %v", undecoded)
	}

	seconds := func(v float64) time.Duration { return time.Duration(v * float64(time.Second)) }

	// --- [protocol] ---
	p := &cfg.Protocol
	if meta.IsDefined("protocol", "relax_duration") {
		p.RelaxDuration = seconds(raw.Protocol.RelaxDuration)
	}
	if meta.IsDefined("protocol", "stimulus_duration") {
		p.StimulusDuration = seconds(raw.Protocol.StimulusDuration)
	}
	if meta.IsDefined("protocol", "pause_duration") {
		p.PauseDuration = seconds(raw.Protocol.PauseDuration)
	}
	if meta.IsDefined("protocol", "num_stimuli") {
		p.NumStimuli = raw.Protocol.NumStimuli
	}
	if meta.IsDefined("protocol", "inter_phase_delay") {
		p.InterPhaseDelay = seconds(raw.Protocol.InterPhaseDelay)
	}
	if meta.IsDefined("protocol", "complete_duration") {
		p.CompleteDuration = seconds(raw.Protocol.CompleteDuration)
	}
	if meta.IsDefined("protocol", "asset_directory") {
		p.AssetDirectory = strings.TrimSpace(raw.Protocol.AssetDirectory)
	}
	if meta.IsDefined("protocol", "asset_pattern") {
		p.AssetPattern = strings.TrimSpace(raw.Protocol.AssetPattern)
	}

	// --- [view] ---
	v := &cfg.View
	if meta.IsDefined("view", "update_interval_ms") {
		v.UpdateInterval = time.Duration(raw.View.UpdateIntervalMs) * time.Millisecond
	}
	if meta.IsDefined("view", "window_seconds") {
		v.WindowSeconds = raw.View.WindowSeconds
	}
	if meta.IsDefined("view", "min_seconds") {
		v.MinSeconds = raw.View.MinSeconds
	}
	if meta.IsDefined("view", "bandpass") {
		if v.Bandpass, err = parseBand("view.bandpass", raw.View.Bandpass); err != nil {
			return nil, err
		}
	}
	if meta.IsDefined("view", "cut") {
		v.Cut = raw.View.Cut
	}
	if meta.IsDefined("view", "reference") {
		v.Reference = Filters.ReferenceMode(strings.ToLower(strings.TrimSpace(raw.View.Reference)))
	}
	if meta.IsDefined("view", "good_threshold") {
		v.GoodThreshold = raw.View.GoodThreshold
	}
	if meta.IsDefined("view", "marginal_threshold") {
		v.MarginalThreshold = raw.View.MarginalThreshold
	}

	// --- [export] ---
	e := &cfg.Export
	if meta.IsDefined("export", "output_dir") {
		e.OutputDir = strings.TrimSpace(raw.Export.OutputDir)
	}
	if meta.IsDefined("export", "bandpass") {
		if e.Bandpass, err = parseBand("export.bandpass", raw.Export.Bandpass); err != nil {
			return nil, err
		}
	}
	if meta.IsDefined("export", "cut") {
		e.Cut = raw.Export.Cut
	}
	if meta.IsDefined("export", "reference") {
		e.Reference = Filters.ReferenceMode(strings.ToLower(strings.TrimSpace(raw.Export.Reference)))
	}
	if meta.IsDefined("export", "microvolts_per_unit") {
		e.MicrovoltsPerUnit = raw.Export.MicrovoltsPerUnit
	}
	if meta.IsDefined("export", "record_seconds") {
		e.RecordSeconds = raw.Export.RecordSeconds
	}

	// --- [board] ---
	b := &cfg.Board
	if meta.IsDefined("board", "kind") {
		b.Kind = strings.ToLower(strings.TrimSpace(raw.Board.Kind))
	}
	if meta.IsDefined("board", "port") {
		b.Port = strings.TrimSpace(raw.Board.Port)
	}
	if meta.IsDefined("board", "mac_address") {
		b.MACAddress = strings.TrimSpace(raw.Board.MACAddress)
	}
	if meta.IsDefined("board", "baud_rate") {
		b.BaudRate = raw.Board.BaudRate
	}
	if meta.IsDefined("board", "sample_rate") {
		b.SampleRate = raw.Board.SampleRate
	}
	if meta.IsDefined("board", "channel_names") {
		b.ChannelNames = raw.Board.ChannelNames
	}
	if meta.IsDefined("board", "scale_microvolts") {
		b.ScaleMicrovolts = raw.Board.ScaleMicrovolts
	}
	if meta.IsDefined("board", "read_timeout_ms") {
		b.ReadTimeout = time.Duration(raw.Board.ReadTimeoutMs) * time.Millisecond
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config %q: %w", path, err)
	}
	return cfg, nil
}

func parseBand(key string, v []float64) (Filters.Band, error) {
	if len(v) != 2 {
		return Filters.Band{}, fmt.Errorf("load config: %s must be [low, high], got %v", key, v)
	}
	return Filters.Band{Low: v[0], High: v[1]}, nil
}
