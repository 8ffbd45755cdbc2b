package binaural

import "github.com/rs/zerolog"

// Board 采集设备驱动的调用约定
// 驱动拥有采样缓冲区；InsertMarker 与 ReadWindow / ReadAll 之间的原子性由驱动保证
type Board interface {
	Prepare() error // 打开会话
	Start() error   // 开始推流
	Stop() error    // 停止推流
	Release() error // 释放会话
	InsertMarker(m Marker) error
	ReadWindow(n int) [][]float64 // 最近 n 个采样点
	ReadAll() [][]float64         // 会话开始以来的全部采样点
	Layout() Layout
}

// NewBoard 按配置创建设备
func NewBoard(cfg BoardConfig, logger zerolog.Logger) Board {
	if cfg.Kind == BoardSynthetic {
		return NewSyntheticBoard(cfg, 1)
	}
	return NewSerialBoard(cfg, logger)
}
