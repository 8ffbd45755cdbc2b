package Filters

// Conditioner 把一组通道描述绑定到各个处理函数上
// 除了 Channels 本身不持有任何状态，可以在多个 goroutine 中共享
type Conditioner struct {
	Channels Channels
}

// NewConditioner 创建条件处理器
func NewConditioner(ch Channels) *Conditioner {
	return &Conditioner{Channels: ch}
}

func (c *Conditioner) DetectMains(data [][]float64) (Band, error) {
	return DetectMains(data, c.Channels)
}

func (c *Conditioner) Quality(data [][]float64) []float64 {
	return Quality(data, c.Channels)
}

func (c *Conditioner) Reference(data [][]float64, mode ReferenceMode) ([][]float64, error) {
	return Reference(data, c.Channels, mode)
}

func (c *Conditioner) Filter(data [][]float64, spec FilterSpec) ([][]float64, error) {
	return SignalFiltering(data, c.Channels, spec)
}
