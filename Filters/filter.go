package Filters

// FilterOrder 带通/带阻滤波器的阶数
const FilterOrder = 4

// FilterSpec 描述一次滤波的参数
type FilterSpec struct {
	// Cut 两端各镜像延拓的采样数，用于吸收滤波器的建立过程
	// 行长度不足时取 n-1
	Cut      int
	Bandpass Band // 带通范围，空频带表示不做带通
	Bandstop Band // 带阻范围 (一般是工频)，空频带表示不做带阻
}

// Validate 检查参数，非法时返回 *ConfigurationError
func (s FilterSpec) Validate(sampleRate float64) error {
	if s.Cut < 0 {
		return configErr("filter cut", "%d must be >= 0", s.Cut)
	}
	if !s.Bandpass.IsZero() {
		if err := s.Bandpass.validate("bandpass range", sampleRate); err != nil {
			return err
		}
	}
	if !s.Bandstop.IsZero() {
		if err := s.Bandstop.validate("bandstop range", sampleRate); err != nil {
			return err
		}
	}
	return nil
}

// SignalFiltering 对每个 EEG 通道做零相位 (前向 + 反向) 带通/带阻滤波
// 返回新的缓冲区，形状与输入一致；每次调用都使用全新的滤波器状态，
// 因此相同输入得到逐位相同的输出
func SignalFiltering(data [][]float64, ch Channels, spec FilterSpec) ([][]float64, error) {
	if err := ch.validate(); err != nil {
		return nil, err
	}
	if err := spec.Validate(ch.SampleRate); err != nil {
		return nil, err
	}

	out := cloneRows(data)
	for _, r := range ch.rowsOf(data) {
		if len(out[r]) == 0 {
			continue
		}
		out[r] = filtfilt(out[r], spec, ch.SampleRate)
	}
	return out, nil
}

func buildFilter(spec FilterSpec, sampleRate float64) *ButterworthFilter {
	var stages []*ButterworthFilter
	if !spec.Bandpass.IsZero() {
		stages = append(stages,
			NewButterworthHighpass(FilterOrder, sampleRate, spec.Bandpass.Low),
			NewButterworthLowpass(FilterOrder, sampleRate, spec.Bandpass.High),
		)
	}
	if !spec.Bandstop.IsZero() {
		stages = append(stages, NewBandstop(FilterOrder, sampleRate, spec.Bandstop))
	}
	return Chain(stages...)
}

// filtfilt 奇对称延拓 -> 前向滤波 -> 反向滤波 -> 去掉延拓部分
func filtfilt(row []float64, spec FilterSpec, sampleRate float64) []float64 {
	n := len(row)
	pad := min(spec.Cut, n-1)

	// 1. 奇对称延拓: 2*x[0] - x[pad..1], x, 2*x[n-1] - x[n-2..n-1-pad]
	ext := make([]float64, 0, n+2*pad)
	for i := pad; i >= 1; i-- {
		ext = append(ext, 2*row[0]-row[i])
	}
	ext = append(ext, row...)
	for i := n - 2; i >= n-1-pad; i-- {
		ext = append(ext, 2*row[n-1]-row[i])
	}

	// 2. 前向
	f := buildFilter(spec, sampleRate)
	for i, v := range ext {
		ext[i] = f.Process(v)
	}

	// 3. 反向
	f.Reset()
	for i := len(ext) - 1; i >= 0; i-- {
		ext[i] = f.Process(ext[i])
	}

	out := make([]float64, n)
	copy(out, ext[pad:pad+n])
	return out
}
