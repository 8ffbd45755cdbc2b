package Filters

import "fmt"

// 工频候选及陷波半宽
const (
	Mains50Hz      = 50.0
	Mains60Hz      = 60.0
	MainsHalfWidth = 2.0

	// MinMainsSeconds 估计工频至少需要的数据长度 (秒)
	MinMainsSeconds = 3
)

// DetectMains 估计主导的工频干扰 (50Hz 或 60Hz)
// 对每个 EEG 通道去均值后分别用 Goertzel 计算两个候选频率的能量并累加，
// 返回能量更强者的带阻范围；能量相同时取 50Hz
func DetectMains(data [][]float64, ch Channels) (Band, error) {
	if err := ch.validate(); err != nil {
		return Band{}, err
	}
	rows := ch.rowsOf(data)
	if len(rows) == 0 {
		return Band{}, configErr("channels", "no EEG rows in buffer")
	}

	need := int(MinMainsSeconds * ch.SampleRate)
	var e50, e60 float64
	for _, r := range rows {
		row := data[r]
		if len(row) < need {
			return Band{}, fmt.Errorf("detect mains: %d samples, need %d: %w", len(row), need, ErrInsufficientData)
		}
		centered := removeMean(row)
		e50 += BlockMagnitude(centered, ch.SampleRate, Mains50Hz)
		e60 += BlockMagnitude(centered, ch.SampleRate, Mains60Hz)
	}

	freq := Mains50Hz
	if e60 > e50 {
		freq = Mains60Hz
	}
	return Band{Low: freq - MainsHalfWidth, High: freq + MainsHalfWidth}, nil
}

func removeMean(row []float64) []float64 {
	out := make([]float64, len(row))
	if len(row) == 0 {
		return out
	}
	var sum float64
	for _, v := range row {
		sum += v
	}
	mean := sum / float64(len(row))
	for i, v := range row {
		out[i] = v - mean
	}
	return out
}
