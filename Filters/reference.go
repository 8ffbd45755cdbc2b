package Filters

import "strings"

// ReferenceMode 重参考方式
type ReferenceMode string

const (
	ReferenceNone    ReferenceMode = "none"
	ReferenceMastoid ReferenceMode = "mastoid" // 减去乳突通道 (A1/A2) 的均值
	ReferenceAverage ReferenceMode = "average" // 共平均参考
)

// ParseReferenceMode 解析配置中的参考方式
func ParseReferenceMode(raw string) (ReferenceMode, error) {
	switch mode := ReferenceMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case ReferenceNone, ReferenceMastoid, ReferenceAverage:
		return mode, nil
	default:
		return "", configErr("reference mode", "unknown mode %q", raw)
	}
}

var mastoidNames = map[string]bool{"A1": true, "A2": true, "M1": true, "M2": true}

// Reference 对 EEG 通道做重参考，返回新的缓冲区 (通道数与采样数不变)
func Reference(data [][]float64, ch Channels, mode ReferenceMode) ([][]float64, error) {
	if err := ch.validate(); err != nil {
		return nil, err
	}

	var refRows []int
	switch mode {
	case ReferenceNone:
		return cloneRows(data), nil
	case ReferenceMastoid:
		for i, r := range ch.EEG {
			if i < len(ch.Names) && mastoidNames[strings.ToUpper(ch.Names[i])] && r >= 0 && r < len(data) {
				refRows = append(refRows, r)
			}
		}
		if len(refRows) == 0 {
			return nil, configErr("reference mode", "mastoid reference needs an A1/A2 channel in %v", ch.Names)
		}
	case ReferenceAverage:
		refRows = ch.rowsOf(data)
	default:
		return nil, configErr("reference mode", "unknown mode %q", mode)
	}

	out := cloneRows(data)
	rows := ch.rowsOf(data)
	if len(rows) == 0 {
		return out, nil
	}

	// 参考信号长度取参与计算的最短通道，防止越界
	n := len(data[refRows[0]])
	for _, r := range refRows {
		n = min(n, len(data[r]))
	}
	ref := make([]float64, n)
	for _, r := range refRows {
		for j := 0; j < n; j++ {
			ref[j] += data[r][j]
		}
	}
	for j := range ref {
		ref[j] /= float64(len(refRows))
	}

	for _, r := range rows {
		for j := 0; j < n && j < len(out[r]); j++ {
			out[r][j] -= ref[j]
		}
	}
	return out, nil
}
