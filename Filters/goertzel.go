package Filters

import (
	"math"
)

// BlockMagnitude 用 Goertzel 算法计算一整块数据在 freq 处的幅度
// 返回值越大，表示该频率成分越强
func BlockMagnitude(samples []float64, sampleRate, freq float64) float64 {
	// coeff = 2 * cos(2 * PI * freq / sampleRate)
	coeff := 2.0 * math.Cos(2.0*math.Pi*freq/sampleRate)

	var q1, q2 float64
	for _, s := range samples {
		q1, q2 = coeff*q1-q2+s, q1
	}

	// magnitude^2 = q1^2 + q2^2 - q1*q2*coeff
	magnitudeSquared := q1*q1 + q2*q2 - q1*q2*coeff
	if magnitudeSquared < 0 {
		return 0
	}
	return math.Sqrt(magnitudeSquared)
}
