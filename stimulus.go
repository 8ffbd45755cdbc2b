package binaural

import (
	"fmt"
	"math"
)

// ToneSpec 双耳节拍刺激音: 左耳 Carrier Hz，右耳 Carrier+Beat Hz
type ToneSpec struct {
	Carrier    float64
	Beat       float64
	Seconds    float64
	SampleRate int
	Amplitude  float64 // 0 ~ 1
	Fade       float64 // 首尾淡入淡出 (秒)，避免爆音
}

// BinauralTone 生成交错排列的立体声采样
func BinauralTone(spec ToneSpec) []float32 {
	frames := int(spec.Seconds * float64(spec.SampleRate))
	fade := int(spec.Fade * float64(spec.SampleRate))
	out := make([]float32, 2*frames)
	rate := float64(spec.SampleRate)

	for i := 0; i < frames; i++ {
		t := float64(i) / rate
		gain := spec.Amplitude
		if fade > 0 {
			if i < fade {
				gain *= float64(i) / float64(fade)
			} else if i >= frames-fade {
				gain *= float64(frames-1-i) / float64(fade)
			}
		}
		out[2*i] = float32(gain * math.Sin(2*math.Pi*spec.Carrier*t))
		out[2*i+1] = float32(gain * math.Sin(2*math.Pi*(spec.Carrier+spec.Beat)*t))
	}
	return out
}

// WriteBinauralWav 把刺激音写成立体声 WAV 文件
func WriteBinauralWav(path string, spec ToneSpec) error {
	if spec.SampleRate <= 0 || spec.Seconds <= 0 {
		return fmt.Errorf("binaural tone: need positive rate and duration, got %d Hz %.2fs", spec.SampleRate, spec.Seconds)
	}
	if spec.Carrier+spec.Beat >= float64(spec.SampleRate)/2 {
		return fmt.Errorf("binaural tone: %.1f Hz above nyquist", spec.Carrier+spec.Beat)
	}
	return writeWav(path, BinauralTone(spec), spec.SampleRate)
}
