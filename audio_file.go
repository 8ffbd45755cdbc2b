package binaural

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/wav"
)

// clipChannels 解码输出总是立体声 (单声道文件两个声道相同)
const clipChannels = 2

// Clip 解码后的整段音频，交错排列的立体声采样
type Clip struct {
	Samples        []float32
	SampleRate     int
	SourceChannels int // 源文件声道数
}

// Frames 帧数 (每帧两个采样)
func (c Clip) Frames() int { return len(c.Samples) / clipChannels }

// Duration 时长 (秒)
func (c Clip) Duration() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(c.Frames()) / float64(c.SampleRate)
}

// DecodeAudio 按扩展名选择 mp3 / wav 解码器，读出整个文件
func DecodeAudio(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, err
	}
	defer f.Close()

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		stream, format, err = mp3.Decode(f)
	case ".wav":
		stream, format, err = wav.Decode(f)
	default:
		return Clip{}, fmt.Errorf("decode %s: unsupported audio format %q", path, ext)
	}
	if err != nil {
		return Clip{}, fmt.Errorf("decode %s: %w", path, err)
	}
	defer stream.Close()

	clip := Clip{
		SampleRate:     int(format.SampleRate),
		SourceChannels: format.NumChannels,
	}
	if n := stream.Len(); n > 0 {
		clip.Samples = make([]float32, 0, clipChannels*n)
	}
	buf := make([][2]float64, 4096)
	for {
		n, ok := stream.Stream(buf)
		for _, s := range buf[:n] {
			clip.Samples = append(clip.Samples, float32(s[0]), float32(s[1]))
		}
		if !ok || n == 0 {
			break
		}
	}
	if err := stream.Err(); err != nil {
		return Clip{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if clip.Frames() == 0 {
		return Clip{}, fmt.Errorf("decode %s: no audio frames", path)
	}
	return clip, nil
}

// writeWav 把交错立体声采样编码为 16-bit PCM WAV
func writeWav(path string, samples []float32, sampleRate int) error {
	format := beep.Format{SampleRate: beep.SampleRate(sampleRate), NumChannels: clipChannels, Precision: 2}
	pos := 0
	stream := beep.StreamerFunc(func(buf [][2]float64) (int, bool) {
		if pos+1 >= len(samples) {
			return 0, false
		}
		n := 0
		for ; n < len(buf) && pos+1 < len(samples); n++ {
			buf[n] = [2]float64{float64(samples[pos]), float64(samples[pos+1])}
			pos += clipChannels
		}
		return n, true
	})
	return writeFileAtomic(path, func(f *os.File) error {
		return wav.Encode(f, stream, format)
	})
}
