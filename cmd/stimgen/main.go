// stimgen 生成双耳节拍刺激音文件 song001.wav ... songNNN.wav，用于没有音乐素材时试跑实验
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"binaural"
)

func main() {
	// 1. 参数
	outDir := flag.String("out", "./songs", "Output directory")
	count := flag.Int("count", 5, "Number of stimulus files")
	pattern := flag.String("pattern", "song%03d.wav", "File name pattern (1-based index)")
	carrier := flag.Float64("carrier", 220, "Left ear carrier frequency (Hz)")
	beat := flag.Float64("beat", 10, "Beat frequency, right ear plays carrier+beat (Hz)")
	step := flag.Float64("step", 0, "Beat frequency increment per file (Hz)")
	seconds := flag.Float64("seconds", 120, "Duration of each file (s)")
	rate := flag.Int("rate", 44100, "Sample rate (Hz)")
	amplitude := flag.Float64("amplitude", 0.3, "Peak amplitude 0..1")
	flag.Parse()

	if *count <= 0 {
		log.Fatalf("count must be positive, got %d", *count)
	}
	if *amplitude <= 0 || *amplitude > 1 {
		log.Fatalf("amplitude must be in (0, 1], got %g", *amplitude)
	}

	// 2. 输出目录
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("create %s: %v", *outDir, err)
	}

	// 3. 逐个写文件
	for i := 1; i <= *count; i++ {
		spec := binaural.ToneSpec{
			Carrier:    *carrier,
			Beat:       *beat + float64(i-1)**step,
			Seconds:    *seconds,
			SampleRate: *rate,
			Amplitude:  *amplitude,
			Fade:       0.5,
		}
		path := filepath.Join(*outDir, fmt.Sprintf(*pattern, i))
		if err := binaural.WriteBinauralWav(path, spec); err != nil {
			log.Fatalf("write %s: %v", path, err)
		}
		fmt.Printf("%s  L %.1f Hz  R %.1f Hz  %.0fs\n", path, spec.Carrier, spec.Carrier+spec.Beat, spec.Seconds)
	}
	// 默认素材名是 mp3
	fmt.Printf("set asset_pattern = %q in the config to use these files\n", *pattern)
}
