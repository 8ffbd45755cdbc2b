package binaural

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/OpenPSG/edf"
)

const (
	edfDigitalMin = -32768
	edfDigitalMax = 32767

	// 单个数据记录的建议上限 (字节)
	edfMaxRecordBytes = 61440
)

// EDF 头字段宽度
const (
	edfIDWidth         = 80
	edfLabelWidth      = 16
	edfTransducerWidth = 80
	edfDimensionWidth  = 8
	edfPrefilterWidth  = 80
)

// edfSignal 一个 EDF 通道: 头信息加完整数据，pad 用于补齐最后一个数据记录
type edfSignal struct {
	info edf.SignalHeader
	data []float64
	pad  float64
}

// newEEGSignal 物理范围取数据范围并向外取整
func newEEGSignal(label, dimension, prefilter string, data []float64, spr int) edfSignal {
	lo, hi := edfPhysicalRange(data)
	pad := 0.0
	if len(data) > 0 {
		pad = data[len(data)-1]
	}
	return edfSignal{
		info: edf.SignalHeader{
			Label:             edfField(label, edfLabelWidth),
			TransducerType:    edfField("EEG electrode", edfTransducerWidth),
			PhysicalDimension: edfField(dimension, edfDimensionWidth),
			PhysicalMin:       lo,
			PhysicalMax:       hi,
			DigitalMin:        edfDigitalMin,
			DigitalMax:        edfDigitalMax,
			Prefiltering:      edfField(prefilter, edfPrefilterWidth),
			SamplesPerRecord:  spr,
		},
		data: data,
		pad:  pad,
	}
}

// newEventSignal 物理范围等于数字范围，标记值原样保存；补齐部分为 0 (无标记)
func newEventSignal(label string, markers []float64, spr int) edfSignal {
	return edfSignal{
		info: edf.SignalHeader{
			Label:            edfField(label, edfLabelWidth),
			PhysicalMin:      edfDigitalMin,
			PhysicalMax:      edfDigitalMax,
			DigitalMin:       edfDigitalMin,
			DigitalMax:       edfDigitalMax,
			SamplesPerRecord: spr,
		},
		data: markers,
	}
}

// writeEDFFile 原子写入 EDF 文件。样本数不是 spr 整数倍时，
// 最后一个数据记录用各通道的 pad 值补齐
func writeEDFFile(path, patientID, recordingID string, start time.Time, recordSeconds int, signals []edfSignal) error {
	if len(signals) == 0 {
		return fmt.Errorf("edf %s: no signals", path)
	}
	hdr := edf.Header{
		Version:            edf.Version0,
		PatientID:          edfField(patientID, edfIDWidth),
		RecordingID:        edfField(recordingID, edfIDWidth),
		StartTime:          start,
		DataRecordDuration: time.Duration(recordSeconds) * time.Second,
		SignalCount:        len(signals),
	}
	n := 0
	for _, s := range signals {
		hdr.Signals = append(hdr.Signals, s.info)
		n = max(n, len(s.data))
	}

	return writeFileAtomic(path, func(fh *os.File) error {
		w, err := edf.Create(fh, hdr)
		if err != nil {
			return err
		}
		for _, rec := range edfRecords(signals, n) {
			if err := w.WriteRecord(rec); err != nil {
				return fmt.Errorf("edf %s: %w", path, err)
			}
		}
		return w.Close()
	})
}

// edfRecords 按每个通道的 SamplesPerRecord 切分数据记录
func edfRecords(signals []edfSignal, n int) [][][]float64 {
	spr := signals[0].info.SamplesPerRecord
	count := (n + spr - 1) / spr
	records := make([][][]float64, count)
	for r := range records {
		rec := make([][]float64, len(signals))
		for i, s := range signals {
			row := make([]float64, s.info.SamplesPerRecord)
			for k := range row {
				if idx := r*spr + k; idx < len(s.data) {
					row[k] = s.data[idx]
				} else {
					row[k] = s.pad
				}
			}
			rec[i] = row
		}
		records[r] = rec
	}
	return records
}

// edfPhysicalRange 文件头里物理范围写成两位小数 (过长时为整数)，
// 这里先按同样的精度向外取整，保证头信息和换算用的是同一组值
func edfPhysicalRange(data []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo, hi = min(lo, v), max(hi, v)
	}
	if lo > hi {
		return -1, 1
	}

	scale := 100.0
	if len(fmt.Sprintf("%.2f", lo)) > 8 || len(fmt.Sprintf("%.2f", hi)) > 8 {
		scale = 1
	}
	klo, khi := math.Floor(lo*scale), math.Ceil(hi*scale)
	if klo/scale > lo {
		klo--
	}
	if khi/scale < hi {
		khi++
	}
	if khi <= klo {
		khi = klo + 1
	}
	return klo / scale, khi / scale
}

// edfField 截断到字段宽度，非 ASCII 字符替换为 '_'
func edfField(s string, width int) string {
	var b strings.Builder
	for _, r := range s {
		if b.Len() == width {
			break
		}
		if r < 0x20 || r > 0x7e {
			r = '_'
		}
		b.WriteRune(r)
	}
	return b.String()
}
