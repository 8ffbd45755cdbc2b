package binaural

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// HumanTimeFormat CSV 中可读时间戳的格式 (本地时间)
const HumanTimeFormat = "2006-01-02 15:04:05.000000"

// ExportRecord 导出文件中的一行，对应一个采样点
type ExportRecord struct {
	Unix   float64
	Human  string
	Values []float64 // 按 Layout.EEGChannels 顺序
	Marker int
}

// CheckIntegrity 检查时间戳、标记通道是否存在且与 EEG 通道等长
func CheckIntegrity(data [][]float64, layout Layout) (int, error) {
	if len(layout.EEGChannels) == 0 || layout.EEGChannels[0] >= len(data) {
		return 0, &ExportIntegrityError{Channel: "EEG", Got: -1}
	}
	n := len(data[layout.EEGChannels[0]])
	for i, row := range layout.EEGChannels {
		if row >= len(data) {
			return 0, &ExportIntegrityError{Channel: layout.EEGNames[i], Got: -1, Expected: n}
		}
		if got := len(data[row]); got != n {
			return 0, &ExportIntegrityError{Channel: layout.EEGNames[i], Got: got, Expected: n}
		}
	}
	for _, aux := range []struct {
		name string
		row  int
	}{{"timestamp", layout.TimestampChannel}, {"marker", layout.MarkerChannel}} {
		if aux.row < 0 || aux.row >= len(data) {
			return 0, &ExportIntegrityError{Channel: aux.name, Got: -1, Expected: n}
		}
		if got := len(data[aux.row]); got != n {
			return 0, &ExportIntegrityError{Channel: aux.name, Got: got, Expected: n}
		}
	}
	return n, nil
}

// BuildRecords 按采样顺序生成导出记录
func BuildRecords(data [][]float64, layout Layout) ([]ExportRecord, error) {
	n, err := CheckIntegrity(data, layout)
	if err != nil {
		return nil, err
	}
	ts := data[layout.TimestampChannel]
	markers := data[layout.MarkerChannel]

	records := make([]ExportRecord, n)
	for i := range records {
		values := make([]float64, len(layout.EEGChannels))
		for k, row := range layout.EEGChannels {
			values[k] = data[row][i]
		}
		records[i] = ExportRecord{
			Unix:   ts[i],
			Human:  unixToTime(ts[i]).Format(HumanTimeFormat),
			Values: values,
			Marker: int(markers[i]),
		}
	}
	return records, nil
}

// CSVHeader 导出文件表头
func CSVHeader(layout Layout) []string {
	header := []string{"Unix Timestamp", "Human Readable Timestamp"}
	for _, name := range layout.EEGNames {
		header = append(header, "EEG Channel "+name)
	}
	return append(header, "Marker")
}

// WriteCSV 写入表头和全部记录
func WriteCSV(w io.Writer, layout Layout, records []ExportRecord) error {
	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)
	if err := cw.Write(CSVHeader(layout)); err != nil {
		return err
	}
	row := make([]string, 0, len(layout.EEGChannels)+3)
	for _, r := range records {
		row = row[:0]
		row = append(row, strconv.FormatFloat(r.Unix, 'f', 6, 64), r.Human)
		for _, v := range r.Values {
			row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
		}
		row = append(row, strconv.Itoa(r.Marker))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

// writeFileAtomic 先写同目录下的临时文件，fsync 后 rename 覆盖目标文件
// 中途失败时删除临时文件，已有的同名文件保持不变
func writeFileAtomic(path string, write func(f *os.File) error) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func unixToTime(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
