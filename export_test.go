package binaural

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	layout := NewLayout(250, []string{"A1", "C3"})
	data := [][]float64{
		{1.5, -2.25},
		{10, 20},
		{1700000000.004, 1700000000.008},
		{5, 0},
	}
	records, err := BuildRecords(data, layout)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []float64{1.5, 10}, records[0].Values)
	assert.Equal(t, 5, records[0].Marker)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, layout, records))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Unix Timestamp,Human Readable Timestamp,EEG Channel A1,EEG Channel C3,Marker", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1700000000.004000,"))
	assert.True(t, strings.HasSuffix(lines[1], ",1.5,10,5"))
	assert.True(t, strings.HasSuffix(lines[2], ",-2.25,20,0"))
}

func TestCheckIntegrity(t *testing.T) {
	layout := NewLayout(250, []string{"A1", "C3"})

	n, err := CheckIntegrity([][]float64{{1, 2}, {3, 4}, {5, 6}, {0, 0}}, layout)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = CheckIntegrity([][]float64{{1, 2}, {3, 4}, {5, 6}}, layout)
	var ie *ExportIntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "marker", ie.Channel)
	assert.Equal(t, -1, ie.Got)
	assert.Contains(t, err.Error(), "missing")

	_, err = CheckIntegrity([][]float64{{1, 2}, {3, 4}, {5}, {0, 0}}, layout)
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "timestamp", ie.Channel)

	_, err = CheckIntegrity([][]float64{{1, 2}, {3}, {5, 6}, {0, 0}}, layout)
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "C3", ie.Channel)
	assert.True(t, errors.Is(err, ErrExportIntegrity))
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")

	require.NoError(t, writeFileAtomic(path, func(f *os.File) error {
		_, err := f.WriteString("first")
		return err
	}))

	// 写入失败时原文件不变，也不留临时文件
	err := writeFileAtomic(path, func(f *os.File) error {
		f.WriteString("partial")
		return errors.New("disk full")
	})
	require.Error(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// 显式覆盖
	require.NoError(t, writeFileAtomic(path, func(f *os.File) error {
		_, err := f.WriteString("second")
		return err
	}))
	got, _ = os.ReadFile(path)
	assert.Equal(t, "second", string(got))
}
