package binaural

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"binaural/Filters"
	"github.com/rs/zerolog"
)

// Report 会话导出结果
type Report struct {
	Rows    int
	CSVPath string // 写入成功时非空
	EDFPath string // 写入成功时非空
	Markers []Marker
	Mains   Filters.Band
}

// SessionFinalizer 协议结束后写入结束标记，并把整个会话导出成 CSV 和 EDF
type SessionFinalizer struct {
	board  Board
	cond   Conditioner
	cfg    ExportConfig
	delay  time.Duration
	logger zerolog.Logger

	// RecordingID 写入 EDF 文件头，一般为设备 MAC 地址
	RecordingID string

	// 可替换，方便测试
	Sleep func(time.Duration)
	now   func() time.Time

	once   sync.Once
	report Report
	err    error
}

// NewSessionFinalizer delay 为写入结束标记后的等待时间
func NewSessionFinalizer(board Board, cond Conditioner, cfg ExportConfig, delay time.Duration, logger zerolog.Logger) *SessionFinalizer {
	return &SessionFinalizer{
		board:  board,
		cond:   cond,
		cfg:    cfg,
		delay:  delay,
		logger: logger.With().Str("component", "finalizer").Logger(),
		Sleep:  time.Sleep,
		now:    time.Now,
	}
}

// Finalize 只执行一次；再次调用返回第一次的结果和 ErrAlreadyFinalized
func (f *SessionFinalizer) Finalize(subject string) (Report, error) {
	ran := false
	f.once.Do(func() {
		ran = true
		f.report, f.err = f.finalize(subject)
	})
	if !ran {
		return f.report, ErrAlreadyFinalized
	}
	return f.report, f.err
}

func (f *SessionFinalizer) finalize(subject string) (Report, error) {
	log := f.logger.With().Str("subject", subject).Logger()

	// 结束标记总是写入，即使后面无法导出
	if err := f.board.InsertMarker(MarkerExperimentEnd); err != nil {
		log.Error().Err(err).Int("marker", int(MarkerExperimentEnd)).Msg("insert end marker")
	}
	f.Sleep(f.delay)

	if err := ValidateSubject(subject); err != nil {
		log.Error().Err(err).Msg("export rejected")
		return Report{}, fmt.Errorf("finalize: %w", err)
	}
	subject = strings.TrimSpace(subject)

	layout := f.board.Layout()
	data := f.board.ReadAll()
	n, err := CheckIntegrity(data, layout)
	if err != nil {
		log.Error().Err(err).Msg("export rejected")
		return Report{}, err
	}

	report := Report{Rows: n}
	report.Markers, _ = Markers(data, layout)

	// 会话太短时不做工频陷波
	if n < Filters.MinMainsSeconds*layout.SampleRate {
		log.Warn().Int("samples", n).Msg("session too short for mains detection, skipping band-stop")
	} else if report.Mains, err = f.cond.DetectMains(data); err != nil {
		log.Warn().Err(err).Msg("mains detection failed, skipping band-stop")
		report.Mains = Filters.Band{}
	}

	referenced, err := f.cond.Reference(data, f.cfg.Reference)
	if err != nil {
		return report, fmt.Errorf("finalize: reference: %w", err)
	}
	filtered, err := f.cond.Filter(referenced, Filters.FilterSpec{
		Cut:      f.cfg.Cut,
		Bandpass: f.cfg.Bandpass,
		Bandstop: report.Mains,
	})
	if err != nil {
		return report, fmt.Errorf("finalize: filter: %w", err)
	}

	records, err := BuildRecords(filtered, layout)
	if err != nil {
		log.Error().Err(err).Msg("export rejected")
		return report, err
	}

	// CSV 失败不影响 EDF
	csvPath := filepath.Join(f.cfg.OutputDir, subject+"_eeg_data.csv")
	csvErr := writeFileAtomic(csvPath, func(w *os.File) error {
		return WriteCSV(w, layout, records)
	})
	if csvErr != nil {
		log.Error().Err(csvErr).Str("path", csvPath).Msg("csv export failed")
	} else {
		report.CSVPath = csvPath
		log.Info().Str("path", csvPath).Int("rows", n).Msg("csv exported")
	}

	edfPath := filepath.Join(f.cfg.OutputDir, subject+"_eeg_data.edf")
	edfErr := f.writeEDF(edfPath, subject, filtered, layout, report.Mains)
	if edfErr != nil {
		log.Error().Err(edfErr).Str("path", edfPath).Msg("edf export failed")
	} else {
		report.EDFPath = edfPath
		log.Info().Str("path", edfPath).Msg("edf exported")
	}

	log.Info().Int("rows", n).Ints("markers", markerInts(report.Markers)).Str("mains", report.Mains.String()).Msg("session finalized")
	return report, errors.Join(csvErr, edfErr)
}

// writeEDF EEG 换算成 V，标记作为 Event 通道
func (f *SessionFinalizer) writeEDF(path, subject string, data [][]float64, layout Layout, mains Filters.Band) error {
	spr := layout.SampleRate * f.cfg.RecordSeconds
	prefilter := fmt.Sprintf("HP:%gHz LP:%gHz", f.cfg.Bandpass.Low, f.cfg.Bandpass.High)
	if !mains.IsZero() {
		prefilter += fmt.Sprintf(" N:%gHz", mains.Center())
	}

	start := f.now()
	if ts := data[layout.TimestampChannel]; len(ts) > 0 {
		start = unixToTime(ts[0])
	}

	signals := make([]edfSignal, 0, len(layout.EEGChannels)+1)
	for i, row := range layout.EEGChannels {
		volts := make([]float64, len(data[row]))
		for k, v := range data[row] {
			volts[k] = v / f.cfg.MicrovoltsPerUnit
		}
		signals = append(signals, newEEGSignal(layout.EEGNames[i], "V", prefilter, volts, spr))
	}
	signals = append(signals, newEventSignal("Event", data[layout.MarkerChannel], spr))

	recordingID := strings.TrimSpace("binaural " + f.RecordingID)
	return writeEDFFile(path, subject, recordingID, start, f.cfg.RecordSeconds, signals)
}

// ValidateSubject 受试者编号用于输出文件名，不能为空或包含路径分隔符
func ValidateSubject(subject string) error {
	subject = strings.TrimSpace(subject)
	if subject == "" || strings.ContainsAny(subject, `/\`) || subject == "." || subject == ".." {
		return &InvalidSubjectError{Subject: subject}
	}
	return nil
}
