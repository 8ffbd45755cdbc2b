package binaural

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExperiment(t *testing.T, stimuli int, present ...int) (*Experiment, *SyntheticBoard, *fakePlayer) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Protocol = testProtocolConfig(t, stimuli, present...)
	cfg.Export.OutputDir = t.TempDir()
	cfg.Board.Kind = BoardSynthetic

	board := NewSyntheticBoard(cfg.Board, 3)
	board.Manual = true
	board.now = func() time.Time { return time.Unix(1700000000, 0) }
	player := &fakePlayer{}

	e := NewExperiment(cfg, "S10", board, player, zerolog.Nop())
	pump := func(time.Duration) { board.Pump(25) }
	e.Controller.Sleep = pump
	e.Finalizer.Sleep = pump
	return e, board, player
}

func TestExperimentHeadlessRun(t *testing.T) {
	e, board, player := newTestExperiment(t, 2)
	require.NoError(t, e.Open())
	board.Pump(3 * 250)

	report, outcome, err := e.RunHeadless(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Stimuli)
	assert.Equal(t, []Marker{5, 1, 3, 1, 3, 1, 6}, report.Markers)
	assert.Equal(t, board.buf.Len(), report.Rows)
	assert.NotEmpty(t, report.CSVPath)
	assert.NotEmpty(t, report.EDFPath)
	assert.True(t, e.View.Halted())

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.Contains(t, player.Calls(), "play")
}

func TestExperimentAbortedRunStillExports(t *testing.T) {
	e, board, _ := newTestExperiment(t, 2, 1)
	require.NoError(t, e.Open())
	board.Pump(3 * 250)

	report, outcome, err := e.RunHeadless(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingAsset))
	assert.Equal(t, 1, outcome.Stimuli)
	assert.Equal(t, []Marker{5, 1, 3, 1, 6}, report.Markers, "6 is the last marker after an abort")
	assert.NotEmpty(t, report.CSVPath)
	require.NoError(t, e.Close())
}

func TestExperimentStartProtocolOnce(t *testing.T) {
	e, _, _ := newTestExperiment(t, 0)
	require.NoError(t, e.Open())

	assert.True(t, e.StartProtocol())
	assert.False(t, e.StartProtocol())
	<-e.Controller.Done()
	require.NoError(t, e.Close())
}

func TestExperimentHeadlessCancelBeforeStart(t *testing.T) {
	e, _, _ := newTestExperiment(t, 1)
	require.NoError(t, e.Open())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := e.RunHeadless(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, e.View.Halted())
	require.NoError(t, e.Close())
}

// failingBoard 模拟设备无法连接
type failingBoard struct {
	*SyntheticBoard
	prepareErr, startErr error
	released             int
}

func (b *failingBoard) Prepare() error {
	if b.prepareErr != nil {
		return b.prepareErr
	}
	return b.SyntheticBoard.Prepare()
}

func (b *failingBoard) Start() error {
	if b.startErr != nil {
		return b.startErr
	}
	return b.SyntheticBoard.Start()
}

func (b *failingBoard) Release() error {
	b.released++
	return b.SyntheticBoard.Release()
}

func TestExperimentOpenRejectsBadSubject(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Export.OutputDir = t.TempDir()
	for _, subject := range []string{"S/01", `S\01`, "..", ""} {
		t.Run(subject, func(t *testing.T) {
			board := NewSyntheticBoard(cfg.Board, 1)
			e := NewExperiment(cfg, subject, board, &fakePlayer{}, zerolog.Nop())
			err := e.Open()
			require.ErrorIs(t, err, ErrInvalidSubject)
			var se *InvalidSubjectError
			require.ErrorAs(t, err, &se)
			assert.False(t, board.prepared, "board must not be opened for a bad subject")
		})
	}
}

func TestValidateSubject(t *testing.T) {
	for _, ok := range []string{"S01", " S01 ", "subject-7", "a.b"} {
		assert.NoError(t, ValidateSubject(ok), ok)
	}
	for _, bad := range []string{"", "   ", ".", "..", "a/b", `a\b`, "../x"} {
		assert.ErrorIs(t, ValidateSubject(bad), ErrInvalidSubject, bad)
	}
}

func TestExperimentOpenErrors(t *testing.T) {
	cfg := DefaultConfig()
	for _, tc := range []struct {
		name string
		b    *failingBoard
		op   string
	}{
		{"prepare", &failingBoard{SyntheticBoard: NewSyntheticBoard(cfg.Board, 1), prepareErr: errors.New("no device")}, "prepare"},
		{"start", &failingBoard{SyntheticBoard: NewSyntheticBoard(cfg.Board, 1), startErr: errors.New("stream refused")}, "start"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e := NewExperiment(cfg, "S11", tc.b, &fakePlayer{}, zerolog.Nop())
			err := e.Open()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrAcquisitionSession))
			var ae *AcquisitionSessionError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tc.op, ae.Op)
			if tc.op == "start" {
				assert.Equal(t, 1, tc.b.released)
			}
		})
	}
}
