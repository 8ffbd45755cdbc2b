package binaural

import (
	"errors"
	"fmt"
)

var (
	ErrMissingAsset       = errors.New("stimulus asset missing")
	ErrExportIntegrity    = errors.New("export integrity check failed")
	ErrAcquisitionSession = errors.New("acquisition session failed")
	ErrAlreadyFinalized   = errors.New("session already finalized")
	ErrInvalidSubject     = errors.New("invalid subject id")
)

// MissingAssetError 刺激音频文件不存在，整个协议序列中止
type MissingAssetError struct {
	Index int    // 第几个刺激 (从 1 开始)
	Path  string // 期望的文件路径
}

func (e *MissingAssetError) Error() string {
	return fmt.Sprintf("stimulus %d: asset not found: %s", e.Index, e.Path)
}

func (e *MissingAssetError) Is(target error) bool { return target == ErrMissingAsset }

// ExportIntegrityError 时间戳/标记通道与 EEG 通道长度不一致，导出被拒绝
type ExportIntegrityError struct {
	Channel  string
	Got      int
	Expected int
}

func (e *ExportIntegrityError) Error() string {
	if e.Got < 0 {
		return fmt.Sprintf("export integrity: %s channel missing", e.Channel)
	}
	return fmt.Sprintf("export integrity: %s channel has %d samples, EEG has %d", e.Channel, e.Got, e.Expected)
}

func (e *ExportIntegrityError) Is(target error) bool { return target == ErrExportIntegrity }

// AcquisitionSessionError 采集设备无法打开或启动
type AcquisitionSessionError struct {
	Op  string // prepare / start
	Err error
}

func (e *AcquisitionSessionError) Error() string {
	return fmt.Sprintf("acquisition %s: %v", e.Op, e.Err)
}

func (e *AcquisitionSessionError) Unwrap() error { return e.Err }

func (e *AcquisitionSessionError) Is(target error) bool { return target == ErrAcquisitionSession }

// InvalidSubjectError 受试者编号不能用作文件名
type InvalidSubjectError struct {
	Subject string
}

func (e *InvalidSubjectError) Error() string {
	return fmt.Sprintf("invalid subject id %q: must be non-empty and contain no path separator", e.Subject)
}

func (e *InvalidSubjectError) Is(target error) bool { return target == ErrInvalidSubject }
