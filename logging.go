package binaural

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// EnvLogLevel 覆盖日志级别 (trace/debug/info/warn/error/disabled)
const EnvLogLevel = "BINAURAL_LOG_LEVEL"

// NewLogger 创建日志器：file 写 JSON 行，console 为 true 时同时输出到 stderr
// 默认 debug 级别，实验过程中每个标记都会记录
func NewLogger(file io.Writer, console bool) zerolog.Logger {
	writers := []io.Writer{file}
	if console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	level := zerolog.DebugLevel
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		level = lvl
	}
	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Str("app", "binaural").
		Logger()
}

// OpenLogFile 以追加方式打开日志文件
func OpenLogFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.DebugLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.DebugLevel, false
	}
}
