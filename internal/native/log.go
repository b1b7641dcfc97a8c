package native

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Log levels, identical to AV_LOG_*.
const (
	LogQuiet   = -8
	LogPanic   = 0
	LogFatal   = 8
	LogError   = 16
	LogWarning = 24
	LogInfo    = 32
	LogVerbose = 40
	LogDebug   = 48
	LogTrace   = 56
)

// LogCallback receives every message at or below the current level.
type LogCallback func(level int, component, msg string)

var (
	logLevel    atomic.Int32
	logMu       sync.RWMutex
	logCallback LogCallback
	// ffmpegSetLogLevel forwards level changes to libavutil once loaded.
	ffmpegSetLogLevel func(level int)
)

func init() {
	logLevel.Store(LogInfo)
}

// SetLogLevel is av_log_set_level.
func SetLogLevel(level int) {
	logLevel.Store(int32(level))
	logMu.RLock()
	fwd := ffmpegSetLogLevel
	logMu.RUnlock()
	if fwd != nil {
		fwd(level)
	}
}

// GetLogLevel is av_log_get_level.
func GetLogLevel() int { return int(logLevel.Load()) }

// SetLogCallback is av_log_set_callback. A nil callback discards output.
func SetLogCallback(cb LogCallback) {
	logMu.Lock()
	logCallback = cb
	logMu.Unlock()
}

// Log is av_log.
func Log(component string, level int, format string, args ...any) {
	if level > GetLogLevel() {
		return
	}
	logMu.RLock()
	cb := logCallback
	logMu.RUnlock()
	if cb == nil {
		return
	}
	cb(level, component, fmt.Sprintf(format, args...))
}
