package av

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"

	"github.com/thesyncim/av/internal/native"
)

// LogLevel is a native log threshold.
type LogLevel int

const (
	LogQuiet   = LogLevel(native.LogQuiet)
	LogPanic   = LogLevel(native.LogPanic)
	LogFatal   = LogLevel(native.LogFatal)
	LogError   = LogLevel(native.LogError)
	LogWarning = LogLevel(native.LogWarning)
	LogInfo    = LogLevel(native.LogInfo)
	LogVerbose = LogLevel(native.LogVerbose)
	LogDebug   = LogLevel(native.LogDebug)
)

var logLevelNames = []struct {
	name  string
	level LogLevel
}{
	{"quiet", LogQuiet},
	{"panic", LogPanic},
	{"fatal", LogFatal},
	{"error", LogError},
	{"warning", LogWarning},
	{"info", LogInfo},
	{"verbose", LogVerbose},
	{"debug", LogDebug},
}

func (l LogLevel) String() string {
	for _, n := range logLevelNames {
		if n.level == l {
			return n.name
		}
	}
	return strconv.Itoa(int(l))
}

// bucket rounds l down to the nearest named level.
func (l LogLevel) bucket() LogLevel {
	switch {
	case l < LogPanic:
		return LogQuiet
	case l < LogFatal:
		return LogPanic
	case l < LogError:
		return LogFatal
	case l < LogWarning:
		return LogError
	case l < LogInfo:
		return LogWarning
	case l < LogVerbose:
		return LogInfo
	case l < LogDebug:
		return LogVerbose
	default:
		return LogDebug
	}
}

// SetLogLevel sets the native log threshold, rounded down to a named level.
func SetLogLevel(level LogLevel) {
	native.SetLogLevel(int(level.bucket()))
}

// SetLogLevelByName accepts quiet, panic, fatal, error, warning, info,
// verbose, debug or a decimal level.
func SetLogLevelByName(name string) error {
	for _, n := range logLevelNames {
		if n.name == name {
			native.SetLogLevel(int(n.level))
			return nil
		}
	}
	v, err := strconv.ParseInt(name, 10, 32)
	if err != nil {
		return newError(KindInvalidParameters, "set log level", "unknown level %q", name)
	}
	SetLogLevel(LogLevel(v))
	return nil
}

// GetLogLevel returns the native log threshold.
func GetLogLevel() LogLevel {
	return LogLevel(native.GetLogLevel())
}

// LoggingConfig configures the package logger.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json or text
	Output     string `mapstructure:"output"` // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// NewLogger builds a logrus logger from cfg. File outputs are rotated.
func NewLogger(cfg LoggingConfig) (*logrus.Logger, error) {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	l.SetLevel(level)

	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	}

	switch cfg.Output {
	case "", "stderr":
		l.SetOutput(os.Stderr)
	case "stdout":
		l.SetOutput(os.Stdout)
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Output), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		l.SetOutput(&lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.MaxSize, // megabytes
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge, // days
			Compress:   true,
		})
	}
	return l, nil
}

var pkgLogger atomic.Pointer[logrus.Logger]

func init() {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	pkgLogger.Store(l)
}

// SetLogger replaces the package logger. Contexts created earlier keep
// the logger they were created with.
func SetLogger(l *logrus.Logger) {
	if l != nil {
		pkgLogger.Store(l)
	}
}

// Logger returns the package logger.
func Logger() *logrus.Logger {
	return pkgLogger.Load()
}

// componentLogger returns an entry tagged with component.
func componentLogger(component string) *logrus.Entry {
	return pkgLogger.Load().WithField("component", component)
}

// nativeLogLevel maps a native level onto logrus. Panic and fatal are
// reported as errors so native messages never stop the process.
func nativeLogLevel(level int) logrus.Level {
	switch {
	case level <= native.LogError:
		return logrus.ErrorLevel
	case level <= native.LogWarning:
		return logrus.WarnLevel
	case level <= native.LogInfo:
		return logrus.InfoLevel
	case level <= native.LogDebug:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}

// forwardNativeLog is installed as the native log callback.
func forwardNativeLog(level int, component, msg string) {
	componentLogger("native").
		WithFields(logrus.Fields{"native_component": component, "native_level": LogLevel(level).bucket().String()}).
		Log(nativeLogLevel(level), msg)
}

// DumpBinaryBuffer writes buf as upper-case hex bytes, width per line.
func DumpBinaryBuffer(w io.Writer, buf []byte, width int) error {
	if width <= 0 {
		width = 16
	}
	line := make([]byte, 0, width*3)
	for i, b := range buf {
		line = append(line, fmt.Sprintf("%02X", b)...)
		if (i+1)%width == 0 || i == len(buf)-1 {
			line = append(line, '\n')
			if _, err := w.Write(line); err != nil {
				return err
			}
			line = line[:0]
		} else {
			line = append(line, ' ')
		}
	}
	return nil
}
