package av

import (
	"errors"
	"fmt"

	"github.com/thesyncim/av/internal/native"
)

// ErrorKind classifies a failure reported by this package.
type ErrorKind string

const (
	KindInvalidParameters       ErrorKind = "INVALID_PARAMETERS"
	KindResamplerNotInited      ErrorKind = "RESAMPLER_NOT_INITED"
	KindInputParametersChanged  ErrorKind = "INPUT_PARAMETERS_CHANGED"
	KindOutputParametersChanged ErrorKind = "OUTPUT_PARAMETERS_CHANGED"
	KindFrameAllocationFailed   ErrorKind = "FRAME_ALLOCATION_FAILED"
	KindAllocationFailed        ErrorKind = "ALLOCATION_FAILED"
	KindDanglingStream          ErrorKind = "DANGLING_STREAM"
	KindInvalidStateTransition  ErrorKind = "INVALID_STATE_TRANSITION"
	KindIoError                 ErrorKind = "IO_ERROR"
	KindReadTimeout             ErrorKind = "READ_TIMEOUT"
	KindCodecOpenFailed         ErrorKind = "CODEC_OPEN_FAILED"
	KindCodecNotSet             ErrorKind = "CODEC_NOT_SET"
	KindAlreadyOpen             ErrorKind = "ALREADY_OPEN"
	KindResamplerInitFailed     ErrorKind = "RESAMPLER_INIT_FAILED"
	KindRescalerInitFailed      ErrorKind = "RESCALER_INIT_FAILED"
	KindNativeError             ErrorKind = "NATIVE_ERROR"
	KindLengthMismatch          ErrorKind = "LENGTH_MISMATCH"
	KindOutOfMemory             ErrorKind = "OUT_OF_MEMORY"
)

// Error categories.
const (
	CategoryAV     = "av"
	CategoryFFmpeg = "ffmpeg"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrInvalidParameters       = &Error{Kind: KindInvalidParameters}
	ErrResamplerNotInited      = &Error{Kind: KindResamplerNotInited}
	ErrInputParametersChanged  = &Error{Kind: KindInputParametersChanged}
	ErrOutputParametersChanged = &Error{Kind: KindOutputParametersChanged}
	ErrFrameAllocationFailed   = &Error{Kind: KindFrameAllocationFailed}
	ErrAllocationFailed        = &Error{Kind: KindAllocationFailed}
	ErrDanglingStream          = &Error{Kind: KindDanglingStream}
	ErrInvalidStateTransition  = &Error{Kind: KindInvalidStateTransition}
	ErrIoError                 = &Error{Kind: KindIoError}
	ErrReadTimeout             = &Error{Kind: KindReadTimeout}
	ErrCodecOpenFailed         = &Error{Kind: KindCodecOpenFailed}
	ErrCodecNotSet             = &Error{Kind: KindCodecNotSet}
	ErrAlreadyOpen             = &Error{Kind: KindAlreadyOpen}
	ErrResamplerInitFailed     = &Error{Kind: KindResamplerInitFailed}
	ErrRescalerInitFailed      = &Error{Kind: KindRescalerInitFailed}
	ErrNativeError             = &Error{Kind: KindNativeError}
	ErrLengthMismatch          = &Error{Kind: KindLengthMismatch}
	ErrOutOfMemory             = &Error{Kind: KindOutOfMemory}
)

// Error is the error type returned by every fallible operation.
//
// Code carries the native status when the failure came from the native
// library; it is zero for failures detected by the wrapper itself.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Code    int
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Code != 0 {
		msg = native.Strerror(native.Status(e.Code))
	}
	prefix := string(e.Kind)
	if e.Op != "" {
		prefix = e.Op + ": " + prefix
	}
	switch {
	case e.Code != 0:
		return fmt.Sprintf("%s: %s (code %d)", prefix, msg, e.Code)
	case e.Err != nil && msg != "":
		return fmt.Sprintf("%s: %s (caused by: %v)", prefix, msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s (caused by: %v)", prefix, e.Err)
	case msg != "":
		return fmt.Sprintf("%s: %s", prefix, msg)
	}
	return prefix
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op != "" || t.Code != 0 || t.Message != "" || t.Err != nil {
		return e == t
	}
	return e.Kind == t.Kind
}

// Category is "ffmpeg" for native statuses and "av" otherwise.
func (e *Error) Category() string {
	if e.Code != 0 {
		return CategoryFFmpeg
	}
	return CategoryAV
}

func newError(kind ErrorKind, op, format string, args ...any) *Error {
	e := &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
	metrics.errors.WithLabelValues(string(kind), e.Category()).Inc()
	return e
}

// wrapStatus reports a failed native status under the given kind.
func wrapStatus(kind ErrorKind, op string, st native.Status) *Error {
	e := &Error{Kind: kind, Op: op, Code: int(st), Err: st}
	metrics.errors.WithLabelValues(string(kind), e.Category()).Inc()
	return e
}

// nativeErr is wrapStatus with KindNativeError.
func nativeErr(op string, st native.Status) *Error {
	return wrapStatus(KindNativeError, op, st)
}

// Strerror renders a native status code.
func Strerror(code int) string {
	return native.Strerror(native.Status(code))
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Must panics with err when it is non-nil and otherwise returns v.
func Must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
