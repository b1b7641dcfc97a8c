//go:build !darwin && !linux

package native

import "errors"

var errFFmpegUnsupported = errors.New("ffmpeg backend is only available on darwin and linux")

// SetFFmpegLibPath is a no-op on this platform.
func SetFFmpegLibPath(string) {}

// LoadFFmpeg always fails on this platform.
func LoadFFmpeg() error { return errFFmpegUnsupported }

// FFmpegAvailable always reports false on this platform.
func FFmpegAvailable() bool { return false }

// FFmpegVersion returns "" on this platform.
func FFmpegVersion() string { return "" }
