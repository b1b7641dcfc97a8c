// Package native is the C-style multimedia API consumed by package av.
//
// It mirrors the FFmpeg calling conventions (negative integer statuses,
// ref-counted buffers, send/receive codec protocol, option setters) so the
// wrapper above it can be written against a stable, opaque surface. The
// default implementations are pure Go; the resampler kernel can optionally
// be served by libswresample loaded at runtime.
package native

import (
	"fmt"
	"syscall"
)

// Status is an FFmpeg-style return code. Negative values are errors.
type Status int

func mkTag(a, b, c, d byte) Status {
	return -Status(int32(a) | int32(b)<<8 | int32(c)<<16 | int32(d)<<24)
}

// Well-known statuses, numerically identical to FFmpeg's AVERROR values.
var (
	OK = Status(0)

	EAGAIN = -Status(syscall.EAGAIN)
	ENOMEM = -Status(syscall.ENOMEM)
	EINVAL = -Status(syscall.EINVAL)
	EIO    = -Status(syscall.EIO)
	ENOSYS = -Status(syscall.ENOSYS)
	ENOENT = -Status(syscall.ENOENT)
	EPIPE  = -Status(syscall.EPIPE)
	ERANGE = -Status(syscall.ERANGE)

	EOF               = mkTag('E', 'O', 'F', ' ')
	EXIT              = mkTag('E', 'X', 'I', 'T')
	BUG               = mkTag('B', 'U', 'G', '!')
	InvalidData       = mkTag('I', 'N', 'D', 'A')
	OptionNotFound    = mkTag(0xF8, 'O', 'P', 'T')
	DecoderNotFound   = mkTag(0xF8, 'D', 'E', 'C')
	EncoderNotFound   = mkTag(0xF8, 'E', 'N', 'C')
	DemuxerNotFound   = mkTag(0xF8, 'D', 'E', 'M')
	MuxerNotFound     = mkTag(0xF8, 'M', 'U', 'X')
	StreamNotFound    = mkTag(0xF8, 'S', 'T', 'R')
	ProtocolNotFound  = mkTag(0xF8, 'P', 'R', 'O')
	PatchWelcome      = mkTag('P', 'A', 'W', 'E')
	InputChanged      = Status(-0x636e6701)
	OutputChanged     = Status(-0x636e6702)
)

const unknownStatusText = "Error number %d occurred"

var statusText = map[Status]string{
	EOF:              "End of file",
	EXIT:             "Immediate exit requested",
	BUG:              "Internal bug, should not have happened",
	InvalidData:      "Invalid data found when processing input",
	OptionNotFound:   "Option not found",
	DecoderNotFound:  "Decoder not found",
	EncoderNotFound:  "Encoder not found",
	DemuxerNotFound:  "Demuxer not found",
	MuxerNotFound:    "Muxer not found",
	StreamNotFound:   "Stream not found",
	ProtocolNotFound: "Protocol not found",
	PatchWelcome:     "Not yet implemented in FFmpeg, patches welcome",
	InputChanged:     "Input changed",
	OutputChanged:    "Output changed",
}

// Strerror renders a status the way av_strerror does.
func Strerror(s Status) string {
	if s >= 0 {
		return "Success"
	}
	if ffmpeg := ffmpegStrerror(s); ffmpeg != "" {
		return ffmpeg
	}
	if msg, ok := statusText[s]; ok {
		return msg
	}
	if errno := syscall.Errno(-s); -s < 4096 {
		if msg := errno.Error(); msg != "" {
			return capitalize(msg)
		}
	}
	return fmt.Sprintf(unknownStatusText, int(s))
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

// Failed reports whether s is an error status.
func (s Status) Failed() bool { return s < 0 }

func (s Status) String() string { return Strerror(s) }

// Error lets a status travel as a Go error inside this package.
func (s Status) Error() string { return Strerror(s) }

// ffmpegStrerror is overridden when libavutil is loaded so messages match
// the library that produced the status.
var ffmpegStrerror = func(Status) string { return "" }
