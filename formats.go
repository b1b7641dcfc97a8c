package av

import (
	"github.com/thesyncim/av/internal/native"
)

// Options is a bag of native options. Operations that accept Options
// delete the keys they applied, so whatever is left was not recognised.
type Options map[string]string

// Clone returns a copy that can be consumed without touching o.
func (o Options) Clone() Options {
	c := make(Options, len(o))
	for k, v := range o {
		c[k] = v
	}
	return c
}

// InputFormat describes a demuxer.
type InputFormat struct {
	f *native.InputFormat
}

// FindInputFormat looks up a demuxer by short name.
func FindInputFormat(name string) InputFormat {
	return InputFormat{native.FindInputFormat(name)}
}

// InputFormats lists the registered demuxers.
func InputFormats() []InputFormat {
	list := native.Demuxers()
	out := make([]InputFormat, len(list))
	for i, f := range list {
		out[i] = InputFormat{f}
	}
	return out
}

func (f InputFormat) IsNull() bool { return f.f == nil }

func (f InputFormat) Name() string {
	if f.f == nil {
		return ""
	}
	return f.f.Name
}

func (f InputFormat) LongName() string {
	if f.f == nil {
		return ""
	}
	return f.f.LongName
}

func (f InputFormat) Extensions() []string {
	if f.f == nil {
		return nil
	}
	return append([]string(nil), f.f.Extensions...)
}

// OutputFormat describes a muxer.
type OutputFormat struct {
	f *native.OutputFormat
}

// GuessOutputFormat picks a muxer by short name, then MIME type, then file
// extension. Empty arguments are ignored.
func GuessOutputFormat(name, filename, mimeType string) OutputFormat {
	return OutputFormat{native.GuessFormat(name, filename, mimeType)}
}

// OutputFormats lists the registered muxers.
func OutputFormats() []OutputFormat {
	list := native.Muxers()
	out := make([]OutputFormat, len(list))
	for i, f := range list {
		out[i] = OutputFormat{f}
	}
	return out
}

func (f OutputFormat) IsNull() bool { return f.f == nil }

func (f OutputFormat) Name() string {
	if f.f == nil {
		return ""
	}
	return f.f.Name
}

func (f OutputFormat) LongName() string {
	if f.f == nil {
		return ""
	}
	return f.f.LongName
}

func (f OutputFormat) MimeType() string {
	if f.f == nil {
		return ""
	}
	return f.f.MimeType
}

// DefaultAudioCodec is the codec the muxer picks for audio streams.
func (f OutputFormat) DefaultAudioCodec() CodecID {
	if f.f == nil {
		return CodecIDNone
	}
	return CodecID(f.f.AudioCodec)
}

// DefaultVideoCodec is the codec the muxer picks for video streams.
func (f OutputFormat) DefaultVideoCodec() CodecID {
	if f.f == nil {
		return CodecIDNone
	}
	return CodecID(f.f.VideoCodec)
}

// IsFlags reports whether all of flags are set.
func (f OutputFormat) IsFlags(flags int) bool {
	return f.f != nil && f.f.Flags&flags == flags
}

// Format flags.
const (
	FormatFlagNoFile       = native.FmtNoFile
	FormatFlagGlobalHeader = native.FmtGlobalHeader
	FormatFlagNoTimestamps = native.FmtNoTimestamps
)
