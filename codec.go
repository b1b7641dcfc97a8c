package av

import (
	"github.com/thesyncim/av/internal/native"
)

// MediaType is the kind of data a stream or codec carries.
type MediaType int

const (
	MediaTypeUnknown    = MediaType(native.MediaTypeUnknown)
	MediaTypeVideo      = MediaType(native.MediaTypeVideo)
	MediaTypeAudio      = MediaType(native.MediaTypeAudio)
	MediaTypeData       = MediaType(native.MediaTypeData)
	MediaTypeSubtitle   = MediaType(native.MediaTypeSubtitle)
	MediaTypeAttachment = MediaType(native.MediaTypeAttachment)
)

func (m MediaType) String() string {
	switch m {
	case MediaTypeVideo:
		return "video"
	case MediaTypeAudio:
		return "audio"
	case MediaTypeData:
		return "data"
	case MediaTypeSubtitle:
		return "subtitle"
	case MediaTypeAttachment:
		return "attachment"
	default:
		return "unknown"
	}
}

// CodecID identifies a codec independently of its implementation.
type CodecID int

const (
	CodecIDNone     = CodecID(native.CodecIDNone)
	CodecIDRawVideo = CodecID(native.CodecIDRawVideo)
	CodecIDPCMS16LE = CodecID(native.CodecIDPCMS16LE)
	CodecIDPCMS16BE = CodecID(native.CodecIDPCMS16BE)
	CodecIDPCMU8    = CodecID(native.CodecIDPCMU8)
	CodecIDPCMMulaw = CodecID(native.CodecIDPCMMulaw) // G.711 mu-law (PCMU)
	CodecIDPCMAlaw  = CodecID(native.CodecIDPCMAlaw)  // G.711 A-law (PCMA)
	CodecIDPCMS32LE = CodecID(native.CodecIDPCMS32LE)
	CodecIDPCMF32LE = CodecID(native.CodecIDPCMF32LE)
)

func (c CodecID) String() string {
	return native.CodecName(native.CodecID(c))
}

// MediaType returns the media type the codec handles.
func (c CodecID) MediaType() MediaType {
	return MediaType(native.CodecMediaType(native.CodecID(c)))
}

// MimeType returns the RTP MIME type for this codec, or "" when it has no
// RTP mapping.
func (c CodecID) MimeType() string {
	switch c {
	case CodecIDPCMMulaw:
		return "audio/PCMU"
	case CodecIDPCMAlaw:
		return "audio/PCMA"
	case CodecIDPCMS16BE:
		return "audio/L16"
	case CodecIDRawVideo:
		return "video/raw"
	default:
		return ""
	}
}

// ClockRate returns the RTP clock rate for this codec.
func (c CodecID) ClockRate() uint32 {
	switch c {
	case CodecIDPCMMulaw, CodecIDPCMAlaw:
		return 8000
	case CodecIDPCMS16BE:
		return 44100
	case CodecIDRawVideo:
		return 90000
	default:
		return 48000
	}
}

// DefaultPayloadType returns the static RTP payload type, or 96 for
// codecs that need a dynamic one.
func (c CodecID) DefaultPayloadType() uint8 {
	switch c {
	case CodecIDPCMMulaw:
		return 0
	case CodecIDPCMAlaw:
		return 8
	case CodecIDPCMS16BE:
		return 10 // stereo; 11 is mono
	default:
		return 96
	}
}

// Codec is a registered encoder or decoder.
type Codec struct {
	c *native.Codec
}

// IsNull reports whether the codec handle is empty.
func (c Codec) IsNull() bool { return c.c == nil }

func (c Codec) Name() string {
	if c.c == nil {
		return ""
	}
	return c.c.Name
}

func (c Codec) LongName() string {
	if c.c == nil {
		return ""
	}
	return c.c.LongName
}

func (c Codec) ID() CodecID {
	if c.c == nil {
		return CodecIDNone
	}
	return CodecID(c.c.ID)
}

func (c Codec) Type() MediaType {
	if c.c == nil {
		return MediaTypeUnknown
	}
	return MediaType(c.c.Type)
}

func (c Codec) CanEncode() bool { return c.c.IsEncoder() }
func (c Codec) CanDecode() bool { return c.c.IsDecoder() }

// SupportedSampleFormats lists the sample formats an audio codec accepts
// or produces.
func (c Codec) SupportedSampleFormats() []SampleFormat {
	if c.c == nil {
		return nil
	}
	out := make([]SampleFormat, len(c.c.SampleFmts))
	for i, f := range c.c.SampleFmts {
		out[i] = SampleFormat(f)
	}
	return out
}

// SupportedPixelFormats lists the pixel formats a video codec accepts or
// produces.
func (c Codec) SupportedPixelFormats() []PixelFormat {
	if c.c == nil {
		return nil
	}
	out := make([]PixelFormat, len(c.c.PixFmts))
	for i, f := range c.c.PixFmts {
		out[i] = PixelFormat(f)
	}
	return out
}

func (c Codec) String() string {
	if c.c == nil {
		return "<null codec>"
	}
	return c.c.Name
}

// FindEncodingCodec looks up an encoder by id.
func FindEncodingCodec(id CodecID) Codec {
	return Codec{native.FindEncoder(native.CodecID(id))}
}

// FindEncodingCodecByName looks up an encoder by name.
func FindEncodingCodecByName(name string) Codec {
	return Codec{native.FindEncoderByName(name)}
}

// FindDecodingCodec looks up a decoder by id.
func FindDecodingCodec(id CodecID) Codec {
	return Codec{native.FindDecoder(native.CodecID(id))}
}

// FindDecodingCodecByName looks up a decoder by name.
func FindDecodingCodecByName(name string) Codec {
	return Codec{native.FindDecoderByName(name)}
}

// Codecs returns every registered codec.
func Codecs() []Codec {
	list := native.Codecs()
	out := make([]Codec, len(list))
	for i, c := range list {
		out[i] = Codec{c}
	}
	return out
}

// CodecParameters describes an encoded stream.
type CodecParameters struct {
	MediaType         MediaType
	CodecID           CodecID
	CodecTag          uint32
	BitRate           int64
	Width             int
	Height            int
	PixelFormat       PixelFormat
	SampleAspectRatio Rational
	SampleFormat      SampleFormat
	SampleRate        int
	ChannelLayout     ChannelLayout
	Channels          int
	FrameSize         int
	BlockAlign        int
	BitsPerSample     int
	Extradata         []byte
}

func codecParametersFromNative(p *native.CodecParameters) CodecParameters {
	out := CodecParameters{
		MediaType:         MediaType(p.CodecType),
		CodecID:           CodecID(p.CodecID),
		CodecTag:          p.CodecTag,
		BitRate:           p.BitRate,
		Width:             p.Width,
		Height:            p.Height,
		PixelFormat:       PixelFormatNone,
		SampleAspectRatio: fromNativeRational(p.SampleAspectRatio),
		SampleFormat:      SampleFormatNone,
		SampleRate:        p.SampleRate,
		ChannelLayout:     ChannelLayout(p.ChannelLayout),
		Channels:          p.Channels,
		FrameSize:         p.FrameSize,
		BlockAlign:        p.BlockAlign,
		BitsPerSample:     p.BitsPerCodedSample,
		Extradata:         append([]byte(nil), p.Extradata...),
	}
	switch out.MediaType {
	case MediaTypeVideo:
		out.PixelFormat = PixelFormat(p.Format)
	case MediaTypeAudio:
		out.SampleFormat = SampleFormat(p.Format)
	}
	return out
}

func (cp CodecParameters) toNative(p *native.CodecParameters) {
	*p = *native.NewCodecParameters()
	p.CodecType = native.MediaType(cp.MediaType)
	p.CodecID = native.CodecID(cp.CodecID)
	p.CodecTag = cp.CodecTag
	p.BitRate = cp.BitRate
	p.Width, p.Height = cp.Width, cp.Height
	p.SampleAspectRatio = cp.SampleAspectRatio.native()
	p.SampleRate = cp.SampleRate
	p.ChannelLayout = uint64(cp.ChannelLayout)
	p.Channels = cp.Channels
	p.FrameSize = cp.FrameSize
	p.BlockAlign = cp.BlockAlign
	p.BitsPerCodedSample = cp.BitsPerSample
	p.Extradata = append([]byte(nil), cp.Extradata...)
	switch cp.MediaType {
	case MediaTypeVideo:
		p.Format = int(cp.PixelFormat)
	case MediaTypeAudio:
		p.Format = int(cp.SampleFormat)
	}
}
