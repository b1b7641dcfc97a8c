package native

import (
	"strconv"
	"sync"
)

// MediaType mirrors AVMediaType.
type MediaType int

const (
	MediaTypeUnknown MediaType = iota - 1
	MediaTypeVideo
	MediaTypeAudio
	MediaTypeData
	MediaTypeSubtitle
	MediaTypeAttachment
)

// CodecID identifies a codec.
type CodecID int

const (
	CodecIDNone     CodecID = 0
	CodecIDRawVideo CodecID = 13
	CodecIDPCMS16LE CodecID = 0x10000
	CodecIDPCMS16BE CodecID = 0x10001
	CodecIDPCMU8    CodecID = 0x10005
	CodecIDPCMMulaw CodecID = 0x10006
	CodecIDPCMAlaw  CodecID = 0x10007
	CodecIDPCMS32LE CodecID = 0x10008
	CodecIDPCMF32LE CodecID = 0x10015
)

// Codec capabilities, a subset of AV_CODEC_CAP_*.
const (
	CapDelay             = 1 << 5
	CapVariableFrameSize = 1 << 16
)

// Codec mirrors AVCodec: a registered encoder or decoder.
type Codec struct {
	Name         string
	LongName     string
	Type         MediaType
	ID           CodecID
	Capabilities int
	SampleFmts   []SampleFormat
	PixFmts      []PixelFormat

	encoder bool
	newImpl func() codecImpl
}

// IsEncoder is av_codec_is_encoder.
func (c *Codec) IsEncoder() bool { return c != nil && c.encoder }

// IsDecoder is av_codec_is_decoder.
func (c *Codec) IsDecoder() bool { return c != nil && !c.encoder }

// codecImpl is the per-context private codec state.
type codecImpl interface {
	init(ctx *CodecContext) Status
	// decode turns one packet into one frame.
	decode(ctx *CodecContext, frame *Frame, pkt *Packet) Status
	// encode turns one frame into one packet.
	encode(ctx *CodecContext, pkt *Packet, frame *Frame) Status
}

var (
	codecsMu      sync.RWMutex
	codecRegistry []*Codec
)

func registerCodec(c *Codec) {
	unlock, _ := lockCodecs()
	defer unlock()
	codecsMu.Lock()
	defer codecsMu.Unlock()
	codecRegistry = append(codecRegistry, c)
}

func findCodec(match func(*Codec) bool) *Codec {
	codecsMu.RLock()
	defer codecsMu.RUnlock()
	for _, c := range codecRegistry {
		if match(c) {
			return c
		}
	}
	return nil
}

// FindDecoder is avcodec_find_decoder.
func FindDecoder(id CodecID) *Codec {
	return findCodec(func(c *Codec) bool { return !c.encoder && c.ID == id })
}

// FindEncoder is avcodec_find_encoder.
func FindEncoder(id CodecID) *Codec {
	return findCodec(func(c *Codec) bool { return c.encoder && c.ID == id })
}

// FindDecoderByName is avcodec_find_decoder_by_name.
func FindDecoderByName(name string) *Codec {
	return findCodec(func(c *Codec) bool { return !c.encoder && c.Name == name })
}

// FindEncoderByName is avcodec_find_encoder_by_name.
func FindEncoderByName(name string) *Codec {
	return findCodec(func(c *Codec) bool { return c.encoder && c.Name == name })
}

// Codecs is the av_codec_iterate sequence.
func Codecs() []*Codec {
	codecsMu.RLock()
	defer codecsMu.RUnlock()
	return append([]*Codec(nil), codecRegistry...)
}

// CodecName is avcodec_get_name.
func CodecName(id CodecID) string {
	if c := findCodec(func(c *Codec) bool { return c.ID == id }); c != nil {
		return c.Name
	}
	if id == CodecIDNone {
		return "none"
	}
	return "unknown_codec"
}

// CodecMediaType is avcodec_get_type.
func CodecMediaType(id CodecID) MediaType {
	if c := findCodec(func(c *Codec) bool { return c.ID == id }); c != nil {
		return c.Type
	}
	return MediaTypeUnknown
}

// CodecParameters mirrors AVCodecParameters.
type CodecParameters struct {
	CodecType          MediaType
	CodecID            CodecID
	CodecTag           uint32
	BitRate            int64
	Format             int
	Width              int
	Height             int
	SampleAspectRatio  Rational
	SampleRate         int
	ChannelLayout      uint64
	Channels           int
	FrameSize          int
	BlockAlign         int
	BitsPerCodedSample int
	Extradata          []byte
}

// NewCodecParameters is avcodec_parameters_alloc.
func NewCodecParameters() *CodecParameters {
	return &CodecParameters{CodecType: MediaTypeUnknown, Format: -1, SampleAspectRatio: Rational{0, 1}}
}

// Copy is avcodec_parameters_copy.
func (p *CodecParameters) Copy(src *CodecParameters) {
	*p = *src
	p.Extradata = append([]byte(nil), src.Extradata...)
}

// CodecContext mirrors AVCodecContext.
type CodecContext struct {
	Codec     *Codec
	CodecType MediaType
	CodecID   CodecID
	BitRate   int64
	Flags     int
	TimeBase  Rational

	Width             int
	Height            int
	PixFmt            PixelFormat
	SampleAspectRatio Rational
	Framerate         Rational

	SampleRate    int
	SampleFmt     SampleFormat
	ChannelLayout uint64
	Channels      int
	FrameSize     int
	BlockAlign    int

	ThreadCount      int
	RefCountedFrames bool

	impl     codecImpl
	opened   bool
	draining bool
	frames   []*Frame
	packets  []*Packet
	// scratch keeps decoder-owned data alive for non ref-counted output.
	scratch *Frame
}

// AllocContext3 is avcodec_alloc_context3.
func AllocContext3(codec *Codec) *CodecContext {
	c := &CodecContext{
		CodecType:         MediaTypeUnknown,
		PixFmt:            PixFmtNone,
		SampleFmt:         SampleFmtNone,
		SampleAspectRatio: Rational{0, 1},
		TimeBase:          Rational{0, 1},
	}
	if codec != nil {
		c.Codec = codec
		c.CodecType = codec.Type
		c.CodecID = codec.ID
	}
	return c
}

// ParametersToContext is avcodec_parameters_to_context.
func (c *CodecContext) ParametersToContext(p *CodecParameters) Status {
	c.CodecType = p.CodecType
	c.CodecID = p.CodecID
	c.BitRate = p.BitRate
	c.SampleAspectRatio = p.SampleAspectRatio
	c.BlockAlign = p.BlockAlign
	switch p.CodecType {
	case MediaTypeVideo:
		c.PixFmt = PixelFormat(p.Format)
		c.Width, c.Height = p.Width, p.Height
	case MediaTypeAudio:
		c.SampleFmt = SampleFormat(p.Format)
		c.SampleRate = p.SampleRate
		c.ChannelLayout = p.ChannelLayout
		c.Channels = p.Channels
		c.FrameSize = p.FrameSize
	}
	return OK
}

// ParametersFromContext is avcodec_parameters_from_context.
func (c *CodecContext) ParametersFromContext(p *CodecParameters) Status {
	*p = *NewCodecParameters()
	p.CodecType = c.CodecType
	p.CodecID = c.CodecID
	p.BitRate = c.BitRate
	p.SampleAspectRatio = c.SampleAspectRatio
	p.BlockAlign = c.BlockAlign
	switch c.CodecType {
	case MediaTypeVideo:
		p.Format = int(c.PixFmt)
		p.Width, p.Height = c.Width, c.Height
	case MediaTypeAudio:
		p.Format = int(c.SampleFmt)
		p.SampleRate = c.SampleRate
		p.ChannelLayout = c.ChannelLayout
		p.Channels = c.Channels
		p.FrameSize = c.FrameSize
		p.BitsPerCodedSample = pcmBits(c.CodecID)
	}
	return OK
}

// IsOpen is avcodec_is_open.
func (c *CodecContext) IsOpen() bool { return c.opened }

// Open2 is avcodec_open2. Options it understands are removed from opts;
// the rest are left for the caller to inspect.
func (c *CodecContext) Open2(codec *Codec, opts map[string]string) Status {
	unlock, st := lockCodecs()
	defer unlock()
	if st.Failed() {
		return st
	}
	if c.opened {
		return EINVAL
	}
	if codec == nil {
		codec = c.Codec
	}
	if codec == nil || (c.Codec != nil && c.Codec != codec) {
		return EINVAL
	}
	if c.CodecID != CodecIDNone && c.CodecID != codec.ID {
		return EINVAL
	}
	c.Codec, c.CodecID, c.CodecType = codec, codec.ID, codec.Type
	if st := c.applyOptions(opts); st.Failed() {
		return st
	}
	if c.ThreadCount == 0 {
		c.ThreadCount = 1
	}
	impl := codec.newImpl()
	if st := impl.init(c); st.Failed() {
		return st
	}
	c.impl = impl
	c.opened = true
	c.draining = false
	return OK
}

func (c *CodecContext) applyOptions(opts map[string]string) Status {
	for k, v := range opts {
		var err error
		switch k {
		case "threads":
			c.ThreadCount, err = strconv.Atoi(v)
		case "refcounted_frames":
			c.RefCountedFrames = v == "1" || v == "true"
		case "b":
			c.BitRate, err = strconv.ParseInt(v, 10, 64)
		case "ar":
			c.SampleRate, err = strconv.Atoi(v)
		case "ac":
			c.Channels, err = strconv.Atoi(v)
		case "sample_fmt":
			if c.SampleFmt = SampleFormatByName(v); c.SampleFmt == SampleFmtNone {
				return EINVAL
			}
		case "pixel_format":
			if c.PixFmt = PixelFormatByName(v); c.PixFmt == PixFmtNone {
				return EINVAL
			}
		case "video_size":
			_, err = scanSize(v, &c.Width, &c.Height)
		default:
			continue
		}
		if err != nil {
			return EINVAL
		}
		delete(opts, k)
	}
	return OK
}

func scanSize(v string, w, h *int) (int, error) {
	for i := 0; i < len(v); i++ {
		if v[i] == 'x' {
			var err error
			if *w, err = strconv.Atoi(v[:i]); err != nil {
				return 0, err
			}
			if *h, err = strconv.Atoi(v[i+1:]); err != nil {
				return 0, err
			}
			return 2, nil
		}
	}
	return 0, strconv.ErrSyntax
}

// Close is avcodec_close.
func (c *CodecContext) Close() Status {
	unlock, _ := lockCodecs()
	defer unlock()
	c.FlushBuffers()
	c.impl = nil
	c.opened = false
	return OK
}

// FlushBuffers is avcodec_flush_buffers.
func (c *CodecContext) FlushBuffers() {
	for _, f := range c.frames {
		f.Unref()
	}
	for _, p := range c.packets {
		p.Unref()
	}
	c.frames, c.packets = nil, nil
	c.draining = false
	if c.scratch != nil {
		c.scratch.Unref()
		c.scratch = nil
	}
}

// SendPacket is avcodec_send_packet. A nil or empty packet starts draining.
func (c *CodecContext) SendPacket(pkt *Packet) Status {
	if !c.opened || !c.Codec.IsDecoder() {
		return EINVAL
	}
	if c.draining {
		return EOF
	}
	if pkt == nil || len(pkt.Data) == 0 {
		c.draining = true
		return OK
	}
	if len(c.frames) > 0 {
		return EAGAIN
	}
	frame := FrameAlloc()
	if st := c.impl.decode(c, frame, pkt); st.Failed() {
		frame.Unref()
		return st
	}
	frame.Pts = pkt.Pts
	frame.PktDts = pkt.Dts
	frame.BestEffortTimestamp = pkt.Pts
	if frame.BestEffortTimestamp == NoPTS {
		frame.BestEffortTimestamp = pkt.Dts
	}
	if frame.Duration == 0 {
		frame.Duration = pkt.Duration
	}
	c.frames = append(c.frames, frame)
	return OK
}

// ReceiveFrame is avcodec_receive_frame.
func (c *CodecContext) ReceiveFrame(frame *Frame) Status {
	if !c.opened || !c.Codec.IsDecoder() {
		return EINVAL
	}
	if len(c.frames) == 0 {
		if c.draining {
			return EOF
		}
		return EAGAIN
	}
	next := c.frames[0]
	c.frames = c.frames[1:]
	frame.Unref()
	if c.RefCountedFrames {
		frame.MoveRef(next)
		return OK
	}
	// Hand out decoder-owned planes valid until the next call.
	if c.scratch != nil {
		c.scratch.Unref()
	}
	c.scratch = next
	frame.CopyProps(next)
	frame.copyGeometry(next)
	frame.Data = next.Data
	return OK
}

// SendFrame is avcodec_send_frame. A nil frame starts draining.
func (c *CodecContext) SendFrame(frame *Frame) Status {
	if !c.opened || !c.Codec.IsEncoder() {
		return EINVAL
	}
	if c.draining {
		return EOF
	}
	if frame == nil {
		c.draining = true
		return OK
	}
	if len(c.packets) > 0 {
		return EAGAIN
	}
	pkt := PacketAlloc()
	if st := c.impl.encode(c, pkt, frame); st.Failed() {
		pkt.Unref()
		return st
	}
	pkt.Pts = frame.Pts
	pkt.Dts = frame.Pts
	c.packets = append(c.packets, pkt)
	return OK
}

// ReceivePacket is avcodec_receive_packet.
func (c *CodecContext) ReceivePacket(pkt *Packet) Status {
	if !c.opened || !c.Codec.IsEncoder() {
		return EINVAL
	}
	if len(c.packets) == 0 {
		if c.draining {
			return EOF
		}
		return EAGAIN
	}
	next := c.packets[0]
	c.packets = c.packets[1:]
	pkt.Unref()
	pkt.MoveRef(next)
	return OK
}
