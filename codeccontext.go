package av

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/thesyncim/av/internal/native"
)

// CodecFlagGlobalHeader asks the encoder to place headers in extradata.
const CodecFlagGlobalHeader = 1 << 22

// CodecContext drives one encoder or decoder.
//
// Decoding and encoding follow the send/receive protocol underneath: a call
// that produces nothing yet, or nothing any more after draining, returns a
// null frame or packet and no error.
type CodecContext struct {
	id  string
	log *logrus.Entry

	ctx    *native.CodecContext
	codec  Codec
	dir    Direction
	stream *Stream
}

// NewDecoder returns a decoder for st with the stream's codec parameters
// and time base. The decoder codec is looked up from the stream.
func NewDecoder(st *Stream) (*CodecContext, error) {
	const op = "new decoder"
	ns, err := st.check(op)
	if err != nil {
		return nil, err
	}
	codec := FindDecodingCodec(CodecID(ns.Codecpar.CodecID))
	c := newCodecContext(codec, DirectionDecoding, st)
	if stt := c.ctx.ParametersToContext(ns.Codecpar); stt.Failed() {
		return nil, nativeErr(op, stt)
	}
	c.ctx.TimeBase = ns.TimeBase
	return c, nil
}

// NewEncoder returns an encoder for codec. When st is not nil the
// stream's codec parameters are filled in on Open.
func NewEncoder(codec Codec, st *Stream) (*CodecContext, error) {
	const op = "new encoder"
	if st != nil {
		if _, err := st.check(op); err != nil {
			return nil, err
		}
	}
	if !codec.IsNull() && !codec.CanEncode() {
		return nil, newError(KindInvalidParameters, op, "%s is not an encoder", codec)
	}
	return newCodecContext(codec, DirectionEncoding, st), nil
}

func newCodecContext(codec Codec, dir Direction, st *Stream) *CodecContext {
	ctx := native.AllocContext3(codec.c)
	ctx.RefCountedFrames = true
	id := uuid.NewString()
	return &CodecContext{
		id:     id,
		log:    componentLogger("codec").WithFields(logrus.Fields{"ctx_id": id, "direction": dir.String()}),
		ctx:    ctx,
		codec:  codec,
		dir:    dir,
		stream: st,
	}
}

func (c *CodecContext) ID() string               { return c.id }
func (c *CodecContext) Direction() Direction     { return c.dir }
func (c *CodecContext) Codec() Codec             { return c.codec }
func (c *CodecContext) Stream() *Stream          { return c.stream }
func (c *CodecContext) IsOpened() bool           { return c.ctx.IsOpen() }
func (c *CodecContext) IsValid() bool            { return c.ctx != nil && !c.codec.IsNull() }
func (c *CodecContext) MediaType() MediaType     { return MediaType(c.ctx.CodecType) }
func (c *CodecContext) RefCountedFrames() bool   { return c.ctx.RefCountedFrames }
func (c *CodecContext) ThreadCount() int         { return c.ctx.ThreadCount }
func (c *CodecContext) TimeBase() Rational       { return fromNativeRational(c.ctx.TimeBase) }
func (c *CodecContext) BitRate() int64           { return c.ctx.BitRate }
func (c *CodecContext) Width() int               { return c.ctx.Width }
func (c *CodecContext) Height() int              { return c.ctx.Height }
func (c *CodecContext) PixelFormat() PixelFormat { return PixelFormat(c.ctx.PixFmt) }
func (c *CodecContext) FrameRate() Rational      { return fromNativeRational(c.ctx.Framerate) }
func (c *CodecContext) SampleRate() int          { return c.ctx.SampleRate }
func (c *CodecContext) SampleFormat() SampleFormat {
	return SampleFormat(c.ctx.SampleFmt)
}
func (c *CodecContext) ChannelLayout() ChannelLayout { return ChannelLayout(c.ctx.ChannelLayout) }
func (c *CodecContext) Channels() int                { return c.ctx.Channels }

// FrameSize is the number of samples per channel an audio encoder wants in
// every frame, or 0 when any size is accepted.
func (c *CodecContext) FrameSize() int { return c.ctx.FrameSize }

func (c *CodecContext) IsFlags(flags int) bool { return c.ctx.Flags&flags == flags }

// settable reports whether parameters may still change.
func (c *CodecContext) settable(op string) error {
	if c.ctx.IsOpen() {
		return newError(KindAlreadyOpen, op, "codec context is open")
	}
	return nil
}

// SetCodec replaces the codec before Open.
func (c *CodecContext) SetCodec(codec Codec) error {
	const op = "set codec"
	if err := c.settable(op); err != nil {
		return err
	}
	if codec.IsNull() {
		return newError(KindInvalidParameters, op, "null codec")
	}
	if c.dir == DirectionEncoding && !codec.CanEncode() || c.dir == DirectionDecoding && !codec.CanDecode() {
		return newError(KindInvalidParameters, op, "%s cannot be used for %s", codec, c.dir)
	}
	c.codec = codec
	c.ctx.Codec = codec.c
	c.ctx.CodecID = codec.c.ID
	c.ctx.CodecType = codec.c.Type
	return nil
}

// SetRefCountedFrames controls whether decoded frames own their planes.
// Without it a decoded frame is only valid until the next decode call.
func (c *CodecContext) SetRefCountedFrames(on bool) error {
	if err := c.settable("set refcounted frames"); err != nil {
		return err
	}
	c.ctx.RefCountedFrames = on
	return nil
}

func (c *CodecContext) SetThreadCount(n int) error {
	if err := c.settable("set thread count"); err != nil {
		return err
	}
	c.ctx.ThreadCount = n
	return nil
}

func (c *CodecContext) SetTimeBase(tb Rational) error {
	if err := c.settable("set time base"); err != nil {
		return err
	}
	c.ctx.TimeBase = tb.native()
	return nil
}

func (c *CodecContext) SetBitRate(br int64) error {
	if err := c.settable("set bit rate"); err != nil {
		return err
	}
	c.ctx.BitRate = br
	return nil
}

func (c *CodecContext) SetWidth(w int) error {
	if err := c.settable("set width"); err != nil {
		return err
	}
	c.ctx.Width = w
	return nil
}

func (c *CodecContext) SetHeight(h int) error {
	if err := c.settable("set height"); err != nil {
		return err
	}
	c.ctx.Height = h
	return nil
}

func (c *CodecContext) SetPixelFormat(pf PixelFormat) error {
	if err := c.settable("set pixel format"); err != nil {
		return err
	}
	c.ctx.PixFmt = native.PixelFormat(pf)
	return nil
}

func (c *CodecContext) SetFrameRate(r Rational) error {
	if err := c.settable("set frame rate"); err != nil {
		return err
	}
	c.ctx.Framerate = r.native()
	return nil
}

func (c *CodecContext) SetSampleRate(rate int) error {
	if err := c.settable("set sample rate"); err != nil {
		return err
	}
	c.ctx.SampleRate = rate
	return nil
}

func (c *CodecContext) SetSampleFormat(sf SampleFormat) error {
	if err := c.settable("set sample format"); err != nil {
		return err
	}
	c.ctx.SampleFmt = native.SampleFormat(sf)
	return nil
}

// SetChannelLayout also sets the channel count.
func (c *CodecContext) SetChannelLayout(l ChannelLayout) error {
	if err := c.settable("set channel layout"); err != nil {
		return err
	}
	c.ctx.ChannelLayout = uint64(l)
	c.ctx.Channels = l.Channels()
	return nil
}

func (c *CodecContext) AddFlags(flags int) {
	c.ctx.Flags |= flags
}

func (c *CodecContext) ClearFlags(flags int) {
	c.ctx.Flags &^= flags
}

// CodecParameters returns the current parameters of the context.
func (c *CodecContext) CodecParameters() CodecParameters {
	p := native.NewCodecParameters()
	c.ctx.ParametersFromContext(p)
	return codecParametersFromNative(p)
}

// SetCodecParameters copies cp into the context before Open.
func (c *CodecContext) SetCodecParameters(cp CodecParameters) error {
	const op = "set codec parameters"
	if err := c.settable(op); err != nil {
		return err
	}
	p := native.NewCodecParameters()
	cp.toNative(p)
	if st := c.ctx.ParametersToContext(p); st.Failed() {
		return nativeErr(op, st)
	}
	return nil
}

// CopyParameters copies the codec parameters of src into c before Open.
func (c *CodecContext) CopyParameters(src *CodecContext) error {
	const op = "copy codec parameters"
	if src == nil || !src.IsValid() {
		return newError(KindInvalidParameters, op, "invalid source context")
	}
	if err := c.settable(op); err != nil {
		return err
	}
	p := native.NewCodecParameters()
	src.ctx.ParametersFromContext(p)
	if st := c.ctx.ParametersToContext(p); st.Failed() {
		return nativeErr(op, st)
	}
	c.ctx.TimeBase = src.ctx.TimeBase
	return nil
}

// IsValidForEncode reports whether the context has what an encoder needs
// to open: a codec able to encode, a time base or enough to derive one,
// and a media format the codec supports.
func (c *CodecContext) IsValidForEncode() bool {
	if c.dir != DirectionEncoding || c.codec.IsNull() || !c.codec.CanEncode() {
		return false
	}
	if c.ctx.TimeBase.Num == 0 && defaultEncoderTimeBase(c.ctx).IsZero() {
		return false
	}
	switch MediaType(c.ctx.CodecType) {
	case MediaTypeAudio:
		sf := c.SampleFormat()
		if sf == SampleFormatNone || c.ctx.SampleRate <= 0 || c.ctx.Channels <= 0 && c.ctx.ChannelLayout == 0 {
			return false
		}
		return supports(c.codec.SupportedSampleFormats(), sf)
	case MediaTypeVideo:
		pf := c.PixelFormat()
		if pf == PixelFormatNone || c.ctx.Width <= 0 || c.ctx.Height <= 0 {
			return false
		}
		return supports(c.codec.SupportedPixelFormats(), pf)
	default:
		return false
	}
}

// supports treats an empty list as accepting anything.
func supports[T comparable](list []T, v T) bool {
	if len(list) == 0 {
		return true
	}
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// Open opens the codec. Options the codec applied are deleted from opts.
// An encoder bound to a stream copies its parameters, and its time base
// when the stream has none, to the stream.
func (c *CodecContext) Open(opts Options) error {
	const op = "codec open"
	if c.ctx.IsOpen() {
		return newError(KindAlreadyOpen, op, "codec context is already open")
	}
	if c.codec.IsNull() {
		return newError(KindCodecNotSet, op, "no codec for %s", CodecID(c.ctx.CodecID))
	}
	if c.dir == DirectionEncoding && c.ctx.TimeBase.Num == 0 {
		c.ctx.TimeBase = defaultEncoderTimeBase(c.ctx).native()
	}
	if st := c.ctx.Open2(c.codec.c, opts); st.Failed() {
		return wrapStatus(KindCodecOpenFailed, op, st)
	}
	if c.dir == DirectionEncoding && c.stream != nil {
		ns, err := c.stream.check(op)
		if err != nil {
			c.ctx.Close()
			return err
		}
		c.ctx.ParametersFromContext(ns.Codecpar)
		if ns.TimeBase.Num == 0 {
			ns.TimeBase = c.ctx.TimeBase
		}
	}
	c.log.WithFields(logrus.Fields{
		"codec":     c.codec.Name(),
		"time_base": c.TimeBase().String(),
		"threads":   c.ctx.ThreadCount,
	}).Debug("codec opened")
	return nil
}

// defaultEncoderTimeBase is 1/sample_rate for audio and the inverse frame
// rate for video.
func defaultEncoderTimeBase(ctx *native.CodecContext) Rational {
	switch MediaType(ctx.CodecType) {
	case MediaTypeAudio:
		if ctx.SampleRate > 0 {
			return Rational{1, ctx.SampleRate}
		}
	case MediaTypeVideo:
		if ctx.Framerate.Num > 0 {
			return fromNativeRational(ctx.Framerate).Invert()
		}
	}
	return Rational{0, 1}
}

// Close releases the codec. The context can be opened again.
func (c *CodecContext) Close() error {
	if !c.ctx.IsOpen() {
		return nil
	}
	if st := c.ctx.Close(); st.Failed() {
		return nativeErr("codec close", st)
	}
	return nil
}

// FlushBuffers drops pending input and output and ends draining.
func (c *CodecContext) FlushBuffers() {
	c.ctx.FlushBuffers()
}

func (c *CodecContext) checkCoding(op string, dir Direction, mt MediaType) error {
	if !c.ctx.IsOpen() {
		return newError(KindInvalidStateTransition, op, "codec context is not open")
	}
	if c.dir != dir {
		return newError(KindInvalidParameters, op, "context is for %s", c.dir)
	}
	if MediaType(c.ctx.CodecType) != mt {
		return newError(KindInvalidParameters, op, "context handles %s", MediaType(c.ctx.CodecType))
	}
	return nil
}

// decode sends pkt and receives at most one frame. A null pkt starts
// draining.
func (c *CodecContext) decode(op string, pkt *Packet) (*native.Frame, error) {
	var raw *native.Packet
	if pkt.IsValid() {
		raw = pkt.raw()
	}
	if st := c.ctx.SendPacket(raw); st.Failed() && st != native.EAGAIN && st != native.EOF {
		return nil, nativeErr(op, st)
	}
	f := native.FrameAlloc()
	st := c.ctx.ReceiveFrame(f)
	if st == native.EAGAIN || st == native.EOF {
		return nil, nil
	}
	if st.Failed() {
		return nil, nativeErr(op, st)
	}
	if f.Pts == NoPTS {
		f.Pts = f.BestEffortTimestamp
	}
	metrics.framesDecoded.Inc()
	return f, nil
}

func (c *CodecContext) decodedFrame(f *native.Frame, pkt *Packet) frame {
	fr := newFrame(f)
	fr.timeBase = c.TimeBase()
	if pkt.IsValid() {
		if !pkt.TimeBase().IsZero() {
			fr.timeBase = pkt.TimeBase()
		}
		fr.streamIndex = pkt.StreamIndex()
	}
	fr.complete = true
	return fr
}

// DecodeAudio decodes pkt. A null pkt drains the decoder.
func (c *CodecContext) DecodeAudio(pkt *Packet) (*AudioFrame, error) {
	const op = "decode audio"
	if err := c.checkCoding(op, DirectionDecoding, MediaTypeAudio); err != nil {
		return nil, err
	}
	f, err := c.decode(op, pkt)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return &AudioFrame{nullFrame()}, nil
	}
	return &AudioFrame{c.decodedFrame(f, pkt)}, nil
}

// DecodeVideo decodes pkt. A null pkt drains the decoder.
func (c *CodecContext) DecodeVideo(pkt *Packet) (*VideoFrame, error) {
	const op = "decode video"
	if err := c.checkCoding(op, DirectionDecoding, MediaTypeVideo); err != nil {
		return nil, err
	}
	f, err := c.decode(op, pkt)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return &VideoFrame{nullFrame()}, nil
	}
	return &VideoFrame{c.decodedFrame(f, pkt)}, nil
}

// encode sends fr rescaled to the codec time base and receives at most one
// packet. A null fr starts draining.
func (c *CodecContext) encode(op string, fr *frame) (*Packet, error) {
	tb := c.TimeBase()
	fakePts := NoPTS
	var raw *native.Frame
	if fr != nil && fr.f != nil {
		raw = native.FrameAlloc()
		if st := raw.Ref(fr.f); st.Failed() {
			return nil, nativeErr(op, st)
		}
		defer raw.Unref()
		fakePts = fr.fakePts
		if !fr.timeBase.IsZero() && !tb.IsZero() {
			raw.Pts = fr.timeBase.Rescale(raw.Pts, tb)
			fakePts = fr.timeBase.Rescale(fakePts, tb)
		}
	}
	if st := c.ctx.SendFrame(raw); st.Failed() && st != native.EAGAIN && st != native.EOF {
		return nil, nativeErr(op, st)
	}
	pkt := native.PacketAlloc()
	st := c.ctx.ReceivePacket(pkt)
	if st == native.EAGAIN || st == native.EOF {
		return &Packet{fakePts: NoPTS}, nil
	}
	if st.Failed() {
		return nil, nativeErr(op, st)
	}
	p := wrapNativePacket(pkt, tb)
	if pkt.Pts == NoPTS {
		p.fakePts = fakePts
	}
	if c.stream != nil {
		if idx, err := c.stream.Index(); err == nil {
			p.SetStreamIndex(idx)
		}
	} else if fr != nil {
		p.SetStreamIndex(fr.streamIndex)
	}
	metrics.packetsEncoded.Inc()
	return p, nil
}

// EncodeAudio encodes f. A nil or null f drains the encoder.
func (c *CodecContext) EncodeAudio(f *AudioFrame) (*Packet, error) {
	const op = "encode audio"
	if err := c.checkCoding(op, DirectionEncoding, MediaTypeAudio); err != nil {
		return nil, err
	}
	if f == nil {
		return c.encode(op, nil)
	}
	return c.encode(op, &f.frame)
}

// EncodeVideo encodes f. A nil or null f drains the encoder.
func (c *CodecContext) EncodeVideo(f *VideoFrame) (*Packet, error) {
	const op = "encode video"
	if err := c.checkCoding(op, DirectionEncoding, MediaTypeVideo); err != nil {
		return nil, err
	}
	if f == nil {
		return c.encode(op, nil)
	}
	return c.encode(op, &f.frame)
}
