package native

import (
	"encoding/binary"
)

func init() {
	for _, d := range pcmCodecs {
		d := d
		registerCodec(&Codec{
			Name: d.name, LongName: d.long, Type: MediaTypeAudio, ID: d.id,
			Capabilities: CapVariableFrameSize,
			SampleFmts:   []SampleFormat{d.fmt},
			encoder:      true,
			newImpl:      func() codecImpl { return &pcmCodec{desc: d} },
		})
		registerCodec(&Codec{
			Name: d.name, LongName: d.long, Type: MediaTypeAudio, ID: d.id,
			SampleFmts: []SampleFormat{d.fmt},
			newImpl:    func() codecImpl { return &pcmCodec{desc: d} },
		})
	}
}

type pcmDesc struct {
	id   CodecID
	name string
	long string
	fmt  SampleFormat // decoded sample format
	bits int          // coded bits per sample
}

var pcmCodecs = []pcmDesc{
	{CodecIDPCMS16LE, "pcm_s16le", "PCM signed 16-bit little-endian", SampleFmtS16, 16},
	{CodecIDPCMS16BE, "pcm_s16be", "PCM signed 16-bit big-endian", SampleFmtS16, 16},
	{CodecIDPCMU8, "pcm_u8", "PCM unsigned 8-bit", SampleFmtU8, 8},
	{CodecIDPCMS32LE, "pcm_s32le", "PCM signed 32-bit little-endian", SampleFmtS32, 32},
	{CodecIDPCMF32LE, "pcm_f32le", "PCM 32-bit floating point little-endian", SampleFmtFLT, 32},
	{CodecIDPCMMulaw, "pcm_mulaw", "PCM mu-law / G.711 mu-law", SampleFmtS16, 8},
	{CodecIDPCMAlaw, "pcm_alaw", "PCM A-law / G.711 A-law", SampleFmtS16, 8},
}

func pcmBits(id CodecID) int {
	for _, d := range pcmCodecs {
		if d.id == id {
			return d.bits
		}
	}
	return 0
}

type pcmCodec struct {
	desc pcmDesc
}

func (p *pcmCodec) init(ctx *CodecContext) Status {
	if ctx.Channels == 0 {
		ctx.Channels = LayoutChannels(ctx.ChannelLayout)
	}
	if ctx.ChannelLayout == 0 {
		ctx.ChannelLayout = DefaultLayout(ctx.Channels)
	}
	if ctx.Channels <= 0 || ctx.SampleRate <= 0 {
		return EINVAL
	}
	if ctx.Channels != LayoutChannels(ctx.ChannelLayout) {
		return EINVAL
	}
	if ctx.Codec.IsEncoder() {
		if ctx.SampleFmt == SampleFmtNone {
			ctx.SampleFmt = p.desc.fmt
		}
		if ctx.SampleFmt != p.desc.fmt {
			return EINVAL
		}
		ctx.FrameSize = 0
	} else {
		ctx.SampleFmt = p.desc.fmt
	}
	ctx.BlockAlign = ctx.Channels * p.desc.bits / 8
	if ctx.TimeBase.Num == 0 {
		ctx.TimeBase = Rational{1, ctx.SampleRate}
	}
	if ctx.BitRate == 0 {
		ctx.BitRate = int64(ctx.SampleRate * ctx.Channels * p.desc.bits)
	}
	return OK
}

func (p *pcmCodec) decode(ctx *CodecContext, frame *Frame, pkt *Packet) Status {
	coded := p.desc.bits / 8
	n := len(pkt.Data) / (coded * ctx.Channels)
	if n == 0 {
		return InvalidData
	}
	frame.Format = int(ctx.SampleFmt)
	frame.NbSamples = n
	frame.Channels = ctx.Channels
	frame.ChannelLayout = ctx.ChannelLayout
	frame.SampleRate = ctx.SampleRate
	if st := frame.GetBuffer(0); st.Failed() {
		return st
	}
	total := n * ctx.Channels
	src, dst := pkt.Data, frame.Data[0]
	switch p.desc.id {
	case CodecIDPCMS16BE:
		for i := 0; i < total; i++ {
			binary.LittleEndian.PutUint16(dst[2*i:], binary.BigEndian.Uint16(src[2*i:]))
		}
	case CodecIDPCMMulaw:
		for i := 0; i < total; i++ {
			binary.LittleEndian.PutUint16(dst[2*i:], uint16(MulawToLinear(src[i])))
		}
	case CodecIDPCMAlaw:
		for i := 0; i < total; i++ {
			binary.LittleEndian.PutUint16(dst[2*i:], uint16(AlawToLinear(src[i])))
		}
	default:
		copy(dst, src[:total*coded])
	}
	frame.Duration = int64(n)
	return OK
}

func (p *pcmCodec) encode(ctx *CodecContext, pkt *Packet, frame *Frame) Status {
	if frame.Format != int(ctx.SampleFmt) || frame.Channels != ctx.Channels {
		return EINVAL
	}
	n := frame.NbSamples
	total := n * ctx.Channels
	coded := p.desc.bits / 8
	buf := BufferAlloc(total * coded)
	src, dst := frame.Data[0], buf.Data
	switch p.desc.id {
	case CodecIDPCMS16BE:
		for i := 0; i < total; i++ {
			binary.BigEndian.PutUint16(dst[2*i:], binary.LittleEndian.Uint16(src[2*i:]))
		}
	case CodecIDPCMMulaw:
		for i := 0; i < total; i++ {
			dst[i] = LinearToMulaw(int16(binary.LittleEndian.Uint16(src[2*i:])))
		}
	case CodecIDPCMAlaw:
		for i := 0; i < total; i++ {
			dst[i] = LinearToAlaw(int16(binary.LittleEndian.Uint16(src[2*i:])))
		}
	default:
		copy(dst, src[:total*coded])
	}
	pkt.Buf = buf
	pkt.Data = buf.Data
	pkt.Duration = int64(n)
	pkt.Flags |= PktFlagKey
	return OK
}

// MulawToLinear decodes one G.711 mu-law byte.
func MulawToLinear(u byte) int16 {
	u = ^u
	t := (int(u&0x0F) << 3) + 0x84
	t <<= (u & 0x70) >> 4
	if u&0x80 != 0 {
		return int16(0x84 - t)
	}
	return int16(t - 0x84)
}

// LinearToMulaw encodes one sample as G.711 mu-law.
func LinearToMulaw(s int16) byte {
	const bias, clip = 0x84, 32635
	v := int(s)
	sign := 0
	if v < 0 {
		sign = 0x80
		v = -v
	}
	if v > clip {
		v = clip
	}
	v += bias
	exp := 7
	for mask := 0x4000; v&mask == 0 && exp > 0; mask >>= 1 {
		exp--
	}
	mantissa := (v >> (exp + 3)) & 0x0F
	return ^byte(sign | exp<<4 | mantissa)
}

// AlawToLinear decodes one G.711 A-law byte.
func AlawToLinear(a byte) int16 {
	a ^= 0x55
	t := int(a&0x0F) << 4
	seg := int(a&0x70) >> 4
	switch seg {
	case 0:
		t += 8
	case 1:
		t += 0x108
	default:
		t += 0x108
		t <<= seg - 1
	}
	if a&0x80 != 0 {
		return int16(t)
	}
	return int16(-t)
}

var alawSegEnd = [8]int{0x1F, 0x3F, 0x7F, 0xFF, 0x1FF, 0x3FF, 0x7FF, 0xFFF}

// LinearToAlaw encodes one sample as G.711 A-law.
func LinearToAlaw(s int16) byte {
	pcm := int(s) >> 3
	mask := 0xD5
	if pcm < 0 {
		mask = 0x55
		pcm = -pcm - 1
	}
	seg := 8
	for i, end := range alawSegEnd {
		if pcm <= end {
			seg = i
			break
		}
	}
	if seg >= 8 {
		return byte(0x7F ^ mask)
	}
	aval := seg << 4
	if seg < 2 {
		aval |= (pcm >> 1) & 0x0F
	} else {
		aval |= (pcm >> seg) & 0x0F
	}
	return byte(aval ^ mask)
}
