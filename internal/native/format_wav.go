package native

import (
	"bytes"
	"encoding/binary"
	"io"
)

const (
	waveFormatPCM        = 0x0001
	waveFormatIEEEFloat  = 0x0003
	waveFormatAlaw       = 0x0006
	waveFormatMulaw      = 0x0007
	waveFormatExtensible = 0xFFFE

	wavMaxPacket   = 4096
	wavUnknownSize = 0xFFFFFFFF
)

func init() {
	registerDemuxer(&InputFormat{
		Name:       "wav",
		LongName:   "WAV / WAVE (Waveform Audio)",
		Extensions: []string{"wav"},
		probe:      probeWAV,
		newDemuxer: func() demuxer { return &wavDemuxer{} },
	})
	registerMuxer(&OutputFormat{
		Name:       "wav",
		LongName:   "WAV / WAVE (Waveform Audio)",
		MimeType:   "audio/x-wav",
		Extensions: []string{"wav"},
		AudioCodec: CodecIDPCMS16LE,
		newMuxer:   func() muxer { return &wavMuxer{} },
	})
}

func probeWAV(buf []byte) int {
	if len(buf) < 12 {
		return 0
	}
	if bytes.Equal(buf[0:4], []byte("RIFF")) && bytes.Equal(buf[8:12], []byte("WAVE")) {
		return ProbeScoreMax - 1
	}
	return 0
}

func wavCodecID(tag, bits int) CodecID {
	switch tag {
	case waveFormatPCM:
		switch bits {
		case 8:
			return CodecIDPCMU8
		case 16:
			return CodecIDPCMS16LE
		case 32:
			return CodecIDPCMS32LE
		}
	case waveFormatIEEEFloat:
		if bits == 32 {
			return CodecIDPCMF32LE
		}
	case waveFormatAlaw:
		return CodecIDPCMAlaw
	case waveFormatMulaw:
		return CodecIDPCMMulaw
	}
	return CodecIDNone
}

func wavTag(id CodecID) int {
	switch id {
	case CodecIDPCMU8, CodecIDPCMS16LE, CodecIDPCMS32LE:
		return waveFormatPCM
	case CodecIDPCMF32LE:
		return waveFormatIEEEFloat
	case CodecIDPCMAlaw:
		return waveFormatAlaw
	case CodecIDPCMMulaw:
		return waveFormatMulaw
	}
	return 0
}

type wavDemuxer struct {
	dataStart int64
	dataEnd   int64 // -1 reads until end of stream
	block     int
}

func (d *wavDemuxer) readHeader(s *FormatContext) Status {
	pb := s.PB
	var hdr [12]byte
	if st := pb.ReadFull(hdr[:]); st.Failed() {
		return InvalidData
	}
	if probeWAV(hdr[:]) == 0 {
		return InvalidData
	}
	var st *Stream
	for {
		var ch [8]byte
		if rs := pb.ReadFull(ch[:]); rs.Failed() {
			return InvalidData
		}
		id := string(ch[0:4])
		size := int64(binary.LittleEndian.Uint32(ch[4:8]))
		switch id {
		case "fmt ":
			if size < 16 {
				return InvalidData
			}
			body := make([]byte, size)
			if rs := pb.ReadFull(body); rs.Failed() {
				return InvalidData
			}
			if st = d.parseFmt(s, body); st == nil {
				return InvalidData
			}
		case "data":
			if st == nil {
				return InvalidData
			}
			d.dataStart = pb.Tell()
			d.dataEnd = -1
			if size != wavUnknownSize && size != 0 {
				d.dataEnd = d.dataStart + size
				st.Duration = size / int64(d.block)
				st.NbFrames = st.Duration
			}
			st.StartTime = 0
			return OK
		default:
			if rs := pb.Skip(size + size&1); rs.Failed() {
				return InvalidData
			}
		}
	}
}

func (d *wavDemuxer) parseFmt(s *FormatContext, b []byte) *Stream {
	tag := int(binary.LittleEndian.Uint16(b[0:]))
	channels := int(binary.LittleEndian.Uint16(b[2:]))
	rate := int(binary.LittleEndian.Uint32(b[4:]))
	byteRate := int64(binary.LittleEndian.Uint32(b[8:]))
	blockAlign := int(binary.LittleEndian.Uint16(b[12:]))
	bits := int(binary.LittleEndian.Uint16(b[14:]))
	var layout uint64
	if tag == waveFormatExtensible && len(b) >= 40 {
		layout = uint64(binary.LittleEndian.Uint32(b[20:]))
		tag = int(binary.LittleEndian.Uint16(b[24:]))
	}
	if channels <= 0 || rate <= 0 || blockAlign <= 0 {
		return nil
	}
	if layout == 0 || LayoutChannels(layout) != channels {
		layout = DefaultLayout(channels)
	}
	d.block = blockAlign
	st := s.NewStream(nil)
	par := st.Codecpar
	par.CodecType = MediaTypeAudio
	par.CodecID = wavCodecID(tag, bits)
	par.CodecTag = uint32(tag)
	par.Channels = channels
	par.ChannelLayout = layout
	par.SampleRate = rate
	par.BlockAlign = blockAlign
	par.BitsPerCodedSample = bits
	par.BitRate = byteRate * 8
	if dec := FindDecoder(par.CodecID); dec != nil && len(dec.SampleFmts) > 0 {
		par.Format = int(dec.SampleFmts[0])
	}
	st.TimeBase = Rational{1, rate}
	s.BitRate = par.BitRate
	return st
}

func (d *wavDemuxer) readPacket(s *FormatContext, pkt *Packet) Status {
	pos := s.PB.Tell()
	size := wavMaxPacket - wavMaxPacket%d.block
	if size == 0 {
		size = d.block
	}
	if d.dataEnd >= 0 {
		left := d.dataEnd - pos
		if left < int64(d.block) {
			return EOF
		}
		if left < int64(size) {
			size = int(left - left%int64(d.block))
		}
	}
	buf := BufferAlloc(size)
	n := 0
	for n < size {
		m, st := s.PB.Read(buf.Data[n:])
		if st == EOF {
			break
		}
		if st.Failed() {
			buf.Unref()
			return st
		}
		n += m
	}
	n -= n % d.block
	if n == 0 {
		buf.Unref()
		return EOF
	}
	pkt.Buf = buf
	pkt.Data = buf.Data[:n]
	pkt.StreamIndex = 0
	pkt.Pos = pos
	pkt.Pts = (pos - d.dataStart) / int64(d.block)
	pkt.Dts = pkt.Pts
	pkt.Duration = int64(n / d.block)
	pkt.Flags |= PktFlagKey
	return OK
}

type wavMuxer struct {
	dataStart int64
	dataSize  int64
}

func (m *wavMuxer) writeHeader(s *FormatContext) Status {
	if len(s.Streams) != 1 {
		return EINVAL
	}
	st := s.Streams[0]
	par := st.Codecpar
	tag := wavTag(par.CodecID)
	if par.CodecType != MediaTypeAudio || tag == 0 {
		return EncoderNotFound
	}
	if par.Channels <= 0 {
		par.Channels = LayoutChannels(par.ChannelLayout)
	}
	bits := pcmBits(par.CodecID)
	if par.Channels <= 0 || par.SampleRate <= 0 || bits == 0 {
		return EINVAL
	}
	block := par.Channels * bits / 8
	fmtSize := 16
	if tag != waveFormatPCM {
		fmtSize = 18
	}

	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(wavUnknownSize))
	b.WriteString("WAVEfmt ")
	binary.Write(&b, binary.LittleEndian, uint32(fmtSize))
	binary.Write(&b, binary.LittleEndian, uint16(tag))
	binary.Write(&b, binary.LittleEndian, uint16(par.Channels))
	binary.Write(&b, binary.LittleEndian, uint32(par.SampleRate))
	binary.Write(&b, binary.LittleEndian, uint32(par.SampleRate*block))
	binary.Write(&b, binary.LittleEndian, uint16(block))
	binary.Write(&b, binary.LittleEndian, uint16(bits))
	if fmtSize == 18 {
		binary.Write(&b, binary.LittleEndian, uint16(0))
	}
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(wavUnknownSize))
	if rs := s.PB.Write(b.Bytes()); rs.Failed() {
		return rs
	}
	m.dataStart = s.PB.Tell()
	par.BlockAlign = block
	par.BitsPerCodedSample = bits
	st.TimeBase = Rational{1, par.SampleRate}
	return OK
}

func (m *wavMuxer) writePacket(s *FormatContext, pkt *Packet) Status {
	if len(pkt.Data) == 0 {
		return OK
	}
	m.dataSize += int64(len(pkt.Data))
	return s.PB.Write(pkt.Data)
}

// writeTrailer patches the RIFF and data sizes when the output can seek.
func (m *wavMuxer) writeTrailer(s *FormatContext) Status {
	pb := s.PB
	if m.dataSize&1 != 0 {
		if rs := pb.Write([]byte{0}); rs.Failed() {
			return rs
		}
	}
	if !pb.Seekable() {
		return pb.Flush()
	}
	end := pb.Tell()
	var sz [4]byte
	patches := []struct {
		at  int64
		val int64
	}{
		{4, end - 8},
		{m.dataStart - 4, m.dataSize},
	}
	for _, p := range patches {
		if _, rs := pb.Seek(p.at, io.SeekStart); rs.Failed() {
			return rs
		}
		binary.LittleEndian.PutUint32(sz[:], uint32(p.val))
		if rs := pb.Write(sz[:]); rs.Failed() {
			return rs
		}
	}
	_, rs := pb.Seek(end, io.SeekStart)
	return rs
}
