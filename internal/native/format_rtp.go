package native

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

// RTP over a byte stream, framed with the RFC 4571 two-byte length prefix.
// Only the static audio payload types of RFC 3551 are mapped.

// DefaultRTPMTU bounds the size of one marshalled RTP packet.
const DefaultRTPMTU = 1200

const rtpHeaderSize = 12

type rtpPayloadType struct {
	pt       uint8
	codec    CodecID
	rate     int
	channels int
}

var rtpStaticTypes = []rtpPayloadType{
	{0, CodecIDPCMMulaw, 8000, 1},
	{8, CodecIDPCMAlaw, 8000, 1},
	{10, CodecIDPCMS16BE, 44100, 2},
	{11, CodecIDPCMS16BE, 44100, 1},
}

func rtpTypeByPT(pt uint8) (rtpPayloadType, bool) {
	for _, t := range rtpStaticTypes {
		if t.pt == pt {
			return t, true
		}
	}
	return rtpPayloadType{}, false
}

func rtpTypeFor(par *CodecParameters) (rtpPayloadType, bool) {
	for _, t := range rtpStaticTypes {
		if t.codec == par.CodecID && t.rate == par.SampleRate && t.channels == par.Channels {
			return t, true
		}
	}
	return rtpPayloadType{}, false
}

func init() {
	registerDemuxer(&InputFormat{
		Name:       "rtp4571",
		LongName:   "RTP over RFC 4571 framed byte stream",
		Extensions: []string{"rtp"},
		probe:      probeRTP,
		newDemuxer: func() demuxer { return &rtpDemuxer{streams: map[uint32]*rtpStreamState{}} },
	})
	registerMuxer(&OutputFormat{
		Name:       "rtp4571",
		LongName:   "RTP over RFC 4571 framed byte stream",
		MimeType:   "application/rtp",
		Extensions: []string{"rtp"},
		AudioCodec: CodecIDPCMMulaw,
		Flags:      FmtNoTimestamps,
		newMuxer:   func() muxer { return &rtpMuxer{} },
	})
}

func looksLikeRTP(b []byte) bool {
	var h rtp.Header
	if len(b) < rtpHeaderSize || b[0]>>6 != 2 {
		return false
	}
	if _, err := h.Unmarshal(b); err != nil {
		return false
	}
	_, ok := rtpTypeByPT(h.PayloadType)
	return ok
}

func probeRTP(buf []byte) int {
	score := 0
	for off := 0; off+2 <= len(buf) && score < 2; score++ {
		n := int(binary.BigEndian.Uint16(buf[off:]))
		if n < rtpHeaderSize {
			return 0
		}
		end := off + 2 + n
		if end > len(buf) {
			if looksLikeRTP(buf[off+2:]) {
				return ProbeScoreExtension / 2
			}
			return 0
		}
		if !looksLikeRTP(buf[off+2 : end]) {
			return 0
		}
		off = end
	}
	if score == 2 {
		return ProbeScoreMax / 2
	}
	return 0
}

type rtpStreamState struct {
	index    int
	typ      rtpPayloadType
	lastTS   uint32
	extended int64
}

type rtpDemuxer struct {
	streams    map[uint32]*rtpStreamState
	frame      []byte
	pending    *rtp.Packet
	pendingPos int64
}

func (d *rtpDemuxer) readHeader(s *FormatContext) Status {
	p, pos, st := d.readRTP(s)
	if st.Failed() {
		if st == EOF {
			return InvalidData
		}
		return st
	}
	if _, st := d.stream(s, p); st.Failed() {
		return st
	}
	d.pending, d.pendingPos = p, pos
	return OK
}

func (d *rtpDemuxer) readRTP(s *FormatContext) (*rtp.Packet, int64, Status) {
	pos := s.PB.Tell()
	var hdr [2]byte
	if st := s.PB.ReadFull(hdr[:]); st.Failed() {
		return nil, pos, st
	}
	n := int(binary.BigEndian.Uint16(hdr[:]))
	if n < rtpHeaderSize {
		return nil, pos, InvalidData
	}
	if cap(d.frame) < n {
		d.frame = make([]byte, n)
	}
	d.frame = d.frame[:n]
	if st := s.PB.ReadFull(d.frame); st.Failed() {
		if st == EOF {
			return nil, pos, InvalidData
		}
		return nil, pos, st
	}
	p := &rtp.Packet{}
	if err := p.Unmarshal(d.frame); err != nil {
		return nil, pos, InvalidData
	}
	p.Payload = append([]byte(nil), p.Payload...)
	return p, pos, OK
}

// stream returns the state for the packet's SSRC, adding a stream for a
// new SSRC.
func (d *rtpDemuxer) stream(s *FormatContext, p *rtp.Packet) (*rtpStreamState, Status) {
	if ss, ok := d.streams[p.SSRC]; ok {
		return ss, OK
	}
	typ, ok := rtpTypeByPT(p.PayloadType)
	if !ok {
		return nil, InvalidData
	}
	st := s.NewStream(nil)
	st.ID = int(p.SSRC)
	st.TimeBase = Rational{1, typ.rate}
	st.StartTime = 0
	par := st.Codecpar
	par.CodecType = MediaTypeAudio
	par.CodecID = typ.codec
	par.SampleRate = typ.rate
	par.Channels = typ.channels
	par.ChannelLayout = DefaultLayout(typ.channels)
	par.BitsPerCodedSample = pcmBits(typ.codec)
	par.BlockAlign = typ.channels * par.BitsPerCodedSample / 8
	if dec := FindDecoder(typ.codec); dec != nil && len(dec.SampleFmts) > 0 {
		par.Format = int(dec.SampleFmts[0])
	}
	ss := &rtpStreamState{index: st.Index, typ: typ, lastTS: p.Timestamp}
	d.streams[p.SSRC] = ss
	return ss, OK
}

func (d *rtpDemuxer) readPacket(s *FormatContext, pkt *Packet) Status {
	p, pos := d.pending, d.pendingPos
	d.pending = nil
	if p == nil {
		var st Status
		if p, pos, st = d.readRTP(s); st.Failed() {
			return st
		}
	}
	ss, st := d.stream(s, p)
	if st.Failed() {
		return st
	}
	// Unwrap the 32-bit RTP clock relative to the first packet.
	ss.extended += int64(int32(p.Timestamp - ss.lastTS))
	ss.lastTS = p.Timestamp

	pkt.FromData(p.Payload)
	pkt.StreamIndex = ss.index
	pkt.Pts = ss.extended
	pkt.Dts = ss.extended
	pkt.Pos = pos
	if block := ss.typ.channels * pcmBits(ss.typ.codec) / 8; block > 0 {
		pkt.Duration = int64(len(p.Payload) / block)
	}
	pkt.Flags |= PktFlagKey
	return OK
}

// l16Payloader splits linear PCM on sample-frame boundaries.
type l16Payloader struct {
	block int
}

func (l *l16Payloader) Payload(mtu uint16, payload []byte) [][]byte {
	limit := int(mtu) - int(mtu)%l.block
	if limit <= 0 || len(payload) == 0 {
		return nil
	}
	var out [][]byte
	for len(payload) > 0 {
		n := len(payload)
		if n > limit {
			n = limit
		}
		out = append(out, append([]byte(nil), payload[:n]...))
		payload = payload[n:]
	}
	return out
}

// NewRTPPayloader returns the payloader for a PCM codec. blockAlign is the
// size of one sample frame in bytes. It returns nil for codecs without a
// static RTP mapping.
func NewRTPPayloader(id CodecID, blockAlign int) rtp.Payloader {
	switch id {
	case CodecIDPCMMulaw, CodecIDPCMAlaw:
		return &codecs.G711Payloader{}
	case CodecIDPCMS16BE:
		if blockAlign <= 0 {
			return nil
		}
		return &l16Payloader{block: blockAlign}
	default:
		return nil
	}
}

type rtpMuxStream struct {
	typ       rtpPayloadType
	ssrc      uint32
	baseTS    uint32
	sequencer rtp.Sequencer
	payloader rtp.Payloader
	block     int
	started   bool
}

type rtpMuxer struct {
	mtu     int
	streams []*rtpMuxStream
}

func (m *rtpMuxer) writeHeader(s *FormatContext) Status {
	if len(s.Streams) == 0 {
		return EINVAL
	}
	if m.mtu == 0 {
		m.mtu = DefaultRTPMTU
	}
	for _, st := range s.Streams {
		par := st.Codecpar
		if par.Channels == 0 {
			par.Channels = LayoutChannels(par.ChannelLayout)
		}
		typ, ok := rtpTypeFor(par)
		if !ok {
			return EncoderNotFound
		}
		if st.ID == 0 {
			st.ID = int(uuid.New().ID())
		}
		ms := &rtpMuxStream{
			typ:       typ,
			ssrc:      uint32(st.ID),
			baseTS:    uuid.New().ID(),
			sequencer: rtp.NewRandomSequencer(),
			block:     typ.channels * pcmBits(typ.codec) / 8,
		}
		ms.payloader = NewRTPPayloader(typ.codec, ms.block)
		st.TimeBase = Rational{1, typ.rate}
		m.streams = append(m.streams, ms)
	}
	return OK
}

func (m *rtpMuxer) writePacket(s *FormatContext, pkt *Packet) Status {
	ms := m.streams[pkt.StreamIndex]
	ts := int64(0)
	if pkt.Pts != NoPTS {
		ts = pkt.Pts
	}
	payloads := ms.payloader.Payload(uint16(m.mtu-rtpHeaderSize), pkt.Data)
	for i, payload := range payloads {
		p := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         i == 0 && !ms.started,
				PayloadType:    ms.typ.pt,
				SequenceNumber: ms.sequencer.NextSequenceNumber(),
				Timestamp:      ms.baseTS + uint32(ts),
				SSRC:           ms.ssrc,
			},
			Payload: payload,
		}
		raw, err := p.Marshal()
		if err != nil {
			return InvalidData
		}
		var hdr [2]byte
		binary.BigEndian.PutUint16(hdr[:], uint16(len(raw)))
		if st := s.PB.Write(hdr[:]); st.Failed() {
			return st
		}
		if st := s.PB.Write(raw); st.Failed() {
			return st
		}
		ms.started = true
		ts += int64(len(payload) / ms.block)
	}
	return OK
}

func (m *rtpMuxer) writeTrailer(s *FormatContext) Status {
	return s.PB.Flush()
}
