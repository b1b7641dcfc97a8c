package native

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Format flags, a subset of AVFMT_*.
const (
	FmtNoFile       = 0x0001
	FmtGlobalHeader = 0x0040
	FmtNoTimestamps = 0x0080
	FmtVariableFPS  = 0x0400
)

// Probe scores, identical to AVPROBE_SCORE_*.
const (
	ProbeScoreExtension = 50
	ProbeScoreMax       = 100
	probeBufSize        = 2048
)

// DefaultProbePackets bounds how many packets FindStreamInfo reads ahead.
const DefaultProbePackets = 32

// TimeBaseQ is AV_TIME_BASE_Q.
var TimeBaseQ = Rational{1, 1000000}

// Stream mirrors AVStream.
type Stream struct {
	Index             int
	ID                int
	TimeBase          Rational
	StartTime         int64
	Duration          int64
	NbFrames          int64
	AvgFrameRate      Rational
	RFrameRate        Rational
	SampleAspectRatio Rational
	Codecpar          *CodecParameters
	Metadata          map[string]string

	lastDts int64
}

// CurDts is the dts of the last packet written to or read from the stream.
func (st *Stream) CurDts() int64 { return st.lastDts }

// InputFormat mirrors AVInputFormat.
type InputFormat struct {
	Name       string
	LongName   string
	Extensions []string
	Flags      int

	probe      func(buf []byte) int
	newDemuxer func() demuxer
}

// OutputFormat mirrors AVOutputFormat.
type OutputFormat struct {
	Name       string
	LongName   string
	MimeType   string
	Extensions []string
	AudioCodec CodecID
	VideoCodec CodecID
	Flags      int

	newMuxer func() muxer
}

type demuxer interface {
	readHeader(s *FormatContext) Status
	readPacket(s *FormatContext, pkt *Packet) Status
}

type muxer interface {
	writeHeader(s *FormatContext) Status
	writePacket(s *FormatContext, pkt *Packet) Status
	writeTrailer(s *FormatContext) Status
}

var (
	formatsMu sync.RWMutex
	demuxers  []*InputFormat
	muxers    []*OutputFormat
)

func registerDemuxer(f *InputFormat) {
	formatsMu.Lock()
	defer formatsMu.Unlock()
	demuxers = append(demuxers, f)
}

func registerMuxer(f *OutputFormat) {
	formatsMu.Lock()
	defer formatsMu.Unlock()
	muxers = append(muxers, f)
}

// Demuxers is the av_demuxer_iterate sequence.
func Demuxers() []*InputFormat {
	formatsMu.RLock()
	defer formatsMu.RUnlock()
	return append([]*InputFormat(nil), demuxers...)
}

// Muxers is the av_muxer_iterate sequence.
func Muxers() []*OutputFormat {
	formatsMu.RLock()
	defer formatsMu.RUnlock()
	return append([]*OutputFormat(nil), muxers...)
}

// FindInputFormat is av_find_input_format.
func FindInputFormat(name string) *InputFormat {
	for _, f := range Demuxers() {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func hasExtension(filename string, exts []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}

// GuessFormat is av_guess_format. shortName outweighs the MIME type, which
// outweighs the filename extension.
func GuessFormat(shortName, filename, mimeType string) *OutputFormat {
	var best *OutputFormat
	bestScore := 0
	for _, f := range Muxers() {
		score := 0
		if shortName != "" && f.Name == shortName {
			score += 100
		}
		if mimeType != "" && f.MimeType == mimeType {
			score += 10
		}
		if filename != "" && hasExtension(filename, f.Extensions) {
			score += 5
		}
		if score > bestScore {
			best, bestScore = f, score
		}
	}
	return best
}

// ProbeInputFormat scores buf against every demuxer, with an extension
// match counting as ProbeScoreExtension.
func ProbeInputFormat(buf []byte, filename string) (*InputFormat, int) {
	var best *InputFormat
	bestScore := 0
	for _, f := range Demuxers() {
		score := 0
		if f.probe != nil && len(buf) > 0 {
			score = f.probe(buf)
		}
		if score < ProbeScoreExtension && filename != "" && hasExtension(filename, f.Extensions) {
			score = ProbeScoreExtension
		}
		if score > bestScore {
			best, bestScore = f, score
		}
	}
	return best, bestScore
}

// FormatContext mirrors AVFormatContext for both directions.
type FormatContext struct {
	IFormat *InputFormat
	OFormat *OutputFormat
	PB      *IOContext
	Streams []*Stream
	URL     string

	StartTime int64
	Duration  int64
	BitRate   int64
	Metadata  map[string]string

	// Interrupt is copied into PB when OpenInput opens or adopts it.
	Interrupt    InterruptCallback
	ProbePackets int

	demux         demuxer
	mux           muxer
	probed        []*Packet
	customIO      bool
	headerWritten bool
	trailerDone   bool
	interleave    []*Packet
}

// AllocFormatContext is avformat_alloc_context.
func AllocFormatContext() *FormatContext {
	return &FormatContext{
		StartTime:    NoPTS,
		Duration:     NoPTS,
		Metadata:     map[string]string{},
		ProbePackets: DefaultProbePackets,
	}
}

// NewStream is avformat_new_stream.
func (s *FormatContext) NewStream(codec *Codec) *Stream {
	st := &Stream{
		Index:             len(s.Streams),
		TimeBase:          Rational{0, 1},
		StartTime:         NoPTS,
		Duration:          NoPTS,
		SampleAspectRatio: Rational{0, 1},
		Codecpar:          NewCodecParameters(),
		Metadata:          map[string]string{},
		lastDts:           NoPTS,
	}
	if codec != nil {
		st.Codecpar.CodecType = codec.Type
		st.Codecpar.CodecID = codec.ID
	}
	s.Streams = append(s.Streams, st)
	return st
}

// OpenInput is avformat_open_input. A caller-supplied PB is used as is;
// otherwise url is opened as a local file. Consumed options are deleted.
func (s *FormatContext) OpenInput(url string, f *InputFormat, opts map[string]string) Status {
	s.URL = url
	if v, ok := opts["probe_packets"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.ProbePackets = n
			delete(opts, "probe_packets")
		}
	}
	if s.PB == nil {
		pb, st := OpenIO(url, false, s.Interrupt)
		if st.Failed() {
			return st
		}
		s.PB = pb
	} else {
		s.customIO = true
		if s.PB.Interrupt == nil {
			s.PB.Interrupt = s.Interrupt
		}
	}
	if f == nil {
		buf, st := s.PB.Peek(probeBufSize)
		if st.Failed() && st != EOF {
			s.closeIO()
			return st
		}
		var score int
		if f, score = ProbeInputFormat(buf, url); f == nil || score == 0 {
			s.closeIO()
			return InvalidData
		}
	}
	s.IFormat = f
	s.demux = f.newDemuxer()
	if st := s.demux.readHeader(s); st.Failed() {
		s.closeIO()
		return st
	}
	return OK
}

// FindStreamInfo is avformat_find_stream_info. It reads ahead until every
// stream produced a packet or ProbePackets were read, filling start times
// and frame rates. The packets read are returned first by ReadFrame.
func (s *FormatContext) FindStreamInfo() Status {
	if s.demux == nil {
		return EINVAL
	}
	seen := make(map[int]bool)
	for len(s.probed) < s.ProbePackets {
		if len(s.Streams) > 0 && len(seen) >= len(s.Streams) {
			break
		}
		pkt := PacketAlloc()
		st := s.demux.readPacket(s, pkt)
		if st == EOF {
			break
		}
		if st.Failed() {
			return st
		}
		s.probed = append(s.probed, pkt)
		seen[pkt.StreamIndex] = true
	}
	for _, pkt := range s.probed {
		if pkt.StreamIndex >= len(s.Streams) {
			continue
		}
		st := s.Streams[pkt.StreamIndex]
		if st.StartTime == NoPTS && pkt.Pts != NoPTS {
			st.StartTime = pkt.Pts
		}
		if st.Codecpar.CodecType == MediaTypeVideo && st.AvgFrameRate.Num == 0 && pkt.Duration > 0 && st.TimeBase.Num > 0 {
			st.AvgFrameRate, _ = Reduce(int64(st.TimeBase.Den), int64(st.TimeBase.Num)*pkt.Duration, 1<<30)
			st.RFrameRate = st.AvgFrameRate
		}
	}
	s.updateDuration()
	return OK
}

func (s *FormatContext) updateDuration() {
	for _, st := range s.Streams {
		if st.StartTime != NoPTS && st.TimeBase.Num > 0 {
			start := RescaleQ(st.StartTime, st.TimeBase, TimeBaseQ)
			if s.StartTime == NoPTS || start < s.StartTime {
				s.StartTime = start
			}
		}
		if st.Duration != NoPTS && st.TimeBase.Num > 0 {
			d := RescaleQ(st.Duration, st.TimeBase, TimeBaseQ)
			if s.Duration == NoPTS || d > s.Duration {
				s.Duration = d
			}
		}
	}
}

// ReadFrame is av_read_frame.
func (s *FormatContext) ReadFrame(pkt *Packet) Status {
	if s.demux == nil {
		return EINVAL
	}
	pkt.Unref()
	if len(s.probed) > 0 {
		pkt.MoveRef(s.probed[0])
		s.probed = s.probed[1:]
		return OK
	}
	return s.demux.readPacket(s, pkt)
}

// CloseInput is avformat_close_input.
func (s *FormatContext) CloseInput() {
	for _, p := range s.probed {
		p.Unref()
	}
	s.probed = nil
	s.closeIO()
	s.demux = nil
}

func (s *FormatContext) closeIO() {
	if s.PB != nil && !s.customIO {
		s.PB.Close()
	}
	s.PB = nil
}

// AllocOutputContext2 is avformat_alloc_output_context2.
func AllocOutputContext2(f *OutputFormat, formatName, filename string) (*FormatContext, Status) {
	if f == nil {
		if formatName != "" {
			if f = GuessFormat(formatName, "", ""); f == nil || f.Name != formatName {
				return nil, MuxerNotFound
			}
		} else if f = GuessFormat("", filename, ""); f == nil {
			return nil, EINVAL
		}
	}
	s := AllocFormatContext()
	s.OFormat = f
	s.URL = filename
	s.mux = f.newMuxer()
	return s, OK
}

// WriteHeader is avformat_write_header.
func (s *FormatContext) WriteHeader(opts map[string]string) Status {
	if s.mux == nil || s.headerWritten {
		return EINVAL
	}
	if s.PB == nil && s.OFormat.Flags&FmtNoFile == 0 {
		return EINVAL
	}
	for _, st := range s.Streams {
		if st.Codecpar.CodecType == MediaTypeUnknown {
			return EINVAL
		}
		if st.TimeBase.Num <= 0 || st.TimeBase.Den <= 0 {
			st.TimeBase = Rational{1, 90000}
			if st.Codecpar.CodecType == MediaTypeAudio && st.Codecpar.SampleRate > 0 {
				st.TimeBase = Rational{1, st.Codecpar.SampleRate}
			}
		}
	}
	if st := s.mux.writeHeader(s); st.Failed() {
		return st
	}
	s.headerWritten = true
	return OK
}

func (s *FormatContext) checkPacket(pkt *Packet) Status {
	if !s.headerWritten || s.trailerDone {
		return EINVAL
	}
	if pkt.StreamIndex < 0 || pkt.StreamIndex >= len(s.Streams) {
		return EINVAL
	}
	st := s.Streams[pkt.StreamIndex]
	if pkt.Dts == NoPTS {
		pkt.Dts = pkt.Pts
	}
	if pkt.Pts == NoPTS {
		pkt.Pts = pkt.Dts
	}
	if pkt.Dts != NoPTS && st.lastDts != NoPTS && pkt.Dts < st.lastDts && s.OFormat.Flags&FmtNoTimestamps == 0 {
		return EINVAL
	}
	if pkt.Dts != NoPTS {
		st.lastDts = pkt.Dts
	}
	return OK
}

// WriteFrame is av_write_frame. A nil packet flushes the muxer.
func (s *FormatContext) WriteFrame(pkt *Packet) Status {
	if pkt == nil {
		if !s.headerWritten {
			return EINVAL
		}
		return s.flushIO()
	}
	if st := s.checkPacket(pkt); st.Failed() {
		return st
	}
	return s.mux.writePacket(s, pkt)
}

// InterleavedWriteFrame is av_interleaved_write_frame. It takes ownership
// of the packet's reference and buffers packets until every stream has
// one queued, then writes in dts order. A nil packet drains the queue.
func (s *FormatContext) InterleavedWriteFrame(pkt *Packet) Status {
	if pkt == nil {
		if !s.headerWritten {
			return EINVAL
		}
		if st := s.drainInterleaved(true); st.Failed() {
			return st
		}
		return s.flushIO()
	}
	if st := s.checkPacket(pkt); st.Failed() {
		pkt.Unref()
		return st
	}
	if pkt.Buf == nil {
		own := PacketAlloc()
		own.Ref(pkt)
		pkt.Unref()
		pkt = own
	} else {
		own := PacketAlloc()
		own.MoveRef(pkt)
		pkt = own
	}
	s.interleave = append(s.interleave, pkt)
	sort.SliceStable(s.interleave, func(i, j int) bool {
		return s.interleaveKey(s.interleave[i]) < s.interleaveKey(s.interleave[j])
	})
	return s.drainInterleaved(false)
}

func (s *FormatContext) interleaveKey(p *Packet) int64 {
	if p.Dts == NoPTS {
		return NoPTS
	}
	return RescaleQ(p.Dts, s.Streams[p.StreamIndex].TimeBase, TimeBaseQ)
}

func (s *FormatContext) drainInterleaved(all bool) Status {
	for len(s.interleave) > 0 {
		if !all {
			queued := make(map[int]bool)
			for _, p := range s.interleave {
				queued[p.StreamIndex] = true
			}
			if len(queued) < len(s.Streams) {
				return OK
			}
		}
		next := s.interleave[0]
		s.interleave = s.interleave[1:]
		st := s.mux.writePacket(s, next)
		next.Unref()
		if st.Failed() {
			return st
		}
	}
	return OK
}

// WriteTrailer is av_write_trailer.
func (s *FormatContext) WriteTrailer() Status {
	if !s.headerWritten || s.trailerDone {
		return EINVAL
	}
	if st := s.drainInterleaved(true); st.Failed() {
		return st
	}
	if st := s.mux.writeTrailer(s); st.Failed() {
		return st
	}
	s.trailerDone = true
	return s.flushIO()
}

func (s *FormatContext) flushIO() Status {
	if s.PB == nil {
		return OK
	}
	return s.PB.Flush()
}

// FreeContext is avformat_free_context. It closes PB when the context
// opened it.
func (s *FormatContext) FreeContext() {
	for _, p := range s.interleave {
		p.Unref()
	}
	s.interleave = nil
	s.CloseInput()
	s.mux = nil
}
