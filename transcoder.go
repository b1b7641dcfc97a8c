package av

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultTranscoderFrameSize is the encoder frame size, in samples per
// channel, used when neither the codec nor the config fixes one.
const DefaultTranscoderFrameSize = 1024

// TranscoderConfig configures a Transcoder. Exactly one of Input and
// InputReader, and one of Output and OutputWriter, must be set.
type TranscoderConfig struct {
	Input       string    // Input path or URL
	InputReader io.Reader // Alternative: demux from a reader
	InputFormat string    // Demuxer name; probed when empty

	Output       string    // Output path; the muxer is guessed from it when OutputFormat is empty
	OutputWriter io.Writer // Alternative: mux into a writer (OutputFormat required)
	OutputFormat string    // Muxer name

	Codec         CodecID       // Output codec; the muxer default when CodecIDNone
	SampleRate    int           // Output rate; input rate when 0
	ChannelLayout ChannelLayout // Output layout; input layout when 0
	FrameSize     int           // Samples per encoded frame when the codec has no fixed size
	BitRate       int64

	// Track, when set, also receives every encoded packet.
	Track *PacketTrack

	QueueSize      int           // Packets buffered between reader and processor
	ReadingTimeout time.Duration // Per-read timeout on the input; 0 disables
}

// TranscoderStats counts work done by a Transcoder.
type TranscoderStats struct {
	PacketsRead    uint64
	FramesDecoded  uint64
	SamplesIn      uint64
	SamplesOut     uint64
	PacketsEncoded uint64
	PacketsWritten uint64
}

// Transcoder converts the first audio stream of an input into another
// codec, rate and layout: demux, decode, resample, encode, mux.
type Transcoder struct {
	cfg TranscoderConfig
	log *logrus.Entry

	packetsRead    atomic.Uint64
	framesDecoded  atomic.Uint64
	samplesIn      atomic.Uint64
	samplesOut     atomic.Uint64
	packetsEncoded atomic.Uint64
	packetsWritten atomic.Uint64

	running atomic.Bool
}

// NewTranscoder validates config. Nothing is opened until Run.
func NewTranscoder(config TranscoderConfig) (*Transcoder, error) {
	const op = "new transcoder"
	if (config.Input == "") == (config.InputReader == nil) {
		return nil, newError(KindInvalidParameters, op, "exactly one of Input and InputReader is required")
	}
	if (config.Output == "") == (config.OutputWriter == nil) {
		return nil, newError(KindInvalidParameters, op, "exactly one of Output and OutputWriter is required")
	}
	if config.OutputWriter != nil && config.OutputFormat == "" {
		return nil, newError(KindInvalidParameters, op, "OutputFormat is required with OutputWriter")
	}
	if config.SampleRate < 0 || config.FrameSize < 0 || config.QueueSize < 0 {
		return nil, newError(KindInvalidParameters, op, "negative size")
	}
	if config.FrameSize == 0 {
		config.FrameSize = DefaultTranscoderFrameSize
	}
	if config.QueueSize == 0 {
		config.QueueSize = 16
	}
	return &Transcoder{
		cfg: config,
		log: componentLogger("transcoder"),
	}, nil
}

// Stats returns a snapshot of the counters. It is safe to call while Run
// is in progress.
func (t *Transcoder) Stats() TranscoderStats {
	return TranscoderStats{
		PacketsRead:    t.packetsRead.Load(),
		FramesDecoded:  t.framesDecoded.Load(),
		SamplesIn:      t.samplesIn.Load(),
		SamplesOut:     t.samplesOut.Load(),
		PacketsEncoded: t.packetsEncoded.Load(),
		PacketsWritten: t.packetsWritten.Load(),
	}
}

// transcodeSession holds the contexts of one Run.
type transcodeSession struct {
	in, out  *FormatContext
	index    int
	dec, enc *CodecContext
	rs       *AudioResampler
}

func (s *transcodeSession) close() {
	if s.rs != nil {
		s.rs.Free()
	}
	if s.dec != nil {
		s.dec.Close()
	}
	if s.enc != nil {
		s.enc.Close()
	}
	if s.out != nil {
		s.out.Close()
	}
	if s.in != nil {
		s.in.Close()
	}
}

// Run transcodes until the input ends, ctx is cancelled or a stage fails.
// A reader stage and a processing stage run concurrently, joined by a
// bounded packet queue. The trailer is only written on success.
func (t *Transcoder) Run(ctx context.Context) error {
	const op = "transcode"
	if !t.running.CompareAndSwap(false, true) {
		return newError(KindInvalidStateTransition, op, "transcoder is already running")
	}
	defer t.running.Store(false)

	s := &transcodeSession{}
	defer s.close()
	if err := t.openInput(s); err != nil {
		return err
	}
	if err := t.openOutput(s); err != nil {
		return err
	}

	t.log.WithFields(logrus.Fields{
		"input":  s.in.Filename(),
		"output": s.out.Filename(),
		"src":    describeDomain(s.rs.SrcChannelLayout(), s.rs.SrcSampleRate(), s.rs.SrcSampleFormat()),
		"dst":    describeDomain(s.rs.DstChannelLayout(), s.rs.DstSampleRate(), s.rs.DstSampleFormat()),
	}).Info("transcode started")

	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan *Packet, t.cfg.QueueSize)

	g.Go(func() error {
		defer close(queue)
		return t.read(gctx, s, queue)
	})
	g.Go(func() error {
		return t.process(gctx, s, queue)
	})

	if err := g.Wait(); err != nil {
		t.log.WithError(err).Warn("transcode failed")
		return err
	}
	if err := s.out.WriteTrailer(); err != nil {
		return err
	}
	t.log.WithFields(logrus.Fields{
		"packets_read":    t.packetsRead.Load(),
		"packets_written": t.packetsWritten.Load(),
	}).Info("transcode finished")
	return nil
}

func (t *Transcoder) openInput(s *transcodeSession) error {
	const op = "transcode open input"
	s.in = NewFormatContext()
	s.in.SetReadingTimeout(t.cfg.ReadingTimeout)
	if t.cfg.InputFormat != "" {
		f := FindInputFormat(t.cfg.InputFormat)
		if f.IsNull() {
			return newError(KindInvalidParameters, op, "unknown input format %q", t.cfg.InputFormat)
		}
		if err := s.in.SetInputFormat(f); err != nil {
			return err
		}
	}
	var err error
	if t.cfg.InputReader != nil {
		err = s.in.OpenInputReader(t.cfg.InputReader, "", nil)
	} else {
		err = s.in.OpenInput(t.cfg.Input, nil)
	}
	if err != nil {
		return err
	}
	if err := s.in.FindStreamInfo(); err != nil {
		return err
	}

	s.index = -1
	for i, st := range s.in.Streams() {
		if st.IsAudio() {
			s.index = i
			break
		}
	}
	if s.index < 0 {
		return newError(KindInvalidParameters, op, "input has no audio stream")
	}
	dec, err := NewDecoder(s.in.Stream(s.index))
	if err != nil {
		return err
	}
	s.dec = dec
	return s.dec.Open(nil)
}

func (t *Transcoder) openOutput(s *transcodeSession) error {
	const op = "transcode open output"
	s.out = NewFormatContext()
	if t.cfg.OutputFormat != "" {
		f := GuessOutputFormat(t.cfg.OutputFormat, "", "")
		if f.IsNull() {
			return newError(KindInvalidParameters, op, "unknown output format %q", t.cfg.OutputFormat)
		}
		if err := s.out.SetOutputFormat(f); err != nil {
			return err
		}
	}
	var err error
	if t.cfg.OutputWriter != nil {
		err = s.out.OpenOutputWriter(t.cfg.OutputWriter)
	} else {
		err = s.out.OpenOutput(t.cfg.Output)
	}
	if err != nil {
		return err
	}

	id := t.cfg.Codec
	if id == CodecIDNone {
		id = s.out.OutputFormat().DefaultAudioCodec()
	}
	codec := FindEncodingCodec(id)
	if codec.IsNull() {
		return newError(KindCodecNotSet, op, "no encoder for %s", id)
	}
	st, err := s.out.AddStream(codec)
	if err != nil {
		return err
	}
	enc, err := NewEncoder(codec, st)
	if err != nil {
		return err
	}
	s.enc = enc

	rate := t.cfg.SampleRate
	if rate == 0 {
		rate = s.dec.SampleRate()
	}
	layout := t.cfg.ChannelLayout
	if layout == 0 {
		layout = s.dec.ChannelLayout()
	}
	sf := s.dec.SampleFormat()
	if fmts := codec.SupportedSampleFormats(); len(fmts) > 0 && !supports(fmts, sf) {
		sf = fmts[0]
	}
	for _, set := range []func() error{
		func() error { return s.enc.SetSampleRate(rate) },
		func() error { return s.enc.SetChannelLayout(layout) },
		func() error { return s.enc.SetSampleFormat(sf) },
		func() error { return s.enc.SetTimeBase(NewRational(1, rate)) },
		func() error { return s.enc.SetBitRate(t.cfg.BitRate) },
	} {
		if err := set(); err != nil {
			return err
		}
	}
	if s.out.OutputFormat().IsFlags(FormatFlagGlobalHeader) {
		s.enc.AddFlags(CodecFlagGlobalHeader)
	}
	if !s.enc.IsValidForEncode() {
		return newError(KindInvalidParameters, op, "%s cannot encode %s", codec, describeDomain(layout, rate, sf))
	}
	if err := s.enc.Open(nil); err != nil {
		return err
	}

	s.rs, err = NewAudioResampler(
		s.enc.ChannelLayout(), s.enc.SampleRate(), s.enc.SampleFormat(),
		s.dec.ChannelLayout(), s.dec.SampleRate(), s.dec.SampleFormat(),
		nil,
	)
	if err != nil {
		return err
	}
	return s.out.WriteHeader(nil)
}

// read is the reader stage. It forwards packets of the selected stream.
func (t *Transcoder) read(ctx context.Context, s *transcodeSession, queue chan<- *Packet) error {
	for {
		pkt, err := s.in.ReadPacketContext(ctx)
		if err != nil {
			return err
		}
		if pkt.IsNull() {
			return nil
		}
		if pkt.StreamIndex() != s.index {
			pkt.Free()
			continue
		}
		t.packetsRead.Add(1)
		select {
		case queue <- pkt:
		case <-ctx.Done():
			pkt.Free()
			return ctx.Err()
		}
	}
}

// process is the decode, resample, encode and mux stage. When the queue
// closes it drains the decoder, the resampler and the encoder in order.
func (t *Transcoder) process(ctx context.Context, s *transcodeSession, queue <-chan *Packet) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pkt, ok := <-queue:
			if !ok {
				return t.drain(s)
			}
			err := t.decode(s, pkt)
			pkt.Free()
			if err != nil {
				return err
			}
		}
	}
}

func (t *Transcoder) decode(s *transcodeSession, pkt *Packet) error {
	frame, err := s.dec.DecodeAudio(pkt)
	if err != nil {
		return err
	}
	if frame.IsNull() {
		return nil
	}
	defer frame.Free()
	t.framesDecoded.Add(1)
	t.samplesIn.Add(uint64(frame.SamplesCount()))
	if err := s.rs.Push(frame); err != nil {
		return err
	}
	return t.resample(s, false)
}

// resample pops full encoder frames, or everything left when flush is set.
func (t *Transcoder) resample(s *transcodeSession, flush bool) error {
	size := s.enc.FrameSize()
	if size <= 0 {
		size = t.cfg.FrameSize
	}
	for {
		dst, err := NewAudioFrame(s.rs.DstSampleFormat(), size, s.rs.DstChannelLayout(), s.rs.DstSampleRate(), 0)
		if err != nil {
			return wrapFrameAlloc("transcode resample", err)
		}
		ok, err := s.rs.Pop(dst, flush)
		if err != nil || !ok {
			dst.Free()
			return err
		}
		t.samplesOut.Add(uint64(dst.SamplesCount()))
		err = t.encode(s, dst)
		dst.Free()
		if err != nil {
			return err
		}
	}
}

// encode sends frame, or drains the encoder when frame is nil, and muxes
// the resulting packets.
func (t *Transcoder) encode(s *transcodeSession, frame *AudioFrame) error {
	for {
		pkt, err := s.enc.EncodeAudio(frame)
		if err != nil {
			return err
		}
		if pkt.IsNull() {
			return nil
		}
		t.packetsEncoded.Add(1)
		if t.cfg.Track != nil && !t.cfg.Track.IsClosed() {
			if err := t.cfg.Track.WritePacket(pkt); err != nil {
				t.log.WithError(err).Debug("track write failed")
			}
		}
		err = s.out.WritePacket(pkt, true)
		pkt.Free()
		if err != nil {
			return err
		}
		t.packetsWritten.Add(1)
		if frame != nil {
			return nil
		}
	}
}

func (t *Transcoder) drain(s *transcodeSession) error {
	for {
		frame, err := s.dec.DecodeAudio(nil)
		if err != nil {
			return err
		}
		if frame.IsNull() {
			break
		}
		t.framesDecoded.Add(1)
		t.samplesIn.Add(uint64(frame.SamplesCount()))
		err = s.rs.Push(frame)
		frame.Free()
		if err != nil {
			return err
		}
		if err := t.resample(s, false); err != nil {
			return err
		}
	}
	if err := t.resample(s, true); err != nil {
		return err
	}
	if err := t.encode(s, nil); err != nil {
		return err
	}
	return s.out.WritePacket(nil, true)
}
