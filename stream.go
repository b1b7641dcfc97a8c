package av

import (
	"sync/atomic"

	"github.com/thesyncim/av/internal/native"
)

// Direction tells whether a stream belongs to a demuxer or a muxer.
type Direction int

const (
	DirectionInvalid Direction = iota
	DirectionEncoding
	DirectionDecoding
)

func (d Direction) String() string {
	switch d {
	case DirectionEncoding:
		return "encoding"
	case DirectionDecoding:
		return "decoding"
	default:
		return "invalid"
	}
}

// streamMonitor is shared by a FormatContext and the Streams it issues.
// Closing the context bumps the generation, invalidating every Stream
// issued before.
type streamMonitor struct {
	gen atomic.Uint64
}

func (m *streamMonitor) expire() { m.gen.Add(1) }

// Stream is a non-owning view of a stream inside a FormatContext. Once the
// context is closed every accessor except Direction fails with
// ErrDanglingStream.
type Stream struct {
	mon *streamMonitor
	gen uint64
	st  *native.Stream
	dir Direction
}

func newStream(mon *streamMonitor, st *native.Stream, dir Direction) *Stream {
	return &Stream{mon: mon, gen: mon.gen.Load(), st: st, dir: dir}
}

// Direction is safe on a dangling stream.
func (s *Stream) Direction() Direction {
	if s == nil {
		return DirectionInvalid
	}
	return s.dir
}

// IsValid reports whether the parent context is still alive.
func (s *Stream) IsValid() bool {
	return s != nil && s.st != nil && s.mon != nil && s.mon.gen.Load() == s.gen
}

func (s *Stream) check(op string) (*native.Stream, error) {
	if s == nil || s.st == nil {
		return nil, newError(KindInvalidParameters, op, "null stream")
	}
	if !s.IsValid() {
		return nil, newError(KindDanglingStream, op, "parent format context is closed")
	}
	return s.st, nil
}

func (s *Stream) Index() (int, error) {
	st, err := s.check("stream index")
	if err != nil {
		return -1, err
	}
	return st.Index, nil
}

func (s *Stream) ID() (int, error) {
	st, err := s.check("stream id")
	if err != nil {
		return 0, err
	}
	return st.ID, nil
}

func (s *Stream) SetID(id int) error {
	st, err := s.check("stream set id")
	if err != nil {
		return err
	}
	st.ID = id
	return nil
}

func (s *Stream) TimeBase() (Rational, error) {
	st, err := s.check("stream time base")
	if err != nil {
		return Rational{}, err
	}
	return fromNativeRational(st.TimeBase), nil
}

func (s *Stream) SetTimeBase(tb Rational) error {
	st, err := s.check("stream set time base")
	if err != nil {
		return err
	}
	st.TimeBase = tb.native()
	return nil
}

// FrameRate is the real base frame rate.
func (s *Stream) FrameRate() (Rational, error) {
	st, err := s.check("stream frame rate")
	if err != nil {
		return Rational{}, err
	}
	return fromNativeRational(st.RFrameRate), nil
}

func (s *Stream) SetFrameRate(r Rational) error {
	st, err := s.check("stream set frame rate")
	if err != nil {
		return err
	}
	st.RFrameRate = r.native()
	return nil
}

func (s *Stream) AverageFrameRate() (Rational, error) {
	st, err := s.check("stream average frame rate")
	if err != nil {
		return Rational{}, err
	}
	return fromNativeRational(st.AvgFrameRate), nil
}

func (s *Stream) SetAverageFrameRate(r Rational) error {
	st, err := s.check("stream set average frame rate")
	if err != nil {
		return err
	}
	st.AvgFrameRate = r.native()
	return nil
}

func (s *Stream) SampleAspectRatio() (Rational, error) {
	st, err := s.check("stream sample aspect ratio")
	if err != nil {
		return Rational{}, err
	}
	return fromNativeRational(st.SampleAspectRatio), nil
}

func (s *Stream) SetSampleAspectRatio(r Rational) error {
	st, err := s.check("stream set sample aspect ratio")
	if err != nil {
		return err
	}
	st.SampleAspectRatio = r.native()
	return nil
}

// StartTime is in the stream's time base.
func (s *Stream) StartTime() (Timestamp, error) {
	st, err := s.check("stream start time")
	if err != nil {
		return Timestamp{}, err
	}
	return Timestamp{st.StartTime, fromNativeRational(st.TimeBase)}, nil
}

// Duration is in the stream's time base; NoPTS when unknown.
func (s *Stream) Duration() (Timestamp, error) {
	st, err := s.check("stream duration")
	if err != nil {
		return Timestamp{}, err
	}
	return Timestamp{st.Duration, fromNativeRational(st.TimeBase)}, nil
}

// CurrentDts is the dts of the last packet that went through the stream.
func (s *Stream) CurrentDts() (Timestamp, error) {
	st, err := s.check("stream current dts")
	if err != nil {
		return Timestamp{}, err
	}
	return Timestamp{st.CurDts(), fromNativeRational(st.TimeBase)}, nil
}

// FramesCount is the number of frames when the container records it.
func (s *Stream) FramesCount() (int64, error) {
	st, err := s.check("stream frames count")
	if err != nil {
		return 0, err
	}
	return st.NbFrames, nil
}

func (s *Stream) MediaType() (MediaType, error) {
	st, err := s.check("stream media type")
	if err != nil {
		return MediaTypeUnknown, err
	}
	return MediaType(st.Codecpar.CodecType), nil
}

func (s *Stream) isType(t MediaType) bool {
	mt, err := s.MediaType()
	return err == nil && mt == t
}

func (s *Stream) IsAudio() bool      { return s.isType(MediaTypeAudio) }
func (s *Stream) IsVideo() bool      { return s.isType(MediaTypeVideo) }
func (s *Stream) IsData() bool       { return s.isType(MediaTypeData) }
func (s *Stream) IsSubtitle() bool   { return s.isType(MediaTypeSubtitle) }
func (s *Stream) IsAttachment() bool { return s.isType(MediaTypeAttachment) }

// CodecParameters returns a copy of the stream's codec parameters.
func (s *Stream) CodecParameters() (CodecParameters, error) {
	st, err := s.check("stream codec parameters")
	if err != nil {
		return CodecParameters{}, err
	}
	return codecParametersFromNative(st.Codecpar), nil
}

// SetCodecParameters replaces the stream's codec parameters.
func (s *Stream) SetCodecParameters(cp CodecParameters) error {
	st, err := s.check("stream set codec parameters")
	if err != nil {
		return err
	}
	cp.toNative(st.Codecpar)
	return nil
}

// Metadata returns the stream tags.
func (s *Stream) Metadata() (map[string]string, error) {
	st, err := s.check("stream metadata")
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(st.Metadata))
	for k, v := range st.Metadata {
		out[k] = v
	}
	return out, nil
}
