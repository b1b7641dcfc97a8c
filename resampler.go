package av

import (
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/thesyncim/av/internal/native"
)

// AudioResampler converts audio between a fixed source domain and a fixed
// destination domain, each a (channel layout, sample rate, sample format)
// triple. Pushed samples are buffered by the kernel and popped as frames
// whose pts count destination samples from 0.
//
// The zero value is an uninitialized resampler; Init makes it active. An
// AudioResampler is not safe for concurrent use: Push and Pop may be
// interleaved but not called concurrently.
type AudioResampler struct {
	id  string
	log *logrus.Entry

	k native.Resampler
	// idle is a zero-sample source frame; converting it pops without
	// flushing the kernel.
	idle *native.Frame

	dstLayout ChannelLayout
	dstRate   int
	dstFormat SampleFormat
	srcLayout ChannelLayout
	srcRate   int
	srcFormat SampleFormat

	streamIndex int
	prevPts     int64
	nextPts     int64
}

// NewAudioResampler returns an initialized resampler. opts may be nil.
func NewAudioResampler(dstLayout ChannelLayout, dstRate int, dstFormat SampleFormat,
	srcLayout ChannelLayout, srcRate int, srcFormat SampleFormat, opts Options) (*AudioResampler, error) {
	r := &AudioResampler{}
	if err := r.Init(dstLayout, dstRate, dstFormat, srcLayout, srcRate, srcFormat, opts); err != nil {
		return nil, err
	}
	return r, nil
}

// Init configures the resampler, discarding any previous state and
// buffered samples. On success opts is emptied, since every option was
// applied. On failure opts is untouched and the resampler is left
// uninitialized.
func (r *AudioResampler) Init(dstLayout ChannelLayout, dstRate int, dstFormat SampleFormat,
	srcLayout ChannelLayout, srcRate int, srcFormat SampleFormat, opts Options) error {
	const op = "resampler init"
	r.Free()

	if err := validDomain(op, "destination", dstLayout, dstRate, dstFormat); err != nil {
		return err
	}
	if err := validDomain(op, "source", srcLayout, srcRate, srcFormat); err != nil {
		return err
	}

	k, st := native.ResamplerAlloc()
	if st.Failed() || k == nil {
		if st == native.ENOMEM || (k == nil && !st.Failed()) {
			return wrapStatus(KindOutOfMemory, op, native.ENOMEM)
		}
		return wrapStatus(KindResamplerInitFailed, op, st)
	}

	ok := false
	defer func() {
		if !ok {
			k.Free()
		}
	}()

	fixed := []struct {
		name string
		v    int64
	}{
		{"in_channel_layout", int64(srcLayout)},
		{"in_sample_rate", int64(srcRate)},
		{"in_sample_fmt", int64(srcFormat)},
		{"out_channel_layout", int64(dstLayout)},
		{"out_sample_rate", int64(dstRate)},
		{"out_sample_fmt", int64(dstFormat)},
	}
	for _, o := range fixed {
		if st := k.SetInt(o.name, o.v); st.Failed() {
			e := wrapStatus(KindResamplerInitFailed, op, st)
			e.Message = "option " + o.name
			return e
		}
	}
	for name, value := range opts {
		if st := k.Set(name, value); st.Failed() {
			e := wrapStatus(KindResamplerInitFailed, op, st)
			e.Message = "option " + name + "=" + strconv.Quote(value)
			return e
		}
	}
	if st := k.Init(); st.Failed() {
		return wrapStatus(KindResamplerInitFailed, op, st)
	}
	ok = true
	for name := range opts {
		delete(opts, name)
	}

	idle := native.FrameAlloc()
	idle.Format = int(srcFormat)
	idle.SampleRate = srcRate
	idle.ChannelLayout = uint64(srcLayout)
	idle.Channels = srcLayout.Channels()

	id := uuid.NewString()
	*r = AudioResampler{
		id:          id,
		log:         componentLogger("resampler").WithField("ctx_id", id),
		k:           k,
		idle:        idle,
		dstLayout:   dstLayout,
		dstRate:     dstRate,
		dstFormat:   dstFormat,
		srcLayout:   srcLayout,
		srcRate:     srcRate,
		srcFormat:   srcFormat,
		streamIndex: 0,
		prevPts:     NoPTS,
		nextPts:     NoPTS,
	}
	r.log.WithFields(logrus.Fields{
		"src": describeDomain(srcLayout, srcRate, srcFormat),
		"dst": describeDomain(dstLayout, dstRate, dstFormat),
	}).Debug("resampler initialized")
	return nil
}

func validDomain(op, side string, layout ChannelLayout, rate int, format SampleFormat) error {
	switch {
	case layout == 0:
		return newError(KindInvalidParameters, op, "%s channel layout is empty", side)
	case rate <= 0:
		return newError(KindInvalidParameters, op, "%s sample rate %d", side, rate)
	case format == SampleFormatNone || format.BytesPerSample() == 0:
		return newError(KindInvalidParameters, op, "%s sample format %s", side, format)
	}
	return nil
}

func describeDomain(layout ChannelLayout, rate int, format SampleFormat) string {
	return layout.String() + "/" + strconv.Itoa(rate) + "/" + format.String()
}

// IsInitialized reports whether Init succeeded and the resampler was not
// freed or moved since.
func (r *AudioResampler) IsInitialized() bool { return r.k != nil }

// ID identifies the resampler in log entries; empty when uninitialized.
func (r *AudioResampler) ID() string { return r.id }

func (r *AudioResampler) DstChannelLayout() ChannelLayout { return r.dstLayout }
func (r *AudioResampler) DstSampleRate() int              { return r.dstRate }
func (r *AudioResampler) DstSampleFormat() SampleFormat   { return r.dstFormat }
func (r *AudioResampler) SrcChannelLayout() ChannelLayout { return r.srcLayout }
func (r *AudioResampler) SrcSampleRate() int              { return r.srcRate }
func (r *AudioResampler) SrcSampleFormat() SampleFormat   { return r.srcFormat }

// Delay is the number of destination-rate samples that can be popped
// without flushing.
func (r *AudioResampler) Delay() int64 {
	if r.k == nil {
		return 0
	}
	return r.k.Delay(int64(r.dstRate))
}

// Push feeds src to the kernel. src must match the source domain. A pts
// lower than the previous push is taken as a discontinuity and restarts
// output pts at 0.
func (r *AudioResampler) Push(src *AudioFrame) error {
	const op = "resampler push"
	if r.k == nil {
		return newError(KindResamplerNotInited, op, "resampler is not initialized")
	}
	if src == nil || src.IsNull() {
		return newError(KindInvalidParameters, op, "null frame")
	}
	if src.SampleRate() != r.srcRate || src.SampleFormat() != r.srcFormat ||
		src.Channels() != r.srcLayout.Channels() || src.ChannelLayout() != r.srcLayout {
		return newError(KindInputParametersChanged, op, "got %s want %s",
			describeDomain(src.ChannelLayout(), src.SampleRate(), src.SampleFormat()),
			describeDomain(r.srcLayout, r.srcRate, r.srcFormat))
	}
	if st := r.k.ConvertFrame(nil, src.f); st.Failed() {
		return nativeErr(op, st)
	}
	r.streamIndex = src.StreamIndex()

	pts := src.Pts()
	if pts != NoPTS && pts < r.prevPts {
		r.nextPts = NoPTS
		metrics.resamplerResets.Inc()
		r.log.WithFields(logrus.Fields{"pts": pts, "prev_pts": r.prevPts}).Debug("input pts went back, restarting output pts")
	}
	r.prevPts = pts
	metrics.resamplerSamplesIn.Add(float64(src.SamplesCount()))
	return nil
}

// Pop drains converted samples into dst, which must match the destination
// domain. The planes' full capacity is requested. Unless flushAll is set,
// Pop returns false without touching dst while fewer samples are buffered
// than dst holds. flushAll also releases the final samples the kernel
// keeps until more input arrives, so use it only at end of stream. It
// returns true when dst received samples.
func (r *AudioResampler) Pop(dst *AudioFrame, flushAll bool) (bool, error) {
	const op = "resampler pop"
	if r.k == nil {
		return false, newError(KindResamplerNotInited, op, "resampler is not initialized")
	}
	if dst == nil || dst.IsNull() {
		return false, newError(KindInvalidParameters, op, "null frame")
	}
	if dst.SampleRate() != r.dstRate || dst.SampleFormat() != r.dstFormat ||
		dst.Channels() != r.dstLayout.Channels() || dst.ChannelLayout() != r.dstLayout {
		return false, newError(KindOutputParametersChanged, op, "got %s want %s",
			describeDomain(dst.ChannelLayout(), dst.SampleRate(), dst.SampleFormat()),
			describeDomain(r.dstLayout, r.dstRate, r.dstFormat))
	}
	return r.pop(op, dst, !flushAll, flushAll)
}

// pop converts into dst. With needFull it returns false while dst cannot
// be filled. flush also releases the samples the kernel holds back for
// interpolation against input still to come.
func (r *AudioResampler) pop(op string, dst *AudioFrame, needFull, flush bool) (bool, error) {
	want := dst.capacity
	if want == 0 {
		want = dst.f.NbSamples
	}
	if needFull && r.k.Delay(int64(r.dstRate)) < int64(want) {
		return false, nil
	}
	in := r.idle
	if flush {
		in = nil
	}
	dst.f.NbSamples = want
	if st := r.k.ConvertFrame(dst.f, in); st.Failed() {
		return false, nativeErr(op, st)
	}

	dst.timeBase = Rational{1, r.dstRate}
	dst.streamIndex = r.streamIndex
	dst.complete = true
	if r.nextPts == NoPTS {
		r.nextPts = 0
	}
	dst.f.Pts = r.nextPts
	dst.fakePts = r.nextPts
	n := dst.f.NbSamples
	r.nextPts += int64(n)
	metrics.resamplerSamplesOut.Add(float64(n))
	return n > 0, nil
}

// PopSamples returns a new frame of n destination samples. It returns a
// null frame while fewer than n samples are buffered. n == 0 drains
// everything buffered. PopSamples never flushes; finish a stream with
// Pop and flushAll.
func (r *AudioResampler) PopSamples(n int) (*AudioFrame, error) {
	const op = "resampler pop samples"
	if r.k == nil {
		return nil, newError(KindResamplerNotInited, op, "resampler is not initialized")
	}
	if n < 0 {
		return nil, newError(KindInvalidParameters, op, "negative sample count %d", n)
	}
	delay := int(r.k.Delay(int64(r.dstRate)))
	if n > 0 && delay < n {
		return &AudioFrame{nullFrame()}, nil
	}
	if n == 0 {
		n = delay
	}
	if n == 0 {
		return &AudioFrame{nullFrame()}, nil
	}
	dst, err := NewAudioFrame(r.dstFormat, n, r.dstLayout, r.dstRate, 1)
	if err != nil {
		return nil, wrapFrameAlloc(op, err)
	}
	got, err := r.pop(op, dst, false, false)
	if err != nil || !got {
		dst.Free()
		if err != nil {
			return nil, err
		}
		return &AudioFrame{nullFrame()}, nil
	}
	return dst, nil
}

func wrapFrameAlloc(op string, err error) error {
	e := newError(KindFrameAllocationFailed, op, "destination frame")
	e.Err = err
	var ae *Error
	if errors.As(err, &ae) {
		e.Code = ae.Code
	}
	return e
}

// Move transfers the resampler state to a new value and leaves r
// uninitialized.
func (r *AudioResampler) Move() *AudioResampler {
	m := &AudioResampler{}
	*m = *r
	*r = AudioResampler{}
	return m
}

// Free releases the kernel, dropping buffered samples. Call Pop with
// flushAll first to drain them. The resampler becomes uninitialized.
func (r *AudioResampler) Free() {
	if r.k != nil {
		r.k.Free()
		r.log.Debug("resampler freed")
	}
	*r = AudioResampler{}
}
