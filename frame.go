// Decoded media handles and the sample/pixel formats they carry.
package av

import (
	"github.com/thesyncim/av/internal/native"
)

// PixelFormat identifies a picture layout.
type PixelFormat int

const (
	PixelFormatNone    = PixelFormat(native.PixFmtNone)
	PixelFormatYUV420P = PixelFormat(native.PixFmtYUV420P) // planar 4:2:0
	PixelFormatYUYV422 = PixelFormat(native.PixFmtYUYV422) // packed 4:2:2
	PixelFormatRGB24   = PixelFormat(native.PixFmtRGB24)
	PixelFormatBGR24   = PixelFormat(native.PixFmtBGR24)
	PixelFormatYUV422P = PixelFormat(native.PixFmtYUV422P)
	PixelFormatYUV444P = PixelFormat(native.PixFmtYUV444P)
	PixelFormatGray8   = PixelFormat(native.PixFmtGRAY8)
	PixelFormatNV12    = PixelFormat(native.PixFmtNV12) // Y + interleaved UV
	PixelFormatNV21    = PixelFormat(native.PixFmtNV21)
	PixelFormatARGB    = PixelFormat(native.PixFmtARGB)
	PixelFormatRGBA    = PixelFormat(native.PixFmtRGBA)
	PixelFormatABGR    = PixelFormat(native.PixFmtABGR)
	PixelFormatBGRA    = PixelFormat(native.PixFmtBGRA)
)

// PixelFormatByName parses a short name such as "yuv420p".
func PixelFormatByName(name string) PixelFormat {
	return PixelFormat(native.PixelFormatByName(name))
}

func (p PixelFormat) String() string {
	if n := native.PixelFormat(p).Name(); n != "" {
		return n
	}
	return "none"
}

// PlaneCount returns the number of planes for this pixel format.
func (p PixelFormat) PlaneCount() int {
	d, ok := native.PixelFormat(p).Descriptor()
	if !ok {
		return 0
	}
	return d.Planes
}

// BufferSize returns the bytes needed for a w x h picture with rows padded
// to align.
func (p PixelFormat) BufferSize(w, h, align int) int {
	n, st := native.ImageBufferSize(native.PixelFormat(p), w, h, align)
	if st.Failed() {
		return 0
	}
	return n
}

// SampleFormat identifies an audio sample encoding.
type SampleFormat int

const (
	SampleFormatNone = SampleFormat(native.SampleFmtNone)
	SampleFormatU8   = SampleFormat(native.SampleFmtU8)
	SampleFormatS16  = SampleFormat(native.SampleFmtS16)
	SampleFormatS32  = SampleFormat(native.SampleFmtS32)
	SampleFormatFLT  = SampleFormat(native.SampleFmtFLT)
	SampleFormatDBL  = SampleFormat(native.SampleFmtDBL)
	SampleFormatU8P  = SampleFormat(native.SampleFmtU8P)
	SampleFormatS16P = SampleFormat(native.SampleFmtS16P)
	SampleFormatS32P = SampleFormat(native.SampleFmtS32P)
	SampleFormatFLTP = SampleFormat(native.SampleFmtFLTP)
	SampleFormatDBLP = SampleFormat(native.SampleFmtDBLP)
	SampleFormatS64  = SampleFormat(native.SampleFmtS64)
	SampleFormatS64P = SampleFormat(native.SampleFmtS64P)
)

// SampleFormatByName parses a short name such as "s16" or "fltp".
func SampleFormatByName(name string) SampleFormat {
	return SampleFormat(native.SampleFormatByName(name))
}

func (s SampleFormat) String() string {
	if n := native.SampleFormat(s).Name(); n != "" {
		return n
	}
	return "none"
}

// BytesPerSample returns the number of bytes per sample for this format.
func (s SampleFormat) BytesPerSample() int {
	return native.SampleFormat(s).BytesPerSample()
}

// IsPlanar reports whether each channel has its own plane.
func (s SampleFormat) IsPlanar() bool {
	return native.SampleFormat(s).IsPlanar()
}

// frame holds the state shared by VideoFrame and AudioFrame.
type frame struct {
	f           *native.Frame
	timeBase    Rational
	streamIndex int
	complete    bool
	fakePts     int64
	// capacity is the number of samples the planes can hold.
	capacity    int
}

func newFrame(f *native.Frame) frame {
	return frame{f: f, fakePts: f.Pts}
}

func nullFrame() frame {
	return frame{fakePts: NoPTS}
}

// IsValid reports whether the handle owns a payload.
func (fr *frame) IsValid() bool {
	return fr.f != nil
}

// IsNull is the negation of IsValid.
func (fr *frame) IsNull() bool { return fr.f == nil }

// IsReferenced reports whether the planes live in ref-counted buffers.
func (fr *frame) IsReferenced() bool {
	return fr.f != nil && fr.f.Buf[0] != nil
}

// RefCount returns the reference count of the first plane, or 0 when the
// planes are not ref-counted.
func (fr *frame) RefCount() int {
	if !fr.IsReferenced() {
		return 0
	}
	return fr.f.Buf[0].RefCount()
}

// IsWritable reports whether every plane is exclusively owned.
func (fr *frame) IsWritable() bool {
	return fr.f != nil && fr.f.IsWritable()
}

// MakeWritable gives the handle private planes if they are shared.
func (fr *frame) MakeWritable() error {
	if fr.f == nil {
		return newError(KindInvalidParameters, "frame make writable", "null frame")
	}
	if st := fr.f.MakeWritable(); st.Failed() {
		return nativeErr("frame make writable", st)
	}
	return nil
}

// Free drops the reference and leaves the handle null.
func (fr *frame) Free() {
	if fr.f != nil {
		fr.f.Unref()
	}
	*fr = nullFrame()
}

func (fr *frame) ref() frame {
	if fr.f == nil {
		return nullFrame()
	}
	f := native.FrameAlloc()
	f.Ref(fr.f)
	c := *fr
	c.f = f
	return c
}

func (fr *frame) clone() frame {
	if fr.f == nil {
		return nullFrame()
	}
	c := *fr
	c.f = fr.f.Clone()
	return c
}

func (fr *frame) move() frame {
	c := *fr
	*fr = nullFrame()
	return c
}

// Planes returns the number of data planes in use.
func (fr *frame) Planes() int {
	if fr.f == nil {
		return 0
	}
	return fr.f.Planes()
}

// Data returns plane i. Writes are visible through every handle sharing
// the payload.
func (fr *frame) Data(i int) []byte {
	if fr.f == nil || i < 0 || i >= native.NumDataPointers {
		return nil
	}
	return fr.f.Data[i]
}

// Linesize returns the row stride of plane i; audio frames report the
// plane size in plane 0.
func (fr *frame) Linesize(i int) int {
	if fr.f == nil || i < 0 || i >= native.NumDataPointers {
		return 0
	}
	return fr.f.Linesize[i]
}

// Size returns the total size of all planes.
func (fr *frame) Size() int {
	n := 0
	for i := 0; i < fr.Planes(); i++ {
		n += len(fr.f.Data[i])
	}
	return n
}

func (fr *frame) Pts() int64 {
	if fr.f == nil {
		return NoPTS
	}
	return fr.f.Pts
}

// SetPts sets pts and the fake pts.
func (fr *frame) SetPts(v int64) {
	if fr.f == nil {
		return
	}
	fr.f.Pts = v
	fr.fakePts = v
}

func (fr *frame) FakePts() int64 {
	if fr.f == nil {
		return NoPTS
	}
	return fr.fakePts
}

// SetFakePts sets only the fake pts.
func (fr *frame) SetFakePts(v int64) {
	if fr.f != nil {
		fr.fakePts = v
	}
}

func (fr *frame) PtsTimestamp() Timestamp {
	return Timestamp{fr.Pts(), fr.timeBase}
}

// SetPtsTimestamp stores ts, adopting its base when the frame has none.
func (fr *frame) SetPtsTimestamp(ts Timestamp) {
	if fr.timeBase.IsZero() {
		fr.timeBase = ts.TimeBase
		fr.SetPts(ts.Value)
		return
	}
	fr.SetPts(ts.Rescale(fr.timeBase).Value)
}

func (fr *frame) TimeBase() Rational { return fr.timeBase }

// SetTimeBase re-bases pts and the fake pts to tb. Values are kept as-is
// when either base is zero.
func (fr *frame) SetTimeBase(tb Rational) {
	if fr.timeBase == tb {
		return
	}
	if fr.f != nil && !fr.timeBase.IsZero() && !tb.IsZero() {
		fr.f.Pts = fr.timeBase.Rescale(fr.f.Pts, tb)
		fr.fakePts = fr.timeBase.Rescale(fr.fakePts, tb)
	}
	fr.timeBase = tb
}

func (fr *frame) StreamIndex() int     { return fr.streamIndex }
func (fr *frame) SetStreamIndex(i int) { fr.streamIndex = i }

// IsComplete reports whether the frame holds decoded or resampled output.
// Incomplete frames should be treated as empty.
func (fr *frame) IsComplete() bool {
	return fr.f != nil && fr.complete
}

func (fr *frame) SetComplete(c bool) { fr.complete = c }

// VideoFrame is an owned handle over a ref-counted picture.
type VideoFrame struct {
	frame
}

// NewVideoFrame allocates a w x h picture with rows padded to align.
func NewVideoFrame(pf PixelFormat, w, h, align int) (*VideoFrame, error) {
	const op = "video frame alloc"
	if w <= 0 || h <= 0 || pf.PlaneCount() == 0 {
		return nil, newError(KindInvalidParameters, op, "%dx%d %s", w, h, pf)
	}
	if align <= 0 {
		align = 1
	}
	f := native.FrameAlloc()
	f.Format, f.Width, f.Height = int(pf), w, h
	if st := f.GetBuffer(align); st.Failed() {
		return nil, wrapStatus(KindAllocationFailed, op, st)
	}
	return &VideoFrame{newFrame(f)}, nil
}

// NewVideoFrameFromData allocates a picture and copies data into it. data
// must hold exactly the planes of a w x h picture padded to align.
func NewVideoFrameFromData(data []byte, pf PixelFormat, w, h, align int) (*VideoFrame, error) {
	v, err := NewVideoFrame(pf, w, h, align)
	if err != nil {
		return nil, err
	}
	if want := pf.BufferSize(w, h, align); len(data) != want {
		v.Free()
		return nil, newError(KindLengthMismatch, "video frame from data", "got %d bytes, want %d", len(data), want)
	}
	copyPlanes(v.f, data)
	v.complete = true
	return v, nil
}

func copyPlanes(f *native.Frame, data []byte) {
	for i := 0; i < f.Planes(); i++ {
		n := copy(f.Data[i], data)
		data = data[n:]
	}
}

// Ref returns a new handle sharing this picture.
func (v *VideoFrame) Ref() *VideoFrame { return &VideoFrame{v.ref()} }

// Clone returns a deep copy with private planes.
func (v *VideoFrame) Clone() *VideoFrame { return &VideoFrame{v.clone()} }

// Move transfers the picture to a new handle and leaves v null.
func (v *VideoFrame) Move() *VideoFrame { return &VideoFrame{v.move()} }

// CopyFrom makes v share src's picture. Copying from itself is a no-op.
func (v *VideoFrame) CopyFrom(src *VideoFrame) {
	if v == src {
		return
	}
	r := src.ref()
	v.Free()
	v.frame = r
}

func (v *VideoFrame) PixelFormat() PixelFormat {
	if v.f == nil {
		return PixelFormatNone
	}
	return PixelFormat(v.f.Format)
}

func (v *VideoFrame) Width() int {
	if v.f == nil {
		return 0
	}
	return v.f.Width
}

func (v *VideoFrame) Height() int {
	if v.f == nil {
		return 0
	}
	return v.f.Height
}

func (v *VideoFrame) IsKeyFrame() bool {
	return v.f != nil && v.f.KeyFrame
}

func (v *VideoFrame) SetKeyFrame(key bool) {
	if v.f != nil {
		v.f.KeyFrame = key
	}
}

// PictureType is the coded picture type: 'I', 'P', 'B', or '?' when
// unknown.
func (v *VideoFrame) PictureType() byte {
	if v.f == nil {
		return '?'
	}
	return pictureTypeChar[v.f.PictType]
}

var pictureTypeChar = map[native.PictureType]byte{
	native.PictureTypeNone: '?',
	native.PictureTypeI:    'I',
	native.PictureTypeP:    'P',
	native.PictureTypeB:    'B',
	native.PictureTypeS:    'S',
	native.PictureTypeSI:   'i',
	native.PictureTypeSP:   'p',
	native.PictureTypeBI:   'b',
}

func (v *VideoFrame) Quality() int {
	if v.f == nil {
		return 0
	}
	return v.f.Quality
}

func (v *VideoFrame) SetQuality(q int) {
	if v.f != nil {
		v.f.Quality = q
	}
}

// AudioFrame is an owned handle over a ref-counted block of samples.
type AudioFrame struct {
	frame
}

// NewAudioFrame allocates samples for every channel of layout.
func NewAudioFrame(sf SampleFormat, samples int, layout ChannelLayout, sampleRate, align int) (*AudioFrame, error) {
	const op = "audio frame alloc"
	if samples <= 0 || layout.Channels() == 0 || sampleRate <= 0 || sf.BytesPerSample() == 0 {
		return nil, newError(KindInvalidParameters, op, "%d samples %s %s @%d", samples, sf, layout, sampleRate)
	}
	if align <= 0 {
		align = 1
	}
	f := native.FrameAlloc()
	f.Format = int(sf)
	f.NbSamples = samples
	f.ChannelLayout = uint64(layout)
	f.Channels = layout.Channels()
	f.SampleRate = sampleRate
	if st := f.GetBuffer(align); st.Failed() {
		return nil, wrapStatus(KindAllocationFailed, op, st)
	}
	a := &AudioFrame{newFrame(f)}
	a.capacity = samples
	return a, nil
}

// NewAudioFrameFromData allocates a frame and copies data into it. data
// must hold exactly the planes of the described block padded to align.
func NewAudioFrameFromData(data []byte, sf SampleFormat, samples int, layout ChannelLayout, sampleRate, align int) (*AudioFrame, error) {
	a, err := NewAudioFrame(sf, samples, layout, sampleRate, align)
	if err != nil {
		return nil, err
	}
	want, _, _ := native.SamplesBufferSize(layout.Channels(), samples, native.SampleFormat(sf), align)
	if len(data) != want {
		a.Free()
		return nil, newError(KindLengthMismatch, "audio frame from data", "got %d bytes, want %d", len(data), want)
	}
	copyPlanes(a.f, data)
	a.complete = true
	return a, nil
}

// Ref returns a new handle sharing these samples.
func (a *AudioFrame) Ref() *AudioFrame { return &AudioFrame{a.ref()} }

// Clone returns a deep copy with private planes.
func (a *AudioFrame) Clone() *AudioFrame { return &AudioFrame{a.clone()} }

// Move transfers the samples to a new handle and leaves a null.
func (a *AudioFrame) Move() *AudioFrame { return &AudioFrame{a.move()} }

// CopyFrom makes a share src's samples. Copying from itself is a no-op.
func (a *AudioFrame) CopyFrom(src *AudioFrame) {
	if a == src {
		return
	}
	r := src.ref()
	a.Free()
	a.frame = r
}

func (a *AudioFrame) SampleFormat() SampleFormat {
	if a.f == nil {
		return SampleFormatNone
	}
	return SampleFormat(a.f.Format)
}

// SamplesCount is the number of samples per channel.
func (a *AudioFrame) SamplesCount() int {
	if a.f == nil {
		return 0
	}
	return a.f.NbSamples
}

func (a *AudioFrame) SampleRate() int {
	if a.f == nil {
		return 0
	}
	return a.f.SampleRate
}

// SetSampleRate changes only the rate tag; sample data is untouched.
func (a *AudioFrame) SetSampleRate(rate int) {
	if a.f != nil {
		a.f.SampleRate = rate
	}
}

func (a *AudioFrame) Channels() int {
	if a.f == nil {
		return 0
	}
	return a.f.Channels
}

func (a *AudioFrame) ChannelLayout() ChannelLayout {
	if a.f == nil {
		return 0
	}
	return ChannelLayout(a.f.ChannelLayout)
}

// SampleBitDepth is the size of one sample in bits.
func (a *AudioFrame) SampleBitDepth() int {
	return a.SampleFormat().BytesPerSample() * 8
}

func (a *AudioFrame) IsPlanar() bool {
	return a.SampleFormat().IsPlanar()
}
