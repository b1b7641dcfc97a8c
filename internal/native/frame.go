package native

// NumDataPointers is AV_NUM_DATA_POINTERS.
const NumDataPointers = 8

// PictureType mirrors AVPictureType.
type PictureType int

const (
	PictureTypeNone PictureType = iota
	PictureTypeI
	PictureTypeP
	PictureTypeB
	PictureTypeS
	PictureTypeSI
	PictureTypeSP
	PictureTypeBI
)

// Frame mirrors AVFrame. Format holds a PixelFormat for video frames and a
// SampleFormat for audio frames.
type Frame struct {
	Buf      [NumDataPointers]*BufferRef
	Data     [NumDataPointers][]byte
	Linesize [NumDataPointers]int

	Format int
	Width  int
	Height int

	NbSamples     int
	SampleRate    int
	ChannelLayout uint64
	Channels      int

	Pts                 int64
	PktDts              int64
	BestEffortTimestamp int64
	Duration            int64
	KeyFrame            bool
	PictType            PictureType
	Quality             int
	SampleAspectRatio   Rational
}

// FrameAlloc is av_frame_alloc.
func FrameAlloc() *Frame {
	f := &Frame{}
	f.reset()
	return f
}

func (f *Frame) reset() {
	*f = Frame{
		Format:              -1,
		Pts:                 NoPTS,
		PktDts:              NoPTS,
		BestEffortTimestamp: NoPTS,
		SampleAspectRatio:   Rational{0, 1},
	}
}

// IsAudio reports whether the frame describes audio samples.
func (f *Frame) IsAudio() bool { return f.NbSamples > 0 || f.ChannelLayout != 0 || f.Channels > 0 }

// GetBuffer is av_frame_get_buffer. Video frames need Format, Width and
// Height; audio frames need Format, NbSamples and a channel count or layout.
func (f *Frame) GetBuffer(align int) Status {
	if f.Format < 0 {
		return EINVAL
	}
	if f.Buf[0] != nil {
		return EINVAL
	}
	if align <= 0 {
		align = 32
	}
	if f.Width > 0 && f.Height > 0 {
		return f.getVideoBuffer(align)
	}
	if f.NbSamples > 0 {
		return f.getAudioBuffer(align)
	}
	return EINVAL
}

func (f *Frame) getVideoBuffer(align int) Status {
	pf := PixelFormat(f.Format)
	ls, st := ImageLinesizes(pf, f.Width, align)
	if st.Failed() {
		return st
	}
	sizes, st := ImagePlaneSizes(pf, f.Height, ls)
	if st.Failed() {
		return st
	}
	for i := 0; i < 4 && sizes[i] > 0; i++ {
		f.Buf[i] = BufferAlloc(sizes[i])
		f.Data[i] = f.Buf[i].Data
		f.Linesize[i] = ls[i]
	}
	return OK
}

func (f *Frame) getAudioBuffer(align int) Status {
	if f.Channels == 0 {
		f.Channels = LayoutChannels(f.ChannelLayout)
	}
	if f.ChannelLayout == 0 {
		f.ChannelLayout = DefaultLayout(f.Channels)
	}
	sf := SampleFormat(f.Format)
	_, linesize, st := SamplesBufferSize(f.Channels, f.NbSamples, sf, align)
	if st.Failed() {
		return st
	}
	planes := 1
	if sf.IsPlanar() {
		planes = f.Channels
	}
	if planes > NumDataPointers {
		return ENOSYS
	}
	for i := 0; i < planes; i++ {
		f.Buf[i] = BufferAlloc(linesize)
		f.Data[i] = f.Buf[i].Data
	}
	f.Linesize[0] = linesize
	return OK
}

// Planes returns the number of data planes in use.
func (f *Frame) Planes() int {
	n := 0
	for n < NumDataPointers && f.Data[n] != nil {
		n++
	}
	return n
}

// Ref is av_frame_ref. Non ref-counted sources are copied.
func (f *Frame) Ref(src *Frame) Status {
	if src == nil {
		return EINVAL
	}
	if src == f {
		return OK
	}
	f.Unref()
	f.CopyProps(src)
	f.copyGeometry(src)
	if src.Buf[0] == nil {
		for i := 0; i < NumDataPointers && src.Data[i] != nil; i++ {
			f.Buf[i] = BufferAlloc(len(src.Data[i]))
			copy(f.Buf[i].Data, src.Data[i])
			f.Data[i] = f.Buf[i].Data
		}
		return OK
	}
	for i := 0; i < NumDataPointers; i++ {
		if src.Buf[i] != nil {
			f.Buf[i] = src.Buf[i].Ref()
		}
		f.Data[i] = src.Data[i]
	}
	return OK
}

// Clone is a deep copy with freshly allocated, unshared planes.
func (f *Frame) Clone() *Frame {
	c := FrameAlloc()
	c.CopyProps(f)
	c.copyGeometry(f)
	for i := 0; i < NumDataPointers && f.Data[i] != nil; i++ {
		c.Buf[i] = BufferAlloc(len(f.Data[i]))
		copy(c.Buf[i].Data, f.Data[i])
		c.Data[i] = c.Buf[i].Data
	}
	return c
}

// Unref is av_frame_unref.
func (f *Frame) Unref() {
	if f == nil {
		return
	}
	for i := range f.Buf {
		f.Buf[i].Unref()
	}
	f.reset()
}

// MoveRef is av_frame_move_ref.
func (f *Frame) MoveRef(src *Frame) {
	*f = *src
	src.reset()
}

func (f *Frame) copyGeometry(src *Frame) {
	f.Format = src.Format
	f.Width = src.Width
	f.Height = src.Height
	f.NbSamples = src.NbSamples
	f.SampleRate = src.SampleRate
	f.ChannelLayout = src.ChannelLayout
	f.Channels = src.Channels
	f.Linesize = src.Linesize
}

// CopyProps is av_frame_copy_props.
func (f *Frame) CopyProps(src *Frame) {
	f.Pts = src.Pts
	f.PktDts = src.PktDts
	f.BestEffortTimestamp = src.BestEffortTimestamp
	f.Duration = src.Duration
	f.KeyFrame = src.KeyFrame
	f.PictType = src.PictType
	f.Quality = src.Quality
	f.SampleAspectRatio = src.SampleAspectRatio
	f.SampleRate = src.SampleRate
}

// IsWritable is av_frame_is_writable.
func (f *Frame) IsWritable() bool {
	if f.Buf[0] == nil {
		return false
	}
	for _, b := range f.Buf {
		if b != nil && !b.IsWritable() {
			return false
		}
	}
	return true
}

// MakeWritable is av_frame_make_writable.
func (f *Frame) MakeWritable() Status {
	if f.IsWritable() {
		return OK
	}
	for i := 0; i < NumDataPointers && f.Data[i] != nil; i++ {
		buf := BufferAlloc(len(f.Data[i]))
		copy(buf.Data, f.Data[i])
		f.Buf[i].Unref()
		f.Buf[i] = buf
		f.Data[i] = buf.Data
	}
	return OK
}
