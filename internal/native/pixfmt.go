package native

// PixelFormat mirrors AVPixelFormat numbering for the formats known here.
type PixelFormat int

const (
	PixFmtNone    PixelFormat = -1
	PixFmtYUV420P PixelFormat = 0
	PixFmtYUYV422 PixelFormat = 1
	PixFmtRGB24   PixelFormat = 2
	PixFmtBGR24   PixelFormat = 3
	PixFmtYUV422P PixelFormat = 4
	PixFmtYUV444P PixelFormat = 5
	PixFmtGRAY8   PixelFormat = 8
	PixFmtNV12    PixelFormat = 23
	PixFmtNV21    PixelFormat = 24
	PixFmtARGB    PixelFormat = 25
	PixFmtRGBA    PixelFormat = 26
	PixFmtABGR    PixelFormat = 27
	PixFmtBGRA    PixelFormat = 28
)

// PixFmtDescriptor is the subset of AVPixFmtDescriptor the layer needs.
type PixFmtDescriptor struct {
	Name        string
	Planes      int
	Step        [4]int // bytes per pixel in each plane
	Log2ChromaW int
	Log2ChromaH int
	RGB         bool
}

var pixFmtDescriptors = map[PixelFormat]PixFmtDescriptor{
	PixFmtYUV420P: {Name: "yuv420p", Planes: 3, Step: [4]int{1, 1, 1}, Log2ChromaW: 1, Log2ChromaH: 1},
	PixFmtYUYV422: {Name: "yuyv422", Planes: 1, Step: [4]int{2}},
	PixFmtRGB24:   {Name: "rgb24", Planes: 1, Step: [4]int{3}, RGB: true},
	PixFmtBGR24:   {Name: "bgr24", Planes: 1, Step: [4]int{3}, RGB: true},
	PixFmtYUV422P: {Name: "yuv422p", Planes: 3, Step: [4]int{1, 1, 1}, Log2ChromaW: 1},
	PixFmtYUV444P: {Name: "yuv444p", Planes: 3, Step: [4]int{1, 1, 1}},
	PixFmtGRAY8:   {Name: "gray", Planes: 1, Step: [4]int{1}},
	PixFmtNV12:    {Name: "nv12", Planes: 2, Step: [4]int{1, 2}, Log2ChromaW: 1, Log2ChromaH: 1},
	PixFmtNV21:    {Name: "nv21", Planes: 2, Step: [4]int{1, 2}, Log2ChromaW: 1, Log2ChromaH: 1},
	PixFmtARGB:    {Name: "argb", Planes: 1, Step: [4]int{4}, RGB: true},
	PixFmtRGBA:    {Name: "rgba", Planes: 1, Step: [4]int{4}, RGB: true},
	PixFmtABGR:    {Name: "abgr", Planes: 1, Step: [4]int{4}, RGB: true},
	PixFmtBGRA:    {Name: "bgra", Planes: 1, Step: [4]int{4}, RGB: true},
}

// Descriptor is av_pix_fmt_desc_get.
func (p PixelFormat) Descriptor() (PixFmtDescriptor, bool) {
	d, ok := pixFmtDescriptors[p]
	return d, ok
}

// Name returns the FFmpeg short name, or "" for unknown formats.
func (p PixelFormat) Name() string {
	return pixFmtDescriptors[p].Name
}

// PixelFormatByName is av_get_pix_fmt.
func PixelFormatByName(name string) PixelFormat {
	for f, d := range pixFmtDescriptors {
		if d.Name == name {
			return f
		}
	}
	return PixFmtNone
}

func (d PixFmtDescriptor) planeDims(plane, w, h int) (bytesPerRow, rows int) {
	pw, ph := w, h
	// Chroma planes of planar YUV and the interleaved UV plane of NV12/21.
	if plane > 0 && !d.RGB {
		pw = -((-w) >> d.Log2ChromaW)
		ph = -((-h) >> d.Log2ChromaH)
	}
	if d.Planes == 1 && d.Step[0] == 2 {
		// Packed 4:2:2 stores two pixels per four bytes.
		return alignUp(w, 2) * 2, h
	}
	return pw * d.Step[plane], ph
}

// ImageLinesizes is av_image_fill_linesizes with an alignment applied.
func ImageLinesizes(p PixelFormat, w, align int) ([4]int, Status) {
	var ls [4]int
	d, ok := p.Descriptor()
	if !ok || w <= 0 {
		return ls, EINVAL
	}
	for i := 0; i < d.Planes; i++ {
		row, _ := d.planeDims(i, w, 1)
		ls[i] = alignUp(row, align)
	}
	return ls, OK
}

// ImagePlaneSizes returns the byte size of every plane for the given
// linesizes.
func ImagePlaneSizes(p PixelFormat, h int, linesize [4]int) ([4]int, Status) {
	var sizes [4]int
	d, ok := p.Descriptor()
	if !ok || h <= 0 {
		return sizes, EINVAL
	}
	for i := 0; i < d.Planes; i++ {
		_, rows := d.planeDims(i, 1, h)
		sizes[i] = linesize[i] * rows
	}
	return sizes, OK
}

// ImageBufferSize is av_image_get_buffer_size.
func ImageBufferSize(p PixelFormat, w, h, align int) (int, Status) {
	ls, st := ImageLinesizes(p, w, align)
	if st.Failed() {
		return 0, st
	}
	sizes, st := ImagePlaneSizes(p, h, ls)
	if st.Failed() {
		return 0, st
	}
	total := 0
	for _, s := range sizes {
		total += s
	}
	return total, OK
}

// ImageCopyFromBuffer fills the planes of f, which must already own buffers,
// from a tightly packed (align 1) image in src.
func ImageCopyFromBuffer(f *Frame, src []byte) Status {
	pf := PixelFormat(f.Format)
	d, ok := pf.Descriptor()
	if !ok {
		return EINVAL
	}
	need, st := ImageBufferSize(pf, f.Width, f.Height, 1)
	if st.Failed() {
		return st
	}
	if len(src) < need {
		return InvalidData
	}
	off := 0
	for p := 0; p < d.Planes; p++ {
		row, rows := d.planeDims(p, f.Width, f.Height)
		for y := 0; y < rows; y++ {
			copy(f.Data[p][y*f.Linesize[p]:], src[off:off+row])
			off += row
		}
	}
	return OK
}

// ImageCopyToBuffer is av_image_copy_to_buffer with align 1.
func ImageCopyToBuffer(f *Frame) ([]byte, Status) {
	pf := PixelFormat(f.Format)
	d, ok := pf.Descriptor()
	if !ok {
		return nil, EINVAL
	}
	size, st := ImageBufferSize(pf, f.Width, f.Height, 1)
	if st.Failed() {
		return nil, st
	}
	out := make([]byte, 0, size)
	for p := 0; p < d.Planes; p++ {
		row, rows := d.planeDims(p, f.Width, f.Height)
		for y := 0; y < rows; y++ {
			out = append(out, f.Data[p][y*f.Linesize[p]:y*f.Linesize[p]+row]...)
		}
	}
	return out, OK
}
