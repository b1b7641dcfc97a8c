package native

// Scaler flags accepted for compatibility with SWS_*; only bilinear
// filtering is implemented.
const (
	ScaleFastBilinear = 1
	ScaleBilinear     = 2
	ScaleBicubic      = 4
)

// ScaleContext mirrors SwsContext.
type ScaleContext struct {
	srcW, srcH int
	dstW, dstH int
	srcFmt     PixelFormat
	dstFmt     PixelFormat
	flags      int
	tmp        *Frame

	// source rectangle actually scaled
	cropX, cropY int
	cropW, cropH int
}

var scalableFormats = map[PixelFormat]bool{
	PixFmtYUV420P: true, PixFmtYUV422P: true, PixFmtYUV444P: true,
	PixFmtGRAY8: true, PixFmtNV12: true, PixFmtNV21: true,
	PixFmtRGB24: true, PixFmtBGR24: true,
	PixFmtRGBA: true, PixFmtBGRA: true, PixFmtARGB: true, PixFmtABGR: true,
}

// GetScaleContext is sws_getContext.
func GetScaleContext(srcW, srcH int, srcFmt PixelFormat, dstW, dstH int, dstFmt PixelFormat, flags int) (*ScaleContext, Status) {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return nil, EINVAL
	}
	if !scalableFormats[srcFmt] || !scalableFormats[dstFmt] {
		return nil, ENOSYS
	}
	return &ScaleContext{
		srcW: srcW, srcH: srcH, srcFmt: srcFmt,
		dstW: dstW, dstH: dstH, dstFmt: dstFmt,
		flags: flags,
		cropW: srcW, cropH: srcH,
	}, OK
}

// SetSourceRegion restricts scaling to the w x h rectangle at x, y of the
// source picture. The origin is rounded down onto the chroma grid.
func (c *ScaleContext) SetSourceRegion(x, y, w, h int) Status {
	if x < 0 || y < 0 || w <= 0 || h <= 0 || x+w > c.srcW || y+h > c.srcH {
		return EINVAL
	}
	d, _ := c.srcFmt.Descriptor()
	if !d.RGB {
		x &^= (1 << d.Log2ChromaW) - 1
		y &^= (1 << d.Log2ChromaH) - 1
	}
	c.cropX, c.cropY, c.cropW, c.cropH = x, y, w, h
	return OK
}

// SourceRegion returns the rectangle set by SetSourceRegion.
func (c *ScaleContext) SourceRegion() (x, y, w, h int) {
	return c.cropX, c.cropY, c.cropW, c.cropH
}

// cropView returns a frame sharing src's planes, offset to the source
// region.
func (c *ScaleContext) cropView(src *Frame) *Frame {
	d, _ := c.srcFmt.Descriptor()
	v := &Frame{Format: src.Format, Width: c.cropW, Height: c.cropH}
	for p := 0; p < d.Planes; p++ {
		x, y := c.cropX, c.cropY
		if p > 0 && !d.RGB {
			x, y = x>>d.Log2ChromaW, y>>d.Log2ChromaH
		}
		v.Data[p] = src.Data[p][y*src.Linesize[p]+x*d.Step[p]:]
		v.Linesize[p] = src.Linesize[p]
	}
	return v
}

// ScaleFrame is sws_scale_frame. dst must already own buffers of the
// destination geometry.
func (c *ScaleContext) ScaleFrame(dst, src *Frame) Status {
	if src.Width != c.srcW || src.Height != c.srcH || PixelFormat(src.Format) != c.srcFmt {
		return InputChanged
	}
	if dst.Width != c.dstW || dst.Height != c.dstH || PixelFormat(dst.Format) != c.dstFmt {
		return OutputChanged
	}
	if c.cropW != c.srcW || c.cropH != c.srcH {
		src = c.cropView(src)
	}
	if c.srcFmt == c.dstFmt {
		c.scaleSameFormat(dst, src)
		return OK
	}
	scaled := src
	if c.cropW != c.dstW || c.cropH != c.dstH {
		if c.tmp == nil {
			c.tmp = FrameAlloc()
			c.tmp.Format, c.tmp.Width, c.tmp.Height = int(c.srcFmt), c.dstW, c.dstH
			if st := c.tmp.GetBuffer(1); st.Failed() {
				return st
			}
		}
		c.scaleSameFormat(c.tmp, src)
		scaled = c.tmp
	}
	convertPixels(dst, scaled, c.dstW, c.dstH)
	return OK
}

// Free is sws_freeContext.
func (c *ScaleContext) Free() {
	if c.tmp != nil {
		c.tmp.Unref()
		c.tmp = nil
	}
}

func (c *ScaleContext) scaleSameFormat(dst, src *Frame) {
	d, _ := c.srcFmt.Descriptor()
	for p := 0; p < d.Planes; p++ {
		sw, sh := c.cropW, c.cropH
		dw, dh := c.dstW, c.dstH
		if p > 0 && !d.RGB {
			sw, sh = -((-sw) >> d.Log2ChromaW), -((-sh) >> d.Log2ChromaH)
			dw, dh = -((-dw) >> d.Log2ChromaW), -((-dh) >> d.Log2ChromaH)
		}
		scalePlane(src.Data[p], src.Linesize[p], sw, sh,
			dst.Data[p], dst.Linesize[p], dw, dh, d.Step[p])
	}
}

// scalePlane scales one plane with bilinear interpolation in 16.16 fixed
// point. step is the number of interleaved components per pixel.
func scalePlane(src []byte, srcStride, srcW, srcH int, dst []byte, dstStride, dstW, dstH, step int) {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return
	}
	xRatio := (srcW << 16) / dstW
	yRatio := (srcH << 16) / dstH

	for y := 0; y < dstH; y++ {
		srcYFP := y * yRatio
		y0 := srcYFP >> 16
		yWeight := srcYFP & 0xFFFF
		y1 := y0 + 1
		if y1 >= srcH {
			y1 = y0
		}
		for x := 0; x < dstW; x++ {
			srcXFP := x * xRatio
			x0 := srcXFP >> 16
			xWeight := srcXFP & 0xFFFF
			x1 := x0 + 1
			if x1 >= srcW {
				x1 = x0
			}
			for k := 0; k < step; k++ {
				p00 := int(src[y0*srcStride+x0*step+k])
				p10 := int(src[y0*srcStride+x1*step+k])
				p01 := int(src[y1*srcStride+x0*step+k])
				p11 := int(src[y1*srcStride+x1*step+k])

				top := (p00*(0x10000-xWeight) + p10*xWeight) >> 16
				bottom := (p01*(0x10000-xWeight) + p11*xWeight) >> 16
				dst[y*dstStride+x*step+k] = byte((top*(0x10000-yWeight) + bottom*yWeight) >> 16)
			}
		}
	}
}

// rgbOffsets gives the byte offsets of R, G, B and alpha (or -1) inside a
// packed pixel.
func rgbOffsets(f PixelFormat) (r, g, b, a int) {
	switch f {
	case PixFmtRGB24:
		return 0, 1, 2, -1
	case PixFmtBGR24:
		return 2, 1, 0, -1
	case PixFmtRGBA:
		return 0, 1, 2, 3
	case PixFmtBGRA:
		return 2, 1, 0, 3
	case PixFmtARGB:
		return 1, 2, 3, 0
	case PixFmtABGR:
		return 3, 2, 1, 0
	}
	return -1, -1, -1, -1
}

func readPixel(f *Frame, x, y int) (r, g, b, a uint8) {
	pf := PixelFormat(f.Format)
	d, _ := pf.Descriptor()
	if d.RGB {
		ro, gi, bo, ao := rgbOffsets(pf)
		px := f.Data[0][y*f.Linesize[0]+x*d.Step[0]:]
		a = 255
		if ao >= 0 {
			a = px[ao]
		}
		return px[ro], px[gi], px[bo], a
	}
	Y := f.Data[0][y*f.Linesize[0]+x]
	if pf == PixFmtGRAY8 {
		return Y, Y, Y, 255
	}
	cx, cy := x>>d.Log2ChromaW, y>>d.Log2ChromaH
	var u, v uint8
	switch pf {
	case PixFmtNV12:
		u = f.Data[1][cy*f.Linesize[1]+cx*2]
		v = f.Data[1][cy*f.Linesize[1]+cx*2+1]
	case PixFmtNV21:
		v = f.Data[1][cy*f.Linesize[1]+cx*2]
		u = f.Data[1][cy*f.Linesize[1]+cx*2+1]
	default:
		u = f.Data[1][cy*f.Linesize[1]+cx]
		v = f.Data[2][cy*f.Linesize[2]+cx]
	}
	r, g, b = yuvToRGB(Y, u, v)
	return r, g, b, 255
}

func writePixel(f *Frame, x, y int, r, g, b, a uint8) {
	pf := PixelFormat(f.Format)
	d, _ := pf.Descriptor()
	if d.RGB {
		ro, gi, bo, ao := rgbOffsets(pf)
		px := f.Data[0][y*f.Linesize[0]+x*d.Step[0]:]
		px[ro], px[gi], px[bo] = r, g, b
		if ao >= 0 {
			px[ao] = a
		}
		return
	}
	Y, u, v := rgbToYUV(r, g, b)
	f.Data[0][y*f.Linesize[0]+x] = Y
	if pf == PixFmtGRAY8 {
		return
	}
	// Chroma is taken from the top-left pixel of each subsampled block.
	if x&((1<<d.Log2ChromaW)-1) != 0 || y&((1<<d.Log2ChromaH)-1) != 0 {
		return
	}
	cx, cy := x>>d.Log2ChromaW, y>>d.Log2ChromaH
	switch pf {
	case PixFmtNV12:
		f.Data[1][cy*f.Linesize[1]+cx*2] = u
		f.Data[1][cy*f.Linesize[1]+cx*2+1] = v
	case PixFmtNV21:
		f.Data[1][cy*f.Linesize[1]+cx*2] = v
		f.Data[1][cy*f.Linesize[1]+cx*2+1] = u
	default:
		f.Data[1][cy*f.Linesize[1]+cx] = u
		f.Data[2][cy*f.Linesize[2]+cx] = v
	}
}

func convertPixels(dst, src *Frame, w, h int) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := readPixel(src, x, y)
			writePixel(dst, x, y, r, g, b, a)
		}
	}
}

// BT.601 limited range.
func rgbToYUV(r, g, b uint8) (y, u, v uint8) {
	R, G, B := int(r), int(g), int(b)
	y = clamp8(((66*R + 129*G + 25*B + 128) >> 8) + 16)
	u = clamp8(((-38*R - 74*G + 112*B + 128) >> 8) + 128)
	v = clamp8(((112*R - 94*G - 18*B + 128) >> 8) + 128)
	return
}

func yuvToRGB(y, u, v uint8) (r, g, b uint8) {
	C := int(y) - 16
	D := int(u) - 128
	E := int(v) - 128
	r = clamp8((298*C + 409*E + 128) >> 8)
	g = clamp8((298*C - 100*D - 208*E + 128) >> 8)
	b = clamp8((298*C + 516*D + 128) >> 8)
	return
}

func clamp8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
