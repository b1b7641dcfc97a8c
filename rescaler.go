package av

import (
	"github.com/thesyncim/av/internal/native"
)

// Rescaler interpolation flags. Only bilinear filtering is implemented;
// the other values are accepted and treated alike.
const (
	RescaleFastBilinear = native.ScaleFastBilinear
	RescaleBilinear     = native.ScaleBilinear
	RescaleBicubic      = native.ScaleBicubic
)

// ScaleMode defines how a target size is derived from a source size.
type ScaleMode int

const (
	// ScaleModeFit scales to fit within target dimensions, preserving aspect ratio.
	ScaleModeFit ScaleMode = iota
	// ScaleModeFill fills the target dimensions, preserving aspect ratio
	// by cropping the source.
	ScaleModeFill
	// ScaleModeStretch scales the whole source to the target dimensions.
	ScaleModeStretch
)

// CalculateScaledSize returns the output dimensions when scaling
// srcW x srcH into maxW x maxH. Fit results are rounded up to even sizes
// so chroma-subsampled formats stay valid.
func CalculateScaledSize(srcW, srcH, maxW, maxH int, mode ScaleMode) (w, h int) {
	if mode != ScaleModeFit || srcW <= 0 || srcH <= 0 || maxW <= 0 || maxH <= 0 {
		return maxW, maxH
	}
	srcAspect := float64(srcW) / float64(srcH)
	dstAspect := float64(maxW) / float64(maxH)
	if srcAspect > dstAspect {
		w = maxW
		h = int(float64(maxW) / srcAspect)
	} else {
		h = maxH
		w = int(float64(maxH) * srcAspect)
	}
	w = (w + 1) &^ 1
	h = (h + 1) &^ 1
	return w, h
}

// CalculateSourceRegion returns the part of a srcW x srcH picture that is
// scaled into dstW x dstH. Only ScaleModeFill crops: it keeps the centered
// region with the destination aspect ratio.
func CalculateSourceRegion(srcW, srcH, dstW, dstH int, mode ScaleMode) (x, y, w, h int) {
	if mode != ScaleModeFill || srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return 0, 0, srcW, srcH
	}
	srcAspect := float64(srcW) / float64(srcH)
	dstAspect := float64(dstW) / float64(dstH)
	switch {
	case srcAspect > dstAspect:
		w = int(float64(srcH) * dstAspect)
		return (srcW - w) / 2, 0, w, srcH
	case srcAspect < dstAspect:
		h = int(float64(srcW) / dstAspect)
		return 0, (srcH - h) / 2, srcW, h
	}
	return 0, 0, srcW, srcH
}

// VideoRescaler converts pictures between a fixed source geometry and a
// fixed destination geometry, each a (width, height, pixel format)
// triple. The zero value is uninitialized.
type VideoRescaler struct {
	sc *native.ScaleContext

	dstW, dstH int
	dstFmt     PixelFormat
	srcW, srcH int
	srcFmt     PixelFormat
	mode       ScaleMode
}

// NewVideoRescaler returns an initialized rescaler.
func NewVideoRescaler(dstW, dstH int, dstFmt PixelFormat, srcW, srcH int, srcFmt PixelFormat, flags int) (*VideoRescaler, error) {
	r := &VideoRescaler{}
	if err := r.Init(dstW, dstH, dstFmt, srcW, srcH, srcFmt, flags); err != nil {
		return nil, err
	}
	return r, nil
}

// Init configures the rescaler, replacing any previous configuration. On
// failure the rescaler is left uninitialized.
func (r *VideoRescaler) Init(dstW, dstH int, dstFmt PixelFormat, srcW, srcH int, srcFmt PixelFormat, flags int) error {
	const op = "rescaler init"
	r.Free()
	if dstW <= 0 || dstH <= 0 || srcW <= 0 || srcH <= 0 {
		return newError(KindInvalidParameters, op, "%dx%d -> %dx%d", srcW, srcH, dstW, dstH)
	}
	if dstFmt == PixelFormatNone || srcFmt == PixelFormatNone {
		return newError(KindInvalidParameters, op, "pixel format %s -> %s", srcFmt, dstFmt)
	}
	sc, st := native.GetScaleContext(srcW, srcH, native.PixelFormat(srcFmt), dstW, dstH, native.PixelFormat(dstFmt), flags)
	if st.Failed() {
		return wrapStatus(KindRescalerInitFailed, op, st)
	}
	*r = VideoRescaler{
		sc:   sc,
		dstW: dstW, dstH: dstH, dstFmt: dstFmt,
		srcW: srcW, srcH: srcH, srcFmt: srcFmt,
	}
	return nil
}

func (r *VideoRescaler) IsInitialized() bool { return r.sc != nil }

// SetScaleMode selects how a source whose aspect ratio differs from the
// destination is mapped. Fit and Stretch scale the whole picture; Fill
// crops it.
func (r *VideoRescaler) SetScaleMode(mode ScaleMode) error {
	const op = "rescaler set scale mode"
	if r.sc == nil {
		return newError(KindInvalidStateTransition, op, "rescaler is not initialized")
	}
	if mode < ScaleModeFit || mode > ScaleModeStretch {
		return newError(KindInvalidParameters, op, "scale mode %d", mode)
	}
	x, y, w, h := CalculateSourceRegion(r.srcW, r.srcH, r.dstW, r.dstH, mode)
	if st := r.sc.SetSourceRegion(x, y, w, h); st.Failed() {
		return wrapStatus(KindInvalidParameters, op, st)
	}
	r.mode = mode
	return nil
}

func (r *VideoRescaler) ScaleMode() ScaleMode { return r.mode }

func (r *VideoRescaler) DstWidth() int               { return r.dstW }
func (r *VideoRescaler) DstHeight() int              { return r.dstH }
func (r *VideoRescaler) DstPixelFormat() PixelFormat { return r.dstFmt }
func (r *VideoRescaler) SrcWidth() int               { return r.srcW }
func (r *VideoRescaler) SrcHeight() int              { return r.srcH }
func (r *VideoRescaler) SrcPixelFormat() PixelFormat { return r.srcFmt }

// Rescale converts src into dst. dst is made writable first and receives
// src's pts, time base and stream index.
func (r *VideoRescaler) Rescale(dst, src *VideoFrame) error {
	const op = "rescale"
	if r.sc == nil {
		return newError(KindInvalidStateTransition, op, "rescaler is not initialized")
	}
	if src == nil || src.IsNull() || dst == nil || dst.IsNull() {
		return newError(KindInvalidParameters, op, "null frame")
	}
	if src.Width() != r.srcW || src.Height() != r.srcH || src.PixelFormat() != r.srcFmt {
		return newError(KindInputParametersChanged, op, "got %dx%d %s want %dx%d %s",
			src.Width(), src.Height(), src.PixelFormat(), r.srcW, r.srcH, r.srcFmt)
	}
	if dst.Width() != r.dstW || dst.Height() != r.dstH || dst.PixelFormat() != r.dstFmt {
		return newError(KindOutputParametersChanged, op, "got %dx%d %s want %dx%d %s",
			dst.Width(), dst.Height(), dst.PixelFormat(), r.dstW, r.dstH, r.dstFmt)
	}
	if err := dst.MakeWritable(); err != nil {
		return err
	}
	if st := r.sc.ScaleFrame(dst.f, src.f); st.Failed() {
		return nativeErr(op, st)
	}
	dst.f.Pts = src.f.Pts
	dst.fakePts = src.fakePts
	dst.timeBase = src.timeBase
	dst.streamIndex = src.streamIndex
	dst.f.KeyFrame = src.f.KeyFrame
	dst.f.PictType = src.f.PictType
	dst.complete = true
	metrics.rescalerFrames.Inc()
	return nil
}

// RescaleNew converts src into a newly allocated frame.
func (r *VideoRescaler) RescaleNew(src *VideoFrame) (*VideoFrame, error) {
	const op = "rescale new"
	if r.sc == nil {
		return nil, newError(KindInvalidStateTransition, op, "rescaler is not initialized")
	}
	dst, err := NewVideoFrame(r.dstFmt, r.dstW, r.dstH, 1)
	if err != nil {
		return nil, wrapFrameAlloc(op, err)
	}
	if err := r.Rescale(dst, src); err != nil {
		dst.Free()
		return nil, err
	}
	return dst, nil
}

// Free releases the scaler. The rescaler becomes uninitialized.
func (r *VideoRescaler) Free() {
	if r.sc != nil {
		r.sc.Free()
	}
	*r = VideoRescaler{}
}
