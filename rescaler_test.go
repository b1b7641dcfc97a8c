package av

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateScaledSize(t *testing.T) {
	tests := []struct {
		name         string
		srcW, srcH   int
		maxW, maxH   int
		mode         ScaleMode
		wantW, wantH int
	}{
		{"fit wide", 1920, 1080, 640, 640, ScaleModeFit, 640, 360},
		{"fit tall", 1080, 1920, 640, 640, ScaleModeFit, 360, 640},
		{"fit rounds to even", 1000, 333, 100, 100, ScaleModeFit, 100, 34},
		{"fit exact width", 400, 200, 640, 480, ScaleModeFit, 640, 320},
		{"fill", 1920, 1080, 640, 640, ScaleModeFill, 640, 640},
		{"stretch", 1920, 1080, 100, 50, ScaleModeStretch, 100, 50},
		{"zero source", 0, 1080, 640, 480, ScaleModeFit, 640, 480},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := CalculateScaledSize(tt.srcW, tt.srcH, tt.maxW, tt.maxH, tt.mode)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestVideoRescalerInitInvalid(t *testing.T) {
	tests := []struct {
		name   string
		dstW   int
		dstFmt PixelFormat
		srcFmt PixelFormat
		want   error
	}{
		{"zero width", 0, PixelFormatYUV420P, PixelFormatYUV420P, ErrInvalidParameters},
		{"negative width", -2, PixelFormatYUV420P, PixelFormatYUV420P, ErrInvalidParameters},
		{"no dst format", 16, PixelFormatNone, PixelFormatYUV420P, ErrInvalidParameters},
		{"no src format", 16, PixelFormatYUV420P, PixelFormatNone, ErrInvalidParameters},
		{"unsupported packed yuv", 16, PixelFormatYUV420P, PixelFormatYUYV422, ErrRescalerInitFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewVideoRescaler(tt.dstW, 16, tt.dstFmt, 16, 16, tt.srcFmt, RescaleBilinear)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, r)
		})
	}

	var r VideoRescaler
	require.NoError(t, r.Init(8, 8, PixelFormatGray8, 16, 16, PixelFormatGray8, RescaleBilinear))
	require.Error(t, r.Init(0, 8, PixelFormatGray8, 16, 16, PixelFormatGray8, RescaleBilinear))
	assert.False(t, r.IsInitialized(), "failed init leaves the rescaler uninitialized")
}

func TestVideoRescalerAccessors(t *testing.T) {
	r, err := NewVideoRescaler(320, 240, PixelFormatRGB24, 640, 480, PixelFormatYUV420P, RescaleBicubic)
	require.NoError(t, err)
	defer r.Free()

	assert.True(t, r.IsInitialized())
	assert.Equal(t, 320, r.DstWidth())
	assert.Equal(t, 240, r.DstHeight())
	assert.Equal(t, PixelFormatRGB24, r.DstPixelFormat())
	assert.Equal(t, 640, r.SrcWidth())
	assert.Equal(t, 480, r.SrcHeight())
	assert.Equal(t, PixelFormatYUV420P, r.SrcPixelFormat())

	r.Free()
	assert.False(t, r.IsInitialized())
	assert.Zero(t, r.DstWidth())
}

func TestVideoRescalerSameFormat(t *testing.T) {
	src, err := NewVideoFrameFromData(bytes.Repeat([]byte{0x80}, 16*16), PixelFormatGray8, 16, 16, 1)
	require.NoError(t, err)
	defer src.Free()
	src.SetPts(42)
	src.SetTimeBase(NewRational(1, 90000))
	src.SetStreamIndex(1)

	r, err := NewVideoRescaler(8, 4, PixelFormatGray8, 16, 16, PixelFormatGray8, RescaleFastBilinear)
	require.NoError(t, err)
	defer r.Free()

	dst, err := r.RescaleNew(src)
	require.NoError(t, err)
	defer dst.Free()

	assert.Equal(t, 8, dst.Width())
	assert.Equal(t, 4, dst.Height())
	assert.Equal(t, int64(42), dst.Pts())
	assert.Equal(t, NewRational(1, 90000), dst.TimeBase())
	assert.Equal(t, 1, dst.StreamIndex())
	assert.True(t, dst.IsComplete())
	for y := 0; y < 4; y++ {
		row := dst.Data(0)[y*dst.Linesize(0):][:8]
		assert.Equal(t, bytes.Repeat([]byte{0x80}, 8), row, "row %d", y)
	}
}

func TestVideoRescalerConvert(t *testing.T) {
	white := bytes.Repeat([]byte{0xff}, 4*4*3)
	src, err := NewVideoFrameFromData(white, PixelFormatRGB24, 4, 4, 1)
	require.NoError(t, err)
	defer src.Free()

	r, err := NewVideoRescaler(4, 4, PixelFormatYUV420P, 4, 4, PixelFormatRGB24, RescaleBilinear)
	require.NoError(t, err)
	defer r.Free()

	dst, err := NewVideoFrame(PixelFormatYUV420P, 4, 4, 1)
	require.NoError(t, err)
	defer dst.Free()
	require.NoError(t, r.Rescale(dst, src))

	assert.Equal(t, byte(235), dst.Data(0)[0], "studio-range white luma")
	assert.Equal(t, byte(128), dst.Data(1)[0])
	assert.Equal(t, byte(128), dst.Data(2)[0])

	back, err := NewVideoRescaler(4, 4, PixelFormatRGB24, 4, 4, PixelFormatYUV420P, RescaleBilinear)
	require.NoError(t, err)
	defer back.Free()
	rgb, err := back.RescaleNew(dst)
	require.NoError(t, err)
	defer rgb.Free()
	for _, c := range rgb.Data(0)[:3] {
		assert.InDelta(t, 255, int(c), 2)
	}
}

func TestVideoRescalerErrors(t *testing.T) {
	var zero VideoRescaler
	frame, err := NewVideoFrame(PixelFormatGray8, 16, 16, 1)
	require.NoError(t, err)
	defer frame.Free()

	assert.ErrorIs(t, zero.Rescale(frame, frame), ErrInvalidStateTransition)
	_, err = zero.RescaleNew(frame)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	r, err := NewVideoRescaler(8, 8, PixelFormatGray8, 16, 16, PixelFormatGray8, RescaleBilinear)
	require.NoError(t, err)
	defer r.Free()

	small, err := NewVideoFrame(PixelFormatGray8, 8, 8, 1)
	require.NoError(t, err)
	defer small.Free()
	rgb, err := NewVideoFrame(PixelFormatRGB24, 16, 16, 1)
	require.NoError(t, err)
	defer rgb.Free()

	tests := []struct {
		name     string
		dst, src *VideoFrame
		want     error
	}{
		{"nil src", small, nil, ErrInvalidParameters},
		{"nil dst", nil, frame, ErrInvalidParameters},
		{"null src", small, &VideoFrame{nullFrame()}, ErrInvalidParameters},
		{"src size", small, small, ErrInputParametersChanged},
		{"src format", small, rgb, ErrInputParametersChanged},
		{"dst size", frame, frame, ErrOutputParametersChanged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, r.Rescale(tt.dst, tt.src), tt.want)
		})
	}

	_, err = r.RescaleNew(rgb)
	assert.ErrorIs(t, err, ErrInputParametersChanged)
}

func TestCalculateSourceRegion(t *testing.T) {
	tests := []struct {
		name       string
		srcW, srcH int
		dstW, dstH int
		mode       ScaleMode
		want       [4]int
	}{
		{"fill crops width", 1920, 1080, 640, 640, ScaleModeFill, [4]int{420, 0, 1080, 1080}},
		{"fill crops height", 1080, 1920, 640, 640, ScaleModeFill, [4]int{0, 420, 1080, 1080}},
		{"fill same aspect", 640, 480, 320, 240, ScaleModeFill, [4]int{0, 0, 640, 480}},
		{"fit keeps source", 1920, 1080, 640, 640, ScaleModeFit, [4]int{0, 0, 1920, 1080}},
		{"stretch keeps source", 1920, 1080, 640, 640, ScaleModeStretch, [4]int{0, 0, 1920, 1080}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, w, h := CalculateSourceRegion(tt.srcW, tt.srcH, tt.dstW, tt.dstH, tt.mode)
			assert.Equal(t, tt.want, [4]int{x, y, w, h})
		})
	}
}

func TestVideoRescalerFillCrops(t *testing.T) {
	// 8x4 picture: two dark columns, four mid-grey, two bright.
	row := []byte{0x00, 0x00, 0x80, 0x80, 0x80, 0x80, 0xff, 0xff}
	src, err := NewVideoFrameFromData(bytes.Repeat(row, 4), PixelFormatGray8, 8, 4, 1)
	require.NoError(t, err)
	defer src.Free()

	tests := []struct {
		name    string
		mode    ScaleMode
		wantRow []byte
	}{
		{"fill", ScaleModeFill, []byte{0x80, 0x80, 0x80, 0x80}},
		{"stretch", ScaleModeStretch, []byte{0x00, 0x80, 0x80, 0xff}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewVideoRescaler(4, 4, PixelFormatGray8, 8, 4, PixelFormatGray8, RescaleBilinear)
			require.NoError(t, err)
			defer r.Free()
			require.NoError(t, r.SetScaleMode(tt.mode))
			assert.Equal(t, tt.mode, r.ScaleMode())

			dst, err := r.RescaleNew(src)
			require.NoError(t, err)
			defer dst.Free()
			for y := 0; y < 4; y++ {
				assert.Equal(t, tt.wantRow, dst.Data(0)[y*dst.Linesize(0):][:4], "row %d", y)
			}
		})
	}

	var zero VideoRescaler
	assert.ErrorIs(t, zero.SetScaleMode(ScaleModeFill), ErrInvalidStateTransition)
	r, err := NewVideoRescaler(4, 4, PixelFormatGray8, 8, 4, PixelFormatGray8, RescaleBilinear)
	require.NoError(t, err)
	defer r.Free()
	assert.ErrorIs(t, r.SetScaleMode(ScaleMode(7)), ErrInvalidParameters)
}
