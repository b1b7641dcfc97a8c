package av

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useSoftBackend pins the pure Go kernel so sample counts are exact.
func useSoftBackend(t *testing.T) {
	t.Helper()
	prev := CurrentResamplerBackend()
	require.NoError(t, SetResamplerBackend(ResamplerSoft.String()))
	t.Cleanup(func() { _ = SetResamplerBackend(prev.String()) })
}

func newStereoResampler(t *testing.T, dstRate, srcRate int) *AudioResampler {
	t.Helper()
	r, err := NewAudioResampler(
		ChannelLayoutStereo, dstRate, SampleFormatS16,
		ChannelLayoutStereo, srcRate, SampleFormatS16, nil)
	require.NoError(t, err)
	t.Cleanup(r.Free)
	return r
}

func newDstFrame(t *testing.T, samples, rate int) *AudioFrame {
	t.Helper()
	f, err := NewAudioFrame(SampleFormatS16, samples, ChannelLayoutStereo, rate, 0)
	require.NoError(t, err)
	t.Cleanup(f.Free)
	return f
}

func pushFrame(t *testing.T, r *AudioResampler, samples, rate int, pts int64) {
	t.Helper()
	f, err := NewAudioFrame(SampleFormatS16, samples, ChannelLayoutStereo, rate, 0)
	require.NoError(t, err)
	defer f.Free()
	f.SetTimeBase(NewRational(1, rate))
	f.SetPts(pts)
	require.NoError(t, r.Push(f))
}

func TestResamplerIdentity(t *testing.T) {
	useSoftBackend(t)
	r := newStereoResampler(t, 48000, 48000)

	src := newTestAudioFrame(t, 1024, 0)
	defer src.Free()
	src.SetStreamIndex(3)
	require.NoError(t, r.Push(src))

	dst := newDstFrame(t, 1024, 48000)
	got, err := r.Pop(dst, false)
	require.NoError(t, err)
	require.True(t, got)

	assert.Equal(t, 1024, dst.SamplesCount())
	assert.Equal(t, int64(0), dst.Pts())
	assert.Equal(t, NewRational(1, 48000), dst.TimeBase())
	assert.Equal(t, 3, dst.StreamIndex())
	assert.True(t, dst.IsComplete())
	assert.Equal(t, int64(0), r.Delay())
}

// drainAll pops 512-sample frames with flushAll until the resampler is
// empty and returns the emitted pts and sample counts.
func drainAll(t *testing.T, r *AudioResampler, rate int) (pts []int64, counts []int) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		dst := newDstFrame(t, 512, rate)
		got, err := r.Pop(dst, true)
		require.NoError(t, err)
		if !got {
			return pts, counts
		}
		pts = append(pts, dst.Pts())
		counts = append(counts, dst.SamplesCount())
	}
	t.Fatal("resampler never drained")
	return nil, nil
}

func TestResamplerDownsample(t *testing.T) {
	useSoftBackend(t)
	r := newStereoResampler(t, 24000, 48000)

	for i := 0; i < 10; i++ {
		pushFrame(t, r, 1024, 48000, int64(i*1024))
	}
	pts, counts := drainAll(t, r, 24000)

	total := 0
	for i, n := range counts {
		assert.Equal(t, int64(total), pts[i], "frame %d", i)
		assert.Positive(t, n)
		total += n
	}
	assert.InDelta(t, 5120, total, 4)
	assert.Equal(t, int64(0), r.Delay())

	t.Run("discontinuity restarts pts", func(t *testing.T) {
		pushFrame(t, r, 1024, 48000, 0)
		dst := newDstFrame(t, 512, 24000)
		got, err := r.Pop(dst, true)
		require.NoError(t, err)
		require.True(t, got)
		assert.Equal(t, int64(0), dst.Pts())
	})
}

func TestResamplerPtsContinuity(t *testing.T) {
	useSoftBackend(t)

	tests := []struct {
		name             string
		dstRate, srcRate int
		pushes, samples  int
	}{
		{"identity", 48000, 48000, 4, 960},
		{"upsample", 48000, 16000, 5, 320},
		{"downsample odd", 8000, 44100, 3, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newStereoResampler(t, tt.dstRate, tt.srcRate)
			for i := 0; i < tt.pushes; i++ {
				pushFrame(t, r, tt.samples, tt.srcRate, int64(i*tt.samples))
			}
			pts, counts := drainAll(t, r, tt.dstRate)

			var total int64
			for i, n := range counts {
				assert.Equal(t, total, pts[i])
				total += int64(n)
			}
			want := int64(tt.pushes*tt.samples) * int64(tt.dstRate) / int64(tt.srcRate)
			assert.InDelta(t, want, total, 4)
		})
	}
}

func TestResamplerInputMismatch(t *testing.T) {
	useSoftBackend(t)
	r := newStereoResampler(t, 48000, 48000)

	bad, err := NewAudioFrame(SampleFormatS16, 1024, ChannelLayoutStereo, 44100, 0)
	require.NoError(t, err)
	defer bad.Free()
	assert.ErrorIs(t, r.Push(bad), ErrInputParametersChanged)
	assert.Equal(t, int64(0), r.Delay())

	pushFrame(t, r, 1024, 48000, 0)
	dst := newDstFrame(t, 1024, 48000)
	got, err := r.Pop(dst, false)
	require.NoError(t, err)
	assert.True(t, got)
	assert.Equal(t, 1024, dst.SamplesCount())
}

func TestResamplerFlush(t *testing.T) {
	useSoftBackend(t)

	tests := []struct {
		name             string
		dstRate, srcRate int
		want             int
	}{
		{"same rate", 48000, 48000, 500},
		{"half rate", 24000, 48000, 250},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newStereoResampler(t, tt.dstRate, tt.srcRate)
			pushFrame(t, r, 500, tt.srcRate, 0)

			dst := newDstFrame(t, 1024, tt.dstRate)
			got, err := r.Pop(dst, false)
			require.NoError(t, err)
			assert.False(t, got)
			assert.Equal(t, 1024, dst.SamplesCount(), "dst untouched on underflow")

			got, err = r.Pop(dst, true)
			require.NoError(t, err)
			require.True(t, got)
			assert.InDelta(t, tt.want, dst.SamplesCount(), 1)
			assert.Equal(t, int64(0), dst.Pts())
		})
	}
}

func TestResamplerUninitialized(t *testing.T) {
	useSoftBackend(t)
	var r AudioResampler
	assert.False(t, r.IsInitialized())

	src := newTestAudioFrame(t, 256, 0)
	defer src.Free()
	dst := newDstFrame(t, 256, 48000)

	assert.ErrorIs(t, r.Push(src), ErrResamplerNotInited)
	_, err := r.Pop(dst, false)
	assert.ErrorIs(t, err, ErrResamplerNotInited)
	_, err = r.PopSamples(16)
	assert.ErrorIs(t, err, ErrResamplerNotInited)
	assert.Equal(t, int64(0), r.Delay())

	require.NoError(t, r.Init(
		ChannelLayoutStereo, 48000, SampleFormatS16,
		ChannelLayoutStereo, 48000, SampleFormatS16, nil))
	defer r.Free()
	require.NoError(t, r.Push(src))
	got, err := r.Pop(dst, false)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestResamplerInitInvalid(t *testing.T) {
	tests := []struct {
		name   string
		layout ChannelLayout
		rate   int
		format SampleFormat
	}{
		{"empty layout", 0, 48000, SampleFormatS16},
		{"zero rate", ChannelLayoutStereo, 0, SampleFormatS16},
		{"negative rate", ChannelLayoutStereo, -8000, SampleFormatS16},
		{"no format", ChannelLayoutStereo, 48000, SampleFormatNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r AudioResampler
			err := r.Init(tt.layout, tt.rate, tt.format, ChannelLayoutStereo, 48000, SampleFormatS16, nil)
			assert.ErrorIs(t, err, ErrInvalidParameters)
			assert.False(t, r.IsInitialized())

			err = r.Init(ChannelLayoutStereo, 48000, SampleFormatS16, tt.layout, tt.rate, tt.format, nil)
			assert.ErrorIs(t, err, ErrInvalidParameters)
			assert.False(t, r.IsInitialized())
		})
	}
}

func TestResamplerInitOptions(t *testing.T) {
	useSoftBackend(t)

	opts := Options{"filter_size": "32"}
	r, err := NewAudioResampler(
		ChannelLayoutStereo, 48000, SampleFormatS16,
		ChannelLayoutStereo, 44100, SampleFormatS16, opts)
	require.NoError(t, err)
	defer r.Free()
	assert.Empty(t, opts, "applied options are consumed")

	bad := Options{"filter_size": "32", "no_such_option": "1"}
	_, err = NewAudioResampler(
		ChannelLayoutStereo, 48000, SampleFormatS16,
		ChannelLayoutStereo, 44100, SampleFormatS16, bad)
	assert.ErrorIs(t, err, ErrResamplerInitFailed)
	assert.Equal(t, Options{"filter_size": "32", "no_such_option": "1"}, bad, "failed init leaves opts intact")
}

func monoRamp(t *testing.T, start, n int, pts int64) *AudioFrame {
	t.Helper()
	data := make([]byte, 4*n)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(float32(start+i)/100))
	}
	f, err := NewAudioFrameFromData(data, SampleFormatFLT, n, ChannelLayoutMono, 24000, 1)
	require.NoError(t, err)
	f.SetPts(pts)
	t.Cleanup(f.Free)
	return f
}

func TestResamplerChunkedPushesMatchWhole(t *testing.T) {
	useSoftBackend(t)

	run := func(t *testing.T, chunk int) []float32 {
		r, err := NewAudioResampler(
			ChannelLayoutMono, 48000, SampleFormatFLT,
			ChannelLayoutMono, 24000, SampleFormatFLT, nil)
		require.NoError(t, err)
		defer r.Free()

		var out []float32
		collect := func(f *AudioFrame) {
			for i := 0; i < f.SamplesCount(); i++ {
				out = append(out, math.Float32frombits(binary.LittleEndian.Uint32(f.Data(0)[4*i:])))
			}
		}
		for start := 0; start < 16; start += chunk {
			require.NoError(t, r.Push(monoRamp(t, start, chunk, int64(start))))
			f, err := r.PopSamples(0)
			require.NoError(t, err)
			if !f.IsNull() {
				collect(f)
				f.Free()
			}
		}
		dst, err := NewAudioFrame(SampleFormatFLT, 64, ChannelLayoutMono, 48000, 1)
		require.NoError(t, err)
		defer dst.Free()
		got, err := r.Pop(dst, true)
		require.NoError(t, err)
		require.True(t, got)
		collect(dst)
		return out
	}

	want := run(t, 16)
	require.Len(t, want, 32)

	tests := []struct {
		name  string
		chunk int
	}{
		{"single samples", 1},
		{"quarters", 4},
		{"halves", 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, want, run(t, tt.chunk))
		})
	}
}

func TestResamplerReinitDiscardsState(t *testing.T) {
	useSoftBackend(t)
	r := newStereoResampler(t, 48000, 48000)
	pushFrame(t, r, 1024, 48000, 0)
	require.Equal(t, int64(1024), r.Delay())

	require.NoError(t, r.Init(
		ChannelLayoutMono, 16000, SampleFormatFLT,
		ChannelLayoutStereo, 48000, SampleFormatS16, nil))
	assert.Equal(t, int64(0), r.Delay())
	assert.Equal(t, ChannelLayoutMono, r.DstChannelLayout())
	assert.Equal(t, 16000, r.DstSampleRate())
	assert.Equal(t, SampleFormatFLT, r.DstSampleFormat())
	assert.Equal(t, 48000, r.SrcSampleRate())

	pushFrame(t, r, 480, 48000, 5000)
	f, err := r.PopSamples(0)
	require.NoError(t, err)
	require.False(t, f.IsNull())
	defer f.Free()
	assert.Equal(t, int64(0), f.Pts(), "pts tracking starts over")
	assert.Equal(t, 1, f.Channels())
	assert.Equal(t, SampleFormatFLT, f.SampleFormat())
}

func TestResamplerOutputMismatch(t *testing.T) {
	useSoftBackend(t)
	r := newStereoResampler(t, 48000, 48000)
	pushFrame(t, r, 1024, 48000, 0)

	bad := []struct {
		name   string
		format SampleFormat
		layout ChannelLayout
		rate   int
	}{
		{"format", SampleFormatFLT, ChannelLayoutStereo, 48000},
		{"rate", SampleFormatS16, ChannelLayoutStereo, 44100},
		{"layout", SampleFormatS16, ChannelLayoutMono, 48000},
		{"same channel count", SampleFormatS16, ChannelLayoutByName("0x3000"), 48000},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			if tt.layout.Channels() == 0 {
				t.Skip("layout not parsed")
			}
			dst, err := NewAudioFrame(tt.format, 512, tt.layout, tt.rate, 0)
			require.NoError(t, err)
			defer dst.Free()
			_, err = r.Pop(dst, true)
			assert.ErrorIs(t, err, ErrOutputParametersChanged)
			assert.Equal(t, int64(1024), r.Delay())
		})
	}

	dst := newDstFrame(t, 1024, 48000)
	got, err := r.Pop(dst, false)
	require.NoError(t, err)
	require.True(t, got)
	assert.Equal(t, int64(0), dst.Pts())
}

func TestResamplerUnderflow(t *testing.T) {
	useSoftBackend(t)
	r := newStereoResampler(t, 48000, 48000)
	pushFrame(t, r, 300, 48000, 0)

	for _, size := range []int{301, 512, 4096} {
		dst := newDstFrame(t, size, 48000)
		got, err := r.Pop(dst, false)
		require.NoError(t, err)
		assert.False(t, got, "size %d", size)
	}
	assert.Equal(t, int64(300), r.Delay())

	dst := newDstFrame(t, 300, 48000)
	got, err := r.Pop(dst, false)
	require.NoError(t, err)
	assert.True(t, got)
	assert.Equal(t, int64(0), dst.Pts(), "failed pops did not advance pts")
}

func TestResamplerPopSamples(t *testing.T) {
	useSoftBackend(t)
	r := newStereoResampler(t, 48000, 48000)
	pushFrame(t, r, 1000, 48000, 0)

	f, err := r.PopSamples(2000)
	require.NoError(t, err)
	assert.True(t, f.IsNull())

	f, err = r.PopSamples(600)
	require.NoError(t, err)
	require.False(t, f.IsNull())
	assert.Equal(t, 600, f.SamplesCount())
	assert.Equal(t, int64(0), f.Pts())
	f.Free()

	f, err = r.PopSamples(0)
	require.NoError(t, err)
	require.False(t, f.IsNull())
	assert.Equal(t, 400, f.SamplesCount())
	assert.Equal(t, int64(600), f.Pts())
	f.Free()

	f, err = r.PopSamples(0)
	require.NoError(t, err)
	assert.True(t, f.IsNull())

	_, err = r.PopSamples(-1)
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestResamplerMove(t *testing.T) {
	useSoftBackend(t)
	r := newStereoResampler(t, 48000, 48000)
	pushFrame(t, r, 256, 48000, 0)

	m := r.Move()
	defer m.Free()
	assert.False(t, r.IsInitialized())
	assert.True(t, m.IsInitialized())
	assert.Equal(t, int64(256), m.Delay())

	dst := newDstFrame(t, 256, 48000)
	_, err := r.Pop(dst, true)
	assert.ErrorIs(t, err, ErrResamplerNotInited)
	got, err := m.Pop(dst, true)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestResamplerRemix(t *testing.T) {
	useSoftBackend(t)
	r, err := NewAudioResampler(
		ChannelLayoutMono, 48000, SampleFormatS16,
		ChannelLayoutStereo, 48000, SampleFormatS16, nil)
	require.NoError(t, err)
	defer r.Free()

	// L = 0x1000, R = 0x3000 averages to 0x2000.
	data := make([]byte, 4*4)
	for i := 0; i < 4; i++ {
		data[i*4+1] = 0x10
		data[i*4+3] = 0x30
	}
	src, err := NewAudioFrameFromData(data, SampleFormatS16, 4, ChannelLayoutStereo, 48000, 1)
	require.NoError(t, err)
	defer src.Free()
	require.NoError(t, r.Push(src))

	out, err := r.PopSamples(4)
	require.NoError(t, err)
	require.False(t, out.IsNull())
	defer out.Free()
	for i := 0; i < 4; i++ {
		assert.Equal(t, byte(0x00), out.Data(0)[i*2])
		assert.Equal(t, byte(0x20), out.Data(0)[i*2+1])
	}
}
