package native

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSoft(t *testing.T, inRate, outRate int64, inLayout, outLayout uint64, inFmt, outFmt SampleFormat) Resampler {
	t.Helper()
	r, st := newSoftResampler()
	require.Equal(t, OK, st)
	require.Equal(t, OK, r.SetInt("in_channel_layout", int64(inLayout)))
	require.Equal(t, OK, r.SetInt("out_channel_layout", int64(outLayout)))
	require.Equal(t, OK, r.SetInt("in_sample_rate", inRate))
	require.Equal(t, OK, r.SetInt("out_sample_rate", outRate))
	require.Equal(t, OK, r.SetInt("in_sample_fmt", int64(inFmt)))
	require.Equal(t, OK, r.SetInt("out_sample_fmt", int64(outFmt)))
	require.Equal(t, OK, r.Init())
	return r
}

func audioFrame(t *testing.T, f SampleFormat, layout uint64, rate, n int) *Frame {
	t.Helper()
	fr := FrameAlloc()
	fr.Format = int(f)
	fr.ChannelLayout = layout
	fr.SampleRate = rate
	fr.NbSamples = n
	require.Equal(t, OK, fr.GetBuffer(0))
	return fr
}

func TestSoftResampler_Options(t *testing.T) {
	r, _ := newSoftResampler()
	assert.Equal(t, OptionNotFound, r.SetInt("no_such_option", 1))
	assert.Equal(t, ERANGE, r.SetInt("in_sample_fmt", 99))
	assert.Equal(t, OK, r.Set("resampler", "swr"))
	assert.Equal(t, OK, r.Set("in_chlayout", "stereo"))
	assert.Equal(t, EINVAL, r.Init(), "incomplete configuration")
	assert.False(t, r.IsInitialized())
}

func TestSoftResampler_RateConversionCounts(t *testing.T) {
	r := newSoft(t, 48000, 44100, LayoutStereo, LayoutStereo, SampleFmtFLTP, SampleFmtS16)
	in := audioFrame(t, SampleFmtFLTP, LayoutStereo, 48000, 1024)

	require.Equal(t, OK, r.ConvertFrame(nil, in))
	// the 941st output sample needs input past the last pushed one
	assert.Equal(t, int64(940), r.Delay(44100))
	assert.Equal(t, int64(1024), r.Delay(48000))

	out := FrameAlloc()
	out.Format = int(SampleFmtS16)
	out.ChannelLayout = LayoutStereo
	out.SampleRate = 44100
	out.NbSamples = 500
	require.Equal(t, OK, r.ConvertFrame(out, emptyInput(SampleFmtFLTP, LayoutStereo, 48000)))
	assert.Equal(t, 500, out.NbSamples)
	assert.Equal(t, int64(440), r.Delay(44100))

	out.NbSamples = 500
	require.Equal(t, OK, r.ConvertFrame(out, emptyInput(SampleFmtFLTP, LayoutStereo, 48000)))
	assert.Equal(t, 440, out.NbSamples)

	out.NbSamples = 500
	require.Equal(t, OK, r.ConvertFrame(out, nil))
	assert.Equal(t, 1, out.NbSamples, "flush releases the held sample")
	assert.Zero(t, r.Delay(44100))
}

// emptyInput is a zero-sample frame of the input domain.
func emptyInput(f SampleFormat, layout uint64, rate int) *Frame {
	fr := FrameAlloc()
	fr.Format = int(f)
	fr.ChannelLayout = layout
	fr.SampleRate = rate
	return fr
}

func rampFrame(t *testing.T, start, n int) *Frame {
	t.Helper()
	fr := audioFrame(t, SampleFmtFLT, LayoutMono, 24000, n)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(fr.Data[0][4*i:], math.Float32bits(float32(start+i)/100))
	}
	return fr
}

func floatSamples(f *Frame) []float32 {
	out := make([]float32, f.NbSamples)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(f.Data[0][4*i:]))
	}
	return out
}

func TestSoftResampler_ChunkedMatchesWhole(t *testing.T) {
	tests := []struct {
		name  string
		chunk int
	}{
		{"single samples", 1},
		{"quarters", 4},
		{"uneven", 5},
	}

	whole := newSoft(t, 24000, 48000, LayoutMono, LayoutMono, SampleFmtFLT, SampleFmtFLT)
	out := FrameAlloc()
	out.Format = int(SampleFmtFLT)
	out.ChannelLayout = LayoutMono
	require.Equal(t, OK, whole.ConvertFrame(out, rampFrame(t, 0, 16)))
	want := floatSamples(out)
	require.Len(t, want, 31)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newSoft(t, 24000, 48000, LayoutMono, LayoutMono, SampleFmtFLT, SampleFmtFLT)
			var got []float32
			for start := 0; start < 16; start += tt.chunk {
				n := min(tt.chunk, 16-start)
				out := FrameAlloc()
				out.Format = int(SampleFmtFLT)
				out.ChannelLayout = LayoutMono
				require.Equal(t, OK, r.ConvertFrame(out, rampFrame(t, start, n)))
				got = append(got, floatSamples(out)...)
			}
			assert.Equal(t, want, got)

			tail := FrameAlloc()
			tail.Format = int(SampleFmtFLT)
			tail.ChannelLayout = LayoutMono
			require.Equal(t, OK, r.ConvertFrame(tail, nil))
			require.Equal(t, 1, tail.NbSamples)
			assert.Equal(t, float32(0.15), floatSamples(tail)[0])
		})
	}
}

func TestSoftResampler_Remix(t *testing.T) {
	r := newSoft(t, 8000, 8000, LayoutStereo, LayoutMono, SampleFmtS16, SampleFmtS16)
	in := audioFrame(t, SampleFmtS16, LayoutStereo, 8000, 4)
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint16(in.Data[0][4*i:], uint16(int16(1000)))
		binary.LittleEndian.PutUint16(in.Data[0][4*i+2:], uint16(int16(3000)))
	}
	out := FrameAlloc()
	out.Format = int(SampleFmtS16)
	out.ChannelLayout = LayoutMono
	require.Equal(t, OK, r.ConvertFrame(out, in))
	require.Equal(t, 4, out.NbSamples)
	for i := 0; i < 4; i++ {
		assert.Equal(t, int16(2000), int16(binary.LittleEndian.Uint16(out.Data[0][2*i:])))
	}
}

func TestSoftResampler_FormatChanges(t *testing.T) {
	r := newSoft(t, 8000, 8000, LayoutMono, LayoutMono, SampleFmtS16, SampleFmtFLT)
	wrong := audioFrame(t, SampleFmtS32, LayoutMono, 8000, 4)
	assert.Equal(t, InputChanged, r.ConvertFrame(nil, wrong))

	in := audioFrame(t, SampleFmtS16, LayoutMono, 8000, 2)
	binary.LittleEndian.PutUint16(in.Data[0], 0xC000) // -16384
	out := FrameAlloc()
	out.Format = int(SampleFmtFLT)
	out.ChannelLayout = LayoutMono
	require.Equal(t, OK, r.ConvertFrame(out, in))
	require.Equal(t, 2, out.NbSamples)
	v := math.Float32frombits(binary.LittleEndian.Uint32(out.Data[0]))
	assert.InDelta(t, -0.5, v, 1e-6)

	bad := FrameAlloc()
	bad.Format = int(SampleFmtS16)
	bad.ChannelLayout = LayoutMono
	assert.Equal(t, OutputChanged, r.ConvertFrame(bad, nil))
}

func TestResamplerAlloc_Backends(t *testing.T) {
	assert.Contains(t, ResamplerBackends(), BackendSoft)
	assert.Equal(t, OptionNotFound, SetDefaultResamplerBackend("nope"))

	prev := DefaultResamplerBackend()
	defer SetDefaultResamplerBackend(prev)
	require.Equal(t, OK, SetDefaultResamplerBackend(BackendSoft))
	r, st := ResamplerAlloc()
	require.Equal(t, OK, st)
	_, ok := r.(*softResampler)
	assert.True(t, ok)
}
