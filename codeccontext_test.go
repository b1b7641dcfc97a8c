package av

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMonoEncoder(t *testing.T, id CodecID, rate int) *CodecContext {
	t.Helper()
	enc, err := NewEncoder(FindEncodingCodec(id), nil)
	require.NoError(t, err)
	require.NoError(t, enc.SetSampleRate(rate))
	require.NoError(t, enc.SetChannelLayout(ChannelLayoutMono))
	require.NoError(t, enc.SetSampleFormat(SampleFormatS16))
	t.Cleanup(func() { _ = enc.Close() })
	return enc
}

func monoFrame(t *testing.T, samples, rate int, tb Rational, pts int64) *AudioFrame {
	t.Helper()
	f, err := NewAudioFrameFromData(testSignal(samples*2), SampleFormatS16, samples, ChannelLayoutMono, rate, 1)
	require.NoError(t, err)
	f.SetTimeBase(tb)
	f.SetPts(pts)
	t.Cleanup(f.Free)
	return f
}

func TestCodecContextEncodePCM(t *testing.T) {
	enc := newMonoEncoder(t, CodecIDPCMS16LE, 8000)
	assert.Equal(t, DirectionEncoding, enc.Direction())
	assert.False(t, enc.IsOpened())
	require.NoError(t, enc.Open(nil))
	assert.True(t, enc.IsOpened())
	assert.Equal(t, NewRational(1, 8000), enc.TimeBase())
	assert.Equal(t, 0, enc.FrameSize())
	assert.Equal(t, int64(8000*16), enc.BitRate())
	assert.Equal(t, 1, enc.Channels())
	assert.Equal(t, MediaTypeAudio, enc.MediaType())

	tests := []struct {
		name    string
		tb      Rational
		pts     int64
		wantPts int64
	}{
		{"codec time base", NewRational(1, 8000), 160, 160},
		{"finer time base", NewRational(1, 16000), 640, 320},
		{"millisecond time base", NewRational(1, 1000), 50, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := monoFrame(t, 160, 8000, tt.tb, tt.pts)
			f.SetStreamIndex(2)
			pkt, err := enc.EncodeAudio(f)
			require.NoError(t, err)
			require.True(t, pkt.IsValid())
			defer pkt.Free()

			assert.Equal(t, f.Data(0)[:320], pkt.Data())
			assert.Equal(t, tt.wantPts, pkt.Pts())
			assert.Equal(t, NewRational(1, 8000), pkt.TimeBase())
			assert.Equal(t, 2, pkt.StreamIndex())
		})
	}

	pkt, err := enc.EncodeAudio(nil)
	require.NoError(t, err)
	assert.True(t, pkt.IsNull())
}

func TestCodecContextEncodeG711(t *testing.T) {
	for _, id := range []CodecID{CodecIDPCMMulaw, CodecIDPCMAlaw} {
		t.Run(id.String(), func(t *testing.T) {
			enc := newMonoEncoder(t, id, 8000)
			require.NoError(t, enc.Open(nil))
			pkt, err := enc.EncodeAudio(monoFrame(t, 160, 8000, NewRational(1, 8000), 0))
			require.NoError(t, err)
			defer pkt.Free()
			assert.Equal(t, 160, pkt.Size())
			assert.Equal(t, int64(64000), enc.BitRate())
		})
	}
}

func TestCodecContextDecodeWAV(t *testing.T) {
	path, signal := writeTestWAV(t, 3, 160)
	fc := NewFormatContext()
	defer fc.Close()
	require.NoError(t, fc.OpenInput(path, nil))

	dec, err := NewDecoder(fc.Stream(0))
	require.NoError(t, err)
	defer dec.Close()
	assert.Equal(t, DirectionDecoding, dec.Direction())
	assert.True(t, dec.RefCountedFrames())
	assert.Equal(t, 8000, dec.SampleRate())
	assert.Equal(t, ChannelLayoutMono, dec.ChannelLayout())
	require.NoError(t, dec.Open(nil))
	assert.Equal(t, SampleFormatS16, dec.SampleFormat())

	var got []byte
	for {
		pkt, err := fc.ReadPacket()
		require.NoError(t, err)
		if pkt.IsNull() {
			break
		}
		f, err := dec.DecodeAudio(pkt)
		require.NoError(t, err)
		require.False(t, f.IsNull())
		assert.Equal(t, pkt.Size()/2, f.SamplesCount())
		assert.Equal(t, pkt.Pts(), f.Pts())
		assert.Equal(t, NewRational(1, 8000), f.TimeBase())
		got = append(got, f.Data(0)[:f.SamplesCount()*2]...)
		f.Free()
		pkt.Free()
	}
	assert.Equal(t, signal, got)

	f, err := dec.DecodeAudio(nil)
	require.NoError(t, err)
	assert.True(t, f.IsNull())
}

func TestCodecContextStateErrors(t *testing.T) {
	enc := newMonoEncoder(t, CodecIDPCMS16LE, 8000)

	_, err := enc.EncodeAudio(monoFrame(t, 16, 8000, NewRational(1, 8000), 0))
	assert.ErrorIs(t, err, ErrInvalidStateTransition, "not open")

	assert.ErrorIs(t, enc.SetCodec(FindDecodingCodec(CodecIDPCMS16LE)), ErrInvalidParameters)
	assert.ErrorIs(t, enc.SetCodec(Codec{}), ErrInvalidParameters)
	require.NoError(t, enc.SetCodec(FindEncodingCodec(CodecIDPCMAlaw)))
	assert.Equal(t, CodecIDPCMAlaw, enc.Codec().ID())

	require.NoError(t, enc.Open(nil))
	assert.ErrorIs(t, enc.Open(nil), ErrAlreadyOpen)
	assert.ErrorIs(t, enc.SetSampleRate(16000), ErrAlreadyOpen)
	assert.ErrorIs(t, enc.SetCodec(FindEncodingCodec(CodecIDPCMS16LE)), ErrAlreadyOpen)
	assert.ErrorIs(t, enc.SetTimeBase(NewRational(1, 1000)), ErrAlreadyOpen)

	_, err = enc.DecodeAudio(WrapPacket([]byte{0, 0}))
	assert.ErrorIs(t, err, ErrInvalidParameters, "encoder cannot decode")
	_, err = enc.EncodeVideo(nil)
	assert.ErrorIs(t, err, ErrInvalidParameters, "audio context")

	require.NoError(t, enc.Close())
	assert.False(t, enc.IsOpened())
	require.NoError(t, enc.SetSampleRate(16000))
	require.NoError(t, enc.Open(nil))
	assert.Equal(t, 16000, enc.SampleRate())
}

func TestCodecContextOpenErrors(t *testing.T) {
	t.Run("codec not set", func(t *testing.T) {
		enc, err := NewEncoder(Codec{}, nil)
		require.NoError(t, err)
		assert.ErrorIs(t, enc.Open(nil), ErrCodecNotSet)
		assert.False(t, enc.IsValid())
	})

	t.Run("unsupported sample format", func(t *testing.T) {
		enc := newMonoEncoder(t, CodecIDPCMS16LE, 8000)
		require.NoError(t, enc.SetSampleFormat(SampleFormatS32))
		assert.False(t, enc.IsValidForEncode())
		assert.ErrorIs(t, enc.Open(nil), ErrCodecOpenFailed)
	})

	t.Run("decoder as encoder", func(t *testing.T) {
		_, err := NewEncoder(FindDecodingCodec(CodecIDPCMS16LE), nil)
		assert.ErrorIs(t, err, ErrInvalidParameters)
	})
}

func TestCodecContextIsValidForEncode(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *CodecContext)
		want  bool
	}{
		{"complete", func(c *CodecContext) {}, true},
		{"no rate", func(c *CodecContext) { _ = c.SetSampleRate(0) }, false},
		{"explicit time base without rate", func(c *CodecContext) {
			_ = c.SetSampleRate(0)
			_ = c.SetTimeBase(NewRational(1, 1000))
		}, false},
		{"no layout", func(c *CodecContext) { _ = c.SetChannelLayout(0) }, false},
		{"no format", func(c *CodecContext) { _ = c.SetSampleFormat(SampleFormatNone) }, false},
		{"wrong format", func(c *CodecContext) { _ = c.SetSampleFormat(SampleFormatFLTP) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := newMonoEncoder(t, CodecIDPCMS16LE, 8000)
			tt.setup(enc)
			assert.Equal(t, tt.want, enc.IsValidForEncode())
		})
	}

	path, _ := writeTestWAV(t, 1, 16)
	fc := NewFormatContext()
	defer fc.Close()
	require.NoError(t, fc.OpenInput(path, nil))
	dec, err := NewDecoder(fc.Stream(0))
	require.NoError(t, err)
	assert.False(t, dec.IsValidForEncode(), "decoders never qualify")
}

func TestCodecContextCopyParameters(t *testing.T) {
	src := newMonoEncoder(t, CodecIDPCMS16LE, 16000)
	require.NoError(t, src.SetTimeBase(NewRational(1, 1000)))
	require.NoError(t, src.SetBitRate(256000))

	dst, err := NewEncoder(FindEncodingCodec(CodecIDPCMS16LE), nil)
	require.NoError(t, err)
	defer dst.Close()
	require.NoError(t, dst.CopyParameters(src))

	assert.Equal(t, 16000, dst.SampleRate())
	assert.Equal(t, ChannelLayoutMono, dst.ChannelLayout())
	assert.Equal(t, SampleFormatS16, dst.SampleFormat())
	assert.Equal(t, NewRational(1, 1000), dst.TimeBase())
	assert.Equal(t, int64(256000), dst.BitRate())

	cp := dst.CodecParameters()
	assert.Equal(t, CodecIDPCMS16LE, cp.CodecID)
	assert.Equal(t, MediaTypeAudio, cp.MediaType)

	assert.ErrorIs(t, dst.CopyParameters(nil), ErrInvalidParameters)
	require.NoError(t, dst.Open(nil))
	assert.ErrorIs(t, dst.CopyParameters(src), ErrAlreadyOpen)
}

func TestCodecContextStreamBinding(t *testing.T) {
	fc := NewFormatContext()
	defer fc.Close()
	require.NoError(t, fc.SetOutputFormat(GuessOutputFormat("wav", "", "")))
	codec := FindEncodingCodec(CodecIDPCMAlaw)
	st, err := fc.AddStream(codec)
	require.NoError(t, err)

	enc, err := NewEncoder(codec, st)
	require.NoError(t, err)
	defer enc.Close()
	assert.Same(t, st, enc.Stream())
	require.NoError(t, enc.SetSampleRate(8000))
	require.NoError(t, enc.SetChannelLayout(ChannelLayoutMono))
	require.NoError(t, enc.Open(nil))

	cp, err := st.CodecParameters()
	require.NoError(t, err)
	assert.Equal(t, CodecIDPCMAlaw, cp.CodecID)
	assert.Equal(t, 8000, cp.SampleRate)
	assert.Equal(t, 1, cp.Channels)
	tb, err := st.TimeBase()
	require.NoError(t, err)
	assert.Equal(t, NewRational(1, 8000), tb)
}

func TestCodecLookup(t *testing.T) {
	enc := FindEncodingCodecByName("pcm_mulaw")
	require.False(t, enc.IsNull())
	assert.True(t, enc.CanEncode())
	assert.False(t, enc.CanDecode())
	assert.Equal(t, CodecIDPCMMulaw, enc.ID())
	assert.Equal(t, MediaTypeAudio, enc.Type())
	assert.Equal(t, []SampleFormat{SampleFormatS16}, enc.SupportedSampleFormats())

	dec := FindDecodingCodecByName("pcm_mulaw")
	require.False(t, dec.IsNull())
	assert.True(t, dec.CanDecode())

	assert.True(t, FindEncodingCodecByName("h264").IsNull())
	assert.NotEmpty(t, Codecs())

	tests := []struct {
		id    CodecID
		mime  string
		clock uint32
		pt    uint8
	}{
		{CodecIDPCMMulaw, "audio/PCMU", 8000, 0},
		{CodecIDPCMAlaw, "audio/PCMA", 8000, 8},
	}
	for _, tt := range tests {
		t.Run(tt.id.String(), func(t *testing.T) {
			assert.Equal(t, tt.mime, tt.id.MimeType())
			assert.Equal(t, tt.clock, tt.id.ClockRate())
			assert.Equal(t, tt.pt, tt.id.DefaultPayloadType())
		})
	}
}
