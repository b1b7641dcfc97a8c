package av

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamAccessors(t *testing.T) {
	fc := NewFormatContext()
	defer fc.Close()
	require.NoError(t, fc.SetOutputFormat(GuessOutputFormat("wav", "", "")))
	st, err := fc.AddStream(FindEncodingCodec(CodecIDPCMS16LE))
	require.NoError(t, err)

	assert.True(t, st.IsValid())
	assert.Equal(t, DirectionEncoding, st.Direction())
	idx, err := st.Index()
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	require.NoError(t, st.SetID(7))
	id, err := st.ID()
	require.NoError(t, err)
	assert.Equal(t, 7, id)

	require.NoError(t, st.SetTimeBase(NewRational(1, 16000)))
	tb, err := st.TimeBase()
	require.NoError(t, err)
	assert.Equal(t, NewRational(1, 16000), tb)

	require.NoError(t, st.SetFrameRate(NewRational(25, 1)))
	fr, err := st.FrameRate()
	require.NoError(t, err)
	assert.Equal(t, NewRational(25, 1), fr)

	require.NoError(t, st.SetAverageFrameRate(NewRational(30000, 1001)))
	avg, err := st.AverageFrameRate()
	require.NoError(t, err)
	assert.Equal(t, NewRational(30000, 1001), avg)

	require.NoError(t, st.SetSampleAspectRatio(NewRational(1, 1)))
	sar, err := st.SampleAspectRatio()
	require.NoError(t, err)
	assert.Equal(t, NewRational(1, 1), sar)

	mt, err := st.MediaType()
	require.NoError(t, err)
	assert.Equal(t, MediaTypeAudio, mt)
	assert.True(t, st.IsAudio())
	assert.False(t, st.IsVideo())

	md, err := st.Metadata()
	require.NoError(t, err)
	assert.NotNil(t, md)

	assert.Len(t, fc.Streams(), 1)
	assert.False(t, fc.Stream(3).IsValid())
}

func TestStreamDanglingAfterClose(t *testing.T) {
	path, _ := writeTestWAV(t, 1, 64)
	fc := NewFormatContext()
	require.NoError(t, fc.OpenInput(path, nil))
	st := fc.Stream(0)
	require.True(t, st.IsValid())
	require.NoError(t, fc.Close())

	assert.False(t, st.IsValid())
	assert.Equal(t, DirectionDecoding, st.Direction())

	accessors := map[string]func() error{
		"Index":             func() error { _, err := st.Index(); return err },
		"ID":                func() error { _, err := st.ID(); return err },
		"SetID":             func() error { return st.SetID(1) },
		"TimeBase":          func() error { _, err := st.TimeBase(); return err },
		"SetTimeBase":       func() error { return st.SetTimeBase(NewRational(1, 2)) },
		"FrameRate":         func() error { _, err := st.FrameRate(); return err },
		"SetFrameRate":      func() error { return st.SetFrameRate(NewRational(1, 2)) },
		"AverageFrameRate":  func() error { _, err := st.AverageFrameRate(); return err },
		"SampleAspectRatio": func() error { _, err := st.SampleAspectRatio(); return err },
		"StartTime":         func() error { _, err := st.StartTime(); return err },
		"Duration":          func() error { _, err := st.Duration(); return err },
		"CurrentDts":        func() error { _, err := st.CurrentDts(); return err },
		"FramesCount":       func() error { _, err := st.FramesCount(); return err },
		"MediaType":         func() error { _, err := st.MediaType(); return err },
		"CodecParameters":   func() error { _, err := st.CodecParameters(); return err },
		"SetCodecParameters": func() error {
			return st.SetCodecParameters(CodecParameters{})
		},
		"Metadata": func() error { _, err := st.Metadata(); return err },
	}
	for name, call := range accessors {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, call(), ErrDanglingStream)
		})
	}

	assert.False(t, st.IsAudio())
	_, err := NewDecoder(st)
	assert.ErrorIs(t, err, ErrDanglingStream)
}

func TestStreamNull(t *testing.T) {
	var st *Stream
	assert.False(t, st.IsValid())
	assert.Equal(t, DirectionInvalid, st.Direction())
	_, err := st.Index()
	assert.ErrorIs(t, err, ErrInvalidParameters)
}
