package av

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTranscoderValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  TranscoderConfig
	}{
		{"no input", TranscoderConfig{Output: "out.wav"}},
		{"two inputs", TranscoderConfig{Input: "in.wav", InputReader: bytes.NewReader(nil), Output: "out.wav"}},
		{"no output", TranscoderConfig{Input: "in.wav"}},
		{"two outputs", TranscoderConfig{Input: "in.wav", Output: "out.wav", OutputWriter: io.Discard, OutputFormat: "wav"}},
		{"writer without format", TranscoderConfig{Input: "in.wav", OutputWriter: io.Discard}},
		{"negative rate", TranscoderConfig{Input: "in.wav", Output: "out.wav", SampleRate: -1}},
		{"negative frame size", TranscoderConfig{Input: "in.wav", Output: "out.wav", FrameSize: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTranscoder(tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidParameters)
		})
	}

	tc, err := NewTranscoder(TranscoderConfig{Input: "in.wav", Output: "out.wav"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTranscoderFrameSize, tc.cfg.FrameSize)
	assert.Equal(t, TranscoderStats{}, tc.Stats())
}

func TestTranscoderWAVToWAV(t *testing.T) {
	useSoftBackend(t)
	in, _ := writeTestWAV(t, 10, 200)
	out := filepath.Join(t.TempDir(), "out.wav")

	tc, err := NewTranscoder(TranscoderConfig{
		Input:         in,
		Output:        out,
		SampleRate:    16000,
		ChannelLayout: ChannelLayoutStereo,
	})
	require.NoError(t, err)
	require.NoError(t, tc.Run(context.Background()))

	st := tc.Stats()
	assert.Equal(t, uint64(1), st.PacketsRead)
	assert.Equal(t, uint64(1), st.FramesDecoded)
	assert.Equal(t, uint64(2000), st.SamplesIn)
	assert.InDelta(t, 4000, st.SamplesOut, 4)
	assert.Equal(t, uint64(4), st.PacketsEncoded)
	assert.Equal(t, st.PacketsEncoded, st.PacketsWritten)

	fc := NewFormatContext()
	defer fc.Close()
	require.NoError(t, fc.OpenInput(out, nil))
	cp, err := fc.Stream(0).CodecParameters()
	require.NoError(t, err)
	assert.Equal(t, CodecIDPCMS16LE, cp.CodecID)
	assert.Equal(t, 16000, cp.SampleRate)
	assert.Equal(t, 2, cp.Channels)

	var samples int64
	for {
		pkt, err := fc.ReadPacket()
		require.NoError(t, err)
		if pkt.IsNull() {
			break
		}
		assert.Equal(t, samples, pkt.Pts())
		samples += int64(pkt.Size() / 4)
		pkt.Free()
	}
	assert.Equal(t, int64(st.SamplesOut), samples)
}

func TestTranscoderToTrack(t *testing.T) {
	useSoftBackend(t)
	in, _ := writeTestWAV(t, 10, 200)

	track, err := NewPacketTrack(CodecIDPCMMulaw, 1, "", "")
	require.NoError(t, err)
	w := &recordingWriter{}
	_, err = track.bind("peer", nil, 42, w)
	require.NoError(t, err)

	var out bytes.Buffer
	tc, err := NewTranscoder(TranscoderConfig{
		Input:        in,
		OutputWriter: &out,
		OutputFormat: "wav",
		Codec:        CodecIDPCMMulaw,
		Track:        track,
	})
	require.NoError(t, err)
	require.NoError(t, tc.Run(context.Background()))

	st := tc.Stats()
	assert.Equal(t, uint64(2000), st.SamplesOut)
	assert.Equal(t, uint64(2), st.PacketsWritten)

	sent := w.sent()
	require.Len(t, sent, 2)
	assert.Len(t, sent[0].Payload, 1024)
	assert.Len(t, sent[1].Payload, 976)
	assert.Equal(t, sent[0].Timestamp+1024, sent[1].Timestamp)
	assert.Equal(t, uint8(0), sent[0].PayloadType)

	demux := NewFormatContext()
	defer demux.Close()
	require.NoError(t, demux.OpenInputReader(bytes.NewReader(out.Bytes()), "", nil))
	cp, err := demux.Stream(0).CodecParameters()
	require.NoError(t, err)
	assert.Equal(t, CodecIDPCMMulaw, cp.CodecID)
}

func TestTranscoderCancel(t *testing.T) {
	useSoftBackend(t)
	// the first packet completes so stream probing does not stall
	data := streamingWAV(t, 6000)

	tc, err := NewTranscoder(TranscoderConfig{
		InputReader:  newStallingReader(t, data),
		OutputWriter: io.Discard,
		OutputFormat: "wav",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- tc.Run(ctx) }()

	require.Eventually(t, func() bool { return tc.Stats().PacketsWritten > 0 }, 5*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, tc.Run(ctx), ErrInvalidStateTransition)

	cancel()
	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTranscoderOpenErrors(t *testing.T) {
	in, _ := writeTestWAV(t, 1, 100)

	tests := []struct {
		name string
		cfg  TranscoderConfig
		want error
	}{
		{"missing input", TranscoderConfig{
			Input:  filepath.Join(t.TempDir(), "missing.wav"),
			Output: filepath.Join(t.TempDir(), "out.wav"),
		}, ErrIoError},
		{"unknown input format", TranscoderConfig{
			Input:       in,
			InputFormat: "mp3",
			Output:      filepath.Join(t.TempDir(), "out.wav"),
		}, ErrInvalidParameters},
		{"unknown output format", TranscoderConfig{
			Input:        in,
			OutputWriter: io.Discard,
			OutputFormat: "ogg",
		}, ErrInvalidParameters},
		{"codec without encoder", TranscoderConfig{
			Input:        in,
			OutputWriter: io.Discard,
			OutputFormat: "wav",
			Codec:        CodecIDNone - 1,
		}, ErrCodecNotSet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, err := NewTranscoder(tt.cfg)
			require.NoError(t, err)
			assert.ErrorIs(t, tc.Run(context.Background()), tt.want)
		})
	}
}
