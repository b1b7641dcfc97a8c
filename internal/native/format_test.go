package native

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWAV(t *testing.T, pb *IOContext, samples int) {
	t.Helper()
	oc, st := AllocOutputContext2(nil, "", "out.wav")
	require.Equal(t, OK, st)
	require.Equal(t, "wav", oc.OFormat.Name)
	oc.PB = pb

	s := oc.NewStream(nil)
	s.Codecpar.CodecType = MediaTypeAudio
	s.Codecpar.CodecID = CodecIDPCMS16LE
	s.Codecpar.SampleRate = 8000
	s.Codecpar.Channels = 1
	s.Codecpar.ChannelLayout = LayoutMono
	require.Equal(t, OK, oc.WriteHeader(nil))
	assert.Equal(t, Rational{1, 8000}, s.TimeBase)

	for off := 0; off < samples; off += 100 {
		pkt, _ := NewPacket(200)
		binary.LittleEndian.PutUint16(pkt.Data, uint16(off))
		pkt.Pts = int64(off)
		require.Equal(t, OK, oc.WriteFrame(pkt))
	}
	require.Equal(t, OK, oc.WriteTrailer())
	assert.Equal(t, EINVAL, oc.WriteTrailer())
}

func TestWAV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	pb, st := OpenIO(path, true, nil)
	require.Equal(t, OK, st)
	writeWAV(t, pb, 1000)
	require.Equal(t, OK, pb.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(len(raw)-8), binary.LittleEndian.Uint32(raw[4:]))
	assert.Equal(t, uint32(2000), binary.LittleEndian.Uint32(raw[40:]))

	ic := AllocFormatContext()
	require.Equal(t, OK, ic.OpenInput(path, nil, nil))
	defer ic.CloseInput()
	assert.Equal(t, "wav", ic.IFormat.Name)
	require.Len(t, ic.Streams, 1)
	par := ic.Streams[0].Codecpar
	assert.Equal(t, CodecIDPCMS16LE, par.CodecID)
	assert.Equal(t, int(SampleFmtS16), par.Format)
	assert.Equal(t, int64(1000), ic.Streams[0].Duration)

	require.Equal(t, OK, ic.FindStreamInfo())
	assert.Equal(t, int64(0), ic.Streams[0].StartTime)
	assert.Equal(t, int64(125000), ic.Duration)

	var total int64
	pkt := PacketAlloc()
	for {
		st := ic.ReadFrame(pkt)
		if st == EOF {
			break
		}
		require.Equal(t, OK, st)
		assert.Equal(t, total, pkt.Pts)
		total += pkt.Duration
	}
	assert.Equal(t, int64(1000), total)
}

func TestWAV_NonSeekableKeepsPlaceholders(t *testing.T) {
	var sink bytes.Buffer
	pb := NewCallbackIO(func(p []byte) int {
		n, _ := sink.Write(p)
		return n
	})
	writeWAV(t, pb, 200)
	raw := sink.Bytes()
	assert.Equal(t, uint32(wavUnknownSize), binary.LittleEndian.Uint32(raw[4:]))
	assert.Len(t, raw, 44+400)

	ic := AllocFormatContext()
	ic.PB = NewReaderIO(bytes.NewReader(raw), nil)
	require.Equal(t, OK, ic.OpenInput("", nil, nil))
	pkt := PacketAlloc()
	require.Equal(t, OK, ic.ReadFrame(pkt))
	assert.Len(t, pkt.Data, 400)
	assert.Equal(t, EOF, ic.ReadFrame(pkt))
}

func TestWriteFrame_RejectsBeforeHeader(t *testing.T) {
	oc, st := AllocOutputContext2(nil, "wav", "")
	require.Equal(t, OK, st)
	pkt, _ := NewPacket(2)
	assert.Equal(t, EINVAL, oc.WriteFrame(pkt))

	_, st = AllocOutputContext2(nil, "mkv", "")
	assert.Equal(t, MuxerNotFound, st)
}

func TestRTP_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	oc, st := AllocOutputContext2(nil, "rtp4571", "")
	require.Equal(t, OK, st)
	oc.PB = NewWriterIO(&buf)
	s := oc.NewStream(FindEncoderByName("pcm_mulaw"))
	s.Codecpar.SampleRate = 8000
	s.Codecpar.Channels = 1
	require.Equal(t, OK, oc.WriteHeader(nil))
	require.NotZero(t, s.ID)

	for i := 0; i < 3; i++ {
		pkt, _ := NewPacket(160)
		pkt.Pts = int64(i * 160)
		require.Equal(t, OK, oc.InterleavedWriteFrame(pkt))
	}
	require.Equal(t, OK, oc.WriteTrailer())

	ic := AllocFormatContext()
	ic.PB = NewReaderIO(bytes.NewReader(buf.Bytes()), nil)
	require.Equal(t, OK, ic.OpenInput("", nil, nil))
	assert.Equal(t, "rtp4571", ic.IFormat.Name)
	require.Len(t, ic.Streams, 1)
	assert.Equal(t, s.ID, ic.Streams[0].ID)
	assert.Equal(t, CodecIDPCMMulaw, ic.Streams[0].Codecpar.CodecID)

	pkt := PacketAlloc()
	for i := 0; i < 3; i++ {
		require.Equal(t, OK, ic.ReadFrame(pkt))
		assert.Equal(t, int64(i*160), pkt.Pts)
		assert.Equal(t, int64(160), pkt.Duration)
	}
	assert.Equal(t, EOF, ic.ReadFrame(pkt))
}

func TestL16Payloader_SplitsOnFrames(t *testing.T) {
	p := &l16Payloader{block: 4}
	out := p.Payload(10, make([]byte, 20))
	require.Len(t, out, 3)
	assert.Len(t, out[0], 8)
	assert.Len(t, out[2], 4)
}

type slowReader struct {
	delay time.Duration
}

func (r slowReader) Read(p []byte) (int, error) {
	time.Sleep(r.delay)
	return 0, io.EOF
}

func TestIOContext_Interrupt(t *testing.T) {
	deadline := time.Now().Add(20 * time.Millisecond)
	pb := NewReaderIO(slowReader{delay: time.Second}, func() bool {
		return time.Now().After(deadline)
	})
	start := time.Now()
	_, st := pb.Read(make([]byte, 16))
	assert.Equal(t, EXIT, st)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestOpenIO_Errors(t *testing.T) {
	_, st := OpenIO(filepath.Join(t.TempDir(), "missing.wav"), false, nil)
	assert.Equal(t, ENOENT, st)
	_, st = OpenIO("http://example.com/a.wav", false, nil)
	assert.Equal(t, ProtocolNotFound, st)
}
