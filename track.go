package av

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"github.com/thesyncim/av/internal/native"
)

// DefaultTrackMTU bounds the size of one RTP packet sent by a PacketTrack.
const DefaultTrackMTU = native.DefaultRTPMTU

// PacketTrack sends encoded audio packets to WebRTC peers. It implements
// webrtc.TrackLocal and can be added to a PeerConnection with AddTrack.
// Each binding gets its own packetizer, so sequence numbers and
// timestamps are per peer.
type PacketTrack struct {
	id       string
	streamID string
	codecID  CodecID
	codec    webrtc.RTPCodecCapability
	block    int
	mtu      uint16
	log      *logrus.Entry

	mu       sync.RWMutex
	bindings []*trackBinding
	nextPts  int64
	closed   atomic.Bool
}

type trackBinding struct {
	id         string
	writer     webrtc.TrackLocalWriter
	packetizer rtp.Packetizer
}

// NewPacketTrack returns a track for PCMU, PCMA or L16 packets. An empty
// id is replaced by a random one.
func NewPacketTrack(codecID CodecID, channels int, id, streamID string) (*PacketTrack, error) {
	const op = "new packet track"
	if codecID.MediaType() != MediaTypeAudio || codecID.MimeType() == "" {
		return nil, newError(KindInvalidParameters, op, "codec %s has no RTP audio mapping", codecID)
	}
	if channels <= 0 {
		channels = 1
	}
	if codecID != CodecIDPCMS16BE && channels != 1 {
		return nil, newError(KindInvalidParameters, op, "%s is mono only", codecID)
	}
	if id == "" {
		id = uuid.NewString()
	}
	if streamID == "" {
		streamID = id
	}
	block := channels
	if codecID == CodecIDPCMS16BE {
		block *= 2
	}
	return &PacketTrack{
		id:       id,
		streamID: streamID,
		codecID:  codecID,
		codec: webrtc.RTPCodecCapability{
			MimeType:  codecID.MimeType(),
			ClockRate: codecID.ClockRate(),
			Channels:  uint16(channels),
		},
		block:   block,
		mtu:     DefaultTrackMTU,
		log:     componentLogger("track").WithField("track_id", id),
		nextPts: NoPTS,
	}, nil
}

func (t *PacketTrack) ID() string                       { return t.id }
func (t *PacketTrack) RID() string                      { return "" }
func (t *PacketTrack) StreamID() string                 { return t.streamID }
func (t *PacketTrack) Kind() webrtc.RTPCodecType        { return webrtc.RTPCodecTypeAudio }
func (t *PacketTrack) Codec() webrtc.RTPCodecCapability { return t.codec }
func (t *PacketTrack) CodecID() CodecID                 { return t.codecID }
func (t *PacketTrack) TimeBase() Rational               { return NewRational(1, int(t.codec.ClockRate)) }
func (t *PacketTrack) IsClosed() bool                   { return t.closed.Load() }

// SetMTU changes the packet size limit for bindings created afterwards.
func (t *PacketTrack) SetMTU(mtu int) {
	if mtu > 12 && mtu <= 0xffff {
		t.mu.Lock()
		t.mtu = uint16(mtu)
		t.mu.Unlock()
	}
}

// Bind implements webrtc.TrackLocal.
func (t *PacketTrack) Bind(ctx webrtc.TrackLocalContext) (webrtc.RTPCodecParameters, error) {
	return t.bind(ctx.ID(), ctx.CodecParameters(), uint32(ctx.SSRC()), ctx.WriteStream())
}

func (t *PacketTrack) bind(id string, params []webrtc.RTPCodecParameters, ssrc uint32, w webrtc.TrackLocalWriter) (webrtc.RTPCodecParameters, error) {
	if t.closed.Load() {
		return webrtc.RTPCodecParameters{}, newError(KindInvalidStateTransition, "bind track", "track is closed")
	}
	chosen := webrtc.RTPCodecParameters{
		RTPCodecCapability: t.codec,
		PayloadType:        webrtc.PayloadType(t.codecID.DefaultPayloadType()),
	}
	if t.codecID == CodecIDPCMS16BE && t.codec.Channels == 1 {
		chosen.PayloadType = 11
	}
	for _, p := range params {
		if strings.EqualFold(p.MimeType, t.codec.MimeType) && p.ClockRate == t.codec.ClockRate {
			chosen = p
			break
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.bindings = append(t.bindings, &trackBinding{
		id:     id,
		writer: w,
		packetizer: rtp.NewPacketizer(
			t.mtu,
			uint8(chosen.PayloadType),
			ssrc,
			native.NewRTPPayloader(native.CodecID(t.codecID), t.block),
			rtp.NewRandomSequencer(),
			t.codec.ClockRate,
		),
	})
	t.log.WithFields(logrus.Fields{
		"binding":      id,
		"payload_type": chosen.PayloadType,
		"ssrc":         ssrc,
	}).Debug("track bound")
	return chosen, nil
}

// Unbind implements webrtc.TrackLocal.
func (t *PacketTrack) Unbind(ctx webrtc.TrackLocalContext) error {
	t.unbind(ctx.ID())
	return nil
}

func (t *PacketTrack) unbind(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, b := range t.bindings {
		if b.id == id {
			t.bindings = append(t.bindings[:i], t.bindings[i+1:]...)
			break
		}
	}
}

// Bindings returns the number of peers the track is bound to.
func (t *PacketTrack) Bindings() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.bindings)
}

// WritePacket payloads pkt into RTP packets for every binding. The packet
// timestamps are rescaled to the RTP clock; a gap between packets advances
// the RTP timestamp instead of being closed up.
func (t *PacketTrack) WritePacket(pkt *Packet) error {
	const op = "track write packet"
	if t.closed.Load() {
		return newError(KindInvalidStateTransition, op, "track is closed")
	}
	if pkt == nil || pkt.IsNull() {
		return newError(KindInvalidParameters, op, "null packet")
	}
	data := pkt.Data()
	samples := len(data) / t.block
	if samples == 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	var skip uint32
	if pts := pkt.PtsTimestamp(); pts.IsValid() && !pkt.TimeBase().IsZero() {
		v := pts.Rescale(t.TimeBase()).Value
		if t.nextPts != NoPTS && v > t.nextPts {
			skip = uint32(v - t.nextPts)
		}
		t.nextPts = v + int64(samples)
	} else if t.nextPts != NoPTS {
		t.nextPts += int64(samples)
	}

	var sent int
	for _, b := range t.bindings {
		if skip > 0 {
			b.packetizer.SkipSamples(skip)
		}
		for _, p := range b.packetizer.Packetize(data, uint32(samples)) {
			if _, err := b.writer.WriteRTP(&p.Header, p.Payload); err != nil {
				e := newError(KindIoError, op, "binding %s", b.id)
				e.Err = err
				return e
			}
			sent++
		}
	}
	metrics.trackRTPPackets.Add(float64(sent))
	return nil
}

// WriteRTP forwards a prepared RTP packet to every binding unchanged.
func (t *PacketTrack) WriteRTP(p *rtp.Packet) error {
	if t.closed.Load() {
		return newError(KindInvalidStateTransition, "track write rtp", "track is closed")
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, b := range t.bindings {
		if _, err := b.writer.WriteRTP(&p.Header, p.Payload); err != nil {
			e := newError(KindIoError, "track write rtp", "binding %s", b.id)
			e.Err = err
			return e
		}
	}
	metrics.trackRTPPackets.Add(float64(len(t.bindings)))
	return nil
}

// Close drops every binding. Writes after Close fail.
func (t *PacketTrack) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.mu.Lock()
	t.bindings = nil
	t.mu.Unlock()
	return nil
}

var _ webrtc.TrackLocal = (*PacketTrack)(nil)
