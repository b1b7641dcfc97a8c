package av

import (
	"github.com/thesyncim/av/internal/native"
)

// Packet flags.
const (
	PacketFlagKey     = native.PktFlagKey
	PacketFlagCorrupt = native.PktFlagCorrupt
	PacketFlagDiscard = native.PktFlagDiscard
)

// Packet is an owned handle over a ref-counted encoded payload.
//
// The zero value is a null handle. Ref shares the payload, Clone copies it
// and Move transfers ownership. Sharing a payload through a struct copy of
// Packet is not supported.
type Packet struct {
	pkt      *native.Packet
	timeBase Rational
	complete bool
	fakePts  int64
}

// NewPacket allocates a packet with size zeroed payload bytes.
func NewPacket(size int) (*Packet, error) {
	pkt, st := native.NewPacket(size)
	if st.Failed() {
		if st == native.ENOMEM {
			return nil, wrapStatus(KindAllocationFailed, "packet alloc", st)
		}
		return nil, wrapStatus(KindInvalidParameters, "packet alloc", st)
	}
	return &Packet{pkt: pkt, fakePts: NoPTS}, nil
}

// NewPacketFromData copies data into a freshly allocated packet.
func NewPacketFromData(data []byte) (*Packet, error) {
	p, err := NewPacket(len(data))
	if err != nil {
		return nil, err
	}
	copy(p.pkt.Data, data)
	p.complete = true
	return p, nil
}

// WrapPacket adopts data as the payload without copying it. The caller
// must not modify data afterwards.
func WrapPacket(data []byte) *Packet {
	pkt := native.PacketAlloc()
	pkt.FromData(data)
	return &Packet{pkt: pkt, fakePts: NoPTS, complete: true}
}

// wrapNativePacket takes ownership of pkt.
func wrapNativePacket(pkt *native.Packet, tb Rational) *Packet {
	return &Packet{pkt: pkt, timeBase: tb, complete: true, fakePts: pkt.Pts}
}

// IsValid reports whether the handle owns a payload.
func (p *Packet) IsValid() bool {
	return p != nil && p.pkt != nil
}

// IsNull is the negation of IsValid.
func (p *Packet) IsNull() bool { return !p.IsValid() }

// IsReferenced reports whether the payload lives in a ref-counted buffer.
func (p *Packet) IsReferenced() bool {
	return p.IsValid() && p.pkt.Buf != nil
}

// RefCount returns the payload's reference count, or 0 when it is not
// ref-counted.
func (p *Packet) RefCount() int {
	if !p.IsReferenced() {
		return 0
	}
	return p.pkt.Buf.RefCount()
}

// Ref returns a new handle sharing this payload.
func (p *Packet) Ref() *Packet {
	if !p.IsValid() {
		return &Packet{fakePts: NoPTS}
	}
	pkt := native.PacketAlloc()
	pkt.Ref(p.pkt)
	return &Packet{pkt: pkt, timeBase: p.timeBase, complete: p.complete, fakePts: p.fakePts}
}

// Move transfers the payload to a new handle and leaves p null.
func (p *Packet) Move() *Packet {
	if p == nil {
		return &Packet{fakePts: NoPTS}
	}
	q := &Packet{pkt: p.pkt, timeBase: p.timeBase, complete: p.complete, fakePts: p.fakePts}
	*p = Packet{fakePts: NoPTS}
	return q
}

// Clone returns a deep copy with a private payload.
func (p *Packet) Clone() *Packet {
	if !p.IsValid() {
		return &Packet{fakePts: NoPTS}
	}
	return &Packet{pkt: p.pkt.Clone(), timeBase: p.timeBase, complete: p.complete, fakePts: p.fakePts}
}

// CopyFrom makes p share src's payload. Copying from itself is a no-op.
func (p *Packet) CopyFrom(src *Packet) {
	if p == src {
		return
	}
	ref := src.Ref()
	p.Free()
	*p = *ref
}

// MoveFrom takes src's payload and leaves src null.
func (p *Packet) MoveFrom(src *Packet) {
	if p == src {
		return
	}
	moved := src.Move()
	p.Free()
	*p = *moved
}

// Free drops the reference and leaves p null.
func (p *Packet) Free() {
	if p == nil {
		return
	}
	if p.pkt != nil {
		p.pkt.Unref()
	}
	*p = Packet{fakePts: NoPTS}
}

// MakeWritable gives p a private payload if it is shared.
func (p *Packet) MakeWritable() error {
	if !p.IsValid() {
		return newError(KindInvalidParameters, "packet make writable", "null packet")
	}
	if st := p.pkt.MakeWritable(); st.Failed() {
		return nativeErr("packet make writable", st)
	}
	return nil
}

// Data returns the payload bytes. Writes are visible through every handle
// sharing the payload.
func (p *Packet) Data() []byte {
	if !p.IsValid() {
		return nil
	}
	return p.pkt.Data
}

// Size returns the payload length.
func (p *Packet) Size() int {
	return len(p.Data())
}

func (p *Packet) Pts() int64 {
	if !p.IsValid() {
		return NoPTS
	}
	return p.pkt.Pts
}

// SetPts sets pts and the fake pts.
func (p *Packet) SetPts(v int64) {
	if !p.IsValid() {
		return
	}
	p.pkt.Pts = v
	p.fakePts = v
}

func (p *Packet) Dts() int64 {
	if !p.IsValid() {
		return NoPTS
	}
	return p.pkt.Dts
}

func (p *Packet) SetDts(v int64) {
	if p.IsValid() {
		p.pkt.Dts = v
	}
}

// FakePts is the wrapper-maintained timestamp used when pts is NoPTS on
// the wire.
func (p *Packet) FakePts() int64 {
	if !p.IsValid() {
		return NoPTS
	}
	return p.fakePts
}

// SetFakePts sets only the fake pts.
func (p *Packet) SetFakePts(v int64) {
	if p.IsValid() {
		p.fakePts = v
	}
}

// PtsTimestamp returns pts in the packet's time base.
func (p *Packet) PtsTimestamp() Timestamp {
	return Timestamp{p.Pts(), p.timeBase}
}

// DtsTimestamp returns dts in the packet's time base.
func (p *Packet) DtsTimestamp() Timestamp {
	return Timestamp{p.Dts(), p.timeBase}
}

// SetPtsTimestamp stores ts. A packet without a time base adopts ts's;
// otherwise ts is rescaled to the packet's.
func (p *Packet) SetPtsTimestamp(ts Timestamp) {
	if p.timeBase.IsZero() {
		p.timeBase = ts.TimeBase
		p.SetPts(ts.Value)
		return
	}
	p.SetPts(ts.Rescale(p.timeBase).Value)
}

// SetDtsTimestamp is SetPtsTimestamp for dts.
func (p *Packet) SetDtsTimestamp(ts Timestamp) {
	if p.timeBase.IsZero() {
		p.timeBase = ts.TimeBase
		p.SetDts(ts.Value)
		return
	}
	p.SetDts(ts.Rescale(p.timeBase).Value)
}

func (p *Packet) Duration() int64 {
	if !p.IsValid() {
		return 0
	}
	return p.pkt.Duration
}

func (p *Packet) SetDuration(d int64) {
	if p.IsValid() {
		p.pkt.Duration = d
	}
}

// Pos is the byte offset in the input, or -1.
func (p *Packet) Pos() int64 {
	if !p.IsValid() {
		return -1
	}
	return p.pkt.Pos
}

func (p *Packet) Flags() int {
	if !p.IsValid() {
		return 0
	}
	return p.pkt.Flags
}

func (p *Packet) SetFlags(f int) {
	if p.IsValid() {
		p.pkt.Flags = f
	}
}

func (p *Packet) AddFlags(f int) {
	if p.IsValid() {
		p.pkt.Flags |= f
	}
}

func (p *Packet) ClearFlags(f int) {
	if p.IsValid() {
		p.pkt.Flags &^= f
	}
}

// IsKeyPacket reports whether the key flag is set.
func (p *Packet) IsKeyPacket() bool {
	return p.Flags()&PacketFlagKey != 0
}

func (p *Packet) StreamIndex() int {
	if !p.IsValid() {
		return -1
	}
	return p.pkt.StreamIndex
}

func (p *Packet) SetStreamIndex(i int) {
	if p.IsValid() {
		p.pkt.StreamIndex = i
	}
}

func (p *Packet) TimeBase() Rational { return p.timeBase }

// SetTimeBase re-bases pts, dts, fake pts and duration to tb. Values are
// kept as-is when either base is zero.
func (p *Packet) SetTimeBase(tb Rational) {
	if p.timeBase == tb {
		return
	}
	if p.IsValid() && !p.timeBase.IsZero() && !tb.IsZero() {
		p.pkt.Pts = p.timeBase.Rescale(p.pkt.Pts, tb)
		p.pkt.Dts = p.timeBase.Rescale(p.pkt.Dts, tb)
		p.fakePts = p.timeBase.Rescale(p.fakePts, tb)
		if p.pkt.Duration != 0 {
			p.pkt.Duration = p.timeBase.Rescale(p.pkt.Duration, tb)
		}
	}
	p.timeBase = tb
}

// IsComplete reports whether the packet holds a finished payload.
func (p *Packet) IsComplete() bool {
	return p.IsValid() && p.complete
}

func (p *Packet) SetComplete(c bool) { p.complete = c }

// raw exposes the native packet for the format and codec layers.
func (p *Packet) raw() *native.Packet {
	if p == nil {
		return nil
	}
	return p.pkt
}
