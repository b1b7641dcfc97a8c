package native

// Packet flags, identical to AV_PKT_FLAG_*.
const (
	PktFlagKey     = 0x0001
	PktFlagCorrupt = 0x0002
	PktFlagDiscard = 0x0004
)

// Packet mirrors AVPacket.
type Packet struct {
	Buf         *BufferRef
	Data        []byte
	Pts         int64
	Dts         int64
	Duration    int64
	Flags       int
	StreamIndex int
	Pos         int64
}

// PacketAlloc is av_packet_alloc.
func PacketAlloc() *Packet {
	p := &Packet{}
	p.reset()
	return p
}

func (p *Packet) reset() {
	*p = Packet{Pts: NoPTS, Dts: NoPTS, Pos: -1}
}

// NewPacket is av_new_packet: it allocates size bytes of ref-counted data.
func NewPacket(size int) (*Packet, Status) {
	if size < 0 {
		return nil, EINVAL
	}
	p := PacketAlloc()
	p.Buf = BufferAlloc(size)
	p.Data = p.Buf.Data
	return p, OK
}

// FromData is av_packet_from_data: the packet adopts buf as its payload.
func (p *Packet) FromData(buf []byte) Status {
	p.Unref()
	p.Buf = BufferCreate(buf, nil)
	p.Data = buf
	return OK
}

// Ref is av_packet_ref. Non ref-counted sources are copied.
func (p *Packet) Ref(src *Packet) Status {
	if src == nil {
		return EINVAL
	}
	if src == p {
		return OK
	}
	p.Unref()
	p.CopyProps(src)
	if src.Buf == nil {
		buf := BufferAlloc(len(src.Data))
		copy(buf.Data, src.Data)
		p.Buf = buf
		p.Data = buf.Data
		return OK
	}
	p.Buf = src.Buf.Ref()
	p.Data = src.Data
	return OK
}

// Clone is av_packet_clone followed by a forced private copy of the data.
func (p *Packet) Clone() *Packet {
	c := PacketAlloc()
	c.CopyProps(p)
	buf := BufferAlloc(len(p.Data))
	copy(buf.Data, p.Data)
	c.Buf = buf
	c.Data = buf.Data
	return c
}

// Unref is av_packet_unref.
func (p *Packet) Unref() {
	if p == nil {
		return
	}
	p.Buf.Unref()
	p.reset()
}

// MoveRef is av_packet_move_ref.
func (p *Packet) MoveRef(src *Packet) {
	*p = *src
	src.reset()
}

// CopyProps is av_packet_copy_props.
func (p *Packet) CopyProps(src *Packet) {
	p.Pts = src.Pts
	p.Dts = src.Dts
	p.Duration = src.Duration
	p.Flags = src.Flags
	p.StreamIndex = src.StreamIndex
	p.Pos = src.Pos
}

// MakeWritable is av_packet_make_writable.
func (p *Packet) MakeWritable() Status {
	if p.Buf != nil && p.Buf.IsWritable() {
		return OK
	}
	buf := BufferAlloc(len(p.Data))
	copy(buf.Data, p.Data)
	p.Buf.Unref()
	p.Buf = buf
	p.Data = buf.Data
	return OK
}

// RescaleTS is av_packet_rescale_ts.
func (p *Packet) RescaleTS(src, dst Rational) {
	if p.Pts != NoPTS {
		p.Pts = RescaleQ(p.Pts, src, dst)
	}
	if p.Dts != NoPTS {
		p.Dts = RescaleQ(p.Dts, src, dst)
	}
	if p.Duration > 0 {
		p.Duration = RescaleQ(p.Duration, src, dst)
	}
}
