package av

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/thesyncim/av/internal/native"
)

// readRetries bounds how often ReadPacket retries a read that returned
// EAGAIN.
const readRetries = 5

type formatState int

const (
	formatIdle formatState = iota
	formatOpened
	formatHeaderWritten
	formatTrailerWritten
	formatClosed
)

func (s formatState) String() string {
	switch s {
	case formatIdle:
		return "idle"
	case formatOpened:
		return "opened"
	case formatHeaderWritten:
		return "header written"
	case formatTrailerWritten:
		return "trailer written"
	case formatClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type interruptReason int

const (
	interruptNone interruptReason = iota
	interruptUser
	interruptContext
	interruptTimeout
)

// WriteFunc receives muxed bytes. It returns the number of bytes consumed.
type WriteFunc func(p []byte) (int, error)

// FormatContext is a demuxer or muxer. Input contexts are opened with
// OpenInput; output contexts get a format (SetOutputFormat or the URI
// passed to OpenOutput), streams, a header, packets and a trailer.
//
// A FormatContext is not safe for concurrent use. Streams it returns stay
// valid until Close.
type FormatContext struct {
	id  string
	log *logrus.Entry

	fc     *native.FormatContext
	mon    *streamMonitor
	ifmt   InputFormat
	ofmt   OutputFormat
	output bool
	state  formatState
	uri    string

	streamsInfoFound bool
	probePackets     int

	timeout   time.Duration
	interrupt func() bool
	readCtx   context.Context
	readStart time.Time
	tripped   interruptReason

	writeCb WriteFunc
}

// NewFormatContext returns an empty context using the configured reading
// timeout.
func NewFormatContext() *FormatContext {
	d := currentDefaults()
	id := uuid.NewString()
	return &FormatContext{
		id:           id,
		log:          componentLogger("format").WithField("ctx_id", id),
		mon:          &streamMonitor{},
		timeout:      d.readingTimeout,
		probePackets: d.probePackets,
	}
}

// ID identifies the context in log entries.
func (c *FormatContext) ID() string { return c.id }

// SetReadingTimeout bounds the wall time of every read. Zero disables it.
func (c *FormatContext) SetReadingTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.timeout = d
}

func (c *FormatContext) ReadingTimeout() time.Duration { return c.timeout }

// SetInterruptCallback installs a callback polled during reads; returning
// true aborts the read with an I/O error.
func (c *FormatContext) SetInterruptCallback(cb func() bool) {
	c.interrupt = cb
}

// interrupted is polled by the native reader on the reading goroutine.
func (c *FormatContext) interrupted() bool {
	switch {
	case c.interrupt != nil && c.interrupt():
		c.tripped = interruptUser
	case c.readCtx != nil && c.readCtx.Err() != nil:
		c.tripped = interruptContext
	case c.timeout > 0 && !c.readStart.IsZero() && time.Since(c.readStart) > c.timeout:
		c.tripped = interruptTimeout
	default:
		return false
	}
	return true
}

func (c *FormatContext) beginRead() {
	c.readStart = time.Now()
	c.tripped = interruptNone
}

// readErr maps a failed read status; EXIT becomes ReadTimeout when the
// timeout fired.
func (c *FormatContext) readErr(op string, st native.Status) error {
	if st == native.EXIT {
		switch c.tripped {
		case interruptTimeout:
			metrics.readTimeouts.Inc()
			c.log.WithField("timeout", c.timeout).Warn("read timed out")
			return wrapStatus(KindReadTimeout, op, st)
		case interruptContext:
			e := wrapStatus(KindIoError, op, st)
			e.Err = c.readCtx.Err()
			return e
		}
	}
	return wrapStatus(KindIoError, op, st)
}

// writeErr maps a failed mux status. Parameter problems are native
// errors; everything else is I/O.
func writeErr(op string, st native.Status) error {
	switch st {
	case native.EINVAL, native.InvalidData, native.EncoderNotFound, native.ENOSYS:
		return nativeErr(op, st)
	}
	return wrapStatus(KindIoError, op, st)
}

func (c *FormatContext) stateErr(op string) error {
	return newError(KindInvalidStateTransition, op, "format context is %s", c.state)
}

// SetInputFormat forces the demuxer instead of probing.
func (c *FormatContext) SetInputFormat(f InputFormat) error {
	if c.state != formatIdle || c.output {
		return c.stateErr("set input format")
	}
	c.ifmt = f
	return nil
}

// SetOutputFormat selects the muxer and makes this an output context.
func (c *FormatContext) SetOutputFormat(f OutputFormat) error {
	const op = "set output format"
	if c.state != formatIdle || c.fc != nil {
		return c.stateErr(op)
	}
	if f.IsNull() {
		return newError(KindInvalidParameters, op, "null output format")
	}
	c.ofmt = f
	return c.allocOutput(op, "")
}

func (c *FormatContext) allocOutput(op, uri string) error {
	if c.fc != nil {
		return nil
	}
	fc, st := native.AllocOutputContext2(c.ofmt.f, "", uri)
	if st.Failed() {
		return wrapStatus(KindInvalidParameters, op, st)
	}
	c.fc = fc
	c.output = true
	c.ofmt = OutputFormat{fc.OFormat}
	return nil
}

// OpenInput opens uri, probing the format unless SetInputFormat was
// called. Applied options are deleted from opts.
func (c *FormatContext) OpenInput(uri string, opts Options) error {
	return c.openInput("open input", uri, nil, opts)
}

// OpenInputReader demuxes from r. name is used for logging and for
// probing by extension.
func (c *FormatContext) OpenInputReader(r io.Reader, name string, opts Options) error {
	return c.openInput("open input reader", name, native.NewReaderIO(r, nil), opts)
}

func (c *FormatContext) openInput(op, uri string, pb *native.IOContext, opts Options) error {
	if c.state != formatIdle || c.output {
		return c.stateErr(op)
	}
	fc := native.AllocFormatContext()
	fc.Interrupt = c.interrupted
	fc.ProbePackets = c.probePackets
	fc.PB = pb
	c.beginRead()
	if st := fc.OpenInput(uri, c.ifmt.f, opts); st.Failed() {
		fc.FreeContext()
		return c.readErr(op, st)
	}
	c.fc = fc
	c.uri = uri
	c.ifmt = InputFormat{fc.IFormat}
	c.state = formatOpened
	c.log.WithFields(logrus.Fields{
		"uri":     uri,
		"format":  c.ifmt.Name(),
		"streams": len(fc.Streams),
	}).Debug("input opened")
	return nil
}

// FindStreamInfo reads ahead to fill in stream parameters. The reading
// timeout is suspended while probing.
func (c *FormatContext) FindStreamInfo() error {
	const op = "find stream info"
	if c.state != formatOpened || c.output {
		return c.stateErr(op)
	}
	if c.streamsInfoFound {
		return nil
	}
	saved := c.timeout
	c.timeout = 0
	defer func() { c.timeout = saved }()

	c.beginRead()
	if st := c.fc.FindStreamInfo(); st.Failed() {
		return c.readErr(op, st)
	}
	c.streamsInfoFound = true
	return nil
}

// ReadPacket returns the next packet in file order with its stream's time
// base. At end of stream it returns a null packet and no error.
func (c *FormatContext) ReadPacket() (*Packet, error) {
	return c.readPacket(nil)
}

// ReadPacketContext is ReadPacket aborted when ctx is done.
func (c *FormatContext) ReadPacketContext(ctx context.Context) (*Packet, error) {
	return c.readPacket(ctx)
}

func (c *FormatContext) readPacket(ctx context.Context) (*Packet, error) {
	const op = "read packet"
	if c.state != formatOpened || c.output {
		return nil, c.stateErr(op)
	}
	c.readCtx = ctx
	defer func() { c.readCtx = nil }()

	pkt := native.PacketAlloc()
	var st native.Status
	for tries := 0; tries <= readRetries; tries++ {
		c.beginRead()
		if st = c.fc.ReadFrame(pkt); st != native.EAGAIN {
			break
		}
	}
	if st == native.EOF {
		return &Packet{fakePts: NoPTS}, nil
	}
	if st.Failed() {
		pkt.Unref()
		return nil, c.readErr(op, st)
	}
	var tb Rational
	if i := pkt.StreamIndex; i >= 0 && i < len(c.fc.Streams) {
		tb = fromNativeRational(c.fc.Streams[i].TimeBase)
	}
	metrics.packetsRead.Inc()
	return wrapNativePacket(pkt, tb), nil
}

// OpenOutput opens uri for writing. Without a prior SetOutputFormat the
// muxer is guessed from the URI.
func (c *FormatContext) OpenOutput(uri string) error {
	const op = "open output"
	if c.state != formatIdle {
		return c.stateErr(op)
	}
	if err := c.allocOutput(op, uri); err != nil {
		return err
	}
	if c.fc.OFormat.Flags&native.FmtNoFile == 0 {
		pb, st := native.OpenIO(uri, true, nil)
		if st.Failed() {
			return wrapStatus(KindIoError, op, st)
		}
		c.fc.PB = pb
	}
	return c.opened(uri)
}

// OpenOutputWriter muxes into w. The output format must be set first.
// Seekable writers get their headers patched on WriteTrailer.
func (c *FormatContext) OpenOutputWriter(w io.Writer) error {
	const op = "open output writer"
	if c.state != formatIdle || c.fc == nil {
		return c.stateErr(op)
	}
	c.fc.PB = native.NewWriterIO(w)
	return c.opened("")
}

// OpenOutputCallback muxes into cb, which is retained until Close. The
// output format must be set first.
func (c *FormatContext) OpenOutputCallback(cb WriteFunc) error {
	const op = "open output callback"
	if c.state != formatIdle || c.fc == nil {
		return c.stateErr(op)
	}
	if cb == nil {
		return newError(KindInvalidParameters, op, "nil write callback")
	}
	c.writeCb = cb
	c.fc.PB = native.NewCallbackIO(func(p []byte) int {
		n, err := c.writeCb(p)
		if err != nil {
			return int(native.EIO)
		}
		return n
	})
	return c.opened("")
}

func (c *FormatContext) opened(uri string) error {
	c.uri = uri
	c.fc.URL = uri
	c.state = formatOpened
	c.log.WithFields(logrus.Fields{"uri": uri, "format": c.ofmt.Name()}).Debug("output opened")
	return nil
}

// AddStream adds an output stream for codec. Its parameters are filled in
// when an encoder CodecContext bound to it is opened.
func (c *FormatContext) AddStream(codec Codec) (*Stream, error) {
	const op = "add stream"
	if !c.output || c.fc == nil || c.state > formatOpened {
		return nil, c.stateErr(op)
	}
	st := c.fc.NewStream(codec.c)
	return newStream(c.mon, st, DirectionEncoding), nil
}

// WriteHeader writes the container header. Applied options are deleted
// from opts.
func (c *FormatContext) WriteHeader(opts Options) error {
	const op = "write header"
	if !c.output || c.state != formatOpened {
		return c.stateErr(op)
	}
	if st := c.fc.WriteHeader(opts); st.Failed() {
		return writeErr(op, st)
	}
	c.state = formatHeaderWritten
	return nil
}

// WritePacket writes pkt after rescaling it to its stream's time base. The
// caller keeps ownership of pkt. A null packet flushes buffered data.
func (c *FormatContext) WritePacket(pkt *Packet, interleaved bool) error {
	const op = "write packet"
	if !c.output || c.state != formatHeaderWritten {
		return c.stateErr(op)
	}
	if !pkt.IsValid() {
		var st native.Status
		if interleaved {
			st = c.fc.InterleavedWriteFrame(nil)
		} else {
			st = c.fc.WriteFrame(nil)
		}
		if st.Failed() {
			return writeErr(op, st)
		}
		return nil
	}
	idx := pkt.StreamIndex()
	if idx < 0 || idx >= len(c.fc.Streams) {
		return newError(KindInvalidParameters, op, "stream index %d out of range", idx)
	}
	raw := native.PacketAlloc()
	raw.Ref(pkt.raw())
	if tb := c.fc.Streams[idx].TimeBase; !pkt.timeBase.IsZero() && tb.Num > 0 && pkt.timeBase.native() != tb {
		raw.RescaleTS(pkt.timeBase.native(), tb)
	}
	var st native.Status
	if interleaved {
		st = c.fc.InterleavedWriteFrame(raw)
	} else {
		st = c.fc.WriteFrame(raw)
		raw.Unref()
	}
	if st.Failed() {
		return writeErr(op, st)
	}
	metrics.packetsWritten.Inc()
	return nil
}

// WriteTrailer drains interleaved packets and finalizes the container.
func (c *FormatContext) WriteTrailer() error {
	const op = "write trailer"
	if !c.output || c.state != formatHeaderWritten {
		return c.stateErr(op)
	}
	if st := c.fc.WriteTrailer(); st.Failed() {
		return writeErr(op, st)
	}
	c.state = formatTrailerWritten
	c.log.Debug("trailer written")
	return nil
}

// Flush pushes buffered output to the underlying sink.
func (c *FormatContext) Flush() error {
	if c.fc == nil || c.fc.PB == nil || c.state == formatClosed {
		return nil
	}
	if st := c.fc.PB.Flush(); st.Failed() {
		return wrapStatus(KindIoError, "flush", st)
	}
	return nil
}

// Close releases the context. Streams issued by it become dangling. A
// closed context cannot be reopened.
func (c *FormatContext) Close() error {
	if c.state == formatClosed {
		return nil
	}
	var err error
	if c.output && c.state >= formatOpened {
		err = c.Flush()
	}
	if c.fc != nil {
		c.fc.FreeContext()
		c.fc = nil
	}
	c.mon.expire()
	c.state = formatClosed
	c.writeCb = nil
	c.log.Debug("closed")
	return err
}

// IsOpened reports whether input or output has been opened and not closed.
func (c *FormatContext) IsOpened() bool {
	return c.state >= formatOpened && c.state < formatClosed
}

func (c *FormatContext) IsOutput() bool { return c.output }

// Filename is the address passed to OpenInput or OpenOutput.
func (c *FormatContext) Filename() string { return c.uri }

func (c *FormatContext) InputFormat() InputFormat   { return c.ifmt }
func (c *FormatContext) OutputFormat() OutputFormat { return c.ofmt }

func (c *FormatContext) StreamsCount() int {
	if c.fc == nil {
		return 0
	}
	return len(c.fc.Streams)
}

// Stream returns a view of stream i. An out of range index yields a null
// stream.
func (c *FormatContext) Stream(i int) *Stream {
	if c.fc == nil || i < 0 || i >= len(c.fc.Streams) {
		return &Stream{mon: c.mon, gen: c.mon.gen.Load()}
	}
	dir := DirectionDecoding
	if c.output {
		dir = DirectionEncoding
	}
	return newStream(c.mon, c.fc.Streams[i], dir)
}

// Streams returns views of every stream.
func (c *FormatContext) Streams() []*Stream {
	out := make([]*Stream, c.StreamsCount())
	for i := range out {
		out[i] = c.Stream(i)
	}
	return out
}

// Duration of the input, or 0 when unknown.
func (c *FormatContext) Duration() time.Duration {
	if c.fc == nil || c.fc.Duration == NoPTS {
		return 0
	}
	return time.Duration(c.fc.Duration) * time.Microsecond
}

// StartTime of the input in microseconds.
func (c *FormatContext) StartTime() Timestamp {
	if c.fc == nil {
		return Timestamp{NoPTS, fromNativeRational(native.TimeBaseQ)}
	}
	return Timestamp{c.fc.StartTime, fromNativeRational(native.TimeBaseQ)}
}

func (c *FormatContext) BitRate() int64 {
	if c.fc == nil {
		return 0
	}
	return c.fc.BitRate
}

// Dump logs the container layout at info level.
func (c *FormatContext) Dump() {
	if c.fc == nil {
		return
	}
	name := c.ifmt.Name()
	if c.output {
		name = c.ofmt.Name()
	}
	c.log.WithFields(logrus.Fields{
		"uri":      c.uri,
		"format":   name,
		"duration": c.Duration(),
		"bit_rate": c.BitRate(),
	}).Info("format")
	for _, st := range c.fc.Streams {
		par := st.Codecpar
		c.log.WithFields(logrus.Fields{
			"index":     st.Index,
			"codec":     native.CodecName(par.CodecID),
			"type":      MediaType(par.CodecType).String(),
			"time_base": fromNativeRational(st.TimeBase).String(),
		}).Info("stream")
	}
}
