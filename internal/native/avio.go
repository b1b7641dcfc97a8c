package native

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"
	"syscall"
	"time"
)

// IOBufferSize matches IO_BUFFER_SIZE.
const IOBufferSize = 32768

// interruptPoll is how often a blocked read re-checks the interrupt callback.
const interruptPoll = 5 * time.Millisecond

// InterruptCallback mirrors AVIOInterruptCB; a true result aborts the
// pending operation with EXIT.
type InterruptCallback func() bool

// WriteCallback receives muxed bytes and returns the number consumed or a
// negative Status.
type WriteCallback func(p []byte) int

type readResult struct {
	buf []byte
	n   int
	err error
}

// IOContext mirrors AVIOContext: a buffered byte stream over a file, an
// io.Reader or a write callback.
type IOContext struct {
	Interrupt InterruptCallback

	src    io.Reader
	dst    io.Writer
	seeker io.Seeker
	closer io.Closer

	r       *bufio.Reader
	w       *bufio.Writer
	pending chan readResult
	carry   []byte
	pos     int64
	err     Status
}

// OpenIO is avio_open2. Only local files are supported; "file:" prefixes
// are stripped.
func OpenIO(url string, write bool, interrupt InterruptCallback) (*IOContext, Status) {
	path := strings.TrimPrefix(url, "file:")
	if i := strings.Index(path, "://"); i > 0 {
		return nil, ProtocolNotFound
	}
	var (
		f   *os.File
		err error
	)
	if write {
		f, err = os.Create(path)
	} else {
		f, err = os.Open(path)
	}
	if err != nil {
		return nil, statusFromErr(err)
	}
	c := &IOContext{Interrupt: interrupt, seeker: f, closer: f}
	if write {
		c.dst = f
		c.w = bufio.NewWriterSize(f, IOBufferSize)
	} else {
		c.src = f
		c.r = bufio.NewReaderSize(c.interruptible(), IOBufferSize)
	}
	return c, OK
}

// NewReaderIO wraps r for demuxing. Seeking is available when r is an
// io.Seeker.
func NewReaderIO(r io.Reader, interrupt InterruptCallback) *IOContext {
	c := &IOContext{Interrupt: interrupt, src: r}
	if s, ok := r.(io.Seeker); ok {
		c.seeker = s
	}
	c.r = bufio.NewReaderSize(c.interruptible(), IOBufferSize)
	return c
}

// NewWriterIO wraps w for muxing.
func NewWriterIO(w io.Writer) *IOContext {
	c := &IOContext{dst: w}
	if s, ok := w.(io.Seeker); ok {
		c.seeker = s
	}
	c.w = bufio.NewWriterSize(w, IOBufferSize)
	return c
}

// NewCallbackIO is avio_alloc_context with a write_packet callback and no
// seek support.
func NewCallbackIO(cb WriteCallback) *IOContext {
	return NewWriterIO(callbackWriter(cb))
}

type callbackWriter WriteCallback

func (cb callbackWriter) Write(p []byte) (int, error) {
	n := cb(p)
	if n < 0 {
		return 0, Status(n)
	}
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

type interruptibleReader struct{ c *IOContext }

func (c *IOContext) interruptible() io.Reader { return interruptibleReader{c} }

// Read runs the underlying read on a helper goroutine while polling the
// interrupt callback. An interrupted read is kept pending and its data is
// delivered by the next call.
func (ir interruptibleReader) Read(p []byte) (int, error) {
	c := ir.c
	if c.Interrupt == nil {
		return c.src.Read(p)
	}
	if len(c.carry) > 0 {
		n := copy(p, c.carry)
		c.carry = c.carry[n:]
		return n, nil
	}
	if c.Interrupt() {
		return 0, EXIT
	}
	if c.pending == nil {
		ch := make(chan readResult, 1)
		buf := make([]byte, len(p))
		go func() {
			n, err := c.src.Read(buf)
			ch <- readResult{buf: buf, n: n, err: err}
		}()
		c.pending = ch
	}
	ticker := time.NewTicker(interruptPoll)
	defer ticker.Stop()
	for {
		select {
		case res := <-c.pending:
			c.pending = nil
			n := copy(p, res.buf[:res.n])
			c.carry = append(c.carry[:0], res.buf[n:res.n]...)
			return n, res.err
		case <-ticker.C:
			if c.Interrupt() {
				return 0, EXIT
			}
		}
	}
}

// Read fills p with at most len(p) bytes.
func (c *IOContext) Read(p []byte) (int, Status) {
	if c.r == nil {
		return 0, EINVAL
	}
	n, err := c.r.Read(p)
	c.pos += int64(n)
	if n > 0 {
		return n, OK
	}
	return 0, c.fail(err)
}

// ReadFull reads exactly len(p) bytes. A short read at end of stream is
// reported as EOF.
func (c *IOContext) ReadFull(p []byte) Status {
	if c.r == nil {
		return EINVAL
	}
	n, err := io.ReadFull(c.r, p)
	c.pos += int64(n)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return c.fail(err)
}

// Skip discards n bytes.
func (c *IOContext) Skip(n int64) Status {
	if c.r == nil {
		return EINVAL
	}
	m, err := c.r.Discard(int(n))
	c.pos += int64(m)
	return c.fail(err)
}

// Peek returns the next n bytes without consuming them. Fewer bytes are
// returned at end of stream.
func (c *IOContext) Peek(n int) ([]byte, Status) {
	if c.r == nil {
		return nil, EINVAL
	}
	b, err := c.r.Peek(n)
	if len(b) > 0 && (err == io.EOF || errors.Is(err, bufio.ErrBufferFull)) {
		return b, OK
	}
	return b, c.fail(err)
}

// Write buffers p.
func (c *IOContext) Write(p []byte) Status {
	if c.w == nil {
		return EINVAL
	}
	if c.err.Failed() {
		return c.err
	}
	n, err := c.w.Write(p)
	c.pos += int64(n)
	return c.fail(err)
}

// Flush is avio_flush.
func (c *IOContext) Flush() Status {
	if c.w == nil {
		return OK
	}
	if c.err.Failed() {
		return c.err
	}
	return c.fail(c.w.Flush())
}

// Seekable reports whether Seek can succeed.
func (c *IOContext) Seekable() bool { return c.seeker != nil }

// Seek is avio_seek. Buffered output is flushed first; buffered input is
// dropped.
func (c *IOContext) Seek(offset int64, whence int) (int64, Status) {
	if c.seeker == nil {
		return 0, ENOSYS
	}
	if st := c.Flush(); st.Failed() {
		return 0, st
	}
	if c.r != nil && whence == io.SeekCurrent {
		offset -= int64(c.r.Buffered())
	}
	pos, err := c.seeker.Seek(offset, whence)
	if err != nil {
		return 0, c.fail(err)
	}
	if c.r != nil {
		c.r.Reset(c.interruptible())
		c.carry = nil
	}
	c.pos = pos
	return pos, OK
}

// Tell is avio_tell.
func (c *IOContext) Tell() int64 { return c.pos }

// Close flushes and releases the underlying file, if any.
func (c *IOContext) Close() Status {
	st := c.Flush()
	if c.closer != nil {
		if err := c.closer.Close(); err != nil && !st.Failed() {
			st = statusFromErr(err)
		}
		c.closer = nil
	}
	return st
}

func (c *IOContext) fail(err error) Status {
	st := statusFromErr(err)
	if st.Failed() && st != EOF && st != EXIT && c.w != nil {
		c.err = st
	}
	return st
}

func statusFromErr(err error) Status {
	if err == nil {
		return OK
	}
	var st Status
	if errors.As(err, &st) {
		return st
	}
	if errors.Is(err, io.EOF) {
		return EOF
	}
	if errors.Is(err, fs.ErrNotExist) {
		return ENOENT
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return -Status(errno)
	}
	return EIO
}
