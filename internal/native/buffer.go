package native

import "sync/atomic"

// bufferCore is the shared payload behind one or more BufferRefs.
type bufferCore struct {
	data []byte
	refs atomic.Int32
	free func([]byte)
}

// BufferRef is one reference to a ref-counted byte buffer (AVBufferRef).
// Each owner holds its own *BufferRef; Unref releases only that owner.
type BufferRef struct {
	core *bufferCore
	Data []byte
}

// BufferAlloc allocates a zeroed buffer with a single reference.
func BufferAlloc(size int) *BufferRef {
	if size < 0 {
		return nil
	}
	return BufferCreate(make([]byte, size), nil)
}

// BufferCreate adopts data without copying. free, when non-nil, runs once the
// last reference is released.
func BufferCreate(data []byte, free func([]byte)) *BufferRef {
	core := &bufferCore{data: data, free: free}
	core.refs.Store(1)
	return &BufferRef{core: core, Data: data}
}

// Ref returns a new reference to the same buffer.
func (b *BufferRef) Ref() *BufferRef {
	if b == nil || b.core == nil {
		return nil
	}
	b.core.refs.Add(1)
	return &BufferRef{core: b.core, Data: b.Data}
}

// Unref drops this reference. It is safe to call on nil and more than once.
func (b *BufferRef) Unref() {
	if b == nil || b.core == nil {
		return
	}
	core := b.core
	b.core = nil
	b.Data = nil
	if core.refs.Add(-1) == 0 {
		if core.free != nil {
			core.free(core.data)
		}
		core.data = nil
	}
}

// RefCount reports the number of live references.
func (b *BufferRef) RefCount() int {
	if b == nil || b.core == nil {
		return 0
	}
	return int(b.core.refs.Load())
}

// IsWritable reports whether this is the only reference.
func (b *BufferRef) IsWritable() bool {
	return b.RefCount() == 1
}

// MakeWritable replaces a shared reference with a private copy.
func (b *BufferRef) MakeWritable() {
	if b == nil || b.core == nil || b.IsWritable() {
		return
	}
	fresh := BufferAlloc(len(b.core.data))
	copy(fresh.core.data, b.core.data)
	offset, n := dataOffset(b.core.data, b.Data), len(b.Data)
	b.Unref()
	b.core = fresh.core
	b.Data = fresh.core.data[offset : offset+n]
}

// Bytes returns the whole underlying allocation.
func (b *BufferRef) Bytes() []byte {
	if b == nil || b.core == nil {
		return nil
	}
	return b.core.data
}

func dataOffset(base, sub []byte) int {
	if len(sub) == 0 || len(base) == 0 {
		return 0
	}
	for i := range base {
		if &base[i] == &sub[0] {
			return i
		}
	}
	return 0
}
