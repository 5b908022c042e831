package tee

import "bytes"

// InitialBufferSize is the starting and resting capacity of a stream buffer.
const InitialBufferSize = 32 * 1024

// Buffer accumulates bytes read from a source that have not been flushed
// yet. Only the unused tail is ever handed to a reader, and bytes become
// part of the buffer only after Commit.
type Buffer struct {
	data    []byte
	initial int
}

// NewBuffer returns an empty buffer with the given initial capacity.
func NewBuffer(initial int) *Buffer {
	if initial <= 0 {
		initial = InitialBufferSize
	}
	return &Buffer{data: make([]byte, 0, initial), initial: initial}
}

// Len returns the number of pending bytes.
func (b *Buffer) Len() int { return len(b.data) }

// Cap returns the allocated capacity.
func (b *Buffer) Cap() int { return cap(b.data) }

// Bytes returns the pending bytes. The slice is only valid until the next
// mutating call.
func (b *Buffer) Bytes() []byte { return b.data }

// Tail returns the writable, unused capacity after the pending bytes.
func (b *Buffer) Tail() []byte {
	return b.data[len(b.data):cap(b.data)]
}

// Commit extends the pending bytes by n bytes previously written into Tail.
func (b *Buffer) Commit(n int) {
	if n < 0 || len(b.data)+n > cap(b.data) {
		panic("tee: commit beyond buffer capacity")
	}
	b.data = b.data[:len(b.data)+n]
}

// Full reports whether there is no tail capacity left.
func (b *Buffer) Full() bool { return len(b.data) == cap(b.data) }

// LastLineEnd returns the length of the longest prefix that ends in a
// newline, searching only bytes at or after from. It returns 0 when the
// searched span has no newline.
func (b *Buffer) LastLineEnd(from int) int {
	idx := bytes.LastIndexByte(b.data[from:], '\n')
	if idx < 0 {
		return 0
	}
	return from + idx + 1
}

// Consume drops the first n pending bytes, keeping the remainder.
func (b *Buffer) Consume(n int) {
	if n >= len(b.data) {
		b.data = b.data[:0]
		return
	}
	rest := copy(b.data, b.data[n:])
	b.data = b.data[:rest]
}

// Grow doubles the capacity.
func (b *Buffer) Grow() {
	grown := make([]byte, len(b.data), 2*cap(b.data))
	copy(grown, b.data)
	b.data = grown
}

// Shrink returns capacity beyond what the pending bytes need. The result is
// the smallest doubling of the initial size that still leaves a tail, so a
// long unterminated line never ends up in a full buffer.
func (b *Buffer) Shrink() {
	if cap(b.data) <= b.initial {
		return
	}
	size := b.initial
	for size <= len(b.data) {
		size *= 2
	}
	if size >= cap(b.data) {
		return
	}
	shrunk := make([]byte, len(b.data), size)
	copy(shrunk, b.data)
	b.data = shrunk
}
