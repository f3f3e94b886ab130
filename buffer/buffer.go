/*
Buffer is a growable byte region with separate read and write cursors.

	| head (reclaimable) |   readable    |   tail (writable)   |
	0                 readIdx         writeIdx              cap

A Buffer is owned by one connection and only touched from that connection's loop.
*/
package buffer

import (
	"bytes"

	"github.com/panjf2000/gnet/v2/pkg/pool/byteslice"

	"github.com/moqsien/gkreactor/iface"
)

type Buffer struct {
	buf      []byte
	readIdx  int
	writeIdx int
}

func New() *Buffer {
	return NewWithSize(iface.DefaultBufferSize)
}

func NewWithSize(size int) *Buffer {
	if size <= 0 {
		size = iface.DefaultBufferSize
	}
	return &Buffer{buf: alloc(size)}
}

func alloc(size int) []byte {
	b := byteslice.Get(size)
	return b[:cap(b)]
}

func (that *Buffer) Cap() int { return len(that.buf) }

func (that *Buffer) ReadableSize() int { return that.writeIdx - that.readIdx }

func (that *Buffer) TailIdleSize() int { return len(that.buf) - that.writeIdx }

func (that *Buffer) HeadIdleSize() int { return that.readIdx }

func (that *Buffer) IsEmpty() bool { return that.readIdx == that.writeIdx }

func (that *Buffer) MoveReadOffset(n int) {
	if n == 0 {
		return
	}
	if n < 0 || n > that.ReadableSize() {
		panic("buffer: read offset beyond readable size")
	}
	that.readIdx += n
}

func (that *Buffer) MoveWriteOffset(n int) {
	if n < 0 || n > that.TailIdleSize() {
		panic("buffer: write offset beyond tail space")
	}
	that.writeIdx += n
}

// EnsureWriteSpace makes room for n more bytes after the write cursor, compacting
// when head plus tail space is enough and reallocating to writeIdx+n otherwise.
func (that *Buffer) EnsureWriteSpace(n int) {
	if that.TailIdleSize() >= n {
		return
	}
	if n <= that.TailIdleSize()+that.HeadIdleSize() {
		size := copy(that.buf, that.buf[that.readIdx:that.writeIdx])
		that.readIdx, that.writeIdx = 0, size
		return
	}
	newBuf := alloc(that.writeIdx + n)
	copy(newBuf, that.buf[:that.writeIdx])
	byteslice.Put(that.buf)
	that.buf = newBuf
}

// WritePosition is the writable tail. Callers filling it must follow with MoveWriteOffset.
func (that *Buffer) WritePosition() []byte {
	return that.buf[that.writeIdx:]
}

func (that *Buffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	that.EnsureWriteSpace(len(p))
	n := copy(that.buf[that.writeIdx:], p)
	that.writeIdx += n
	return n, nil
}

func (that *Buffer) WriteString(s string) (int, error) {
	if len(s) == 0 {
		return 0, nil
	}
	that.EnsureWriteSpace(len(s))
	n := copy(that.buf[that.writeIdx:], s)
	that.writeIdx += n
	return n, nil
}

func (that *Buffer) WriteBuffer(other *Buffer) (int, error) {
	return that.Write(other.Peek())
}

// Peek returns the readable bytes without consuming them. The slice is only valid
// until the next write or Release.
func (that *Buffer) Peek() []byte {
	return that.buf[that.readIdx:that.writeIdx]
}

// Read copies n bytes out and consumes them. n beyond ReadableSize panics.
func (that *Buffer) Read(n int) []byte {
	if n < 0 || n > that.ReadableSize() {
		panic("buffer: read beyond readable size")
	}
	out := make([]byte, n)
	copy(out, that.buf[that.readIdx:that.readIdx+n])
	that.readIdx += n
	return out
}

func (that *Buffer) ReadAsString(n int) string {
	if n < 0 || n > that.ReadableSize() {
		panic("buffer: read beyond readable size")
	}
	s := string(that.buf[that.readIdx : that.readIdx+n])
	that.readIdx += n
	return s
}

// ReadAll consumes every readable byte.
func (that *Buffer) ReadAll() []byte {
	return that.Read(that.ReadableSize())
}

// GetLine consumes and returns the next line including its '\n', or "" when the
// readable region holds no complete line.
func (that *Buffer) GetLine() string {
	i := bytes.IndexByte(that.Peek(), '\n')
	if i < 0 {
		return ""
	}
	return that.ReadAsString(i + 1)
}

func (that *Buffer) Clear() {
	that.readIdx, that.writeIdx = 0, 0
}

// Release hands the backing array back to the pool; the Buffer is empty afterwards.
func (that *Buffer) Release() {
	if that.buf != nil {
		byteslice.Put(that.buf)
	}
	that.buf = nil
	that.Clear()
}
