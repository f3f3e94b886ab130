package buffer

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferWriteRead(t *testing.T) {
	b := New()
	_, _ = b.WriteString("hello ")
	_, _ = b.Write([]byte("world"))

	require.Equal(t, 11, b.ReadableSize())
	assert.Equal(t, "hello", b.ReadAsString(5))
	assert.Equal(t, 6, b.ReadableSize())
	assert.Equal(t, []byte(" world"), b.Read(6))
	assert.True(t, b.IsEmpty())
}

func TestBufferRoundTripRandom(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	b := NewWithSize(16)
	var written, read bytes.Buffer

	for i := 0; i < 500; i++ {
		chunk := make([]byte, r.Intn(200))
		r.Read(chunk)
		_, _ = b.Write(chunk)
		written.Write(chunk)

		if n := r.Intn(b.ReadableSize() + 1); n > 0 {
			read.Write(b.Read(n))
		}
		require.Equal(t, written.Len()-read.Len(), b.ReadableSize())
	}
	read.Write(b.ReadAll())
	assert.Equal(t, written.Bytes(), read.Bytes())
}

func TestBufferReadBeyondPanics(t *testing.T) {
	b := New()
	_, _ = b.WriteString("abc")
	assert.Panics(t, func() { b.Read(4) })
	assert.Panics(t, func() { b.ReadAsString(4) })
	assert.Panics(t, func() { b.MoveReadOffset(4) })
	assert.Equal(t, "abc", b.ReadAsString(3))
}

func TestBufferGetLine(t *testing.T) {
	b := New()
	_, _ = b.WriteString("GET / HTTP/1.1\r\nHost: x")

	assert.Equal(t, "GET / HTTP/1.1\r\n", b.GetLine())
	assert.Equal(t, "", b.GetLine())
	assert.Equal(t, "Host: x", string(b.Peek()))

	_, _ = b.WriteString("\n")
	assert.Equal(t, "Host: x\n", b.GetLine())
	assert.True(t, b.IsEmpty())
}

func TestBufferEnsureWriteSpaceCompacts(t *testing.T) {
	b := NewWithSize(16)
	size := b.Cap()
	_, _ = b.Write(bytes.Repeat([]byte{'a'}, size-2))
	b.MoveReadOffset(size - 4)

	// 2 readable, 2 tail, size-4 head: compaction must be enough.
	_, _ = b.Write(bytes.Repeat([]byte{'b'}, 8))
	assert.Equal(t, size, b.Cap())
	assert.Equal(t, 0, b.HeadIdleSize())
	assert.Equal(t, "aabbbbbbbb", string(b.Peek()))
}

func TestBufferEnsureWriteSpaceGrows(t *testing.T) {
	b := NewWithSize(16)
	size := b.Cap()
	_, _ = b.Write(bytes.Repeat([]byte{'a'}, size))
	b.MoveReadOffset(1)

	before := b.ReadableSize()
	_, _ = b.Write(bytes.Repeat([]byte{'b'}, size))
	assert.GreaterOrEqual(t, b.Cap(), 2*size)
	assert.Equal(t, before+size, b.ReadableSize())
	assert.Equal(t, string(bytes.Repeat([]byte{'a'}, size-1))+string(bytes.Repeat([]byte{'b'}, size)), string(b.Peek()))
}

func TestBufferWriteBufferAndClear(t *testing.T) {
	src, dst := New(), New()
	_, _ = src.WriteString("payload")
	_, _ = dst.WriteBuffer(src)
	assert.Equal(t, 7, src.ReadableSize())
	assert.Equal(t, "payload", string(dst.Peek()))

	dst.Clear()
	assert.Equal(t, 0, dst.ReadableSize())
	assert.Equal(t, dst.Cap(), dst.TailIdleSize())
}

func TestBufferReleaseThenReuse(t *testing.T) {
	b := New()
	_, _ = b.WriteString("x")
	b.Release()
	assert.Equal(t, 0, b.Cap())

	_, _ = b.WriteString("again")
	assert.Equal(t, "again", b.ReadAsString(5))
}

func TestBufferWritePosition(t *testing.T) {
	b := NewWithSize(8)
	n := copy(b.WritePosition(), "abc")
	b.MoveWriteOffset(n)
	assert.Equal(t, "abc", string(b.Peek()))
	assert.Panics(t, func() { b.MoveWriteOffset(b.TailIdleSize() + 1) })
}
