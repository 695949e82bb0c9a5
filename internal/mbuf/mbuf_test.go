package mbuf_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dantte-lp/gdp-router/internal/mbuf"
)

func TestGrowAppendsAtEnd(t *testing.T) {
	t.Parallel()

	m := mbuf.Get()
	defer mbuf.Put(m)

	if err := m.Grow(0, 4); err != nil {
		t.Fatalf("grow: %v", err)
	}
	if err := m.WriteAt(0, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := m.Grow(m.Len(), 2); err != nil {
		t.Fatalf("grow append: %v", err)
	}
	if err := m.WriteAt(4, []byte{5, 6}); err != nil {
		t.Fatalf("write: %v", err)
	}

	want := []byte{1, 2, 3, 4, 5, 6}
	if !bytes.Equal(m.Bytes(), want) {
		t.Fatalf("got %v, want %v", m.Bytes(), want)
	}
}

func TestGrowInMiddleShiftsTail(t *testing.T) {
	t.Parallel()

	m := mbuf.Get()
	defer mbuf.Put(m)

	if err := m.Grow(0, 4); err != nil {
		t.Fatalf("grow: %v", err)
	}
	if err := m.WriteAt(0, []byte{0xAA, 0xBB, 0xCC, 0xDD}); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Insert 2 bytes after the first 2, shifting 0xCC, 0xDD right.
	if err := m.Grow(2, 2); err != nil {
		t.Fatalf("grow mid: %v", err)
	}
	if err := m.WriteAt(2, []byte{0x11, 0x22}); err != nil {
		t.Fatalf("write: %v", err)
	}

	want := []byte{0xAA, 0xBB, 0x11, 0x22, 0xCC, 0xDD}
	if !bytes.Equal(m.Bytes(), want) {
		t.Fatalf("got %v, want %v", m.Bytes(), want)
	}
}

func TestShrinkDropsTail(t *testing.T) {
	t.Parallel()

	m := mbuf.Get()
	defer mbuf.Put(m)

	if err := m.Grow(0, 6); err != nil {
		t.Fatalf("grow: %v", err)
	}
	if err := m.Shrink(3); err != nil {
		t.Fatalf("shrink: %v", err)
	}
	if m.Len() != 3 {
		t.Fatalf("len = %d, want 3", m.Len())
	}
}

func TestResizeNeverUnderflows(t *testing.T) {
	t.Parallel()

	m := mbuf.Get()
	defer mbuf.Put(m)

	if err := m.Grow(0, 10); err != nil {
		t.Fatalf("grow: %v", err)
	}

	// Shrinking payload from 10 bytes to 4 bytes: total goes 10 -> 4.
	if err := m.Resize(10, 4); err != nil {
		t.Fatalf("resize shrink: %v", err)
	}
	if m.Len() != 4 {
		t.Fatalf("len = %d, want 4", m.Len())
	}

	// Growing payload back from 4 to 9 bytes.
	if err := m.Resize(4, 9); err != nil {
		t.Fatalf("resize grow: %v", err)
	}
	if m.Len() != 9 {
		t.Fatalf("len = %d, want 9", m.Len())
	}
}

func TestReadWriteBounds(t *testing.T) {
	t.Parallel()

	m := mbuf.Get()
	defer mbuf.Put(m)

	if err := m.Grow(0, 4); err != nil {
		t.Fatalf("grow: %v", err)
	}

	if _, err := m.ReadAt(2, 10); !errors.Is(err, mbuf.ErrShort) {
		t.Fatalf("ReadAt out of bounds: got %v, want ErrShort", err)
	}
	if err := m.WriteAt(2, make([]byte, 10)); !errors.Is(err, mbuf.ErrShort) {
		t.Fatalf("WriteAt out of bounds: got %v, want ErrShort", err)
	}
}

func TestPutDiscardsOversizedBuffer(t *testing.T) {
	t.Parallel()

	m := mbuf.Get()
	if err := m.Grow(0, 128*1024); err != nil {
		t.Fatalf("grow: %v", err)
	}
	mbuf.Put(m) // should not panic; buffer is simply not returned to the pool.
}
