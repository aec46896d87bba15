package codec

import (
	"bytes"
	"errors"
	"testing"
)

// TestReader_Fields verifies each field type reads back in write order.
func TestReader_Fields(t *testing.T) {
	w := NewWriter(64)
	w.U8(7)
	w.U16(0xBEEF)
	w.U32(123456)
	w.U64(1 << 40)
	w.Fixed([]byte{1, 2, 3, 4})
	w.Bytes32([]byte("hello"))

	r := NewReader(w.Bytes())

	if got := r.U8(); got != 7 {
		t.Errorf("U8 = %d, want 7", got)
	}
	if got := r.U16(); got != 0xBEEF {
		t.Errorf("U16 = %x, want beef", got)
	}
	if got := r.U32(); got != 123456 {
		t.Errorf("U32 = %d, want 123456", got)
	}
	if got := r.U64(); got != 1<<40 {
		t.Errorf("U64 = %d, want %d", got, uint64(1<<40))
	}

	var fixed [4]byte
	r.Fixed(fixed[:])
	if fixed != [4]byte{1, 2, 3, 4} {
		t.Errorf("Fixed = %v", fixed)
	}

	if got := r.Bytes32(); !bytes.Equal(got, []byte("hello")) {
		t.Errorf("Bytes32 = %q, want hello", got)
	}

	if err := r.Done(); err != nil {
		t.Errorf("Done = %v, want nil", err)
	}
}

// TestReader_ShortBuffer verifies truncated input fails and the error sticks.
func TestReader_ShortBuffer(t *testing.T) {
	r := NewReader([]byte{0x01})

	if got := r.U16(); got != 0 {
		t.Errorf("U16 = %d, want 0", got)
	}

	if got := r.U8(); got != 0 {
		t.Errorf("U8 after failure = %d, want 0", got)
	}

	if !errors.Is(r.Err(), ErrShortBuffer) {
		t.Errorf("Err = %v, want ErrShortBuffer", r.Err())
	}
}

// TestReader_OversizedLength verifies a length prefix larger than the input is rejected.
func TestReader_OversizedLength(t *testing.T) {
	w := NewWriter(8)
	w.U32(1000)
	w.Fixed([]byte("abc"))

	r := NewReader(w.Bytes())
	if b := r.Bytes32(); b != nil {
		t.Errorf("Bytes32 = %q, want nil", b)
	}

	if !errors.Is(r.Err(), ErrShortBuffer) {
		t.Errorf("Err = %v, want ErrShortBuffer", r.Err())
	}
}

// TestReader_TrailingBytes verifies Done reports unread input.
func TestReader_TrailingBytes(t *testing.T) {
	r := NewReader([]byte{1, 2})
	r.U8()

	if err := r.Done(); err == nil {
		t.Error("expected trailing bytes error")
	}
}
