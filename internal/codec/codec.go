// Package codec encodes stored records in a compact little-endian layout:
// fixed-width integers, fixed-size arrays written raw, and byte strings
// prefixed with a u32 length.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortBuffer is returned when a record ends before all fields are read.
var ErrShortBuffer = errors.New("codec: short buffer")

// Writer appends encoded fields to a byte slice.
type Writer struct {
	buf []byte
}

// NewWriter creates a writer with the given initial capacity.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Bytes returns the encoded record.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// U8 writes a single byte.
func (w *Writer) U8(v uint8) {
	w.buf = append(w.buf, v)
}

// U16 writes a little-endian u16.
func (w *Writer) U16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// U32 writes a little-endian u32.
func (w *Writer) U32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// U64 writes a little-endian u64.
func (w *Writer) U64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// Fixed writes raw bytes with no length prefix.
func (w *Writer) Fixed(b []byte) {
	w.buf = append(w.buf, b...)
}

// Bytes32 writes a length-prefixed byte string (u32 len + bytes).
func (w *Writer) Bytes32(b []byte) {
	w.U32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// Reader consumes fields from an encoded record.
// The first failure is sticky: later reads return zero values and Err reports it.
type Reader struct {
	data []byte
	err  error
}

// NewReader creates a reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Err returns the first decoding error.
func (r *Reader) Err() error {
	return r.err
}

// Done returns the first decoding error, or an error if bytes remain unread.
func (r *Reader) Done() error {
	if r.err != nil {
		return r.err
	}

	if len(r.data) != 0 {
		return fmt.Errorf("codec: %d trailing bytes", len(r.data))
	}

	return nil
}

// take consumes n bytes.
func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}

	if n < 0 || len(r.data) < n {
		r.err = ErrShortBuffer
		r.data = nil
		return nil
	}

	b := r.data[:n]
	r.data = r.data[n:]

	return b
}

// U8 reads a single byte.
func (r *Reader) U8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// U16 reads a little-endian u16.
func (r *Reader) U16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// U32 reads a little-endian u32.
func (r *Reader) U32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// U64 reads a little-endian u64.
func (r *Reader) U64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// Fixed reads exactly len(dst) raw bytes into dst.
func (r *Reader) Fixed(dst []byte) {
	if b := r.take(len(dst)); b != nil {
		copy(dst, b)
	}
}

// Bytes32 reads a length-prefixed byte string.
// The result is a copy and never aliases the input.
func (r *Reader) Bytes32() []byte {
	n := r.U32()
	if r.err != nil {
		return nil
	}

	if uint64(n) > uint64(len(r.data)) {
		r.err = ErrShortBuffer
		r.data = nil
		return nil
	}

	b := r.take(int(n))
	out := make([]byte, len(b))
	copy(out, b)

	return out
}
