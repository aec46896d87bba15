package state

import (
	"encoding/binary"
	"fmt"
	"math"
)

// BufferEntry pairs a buffer index with its buffered post.
type BufferEntry struct {
	Index BufferIndex
	Post  BufferedPost
}

// BufferHead returns the next buffer index of a board (zero by default).
func (s *State) BufferHead(b BoardIndex) (BufferIndex, error) {
	data, err := s.rw.Get(bufferHeadKey(b))
	if err != nil {
		return 0, fmt.Errorf("read buffer head %d:\n%w", b, err)
	}

	if len(data) < 2 {
		return 0, nil
	}

	return BufferIndex(binary.BigEndian.Uint16(data)), nil
}

// setBufferHead writes the next buffer index of a board.
func (s *State) setBufferHead(b BoardIndex, head BufferIndex) error {
	data := make([]byte, 2)
	binary.BigEndian.PutUint16(data, uint16(head))

	return s.put(bufferHeadKey(b), data, "buffer head")
}

// Admit stores post in its board's buffer under the next index.
// The head is never wrapped: once the last index is handed out, Admit
// fails with ErrOverflow.
func (s *State) Admit(post BufferedPost) (BufferIndex, error) {
	b := post.Board

	if _, err := s.Board(b); err != nil {
		return 0, err
	}

	head, err := s.BufferHead(b)
	if err != nil {
		return 0, err
	}

	if head == math.MaxUint16 {
		return 0, fmt.Errorf("buffer of board %d exhausted: %w", b, ErrOverflow)
	}

	if err := s.put(bufferedKey(b, head), encodeBuffered(&post), "buffered post"); err != nil {
		return 0, err
	}

	if err := s.setBufferHead(b, head+1); err != nil {
		return 0, err
	}

	return head, nil
}

// Buffered returns a buffered post.
func (s *State) Buffered(b BoardIndex, i BufferIndex) (*BufferedPost, error) {
	return load(s, bufferedKey(b, i), fmt.Sprintf("buffer slot %d/%d", b, i), decodeBuffered)
}

// BufferedPosts lists a board's open buffer slots in FIFO order.
func (s *State) BufferedPosts(b BoardIndex) ([]BufferEntry, error) {
	prefix := bufferedPrefix(b)

	var entries []BufferEntry

	err := s.rw.IteratePrefix(prefix, func(key, value []byte) error {
		p, err := decodeBuffered(value)
		if err != nil {
			return err
		}

		idx := BufferIndex(binary.BigEndian.Uint16(key[len(prefix):]))
		entries = append(entries, BufferEntry{Index: idx, Post: *p})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list buffer of board %d:\n%w", b, err)
	}

	return entries, nil
}

// RemoveBuffered deletes a buffer slot.
func (s *State) RemoveBuffered(b BoardIndex, i BufferIndex) error {
	return s.remove(bufferedKey(b, i), "buffered post")
}
