package state

import (
	"encoding/binary"
	"fmt"
)

// ThreadEntry pairs a thread index with its metadata.
type ThreadEntry struct {
	Index    ThreadIndex
	Metadata ThreadMetadata
}

// Thread returns a thread's metadata.
func (s *State) Thread(b BoardIndex, t ThreadIndex) (*ThreadMetadata, error) {
	return load(s, threadKey(b, t), fmt.Sprintf("thread %d/%d", b, t), decodeThread)
}

// Threads lists a board's threads in index order.
func (s *State) Threads(b BoardIndex) ([]ThreadEntry, error) {
	prefix := threadPrefix(b)

	var entries []ThreadEntry

	err := s.rw.IteratePrefix(prefix, func(key, value []byte) error {
		m, err := decodeThread(value)
		if err != nil {
			return err
		}

		idx := ThreadIndex(binary.BigEndian.Uint16(key[len(prefix):]))
		entries = append(entries, ThreadEntry{Index: idx, Metadata: *m})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list threads of board %d:\n%w", b, err)
	}

	return entries, nil
}

// CreateThread opens thread t on board b at block now.
func (s *State) CreateThread(b BoardIndex, t ThreadIndex, now BlockNumber) error {
	board, err := s.Board(b)
	if err != nil {
		return err
	}

	return s.createThread(b, board, t, now)
}

// createThread checks the board's thread capacity, stores an empty thread
// and counts it on the board.
func (s *State) createThread(b BoardIndex, board *BoardMetadata, t ThreadIndex, now BlockNumber) error {
	if t >= board.MaxThreads {
		return fmt.Errorf("thread %d/%d beyond board capacity %d: %w", b, t, board.MaxThreads, ErrCapacityExceeded)
	}

	found, err := s.exists(threadKey(b, t))
	if err != nil {
		return fmt.Errorf("read thread %d/%d:\n%w", b, t, err)
	}

	if found {
		return fmt.Errorf("thread %d/%d already exists: %w", b, t, ErrInvalidTransition)
	}

	if board.ThreadCount >= board.MaxThreads {
		return fmt.Errorf("board %d has %d threads: %w", b, board.ThreadCount, ErrCapacityExceeded)
	}

	board.ThreadCount++
	if err := s.putBoard(b, board); err != nil {
		return err
	}

	return s.put(threadKey(b, t), encodeThread(&ThreadMetadata{BumpTime: now}), "thread")
}

// CheckThreadAccepts reports whether a post could currently land in thread t:
// an existing thread must have room, an absent one must be creatable.
func (s *State) CheckThreadAccepts(b BoardIndex, board *BoardMetadata, t ThreadIndex) error {
	if t >= board.MaxThreads {
		return fmt.Errorf("thread %d/%d beyond board capacity %d: %w", b, t, board.MaxThreads, ErrCapacityExceeded)
	}

	thread, err := s.Thread(b, t)
	if err == nil {
		if thread.PostCount >= board.PostsPerThread {
			return fmt.Errorf("thread %d/%d is full: %w", b, t, ErrCapacityExceeded)
		}
		return nil
	}

	if Kind(err) != ErrNotFound {
		return err
	}

	if board.ThreadCount >= board.MaxThreads {
		return fmt.Errorf("board %d has %d threads: %w", b, board.ThreadCount, ErrCapacityExceeded)
	}

	return nil
}
