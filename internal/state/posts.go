package state

import (
	"encoding/binary"
	"fmt"
)

// PostEntry pairs a post index with its data.
type PostEntry struct {
	Index PostIndex
	Data  PostData
}

// Post returns a finalized post.
func (s *State) Post(b BoardIndex, t ThreadIndex, p PostIndex) (*PostData, error) {
	return load(s, postKey(b, t, p), fmt.Sprintf("post %d/%d/%d", b, t, p), decodePost)
}

// Posts lists a thread's posts in index order.
func (s *State) Posts(b BoardIndex, t ThreadIndex) ([]PostEntry, error) {
	prefix := postPrefix(b, t)

	var entries []PostEntry

	err := s.rw.IteratePrefix(prefix, func(key, value []byte) error {
		p, err := decodePost(value)
		if err != nil {
			return err
		}

		idx := PostIndex(binary.BigEndian.Uint16(key[len(prefix):]))
		entries = append(entries, PostEntry{Index: idx, Data: *p})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list posts of thread %d/%d:\n%w", b, t, err)
	}

	return entries, nil
}

// AllocatePost stores data as the next post of thread t and bumps the
// thread to block now. An absent thread is created first.
func (s *State) AllocatePost(b BoardIndex, t ThreadIndex, data PostData, now BlockNumber) (PostIndex, error) {
	board, err := s.Board(b)
	if err != nil {
		return 0, err
	}

	thread, err := s.Thread(b, t)
	if Kind(err) == ErrNotFound {
		if err := s.createThread(b, board, t, now); err != nil {
			return 0, err
		}
		thread = &ThreadMetadata{BumpTime: now}
	} else if err != nil {
		return 0, err
	}

	if thread.PostCount >= board.PostsPerThread {
		return 0, fmt.Errorf("thread %d/%d is full (%d posts): %w", b, t, thread.PostCount, ErrCapacityExceeded)
	}

	idx := thread.PostCount

	if err := s.put(postKey(b, t, idx), encodePost(&data), "post"); err != nil {
		return 0, err
	}

	thread.PostCount++
	thread.BumpTime = now

	if err := s.put(threadKey(b, t), encodeThread(thread), "thread"); err != nil {
		return 0, err
	}

	return idx, nil
}
