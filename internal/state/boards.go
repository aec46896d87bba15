package state

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Board returns a board's metadata.
func (s *State) Board(b BoardIndex) (*BoardMetadata, error) {
	return load(s, boardKey(b), fmt.Sprintf("board %d", b), decodeBoard)
}

// BoardCount returns how many boards have been created.
// Board indexes are allocated densely from zero.
func (s *State) BoardCount() (uint32, error) {
	data, err := s.rw.Get(metaBoardCount)
	if err != nil {
		return 0, fmt.Errorf("read board count:\n%w", err)
	}

	if len(data) < 4 {
		return 0, nil
	}

	return binary.BigEndian.Uint32(data), nil
}

// CreateBoard validates meta against the limits and stores it under the
// next board index.
func (s *State) CreateBoard(meta BoardMetadata) (BoardIndex, error) {
	if err := s.validateBoard(&meta); err != nil {
		return 0, err
	}

	count, err := s.BoardCount()
	if err != nil {
		return 0, err
	}

	if count > math.MaxUint16 {
		return 0, fmt.Errorf("board index: %w", ErrOverflow)
	}

	idx := BoardIndex(count)
	meta.ThreadCount = 0

	if err := s.putBoard(idx, &meta); err != nil {
		return 0, err
	}

	next := make([]byte, 4)
	binary.BigEndian.PutUint32(next, count+1)

	if err := s.put(metaBoardCount, next, "board count"); err != nil {
		return 0, err
	}

	return idx, nil
}

// validateBoard checks lengths and capacities.
func (s *State) validateBoard(m *BoardMetadata) error {
	checks := []struct {
		field string
		size  int
		limit uint32
	}{
		{"name", len(m.Name), s.limits.MaxNameLength},
		{"description", len(m.Description), s.limits.MaxDescLength},
		{"rules", len(m.Rules), s.limits.MaxRulesLength},
	}

	for _, c := range checks {
		if uint64(c.size) > uint64(c.limit) {
			return fmt.Errorf("board %s is %d bytes, limit %d: %w", c.field, c.size, c.limit, ErrCapacityExceeded)
		}
	}

	if len(m.Name) == 0 {
		return fmt.Errorf("board name is empty: %w", ErrCapacityExceeded)
	}

	if m.MaxThreads == 0 || m.PostsPerThread == 0 {
		return fmt.Errorf("board capacity must be positive: %w", ErrCapacityExceeded)
	}

	if m.Shards == 0 || m.Shards > s.limits.MaxShards {
		return fmt.Errorf("board shards %d not in 1..%d: %w", m.Shards, s.limits.MaxShards, ErrCapacityExceeded)
	}

	return nil
}

// putBoard writes board metadata.
func (s *State) putBoard(b BoardIndex, m *BoardMetadata) error {
	return s.put(boardKey(b), encodeBoard(m), "board")
}
