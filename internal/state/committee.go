package state

import (
	"fmt"
)

// Attesters returns the committee of a board shard, in position order.
func (s *State) Attesters(b BoardIndex, shard ShardIndex) ([]AccountID, error) {
	return load(s, committeeKey(b, shard), fmt.Sprintf("committee %d/%d", b, shard), decodeCommittee)
}

// SetAttesters replaces the committee of a board shard.
// Records already created keep their own snapshot of the previous committee.
func (s *State) SetAttesters(b BoardIndex, shard ShardIndex, members []AccountID) error {
	board, err := s.Board(b)
	if err != nil {
		return err
	}

	if shard >= board.Shards {
		return fmt.Errorf("shard %d of board %d (has %d): %w", shard, b, board.Shards, ErrNotFound)
	}

	if len(members) == 0 || uint64(len(members)) > uint64(s.limits.AttesterSetSize) {
		return fmt.Errorf("committee size %d not in 1..%d: %w", len(members), s.limits.AttesterSetSize, ErrCapacityExceeded)
	}

	seen := make(map[AccountID]struct{}, len(members))
	for _, m := range members {
		if _, dup := seen[m]; dup {
			return fmt.Errorf("attester %s listed twice: %w", m.Short(), ErrInvalidTransition)
		}
		seen[m] = struct{}{}
	}

	return s.put(committeeKey(b, shard), encodeCommittee(members), "committee")
}
