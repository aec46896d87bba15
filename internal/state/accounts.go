package state

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Sequence returns the next operation sequence number expected from an account.
func (s *State) Sequence(a AccountID) (uint64, error) {
	data, err := s.rw.Get(accountKey(a))
	if err != nil {
		return 0, fmt.Errorf("read sequence of %s:\n%w", a.Short(), err)
	}

	if len(data) < 8 {
		return 0, nil
	}

	return binary.BigEndian.Uint64(data), nil
}

// BumpSequence consumes the account's current sequence number.
func (s *State) BumpSequence(a AccountID) error {
	seq, err := s.Sequence(a)
	if err != nil {
		return err
	}

	if seq == math.MaxUint64 {
		return fmt.Errorf("sequence of %s: %w", a.Short(), ErrOverflow)
	}

	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, seq+1)

	return s.put(accountKey(a), data, "sequence")
}

// BlockNumber returns the last block recorded by the executor.
func (s *State) BlockNumber() (BlockNumber, error) {
	data, err := s.rw.Get(metaBlock)
	if err != nil {
		return 0, fmt.Errorf("read block number:\n%w", err)
	}

	if len(data) < 8 {
		return 0, nil
	}

	return BlockNumber(binary.BigEndian.Uint64(data)), nil
}

// SetBlockNumber records the executor's current block.
func (s *State) SetBlockNumber(n BlockNumber) error {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, uint64(n))

	return s.put(metaBlock, data, "block number")
}
