package state

import (
	"fmt"

	"ShardBoard/internal/storage"
)

// State is the keyed board storage: boards, threads, posts, shard
// committees, the post buffer and its attestation records.
//
// A State is bound to one storage.ReadWriter. For mutations that must be
// atomic, bind it to a storage.Txn and let the caller commit or discard.
type State struct {
	rw     storage.ReadWriter
	limits Limits
}

// New creates a State over rw with the given limits.
func New(rw storage.ReadWriter, limits Limits) *State {
	return &State{rw: rw, limits: limits}
}

// Limits returns the configured bounds.
func (s *State) Limits() Limits {
	return s.limits
}

// load reads key and decodes it. Returns ErrNotFound (wrapped with what)
// if the key is absent.
func load[T any](s *State, key []byte, what string, decode func([]byte) (T, error)) (T, error) {
	var zero T

	data, err := s.rw.Get(key)
	if err != nil {
		return zero, fmt.Errorf("read %s:\n%w", what, err)
	}

	if data == nil {
		return zero, fmt.Errorf("%s: %w", what, ErrNotFound)
	}

	return decode(data)
}

// exists reports whether key is present.
func (s *State) exists(key []byte) (bool, error) {
	data, err := s.rw.Get(key)
	if err != nil {
		return false, err
	}

	return data != nil, nil
}

// put writes an encoded value.
func (s *State) put(key, value []byte, what string) error {
	if err := s.rw.Set(key, value); err != nil {
		return fmt.Errorf("write %s:\n%w", what, err)
	}

	return nil
}

// remove deletes a key.
func (s *State) remove(key []byte, what string) error {
	if err := s.rw.Delete(key); err != nil {
		return fmt.Errorf("delete %s:\n%w", what, err)
	}

	return nil
}
