package state

import (
	"fmt"
)

// ShardRecord pairs a shard index with its attestation record.
type ShardRecord struct {
	Shard  ShardIndex
	Record *AttestationRecord
}

// Record returns the attestation record of one shard for a buffer slot.
func (s *State) Record(b BoardIndex, i BufferIndex, shard ShardIndex) (*AttestationRecord, error) {
	what := fmt.Sprintf("attestation %d/%d/%d", b, i, shard)
	return load(s, attestationKey(b, i, shard), what, decodeRecord)
}

// PutRecord writes the attestation record of one shard.
func (s *State) PutRecord(b BoardIndex, i BufferIndex, shard ShardIndex, rec *AttestationRecord) error {
	if len(rec.Votes) != len(rec.Members) {
		return fmt.Errorf("attestation %d/%d/%d has %d votes for %d members", b, i, shard, len(rec.Votes), len(rec.Members))
	}

	return s.put(attestationKey(b, i, shard), encodeRecord(rec), "attestation record")
}

// Records returns every shard record of a buffer slot, ordered by shard.
func (s *State) Records(b BoardIndex, i BufferIndex) ([]ShardRecord, error) {
	prefix := attestationPrefix(b, i)

	var records []ShardRecord

	err := s.rw.IteratePrefix(prefix, func(key, value []byte) error {
		rec, err := decodeRecord(value)
		if err != nil {
			return err
		}

		records = append(records, ShardRecord{Shard: ShardIndex(key[len(prefix)]), Record: rec})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list attestations %d/%d:\n%w", b, i, err)
	}

	return records, nil
}

// DeleteRecords removes every shard record of a buffer slot.
func (s *State) DeleteRecords(b BoardIndex, i BufferIndex) error {
	var keys [][]byte

	// Collect first; deleting while iterating the same batch is not safe.
	err := s.rw.IteratePrefix(attestationPrefix(b, i), func(key, _ []byte) error {
		k := make([]byte, len(key))
		copy(k, key)
		keys = append(keys, k)

		return nil
	})
	if err != nil {
		return fmt.Errorf("list attestations %d/%d:\n%w", b, i, err)
	}

	for _, k := range keys {
		if err := s.remove(k, "attestation record"); err != nil {
			return err
		}
	}

	return nil
}
