package genesis

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/zeebo/blake3"

	"ShardBoard/internal/state"
)

// scoredAttester pairs an attester with its computed score.
type scoredAttester struct {
	account state.AccountID // account is the attester
	score   [32]byte        // score is the rendezvous score for the shard
}

// Committee returns the n attesters of pool responsible for a shard,
// ordered by their rendezvous score (highest first). Every pool member is
// scored independently, so adding or removing one attester only moves the
// shards it wins or loses.
func Committee(pool []state.AccountID, b state.BoardIndex, shard state.ShardIndex, n int) []state.AccountID {
	if n <= 0 || len(pool) == 0 {
		return nil
	}

	if n > len(pool) {
		n = len(pool)
	}

	id := shardID(b, shard)

	scored := make([]scoredAttester, len(pool))
	for i, a := range pool {
		scored[i] = scoredAttester{account: a, score: computeScore(id, a)}
	}

	sort.Slice(scored, func(i, j int) bool {
		return bytes.Compare(scored[i].score[:], scored[j].score[:]) > 0
	})

	result := make([]state.AccountID, n)
	for i := range n {
		result[i] = scored[i].account
	}

	return result
}

// shardID names a shard for scoring: board (2, big-endian) || shard (1).
func shardID(b state.BoardIndex, shard state.ShardIndex) [3]byte {
	var id [3]byte
	binary.BigEndian.PutUint16(id[:2], uint16(b))
	id[2] = byte(shard)
	return id
}

// computeScore calculates the rendezvous score for a shard-attester pair.
// Score = BLAKE3(shardID || account)
func computeScore(id [3]byte, account state.AccountID) [32]byte {
	h := blake3.New()
	h.Write(id[:])
	h.Write(account[:])

	var result [32]byte
	h.Sum(result[:0])

	return result
}
