package runtime

import (
	"ShardBoard/internal/state"
	"ShardBoard/internal/types"
)

// Weight is the abstract execution cost charged for an operation.
type Weight uint64

// Unit costs of the storage accesses an operation performs.
const (
	weightBase  Weight = 10_000
	weightRead  Weight = 25_000
	weightWrite Weight = 100_000
)

// access counts the reads and writes an operation is charged for.
type access struct {
	reads  Weight
	writes Weight
}

// weigh returns the worst-case weight of a call. Counts mirror the keys
// each dispatch touches, including the signer's sequence.
func weigh(call Call, limits state.Limits) Weight {
	a := accessOf(call, limits)
	return weightBase + a.reads*weightRead + a.writes*weightWrite
}

// accessOf returns the storage access bound of a call.
func accessOf(call Call, limits state.Limits) access {
	shards := Weight(limits.MaxShards)

	switch call.Kind() {
	case types.OpKindCreateBoard:
		return access{reads: 2, writes: 3}
	case types.OpKindCreateThread:
		return access{reads: 3, writes: 3}
	case types.OpKindSetAttesters:
		return access{reads: 2, writes: 2}
	case types.OpKindSubmitPost:
		// board, thread, one committee per shard, buffer head
		return access{reads: 4 + shards, writes: 3 + shards}
	case types.OpKindCommitFirst, types.OpKindCommitSecond, types.OpKindRevealVote:
		return access{reads: 2, writes: 2}
	case types.OpKindFinalize:
		// buffered post, records, board, thread; then post, thread, board,
		// buffer slot and every record
		return access{reads: 4 + shards, writes: 4 + shards}
	default:
		return access{reads: 1, writes: 1}
	}
}
