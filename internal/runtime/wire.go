package runtime

import (
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"

	"ShardBoard/internal/state"
	"ShardBoard/internal/types"
)

// hashSize is the size of every fixed 32-byte field on the wire.
const hashSize = 32

// Encode serializes a call as an Operation carrying the signer's sequence.
func Encode(call Call, seq uint64) []byte {
	builder := flatbuffers.NewBuilder(256)

	// Vectors must be created before the table is started.
	var vecs struct {
		cid, commitment, context, first, second flatbuffers.UOffsetT
		name, description, rules, attesters flatbuffers.UOffsetT
	}

	bytesOf := func(b []byte) flatbuffers.UOffsetT {
		return builder.CreateByteVector(b)
	}

	switch c := call.(type) {
	case CreateBoard:
		vecs.name = bytesOf(c.Meta.Name)
		vecs.description = bytesOf(c.Meta.Description)
		vecs.rules = bytesOf(c.Meta.Rules)
	case SetAttesters:
		flat := make([]byte, 0, len(c.Members)*hashSize)
		for _, m := range c.Members {
			flat = append(flat, m[:]...)
		}
		vecs.attesters = bytesOf(flat)
	case SubmitPost:
		vecs.cid = bytesOf(c.Cid[:])
	case CommitFirst:
		vecs.commitment = bytesOf(c.Commitment[:])
	case CommitSecond:
		vecs.commitment = bytesOf(c.Commitment[:])
		if c.Context != nil {
			vecs.context = bytesOf(c.Context[:])
		}
	case RevealVote:
		vecs.first = bytesOf(c.First[:])
		vecs.second = bytesOf(c.Second[:])
	}

	types.OperationStart(builder)
	types.OperationAddKind(builder, call.Kind())
	types.OperationAddSequence(builder, seq)

	switch c := call.(type) {
	case CreateBoard:
		types.OperationAddName(builder, vecs.name)
		types.OperationAddDescription(builder, vecs.description)
		types.OperationAddRules(builder, vecs.rules)
		types.OperationAddMaxThreads(builder, uint16(c.Meta.MaxThreads))
		types.OperationAddPostsPerThread(builder, uint16(c.Meta.PostsPerThread))
		types.OperationAddShards(builder, byte(c.Meta.Shards))
	case CreateThread:
		types.OperationAddBoard(builder, uint16(c.Board))
		types.OperationAddThread(builder, uint16(c.Thread))
	case SetAttesters:
		types.OperationAddBoard(builder, uint16(c.Board))
		types.OperationAddShard(builder, byte(c.Shard))
		types.OperationAddAttesters(builder, vecs.attesters)
	case SubmitPost:
		types.OperationAddBoard(builder, uint16(c.Board))
		types.OperationAddThread(builder, uint16(c.Thread))
		types.OperationAddCid(builder, vecs.cid)
	case CommitFirst:
		types.OperationAddBoard(builder, uint16(c.Board))
		types.OperationAddBuffer(builder, uint16(c.Buffer))
		types.OperationAddShard(builder, byte(c.Shard))
		types.OperationAddCommitment(builder, vecs.commitment)
	case CommitSecond:
		types.OperationAddBoard(builder, uint16(c.Board))
		types.OperationAddBuffer(builder, uint16(c.Buffer))
		types.OperationAddShard(builder, byte(c.Shard))
		types.OperationAddCommitment(builder, vecs.commitment)
		if c.Context != nil {
			types.OperationAddContext(builder, vecs.context)
		}
	case RevealVote:
		types.OperationAddBoard(builder, uint16(c.Board))
		types.OperationAddBuffer(builder, uint16(c.Buffer))
		types.OperationAddShard(builder, byte(c.Shard))
		types.OperationAddVote(builder, byte(c.Vote))
		types.OperationAddNonceFirst(builder, vecs.first)
		types.OperationAddNonceSecond(builder, vecs.second)
	case Finalize:
		types.OperationAddBoard(builder, uint16(c.Board))
		types.OperationAddBuffer(builder, uint16(c.Buffer))
	}

	builder.Finish(types.OperationEnd(builder))

	return builder.FinishedBytes()
}

// Decode converts a wire Operation into a call and its sequence number.
func Decode(op *types.Operation) (call Call, seq uint64, retErr error) {
	// FlatBuffers panics on malformed data, recover gracefully
	defer func() {
		if r := recover(); r != nil {
			call = nil
			retErr = fmt.Errorf("malformed operation")
		}
	}()

	seq = op.Sequence()
	board := state.BoardIndex(op.Board())
	buffer := state.BufferIndex(op.Buffer())
	shard := state.ShardIndex(op.Shard())

	switch op.Kind() {
	case types.OpKindCreateBoard:
		return CreateBoard{Meta: state.BoardMetadata{
			Name:           op.NameBytes(),
			Description:    op.DescriptionBytes(),
			Rules:          op.RulesBytes(),
			MaxThreads:     state.ThreadIndex(op.MaxThreads()),
			PostsPerThread: state.PostIndex(op.PostsPerThread()),
			Shards:         state.ShardIndex(op.Shards()),
		}}, seq, nil

	case types.OpKindCreateThread:
		return CreateThread{Board: board, Thread: state.ThreadIndex(op.Thread())}, seq, nil

	case types.OpKindSetAttesters:
		raw := op.AttestersBytes()
		if len(raw)%hashSize != 0 {
			return nil, 0, fmt.Errorf("attesters length %d is not a multiple of %d", len(raw), hashSize)
		}

		members := make([]state.AccountID, len(raw)/hashSize)
		for i := range members {
			copy(members[i][:], raw[i*hashSize:])
		}

		return SetAttesters{Board: board, Shard: shard, Members: members}, seq, nil

	case types.OpKindSubmitPost:
		var c SubmitPost
		c.Board = board
		c.Thread = state.ThreadIndex(op.Thread())
		if err := fixed(c.Cid[:], op.CidBytes(), "cid"); err != nil {
			return nil, 0, err
		}
		return c, seq, nil

	case types.OpKindCommitFirst:
		c := CommitFirst{Board: board, Buffer: buffer, Shard: shard}
		if err := fixed(c.Commitment[:], op.CommitmentBytes(), "commitment"); err != nil {
			return nil, 0, err
		}
		return c, seq, nil

	case types.OpKindCommitSecond:
		c := CommitSecond{Board: board, Buffer: buffer, Shard: shard}
		if err := fixed(c.Commitment[:], op.CommitmentBytes(), "commitment"); err != nil {
			return nil, 0, err
		}

		if ctx := op.ContextBytes(); ctx != nil {
			c.Context = new(state.Hash)
			if err := fixed(c.Context[:], ctx, "context"); err != nil {
				return nil, 0, err
			}
		}
		return c, seq, nil

	case types.OpKindRevealVote:
		c := RevealVote{Board: board, Buffer: buffer, Shard: shard, Vote: state.Vote(op.Vote())}
		if err := fixed(c.First[:], op.NonceFirstBytes(), "nonce_first"); err != nil {
			return nil, 0, err
		}
		if err := fixed(c.Second[:], op.NonceSecondBytes(), "nonce_second"); err != nil {
			return nil, 0, err
		}
		return c, seq, nil

	case types.OpKindFinalize:
		return Finalize{Board: board, Buffer: buffer}, seq, nil

	default:
		return nil, 0, fmt.Errorf("unknown operation kind %v", op.Kind())
	}
}

// fixed copies a fixed-size field, rejecting any other length.
func fixed(dst, src []byte, field string) error {
	if len(src) != len(dst) {
		return fmt.Errorf("invalid %s size: got %d, want %d", field, len(src), len(dst))
	}

	copy(dst, src)

	return nil
}

