package runtime

import (
	"ShardBoard/internal/attestation"
	"ShardBoard/internal/state"
	"ShardBoard/internal/types"
)

// Call is one dispatchable operation.
type Call interface {
	// Kind returns the wire kind of the call.
	Kind() types.OpKind
}

// CreateBoard registers a new board. Admin only.
type CreateBoard struct {
	Meta state.BoardMetadata
}

// CreateThread opens a thread on a board.
type CreateThread struct {
	Board  state.BoardIndex
	Thread state.ThreadIndex
}

// SetAttesters replaces a shard committee. Admin only.
type SetAttesters struct {
	Board   state.BoardIndex
	Shard   state.ShardIndex
	Members []state.AccountID
}

// SubmitPost buffers a post for attestation.
type SubmitPost struct {
	Board  state.BoardIndex
	Thread state.ThreadIndex
	Cid    state.Cid
}

// CommitFirst carries an attester's first commitment.
type CommitFirst struct {
	Board      state.BoardIndex
	Buffer     state.BufferIndex
	Shard      state.ShardIndex
	Commitment state.Hash
}

// CommitSecond carries an attester's second commitment. Context, if set,
// is the digest the attester computed its commitment against.
type CommitSecond struct {
	Board      state.BoardIndex
	Buffer     state.BufferIndex
	Shard      state.ShardIndex
	Commitment state.Hash
	Context    *state.Hash
}

// RevealVote discloses an attester's vote and both nonces.
type RevealVote struct {
	Board  state.BoardIndex
	Buffer state.BufferIndex
	Shard  state.ShardIndex
	Vote   state.Vote
	First  attestation.Nonce
	Second attestation.Nonce
}

// Finalize resolves a buffered post. Anyone may call it.
type Finalize struct {
	Board  state.BoardIndex
	Buffer state.BufferIndex
}

func (CreateBoard) Kind() types.OpKind  { return types.OpKindCreateBoard }
func (CreateThread) Kind() types.OpKind { return types.OpKindCreateThread }
func (SetAttesters) Kind() types.OpKind { return types.OpKindSetAttesters }
func (SubmitPost) Kind() types.OpKind   { return types.OpKindSubmitPost }
func (CommitFirst) Kind() types.OpKind  { return types.OpKindCommitFirst }
func (CommitSecond) Kind() types.OpKind { return types.OpKindCommitSecond }
func (RevealVote) Kind() types.OpKind   { return types.OpKindRevealVote }
func (Finalize) Kind() types.OpKind     { return types.OpKindFinalize }
