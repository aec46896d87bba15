package client

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"ShardBoard/internal/attestation"
	"ShardBoard/internal/runtime"
	"ShardBoard/internal/state"
)

// Ballot is an attester's secret for one buffered post: the vote and the
// nonces hiding it until the reveal.
type Ballot struct {
	Vote    state.Vote        // Vote is the ballot to reveal
	First   attestation.Nonce // First hides the first commitment
	Second  attestation.Nonce // Second hides the second commitment
	Context state.Hash        // Context is the digest bound by the second commitment
}

// NewBallot draws fresh nonces for vote.
func NewBallot(vote state.Vote) (*Ballot, error) {
	b := &Ballot{Vote: vote}

	if _, err := rand.Read(b.First[:]); err != nil {
		return nil, fmt.Errorf("draw nonce:\n%w", err)
	}

	if _, err := rand.Read(b.Second[:]); err != nil {
		return nil, fmt.Errorf("draw nonce:\n%w", err)
	}

	return b, nil
}

// CommitFirst sends the ballot's first-round commitment.
func (c *Client) CommitFirst(ctx context.Context, b state.BoardIndex, i state.BufferIndex, shard state.ShardIndex, ballot *Ballot) (*runtime.Receipt, error) {
	h1 := attestation.Blake3Binder{}.Bind(attestation.RoundFirst, state.Hash{}, ballot.Vote, ballot.First)

	return c.Send(ctx, runtime.CommitFirst{Board: b, Buffer: i, Shard: shard, Commitment: h1})
}

// CommitSecond reads the shard's current context from the node, binds
// the ballot to it and sends the second-round commitment. The context is
// sent along so a commitment computed against a stale view is refused.
func (c *Client) CommitSecond(ctx context.Context, b state.BoardIndex, i state.BufferIndex, shard state.ShardIndex, ballot *Ballot) (*runtime.Receipt, error) {
	view, err := c.shardContext(ctx, b, i, shard)
	if err != nil {
		return nil, err
	}

	ballot.Context = view
	h2 := attestation.Blake3Binder{}.Bind(attestation.RoundSecond, view, ballot.Vote, ballot.Second)

	return c.Send(ctx, runtime.CommitSecond{Board: b, Buffer: i, Shard: shard, Commitment: h2, Context: &view})
}

// Reveal discloses the ballot.
func (c *Client) Reveal(ctx context.Context, b state.BoardIndex, i state.BufferIndex, shard state.ShardIndex, ballot *Ballot) (*runtime.Receipt, error) {
	return c.Send(ctx, runtime.RevealVote{
		Board:  b,
		Buffer: i,
		Shard:  shard,
		Vote:   ballot.Vote,
		First:  ballot.First,
		Second: ballot.Second,
	})
}

// shardContext returns the digest a second commitment must bind now.
func (c *Client) shardContext(ctx context.Context, b state.BoardIndex, i state.BufferIndex, shard state.ShardIndex) (state.Hash, error) {
	status, err := c.BufferStatus(ctx, b, i)
	if err != nil {
		return state.Hash{}, fmt.Errorf("get buffer status:\n%w", err)
	}

	for _, s := range status.Shards {
		if s.Shard != shard {
			continue
		}

		var h state.Hash
		raw, err := hex.DecodeString(s.Context)
		if err != nil || len(raw) != len(h) {
			return state.Hash{}, fmt.Errorf("invalid context %q", s.Context)
		}
		copy(h[:], raw)

		return h, nil
	}

	return state.Hash{}, fmt.Errorf("buffered post %d/%d has no shard %d: %w", b, i, shard, state.ErrNotFound)
}
