package attestation

import (
	"errors"
	"fmt"
	"math"

	"ShardBoard/internal/logger"
	"ShardBoard/internal/state"
)

// Reject reasons reported when a buffered post is discarded.
const (
	ReasonUnavailable = "unavailable"
	ReasonCapacity    = "capacity"
)

// Engine runs the commit, commit, reveal protocol for buffered posts and
// resolves them into the post store.
//
// Every method works on the State it is given and performs no I/O of its
// own; the caller binds that State to a transaction and commits it only
// when the method returns nil.
type Engine struct {
	binder Binder            // binder is the commitment scheme
	period state.BlockNumber // period is the number of blocks a record accepts votes
}

// NewEngine creates an engine. Records accept votes for period blocks
// after the post is admitted.
func NewEngine(binder Binder, period state.BlockNumber) *Engine {
	if binder == nil {
		binder = Blake3Binder{}
	}

	return &Engine{binder: binder, period: period}
}

// Binder returns the commitment scheme.
func (e *Engine) Binder() Binder {
	return e.binder
}

// Deadline returns the first block at which a record created at createdAt
// no longer accepts votes and may be force-resolved.
func (e *Engine) Deadline(createdAt state.BlockNumber) state.BlockNumber {
	if createdAt > math.MaxUint64-e.period {
		return math.MaxUint64
	}

	return createdAt + e.period
}

// Submit admits a post into its board's buffer and opens one attestation
// record per shard, each holding a copy of the shard's current committee.
func (e *Engine) Submit(st *state.State, author state.AccountID, b state.BoardIndex, t state.ThreadIndex, cid state.Cid, now state.BlockNumber) (state.BufferIndex, error) {
	board, err := st.Board(b)
	if err != nil {
		return 0, err
	}

	if err := st.CheckThreadAccepts(b, board, t); err != nil {
		return 0, err
	}

	committees := make([][]state.AccountID, board.Shards)
	for shard := range committees {
		members, err := st.Attesters(b, state.ShardIndex(shard))
		if err != nil {
			return 0, fmt.Errorf("no committee for shard %d:\n%w", shard, err)
		}
		committees[shard] = members
	}

	idx, err := st.Admit(state.BufferedPost{
		Data:   state.PostData{Cid: cid, Author: author, CreatedAt: now},
		Board:  b,
		Thread: t,
	})
	if err != nil {
		return 0, err
	}

	for shard, members := range committees {
		rec := &state.AttestationRecord{
			CreatedAt: now,
			Members:   members,
			Votes:     make([]state.AttestationState, len(members)),
		}
		for j := range rec.Votes {
			rec.Votes[j] = state.Pending()
		}

		if err := st.PutRecord(b, idx, state.ShardIndex(shard), rec); err != nil {
			return 0, err
		}
	}

	logger.Debug("post buffered",
		"board", b,
		"thread", t,
		"buffer", idx,
		"shards", len(committees),
	)

	return idx, nil
}

// slot resolves the record and committee position an attester may write.
func (e *Engine) slot(st *state.State, who state.AccountID, b state.BoardIndex, i state.BufferIndex, shard state.ShardIndex, now state.BlockNumber) (*state.AttestationRecord, int, error) {
	rec, err := st.Record(b, i, shard)
	if err != nil {
		return nil, 0, err
	}

	if now >= e.Deadline(rec.CreatedAt) {
		return nil, 0, fmt.Errorf("attestation %d/%d/%d closed at block %d: %w", b, i, shard, e.Deadline(rec.CreatedAt), state.ErrInvalidTransition)
	}

	pos := rec.Position(who)
	if pos < 0 {
		return nil, 0, fmt.Errorf("%s is not an attester of %d/%d/%d: %w", who.Short(), b, i, shard, state.ErrUnauthorized)
	}

	return rec, pos, nil
}

// requireStage rejects a transition out of the wrong stage.
func requireStage(v state.AttestationState, want state.Stage) error {
	if v.Stage != want {
		return fmt.Errorf("slot is %s, want %s: %w", v.Stage, want, state.ErrInvalidTransition)
	}

	return nil
}

// CommitFirst records an attester's first commitment: Pending → FirstCommit.
func (e *Engine) CommitFirst(st *state.State, who state.AccountID, b state.BoardIndex, i state.BufferIndex, shard state.ShardIndex, h1 state.Hash, now state.BlockNumber) error {
	rec, pos, err := e.slot(st, who, b, i, shard, now)
	if err != nil {
		return err
	}

	if err := requireStage(rec.Votes[pos], state.StagePending); err != nil {
		return err
	}

	rec.Votes[pos] = state.FirstCommit(h1)

	return st.PutRecord(b, i, shard, rec)
}

// CommitSecond records an attester's second commitment: FirstCommit → SecondCommit.
// The context bound by h2 is the digest of the first-round commitments
// visible now. If observed is non-nil it must equal that digest, so an
// attester computing h2 from a stale view is rejected instead of being
// locked into an unverifiable commitment. Returns the bound context.
func (e *Engine) CommitSecond(st *state.State, who state.AccountID, b state.BoardIndex, i state.BufferIndex, shard state.ShardIndex, h2 state.Hash, observed *state.Hash, now state.BlockNumber) (state.Hash, error) {
	rec, pos, err := e.slot(st, who, b, i, shard, now)
	if err != nil {
		return state.Hash{}, err
	}

	slot := rec.Votes[pos]
	if err := requireStage(slot, state.StageFirstCommit); err != nil {
		return state.Hash{}, err
	}

	context := e.binder.Digest(VisibleCommitments(rec))

	if observed != nil && *observed != context {
		return state.Hash{}, fmt.Errorf("stale first-round view for %d/%d/%d: %w", b, i, shard, state.ErrInvalidTransition)
	}

	rec.Votes[pos] = state.SecondCommit(slot.H1, h2, context)

	if err := st.PutRecord(b, i, shard, rec); err != nil {
		return state.Hash{}, err
	}

	return context, nil
}

// Reveal discloses an attester's vote: SecondCommit → Revealed.
// A reveal whose vote and nonces do not reproduce both commitments is
// recorded as Revealed(Invalid); this is not an error for the caller.
// Returns the vote that was recorded.
func (e *Engine) Reveal(st *state.State, who state.AccountID, b state.BoardIndex, i state.BufferIndex, shard state.ShardIndex, vote state.Vote, first, second Nonce, now state.BlockNumber) (state.Vote, error) {
	rec, pos, err := e.slot(st, who, b, i, shard, now)
	if err != nil {
		return 0, err
	}

	slot := rec.Votes[pos]
	if err := requireStage(slot, state.StageSecondCommit); err != nil {
		return 0, err
	}

	recorded := vote
	if err := e.verify(slot, vote, first, second); err != nil {
		if !errors.Is(err, state.ErrCommitmentMismatch) {
			return 0, err
		}

		logger.Warn("invalid reveal",
			"board", b,
			"buffer", i,
			"shard", shard,
			"attester", who.Short(),
			"reason", err,
		)
		recorded = state.VoteInvalid
	}

	rec.Votes[pos] = state.Revealed(recorded)

	if err := st.PutRecord(b, i, shard, rec); err != nil {
		return 0, err
	}

	return recorded, nil
}

// verify recomputes both commitments from the disclosed material.
func (e *Engine) verify(slot state.AttestationState, vote state.Vote, first, second Nonce) error {
	if vote != state.VoteAye && vote != state.VoteNay {
		return fmt.Errorf("vote %d is not a ballot: %w", vote, state.ErrCommitmentMismatch)
	}

	if e.binder.Bind(RoundFirst, state.Hash{}, vote, first) != slot.H1 {
		return fmt.Errorf("first commitment: %w", state.ErrCommitmentMismatch)
	}

	if e.binder.Bind(RoundSecond, slot.Context, vote, second) != slot.H2 {
		return fmt.Errorf("second commitment: %w", state.ErrCommitmentMismatch)
	}

	return nil
}

// Outcome is the resolution of a buffered post.
type Outcome struct {
	Board    state.BoardIndex   // Board of the buffered post
	Buffer   state.BufferIndex  // Buffer is the resolved slot
	Post     state.BufferedPost // Post is the buffered post as it was admitted
	Tallies  []ShardTally       // Tallies holds one entry per shard
	Decision Decision           // Decision is the combined verdict
	Expired  bool               // Expired is true if resolved by deadline with unrevealed slots
	Stored   bool               // Stored is true if the post reached the post store
	Index    state.PostIndex    // Index is the new post index (Stored only)
	Reason   string             // Reason explains a discard (not Stored)
}

// Finalize resolves a buffered post once every slot of every shard has
// revealed, or once the deadline has passed. Available posts move into the
// post store; in every case the buffer slot and its records are deleted.
// Finalizing an already resolved slot returns ErrNotFound.
func (e *Engine) Finalize(st *state.State, b state.BoardIndex, i state.BufferIndex, now state.BlockNumber) (*Outcome, error) {
	post, err := st.Buffered(b, i)
	if err != nil {
		return nil, err
	}

	records, err := st.Records(b, i)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("buffer slot %d/%d has no attestation records: %w", b, i, state.ErrNotFound)
	}

	out := &Outcome{Board: b, Buffer: i, Post: *post}

	complete := true
	for _, r := range records {
		if !r.Record.AllRevealed() {
			complete = false
		}
		out.Tallies = append(out.Tallies, Tally(r.Shard, r.Record))
	}

	if !complete {
		deadline := e.Deadline(records[0].Record.CreatedAt)
		if now < deadline {
			return nil, fmt.Errorf("buffer slot %d/%d still voting until block %d: %w", b, i, deadline, state.ErrInvalidTransition)
		}
		out.Expired = true
	}

	out.Decision = Decide(out.Tallies)

	if out.Decision == Available {
		if err := e.promote(st, out, now); err != nil {
			return nil, err
		}
	} else {
		out.Reason = ReasonUnavailable
	}

	if err := st.RemoveBuffered(b, i); err != nil {
		return nil, err
	}

	if err := st.DeleteRecords(b, i); err != nil {
		return nil, err
	}

	logger.Info("attestation finalized",
		"board", b,
		"buffer", i,
		"decision", out.Decision,
		"stored", out.Stored,
		"expired", out.Expired,
	)

	return out, nil
}

// promote moves an available post into its thread. A thread that can no
// longer take the post turns the outcome into a capacity discard.
func (e *Engine) promote(st *state.State, out *Outcome, now state.BlockNumber) error {
	idx, err := st.AllocatePost(out.Post.Board, out.Post.Thread, out.Post.Data, now)
	if err != nil {
		if state.Kind(err) != state.ErrCapacityExceeded {
			return err
		}

		out.Reason = ReasonCapacity
		return nil
	}

	out.Stored = true
	out.Index = idx

	return nil
}

// ShardStatus describes one shard record of a buffered post.
// Context is the digest a second commitment made now must bind.
type ShardStatus struct {
	Tally   ShardTally               `json:"tally"`
	Stages  map[string]int           `json:"stages"`
	Context state.Hash               `json:"-"`
	Members []state.AccountID        `json:"-"`
	Votes   []state.AttestationState `json:"-"`
}

// Status describes a buffered post and its voting progress.
type Status struct {
	Post      state.BufferedPost `json:"-"`
	CreatedAt state.BlockNumber  `json:"createdAt"`
	Deadline  state.BlockNumber  `json:"deadline"`
	Complete  bool               `json:"complete"`
	Shards    []ShardStatus      `json:"shards"`
}

// Finalizable reports whether Finalize would resolve the slot at block now.
func (s *Status) Finalizable(now state.BlockNumber) bool {
	return s.Complete || now >= s.Deadline
}

// Status reports a buffered post's voting progress without mutating it.
func (e *Engine) Status(st *state.State, b state.BoardIndex, i state.BufferIndex) (*Status, error) {
	post, err := st.Buffered(b, i)
	if err != nil {
		return nil, err
	}

	records, err := st.Records(b, i)
	if err != nil {
		return nil, err
	}

	s := &Status{Post: *post, CreatedAt: post.Data.CreatedAt, Complete: true}
	if len(records) > 0 {
		s.CreatedAt = records[0].Record.CreatedAt
	}
	s.Deadline = e.Deadline(s.CreatedAt)

	for _, r := range records {
		stages := make(map[string]int)
		for _, v := range r.Record.Votes {
			stages[v.Stage.String()]++
		}

		if !r.Record.AllRevealed() {
			s.Complete = false
		}

		s.Shards = append(s.Shards, ShardStatus{
			Tally:   Tally(r.Shard, r.Record),
			Stages:  stages,
			Context: e.binder.Digest(VisibleCommitments(r.Record)),
			Members: r.Record.Members,
			Votes:   r.Record.Votes,
		})
	}

	return s, nil
}
