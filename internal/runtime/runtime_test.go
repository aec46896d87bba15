package runtime

import (
	"errors"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"ShardBoard/internal/attestation"
	"ShardBoard/internal/state"
	"ShardBoard/internal/storage"
	"ShardBoard/internal/types"
)

// newTestRuntime creates a runtime over temporary storage with one admin.
func newTestRuntime(t *testing.T, reg prometheus.Registerer) *Runtime {
	t.Helper()

	dir, err := os.MkdirTemp("", "runtime_test_*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	t.Cleanup(func() {
		os.RemoveAll(dir)
	})

	db, err := storage.New(dir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return New(db, Config{
		Limits:       state.DefaultLimits(),
		Period:       10,
		Admins:       []state.AccountID{account(0xAD)},
		PromRegistry: reg,
	})
}

// account returns a deterministic account id.
func account(n byte) state.AccountID {
	var a state.AccountID
	a[0] = n
	return a
}

// mustApply applies a call and fails the test on error.
func mustApply(t *testing.T, r *Runtime, origin Origin, call Call, now state.BlockNumber) *Receipt {
	t.Helper()

	seq := uint64(0)
	if !origin.Root {
		var err error
		r.View(func(st *state.State) error {
			seq, err = st.Sequence(origin.Account)
			return err
		})
		if err != nil {
			t.Fatalf("Sequence: %v", err)
		}
	}

	rc, err := r.Apply(origin, seq, call, now)
	if err != nil {
		t.Fatalf("Apply(%s): %v", call.Kind(), err)
	}

	return rc
}

// setupBoard creates board 0 with one shard and a committee of members.
func setupBoard(t *testing.T, r *Runtime, members ...state.AccountID) {
	t.Helper()

	mustApply(t, r, Signed(account(0xAD)), CreateBoard{Meta: state.BoardMetadata{
		Name:           []byte("general"),
		MaxThreads:     4,
		PostsPerThread: 4,
		Shards:         1,
	}}, 0)

	mustApply(t, r, Signed(account(0xAD)), SetAttesters{Board: 0, Shard: 0, Members: members}, 0)
}

// TestRuntime_AdminOnly verifies board creation and committee changes require an admin.
func TestRuntime_AdminOnly(t *testing.T) {
	r := newTestRuntime(t, nil)

	_, err := r.Apply(Signed(account(1)), 0, CreateBoard{Meta: state.BoardMetadata{
		Name: []byte("b"), MaxThreads: 1, PostsPerThread: 1, Shards: 1,
	}}, 0)
	if !errors.Is(err, ErrBadOrigin) || !errors.Is(err, state.ErrUnauthorized) {
		t.Fatalf("expected ErrBadOrigin, got %v", err)
	}

	rc := mustApply(t, r, Root(), CreateBoard{Meta: state.BoardMetadata{
		Name: []byte("b"), MaxThreads: 1, PostsPerThread: 1, Shards: 1,
	}}, 0)

	if len(rc.Events) != 1 || rc.Events[0].Name != EventBoardCreated {
		t.Errorf("unexpected events: %+v", rc.Events)
	}
}

// TestRuntime_SequenceConsumedOnFailure verifies a failed dispatch still consumes the sequence.
func TestRuntime_SequenceConsumedOnFailure(t *testing.T) {
	r := newTestRuntime(t, nil)
	user := account(1)

	// Board 9 does not exist.
	rc, err := r.Apply(Signed(user), 0, CreateThread{Board: 9, Thread: 0}, 1)
	if !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if rc.ErrorKind != state.ErrNotFound.Error() || len(rc.Events) != 0 {
		t.Errorf("unexpected receipt: %+v", rc)
	}

	// Replaying sequence 0 is rejected.
	if _, err := r.Apply(Signed(user), 0, CreateThread{Board: 9, Thread: 0}, 1); !errors.Is(err, ErrBadSequence) {
		t.Errorf("expected ErrBadSequence, got %v", err)
	}

	// A bad sequence does not consume.
	var seq uint64
	r.View(func(st *state.State) error {
		seq, err = st.Sequence(user)
		return err
	})

	if seq != 1 {
		t.Errorf("expected sequence 1, got %d", seq)
	}
}

// TestRuntime_FailedDispatchRollsBack verifies a failing call leaves no partial writes.
func TestRuntime_FailedDispatchRollsBack(t *testing.T) {
	r := newTestRuntime(t, nil)

	// One shard without a committee: admission fails after validation.
	mustApply(t, r, Root(), CreateBoard{Meta: state.BoardMetadata{
		Name: []byte("b"), MaxThreads: 1, PostsPerThread: 1, Shards: 2,
	}}, 0)
	mustApply(t, r, Root(), SetAttesters{Board: 0, Shard: 0, Members: []state.AccountID{account(1)}}, 0)

	_, err := r.Apply(Signed(account(2)), 0, SubmitPost{Board: 0, Thread: 0}, 1)
	if !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	r.View(func(st *state.State) error {
		head, _ := st.BufferHead(0)
		if head != 0 {
			t.Errorf("expected buffer head 0, got %d", head)
		}
		return nil
	})
}

// TestRuntime_FullFlow runs submit, commit, commit, reveal and finalize through dispatch.
func TestRuntime_FullFlow(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := newTestRuntime(t, reg)

	members := []state.AccountID{account(1), account(2), account(3)}
	setupBoard(t, r, members...)

	rc := mustApply(t, r, Signed(account(9)), SubmitPost{Board: 0, Thread: 2, Cid: state.Cid{7}}, 1)
	if rc.Events[0].Name != EventPostBuffered || *rc.Events[0].Buffer != 0 {
		t.Fatalf("unexpected events: %+v", rc.Events)
	}

	binder := r.Engine().Binder()
	nonceOf := func(m, round int) attestation.Nonce {
		return attestation.Nonce{byte(m), byte(round)}
	}

	for m, who := range members {
		h1 := binder.Bind(attestation.RoundFirst, state.Hash{}, state.VoteAye, nonceOf(m, 1))
		mustApply(t, r, Signed(who), CommitFirst{Board: 0, Buffer: 0, Shard: 0, Commitment: h1}, 2)
	}

	for m, who := range members {
		var ctx state.Hash
		r.View(func(st *state.State) error {
			rec, err := st.Record(0, 0, 0)
			if err != nil {
				return err
			}
			ctx = binder.Digest(attestation.VisibleCommitments(rec))
			return nil
		})

		h2 := binder.Bind(attestation.RoundSecond, ctx, state.VoteAye, nonceOf(m, 2))
		mustApply(t, r, Signed(who), CommitSecond{Board: 0, Buffer: 0, Shard: 0, Commitment: h2, Context: &ctx}, 3)
	}

	for m, who := range members {
		rc := mustApply(t, r, Signed(who), RevealVote{
			Board: 0, Buffer: 0, Shard: 0,
			Vote:  state.VoteAye,
			First: nonceOf(m, 1), Second: nonceOf(m, 2),
		}, 4)

		if rc.Events[0].Vote != "aye" {
			t.Errorf("member %d: expected aye, got %q", m, rc.Events[0].Vote)
		}
	}

	rc = mustApply(t, r, Signed(account(42)), Finalize{Board: 0, Buffer: 0}, 5)

	e := rc.Events[0]
	if e.Name != EventPostStored || e.Post == nil || *e.Post != 0 || *e.Thread != 2 {
		t.Fatalf("unexpected finalize event: %+v", e)
	}

	r.View(func(st *state.State) error {
		post, err := st.Post(0, 2, 0)
		if err != nil {
			t.Errorf("Post: %v", err)
			return nil
		}

		if post.Author != account(9) || post.Cid != (state.Cid{7}) {
			t.Errorf("unexpected post: %+v", post)
		}
		return nil
	})

	if got := testutil.ToFloat64(r.metrics.postsStored); got != 1 {
		t.Errorf("expected posts stored metric 1, got %v", got)
	}

	if got := testutil.ToFloat64(r.metrics.operations.WithLabelValues("RevealVote", "ok")); got != 3 {
		t.Errorf("expected 3 reveals counted, got %v", got)
	}
}

// TestRuntime_RootCannotVote verifies account calls need a signer.
func TestRuntime_RootCannotVote(t *testing.T) {
	r := newTestRuntime(t, nil)

	_, err := r.Apply(Root(), 0, SubmitPost{}, 0)
	if !errors.Is(err, ErrBadOrigin) {
		t.Errorf("expected ErrBadOrigin, got %v", err)
	}
}

// TestWire_RoundTrip verifies every call survives encoding.
func TestWire_RoundTrip(t *testing.T) {
	ctx := state.Hash{5}

	calls := []Call{
		CreateBoard{Meta: state.BoardMetadata{
			Name: []byte("n"), Description: []byte("d"), Rules: []byte("r"),
			MaxThreads: 3, PostsPerThread: 4, Shards: 2,
		}},
		CreateThread{Board: 1, Thread: 2},
		SetAttesters{Board: 1, Shard: 1, Members: []state.AccountID{account(1), account(2)}},
		SubmitPost{Board: 1, Thread: 2, Cid: state.Cid{9}},
		CommitFirst{Board: 1, Buffer: 3, Shard: 1, Commitment: state.Hash{1}},
		CommitSecond{Board: 1, Buffer: 3, Shard: 1, Commitment: state.Hash{2}, Context: &ctx},
		CommitSecond{Board: 1, Buffer: 3, Shard: 1, Commitment: state.Hash{2}},
		RevealVote{Board: 1, Buffer: 3, Shard: 1, Vote: state.VoteNay, First: attestation.Nonce{1}, Second: attestation.Nonce{2}},
		Finalize{Board: 1, Buffer: 3},
	}

	for i, want := range calls {
		data := Encode(want, uint64(i))

		got, seq, err := Decode(types.GetRootAsOperation(data, 0))
		if err != nil {
			t.Fatalf("call %d: Decode: %v", i, err)
		}

		if seq != uint64(i) || got.Kind() != want.Kind() {
			t.Errorf("call %d: got kind %v seq %d", i, got.Kind(), seq)
		}

		if weigh(got, state.DefaultLimits()) != weigh(want, state.DefaultLimits()) {
			t.Errorf("call %d: weight differs", i)
		}
	}

	// Spot-check the fields that need conversion.
	got, _, _ := Decode(types.GetRootAsOperation(Encode(calls[2], 0), 0))
	if sa := got.(SetAttesters); len(sa.Members) != 2 || sa.Members[1] != account(2) {
		t.Errorf("attesters mismatch: %+v", sa.Members)
	}

	got, _, _ = Decode(types.GetRootAsOperation(Encode(calls[5], 0), 0))
	if cs := got.(CommitSecond); cs.Context == nil || *cs.Context != ctx {
		t.Errorf("context mismatch: %+v", cs.Context)
	}

	got, _, _ = Decode(types.GetRootAsOperation(Encode(calls[6], 0), 0))
	if cs := got.(CommitSecond); cs.Context != nil {
		t.Errorf("expected no context, got %x", *cs.Context)
	}
}

// TestWire_BadField verifies malformed fixed-size fields are rejected.
func TestWire_BadField(t *testing.T) {
	data := Encode(SetAttesters{Board: 1, Members: []state.AccountID{account(1)}}, 0)
	op := types.GetRootAsOperation(data, 0)

	// Reinterpret as SubmitPost, which carries no cid.
	op.MutateKind(types.OpKindSubmitPost)

	if _, _, err := Decode(op); err == nil {
		t.Error("expected missing cid to be rejected")
	}
}
