package genesis

import (
	"errors"
	"testing"

	"ShardBoard/internal/runtime"
	"ShardBoard/internal/state"
	"ShardBoard/internal/storage"
)

// pool returns n distinct accounts.
func pool(n int) []state.AccountID {
	out := make([]state.AccountID, n)
	for i := range out {
		out[i][0] = byte(i + 1)
		out[i][31] = byte(i * 7)
	}
	return out
}

// newTestRuntime creates a runtime over temporary storage.
func newTestRuntime(t *testing.T) *runtime.Runtime {
	t.Helper()

	db, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return runtime.New(db, runtime.Config{Limits: state.DefaultLimits(), Period: 10})
}

// TestCommittee_Deterministic verifies the same inputs give the same committee.
func TestCommittee_Deterministic(t *testing.T) {
	p := pool(10)

	a := Committee(p, 1, 2, 4)
	b := Committee(p, 1, 2, 4)

	if len(a) != 4 {
		t.Fatalf("expected 4 members, got %d", len(a))
	}

	for i := range a {
		if a[i] != b[i] {
			t.Errorf("member %d differs", i)
		}
	}
}

// TestCommittee_Distinct verifies members are unique and shards differ.
func TestCommittee_Distinct(t *testing.T) {
	p := pool(16)

	seen := make(map[state.AccountID]bool)
	for _, a := range Committee(p, 0, 0, 8) {
		if seen[a] {
			t.Errorf("duplicate member %s", a.Short())
		}
		seen[a] = true
	}

	differ := false
	first := Committee(p, 0, 0, 8)
	for s := state.ShardIndex(1); s < 4; s++ {
		other := Committee(p, 0, s, 8)
		for i := range first {
			if first[i] != other[i] {
				differ = true
			}
		}
	}

	if !differ {
		t.Error("every shard got the same committee")
	}
}

// TestCommittee_Stable verifies removing a non-member keeps the committee.
func TestCommittee_Stable(t *testing.T) {
	p := pool(12)
	members := Committee(p, 3, 0, 3)

	in := make(map[state.AccountID]bool)
	for _, m := range members {
		in[m] = true
	}

	var reduced []state.AccountID
	dropped := false
	for _, a := range p {
		if !in[a] && !dropped {
			dropped = true
			continue
		}
		reduced = append(reduced, a)
	}

	after := Committee(reduced, 3, 0, 3)
	for i := range members {
		if members[i] != after[i] {
			t.Errorf("member %d changed after removing a non-member", i)
		}
	}
}

// TestCommittee_Bounds verifies n is clamped to the pool.
func TestCommittee_Bounds(t *testing.T) {
	if got := Committee(pool(2), 0, 0, 5); len(got) != 2 {
		t.Errorf("expected 2 members, got %d", len(got))
	}

	if got := Committee(pool(2), 0, 0, 0); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

// TestApply verifies boards and committees are created.
func TestApply(t *testing.T) {
	rt := newTestRuntime(t)

	cfg := Config{
		Attesters:     pool(6),
		CommitteeSize: 3,
		Boards: []Board{
			{Meta: state.BoardMetadata{Name: []byte("general"), MaxThreads: 4, PostsPerThread: 8, Shards: 2}},
			{Meta: state.BoardMetadata{Name: []byte("meta"), MaxThreads: 2, PostsPerThread: 2, Shards: 1}},
		},
	}

	if err := Apply(rt, cfg); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	err := rt.View(func(st *state.State) error {
		count, err := st.BoardCount()
		if err != nil {
			return err
		}
		if count != 2 {
			t.Errorf("expected 2 boards, got %d", count)
		}

		for s := state.ShardIndex(0); s < 2; s++ {
			members, err := st.Attesters(0, s)
			if err != nil {
				return err
			}

			want := Committee(cfg.Attesters, 0, s, 3)
			if len(members) != 3 || members[0] != want[0] {
				t.Errorf("shard %d committee mismatch", s)
			}
		}

		_, err = st.Attesters(1, 0)
		return err
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}

	if err := Apply(rt, cfg); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("expected ErrAlreadyInitialized, got %v", err)
	}
}

// TestApply_Atomic verifies a failing board leaves nothing behind, so a
// corrected genesis can still run.
func TestApply_Atomic(t *testing.T) {
	rt := newTestRuntime(t)

	cfg := Config{
		Attesters:     pool(3),
		CommitteeSize: 2,
		Boards: []Board{
			{Meta: state.BoardMetadata{Name: []byte("general"), MaxThreads: 4, PostsPerThread: 8, Shards: 1}},
			{Meta: state.BoardMetadata{Name: []byte("wide"), MaxThreads: 4, PostsPerThread: 8, Shards: 200}},
		},
	}

	if err := Apply(rt, cfg); err == nil {
		t.Fatal("expected error for too many shards")
	}

	err := rt.View(func(st *state.State) error {
		count, err := st.BoardCount()
		if count != 0 {
			t.Errorf("expected no boards after failed genesis, got %d", count)
		}
		return err
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}

	cfg.Boards[1].Meta.Shards = 2

	if err := Apply(rt, cfg); err != nil {
		t.Fatalf("Apply after fix: %v", err)
	}
}

// TestApply_SmallPool verifies a pool smaller than a committee is rejected.
func TestApply_SmallPool(t *testing.T) {
	cfg := Config{
		Attesters:     pool(1),
		CommitteeSize: 2,
		Boards:        []Board{{Meta: state.BoardMetadata{Name: []byte("b"), MaxThreads: 1, PostsPerThread: 1, Shards: 1}}},
	}

	if err := Apply(newTestRuntime(t), cfg); err == nil {
		t.Error("expected error")
	}
}
