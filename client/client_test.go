package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"ShardBoard/internal/api"
	"ShardBoard/internal/auth"
	"ShardBoard/internal/chain"
	"ShardBoard/internal/runtime"
	"ShardBoard/internal/state"
	"ShardBoard/internal/storage"
)

// testKey derives a deterministic key.
func testKey(t *testing.T, n byte) *auth.KeyPair {
	t.Helper()

	seed := make([]byte, auth.SeedSize)
	seed[0] = n

	k, err := auth.KeyFromSeed(seed)
	if err != nil {
		t.Fatalf("KeyFromSeed: %v", err)
	}

	return k
}

// startNode runs a node with admin as its only admin and returns its URL.
func startNode(t *testing.T, admin *auth.KeyPair) string {
	t.Helper()

	db, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	rt := runtime.New(db, runtime.Config{
		Limits: state.DefaultLimits(),
		Period: 1000,
		Admins: []state.AccountID{admin.Account()},
	})

	c, err := chain.New(rt, 2*time.Millisecond, 0)
	if err != nil {
		t.Fatalf("chain.New: %v", err)
	}
	c.Start()

	srv := httptest.NewServer(api.New("", c, rt, nil).Handler())

	t.Cleanup(func() {
		srv.Close()
		c.Close()
		db.Close()
	})

	return srv.URL
}

// TestClient_AttestationFlow drives a post from submission to storage.
func TestClient_AttestationFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	adminKey := testKey(t, 1)
	url := startNode(t, adminKey)

	admin := New(url, adminKey)
	attesters := []*Client{New(url, testKey(t, 2)), New(url, testKey(t, 3)), New(url, testKey(t, 4))}
	author := New(url, testKey(t, 5))

	meta := state.BoardMetadata{Name: []byte("general"), MaxThreads: 4, PostsPerThread: 4, Shards: 1}
	if _, err := admin.CreateBoard(ctx, meta); err != nil {
		t.Fatalf("CreateBoard: %v", err)
	}

	members := make([]state.AccountID, len(attesters))
	for i, a := range attesters {
		members[i] = a.Account()
	}

	if _, err := admin.SetAttesters(ctx, 0, 0, members); err != nil {
		t.Fatalf("SetAttesters: %v", err)
	}

	idx, err := author.SubmitPost(ctx, 0, 2, state.Cid{0xC1})
	if err != nil {
		t.Fatalf("SubmitPost: %v", err)
	}

	votes := []state.Vote{state.VoteAye, state.VoteAye, state.VoteNay}
	ballots := make([]*Ballot, len(attesters))

	for i, a := range attesters {
		if ballots[i], err = NewBallot(votes[i]); err != nil {
			t.Fatalf("NewBallot: %v", err)
		}

		if _, err := a.CommitFirst(ctx, 0, idx, 0, ballots[i]); err != nil {
			t.Fatalf("CommitFirst(%d): %v", i, err)
		}
	}

	for i, a := range attesters {
		if _, err := a.CommitSecond(ctx, 0, idx, 0, ballots[i]); err != nil {
			t.Fatalf("CommitSecond(%d): %v", i, err)
		}
	}

	for i, a := range attesters {
		rc, err := a.Reveal(ctx, 0, idx, 0, ballots[i])
		if err != nil {
			t.Fatalf("Reveal(%d): %v", i, err)
		}

		if got := rc.Events[0].Vote; got != votes[i].String() {
			t.Errorf("attester %d revealed %s, want %s", i, got, votes[i])
		}
	}

	status, err := author.BufferStatus(ctx, 0, idx)
	if err != nil {
		t.Fatalf("BufferStatus: %v", err)
	}

	if !status.Complete || !status.Finalizable {
		t.Errorf("expected complete status, got %+v", status)
	}

	rc, err := author.Finalize(ctx, 0, idx)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if rc.Events[0].Name != runtime.EventPostStored {
		t.Errorf("expected %s, got %s", runtime.EventPostStored, rc.Events[0].Name)
	}

	posts, err := author.Posts(ctx, 0, 2)
	if err != nil {
		t.Fatalf("Posts: %v", err)
	}

	if len(posts) != 1 || posts[0].Author != author.Account().String() {
		t.Errorf("unexpected posts: %+v", posts)
	}

	post, err := author.Post(ctx, 0, 2, 0)
	if err != nil || post.Cid[:4] != "c100" {
		t.Errorf("unexpected post: %+v, %v", post, err)
	}

	thread, err := author.Thread(ctx, 0, 2)
	if err != nil || thread.PostCount != 1 {
		t.Errorf("unexpected thread: %+v, %v", thread, err)
	}

	buffer, err := author.Buffer(ctx, 0)
	if err != nil {
		t.Fatalf("Buffer: %v", err)
	}

	if len(buffer) != 0 {
		t.Errorf("expected empty buffer, got %d", len(buffer))
	}
}

// TestClient_Rejected verifies a failed dispatch returns ErrRejected with its receipt.
func TestClient_Rejected(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := startNode(t, testKey(t, 1))
	user := New(url, testKey(t, 9))

	rc, err := user.CreateBoard(ctx, state.BoardMetadata{Name: []byte("x"), MaxThreads: 1, PostsPerThread: 1, Shards: 1})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}

	if rc == nil || rc.ErrorKind != state.ErrUnauthorized.Error() {
		t.Errorf("unexpected receipt: %+v", rc)
	}

	// The failed operation still consumed the sequence.
	seq, err := user.Sequence(ctx, user.Account())
	if err != nil {
		t.Fatalf("Sequence: %v", err)
	}

	if seq != 1 {
		t.Errorf("expected sequence 1, got %d", seq)
	}
}

// TestClient_NotFound verifies API errors carry the status.
func TestClient_NotFound(t *testing.T) {
	url := startNode(t, testKey(t, 1))

	_, err := New(url, nil).Board(context.Background(), 7)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 404 {
		t.Errorf("expected 404 APIError, got %v", err)
	}
}

// TestNew_Address verifies bare addresses get a scheme.
func TestNew_Address(t *testing.T) {
	if c := New("127.0.0.1:8080", nil); c.baseURL != "http://127.0.0.1:8080" {
		t.Errorf("unexpected base URL %s", c.baseURL)
	}

	if c := New("https://node.example/", nil); c.baseURL != "https://node.example" {
		t.Errorf("unexpected base URL %s", c.baseURL)
	}
}
