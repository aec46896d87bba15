// Package client talks to a ShardBoard node over its HTTP API.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ShardBoard/internal/api"
	"ShardBoard/internal/auth"
	"ShardBoard/internal/runtime"
	"ShardBoard/internal/state"
)

// ErrRejected is returned when an included operation failed to dispatch.
var ErrRejected = errors.New("operation rejected")

// Client connects to a node and signs operations with one key.
type Client struct {
	baseURL string        // baseURL is the node's HTTP root (e.g. "http://127.0.0.1:8080")
	http    *http.Client  // http performs requests
	key     *auth.KeyPair // key signs operations (nil for read-only use)
}

// New creates a client for the node at nodeAddr. nodeAddr may be a bare
// host:port or a full URL. key may be nil for read-only use.
func New(nodeAddr string, key *auth.KeyPair) *Client {
	base := strings.TrimRight(nodeAddr, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}

	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: 60 * time.Second},
		key:     key,
	}
}

// Account returns the signing account.
func (c *Client) Account() state.AccountID {
	return c.key.Account()
}

// Send signs call with the account's next sequence number and waits for a
// block to include it. A dispatch failure is returned as ErrRejected,
// together with the receipt describing it.
func (c *Client) Send(ctx context.Context, call runtime.Call) (*runtime.Receipt, error) {
	if c.key == nil {
		return nil, fmt.Errorf("client has no signing key")
	}

	seq, err := c.Sequence(ctx, c.key.Account())
	if err != nil {
		return nil, fmt.Errorf("get sequence:\n%w", err)
	}

	body := auth.Seal(c.key, runtime.Encode(call, seq))

	var rc runtime.Receipt

	status, err := c.postOp(ctx, body, &rc)
	if err != nil {
		return nil, fmt.Errorf("send %s:\n%w", call.Kind(), err)
	}

	if rc.Kind == "" {
		return nil, fmt.Errorf("send %s: status %d", call.Kind(), status)
	}

	if status != http.StatusOK {
		return &rc, fmt.Errorf("%s: %s: %w", call.Kind(), rc.Error, ErrRejected)
	}

	return &rc, nil
}

// Sequence returns an account's next sequence number.
func (c *Client) Sequence(ctx context.Context, account state.AccountID) (uint64, error) {
	var view api.AccountView
	if err := c.httpGet(ctx, "/accounts/"+account.String(), &view); err != nil {
		return 0, err
	}

	return view.Sequence, nil
}

// Status returns the node's block height and queue depth.
func (c *Client) Status(ctx context.Context) (*api.NodeStatus, error) {
	var s api.NodeStatus
	if err := c.httpGet(ctx, "/status", &s); err != nil {
		return nil, err
	}

	return &s, nil
}

// Boards lists every board.
func (c *Client) Boards(ctx context.Context) ([]api.BoardView, error) {
	var boards []api.BoardView
	if err := c.httpGet(ctx, "/boards", &boards); err != nil {
		return nil, err
	}

	return boards, nil
}

// Board returns one board.
func (c *Client) Board(ctx context.Context, b state.BoardIndex) (*api.BoardView, error) {
	var board api.BoardView
	if err := c.httpGet(ctx, fmt.Sprintf("/boards/%d", b), &board); err != nil {
		return nil, err
	}

	return &board, nil
}

// Threads lists a board's threads.
func (c *Client) Threads(ctx context.Context, b state.BoardIndex) ([]api.ThreadView, error) {
	var threads []api.ThreadView
	if err := c.httpGet(ctx, fmt.Sprintf("/boards/%d/threads", b), &threads); err != nil {
		return nil, err
	}

	return threads, nil
}

// Posts lists a thread's finalized posts.
func (c *Client) Posts(ctx context.Context, b state.BoardIndex, t state.ThreadIndex) ([]api.PostView, error) {
	var posts []api.PostView
	if err := c.httpGet(ctx, fmt.Sprintf("/boards/%d/threads/%d/posts", b, t), &posts); err != nil {
		return nil, err
	}

	return posts, nil
}

// Thread returns one thread.
func (c *Client) Thread(ctx context.Context, b state.BoardIndex, t state.ThreadIndex) (*api.ThreadView, error) {
	var thread api.ThreadView
	if err := c.httpGet(ctx, fmt.Sprintf("/boards/%d/threads/%d", b, t), &thread); err != nil {
		return nil, err
	}

	return &thread, nil
}

// Post returns one finalized post.
func (c *Client) Post(ctx context.Context, b state.BoardIndex, t state.ThreadIndex, p state.PostIndex) (*api.PostView, error) {
	var post api.PostView
	if err := c.httpGet(ctx, fmt.Sprintf("/boards/%d/threads/%d/posts/%d", b, t, p), &post); err != nil {
		return nil, err
	}

	return &post, nil
}

// Attesters returns a shard's committee as hex account ids.
func (c *Client) Attesters(ctx context.Context, b state.BoardIndex, shard state.ShardIndex) ([]string, error) {
	var members []string
	if err := c.httpGet(ctx, fmt.Sprintf("/boards/%d/shards/%d/attesters", b, shard), &members); err != nil {
		return nil, err
	}

	return members, nil
}

// Buffer lists a board's posts awaiting attestation.
func (c *Client) Buffer(ctx context.Context, b state.BoardIndex) ([]api.PostView, error) {
	var posts []api.PostView
	if err := c.httpGet(ctx, fmt.Sprintf("/boards/%d/buffer", b), &posts); err != nil {
		return nil, err
	}

	return posts, nil
}

// BufferStatus returns a buffered post's voting progress.
func (c *Client) BufferStatus(ctx context.Context, b state.BoardIndex, i state.BufferIndex) (*api.StatusView, error) {
	var s api.StatusView
	if err := c.httpGet(ctx, fmt.Sprintf("/boards/%d/buffer/%d", b, i), &s); err != nil {
		return nil, err
	}

	return &s, nil
}

// CreateBoard registers a board. Admin only.
func (c *Client) CreateBoard(ctx context.Context, meta state.BoardMetadata) (*runtime.Receipt, error) {
	return c.Send(ctx, runtime.CreateBoard{Meta: meta})
}

// SetAttesters replaces a shard committee. Admin only.
func (c *Client) SetAttesters(ctx context.Context, b state.BoardIndex, shard state.ShardIndex, members []state.AccountID) (*runtime.Receipt, error) {
	return c.Send(ctx, runtime.SetAttesters{Board: b, Shard: shard, Members: members})
}

// CreateThread opens a thread.
func (c *Client) CreateThread(ctx context.Context, b state.BoardIndex, t state.ThreadIndex) (*runtime.Receipt, error) {
	return c.Send(ctx, runtime.CreateThread{Board: b, Thread: t})
}

// SubmitPost buffers a post and returns its buffer index.
func (c *Client) SubmitPost(ctx context.Context, b state.BoardIndex, t state.ThreadIndex, cid state.Cid) (state.BufferIndex, error) {
	rc, err := c.Send(ctx, runtime.SubmitPost{Board: b, Thread: t, Cid: cid})
	if err != nil {
		return 0, err
	}

	for _, e := range rc.Events {
		if e.Name == runtime.EventPostBuffered && e.Buffer != nil {
			return *e.Buffer, nil
		}
	}

	return 0, fmt.Errorf("receipt has no %s event", runtime.EventPostBuffered)
}

// Finalize resolves a buffered post.
func (c *Client) Finalize(ctx context.Context, b state.BoardIndex, i state.BufferIndex) (*runtime.Receipt, error) {
	return c.Send(ctx, runtime.Finalize{Board: b, Buffer: i})
}
