package api

import (
	"encoding/hex"

	"ShardBoard/internal/attestation"
	"ShardBoard/internal/state"
)

// BoardView is the JSON form of a board.
type BoardView struct {
	Index          state.BoardIndex  `json:"index"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Rules          string            `json:"rules"`
	MaxThreads     state.ThreadIndex `json:"maxThreads"`
	PostsPerThread state.PostIndex   `json:"postsPerThread"`
	Shards         state.ShardIndex  `json:"shards"`
	ThreadCount    state.ThreadIndex `json:"threadCount"`
}

func newBoardView(idx state.BoardIndex, m *state.BoardMetadata) BoardView {
	return BoardView{
		Index:          idx,
		Name:           string(m.Name),
		Description:    string(m.Description),
		Rules:          string(m.Rules),
		MaxThreads:     m.MaxThreads,
		PostsPerThread: m.PostsPerThread,
		Shards:         m.Shards,
		ThreadCount:    m.ThreadCount,
	}
}

// ThreadView is the JSON form of a thread.
type ThreadView struct {
	Index     state.ThreadIndex `json:"index"`
	BumpTime  state.BlockNumber `json:"bumpTime"`
	PostCount state.PostIndex   `json:"postCount"`
}

// PostView is the JSON form of a finalized or buffered post.
type PostView struct {
	Index     uint16            `json:"index"`
	Thread    state.ThreadIndex `json:"thread"`
	Cid       string            `json:"cid"`
	Author    string            `json:"author"`
	CreatedAt state.BlockNumber `json:"createdAt"`
}

func newPostView(idx uint16, thread state.ThreadIndex, p *state.PostData) PostView {
	return PostView{
		Index:     idx,
		Thread:    thread,
		Cid:       hex.EncodeToString(p.Cid[:]),
		Author:    p.Author.String(),
		CreatedAt: p.CreatedAt,
	}
}

// SlotView is one attester's progress on a shard.
type SlotView struct {
	Account string `json:"account"`
	Stage   string `json:"stage"`
	Vote    string `json:"vote,omitempty"`
}

// ShardView is the JSON form of a shard's attestation record.
type ShardView struct {
	attestation.ShardTally
	Stages  map[string]int `json:"stages"`
	Context string         `json:"context"`
	Slots   []SlotView     `json:"slots"`
}

// StatusView is the JSON form of a buffered post's voting progress.
type StatusView struct {
	Post        PostView          `json:"post"`
	CreatedAt   state.BlockNumber `json:"createdAt"`
	Deadline    state.BlockNumber `json:"deadline"`
	Complete    bool              `json:"complete"`
	Finalizable bool              `json:"finalizable"`
	Shards      []ShardView       `json:"shards"`
}

func newStatusView(idx state.BufferIndex, s *attestation.Status, now state.BlockNumber) StatusView {
	v := StatusView{
		Post:        newPostView(uint16(idx), s.Post.Thread, &s.Post.Data),
		CreatedAt:   s.CreatedAt,
		Deadline:    s.Deadline,
		Complete:    s.Complete,
		Finalizable: s.Finalizable(now),
		Shards:      make([]ShardView, 0, len(s.Shards)),
	}

	for _, sh := range s.Shards {
		slots := make([]SlotView, len(sh.Members))
		for i, m := range sh.Members {
			slots[i] = SlotView{Account: m.String(), Stage: sh.Votes[i].Stage.String()}
			if sh.Votes[i].Stage == state.StageRevealed {
				slots[i].Vote = sh.Votes[i].Vote.String()
			}
		}

		v.Shards = append(v.Shards, ShardView{
			ShardTally: sh.Tally,
			Stages:     sh.Stages,
			Context:    hex.EncodeToString(sh.Context[:]),
			Slots:      slots,
		})
	}

	return v
}

// AccountView is the JSON form of an account.
type AccountView struct {
	Account  string `json:"account"`
	Sequence uint64 `json:"sequence"`
}

// NodeStatus is the JSON form of GET /status.
type NodeStatus struct {
	Block      state.BlockNumber `json:"block"`
	QueueDepth int               `json:"queueDepth"`
}

// accountsView renders account ids as hex.
func accountsView(accounts []state.AccountID) []string {
	out := make([]string, len(accounts))
	for i, a := range accounts {
		out[i] = a.String()
	}
	return out
}
