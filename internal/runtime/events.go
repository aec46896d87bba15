package runtime

import (
	"ShardBoard/internal/attestation"
	"ShardBoard/internal/state"
)

// Event names.
const (
	EventBoardCreated  = "BoardCreated"
	EventThreadCreated = "ThreadCreated"
	EventAttestersSet  = "AttestersSet"
	EventPostBuffered  = "PostBuffered"
	EventVoteCommitted = "VoteCommitted"
	EventVoteRevealed  = "VoteRevealed"
	EventPostStored    = "PostStored"
	EventPostRejected  = "PostRejected"
)

// Event records an observable effect of a committed operation.
// Only the fields relevant to Name are set.
type Event struct {
	Name    string                   `json:"name"`
	Board   state.BoardIndex         `json:"board"`
	Thread  *state.ThreadIndex       `json:"thread,omitempty"`
	Post    *state.PostIndex         `json:"post,omitempty"`
	Buffer  *state.BufferIndex       `json:"buffer,omitempty"`
	Shard   *state.ShardIndex        `json:"shard,omitempty"`
	Round   attestation.Round        `json:"round,omitempty"`
	Account string                   `json:"account,omitempty"`
	Vote    string                   `json:"vote,omitempty"`
	Reason  string                   `json:"reason,omitempty"`
	Tallies []attestation.ShardTally `json:"tallies,omitempty"`
}

// ptr returns a pointer to v.
func ptr[T any](v T) *T {
	return &v
}

// eventLog buffers events until the operation's batch commits.
type eventLog struct {
	events []Event
}

// emit appends an event.
func (l *eventLog) emit(e Event) {
	l.events = append(l.events, e)
}

// outcomeEvent describes a finalized attestation.
func outcomeEvent(out *attestation.Outcome) Event {
	e := Event{
		Board:   out.Board,
		Thread:  ptr(out.Post.Thread),
		Buffer:  ptr(out.Buffer),
		Account: out.Post.Data.Author.String(),
		Tallies: out.Tallies,
	}

	if out.Stored {
		e.Name = EventPostStored
		e.Post = ptr(out.Index)
	} else {
		e.Name = EventPostRejected
		e.Reason = out.Reason
	}

	return e
}
