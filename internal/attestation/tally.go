package attestation

import "ShardBoard/internal/state"

// Decision is the availability verdict of a shard or a post.
type Decision uint8

const (
	Unavailable Decision = iota
	Available
)

// String returns the decision name.
func (d Decision) String() string {
	if d == Available {
		return "available"
	}
	return "unavailable"
}

// ShardTally counts one shard's votes.
// Nay includes Invalid reveals and Abstained slots.
type ShardTally struct {
	Shard     state.ShardIndex `json:"shard"`
	Aye       int              `json:"aye"`
	Nay       int              `json:"nay"`
	Invalid   int              `json:"invalid"`
	Abstained int              `json:"abstained"`
	Decision  Decision         `json:"-"`
}

// Tally counts a record. A slot that never revealed counts against
// availability, as does an invalid reveal.
func Tally(shard state.ShardIndex, rec *state.AttestationRecord) ShardTally {
	t := ShardTally{Shard: shard}

	for _, v := range rec.Votes {
		switch {
		case v.Stage != state.StageRevealed:
			t.Abstained++
			t.Nay++
		case v.Vote == state.VoteAye:
			t.Aye++
		case v.Vote == state.VoteNay:
			t.Nay++
		default:
			t.Invalid++
			t.Nay++
		}
	}

	// Strict majority: a tie is unavailable.
	if t.Aye > t.Nay {
		t.Decision = Available
	}

	return t
}

// Decide combines shard verdicts: every shard must find the content available.
func Decide(tallies []ShardTally) Decision {
	if len(tallies) == 0 {
		return Unavailable
	}

	for _, t := range tallies {
		if t.Decision != Available {
			return Unavailable
		}
	}

	return Available
}
