package state

import "encoding/hex"

type (
	// BoardIndex identifies a board.
	BoardIndex uint16
	// ThreadIndex identifies a thread within a board.
	ThreadIndex uint16
	// PostIndex identifies a post within a thread.
	PostIndex uint16
	// ShardIndex identifies a shard of a board.
	ShardIndex uint8
	// BufferIndex identifies a slot in a board's post buffer.
	BufferIndex uint16
	// BlockNumber is the host ledger height.
	BlockNumber uint64
)

// Hash is a 32-byte digest.
type Hash [32]byte

// Cid is a content identifier: a fixed-size hash of externally stored content.
type Cid [32]byte

// AccountID identifies an account (blake3 of its BLS public key).
type AccountID [32]byte

// String returns the hex encoding of the account.
func (a AccountID) String() string {
	return hex.EncodeToString(a[:])
}

// Short returns the first 4 bytes in hex, for logs.
func (a AccountID) Short() string {
	return hex.EncodeToString(a[:4])
}

// Limits bounds board metadata and committee sizes.
type Limits struct {
	MaxNameLength   uint32     // MaxNameLength bounds board names
	MaxDescLength   uint32     // MaxDescLength bounds board descriptions
	MaxRulesLength  uint32     // MaxRulesLength bounds board rules
	AttesterSetSize uint32     // AttesterSetSize bounds each shard committee
	MaxShards       ShardIndex // MaxShards bounds the shards per board
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxNameLength:   64,
		MaxDescLength:   256,
		MaxRulesLength:  1024,
		AttesterSetSize: 16,
		MaxShards:       4,
	}
}

// BoardMetadata describes a board and its declared capacity.
type BoardMetadata struct {
	Name           []byte      // Name of the board
	Description    []byte      // Description is a short summary of the board's topic
	Rules          []byte      // Rules specific to the board
	MaxThreads     ThreadIndex // MaxThreads is the thread capacity
	PostsPerThread PostIndex   // PostsPerThread is the post capacity of each thread
	Shards         ShardIndex  // Shards is the number of shards attesting this board
	ThreadCount    ThreadIndex // ThreadCount is the number of live threads
}

// ThreadMetadata tracks a thread's activity.
type ThreadMetadata struct {
	BumpTime  BlockNumber // BumpTime is the block of creation or the last accepted post
	PostCount PostIndex   // PostCount is the number of posts, and the next PostIndex
}

// PostData is a finalized message.
type PostData struct {
	Cid       Cid         // Cid references the post content
	Author    AccountID   // Author submitted the post
	CreatedAt BlockNumber // CreatedAt is the block the post was submitted in
}

// BufferedPost is a post awaiting attestation.
type BufferedPost struct {
	Data   PostData    // Data is the post as it will be stored
	Board  BoardIndex  // Board is the target board
	Thread ThreadIndex // Thread is the target thread
}

// Vote is an attester's ballot on content availability.
type Vote uint8

const (
	// VoteAye claims the content is available.
	VoteAye Vote = iota + 1
	// VoteNay claims the content is not available.
	VoteNay
	// VoteInvalid marks a reveal that did not match its commitments.
	VoteInvalid
)

// String returns the vote name.
func (v Vote) String() string {
	switch v {
	case VoteAye:
		return "aye"
	case VoteNay:
		return "nay"
	case VoteInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Stage is the progress of one attester through the commit-reveal protocol.
type Stage uint8

const (
	StagePending Stage = iota
	StageFirstCommit
	StageSecondCommit
	StageRevealed
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StagePending:
		return "pending"
	case StageFirstCommit:
		return "first_commit"
	case StageSecondCommit:
		return "second_commit"
	case StageRevealed:
		return "revealed"
	default:
		return "unknown"
	}
}

// AttestationState is one attester's slot in an attestation record.
// Which fields are meaningful depends on Stage.
type AttestationState struct {
	Stage   Stage // Stage is the current protocol step
	H1      Hash  // H1 is the first-round commitment (FirstCommit, SecondCommit)
	H2      Hash  // H2 is the second-round commitment (SecondCommit)
	Context Hash  // Context is the digest of first-round commitments bound by H2 (SecondCommit)
	Vote    Vote  // Vote is the disclosed ballot (Revealed)
}

// Pending returns an empty slot.
func Pending() AttestationState {
	return AttestationState{Stage: StagePending}
}

// FirstCommit returns a slot holding the first commitment.
func FirstCommit(h1 Hash) AttestationState {
	return AttestationState{Stage: StageFirstCommit, H1: h1}
}

// SecondCommit returns a slot holding both commitments and the bound context.
func SecondCommit(h1, h2, context Hash) AttestationState {
	return AttestationState{Stage: StageSecondCommit, H1: h1, H2: h2, Context: context}
}

// Revealed returns a terminal slot.
func Revealed(vote Vote) AttestationState {
	return AttestationState{Stage: StageRevealed, Vote: vote}
}

// AttestationRecord is one shard's tally for a buffered post.
// Votes[i] belongs to Members[i]; Members is a snapshot of the committee
// taken when the record was created.
type AttestationRecord struct {
	CreatedAt BlockNumber        // CreatedAt is the block the post was admitted
	Members   []AccountID        // Members is the committee snapshot
	Votes     []AttestationState // Votes is positionally aligned with Members
}

// Position returns the slot index of an attester, or -1.
func (r *AttestationRecord) Position(who AccountID) int {
	for i, m := range r.Members {
		if m == who {
			return i
		}
	}

	return -1
}

// AllRevealed reports whether every slot reached the terminal stage.
func (r *AttestationRecord) AllRevealed() bool {
	for _, v := range r.Votes {
		if v.Stage != StageRevealed {
			return false
		}
	}

	return true
}
