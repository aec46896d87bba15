package attestation

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"

	"ShardBoard/internal/state"
)

// Round identifies a commitment round.
type Round uint8

const (
	// RoundFirst commits to the vote alone.
	RoundFirst Round = 1
	// RoundSecond commits to the vote and the first-round commitments seen so far.
	RoundSecond Round = 2
)

// Nonce is the private salt an attester mixes into a commitment.
type Nonce [32]byte

// String returns the hex encoding of the nonce.
func (n Nonce) String() string {
	return hex.EncodeToString(n[:])
}

// PositionedHash is a commitment tagged with its committee position.
type PositionedHash struct {
	Position uint16     // Position is the slot index in the committee snapshot
	Hash     state.Hash // Hash is the slot's first-round commitment
}

// Binder is the commitment scheme. The engine only depends on this
// interface, so the hash construction can be replaced.
type Binder interface {
	// Bind computes the commitment of a round. prior is the zero hash in
	// the first round and the Digest of visible first-round commitments in
	// the second.
	Bind(round Round, prior state.Hash, vote state.Vote, nonce Nonce) state.Hash

	// Digest folds first-round commitments into the context bound by round two.
	Digest(commitments []PositionedHash) state.Hash
}

// Domain separation tags.
var (
	bindDomain   = []byte("shardboard-commit-v1")
	digestDomain = []byte("shardboard-context-v1")
)

// Blake3Binder implements Binder with BLAKE3.
//
//	Bind   = BLAKE3(tag || round || prior || vote || nonce)
//	Digest = BLAKE3(tag || u16 count || (u16 position || hash)*)
type Blake3Binder struct{}

// Bind computes a round commitment.
func (Blake3Binder) Bind(round Round, prior state.Hash, vote state.Vote, nonce Nonce) state.Hash {
	h := blake3.New()
	h.Write(bindDomain)
	h.Write([]byte{byte(round)})
	h.Write(prior[:])
	h.Write([]byte{byte(vote)})
	h.Write(nonce[:])

	var out state.Hash
	h.Sum(out[:0])

	return out
}

// Digest computes the second-round context.
func (Blake3Binder) Digest(commitments []PositionedHash) state.Hash {
	h := blake3.New()
	h.Write(digestDomain)

	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(len(commitments)))
	h.Write(buf[:])

	for _, c := range commitments {
		binary.LittleEndian.PutUint16(buf[:], c.Position)
		h.Write(buf[:])
		h.Write(c.Hash[:])
	}

	var out state.Hash
	h.Sum(out[:0])

	return out
}

// VisibleCommitments returns the first-round commitments recorded in rec,
// in committee order. Slots that already revealed no longer carry one.
func VisibleCommitments(rec *state.AttestationRecord) []PositionedHash {
	var out []PositionedHash

	for i, v := range rec.Votes {
		if v.Stage == state.StageFirstCommit || v.Stage == state.StageSecondCommit {
			out = append(out, PositionedHash{Position: uint16(i), Hash: v.H1})
		}
	}

	return out
}
