package auth

import (
	"errors"
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/zeebo/blake3"

	"ShardBoard/internal/state"
	"ShardBoard/internal/types"
)

// ErrBadSignature is returned when an envelope's signature does not verify.
var ErrBadSignature = errors.New("invalid signature")

// opDomain separates operation signatures from any other use of the key.
var opDomain = []byte("shardboard-op-v1")

// Envelope is a verified SignedOperation.
type Envelope struct {
	Signer    state.AccountID  // Signer is the account derived from PublicKey
	PublicKey []byte           // PublicKey is the signer's compressed BLS key
	Operation *types.Operation // Operation is the signed operation
	Digest    state.Hash       // Digest is the signed message
}

// OperationDigest returns the message signed for an encoded Operation.
func OperationDigest(op []byte) state.Hash {
	h := blake3.New()
	h.Write(opDomain)
	h.Write(op)

	var out state.Hash
	h.Sum(out[:0])

	return out
}

// Seal signs an encoded Operation and wraps it in a SignedOperation.
func Seal(k *KeyPair, op []byte) []byte {
	digest := OperationDigest(op)
	sig := k.Sign(digest[:])

	builder := flatbuffers.NewBuilder(len(op) + PublicKeySize + SignatureSize + 64)

	opVec := builder.CreateByteVector(op)
	pkVec := builder.CreateByteVector(k.PublicKey())
	sigVec := builder.CreateByteVector(sig)

	types.SignedOperationStart(builder)
	types.SignedOperationAddOperation(builder, opVec)
	types.SignedOperationAddPublicKey(builder, pkVec)
	types.SignedOperationAddSignature(builder, sigVec)
	builder.Finish(types.SignedOperationEnd(builder))

	return builder.FinishedBytes()
}

// Open parses a SignedOperation and verifies its signature.
func Open(data []byte) (env *Envelope, retErr error) {
	// FlatBuffers panics on malformed data, recover gracefully
	defer func() {
		if r := recover(); r != nil {
			env = nil
			retErr = fmt.Errorf("malformed signed operation")
		}
	}()

	if len(data) < 8 {
		return nil, fmt.Errorf("signed operation too short")
	}

	signed := types.GetRootAsSignedOperation(data, 0)

	op := signed.OperationBytes()
	pk := signed.PublicKeyBytes()
	sig := signed.SignatureBytes()

	if len(op) < 8 {
		return nil, fmt.Errorf("missing operation")
	}

	if len(pk) != PublicKeySize {
		return nil, fmt.Errorf("invalid public key size: got %d, want %d", len(pk), PublicKeySize)
	}

	if len(sig) != SignatureSize {
		return nil, fmt.Errorf("invalid signature size: got %d, want %d", len(sig), SignatureSize)
	}

	digest := OperationDigest(op)
	if !Verify(sig, digest[:], pk) {
		return nil, ErrBadSignature
	}

	return &Envelope{
		Signer:    AccountOf(pk),
		PublicKey: pk,
		Operation: types.GetRootAsOperation(op, 0),
		Digest:    digest,
	}, nil
}
