package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	flatbuffers "github.com/google/flatbuffers/go"

	"ShardBoard/internal/types"
)

// testOperation encodes a minimal finalize operation.
func testOperation(seq uint64) []byte {
	builder := flatbuffers.NewBuilder(64)

	types.OperationStart(builder)
	types.OperationAddKind(builder, types.OpKindFinalize)
	types.OperationAddSequence(builder, seq)
	types.OperationAddBoard(builder, 1)
	types.OperationAddBuffer(builder, 2)
	builder.Finish(types.OperationEnd(builder))

	return builder.FinishedBytes()
}

// TestSignVerify tests basic sign and verify.
func TestSignVerify(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	message := []byte("hello, board!")
	signature := key.Sign(message)

	if len(signature) != SignatureSize {
		t.Errorf("signature size: got %d, want %d", len(signature), SignatureSize)
	}

	if !Verify(signature, message, key.PublicKey()) {
		t.Error("valid signature should verify")
	}

	if Verify(signature, []byte("wrong message"), key.PublicKey()) {
		t.Error("signature should not verify with wrong message")
	}
}

// TestSignVerifyWrongKey tests verification with wrong key.
func TestSignVerifyWrongKey(t *testing.T) {
	key1, _ := GenerateKey()
	key2, _ := GenerateKey()

	message := []byte("hello, board!")
	signature := key1.Sign(message)

	if Verify(signature, message, key2.PublicKey()) {
		t.Error("signature should not verify with wrong key")
	}
}

// TestDeterministicKey tests that a seed produces a deterministic key and account.
func TestDeterministicKey(t *testing.T) {
	seed := make([]byte, SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}

	key1, err := KeyFromSeed(seed)
	if err != nil {
		t.Fatalf("KeyFromSeed: %v", err)
	}

	key2, _ := KeyFromSeed(seed)

	if !bytes.Equal(key1.PublicKey(), key2.PublicKey()) {
		t.Error("same seed should produce same public key")
	}

	if key1.Account() != AccountOf(key2.PublicKey()) {
		t.Error("same seed should produce same account")
	}

	if _, err := KeyFromSeed(seed[:16]); err == nil {
		t.Error("short seed should be rejected")
	}
}

// TestKeyFile tests saving and loading a key, and generation of a missing file.
func TestKeyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.key")

	key, err := LoadOrGenerateKey(path)
	if err != nil {
		t.Fatalf("LoadOrGenerateKey: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("key file not written: %v", err)
	}

	loaded, err := LoadOrGenerateKey(path)
	if err != nil {
		t.Fatalf("LoadOrGenerateKey: %v", err)
	}

	if loaded.Account() != key.Account() {
		t.Error("reloaded key differs from generated key")
	}
}

// TestParseAccount tests hex account decoding.
func TestParseAccount(t *testing.T) {
	key, _ := GenerateKey()
	want := key.Account()

	got, err := ParseAccount(want.String())
	if err != nil {
		t.Fatalf("ParseAccount: %v", err)
	}

	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	if _, err := ParseAccount("abcd"); err == nil {
		t.Error("short account should be rejected")
	}
}

// TestEnvelope_RoundTrip tests sealing and opening a signed operation.
func TestEnvelope_RoundTrip(t *testing.T) {
	key, _ := GenerateKey()

	env, err := Open(Seal(key, testOperation(7)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if env.Signer != key.Account() {
		t.Error("signer mismatch")
	}

	op := env.Operation
	if op.Kind() != types.OpKindFinalize || op.Sequence() != 7 || op.Board() != 1 || op.Buffer() != 2 {
		t.Errorf("operation fields mismatch: kind=%v seq=%d board=%d buffer=%d", op.Kind(), op.Sequence(), op.Board(), op.Buffer())
	}
}

// TestEnvelope_Tampered tests that a modified operation fails verification.
func TestEnvelope_Tampered(t *testing.T) {
	key, _ := GenerateKey()
	other, _ := GenerateKey()

	// Re-wrap the first operation's signature around a different operation.
	sealed := Seal(key, testOperation(1))
	signed := types.GetRootAsSignedOperation(sealed, 0)

	builder := flatbuffers.NewBuilder(256)
	opVec := builder.CreateByteVector(testOperation(2))
	pkVec := builder.CreateByteVector(signed.PublicKeyBytes())
	sigVec := builder.CreateByteVector(signed.SignatureBytes())
	types.SignedOperationStart(builder)
	types.SignedOperationAddOperation(builder, opVec)
	types.SignedOperationAddPublicKey(builder, pkVec)
	types.SignedOperationAddSignature(builder, sigVec)
	builder.Finish(types.SignedOperationEnd(builder))

	if _, err := Open(builder.FinishedBytes()); !errors.Is(err, ErrBadSignature) {
		t.Errorf("expected ErrBadSignature, got %v", err)
	}

	// A valid signature by a different key than the one carried.
	builder = flatbuffers.NewBuilder(256)
	opVec = builder.CreateByteVector(testOperation(1))
	pkVec = builder.CreateByteVector(other.PublicKey())
	sigVec = builder.CreateByteVector(signed.SignatureBytes())
	types.SignedOperationStart(builder)
	types.SignedOperationAddOperation(builder, opVec)
	types.SignedOperationAddPublicKey(builder, pkVec)
	types.SignedOperationAddSignature(builder, sigVec)
	builder.Finish(types.SignedOperationEnd(builder))

	if _, err := Open(builder.FinishedBytes()); !errors.Is(err, ErrBadSignature) {
		t.Errorf("expected ErrBadSignature, got %v", err)
	}
}

// TestEnvelope_Malformed tests that garbage input is rejected without panicking.
func TestEnvelope_Malformed(t *testing.T) {
	inputs := [][]byte{
		nil,
		{1, 2, 3},
		bytes.Repeat([]byte{0xFF}, 64),
	}

	for i, in := range inputs {
		if _, err := Open(in); err == nil {
			t.Errorf("input %d: expected error", i)
		}
	}
}
