package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	blst "github.com/supranational/blst/bindings/go"
	"github.com/zeebo/blake3"

	"ShardBoard/internal/state"
)

const (
	// PublicKeySize is the size of a compressed BLS public key in bytes.
	PublicKeySize = 48

	// SignatureSize is the size of a compressed BLS signature in bytes.
	SignatureSize = 96

	// SeedSize is the size of the seed a key pair is derived from.
	SeedSize = 32
)

// blsDST is the domain separation tag for BLS signatures.
var blsDST = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_")

// KeyPair holds an account's BLS private/public key pair.
type KeyPair struct {
	seed   [SeedSize]byte  // seed is the key material persisted on disk
	secret *blst.SecretKey // secret is the private key
	public *blst.P1Affine  // public is the public key
}

// GenerateKey creates a new key pair from a random seed.
func GenerateKey() (*KeyPair, error) {
	var seed [SeedSize]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("generate random seed:\n%w", err)
	}

	return KeyFromSeed(seed[:])
}

// KeyFromSeed derives a key pair from a 32-byte seed.
func KeyFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}

	secret := blst.KeyGen(seed)
	if secret == nil {
		return nil, fmt.Errorf("failed to generate BLS key")
	}

	k := &KeyPair{
		secret: secret,
		public: new(blst.P1Affine).From(secret),
	}
	copy(k.seed[:], seed)

	return k, nil
}

// Sign creates a BLS signature over the message.
func (k *KeyPair) Sign(message []byte) []byte {
	sig := new(blst.P2Affine).Sign(k.secret, message, blsDST)
	return sig.Compress()
}

// PublicKey returns the compressed public key bytes.
func (k *KeyPair) PublicKey() []byte {
	return k.public.Compress()
}

// Account returns the account id controlled by this key.
func (k *KeyPair) Account() state.AccountID {
	return AccountOf(k.PublicKey())
}

// AccountOf derives an account id from a compressed public key.
func AccountOf(publicKey []byte) state.AccountID {
	return state.AccountID(blake3.Sum256(publicKey))
}

// Verify checks a BLS signature against a message and public key.
func Verify(signature, message, publicKey []byte) bool {
	if len(signature) != SignatureSize || len(publicKey) != PublicKeySize {
		return false
	}

	sig := new(blst.P2Affine).Uncompress(signature)
	if sig == nil {
		return false
	}

	pk := new(blst.P1Affine).Uncompress(publicKey)
	if pk == nil {
		return false
	}

	return sig.Verify(true, pk, true, message, blsDST)
}

// SaveKey writes the key's seed to path as hex, readable by the owner only.
func SaveKey(path string, k *KeyPair) error {
	data := hex.EncodeToString(k.seed[:]) + "\n"

	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		return fmt.Errorf("save key to %s:\n%w", path, err)
	}

	return nil
}

// LoadKey reads a key written by SaveKey.
func LoadKey(path string) (*KeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file:\n%w", err)
	}

	seed, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode key file %s:\n%w", path, err)
	}

	return KeyFromSeed(seed)
}

// LoadOrGenerateKey loads the key at path, creating and saving a new one
// if the file does not exist. An empty path yields an ephemeral key.
func LoadOrGenerateKey(path string) (*KeyPair, error) {
	if path == "" {
		return GenerateKey()
	}

	k, err := LoadKey(path)
	if err == nil {
		return k, nil
	}

	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	k, err = GenerateKey()
	if err != nil {
		return nil, err
	}

	if err := SaveKey(path, k); err != nil {
		return nil, err
	}

	return k, nil
}

// ParseAccount decodes a hex account id.
func ParseAccount(s string) (state.AccountID, error) {
	var a state.AccountID

	raw, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("decode account %q:\n%w", s, err)
	}

	if len(raw) != len(a) {
		return a, fmt.Errorf("account must be %d bytes, got %d", len(a), len(raw))
	}

	copy(a[:], raw)

	return a, nil
}
