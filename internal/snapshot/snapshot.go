// Package snapshot exports and imports the runtime state as a single
// compressed, checksummed file.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"ShardBoard/internal/state"
	"ShardBoard/internal/storage"
	"ShardBoard/internal/types"
)

// snapshotVersion is the current snapshot format version.
const snapshotVersion = 1

var (
	// ErrChecksum is returned when a snapshot's content does not match its checksum.
	ErrChecksum = errors.New("snapshot checksum mismatch")

	// ErrNotEmpty is returned when importing into a store that already holds state.
	ErrNotEmpty = errors.New("store is not empty")
)

// entry is one key-value pair of the exported state.
type entry struct {
	key   []byte
	value []byte
}

// Info summarizes a snapshot.
type Info struct {
	Version uint32            // Version is the format version
	Block   state.BlockNumber // Block is the height at export
	Entries int               // Entries is the number of exported keys
}

// Export serializes every state key in db and compresses the result.
func Export(db *storage.Storage) ([]byte, *Info, error) {
	entries, err := collect(db)
	if err != nil {
		return nil, nil, fmt.Errorf("collect entries:\n%w", err)
	}

	block, err := state.New(db, state.DefaultLimits()).BlockNumber()
	if err != nil {
		return nil, nil, fmt.Errorf("read block number:\n%w", err)
	}

	data, err := compress(build(uint64(block), entries))
	if err != nil {
		return nil, nil, err
	}

	return data, &Info{Version: snapshotVersion, Block: block, Entries: len(entries)}, nil
}

// Import verifies a compressed snapshot and writes it into db, which must
// hold no state yet. Either every entry is written or none.
func Import(db *storage.Storage, data []byte) (*Info, error) {
	raw, err := decompress(data)
	if err != nil {
		return nil, err
	}

	snap, entries, err := parse(raw)
	if err != nil {
		return nil, err
	}

	if err := requireEmpty(db); err != nil {
		return nil, err
	}

	pairs := make([]storage.KeyValue, len(entries))
	for i, e := range entries {
		pairs[i] = storage.KeyValue{Key: e.key, Value: e.value}
	}

	if err := db.SetBatch(pairs); err != nil {
		return nil, fmt.Errorf("write entries:\n%w", err)
	}

	return &Info{
		Version: snap.Version(),
		Block:   state.BlockNumber(snap.Block()),
		Entries: len(entries),
	}, nil
}

// collect reads every state key in key order.
func collect(db *storage.Storage) ([]entry, error) {
	var entries []entry

	err := db.Iterate(func(key, value []byte) error {
		if !isStateKey(key) {
			return nil
		}

		entries = append(entries, entry{
			key:   bytes.Clone(key),
			value: bytes.Clone(value),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// requireEmpty fails if db holds any state key.
func requireEmpty(db *storage.Storage) error {
	return db.Iterate(func(key, _ []byte) error {
		if isStateKey(key) {
			return ErrNotEmpty
		}
		return nil
	})
}

// isStateKey reports whether key lives under a state prefix.
func isStateKey(key []byte) bool {
	for _, prefix := range state.Prefixes() {
		if bytes.HasPrefix(key, prefix) {
			return true
		}
	}

	return false
}

// build creates the FlatBuffers snapshot with its checksum.
func build(block uint64, entries []entry) []byte {
	checksum := computeChecksum(snapshotVersion, block, entries)

	builder := flatbuffers.NewBuilder(1024)

	offsets := make([]flatbuffers.UOffsetT, len(entries))
	for i, e := range entries {
		keyOffset := builder.CreateByteVector(e.key)
		valueOffset := builder.CreateByteVector(e.value)

		types.SnapshotEntryStart(builder)
		types.SnapshotEntryAddKey(builder, keyOffset)
		types.SnapshotEntryAddValue(builder, valueOffset)
		offsets[i] = types.SnapshotEntryEnd(builder)
	}

	types.SnapshotStartEntriesVector(builder, len(offsets))
	for i := len(offsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(offsets[i])
	}
	entriesVector := builder.EndVector(len(offsets))

	checksumOffset := builder.CreateByteVector(checksum[:])

	types.SnapshotStart(builder)
	types.SnapshotAddVersion(builder, snapshotVersion)
	types.SnapshotAddBlock(builder, block)
	types.SnapshotAddEntries(builder, entriesVector)
	types.SnapshotAddChecksum(builder, checksumOffset)
	builder.Finish(types.SnapshotEnd(builder))

	return builder.FinishedBytes()
}

// parse decodes a snapshot and verifies its version and checksum.
func parse(raw []byte) (snap *types.Snapshot, entries []entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed snapshot: %v", r)
		}
	}()

	snap = types.GetRootAsSnapshot(raw, 0)

	if snap.Version() != snapshotVersion {
		return nil, nil, fmt.Errorf("unsupported snapshot version %d", snap.Version())
	}

	stored := snap.ChecksumBytes()
	if len(stored) != 32 {
		return nil, nil, fmt.Errorf("invalid checksum length: %d", len(stored))
	}

	entries = make([]entry, snap.EntriesLength())
	var e types.SnapshotEntry

	for i := range entries {
		if !snap.Entries(&e, i) {
			return nil, nil, fmt.Errorf("read entry %d", i)
		}

		entries[i] = entry{key: bytes.Clone(e.KeyBytes()), value: bytes.Clone(e.ValueBytes())}
	}

	sortEntries(entries)

	computed := computeChecksum(snap.Version(), snap.Block(), entries)
	if !bytes.Equal(computed[:], stored) {
		return nil, nil, ErrChecksum
	}

	return snap, entries, nil
}

// sortEntries sorts entries by key for a deterministic checksum.
func sortEntries(entries []entry) {
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].key, entries[j].key) < 0
	})
}

// computeChecksum hashes the canonical snapshot content.
// Format: version (4) + block (8) + per entry: key len (4) + key + value len (4) + value.
func computeChecksum(version uint32, block uint64, entries []entry) [32]byte {
	hasher := blake3.New()

	var buf [8]byte
	binary.BigEndian.PutUint32(buf[:4], version)
	hasher.Write(buf[:4])

	binary.BigEndian.PutUint64(buf[:], block)
	hasher.Write(buf[:])

	for _, e := range entries {
		binary.BigEndian.PutUint32(buf[:4], uint32(len(e.key)))
		hasher.Write(buf[:4])
		hasher.Write(e.key)

		binary.BigEndian.PutUint32(buf[:4], uint32(len(e.value)))
		hasher.Write(buf[:4])
		hasher.Write(e.value)
	}

	var checksum [32]byte
	hasher.Sum(checksum[:0])

	return checksum
}

// compress compresses snapshot data using zstd.
func compress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create encoder:\n%w", err)
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, nil), nil
}

// decompress decompresses zstd-compressed snapshot data.
func decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create decoder:\n%w", err)
	}
	defer decoder.Close()

	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot:\n%w", err)
	}

	return out, nil
}
