package state

import "encoding/binary"

// Key prefixes for storage. Indexes are big-endian so prefix scans
// visit entries in index order.
var (
	prefixBoard       = []byte("b:") // b:<board> -> BoardMetadata
	prefixThread      = []byte("t:") // t:<board><thread> -> ThreadMetadata
	prefixPost        = []byte("p:") // p:<board><thread><post> -> PostData
	prefixCommittee   = []byte("c:") // c:<board><shard> -> []AccountID
	prefixBufferHead  = []byte("h:") // h:<board> -> BufferIndex
	prefixBuffered    = []byte("q:") // q:<board><buffer> -> BufferedPost
	prefixAttestation = []byte("a:") // a:<board><buffer><shard> -> AttestationRecord
	prefixAccount     = []byte("n:") // n:<account> -> sequence
	prefixMeta        = []byte("m:") // m:<name> -> value
)

// Prefixes returns every key prefix owned by this package.
func Prefixes() [][]byte {
	return [][]byte{
		prefixBoard, prefixThread, prefixPost, prefixCommittee, prefixBufferHead,
		prefixBuffered, prefixAttestation, prefixAccount, prefixMeta,
	}
}

var (
	metaBoardCount = []byte("m:boards")
	metaBlock      = []byte("m:block")
)

// keyBuilder assembles a key from a prefix and fixed-width indexes.
type keyBuilder []byte

func newKey(prefix []byte, size int) keyBuilder {
	k := make(keyBuilder, 0, len(prefix)+size)
	return append(k, prefix...)
}

func (k keyBuilder) u8(v uint8) keyBuilder {
	return append(k, v)
}

func (k keyBuilder) u16(v uint16) keyBuilder {
	return binary.BigEndian.AppendUint16(k, v)
}

func (k keyBuilder) raw(b []byte) keyBuilder {
	return append(k, b...)
}

func boardKey(b BoardIndex) []byte {
	return newKey(prefixBoard, 2).u16(uint16(b))
}

func threadKey(b BoardIndex, t ThreadIndex) []byte {
	return newKey(prefixThread, 4).u16(uint16(b)).u16(uint16(t))
}

func threadPrefix(b BoardIndex) []byte {
	return newKey(prefixThread, 2).u16(uint16(b))
}

func postKey(b BoardIndex, t ThreadIndex, p PostIndex) []byte {
	return newKey(prefixPost, 6).u16(uint16(b)).u16(uint16(t)).u16(uint16(p))
}

func postPrefix(b BoardIndex, t ThreadIndex) []byte {
	return newKey(prefixPost, 4).u16(uint16(b)).u16(uint16(t))
}

func committeeKey(b BoardIndex, s ShardIndex) []byte {
	return newKey(prefixCommittee, 3).u16(uint16(b)).u8(uint8(s))
}

func bufferHeadKey(b BoardIndex) []byte {
	return newKey(prefixBufferHead, 2).u16(uint16(b))
}

func bufferedKey(b BoardIndex, i BufferIndex) []byte {
	return newKey(prefixBuffered, 4).u16(uint16(b)).u16(uint16(i))
}

func bufferedPrefix(b BoardIndex) []byte {
	return newKey(prefixBuffered, 2).u16(uint16(b))
}

func attestationKey(b BoardIndex, i BufferIndex, s ShardIndex) []byte {
	return newKey(prefixAttestation, 5).u16(uint16(b)).u16(uint16(i)).u8(uint8(s))
}

func attestationPrefix(b BoardIndex, i BufferIndex) []byte {
	return newKey(prefixAttestation, 4).u16(uint16(b)).u16(uint16(i))
}

func accountKey(a AccountID) []byte {
	return newKey(prefixAccount, 32).raw(a[:])
}
