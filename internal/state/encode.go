package state

import (
	"fmt"

	"ShardBoard/internal/codec"
)

// encodeBoard serializes board metadata.
// Format: name, description, rules (u32 len + bytes) + u16 max_threads +
// u16 posts_per_thread + u8 shards + u16 thread_count
func encodeBoard(m *BoardMetadata) []byte {
	w := codec.NewWriter(12 + len(m.Name) + len(m.Description) + len(m.Rules) + 7)
	w.Bytes32(m.Name)
	w.Bytes32(m.Description)
	w.Bytes32(m.Rules)
	w.U16(uint16(m.MaxThreads))
	w.U16(uint16(m.PostsPerThread))
	w.U8(uint8(m.Shards))
	w.U16(uint16(m.ThreadCount))

	return w.Bytes()
}

func decodeBoard(data []byte) (*BoardMetadata, error) {
	r := codec.NewReader(data)
	m := &BoardMetadata{
		Name:           r.Bytes32(),
		Description:    r.Bytes32(),
		Rules:          r.Bytes32(),
		MaxThreads:     ThreadIndex(r.U16()),
		PostsPerThread: PostIndex(r.U16()),
		Shards:         ShardIndex(r.U8()),
		ThreadCount:    ThreadIndex(r.U16()),
	}

	if err := r.Done(); err != nil {
		return nil, fmt.Errorf("decode board:\n%w", err)
	}

	return m, nil
}

// encodeThread serializes thread metadata.
// Format: u64 bump_time + u16 post_count
func encodeThread(m *ThreadMetadata) []byte {
	w := codec.NewWriter(10)
	w.U64(uint64(m.BumpTime))
	w.U16(uint16(m.PostCount))

	return w.Bytes()
}

func decodeThread(data []byte) (*ThreadMetadata, error) {
	r := codec.NewReader(data)
	m := &ThreadMetadata{
		BumpTime:  BlockNumber(r.U64()),
		PostCount: PostIndex(r.U16()),
	}

	if err := r.Done(); err != nil {
		return nil, fmt.Errorf("decode thread:\n%w", err)
	}

	return m, nil
}

// writePost appends a post.
// Format: [u8; 32] cid + [u8; 32] author + u64 created_at
func writePost(w *codec.Writer, p *PostData) {
	w.Fixed(p.Cid[:])
	w.Fixed(p.Author[:])
	w.U64(uint64(p.CreatedAt))
}

func readPost(r *codec.Reader) PostData {
	var p PostData
	r.Fixed(p.Cid[:])
	r.Fixed(p.Author[:])
	p.CreatedAt = BlockNumber(r.U64())

	return p
}

func encodePost(p *PostData) []byte {
	w := codec.NewWriter(72)
	writePost(w, p)

	return w.Bytes()
}

func decodePost(data []byte) (*PostData, error) {
	r := codec.NewReader(data)
	p := readPost(r)

	if err := r.Done(); err != nil {
		return nil, fmt.Errorf("decode post:\n%w", err)
	}

	return &p, nil
}

// encodeBuffered serializes a buffered post.
// Format: post + u16 board + u16 thread
func encodeBuffered(b *BufferedPost) []byte {
	w := codec.NewWriter(76)
	writePost(w, &b.Data)
	w.U16(uint16(b.Board))
	w.U16(uint16(b.Thread))

	return w.Bytes()
}

func decodeBuffered(data []byte) (*BufferedPost, error) {
	r := codec.NewReader(data)
	b := &BufferedPost{Data: readPost(r)}
	b.Board = BoardIndex(r.U16())
	b.Thread = ThreadIndex(r.U16())

	if err := r.Done(); err != nil {
		return nil, fmt.Errorf("decode buffered post:\n%w", err)
	}

	return b, nil
}

// encodeMembers serializes a committee.
// Format: u16 count + count * [u8; 32]
func encodeMembers(w *codec.Writer, members []AccountID) {
	w.U16(uint16(len(members)))
	for _, m := range members {
		w.Fixed(m[:])
	}
}

func decodeMembers(r *codec.Reader) []AccountID {
	n := int(r.U16())
	if r.Err() != nil {
		return nil
	}

	members := make([]AccountID, 0, n)
	for i := 0; i < n && r.Err() == nil; i++ {
		var m AccountID
		r.Fixed(m[:])
		members = append(members, m)
	}

	return members
}

func encodeCommittee(members []AccountID) []byte {
	w := codec.NewWriter(2 + 32*len(members))
	encodeMembers(w, members)

	return w.Bytes()
}

func decodeCommittee(data []byte) ([]AccountID, error) {
	r := codec.NewReader(data)
	members := decodeMembers(r)

	if err := r.Done(); err != nil {
		return nil, fmt.Errorf("decode committee:\n%w", err)
	}

	return members, nil
}

// encodeRecord serializes an attestation record.
// Format: u64 created_at + members + per vote: u8 stage + stage payload
func encodeRecord(rec *AttestationRecord) []byte {
	w := codec.NewWriter(10 + 32*len(rec.Members) + 97*len(rec.Votes))
	w.U64(uint64(rec.CreatedAt))
	encodeMembers(w, rec.Members)

	for _, v := range rec.Votes {
		w.U8(uint8(v.Stage))

		switch v.Stage {
		case StageFirstCommit:
			w.Fixed(v.H1[:])
		case StageSecondCommit:
			w.Fixed(v.H1[:])
			w.Fixed(v.H2[:])
			w.Fixed(v.Context[:])
		case StageRevealed:
			w.U8(uint8(v.Vote))
		}
	}

	return w.Bytes()
}

func decodeRecord(data []byte) (*AttestationRecord, error) {
	r := codec.NewReader(data)
	rec := &AttestationRecord{CreatedAt: BlockNumber(r.U64())}
	rec.Members = decodeMembers(r)
	rec.Votes = make([]AttestationState, 0, len(rec.Members))

	for range rec.Members {
		v := AttestationState{Stage: Stage(r.U8())}

		switch v.Stage {
		case StagePending:
		case StageFirstCommit:
			r.Fixed(v.H1[:])
		case StageSecondCommit:
			r.Fixed(v.H1[:])
			r.Fixed(v.H2[:])
			r.Fixed(v.Context[:])
		case StageRevealed:
			v.Vote = Vote(r.U8())
		default:
			return nil, fmt.Errorf("decode attestation record: unknown stage %d", v.Stage)
		}

		rec.Votes = append(rec.Votes, v)
	}

	if err := r.Done(); err != nil {
		return nil, fmt.Errorf("decode attestation record:\n%w", err)
	}

	return rec, nil
}
