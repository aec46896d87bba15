package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// newTestStorage creates a temporary storage for testing.
func newTestStorage(t *testing.T) (*Storage, func()) {
	t.Helper()

	dir, err := os.MkdirTemp("", "storage-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	s, err := New(filepath.Join(dir, "db"))
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("failed to create storage: %v", err)
	}

	cleanup := func() {
		s.Close()
		os.RemoveAll(dir)
	}

	return s, cleanup
}

func TestSetAndGet(t *testing.T) {
	s, cleanup := newTestStorage(t)
	defer cleanup()

	key := []byte("test-key")
	value := []byte("test-value")

	if err := s.Set(key, value); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if !bytes.Equal(got, value) {
		t.Errorf("Get returned %q, want %q", got, value)
	}
}

func TestGetNonExistent(t *testing.T) {
	s, cleanup := newTestStorage(t)
	defer cleanup()

	got, err := s.Get([]byte("non-existent"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got != nil {
		t.Errorf("Get returned %q, want nil", got)
	}
}

func TestDelete(t *testing.T) {
	s, cleanup := newTestStorage(t)
	defer cleanup()

	key := []byte("to-delete")

	if err := s.Set(key, []byte("value")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := s.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got != nil {
		t.Errorf("Get after Delete returned %q, want nil", got)
	}
}

func TestSetBatch(t *testing.T) {
	s, cleanup := newTestStorage(t)
	defer cleanup()

	pairs := []KeyValue{
		{Key: []byte("batch-1"), Value: []byte("value-1")},
		{Key: []byte("batch-2"), Value: []byte("value-2")},
		{Key: []byte("batch-3"), Value: []byte("value-3")},
	}

	if err := s.SetBatch(pairs); err != nil {
		t.Fatalf("SetBatch failed: %v", err)
	}

	for _, kv := range pairs {
		got, err := s.Get(kv.Key)
		if err != nil {
			t.Fatalf("Get failed for %q: %v", kv.Key, err)
		}

		if !bytes.Equal(got, kv.Value) {
			t.Errorf("Get(%q) = %q, want %q", kv.Key, got, kv.Value)
		}
	}
}

// TestIterate verifies a full scan visits keys in order and stops on error.
func TestIterate(t *testing.T) {
	s, cleanup := newTestStorage(t)
	defer cleanup()

	_ = s.Set([]byte("b"), []byte("2"))
	_ = s.Set([]byte("a"), []byte("1"))
	_ = s.Set([]byte("c"), []byte("3"))

	var keys []string

	err := s.Iterate(func(key, _ []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	if err != nil {
		t.Fatalf("Iterate failed: %v", err)
	}

	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Errorf("keys = %v, want [a b c]", keys)
	}

	stop := errors.New("stop")
	visited := 0

	err = s.Iterate(func(_, _ []byte) error {
		visited++
		return stop
	})
	if !errors.Is(err, stop) || visited != 1 {
		t.Errorf("Iterate = %v after %d keys, want stop after 1", err, visited)
	}
}

// TestUpdate_Commit verifies writes staged in a transaction land together.
func TestUpdate_Commit(t *testing.T) {
	s, cleanup := newTestStorage(t)
	defer cleanup()

	err := s.Update(func(txn *Txn) error {
		if err := txn.Set([]byte("a"), []byte("1")); err != nil {
			return err
		}

		// Read-your-writes inside the transaction
		got, err := txn.Get([]byte("a"))
		if err != nil {
			return err
		}
		if !bytes.Equal(got, []byte("1")) {
			t.Errorf("txn Get = %q, want %q", got, "1")
		}

		return txn.Set([]byte("b"), []byte("2"))
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	for key, want := range map[string]string{"a": "1", "b": "2"} {
		got, _ := s.Get([]byte(key))
		if string(got) != want {
			t.Errorf("Get(%q) = %q, want %q", key, got, want)
		}
	}
}

// TestUpdate_Rollback verifies a failing transaction leaves the store unchanged.
func TestUpdate_Rollback(t *testing.T) {
	s, cleanup := newTestStorage(t)
	defer cleanup()

	if err := s.Set([]byte("keep"), []byte("old")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	boom := errors.New("boom")

	err := s.Update(func(txn *Txn) error {
		_ = txn.Set([]byte("keep"), []byte("new"))
		_ = txn.Set([]byte("fresh"), []byte("x"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update error = %v, want %v", err, boom)
	}

	got, _ := s.Get([]byte("keep"))
	if string(got) != "old" {
		t.Errorf("keep = %q, want old", got)
	}

	if got, _ := s.Get([]byte("fresh")); got != nil {
		t.Errorf("fresh = %q, want nil", got)
	}
}

// TestTxn_IteratePrefix verifies prefix scans see staged writes and deletions.
func TestTxn_IteratePrefix(t *testing.T) {
	s, cleanup := newTestStorage(t)
	defer cleanup()

	_ = s.Set([]byte("p:1"), []byte("one"))
	_ = s.Set([]byte("p:2"), []byte("two"))
	_ = s.Set([]byte("q:1"), []byte("other"))

	var keys []string

	err := s.Update(func(txn *Txn) error {
		_ = txn.Delete([]byte("p:1"))
		_ = txn.Set([]byte("p:3"), []byte("three"))

		return txn.IteratePrefix([]byte("p:"), func(key, _ []byte) error {
			keys = append(keys, string(key))
			return nil
		})
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if len(keys) != 2 || keys[0] != "p:2" || keys[1] != "p:3" {
		t.Errorf("keys = %v, want [p:2 p:3]", keys)
	}
}

// TestPrefixUpperBound verifies carry handling at 0xFF bytes.
func TestPrefixUpperBound(t *testing.T) {
	tests := []struct {
		prefix []byte
		want   []byte
	}{
		{[]byte("a:"), []byte("a;")},
		{[]byte{0x01, 0xFF}, []byte{0x02}},
		{[]byte{0xFF, 0xFF}, nil},
	}

	for _, tt := range tests {
		got := prefixUpperBound(tt.prefix)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("prefixUpperBound(%x) = %x, want %x", tt.prefix, got, tt.want)
		}
	}
}
