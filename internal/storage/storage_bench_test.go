package storage

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

// benchStorage creates a storage for benchmarks.
func benchStorage(b *testing.B) *Storage {
	b.Helper()

	s, err := New(filepath.Join(b.TempDir(), "db"))
	if err != nil {
		b.Fatalf("failed to create storage: %v", err)
	}

	b.Cleanup(func() {
		s.Close()
	})

	return s
}

// makeKey creates a prefixed key from an integer.
func makeKey(prefix string, i int) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], uint64(i))
	return key
}

// makeValue creates a random value of the given size.
func makeValue(size int) []byte {
	value := make([]byte, size)
	rand.Read(value)
	return value
}

// BenchmarkSet benchmarks sequential Set operations.
func BenchmarkSet(b *testing.B) {
	for _, size := range []int{64, 512, 2048} {
		b.Run(fmt.Sprintf("size=%d", size), func(b *testing.B) {
			s := benchStorage(b)
			value := makeValue(size)

			b.SetBytes(int64(size))
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				if err := s.Set(makeKey("k:", i), value); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkGet benchmarks point reads of existing keys.
func BenchmarkGet(b *testing.B) {
	s := benchStorage(b)
	value := makeValue(256)

	const numKeys = 10000
	for i := 0; i < numKeys; i++ {
		s.Set(makeKey("k:", i), value)
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := s.Get(makeKey("k:", i%numKeys)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkUpdate benchmarks a dispatch-like transaction: read a counter,
// write a record and bump the counter.
func BenchmarkUpdate(b *testing.B) {
	s := benchStorage(b)
	value := makeValue(256)
	counter := []byte("m:counter")

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		err := s.Update(func(txn *Txn) error {
			data, err := txn.Get(counter)
			if err != nil {
				return err
			}

			var n uint64
			if len(data) == 8 {
				n = binary.BigEndian.Uint64(data)
			}

			if err := txn.Set(makeKey("r:", int(n)), value); err != nil {
				return err
			}

			next := make([]byte, 8)
			binary.BigEndian.PutUint64(next, n+1)
			return txn.Set(counter, next)
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkUpdateRollback benchmarks a transaction that fails after writing.
func BenchmarkUpdateRollback(b *testing.B) {
	s := benchStorage(b)
	value := makeValue(256)
	errAbort := errors.New("abort")

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		err := s.Update(func(txn *Txn) error {
			if err := txn.Set(makeKey("r:", i), value); err != nil {
				return err
			}
			return errAbort
		})
		if !errors.Is(err, errAbort) {
			b.Fatalf("expected abort, got %v", err)
		}
	}
}

// BenchmarkIteratePrefix benchmarks scanning one prefix among several.
func BenchmarkIteratePrefix(b *testing.B) {
	s := benchStorage(b)
	value := makeValue(64)

	for _, prefix := range []string{"a:", "p:", "t:"} {
		for i := 0; i < 1000; i++ {
			s.Set(makeKey(prefix, i), value)
		}
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		count := 0
		err := s.IteratePrefix([]byte("p:"), func(_, _ []byte) error {
			count++
			return nil
		})
		if err != nil || count != 1000 {
			b.Fatalf("scanned %d keys: %v", count, err)
		}
	}
}
