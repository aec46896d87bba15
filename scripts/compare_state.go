//go:build ignore

package main

import (
	"bytes"
	"fmt"
	"os"

	"ShardBoard/internal/state"
	"ShardBoard/internal/storage"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <db1_path> <db2_path>\n", os.Args[0])
		os.Exit(1)
	}

	db1Path := os.Args[1]
	db2Path := os.Args[2]

	db1, err := storage.New(db1Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db1: %v\n", err)
		os.Exit(1)
	}
	defer db1.Close()

	db2, err := storage.New(db2Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db2: %v\n", err)
		os.Exit(1)
	}
	defer db2.Close()

	entries1 := collectEntries(db1)
	entries2 := collectEntries(db2)

	fmt.Printf("DB1 (%s): %d keys\n", db1Path, len(entries1))
	fmt.Printf("DB2 (%s): %d keys\n", db2Path, len(entries2))

	missing1, missing2, different := compare(entries1, entries2)

	if len(missing1) == 0 && len(missing2) == 0 && len(different) == 0 {
		fmt.Println("\nStates are identical")
		os.Exit(0)
	}

	fmt.Println("\nStates differ:")
	printKeys("Keys in DB1 but not in DB2", missing1)
	printKeys("Keys in DB2 but not in DB1", missing2)
	printKeys("Keys with different values", different)

	os.Exit(1)
}

// collectEntries reads every key under the state prefixes.
func collectEntries(db *storage.Storage) map[string][]byte {
	entries := make(map[string][]byte)

	for _, prefix := range state.Prefixes() {
		err := db.IteratePrefix(prefix, func(key, value []byte) error {
			entries[string(key)] = bytes.Clone(value)
			return nil
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "iterate %q: %v\n", prefix, err)
			os.Exit(1)
		}
	}

	return entries
}

// compare returns keys only in a, keys only in b, and keys whose values differ.
func compare(a, b map[string][]byte) (onlyA, onlyB, different []string) {
	for k, va := range a {
		vb, ok := b[k]
		if !ok {
			onlyA = append(onlyA, k)
		} else if !bytes.Equal(va, vb) {
			different = append(different, k)
		}
	}

	for k := range b {
		if _, ok := a[k]; !ok {
			onlyB = append(onlyB, k)
		}
	}

	return onlyA, onlyB, different
}

// printKeys lists keys with a label, skipping empty lists.
func printKeys(label string, keys []string) {
	if len(keys) == 0 {
		return
	}

	fmt.Printf("  - %s: %d\n", label, len(keys))
	for _, k := range keys {
		fmt.Printf("      %q\n", k)
	}
}
