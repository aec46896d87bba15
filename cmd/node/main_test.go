package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"ShardBoard/internal/auth"
	"ShardBoard/internal/config"
)

// TestKeygen verifies the key file is written and its account printed.
func TestKeygen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.key")

	var out bytes.Buffer
	root := rootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"keygen", "--out", path})

	if err := root.Execute(); err != nil {
		t.Fatalf("keygen: %v", err)
	}

	key, err := auth.LoadKey(path)
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}

	if got := strings.TrimSpace(out.String()); got != key.Account().String() {
		t.Errorf("printed %s, want %s", got, key.Account())
	}

	// A second run refuses to overwrite.
	root = rootCommand()
	root.SetArgs([]string{"keygen", "--out", path})
	if err := root.Execute(); err == nil {
		t.Error("expected error for existing key file")
	}
}

// TestNodeAdmins verifies the node key is the admin only when none are configured.
func TestNodeAdmins(t *testing.T) {
	key, err := auth.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	cfg := config.Default()

	admins, err := nodeAdmins(cfg, key)
	if err != nil {
		t.Fatalf("nodeAdmins: %v", err)
	}

	if len(admins) != 1 || admins[0] != key.Account() {
		t.Errorf("admins = %v, want node account %s", admins, key.Account())
	}

	cfg.Admins = []string{strings.Repeat("cd", 32)}

	admins, err = nodeAdmins(cfg, key)
	if err != nil {
		t.Fatalf("nodeAdmins: %v", err)
	}

	if len(admins) != 1 || admins[0][0] != 0xcd {
		t.Errorf("admins = %v, want configured account", admins)
	}
}

// TestGenesisConfig verifies configured boards convert to genesis boards.
func TestGenesisConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Genesis.Attesters = []string{strings.Repeat("ab", 32)}
	cfg.Genesis.CommitteeSize = 1
	cfg.Genesis.Boards = []config.GenesisBoard{
		{Name: "general", Rules: "be nice", MaxThreads: 3, PostsPerThread: 5, Shards: 2},
	}

	gen, err := genesisConfig(cfg)
	if err != nil {
		t.Fatalf("genesisConfig: %v", err)
	}

	if len(gen.Attesters) != 1 || gen.Attesters[0][0] != 0xab {
		t.Errorf("unexpected attesters: %v", gen.Attesters)
	}

	if len(gen.Boards) != 1 {
		t.Fatalf("expected 1 board, got %d", len(gen.Boards))
	}

	m := gen.Boards[0].Meta
	if string(m.Name) != "general" || string(m.Rules) != "be nice" || m.MaxThreads != 3 || m.PostsPerThread != 5 || m.Shards != 2 {
		t.Errorf("unexpected board: %+v", m)
	}
}
