package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"ShardBoard/internal/api"
	"ShardBoard/internal/attestation"
	"ShardBoard/internal/auth"
	"ShardBoard/internal/chain"
	"ShardBoard/internal/config"
	"ShardBoard/internal/genesis"
	"ShardBoard/internal/logger"
	"ShardBoard/internal/runtime"
	"ShardBoard/internal/state"
	"ShardBoard/internal/storage"
)

// Node wires storage, runtime, block production and the HTTP API.
type Node struct {
	cfg     *config.Config
	key     *auth.KeyPair
	storage *storage.Storage
	runtime *runtime.Runtime
	chain   *chain.Chain
	api     *api.Server
}

// NewNode opens storage, applies genesis on a fresh store and prepares
// the block producer. Nothing runs until Run.
func NewNode(cfg *config.Config) (*Node, error) {
	n := &Node{cfg: cfg}

	if err := n.initKey(); err != nil {
		return nil, err
	}

	if err := n.initStorage(); err != nil {
		return nil, err
	}

	if err := n.initRuntime(); err != nil {
		n.Close()
		return nil, err
	}

	if err := n.initChain(); err != nil {
		n.Close()
		return nil, err
	}

	n.api = api.New(cfg.HTTPAddress, n.chain, n.runtime, prometheus.DefaultGatherer)

	return n, nil
}

// initKey loads the node key, creating it on first start.
func (n *Node) initKey() error {
	path := n.cfg.KeyPath
	if path == "" {
		path = filepath.Join(n.cfg.DataPath, "node.key")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create key directory:\n%w", err)
	}

	key, err := auth.LoadOrGenerateKey(path)
	if err != nil {
		return fmt.Errorf("load key:\n%w", err)
	}

	n.key = key

	return nil
}

// initStorage initializes the Pebble storage.
func (n *Node) initStorage() error {
	if err := os.MkdirAll(n.cfg.DataPath, 0755); err != nil {
		return fmt.Errorf("create data directory:\n%w", err)
	}

	db, err := storage.New(filepath.Join(n.cfg.DataPath, "db"))
	if err != nil {
		return fmt.Errorf("init storage:\n%w", err)
	}

	n.storage = db

	return nil
}

// initRuntime creates the runtime and seeds the configured boards on an empty store.
func (n *Node) initRuntime() error {
	admins, err := nodeAdmins(n.cfg, n.key)
	if err != nil {
		return err
	}

	n.runtime = runtime.New(n.storage, runtime.Config{
		Limits:       n.cfg.StateLimits(),
		Period:       state.BlockNumber(n.cfg.AttestationPeriod),
		Admins:       admins,
		Binder:       attestation.Blake3Binder{},
		PromRegistry: prometheus.DefaultRegisterer,
	})

	gen, err := genesisConfig(n.cfg)
	if err != nil {
		return err
	}

	err = genesis.Apply(n.runtime, gen)
	if errors.Is(err, genesis.ErrAlreadyInitialized) {
		logger.Info("store already initialized, skipping genesis")
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply genesis:\n%w", err)
	}

	return nil
}

// nodeAdmins returns the configured admins, or the node's own account when
// none are configured.
func nodeAdmins(cfg *config.Config, key *auth.KeyPair) ([]state.AccountID, error) {
	admins, err := cfg.AdminAccounts()
	if err != nil {
		return nil, err
	}

	if len(admins) == 0 {
		logger.Info("no admins configured, node key is admin", "account", key.Account().String())
		admins = []state.AccountID{key.Account()}
	}

	return admins, nil
}

// initChain creates the block producer resuming from the stored height.
func (n *Node) initChain() error {
	c, err := chain.New(n.runtime, n.cfg.BlockInterval, n.cfg.QueueSize)
	if err != nil {
		return fmt.Errorf("init chain:\n%w", err)
	}

	n.chain = c

	return nil
}

// genesisConfig converts the configured genesis layout.
func genesisConfig(cfg *config.Config) (genesis.Config, error) {
	pool, err := cfg.GenesisAttesters()
	if err != nil {
		return genesis.Config{}, err
	}

	gen := genesis.Config{Attesters: pool, CommitteeSize: cfg.Genesis.CommitteeSize}

	for _, b := range cfg.Genesis.Boards {
		gen.Boards = append(gen.Boards, genesis.Board{Meta: state.BoardMetadata{
			Name:           []byte(b.Name),
			Description:    []byte(b.Description),
			Rules:          []byte(b.Rules),
			MaxThreads:     state.ThreadIndex(b.MaxThreads),
			PostsPerThread: state.PostIndex(b.PostsPerThread),
			Shards:         state.ShardIndex(b.Shards),
		}})
	}

	return gen, nil
}

// Run starts block production and the API, then waits for a signal.
func (n *Node) Run() error {
	logger.Info("starting ShardBoard node",
		"account", n.key.Account().String(),
		"http", n.cfg.HTTPAddress,
		"data", n.cfg.DataPath,
		"interval", n.cfg.BlockInterval,
		"period", n.cfg.AttestationPeriod,
	)

	n.chain.Start()

	if err := n.api.Start(); err != nil {
		n.Close()
		return fmt.Errorf("start api:\n%w", err)
	}

	return n.waitForShutdown()
}

// waitForShutdown blocks until SIGINT or SIGTERM, then closes the node.
func (n *Node) waitForShutdown() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	return n.Close()
}

// Close shuts down all node components gracefully.
func (n *Node) Close() error {
	if n.api != nil {
		n.api.Stop()
	}

	if n.chain != nil {
		n.chain.Close()
	}

	if n.storage != nil {
		return n.storage.Close()
	}

	return nil
}
