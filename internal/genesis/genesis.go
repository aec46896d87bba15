// Package genesis seeds an empty store with the configured boards and
// their attester committees.
package genesis

import (
	"errors"
	"fmt"

	"ShardBoard/internal/logger"
	"ShardBoard/internal/runtime"
	"ShardBoard/internal/state"
)

// ErrAlreadyInitialized is returned when the store already holds boards.
var ErrAlreadyInitialized = errors.New("store already initialized")

// Board is one board to create at genesis.
type Board struct {
	Meta state.BoardMetadata
}

// Config holds the genesis layout.
type Config struct {
	// Attesters is the pool every committee is drawn from.
	Attesters []state.AccountID

	// CommitteeSize is the number of attesters per shard.
	CommitteeSize int

	// Boards are created in order.
	Boards []Board
}

// Runtime is the part of the runtime genesis dispatches through.
type Runtime interface {
	ApplyBatch(calls []runtime.Call, now state.BlockNumber) ([]*runtime.Receipt, error)
	View(fn func(st *state.State) error) error
}

// Apply creates every configured board and assigns each shard its
// committee, dispatching as Root at block 0 in one transaction, so a
// failure leaves the store empty. It fails with ErrAlreadyInitialized if any
// board exists.
func Apply(rt Runtime, cfg Config) error {
	if len(cfg.Boards) == 0 {
		return nil
	}

	if cfg.CommitteeSize <= 0 || len(cfg.Attesters) < cfg.CommitteeSize {
		return fmt.Errorf("genesis needs %d attesters, have %d", cfg.CommitteeSize, len(cfg.Attesters))
	}

	var count uint32
	err := rt.View(func(st *state.State) error {
		var err error
		count, err = st.BoardCount()
		return err
	})
	if err != nil {
		return fmt.Errorf("read board count:\n%w", err)
	}

	if count > 0 {
		return ErrAlreadyInitialized
	}

	if _, err := rt.ApplyBatch(calls(cfg), 0); err != nil {
		return fmt.Errorf("apply genesis calls:\n%w", err)
	}

	logger.Info("genesis applied",
		"boards", len(cfg.Boards),
		"attesters", len(cfg.Attesters),
		"committee", cfg.CommitteeSize,
	)

	return nil
}

// calls lists the board creations, each followed by its shard committees.
// Boards are created on an empty store, so board i gets index i.
func calls(cfg Config) []runtime.Call {
	var out []runtime.Call

	for i, b := range cfg.Boards {
		idx := state.BoardIndex(i)
		out = append(out, runtime.CreateBoard{Meta: b.Meta})

		for s := range b.Meta.Shards {
			members := Committee(cfg.Attesters, idx, s, cfg.CommitteeSize)
			out = append(out, runtime.SetAttesters{Board: idx, Shard: s, Members: members})
		}
	}

	return out
}
