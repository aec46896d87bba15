package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"ShardBoard/internal/logger"
	"ShardBoard/internal/runtime"
	"ShardBoard/internal/state"
)

const (
	// defaultQueueSize bounds the operations waiting for the next block.
	defaultQueueSize = 1024
)

// ErrClosed is returned when submitting to a stopped chain.
var ErrClosed = errors.New("chain closed")

// Applier executes operations and persists the block height.
type Applier interface {
	Apply(origin runtime.Origin, seq uint64, call runtime.Call, now state.BlockNumber) (*runtime.Receipt, error)
	BlockNumber() (state.BlockNumber, error)
	SetBlockNumber(n state.BlockNumber) error
}

// Operation is a call queued for inclusion.
type Operation struct {
	Origin runtime.Origin // Origin is the dispatching account
	Seq    uint64         // Seq is the signer's sequence number
	Call   runtime.Call   // Call is the operation to dispatch
}

// Result is the outcome of an included operation.
type Result struct {
	Receipt *runtime.Receipt // Receipt describes the dispatch
	Err     error            // Err is the dispatch failure, if any
}

// request pairs an operation with the channel its result is sent on.
type request struct {
	op    Operation
	reply chan Result
}

// Chain is a single-node block producer. One goroutine advances the block
// number on every tick and applies the operations queued since the previous
// tick, in arrival order, each at the new block number.
type Chain struct {
	app      Applier
	interval time.Duration

	queue   chan request
	block   atomic.Uint64
	pending atomic.Int64

	stop chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// New creates a chain resuming from the height recorded by app.
func New(app Applier, interval time.Duration, queueSize int) (*Chain, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("block interval must be positive, got %s", interval)
	}

	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	height, err := app.BlockNumber()
	if err != nil {
		return nil, fmt.Errorf("load block number:\n%w", err)
	}

	c := &Chain{
		app:      app,
		interval: interval,
		queue:    make(chan request, queueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	c.block.Store(uint64(height))

	return c, nil
}

// Start launches the block loop.
func (c *Chain) Start() {
	c.wg.Add(1)
	go c.loop()

	logger.Info("chain started",
		"block", c.Block(),
		"interval", c.interval,
	)
}

// Close stops the block loop and waits for it to exit. Queued operations
// that were not yet included fail with ErrClosed.
func (c *Chain) Close() {
	c.once.Do(func() {
		close(c.stop)
	})

	c.wg.Wait()
}

// Block returns the current block number.
func (c *Chain) Block() state.BlockNumber {
	return state.BlockNumber(c.block.Load())
}

// QueueDepth returns the number of operations waiting for inclusion.
func (c *Chain) QueueDepth() int {
	return int(c.pending.Load())
}

// Submit queues op and waits until a block includes it.
func (c *Chain) Submit(ctx context.Context, op Operation) (*runtime.Receipt, error) {
	req := request{op: op, reply: make(chan Result, 1)}

	select {
	case <-c.stop:
		return nil, ErrClosed
	default:
	}

	c.pending.Add(1)

	select {
	case c.queue <- req:
	case <-ctx.Done():
		c.pending.Add(-1)
		return nil, ctx.Err()
	case <-c.stop:
		c.pending.Add(-1)
		return nil, ErrClosed
	}

	select {
	case res := <-req.reply:
		return res.Receipt, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		// The loop may have answered just before exiting.
		select {
		case res := <-req.reply:
			return res.Receipt, res.Err
		default:
			return nil, ErrClosed
		}
	}
}

// loop produces blocks until stopped.
func (c *Chain) loop() {
	defer c.wg.Done()
	defer close(c.done)
	defer c.drainClosed()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.produce()
		}
	}
}

// produce advances the block and applies the operations queued so far.
func (c *Chain) produce() {
	next := c.Block() + 1

	if err := c.app.SetBlockNumber(next); err != nil {
		logger.Error("persist block number", "block", next, "error", err)
		return
	}
	c.block.Store(uint64(next))

	start := time.Now()
	applied := 0

	for n := len(c.queue); n > 0; n-- {
		req := <-c.queue
		c.pending.Add(-1)

		rc, err := c.app.Apply(req.op.Origin, req.op.Seq, req.op.Call, next)
		req.reply <- Result{Receipt: rc, Err: err}
		applied++
	}

	if applied > 0 {
		logger.Debug("block produced",
			"block", next,
			"ops", applied,
			logger.Timed(start),
		)
	}
}

// drainClosed fails every operation still queued at shutdown.
func (c *Chain) drainClosed() {
	for {
		select {
		case req := <-c.queue:
			c.pending.Add(-1)
			req.reply <- Result{Err: ErrClosed}
		default:
			return
		}
	}
}
