package runtime

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ShardBoard/internal/attestation"
	"ShardBoard/internal/logger"
	"ShardBoard/internal/state"
	"ShardBoard/internal/storage"
)

var (
	// ErrBadOrigin is returned when the caller may not perform the call.
	ErrBadOrigin = fmt.Errorf("bad origin: %w", state.ErrUnauthorized)

	// ErrBadSequence is returned when a signed operation is not the signer's next one.
	ErrBadSequence = fmt.Errorf("bad sequence: %w", state.ErrUnauthorized)
)

// Origin identifies who is dispatching a call.
type Origin struct {
	Account state.AccountID // Account is the signer (unset for Root)
	Root    bool            // Root is the node itself, used by genesis
}

// Signed returns the origin of an operation signed by account.
func Signed(account state.AccountID) Origin {
	return Origin{Account: account}
}

// Root returns the privileged origin.
func Root() Origin {
	return Origin{Root: true}
}

// Config holds the runtime configuration.
type Config struct {
	Limits       state.Limits          // Limits bounds boards and committees
	Period       state.BlockNumber     // Period is the attestation period in blocks
	Admins       []state.AccountID     // Admins may create boards and set attesters
	Binder       attestation.Binder    // Binder is the commitment scheme (BLAKE3 if nil)
	PromRegistry prometheus.Registerer // PromRegistry receives metrics (none if nil)
}

// Runtime dispatches operations against the store. Every dispatch runs in
// its own transaction and either commits entirely or leaves no trace.
// Methods are not safe for concurrent use; the chain executor serializes them.
type Runtime struct {
	db      *storage.Storage
	engine  *attestation.Engine
	limits  state.Limits
	admins  map[state.AccountID]struct{}
	metrics runtimeMetrics
}

// New creates a runtime over db.
func New(db *storage.Storage, cfg Config) *Runtime {
	r := &Runtime{
		db:     db,
		engine: attestation.NewEngine(cfg.Binder, cfg.Period),
		limits: cfg.Limits,
		admins: make(map[state.AccountID]struct{}, len(cfg.Admins)),
	}

	for _, a := range cfg.Admins {
		r.admins[a] = struct{}{}
	}

	r.metrics.init(cfg.PromRegistry)

	return r
}

// Engine returns the attestation engine.
func (r *Runtime) Engine() *attestation.Engine {
	return r.engine
}

// Limits returns the configured bounds.
func (r *Runtime) Limits() state.Limits {
	return r.limits
}

// IsAdmin reports whether account may perform admin calls.
func (r *Runtime) IsAdmin(account state.AccountID) bool {
	_, ok := r.admins[account]
	return ok
}

// View runs fn against the committed state. fn must not write.
func (r *Runtime) View(fn func(st *state.State) error) error {
	return fn(state.New(r.db, r.limits))
}

// Receipt is the result of applying one operation.
type Receipt struct {
	Block     state.BlockNumber `json:"block"`
	Kind      string            `json:"kind"`
	Weight    Weight            `json:"weight"`
	Events    []Event           `json:"events"`
	Error     string            `json:"error,omitempty"`
	ErrorKind string            `json:"errorKind,omitempty"`
}

// Apply dispatches call on behalf of origin at block now.
// For a signed origin seq must equal the account's next sequence number; it
// is consumed whether or not the dispatch succeeds. Events are returned
// only when the dispatch committed. The returned error is the dispatch
// failure, also described in the receipt.
func (r *Runtime) Apply(origin Origin, seq uint64, call Call, now state.BlockNumber) (*Receipt, error) {
	start := time.Now()
	kind := call.Kind().String()

	rc := &Receipt{
		Block:  now,
		Kind:   kind,
		Weight: weigh(call, r.limits),
		Events: []Event{},
	}

	err := r.apply(origin, seq, call, now, rc)

	r.metrics.dispatchTime.Observe(time.Since(start).Seconds())
	r.metrics.weight.Add(float64(rc.Weight))

	if err != nil {
		rc.Error = err.Error()
		if k := state.Kind(err); k != nil {
			rc.ErrorKind = k.Error()
		}
		r.metrics.operations.WithLabelValues(kind, "error").Inc()

		logger.Debug("operation failed",
			"kind", kind,
			"block", now,
			"error", err,
		)

		return rc, err
	}

	r.metrics.operations.WithLabelValues(kind, "ok").Inc()
	for _, e := range rc.Events {
		r.metrics.events.WithLabelValues(e.Name).Inc()
	}

	return rc, nil
}

// ApplyBatch dispatches calls as Root at block now in a single transaction.
// Either every call commits or none does; the error names the failing call.
func (r *Runtime) ApplyBatch(calls []Call, now state.BlockNumber) ([]*Receipt, error) {
	start := time.Now()
	receipts := make([]*Receipt, len(calls))

	err := r.db.Update(func(txn *storage.Txn) error {
		st := state.New(txn, r.limits)

		for i, call := range calls {
			var log eventLog

			if err := r.dispatch(st, Root(), call, now, &log); err != nil {
				return fmt.Errorf("call %d (%s):\n%w", i, call.Kind(), err)
			}

			receipts[i] = &Receipt{
				Block:  now,
				Kind:   call.Kind().String(),
				Weight: weigh(call, r.limits),
				Events: log.events,
			}
		}

		return nil
	})

	r.metrics.dispatchTime.Observe(time.Since(start).Seconds())

	if err != nil {
		r.metrics.operations.WithLabelValues("batch", "error").Inc()
		return nil, err
	}

	for _, rc := range receipts {
		r.metrics.operations.WithLabelValues(rc.Kind, "ok").Inc()
		r.metrics.weight.Add(float64(rc.Weight))
		for _, e := range rc.Events {
			r.metrics.events.WithLabelValues(e.Name).Inc()
		}
	}

	return receipts, nil
}

// apply checks the sequence, then runs the dispatch and the sequence bump
// in one transaction. A failed dispatch still consumes the sequence.
func (r *Runtime) apply(origin Origin, seq uint64, call Call, now state.BlockNumber, rc *Receipt) error {
	if !origin.Root {
		if err := r.checkSequence(origin.Account, seq); err != nil {
			return err
		}
	}

	var log eventLog

	err := r.db.Update(func(txn *storage.Txn) error {
		st := state.New(txn, r.limits)

		if err := r.dispatch(st, origin, call, now, &log); err != nil {
			return err
		}

		if origin.Root {
			return nil
		}

		return st.BumpSequence(origin.Account)
	})
	if err == nil {
		rc.Events = append(rc.Events, log.events...)
		r.recordOutcomes(log.events)
		return nil
	}

	if origin.Root {
		return err
	}

	bumpErr := r.db.Update(func(txn *storage.Txn) error {
		return state.New(txn, r.limits).BumpSequence(origin.Account)
	})
	if bumpErr != nil {
		return errors.Join(err, bumpErr)
	}

	return err
}

// checkSequence rejects an operation that is not the signer's next one.
func (r *Runtime) checkSequence(account state.AccountID, seq uint64) error {
	want, err := state.New(r.db, r.limits).Sequence(account)
	if err != nil {
		return err
	}

	if seq != want {
		return fmt.Errorf("%s sent sequence %d, expected %d: %w", account.Short(), seq, want, ErrBadSequence)
	}

	return nil
}

// recordOutcomes counts finalized posts.
func (r *Runtime) recordOutcomes(events []Event) {
	for _, e := range events {
		switch e.Name {
		case EventPostStored:
			r.metrics.postsStored.Inc()
		case EventPostRejected:
			r.metrics.postsDropped.WithLabelValues(e.Reason).Inc()
		}
	}
}

// requireAdmin allows Root and configured admins.
func (r *Runtime) requireAdmin(origin Origin) error {
	if origin.Root || r.IsAdmin(origin.Account) {
		return nil
	}

	return fmt.Errorf("%s is not an admin: %w", origin.Account.Short(), ErrBadOrigin)
}

// requireSigned rejects Root for calls that act as an account.
func requireSigned(origin Origin) error {
	if origin.Root {
		return fmt.Errorf("call requires a signed origin: %w", ErrBadOrigin)
	}

	return nil
}

// dispatch performs a call inside st.
func (r *Runtime) dispatch(st *state.State, origin Origin, call Call, now state.BlockNumber, log *eventLog) error {
	switch c := call.(type) {
	case CreateBoard:
		if err := r.requireAdmin(origin); err != nil {
			return err
		}

		idx, err := st.CreateBoard(c.Meta)
		if err != nil {
			return err
		}

		log.emit(Event{Name: EventBoardCreated, Board: idx})

	case CreateThread:
		if err := st.CreateThread(c.Board, c.Thread, now); err != nil {
			return err
		}

		log.emit(Event{Name: EventThreadCreated, Board: c.Board, Thread: ptr(c.Thread)})

	case SetAttesters:
		if err := r.requireAdmin(origin); err != nil {
			return err
		}

		if err := st.SetAttesters(c.Board, c.Shard, c.Members); err != nil {
			return err
		}

		log.emit(Event{Name: EventAttestersSet, Board: c.Board, Shard: ptr(c.Shard)})

	case SubmitPost:
		if err := requireSigned(origin); err != nil {
			return err
		}

		idx, err := r.engine.Submit(st, origin.Account, c.Board, c.Thread, c.Cid, now)
		if err != nil {
			return err
		}

		log.emit(Event{
			Name:    EventPostBuffered,
			Board:   c.Board,
			Thread:  ptr(c.Thread),
			Buffer:  ptr(idx),
			Account: origin.Account.String(),
		})

	case CommitFirst:
		if err := requireSigned(origin); err != nil {
			return err
		}

		if err := r.engine.CommitFirst(st, origin.Account, c.Board, c.Buffer, c.Shard, c.Commitment, now); err != nil {
			return err
		}

		log.emit(voteEvent(EventVoteCommitted, origin, c.Board, c.Buffer, c.Shard, attestation.RoundFirst))

	case CommitSecond:
		if err := requireSigned(origin); err != nil {
			return err
		}

		if _, err := r.engine.CommitSecond(st, origin.Account, c.Board, c.Buffer, c.Shard, c.Commitment, c.Context, now); err != nil {
			return err
		}

		log.emit(voteEvent(EventVoteCommitted, origin, c.Board, c.Buffer, c.Shard, attestation.RoundSecond))

	case RevealVote:
		if err := requireSigned(origin); err != nil {
			return err
		}

		vote, err := r.engine.Reveal(st, origin.Account, c.Board, c.Buffer, c.Shard, c.Vote, c.First, c.Second, now)
		if err != nil {
			return err
		}

		e := voteEvent(EventVoteRevealed, origin, c.Board, c.Buffer, c.Shard, 0)
		e.Vote = vote.String()
		log.emit(e)

	case Finalize:
		out, err := r.engine.Finalize(st, c.Board, c.Buffer, now)
		if err != nil {
			return err
		}

		log.emit(outcomeEvent(out))

	default:
		return fmt.Errorf("unsupported call %T", call)
	}

	return nil
}

// voteEvent describes an attester action.
func voteEvent(name string, origin Origin, b state.BoardIndex, i state.BufferIndex, shard state.ShardIndex, round attestation.Round) Event {
	return Event{
		Name:    name,
		Board:   b,
		Buffer:  ptr(i),
		Shard:   ptr(shard),
		Round:   round,
		Account: origin.Account.String(),
	}
}

// BlockNumber returns the last block recorded in the store.
func (r *Runtime) BlockNumber() (state.BlockNumber, error) {
	return state.New(r.db, r.limits).BlockNumber()
}

// SetBlockNumber records the current block.
func (r *Runtime) SetBlockNumber(n state.BlockNumber) error {
	return r.db.Update(func(txn *storage.Txn) error {
		return state.New(txn, r.limits).SetBlockNumber(n)
	})
}
