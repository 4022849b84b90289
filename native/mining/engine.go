package mining

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"contribmine/core/events"
	nativecommon "contribmine/native/common"
	"contribmine/observability/metrics"
)

var errReadOnlyScope = errors.New("mining: write attempted inside a read-only view")

// Engine is the contribution-mining reward ledger. Every public operation runs
// inside an operation scope: a write-buffered transaction guarded by the
// engine lock. Calls made by collaborators with the context they were handed
// join the enclosing scope instead of blocking on the lock, so a staking
// module may report stake back to the engine while a stake-and-compound
// settlement is in flight.
type Engine struct {
	mu          sync.RWMutex
	backend     Backend
	clock       Clock
	treasury    Treasury
	communities CommunityRegistry
	staking     Staking
	assets      Assets
	pauses      nativecommon.PauseView
	emitter     events.Emitter
	logger      *slog.Logger
	telemetry   *metrics.MiningMetrics
}

// Option configures optional engine collaborators.
type Option func(*Engine)

func WithTreasury(t Treasury) Option { return func(e *Engine) { e.treasury = t } }

func WithCommunities(r CommunityRegistry) Option { return func(e *Engine) { e.communities = r } }

func WithStaking(s Staking) Option { return func(e *Engine) { e.staking = s } }

func WithAssets(a Assets) Option { return func(e *Engine) { e.assets = a } }

func WithPauses(p nativecommon.PauseView) Option { return func(e *Engine) { e.pauses = p } }

func WithEmitter(em events.Emitter) Option { return func(e *Engine) { e.emitter = em } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

func WithMetrics(m *metrics.MiningMetrics) Option { return func(e *Engine) { e.telemetry = m } }

// NewEngine constructs an engine over the provided backend and block clock.
func NewEngine(backend Backend, clock Clock, opts ...Option) (*Engine, error) {
	if backend == nil {
		return nil, fmt.Errorf("mining: backend required")
	}
	if clock == nil {
		return nil, fmt.Errorf("mining: clock required")
	}
	e := &Engine{
		backend: backend,
		clock:   clock,
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.emitter == nil {
		e.emitter = events.NoopEmitter{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("module", ModuleName)
	return e, nil
}

// SetStaking binds the staking collaborator after construction. Staking
// modules usually need the engine themselves, so they are wired late.
func (e *Engine) SetStaking(s Staking) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.staking = s
}

// Run executes fn inside a mutating operation scope. Engine calls made with
// the context passed to fn join the scope and commit or abort with it.
func (e *Engine) Run(ctx context.Context, fn func(context.Context) error) error {
	return e.update(ctx, "run", func(ctx context.Context, _ *operation) error {
		return fn(ctx)
	})
}

type operationKey struct{}

// operation is the per-call scope shared by nested calls on the same context.
type operation struct {
	engine   *Engine
	txn      Txn
	now      uint64
	readOnly bool
	params   *Params
	busy     map[common.Address]struct{}
	events   []events.Event
	abort    error
}

func (e *Engine) operationFrom(ctx context.Context) *operation {
	if ctx == nil {
		return nil
	}
	op, _ := ctx.Value(operationKey{}).(*operation)
	if op == nil || op.engine != e {
		return nil
	}
	return op
}

// update runs fn inside a mutating scope. The transaction commits only when
// fn and every nested call succeeded; buffered events are published after
// the commit.
func (e *Engine) update(ctx context.Context, name string, fn func(context.Context, *operation) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if op := e.operationFrom(ctx); op != nil {
		if op.readOnly {
			return errReadOnlyScope
		}
		if err := fn(ctx, op); err != nil {
			if op.abort == nil {
				op.abort = err
			}
			return err
		}
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	txn, err := e.backend.Begin()
	if err != nil {
		return fmt.Errorf("mining: begin %s: %w", name, err)
	}
	op := &operation{
		engine: e,
		txn:    txn,
		now:    e.clock.BlockNumber(),
		busy:   make(map[common.Address]struct{}),
	}
	err = fn(context.WithValue(ctx, operationKey{}, op), op)
	if err == nil {
		err = op.abort
	}
	if err != nil {
		txn.Discard()
		e.telemetry.ObserveRejected(rejectReason(err))
		e.logger.Debug("mining operation rejected", "op", name, "error", err)
		return err
	}
	if err := txn.Commit(); err != nil {
		e.telemetry.ObserveRejected("commit")
		return fmt.Errorf("mining: commit %s: %w", name, err)
	}
	e.publish(op.events)
	return nil
}

// view runs fn against a throwaway transaction. Catch-up performed inside a
// view is never persisted and emits nothing.
func (e *Engine) view(ctx context.Context, fn func(context.Context, *operation) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if op := e.operationFrom(ctx); op != nil {
		return fn(ctx, op)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	txn, err := e.backend.Begin()
	if err != nil {
		return fmt.Errorf("mining: begin view: %w", err)
	}
	defer txn.Discard()
	op := &operation{
		engine:   e,
		txn:      txn,
		now:      e.clock.BlockNumber(),
		readOnly: true,
		busy:     make(map[common.Address]struct{}),
	}
	return fn(context.WithValue(ctx, operationKey{}, op), op)
}

func (op *operation) emit(evt events.Event) {
	if op.readOnly || evt == nil {
		return
	}
	op.events = append(op.events, evt)
}

func (op *operation) guard() error {
	return nativecommon.Guard(op.engine.pauses, ModuleName)
}

func (op *operation) loadParams() (*Params, error) {
	if op.params != nil {
		return op.params, nil
	}
	params, err := op.txn.MiningParams()
	if err != nil {
		return nil, err
	}
	if params == nil {
		return nil, ErrNotInitialized
	}
	op.params = params.Clone().Normalize()
	return op.params, nil
}

func (op *operation) storeParams(params *Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	stored := params.Clone().Normalize()
	if err := op.txn.SetMiningParams(stored); err != nil {
		return err
	}
	op.params = stored
	return nil
}

// enter marks the contributor as being settled for the rest of the scope.
func (op *operation) enter(addr common.Address) (func(), error) {
	if _, busy := op.busy[addr]; busy {
		return nil, ErrReentrantCall
	}
	op.busy[addr] = struct{}{}
	return func() { delete(op.busy, addr) }, nil
}

func (e *Engine) publish(batch []events.Event) {
	for _, evt := range batch {
		e.emitter.Emit(evt)
		switch v := evt.(type) {
		case events.MiningPeriodCreated:
			e.telemetry.ObservePeriodCreated(v.Period, v.RewardPerBlock, v.Rollover)
			e.logger.Debug("reward period created", "period", v.Period, "start", v.StartBlock, "end", v.EndBlock, "reward", v.RewardAmount.String())
		case events.MiningContributionRecorded:
			e.telemetry.ObserveContribution(v.TargetKind, v.Amount)
		case events.MiningStakeUpdated:
			e.telemetry.ObserveStakeUpdate()
		case events.MiningRewardSettled:
			e.telemetry.ObserveSettlement(v.Mode, v.Paid)
			e.logger.Info("reward settled", "contributor", v.Contributor.Hex(), "mode", v.Mode, "from", v.FromPeriod, "to", v.ToPeriod, "paid", v.Paid.String())
		case events.MiningRewardShortfall:
			e.telemetry.ObserveShortfall(v.Mode, v.Shortfall)
			e.logger.Warn("reward balance shortfall", "contributor", v.Contributor.Hex(), "mode", v.Mode, "owed", v.Owed.String(), "paid", v.Paid.String())
		case events.MiningParamsUpdated:
			e.telemetry.ObserveParamUpdate(v.Field)
			e.logger.Info("mining params updated", "field", v.Field, "value", v.Value, "effectiveAt", v.EffectiveAt)
		}
	}
}
