// Package se implements the Strategy Engine: a single-threaded
// cooperative loop that polls channel T, evaluates each matching
// Condition's state machine, and emits TradingSignals on channel S.
package se

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ttpss930141011/auto-futures-trading-machine/internal/channel"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/condition"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/model"
	"github.com/ttpss930141011/auto-futures-trading-machine/pkg/observability"
)

// DefaultPollTimeout is the bounded timeout used when polling channel T.
const DefaultPollTimeout = 10 * time.Millisecond

// DefaultRingSize is the per-commodity dedupe ring length.
const DefaultRingSize = 64

// Engine is SE's runtime.
type Engine struct {
	store       *condition.Store
	poller      *channel.TickPoller
	publisher   *channel.SignalPublisher
	logger      *observability.Logger
	metrics     *observability.MetricsProvider
	pollTimeout time.Duration
	ringSize    int

	mu     sync.Mutex
	states map[string]*model.ConditionRuntimeState
	rings  map[string]*dedupeRing

	shutdown atomic.Bool
}

// New constructs an Engine. pollTimeout and ringSize fall back to their
// package defaults when zero.
func New(store *condition.Store, poller *channel.TickPoller, publisher *channel.SignalPublisher, logger *observability.Logger, metrics *observability.MetricsProvider, pollTimeout time.Duration, ringSize int) *Engine {
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	if ringSize <= 0 {
		ringSize = DefaultRingSize
	}
	return &Engine{
		store:       store,
		poller:      poller,
		publisher:   publisher,
		logger:      logger,
		metrics:     metrics,
		pollTimeout: pollTimeout,
		ringSize:    ringSize,
		states:      make(map[string]*model.ConditionRuntimeState),
		rings:       make(map[string]*dedupeRing),
	}
}

// Run executes the poll loop until Stop is called or ctx is canceled. The
// shared shutdown flag is only observed at poll boundaries, so a poll
// already in flight always completes before the loop exits.
func (e *Engine) Run(ctx context.Context) {
	if e.logger != nil {
		e.logger.Info(ctx, "strategy engine started", nil)
	}
	for !e.shutdown.Load() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		event, ok, err := e.poller.Poll(e.pollTimeout)
		if err != nil {
			if e.logger != nil {
				e.logger.Error(ctx, "tick poll failed", err, nil)
			}
			if e.metrics != nil {
				e.metrics.RecordCodecError(ctx, "T")
			}
			continue
		}
		if !ok {
			continue
		}

		e.handleTick(ctx, event)
	}
}

// Stop sets the shared shutdown flag; the loop exits at its next poll
// boundary.
func (e *Engine) Stop() {
	e.shutdown.Store(true)
}

func (e *Engine) handleTick(ctx context.Context, event model.TickEvent) {
	e.mu.Lock()
	ring, ok := e.rings[event.Tick.CommodityID]
	if !ok {
		ring = newDedupeRing(e.ringSize)
		e.rings[event.Tick.CommodityID] = ring
	}
	duplicate := ring.seenOrRecord(event.When)
	e.mu.Unlock()

	if duplicate {
		return
	}

	for _, c := range e.store.List() {
		if c.CommodityID != event.Tick.CommodityID {
			continue
		}

		e.mu.Lock()
		rs, ok := e.states[c.ID]
		if !ok {
			rs = model.NewConditionRuntimeState()
			e.states[c.ID] = rs
		}
		sig := evaluate(c, rs, event.When, event.Tick.MatchPrice)
		e.mu.Unlock()

		if sig == nil {
			continue
		}

		if accepted := e.publisher.Publish(*sig); !accepted && e.logger != nil {
			e.logger.Warn(ctx, "signal dropped, channel S queue full", map[string]interface{}{"condition_id": c.ID})
		}
	}
}
