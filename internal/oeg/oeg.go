// Package oeg implements the Order Execution Gateway: it pulls
// TradingSignals off channel S, builds an OrderRequest per signal, and
// submits it to DGW over channel O with a bounded timeout and a
// transport-only retry policy.
package oeg

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"

	"github.com/ttpss930141011/auto-futures-trading-machine/internal/channel"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/model"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/session"
	"github.com/ttpss930141011/auto-futures-trading-machine/pkg/observability"
	"github.com/ttpss930141011/auto-futures-trading-machine/pkg/tradeerrors"
)

// DefaultPollTimeout is the bounded timeout used when pulling channel S.
const DefaultPollTimeout = 100 * time.Millisecond

// DefaultRequestTimeout is the bounded timeout on each order request.
const DefaultRequestTimeout = 5_000 * time.Millisecond

// retryBackoffs are the fixed retry delays: 100ms, 300ms, 900ms.
var retryBackoffs = []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 900 * time.Millisecond}

// Gateway is OEG's runtime.
type Gateway struct {
	poller         *channel.SignalPoller
	client         *channel.OrderClient
	sessions       *session.Store
	logger         *observability.Logger
	metrics        *observability.MetricsProvider
	pollTimeout    time.Duration
	requestTimeout time.Duration
	retryCount     int

	shutdown atomic.Bool
}

// New constructs a Gateway. pollTimeout, requestTimeout, and retryCount
// fall back to their package defaults when zero/negative.
func New(poller *channel.SignalPoller, client *channel.OrderClient, sessions *session.Store, logger *observability.Logger, metrics *observability.MetricsProvider, pollTimeout, requestTimeout time.Duration, retryCount int) *Gateway {
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	if retryCount <= 0 {
		retryCount = 3
	}
	return &Gateway{
		poller:         poller,
		client:         client,
		sessions:       sessions,
		logger:         logger,
		metrics:        metrics,
		pollTimeout:    pollTimeout,
		requestTimeout: requestTimeout,
		retryCount:     retryCount,
	}
}

// Run executes the PULL loop until Stop is called or ctx is canceled.
func (g *Gateway) Run(ctx context.Context) {
	if g.logger != nil {
		g.logger.Info(ctx, "order execution gateway started", nil)
	}
	for !g.shutdown.Load() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		sig, ok, err := g.poller.Poll(g.pollTimeout)
		if err != nil {
			if g.logger != nil {
				g.logger.Error(ctx, "signal poll failed", err, nil)
			}
			if g.metrics != nil {
				g.metrics.RecordCodecError(ctx, "S")
			}
			continue
		}
		if !ok {
			continue
		}

		g.Submit(ctx, sig)
	}
}

// Stop sets the shared shutdown flag; the loop exits at its next poll
// boundary.
func (g *Gateway) Stop() {
	g.shutdown.Store(true)
}

// Submit builds an OrderRequest from sig and sends it to DGW, returning the
// OrderResponse observed (or synthesized) for this signal. A signal arriving
// while no session is logged in is never sent: it yields a synthetic
// OrderResponse with ErrorKind CONFIG rather than a silent no-op, so a
// caller driving Submit directly (or a future response sink wired off Run)
// can observe and act on the rejection the same way it would any other
// order failure.
func (g *Gateway) Submit(ctx context.Context, sig model.TradingSignal) model.OrderResponse {
	snap := g.sessions.Current()
	if !snap.LoggedIn {
		resp := model.OrderResponse{
			OK:          false,
			ErrorKind:   model.ErrorKindConfig,
			ErrorDetail: "no active session: order not submitted",
			RequestID:   ulid.Make().String(),
		}
		if g.logger != nil {
			g.logger.Warn(ctx, "no active session, order not submitted", map[string]interface{}{"condition_id": sig.ConditionID, "request_id": resp.RequestID})
		}
		if g.metrics != nil {
			g.metrics.RecordOrderSubmitted(ctx, string(sig.Operation), 0, false)
		}
		return resp
	}

	req := model.OrderRequest{
		Account:     snap.Account,
		Symbol:      sig.CommodityID,
		Side:        sig.Operation,
		OrderType:   model.OrderTypeMarket,
		Quantity:    sig.Quantity,
		OpenClose:   model.OpenCloseAuto,
		TimeInForce: model.TimeInForceIOC,
		DayTrade:    model.DayTradeNo,
		Note:        sig.ConditionID,
		RequestID:   ulid.Make().String(),
	}

	start := time.Now()
	resp, err := g.sendWithRetry(ctx, req)
	if g.metrics != nil {
		g.metrics.RecordOrderSubmitted(ctx, string(req.Side), time.Since(start), err == nil && resp.OK)
	}
	if err != nil {
		kind, _ := tradeerrors.KindOf(err)
		resp = model.OrderResponse{OK: false, ErrorKind: kind, ErrorDetail: err.Error(), RequestID: req.RequestID}
		if g.logger != nil {
			g.logger.Error(ctx, "order submission failed", err, map[string]interface{}{"request_id": req.RequestID})
		}
	}
	return resp
}

// sendWithRetry submits req, retrying only TRANSPORT failures up to
// g.retryCount times with the fixed 100/300/900ms backoff schedule.
// Broker-logical rejections are never retried.
func (g *Gateway) sendWithRetry(ctx context.Context, req model.OrderRequest) (model.OrderResponse, error) {
	var resp model.OrderResponse
	attempt := 0

	operation := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, g.requestTimeout)
		defer cancel()

		var err error
		resp, err = g.client.SendOrder(reqCtx, req)
		if err == nil {
			return nil
		}
		if tradeerrors.Is(err, model.ErrorKindTransport) {
			attempt++
			if g.metrics != nil {
				g.metrics.RecordOrderRetry(ctx)
			}
			return err
		}
		return backoff.Permanent(err)
	}

	policy := newFixedBackoff(g.retryCount)
	err := backoff.Retry(operation, policy)
	return resp, err
}

// newFixedBackoff returns a cenkalti/backoff policy that yields the three
// fixed delays and then stops, capped at maxAttempts retries.
func newFixedBackoff(maxAttempts int) backoff.BackOff {
	var schedule backoff.BackOff = &fixedScheduleBackOff{delays: retryBackoffs}
	return backoff.WithMaxRetries(schedule, uint64(maxAttempts))
}

// fixedScheduleBackOff walks a literal list of delays rather than computing
// them from a multiplier, reproducing the 100ms/300ms/900ms schedule
// exactly instead of approximating it with ExponentialBackOff.
type fixedScheduleBackOff struct {
	delays []time.Duration
	idx    int
}

func (f *fixedScheduleBackOff) Reset() { f.idx = 0 }

func (f *fixedScheduleBackOff) NextBackOff() time.Duration {
	if f.idx >= len(f.delays) {
		return backoff.Stop
	}
	d := f.delays[f.idx]
	f.idx++
	return d
}
