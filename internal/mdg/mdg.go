// Package mdg implements the Market Data Gateway: it normalizes
// raw vendor price updates into TickEvents and publishes them on channel T,
// never blocking the vendor's callback thread.
package mdg

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ttpss930141011/auto-futures-trading-machine/internal/model"
	"github.com/ttpss930141011/auto-futures-trading-machine/pkg/observability"
	"github.com/ttpss930141011/auto-futures-trading-machine/pkg/tradeerrors"
)

// RawTick is one vendor price update before normalization.
type RawTick struct {
	CommodityID string
	MatchPrice  decimal.Decimal
	VendorTime  time.Time
}

// VendorFeed is the capability MDG depends on to receive raw ticks. The
// production adapter wraps a specific market-data vendor's callback API;
// ReplayFeed below is the test double used by the MDG test suite and by
// Supervisor's local/dry-run mode.
type VendorFeed interface {
	// Subscribe opens a stream of RawTicks for the given commodities. The
	// returned channel is closed when ctx is canceled or the feed ends.
	Subscribe(ctx context.Context, commodityIDs []string) (<-chan RawTick, error)
}

// Publisher is the channel T capability Gateway republishes onto. The
// production wiring uses channel.TickPublisher; tests substitute a fake to
// exercise Gateway's panic recovery without a running NATS server.
type Publisher interface {
	Publish(model.TickEvent) bool
	Dropped() int64
}

// Gateway is MDG's runtime: it reads from a VendorFeed and republishes onto
// channel T through a Publisher.
type Gateway struct {
	feed      VendorFeed
	publisher Publisher
	logger    *observability.Logger
	metrics   *observability.MetricsProvider

	mu      sync.RWMutex
	running bool
}

// New constructs a Gateway. publisher is already wired to the embedded NATS
// connection and channel T's high-water mark.
func New(feed VendorFeed, publisher Publisher, logger *observability.Logger, metrics *observability.MetricsProvider) *Gateway {
	return &Gateway{feed: feed, publisher: publisher, logger: logger, metrics: metrics}
}

// Run subscribes to the vendor feed for commodityIDs and republishes every
// RawTick as a stamped TickEvent until ctx is canceled. Run blocks until the
// feed channel closes or ctx is done.
func (g *Gateway) Run(ctx context.Context, commodityIDs []string) error {
	raw, err := g.feed.Subscribe(ctx, commodityIDs)
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.running = true
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.running = false
		g.mu.Unlock()
	}()

	if g.logger != nil {
		g.logger.Info(ctx, "market data gateway started", map[string]interface{}{"commodities": commodityIDs})
	}

	for {
		select {
		case rt, ok := <-raw:
			if !ok {
				return nil
			}
			g.handleRawTick(ctx, rt)
		case <-ctx.Done():
			return nil
		}
	}
}

// handleRawTick normalizes and publishes a single RawTick, recovering any
// panic raised while doing so. A misbehaving vendor adapter that panics from
// within its own Subscribe goroutine is still fatal to that goroutine, but
// normalize and Publish run on Run's goroutine, and a panic there is caught
// here, tagged VendorCallback, logged, and never re-raised into the caller.
func (g *Gateway) handleRawTick(ctx context.Context, rt RawTick) {
	defer func() {
		if r := recover(); r != nil {
			err := tradeerrors.Newf(model.ErrorKindVendorCallback, "mdg.Gateway.Run", "recovered panic normalizing/publishing tick for %s: %v", rt.CommodityID, r)
			if g.logger != nil {
				g.logger.Error(ctx, "vendor callback panic recovered", err, map[string]interface{}{"commodity_id": rt.CommodityID})
			}
		}
	}()

	event := normalize(rt)
	if accepted := g.publisher.Publish(event); !accepted && g.logger != nil {
		g.logger.Warn(ctx, "tick dropped, channel T queue full", map[string]interface{}{"commodity_id": rt.CommodityID})
	}
}

// IsRunning reports whether Run is currently consuming the vendor feed.
func (g *Gateway) IsRunning() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.running
}

// Dropped returns the total number of ticks dropped due to publisher
// backpressure since startup.
func (g *Gateway) Dropped() int64 {
	return g.publisher.Dropped()
}

// normalize uppercases the commodity id and stamps a RawTick with MDG's own
// arrival time rather than trusting vendor clocks, since SE's
// duplicate-tick collapsing keys off (commodity_id, when).
func normalize(rt RawTick) model.TickEvent {
	return model.TickEvent{
		When: time.Now().UTC(),
		Tick: model.Tick{
			CommodityID: strings.ToUpper(rt.CommodityID),
			MatchPrice:  rt.MatchPrice,
		},
	}
}
