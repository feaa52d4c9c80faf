package mdg

import (
	"context"
	"time"
)

// ReplayFeed is a VendorFeed that replays a fixed sequence of RawTicks,
// spaced interval apart, then closes its channel. Used by the MDG test
// suite and by the Supervisor's dry-run startup path.
type ReplayFeed struct {
	Ticks    []RawTick
	Interval time.Duration
}

// NewReplayFeed returns a ReplayFeed that emits ticks spaced interval
// apart. interval of zero emits as fast as the consumer can read.
func NewReplayFeed(ticks []RawTick, interval time.Duration) *ReplayFeed {
	return &ReplayFeed{Ticks: ticks, Interval: interval}
}

// Subscribe ignores commodityIDs and replays every tick in order.
func (f *ReplayFeed) Subscribe(ctx context.Context, commodityIDs []string) (<-chan RawTick, error) {
	out := make(chan RawTick)
	go func() {
		defer close(out)
		var ticker *time.Ticker
		if f.Interval > 0 {
			ticker = time.NewTicker(f.Interval)
			defer ticker.Stop()
		}
		for _, t := range f.Ticks {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if ticker != nil {
				select {
				case <-ticker.C:
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- t:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
