package channel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ttpss930141011/auto-futures-trading-machine/internal/codec"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/model"
	"github.com/ttpss930141011/auto-futures-trading-machine/pkg/observability"
)

// TickPublisher is MDG's channel T publisher. Publish never blocks: once
// the internal queue reaches hwm pending ticks, the oldest queued tick is
// evicted and counted as dropped to make room for the new one, rather than
// applying backpressure to the vendor callback that produced them.
type TickPublisher struct {
	nc      *nats.Conn
	subject string
	queue   chan model.TickEvent
	dropped atomic.Int64
	logger  *observability.Logger
	metrics *observability.MetricsProvider
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewTickPublisher starts the background goroutine that drains the queue to
// NATS. hwm bounds the number of ticks buffered ahead of the wire.
func NewTickPublisher(nc *nats.Conn, hwm int, logger *observability.Logger, metrics *observability.MetricsProvider) *TickPublisher {
	if hwm <= 0 {
		hwm = 100_000
	}
	p := &TickPublisher{
		nc:      nc,
		subject: SubjectTicks,
		queue:   make(chan model.TickEvent, hwm),
		logger:  logger,
		metrics: metrics,
		stopCh:  make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

func (p *TickPublisher) run() {
	defer p.wg.Done()
	for {
		select {
		case event := <-p.queue:
			data, err := codec.EncodeTickEvent(event)
			if err != nil {
				if p.logger != nil {
					p.logger.Error(context.Background(), "tick encode failed", err, map[string]interface{}{"commodity_id": event.Tick.CommodityID})
				}
				if p.metrics != nil {
					p.metrics.RecordCodecError(context.Background(), "T")
				}
				continue
			}
			if err := p.nc.Publish(p.subject, data); err != nil {
				if p.logger != nil {
					p.logger.Error(context.Background(), "tick publish failed", err, nil)
				}
				continue
			}
			if p.metrics != nil {
				p.metrics.RecordTickPublished(context.Background(), event.Tick.CommodityID)
			}
		case <-p.stopCh:
			return
		}
	}
}

// Publish enqueues event for publication. When the queue is at its
// high-water mark, the oldest queued tick is evicted to make room: a
// stale quote reaching the strategy late is worse than the vendor
// callback blocking, and the newest price is the one worth keeping.
// Returns true if event itself was accepted, false only when the queue
// had capacity zero and nothing could be enqueued.
func (p *TickPublisher) Publish(event model.TickEvent) bool {
	select {
	case p.queue <- event:
		return true
	default:
	}

	select {
	case oldest := <-p.queue:
		p.dropped.Add(1)
		if p.metrics != nil {
			p.metrics.RecordTickDropped(context.Background(), oldest.Tick.CommodityID)
		}
	default:
	}

	select {
	case p.queue <- event:
		return true
	default:
		p.dropped.Add(1)
		if p.metrics != nil {
			p.metrics.RecordTickDropped(context.Background(), event.Tick.CommodityID)
		}
		return false
	}
}

// Dropped returns the total number of ticks dropped due to a full queue.
func (p *TickPublisher) Dropped() int64 {
	return p.dropped.Load()
}

// Close stops the background publish loop and drains no further ticks.
func (p *TickPublisher) Close() {
	close(p.stopCh)
	p.wg.Wait()
}

// TickSubscriber is SE's channel T consumer.
type TickSubscriber struct {
	sub *nats.Subscription
}

// SubscribeTicks registers handler to be invoked for every TickEvent
// published on channel T. A frame that fails to decode is logged and
// skipped rather than propagated, matching MDG/SE's at-most-once,
// best-effort tick delivery.
func SubscribeTicks(nc *nats.Conn, logger *observability.Logger, metrics *observability.MetricsProvider, handler func(model.TickEvent)) (*TickSubscriber, error) {
	sub, err := nc.Subscribe(SubjectTicks, func(msg *nats.Msg) {
		event, err := codec.DecodeTickEvent(msg.Data)
		if err != nil {
			if logger != nil {
				logger.Error(context.Background(), "tick decode failed", err, nil)
			}
			if metrics != nil {
				metrics.RecordCodecError(context.Background(), "T")
			}
			return
		}
		handler(event)
	})
	if err != nil {
		return nil, err
	}
	return &TickSubscriber{sub: sub}, nil
}

// Unsubscribe stops receiving ticks.
func (s *TickSubscriber) Unsubscribe() error {
	return s.sub.Unsubscribe()
}

// TickPoller is SE's channel T consumer: a synchronous,
// bounded-timeout poll rather than an async callback, matching SE's
// single-threaded cooperative loop where the poll call is the only
// suspension point.
type TickPoller struct {
	sub *nats.Subscription
}

// NewTickPoller opens a synchronous subscription to channel T.
func NewTickPoller(nc *nats.Conn) (*TickPoller, error) {
	sub, err := nc.SubscribeSync(SubjectTicks)
	if err != nil {
		return nil, err
	}
	return &TickPoller{sub: sub}, nil
}

// Poll blocks up to timeout for the next TickEvent. ok is false if the
// timeout elapsed with no message; err is non-nil only for decode failures
// or a closed subscription, never for a plain timeout.
func (p *TickPoller) Poll(timeout time.Duration) (event model.TickEvent, ok bool, err error) {
	msg, err := p.sub.NextMsg(timeout)
	if err == nats.ErrTimeout {
		return model.TickEvent{}, false, nil
	}
	if err != nil {
		return model.TickEvent{}, false, err
	}
	event, err = codec.DecodeTickEvent(msg.Data)
	if err != nil {
		return model.TickEvent{}, false, err
	}
	return event, true, nil
}

// Close ends the poller's subscription.
func (p *TickPoller) Close() error {
	return p.sub.Unsubscribe()
}
