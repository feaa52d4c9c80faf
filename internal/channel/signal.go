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

// SignalPublisher is SE's channel S producer (PUSH side). Unlike channel T,
// which evicts its oldest queued tick, a full queue here drops the newest
// (incoming) signal rather than blocking SE's condition evaluation loop.
type SignalPublisher struct {
	nc      *nats.Conn
	queue   chan model.TradingSignal
	dropped atomic.Int64
	logger  *observability.Logger
	metrics *observability.MetricsProvider
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewSignalPublisher starts the background drain goroutine. hwm bounds the
// number of signals buffered ahead of the wire.
func NewSignalPublisher(nc *nats.Conn, hwm int, logger *observability.Logger, metrics *observability.MetricsProvider) *SignalPublisher {
	if hwm <= 0 {
		hwm = 1_024
	}
	p := &SignalPublisher{
		nc:      nc,
		queue:   make(chan model.TradingSignal, hwm),
		logger:  logger,
		metrics: metrics,
		stopCh:  make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

func (p *SignalPublisher) run() {
	defer p.wg.Done()
	for {
		select {
		case sig := <-p.queue:
			data, err := codec.EncodeTradingSignal(sig)
			if err != nil {
				if p.logger != nil {
					p.logger.Error(context.Background(), "signal encode failed", err, map[string]interface{}{"condition_id": sig.ConditionID})
				}
				if p.metrics != nil {
					p.metrics.RecordCodecError(context.Background(), "S")
				}
				continue
			}
			if err := p.nc.Publish(SubjectSignals, data); err != nil {
				if p.logger != nil {
					p.logger.Error(context.Background(), "signal publish failed", err, nil)
				}
				continue
			}
			if p.metrics != nil {
				p.metrics.RecordSignalEmitted(context.Background(), string(sig.Operation))
			}
		case <-p.stopCh:
			return
		}
	}
}

// Publish enqueues sig for delivery. Returns true if accepted, false if the
// queue was full and the signal was dropped.
func (p *SignalPublisher) Publish(sig model.TradingSignal) bool {
	select {
	case p.queue <- sig:
		return true
	default:
		p.dropped.Add(1)
		if p.metrics != nil {
			p.metrics.RecordSignalDropped(context.Background())
		}
		return false
	}
}

// Dropped returns the number of signals dropped due to a full queue.
func (p *SignalPublisher) Dropped() int64 {
	return p.dropped.Load()
}

// Close stops the background publish loop.
func (p *SignalPublisher) Close() {
	close(p.stopCh)
	p.wg.Wait()
}

// SignalSubscriber is OEG's channel S consumer (PULL side). Competing OEG
// workers join the same queue group so each signal is delivered to exactly
// one of them.
type SignalSubscriber struct {
	sub *nats.Subscription
}

// SubscribeSignals registers handler to be invoked for every TradingSignal
// delivered to this OEG worker.
func SubscribeSignals(nc *nats.Conn, logger *observability.Logger, metrics *observability.MetricsProvider, handler func(model.TradingSignal)) (*SignalSubscriber, error) {
	sub, err := nc.QueueSubscribe(SubjectSignals, SignalQueueGroup, func(msg *nats.Msg) {
		sig, err := codec.DecodeTradingSignal(msg.Data)
		if err != nil {
			if logger != nil {
				logger.Error(context.Background(), "signal decode failed", err, nil)
			}
			if metrics != nil {
				metrics.RecordCodecError(context.Background(), "S")
			}
			return
		}
		handler(sig)
	})
	if err != nil {
		return nil, err
	}
	return &SignalSubscriber{sub: sub}, nil
}

// Unsubscribe stops receiving signals.
func (s *SignalSubscriber) Unsubscribe() error {
	return s.sub.Unsubscribe()
}

// SignalPoller is OEG's synchronous, bounded-timeout channel S consumer,
// pulled with a 100ms timeout.
type SignalPoller struct {
	sub *nats.Subscription
}

// NewSignalPoller opens a synchronous, queue-grouped subscription to
// channel S so competing OEG workers still split the signal stream.
func NewSignalPoller(nc *nats.Conn) (*SignalPoller, error) {
	sub, err := nc.QueueSubscribeSync(SubjectSignals, SignalQueueGroup)
	if err != nil {
		return nil, err
	}
	return &SignalPoller{sub: sub}, nil
}

// Poll blocks up to timeout for the next TradingSignal.
func (p *SignalPoller) Poll(timeout time.Duration) (sig model.TradingSignal, ok bool, err error) {
	msg, err := p.sub.NextMsg(timeout)
	if err == nats.ErrTimeout {
		return model.TradingSignal{}, false, nil
	}
	if err != nil {
		return model.TradingSignal{}, false, err
	}
	sig, err = codec.DecodeTradingSignal(msg.Data)
	if err != nil {
		return model.TradingSignal{}, false, err
	}
	return sig, true, nil
}

// Close ends the poller's subscription.
func (p *SignalPoller) Close() error {
	return p.sub.Unsubscribe()
}
