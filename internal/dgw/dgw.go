// Package dgw implements the DLL/Broker Gateway: the sole
// owner of the broker API handle, serving send_order/get_positions/
// health_check over channel O through one dedicated handler goroutine, a
// bounded request queue, and an LRU dedupe cache.
package dgw

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ttpss930141011/auto-futures-trading-machine/internal/model"
	"github.com/ttpss930141011/auto-futures-trading-machine/pkg/observability"
	"github.com/ttpss930141011/auto-futures-trading-machine/pkg/tradeerrors"
)

// DefaultQueueCapacity is the bounded handler queue capacity.
const DefaultQueueCapacity = 256

// DefaultDedupeCacheSize is the LRU dedupe cache size.
const DefaultDedupeCacheSize = 4_096

// ReconnectBackoffs is the fixed reconnect delay schedule:
// 1s, 2s, 5s, 10s, capped at 30s thereafter.
var ReconnectBackoffs = []time.Duration{
	1 * time.Second, 2 * time.Second, 5 * time.Second, 10 * time.Second, 30 * time.Second,
}

type job struct {
	req    model.OrderRequest
	respCh chan model.OrderResponse
}

// Gateway is DGW's runtime.
type Gateway struct {
	broker  BrokerClient
	logger  *observability.Logger
	metrics *observability.MetricsProvider

	queue chan job
	dedup *lru.Cache[string, model.OrderResponse]

	mu    sync.RWMutex
	state State

	reconnectBackoffs []time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Gateway in the Disconnected state. queueCapacity and
// dedupeCacheSize fall back to their package defaults when zero.
func New(broker BrokerClient, logger *observability.Logger, metrics *observability.MetricsProvider, queueCapacity, dedupeCacheSize int) *Gateway {
	if queueCapacity <= 0 {
		queueCapacity = DefaultQueueCapacity
	}
	if dedupeCacheSize <= 0 {
		dedupeCacheSize = DefaultDedupeCacheSize
	}
	cache, _ := lru.New[string, model.OrderResponse](dedupeCacheSize)

	return &Gateway{
		broker:            broker,
		logger:            logger,
		metrics:           metrics,
		queue:             make(chan job, queueCapacity),
		dedup:             cache,
		state:             StateDisconnected,
		reconnectBackoffs: ReconnectBackoffs,
		stopCh:            make(chan struct{}),
	}
}

// State returns DGW's current connection state.
func (g *Gateway) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

func (g *Gateway) setState(s State) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
}

// Authenticate transitions Disconnected -> Authenticating -> Connected.
// Only the Supervisor calls this: DGW never holds broker credentials
// itself.
func (g *Gateway) Authenticate(ctx context.Context) error {
	g.setState(StateAuthenticating)
	if err := g.broker.Connect(ctx); err != nil {
		g.setState(StateDisconnected)
		return tradeerrors.New(model.ErrorKindBrokerDisconnected, "dgw.Authenticate", err)
	}
	g.setState(StateConnected)

	g.wg.Add(1)
	go g.handlerLoop()
	return nil
}

// Shutdown stops the handler loop and disconnects the broker.
func (g *Gateway) Shutdown(ctx context.Context) error {
	close(g.stopCh)
	g.wg.Wait()
	g.setState(StateDisconnected)
	return g.broker.Disconnect(ctx)
}

// HandleOrderRequest is DGW's channel O send_order handler: it dedupes by
// request_id, enforces the bounded queue, and waits for the handler
// goroutine's result.
func (g *Gateway) HandleOrderRequest(ctx context.Context, req model.OrderRequest) model.OrderResponse {
	if cached, ok := g.dedup.Get(req.RequestID); ok {
		if g.metrics != nil {
			g.metrics.RecordDedupeHit(ctx)
		}
		return cached
	}

	if g.State() != StateConnected && g.State() != StateDegraded {
		return model.OrderResponse{
			OK:          false,
			ErrorKind:   model.ErrorKindBrokerDisconnected,
			ErrorDetail: "broker session not connected",
			RequestID:   req.RequestID,
		}
	}

	j := job{req: req, respCh: make(chan model.OrderResponse, 1)}
	select {
	case g.queue <- j:
	default:
		if g.metrics != nil {
			g.metrics.RecordOrderBusy(ctx)
		}
		return model.OrderResponse{OK: false, ErrorKind: model.ErrorKindBusy, ErrorDetail: "handler queue full", RequestID: req.RequestID}
	}
	if g.metrics != nil {
		g.metrics.SetDGWQueueDepth(ctx, 1)
	}

	select {
	case resp := <-j.respCh:
		g.dedup.Add(req.RequestID, resp)
		return resp
	case <-ctx.Done():
		return model.OrderResponse{OK: false, ErrorKind: model.ErrorKindTransport, ErrorDetail: "request canceled", RequestID: req.RequestID}
	}
}

// GetPositions is DGW's channel O get_positions handler: read-only, no
// queue, no side effects on broker state.
func (g *Gateway) GetPositions(ctx context.Context, account, symbol string) ([]model.Position, error) {
	return g.broker.GetPositions(ctx, account, symbol)
}

// HealthCheck is DGW's channel O health_check handler.
func (g *Gateway) HealthCheck() (ok bool, brokerConnected bool) {
	return true, g.broker.IsConnected()
}

// handlerLoop is the single dedicated goroutine that is the exclusive
// caller of broker-handle methods.
func (g *Gateway) handlerLoop() {
	defer g.wg.Done()
	for {
		select {
		case j := <-g.queue:
			if g.metrics != nil {
				g.metrics.SetDGWQueueDepth(context.Background(), -1)
			}
			j.respCh <- g.callBroker(j.req)
		case <-g.stopCh:
			return
		}
	}
}

func (g *Gateway) callBroker(req model.OrderRequest) model.OrderResponse {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := g.broker.PlaceOrder(ctx, req)
	if err != nil {
		kind, ok := tradeerrors.KindOf(err)
		if !ok {
			kind = model.ErrorKindBrokerTransient
		}
		if kind == model.ErrorKindBrokerDisconnected {
			go g.reconnect()
		}
		return model.OrderResponse{OK: false, ErrorKind: kind, ErrorDetail: err.Error(), RequestID: req.RequestID}
	}
	return resp
}

// reconnect retries Connect on the fixed backoff schedule until it
// succeeds or Shutdown is called. Entered from Degraded, exits back to
// Connected.
func (g *Gateway) reconnect() {
	g.setState(StateDegraded)
	attempt := 0
	for {
		select {
		case <-g.stopCh:
			return
		default:
		}

		delay := g.reconnectBackoffs[len(g.reconnectBackoffs)-1]
		if attempt < len(g.reconnectBackoffs) {
			delay = g.reconnectBackoffs[attempt]
		}
		attempt++

		select {
		case <-time.After(delay):
		case <-g.stopCh:
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := g.broker.Connect(ctx)
		cancel()
		if g.metrics != nil {
			g.metrics.RecordBrokerReconnect(context.Background())
		}
		if err == nil {
			g.setState(StateConnected)
			return
		}
	}
}
