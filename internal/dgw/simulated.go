package dgw

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ttpss930141011/auto-futures-trading-machine/internal/broker"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/model"
)

// SimulatedBrokerClient is a deterministic BrokerClient used by DGW's test
// suite and by the Supervisor's dry-run mode, standing in for a vendor
// broker SDK adapter. It fills orders immediately at
// the requested price and tracks positions per account/symbol.
type SimulatedBrokerClient struct {
	converter broker.Converter
	connected atomic.Bool

	mu        sync.Mutex
	positions map[string]model.Position
	orderSeq  int64
}

// NewSimulatedBrokerClient returns a SimulatedBrokerClient, starting
// disconnected until Connect is called.
func NewSimulatedBrokerClient(converter broker.Converter) *SimulatedBrokerClient {
	if converter == nil {
		converter = broker.DefaultConverter{}
	}
	return &SimulatedBrokerClient{converter: converter, positions: make(map[string]model.Position)}
}

func (c *SimulatedBrokerClient) Connect(ctx context.Context) error {
	c.connected.Store(true)
	return nil
}

func (c *SimulatedBrokerClient) Disconnect(ctx context.Context) error {
	c.connected.Store(false)
	return nil
}

func (c *SimulatedBrokerClient) IsConnected() bool {
	return c.connected.Load()
}

func (c *SimulatedBrokerClient) PlaceOrder(ctx context.Context, req model.OrderRequest) (model.OrderResponse, error) {
	if !c.IsConnected() {
		return model.OrderResponse{
			OK:          false,
			ErrorKind:   model.ErrorKindBrokerDisconnected,
			ErrorDetail: "broker not connected",
			RequestID:   req.RequestID,
		}, nil
	}

	// Translate through the converter even though the simulator never
	// sends these values anywhere: this exercises the single translation
	// point the same way a real SDK adapter would.
	_ = c.converter.SideToBroker(req.Side)
	_ = c.converter.OrderTypeToBroker(req.OrderType)
	_ = c.converter.OpenCloseToBroker(req.OpenClose)
	_ = c.converter.TimeInForceToBroker(req.TimeInForce)
	_ = c.converter.DayTradeToBroker(req.DayTrade)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.orderSeq++
	orderID := formatOrderID(c.orderSeq)

	key := req.Account + ":" + req.Symbol
	pos, exists := c.positions[key]
	if !exists {
		pos = model.Position{Account: req.Account, Symbol: req.Symbol, Side: req.Side, OpenedAt: time.Now().UTC()}
	}
	pos.Quantity += req.Quantity * int64(req.Side.Sign())
	pos.AvgPrice = req.Price
	c.positions[key] = pos

	return model.OrderResponse{OK: true, OrderID: orderID, RequestID: req.RequestID}, nil
}

func (c *SimulatedBrokerClient) GetPositions(ctx context.Context, account, symbol string) ([]model.Position, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []model.Position
	for key, pos := range c.positions {
		if pos.Account != account {
			continue
		}
		if symbol != "" && pos.Symbol != symbol {
			continue
		}
		_ = key
		out = append(out, pos)
	}
	return out, nil
}

func formatOrderID(seq int64) string {
	return "SIM-" + strconv.FormatInt(seq, 10)
}
