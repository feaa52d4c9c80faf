package oeg_test

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttpss930141011/auto-futures-trading-machine/internal/channel"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/model"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/oeg"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/session"
)

func startTestNATS(t *testing.T) (*nats.Conn, func()) {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	require.NoError(t, err)
	go srv.Start()
	require.True(t, srv.ReadyForConnections(2 * time.Second))

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)

	return nc, func() {
		nc.Close()
		srv.Shutdown()
	}
}

func TestGatewaySubmitsOrderFromSignal(t *testing.T) {
	nc, cleanup := startTestNATS(t)
	defer cleanup()

	var seen model.OrderRequest
	server, err := channel.SubscribeOrders(nc, nil, func(ctx context.Context, req model.OrderRequest) model.OrderResponse {
		seen = req
		return model.OrderResponse{OK: true, OrderID: "ord-1", RequestID: req.RequestID}
	})
	require.NoError(t, err)
	defer server.Unsubscribe()
	require.NoError(t, nc.Flush())

	poller, err := channel.NewSignalPoller(nc)
	require.NoError(t, err)
	defer poller.Close()

	sessions := session.NewStore()
	sessions.Login("acct-1")

	client := channel.NewOrderClient(nc, nil)
	gw := oeg.New(poller, client, sessions, nil, nil, 50*time.Millisecond, time.Second, 3)

	ctx, cancel := context.WithCancel(context.Background())
	go gw.Run(ctx)
	defer func() { gw.Stop(); cancel() }()

	publisher := channel.NewSignalPublisher(nc, 16, nil, nil)
	defer publisher.Close()
	publisher.Publish(model.TradingSignal{
		When:        time.Now().UTC(),
		Operation:   model.SideBuy,
		CommodityID: "TXFG6",
		ConditionID: "cond-1",
		Quantity:    1,
	})

	require.Eventually(t, func() bool {
		return seen.RequestID != ""
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, "acct-1", seen.Account)
	assert.Equal(t, "TXFG6", seen.Symbol)
	assert.Equal(t, model.SideBuy, seen.Side)
	assert.Equal(t, model.OrderTypeMarket, seen.OrderType)
	assert.Equal(t, model.TimeInForceIOC, seen.TimeInForce)
	assert.Equal(t, model.OpenCloseAuto, seen.OpenClose)
	assert.Equal(t, model.DayTradeNo, seen.DayTrade)
	assert.NotEmpty(t, seen.RequestID)
}

func TestSubmitReturnsConfigErrorWithNoActiveSession(t *testing.T) {
	sessions := session.NewStore() // no Login call: LoggedIn stays false
	client := channel.NewOrderClient(nil, nil)
	gw := oeg.New(nil, client, sessions, nil, nil, time.Millisecond, time.Second, 1)

	resp := gw.Submit(context.Background(), model.TradingSignal{
		When:        time.Now().UTC(),
		Operation:   model.SideBuy,
		CommodityID: "TXFG6",
		ConditionID: "cond-1",
		Quantity:    1,
	})

	assert.False(t, resp.OK)
	assert.Equal(t, model.ErrorKindConfig, resp.ErrorKind)
	assert.NotEmpty(t, resp.RequestID)
}

func TestGatewaySkipsSubmissionWithNoActiveSession(t *testing.T) {
	nc, cleanup := startTestNATS(t)
	defer cleanup()

	var callCount int
	server, err := channel.SubscribeOrders(nc, nil, func(ctx context.Context, req model.OrderRequest) model.OrderResponse {
		callCount++
		return model.OrderResponse{OK: true, OrderID: "ord-1", RequestID: req.RequestID}
	})
	require.NoError(t, err)
	defer server.Unsubscribe()
	require.NoError(t, nc.Flush())

	poller, err := channel.NewSignalPoller(nc)
	require.NoError(t, err)
	defer poller.Close()

	sessions := session.NewStore() // no Login call: LoggedIn stays false

	client := channel.NewOrderClient(nc, nil)
	gw := oeg.New(poller, client, sessions, nil, nil, 20*time.Millisecond, time.Second, 3)

	ctx, cancel := context.WithCancel(context.Background())
	go gw.Run(ctx)
	defer func() { gw.Stop(); cancel() }()

	publisher := channel.NewSignalPublisher(nc, 16, nil, nil)
	defer publisher.Close()
	publisher.Publish(model.TradingSignal{
		When:        time.Now().UTC(),
		Operation:   model.SideBuy,
		CommodityID: "TXFG6",
		ConditionID: "cond-1",
		Quantity:    1,
	})

	// Give the poll loop several cycles to have observed and discarded the
	// signal, then confirm DGW's handler was never invoked.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, callCount)
}
