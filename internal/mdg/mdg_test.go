package mdg_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/ttpss930141011/auto-futures-trading-machine/internal/channel"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/mdg"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/model"
)

func startTestNATS(t *testing.T) (*nats.Conn, func()) {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	require.NoError(t, err)
	go srv.Start()
	require.True(t, srv.ReadyForConnections(2*time.Second))

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)

	return nc, func() {
		nc.Close()
		srv.Shutdown()
	}
}

func TestGatewayPublishesNormalizedTicks(t *testing.T) {
	nc, cleanup := startTestNATS(t)
	defer cleanup()

	feed := mdg.NewReplayFeed([]mdg.RawTick{
		{CommodityID: "TXFG6", MatchPrice: decimal.NewFromFloat(18500)},
		{CommodityID: "TXFG6", MatchPrice: decimal.NewFromFloat(18501)},
	}, 0)

	publisher := channel.NewTickPublisher(nc, 16, nil, nil)
	defer publisher.Close()

	gw := mdg.New(feed, publisher, nil, nil)

	received := make(chan model.TickEvent, 4)
	sub, err := channel.SubscribeTicks(nc, nil, nil, func(e model.TickEvent) {
		received <- e
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.NoError(t, nc.Flush())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx, []string{"TXFG6"}) }()

	var got []model.TickEvent
	for i := 0; i < 2; i++ {
		select {
		case e := <-received:
			got = append(got, e)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for tick event")
		}
	}

	require.Len(t, got, 2)
	assert.Equal(t, "TXFG6", got[0].Tick.CommodityID)
	assert.True(t, got[0].Tick.MatchPrice.Equal(decimal.NewFromFloat(18500)))
	assert.False(t, got[0].When.IsZero())

	<-done
}

// panicPublisher panics on a chosen commodity id and records every other
// Publish call, used to exercise Gateway's vendor-callback recovery boundary
// without a running NATS server.
type panicPublisher struct {
	mu      sync.Mutex
	panicOn string
	calls   []model.TickEvent
}

func (p *panicPublisher) Publish(e model.TickEvent) bool {
	if e.Tick.CommodityID == p.panicOn {
		panic("simulated vendor callback panic")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, e)
	return true
}

func (p *panicPublisher) Dropped() int64 { return 0 }

func TestGatewayRecoversFromPanicAndKeepsRunning(t *testing.T) {
	feed := mdg.NewReplayFeed([]mdg.RawTick{
		{CommodityID: "BOOM", MatchPrice: decimal.NewFromInt(1)},
		{CommodityID: "TXFG6", MatchPrice: decimal.NewFromInt(18500)},
	}, 0)

	pub := &panicPublisher{panicOn: "BOOM"}
	gw := mdg.New(feed, pub, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := gw.Run(ctx, []string{"BOOM", "TXFG6"})
	require.NoError(t, err)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.calls, 1)
	assert.Equal(t, "TXFG6", pub.calls[0].Tick.CommodityID)
}

func TestGatewayDropsOnFullQueue(t *testing.T) {
	nc, cleanup := startTestNATS(t)
	defer cleanup()

	ticks := make([]mdg.RawTick, 100)
	for i := range ticks {
		ticks[i] = mdg.RawTick{CommodityID: "TXFG6", MatchPrice: decimal.NewFromInt(int64(18500 + i))}
	}
	feed := mdg.NewReplayFeed(ticks, 0)

	publisher := channel.NewTickPublisher(nc, 1, nil, nil)
	defer publisher.Close()
	gw := mdg.New(feed, publisher, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_ = gw.Run(ctx, []string{"TXFG6"})

	assert.Greater(t, gw.Dropped(), int64(0))
}
