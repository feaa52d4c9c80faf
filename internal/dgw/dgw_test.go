package dgw_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttpss930141011/auto-futures-trading-machine/internal/broker"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/dgw"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/model"
)

func newConnectedGateway(t *testing.T, queueCapacity int) *dgw.Gateway {
	t.Helper()
	client := dgw.NewSimulatedBrokerClient(broker.DefaultConverter{})
	gw := dgw.New(client, nil, nil, queueCapacity, 64)
	require.NoError(t, gw.Authenticate(context.Background()))
	t.Cleanup(func() { _ = gw.Shutdown(context.Background()) })
	return gw
}

func TestSendOrderSucceedsOnce(t *testing.T) {
	gw := newConnectedGateway(t, 16)

	req := model.OrderRequest{Account: "acct-1", Symbol: "TXFG6", Side: model.SideBuy, Quantity: 1, RequestID: "req-1"}
	resp := gw.HandleOrderRequest(context.Background(), req)

	assert.True(t, resp.OK)
	assert.NotEmpty(t, resp.OrderID)
}

func TestDuplicateRequestIDReturnsCachedResponse(t *testing.T) {
	gw := newConnectedGateway(t, 16)

	req := model.OrderRequest{Account: "acct-1", Symbol: "TXFG6", Side: model.SideBuy, Quantity: 1, RequestID: "req-dup"}
	first := gw.HandleOrderRequest(context.Background(), req)
	second := gw.HandleOrderRequest(context.Background(), req)

	assert.Equal(t, first.OrderID, second.OrderID)
}

func TestQueueFullReturnsBusyWithoutBrokerSubmission(t *testing.T) {
	// A single-slot queue with a handler loop that's already busy forces
	// the next concurrent request to observe BUSY.
	gw := newConnectedGateway(t, 1)

	var wg sync.WaitGroup
	results := make(chan model.OrderResponse, 50)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := model.OrderRequest{
				Account: "acct-1", Symbol: "TXFG6", Side: model.SideBuy, Quantity: 1,
				RequestID: "req-busy-" + time.Now().Format("150405.000000000") + "-" + string(rune('a'+i%26)),
			}
			results <- gw.HandleOrderRequest(context.Background(), req)
		}(i)
	}
	wg.Wait()
	close(results)

	orderIDs := make(map[string]bool)
	sawBusy := false
	for resp := range results {
		if !resp.OK && resp.ErrorKind == model.ErrorKindBusy {
			sawBusy = true
			continue
		}
		if resp.OK {
			assert.False(t, orderIDs[resp.OrderID], "duplicate order_id observed")
			orderIDs[resp.OrderID] = true
		}
	}
	assert.True(t, sawBusy, "expected at least one BUSY response under load")

	// Every broker fill adds one BUY lot, so the position equals the number
	// of successful orders only if no BUSY request reached the broker.
	positions, err := gw.GetPositions(context.Background(), "acct-1", "TXFG6")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, int64(len(orderIDs)), positions[0].Quantity)
}

func TestDisconnectedBrokerReturnsDisconnectedErrorKind(t *testing.T) {
	client := dgw.NewSimulatedBrokerClient(broker.DefaultConverter{})
	gw := dgw.New(client, nil, nil, 16, 64)

	resp := gw.HandleOrderRequest(context.Background(), model.OrderRequest{RequestID: "req-2"})

	assert.False(t, resp.OK)
	assert.Equal(t, model.ErrorKindBrokerDisconnected, resp.ErrorKind)
}
