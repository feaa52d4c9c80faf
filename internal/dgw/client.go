package dgw

import (
	"context"

	"github.com/ttpss930141011/auto-futures-trading-machine/internal/model"
)

// BrokerClient is the sole capability DGW uses to reach the broker SDK
// as the sole owner of the broker API handle. Every method here is
// only ever called from DGW's single handler goroutine; the broker SDK
// this wraps is assumed non-reentrant.
type BrokerClient interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool
	PlaceOrder(ctx context.Context, req model.OrderRequest) (model.OrderResponse, error)
	GetPositions(ctx context.Context, account, symbol string) ([]model.Position, error)
}
