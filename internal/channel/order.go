package channel

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/ttpss930141011/auto-futures-trading-machine/internal/codec"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/model"
	"github.com/ttpss930141011/auto-futures-trading-machine/pkg/observability"
	"github.com/ttpss930141011/auto-futures-trading-machine/pkg/tradeerrors"
)

// OrderClient is OEG's channel O request side: one SendOrder
// call is one synchronous request/reply round trip to DGW, bounded by the
// context's deadline.
type OrderClient struct {
	nc      *nats.Conn
	metrics *observability.MetricsProvider
}

// NewOrderClient wraps nc for sending OrderRequests.
func NewOrderClient(nc *nats.Conn, metrics *observability.MetricsProvider) *OrderClient {
	return &OrderClient{nc: nc, metrics: metrics}
}

// SendOrder encodes req, sends it as a NATS request on channel O, and
// decodes the reply. A context deadline that elapses before DGW replies is
// surfaced as a TRANSPORT error so OEG's retry policy can act on it.
func (c *OrderClient) SendOrder(ctx context.Context, req model.OrderRequest) (model.OrderResponse, error) {
	data, err := codec.EncodeOrderRequest(req)
	if err != nil {
		return model.OrderResponse{}, err
	}

	msg, err := c.nc.RequestWithContext(ctx, SubjectOrders, data)
	if err != nil {
		return model.OrderResponse{}, tradeerrors.New(model.ErrorKindTransport, "channel.SendOrder", err)
	}

	resp, err := codec.DecodeOrderResponse(msg.Data)
	if err != nil {
		return model.OrderResponse{}, err
	}
	return resp, nil
}

// OrderServer is DGW's channel O reply side.
type OrderServer struct {
	sub *nats.Subscription
}

// SubscribeOrders registers handler to process every inbound OrderRequest
// and reply with its OrderResponse. handler is expected to apply DGW's own
// queue-capacity and dedupe rules before returning.
func SubscribeOrders(nc *nats.Conn, logger *observability.Logger, handler func(context.Context, model.OrderRequest) model.OrderResponse) (*OrderServer, error) {
	sub, err := nc.Subscribe(SubjectOrders, func(msg *nats.Msg) {
		req, err := codec.DecodeOrderRequest(msg.Data)
		if err != nil {
			if logger != nil {
				logger.Error(context.Background(), "order request decode failed", err, nil)
			}
			reply, _ := codec.EncodeOrderResponse(model.OrderResponse{
				OK:          false,
				ErrorKind:   model.ErrorKindCodec,
				ErrorDetail: err.Error(),
			})
			_ = msg.Respond(reply)
			return
		}

		resp := handler(context.Background(), req)
		data, err := codec.EncodeOrderResponse(resp)
		if err != nil {
			if logger != nil {
				logger.Error(context.Background(), "order response encode failed", err, nil)
			}
			return
		}
		_ = msg.Respond(data)
	})
	if err != nil {
		return nil, err
	}
	return &OrderServer{sub: sub}, nil
}

// Unsubscribe stops serving order requests.
func (s *OrderServer) Unsubscribe() error {
	return s.sub.Unsubscribe()
}
