package codec_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttpss930141011/auto-futures-trading-machine/internal/codec"
	"github.com/ttpss930141011/auto-futures-trading-machine/internal/model"
	"github.com/ttpss930141011/auto-futures-trading-machine/pkg/tradeerrors"
)

func TestTickEventRoundTrip(t *testing.T) {
	want := model.TickEvent{
		When: time.Date(2026, 7, 30, 9, 0, 0, 123_000, time.UTC),
		Tick: model.Tick{
			CommodityID: "TXFG6",
			MatchPrice:  decimal.NewFromFloat(18523.5),
		},
	}

	data, err := codec.EncodeTickEvent(want)
	require.NoError(t, err)

	got, err := codec.DecodeTickEvent(data)
	require.NoError(t, err)

	assert.True(t, want.When.Equal(got.When))
	assert.Equal(t, want.Tick.CommodityID, got.Tick.CommodityID)
	assert.True(t, want.Tick.MatchPrice.Equal(got.Tick.MatchPrice))
}

func TestTradingSignalRoundTrip(t *testing.T) {
	want := model.TradingSignal{
		When:        time.Date(2026, 7, 30, 9, 0, 1, 0, time.UTC),
		Operation:   model.SideBuy,
		CommodityID: "TXFG6",
		ConditionID: "cond-1",
		Quantity:    2,
	}

	data, err := codec.EncodeTradingSignal(want)
	require.NoError(t, err)

	got, err := codec.DecodeTradingSignal(data)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestOrderRequestRoundTrip(t *testing.T) {
	want := model.OrderRequest{
		Account:     "acct-1",
		Symbol:      "TXFG6",
		Side:        model.SideBuy,
		OrderType:   model.OrderTypeMarket,
		Price:       decimal.NewFromFloat(18500),
		Quantity:    1,
		OpenClose:   model.OpenCloseOpen,
		TimeInForce: model.TimeInForceIOC,
		DayTrade:    model.DayTradeYes,
		Note:        "se-triggered",
		RequestID:   "01J9Z8X0Q0Q0Q0Q0Q0Q0Q0Q0Q0",
	}

	data, err := codec.EncodeOrderRequest(want)
	require.NoError(t, err)

	got, err := codec.DecodeOrderRequest(data)
	require.NoError(t, err)

	assert.Equal(t, want.Account, got.Account)
	assert.Equal(t, want.Side, got.Side)
	assert.Equal(t, want.OpenClose, got.OpenClose)
	assert.Equal(t, want.TimeInForce, got.TimeInForce)
	assert.Equal(t, want.DayTrade, got.DayTrade)
	assert.Equal(t, want.RequestID, got.RequestID)
	assert.True(t, want.Price.Equal(got.Price))
}

func TestOrderResponseRoundTrip(t *testing.T) {
	want := model.OrderResponse{
		OK:        false,
		ErrorKind: model.ErrorKindBrokerTransient,
		ErrorDetail: "broker busy",
		RequestID: "01J9Z8X0Q0Q0Q0Q0Q0Q0Q0Q0Q1",
	}

	data, err := codec.EncodeOrderResponse(want)
	require.NoError(t, err)

	got, err := codec.DecodeOrderResponse(data)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeTruncatedFrameReturnsCodecError(t *testing.T) {
	_, err := codec.DecodeTickEvent([]byte{0x81, 0xa4}) // truncated map header
	require.Error(t, err)

	kind, ok := tradeerrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrorKindCodec, kind)
}
