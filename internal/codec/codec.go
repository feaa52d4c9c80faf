// Package codec wraps the msgpack wire format used on channels T, S, and O.
// Every encode/decode failure (truncated payloads, corrupt headers,
// unknown enum tags) is normalized into a pkg/tradeerrors CODEC error
// rather than panicking or leaking a raw msgpack error type, so callers can
// treat a bad frame as a recoverable per-message event instead of a fatal
// one.
package codec

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ttpss930141011/auto-futures-trading-machine/internal/model"
	"github.com/ttpss930141011/auto-futures-trading-machine/pkg/tradeerrors"
)

// Encode serializes v (a TickEvent, TradingSignal, OrderRequest, or
// OrderResponse) to its msgpack wire form.
func Encode(v interface{}) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, tradeerrors.New(model.ErrorKindCodec, "codec.Encode", err)
	}
	return b, nil
}

// Decode deserializes a msgpack frame into out, which must be a pointer to
// one of the envelope types. A truncated or malformed frame returns a CODEC
// error rather than panicking.
func Decode(data []byte, out interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = tradeerrors.Newf(model.ErrorKindCodec, "codec.Decode", "panic decoding frame: %v", r)
		}
	}()
	if decErr := msgpack.Unmarshal(data, out); decErr != nil {
		return tradeerrors.New(model.ErrorKindCodec, "codec.Decode", decErr)
	}
	return nil
}

// EncodeTickEvent encodes a TickEvent for publication on channel T.
func EncodeTickEvent(e model.TickEvent) ([]byte, error) { return Encode(e) }

// DecodeTickEvent decodes a channel T frame.
func DecodeTickEvent(data []byte) (model.TickEvent, error) {
	var e model.TickEvent
	if err := Decode(data, &e); err != nil {
		return model.TickEvent{}, err
	}
	return e, nil
}

// EncodeTradingSignal encodes a TradingSignal for channel S.
func EncodeTradingSignal(s model.TradingSignal) ([]byte, error) { return Encode(s) }

// DecodeTradingSignal decodes a channel S frame.
func DecodeTradingSignal(data []byte) (model.TradingSignal, error) {
	var s model.TradingSignal
	if err := Decode(data, &s); err != nil {
		return model.TradingSignal{}, err
	}
	return s, nil
}

// EncodeOrderRequest encodes an OrderRequest for channel O's request leg.
func EncodeOrderRequest(o model.OrderRequest) ([]byte, error) { return Encode(o) }

// DecodeOrderRequest decodes a channel O request frame.
func DecodeOrderRequest(data []byte) (model.OrderRequest, error) {
	var o model.OrderRequest
	if err := Decode(data, &o); err != nil {
		return model.OrderRequest{}, err
	}
	return o, nil
}

// EncodeOrderResponse encodes an OrderResponse for channel O's reply leg.
func EncodeOrderResponse(r model.OrderResponse) ([]byte, error) { return Encode(r) }

// DecodeOrderResponse decodes a channel O reply frame.
func DecodeOrderResponse(data []byte) (model.OrderResponse, error) {
	var r model.OrderResponse
	if err := Decode(data, &r); err != nil {
		return model.OrderResponse{}, err
	}
	return r, nil
}
