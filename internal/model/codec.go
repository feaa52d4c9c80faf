package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

// This file implements the binary codec's custom extensions for decimals,
// timestamps, and enums: decimals travel as {scale, mantissa},
// timestamps as 64-bit UTC microseconds, and enums as their string name on
// the wire while accepting either a string or an integer tag on decode.

func encodeDecimal(enc *msgpack.Encoder, d decimal.Decimal) error {
	if err := enc.EncodeMapLen(2); err != nil {
		return err
	}
	if err := enc.EncodeString("scale"); err != nil {
		return err
	}
	if err := enc.EncodeUint8(uint8(d.Exponent() * -1)); err != nil {
		return err
	}
	if err := enc.EncodeString("mantissa"); err != nil {
		return err
	}
	return enc.EncodeInt64(d.Coefficient().Int64())
}

func decodeDecimal(dec *msgpack.Decoder) (decimal.Decimal, error) {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return decimal.Decimal{}, err
	}
	var scale uint8
	var mantissa int64
	for i := 0; i < n; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return decimal.Decimal{}, err
		}
		switch key {
		case "scale":
			v, err := dec.DecodeUint8()
			if err != nil {
				return decimal.Decimal{}, err
			}
			scale = v
		case "mantissa":
			v, err := dec.DecodeInt64()
			if err != nil {
				return decimal.Decimal{}, err
			}
			mantissa = v
		default:
			if err := dec.Skip(); err != nil {
				return decimal.Decimal{}, err
			}
		}
	}
	return decimal.New(mantissa, -int32(scale)), nil
}

func encodeTime(enc *msgpack.Encoder, t time.Time) error {
	micros := t.UTC().UnixMicro()
	return enc.EncodeInt64(micros)
}

func decodeTime(dec *msgpack.Decoder) (time.Time, error) {
	micros, err := dec.DecodeInt64()
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMicro(micros).UTC(), nil
}

// decodeEnumString accepts either the stable string name or a versioned
// integer tag and returns the string name, looking the tag up in names.
func decodeEnumString(dec *msgpack.Decoder, names map[int8]string) (string, error) {
	code, err := dec.PeekCode()
	if err != nil {
		return "", err
	}
	if msgpack.IsString(code) {
		return dec.DecodeString()
	}
	tag, err := dec.DecodeInt8()
	if err != nil {
		return "", err
	}
	name, ok := names[tag]
	if !ok {
		return "", fmt.Errorf("model: unknown enum tag %d", tag)
	}
	return name, nil
}

var sideTags = map[int8]string{0: string(SideBuy), 1: string(SideSell)}

func (s Side) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeString(string(s))
}

func (s *Side) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := decodeEnumString(dec, sideTags)
	if err != nil {
		return err
	}
	*s = Side(v)
	return nil
}

var openCloseTags = map[int8]string{0: string(OpenCloseOpen), 1: string(OpenCloseClose), 2: string(OpenCloseAuto)}

func (o OpenClose) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeString(string(o))
}

func (o *OpenClose) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := decodeEnumString(dec, openCloseTags)
	if err != nil {
		return err
	}
	*o = OpenClose(v)
	return nil
}

var tifTags = map[int8]string{0: string(TimeInForceIOC), 1: string(TimeInForceROD), 2: string(TimeInForceFOK)}

func (t TimeInForce) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeString(string(t))
}

func (t *TimeInForce) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := decodeEnumString(dec, tifTags)
	if err != nil {
		return err
	}
	*t = TimeInForce(v)
	return nil
}

var orderTypeTags = map[int8]string{0: string(OrderTypeMarket)}

func (o OrderType) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeString(string(o))
}

func (o *OrderType) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := decodeEnumString(dec, orderTypeTags)
	if err != nil {
		return err
	}
	*o = OrderType(v)
	return nil
}

var dayTradeTags = map[int8]string{0: string(DayTradeYes), 1: string(DayTradeNo)}

func (d DayTrade) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeString(string(d))
}

func (d *DayTrade) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := decodeEnumString(dec, dayTradeTags)
	if err != nil {
		return err
	}
	*d = DayTrade(v)
	return nil
}

var errorKindTags = map[int8]string{
	0: string(ErrorKindTransport), 1: string(ErrorKindCodec), 2: string(ErrorKindVendorCallback),
	3: string(ErrorKindBrokerTransient), 4: string(ErrorKindBrokerInvalid), 5: string(ErrorKindBrokerDisconnected),
	6: string(ErrorKindBusy), 7: string(ErrorKindLifecycle), 8: string(ErrorKindConfig),
}

func (e ErrorKind) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeString(string(e))
}

func (e *ErrorKind) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := decodeEnumString(dec, errorKindTags)
	if err != nil {
		return err
	}
	*e = ErrorKind(v)
	return nil
}

// --- envelope (de)serialization ---

func (t Tick) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(2); err != nil {
		return err
	}
	if err := enc.EncodeString("commodity_id"); err != nil {
		return err
	}
	if err := enc.EncodeString(t.CommodityID); err != nil {
		return err
	}
	if err := enc.EncodeString("match_price"); err != nil {
		return err
	}
	return encodeDecimal(enc, t.MatchPrice)
}

func (t *Tick) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return err
		}
		switch key {
		case "commodity_id":
			if t.CommodityID, err = dec.DecodeString(); err != nil {
				return err
			}
		case "match_price":
			if t.MatchPrice, err = decodeDecimal(dec); err != nil {
				return err
			}
		default:
			if err := dec.Skip(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e TickEvent) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(2); err != nil {
		return err
	}
	if err := enc.EncodeString("when"); err != nil {
		return err
	}
	if err := encodeTime(enc, e.When); err != nil {
		return err
	}
	if err := enc.EncodeString("tick"); err != nil {
		return err
	}
	return enc.Encode(e.Tick)
}

func (e *TickEvent) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return err
		}
		switch key {
		case "when":
			if e.When, err = decodeTime(dec); err != nil {
				return err
			}
		case "tick":
			if err := dec.Decode(&e.Tick); err != nil {
				return err
			}
		default:
			if err := dec.Skip(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s TradingSignal) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(5); err != nil {
		return err
	}
	fields := []struct {
		key string
		enc func() error
	}{
		{"when", func() error { return encodeTime(enc, s.When) }},
		{"operation", func() error { return enc.Encode(s.Operation) }},
		{"commodity_id", func() error { return enc.EncodeString(s.CommodityID) }},
		{"condition_id", func() error { return enc.EncodeString(s.ConditionID) }},
		{"quantity", func() error { return enc.EncodeInt64(s.Quantity) }},
	}
	for _, f := range fields {
		if err := enc.EncodeString(f.key); err != nil {
			return err
		}
		if err := f.enc(); err != nil {
			return err
		}
	}
	return nil
}

func (s *TradingSignal) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return err
		}
		switch key {
		case "when":
			if s.When, err = decodeTime(dec); err != nil {
				return err
			}
		case "operation":
			if err := dec.Decode(&s.Operation); err != nil {
				return err
			}
		case "commodity_id":
			if s.CommodityID, err = dec.DecodeString(); err != nil {
				return err
			}
		case "condition_id":
			if s.ConditionID, err = dec.DecodeString(); err != nil {
				return err
			}
		case "quantity":
			if s.Quantity, err = dec.DecodeInt64(); err != nil {
				return err
			}
		default:
			if err := dec.Skip(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o OrderRequest) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(11); err != nil {
		return err
	}
	type kv struct {
		key string
		fn  func() error
	}
	fields := []kv{
		{"account", func() error { return enc.EncodeString(o.Account) }},
		{"symbol", func() error { return enc.EncodeString(o.Symbol) }},
		{"side", func() error { return enc.Encode(o.Side) }},
		{"order_type", func() error { return enc.Encode(o.OrderType) }},
		{"price", func() error { return encodeDecimal(enc, o.Price) }},
		{"quantity", func() error { return enc.EncodeInt64(o.Quantity) }},
		{"open_close", func() error { return enc.Encode(o.OpenClose) }},
		{"time_in_force", func() error { return enc.Encode(o.TimeInForce) }},
		{"day_trade", func() error { return enc.Encode(o.DayTrade) }},
		{"note", func() error { return enc.EncodeString(o.Note) }},
		{"request_id", func() error { return enc.EncodeString(o.RequestID) }},
	}
	for _, f := range fields {
		if err := enc.EncodeString(f.key); err != nil {
			return err
		}
		if err := f.fn(); err != nil {
			return err
		}
	}
	return nil
}

func (o *OrderRequest) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return err
		}
		switch key {
		case "account":
			o.Account, err = dec.DecodeString()
		case "symbol":
			o.Symbol, err = dec.DecodeString()
		case "side":
			err = dec.Decode(&o.Side)
		case "order_type":
			err = dec.Decode(&o.OrderType)
		case "price":
			o.Price, err = decodeDecimal(dec)
		case "quantity":
			o.Quantity, err = dec.DecodeInt64()
		case "open_close":
			err = dec.Decode(&o.OpenClose)
		case "time_in_force":
			err = dec.Decode(&o.TimeInForce)
		case "day_trade":
			err = dec.Decode(&o.DayTrade)
		case "note":
			o.Note, err = dec.DecodeString()
		case "request_id":
			o.RequestID, err = dec.DecodeString()
		default:
			err = dec.Skip()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r OrderResponse) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(5); err != nil {
		return err
	}
	if err := enc.EncodeString("ok"); err != nil {
		return err
	}
	if err := enc.EncodeBool(r.OK); err != nil {
		return err
	}
	if err := enc.EncodeString("order_id"); err != nil {
		return err
	}
	if err := enc.EncodeString(r.OrderID); err != nil {
		return err
	}
	if err := enc.EncodeString("error_kind"); err != nil {
		return err
	}
	if err := enc.Encode(r.ErrorKind); err != nil {
		return err
	}
	if err := enc.EncodeString("error_detail"); err != nil {
		return err
	}
	if err := enc.EncodeString(r.ErrorDetail); err != nil {
		return err
	}
	if err := enc.EncodeString("request_id"); err != nil {
		return err
	}
	return enc.EncodeString(r.RequestID)
}

func (r *OrderResponse) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return err
		}
		switch key {
		case "ok":
			r.OK, err = dec.DecodeBool()
		case "order_id":
			r.OrderID, err = dec.DecodeString()
		case "error_kind":
			err = dec.Decode(&r.ErrorKind)
		case "error_detail":
			r.ErrorDetail, err = dec.DecodeString()
		case "request_id":
			r.RequestID, err = dec.DecodeString()
		default:
			err = dec.Skip()
		}
		if err != nil {
			return err
		}
	}
	return nil
}
