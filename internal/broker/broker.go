// Package broker defines the single translation point between the core's
// enums and whatever integer/string constants a concrete broker SDK
// expects: the dynamic enum to broker-integer conversion is centralized here
// no broker-specific constant is allowed to leak into SE, OEG, or DGW's own
// types. DGW is constructed with one Converter and never hardcodes a
// broker's encoding itself.
package broker

import "github.com/ttpss930141011/auto-futures-trading-machine/internal/model"

// Converter translates core enums to and from a broker SDK's wire values.
type Converter interface {
	SideToBroker(model.Side) int
	SideFromBroker(int) model.Side
	OrderTypeToBroker(model.OrderType) int
	OpenCloseToBroker(model.OpenClose) int
	TimeInForceToBroker(model.TimeInForce) int
	DayTradeToBroker(model.DayTrade) int
}

// DefaultConverter is a simple, stable integer mapping used by
// SimulatedBrokerClient and any broker SDK adapter that doesn't impose its
// own numbering.
type DefaultConverter struct{}

const (
	brokerSideBuy  = 0
	brokerSideSell = 1

	brokerOrderTypeMarket = 0

	brokerOpenCloseOpen  = 0
	brokerOpenCloseClose = 1
	brokerOpenCloseAuto  = 2

	brokerTIFIOC = 0
	brokerTIFROD = 1
	brokerTIFFOK = 2

	brokerDayTradeYes = 0
	brokerDayTradeNo  = 1
)

func (DefaultConverter) SideToBroker(s model.Side) int {
	if s == model.SideSell {
		return brokerSideSell
	}
	return brokerSideBuy
}

func (DefaultConverter) SideFromBroker(v int) model.Side {
	if v == brokerSideSell {
		return model.SideSell
	}
	return model.SideBuy
}

func (DefaultConverter) OrderTypeToBroker(model.OrderType) int {
	return brokerOrderTypeMarket
}

func (DefaultConverter) OpenCloseToBroker(o model.OpenClose) int {
	switch o {
	case model.OpenCloseClose:
		return brokerOpenCloseClose
	case model.OpenCloseAuto:
		return brokerOpenCloseAuto
	default:
		return brokerOpenCloseOpen
	}
}

func (DefaultConverter) TimeInForceToBroker(t model.TimeInForce) int {
	switch t {
	case model.TimeInForceROD:
		return brokerTIFROD
	case model.TimeInForceFOK:
		return brokerTIFFOK
	default:
		return brokerTIFIOC
	}
}

func (DefaultConverter) DayTradeToBroker(d model.DayTrade) int {
	if d == model.DayTradeNo {
		return brokerDayTradeNo
	}
	return brokerDayTradeYes
}
