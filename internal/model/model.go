// Package model holds the wire- and domain-level types shared by MDG, SE,
// OEG, and DGW: Tick, TickEvent, Condition, ConditionRuntimeState,
// TradingSignal, OrderRequest/Response, Position, and the component health
// types.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the BUY/SELL action a Condition or OrderRequest carries.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Sign returns +1 for BUY and -1 for SELL so entry/exit comparisons can be
// written once and mirrored by sign rather than duplicated per side.
func (s Side) Sign() int {
	if s == SideSell {
		return -1
	}
	return 1
}

// Opposite returns the exit side for a given entry side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Tick is an immutable snapshot of one vendor price update.
type Tick struct {
	CommodityID string          `msgpack:"commodity_id"`
	MatchPrice  decimal.Decimal `msgpack:"match_price"`
}

// TickEvent is the envelope MDG publishes on channel T.
type TickEvent struct {
	When time.Time `msgpack:"when"`
	Tick Tick      `msgpack:"tick"`
}

// Condition is a user-configured strategy rule. Conditions are owned by an
// external store; SE holds only read references to them.
type Condition struct {
	ID            string          `msgpack:"id"`
	CommodityID   string          `msgpack:"commodity_id"`
	Action        Side            `msgpack:"action"`
	TargetPrice   decimal.Decimal `msgpack:"target_price"`
	TurningPoint  decimal.Decimal `msgpack:"turning_point"`
	Quantity      int64           `msgpack:"quantity"`
	TakeProfit    decimal.Decimal `msgpack:"take_profit"`
	StopLoss      decimal.Decimal `msgpack:"stop_loss"`
	IsFollowing   bool            `msgpack:"is_following"`
}

// ConditionState is one Condition's position in the Armed/Triggered/InPosition/Closed state machine.
type ConditionState string

const (
	StateArmed      ConditionState = "ARMED"
	StateTriggered  ConditionState = "TRIGGERED"
	StateInPosition ConditionState = "IN_POSITION"
	StateClosed     ConditionState = "CLOSED"
)

// ConditionRuntimeState is SE's in-memory, per-condition runtime state.
type ConditionRuntimeState struct {
	State             ConditionState
	TriggerLow        decimal.Decimal // trigger price: lowest seen while Triggered on the buy side, highest on the sell side
	EntryPrice        decimal.Decimal
	PositionSide      Side
	LastObservedPrice decimal.Decimal
}

// NewConditionRuntimeState returns the default Armed state for a freshly
// (re-)armed Condition: armed/not-in-position is represented by
// State==StateArmed rather than separate bools.
func NewConditionRuntimeState() *ConditionRuntimeState {
	return &ConditionRuntimeState{State: StateArmed}
}

// TradingSignal is emitted by SE on a Condition state transition.
type TradingSignal struct {
	When        time.Time `msgpack:"when"`
	Operation   Side      `msgpack:"operation"`
	CommodityID string    `msgpack:"commodity_id"`
	ConditionID string    `msgpack:"condition_id"`
	Quantity    int64     `msgpack:"quantity"`
}

// OpenClose describes whether an OrderRequest opens, closes, or lets the
// broker decide (AUTO).
type OpenClose string

const (
	OpenCloseOpen  OpenClose = "OPEN"
	OpenCloseClose OpenClose = "CLOSE"
	OpenCloseAuto  OpenClose = "AUTO"
)

// TimeInForce constrains how long an order rests on the book.
type TimeInForce string

const (
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceROD TimeInForce = "ROD"
	TimeInForceFOK TimeInForce = "FOK"
)

// OrderType is the order type every OrderRequest carries.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
)

// DayTrade flags whether an order is a same-day round trip.
type DayTrade string

const (
	DayTradeYes DayTrade = "YES"
	DayTradeNo  DayTrade = "NO"
)

// OrderRequest is OEG's wire message to DGW on channel O.
type OrderRequest struct {
	Account     string          `msgpack:"account"`
	Symbol      string          `msgpack:"symbol"`
	Side        Side            `msgpack:"side"`
	OrderType   OrderType       `msgpack:"order_type"`
	Price       decimal.Decimal `msgpack:"price"`
	Quantity    int64           `msgpack:"quantity"`
	OpenClose   OpenClose       `msgpack:"open_close"`
	TimeInForce TimeInForce     `msgpack:"time_in_force"`
	DayTrade    DayTrade        `msgpack:"day_trade"`
	Note        string          `msgpack:"note"`
	RequestID   string          `msgpack:"request_id"`
}

// ErrorKind enumerates the error kinds every component tags a failure with.
type ErrorKind string

const (
	ErrorKindTransport          ErrorKind = "TRANSPORT"
	ErrorKindCodec              ErrorKind = "CODEC"
	ErrorKindVendorCallback     ErrorKind = "VENDOR_CALLBACK"
	ErrorKindBrokerTransient    ErrorKind = "BROKER_TRANSIENT"
	ErrorKindBrokerInvalid      ErrorKind = "BROKER_INVALID"
	ErrorKindBrokerDisconnected ErrorKind = "BROKER_DISCONNECTED"
	ErrorKindBusy               ErrorKind = "BUSY"
	ErrorKindLifecycle          ErrorKind = "LIFECYCLE"
	ErrorKindConfig             ErrorKind = "CONFIG"
)

// OrderResponse is DGW's reply to a send_order request.
type OrderResponse struct {
	OK          bool      `msgpack:"ok"`
	OrderID     string    `msgpack:"order_id,omitempty"`
	ErrorKind   ErrorKind `msgpack:"error_kind,omitempty"`
	ErrorDetail string    `msgpack:"error_detail,omitempty"`
	RequestID   string    `msgpack:"request_id"`
}

// Position is one account/symbol holding as reported by the BrokerClient
// through DGW's get_positions handler.
type Position struct {
	Account       string          `msgpack:"account"`
	Symbol        string          `msgpack:"symbol"`
	Side          Side            `msgpack:"side"`
	Quantity      int64           `msgpack:"quantity"`
	AvgPrice      decimal.Decimal `msgpack:"avg_price"`
	UnrealizedPnL decimal.Decimal `msgpack:"unrealized_pnl"`
	OpenedAt      time.Time       `msgpack:"opened_at"`
}

// ComponentStatus is one component's lifecycle state.
type ComponentStatus string

const (
	StatusStopped  ComponentStatus = "STOPPED"
	StatusStarting ComponentStatus = "STARTING"
	StatusRunning  ComponentStatus = "RUNNING"
	StatusStopping ComponentStatus = "STOPPING"
	StatusError    ComponentStatus = "ERROR"
)

// ComponentHealth is one row of the SystemHealth aggregate.
type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	UptimeSec float64         `json:"uptime_sec"`
	LastCheck time.Time       `json:"last_check"`
}

// SystemHealth is the aggregate the Supervisor's get_system_health returns.
type SystemHealth struct {
	Components map[string]ComponentHealth `json:"components"`
	IsHealthy  bool                       `json:"is_healthy"`
}
