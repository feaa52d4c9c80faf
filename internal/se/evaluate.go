package se

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ttpss930141011/auto-futures-trading-machine/internal/model"
)

// evaluate advances one Condition's runtime state machine by a single
// observed price. It applies at most one transition per call: SE evaluates
// a fresh tick against the condition's *current* state rather than
// cascading through multiple states within one tick. Returns the
// TradingSignal to emit, if any.
//
// All four transitions are expressed once, mirrored by Side.Sign(): BUY
// uses +1, SELL uses -1, so "price crossed in the entry/exit direction"
// reads the same regardless of side.
func evaluate(c model.Condition, rs *model.ConditionRuntimeState, when time.Time, price decimal.Decimal) *model.TradingSignal {
	sign := decimal.NewFromInt(int64(c.Action.Sign()))

	switch rs.State {
	case model.StateArmed:
		// sign*(price - target_price) <= 0
		if sign.Mul(price.Sub(c.TargetPrice)).LessThanOrEqual(decimal.Zero) {
			rs.State = model.StateTriggered
			rs.TriggerLow = price
			rs.LastObservedPrice = price
		}
		return nil

	case model.StateTriggered:
		if c.IsFollowing {
			// sign*(price - trigger_low) < 0: price moved further away,
			// i.e. better, than the current trigger, so follow it down (buy)
			// or up (sell).
			if sign.Mul(price.Sub(rs.TriggerLow)).LessThan(decimal.Zero) {
				rs.TriggerLow = price
			}
		}
		rs.LastObservedPrice = price

		// sign*(price - trigger_low) >= turning_point
		if sign.Mul(price.Sub(rs.TriggerLow)).GreaterThanOrEqual(c.TurningPoint) {
			rs.State = model.StateInPosition
			rs.EntryPrice = price
			rs.PositionSide = c.Action
			return &model.TradingSignal{
				When:        when,
				Operation:   c.Action,
				CommodityID: c.CommodityID,
				ConditionID: c.ID,
				Quantity:    c.Quantity,
			}
		}
		return nil

	case model.StateInPosition:
		rs.LastObservedPrice = price
		delta := sign.Mul(price.Sub(rs.EntryPrice))

		// take-profit: sign*(price - entry_price) >= take_profit
		if delta.GreaterThanOrEqual(c.TakeProfit) {
			rs.State = model.StateClosed
			return &model.TradingSignal{
				When:        when,
				Operation:   rs.PositionSide.Opposite(),
				CommodityID: c.CommodityID,
				ConditionID: c.ID,
				Quantity:    c.Quantity,
			}
		}
		// stop-loss: sign*(price - entry_price) <= -stop_loss
		if delta.LessThanOrEqual(c.StopLoss.Neg()) {
			rs.State = model.StateClosed
			return &model.TradingSignal{
				When:        when,
				Operation:   rs.PositionSide.Opposite(),
				CommodityID: c.CommodityID,
				ConditionID: c.ID,
				Quantity:    c.Quantity,
			}
		}
		return nil

	case model.StateClosed:
		return nil

	default:
		return nil
	}
}
