package se

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttpss930141011/auto-futures-trading-machine/internal/model"
)

func buyCondition() model.Condition {
	return model.Condition{
		ID:          "cond-1",
		CommodityID: "MXFF5",
		Action:      model.SideBuy,
		TargetPrice: decimal.NewFromInt(22000),
		TurningPoint: decimal.NewFromInt(30),
		Quantity:    1,
		TakeProfit:  decimal.NewFromInt(120),
		StopLoss:    decimal.NewFromInt(30),
	}
}

func runTicks(t *testing.T, c model.Condition, prices []int64) (*model.ConditionRuntimeState, []*model.TradingSignal) {
	t.Helper()
	rs := model.NewConditionRuntimeState()
	var signals []*model.TradingSignal
	when := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	for i, p := range prices {
		sig := evaluate(c, rs, when.Add(time.Duration(i)*time.Second), decimal.NewFromInt(p))
		if sig != nil {
			signals = append(signals, sig)
		}
	}
	return rs, signals
}

func TestScenario1CleanBuyCycle(t *testing.T) {
	c := buyCondition()
	c.IsFollowing = false

	_, signals := runTicks(t, c, []int64{22010, 21995, 21980, 22035, 22160})

	require.Len(t, signals, 2)
	assert.Equal(t, model.SideBuy, signals[0].Operation)
	assert.Equal(t, model.SideSell, signals[1].Operation)
}

func TestScenario2FollowingDownEntry(t *testing.T) {
	c := buyCondition()
	c.IsFollowing = true

	rs, signals := runTicks(t, c, []int64{21995, 21980, 21950, 21985})

	require.Len(t, signals, 1)
	assert.Equal(t, model.SideBuy, signals[0].Operation)
	assert.True(t, rs.TriggerLow.Equal(decimal.NewFromInt(21950)))
}

func TestScenario3StopLossBeforeTakeProfit(t *testing.T) {
	c := buyCondition()

	_, signals := runTicks(t, c, []int64{21995, 22035, 21990})

	require.Len(t, signals, 2)
	assert.Equal(t, model.SideBuy, signals[0].Operation)
	assert.Equal(t, model.SideSell, signals[1].Operation)
}

func TestDuplicateTickCollapsedByDedupeRing(t *testing.T) {
	ring := newDedupeRing(64)
	when := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)

	assert.False(t, ring.seenOrRecord(when))
	assert.True(t, ring.seenOrRecord(when))
}

func TestPriceEqualToTargetPriceTriggersEntry(t *testing.T) {
	c := buyCondition()
	rs := model.NewConditionRuntimeState()

	sig := evaluate(c, rs, time.Now(), c.TargetPrice)

	assert.Nil(t, sig)
	assert.Equal(t, model.StateTriggered, rs.State)
	assert.True(t, rs.TriggerLow.Equal(c.TargetPrice))
}

func TestPriceEqualToTakeProfitTriggersExit(t *testing.T) {
	c := buyCondition()
	rs := &model.ConditionRuntimeState{
		State:        model.StateInPosition,
		EntryPrice:   decimal.NewFromInt(22000),
		PositionSide: model.SideBuy,
	}

	sig := evaluate(c, rs, time.Now(), decimal.NewFromInt(22120)) // entry + take_profit exactly

	require.NotNil(t, sig)
	assert.Equal(t, model.SideSell, sig.Operation)
	assert.Equal(t, model.StateClosed, rs.State)
}

func TestTurningPointZeroEntersOnTouch(t *testing.T) {
	c := buyCondition()
	c.TurningPoint = decimal.Zero

	rs := &model.ConditionRuntimeState{State: model.StateTriggered, TriggerLow: decimal.NewFromInt(22000)}
	sig := evaluate(c, rs, time.Now(), decimal.NewFromInt(22000))

	require.NotNil(t, sig)
	assert.Equal(t, model.StateInPosition, rs.State)
}

func TestClosedStateIsTerminal(t *testing.T) {
	c := buyCondition()
	rs := &model.ConditionRuntimeState{State: model.StateClosed}

	sig := evaluate(c, rs, time.Now(), decimal.NewFromInt(99999))

	assert.Nil(t, sig)
	assert.Equal(t, model.StateClosed, rs.State)
}

func TestSellSideMirrorsBuySide(t *testing.T) {
	c := model.Condition{
		ID: "cond-sell", CommodityID: "MXFF5", Action: model.SideSell,
		TargetPrice: decimal.NewFromInt(22000), TurningPoint: decimal.NewFromInt(30),
		Quantity: 1, TakeProfit: decimal.NewFromInt(120), StopLoss: decimal.NewFromInt(30),
	}

	_, signals := runTicks(t, c, []int64{21990, 22005, 22020, 21965, 21840})

	require.Len(t, signals, 2)
	assert.Equal(t, model.SideSell, signals[0].Operation)
	assert.Equal(t, model.SideBuy, signals[1].Operation)
}
