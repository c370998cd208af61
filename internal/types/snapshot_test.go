package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCashAccountSnapshotBaseline(t *testing.T) {
	snapshot := NewCashAccountSnapshot("12345678")

	assert.Equal(t, "12345678", snapshot.AccountNumber)
	assert.Equal(t, "CASH", snapshot.Type)
	assert.Equal(t, InitialCashBalance, snapshot.CurrentBalances.TotalCash)
	assert.Equal(t, InitialCashBalance, snapshot.CurrentBalances.CashAvailableForTrading)
	assert.Empty(t, snapshot.Positions)
}

func TestSnapshotRoundTrip(t *testing.T) {
	snapshot := NewCashAccountSnapshot("12345678")
	snapshot.ApplyFill("AAPL", InstructionBuy, 10, 100)

	data, err := snapshot.Marshal()
	require.NoError(t, err)

	parsed, err := UnmarshalAccountSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, snapshot, parsed)
}

func TestApplyFillBuyOpensPosition(t *testing.T) {
	snapshot := NewCashAccountSnapshot("12345678")
	snapshot.ApplyFill("AAPL", InstructionBuy, 10, 175)

	assert.InDelta(t, InitialCashBalance-1750, snapshot.CurrentBalances.TotalCash, 1e-9)
	require.Len(t, snapshot.Positions, 1)
	assert.Equal(t, "AAPL", snapshot.Positions[0].Symbol)
	assert.Equal(t, 10.0, snapshot.Positions[0].Quantity)
	assert.Equal(t, 175.0, snapshot.Positions[0].AveragePrice)
}

func TestApplyFillBuyAveragesCostBasis(t *testing.T) {
	snapshot := NewCashAccountSnapshot("12345678")
	snapshot.ApplyFill("AAPL", InstructionBuy, 10, 100)
	snapshot.ApplyFill("AAPL", InstructionBuy, 10, 200)

	require.Len(t, snapshot.Positions, 1)
	assert.Equal(t, 20.0, snapshot.Positions[0].Quantity)
	assert.InDelta(t, 150.0, snapshot.Positions[0].AveragePrice, 1e-9)
}

func TestApplyFillSellReducesAndRemovesPosition(t *testing.T) {
	snapshot := NewCashAccountSnapshot("12345678")
	snapshot.ApplyFill("AAPL", InstructionBuy, 10, 100)
	snapshot.ApplyFill("AAPL", InstructionSell, 4, 110)

	require.Len(t, snapshot.Positions, 1)
	assert.Equal(t, 6.0, snapshot.Positions[0].Quantity)
	assert.InDelta(t, InitialCashBalance-1000+440, snapshot.CurrentBalances.TotalCash, 1e-9)

	snapshot.ApplyFill("AAPL", InstructionSell, 6, 120)
	assert.Empty(t, snapshot.Positions)
}

func TestTerminalStatus(t *testing.T) {
	assert.False(t, TerminalStatus(OrderStatusWorking))
	for _, status := range []string{
		OrderStatusFilled, OrderStatusCanceled, OrderStatusReplaced,
		OrderStatusExpired, OrderStatusRejected,
	} {
		assert.True(t, TerminalStatus(status), status)
	}
}

func TestInstructionSides(t *testing.T) {
	assert.True(t, IsBuy(InstructionBuy))
	assert.True(t, IsBuy(InstructionBuyToOpen))
	assert.True(t, IsBuy(InstructionBuyToClose))
	assert.True(t, IsSell(InstructionSell))
	assert.True(t, IsSell(InstructionSellToOpen))
	assert.True(t, IsSell(InstructionSellToClose))
	assert.False(t, IsBuy("SHORT"))
	assert.False(t, IsSell("SHORT"))
}
