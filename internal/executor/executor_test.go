package executor

import (
	"sync"
	"testing"

	"github.com/ksred/paper-api/internal/database"
	"github.com/ksred/paper-api/internal/orders"
	"github.com/ksred/paper-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testAccountNumber = "12345678"
const testAccountHash = "ABCDEF"

// scriptedPrices returns a fixed sequence of prices per symbol, repeating
// the last one once the script runs out.
type scriptedPrices struct {
	mu      sync.Mutex
	scripts map[string][]float64
}

func (s *scriptedPrices) GetPrice(symbol string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	script, ok := s.scripts[symbol]
	if !ok {
		return 0, types.ErrUnknownSymbol
	}
	price := script[0]
	if len(script) > 1 {
		s.scripts[symbol] = script[1:]
	}
	return price, nil
}

func newTestProcessor(t *testing.T, scripts map[string][]float64) (*Processor, *orders.Service, *gorm.DB) {
	t.Helper()
	db, err := database.OpenInMemory("executor_" + t.Name())
	require.NoError(t, err)

	snapshot := types.NewCashAccountSnapshot(testAccountNumber)
	data, err := snapshot.Marshal()
	require.NoError(t, err)
	require.NoError(t, db.Create(&types.Account{
		AccountNumber: testAccountNumber,
		HashValue:     testAccountHash,
		AccountType:   "CASH",
		AccountData:   data,
	}).Error)

	processor := NewProcessor(db, &scriptedPrices{scripts: scripts}, 0)
	return processor, orders.NewService(db), db
}

func placeOrder(t *testing.T, service *orders.Service, orderType, instruction, symbol string, quantity, price, stopPrice float64) int64 {
	t.Helper()
	orderID, err := service.PlaceOrder(testAccountHash, types.OrderRequest{
		Session:   "NORMAL",
		Duration:  "DAY",
		OrderType: orderType,
		Price:     price,
		StopPrice: stopPrice,
		OrderLegCollection: []types.OrderLeg{{
			Instruction: instruction,
			Quantity:    quantity,
			Instrument:  types.Instrument{Symbol: symbol, AssetType: "EQUITY"},
		}},
	})
	require.NoError(t, err)
	return orderID
}

func loadSnapshot(t *testing.T, db *gorm.DB) types.AccountSnapshot {
	t.Helper()
	var account types.Account
	require.NoError(t, db.Where("account_number = ?", testAccountNumber).First(&account).Error)
	snapshot, err := types.UnmarshalAccountSnapshot(account.AccountData)
	require.NoError(t, err)
	return snapshot
}

func TestMarketOrderFillsOnNextPass(t *testing.T) {
	processor, service, db := newTestProcessor(t, map[string][]float64{"AAPL": {175}})

	orderID := placeOrder(t, service, types.OrderTypeMarket, types.InstructionBuy, "AAPL", 10, 0, 0)
	require.NoError(t, processor.ProcessWorkingOrders())

	order, err := service.GetOrder(orderID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusFilled, order.Status)
	assert.Equal(t, 10.0, order.FilledQuantity)
	require.NotNil(t, order.CloseTime)

	// Settlement: one ledger record, cash debited, position opened.
	var txns []types.Transaction
	require.NoError(t, db.Where("account_number = ?", testAccountNumber).Find(&txns).Error)
	require.Len(t, txns, 1)
	assert.Equal(t, int64(1001), txns[0].ActivityID)
	assert.Equal(t, types.TransactionTypeTrade, txns[0].Type)
	assert.Equal(t, orderID, txns[0].OrderID)
	assert.Equal(t, 175.0, txns[0].Price)
	assert.InDelta(t, -1750.0, txns[0].NetAmount, 1e-9)

	snapshot := loadSnapshot(t, db)
	assert.InDelta(t, types.InitialCashBalance-1750, snapshot.CurrentBalances.TotalCash, 1e-9)
	require.Len(t, snapshot.Positions, 1)
	assert.Equal(t, "AAPL", snapshot.Positions[0].Symbol)
	assert.Equal(t, 10.0, snapshot.Positions[0].Quantity)
}

func TestFilledOrderIsNotFilledAgain(t *testing.T) {
	processor, service, db := newTestProcessor(t, map[string][]float64{"AAPL": {175}})

	placeOrder(t, service, types.OrderTypeMarket, types.InstructionBuy, "AAPL", 10, 0, 0)
	require.NoError(t, processor.ProcessWorkingOrders())
	require.NoError(t, processor.ProcessWorkingOrders())

	var count int64
	require.NoError(t, db.Model(&types.Transaction{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestLimitBuyWaitsForPriceAtOrBelowLimit(t *testing.T) {
	processor, service, _ := newTestProcessor(t, map[string][]float64{"AAPL": {105, 101, 99}})

	orderID := placeOrder(t, service, types.OrderTypeLimit, types.InstructionBuy, "AAPL", 5, 100, 0)

	require.NoError(t, processor.ProcessWorkingOrders())
	order, err := service.GetOrder(orderID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusWorking, order.Status)

	require.NoError(t, processor.ProcessWorkingOrders())
	order, err = service.GetOrder(orderID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusWorking, order.Status)

	require.NoError(t, processor.ProcessWorkingOrders())
	order, err = service.GetOrder(orderID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusFilled, order.Status)
}

func TestLimitSellFillsAtOrAboveLimit(t *testing.T) {
	processor, service, _ := newTestProcessor(t, map[string][]float64{"AAPL": {95, 100}})

	orderID := placeOrder(t, service, types.OrderTypeLimit, types.InstructionSell, "AAPL", 5, 100, 0)

	require.NoError(t, processor.ProcessWorkingOrders())
	order, err := service.GetOrder(orderID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusWorking, order.Status)

	require.NoError(t, processor.ProcessWorkingOrders())
	order, err = service.GetOrder(orderID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusFilled, order.Status)
}

func TestStopOrderActivation(t *testing.T) {
	t.Run("buy stop triggers at or above stop price", func(t *testing.T) {
		processor, service, db := newTestProcessor(t, map[string][]float64{"AAPL": {99, 101}})

		orderID := placeOrder(t, service, types.OrderTypeStop, types.InstructionBuy, "AAPL", 5, 0, 100)

		require.NoError(t, processor.ProcessWorkingOrders())
		order, err := service.GetOrder(orderID)
		require.NoError(t, err)
		assert.Equal(t, types.OrderStatusWorking, order.Status)

		require.NoError(t, processor.ProcessWorkingOrders())
		order, err = service.GetOrder(orderID)
		require.NoError(t, err)
		assert.Equal(t, types.OrderStatusFilled, order.Status)

		// Stops fill at the triggering market price.
		var txn types.Transaction
		require.NoError(t, db.Where("order_id = ?", orderID).First(&txn).Error)
		assert.Equal(t, 101.0, txn.Price)
	})

	t.Run("sell stop triggers at or below stop price", func(t *testing.T) {
		processor, service, _ := newTestProcessor(t, map[string][]float64{"AAPL": {101, 99}})

		orderID := placeOrder(t, service, types.OrderTypeStop, types.InstructionSell, "AAPL", 5, 0, 100)

		require.NoError(t, processor.ProcessWorkingOrders())
		order, err := service.GetOrder(orderID)
		require.NoError(t, err)
		assert.Equal(t, types.OrderStatusWorking, order.Status)

		require.NoError(t, processor.ProcessWorkingOrders())
		order, err = service.GetOrder(orderID)
		require.NoError(t, err)
		assert.Equal(t, types.OrderStatusFilled, order.Status)
	})
}

func TestUnknownSymbolStaysWorking(t *testing.T) {
	processor, service, db := newTestProcessor(t, map[string][]float64{})

	orderID := placeOrder(t, service, types.OrderTypeMarket, types.InstructionBuy, "ZZZZ", 10, 0, 0)
	require.NoError(t, processor.ProcessWorkingOrders())

	order, err := service.GetOrder(orderID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusWorking, order.Status)

	var count int64
	require.NoError(t, db.Model(&types.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCanceledOrderIsNeverFilled(t *testing.T) {
	processor, service, db := newTestProcessor(t, map[string][]float64{"AAPL": {175}})

	orderID := placeOrder(t, service, types.OrderTypeMarket, types.InstructionBuy, "AAPL", 10, 0, 0)
	require.NoError(t, service.CancelOrder(orderID))
	require.NoError(t, processor.ProcessWorkingOrders())

	order, err := service.GetOrder(orderID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusCanceled, order.Status)

	var count int64
	require.NoError(t, db.Model(&types.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)

	snapshot := loadSnapshot(t, db)
	assert.Equal(t, types.InitialCashBalance, snapshot.CurrentBalances.TotalCash)
}

func TestCancelBetweenEvaluationAndCommitLosesNothing(t *testing.T) {
	processor, service, db := newTestProcessor(t, map[string][]float64{"AAPL": {175}})

	orderID := placeOrder(t, service, types.OrderTypeMarket, types.InstructionBuy, "AAPL", 10, 0, 0)

	// Simulate the executor evaluating the order while a cancel commits
	// first: FillOrder must detect the lost race and write nothing.
	stale, err := service.GetOrder(orderID)
	require.NoError(t, err)
	require.NoError(t, service.CancelOrder(orderID))

	filled, err := processor.db.FillOrder(stale, 175)
	require.NoError(t, err)
	assert.False(t, filled)

	order, err := service.GetOrder(orderID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusCanceled, order.Status)

	var count int64
	require.NoError(t, db.Model(&types.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSellFillCreditsCash(t *testing.T) {
	processor, service, db := newTestProcessor(t, map[string][]float64{"AAPL": {100, 120}})

	buyID := placeOrder(t, service, types.OrderTypeMarket, types.InstructionBuy, "AAPL", 10, 0, 0)
	require.NoError(t, processor.ProcessWorkingOrders())

	sellID := placeOrder(t, service, types.OrderTypeMarket, types.InstructionSell, "AAPL", 10, 0, 0)
	require.NoError(t, processor.ProcessWorkingOrders())

	snapshot := loadSnapshot(t, db)
	assert.InDelta(t, types.InitialCashBalance-1000+1200, snapshot.CurrentBalances.TotalCash, 1e-9)
	assert.Empty(t, snapshot.Positions)

	var txns []types.Transaction
	require.NoError(t, db.Order("activity_id ASC").Find(&txns).Error)
	require.Len(t, txns, 2)
	assert.Equal(t, buyID, txns[0].OrderID)
	assert.InDelta(t, -1000.0, txns[0].NetAmount, 1e-9)
	assert.Equal(t, sellID, txns[1].OrderID)
	assert.InDelta(t, 1200.0, txns[1].NetAmount, 1e-9)
}

func TestWorkingOrdersProcessedInEntryOrder(t *testing.T) {
	processor, service, _ := newTestProcessor(t, map[string][]float64{"AAPL": {175}})

	first := placeOrder(t, service, types.OrderTypeMarket, types.InstructionBuy, "AAPL", 1, 0, 0)
	second := placeOrder(t, service, types.OrderTypeMarket, types.InstructionBuy, "AAPL", 2, 0, 0)

	orders, err := processor.db.GetWorkingOrders()
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, first, orders[0].OrderID)
	assert.Equal(t, second, orders[1].OrderID)
}
