package executor

import (
	"errors"
	"fmt"
	"time"

	"github.com/ksred/paper-api/internal/transactions"
	"github.com/ksred/paper-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// GetWorkingOrders returns every order still open for matching.
func (d *Database) GetWorkingOrders() ([]types.Order, error) {
	var orders []types.Order
	err := d.db.Where("status = ?", types.OrderStatusWorking).
		Order("entered_time ASC").
		Find(&orders).Error
	if err != nil {
		return nil, types.StorageFailure(err)
	}
	return orders, nil
}

// FillOrder settles an eligible order as one atomic unit: the WORKING to
// FILLED transition, the ledger record, and the account snapshot update all
// commit together or not at all. Returns false without error when the order
// lost the race to a concurrent cancel or replace.
func (d *Database) FillOrder(order *types.Order, fillPrice float64) (bool, error) {
	filled := false

	err := d.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		result := tx.Model(&types.Order{}).
			Where("order_id = ? AND status = ?", order.OrderID, types.OrderStatusWorking).
			Updates(map[string]interface{}{
				"status":          types.OrderStatusFilled,
				"filled_quantity": order.Quantity,
				"close_time":      now,
			})
		if result.Error != nil {
			return types.StorageFailure(result.Error)
		}
		if result.RowsAffected == 0 {
			// The order left WORKING between evaluation and commit.
			return nil
		}
		filled = true

		var account types.Account
		err := tx.Where("account_number = ?", order.AccountNumber).First(&account).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("account %s: %w", order.AccountNumber, types.ErrNotFound)
			}
			return types.StorageFailure(err)
		}

		snapshot, err := types.UnmarshalAccountSnapshot(account.AccountData)
		if err != nil {
			return types.StorageFailure(err)
		}
		snapshot.ApplyFill(order.Symbol, order.Instruction, order.Quantity, fillPrice)

		data, err := snapshot.Marshal()
		if err != nil {
			return types.StorageFailure(err)
		}
		if err := tx.Model(&account).Update("account_data", data).Error; err != nil {
			return types.StorageFailure(err)
		}

		amount := order.Quantity * fillPrice
		netAmount := amount
		if types.IsBuy(order.Instruction) {
			netAmount = -amount
		}

		doc, err := settlementDocument(order, fillPrice, netAmount, now)
		if err != nil {
			return types.StorageFailure(err)
		}

		txn := &types.Transaction{
			AccountNumber:   order.AccountNumber,
			Type:            types.TransactionTypeTrade,
			OrderID:         order.OrderID,
			Symbol:          order.Symbol,
			Quantity:        order.Quantity,
			Price:           fillPrice,
			NetAmount:       netAmount,
			TransactionData: doc,
		}
		return transactions.CreateInTx(tx, txn)
	})

	if err != nil {
		return false, err
	}
	return filled, nil
}
