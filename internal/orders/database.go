package orders

import (
	"errors"
	"fmt"
	"time"

	"github.com/ksred/paper-api/internal/database"
	"github.com/ksred/paper-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// Filter narrows ListOrders results. Predicates are pushed into the store's
// query rather than applied after an unbounded fetch.
type Filter struct {
	AccountNumber   string
	Status          string
	FromEnteredTime time.Time
	ToEnteredTime   time.Time
	MaxResults      int
}

// PlaceOrder allocates the next public order ID and inserts the row as one
// transaction, so two concurrent placements never receive the same ID.
// The order arrives populated except for OrderID, Status, and EnteredTime.
func (d *Database) PlaceOrder(order *types.Order) (int64, error) {
	err := d.db.Transaction(func(tx *gorm.DB) error {
		orderID, err := database.NextSequence(tx, types.SequenceOrderID)
		if err != nil {
			return types.StorageFailure(err)
		}

		order.OrderID = orderID
		order.Status = types.OrderStatusWorking
		order.EnteredTime = time.Now().UTC()

		if err := tx.Create(order).Error; err != nil {
			return types.StorageFailure(err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return order.OrderID, nil
}

func (d *Database) GetOrder(orderID int64) (*types.Order, error) {
	var order types.Order
	if err := d.db.Where("order_id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %d: %w", orderID, types.ErrNotFound)
		}
		return nil, types.StorageFailure(err)
	}
	return &order, nil
}

func (d *Database) ListOrders(filter Filter) ([]types.Order, error) {
	query := d.db.Model(&types.Order{})

	if filter.AccountNumber != "" {
		query = query.Where("account_number = ?", filter.AccountNumber)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if !filter.FromEnteredTime.IsZero() {
		query = query.Where("entered_time >= ?", filter.FromEnteredTime)
	}
	if !filter.ToEnteredTime.IsZero() {
		query = query.Where("entered_time <= ?", filter.ToEnteredTime)
	}

	query = query.Order("entered_time DESC")
	if filter.MaxResults > 0 {
		query = query.Limit(filter.MaxResults)
	}

	var orders []types.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, types.StorageFailure(err)
	}
	return orders, nil
}

// CancelOrder transitions a WORKING order to CANCELED. The status guard in
// the UPDATE resolves races against the execution loop: whichever side
// commits first wins and the loser sees zero affected rows.
func (d *Database) CancelOrder(orderID int64) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		result := tx.Model(&types.Order{}).
			Where("order_id = ? AND status = ?", orderID, types.OrderStatusWorking).
			Updates(map[string]interface{}{
				"status":     types.OrderStatusCanceled,
				"close_time": now,
			})
		if result.Error != nil {
			return types.StorageFailure(result.Error)
		}
		if result.RowsAffected == 0 {
			return d.transitionFailure(tx, orderID)
		}
		return nil
	})
}

// ReplaceOrder atomically closes the old order as REPLACED and inserts a new
// WORKING order under the same account. No observer can see both orders
// WORKING, nor both closed.
func (d *Database) ReplaceOrder(orderID int64, newOrder *types.Order) (int64, error) {
	err := d.db.Transaction(func(tx *gorm.DB) error {
		var old types.Order
		if err := tx.Where("order_id = ?", orderID).First(&old).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("order %d: %w", orderID, types.ErrNotFound)
			}
			return types.StorageFailure(err)
		}

		now := time.Now().UTC()
		result := tx.Model(&types.Order{}).
			Where("order_id = ? AND status = ?", orderID, types.OrderStatusWorking).
			Updates(map[string]interface{}{
				"status":     types.OrderStatusReplaced,
				"close_time": now,
			})
		if result.Error != nil {
			return types.StorageFailure(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("order %d is %s: %w", orderID, old.Status, types.ErrInvalidTransition)
		}

		newID, err := database.NextSequence(tx, types.SequenceOrderID)
		if err != nil {
			return types.StorageFailure(err)
		}

		newOrder.OrderID = newID
		newOrder.AccountNumber = old.AccountNumber
		newOrder.Status = types.OrderStatusWorking
		newOrder.EnteredTime = now

		if err := tx.Create(newOrder).Error; err != nil {
			return types.StorageFailure(err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newOrder.OrderID, nil
}

// GetAccountNumberByHash resolves an external account handle to its account
// number for order ownership.
func (d *Database) GetAccountNumberByHash(hash string) (string, error) {
	var account types.Account
	if err := d.db.Where("hash_value = ?", hash).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("account %s: %w", hash, types.ErrNotFound)
		}
		return "", types.StorageFailure(err)
	}
	return account.AccountNumber, nil
}

// transitionFailure reports why a guarded status update affected no rows:
// either the order does not exist or it already left WORKING.
func (d *Database) transitionFailure(tx *gorm.DB, orderID int64) error {
	var order types.Order
	if err := tx.Where("order_id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("order %d: %w", orderID, types.ErrNotFound)
		}
		return types.StorageFailure(err)
	}
	return fmt.Errorf("order %d is %s: %w", orderID, order.Status, types.ErrInvalidTransition)
}
