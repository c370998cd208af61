package transactions

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

// Filter narrows ListTransactions results.
type Filter struct {
	AccountNumber string
	Type          string
	FromTime      time.Time
	ToTime        time.Time
	MaxResults    int
}

// CreateInTx allocates the next public activity ID and appends the record
// inside the caller's transaction. The execution loop passes its fill
// transaction here so the ledger entry commits or rolls back with the fill.
func CreateInTx(tx *gorm.DB, txn *types.Transaction) error {
	activityID, err := database.NextSequence(tx, types.SequenceActivityID)
	if err != nil {
		return types.StorageFailure(err)
	}

	txn.ActivityID = activityID
	txn.Time = time.Now().UTC()

	if err := tx.Create(txn).Error; err != nil {
		return types.StorageFailure(err)
	}
	return nil
}

func (d *Database) GetByActivityID(activityID int64) (*types.Transaction, error) {
	var txn types.Transaction
	if err := d.db.Where("activity_id = ?", activityID).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("transaction %d: %w", activityID, types.ErrNotFound)
		}
		return nil, types.StorageFailure(err)
	}
	return &txn, nil
}

func (d *Database) ListTransactions(filter Filter) ([]types.Transaction, error) {
	query := d.db.Model(&types.Transaction{})

	if filter.AccountNumber != "" {
		query = query.Where("account_number = ?", filter.AccountNumber)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if !filter.FromTime.IsZero() {
		query = query.Where("time >= ?", filter.FromTime)
	}
	if !filter.ToTime.IsZero() {
		query = query.Where("time <= ?", filter.ToTime)
	}

	query = query.Order("time DESC")
	if filter.MaxResults > 0 {
		query = query.Limit(filter.MaxResults)
	}

	var txns []types.Transaction
	if err := query.Find(&txns).Error; err != nil {
		return nil, types.StorageFailure(err)
	}
	return txns, nil
}

// GetAccountNumberByHash resolves an external account handle for transaction
// queries scoped to one account.
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
