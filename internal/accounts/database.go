package accounts

import (
	"errors"
	"fmt"

	"github.com/ksred/paper-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateAccount(account *types.Account) error {
	if err := d.db.Create(account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		return types.StorageFailure(err)
	}
	return nil
}

func (d *Database) GetByHash(hash string) (*types.Account, error) {
	var account types.Account
	if err := d.db.Where("hash_value = ?", hash).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("account %s: %w", hash, types.ErrNotFound)
		}
		return nil, types.StorageFailure(err)
	}
	return &account, nil
}

func (d *Database) GetByNumber(number string) (*types.Account, error) {
	var account types.Account
	if err := d.db.Where("account_number = ?", number).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("account %s: %w", number, types.ErrNotFound)
		}
		return nil, types.StorageFailure(err)
	}
	return &account, nil
}

func (d *Database) NumberExists(number string) (bool, error) {
	var count int64
	err := d.db.Model(&types.Account{}).
		Where("account_number = ?", number).
		Count(&count).Error
	if err != nil {
		return false, types.StorageFailure(err)
	}
	return count > 0, nil
}

func (d *Database) ListNumberHashes() ([]types.AccountNumberHash, error) {
	var accounts []types.Account
	if err := d.db.Order("created_at DESC").Find(&accounts).Error; err != nil {
		return nil, types.StorageFailure(err)
	}

	pairs := make([]types.AccountNumberHash, 0, len(accounts))
	for _, account := range accounts {
		pairs = append(pairs, types.AccountNumberHash{
			AccountNumber: account.AccountNumber,
			HashValue:     account.HashValue,
		})
	}
	return pairs, nil
}

func (d *Database) ListAccounts() ([]types.Account, error) {
	var accounts []types.Account
	if err := d.db.Order("created_at DESC").Find(&accounts).Error; err != nil {
		return nil, types.StorageFailure(err)
	}
	return accounts, nil
}

func (d *Database) UpdateSnapshot(accountNumber, accountData string) error {
	result := d.db.Model(&types.Account{}).
		Where("account_number = ?", accountNumber).
		Update("account_data", accountData)
	if result.Error != nil {
		return types.StorageFailure(result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("account %s: %w", accountNumber, types.ErrNotFound)
	}
	return nil
}

// DeleteCascade removes the account and every order and transaction it owns
// in one transaction. Children go first so no orphan row is ever observable,
// even against a concurrent fill.
func (d *Database) DeleteCascade(hash string) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		var account types.Account
		if err := tx.Where("hash_value = ?", hash).First(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("account %s: %w", hash, types.ErrNotFound)
			}
			return types.StorageFailure(err)
		}

		err := tx.Where("account_number = ?", account.AccountNumber).
			Unscoped().Delete(&types.Transaction{}).Error
		if err != nil {
			return types.StorageFailure(err)
		}

		err = tx.Where("account_number = ?", account.AccountNumber).
			Unscoped().Delete(&types.Order{}).Error
		if err != nil {
			return types.StorageFailure(err)
		}

		if err := tx.Unscoped().Delete(&account).Error; err != nil {
			return types.StorageFailure(err)
		}

		return nil
	})
}

// ResetCascade purges the account's orders and transactions and rewrites its
// snapshot to the given baseline as one atomic unit. Identifiers are
// preserved; a concurrent reader sees either the old state or the fully
// reset one.
func (d *Database) ResetCascade(hash, baselineData string) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		var account types.Account
		if err := tx.Where("hash_value = ?", hash).First(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("account %s: %w", hash, types.ErrNotFound)
			}
			return types.StorageFailure(err)
		}

		err := tx.Where("account_number = ?", account.AccountNumber).
			Unscoped().Delete(&types.Transaction{}).Error
		if err != nil {
			return types.StorageFailure(err)
		}

		err = tx.Where("account_number = ?", account.AccountNumber).
			Unscoped().Delete(&types.Order{}).Error
		if err != nil {
			return types.StorageFailure(err)
		}

		err = tx.Model(&account).Update("account_data", baselineData).Error
		if err != nil {
			return types.StorageFailure(err)
		}

		return nil
	})
}
