package database

import (
	"fmt"
	"os"

	"github.com/ksred/paper-api/internal/database/migrations"
	"github.com/ksred/paper-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase initializes and returns a new GORM DB connection.
// The database path can be overridden with the DATABASE_PATH environment
// variable; the default is a local SQLite file.
func NewDatabase() (*gorm.DB, error) {
	path := os.Getenv("DATABASE_PATH")
	if path == "" {
		path = "paper.db"
	}

	return Open(path + "?_busy_timeout=5000")
}

// Open opens a SQLite database at the given DSN, runs migrations, and seeds
// the ID sequences. Used directly by tests with in-memory DSNs.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&types.Account{},
		&types.Order{},
		&types.Transaction{},
		&types.UserPreference{},
		&types.Sequence{},
	)
	if err != nil {
		return nil, err
	}

	if err := migrations.SeedSequences(db); err != nil {
		return nil, fmt.Errorf("failed to seed sequences: %w", err)
	}

	return db, nil
}

// OpenInMemory opens an isolated named in-memory database. Used by tests.
// A single connection keeps the in-memory database alive for the process and
// serializes concurrent writers the same way a file database would.
func OpenInMemory(name string) (*gorm.DB, error) {
	db, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// NextSequence increments the named counter inside the caller's transaction
// and returns the new value. SQLite serializes writers, so the increment and
// the insert that consumes the value commit as one atomic unit: two
// concurrent allocations can never observe the same value.
func NextSequence(tx *gorm.DB, name string) (int64, error) {
	result := tx.Model(&types.Sequence{}).
		Where("name = ?", name).
		Update("value", gorm.Expr("value + 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, fmt.Errorf("sequence %s not seeded", name)
	}

	var seq types.Sequence
	if err := tx.Where("name = ?", name).First(&seq).Error; err != nil {
		return 0, err
	}

	return seq.Value, nil
}
