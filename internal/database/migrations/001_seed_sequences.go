package migrations

import (
	"github.com/ksred/paper-api/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedSequences creates the monotonic ID counters used for public order and
// activity IDs. Both are seeded at 1000 so the first allocated ID is 1001.
// Existing counters are left untouched so IDs are never reused across
// restarts.
func SeedSequences(db *gorm.DB) error {
	seeds := []types.Sequence{
		{Name: types.SequenceOrderID, Value: types.SequenceSeed},
		{Name: types.SequenceActivityID, Value: types.SequenceSeed},
	}

	for _, seq := range seeds {
		err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seq).Error
		if err != nil {
			return err
		}
	}

	return nil
}
