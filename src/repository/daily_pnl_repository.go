package repository

import (
	"context"
	"errors"

	"botexecutor/src/database"
	"botexecutor/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DailyPnLRepository struct {
	db *gorm.DB
}

func NewDailyPnLRepository() *DailyPnLRepository {
	return &DailyPnLRepository{db: database.MainDB}
}

func (r *DailyPnLRepository) WithDB(db *gorm.DB) *DailyPnLRepository {
	return &DailyPnLRepository{db: db}
}

// Record inserts the snapshot unless one already exists for the user and
// date. It reports whether a row was written.
func (r *DailyPnLRepository) Record(ctx context.Context, snapshot *model.DailyPnLSnapshot) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
			DoNothing: true,
		}).
		Create(snapshot)
	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "DailyPnLRepository",
			"op":      "Record",
			"user_id": snapshot.UserID,
			"date":    snapshot.Date,
		}).WithError(res.Error).Error("Failed to record daily pnl")
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FindByUserAndDate returns (nil, nil) if no snapshot exists.
func (r *DailyPnLRepository) FindByUserAndDate(ctx context.Context, userID uint, date string) (*model.DailyPnLSnapshot, error) {
	var snapshot model.DailyPnLSnapshot
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}
