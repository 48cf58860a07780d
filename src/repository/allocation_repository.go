package repository

import (
	"context"

	"botexecutor/src/database"
	"botexecutor/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AllocationRepository struct {
	db *gorm.DB
}

func NewAllocationRepository() *AllocationRepository {
	logger.WithField("component", "AllocationRepository").
		Info("Creating new AllocationRepository with MainDB")

	return &AllocationRepository{db: database.MainDB}
}

func (r *AllocationRepository) WithDB(db *gorm.DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

// FindActiveByBot returns the active allocations subscribed to botID,
// ordered by id for stable fan-out logs.
func (r *AllocationRepository) FindActiveByBot(ctx context.Context, botID uint) ([]model.UserBotAllocation, error) {
	var allocations []model.UserBotAllocation

	err := r.db.WithContext(ctx).
		Where("bot_id = ? AND is_active = ?", botID, true).
		Order("id ASC").
		Find(&allocations).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "AllocationRepository",
			"op":     "FindActiveByBot",
			"bot_id": botID,
		}).WithError(err).Error("Failed to fetch allocations")
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "AllocationRepository",
		"op":          "FindActiveByBot",
		"bot_id":      botID,
		"rows_return": len(allocations),
	}).Debug("Active allocations fetched")

	return allocations, nil
}

// Upsert matches on (user_id, bot_id).
func (r *AllocationRepository) Upsert(ctx context.Context, allocation *model.UserBotAllocation) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"},
				{Name: "bot_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"allocated_capital",
				"is_active",
				"updated_at",
			}),
		}).
		Create(allocation).Error
}
