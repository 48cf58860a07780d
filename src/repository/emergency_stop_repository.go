package repository

import (
	"context"
	"errors"
	"time"

	"botexecutor/src/database"
	"botexecutor/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EmergencyStopRepository struct {
	db *gorm.DB
}

func NewEmergencyStopRepository() *EmergencyStopRepository {
	logger.WithField("component", "EmergencyStopRepository").
		Info("Creating new EmergencyStopRepository with MainDB")

	return &EmergencyStopRepository{db: database.MainDB}
}

func (r *EmergencyStopRepository) WithDB(db *gorm.DB) *EmergencyStopRepository {
	return &EmergencyStopRepository{db: db}
}

func scopeOf(botID *uint) (string, uint) {
	if botID == nil {
		return model.StopScopeGlobal, model.GlobalStopBotID
	}
	return model.StopScopeBot, *botID
}

// ActivateAndCancelPending raises the stop and cancels every PENDING
// execution in its scope within one transaction. It returns the number of
// cancelled executions.
func (r *EmergencyStopRepository) ActivateAndCancelPending(
	ctx context.Context,
	botID *uint,
	reason string,
	at time.Time,
) (int64, error) {
	scope, id := scopeOf(botID)

	var cancelled int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stop := &model.EmergencyStop{
			Scope:       scope,
			BotID:       id,
			Active:      true,
			Reason:      reason,
			ActivatedAt: &at,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "scope"}, {Name: "bot_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"active",
				"reason",
				"activated_at",
				"updated_at",
			}),
		}).Create(stop).Error; err != nil {
			return err
		}

		n, err := cancelPending(tx, botID)
		if err != nil {
			return err
		}
		cancelled = n
		return nil
	})

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "EmergencyStopRepository",
			"op":     "ActivateAndCancelPending",
			"scope":  scope,
			"bot_id": id,
		}).WithError(err).Error("Failed to activate emergency stop")
		return 0, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":      "EmergencyStopRepository",
		"op":        "ActivateAndCancelPending",
		"scope":     scope,
		"bot_id":    id,
		"cancelled": cancelled,
	}).Warn("Emergency stop activated")

	return cancelled, nil
}

// Deactivate lowers the stop. Cancelled executions are left untouched.
func (r *EmergencyStopRepository) Deactivate(ctx context.Context, botID *uint, at time.Time) error {
	scope, id := scopeOf(botID)

	err := r.db.WithContext(ctx).
		Model(&model.EmergencyStop{}).
		Where("scope = ? AND bot_id = ?", scope, id).
		Updates(map[string]interface{}{
			"active":         false,
			"deactivated_at": at,
		}).Error
	if err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":   "EmergencyStopRepository",
		"op":     "Deactivate",
		"scope":  scope,
		"bot_id": id,
	}).Info("Emergency stop cleared")

	return nil
}

// IsActive reports whether a global stop or a stop on botID is raised.
// It always reads the database.
func (r *EmergencyStopRepository) IsActive(ctx context.Context, botID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.EmergencyStop{}).
		Where("active = ? AND (scope = ? OR (scope = ? AND bot_id = ?))",
			true, model.StopScopeGlobal, model.StopScopeBot, botID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Find returns the stop row for a scope, or (nil, nil).
func (r *EmergencyStopRepository) Find(ctx context.Context, botID *uint) (*model.EmergencyStop, error) {
	scope, id := scopeOf(botID)

	var stop model.EmergencyStop
	err := r.db.WithContext(ctx).
		Where("scope = ? AND bot_id = ?", scope, id).
		First(&stop).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &stop, nil
}

// ListActive returns every raised stop.
func (r *EmergencyStopRepository) ListActive(ctx context.Context) ([]model.EmergencyStop, error) {
	var stops []model.EmergencyStop
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("id ASC").
		Find(&stops).Error
	return stops, err
}
