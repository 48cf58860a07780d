package repository

import (
	"context"
	"errors"
	"time"

	"botexecutor/src/database"
	"botexecutor/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrSignalAlreadyProcessed is returned when the fan-out counters of a
// signal were already written.
var ErrSignalAlreadyProcessed = errors.New("signal already processed")

// WebhookSignalRepository stores inbound signals.
type WebhookSignalRepository struct {
	db *gorm.DB
}

func NewWebhookSignalRepository() *WebhookSignalRepository {
	logger.WithField("component", "WebhookSignalRepository").
		Info("Creating new WebhookSignalRepository with MainDB")

	return &WebhookSignalRepository{db: database.MainDB}
}

// WithDB returns a copy bound to db (a test database or a transaction).
func (r *WebhookSignalRepository) WithDB(db *gorm.DB) *WebhookSignalRepository {
	return &WebhookSignalRepository{db: db}
}

func (r *WebhookSignalRepository) Create(ctx context.Context, signal *model.WebhookSignal) error {
	if signal.ReceivedAt.IsZero() {
		signal.ReceivedAt = time.Now().UTC()
	}

	if err := r.db.WithContext(ctx).Create(signal).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "WebhookSignalRepository",
			"op":     "Create",
			"bot_id": signal.BotID,
			"symbol": signal.Symbol,
		}).WithError(err).Error("Failed to persist webhook signal")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":      "WebhookSignalRepository",
		"op":        "Create",
		"signal_id": signal.ID,
		"bot_id":    signal.BotID,
		"side":      signal.Side,
	}).Info("Webhook signal stored")

	return nil
}

// FindByID returns (nil, nil) when the signal does not exist.
func (r *WebhookSignalRepository) FindByID(ctx context.Context, id uint) (*model.WebhookSignal, error) {
	var signal model.WebhookSignal

	err := r.db.WithContext(ctx).Where("id = ?", id).First(&signal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo": "WebhookSignalRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch webhook signal")
		return nil, err
	}

	return &signal, nil
}

// FindLatest returns the newest signals first.
func (r *WebhookSignalRepository) FindLatest(ctx context.Context, limit int) ([]model.WebhookSignal, error) {
	if limit <= 0 {
		limit = 50
	}

	var signals []model.WebhookSignal
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&signals).Error
	if err != nil {
		return nil, err
	}
	return signals, nil
}

// MarkProcessed writes the aggregate fan-out counters exactly once.
func (r *WebhookSignalRepository) MarkProcessed(
	ctx context.Context,
	id uint,
	total, successful, failed int,
	at time.Time,
) error {
	res := r.db.WithContext(ctx).
		Model(&model.WebhookSignal{}).
		Where("id = ? AND processed = ?", id, false).
		Updates(map[string]interface{}{
			"total_users_targeted":  total,
			"successful_executions": successful,
			"failed_executions":     failed,
			"processed":             true,
			"processed_at":          at,
		})

	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":      "WebhookSignalRepository",
			"op":        "MarkProcessed",
			"signal_id": id,
		}).WithError(res.Error).Error("Failed to mark signal processed")
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSignalAlreadyProcessed
	}

	logger.WithFields(map[string]interface{}{
		"repo":       "WebhookSignalRepository",
		"op":         "MarkProcessed",
		"signal_id":  id,
		"total":      total,
		"successful": successful,
		"failed":     failed,
	}).Info("Signal fan-out counters written")

	return nil
}
