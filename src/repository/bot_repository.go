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

type BotRepository struct {
	db *gorm.DB
}

func NewBotRepository() *BotRepository {
	logger.WithField("component", "BotRepository").
		Info("Creating new BotRepository with MainDB")

	return &BotRepository{db: database.MainDB}
}

func (r *BotRepository) WithDB(db *gorm.DB) *BotRepository {
	return &BotRepository{db: db}
}

// FindByID returns (nil, nil) if not found.
func (r *BotRepository) FindByID(ctx context.Context, id uint) (*model.Bot, error) {
	var bot model.Bot
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&bot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo": "BotRepository",
				"op":   "FindByID",
				"id":   id,
			}).Info("Bot not found")
			return nil, nil
		}
		return nil, err
	}
	return &bot, nil
}

// FindByName returns (nil, nil) if not found.
func (r *BotRepository) FindByName(ctx context.Context, name string) (*model.Bot, error) {
	var bot model.Bot
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&bot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bot, nil
}

// Upsert creates the bot or refreshes its configuration, matching on name.
func (r *BotRepository) Upsert(ctx context.Context, bot *model.Bot) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"symbol",
				"exchange",
				"instrument_type",
				"product",
				"lot_size",
				"margin_per_lot",
				"max_lots_per_user",
				"is_intraday",
				"square_off_time",
				"stop_loss_percent",
				"target_percent",
				"webhook_passphrase",
				"active",
				"updated_at",
			}),
		}).
		Create(bot).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "BotRepository",
			"op":   "Upsert",
			"name": bot.Name,
		}).WithError(err).Error("Failed to upsert bot")
		return err
	}

	// ON CONFLICT leaves the id unset on some drivers.
	if bot.ID == 0 {
		stored, err := r.FindByName(ctx, bot.Name)
		if err != nil {
			return err
		}
		if stored != nil {
			bot.ID = stored.ID
		}
	}
	return nil
}
