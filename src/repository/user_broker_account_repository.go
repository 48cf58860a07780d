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

type UserBrokerAccountRepository struct {
	db *gorm.DB
}

func NewUserBrokerAccountRepository() *UserBrokerAccountRepository {
	logger.WithField("component", "UserBrokerAccountRepository").
		Info("Creating new UserBrokerAccountRepository with MainDB")

	return &UserBrokerAccountRepository{db: database.MainDB}
}

func (r *UserBrokerAccountRepository) WithDB(db *gorm.DB) *UserBrokerAccountRepository {
	return &UserBrokerAccountRepository{db: db}
}

// GetByUser returns (nil, nil) when the user has no broker account.
func (r *UserBrokerAccountRepository) GetByUser(ctx context.Context, userID uint) (*model.UserBrokerAccount, error) {
	var account model.UserBrokerAccount
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo":    "UserBrokerAccountRepository",
			"op":      "GetByUser",
			"user_id": userID,
		}).WithError(err).Error("Failed to fetch broker account")
		return nil, err
	}
	return &account, nil
}

// Upsert creates the account or rotates its credentials.
func (r *UserBrokerAccountRepository) Upsert(ctx context.Context, account *model.UserBrokerAccount) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"broker",
				"api_key",
				"access_token",
				"enabled",
				"updated_at",
			}),
		}).
		Create(account).Error
}
