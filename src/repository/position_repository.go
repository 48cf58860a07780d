package repository

import (
	"context"
	"errors"
	"time"

	"botexecutor/src/database"
	"botexecutor/src/model"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrVersionConflict is returned when a position changed between read and write.
var ErrVersionConflict = errors.New("position was modified concurrently")

var activeStatuses = []string{model.PositionStatusOpen, model.PositionStatusPartial}

// PositionSearchOptions filters the position store.
type PositionSearchOptions struct {
	UserID uint
	BotID  *uint
	Status *string
	Limit  int
	Offset int
}

// PositionRepository is the position store. Exits are kept in a child table
// and loaded in fill order.
type PositionRepository struct {
	db *gorm.DB
}

func NewPositionRepository() *PositionRepository {
	logger.WithField("component", "PositionRepository").
		Info("Creating new PositionRepository with MainDB")

	return &PositionRepository{db: database.MainDB}
}

func (r *PositionRepository) WithDB(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

func preloadExits(db *gorm.DB) *gorm.DB {
	return db.Order("executed_at ASC, id ASC")
}

func (r *PositionRepository) Create(ctx context.Context, pos *model.Position) error {
	if pos.Version == 0 {
		pos.Version = 1
	}

	err := r.db.WithContext(ctx).Omit("Exits").Create(pos).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "PositionRepository",
			"op":      "Create",
			"user_id": pos.UserID,
			"symbol":  pos.Symbol,
		}).WithError(err).Error("Failed to create position")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "PositionRepository",
		"op":          "Create",
		"position_id": pos.ID,
		"user_id":     pos.UserID,
		"symbol":      pos.Symbol,
		"side":        pos.Side,
		"qty":         pos.EntryQuantity,
	}).Info("Position opened")

	return nil
}

// FindByID loads the position with its exits. Returns (nil, nil) if not found.
func (r *PositionRepository) FindByID(ctx context.Context, id uint) (*model.Position, error) {
	var pos model.Position
	err := r.db.WithContext(ctx).
		Preload("Exits", preloadExits).
		First(&pos, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo": "PositionRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch position")
		return nil, err
	}
	return &pos, nil
}

// FindActiveFor returns the newest OPEN/PARTIAL position of a user on one
// bot and instrument, or (nil, nil).
func (r *PositionRepository) FindActiveFor(
	ctx context.Context,
	userID, botID uint,
	symbol, exchange string,
) (*model.Position, error) {
	var pos model.Position
	err := r.db.WithContext(ctx).
		Preload("Exits", preloadExits).
		Where("user_id = ? AND bot_id = ? AND symbol = ? AND exchange = ? AND status IN ?",
			userID, botID, symbol, exchange, activeStatuses).
		Order("id DESC").
		First(&pos).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pos, nil
}

// FindActive lists every OPEN/PARTIAL position.
func (r *PositionRepository) FindActive(ctx context.Context) ([]model.Position, error) {
	var positions []model.Position
	err := r.db.WithContext(ctx).
		Where("status IN ?", activeStatuses).
		Order("user_id ASC, symbol ASC, id ASC").
		Find(&positions).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PositionRepository",
			"op":   "FindActive",
		}).WithError(err).Error("Failed to fetch active positions")
		return nil, err
	}
	return positions, nil
}

// FindSquareOffCandidates returns intraday positions that still hold
// quantity, have an exit time and are not claimed yet.
func (r *PositionRepository) FindSquareOffCandidates(ctx context.Context) ([]model.Position, error) {
	var positions []model.Position
	err := r.db.WithContext(ctx).
		Where("is_intraday = ? AND status IN ? AND scheduled_exit_time <> ? AND auto_square_off_scheduled = ?",
			true, activeStatuses, "", false).
		Order("id ASC").
		Find(&positions).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PositionRepository",
			"op":   "FindSquareOffCandidates",
		}).WithError(err).Error("Failed to fetch square-off candidates")
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "PositionRepository",
		"op":          "FindSquareOffCandidates",
		"rows_return": len(positions),
	}).Debug("Square-off candidates fetched")

	return positions, nil
}

// ClaimSquareOff flips auto_square_off_scheduled from false to true.
// Only one caller can win the claim for a given position.
func (r *PositionRepository) ClaimSquareOff(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("id = ? AND auto_square_off_scheduled = ? AND status IN ?", id, false, activeStatuses).
		Update("auto_square_off_scheduled", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ResetSquareOff releases a claim so the next poll retries the exit.
func (r *PositionRepository) ResetSquareOff(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("id = ? AND status IN ?", id, activeStatuses).
		Update("auto_square_off_scheduled", false).Error
}

// ClaimExit reserves an active position for the exit order tagged tag.
// Only one exit can hold the claim; a claim taken before staleBefore is
// considered abandoned and can be taken over.
func (r *PositionRepository) ClaimExit(ctx context.Context, id uint, tag string, at, staleBefore time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("id = ? AND status IN ?", id, activeStatuses).
		Where("exit_order_tag IS NULL OR exit_claimed_at < ?", staleBefore).
		Updates(map[string]interface{}{
			"exit_order_tag":  tag,
			"exit_claimed_at": at,
		})
	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":        "PositionRepository",
			"op":          "ClaimExit",
			"position_id": id,
		}).WithError(res.Error).Error("Failed to claim position exit")
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseExit drops the exit claim if tag still holds it.
func (r *PositionRepository) ReleaseExit(ctx context.Context, id uint, tag string) error {
	return r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("id = ? AND exit_order_tag = ?", id, tag).
		Updates(map[string]interface{}{
			"exit_order_tag":  nil,
			"exit_claimed_at": nil,
		}).Error
}

// SaveExit persists the mutated aggregate and its new exit record in one
// transaction. The update only applies if the stored version still equals
// pos.Version; on success pos.Version is incremented.
func (r *PositionRepository) SaveExit(ctx context.Context, pos *model.Position, exit *model.PositionExit) error {
	expected := pos.Version

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Position{}).
			Where("id = ? AND version = ?", pos.ID, expected).
			Updates(map[string]interface{}{
				"status":                    pos.Status,
				"current_quantity":          pos.CurrentQuantity,
				"average_price":             pos.AveragePrice,
				"realized_pnl":              pos.RealizedPnl,
				"unrealized_pnl":            pos.UnrealizedPnl,
				"exit_reason":               pos.ExitReason,
				"closed_at":                 pos.ClosedAt,
				"auto_square_off_scheduled": pos.AutoSquareOffScheduled,
				"version":                   expected + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}

		exit.PositionID = pos.ID
		return tx.Create(exit).Error
	})

	if err != nil {
		fields := map[string]interface{}{
			"repo":        "PositionRepository",
			"op":          "SaveExit",
			"position_id": pos.ID,
			"version":     expected,
		}
		if errors.Is(err, ErrVersionConflict) {
			logger.WithFields(fields).Warn("Position version conflict")
		} else {
			logger.WithFields(fields).WithError(err).Error("Failed to save position exit")
		}
		return err
	}

	pos.Version = expected + 1
	pos.Exits = append(pos.Exits, *exit)

	logger.WithFields(map[string]interface{}{
		"repo":        "PositionRepository",
		"op":          "SaveExit",
		"position_id": pos.ID,
		"status":      pos.Status,
		"remaining":   pos.CurrentQuantity,
		"reason":      exit.Reason,
	}).Info("Position exit saved")

	return nil
}

// UpdateMarks stores the latest broker view of a position. It does not bump
// the version because it never touches quantities.
func (r *PositionRepository) UpdateMarks(
	ctx context.Context,
	id uint,
	lastPrice, unrealized decimal.Decimal,
	mismatch bool,
	brokerQuantity *int64,
) error {
	return r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_price":        lastPrice,
			"unrealized_pnl":    unrealized,
			"quantity_mismatch": mismatch,
			"broker_quantity":   brokerQuantity,
		}).Error
}

// Search returns positions newest first.
func (r *PositionRepository) Search(ctx context.Context, options PositionSearchOptions) ([]model.Position, error) {
	q := r.db.WithContext(ctx).Model(&model.Position{})

	if options.UserID != 0 {
		q = q.Where("user_id = ?", options.UserID)
	}
	if options.BotID != nil {
		q = q.Where("bot_id = ?", *options.BotID)
	}
	if options.Status != nil {
		q = q.Where("status = ?", *options.Status)
	}

	q = q.Order("opened_at DESC, id DESC")

	if options.Limit > 0 {
		q = q.Limit(options.Limit)
	}
	if options.Offset > 0 {
		q = q.Offset(options.Offset)
	}

	var positions []model.Position
	if err := q.Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}

// UserBotPnl is the realized P&L of one user on one bot over a period.
type UserBotPnl struct {
	UserID uint
	BotID  uint
	Pnl    decimal.Decimal
}

// RealizedBetween sums exit P&L per (user, bot) for exits in [from, to).
func (r *PositionRepository) RealizedBetween(ctx context.Context, from, to time.Time) ([]UserBotPnl, error) {
	var exits []struct {
		UserID uint
		BotID  uint
		Pnl    decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Table("position_exits").
		Select("positions.user_id AS user_id, positions.bot_id AS bot_id, position_exits.pnl AS pnl").
		Joins("JOIN positions ON positions.id = position_exits.position_id").
		Where("position_exits.executed_at >= ? AND position_exits.executed_at < ?", from.UTC(), to.UTC()).
		Scan(&exits).Error
	if err != nil {
		return nil, err
	}

	// decimal sums are done here rather than in SQL so sqlite and postgres agree.
	index := map[[2]uint]int{}
	var out []UserBotPnl
	for _, e := range exits {
		key := [2]uint{e.UserID, e.BotID}
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, UserBotPnl{UserID: e.UserID, BotID: e.BotID, Pnl: decimal.Zero})
			i = len(out) - 1
		}
		out[i].Pnl = out[i].Pnl.Add(e.Pnl)
	}
	return out, nil
}
