package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"botexecutor/src/database/dbtest"
	"botexecutor/src/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSignalMarkProcessedOnce(t *testing.T) {
	db := dbtest.NewSQLite(t)
	repo := (&WebhookSignalRepository{}).WithDB(db)
	ctx := context.Background()

	signal := &model.WebhookSignal{
		BotID:    1,
		Symbol:   "NIFTYFUT",
		Exchange: "NFO",
		Side:     model.SideBuy,
		Price:    decimal.NewFromInt(19500),
	}
	require.NoError(t, repo.Create(ctx, signal))
	assert.False(t, signal.ReceivedAt.IsZero())

	now := time.Now().UTC()
	require.NoError(t, repo.MarkProcessed(ctx, signal.ID, 3, 2, 1, now))
	assert.ErrorIs(t, repo.MarkProcessed(ctx, signal.ID, 3, 3, 0, now), ErrSignalAlreadyProcessed)

	stored, err := repo.FindByID(ctx, signal.ID)
	require.NoError(t, err)
	assert.True(t, stored.Processed)
	assert.Equal(t, 3, stored.TotalUsersTargeted)
	assert.Equal(t, 2, stored.SuccessfulExecutions)
	assert.Equal(t, 1, stored.FailedExecutions)

	missing, err := repo.FindByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAllocationRepositoryFindActiveByBot(t *testing.T) {
	mockDB, mock := dbtest.NewMock(t)
	repo := &AllocationRepository{db: mockDB}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "user_bot_allocations" WHERE bot_id = $1 AND is_active = $2 ORDER BY id ASC`)).
		WithArgs(uint(4), true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "bot_id", "allocated_capital", "is_active"}).
			AddRow(1, 10, 4, "150000", true).
			AddRow(2, 11, 4, "300000", true))

	allocations, err := repo.FindActiveByBot(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, allocations, 2)
	assert.True(t, allocations[1].AllocatedCapital.Equal(decimal.NewFromInt(300000)))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBotRepositoryUpsertByName(t *testing.T) {
	db := dbtest.NewSQLite(t)
	repo := (&BotRepository{}).WithDB(db)
	ctx := context.Background()

	bot := &model.Bot{
		Name:         "nifty-momentum",
		Symbol:       "NIFTYFUT",
		Exchange:     "NFO",
		LotSize:      50,
		MarginPerLot: decimal.NewFromInt(120000),
		IsIntraday:   true,
		Active:       true,
	}
	require.NoError(t, repo.Upsert(ctx, bot))
	require.NotZero(t, bot.ID)

	update := &model.Bot{
		Name:         "nifty-momentum",
		Symbol:       "NIFTYFUT",
		Exchange:     "NFO",
		LotSize:      25,
		MarginPerLot: decimal.NewFromInt(120000),
		Active:       true,
	}
	require.NoError(t, repo.Upsert(ctx, update))
	assert.Equal(t, bot.ID, update.ID)

	stored, err := repo.FindByID(ctx, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(25), stored.LotSize)
}

func TestDailyPnLRecordAtMostOnce(t *testing.T) {
	db := dbtest.NewSQLite(t)
	repo := (&DailyPnLRepository{}).WithDB(db)
	ctx := context.Background()

	created, err := repo.Record(ctx, &model.DailyPnLSnapshot{UserID: 1, Date: "2026-10-15", PortfolioPnl: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Record(ctx, &model.DailyPnLSnapshot{UserID: 1, Date: "2026-10-15", PortfolioPnl: decimal.NewFromInt(99)})
	require.NoError(t, err)
	assert.False(t, created)

	stored, err := repo.FindByUserAndDate(ctx, 1, "2026-10-15")
	require.NoError(t, err)
	assert.True(t, stored.PortfolioPnl.Equal(decimal.NewFromInt(10)))
}
