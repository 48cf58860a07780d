package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"botexecutor/src/model"
	"botexecutor/src/repository"
	"botexecutor/src/utils"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

type realizedSource interface {
	RealizedBetween(ctx context.Context, from, to time.Time) ([]repository.UserBotPnl, error)
}

type snapshotStore interface {
	Record(ctx context.Context, snapshot *model.DailyPnLSnapshot) (bool, error)
}

// PnLResult summarizes one collection run.
type PnLResult struct {
	Date     string
	Users    int
	Recorded int
	Skipped  int
}

// DailyPnLCollector writes one DailyPnLSnapshot per user and market day from
// the realized P&L of the exits filled that day.
type DailyPnLCollector struct {
	source    realizedSource
	snapshots snapshotStore
	loc       *time.Location
	log       *logger.Entry
}

func NewDailyPnLCollector(source realizedSource, snapshots snapshotStore, loc *time.Location, log *logger.Entry) *DailyPnLCollector {
	if loc == nil {
		loc = utils.LoadLocation(utils.DefaultMarketTimezone)
	}
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &DailyPnLCollector{
		source:    source,
		snapshots: snapshots,
		loc:       loc,
		log:       log.WithField("component", "pnl_collector"),
	}
}

// RecordForDate snapshots the market day containing day. Users that already
// have a snapshot for that date are skipped, so reruns are harmless.
func (c *DailyPnLCollector) RecordForDate(ctx context.Context, day time.Time) (*PnLResult, error) {
	from := utils.StartOfDay(day, c.loc)
	to := from.AddDate(0, 0, 1)
	dateKey := utils.DateKey(from, c.loc)

	rows, err := c.source.RealizedBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load realized pnl for %s: %w", dateKey, err)
	}

	perUser := map[uint]map[string]decimal.Decimal{}
	for _, row := range rows {
		bots, ok := perUser[row.UserID]
		if !ok {
			bots = map[string]decimal.Decimal{}
			perUser[row.UserID] = bots
		}
		key := strconv.FormatUint(uint64(row.BotID), 10)
		bots[key] = bots[key].Add(row.Pnl)
	}

	users := make([]uint, 0, len(perUser))
	for userID := range perUser {
		users = append(users, userID)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })

	result := &PnLResult{Date: dateKey, Users: len(users)}
	for _, userID := range users {
		bots := perUser[userID]

		total := decimal.Zero
		for _, pnl := range bots {
			total = total.Add(pnl)
		}
		botJSON, err := json.Marshal(bots)
		if err != nil {
			return result, err
		}

		created, err := c.snapshots.Record(ctx, &model.DailyPnLSnapshot{
			UserID:       userID,
			Date:         dateKey,
			PortfolioPnl: total,
			BotPnl:       string(botJSON),
		})
		if err != nil {
			return result, fmt.Errorf("record pnl for user %d on %s: %w", userID, dateKey, err)
		}
		if created {
			result.Recorded++
		} else {
			result.Skipped++
		}
	}

	c.log.WithFields(map[string]interface{}{
		"date":     dateKey,
		"users":    result.Users,
		"recorded": result.Recorded,
		"skipped":  result.Skipped,
	}).Info("Daily pnl snapshot collected")

	return result, nil
}
