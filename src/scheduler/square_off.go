package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"botexecutor/src/controller"
	"botexecutor/src/model"
	"botexecutor/src/repository"
	"botexecutor/src/utils"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type candidateStore interface {
	FindSquareOffCandidates(ctx context.Context) ([]model.Position, error)
	ClaimSquareOff(ctx context.Context, id uint) (bool, error)
	ResetSquareOff(ctx context.Context, id uint) error
}

type positionExiter interface {
	ExitPosition(ctx context.Context, positionID uint, reason string, qty int64) (*model.TradeExecution, error)
}

// TickResult counts what one poll did.
type TickResult struct {
	Due     int `json:"due"`
	Claimed int `json:"claimed"`
	Exited  int `json:"exited"`
	Failed  int `json:"failed"`
}

// SquareOff exits intraday positions once their scheduled time has passed.
// Every tick starts from the repository query; nothing is remembered between
// ticks.
type SquareOff struct {
	positions   candidateStore
	exits       positionExiter
	exceptions  *repository.ExceptionRepository
	loc         *time.Location
	concurrency int
	log         *logger.Entry
	now         func() time.Time
}

func NewSquareOff(
	positions candidateStore,
	exits positionExiter,
	exceptions *repository.ExceptionRepository,
	loc *time.Location,
	concurrency int,
	log *logger.Entry,
) *SquareOff {
	if loc == nil {
		loc = utils.LoadLocation(utils.DefaultMarketTimezone)
	}
	if concurrency <= 0 {
		concurrency = 8
	}
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &SquareOff{
		positions:   positions,
		exits:       exits,
		exceptions:  exceptions,
		loc:         loc,
		concurrency: concurrency,
		log:         log.WithField("component", "square_off"),
		now:         time.Now,
	}
}

// IsDue reports whether pos must be squared off at now. The scheduled time
// is read against today's market date, and a position opened on an earlier
// day is always due.
func IsDue(pos *model.Position, now time.Time, loc *time.Location) (bool, error) {
	if pos.ScheduledExitTime == "" {
		return false, nil
	}
	if pos.OpenedAt.Before(utils.StartOfDay(now, loc)) {
		return true, nil
	}
	exitAt, err := utils.TodayAt(now, pos.ScheduledExitTime, loc)
	if err != nil {
		return false, err
	}
	return !now.Before(exitAt), nil
}

// Tick runs one poll. Due positions are claimed one by one; only the caller
// that wins the claim sends the exit, and a failed exit releases the claim
// for the next poll.
func (s *SquareOff) Tick(ctx context.Context) (*TickResult, error) {
	now := s.now()

	candidates, err := s.positions.FindSquareOffCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load square-off candidates: %w", err)
	}

	result := &TickResult{}
	var claimed []model.Position

	for _, pos := range candidates {
		due, err := IsDue(&pos, now, s.loc)
		if err != nil {
			s.log.WithFields(map[string]interface{}{
				"position_id":    pos.ID,
				"scheduled_exit": pos.ScheduledExitTime,
			}).WithError(err).Warn("Unreadable scheduled exit time, skipping")
			continue
		}
		if !due {
			continue
		}
		result.Due++

		won, err := s.positions.ClaimSquareOff(ctx, pos.ID)
		if err != nil {
			return result, fmt.Errorf("claim position %d: %w", pos.ID, err)
		}
		if !won {
			s.log.WithField("position_id", pos.ID).Debug("Square-off already claimed elsewhere")
			continue
		}
		result.Claimed++
		claimed = append(claimed, pos)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, pos := range claimed {
		g.Go(func() error {
			err := s.exit(gctx, pos)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
			} else {
				result.Exited++
			}
			return nil
		})
	}
	_ = g.Wait()

	if result.Due > 0 {
		s.log.WithFields(map[string]interface{}{
			"due":     result.Due,
			"claimed": result.Claimed,
			"exited":  result.Exited,
			"failed":  result.Failed,
		}).Info("Square-off tick finished")
	}
	return result, nil
}

func (s *SquareOff) exit(ctx context.Context, pos model.Position) error {
	log := s.log.WithFields(map[string]interface{}{
		"position_id":    pos.ID,
		"user_id":        pos.UserID,
		"symbol":         pos.Symbol,
		"qty":            pos.CurrentQuantity,
		"scheduled_exit": pos.ScheduledExitTime,
	})

	_, err := s.exits.ExitPosition(ctx, pos.ID, model.ExitReasonAutoSquareOff, 0)
	if err == nil {
		log.Info("Position squared off")
		return nil
	}

	log.WithError(err).Error("Square-off exit failed, releasing claim")
	if resetErr := s.positions.ResetSquareOff(context.WithoutCancel(ctx), pos.ID); resetErr != nil {
		log.WithError(resetErr).Error("Failed to release square-off claim")
	}
	controller.Capture(ctx, s.exceptions, "square_off", "Tick", "error", err, map[string]interface{}{
		"position_id": pos.ID,
	})
	return err
}
