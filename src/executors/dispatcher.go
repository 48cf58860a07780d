package executors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"botexecutor/src/controller"
	"botexecutor/src/model"
	"botexecutor/src/repository"

	logger "github.com/sirupsen/logrus"
)

type allocationSource interface {
	FindActiveByBot(ctx context.Context, botID uint) ([]model.UserBotAllocation, error)
}

type signalProcessor interface {
	ProcessSignal(ctx context.Context, signal *model.WebhookSignal, allocations []model.UserBotAllocation) (*Summary, error)
}

// Dispatcher runs accepted signals in the background so the webhook can
// answer before the fan-out resolves.
type Dispatcher struct {
	processor   signalProcessor
	allocations allocationSource
	exceptions  *repository.ExceptionRepository
	timeout     time.Duration
	log         *logger.Entry

	wg sync.WaitGroup
}

func NewDispatcher(
	processor signalProcessor,
	allocations allocationSource,
	exceptions *repository.ExceptionRepository,
	timeout time.Duration,
	log *logger.Entry,
) *Dispatcher {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &Dispatcher{
		processor:   processor,
		allocations: allocations,
		exceptions:  exceptions,
		timeout:     timeout,
		log:         log.WithField("component", "signal_dispatcher"),
	}
}

// Process loads the bot's active allocations and fans the signal out.
func (d *Dispatcher) Process(ctx context.Context, signal *model.WebhookSignal) (*Summary, error) {
	allocations, err := d.allocations.FindActiveByBot(ctx, signal.BotID)
	if err != nil {
		return nil, fmt.Errorf("load allocations for bot %d: %w", signal.BotID, err)
	}
	return d.processor.ProcessSignal(ctx, signal, allocations)
}

// Dispatch processes signal on its own goroutine with a detached deadline.
func (d *Dispatcher) Dispatch(signal *model.WebhookSignal) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		summary, err := d.Process(ctx, signal)
		if err != nil {
			controller.Capture(ctx, d.exceptions, "dispatcher", "Process", "error", err, map[string]interface{}{
				"signal_id": signal.ID,
				"bot_id":    signal.BotID,
			})
			return
		}

		d.log.WithFields(map[string]interface{}{
			"signal_id":  summary.SignalID,
			"total":      summary.Total,
			"successful": summary.Successful,
			"failed":     summary.Failed,
			"timed_out":  summary.TimedOut,
		}).Info("Signal dispatched")
	}()
}

// Wait blocks until every dispatched signal finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
