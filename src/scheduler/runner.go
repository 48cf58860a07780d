package scheduler

import (
	"context"
	"fmt"
	"time"

	"botexecutor/src/risk"

	"github.com/robfig/cron/v3"
	logger "github.com/sirupsen/logrus"
)

// Job is a unit of background work run by the Runner.
type Job func(ctx context.Context) error

// Runner owns the process cron. Specs carry a seconds field and are read in
// the market time zone. A job never overlaps with its own previous run.
type Runner struct {
	cron  *cron.Cron
	hours risk.MarketHours
	log   *logger.Entry

	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time
}

func NewRunner(hours risk.MarketHours, log *logger.Entry) *Runner {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	log = log.WithField("component", "cron")
	cronLog := cronLogger{log: log}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(hours.Location),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		hours:  hours,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
	}
}

// Add registers job under spec. With marketHoursOnly the job is skipped
// outside the regular session.
func (r *Runner) Add(name, spec string, marketHoursOnly bool, job Job) error {
	_, err := r.cron.AddFunc(spec, func() {
		if marketHoursOnly && !r.hours.IsMarketOpen(r.now()) {
			return
		}
		started := time.Now()
		if err := job(r.ctx); err != nil {
			r.log.WithField("job", name).WithError(err).Error("Cron job failed")
			return
		}
		r.log.WithFields(map[string]interface{}{
			"job":     name,
			"elapsed": time.Since(started).String(),
		}).Debug("Cron job finished")
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	r.log.WithFields(map[string]interface{}{"job": name, "spec": spec}).Info("Cron job scheduled")
	return nil
}

func (r *Runner) Start() {
	r.cron.Start()
}

// Stop stops scheduling, cancels running jobs and waits for them to return.
func (r *Runner) Stop() {
	stopped := r.cron.Stop()
	r.cancel()
	<-stopped.Done()
}

// cronLogger routes robfig/cron diagnostics to logrus.
type cronLogger struct {
	log *logger.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kv(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kv(keysAndValues)).WithError(err).Error(msg)
}

func kv(keysAndValues []interface{}) logger.Fields {
	fields := logger.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
