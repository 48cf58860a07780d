package executor

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"botexecutor/src/executors"
	"botexecutor/src/scheduler"
	"botexecutor/src/server"

	"github.com/sirupsen/logrus"
)

// Executor runs the webhook server together with the square-off,
// reconciliation and P&L crons until SIGINT/SIGTERM.
type Executor struct{}

func (t *Executor) Start() error {
	serverConfig := server.GetConfig()
	schedulerConfig := scheduler.GetConfig()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	log := logrus.WithField("cmd", "serve")

	app, err := Build(log)
	if err != nil {
		logrus.WithError(err).Error("Failed to connect to main database")
		return err
	}

	go app.Hub.Run(ctx)

	app.Dispatcher = executors.NewDispatcher(app.Orchestrator, app.Allocations, app.Exceptions, serverConfig.SignalProcessTimeout, log)

	runner := scheduler.NewRunner(app.MarketHours, log)
	if err := registerJobs(runner, app, schedulerConfig); err != nil {
		return err
	}
	runner.Start()

	router := server.NewRouter(server.Routes{
		Bots:         app.Bots,
		Signals:      app.Signals,
		Executions:   app.ExecutionQueries,
		Positions:    app.PositionQueries,
		Stops:        app.Stops,
		Orchestrator: app.Orchestrator,
		Dispatcher:   app.Dispatcher,
		Validator:    app.Validator,
		Hub:          app.Hub,
		Passphrase:   serverConfig.WebhookPassphrase,
	})

	serveErr := server.StartServer(ctx, serverConfig.Port, router, serverConfig.ShutdownTimeout)

	runner.Stop()
	app.Dispatcher.Wait()
	logrus.Info("Executor stopped")

	return serveErr
}

func registerJobs(runner *scheduler.Runner, app *Components, config scheduler.Config) error {
	if err := runner.Add("square_off", config.SquareOffSpec, true, func(ctx context.Context) error {
		_, err := app.SquareOff.Tick(ctx)
		return err
	}); err != nil {
		return err
	}

	if err := runner.Add("reconcile", config.ReconcileSpec, true, func(ctx context.Context) error {
		_, err := app.Validator.RunAll(ctx)
		return err
	}); err != nil {
		return err
	}

	return runner.Add("pnl_snapshot", config.PnLSnapshotSpec, false, func(ctx context.Context) error {
		_, err := app.PnL.RecordForDate(ctx, time.Now())
		return err
	})
}
