package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"botexecutor/cmd/executor"
	"botexecutor/cmd/keys"
	"botexecutor/src/database"
	"botexecutor/src/repository"
	"botexecutor/src/scheduler"
	"botexecutor/src/security"
	"botexecutor/src/utils"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var Version string

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("Failed to load .env")
	}
	executor.SetupLogger(executor.GetConfig())

	app := cli.NewApp()
	app.Name = "botexecutor"
	app.Usage = "TradingView signal executor for Zerodha Kite"
	app.Version = Version

	app.Commands = []cli.Command{
		serveCMD,
		squareOffCMD,
		reconcileCMD,
		pnlCMD,
		exitCMD,
		seedCMD,
		encryptCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	serveCMD = cli.Command{
		Name:        "serve",
		Usage:       "run the webhook server and the crons",
		Action:      serveAction,
		Description: `Serve the HTTP API and run square-off, reconciliation and P&L jobs`,
	}
	squareOffCMD = cli.Command{
		Name:        "squareoff",
		Usage:       "run one square-off pass",
		Action:      squareOffAction,
		Description: `Exit every intraday position whose square-off time has passed`,
	}
	reconcileCMD = cli.Command{
		Name:   "reconcile",
		Usage:  "reconcile open positions with the broker",
		Action: reconcileAction,
		Flags: []cli.Flag{
			cli.UintFlag{Name: "position", Usage: "reconcile only this position id"},
		},
	}
	pnlCMD = cli.Command{
		Name:   "pnl",
		Usage:  "record daily P&L snapshots",
		Action: pnlAction,
		Flags: []cli.Flag{
			cli.StringFlag{Name: "date", Usage: "market date YYYY-MM-DD, today when empty"},
		},
	}
	exitCMD = cli.Command{
		Name:   "exit",
		Usage:  "exit a position",
		Action: exitAction,
		Flags: []cli.Flag{
			cli.UintFlag{Name: "position", Usage: "position id"},
			cli.Int64Flag{Name: "qty", Usage: "quantity to exit, everything when 0"},
			cli.StringFlag{Name: "reason", Value: "MANUAL", Usage: "MANUAL or EMERGENCY"},
		},
	}
	seedCMD = cli.Command{
		Name:   "seed",
		Usage:  "load bots, broker accounts and allocations from YAML",
		Action: seedAction,
		Flags: []cli.Flag{
			cli.StringFlag{Name: "file", Value: "seed.yaml", Usage: "seed file path"},
		},
	}
	encryptCMD = cli.Command{
		Name:      "encrypt",
		Usage:     "seal a broker access token for storage",
		ArgsUsage: "<plaintext>",
		Action:    encryptAction,
		Flags: []cli.Flag{
			cli.BoolFlag{Name: "passphrase", Usage: "bcrypt hash a webhook passphrase instead"},
		},
	}
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func serveAction(_ *cli.Context) error {
	logrus.Info("Starting executor CMD")

	e := &executor.Executor{}
	if err := e.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func squareOffAction(_ *cli.Context) error {
	ctx, stop := signalContext()
	defer stop()

	app, err := executor.Build(logrus.WithField("cmd", "squareoff"))
	if err != nil {
		return err
	}
	result, err := app.SquareOff.Tick(ctx)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func reconcileAction(c *cli.Context) error {
	ctx, stop := signalContext()
	defer stop()

	app, err := executor.Build(logrus.WithField("cmd", "reconcile"))
	if err != nil {
		return err
	}

	if id := c.Uint("position"); id != 0 {
		pos, err := app.Positions.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if pos == nil {
			return fmt.Errorf("position %d not found", id)
		}
		result, action, err := app.Validator.Reconcile(ctx, pos)
		if printErr := printJSON(map[string]interface{}{"result": result, "action": action}); printErr != nil {
			return printErr
		}
		return err
	}

	report, err := app.Validator.RunAll(ctx)
	if report != nil {
		if printErr := printJSON(report); printErr != nil {
			return printErr
		}
	}
	return err
}

func pnlAction(c *cli.Context) error {
	ctx, stop := signalContext()
	defer stop()

	loc := utils.LoadLocation(scheduler.GetConfig().MarketTimezone)
	day := time.Now().In(loc)
	if raw := c.String("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", raw, err)
		}
		day = parsed
	}

	app, err := executor.Build(logrus.WithField("cmd", "pnl"))
	if err != nil {
		return err
	}
	result, err := app.PnL.RecordForDate(ctx, day)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func exitAction(c *cli.Context) error {
	ctx, stop := signalContext()
	defer stop()

	id := c.Uint("position")
	if id == 0 {
		return errors.New("--position is required")
	}

	app, err := executor.Build(logrus.WithField("cmd", "exit"))
	if err != nil {
		return err
	}
	exec, err := app.Orchestrator.ExitPosition(ctx, id, c.String("reason"), c.Int64("qty"))
	if exec != nil {
		if printErr := printJSON(exec); printErr != nil {
			return printErr
		}
	}
	return err
}

func seedAction(c *cli.Context) error {
	ctx, stop := signalContext()
	defer stop()

	file, err := keys.LoadSeedFile(c.String("file"))
	if err != nil {
		return err
	}
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to database")
		return err
	}

	seeder := &keys.Seeder{
		Bots:        repository.NewBotRepository(),
		Accounts:    repository.NewUserBrokerAccountRepository(),
		Allocations: repository.NewAllocationRepository(),
		Config:      keys.GetConfig(),
		Log:         logrus.WithField("cmd", "seed"),
	}
	summary, err := seeder.Apply(ctx, file)
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func encryptAction(c *cli.Context) error {
	plaintext := c.Args().First()
	if plaintext == "" {
		return errors.New("usage: encrypt <plaintext>")
	}

	if c.Bool("passphrase") {
		hashed, err := security.HashPassphrase(plaintext)
		if err != nil {
			return err
		}
		fmt.Println(hashed)
		return nil
	}

	sealed, err := security.EncryptString(plaintext)
	if err != nil {
		return err
	}
	fmt.Println(sealed)
	return nil
}
