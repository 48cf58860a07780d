package executor

import (
	"fmt"

	"botexecutor/src/connectors"
	"botexecutor/src/controller"
	"botexecutor/src/database"
	"botexecutor/src/events"
	"botexecutor/src/executors"
	"botexecutor/src/position"
	"botexecutor/src/reconciliation"
	"botexecutor/src/repository"
	"botexecutor/src/risk"
	"botexecutor/src/scheduler"
	"botexecutor/src/security"
	"botexecutor/src/utils"

	"github.com/sirupsen/logrus"
)

// Components is the wired application shared by the server and the
// one-shot commands.
type Components struct {
	Bots        *repository.BotRepository
	Allocations *repository.AllocationRepository
	Accounts    *repository.UserBrokerAccountRepository
	Signals     *repository.WebhookSignalRepository
	Executions  *repository.ExecutionRepository
	Positions   *repository.PositionRepository
	Exceptions  *repository.ExceptionRepository

	// bound to the read replica
	PositionQueries  *repository.PositionRepository
	ExecutionQueries *repository.ExecutionRepository

	Hub          *events.Hub
	Gateways     *connectors.AccountGatewayProvider
	Manager      *position.Manager
	Orchestrator *executors.Orchestrator
	Dispatcher   *executors.Dispatcher
	Stops        *controller.EmergencyStopController
	SquareOff    *scheduler.SquareOff
	Validator    *reconciliation.Validator
	PnL          *controller.DailyPnLCollector
	MarketHours  risk.MarketHours
}

// Build opens the databases and wires every component.
func Build(log *logrus.Entry) (*Components, error) {
	if err := checkCredentialsKey(connectors.GetConfig().BrokerMode, security.CheckKey); err != nil {
		return nil, err
	}
	if err := database.InitMainDB(); err != nil {
		return nil, err
	}
	if err := database.InitReadOnlyDB(); err != nil {
		return nil, err
	}
	return wire(log), nil
}

// checkCredentialsKey fails startup when live broker tokens could not be
// opened. Paper mode never decrypts a token.
func checkCredentialsKey(mode string, check func() error) error {
	if mode == connectors.ModePaper {
		return nil
	}
	if err := check(); err != nil {
		return fmt.Errorf("broker mode %q needs a credentials key: %w", mode, err)
	}
	return nil
}

func wire(log *logrus.Entry) *Components {
	schedulerConfig := scheduler.GetConfig()
	executorsConfig := executors.GetConfig()
	loc := utils.LoadLocation(schedulerConfig.MarketTimezone)

	c := &Components{
		Bots:             repository.NewBotRepository(),
		Allocations:      repository.NewAllocationRepository(),
		Accounts:         repository.NewUserBrokerAccountRepository(),
		Signals:          repository.NewWebhookSignalRepository(),
		Executions:       repository.NewExecutionRepository(),
		Positions:        repository.NewPositionRepository(),
		Exceptions:       repository.NewExceptionRepository(),
		PositionQueries:  repository.NewPositionRepository().WithDB(database.ReadOnlyDB),
		ExecutionQueries: repository.NewExecutionRepository().WithDB(database.ReadOnlyDB),
		Hub:              events.NewHub(log),
		MarketHours:      risk.NewMarketHours(risk.GetConfig(), loc),
	}

	c.Gateways = connectors.NewAccountGatewayProvider(c.Accounts, connectors.GetConfig())
	c.Manager = position.NewManager(c.Positions, c.Executions, c.Hub, log)

	c.Orchestrator = executors.NewOrchestrator(executors.Dependencies{
		Bots:       c.Bots,
		Executions: c.Executions,
		Positions:  c.Positions,
		Signals:    c.Signals,
		Manager:    c.Manager,
		Gateways:   c.Gateways,
		Events:     c.Hub,
		Exceptions: c.Exceptions,
	}, executors.NewRetryPolicy(executorsConfig), executorsConfig, log)

	c.Stops = controller.NewEmergencyStopController(
		repository.NewEmergencyStopRepository(),
		c.Executions,
		c.Gateways,
		c.Exceptions,
		c.Hub,
		controller.GetConfig(),
		log,
	)

	c.SquareOff = scheduler.NewSquareOff(c.Positions, c.Orchestrator, c.Exceptions, loc, schedulerConfig.ExitConcurrency, log)
	c.Validator = reconciliation.NewValidator(c.Positions, c.Manager, c.Orchestrator, c.Gateways, c.Exceptions, reconciliation.GetConfig(), log)
	c.PnL = controller.NewDailyPnLCollector(c.Positions, repository.NewDailyPnLRepository(), loc, log)

	return c
}
