package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"botexecutor/src/controller"
	"botexecutor/src/events"
	"botexecutor/src/executors"
	"botexecutor/src/handler"
	"botexecutor/src/reconciliation"
	"botexecutor/src/repository"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	logger "github.com/sirupsen/logrus"
)

// Routes carries the components behind the HTTP surface. Positions and
// Executions may be bound to the read replica.
type Routes struct {
	Bots         *repository.BotRepository
	Signals      *repository.WebhookSignalRepository
	Executions   *repository.ExecutionRepository
	Positions    *repository.PositionRepository
	Stops        *controller.EmergencyStopController
	Orchestrator *executors.Orchestrator
	Dispatcher   *executors.Dispatcher
	Validator    *reconciliation.Validator
	Hub          *events.Hub
	Passphrase   string
}

func NewRouter(routes Routes) http.Handler {
	r := chi.NewRouter()

	// === Global Middleware ===
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})

	r.Post("/webhook/signal", handler.WebhookSignalHandler(handler.WebhookDeps{
		Bots:       routes.Bots,
		Signals:    routes.Signals,
		Stops:      routes.Stops,
		Dispatcher: routes.Dispatcher,
		Passphrase: routes.Passphrase,
	}))

	r.Route("/emergency-stop", func(r chi.Router) {
		r.Get("/", handler.EmergencyStopStatusHandler(routes.Stops))
		r.Post("/", handler.EmergencyStopHandler(routes.Stops))
	})

	r.Route("/positions", func(r chi.Router) {
		r.Get("/", handler.SearchPositionsHandler(routes.Positions))
		r.Get("/{id}", handler.GetPositionHandler(routes.Positions))
		r.Post("/{id}/exit", handler.ExitPositionHandler(routes.Orchestrator))
		r.Post("/{id}/validate", handler.ValidatePositionHandler(routes.Positions, routes.Validator))
	})

	r.Get("/executions", handler.SearchExecutionsHandler(routes.Executions))
	r.Get("/signals/{id}", handler.GetSignalHandler(routes.Signals, routes.Executions))
	r.Get("/ws", handler.EventsWebsocketHandler(routes.Hub))

	return r
}

// StartServer serves h on port until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func StartServer(ctx context.Context, port string, h http.Handler, shutdownTimeout time.Duration) error {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}

	addr := ":" + port
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
		return err
	}
	return nil
}
