package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"botexecutor/src/controller"
	"botexecutor/src/externalmodel"
	"botexecutor/src/model"
	"botexecutor/src/repository"
	"botexecutor/src/security"

	logger "github.com/sirupsen/logrus"
)

const maxWebhookBody = 64 << 10

type botFinder interface {
	FindByID(ctx context.Context, id uint) (*model.Bot, error)
}

type signalWriter interface {
	Create(ctx context.Context, signal *model.WebhookSignal) error
	MarkProcessed(ctx context.Context, id uint, total, successful, failed int, at time.Time) error
}

type stopActivator interface {
	Activate(ctx context.Context, botID *uint, reason string) (*controller.StopResult, error)
}

type signalDispatcher interface {
	Dispatch(signal *model.WebhookSignal)
}

// WebhookDeps is everything the signal intake needs.
type WebhookDeps struct {
	Bots       botFinder
	Signals    signalWriter
	Stops      stopActivator
	Dispatcher signalDispatcher
	// Passphrase is checked when the bot has none of its own.
	Passphrase string
}

type webhookResponse struct {
	SignalID      uint `json:"signalId"`
	EmergencyStop bool `json:"emergencyStop,omitempty"`
}

// WebhookSignalHandler accepts TradingView alerts. The signal is stored
// before the response and executed in the background; an alert carrying
// emergencyStop raises the bot's stop instead of trading.
func WebhookSignalHandler(deps WebhookDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.WithField("handler", "webhook_signal")

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		var payload externalmodel.TradingSignal
		if err := json.Unmarshal(body, &payload); err != nil {
			log.WithError(err).Warn("invalid webhook payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}
		if err := payload.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		bot, err := deps.Bots.FindByID(r.Context(), payload.BotID)
		if err != nil {
			log.WithError(err).Error("failed to load bot")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if bot == nil {
			http.Error(w, "unknown bot", http.StatusNotFound)
			return
		}

		expected := bot.WebhookPassphrase
		if expected == "" {
			expected = deps.Passphrase
		}
		if expected != "" && !security.CheckPassphrase(expected, payload.Passphrase) {
			log.WithField("bot_id", bot.ID).Warn("webhook passphrase mismatch")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if !bot.Active && !payload.EmergencyStop {
			http.Error(w, "bot is inactive", http.StatusConflict)
			return
		}

		symbol, exchange := controller.NormalizeSymbol(payload.Symbol)
		if payload.Exchange != "" {
			exchange = strings.ToUpper(strings.TrimSpace(payload.Exchange))
		}
		if symbol == "" {
			symbol = bot.Symbol
		}
		if exchange == "" {
			exchange = bot.Exchange
		}

		signal := payload.ToWebhookSignal(symbol, exchange, body, time.Now())
		if err := deps.Signals.Create(r.Context(), signal); err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if payload.EmergencyStop {
			if _, err := deps.Stops.Activate(r.Context(), &bot.ID, "webhook alert"); err != nil {
				log.WithError(err).WithField("bot_id", bot.ID).Error("failed to raise emergency stop")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			err := deps.Signals.MarkProcessed(r.Context(), signal.ID, 0, 0, 0, time.Now().UTC())
			if err != nil && !errors.Is(err, repository.ErrSignalAlreadyProcessed) {
				log.WithError(err).WithField("signal_id", signal.ID).Warn("failed to close emergency signal")
			}
			writeJSON(w, http.StatusAccepted, webhookResponse{SignalID: signal.ID, EmergencyStop: true})
			return
		}

		deps.Dispatcher.Dispatch(signal)

		log.WithFields(map[string]interface{}{
			"signal_id": signal.ID,
			"bot_id":    bot.ID,
			"symbol":    signal.Symbol,
			"side":      signal.Side,
		}).Info("webhook signal accepted")

		writeJSON(w, http.StatusAccepted, webhookResponse{SignalID: signal.ID})
	}
}
