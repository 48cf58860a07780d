package handler

import (
	"context"
	"net/http"

	"botexecutor/src/model"
	"botexecutor/src/repository"

	logger "github.com/sirupsen/logrus"
)

type executionSearcher interface {
	Search(ctx context.Context, options repository.ExecutionSearchOptions) ([]model.TradeExecution, error)
}

type signalFinder interface {
	FindByID(ctx context.Context, id uint) (*model.WebhookSignal, error)
}

type signalExecutions interface {
	FindBySignal(ctx context.Context, signalID uint) ([]model.TradeExecution, error)
}

// SearchExecutionsHandler lists ledger rows newest first.
// Filters: userId, botId, signalId, status. Paging: limit, offset.
func SearchExecutionsHandler(repo executionSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := queryUint(r, "userId")
		if !ok {
			http.Error(w, "invalid userId", http.StatusBadRequest)
			return
		}
		botID, ok := queryUint(r, "botId")
		if !ok {
			http.Error(w, "invalid botId", http.StatusBadRequest)
			return
		}
		signalID, ok := queryUint(r, "signalId")
		if !ok {
			http.Error(w, "invalid signalId", http.StatusBadRequest)
			return
		}
		limit, offset, ok := paging(r)
		if !ok {
			http.Error(w, "invalid limit or offset", http.StatusBadRequest)
			return
		}

		options := repository.ExecutionSearchOptions{
			BotID:    botID,
			SignalID: signalID,
			Status:   queryString(r, "status"),
			Limit:    limit,
			Offset:   offset,
		}
		if userID != nil {
			options.UserID = *userID
		}

		execs, err := repo.Search(r.Context(), options)
		if err != nil {
			logger.WithError(err).Error("failed to search executions")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if execs == nil {
			execs = []model.TradeExecution{}
		}
		writeJSON(w, http.StatusOK, execs)
	}
}

type signalResponse struct {
	Signal     *model.WebhookSignal   `json:"signal"`
	Executions []model.TradeExecution `json:"executions"`
}

// GetSignalHandler returns a signal with its per-user ledger rows.
func GetSignalHandler(signals signalFinder, executions signalExecutions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			http.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		signal, err := signals.FindByID(r.Context(), id)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if signal == nil {
			http.Error(w, "signal not found", http.StatusNotFound)
			return
		}

		execs, err := executions.FindBySignal(r.Context(), id)
		if err != nil {
			logger.WithError(err).WithField("signal_id", id).Error("failed to load signal executions")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if execs == nil {
			execs = []model.TradeExecution{}
		}
		writeJSON(w, http.StatusOK, signalResponse{Signal: signal, Executions: execs})
	}
}
