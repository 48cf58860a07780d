package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"botexecutor/src/externalmodel"
	"botexecutor/src/model"
	"botexecutor/src/position"
	"botexecutor/src/reconciliation"
	"botexecutor/src/repository"

	logger "github.com/sirupsen/logrus"
)

type positionSearcher interface {
	Search(ctx context.Context, options repository.PositionSearchOptions) ([]model.Position, error)
	FindByID(ctx context.Context, id uint) (*model.Position, error)
}

type positionExiter interface {
	ExitPosition(ctx context.Context, positionID uint, reason string, qty int64) (*model.TradeExecution, error)
}

type positionReconciler interface {
	Reconcile(ctx context.Context, pos *model.Position) (reconciliation.Result, reconciliation.Action, error)
}

// SearchPositionsHandler lists positions newest first.
// Filters: userId, botId, status. Paging: limit, offset.
func SearchPositionsHandler(repo positionSearcher) http.HandlerFunc {
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
		limit, offset, ok := paging(r)
		if !ok {
			http.Error(w, "invalid limit or offset", http.StatusBadRequest)
			return
		}

		options := repository.PositionSearchOptions{
			BotID:  botID,
			Status: queryString(r, "status"),
			Limit:  limit,
			Offset: offset,
		}
		if userID != nil {
			options.UserID = *userID
		}

		positions, err := repo.Search(r.Context(), options)
		if err != nil {
			logger.WithError(err).Error("failed to search positions")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if positions == nil {
			positions = []model.Position{}
		}
		writeJSON(w, http.StatusOK, positions)
	}
}

// GetPositionHandler returns one position with its exits.
func GetPositionHandler(repo positionSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			http.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		pos, err := repo.FindByID(r.Context(), id)
		if err != nil {
			logger.WithError(err).WithField("position_id", id).Error("failed to load position")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if pos == nil {
			http.Error(w, "position not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, pos)
	}
}

// ExitPositionHandler sends a manual exit order. An empty body exits the
// whole remaining quantity.
func ExitPositionHandler(exits positionExiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			http.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		var payload externalmodel.ExitRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}
		if err := payload.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		exec, err := exits.ExitPosition(r.Context(), id, payload.ExitReason(), payload.Quantity)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, exec)
		case errors.Is(err, position.ErrPositionNotFound):
			http.Error(w, "position not found", http.StatusNotFound)
		case errors.Is(err, position.ErrPositionClosed):
			http.Error(w, "position is closed", http.StatusConflict)
		case errors.Is(err, position.ErrExitInProgress):
			http.Error(w, "another exit is in flight for the position", http.StatusConflict)
		case errors.Is(err, position.ErrExitExceedsQuantity), errors.Is(err, position.ErrInvalidExitQuantity):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case exec != nil:
			// the exit order was recorded but did not fill
			logger.WithError(err).WithField("position_id", id).Warn("manual exit failed")
			writeJSON(w, http.StatusBadGateway, exec)
		default:
			logger.WithError(err).WithField("position_id", id).Error("manual exit errored")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}

type validateResponse struct {
	Result reconciliation.Result `json:"result"`
	Action reconciliation.Action `json:"action"`
	Error  string                `json:"error,omitempty"`
}

// ValidatePositionHandler reconciles one position against the broker now.
func ValidatePositionHandler(repo positionSearcher, reconciler positionReconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			http.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		pos, err := repo.FindByID(r.Context(), id)
		if err != nil {
			logger.WithError(err).WithField("position_id", id).Error("failed to load position")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if pos == nil {
			http.Error(w, "position not found", http.StatusNotFound)
			return
		}

		result, action, err := reconciler.Reconcile(r.Context(), pos)
		resp := validateResponse{Result: result, Action: action}
		if err != nil {
			logger.WithError(err).WithField("position_id", id).Warn("position reconciliation incomplete")
			resp.Error = err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
