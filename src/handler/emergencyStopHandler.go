package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"botexecutor/src/controller"
	"botexecutor/src/externalmodel"
	"botexecutor/src/model"

	logger "github.com/sirupsen/logrus"
)

type stopController interface {
	Activate(ctx context.Context, botID *uint, reason string) (*controller.StopResult, error)
	Deactivate(ctx context.Context, botID *uint) error
	ActiveStops(ctx context.Context) ([]model.EmergencyStop, error)
}

type stopStatus struct {
	GlobalActive bool                  `json:"globalActive"`
	Stops        []model.EmergencyStop `json:"stops"`
}

// EmergencyStopHandler raises or lowers a global or bot-level stop.
func EmergencyStopHandler(stops stopController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload externalmodel.EmergencyStopRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		botID, err := payload.Scope()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if !payload.EmergencyStop {
			if err := stops.Deactivate(r.Context(), botID); err != nil {
				logger.WithError(err).Error("failed to lower emergency stop")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"active": false, "botId": botID})
			return
		}

		result, err := stops.Activate(r.Context(), botID, payload.Reason)
		if err != nil {
			logger.WithError(err).Error("failed to raise emergency stop")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// EmergencyStopStatusHandler lists the raised stops.
func EmergencyStopStatusHandler(stops stopController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		active, err := stops.ActiveStops(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to list emergency stops")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		status := stopStatus{Stops: active}
		for _, s := range active {
			if s.Scope == model.StopScopeGlobal {
				status.GlobalActive = true
			}
		}
		if status.Stops == nil {
			status.Stops = []model.EmergencyStop{}
		}
		writeJSON(w, http.StatusOK, status)
	}
}
