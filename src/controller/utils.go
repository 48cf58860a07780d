package controller

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"strings"
	"time"

	"botexecutor/src/model"
	"botexecutor/src/repository"

	logger "github.com/sirupsen/logrus"
)

// ServiceName tags every captured exception.
const ServiceName = "botexecutor"

// NormalizeSymbol cleans a TradingView ticker into a broker trading symbol.
// An "EXCHANGE:" prefix is split off and returned as the exchange.
// Examples:
//
//	nfo:niftyfut     -> NIFTYFUT, NFO
//	 BANKNIFTY24DECFUT -> BANKNIFTY24DECFUT, ""
func NormalizeSymbol(ticker string) (string, string) {
	s := strings.ToUpper(strings.TrimSpace(ticker))
	if s == "" {
		return "", ""
	}

	if i := strings.Index(s, ":"); i >= 0 {
		return strings.TrimSpace(s[i+1:]), strings.TrimSpace(s[:i])
	}
	return s, ""
}

// Capture records a system exception, logs it locally, and optionally
// persists it in the database.
func Capture(
	ctx context.Context,
	repo *repository.ExceptionRepository,
	module string,
	method string,
	level string,
	err error,
	contextData map[string]interface{},
) {
	if err == nil {
		return
	}

	var ctxJSON string
	if contextData != nil {
		if b, e := json.Marshal(contextData); e == nil {
			ctxJSON = string(b)
		}
	}

	exc := &model.Exception{
		Service:   ServiceName,
		Module:    module,
		Method:    method,
		Message:   err.Error(),
		Stack:     string(debug.Stack()),
		Level:     level,
		Context:   ctxJSON,
		CreatedAt: time.Now().UTC(),
	}

	// Local log
	logger.WithFields(map[string]interface{}{
		"service": ServiceName,
		"module":  module,
		"method":  method,
		"level":   level,
	}).WithError(err).Error("System exception captured")

	// Persist in database. A cancelled request context must not lose the record.
	if repo != nil {
		if e := repo.Create(context.WithoutCancel(ctx), exc); e != nil {
			logger.WithError(e).Error("Failed to persist exception")
		}
	}
}
