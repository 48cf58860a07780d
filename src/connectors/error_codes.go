package connectors

import (
	"fmt"
	"net/http"
)

// KiteErrorTypes maps Kite Connect error_type values to an error class.
var KiteErrorTypes = map[string]ErrorClass{
	"NetworkException":    ClassTransient, // upstream OMS or exchange unreachable
	"DataException":       ClassTransient, // internal error parsing OMS response
	"TokenException":      ClassPermanent, // session expired or invalidated
	"UserException":       ClassPermanent, // account level problem
	"PermissionException": ClassPermanent, // API key lacks permission
	"InputException":      ClassPermanent, // missing or invalid params
	"GeneralException":    ClassPermanent, // unclassified
	"OrderException":      ClassRejected,  // order placement or fetch failed
	"MarginException":     ClassRejected,  // insufficient funds
	"HoldingException":    ClassRejected,  // insufficient holdings for sell
}

// kiteError builds the typed gateway error for a failed Kite response.
// Throttling and 5xx statuses are transient whatever the error_type says.
func kiteError(status int, errorType, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	code := errorType
	if code == "" {
		code = fmt.Sprintf("HTTP_%d", status)
	}

	if status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500 {
		return &TransientError{Code: code, Message: message}
	}

	switch KiteErrorTypes[errorType] {
	case ClassTransient:
		return &TransientError{Code: code, Message: message}
	case ClassRejected:
		return &RejectedError{Code: code, Message: message}
	default:
		return &PermanentError{Code: code, Message: message}
	}
}
