package connectors

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorClass drives the retry decision for a failed broker call.
type ErrorClass int

const (
	ClassNone ErrorClass = iota
	ClassTransient
	ClassPermanent
	ClassRejected
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	case ClassRejected:
		return "rejected"
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// TransientError is a failure that may succeed when retried: network errors,
// timeouts, throttling and broker-side outages.
type TransientError struct {
	Code    string
	Message string
	Err     error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient broker error [%s]: %s", e.Code, e.Message)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError is a failure that will not change on retry: bad credentials,
// missing permissions, malformed input.
type PermanentError struct {
	Code    string
	Message string
	Err     error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent broker error [%s]: %s", e.Code, e.Message)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// RejectedError means the broker received the order and refused it
// (margin, price bands, RMS rules).
type RejectedError struct {
	Code    string
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("order rejected [%s]: %s", e.Code, e.Message)
}

// Classify maps any error returned by a gateway to its ErrorClass.
// Untyped errors are treated as permanent so they are never blindly retried,
// except for deadline and network errors which are transient.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}

	var transient *TransientError
	var permanent *PermanentError
	var rejected *RejectedError
	switch {
	case errors.As(err, &rejected):
		return ClassRejected
	case errors.As(err, &permanent):
		return ClassPermanent
	case errors.As(err, &transient):
		return ClassTransient
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}
	return ClassPermanent
}

// IsTransient is a convenience for retry policies.
func IsTransient(err error) bool {
	return Classify(err) == ClassTransient
}
