package connectors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ClassNone},
		{"transient", &TransientError{Code: "NETWORK"}, ClassTransient},
		{"wrapped transient", fmt.Errorf("submit: %w", &TransientError{Code: "NETWORK"}), ClassTransient},
		{"permanent", &PermanentError{Code: "TokenException"}, ClassPermanent},
		{"rejected", &RejectedError{Code: "REJECTED"}, ClassRejected},
		{"deadline", context.DeadlineExceeded, ClassTransient},
		{"untyped", errors.New("unknown"), ClassPermanent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestTypedErrorsUnwrap(t *testing.T) {
	err := &TransientError{Code: "NETWORK", Message: "dial", Err: context.DeadlineExceeded}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "NETWORK")
	assert.Equal(t, "transient", ClassTransient.String())
}
