// Package errors provides examples of structured error handling in brightsync.
package errors_test

import (
	"fmt"

	"github.com/ajitpratap0/brightsync/pkg/errors"
)

// Example demonstrates basic error creation and wrapping.
func Example() {
	err := errors.New(errors.ErrorTypeRateLimit, "rate limit exceeded").
		WithDetail("http_status", 429).
		WithDetail("endpoint", "/datasets/filter")

	fmt.Println(err.Error())

	// Output:
	// rate_limit: rate limit exceeded
}

// ExampleWrap shows how the sync wrapper preserves the typed cause chain.
func ExampleWrap() {
	cause := errors.New(errors.ErrorTypeValidation, "filter did not match any records")

	err := errors.Wrap(cause, errors.ErrorTypeSync, "failed to sync data from Bright Data")

	fmt.Println(errors.IsType(err, errors.ErrorTypeSync))
	fmt.Println(errors.IsType(cause, errors.ErrorTypeValidation))
	fmt.Println(err)

	// Output:
	// true
	// true
	// sync: failed to sync data from Bright Data: validation: filter did not match any records
}

// ExampleIsRetryable shows which error classes a caller may retry.
func ExampleIsRetryable() {
	transient := errors.New(errors.ErrorTypeConnection, "connection reset")
	terminal := errors.New(errors.ErrorTypeAPI, "insufficient account balance")

	fmt.Println(errors.IsRetryable(transient))
	fmt.Println(errors.IsRetryable(terminal))

	// Output:
	// true
	// false
}
