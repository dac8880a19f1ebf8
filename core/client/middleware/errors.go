package middleware

import "errors"

// ErrRetryExhausted is returned by the retry middleware when all retry
// attempts have been consumed without a successful response. The error wraps
// the last underlying provider error so callers can use errors.Is /
// errors.As to inspect the root cause.
var ErrRetryExhausted = errors.New("listing-agent: all retry attempts exhausted")
