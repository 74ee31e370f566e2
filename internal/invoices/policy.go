package invoices

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FallbackPolicy decides whether a failed remote write may be retried
// against local storage.
type FallbackPolicy func(err error) bool

// AnyFailure falls back on every remote failure except the caller giving up.
func AnyFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// TransientOnly falls back only when the remote store looks unreachable or
// overloaded. Errors without a gRPC status count as Unknown and fall back.
func TransientOnly(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch status.Code(err) {
	case codes.Unavailable,
		codes.DeadlineExceeded,
		codes.ResourceExhausted,
		codes.Aborted,
		codes.Internal,
		codes.Unknown:
		return true
	}
	return false
}

// PolicyByName maps a configuration value to a policy. Unknown names get
// AnyFailure.
func PolicyByName(name string) FallbackPolicy {
	if name == "transient" {
		return TransientOnly
	}
	return AnyFailure
}
