package provider

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/parleylabs/recall-go/core"
)

// Errf wraps err as a typed provider failure.
func Errf(name string, kind core.ProviderErrorKind, err error) *core.ProviderError {
	return &core.ProviderError{Kind: kind, Provider: name, Err: err}
}

// ErrFromStatus maps an HTTP status code from a provider API to the
// failure taxonomy. Used by the SDK-backed variants, which all speak
// HTTP underneath.
func ErrFromStatus(name string, status int, err error) *core.ProviderError {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Errf(name, core.AuthFailure, err)
	case status == http.StatusTooManyRequests:
		return Errf(name, core.RateLimited, err)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return Errf(name, core.Timeout, err)
	case status >= 400 && status < 500:
		return Errf(name, core.UnsupportedRequest, err)
	default:
		return Errf(name, core.TransportError, err)
	}
}

// ClassifyErr maps non-HTTP failures: deadline expiry becomes Timeout,
// everything else a transport error. Context cancellation is passed
// through untouched so callers can tell user cancellation apart from
// provider failure.
func ClassifyErr(name string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Errf(name, core.Timeout, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return Errf(name, core.Timeout, err)
	}
	return Errf(name, core.TransportError, err)
}
