// Package climatology looks up long-run monthly precipitation rates for a point.
package climatology

import (
	"context"
	"errors"

	"github.com/stwalsh4118/rainyield/internal/models"
)

var (
	// ErrUnavailable covers transport failures, timeouts and non-2xx responses.
	ErrUnavailable = errors.New("climatology service unavailable")
	// ErrMalformedResponse is returned when the response body is not the expected JSON.
	ErrMalformedResponse = errors.New("malformed climatology response")
	// ErrNoData is returned when the response carries no usable monthly rate.
	ErrNoData = errors.New("no usable monthly rates")
)

// Result is the outcome of one lookup: either monthly rates or the reason
// there are none. Lookups report failure through Err and never panic or
// return raw decoding errors to callers.
type Result struct {
	Rates  models.Climatology
	Err    error
	Cached bool
}

// OK reports whether the result carries at least one monthly rate.
func (r Result) OK() bool {
	return r.Err == nil && len(r.Rates) > 0
}

// Failure wraps err into a Result without rates.
func Failure(err error) Result {
	return Result{Err: err}
}

// Source provides monthly climatology for a point. Implementations should
// return promptly once ctx is done; callers stop waiting at the deadline and
// discard any later answer.
type Source interface {
	MonthlyRates(ctx context.Context, point models.GeoPoint) Result
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func(ctx context.Context, point models.GeoPoint) Result

// MonthlyRates calls f.
func (f SourceFunc) MonthlyRates(ctx context.Context, point models.GeoPoint) Result {
	return f(ctx, point)
}
