package stripe

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/benchlot/benchlot-backend/pkg/errors"
)

// IsResourceMissing reports whether Stripe no longer knows the referenced object.
func IsResourceMissing(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.Code == stripe.ErrorCodeResourceMissing
	}
	return false
}

// ReplayWindow is how long Stripe answers a reused idempotency key with the
// stored result of the first request.
const ReplayWindow = 24 * time.Hour

// ResultStored reports whether Stripe executed the request before failing, so
// resending it under the same idempotency key inside ReplayWindow returns the
// same error. Transport failures, key conflicts and rate limits are not stored.
func ResultStored(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	switch stripeErr.HTTPStatusCode {
	case 0, http.StatusConflict, http.StatusTooManyRequests:
		return false
	}
	return true
}

// IsConnectNotEnabled reports the platform-level error returned when the
// Stripe account has not been signed up for Connect.
func IsConnectNotEnabled(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	msg := strings.ToLower(stripeErr.Msg)
	return strings.Contains(msg, "signed up for connect")
}

// Classify converts a Stripe failure into a typed error. Provider validation
// problems become 400s and missing objects 404s; everything else is an upstream
// failure carrying the provider message.
func Classify(err error, message string) error {
	if err == nil {
		return nil
	}
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
	}
	if stripeErr.Code == stripe.ErrorCodeResourceMissing {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, stripeErr.Msg)
	}
	if stripeErr.Type == stripe.ErrorTypeInvalidRequest &&
		stripeErr.HTTPStatusCode >= http.StatusBadRequest &&
		stripeErr.HTTPStatusCode < http.StatusInternalServerError {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, stripeErr.Msg).
			WithDetails(map[string]any{"param": stripeErr.Param, "stripe_code": string(stripeErr.Code)})
	}
	msg := stripeErr.Msg
	if msg == "" {
		msg = message
	}
	return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, msg).
		WithDetails(map[string]any{"stripe_code": string(stripeErr.Code)})
}
