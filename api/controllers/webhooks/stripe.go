package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/benchlot/benchlot-backend/api/responses"
	pkgerrors "github.com/benchlot/benchlot-backend/pkg/errors"
	"github.com/benchlot/benchlot-backend/pkg/logger"
)

const (
	maxPayloadBytes = int64(65536)

	outcomeProcessed  = "processed"
	outcomeDuplicate  = "duplicate"
	outcomeFailed     = "failed"
	outcomeBadRequest = "invalid_signature"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
}

type webhookMetrics interface {
	ObserveWebhook(eventType, outcome string)
}

type receivedAck struct {
	Received bool `json:"received"`
}

// StripeWebhook verifies and dispatches Stripe events. A bad signature is
// rejected before anything is written. A handler failure releases the event
// guard and returns 500 so Stripe redelivers.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard stripeWebhookGuard, metrics webhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || client == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook handler unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			observe(metrics, "unknown", outcomeBadRequest)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing"))
			return
		}

		event, err := webhook.ConstructEventWithOptions(payload, sigHeader, client.SigningSecret(), webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			observe(metrics, "unknown", outcomeBadRequest)
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stripe signature"))
			return
		}

		eventType := string(event.Type)
		if logg != nil {
			ctx = logg.WithStripeEvent(ctx, event.ID, eventType)
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			if logg != nil {
				logg.Info(ctx, "stripe event already processed")
			}
			observe(metrics, eventType, outcomeDuplicate)
			responses.WriteRaw(w, http.StatusOK, receivedAck{Received: true})
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			if delErr := guard.Delete(ctx, event.ID); delErr != nil && logg != nil {
				logg.Error(ctx, "failed to release stripe event guard", delErr)
			}
			observe(metrics, eventType, outcomeFailed)
			responses.WriteError(ctx, logg, w, asHandlerFailure(err))
			return
		}

		if logg != nil {
			logg.Info(ctx, "stripe event processed")
		}
		observe(metrics, eventType, outcomeProcessed)
		responses.WriteRaw(w, http.StatusOK, receivedAck{Received: true})
	}
}

// asHandlerFailure keeps every handler error on a 5xx so Stripe retries.
func asHandlerFailure(err error) error {
	typed := pkgerrors.As(err)
	if typed != nil && pkgerrors.MetadataFor(typed.Code()).HTTPStatus >= http.StatusInternalServerError {
		return err
	}
	var msg string
	if typed != nil {
		msg = typed.Message()
	}
	if msg == "" {
		msg = "webhook handler failed"
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}

func observe(metrics webhookMetrics, eventType, outcome string) {
	if metrics == nil {
		return
	}
	metrics.ObserveWebhook(eventType, outcome)
}
