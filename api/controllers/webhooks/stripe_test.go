package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	stripewebhook "github.com/benchlot/benchlot-backend/internal/webhooks/stripe"
	pkgerrors "github.com/benchlot/benchlot-backend/pkg/errors"
)

const signingSecret = "whsec_test"

type harness struct {
	handler http.Handler
	service *recordingService
	store   *claimStore
	metrics *outcomeRecorder
}

func newHarness(t *testing.T, handleErr error) *harness {
	t.Helper()
	store := &claimStore{claims: map[string]string{}}
	guard, err := stripewebhook.NewIdempotencyGuard(store, time.Minute, "stripe-webhook")
	require.NoError(t, err)

	h := &harness{service: &recordingService{err: handleErr}, store: store, metrics: &outcomeRecorder{}}
	h.handler = StripeWebhook(h.service, signer(signingSecret), guard, h.metrics, nil)
	return h
}

func (h *harness) deliver(payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func intentSucceededEvent(t *testing.T) []byte {
	t.Helper()
	rawIntent, err := json.Marshal(&stripe.PaymentIntent{
		ID:       "pi_" + uuid.NewString(),
		Amount:   10000,
		Currency: stripe.CurrencyUSD,
		Status:   stripe.PaymentIntentStatusSucceeded,
		Metadata: map[string]string{"order_id": uuid.NewString()},
	})
	require.NoError(t, err)

	payload, err := json.Marshal(&stripe.Event{
		ID:         "evt_" + uuid.NewString(),
		Type:       stripe.EventTypePaymentIntentSucceeded,
		Object:     "event",
		APIVersion: stripe.APIVersion,
		Data:       &stripe.EventData{Raw: rawIntent},
	})
	require.NoError(t, err)
	return payload
}

func sign(payload []byte, secret string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	}).Header
}

func TestDeliveryIsProcessedOnce(t *testing.T) {
	h := newHarness(t, nil)
	payload := intentSucceededEvent(t)
	signature := sign(payload, signingSecret)

	first := h.deliver(payload, signature)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.JSONEq(t, `{"received":true}`, first.Body.String())

	again := h.deliver(payload, signature)
	require.Equal(t, http.StatusOK, again.Code)
	assert.JSONEq(t, `{"received":true}`, again.Body.String())

	assert.Equal(t, 1, h.service.calls)
	assert.Equal(t, []string{
		"payment_intent.succeeded/processed",
		"payment_intent.succeeded/duplicate",
	}, h.metrics.seen)
}

func TestRejectedSignatures(t *testing.T) {
	payload := intentSucceededEvent(t)
	cases := map[string]string{
		"missing header": "",
		"garbage header": "t=1,v1=invalid",
		"foreign secret": sign(payload, "whsec_other"),
	}
	for name, signature := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, nil)
			rec := h.deliver(payload, signature)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, h.service.calls)
			assert.Empty(t, h.store.claims, "a rejected delivery must not claim the event")
		})
	}
}

func TestTamperedBodyIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	payload := intentSucceededEvent(t)
	signature := sign(payload, signingSecret)
	tampered := []byte(strings.Replace(string(payload), "10000", "1", 1))

	assert.Equal(t, http.StatusBadRequest, h.deliver(tampered, signature).Code)
	assert.Zero(t, h.service.calls)
}

func TestHandlerFailureReleasesClaimForRedelivery(t *testing.T) {
	h := newHarness(t, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required"))
	payload := intentSucceededEvent(t)
	signature := sign(payload, signingSecret)

	failed := h.deliver(payload, signature)
	assert.Equal(t, http.StatusInternalServerError, failed.Code, "client-class handler errors still ask Stripe to retry")
	assert.Empty(t, h.store.claims)

	h.service.err = nil
	assert.Equal(t, http.StatusOK, h.deliver(payload, signature).Code)
	assert.Equal(t, 2, h.service.calls)
	assert.Len(t, h.store.claims, 1)
}

func TestDependencyFailureKeepsItsStatus(t *testing.T) {
	h := newHarness(t, pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("db down"), "load order"))
	payload := intentSucceededEvent(t)

	assert.Equal(t, http.StatusServiceUnavailable, h.deliver(payload, sign(payload, signingSecret)).Code)
}

type signer string

func (s signer) SigningSecret() string { return string(s) }

type recordingService struct {
	calls int
	err   error
}

func (r *recordingService) HandleEvent(context.Context, *stripe.Event) error {
	r.calls++
	return r.err
}

type outcomeRecorder struct {
	seen []string
}

func (o *outcomeRecorder) ObserveWebhook(eventType, outcome string) {
	o.seen = append(o.seen, eventType+"/"+outcome)
}

// claimStore satisfies the guard's redis contract in memory.
type claimStore struct {
	mu     sync.Mutex
	claims map[string]string
}

func (c *claimStore) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.claims[key], nil
}

func (c *claimStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, held := c.claims[key]; held {
		return false, nil
	}
	c.claims[key], _ = value.(string)
	return true, nil
}

func (c *claimStore) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.claims, key)
	}
	return nil
}

func (c *claimStore) IdempotencyKey(scope, id string) string {
	return "benchlot:idempotency:" + scope + ":" + id
}
