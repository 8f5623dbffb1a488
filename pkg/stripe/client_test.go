package stripe

import (
	"context"
	"net/http"
	"testing"

	"github.com/stripe/stripe-go/v84"

	"github.com/benchlot/benchlot-backend/pkg/config"
	pkgerrors "github.com/benchlot/benchlot-backend/pkg/errors"
)

func TestNewClientValidatesEnvironmentAndKeys(t *testing.T) {
	ctx := context.Background()

	client, err := NewClient(ctx, config.StripeConfig{APIKey: "sk_test_123", WebhookSecret: "whsec_1", Env: "TEST", Country: "us"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Environment() != "test" || client.SigningSecret() != "whsec_1" {
		t.Fatalf("unexpected client state env=%s", client.Environment())
	}
	if client.country != "US" {
		t.Fatalf("expected upper-cased country, got %s", client.country)
	}

	if _, err := NewClient(ctx, config.StripeConfig{APIKey: "rk_live_abc", WebhookSecret: "whsec_1", Env: "live"}, nil); err != nil {
		t.Fatalf("restricted live key should be accepted: %v", err)
	}

	cases := []config.StripeConfig{
		{APIKey: "", WebhookSecret: "whsec_1"},
		{APIKey: "sk_test_1", WebhookSecret: ""},
		{APIKey: "sk_live_1", WebhookSecret: "whsec_1", Env: "test"},
		{APIKey: "sk_test_1", WebhookSecret: "whsec_1", Env: "live"},
		{APIKey: "sk_test_1", WebhookSecret: "whsec_1", Env: "staging"},
	}
	for _, cfg := range cases {
		if _, err := NewClient(ctx, cfg, nil); err == nil {
			t.Fatalf("expected error for config %+v", cfg)
		}
	}
}

func TestClassify(t *testing.T) {
	missing := &stripe.Error{Code: stripe.ErrorCodeResourceMissing, Msg: "No such account", HTTPStatusCode: http.StatusNotFound, Type: stripe.ErrorTypeInvalidRequest}
	if got := pkgerrors.As(Classify(missing, "get account")); got == nil || got.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", got)
	}
	if !IsResourceMissing(missing) {
		t.Fatal("expected resource missing to be detected")
	}

	invalid := &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, Msg: "Invalid amount", Param: "amount", HTTPStatusCode: http.StatusBadRequest}
	if got := pkgerrors.As(Classify(invalid, "create intent")); got == nil || got.Code() != pkgerrors.CodeValidation || got.Message() != "Invalid amount" {
		t.Fatalf("expected validation with provider message, got %v", got)
	}

	apiErr := &stripe.Error{Type: stripe.ErrorTypeAPI, Msg: "Something went wrong", HTTPStatusCode: http.StatusInternalServerError}
	if got := pkgerrors.As(Classify(apiErr, "create transfer")); got == nil || got.Code() != pkgerrors.CodeUpstream {
		t.Fatalf("expected upstream, got %v", got)
	}

	if got := pkgerrors.As(Classify(context.DeadlineExceeded, "create transfer")); got == nil || got.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency for non-stripe errors, got %v", got)
	}
	if Classify(nil, "noop") != nil {
		t.Fatal("nil should classify to nil")
	}
}

func TestIsConnectNotEnabled(t *testing.T) {
	err := &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, Msg: "You can only create new accounts if you've signed up for Connect"}
	if !IsConnectNotEnabled(err) {
		t.Fatal("expected connect-not-enabled to match")
	}
	if IsConnectNotEnabled(&stripe.Error{Msg: "No such account"}) {
		t.Fatal("unexpected match")
	}
}

func TestAccountFromStripe(t *testing.T) {
	acct := AccountFromStripe(&stripe.Account{
		ID:               "acct_1",
		DetailsSubmitted: true,
		ChargesEnabled:   true,
		Requirements: &stripe.AccountRequirements{
			CurrentlyDue:   []string{"external_account"},
			DisabledReason: "requirements.past_due",
		},
	})
	if acct.ID != "acct_1" || !acct.DetailsSubmitted || acct.PayoutsEnabled {
		t.Fatalf("unexpected conversion %+v", acct)
	}
	if acct.Requirements.DisabledReason != "requirements.past_due" {
		t.Fatalf("unexpected disabled reason %q", acct.Requirements.DisabledReason)
	}
	if acct.Requirements.PastDue == nil {
		t.Fatal("expected empty slices instead of nil")
	}
	if AccountFromStripe(nil) != nil {
		t.Fatal("nil account should convert to nil")
	}
}

func TestPaymentIntentFromStripe(t *testing.T) {
	pi := PaymentIntentFromStripe(&stripe.PaymentIntent{
		ID:           "pi_1",
		Status:       stripe.PaymentIntentStatusSucceeded,
		Amount:       20000,
		LatestCharge: &stripe.Charge{ID: "ch_1"},
	})
	if !pi.Succeeded() || pi.LatestCharge != "ch_1" || pi.AmountCents != 20000 {
		t.Fatalf("unexpected conversion %+v", pi)
	}
	if pi.Metadata == nil {
		t.Fatal("expected metadata map")
	}
}

func TestResultStored(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"transport":    {err: context.DeadlineExceeded, want: false},
		"rate limited": {err: &stripe.Error{HTTPStatusCode: http.StatusTooManyRequests}, want: false},
		"key conflict": {err: &stripe.Error{HTTPStatusCode: http.StatusConflict}, want: false},
		"balance":      {err: &stripe.Error{HTTPStatusCode: http.StatusBadRequest, Code: stripe.ErrorCodeBalanceInsufficient}, want: true},
		"server error": {err: &stripe.Error{HTTPStatusCode: http.StatusInternalServerError}, want: true},
		"wrapped":      {err: pkgerrors.Wrap(pkgerrors.CodeUpstream, &stripe.Error{HTTPStatusCode: http.StatusPaymentRequired}, "transfer"), want: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := ResultStored(tc.err); got != tc.want {
				t.Fatalf("ResultStored = %v, want %v", got, tc.want)
			}
		})
	}
}
