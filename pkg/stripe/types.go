package stripe

import (
	"github.com/stripe/stripe-go/v84"

	"github.com/benchlot/benchlot-backend/pkg/types"
)

// Account is the subset of a Connect account the marketplace reads.
type Account struct {
	ID               string
	Email            string
	DetailsSubmitted bool
	ChargesEnabled   bool
	PayoutsEnabled   bool
	Requirements     types.AccountRequirements
	Metadata         map[string]string
}

// PaymentIntent is the subset of a payment intent the checkout flow reads.
type PaymentIntent struct {
	ID            string
	Status        string
	AmountCents   int64
	Currency      string
	ClientSecret  string
	TransferGroup string
	LatestCharge  string
	LastError     string
	Metadata      map[string]string
}

// Succeeded reports whether the buyer's payment has completed.
func (p *PaymentIntent) Succeeded() bool {
	return p != nil && p.Status == string(stripe.PaymentIntentStatusSucceeded)
}

// Transfer is a completed platform-to-seller transfer.
type Transfer struct {
	ID          string
	AmountCents int64
	Destination string
}

// CreateAccountInput describes a new Express account.
type CreateAccountInput struct {
	UserID string
	Email  string
}

// PaymentIntentInput describes a buyer payment for a whole cart.
type PaymentIntentInput struct {
	AmountCents   int64
	Currency      string
	TransferGroup string
	CustomerID    string
	PaymentMethod string
	Metadata      map[string]string
}

// TransferInput describes one seller transfer drawn from the buyer's charge.
type TransferInput struct {
	AmountCents       int64
	Currency          string
	Destination       string
	TransferGroup     string
	SourceTransaction string
	IdempotencyKey    string
	Metadata          map[string]string
}

// AccountFromStripe converts an API or webhook account payload.
func AccountFromStripe(acct *stripe.Account) *Account {
	if acct == nil {
		return nil
	}
	out := &Account{
		ID:               acct.ID,
		Email:            acct.Email,
		DetailsSubmitted: acct.DetailsSubmitted,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
		Metadata:         acct.Metadata,
	}
	if req := acct.Requirements; req != nil {
		out.Requirements = types.AccountRequirements{
			CurrentlyDue:        req.CurrentlyDue,
			EventuallyDue:       req.EventuallyDue,
			PastDue:             req.PastDue,
			PendingVerification: req.PendingVerification,
			DisabledReason:      string(req.DisabledReason),
		}
	}
	if out.Requirements.CurrentlyDue == nil {
		out.Requirements.CurrentlyDue = []string{}
	}
	if out.Requirements.EventuallyDue == nil {
		out.Requirements.EventuallyDue = []string{}
	}
	if out.Requirements.PastDue == nil {
		out.Requirements.PastDue = []string{}
	}
	if out.Requirements.PendingVerification == nil {
		out.Requirements.PendingVerification = []string{}
	}
	return out
}

// PaymentIntentFromStripe converts an API or webhook payment intent payload.
func PaymentIntentFromStripe(pi *stripe.PaymentIntent) *PaymentIntent {
	if pi == nil {
		return nil
	}
	out := &PaymentIntent{
		ID:            pi.ID,
		Status:        string(pi.Status),
		AmountCents:   pi.Amount,
		Currency:      string(pi.Currency),
		ClientSecret:  pi.ClientSecret,
		TransferGroup: pi.TransferGroup,
		Metadata:      pi.Metadata,
	}
	if pi.LatestCharge != nil {
		out.LatestCharge = pi.LatestCharge.ID
	}
	if pi.LastPaymentError != nil {
		out.LastError = pi.LastPaymentError.Msg
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	return out
}
