package stripe

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/account"
	"github.com/stripe/stripe-go/v84/accountlink"
	"github.com/stripe/stripe-go/v84/loginlink"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/transfer"
)

const manualPayoutInterval = "manual"

// GetAccount fetches a connected account by id.
func (c *Client) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx
	acct, err := account.GetByID(accountID, params)
	if err != nil {
		return nil, err
	}
	return AccountFromStripe(acct), nil
}

// CreateExpressAccount creates an individual Express account that can take card
// payments and receive transfers. Payouts stay manual until the platform releases them.
func (c *Client) CreateExpressAccount(ctx context.Context, input CreateAccountInput) (*Account, error) {
	params := &stripe.AccountParams{
		Type:         stripe.String(string(stripe.AccountTypeExpress)),
		Country:      stripe.String(c.country),
		BusinessType: stripe.String(string(stripe.AccountBusinessTypeIndividual)),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{
				Requested: stripe.Bool(true),
			},
			Transfers: &stripe.AccountCapabilitiesTransfersParams{
				Requested: stripe.Bool(true),
			},
		},
		Settings: &stripe.AccountSettingsParams{
			Payouts: &stripe.AccountSettingsPayoutsParams{
				Schedule: &stripe.AccountSettingsPayoutsScheduleParams{
					Interval: stripe.String(manualPayoutInterval),
				},
			},
		},
	}
	if email := strings.TrimSpace(input.Email); email != "" {
		params.Email = stripe.String(email)
	}
	params.AddMetadata("user_id", input.UserID)
	params.Context = ctx

	acct, err := account.New(params)
	if err != nil {
		return nil, err
	}
	return AccountFromStripe(acct), nil
}

// CreateAccountLink returns a hosted onboarding URL that collects everything
// eventually due so the seller is not sent back repeatedly.
func (c *Client) CreateAccountLink(ctx context.Context, accountID, returnURL, refreshURL string) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		ReturnURL:  stripe.String(returnURL),
		RefreshURL: stripe.String(refreshURL),
		Type:       stripe.String(string(stripe.AccountLinkTypeAccountOnboarding)),
		CollectionOptions: &stripe.AccountLinkCollectionOptionsParams{
			Fields: stripe.String(string(stripe.AccountLinkCollectEventuallyDue)),
		},
	}
	params.Context = ctx
	link, err := accountlink.New(params)
	if err != nil {
		return "", err
	}
	return link.URL, nil
}

// CreateLoginLink returns a single-use Express dashboard URL.
func (c *Client) CreateLoginLink(ctx context.Context, accountID string) (string, error) {
	params := &stripe.LoginLinkParams{Account: stripe.String(accountID)}
	params.Context = ctx
	link, err := loginlink.New(params)
	if err != nil {
		return "", err
	}
	return link.URL, nil
}

// CreatePaymentIntent creates a platform charge for the whole cart. Funds are
// later moved to sellers with transfers sharing the same transfer group.
func (c *Client) CreatePaymentIntent(ctx context.Context, input PaymentIntentInput) (*PaymentIntent, error) {
	if input.AmountCents <= 0 {
		return nil, errors.New("payment intent amount must be positive")
	}
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(input.AmountCents),
		Currency:      stripe.String(currencyOrDefault(input.Currency)),
		TransferGroup: stripe.String(input.TransferGroup),
	}
	if input.CustomerID != "" {
		params.Customer = stripe.String(input.CustomerID)
	}
	if input.PaymentMethod != "" {
		params.PaymentMethod = stripe.String(input.PaymentMethod)
	} else {
		params.AutomaticPaymentMethods = &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		}
	}
	for key, value := range input.Metadata {
		params.AddMetadata(key, value)
	}
	params.Context = ctx

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, err
	}
	return PaymentIntentFromStripe(pi), nil
}

// GetPaymentIntent re-reads an intent so callers never trust client-reported status.
func (c *Client) GetPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(intentID, params)
	if err != nil {
		return nil, err
	}
	return PaymentIntentFromStripe(pi), nil
}

// UpdatePaymentIntentMetadata merges metadata keys into an existing intent.
func (c *Client) UpdatePaymentIntentMetadata(ctx context.Context, intentID string, metadata map[string]string) error {
	params := &stripe.PaymentIntentParams{}
	for key, value := range metadata {
		params.AddMetadata(key, value)
	}
	params.Context = ctx
	_, err := paymentintent.Update(intentID, params)
	return err
}

// CreateTransfer moves a seller's net share from the buyer's charge to their
// connected account. The idempotency key makes retries safe.
func (c *Client) CreateTransfer(ctx context.Context, input TransferInput) (*Transfer, error) {
	if input.AmountCents <= 0 {
		return nil, errors.New("transfer amount must be positive")
	}
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(input.AmountCents),
		Currency:      stripe.String(currencyOrDefault(input.Currency)),
		Destination:   stripe.String(input.Destination),
		TransferGroup: stripe.String(input.TransferGroup),
	}
	if input.SourceTransaction != "" {
		params.SourceTransaction = stripe.String(input.SourceTransaction)
	}
	for key, value := range input.Metadata {
		params.AddMetadata(key, value)
	}
	if input.IdempotencyKey != "" {
		params.SetIdempotencyKey(input.IdempotencyKey)
	}
	params.Context = ctx

	tr, err := transfer.New(params)
	if err != nil {
		return nil, err
	}
	out := &Transfer{ID: tr.ID, AmountCents: tr.Amount}
	if tr.Destination != nil {
		out.Destination = tr.Destination.ID
	}
	return out, nil
}

func currencyOrDefault(currency string) string {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		return string(stripe.CurrencyUSD)
	}
	return currency
}
