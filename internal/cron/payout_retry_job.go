package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/benchlot/benchlot-backend/internal/payouts"
	"github.com/benchlot/benchlot-backend/pkg/db/models"
	"github.com/benchlot/benchlot-backend/pkg/enums"
	"github.com/benchlot/benchlot-backend/pkg/logger"
)

const (
	defaultPayoutMaxAttempts = 5
	defaultPayoutRetryBatch  = 50
)

type retryableLister interface {
	ListRetryable(ctx context.Context, maxAttempts, limit int) ([]models.SellerPayout, error)
}

type payoutRetrier interface {
	Retry(ctx context.Context, payoutID uuid.UUID) (payouts.Result, error)
}

// PayoutRetryJobParams configures the failed transfer retry job.
type PayoutRetryJobParams struct {
	Logger      *logger.Logger
	Payouts     retryableLister
	Splitter    payoutRetrier
	MaxAttempts int
	Limit       int
}

// NewPayoutRetryJob builds the job that re-attempts failed seller transfers and
// finishes payouts left pending past their lease. Retries reuse the original
// Stripe idempotency key.
func NewPayoutRetryJob(params PayoutRetryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payout repository required")
	}
	if params.Splitter == nil {
		return nil, fmt.Errorf("payout splitter required")
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultPayoutMaxAttempts
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultPayoutRetryBatch
	}
	return &payoutRetryJob{
		logg:        params.Logger,
		payouts:     params.Payouts,
		splitter:    params.Splitter,
		maxAttempts: maxAttempts,
		limit:       limit,
	}, nil
}

type payoutRetryJob struct {
	logg        *logger.Logger
	payouts     retryableLister
	splitter    payoutRetrier
	maxAttempts int
	limit       int
}

func (j *payoutRetryJob) Name() string { return "payout-retry" }

func (j *payoutRetryJob) Run(ctx context.Context) error {
	candidates, err := j.payouts.ListRetryable(ctx, j.maxAttempts, j.limit)
	if err != nil {
		return fmt.Errorf("list retryable payouts: %w", err)
	}

	var errs error
	completed, failed := 0, 0
	for _, payout := range candidates {
		res, err := j.splitter.Retry(ctx, payout.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("retry payout %s: %w", payout.ID, err))
			continue
		}
		switch {
		case res.Skipped:
		case res.Status == enums.PayoutStatusCompleted:
			completed++
		default:
			failed++
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates":   len(candidates),
		"completed":    completed,
		"still_failed": failed,
	}), "payout retry pass complete")
	return errs
}
