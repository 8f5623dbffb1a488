package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/benchlot/benchlot-backend/internal/connect"
	"github.com/benchlot/benchlot-backend/pkg/db/models"
	"github.com/benchlot/benchlot-backend/pkg/logger"
)

const (
	defaultStatusStaleAfter = 24 * time.Hour
	defaultStatusBatch      = 100
)

type staleSellerLister interface {
	ListStaleSellers(ctx context.Context, before time.Time, limit int) ([]models.User, error)
}

type sellerReconciler interface {
	Reconcile(ctx context.Context, userID uuid.UUID) (*connect.Snapshot, error)
}

// SellerStatusReconcileJobParams configures the Connect status sweep.
type SellerStatusReconcileJobParams struct {
	Logger     *logger.Logger
	Sellers    staleSellerLister
	Reconciler sellerReconciler
	StaleAfter time.Duration
	Limit      int
	Now        func() time.Time
}

// NewSellerStatusReconcileJob builds the job that re-reads sellers whose
// requirements have not been checked recently.
func NewSellerStatusReconcileJob(params SellerStatusReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sellers == nil {
		return nil, fmt.Errorf("seller repository required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStatusStaleAfter
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultStatusBatch
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &sellerStatusReconcileJob{
		logg:       params.Logger,
		sellers:    params.Sellers,
		reconciler: params.Reconciler,
		staleAfter: staleAfter,
		limit:      limit,
		now:        now,
	}, nil
}

type sellerStatusReconcileJob struct {
	logg       *logger.Logger
	sellers    staleSellerLister
	reconciler sellerReconciler
	staleAfter time.Duration
	limit      int
	now        func() time.Time
}

func (j *sellerStatusReconcileJob) Name() string { return "seller-status-reconcile" }

func (j *sellerStatusReconcileJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.staleAfter)
	sellers, err := j.sellers.ListStaleSellers(ctx, cutoff, j.limit)
	if err != nil {
		return fmt.Errorf("list stale sellers: %w", err)
	}

	var errs error
	changed := 0
	for i := range sellers {
		seller := &sellers[i]
		snap, err := j.reconciler.Reconcile(ctx, seller.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reconcile seller %s: %w", seller.ID, err))
			continue
		}
		if snap.Status != seller.StripeAccountStatus {
			changed++
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(sellers),
		"changed":    changed,
		"failed":     len(multierr.Errors(errs)),
	}), "seller status sweep complete")
	return errs
}
