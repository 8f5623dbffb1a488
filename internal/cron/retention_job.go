package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/benchlot/benchlot-backend/pkg/logger"
)

const (
	outboxRetention      = 30 * 24 * time.Hour
	outboxTerminalMarker = 10
	tokenRetention       = 7 * 24 * time.Hour
)

type outboxPurger interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, maxAttempts int) (int64, error)
}

type tokenPurger interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// OutboxRetentionJobParams configures outbox cleanup. MaxAttempts should match
// the publisher's limit so parked rows age out too.
type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Repository  outboxPurger
	Retention   time.Duration
	MaxAttempts int
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = outboxRetention
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = outboxTerminalMarker
	}
	return &retentionJob{
		name:      "outbox-retention",
		logg:      params.Logger,
		retention: retention,
		now:       time.Now,
		purge: func(ctx context.Context, cutoff time.Time) (int64, error) {
			var deleted int64
			err := params.DB.WithTx(ctx, func(tx *gorm.DB) error {
				rows, err := params.Repository.DeletePublishedBefore(ctx, tx, cutoff, maxAttempts)
				deleted = rows
				return err
			})
			return deleted, err
		},
	}, nil
}

// NewOnboardingTokenCleanupJob removes onboarding tokens a week after expiry.
func NewOnboardingTokenCleanupJob(logg *logger.Logger, tokens tokenPurger) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token repository required")
	}
	return &retentionJob{
		name:      "onboarding-token-cleanup",
		logg:      logg,
		retention: tokenRetention,
		now:       time.Now,
		purge:     tokens.DeleteExpired,
	}, nil
}

type retentionJob struct {
	name      string
	logg      *logger.Logger
	retention time.Duration
	now       func() time.Time
	purge     func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.purge(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "retention cleanup complete")
	return nil
}
