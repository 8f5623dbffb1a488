package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/benchlot/benchlot-backend/pkg/config"
	"github.com/benchlot/benchlot-backend/pkg/db/models"
	"github.com/benchlot/benchlot-backend/pkg/logger"
	"github.com/benchlot/benchlot-backend/pkg/metrics"
	"github.com/benchlot/benchlot-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxBackoff         = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type outcome string

const (
	outcomePublished outcome = "published"
	outcomeRetry     outcome = "retry"
	outcomeParked    outcome = "parked"
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// RelayParams wires the outbox relay.
type RelayParams struct {
	Outbox           config.OutboxConfig
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	Metrics          *metrics.OutboxMetrics
	PublisherFactory func(topic string) publisher
}

// Relay moves committed outbox rows onto their Pub/Sub topics.
type Relay struct {
	logg        *logger.Logger
	db          dbClient
	pubsub      pubSubClient
	repo        outboxRepository
	registry    registryResolver
	metrics     *metrics.OutboxMetrics
	publisherOf func(topic string) publisher
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case p.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case p.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	publisherOf := p.PublisherFactory
	if publisherOf == nil {
		publisherOf = func(topic string) publisher {
			if pub := p.PubSub.Publisher(topic); pub != nil {
				return gcpPublisher{pub}
			}
			return nil
		}
	}

	r := &Relay{
		logg:        p.Logger,
		db:          p.DB,
		pubsub:      p.PubSub,
		repo:        p.Repository,
		registry:    p.Registry,
		metrics:     p.Metrics,
		publisherOf: publisherOf,
		batchSize:   p.Outbox.BatchSize,
		maxAttempts: p.Outbox.MaxAttempts,
		poll:        time.Duration(p.Outbox.PollIntervalMS) * time.Millisecond,
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultMaxAttempts
	}
	if r.poll <= 0 {
		r.poll = defaultPoll
	}
	return r, nil
}

// Run drains the outbox until ctx is canceled. A full batch is followed by
// another drain immediately; an empty one waits a poll interval, and a failed
// one backs off exponentially.
func (r *Relay) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": r.db.Ping, "pubsub": r.pubsub.Ping} {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	wait := pollBackoff{base: r.poll, max: maxBackoff}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		handled, err := r.drain(ctx)
		var delay time.Duration
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox batch failed", err)
			delay = wait.next()
		case handled == 0:
			wait.reset()
			delay = r.poll
		default:
			wait.reset()
			continue
		}
		if err := sleep(ctx, delay+jitter()); err != nil {
			return err
		}
	}
}

// drain relays one locked batch and reports how many rows it handled.
func (r *Relay) drain(ctx context.Context) (int, error) {
	started := time.Now()
	handled := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := r.repo.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		for _, event := range events {
			if err := r.relay(ctx, tx, event); err != nil {
				return err
			}
			handled++
		}
		return nil
	})
	if handled > 0 {
		r.metrics.ObserveBatch(time.Since(started))
	}
	return handled, err
}

// relay publishes one row and records what happened to it. Only failures to
// write the row's state are returned.
func (r *Relay) relay(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	})

	resolved, err := r.registry.Resolve(event)
	if err != nil {
		return r.record(ctx, tx, event, "", outcomeParked, err)
	}
	topic := resolved.Descriptor.Topic
	ctx = r.logg.WithFields(ctx, map[string]any{"topic": topic, "event_id": resolved.Envelope.EventID})

	sendErr := r.send(ctx, event, resolved)
	var nonRetryable registry.NonRetryableError
	switch {
	case sendErr == nil:
		return r.record(ctx, tx, event, topic, outcomePublished, nil)
	case errors.As(sendErr, &nonRetryable):
		return r.record(ctx, tx, event, topic, outcomeParked, sendErr)
	case event.LastAttempt(r.maxAttempts):
		return r.record(ctx, tx, event, topic, outcomeParked, fmt.Errorf("max publish attempts reached: %w", sendErr))
	default:
		return r.record(ctx, tx, event, topic, outcomeRetry, sendErr)
	}
}

// record writes the row state for an outcome. Parked rows stay in the table
// with their last error for manual inspection.
func (r *Relay) record(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, topic string, result outcome, cause error) error {
	var err error
	switch result {
	case outcomePublished:
		err = r.repo.MarkPublishedTx(tx, event.ID)
		r.logg.Info(ctx, "outbox event published")
	case outcomeRetry:
		err = r.repo.MarkFailedTx(tx, event.ID, cause)
		r.logg.Warn(r.logg.WithField(ctx, "error", cause.Error()), "outbox publish failed, will retry")
	case outcomeParked:
		err = r.repo.MarkTerminalTx(tx, event.ID, cause, r.maxAttempts)
		r.logg.Warn(r.logg.WithField(ctx, "error", cause.Error()), "outbox event parked")
	}
	if err != nil {
		return fmt.Errorf("mark %s %s: %w", result, event.ID, err)
	}
	r.metrics.ObserveEvent(topic, string(result))
	return nil
}

func (r *Relay) send(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := r.publisherOf(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(ctx, &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	})
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher for %s returned no result", topic))
	}
	_, err := result.Get(ctx)
	return err
}

type pollBackoff struct {
	base    time.Duration
	max     time.Duration
	current time.Duration
}

// next doubles the delay, starting from base and capped at max.
func (b *pollBackoff) next() time.Duration {
	if b.current <= 0 {
		b.current = b.base
	}
	b.current = min(b.current*2, b.max)
	return b.current
}

func (b *pollBackoff) reset() { b.current = 0 }

func jitter() time.Duration {
	return rand.N(jitterWindow)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type gcpPublisher struct {
	pub *gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.pub.Publish(ctx, msg)
}
