package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func jobNames(jobs []Job) []string {
	names := make([]string, 0, len(jobs))
	for _, job := range jobs {
		names = append(names, job.Name())
	}
	return names
}

func TestRegistryOrderAndDuplicates(t *testing.T) {
	registry := NewRegistry(&stubJob{name: "seller-status-reconcile"}, nil, &stubJob{name: "payout-retry"})

	require.Error(t, registry.Register(&stubJob{name: "payout-retry"}))
	require.NoError(t, registry.Register(nil))
	assert.Equal(t, []string{"seller-status-reconcile", "payout-retry"}, jobNames(registry.Jobs()))

	jobs := registry.Jobs()
	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0], "Jobs must not expose the backing slice")
}

func TestRegistryOnly(t *testing.T) {
	registry := NewRegistry(
		&stubJob{name: "seller-status-reconcile"},
		&stubJob{name: "payout-retry"},
		&stubJob{name: "outbox-retention"},
	)

	all, err := registry.Only()
	require.NoError(t, err)
	assert.Same(t, registry, all)

	narrowed, err := registry.Only(" outbox-retention", "seller-status-reconcile", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"seller-status-reconcile", "outbox-retention"}, jobNames(narrowed.Jobs()))

	_, err = registry.Only("nightly-report")
	require.ErrorContains(t, err, "nightly-report")
}
