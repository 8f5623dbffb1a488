package cron

import (
	"context"
	"fmt"
	"strings"
)

// Job is a scheduled task run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds jobs in registration order. Names label metrics and logs, so
// they must be unique.
type Registry struct {
	jobs   []Job
	byName map[string]Job
}

func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{byName: make(map[string]Job, len(jobs))}
	for _, job := range jobs {
		_ = registry.Register(job)
	}
	return registry
}

// Register appends job. A nil job is a no-op.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := job.Name()
	if _, taken := r.byName[name]; taken {
		return fmt.Errorf("cron job %q already registered", name)
	}
	r.byName[name] = job
	r.jobs = append(r.jobs, job)
	return nil
}

// Only narrows the registry to the named jobs, keeping registration order.
// An empty selection returns r unchanged.
func (r *Registry) Only(names ...string) (*Registry, error) {
	wanted := map[string]bool{}
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			wanted[name] = true
		}
	}
	if len(wanted) == 0 {
		return r, nil
	}
	for name := range wanted {
		if _, ok := r.byName[name]; !ok {
			return nil, fmt.Errorf("unknown cron job %q", name)
		}
	}
	narrowed := NewRegistry()
	for _, job := range r.jobs {
		if wanted[job.Name()] {
			_ = narrowed.Register(job)
		}
	}
	return narrowed, nil
}

// Jobs returns the registered jobs. The slice is a copy.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}
