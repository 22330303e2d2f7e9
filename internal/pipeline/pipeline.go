package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/immo-climat/internal/domain"
	"github.com/couchcryptid/immo-climat/internal/observability"
)

// Job is one batch computation run by the pipeline.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Options controls scheduling and retries. Zero values select the defaults.
type Options struct {
	// Interval between runs; zero runs every job once and returns.
	Interval       time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Clock          clockwork.Clock
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 200 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 5 * time.Second
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}

// Pipeline runs its jobs in order, once or on a fixed interval.
type Pipeline struct {
	jobs    []Job
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool

	mu     sync.Mutex
	status map[string]*domain.JobStatus
}

// New creates a Pipeline over the given jobs.
func New(jobs []Job, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	status := make(map[string]*domain.JobStatus, len(jobs))
	for _, j := range jobs {
		status[j.Name()] = &domain.JobStatus{Job: j.Name()}
	}
	return &Pipeline{
		jobs:    jobs,
		opts:    opts.withDefaults(),
		logger:  logger,
		metrics: metrics,
		status:  status,
	}
}

// CheckReadiness returns nil once any job has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a job yet")
	}
	return nil
}

// JobStatuses returns a snapshot of every job's run history, in job order.
func (p *Pipeline) JobStatuses() []domain.JobStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.JobStatus, 0, len(p.jobs))
	for _, j := range p.jobs {
		out = append(out, *p.status[j.Name()])
	}
	return out
}

// Run executes the jobs. With a zero interval it returns the joined job
// errors; otherwise it repeats until the context is cancelled and returns nil.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "jobs", len(p.jobs), "interval", p.opts.Interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	for {
		err := p.runOnce(ctx)
		if p.opts.Interval == 0 {
			return err
		}
		if err != nil {
			p.logger.Error("pipeline run failed", "error", err)
		}

		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case <-p.opts.Clock.After(p.opts.Interval):
		}
	}
}

func (p *Pipeline) runOnce(ctx context.Context) error {
	var errs []error
	for _, j := range p.jobs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := p.runJob(ctx, j); err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", j.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// runJob retries a failing job with exponential backoff.
func (p *Pipeline) runJob(ctx context.Context, j Job) error {
	backoff := p.opts.InitialBackoff
	var err error
	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		start := p.opts.Clock.Now()
		err = j.Run(ctx)
		p.record(j.Name(), start, err)
		if err == nil {
			p.logger.Info("job completed", "job", j.Name(), "attempt", attempt,
				"duration", p.opts.Clock.Since(start))
			return nil
		}
		if ctx.Err() != nil {
			return err
		}

		p.logger.Error("job failed", "job", j.Name(), "attempt", attempt, "error", err)
		if attempt == p.opts.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.opts.Clock.After(backoff):
		}
		backoff = sharedretry.NextBackoff(backoff, p.opts.MaxBackoff)
	}
	return err
}

func (p *Pipeline) record(name string, start time.Time, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.status[name]
	st.Runs++
	st.LastRun = start.UTC()
	if err != nil {
		st.Failures++
		st.LastError = err.Error()
		p.metrics.JobRuns.WithLabelValues(name, "failure").Inc()
		return
	}
	st.LastError = ""
	st.LastSuccess = p.opts.Clock.Now().UTC()
	p.metrics.JobRuns.WithLabelValues(name, "success").Inc()
	p.metrics.JobLastSuccess.WithLabelValues(name).Set(float64(st.LastSuccess.Unix()))
	p.ready.Store(true)
}
