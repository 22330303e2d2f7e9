package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/immo-climat/internal/observability"
	"github.com/couchcryptid/immo-climat/internal/pipeline"
)

// --- mocks ---

type mockJob struct {
	name     string
	failures int // number of leading runs that fail
	calls    atomic.Int64
}

func (m *mockJob) Name() string { return m.name }

func (m *mockJob) Run(_ context.Context) error {
	n := m.calls.Add(1)
	if int(n) <= m.failures {
		return errors.New("source unavailable")
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastOptions() pipeline.Options {
	return pipeline.Options{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

// --- tests ---

func TestPipeline_RunOnce_HappyPath(t *testing.T) {
	job := &mockJob{name: "climate"}
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New([]pipeline.Job{job}, fastOptions(), discardLogger(), metrics)

	require.Error(t, p.CheckReadiness(context.Background()))
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, int64(1), job.calls.Load())
	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.JobRuns.WithLabelValues("climate", "success")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)

	statuses := p.JobStatuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, 1, statuses[0].Runs)
	assert.Zero(t, statuses[0].Failures)
	assert.False(t, statuses[0].LastSuccess.IsZero())
}

func TestPipeline_RetriesThenSucceeds(t *testing.T) {
	job := &mockJob{name: "climate", failures: 2}
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New([]pipeline.Job{job}, fastOptions(), discardLogger(), metrics)

	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, int64(3), job.calls.Load())
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.JobRuns.WithLabelValues("climate", "failure")), 0)
	st := p.JobStatuses()[0]
	assert.Equal(t, 3, st.Runs)
	assert.Equal(t, 2, st.Failures)
	assert.Empty(t, st.LastError)
}

func TestPipeline_GivesUpAfterMaxAttempts(t *testing.T) {
	failing := &mockJob{name: "climate", failures: 10}
	ok := &mockJob{name: "realestate"}
	p := pipeline.New([]pipeline.Job{failing, ok}, fastOptions(), discardLogger(), observability.NewMetricsForTesting())

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job climate")
	assert.Equal(t, int64(3), failing.calls.Load())
	assert.Equal(t, int64(1), ok.calls.Load(), "later jobs still run")

	statuses := p.JobStatuses()
	assert.Equal(t, "source unavailable", statuses[0].LastError)
	require.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_BackoffUsesClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	opts := fastOptions()
	opts.InitialBackoff = time.Minute
	opts.MaxBackoff = time.Hour
	opts.Clock = clock

	job := &mockJob{name: "climate", failures: 1}
	p := pipeline.New([]pipeline.Job{job}, opts, discardLogger(), observability.NewMetricsForTesting())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, int64(1), job.calls.Load(), "second attempt waits for the backoff")

	clock.Advance(time.Minute)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("pipeline did not retry after the backoff")
	}
	assert.Equal(t, int64(2), job.calls.Load())
}

func TestPipeline_Interval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	opts := fastOptions()
	opts.Interval = time.Hour
	opts.Clock = clock

	job := &mockJob{name: "climate"}
	p := pipeline.New([]pipeline.Job{job}, opts, discardLogger(), observability.NewMetricsForTesting())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, int64(1), job.calls.Load())

	clock.Advance(time.Hour)
	require.Eventually(t, func() bool { return job.calls.Load() == 2 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("pipeline did not stop")
	}
}

func TestPipeline_ContextCancelled(t *testing.T) {
	job := &mockJob{name: "climate"}
	p := pipeline.New([]pipeline.Job{job}, fastOptions(), discardLogger(), observability.NewMetricsForTesting())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, job.calls.Load())
}
