package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/seawatch/internal/logger"
	"github.com/stwalsh4118/seawatch/internal/observability"
)

const waitTimeout = 2 * time.Second

func newTestScheduler(clock clockwork.Clock, maxBackoff time.Duration) (*Scheduler, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	return New(clock, maxBackoff, logger.Nop(), metrics), metrics
}

// start runs the scheduler in the background and returns a stop function
// that cancels it and waits for it to return.
func start(t *testing.T, s *Scheduler) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(waitTimeout):
			t.Fatal("scheduler did not stop")
		}
	}
}

func waitRun(t *testing.T, runs <-chan struct{}) {
	t.Helper()
	select {
	case <-runs:
	case <-time.After(waitTimeout):
		t.Fatal("expected a job run")
	}
}

func assertNoRun(t *testing.T, runs <-chan struct{}) {
	t.Helper()
	select {
	case <-runs:
		t.Fatal("unexpected job run")
	case <-time.After(50 * time.Millisecond):
	}
}

func blockUntilTimer(t *testing.T, clock *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
}

func countingJob(name string, interval time.Duration, runs chan<- struct{}, err error) Job {
	return Job{
		Name:     name,
		Interval: interval,
		Run: func(context.Context) error {
			runs <- struct{}{}
			return err
		},
	}
}

func TestScheduler_RunsImmediatelyThenOnInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, metrics := newTestScheduler(clock, time.Minute)
	runs := make(chan struct{}, 10)
	require.NoError(t, s.Register(countingJob("port-buffers", time.Hour, runs, nil)))

	stop := start(t, s)
	defer stop()

	waitRun(t, runs)

	blockUntilTimer(t, clock)
	clock.Advance(59 * time.Minute)
	assertNoRun(t, runs)

	clock.Advance(time.Minute)
	waitRun(t, runs)

	blockUntilTimer(t, clock)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.JobRuns.WithLabelValues("port-buffers", "success")))
}

func TestScheduler_BackoffAfterFailure(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, metrics := newTestScheduler(clock, 300*time.Millisecond)
	runs := make(chan struct{}, 10)
	require.NoError(t, s.Register(countingJob("spire-positions", time.Hour, runs, errors.New("provider down"))))

	stop := start(t, s)
	defer stop()

	waitRun(t, runs)

	// First retry after the initial backoff, not the hourly interval.
	blockUntilTimer(t, clock)
	clock.Advance(InitialBackoff)
	waitRun(t, runs)

	// Second retry waits the doubled backoff, capped at the maximum.
	blockUntilTimer(t, clock)
	clock.Advance(299 * time.Millisecond)
	assertNoRun(t, runs)
	clock.Advance(time.Millisecond)
	waitRun(t, runs)

	blockUntilTimer(t, clock)
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.JobRuns.WithLabelValues("spire-positions", "error")))
}

func TestScheduler_Trigger(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, _ := newTestScheduler(clock, time.Minute)
	runs := make(chan struct{}, 10)
	require.NoError(t, s.Register(countingJob("marinetraffic-positions", time.Hour, runs, nil)))

	stop := start(t, s)
	defer stop()

	waitRun(t, runs)
	blockUntilTimer(t, clock)

	require.NoError(t, s.Trigger("marinetraffic-positions"))
	waitRun(t, runs)
}

func TestScheduler_TriggerUnknownJob(t *testing.T) {
	s, _ := newTestScheduler(clockwork.NewFakeClock(), time.Minute)

	assert.ErrorIs(t, s.Trigger("nope"), ErrUnknownJob)
	assert.ErrorIs(t, s.RunOnce(context.Background(), "nope"), ErrUnknownJob)
}

func TestScheduler_NoOverlap(t *testing.T) {
	s, _ := newTestScheduler(clockwork.NewFakeClock(), time.Minute)

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, s.Register(Job{
		Name:     "port-buffers",
		Interval: time.Hour,
		Run: func(context.Context) error {
			close(started)
			<-release
			return nil
		},
	}))

	result := make(chan error, 1)
	go func() { result <- s.RunOnce(context.Background(), "port-buffers") }()
	<-started

	assert.ErrorIs(t, s.Trigger("port-buffers"), ErrJobRunning)
	assert.ErrorIs(t, s.RunOnce(context.Background(), "port-buffers"), ErrJobRunning)
	assert.True(t, s.Status()[0].Running)

	close(release)
	require.NoError(t, <-result)
	assert.False(t, s.Status()[0].Running)
}

func TestScheduler_Status(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	s, _ := newTestScheduler(clock, time.Minute)
	require.NoError(t, s.Register(Job{
		Name:     "b",
		Interval: 15 * time.Minute,
		Run:      func(context.Context) error { return errors.New("boom") },
	}))
	require.NoError(t, s.Register(Job{
		Name:     "a",
		Interval: time.Hour,
		Run:      func(context.Context) error { return nil },
	}))

	assert.Equal(t, []string{"a", "b"}, s.Jobs())

	err := s.RunOnce(context.Background(), "b")
	require.EqualError(t, err, "boom")

	status := s.Status()
	require.Len(t, status, 2)
	assert.Nil(t, status[0].LastRun)
	assert.Equal(t, "1h0m0s", status[0].Interval)
	require.NotNil(t, status[1].LastRun)
	assert.Equal(t, clock.Now(), *status[1].LastRun)
	assert.Equal(t, "boom", status[1].LastError)
}

func TestScheduler_RegisterValidation(t *testing.T) {
	noop := func(context.Context) error { return nil }
	tests := []struct {
		name string
		job  Job
	}{
		{name: "missing name", job: Job{Interval: time.Minute, Run: noop}},
		{name: "zero interval", job: Job{Name: "a", Run: noop}},
		{name: "negative interval", job: Job{Name: "a", Interval: -time.Second, Run: noop}},
		{name: "missing run", job: Job{Name: "a", Interval: time.Minute}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestScheduler(clockwork.NewFakeClock(), time.Minute)
			assert.Error(t, s.Register(tt.job))
		})
	}

	s, _ := newTestScheduler(clockwork.NewFakeClock(), time.Minute)
	require.NoError(t, s.Register(Job{Name: "a", Interval: time.Minute, Run: noop}))
	assert.Error(t, s.Register(Job{Name: "a", Interval: time.Minute, Run: noop}), "duplicate names are rejected")
}

func TestNextBackoff(t *testing.T) {
	limit := 5 * time.Second
	assert.Equal(t, 400*time.Millisecond, nextBackoff(InitialBackoff, limit))
	assert.Equal(t, 3200*time.Millisecond, nextBackoff(1600*time.Millisecond, limit))
	assert.Equal(t, limit, nextBackoff(3200*time.Millisecond, limit))
	assert.Equal(t, limit, nextBackoff(limit, limit))
}
