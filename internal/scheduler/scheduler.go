// Package scheduler runs the pipeline jobs periodically and on demand.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stwalsh4118/seawatch/internal/logger"
	"github.com/stwalsh4118/seawatch/internal/observability"
)

// InitialBackoff is the delay before retrying a failed run. It doubles after
// each consecutive failure up to the scheduler's maximum.
const InitialBackoff = 200 * time.Millisecond

var (
	ErrUnknownJob = errors.New("unknown job")
	ErrJobRunning = errors.New("job is already running")
)

// Job is a named unit of work run every Interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// JobStatus describes the last known state of a job.
type JobStatus struct {
	Name      string     `json:"name"`
	Interval  string     `json:"interval"`
	Running   bool       `json:"running"`
	LastRun   *time.Time `json:"lastRun,omitempty"`
	LastError string     `json:"lastError,omitempty"`
}

type jobState struct {
	job     Job
	running atomic.Bool
	trigger chan struct{}

	mu      sync.Mutex
	lastRun *time.Time
	lastErr error
}

// Scheduler owns one loop per registered job. A job never overlaps itself.
type Scheduler struct {
	clock      clockwork.Clock
	log        *logger.Logger
	metrics    *observability.Metrics
	maxBackoff time.Duration

	mu   sync.RWMutex
	jobs map[string]*jobState
}

// New creates a Scheduler.
func New(clock clockwork.Clock, maxBackoff time.Duration, log *logger.Logger, metrics *observability.Metrics) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if maxBackoff < InitialBackoff {
		maxBackoff = InitialBackoff
	}
	return &Scheduler{
		clock:      clock,
		log:        log.WithComponent("scheduler"),
		metrics:    metrics,
		maxBackoff: maxBackoff,
		jobs:       make(map[string]*jobState),
	}
}

// Register adds a job. Jobs must be registered before Run.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" {
		return fmt.Errorf("job name is required")
	}
	if job.Interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name)
	}
	if job.Run == nil {
		return fmt.Errorf("job %s: run function is required", job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %s is already registered", job.Name)
	}
	s.jobs[job.Name] = &jobState{
		job:     job,
		trigger: make(chan struct{}, 1),
	}
	return nil
}

// Jobs returns the registered job names in sorted order.
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status returns the state of every job, sorted by name.
func (s *Scheduler) Status() []JobStatus {
	names := s.Jobs()
	out := make([]JobStatus, 0, len(names))
	for _, name := range names {
		j, _ := s.lookup(name)
		j.mu.Lock()
		st := JobStatus{
			Name:     name,
			Interval: j.job.Interval.String(),
			Running:  j.running.Load(),
			LastRun:  j.lastRun,
		}
		if j.lastErr != nil {
			st.LastError = j.lastErr.Error()
		}
		j.mu.Unlock()
		out = append(out, st)
	}
	return out
}

// Run starts every job loop and blocks until ctx is cancelled and all loops
// have returned. Each job runs once immediately.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, name := range s.Jobs() {
		j, _ := s.lookup(name)
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.loop(ctx, j)
		}()
	}

	s.log.Info("Scheduler started", map[string]interface{}{"jobs": s.Jobs()})
	wg.Wait()
	s.log.Info("Scheduler stopped", nil)
}

// Trigger asks a job loop to run now instead of waiting for its next tick.
func (s *Scheduler) Trigger(name string) error {
	j, ok := s.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if j.running.Load() {
		return fmt.Errorf("%w: %s", ErrJobRunning, name)
	}

	select {
	case j.trigger <- struct{}{}:
	default:
		// A trigger is already pending.
	}
	return nil
}

// RunOnce runs a job synchronously, outside its loop.
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	j, ok := s.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.execute(ctx, j)
}

func (s *Scheduler) lookup(name string) (*jobState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[name]
	return j, ok
}

func (s *Scheduler) loop(ctx context.Context, j *jobState) {
	backoff := InitialBackoff

	for {
		err := s.execute(ctx, j)
		if ctx.Err() != nil {
			return
		}

		delay := j.job.Interval
		if err != nil && !errors.Is(err, ErrJobRunning) {
			delay = backoff
			backoff = nextBackoff(backoff, s.maxBackoff)
		} else {
			backoff = InitialBackoff
		}

		if !s.wait(ctx, j, delay) {
			return
		}
	}
}

// wait sleeps for d, returning early on a trigger. It returns false when ctx
// is cancelled.
func (s *Scheduler) wait(ctx context.Context, j *jobState, d time.Duration) bool {
	timer := s.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	case <-j.trigger:
		return true
	}
}

func (s *Scheduler) execute(ctx context.Context, j *jobState) error {
	name := j.job.Name
	if !j.running.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	defer j.running.Store(false)

	log := s.log.With(map[string]interface{}{"job": name}).WithRun(uuid.NewString())

	s.metrics.JobRunning.WithLabelValues(name).Set(1)
	defer s.metrics.JobRunning.WithLabelValues(name).Set(0)

	start := s.clock.Now()
	log.Info("Job started", nil)

	err := j.job.Run(ctx)

	elapsed := s.clock.Since(start)
	s.metrics.JobDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	j.mu.Lock()
	j.lastRun = &start
	j.lastErr = err
	j.mu.Unlock()

	if err != nil {
		s.metrics.JobRuns.WithLabelValues(name, "error").Inc()
		log.Error("Job failed", err, map[string]interface{}{
			"duration_seconds": elapsed.Seconds(),
		})
		return err
	}

	s.metrics.JobRuns.WithLabelValues(name, "success").Inc()
	log.Info("Job finished", map[string]interface{}{
		"duration_seconds": elapsed.Seconds(),
	})
	return nil
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
