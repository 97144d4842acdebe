// Package scheduler runs the periodic maintenance jobs of the sync engine:
// resending the failed orders queue and pruning the activity log.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Job runs
// ---------------------------------------------------------------------------

// RunStatus is the status of one job run
type RunStatus string

const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusPartial RunStatus = "PARTIAL"
	RunStatusFailed  RunStatus = "FAILED"
)

// JobRun records one execution of a job
type JobRun struct {
	ID          uuid.UUID  `json:"id"`
	Job         string     `json:"job"`
	Status      RunStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Total       int        `json:"total"`
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
}

func newJobRun(job string) *JobRun {
	return &JobRun{ID: uuid.New(), Job: job, Status: RunStatusRunning, StartedAt: time.Now()}
}

// Complete records the counts and derives the status
func (r *JobRun) Complete(total, succeeded, failed int) {
	now := time.Now()
	r.Total = total
	r.Succeeded = succeeded
	r.Failed = failed
	r.CompletedAt = &now

	switch {
	case failed == 0:
		r.Status = RunStatusSuccess
	case succeeded > 0:
		r.Status = RunStatusPartial
	default:
		r.Status = RunStatusFailed
	}
}

// Fail marks the run as failed
func (r *JobRun) Fail(err error) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.CompletedAt = &now
	r.Error = err.Error()
}

// Job is a unit of periodic work. Run fills in the counts of run.
type Job interface {
	Name() string
	Run(ctx context.Context, run *JobRun) error
}

// ---------------------------------------------------------------------------
// Scheduler
// ---------------------------------------------------------------------------

// Config holds scheduler settings
type Config struct {
	// JobTimeout bounds a single run
	JobTimeout time.Duration
	// MaxHistory is the number of runs kept for inspection
	MaxHistory int
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{JobTimeout: 10 * time.Minute, MaxHistory: 50}
}

// Validate validates the configuration
func (c Config) Validate() error {
	if c.JobTimeout <= 0 || c.MaxHistory < 0 {
		return ErrInvalidConfig
	}
	return nil
}

type entry struct {
	job      Job
	interval time.Duration
	running  bool
}

// Scheduler runs each registered job on its own ticker. Runs of the same job
// never overlap.
type Scheduler struct {
	config Config
	logger *zap.Logger

	mu        sync.Mutex
	entries   map[string]*entry
	order     []string
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool

	historyMu sync.RWMutex
	history   []*JobRun
}

// New creates a scheduler
func New(config Config, logger *zap.Logger) (*Scheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		config:  config,
		logger:  logger.Named("scheduler"),
		entries: make(map[string]*entry),
	}, nil
}

// Register adds a job run every interval. It must be called before Start.
func (s *Scheduler) Register(job Job, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: interval of %s must be positive", ErrInvalidConfig, job.Name())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[job.Name()]; exists {
		return fmt.Errorf("%w: job %s registered twice", ErrInvalidConfig, job.Name())
	}
	s.entries[job.Name()] = &entry{job: job, interval: interval}
	s.order = append(s.order, job.Name())
	return nil
}

// Jobs returns the registered job names
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Start launches one loop per job
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	for _, name := range s.order {
		e := s.entries[name]
		s.wg.Add(1)
		go s.loop(ctx, e)
	}

	s.logger.Info("scheduler started", zap.Strings("jobs", s.order))
	return nil
}

// Stop cancels the loops and waits for in-flight runs
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	defer s.wg.Done()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.execute(ctx, e); err != nil && err != ErrJobAlreadyRunning {
				s.logger.Debug("scheduled run ended with error", zap.String("job", e.job.Name()), zap.Error(err))
			}
		}
	}
}

// RunNow runs a job immediately and waits for it
func (s *Scheduler) RunNow(ctx context.Context, name string) (*JobRun, error) {
	s.mu.Lock()
	e, ok := s.entries[name]
	running := s.isRunning
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if !running {
		return nil, ErrSchedulerNotRunning
	}
	return s.execute(ctx, e)
}

func (s *Scheduler) execute(ctx context.Context, e *entry) (*JobRun, error) {
	s.mu.Lock()
	if e.running {
		s.mu.Unlock()
		return nil, ErrJobAlreadyRunning
	}
	e.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		e.running = false
		s.mu.Unlock()
	}()

	run := newJobRun(e.job.Name())
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	s.logger.Info("job started", zap.String("job", run.Job), zap.String("run_id", run.ID.String()))

	err := e.job.Run(jobCtx, run)
	if err != nil {
		run.Fail(err)
		s.logger.Error("job failed",
			zap.String("job", run.Job),
			zap.String("run_id", run.ID.String()),
			zap.Error(err),
		)
	} else {
		if run.CompletedAt == nil {
			run.Complete(run.Total, run.Succeeded, run.Failed)
		}
		s.logger.Info("job completed",
			zap.String("job", run.Job),
			zap.String("status", string(run.Status)),
			zap.Int("total", run.Total),
			zap.Int("succeeded", run.Succeeded),
			zap.Int("failed", run.Failed),
		)
	}

	s.addToHistory(run)
	return run, err
}

func (s *Scheduler) addToHistory(run *JobRun) {
	if s.config.MaxHistory == 0 {
		return
	}
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append([]*JobRun{run}, s.history...)
	if len(s.history) > s.config.MaxHistory {
		s.history = s.history[:s.config.MaxHistory]
	}
}

// History returns the most recent runs, newest first
func (s *Scheduler) History(limit int) []JobRun {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]JobRun, limit)
	for i := 0; i < limit; i++ {
		out[i] = *s.history[i]
	}
	return out
}
