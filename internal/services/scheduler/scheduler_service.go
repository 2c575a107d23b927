package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// ErrRunInProgress is returned by RunNow while another run is executing
var ErrRunInProgress = errors.New("a run is already in progress")

// Job is one scheduled unit of work
type Job func(ctx context.Context) error

// Service runs a single job on a cron schedule. Runs never overlap: a tick that fires while the
// previous run is still going is skipped.
type Service struct {
	job    Job
	cron   *cron.Cron
	logger arbor.ILogger

	mu           sync.Mutex // Protects isProcessing and status
	isProcessing bool
	lastRun      time.Time
	lastError    error

	ctx     context.Context
	cancel  context.CancelFunc
	entryID cron.EntryID
	running bool
}

// NewService creates a scheduler. Cron expressions are evaluated in loc.
func NewService(job Job, loc *time.Location, logger arbor.ILogger) *Service {
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{logger: logger}
	return &Service{
		job:    job,
		logger: logger,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

// Start schedules the job. ctx bounds every run; cancelling it aborts the run in progress.
func (s *Service) Start(ctx context.Context, cronExpr string) error {
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	entryID, err := s.cron.AddFunc(cronExpr, s.runScheduledTask)
	if err != nil {
		s.cancel()
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.entryID = entryID

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("cron_expr", cronExpr).
		Str("next_run", s.NextRun().Format(time.RFC3339)).
		Msg("Scheduler started")
	return nil
}

// Stop halts the schedule and waits for a run in progress to return
func (s *Service) Stop() {
	if !s.running {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info().Msg("Scheduler stopped")
}

// RunNow executes the job immediately on the caller's goroutine
func (s *Service) RunNow(ctx context.Context) error {
	if !s.begin() {
		return ErrRunInProgress
	}
	return s.execute(ctx)
}

// NextRun returns the next scheduled time, zero when not started
func (s *Service) NextRun() time.Time {
	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// LastRun returns when the last run finished and how it ended
func (s *Service) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastError
}

func (s *Service) runScheduledTask() {
	if !s.begin() {
		s.logger.Debug().Msg("Run already in progress, skipping this cycle")
		return
	}
	if err := s.execute(s.ctx); err != nil {
		s.logger.Debug().Err(err).Msg("Scheduled run returned an error")
	}
}

func (s *Service) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isProcessing {
		return false
	}
	s.isProcessing = true
	return true
}

// execute runs the job with panic recovery; callers must have called begin
func (s *Service) execute(ctx context.Context) (err error) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in scheduled run: %v", r)
			s.logger.Error().Str("panic", fmt.Sprintf("%v", r)).Msg("PANIC RECOVERED in scheduled run")
		}

		s.mu.Lock()
		s.isProcessing = false
		s.lastRun = time.Now()
		s.lastError = err
		s.mu.Unlock()

		if err != nil {
			s.logger.Error().Err(err).Dur("duration", time.Since(started)).Msg("Run failed")
		} else {
			s.logger.Info().Dur("duration", time.Since(started)).Msg("Run completed")
		}
	}()

	return s.job(ctx)
}

// cronLogger routes cron's own messages through arbor
type cronLogger struct {
	logger arbor.ILogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Msgf("cron: %s %v", msg, keysAndValues)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Msgf("cron: %s %v", msg, keysAndValues)
}
