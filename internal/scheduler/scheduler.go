// Package scheduler runs the periodic background jobs on cron expressions.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work. Jobs receive a context that is
// cancelled on Stop and report failures through the returned error.
type Job func(ctx context.Context) error

// Scheduler wraps a cron runner with logging and panic containment. Jobs
// are registered before Start and stopped together on Stop. A run that
// outlasts its cron interval suppresses the next firing of the same job
// rather than overlapping it.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an empty scheduler using standard 5-field cron expressions.
func New(logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cronLogger{logger}),
		)),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers a named job under a cron expression.
func (s *Scheduler) Add(name, expr string, job Job) error {
	_, err := s.cron.AddFunc(expr, func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("scheduled job panicked", "job", name, "panic", r)
			}
		}()

		s.logger.Debug("scheduled job starting", "job", name)
		if err := job(s.ctx); err != nil {
			s.logger.Error("scheduled job failed", "job", name, "error", err)
			return
		}
		s.logger.Debug("scheduled job finished", "job", name)
	})
	if err != nil {
		return err
	}
	s.logger.Info("scheduled job registered", "job", name, "cron", expr)
	return nil
}

// Start begins running registered jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling new runs, cancels the job context and waits for
// running jobs to wind down.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	s.cancel()
	<-ctx.Done()
}

// cronLogger adapts slog to the cron.Logger interface so skipped firings
// surface in the service log.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
