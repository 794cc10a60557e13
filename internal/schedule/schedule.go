// Package schedule runs background sync cycles on a cron spec.
package schedule

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hpungsan/noteboard/internal/errors"
	"github.com/hpungsan/noteboard/internal/logger"
)

// Job is one scheduled run. Its error is logged, never retried early.
type Job func(ctx context.Context) error

// Scheduler triggers a Job on a cron spec such as "@every 15m" or "*/10 * * * *".
// A trigger that fires while the previous run is still going is skipped.
type Scheduler struct {
	cron *cron.Cron
	id   cron.EntryID
	log  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New parses spec and registers job. The scheduler does nothing until Start.
func New(spec string, job Job, log *zap.Logger) (*Scheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{log: log, ctx: ctx, cancel: cancel}

	cl := cronLogger{log.Sugar()}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	id, err := s.cron.AddFunc(spec, func() { s.run(job) })
	if err != nil {
		cancel()
		return nil, errors.NewInvalidRequest("invalid sync schedule " + spec + ": " + err.Error())
	}
	s.id = id
	return s, nil
}

func (s *Scheduler) run(job Job) {
	start := time.Now()
	if err := job(s.ctx); err != nil {
		s.log.Warn("scheduled sync failed", zap.Error(err), zap.Duration(logger.FieldDuration, time.Since(start)))
		return
	}
	s.log.Debug("scheduled sync finished", zap.Duration(logger.FieldDuration, time.Since(start)))
}

// Start begins triggering the job in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("sync scheduled", zap.Time("next", s.Next()))
}

// Next returns the next trigger time, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.id).Next
}

// Stop cancels a running job and waits for it to return, or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// cronLogger routes cron's own messages into zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
