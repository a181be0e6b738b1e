// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/normanking/lucyd/internal/speechcache"
)

// Scheduler manages cron jobs for background maintenance
type Scheduler struct {
	cron   *cron.Cron
	cache  *speechcache.Store
	maxAge time.Duration
	logger zerolog.Logger
}

// NewScheduler creates a scheduler that sweeps cached audio older than
// maxAge on the given cron schedule.
func NewScheduler(cache *speechcache.Store, schedule string, maxAge time.Duration, logger zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		cache:  cache,
		maxAge: maxAge,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}

	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) sweep() {
	report := s.cache.Sweep(s.maxAge)
	for _, f := range report.Failures {
		s.logger.Warn().Err(f.Err).Str("path", f.Path).Msg("Could not remove cached audio file")
	}
	s.logger.Info().
		Int("scanned", report.Scanned).
		Int("removed", report.Removed).
		Int("failures", len(report.Failures)).
		Msg("Scheduled audio sweep finished")
}
