// Package scheduler runs feed syncs on a cron schedule in-process, for
// deployments without an external cron caller.
package scheduler

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/opencorp/clientsync/internal/syncer"
)

// Scheduler triggers live runs per feed on a shared cron spec. Overlapping
// triggers are harmless: the feed lock rejects the second one.
type Scheduler struct {
	cron    *cron.Cron
	service *syncer.Service
	logger  zerolog.Logger
}

// New builds a stopped scheduler.
func New(service *syncer.Service, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		service: service,
		logger:  logger,
	}
}

// Add schedules a live run of the feed under the cron spec.
func (s *Scheduler) Add(feedKey, spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		result, err := s.service.Execute(context.Background(), feedKey, false)
		if err != nil {
			if errors.Is(err, syncer.ErrLockHeld) {
				s.logger.Info().Str("feed", feedKey).Msg("scheduled sync skipped, run already active")
				return
			}
			s.logger.Error().Err(err).Str("feed", feedKey).Msg("scheduled sync failed")
			return
		}
		s.logger.Info().
			Str("feed", feedKey).
			Int("rows_imported", result.RowsImported).
			Int("rows_errors", result.RowsErrors).
			Msg("scheduled sync finished")
	})
	return err
}

// Start launches the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
