package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSweepSchedule runs the sweep every minute.
const DefaultSweepSchedule = "@every 1m"

// Sweepable is a store that drops expired sessions on demand.
type Sweepable interface {
	Sweep(ctx context.Context) (int, error)
}

// Sweeper runs Sweep on a cron schedule.
type Sweeper struct {
	store    Sweepable
	schedule string
	logger   zerolog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
}

// NewSweeper creates a sweeper. An empty schedule means DefaultSweepSchedule.
func NewSweeper(store Sweepable, schedule string, logger zerolog.Logger) *Sweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &Sweeper{
		store:    store,
		schedule: schedule,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start schedules the sweep job and starts the scheduler.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(s.schedule, s.RunOnce)
	if err != nil {
		return fmt.Errorf("scheduling session sweep %q: %w", s.schedule, err)
	}
	s.entryID = id
	s.cron.Start()

	s.logger.Info().Str("schedule", s.schedule).Msg("session sweeper started")
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.cron.Remove(s.entryID)
	s.logger.Info().Msg("session sweeper stopped")
}

// RunOnce sweeps expired sessions immediately.
func (s *Sweeper) RunOnce() {
	removed, err := s.store.Sweep(context.Background())
	if err != nil {
		s.logger.Error().Err(err).Msg("session sweep failed")
		return
	}
	if removed > 0 {
		s.logger.Debug().Int("removed", removed).Msg("expired sessions swept")
	}
}
