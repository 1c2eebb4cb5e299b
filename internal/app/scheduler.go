package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lfmartins/carteira/internal/common"
)

// Scheduler runs the daily jobs: quote and FX sync, the NAV close, and
// snapshot materialization, all in the configured timezone.
type Scheduler struct {
	app    *App
	cron   *cron.Cron
	logger *common.Logger
}

// NewScheduler builds the cron schedule from the app configuration.
func NewScheduler(a *App, logger *common.Logger) (*Scheduler, error) {
	cfg := a.Config.Scheduler
	c := cron.New(cron.WithLocation(cfg.Location()))
	s := &Scheduler{app: a, cron: c, logger: logger}

	for _, at := range cfg.QuoteSyncTimes {
		spec, err := cronSpec(at)
		if err != nil {
			return nil, fmt.Errorf("invalid quote sync time %q: %w", at, err)
		}
		if _, err := c.AddFunc(spec, s.runMarketSync); err != nil {
			return nil, err
		}
	}

	if cfg.NAVTime != "" {
		spec, err := cronSpec(cfg.NAVTime)
		if err != nil {
			return nil, fmt.Errorf("invalid nav time %q: %w", cfg.NAVTime, err)
		}
		if _, err := c.AddFunc(spec, s.runNAVClose); err != nil {
			return nil, err
		}
	}

	if cfg.SnapshotTime != "" {
		spec, err := cronSpec(cfg.SnapshotTime)
		if err != nil {
			return nil, fmt.Errorf("invalid snapshot time %q: %w", cfg.SnapshotTime, err)
		}
		if _, err := c.AddFunc(spec, s.runSnapshots); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Start begins job execution.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().
		Str("timezone", s.app.Config.Scheduler.Timezone).
		Int("jobs", len(s.cron.Entries())).
		Msg("Scheduler started")
}

// Stop halts the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// cronSpec converts "HH:MM" into a daily cron expression.
func cronSpec(at string) (string, error) {
	at = strings.TrimSpace(at)
	if at == "" {
		return "", fmt.Errorf("empty time")
	}
	var hh, mm int
	if _, err := fmt.Sscanf(at, "%d:%d", &hh, &mm); err != nil {
		return "", err
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return "", fmt.Errorf("time out of range")
	}
	return fmt.Sprintf("%d %d * * *", mm, hh), nil
}

// runMarketSync refreshes quotes for every active asset and PTAX rates for
// the trailing window.
func (s *Scheduler) runMarketSync() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	start := time.Now()

	report, err := s.app.QuoteService.SyncAll(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Scheduled quote sync failed")
	} else {
		s.logger.Info().
			Int("synced", report.Synced).
			Int("failed", len(report.Errors)).
			Dur("elapsed", time.Since(start)).
			Msg("Scheduled quote sync complete")
	}

	now := time.Now()
	window := s.app.Config.Portfolio.FXFallbackDays
	if window <= 0 {
		window = 7
	}
	count, err := s.app.FXService.SyncRates(ctx, "USD", s.app.Config.Portfolio.BaseCurrency,
		now.AddDate(0, 0, -window), now)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Scheduled FX sync failed")
	} else {
		s.logger.Info().Int("rates", count).Msg("Scheduled FX sync complete")
	}
}

// runNAVClose writes the daily fund share row for every user.
func (s *Scheduler) runNAVClose() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	users, err := s.app.Storage.Users().List(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("NAV close: failed to list users")
		return
	}
	now := time.Now()
	for _, user := range users {
		share, err := s.app.FundService.CreateDailyFundShare(ctx, user.ID, now)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("NAV close failed")
			continue
		}
		if share == nil {
			s.logger.Debug().Str("user_id", user.ID).Msg("NAV close skipped, NAV is zero")
			continue
		}
		s.logger.Info().
			Str("user_id", user.ID).
			Str("share_value", share.ShareValue.String()).
			Msg("NAV close complete")
	}
}

// runSnapshots materializes daily snapshots for every user.
func (s *Scheduler) runSnapshots() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	users, err := s.app.Storage.Users().List(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Snapshot job: failed to list users")
		return
	}
	now := time.Now()
	for _, user := range users {
		snapshots, err := s.app.SnapshotService.Materialize(ctx, user.ID, now)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("Snapshot job failed")
			continue
		}
		s.logger.Info().
			Str("user_id", user.ID).
			Int("snapshots", len(snapshots)).
			Msg("Snapshot job complete")
	}
}
