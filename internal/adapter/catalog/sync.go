package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"maestro/internal/domain"
)

// Syncer mirrors a remote catalog into the local SQLite store on a cron
// schedule, so orchestration keeps working from the local copy when the
// remote catalog is down.
type Syncer struct {
	source   domain.CatalogProvider
	store    *SQLiteCatalog
	schedule string
	logger   *slog.Logger
	cron     *cron.Cron
}

// NewSyncer creates a catalog syncer. Schedule uses cron syntax, including
// the "@every 5m" shorthand.
func NewSyncer(source domain.CatalogProvider, store *SQLiteCatalog, schedule string, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = discardLogger()
	}
	if schedule == "" {
		schedule = "@every 5m"
	}
	return &Syncer{
		source:   source,
		store:    store,
		schedule: schedule,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start runs one sync immediately, then schedules periodic syncs. The initial
// sync failing is logged, not fatal: the local mirror keeps serving.
func (s *Syncer) Start(ctx context.Context) error {
	if err := s.SyncOnce(ctx); err != nil {
		s.logger.Warn("initial catalog sync failed", "error", err)
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		syncCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.SyncOnce(syncCtx); err != nil {
			s.logger.Warn("catalog sync failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("catalog syncer started", "schedule", s.schedule)
	return nil
}

// Stop halts the schedule and waits for a running sync to finish.
func (s *Syncer) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// SyncOnce pulls the remote catalog and replaces the local mirror.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	agents, err := s.source.ListPublicAgents(ctx)
	if err != nil {
		return err
	}
	if err := s.store.ReplaceAll(ctx, agents); err != nil {
		return err
	}
	s.logger.Info("catalog synced", "agents", len(agents))
	return nil
}
