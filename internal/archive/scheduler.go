package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Skufu/onehealth/internal/aggregate"
	"github.com/Skufu/onehealth/internal/risk"
)

// Source computes the current snapshot and its assessment.
type Source func(ctx context.Context) ([]aggregate.RegionAggregate, []risk.Assessment, error)

type Scheduler struct {
	cron      *cron.Cron
	archive   *Archive
	source    Source
	retention time.Duration
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewScheduler registers the capture job on a standard five-field cron
// spec. A retention above zero prunes older snapshots after each capture.
func NewScheduler(a *Archive, spec string, retention time.Duration, source Source, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		cron:      cron.New(),
		archive:   a,
		source:    source,
		retention: retention,
		timeout:   time.Minute,
		now:       time.Now,
		logger:    logger,
	}
	if _, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error("archive snapshot failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule archive job %q: %w", spec, err)
	}
	return s, nil
}

// RunOnce captures one snapshot. A degraded source is not archived, so the
// history never records an outage as a drop to zero.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	snapshot, assessed, err := s.source(ctx)
	if err != nil {
		return fmt.Errorf("compute snapshot: %w", err)
	}
	id, err := s.archive.Save(ctx, s.now(), snapshot, assessed)
	if err != nil {
		return err
	}
	s.logger.Info("archived risk snapshot", "snapshot_id", id, "regions", len(snapshot))

	if s.retention > 0 {
		n, err := s.archive.Prune(ctx, s.now().Add(-s.retention))
		if err != nil {
			return err
		}
		if n > 0 {
			s.logger.Info("pruned archived snapshots", "deleted", n)
		}
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for a running capture to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
