package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/plusonehq/plusone-backend/pkg/logger"
)

const historyRetentionDays = 90

type HistoryPruneJobParams struct {
	Logger     *logger.Logger
	Repository historyPruneRepo
	Retention  int
}

type historyPruneRepo interface {
	DeleteOrphanedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewHistoryPruneJob removes status transitions whose aggregate order was
// deleted, once they age past the retention window. Transitions for live
// orders are never touched.
func NewHistoryPruneJob(params HistoryPruneJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = historyRetentionDays
	}
	return &historyPruneJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

type historyPruneJob struct {
	logg      *logger.Logger
	repo      historyPruneRepo
	retention int
	now       func() time.Time
}

func (j *historyPruneJob) Name() string { return "history-prune" }

func (j *historyPruneJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	deleted, err := j.repo.DeleteOrphanedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("history prune: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "orphaned history prune complete")
	return nil
}
