package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/plusonehq/plusone-backend/pkg/logger"
	"gorm.io/gorm"
)

const outboxRetentionDays = 30

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxRetentionRepo
	Retention  int
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NewOutboxRetentionJob prunes outbox rows that were published before the
// retention cutoff. Unpublished rows are kept regardless of age.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = outboxRetentionDays
	}
	return &outboxRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      outboxRetentionRepo
	retention int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeletePublishedBefore(ctx, tx, cutoff)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "outbox retention cleanup complete")
	return nil
}
