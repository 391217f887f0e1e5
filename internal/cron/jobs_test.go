package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/plusonehq/plusone-backend/pkg/logger"
	"gorm.io/gorm"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeHistoryRepo struct {
	lastCutoff  time.Time
	deletedRows int64
	err         error
	called      int
}

func (f *fakeHistoryRepo) DeleteOrphanedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.deletedRows, nil
}

func TestHistoryPruneJobUsesRetentionCutoff(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	repo := &fakeHistoryRepo{deletedRows: 3}
	job := newHistoryPruneJob(t, repo)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	expectedCutoff := now.UTC().Add(-historyRetentionDays * 24 * time.Hour)
	if !repo.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, repo.lastCutoff)
	}
	if repo.called != 1 {
		t.Fatalf("expected repo called once, got %d", repo.called)
	}
}

func TestHistoryPruneJobPropagatesErrors(t *testing.T) {
	repo := &fakeHistoryRepo{err: errors.New("boom")}
	job := newHistoryPruneJob(t, repo)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func newHistoryPruneJob(t *testing.T, repo *fakeHistoryRepo) *historyPruneJob {
	t.Helper()
	jobIface, err := NewHistoryPruneJob(HistoryPruneJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("NewHistoryPruneJob: %v", err)
	}
	job, ok := jobIface.(*historyPruneJob)
	if !ok {
		t.Fatalf("expected historyPruneJob, got %T", jobIface)
	}
	return job
}

type fakeOutboxRepo struct {
	lastCutoff  time.Time
	deletedRows int64
	err         error
}

func (f *fakeOutboxRepo) DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.deletedRows, nil
}

func TestOutboxRetentionJobUsesRetentionCutoff(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	repo := &fakeOutboxRepo{deletedRows: 8}
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		DB:         fakeTxRunner{},
		Repository: repo,
		Retention:  10,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job := jobIface.(*outboxRetentionJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expectedCutoff := now.UTC().Add(-10 * 24 * time.Hour)
	if !repo.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, repo.lastCutoff)
	}
}

func TestOutboxRetentionJobPropagatesErrors(t *testing.T) {
	repo := &fakeOutboxRepo{err: errors.New("boom")}
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		DB:         fakeTxRunner{},
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	if err := jobIface.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
