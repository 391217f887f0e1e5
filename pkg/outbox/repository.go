package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/plusonehq/plusone-backend/pkg/db/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert appends an event inside the caller's transaction so the domain write
// and its event commit (or roll back) together.
func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(&event).Error
}

// FetchUnpublished returns publishable rows in insertion order, skipping rows
// that have exhausted their attempts.
func (r *Repository) FetchUnpublished(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	var rows []models.OutboxEvent
	err := conn.Where("published_at IS NULL").
		Where("attempt_count < ?", maxAttempts).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublished(tx *gorm.DB, id uuid.UUID) error {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	return conn.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"published_at": time.Now(),
		}).Error
}

func (r *Repository) MarkFailed(tx *gorm.DB, id uuid.UUID, cause error) error {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	return conn.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    cause.Error(),
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// DeletePublishedBefore prunes published rows older than the cutoff, used by
// the retention cron job.
func (r *Repository) DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	result := conn.WithContext(ctx).
		Where("published_at IS NOT NULL").
		Where("published_at < ?", cutoff).
		Delete(&models.OutboxEvent{})
	return result.RowsAffected, result.Error
}
