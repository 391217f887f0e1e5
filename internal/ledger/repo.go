package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/plusonehq/plusone-backend/pkg/db/models"
	"github.com/plusonehq/plusone-backend/pkg/enums"
	"gorm.io/gorm"
)

// Repository persists append-only status transitions. Rows are never
// updated or rewritten once created.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, row *models.StatusTransition) error

	// History returns every transition for the order, oldest first.
	History(ctx context.Context, orderID int64) ([]models.StatusTransition, error)

	// Latest returns the most recent transition for one status type, or nil
	// when the order has never transitioned that type.
	Latest(ctx context.Context, orderID int64, statusType enums.StatusType) (*models.StatusTransition, error)

	// DeleteOrphanedBefore removes transitions older than cutoff whose
	// aggregate order no longer exists. Returns the number of rows removed.
	DeleteOrphanedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(gdb *gorm.DB) Repository {
	return &repository{db: gdb}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, row *models.StatusTransition) error {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("create status transition: %w", err)
	}
	return nil
}

func (r *repository) History(ctx context.Context, orderID int64) ([]models.StatusTransition, error) {
	var rows []models.StatusTransition
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("changed_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load status history: %w", err)
	}
	return rows, nil
}

func (r *repository) Latest(ctx context.Context, orderID int64, statusType enums.StatusType) (*models.StatusTransition, error) {
	var row models.StatusTransition
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status_type = ?", orderID, statusType).
		Order("changed_at DESC, id DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load latest status transition: %w", err)
	}
	return &row, nil
}

func (r *repository) DeleteOrphanedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("changed_at < ?", cutoff).
		Where("order_id NOT IN (SELECT id FROM aggregate_orders)").
		Delete(&models.StatusTransition{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune orphaned transitions: %w", res.Error)
	}
	return res.RowsAffected, nil
}
