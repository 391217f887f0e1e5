package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/plusonehq/plusone-backend/pkg/db"
	"github.com/plusonehq/plusone-backend/pkg/db/models"
	"github.com/plusonehq/plusone-backend/pkg/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const naturalKeyConstraint = "uq_aggregate_orders_natural_key"

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

func (r *repository) ResolveOrCreate(ctx context.Context, userID, productID, postID int64) (*models.AggregateOrder, error) {
	row := &models.AggregateOrder{
		UserID:    userID,
		ProductID: productID,
		PostID:    postID,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"},
				{Name: "product_id"},
				{Name: "post_id"},
			},
			DoNothing: true,
		}).
		Create(row).Error
	if err != nil && !db.IsUniqueViolation(err, naturalKeyConstraint) {
		return nil, fmt.Errorf("create aggregate order: %w", err)
	}
	if err == nil && row.ID != 0 {
		return row, nil
	}
	// Lost the insert race; the winner's row is what we accumulate into.
	return r.findByNaturalKey(ctx, userID, productID, postID)
}

func (r *repository) findByNaturalKey(ctx context.Context, userID, productID, postID int64) (*models.AggregateOrder, error) {
	var row models.AggregateOrder
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ? AND post_id = ?", userID, productID, postID).
		First(&row).Error
	if err != nil {
		return nil, fmt.Errorf("find aggregate order by natural key: %w", err)
	}
	return &row, nil
}

func (r *repository) AddQuantity(ctx context.Context, id int64, delta int64, variant *string) (*models.AggregateOrder, error) {
	updates := map[string]any{
		"quantity": gorm.Expr("quantity + ?", delta),
	}
	if variant != nil {
		updates["variant"] = *variant
	}
	res := r.db.WithContext(ctx).
		Model(&models.AggregateOrder{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("accumulate quantity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *repository) LinkExternalOrder(ctx context.Context, id int64, externalOrderID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.AggregateOrder{}).
		Where("id = ? AND (external_order_id IS NULL OR external_order_id = ?)", id, externalOrderID).
		Update("external_order_id", externalOrderID)
	if res.Error != nil {
		return false, fmt.Errorf("link external order: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.AggregateOrder, error) {
	var row models.AggregateOrder
	err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find aggregate order: %w", err)
	}
	return &row, nil
}

func (r *repository) FindByUserAndPost(ctx context.Context, userID, postID int64) (*models.AggregateOrder, error) {
	var row models.AggregateOrder
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Order("created_at DESC, id DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find aggregate order by user and post: %w", err)
	}
	return &row, nil
}

func (r *repository) ListByPost(ctx context.Context, postID int64, params pagination.Params) ([]models.AggregateOrder, string, error) {
	limit := pagination.NormalizeLimit(params.Limit)

	q := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(limit))

	if params.Cursor != "" {
		cur, err := pagination.DecodeCursor(params.Cursor)
		if err != nil {
			return nil, "", err
		}
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cur.CreatedAt, cur.CreatedAt, cur.ID)
	}

	var rows []models.AggregateOrder
	if err := q.Find(&rows).Error; err != nil {
		return nil, "", fmt.Errorf("list aggregate orders by post: %w", err)
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

func (r *repository) Delete(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.AggregateOrder{}, "id = ?", id)
	if res.Error != nil {
		return false, fmt.Errorf("delete aggregate order: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
