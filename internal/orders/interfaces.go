package orders

import (
	"context"

	"github.com/plusonehq/plusone-backend/pkg/db/models"
	"github.com/plusonehq/plusone-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository manages persistence for aggregate orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	// ResolveOrCreate returns the row for the natural key, creating it with
	// quantity zero when absent. Safe under concurrent callers racing to
	// create the same key.
	ResolveOrCreate(ctx context.Context, userID, productID, postID int64) (*models.AggregateOrder, error)

	// AddQuantity atomically increases quantity by delta and, when variant is
	// non-nil, replaces the stored variant. Returns the post-update row.
	AddQuantity(ctx context.Context, id int64, delta int64, variant *string) (*models.AggregateOrder, error)

	// LinkExternalOrder attaches the external order id if none is set yet.
	// Returns true when the row now holds externalOrderID (first write or
	// idempotent repeat), false when a different id already won.
	LinkExternalOrder(ctx context.Context, id int64, externalOrderID int64) (bool, error)

	FindByID(ctx context.Context, id int64) (*models.AggregateOrder, error)
	FindByUserAndPost(ctx context.Context, userID, postID int64) (*models.AggregateOrder, error)
	ListByPost(ctx context.Context, postID int64, params pagination.Params) ([]models.AggregateOrder, string, error)

	// Delete removes the aggregate row. History rows are untouched.
	Delete(ctx context.Context, id int64) (bool, error)
}
