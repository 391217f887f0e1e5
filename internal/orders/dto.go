package orders

import "github.com/plusonehq/plusone-backend/pkg/db/models"

// AccumulateInput carries one purchase intent against a (user, product, post)
// aggregate. Delta defaults to 1 at the API edge; here it must be positive.
type AccumulateInput struct {
	UserID    int64   `json:"user_id" validate:"required,gt=0"`
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	PostID    int64   `json:"post_id" validate:"required,gt=0"`
	Delta     int64   `json:"quantity" validate:"omitempty,gt=0"`
	Variant   *string `json:"variant,omitempty" validate:"omitempty,max=128"`
}

// LinkInput attaches an external checkout order to an aggregate.
type LinkInput struct {
	OrderID         int64 `json:"-"`
	ExternalOrderID int64 `json:"external_order_id" validate:"required,gt=0"`
	ActorID         int64 `json:"actor_id" validate:"omitempty,gt=0"`
}

// LinkResult reports a linkage outcome. Linked is false when a different
// external order id already won the race.
type LinkResult struct {
	Order  *models.AggregateOrder
	Linked bool
}

// ListByPostInput pages aggregates for one post, newest first.
type ListByPostInput struct {
	PostID int64
	Limit  int
	Cursor string
}
