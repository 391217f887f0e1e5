package models

import "time"

// AggregateOrder accumulates one user's "+1" purchase intents for one product
// referenced from one feed post. At most one live row exists per
// (user_id, product_id, post_id); the natural-key unique index enforces it.
type AggregateOrder struct {
	ID              int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID          int64      `gorm:"column:user_id;not null;uniqueIndex:uq_aggregate_orders_natural_key,priority:1" json:"userId"`
	ProductID       int64      `gorm:"column:product_id;not null;uniqueIndex:uq_aggregate_orders_natural_key,priority:2" json:"productId"`
	PostID          int64      `gorm:"column:post_id;not null;uniqueIndex:uq_aggregate_orders_natural_key,priority:3" json:"postId"`
	Quantity        int64      `gorm:"column:quantity;not null;default:0" json:"quantity"`
	Variant         *string    `gorm:"column:variant" json:"variant,omitempty"`
	ExternalOrderID *int64     `gorm:"column:external_order_id" json:"externalOrderId,omitempty"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (AggregateOrder) TableName() string {
	return "aggregate_orders"
}
