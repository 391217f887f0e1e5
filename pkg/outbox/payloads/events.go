package payloads

import (
	"time"

	"github.com/plusonehq/plusone-backend/pkg/enums"
)

// IntentAccumulatedEvent is emitted each time a "+1" intent lands on an
// aggregate order.
type IntentAccumulatedEvent struct {
	OrderID   int64   `json:"order_id"`
	UserID    int64   `json:"user_id"`
	ProductID int64   `json:"product_id"`
	PostID    int64   `json:"post_id"`
	Delta     int64   `json:"delta"`
	Quantity  int64   `json:"quantity"`
	Variant   *string `json:"variant,omitempty"`
}

// ExternalOrderLinkedEvent signals that checkout attached an external order id.
type ExternalOrderLinkedEvent struct {
	OrderID         int64 `json:"order_id"`
	ExternalOrderID int64 `json:"external_order_id"`
}

// StatusTransitionLoggedEvent mirrors one appended audit row.
type StatusTransitionLoggedEvent struct {
	TransitionID int64            `json:"transition_id"`
	OrderID      int64            `json:"order_id"`
	StatusType   enums.StatusType `json:"status_type"`
	OldValue     bool             `json:"old_value"`
	NewValue     bool             `json:"new_value"`
	ChangedBy    int64            `json:"changed_by"`
	ChangedAt    time.Time        `json:"changed_at"`
}

// AggregateDeletedEvent reports an administrative deletion.
type AggregateDeletedEvent struct {
	OrderID   int64 `json:"order_id"`
	DeletedBy int64 `json:"deleted_by"`
}
