package models

import (
	"time"

	"github.com/plusonehq/plusone-backend/pkg/enums"
)

// StatusTransition is one immutable fact: flag StatusType on aggregate order
// OrderID changed from OldValue to NewValue, performed by ChangedBy. Rows are
// append-only; OrderID is a logical reference, deliberately not a foreign key,
// so history survives administrative deletion of the aggregate.
type StatusTransition struct {
	ID         int64            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID    int64            `gorm:"column:order_id;not null;index:idx_status_transitions_order" json:"orderId"`
	StatusType enums.StatusType `gorm:"column:status_type;not null" json:"statusType"`
	OldValue   bool             `gorm:"column:old_value;not null" json:"oldValue"`
	NewValue   bool             `gorm:"column:new_value;not null" json:"newValue"`
	ChangedBy  int64            `gorm:"column:changed_by;not null" json:"changedBy"`
	ChangedAt  time.Time        `gorm:"column:changed_at;autoCreateTime" json:"changedAt"`
}

func (StatusTransition) TableName() string {
	return "status_transitions"
}
