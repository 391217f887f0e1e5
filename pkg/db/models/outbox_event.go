package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/plusonehq/plusone-backend/pkg/enums"
)

// OutboxEvent represents an append-only domain event emitted via the outbox
// pattern. Rows are inserted in the same transaction as the domain write and
// drained by cmd/outbox-publisher.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;not null"`
	AggregateID   int64                     `gorm:"column:aggregate_id;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	PublishedAt   *time.Time                `gorm:"column:published_at"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}
