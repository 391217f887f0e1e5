package ledger

import (
	"context"
	"fmt"

	"github.com/plusonehq/plusone-backend/pkg/db/models"
	"github.com/plusonehq/plusone-backend/pkg/enums"
	pkgerrors "github.com/plusonehq/plusone-backend/pkg/errors"
	"github.com/plusonehq/plusone-backend/pkg/metrics"
	"github.com/plusonehq/plusone-backend/pkg/outbox"
	"github.com/plusonehq/plusone-backend/pkg/outbox/payloads"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// RecordTransitionInput captures one status flag change to append.
type RecordTransitionInput struct {
	OrderID    int64            `json:"-"`
	StatusType enums.StatusType `json:"status_type" validate:"required"`
	OldValue   bool             `json:"old_value"`
	NewValue   bool             `json:"new_value"`
	ChangedBy  int64            `json:"-"`
}

// Service records and derives order status flags from the transition log.
type Service interface {
	// RecordTransition appends one transition. Any old/new combination is
	// accepted, including repeats of the current value. The order id is
	// not checked against aggregate_orders; rows may outlive their order.
	RecordTransition(ctx context.Context, input RecordTransitionInput) (*models.StatusTransition, error)

	// CurrentValue derives the flag from the newest transition, falling
	// back to the type's default when no transition exists.
	CurrentValue(ctx context.Context, orderID int64, statusType enums.StatusType) (bool, error)

	History(ctx context.Context, orderID int64) ([]models.StatusTransition, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics *metrics.IntakeMetrics
}

// NewService wires a status ledger service with the provided dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, intake *metrics.IntakeMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  outbox,
		metrics: intake,
	}, nil
}

func (s *service) RecordTransition(ctx context.Context, input RecordTransitionInput) (*models.StatusTransition, error) {
	if input.OrderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ChangedBy <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "changed_by required")
	}
	statusType, err := enums.ParseStatusType(string(input.StatusType))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}

	row := &models.StatusTransition{
		OrderID:    input.OrderID,
		StatusType: statusType,
		OldValue:   input.OldValue,
		NewValue:   input.NewValue,
		ChangedBy:  input.ChangedBy,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status transition")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStatusTransitionLogged,
			AggregateType: enums.AggregateStatusTransition,
			AggregateID:   row.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ChangedBy},
			Data: payloads.StatusTransitionLoggedEvent{
				TransitionID: row.ID,
				OrderID:      row.OrderID,
				StatusType:   row.StatusType,
				OldValue:     row.OldValue,
				NewValue:     row.NewValue,
				ChangedBy:    row.ChangedBy,
				ChangedAt:    row.ChangedAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition(string(statusType))
	return row, nil
}

func (s *service) CurrentValue(ctx context.Context, orderID int64, statusType enums.StatusType) (bool, error) {
	if orderID <= 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	parsed, err := enums.ParseStatusType(string(statusType))
	if err != nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}
	latest, err := s.repo.Latest(ctx, orderID, parsed)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "derive status value")
	}
	if latest == nil {
		return parsed.Default(), nil
	}
	return latest.NewValue, nil
}

func (s *service) History(ctx context.Context, orderID int64) ([]models.StatusTransition, error) {
	if orderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	rows, err := s.repo.History(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load status history")
	}
	return rows, nil
}
