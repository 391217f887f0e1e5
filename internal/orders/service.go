package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/plusonehq/plusone-backend/pkg/db/models"
	"github.com/plusonehq/plusone-backend/pkg/enums"
	pkgerrors "github.com/plusonehq/plusone-backend/pkg/errors"
	"github.com/plusonehq/plusone-backend/pkg/metrics"
	"github.com/plusonehq/plusone-backend/pkg/outbox"
	"github.com/plusonehq/plusone-backend/pkg/outbox/payloads"
	"github.com/plusonehq/plusone-backend/pkg/pagination"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines aggregate order operations beyond repository reads.
type Service interface {
	// Accumulate applies one purchase intent: it resolves the aggregate for
	// the natural key, creating it when absent, and adds the delta.
	Accumulate(ctx context.Context, input AccumulateInput) (*models.AggregateOrder, error)

	// LinkExternalOrder attaches a checkout order id. The first id wins;
	// repeating the same id succeeds, a different id loses with a false
	// outcome rather than an error.
	LinkExternalOrder(ctx context.Context, input LinkInput) (*LinkResult, error)

	FindByID(ctx context.Context, id int64) (*models.AggregateOrder, error)
	FindByUserAndPost(ctx context.Context, userID, postID int64) (*models.AggregateOrder, error)
	ListByPost(ctx context.Context, input ListByPostInput) ([]models.AggregateOrder, string, error)

	// Delete removes the aggregate. Transition history is left behind for
	// the retention job to prune.
	Delete(ctx context.Context, id int64, actorID int64) error
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics *metrics.IntakeMetrics
}

// NewService builds an aggregate order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, intake *metrics.IntakeMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
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

func (s *service) Accumulate(ctx context.Context, input AccumulateInput) (*models.AggregateOrder, error) {
	if input.UserID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.ProductID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.PostID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "post id required")
	}
	if input.Delta <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.Variant != nil {
		trimmed := strings.TrimSpace(*input.Variant)
		if trimmed == "" {
			input.Variant = nil
		} else {
			input.Variant = &trimmed
		}
	}

	var updated *models.AggregateOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		row, err := repo.ResolveOrCreate(ctx, input.UserID, input.ProductID, input.PostID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve aggregate order")
		}

		updated, err = repo.AddQuantity(ctx, row.ID, input.Delta, input.Variant)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accumulate intent")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventIntentAccumulated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   updated.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.UserID},
			Data: payloads.IntentAccumulatedEvent{
				OrderID:   updated.ID,
				UserID:    updated.UserID,
				ProductID: updated.ProductID,
				PostID:    updated.PostID,
				Delta:     input.Delta,
				Quantity:  updated.Quantity,
				Variant:   updated.Variant,
			},
		})
	})
	if err != nil {
		s.metrics.ObserveIntent("failed", 0)
		return nil, err
	}
	s.metrics.ObserveIntent("accepted", input.Delta)
	return updated, nil
}

func (s *service) LinkExternalOrder(ctx context.Context, input LinkInput) (*LinkResult, error) {
	if input.OrderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ExternalOrderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external order id required")
	}

	var result *LinkResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load aggregate order")
		}

		ok, err := repo.LinkExternalOrder(ctx, input.OrderID, input.ExternalOrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link external order")
		}
		if !ok {
			// A different id already won. Expected under racing checkouts,
			// so the loser gets a false outcome rather than an error. The
			// winner may have landed after our initial read, so re-fetch to
			// surface its id.
			row, err := repo.FindByID(ctx, input.OrderID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload aggregate order")
			}
			result = &LinkResult{Order: row, Linked: false}
			return nil
		}

		// No-op repeats of the winning id do not re-emit.
		if current.ExternalOrderID != nil && *current.ExternalOrderID == input.ExternalOrderID {
			result = &LinkResult{Order: current, Linked: true}
			return nil
		}

		row, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload aggregate order")
		}
		result = &LinkResult{Order: row, Linked: true}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventExternalOrderLinked,
			AggregateType: enums.AggregateOrder,
			AggregateID:   row.ID,
			Version:       1,
			Actor:         actorRef(input.ActorID),
			Data: payloads.ExternalOrderLinkedEvent{
				OrderID:         row.ID,
				ExternalOrderID: input.ExternalOrderID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveLink(result.Linked)
	return result, nil
}

func (s *service) FindByID(ctx context.Context, id int64) (*models.AggregateOrder, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load aggregate order")
	}
	return row, nil
}

func (s *service) FindByUserAndPost(ctx context.Context, userID, postID int64) (*models.AggregateOrder, error) {
	if userID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if postID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "post id required")
	}
	row, err := s.repo.FindByUserAndPost(ctx, userID, postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no order for user and post")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load aggregate order")
	}
	return row, nil
}

func (s *service) ListByPost(ctx context.Context, input ListByPostInput) ([]models.AggregateOrder, string, error) {
	if input.PostID <= 0 {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "post id required")
	}
	rows, next, err := s.repo.ListByPost(ctx, input.PostID, pagination.Params{
		Limit:  input.Limit,
		Cursor: input.Cursor,
	})
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list aggregate orders")
	}
	return rows, next, nil
}

func (s *service) Delete(ctx context.Context, id int64, actorID int64) error {
	if id <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ok, err := repo.Delete(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete aggregate order")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAggregateDeleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   id,
			Version:       1,
			Actor:         actorRef(actorID),
			Data: payloads.AggregateDeletedEvent{
				OrderID:   id,
				DeletedBy: actorID,
			},
		})
	})
}

func actorRef(userID int64) *outbox.ActorRef {
	if userID <= 0 {
		return nil
	}
	return &outbox.ActorRef{UserID: userID}
}
