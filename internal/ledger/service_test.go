package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/plusonehq/plusone-backend/pkg/db/models"
	"github.com/plusonehq/plusone-backend/pkg/enums"
	pkgerrors "github.com/plusonehq/plusone-backend/pkg/errors"
	"github.com/plusonehq/plusone-backend/pkg/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRepository struct {
	rows   []models.StatusTransition
	nextID int64
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, row *models.StatusTransition) error {
	f.nextID++
	row.ID = f.nextID
	if row.ChangedAt.IsZero() {
		row.ChangedAt = time.Now()
	}
	f.rows = append(f.rows, *row)
	return nil
}

func (f *fakeRepository) History(ctx context.Context, orderID int64) ([]models.StatusTransition, error) {
	var out []models.StatusTransition
	for _, row := range f.rows {
		if row.OrderID == orderID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeRepository) Latest(ctx context.Context, orderID int64, statusType enums.StatusType) (*models.StatusTransition, error) {
	var latest *models.StatusTransition
	for i := range f.rows {
		row := f.rows[i]
		if row.OrderID != orderID || row.StatusType != statusType {
			continue
		}
		if latest == nil || row.ChangedAt.After(latest.ChangedAt) ||
			(row.ChangedAt.Equal(latest.ChangedAt) && row.ID > latest.ID) {
			latest = &f.rows[i]
		}
	}
	return latest, nil
}

func (f *fakeRepository) DeleteOrphanedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

func newTestService(t *testing.T) (Service, *fakeRepository, *fakeOutbox) {
	t.Helper()

	repo := &fakeRepository{}
	ob := &fakeOutbox{}
	svc, err := NewService(repo, fakeTxRunner{}, ob, nil)
	require.NoError(t, err)
	return svc, repo, ob
}

func TestService_RecordTransition(t *testing.T) {
	svc, repo, ob := newTestService(t)
	ctx := context.Background()

	row, err := svc.RecordTransition(ctx, RecordTransitionInput{
		OrderID:    5,
		StatusType: enums.StatusTypePaid,
		OldValue:   false,
		NewValue:   true,
		ChangedBy:  9,
	})
	require.NoError(t, err)
	assert.NotZero(t, row.ID)
	require.Len(t, repo.rows, 1)

	require.Len(t, ob.events, 1)
	assert.Equal(t, enums.EventStatusTransitionLogged, ob.events[0].EventType)
	assert.Equal(t, row.ID, ob.events[0].AggregateID)
}

func TestService_RecordTransitionAcceptsAnyCombination(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	combos := []struct{ oldV, newV bool }{
		{false, true},
		{true, false},
		{true, true},
		{false, false},
	}
	for _, c := range combos {
		_, err := svc.RecordTransition(ctx, RecordTransitionInput{
			OrderID:    5,
			StatusType: enums.StatusTypeShipped,
			OldValue:   c.oldV,
			NewValue:   c.newV,
			ChangedBy:  1,
		})
		require.NoError(t, err)
	}
	assert.Len(t, repo.rows, len(combos))
}

func TestService_RecordTransitionOpenTagSet(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordTransition(ctx, RecordTransitionInput{
		OrderID:    5,
		StatusType: "ready_for_pickup",
		NewValue:   true,
		ChangedBy:  1,
	})
	require.NoError(t, err)

	_, err = svc.RecordTransition(ctx, RecordTransitionInput{
		OrderID:    5,
		StatusType: "Not A Tag!",
		NewValue:   true,
		ChangedBy:  1,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestService_RecordTransitionValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordTransition(ctx, RecordTransitionInput{StatusType: enums.StatusTypePaid, ChangedBy: 1})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	_, err = svc.RecordTransition(ctx, RecordTransitionInput{OrderID: 5, StatusType: enums.StatusTypePaid})
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestService_CurrentValue(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// No transitions yet: the type default applies.
	val, err := svc.CurrentValue(ctx, 5, enums.StatusTypePaid)
	require.NoError(t, err)
	assert.False(t, val)

	_, err = svc.RecordTransition(ctx, RecordTransitionInput{
		OrderID:    5,
		StatusType: enums.StatusTypePaid,
		NewValue:   true,
		ChangedBy:  1,
	})
	require.NoError(t, err)

	val, err = svc.CurrentValue(ctx, 5, enums.StatusTypePaid)
	require.NoError(t, err)
	assert.True(t, val)

	_, err = svc.RecordTransition(ctx, RecordTransitionInput{
		OrderID:    5,
		StatusType: enums.StatusTypePaid,
		OldValue:   true,
		NewValue:   false,
		ChangedBy:  1,
	})
	require.NoError(t, err)

	val, err = svc.CurrentValue(ctx, 5, enums.StatusTypePaid)
	require.NoError(t, err)
	assert.False(t, val)

	// Other flags stay at their defaults.
	val, err = svc.CurrentValue(ctx, 5, enums.StatusTypeShipped)
	require.NoError(t, err)
	assert.False(t, val)
}

func TestService_History(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordTransition(ctx, RecordTransitionInput{OrderID: 5, StatusType: enums.StatusTypePaid, NewValue: true, ChangedBy: 1})
	require.NoError(t, err)
	_, err = svc.RecordTransition(ctx, RecordTransitionInput{OrderID: 5, StatusType: enums.StatusTypeShipped, NewValue: true, ChangedBy: 2})
	require.NoError(t, err)
	_, err = svc.RecordTransition(ctx, RecordTransitionInput{OrderID: 6, StatusType: enums.StatusTypePaid, NewValue: true, ChangedBy: 1})
	require.NoError(t, err)

	rows, err := svc.History(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = svc.History(ctx, 0)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}
