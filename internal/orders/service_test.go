package orders

import (
	"context"
	"testing"

	"github.com/plusonehq/plusone-backend/pkg/db/models"
	"github.com/plusonehq/plusone-backend/pkg/enums"
	pkgerrors "github.com/plusonehq/plusone-backend/pkg/errors"
	"github.com/plusonehq/plusone-backend/pkg/outbox"
	"github.com/plusonehq/plusone-backend/pkg/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRepository struct {
	resolveFn func(ctx context.Context, userID, productID, postID int64) (*models.AggregateOrder, error)
	addFn     func(ctx context.Context, id int64, delta int64, variant *string) (*models.AggregateOrder, error)
	linkFn    func(ctx context.Context, id int64, externalOrderID int64) (bool, error)
	findFn    func(ctx context.Context, id int64) (*models.AggregateOrder, error)
	listFn    func(ctx context.Context, postID int64, params pagination.Params) ([]models.AggregateOrder, string, error)
	deleteFn  func(ctx context.Context, id int64) (bool, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) ResolveOrCreate(ctx context.Context, userID, productID, postID int64) (*models.AggregateOrder, error) {
	return f.resolveFn(ctx, userID, productID, postID)
}

func (f *fakeRepository) AddQuantity(ctx context.Context, id int64, delta int64, variant *string) (*models.AggregateOrder, error) {
	return f.addFn(ctx, id, delta, variant)
}

func (f *fakeRepository) LinkExternalOrder(ctx context.Context, id int64, externalOrderID int64) (bool, error) {
	return f.linkFn(ctx, id, externalOrderID)
}

func (f *fakeRepository) FindByID(ctx context.Context, id int64) (*models.AggregateOrder, error) {
	return f.findFn(ctx, id)
}

func (f *fakeRepository) FindByUserAndPost(ctx context.Context, userID, postID int64) (*models.AggregateOrder, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) ListByPost(ctx context.Context, postID int64, params pagination.Params) ([]models.AggregateOrder, string, error) {
	if f.listFn != nil {
		return f.listFn(ctx, postID, params)
	}
	return nil, "", nil
}

func (f *fakeRepository) Delete(ctx context.Context, id int64) (bool, error) {
	return f.deleteFn(ctx, id)
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

func TestService_Accumulate(t *testing.T) {
	variant := "red"
	repo := &fakeRepository{
		resolveFn: func(ctx context.Context, userID, productID, postID int64) (*models.AggregateOrder, error) {
			return &models.AggregateOrder{ID: 42, UserID: userID, ProductID: productID, PostID: postID}, nil
		},
		addFn: func(ctx context.Context, id int64, delta int64, v *string) (*models.AggregateOrder, error) {
			require.Equal(t, int64(42), id)
			require.Equal(t, int64(3), delta)
			require.NotNil(t, v)
			return &models.AggregateOrder{ID: id, UserID: 1, ProductID: 2, PostID: 3, Quantity: 5, Variant: v}, nil
		},
	}
	ob := &fakeOutbox{}
	svc, err := NewService(repo, fakeTxRunner{}, ob, nil)
	require.NoError(t, err)

	got, err := svc.Accumulate(context.Background(), AccumulateInput{
		UserID:    1,
		ProductID: 2,
		PostID:    3,
		Delta:     3,
		Variant:   &variant,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Quantity)

	require.Len(t, ob.events, 1)
	assert.Equal(t, enums.EventIntentAccumulated, ob.events[0].EventType)
	assert.Equal(t, int64(42), ob.events[0].AggregateID)
}

func TestService_AccumulateValidation(t *testing.T) {
	svc, err := NewService(&fakeRepository{}, fakeTxRunner{}, &fakeOutbox{}, nil)
	require.NoError(t, err)

	cases := []struct {
		name  string
		input AccumulateInput
	}{
		{"missing user", AccumulateInput{ProductID: 2, PostID: 3, Delta: 1}},
		{"missing product", AccumulateInput{UserID: 1, PostID: 3, Delta: 1}},
		{"missing post", AccumulateInput{UserID: 1, ProductID: 2, Delta: 1}},
		{"zero delta", AccumulateInput{UserID: 1, ProductID: 2, PostID: 3}},
		{"negative delta", AccumulateInput{UserID: 1, ProductID: 2, PostID: 3, Delta: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Accumulate(context.Background(), tc.input)
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
		})
	}
}

func TestService_ListByPostBadCursorIsValidation(t *testing.T) {
	repo := &fakeRepository{
		listFn: func(ctx context.Context, postID int64, params pagination.Params) ([]models.AggregateOrder, string, error) {
			_, err := pagination.DecodeCursor(params.Cursor)
			return nil, "", err
		},
	}
	svc, err := NewService(repo, fakeTxRunner{}, &fakeOutbox{}, nil)
	require.NoError(t, err)

	_, _, err = svc.ListByPost(context.Background(), ListByPostInput{PostID: 5, Cursor: "not-a-cursor"})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestService_LinkExternalOrder(t *testing.T) {
	ext := int64(0)
	repo := &fakeRepository{
		findFn: func(ctx context.Context, id int64) (*models.AggregateOrder, error) {
			row := &models.AggregateOrder{ID: id, UserID: 1, ProductID: 2, PostID: 3}
			if ext != 0 {
				v := ext
				row.ExternalOrderID = &v
			}
			return row, nil
		},
		linkFn: func(ctx context.Context, id int64, externalOrderID int64) (bool, error) {
			if ext == 0 || ext == externalOrderID {
				ext = externalOrderID
				return true, nil
			}
			return false, nil
		},
	}
	ob := &fakeOutbox{}
	svc, err := NewService(repo, fakeTxRunner{}, ob, nil)
	require.NoError(t, err)
	ctx := context.Background()

	got, err := svc.LinkExternalOrder(ctx, LinkInput{OrderID: 7, ExternalOrderID: 500, ActorID: 9})
	require.NoError(t, err)
	assert.True(t, got.Linked)
	require.NotNil(t, got.Order.ExternalOrderID)
	assert.Equal(t, int64(500), *got.Order.ExternalOrderID)
	require.Len(t, ob.events, 1)
	assert.Equal(t, enums.EventExternalOrderLinked, ob.events[0].EventType)

	// Repeating the winner succeeds without a second event.
	got, err = svc.LinkExternalOrder(ctx, LinkInput{OrderID: 7, ExternalOrderID: 500, ActorID: 9})
	require.NoError(t, err)
	assert.True(t, got.Linked)
	assert.Len(t, ob.events, 1)

	// A different id loses softly and surfaces the winner.
	got, err = svc.LinkExternalOrder(ctx, LinkInput{OrderID: 7, ExternalOrderID: 600, ActorID: 9})
	require.NoError(t, err)
	assert.False(t, got.Linked)
	require.NotNil(t, got.Order.ExternalOrderID)
	assert.Equal(t, int64(500), *got.Order.ExternalOrderID)
	assert.Len(t, ob.events, 1)
}

func TestService_LinkExternalOrderRaceLoserSeesWinner(t *testing.T) {
	// The winner lands between the loser's initial read and its
	// compare-and-set; the loser's result must still carry the winning id.
	finds := 0
	repo := &fakeRepository{
		findFn: func(ctx context.Context, id int64) (*models.AggregateOrder, error) {
			finds++
			row := &models.AggregateOrder{ID: id, UserID: 1, ProductID: 2, PostID: 3}
			if finds > 1 {
				winner := int64(9001)
				row.ExternalOrderID = &winner
			}
			return row, nil
		},
		linkFn: func(ctx context.Context, id int64, externalOrderID int64) (bool, error) {
			return false, nil
		},
	}
	ob := &fakeOutbox{}
	svc, err := NewService(repo, fakeTxRunner{}, ob, nil)
	require.NoError(t, err)

	got, err := svc.LinkExternalOrder(context.Background(), LinkInput{OrderID: 7, ExternalOrderID: 600, ActorID: 9})
	require.NoError(t, err)
	assert.False(t, got.Linked)
	require.NotNil(t, got.Order.ExternalOrderID)
	assert.Equal(t, int64(9001), *got.Order.ExternalOrderID)
	assert.Equal(t, 2, finds)
	assert.Empty(t, ob.events)
}

func TestService_LinkExternalOrderNotFound(t *testing.T) {
	repo := &fakeRepository{
		findFn: func(ctx context.Context, id int64) (*models.AggregateOrder, error) {
			return nil, gorm.ErrRecordNotFound
		},
	}
	svc, err := NewService(repo, fakeTxRunner{}, &fakeOutbox{}, nil)
	require.NoError(t, err)

	_, err = svc.LinkExternalOrder(context.Background(), LinkInput{OrderID: 1, ExternalOrderID: 2})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestService_Delete(t *testing.T) {
	deleted := false
	repo := &fakeRepository{
		deleteFn: func(ctx context.Context, id int64) (bool, error) {
			if deleted {
				return false, nil
			}
			deleted = true
			return true, nil
		},
	}
	ob := &fakeOutbox{}
	svc, err := NewService(repo, fakeTxRunner{}, ob, nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, 11, 99))
	require.Len(t, ob.events, 1)
	assert.Equal(t, enums.EventAggregateDeleted, ob.events[0].EventType)

	err = svc.Delete(ctx, 11, 99)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
