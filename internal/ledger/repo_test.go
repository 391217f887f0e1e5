package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/plusonehq/plusone-backend/pkg/db/models"
	"github.com/plusonehq/plusone-backend/pkg/enums"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	transitions := `
CREATE TABLE IF NOT EXISTS status_transitions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_id INTEGER NOT NULL,
  status_type TEXT NOT NULL,
  old_value INTEGER NOT NULL,
  new_value INTEGER NOT NULL,
  changed_by INTEGER NOT NULL,
  changed_at DATETIME
);`
	aggregates := `
CREATE TABLE IF NOT EXISTS aggregate_orders (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL,
  product_id INTEGER NOT NULL,
  post_id INTEGER NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 0,
  variant TEXT,
  external_order_id INTEGER,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(transitions).Error)
	require.NoError(t, db.Exec(aggregates).Error)
	require.NoError(t, db.Exec(`DELETE FROM status_transitions`).Error)
	require.NoError(t, db.Exec(`DELETE FROM aggregate_orders`).Error)
	return db
}

func appendTransition(t *testing.T, db *gorm.DB, orderID int64, statusType enums.StatusType, oldV, newV bool, at time.Time) *models.StatusTransition {
	t.Helper()

	row := &models.StatusTransition{
		OrderID:    orderID,
		StatusType: statusType,
		OldValue:   oldV,
		NewValue:   newV,
		ChangedBy:  1,
		ChangedAt:  at,
	}
	require.NoError(t, db.Create(row).Error)
	return row
}

func TestRepository_History(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	base := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	second := appendTransition(t, db, 5, enums.StatusTypePaid, false, true, base.Add(time.Minute))
	first := appendTransition(t, db, 5, enums.StatusTypeConfirmed, false, true, base)
	appendTransition(t, db, 6, enums.StatusTypePaid, false, true, base)

	rows, err := repo.History(ctx, 5)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first.ID, rows[0].ID)
	assert.Equal(t, second.ID, rows[1].ID)

	empty, err := repo.History(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRepository_Latest(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	base := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	appendTransition(t, db, 5, enums.StatusTypePaid, false, true, base)
	appendTransition(t, db, 5, enums.StatusTypePaid, true, false, base.Add(time.Minute))
	appendTransition(t, db, 5, enums.StatusTypeShipped, false, true, base.Add(2*time.Minute))

	latest, err := repo.Latest(ctx, 5, enums.StatusTypePaid)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.False(t, latest.NewValue)

	none, err := repo.Latest(ctx, 5, enums.StatusTypeCanceled)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestRepository_LatestBreaksTimestampTiesByID(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	at := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	appendTransition(t, db, 7, enums.StatusTypePaid, false, true, at)
	winner := appendTransition(t, db, 7, enums.StatusTypePaid, true, false, at)

	latest, err := repo.Latest(ctx, 7, enums.StatusTypePaid)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, winner.ID, latest.ID)
	assert.False(t, latest.NewValue)
}

func TestRepository_DeleteOrphanedBefore(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	live := &models.AggregateOrder{UserID: 1, ProductID: 2, PostID: 3}
	require.NoError(t, db.Create(live).Error)

	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	appendTransition(t, db, live.ID, enums.StatusTypePaid, false, true, base)          // live order, old
	orphanOld := appendTransition(t, db, 4040, enums.StatusTypePaid, false, true, base) // orphan, old
	appendTransition(t, db, 4040, enums.StatusTypePaid, true, false, base.AddDate(0, 3, 0))

	removed, err := repo.DeleteOrphanedBefore(ctx, base.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	var remaining []models.StatusTransition
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 2)
	for _, row := range remaining {
		assert.NotEqual(t, orphanOld.ID, row.ID)
	}
}
