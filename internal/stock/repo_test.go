package stock

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/marisolvega/campuseats-backend/pkg/db/models"
	"github.com/marisolvega/campuseats-backend/pkg/enums"
)

func setupStockTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`
CREATE TABLE IF NOT EXISTS daily_stock_entries (
  id TEXT PRIMARY KEY,
  canteen_id TEXT NOT NULL,
  menu_item_id TEXT NOT NULL,
  stock_date TEXT NOT NULL,
  initial_qty INTEGER NOT NULL,
  remaining_qty INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'available',
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (canteen_id, menu_item_id, stock_date),
  CHECK (remaining_qty >= 0 AND remaining_qty <= initial_qty)
);`).Error)
	return db
}

func insertEntry(t *testing.T, db *gorm.DB, canteenID, itemID uuid.UUID, date string, qty int, status enums.StockStatus) *models.DailyStockEntry {
	t.Helper()

	entry := &models.DailyStockEntry{
		ID:           uuid.New(),
		CanteenID:    canteenID,
		MenuItemID:   itemID,
		StockDate:    date,
		InitialQty:   qty,
		RemainingQty: qty,
		Status:       status,
	}
	require.NoError(t, db.Create(entry).Error)
	return entry
}

func TestRepositoryDecrement_conditional(t *testing.T) {
	db := setupStockTestDB(t)
	repo := NewRepository(db)

	canteenID := uuid.New()
	itemID := uuid.New()
	insertEntry(t, db, canteenID, itemID, "2026-04-01", 3, enums.StockStatusAvailable)

	ok, err := repo.Decrement(context.Background(), canteenID, itemID, "2026-04-01", 2)
	require.NoError(t, err)
	assert.True(t, ok)

	// 1 remaining; asking for 2 must not go negative.
	ok, err = repo.Decrement(context.Background(), canteenID, itemID, "2026-04-01", 2)
	require.NoError(t, err)
	assert.False(t, ok)

	entry, err := repo.FindForDay(context.Background(), canteenID, itemID, "2026-04-01")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.RemainingQty)
}

func TestRepositoryDecrement_lastUnitSingleWinner(t *testing.T) {
	db := setupStockTestDB(t)
	repo := NewRepository(db)

	canteenID := uuid.New()
	itemID := uuid.New()
	insertEntry(t, db, canteenID, itemID, "2026-04-01", 1, enums.StockStatusAvailable)

	first, err := repo.Decrement(context.Background(), canteenID, itemID, "2026-04-01", 1)
	require.NoError(t, err)
	second, err := repo.Decrement(context.Background(), canteenID, itemID, "2026-04-01", 1)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)

	entry, err := repo.FindForDay(context.Background(), canteenID, itemID, "2026-04-01")
	require.NoError(t, err)
	assert.Equal(t, 0, entry.RemainingQty)
}

func TestRepositoryDecrement_skipsUnavailable(t *testing.T) {
	db := setupStockTestDB(t)
	repo := NewRepository(db)

	canteenID := uuid.New()
	itemID := uuid.New()
	insertEntry(t, db, canteenID, itemID, "2026-04-01", 5, enums.StockStatusUnavailable)

	ok, err := repo.Decrement(context.Background(), canteenID, itemID, "2026-04-01", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepositoryRestore_returnsUnits(t *testing.T) {
	db := setupStockTestDB(t)
	repo := NewRepository(db)

	canteenID := uuid.New()
	itemID := uuid.New()
	insertEntry(t, db, canteenID, itemID, "2026-04-01", 5, enums.StockStatusAvailable)
	_, err := repo.Decrement(context.Background(), canteenID, itemID, "2026-04-01", 2)
	require.NoError(t, err)

	require.NoError(t, repo.Restore(context.Background(), canteenID, itemID, "2026-04-01", 2))

	entry, err := repo.FindForDay(context.Background(), canteenID, itemID, "2026-04-01")
	require.NoError(t, err)
	assert.Equal(t, 5, entry.RemainingQty)
}

func TestRepositoryRestore_capsAtInitial(t *testing.T) {
	db := setupStockTestDB(t)
	repo := NewRepository(db)

	canteenID := uuid.New()
	itemID := uuid.New()
	insertEntry(t, db, canteenID, itemID, "2026-04-01", 5, enums.StockStatusAvailable)

	// Full row: a restore after the vendor re-provisioned the day must not
	// push remaining above initial.
	require.NoError(t, repo.Restore(context.Background(), canteenID, itemID, "2026-04-01", 3))

	entry, err := repo.FindForDay(context.Background(), canteenID, itemID, "2026-04-01")
	require.NoError(t, err)
	assert.Equal(t, 5, entry.RemainingQty)
}

func TestRepositoryRestore_skipsUnavailable(t *testing.T) {
	db := setupStockTestDB(t)
	repo := NewRepository(db)

	canteenID := uuid.New()
	itemID := uuid.New()
	entry := insertEntry(t, db, canteenID, itemID, "2026-04-01", 5, enums.StockStatusAvailable)

	changed, err := repo.MarkUnavailable(context.Background(), entry.ID)
	require.NoError(t, err)
	require.True(t, changed)

	require.NoError(t, repo.Restore(context.Background(), canteenID, itemID, "2026-04-01", 2))

	reloaded, err := repo.FindByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.StockStatusUnavailable, reloaded.Status)
	assert.Equal(t, 0, reloaded.RemainingQty)
}

func TestRepositoryMarkUnavailable(t *testing.T) {
	db := setupStockTestDB(t)
	repo := NewRepository(db)

	entry := insertEntry(t, db, uuid.New(), uuid.New(), "2026-04-01", 5, enums.StockStatusAvailable)

	changed, err := repo.MarkUnavailable(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	again, err := repo.MarkUnavailable(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.False(t, again)

	reloaded, err := repo.FindByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.StockStatusUnavailable, reloaded.Status)
	assert.Equal(t, 0, reloaded.RemainingQty)
}

func TestRepositoryUpsert_replacesSameDayRow(t *testing.T) {
	db := setupStockTestDB(t)
	repo := NewRepository(db)

	canteenID := uuid.New()
	itemID := uuid.New()
	insertEntry(t, db, canteenID, itemID, "2026-04-01", 5, enums.StockStatusAvailable)

	require.NoError(t, repo.Upsert(context.Background(), &models.DailyStockEntry{
		ID:           uuid.New(),
		CanteenID:    canteenID,
		MenuItemID:   itemID,
		StockDate:    "2026-04-01",
		InitialQty:   8,
		RemainingQty: 8,
		Status:       enums.StockStatusAvailable,
	}))

	entries, err := repo.ListByCanteenAndDate(context.Background(), canteenID, "2026-04-01")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 8, entries[0].RemainingQty)
}

func TestRepositoryUpsert_newDateGetsOwnRow(t *testing.T) {
	db := setupStockTestDB(t)
	repo := NewRepository(db)

	canteenID := uuid.New()
	itemID := uuid.New()
	yesterday := insertEntry(t, db, canteenID, itemID, "2026-03-31", 5, enums.StockStatusAvailable)
	_, err := repo.Decrement(context.Background(), canteenID, itemID, "2026-03-31", 2)
	require.NoError(t, err)

	require.NoError(t, repo.Upsert(context.Background(), &models.DailyStockEntry{
		ID:           uuid.New(),
		CanteenID:    canteenID,
		MenuItemID:   itemID,
		StockDate:    "2026-04-01",
		InitialQty:   5,
		RemainingQty: 5,
		Status:       enums.StockStatusAvailable,
	}))

	// Day rollover never mutates the old composite key.
	old, err := repo.FindByID(context.Background(), yesterday.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, old.RemainingQty)

	fresh, err := repo.FindForDay(context.Background(), canteenID, itemID, "2026-04-01")
	require.NoError(t, err)
	assert.Equal(t, 5, fresh.RemainingQty)
}

func TestRepositoryDeleteForDayExcept(t *testing.T) {
	db := setupStockTestDB(t)
	repo := NewRepository(db)

	canteenID := uuid.New()
	keep := insertEntry(t, db, canteenID, uuid.New(), "2026-04-01", 10, enums.StockStatusAvailable)
	insertEntry(t, db, canteenID, uuid.New(), "2026-04-01", 4, enums.StockStatusAvailable)
	otherDay := insertEntry(t, db, canteenID, uuid.New(), "2026-04-02", 4, enums.StockStatusAvailable)

	deleted, err := repo.DeleteForDayExcept(context.Background(), canteenID, "2026-04-01", []uuid.UUID{keep.MenuItemID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := repo.ListByCanteenAndDate(context.Background(), canteenID, "2026-04-01")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, keep.ID, remaining[0].ID)

	// Other dates never participate in a sheet replacement.
	_, err = repo.FindByID(context.Background(), otherDay.ID)
	require.NoError(t, err)
}

func TestRepositoryDeleteBefore(t *testing.T) {
	db := setupStockTestDB(t)
	repo := NewRepository(db)

	canteenID := uuid.New()
	insertEntry(t, db, canteenID, uuid.New(), "2026-03-01", 5, enums.StockStatusAvailable)
	insertEntry(t, db, canteenID, uuid.New(), "2026-03-15", 5, enums.StockStatusAvailable)
	keep := insertEntry(t, db, canteenID, uuid.New(), "2026-04-01", 5, enums.StockStatusAvailable)

	deleted, err := repo.DeleteBefore(context.Background(), "2026-04-01")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	remaining, err := repo.ListByCanteenAndDate(context.Background(), canteenID, "2026-04-01")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, keep.ID, remaining[0].ID)
}
