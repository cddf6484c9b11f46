package database

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/stock-run-tracker/internal/models"
)

func TestStockBasesRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)
	ctx := context.Background()

	t.Run("GetStockBase round-trips nullable fields", func(t *testing.T) {
		testDB.TruncateAll(t)
		user := testDB.CreateTestUser(t, "user@example.com")
		stock := testDB.CreateTestStock(t, user, "amd-1")

		volBo := int64(2286570)
		vol20 := int64(730000)
		b := &models.StockBase{
			UserID:           user.ID,
			StockReferenceID: &stock.ID,
			Ticker:           "AMD-1",
			BaseCount:        2,
			BoDate:           models.NewDate(2015, time.November, 30),
			VolBo:            &volBo,
			Vol20:            &vol20,
			BoVolRatio:       decimal.NewNullDecimal(decimal.RequireFromString("3.13")),
			Sales0Qtr:        decimal.NewNullDecimal(decimal.RequireFromString("1234567.89")),
		}
		require.NoError(t, insertStockBase(ctx, testDB.conn, b))

		retrieved, err := testDB.GetStockBase(ctx, user.ID, b.ID)
		require.NoError(t, err)
		require.NotNil(t, retrieved.StockReferenceID)
		assert.Equal(t, stock.ID, *retrieved.StockReferenceID)
		assert.Nil(t, retrieved.BaseFailure)
		assert.Nil(t, retrieved.BaseLength)
		require.NotNil(t, retrieved.VolBo)
		assert.Equal(t, volBo, *retrieved.VolBo)
		assert.Equal(t, "3.13", retrieved.BoVolRatio.Decimal.StringFixed(2))
		assert.False(t, retrieved.PricePercentRange.Valid)
		assert.Equal(t, "1234567.89", retrieved.Sales0Qtr.Decimal.StringFixed(2))
		assert.True(t, retrieved.BoDate.Equal(models.NewDate(2015, time.November, 30)))
	})

	t.Run("ListStockBases is owner scoped and ticker descending", func(t *testing.T) {
		testDB.TruncateAll(t)
		user := testDB.CreateTestUser(t, "user@example.com")
		other := testDB.CreateTestUser(t, "other@example.com")

		testDB.CreateTestStockBase(t, user, nil, "AMD-1", 1)
		testDB.CreateTestStockBase(t, user, nil, "TSLA-1", 1)
		testDB.CreateTestStockBase(t, other, nil, "ZZZ-1", 1)

		bases, err := testDB.ListStockBases(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, bases, 2)
		assert.Equal(t, "TSLA-1", bases[0].Ticker)
		assert.Equal(t, "AMD-1", bases[1].Ticker)
	})

	t.Run("UpdateStockBase only touches the owner's row", func(t *testing.T) {
		testDB.TruncateAll(t)
		user := testDB.CreateTestUser(t, "user@example.com")
		other := testDB.CreateTestUser(t, "other@example.com")
		stock := testDB.CreateTestStock(t, user, "nvda-1")
		b := testDB.CreateTestStockBase(t, user, stock, "NVDA-1", 1)

		b.BaseCount = 5
		b.PricePercentRange = decimal.NullDecimal{}
		require.NoError(t, testDB.UpdateStockBase(ctx, b))

		retrieved, err := testDB.GetStockBase(ctx, user.ID, b.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, retrieved.BaseCount)
		assert.False(t, retrieved.PricePercentRange.Valid)
		require.NotNil(t, retrieved.StockReferenceID)
		assert.Equal(t, stock.ID, *retrieved.StockReferenceID)

		b.UserID = other.ID
		err = testDB.UpdateStockBase(ctx, b)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ModifyStockBase locks the owner's row", func(t *testing.T) {
		testDB.TruncateAll(t)
		user := testDB.CreateTestUser(t, "user@example.com")
		other := testDB.CreateTestUser(t, "other@example.com")
		stock := testDB.CreateTestStock(t, user, "nvda-1")
		b := testDB.CreateTestStockBase(t, user, stock, "NVDA-1", 1)

		updated, err := testDB.ModifyStockBase(ctx, user.ID, b.ID, func(base *models.StockBase) error {
			base.BaseCount = 6
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 6, updated.BaseCount)
		require.NotNil(t, updated.StockReferenceID)
		assert.Equal(t, stock.ID, *updated.StockReferenceID)

		_, err = testDB.ModifyStockBase(ctx, other.ID, b.ID, func(base *models.StockBase) error { return nil })
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DeleteStockBase removes stock links", func(t *testing.T) {
		testDB.TruncateAll(t)
		user := testDB.CreateTestUser(t, "user@example.com")
		other := testDB.CreateTestUser(t, "other@example.com")

		stock := testDB.CreateTestStock(t, user, "amd-1")
		require.NoError(t, testDB.UpdateStock(ctx, stock, []*models.StockBase{baseInput("AMD-1", 1)}, true))
		require.Len(t, stock.Bases, 1)
		baseID := stock.Bases[0].ID

		err := testDB.DeleteStockBase(ctx, other.ID, baseID)
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, testDB.DeleteStockBase(ctx, user.ID, baseID))

		retrieved, err := testDB.GetStock(ctx, user.ID, stock.ID)
		require.NoError(t, err)
		assert.Empty(t, retrieved.Bases)
	})

	t.Run("GetOrCreateStockBase is keyed on ticker, count and breakout date", func(t *testing.T) {
		testDB.TruncateAll(t)
		user := testDB.CreateTestUser(t, "loader@example.com")

		exists, err := testDB.StockBaseExists(ctx)
		require.NoError(t, err)
		assert.False(t, exists)

		b := baseInput("FSLR-1", 1)
		b.UserID = user.ID
		created, err := testDB.GetOrCreateStockBase(ctx, b)
		require.NoError(t, err)
		assert.True(t, created)

		again := baseInput("FSLR-1", 1)
		again.UserID = user.ID
		again.BoVolRatio = decimal.NullDecimal{}
		created, err = testDB.GetOrCreateStockBase(ctx, again)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, b.ID, again.ID)
		assert.True(t, again.BoVolRatio.Valid)

		exists, err = testDB.StockBaseExists(ctx)
		require.NoError(t, err)
		assert.True(t, exists)
	})
}
