package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"inventory-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedItem(t *testing.T, repo *Memory, ownerID int64, barcode string, qty int) *models.Item {
	t.Helper()
	item := &models.Item{OwnerID: ownerID, Barcode: barcode, Name: "Item " + barcode, Quantity: qty, Price: decimal.NewFromInt(10)}
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.CreateItem(ctx, item)
	})
	require.NoError(t, err)
	return item
}

func TestMemoryRollbackOnError(t *testing.T) {
	repo := NewMemory()
	item := seedItem(t, repo, 1, "A1", 3)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.AdjustItemQuantity(ctx, item.ID, -2)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_ = repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		got, err := tx.GetItem(ctx, 1, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.Quantity)
		return nil
	})
}

func TestMemoryAdjustItemQuantity(t *testing.T) {
	repo := NewMemory()
	item := seedItem(t, repo, 1, "A1", 6)
	ctx := context.Background()

	err := repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		got, err := tx.AdjustItemQuantity(ctx, item.ID, -1)
		require.NoError(t, err)
		assert.Equal(t, 5, got.Quantity)
		assert.Equal(t, models.ItemStatusLowStock, got.Status)

		got, err = tx.AdjustItemQuantity(ctx, item.ID, -5)
		require.NoError(t, err)
		assert.Equal(t, models.ItemStatusOutOfStock, got.Status)

		_, err = tx.AdjustItemQuantity(ctx, item.ID, -1)
		assert.ErrorIs(t, err, models.ErrInvariantViolation)

		_, err = tx.AdjustItemQuantity(ctx, 999, 1)
		assert.ErrorIs(t, err, models.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryDuplicateBarcodeIsScopedToOwner(t *testing.T) {
	repo := NewMemory()
	seedItem(t, repo, 1, "X123", 1)
	ctx := context.Background()

	err := repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreateItem(ctx, &models.Item{OwnerID: 1, Barcode: "X123", Name: "dup"})
	})
	assert.ErrorIs(t, err, models.ErrDuplicateKey)

	seedItem(t, repo, 2, "X123", 1)
}

func TestMemoryOwnerScoping(t *testing.T) {
	repo := NewMemory()
	item := seedItem(t, repo, 1, "A1", 3)

	err := repo.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.GetItem(ctx, 2, item.ID)
		return err
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryPurchaseOrderArrivalClaimsOnce(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	order := &models.PurchaseOrder{OwnerID: 1, OrderNumber: "PO-1", Status: models.PurchaseOrderStatusPending}

	err := repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.CreatePurchaseOrder(ctx, order))

		won, err := tx.ClaimPurchaseOrderArrival(ctx, 1, order.ID, time.Now())
		require.NoError(t, err)
		assert.True(t, won)

		won, err = tx.ClaimPurchaseOrderArrival(ctx, 1, order.ID, time.Now())
		require.NoError(t, err)
		assert.False(t, won)

		got, err := tx.GetPurchaseOrder(ctx, 1, order.ID)
		require.NoError(t, err)
		assert.True(t, got.ProcessedToInventory)
		assert.Equal(t, models.PurchaseOrderStatusArrived, got.Status)
		return nil
	})
	require.NoError(t, err)
}

func TestMemorySaleCompensationClaim(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	sale := &models.Sale{OwnerID: 1, Status: models.SaleStatusCompleted, Compensation: models.CompensationNone}

	err := repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.CreateSale(ctx, sale))

		won, err := tx.ClaimSaleCompensation(ctx, sale.ID)
		require.NoError(t, err)
		assert.False(t, won, "completed sale has nothing to compensate")

		ok, err := tx.TransitionSaleCancelled(ctx, 1, sale.ID, time.Now())
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tx.TransitionSaleCancelled(ctx, 1, sale.ID, time.Now())
		require.NoError(t, err)
		assert.False(t, ok)

		pending, err := tx.ListPendingCompensations(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, pending, 1)

		won, err = tx.ClaimSaleCompensation(ctx, sale.ID)
		require.NoError(t, err)
		assert.True(t, won)

		won, err = tx.ClaimSaleCompensation(ctx, sale.ID)
		require.NoError(t, err)
		assert.False(t, won)
		return nil
	})
	require.NoError(t, err)
}
