package store

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"inventory-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to TEST_DATABASE_URL; these tests need a real Postgres.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires database (set TEST_DATABASE_URL)")
	}

	store, err := NewStore(url)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func uniqueOwner() int64 {
	return time.Now().UnixNano()
}

func TestAdjustItemQuantityConditional(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner := uniqueOwner()

	item := &models.Item{OwnerID: owner, Barcode: "A-1", Name: "Widget", Quantity: 3, Price: decimal.RequireFromString("10.00")}
	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreateItem(ctx, item)
	}))
	assert.Equal(t, models.ItemStatusLowStock, item.Status)

	err := store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.AdjustItemQuantity(ctx, item.ID, -4)
		return err
	})
	assert.ErrorIs(t, err, models.ErrInvariantViolation)

	var got *models.Item
	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		got, err = tx.AdjustItemQuantity(ctx, item.ID, 5)
		return err
	}))
	assert.Equal(t, 8, got.Quantity)
	assert.Equal(t, models.ItemStatusAvailable, got.Status)
}

func TestCreateItemDuplicateBarcode(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner := uniqueOwner()

	err := store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.CreateItem(ctx, &models.Item{OwnerID: owner, Barcode: "DUP", Name: "first", Price: decimal.Zero}); err != nil {
			return err
		}
		dupErr := tx.CreateItem(ctx, &models.Item{OwnerID: owner, Barcode: "DUP", Name: "second", Price: decimal.Zero})
		assert.ErrorIs(t, dupErr, models.ErrDuplicateKey)

		// the transaction is still usable after the collision
		found, err := tx.FindItemByBarcode(ctx, owner, "DUP")
		require.NoError(t, err)
		assert.Equal(t, "first", found.Name)
		return nil
	})
	require.NoError(t, err)
}

func TestConcurrentDecrementsNeverOversell(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner := uniqueOwner()

	item := &models.Item{OwnerID: owner, Barcode: "RACE", Name: "Race", Quantity: 10, Price: decimal.NewFromInt(1)}
	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreateItem(ctx, item)
	}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
				_, err := tx.AdjustItemQuantity(ctx, item.ID, -1)
				return err
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		got, err := tx.GetItem(ctx, owner, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Quantity)
		return nil
	}))
}

func TestSaleIdempotencyKeyUnique(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner := uniqueOwner()
	key := fmt.Sprintf("idempotent-key-%d", owner)

	newSale := func() *models.Sale {
		return &models.Sale{
			OwnerID: owner, ClientID: 1, ClientName: "c",
			Subtotal: decimal.Zero, Tax: decimal.Zero, Discount: decimal.Zero, Total: decimal.Zero,
			PaymentMethod: models.PaymentMethodCash, Status: models.SaleStatusCompleted,
			Compensation: models.CompensationNone, IdempotencyKey: &key,
		}
	}

	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreateSale(ctx, newSale())
	}))

	err := store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreateSale(ctx, newSale())
	})
	assert.ErrorIs(t, err, models.ErrDuplicateKey)
}

func TestConcurrentArrivalAppliesOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner := uniqueOwner()

	item := &models.Item{OwnerID: owner, Barcode: "PO-RACE", Name: "Race", Quantity: 2, Price: decimal.NewFromInt(1)}
	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreateItem(ctx, item)
	}))

	order := &models.PurchaseOrder{
		OwnerID: owner, OrderNumber: fmt.Sprintf("PO-RACE-%d", owner), DealerName: "Acme",
		Subtotal: decimal.Zero, Tax: decimal.Zero, ShippingCost: decimal.Zero, TotalCost: decimal.Zero,
		Status: models.PurchaseOrderStatusPending,
		Lines: []models.PurchaseOrderLine{{
			ItemName: "Race", ItemBarcode: "PO-RACE", Quantity: 5,
			UnitCost: decimal.Zero, TotalCost: decimal.Zero, SellingPrice: decimal.NewFromInt(1),
			ExistingItemID: &item.ID,
		}},
	}
	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreatePurchaseOrder(ctx, order)
	}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	claims := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
				won, err := tx.ClaimPurchaseOrderArrival(ctx, owner, order.ID, time.Now())
				if err != nil || !won {
					return err
				}
				if _, err := tx.AdjustItemQuantity(ctx, item.ID, order.Lines[0].Quantity); err != nil {
					return err
				}
				mu.Lock()
				claims++
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, claims)
	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		got, err := tx.GetItem(ctx, owner, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 7, got.Quantity)

		orders, err := tx.ListPurchaseOrders(ctx, owner)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, models.PurchaseOrderStatusArrived, orders[0].Status)
		assert.True(t, orders[0].ProcessedToInventory)
		assert.Len(t, orders[0].Lines, 1)
		return nil
	}))
}
