package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"inventory-service/config"
	"inventory-service/internal/models"
	"inventory-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSaleTotalsAndStock(t *testing.T) {
	env := newTestEnv(t, config.PolicyConfig{})
	ctx := context.Background()
	item := env.seedItem(t, "A", "Widget", 3, "10.00")
	client := env.seedClient(t, "Ann")

	sale, err := env.engine.CreateSale(ctx, owner, &CreateSaleRequest{
		ClientID: client.ID,
		Lines:    []SaleLineRequest{{ItemID: item.ID, Quantity: 2}},
		Tax:      money("1.00"),
		Discount: money("0.50"),
	})
	require.NoError(t, err)

	assert.True(t, sale.Subtotal.Equal(money("20.00")))
	assert.True(t, sale.Total.Equal(money("20.50")), "total %s", sale.Total)
	assert.True(t, sale.Total.Equal(sale.Subtotal.Add(sale.Tax).Sub(sale.Discount)))
	assert.Equal(t, models.SaleStatusCompleted, sale.Status)
	assert.Equal(t, models.PaymentMethodCash, sale.PaymentMethod)
	require.Len(t, sale.Lines, 1)
	assert.Equal(t, "Widget", sale.Lines[0].ItemName)
	assert.Equal(t, "A", sale.Lines[0].Barcode)
	assert.True(t, sale.Lines[0].UnitPrice.Equal(money("10.00")))

	assert.Equal(t, 1, env.quantity(t, item.ID))

	c := env.client(t, client.ID)
	assert.Equal(t, 1, c.TotalPurchases)
	assert.True(t, c.TotalSpent.Equal(money("20.50")))
	require.NotNil(t, c.LastPurchase)

	assert.Equal(t, 1, env.events.count(models.EventTypeSaleCreated))
	// one from seeding the item, one from the sale
	assert.Equal(t, 2, env.events.count(models.EventTypeStockAdjusted))
}

func TestCreateSaleInsufficientStock(t *testing.T) {
	env := newTestEnv(t, config.PolicyConfig{})
	item := env.seedItem(t, "A", "Widget", 3, "10.00")
	client := env.seedClient(t, "Ann")

	_, err := env.engine.CreateSale(context.Background(), owner, &CreateSaleRequest{
		ClientID: client.ID,
		Lines:    []SaleLineRequest{{ItemID: item.ID, Quantity: 4}},
	})
	require.ErrorIs(t, err, models.ErrInsufficientStock)

	var e *models.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "Widget", e.ItemName)
	assert.Equal(t, 3, *e.Available)
	assert.Equal(t, 4, *e.Requested)
	assert.Contains(t, e.Error(), "Available: 3, Requested: 4")

	assert.Equal(t, 3, env.quantity(t, item.ID))
	assert.Equal(t, 0, env.client(t, client.ID).TotalPurchases)
	assert.Equal(t, 0, env.events.count(models.EventTypeSaleCreated))
}

func TestCreateSaleRejectsOverflowingQuantities(t *testing.T) {
	env := newTestEnv(t, config.PolicyConfig{})
	ctx := context.Background()
	item := env.seedItem(t, "A", "Widget", 3, "10.00")
	client := env.seedClient(t, "Ann")
	lines := []SaleLineRequest{
		{ItemID: item.ID, Quantity: math.MaxInt64},
		{ItemID: item.ID, Quantity: math.MaxInt64},
	}

	_, err := env.engine.CreateSale(ctx, owner, &CreateSaleRequest{ClientID: client.ID, Lines: lines})
	require.ErrorIs(t, err, models.ErrValidation)

	// the processor enforces the bound on its own too
	err = env.engine.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := env.engine.sales.Create(ctx, tx, owner, &CreateSaleRequest{ClientID: client.ID, Lines: lines})
		return err
	})
	require.ErrorIs(t, err, models.ErrValidation)

	_, err = env.engine.CreateSale(ctx, owner, &CreateSaleRequest{
		ClientID: client.ID,
		Lines: []SaleLineRequest{
			{ItemID: item.ID, Quantity: MaxQuantity},
			{ItemID: item.ID, Quantity: 1},
		},
	})
	require.ErrorIs(t, err, models.ErrValidation)

	assert.Equal(t, 3, env.quantity(t, item.ID))
	assert.Equal(t, 0, env.client(t, client.ID).TotalPurchases)
	assert.Equal(t, 0, env.events.count(models.EventTypeSaleCreated))
}

func TestCreateSaleSumsRepeatedLines(t *testing.T) {
	env := newTestEnv(t, config.PolicyConfig{})
	item := env.seedItem(t, "A", "Widget", 3, "10.00")
	client := env.seedClient(t, "Ann")

	_, err := env.engine.CreateSale(context.Background(), owner, &CreateSaleRequest{
		ClientID: client.ID,
		Lines:    []SaleLineRequest{{ItemID: item.ID, Quantity: 2}, {ItemID: item.ID, Quantity: 2}},
	})
	require.ErrorIs(t, err, models.ErrInsufficientStock)

	var e *models.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, 4, *e.Requested)
	assert.Equal(t, 3, env.quantity(t, item.ID))
}

func TestCreateSaleMultipleItems(t *testing.T) {
	env := newTestEnv(t, config.PolicyConfig{})
	a := env.seedItem(t, "A", "Widget", 10, "2.35")
	b := env.seedItem(t, "B", "Gadget", 10, "0.10")
	client := env.seedClient(t, "Ann")

	sale, err := env.engine.CreateSale(context.Background(), owner, &CreateSaleRequest{
		ClientID:      client.ID,
		Lines:         []SaleLineRequest{{ItemID: a.ID, Quantity: 3}, {ItemID: b.ID, Quantity: 7}},
		PaymentMethod: models.PaymentMethodCard,
	})
	require.NoError(t, err)

	assert.True(t, sale.Subtotal.Equal(money("7.75")), "subtotal %s", sale.Subtotal)
	assert.Equal(t, models.PaymentMethodCard, sale.PaymentMethod)
	assert.Equal(t, 7, env.quantity(t, a.ID))
	assert.Equal(t, 3, env.quantity(t, b.ID))
}

func TestCreateSaleNotFound(t *testing.T) {
	env := newTestEnv(t, config.PolicyConfig{})
	ctx := context.Background()
	item := env.seedItem(t, "A", "Widget", 3, "10.00")
	client := env.seedClient(t, "Ann")

	_, err := env.engine.CreateSale(ctx, owner, &CreateSaleRequest{
		ClientID: 999,
		Lines:    []SaleLineRequest{{ItemID: item.ID, Quantity: 1}},
	})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = env.engine.CreateSale(ctx, owner, &CreateSaleRequest{
		ClientID: client.ID,
		Lines:    []SaleLineRequest{{ItemID: item.ID, Quantity: 1}, {ItemID: 999, Quantity: 1}},
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, 3, env.quantity(t, item.ID))

	// another account cannot sell this owner's stock
	_, err = env.engine.CreateSale(ctx, owner+1, &CreateSaleRequest{
		ClientID: client.ID,
		Lines:    []SaleLineRequest{{ItemID: item.ID, Quantity: 1}},
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreateSaleValidation(t *testing.T) {
	env := newTestEnv(t, config.PolicyConfig{})
	item := env.seedItem(t, "A", "Widget", 3, "10.00")
	client := env.seedClient(t, "Ann")

	tests := []struct {
		name string
		req  *CreateSaleRequest
	}{
		{"no lines", &CreateSaleRequest{ClientID: client.ID}},
		{"zero quantity", &CreateSaleRequest{ClientID: client.ID, Lines: []SaleLineRequest{{ItemID: item.ID}}}},
		{"missing client", &CreateSaleRequest{Lines: []SaleLineRequest{{ItemID: item.ID, Quantity: 1}}}},
		{"negative tax", &CreateSaleRequest{ClientID: client.ID, Lines: []SaleLineRequest{{ItemID: item.ID, Quantity: 1}}, Tax: money("-1")}},
		{"negative discount", &CreateSaleRequest{ClientID: client.ID, Lines: []SaleLineRequest{{ItemID: item.ID, Quantity: 1}}, Discount: money("-1")}},
		{"unknown payment method", &CreateSaleRequest{ClientID: client.ID, Lines: []SaleLineRequest{{ItemID: item.ID, Quantity: 1}}, PaymentMethod: "barter"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engine.CreateSale(context.Background(), owner, tt.req)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
	assert.Equal(t, 3, env.quantity(t, item.ID))
}

func TestCreateSaleAllowsNegativeTotal(t *testing.T) {
	env := newTestEnv(t, config.PolicyConfig{})
	item := env.seedItem(t, "A", "Widget", 3, "10.00")
	client := env.seedClient(t, "Ann")

	sale, err := env.engine.CreateSale(context.Background(), owner, &CreateSaleRequest{
		ClientID: client.ID,
		Lines:    []SaleLineRequest{{ItemID: item.ID, Quantity: 1}},
		Discount: money("15.00"),
	})
	require.NoError(t, err)
	assert.True(t, sale.Total.Equal(money("-5.00")))
}

func TestCreateSaleIdempotencyKeyReplays(t *testing.T) {
	env := newTestEnv(t, config.PolicyConfig{})
	ctx := context.Background()
	item := env.seedItem(t, "A", "Widget", 3, "10.00")
	client := env.seedClient(t, "Ann")

	req := &CreateSaleRequest{
		ClientID:       client.ID,
		Lines:          []SaleLineRequest{{ItemID: item.ID, Quantity: 1}},
		IdempotencyKey: "checkout-42",
	}
	first, err := env.engine.CreateSale(ctx, owner, req)
	require.NoError(t, err)
	second, err := env.engine.CreateSale(ctx, owner, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, env.quantity(t, item.ID))
	assert.Equal(t, 1, env.client(t, client.ID).TotalPurchases)
	assert.Equal(t, 1, env.events.count(models.EventTypeSaleCreated))
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	env := newTestEnv(t, config.PolicyConfig{})
	item := env.seedItem(t, "A", "Widget", 5, "1.00")
	client := env.seedClient(t, "Ann")

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, insufficient := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.engine.CreateSale(context.Background(), owner, &CreateSaleRequest{
				ClientID: client.ID,
				Lines:    []SaleLineRequest{{ItemID: item.ID, Quantity: 1}},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, models.ErrInsufficientStock):
				insufficient++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 15, insufficient)
	assert.Equal(t, 0, env.quantity(t, item.ID))
	assert.Equal(t, 5, env.client(t, client.ID).TotalPurchases)
}

func TestCancelSaleRoundTrip(t *testing.T) {
	env := newTestEnv(t, config.PolicyConfig{})
	ctx := context.Background()
	item := env.seedItem(t, "A", "Widget", 3, "10.00")
	client := env.seedClient(t, "Ann")

	sale, err := env.engine.CreateSale(ctx, owner, &CreateSaleRequest{
		ClientID: client.ID,
		Lines:    []SaleLineRequest{{ItemID: item.ID, Quantity: 2}},
		Tax:      money("1.00"),
		Discount: money("0.50"),
	})
	require.NoError(t, err)
	lastPurchase := env.client(t, client.ID).LastPurchase

	cancelled, err := env.engine.CancelSale(ctx, owner, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusCancelled, cancelled.Status)
	assert.Equal(t, models.CompensationApplied, cancelled.Compensation)
	assert.NotNil(t, cancelled.CancelledAt)

	assert.Equal(t, 3, env.quantity(t, item.ID))
	c := env.client(t, client.ID)
	assert.Equal(t, 0, c.TotalPurchases)
	assert.True(t, c.TotalSpent.IsZero())
	// lastPurchase is kept under the default policy
	require.NotNil(t, c.LastPurchase)
	assert.True(t, lastPurchase.Equal(*c.LastPurchase))

	// cancelling again is a no-op
	again, err := env.engine.CancelSale(ctx, owner, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusCancelled, again.Status)
	assert.Equal(t, 3, env.quantity(t, item.ID))
	assert.Equal(t, 0, env.client(t, client.ID).TotalPurchases)
	assert.Equal(t, 1, env.events.count(models.EventTypeSaleCancelled))
}

func TestCancelSaleNotFound(t *testing.T) {
	env := newTestEnv(t, config.PolicyConfig{})

	_, err := env.engine.CancelSale(context.Background(), owner, 404)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCancelSaleRestoresLastPurchaseWhenEnabled(t *testing.T) {
	env := newTestEnv(t, config.PolicyConfig{RestoreLastPurchaseOnCancel: true})
	ctx := context.Background()
	item := env.seedItem(t, "A", "Widget", 10, "1.00")
	client := env.seedClient(t, "Ann")

	newSale := func() *models.Sale {
		sale, err := env.engine.CreateSale(ctx, owner, &CreateSaleRequest{
			ClientID: client.ID,
			Lines:    []SaleLineRequest{{ItemID: item.ID, Quantity: 1}},
		})
		require.NoError(t, err)
		return sale
	}
	first := newSale()
	second := newSale()

	_, err := env.engine.CancelSale(ctx, owner, second.ID)
	require.NoError(t, err)

	c := env.client(t, client.ID)
	require.NotNil(t, c.LastPurchase)
	assert.True(t, first.CreatedAt.Equal(*c.LastPurchase))

	_, err = env.engine.CancelSale(ctx, owner, first.ID)
	require.NoError(t, err)
	assert.Nil(t, env.client(t, client.ID).LastPurchase)
}

func TestCancelSaleRecordsIssueForDeletedItem(t *testing.T) {
	env := newTestEnv(t, config.PolicyConfig{ItemDelete: config.ItemDeleteAllow})
	ctx := context.Background()
	gone := env.seedItem(t, "GONE", "Discontinued", 5, "3.00")
	kept := env.seedItem(t, "KEPT", "Staple", 5, "1.00")
	client := env.seedClient(t, "Ann")

	sale, err := env.engine.CreateSale(ctx, owner, &CreateSaleRequest{
		ClientID: client.ID,
		Lines:    []SaleLineRequest{{ItemID: gone.ID, Quantity: 2}, {ItemID: kept.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	require.NoError(t, env.engine.DeleteItem(ctx, owner, gone.ID))

	cancelled, err := env.engine.CancelSale(ctx, owner, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CompensationApplied, cancelled.Compensation)

	assert.Equal(t, 5, env.quantity(t, kept.ID))
	assert.Equal(t, 0, env.client(t, client.ID).TotalPurchases)

	issues, err := env.engine.ListReconciliationIssues(ctx, owner)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, sale.ID, issues[0].SaleID)
	assert.Equal(t, gone.ID, issues[0].ItemID)
	assert.Equal(t, "GONE", issues[0].Barcode)
	assert.Equal(t, 2, issues[0].Quantity)
}

func TestCancelSaleDefersFailedCompensation(t *testing.T) {
	repo := &flakyRepo{Memory: store.NewMemory()}
	env := newTestEnvWithRepo(t, repo, config.PolicyConfig{})
	ctx := context.Background()
	item := env.seedItem(t, "A", "Widget", 3, "10.00")
	client := env.seedClient(t, "Ann")

	sale, err := env.engine.CreateSale(ctx, owner, &CreateSaleRequest{
		ClientID: client.ID,
		Lines:    []SaleLineRequest{{ItemID: item.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	repo.claimFailures = 1
	cancelled, err := env.engine.CancelSale(ctx, owner, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusCancelled, cancelled.Status)
	assert.Equal(t, models.CompensationPending, cancelled.Compensation)
	assert.Equal(t, 1, env.quantity(t, item.ID), "stock not yet restored")

	require.Equal(t, 1, env.events.count(models.EventTypeCompensationPending))
	event := env.events.last[models.EventTypeCompensationPending].(*models.CompensationPendingEvent)
	assert.Equal(t, sale.ID, event.SaleID)

	require.NoError(t, env.engine.HandleCompensationPending(ctx, event))
	assert.Equal(t, 3, env.quantity(t, item.ID))
	assert.Equal(t, 0, env.client(t, client.ID).TotalPurchases)

	// redelivery of the same event changes nothing
	require.NoError(t, env.engine.HandleCompensationPending(ctx, event))
	assert.Equal(t, 3, env.quantity(t, item.ID))
	assert.Equal(t, 0, env.client(t, client.ID).TotalPurchases)
}

func TestRepairPendingCompensations(t *testing.T) {
	repo := &flakyRepo{Memory: store.NewMemory()}
	env := newTestEnvWithRepo(t, repo, config.PolicyConfig{})
	ctx := context.Background()
	item := env.seedItem(t, "A", "Widget", 10, "1.00")
	client := env.seedClient(t, "Ann")

	for i := 0; i < 3; i++ {
		sale, err := env.engine.CreateSale(ctx, owner, &CreateSaleRequest{
			ClientID: client.ID,
			Lines:    []SaleLineRequest{{ItemID: item.ID, Quantity: 2}},
		})
		require.NoError(t, err)
		repo.claimFailures = 1
		_, err = env.engine.CancelSale(ctx, owner, sale.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, env.quantity(t, item.ID))

	repaired, err := env.engine.RepairPendingCompensations(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, repaired)
	assert.Equal(t, 10, env.quantity(t, item.ID))
	assert.Equal(t, 0, env.client(t, client.ID).TotalPurchases)

	repaired, err = env.engine.RepairPendingCompensations(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, repaired)
	assert.Equal(t, 10, env.quantity(t, item.ID))
}

func TestCancelSaleRetryCompletesPendingCompensation(t *testing.T) {
	repo := &flakyRepo{Memory: store.NewMemory()}
	env := newTestEnvWithRepo(t, repo, config.PolicyConfig{})
	ctx := context.Background()
	item := env.seedItem(t, "A", "Widget", 3, "10.00")
	client := env.seedClient(t, "Ann")

	sale, err := env.engine.CreateSale(ctx, owner, &CreateSaleRequest{
		ClientID: client.ID,
		Lines:    []SaleLineRequest{{ItemID: item.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	repo.claimFailures = 1
	_, err = env.engine.CancelSale(ctx, owner, sale.ID)
	require.NoError(t, err)

	retried, err := env.engine.CancelSale(ctx, owner, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CompensationApplied, retried.Compensation)
	assert.Equal(t, 3, env.quantity(t, item.ID))
}

func TestCancelSaleLockHeld(t *testing.T) {
	env := newTestEnv(t, config.PolicyConfig{})
	env.engine.locker = heldLocker{}

	_, err := env.engine.CancelSale(context.Background(), owner, 1)
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestGetSale(t *testing.T) {
	env := newTestEnv(t, config.PolicyConfig{})
	ctx := context.Background()
	item := env.seedItem(t, "A", "Widget", 3, "10.00")
	client := env.seedClient(t, "Ann")

	sale, err := env.engine.CreateSale(ctx, owner, &CreateSaleRequest{
		ClientID: client.ID,
		Lines:    []SaleLineRequest{{ItemID: item.ID, Quantity: 1}},
		Notes:    "walk-in",
	})
	require.NoError(t, err)

	got, err := env.engine.GetSale(ctx, owner, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "walk-in", got.Notes)
	assert.Equal(t, "Ann", got.ClientName)
	assert.Len(t, got.Lines, 1)

	_, err = env.engine.GetSale(ctx, owner+1, sale.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListSalesNewestFirst(t *testing.T) {
	env := newTestEnv(t, config.PolicyConfig{})
	ctx := context.Background()
	item := env.seedItem(t, "A", "Widget", 5, "10.00")
	client := env.seedClient(t, "Ann")

	var ids []int64
	for i := 1; i <= 2; i++ {
		sale, err := env.engine.CreateSale(ctx, owner, &CreateSaleRequest{
			ClientID: client.ID,
			Lines:    []SaleLineRequest{{ItemID: item.ID, Quantity: i}},
		})
		require.NoError(t, err)
		ids = append(ids, sale.ID)
	}

	sales, err := env.engine.ListSales(ctx, owner)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, ids[1], sales[0].ID)
	assert.Equal(t, ids[0], sales[1].ID)
	require.Len(t, sales[0].Lines, 1)
	assert.Equal(t, 2, sales[0].Lines[0].Quantity)

	others, err := env.engine.ListSales(ctx, owner+1)
	require.NoError(t, err)
	assert.Empty(t, others)
}
