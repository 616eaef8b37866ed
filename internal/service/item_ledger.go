package service

import (
	"context"
	"fmt"

	"inventory-service/internal/models"
	"inventory-service/internal/store"

	"github.com/shopspring/decimal"
)

// ItemLedger is the only writer of item quantities. It works on the item
// store of the current unit of work.
type ItemLedger struct {
	items store.ItemStore
}

// NewItemLedger binds a ledger to a unit of work
func NewItemLedger(items store.ItemStore) *ItemLedger {
	return &ItemLedger{items: items}
}

// FindByBarcode returns nil when the owner has no item with barcode
func (l *ItemLedger) FindByBarcode(ctx context.Context, ownerID int64, barcode string) (*models.Item, error) {
	item, err := l.items.FindItemByBarcode(ctx, ownerID, barcode)
	if err != nil {
		return nil, fmt.Errorf("failed to look up barcode %s: %w", barcode, err)
	}
	return item, nil
}

// AdjustQuantity applies quantity += delta. The storage write is
// conditional, so a result below zero fails with InvariantViolation
// instead of being written.
func (l *ItemLedger) AdjustQuantity(ctx context.Context, itemID int64, delta int) (*models.Item, error) {
	if delta == 0 {
		return nil, models.Validation("quantity adjustment must be non-zero")
	}
	return l.items.AdjustItemQuantity(ctx, itemID, delta)
}

// CreateItem adds a new item. A barcode already used by the owner fails
// with DuplicateKey and writes nothing.
func (l *ItemLedger) CreateItem(ctx context.Context, ownerID int64, barcode, name string, quantity int, price decimal.Decimal) (*models.Item, error) {
	if quantity < 0 {
		return nil, models.Validation("quantity must not be negative")
	}
	if price.IsNegative() {
		return nil, models.Validation("price must not be negative")
	}

	item := &models.Item{
		OwnerID:  ownerID,
		Barcode:  barcode,
		Name:     name,
		Quantity: quantity,
		Price:    models.Money(price),
		Status:   models.StockStatus(quantity),
	}
	if err := l.items.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}
