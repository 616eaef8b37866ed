package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"inventory-service/internal/models"

	"github.com/lib/pq"
)

// GetItem retrieves an item owned by ownerID
func (t *txStore) GetItem(ctx context.Context, ownerID, itemID int64) (*models.Item, error) {
	var item models.Item
	err := t.tx.GetContext(ctx, &item,
		"SELECT * FROM items WHERE id = $1 AND owner_id = $2", itemID, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound("item", itemID)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// LockItems locks item rows FOR UPDATE in id order so concurrent sales
// touching overlapping items cannot deadlock.
func (t *txStore) LockItems(ctx context.Context, ownerID int64, itemIDs []int64) (map[int64]*models.Item, error) {
	result := make(map[int64]*models.Item, len(itemIDs))
	if len(itemIDs) == 0 {
		return result, nil
	}

	var items []models.Item
	err := t.tx.SelectContext(ctx, &items,
		"SELECT * FROM items WHERE owner_id = $1 AND id = ANY($2) ORDER BY id FOR UPDATE",
		ownerID, pq.Array(itemIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to lock items: %w", err)
	}

	for i := range items {
		result[items[i].ID] = &items[i]
	}
	return result, nil
}

// FindItemByBarcode looks up an item by its owner-scoped barcode
func (t *txStore) FindItemByBarcode(ctx context.Context, ownerID int64, barcode string) (*models.Item, error) {
	var item models.Item
	err := t.tx.GetContext(ctx, &item,
		"SELECT * FROM items WHERE owner_id = $1 AND barcode = $2", ownerID, barcode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListItems retrieves all items of an owner
func (t *txStore) ListItems(ctx context.Context, ownerID int64) ([]models.Item, error) {
	var items []models.Item
	err := t.tx.SelectContext(ctx, &items,
		"SELECT * FROM items WHERE owner_id = $1 ORDER BY id", ownerID)
	return items, err
}

// CreateItem inserts an item; a barcode collision leaves no row behind and
// does not abort the surrounding transaction.
func (t *txStore) CreateItem(ctx context.Context, item *models.Item) error {
	item.Status = models.StockStatus(item.Quantity)

	query := `
		INSERT INTO items (owner_id, barcode, name, quantity, price, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ON CONSTRAINT items_owner_barcode_key DO NOTHING
		RETURNING id, created_at, updated_at`

	err := t.tx.GetContext(ctx, item, query,
		item.OwnerID, item.Barcode, item.Name, item.Quantity, item.Price, item.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DuplicateBarcode(item.Barcode)
	}
	return err
}

// AdjustItemQuantity applies a delta with a single conditional update
func (t *txStore) AdjustItemQuantity(ctx context.Context, itemID int64, delta int) (*models.Item, error) {
	query := `
		UPDATE items SET
			quantity = quantity + $1,
			status = CASE
				WHEN quantity + $1 <= 0 THEN 'out_of_stock'
				WHEN quantity + $1 <= $2 THEN 'low_stock'
				ELSE 'available'
			END,
			updated_at = NOW()
		WHERE id = $3 AND quantity + $1 >= 0
		RETURNING *`

	var item models.Item
	err := t.tx.GetContext(ctx, &item, query, delta, models.LowStockThreshold, itemID)
	if err == nil {
		return &item, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to adjust item quantity: %w", err)
	}

	var current int
	err = t.tx.GetContext(ctx, &current, "SELECT quantity FROM items WHERE id = $1", itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound("item", itemID)
	}
	if err != nil {
		return nil, err
	}
	return nil, models.NegativeQuantity(itemID, current, delta)
}

// DeleteItem removes an item
func (t *txStore) DeleteItem(ctx context.Context, ownerID, itemID int64) error {
	res, err := t.tx.ExecContext(ctx,
		"DELETE FROM items WHERE id = $1 AND owner_id = $2", itemID, ownerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.NotFound("item", itemID)
	}
	return nil
}

// CountItemReferences counts sale and purchase order lines pointing at an item
func (t *txStore) CountItemReferences(ctx context.Context, ownerID, itemID int64) (int, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM sale_lines sl JOIN sales s ON s.id = sl.sale_id
				WHERE sl.item_id = $1 AND s.owner_id = $2)
			+
			(SELECT COUNT(*) FROM purchase_order_lines pl JOIN purchase_orders po ON po.id = pl.purchase_order_id
				WHERE pl.existing_item_id = $1 AND po.owner_id = $2)`

	var count int
	err := t.tx.GetContext(ctx, &count, query, itemID, ownerID)
	return count, err
}
