package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/models"

	"github.com/lib/pq"
)

// CreatePurchaseOrder inserts an order and its lines
func (t *txStore) CreatePurchaseOrder(ctx context.Context, order *models.PurchaseOrder) error {
	query := `
		INSERT INTO purchase_orders (owner_id, order_number, dealer_name, dealer_contact, dealer_email,
			subtotal, tax, shipping_cost, total_cost, status, processed_to_inventory, notes, expected_delivery_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`

	err := t.tx.GetContext(ctx, order, query,
		order.OwnerID, order.OrderNumber, order.DealerName, order.DealerContact, order.DealerEmail,
		order.Subtotal, order.Tax, order.ShippingCost, order.TotalCost, order.Status,
		order.ProcessedToInventory, order.Notes, order.ExpectedDeliveryDate)
	if isUniqueViolation(err, "purchase_orders_owner_number_key") {
		return &models.Error{
			Kind:    models.KindDuplicateKey,
			Message: fmt.Sprintf("purchase order number already exists: %s", order.OrderNumber),
			Entity:  "purchase_order",
		}
	}
	if err != nil {
		return fmt.Errorf("failed to create purchase order: %w", err)
	}

	lineQuery := `
		INSERT INTO purchase_order_lines (purchase_order_id, item_name, item_barcode, quantity,
			unit_cost, total_cost, selling_price, existing_item_id, is_new_item)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	for i := range order.Lines {
		line := &order.Lines[i]
		line.PurchaseOrderID = order.ID
		if err := t.tx.GetContext(ctx, &line.ID, lineQuery,
			line.PurchaseOrderID, line.ItemName, line.ItemBarcode, line.Quantity,
			line.UnitCost, line.TotalCost, line.SellingPrice, line.ExistingItemID, line.IsNewItem); err != nil {
			return fmt.Errorf("failed to create purchase order line: %w", err)
		}
	}

	return nil
}

// GetPurchaseOrder retrieves an order with its lines
func (t *txStore) GetPurchaseOrder(ctx context.Context, ownerID, orderID int64) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	err := t.tx.GetContext(ctx, &order,
		"SELECT * FROM purchase_orders WHERE id = $1 AND owner_id = $2", orderID, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound("purchase_order", orderID)
	}
	if err != nil {
		return nil, err
	}

	err = t.tx.SelectContext(ctx, &order.Lines,
		"SELECT * FROM purchase_order_lines WHERE purchase_order_id = $1 ORDER BY id", order.ID)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListPurchaseOrders retrieves an owner's orders, newest first
func (t *txStore) ListPurchaseOrders(ctx context.Context, ownerID int64) ([]models.PurchaseOrder, error) {
	var orders []models.PurchaseOrder
	err := t.tx.SelectContext(ctx, &orders,
		"SELECT * FROM purchase_orders WHERE owner_id = $1 ORDER BY created_at DESC, id DESC", ownerID)
	if err != nil || len(orders) == 0 {
		return orders, err
	}

	ids := make([]int64, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	var lines []models.PurchaseOrderLine
	err = t.tx.SelectContext(ctx, &lines,
		"SELECT * FROM purchase_order_lines WHERE purchase_order_id = ANY($1) ORDER BY id", pq.Array(ids))
	if err != nil {
		return nil, err
	}

	byOrder := make(map[int64][]models.PurchaseOrderLine, len(orders))
	for _, line := range lines {
		byOrder[line.PurchaseOrderID] = append(byOrder[line.PurchaseOrderID], line)
	}
	for i := range orders {
		orders[i].Lines = byOrder[orders[i].ID]
	}
	return orders, nil
}

// ClaimPurchaseOrderArrival flips pending -> arrived; status and the
// processed flag always move together.
func (t *txStore) ClaimPurchaseOrderArrival(ctx context.Context, ownerID, orderID int64, at time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE purchase_orders SET
			status = $1, processed_to_inventory = TRUE, actual_delivery_date = $2, updated_at = NOW()
		WHERE id = $3 AND owner_id = $4 AND status = $5 AND processed_to_inventory = FALSE`,
		models.PurchaseOrderStatusArrived, at, orderID, ownerID, models.PurchaseOrderStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// LinkPurchaseOrderLine points a line at the item created for it
func (t *txStore) LinkPurchaseOrderLine(ctx context.Context, lineID, itemID int64) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE purchase_order_lines SET existing_item_id = $1, is_new_item = FALSE WHERE id = $2",
		itemID, lineID)
	return err
}

// TransitionPurchaseOrderCancelled flips pending -> cancelled
func (t *txStore) TransitionPurchaseOrderCancelled(ctx context.Context, ownerID, orderID int64) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE purchase_orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND owner_id = $3 AND status = $4`,
		models.PurchaseOrderStatusCancelled, orderID, ownerID, models.PurchaseOrderStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// DeletePurchaseOrder removes an order regardless of status
func (t *txStore) DeletePurchaseOrder(ctx context.Context, ownerID, orderID int64) error {
	res, err := t.tx.ExecContext(ctx,
		"DELETE FROM purchase_orders WHERE id = $1 AND owner_id = $2", orderID, ownerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.NotFound("purchase_order", orderID)
	}
	return nil
}
