package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseOrderWorkflow is the pending -> arrived | cancelled state
// machine. Its methods run inside a unit of work.
type PurchaseOrderWorkflow struct {
	now func() time.Time
}

// arrivalResult is what an arrival unit of work hands back
type arrivalResult struct {
	order   *models.PurchaseOrder
	items   []models.Item
	applied bool
}

// generateOrderNumber returns PO-YYYYMMDD-XXXXXX
func generateOrderNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return fmt.Sprintf("PO-%s-%s", at.Format("20060102"), suffix)
}

// Submit records a pending order. Each line is matched against existing
// items by barcode for reference only; inventory is not touched.
func (w *PurchaseOrderWorkflow) Submit(ctx context.Context, tx store.Tx, ownerID int64, req *SubmitPurchaseOrderRequest) (*models.PurchaseOrder, error) {
	ledger := NewItemLedger(tx)

	lines := make([]models.PurchaseOrderLine, 0, len(req.Lines))
	subtotal := decimal.Zero
	for _, line := range req.Lines {
		existing, err := ledger.FindByBarcode(ctx, ownerID, line.ItemBarcode)
		if err != nil {
			return nil, err
		}

		lineTotal := models.Money(line.UnitCost.Mul(decimal.NewFromInt(int64(line.Quantity))))
		subtotal = subtotal.Add(lineTotal)

		pol := models.PurchaseOrderLine{
			ItemName:     line.ItemName,
			ItemBarcode:  line.ItemBarcode,
			Quantity:     line.Quantity,
			UnitCost:     models.Money(line.UnitCost),
			TotalCost:    lineTotal,
			SellingPrice: models.Money(line.SellingPrice),
			IsNewItem:    existing == nil,
		}
		if existing != nil {
			id := existing.ID
			pol.ExistingItemID = &id
		}
		lines = append(lines, pol)
	}

	tax := models.Money(req.Tax)
	shipping := models.Money(req.ShippingCost)

	orderNumber := req.OrderNumber
	if orderNumber == "" {
		orderNumber = generateOrderNumber(w.now())
	}

	order := &models.PurchaseOrder{
		OwnerID:              ownerID,
		OrderNumber:          orderNumber,
		DealerName:           req.DealerName,
		DealerContact:        req.DealerContact,
		DealerEmail:          req.DealerEmail,
		Subtotal:             subtotal,
		Tax:                  tax,
		ShippingCost:         shipping,
		TotalCost:            subtotal.Add(tax).Add(shipping),
		Status:               models.PurchaseOrderStatusPending,
		ProcessedToInventory: false,
		Notes:                req.Notes,
		ExpectedDeliveryDate: req.ExpectedDeliveryDate,
		Lines:                lines,
	}

	if err := tx.CreatePurchaseOrder(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// MarkArrived applies an order's stock exactly once. The pending -> arrived
// claim and every line's stock write share the unit of work: if any line
// fails the claim rolls back with it and the order stays pending.
func (w *PurchaseOrderWorkflow) MarkArrived(ctx context.Context, tx store.Tx, ownerID, orderID int64) (*arrivalResult, error) {
	order, err := tx.GetPurchaseOrder(ctx, ownerID, orderID)
	if err != nil {
		return nil, err
	}

	if done, err := arrivalGuard(order); done || err != nil {
		return &arrivalResult{order: order}, err
	}

	won, err := tx.ClaimPurchaseOrderArrival(ctx, ownerID, orderID, w.now())
	if err != nil {
		return nil, fmt.Errorf("failed to claim arrival: %w", err)
	}
	if !won {
		// lost a race: report whatever the winner left behind
		order, err = tx.GetPurchaseOrder(ctx, ownerID, orderID)
		if err != nil {
			return nil, err
		}
		_, err = arrivalGuard(order)
		return &arrivalResult{order: order}, err
	}

	ledger := NewItemLedger(tx)
	result := &arrivalResult{applied: true}
	for _, line := range order.Lines {
		if line.ExistingItemID != nil {
			item, err := ledger.AdjustQuantity(ctx, *line.ExistingItemID, line.Quantity)
			if err == nil {
				result.items = append(result.items, *item)
				continue
			}
			if models.KindOf(err) != models.KindNotFound {
				return nil, fmt.Errorf("line %s: %w", line.ItemBarcode, err)
			}
			// the linked item was deleted after submission; receive the line
			// by barcode instead
		}

		item, err := w.receiveByBarcode(ctx, ledger, ownerID, line)
		if err != nil {
			return nil, fmt.Errorf("line %s: %w", line.ItemBarcode, err)
		}
		if err := tx.LinkPurchaseOrderLine(ctx, line.ID, item.ID); err != nil {
			return nil, fmt.Errorf("failed to link line %d: %w", line.ID, err)
		}
		result.items = append(result.items, *item)
	}

	result.order, err = tx.GetPurchaseOrder(ctx, ownerID, orderID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// receiveByBarcode adds the line to the item currently holding its barcode,
// creating the item from the line when there is none.
func (w *PurchaseOrderWorkflow) receiveByBarcode(ctx context.Context, ledger *ItemLedger, ownerID int64, line models.PurchaseOrderLine) (*models.Item, error) {
	if line.ExistingItemID != nil {
		current, err := ledger.FindByBarcode(ctx, ownerID, line.ItemBarcode)
		if err != nil {
			return nil, err
		}
		if current != nil {
			return ledger.AdjustQuantity(ctx, current.ID, line.Quantity)
		}
	}
	return ledger.CreateItem(ctx, ownerID, line.ItemBarcode, line.ItemName, line.Quantity, line.SellingPrice)
}

// arrivalGuard reports done for an order whose arrival was already applied
// and Conflict for one that can never arrive.
func arrivalGuard(order *models.PurchaseOrder) (bool, error) {
	switch {
	case order.Status == models.PurchaseOrderStatusArrived || order.ProcessedToInventory:
		return true, nil
	case order.Status == models.PurchaseOrderStatusCancelled:
		return true, models.Conflict("purchase_order", order.ID, "cancelled purchase order cannot arrive")
	default:
		return false, nil
	}
}

// Cancel moves a pending order to cancelled. Cancelling twice is a no-op;
// cancelling an arrived order is a Conflict.
func (w *PurchaseOrderWorkflow) Cancel(ctx context.Context, tx store.Tx, ownerID, orderID int64) (*models.PurchaseOrder, error) {
	if _, err := tx.GetPurchaseOrder(ctx, ownerID, orderID); err != nil {
		return nil, err
	}

	if _, err := tx.TransitionPurchaseOrderCancelled(ctx, ownerID, orderID); err != nil {
		return nil, err
	}

	order, err := tx.GetPurchaseOrder(ctx, ownerID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == models.PurchaseOrderStatusArrived {
		return nil, models.Conflict("purchase_order", orderID, "arrived purchase order cannot be cancelled")
	}
	return order, nil
}
