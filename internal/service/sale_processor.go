package service

import (
	"context"
	"fmt"
	"time"

	"inventory-service/config"
	"inventory-service/internal/models"
	"inventory-service/internal/store"

	"github.com/shopspring/decimal"
)

// SaleProcessor holds the sale rules. Its methods run inside a unit of work
// and never commit on their own.
type SaleProcessor struct {
	policy config.PolicyConfig
	now    func() time.Time
}

// saleResult is what a sale unit of work hands back for post-commit effects
type saleResult struct {
	sale     *models.Sale
	items    []models.Item
	replayed bool
}

// requestedQuantities sums quantities per item, keeping first-seen order.
// Every line and every per-item sum must stay within 1..MaxQuantity.
func requestedQuantities(lines []SaleLineRequest) ([]int64, map[int64]int, error) {
	order := make([]int64, 0, len(lines))
	totals := make(map[int64]int, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 || line.Quantity > MaxQuantity {
			return nil, nil, models.Validation(fmt.Sprintf("quantity for item %d must be between 1 and %d", line.ItemID, MaxQuantity))
		}
		if _, ok := totals[line.ItemID]; !ok {
			order = append(order, line.ItemID)
		}
		if totals[line.ItemID] > MaxQuantity-line.Quantity {
			return nil, nil, models.Validation(fmt.Sprintf("total quantity for item %d exceeds %d", line.ItemID, MaxQuantity))
		}
		totals[line.ItemID] += line.Quantity
	}
	return order, totals, nil
}

// Create validates stock for every line and applies the sale. The sale row,
// stock decrements and client statistics commit or roll back together.
func (p *SaleProcessor) Create(ctx context.Context, tx store.Tx, ownerID int64, req *CreateSaleRequest) (*saleResult, error) {
	if req.IdempotencyKey != "" {
		existing, err := tx.GetSaleByIdempotencyKey(ctx, ownerID, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
		if existing != nil {
			return &saleResult{sale: existing, replayed: true}, nil
		}
	}

	client, err := tx.GetClient(ctx, ownerID, req.ClientID)
	if err != nil {
		return nil, err
	}

	itemIDs, wanted, err := requestedQuantities(req.Lines)
	if err != nil {
		return nil, err
	}
	locked, err := tx.LockItems(ctx, ownerID, itemIDs)
	if err != nil {
		return nil, err
	}

	for _, id := range itemIDs {
		item, ok := locked[id]
		if !ok {
			return nil, models.NotFound("item", id)
		}
		if wanted[id] > item.Quantity {
			return nil, models.InsufficientStock(item, wanted[id])
		}
	}

	lines := make([]models.SaleLine, 0, len(req.Lines))
	subtotal := decimal.Zero
	for _, line := range req.Lines {
		item := locked[line.ItemID]
		lineTotal := models.Money(item.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		subtotal = subtotal.Add(lineTotal)
		lines = append(lines, models.SaleLine{
			ItemID:    item.ID,
			ItemName:  item.Name,
			Barcode:   item.Barcode,
			Quantity:  line.Quantity,
			UnitPrice: item.Price,
			LineTotal: lineTotal,
		})
	}

	tax := models.Money(req.Tax)
	discount := models.Money(req.Discount)
	paymentMethod := req.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = models.PaymentMethodCash
	}

	sale := &models.Sale{
		OwnerID:       ownerID,
		ClientID:      client.ID,
		ClientName:    client.Name,
		Subtotal:      subtotal,
		Tax:           tax,
		Discount:      discount,
		Total:         subtotal.Add(tax).Sub(discount),
		PaymentMethod: paymentMethod,
		Notes:         req.Notes,
		Status:        models.SaleStatusCompleted,
		Compensation:  models.CompensationNone,
		Lines:         lines,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		sale.IdempotencyKey = &key
	}

	if err := tx.CreateSale(ctx, sale); err != nil {
		return nil, err
	}

	ledger := NewItemLedger(tx)
	updated := make([]models.Item, 0, len(itemIDs))
	for _, id := range itemIDs {
		item, err := ledger.AdjustQuantity(ctx, id, -wanted[id])
		if err != nil {
			return nil, err
		}
		updated = append(updated, *item)
	}

	if _, err := NewClientLedger(tx).RecordPurchase(ctx, client.ID, sale.Total, sale.CreatedAt); err != nil {
		return nil, err
	}

	return &saleResult{sale: sale, items: updated}, nil
}

// MarkCancelled moves a completed sale to cancelled with a pending
// compensation. It reports false when the sale had already left completed.
func (p *SaleProcessor) MarkCancelled(ctx context.Context, tx store.Tx, ownerID, saleID int64) (*models.Sale, bool, error) {
	sale, err := tx.GetSale(ctx, ownerID, saleID)
	if err != nil {
		return nil, false, err
	}

	moved, err := tx.TransitionSaleCancelled(ctx, ownerID, saleID, p.now())
	if err != nil {
		return nil, false, err
	}
	if !moved {
		return sale, false, nil
	}

	sale, err = tx.GetSale(ctx, ownerID, saleID)
	if err != nil {
		return nil, false, err
	}
	return sale, true, nil
}

// compensationResult lists what a compensation unit of work changed
type compensationResult struct {
	sale    *models.Sale
	items   []models.Item
	issues  []models.ReconciliationIssue
	applied bool
}

// Compensate claims the pending compensation of a cancelled sale and
// reverses its effects in the same unit of work, so it can run at most once
// per sale. Items deleted since the sale become reconciliation issues.
func (p *SaleProcessor) Compensate(ctx context.Context, tx store.Tx, ownerID, saleID int64) (*compensationResult, error) {
	sale, err := tx.GetSale(ctx, ownerID, saleID)
	if err != nil {
		return nil, err
	}

	won, err := tx.ClaimSaleCompensation(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim compensation: %w", err)
	}
	if !won {
		return &compensationResult{sale: sale}, nil
	}

	result := &compensationResult{applied: true}
	ledger := NewItemLedger(tx)
	for _, line := range sale.Lines {
		item, err := ledger.AdjustQuantity(ctx, line.ItemID, line.Quantity)
		if models.KindOf(err) == models.KindNotFound {
			issue := models.ReconciliationIssue{
				OwnerID:  ownerID,
				SaleID:   sale.ID,
				ItemID:   line.ItemID,
				Barcode:  line.Barcode,
				Quantity: line.Quantity,
				Reason:   fmt.Sprintf("item %s no longer exists; %d units not restocked", line.Barcode, line.Quantity),
			}
			if err := tx.RecordReconciliationIssue(ctx, &issue); err != nil {
				return nil, fmt.Errorf("failed to record reconciliation issue: %w", err)
			}
			result.issues = append(result.issues, issue)
			continue
		}
		if err != nil {
			return nil, err
		}
		result.items = append(result.items, *item)
	}

	clients := NewClientLedger(tx)
	if _, err := clients.ReversePurchase(ctx, sale.ClientID, sale.Total); err != nil {
		return nil, err
	}
	if p.policy.RestoreLastPurchaseOnCancel {
		if err := clients.RestoreLastPurchase(ctx, sale.ClientID); err != nil {
			return nil, err
		}
	}

	result.sale, err = tx.GetSale(ctx, ownerID, saleID)
	if err != nil {
		return nil, err
	}
	return result, nil
}
