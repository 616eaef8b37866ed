package service

import (
	"context"
	"fmt"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

// CreateSale validates the requested lines against current stock and
// records the sale, its stock decrements and the client purchase as one
// unit of work. A repeated idempotency key returns the original sale.
func (e *Engine) CreateSale(ctx context.Context, ownerID int64, req *CreateSaleRequest) (sale *models.Sale, err error) {
	ctx, span := util.StartSpan(ctx, "Engine.CreateSale", ownerID)
	defer func() { util.EndSpan(span, err) }()

	if err := req.validate(); err != nil {
		util.SalesFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	start := time.Now()
	var result *saleResult
	err = e.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		result, err = e.sales.Create(ctx, tx, ownerID, req)
		return err
	})
	observeStockAdjust(start)

	if err != nil && req.IdempotencyKey != "" && models.KindOf(err) == models.KindDuplicateKey {
		// a concurrent request with the same key committed first
		result, err = e.replaySale(ctx, ownerID, req.IdempotencyKey)
	}
	if err != nil {
		util.SalesFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	if result.replayed {
		util.SalesReplayedTotal.Inc()
		e.logger.Info("Duplicate sale request detected",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Int64("sale_id", result.sale.ID))
		return result.sale, nil
	}

	util.SalesCreatedTotal.Inc()
	e.logger.Info("Sale created",
		zap.Int64("sale_id", result.sale.ID),
		zap.Int64("owner_id", ownerID),
		zap.String("total", result.sale.Total.StringFixed(2)))

	e.syncStock(ctx, result.items)
	e.publish("SaleCreated", func() error {
		return e.events.PublishSaleCreated(ctx, &models.SaleCreatedEvent{
			BaseEvent: e.newBaseEvent(models.EventTypeSaleCreated, ownerID),
			SaleID:    result.sale.ID,
			ClientID:  result.sale.ClientID,
			Total:     result.sale.Total,
			Lines:     saleStockLines(result.sale),
		})
	})

	return result.sale, nil
}

func (e *Engine) replaySale(ctx context.Context, ownerID int64, key string) (*saleResult, error) {
	var result *saleResult
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		sale, err := tx.GetSaleByIdempotencyKey(ctx, ownerID, key)
		if err != nil {
			return err
		}
		if sale == nil {
			return fmt.Errorf("sale with idempotency key %s vanished", key)
		}
		result = &saleResult{sale: sale, replayed: true}
		return nil
	})
	return result, err
}

// CancelSale marks a completed sale cancelled and then reverses its stock
// and client effects. Cancelling an already cancelled sale has no further
// effect. When the reversal fails the sale stays cancelled with a pending
// compensation that the repair worker completes later.
func (e *Engine) CancelSale(ctx context.Context, ownerID, saleID int64) (sale *models.Sale, err error) {
	ctx, span := util.StartSpan(ctx, "Engine.CancelSale", ownerID)
	defer func() { util.EndSpan(span, err) }()

	err = e.withLock(ctx, "cancel_sale", "sale", saleID, func() error {
		var moved bool
		err := e.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			sale, moved, err = e.sales.MarkCancelled(ctx, tx, ownerID, saleID)
			return err
		})
		if err != nil {
			return err
		}

		if moved {
			util.SalesCancelledTotal.Inc()
			e.logger.Info("Sale cancelled", zap.Int64("sale_id", saleID))
		}
		if sale.Compensation != models.CompensationPending {
			return nil
		}

		compensated, err := e.compensate(ctx, ownerID, saleID, "")
		if err != nil {
			e.deferCompensation(ctx, ownerID, saleID, err)
			return nil
		}
		sale = compensated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// compensate runs one compensation unit of work and its post-commit
// effects. A non-empty eventID is marked processed in the same unit of
// work, and an already processed event is skipped.
func (e *Engine) compensate(ctx context.Context, ownerID, saleID int64, eventID string) (*models.Sale, error) {
	start := time.Now()
	var result *compensationResult
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if eventID != "" {
			processed, err := tx.IsEventProcessed(ctx, eventID)
			if err != nil {
				return fmt.Errorf("failed to check event processed: %w", err)
			}
			if processed {
				return nil
			}
		}

		var err error
		result, err = e.sales.Compensate(ctx, tx, ownerID, saleID)
		if err != nil {
			return err
		}

		if eventID != "" {
			return tx.MarkEventProcessed(ctx, eventID, models.EventTypeCompensationPending)
		}
		return nil
	})
	observeStockAdjust(start)
	if err != nil {
		return nil, err
	}

	if result == nil {
		e.logger.Info("Event already processed", zap.String("event_id", eventID))
		return nil, nil
	}
	if !result.applied {
		return result.sale, nil
	}

	for _, issue := range result.issues {
		util.ReconciliationIssuesTotal.Inc()
		e.logger.Warn("Reconciliation issue recorded",
			zap.Int64("sale_id", issue.SaleID),
			zap.Int64("item_id", issue.ItemID),
			zap.String("barcode", issue.Barcode),
			zap.Int("quantity", issue.Quantity))
	}

	e.logger.Info("Sale compensation applied",
		zap.Int64("sale_id", saleID),
		zap.Int("items_restocked", len(result.items)))

	e.syncStock(ctx, result.items)
	e.publish("SaleCancelled", func() error {
		return e.events.PublishSaleCancelled(ctx, &models.SaleCancelledEvent{
			BaseEvent: e.newBaseEvent(models.EventTypeSaleCancelled, ownerID),
			SaleID:    result.sale.ID,
			ClientID:  result.sale.ClientID,
			Total:     result.sale.Total,
			Lines:     saleStockLines(result.sale),
		})
	})

	return result.sale, nil
}

// deferCompensation hands a failed compensation to the repair worker
func (e *Engine) deferCompensation(ctx context.Context, ownerID, saleID int64, cause error) {
	util.CompensationsPending.Inc()
	e.logger.Error("Sale compensation deferred to repair",
		zap.Int64("sale_id", saleID),
		zap.Error(cause))

	e.publish("CompensationPending", func() error {
		return e.events.PublishCompensationPending(ctx, &models.CompensationPendingEvent{
			BaseEvent: e.newBaseEvent(models.EventTypeCompensationPending, ownerID),
			SaleID:    saleID,
			Reason:    cause.Error(),
		})
	})
}

// HandleCompensationPending completes a deferred compensation. Each event
// is applied at most once.
func (e *Engine) HandleCompensationPending(ctx context.Context, event *models.CompensationPendingEvent) (err error) {
	ctx, span := util.StartSpan(ctx, "Engine.HandleCompensationPending", event.OwnerID)
	defer func() { util.EndSpan(span, err) }()

	e.logger.Info("Handling pending compensation",
		zap.Int64("sale_id", event.SaleID),
		zap.String("event_id", event.EventID))

	sale, err := e.compensate(ctx, event.OwnerID, event.SaleID, event.EventID)
	if err != nil {
		util.CompensationRepairsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to repair sale %d: %w", event.SaleID, err)
	}
	if sale == nil {
		util.CompensationRepairsTotal.WithLabelValues("duplicate").Inc()
		return nil
	}
	util.CompensationRepairsTotal.WithLabelValues("applied").Inc()
	return nil
}

// RepairPendingCompensations sweeps up to limit sales whose compensation
// is still pending and reports how many were repaired.
func (e *Engine) RepairPendingCompensations(ctx context.Context, limit int) (int, error) {
	ctx, span := util.StartSpan(ctx, "Engine.RepairPendingCompensations", 0)
	defer span.End()

	var pending []models.Sale
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		pending, err = tx.ListPendingCompensations(ctx, limit)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list pending compensations: %w", err)
	}

	repaired := 0
	for _, sale := range pending {
		if _, err := e.compensate(ctx, sale.OwnerID, sale.ID, ""); err != nil {
			util.CompensationRepairsTotal.WithLabelValues("failed").Inc()
			e.logger.Error("Compensation repair failed",
				zap.Int64("sale_id", sale.ID),
				zap.Error(err))
			continue
		}
		util.CompensationRepairsTotal.WithLabelValues("applied").Inc()
		repaired++
	}

	if repaired > 0 {
		e.logger.Info("Pending compensations repaired", zap.Int("count", repaired))
	}
	return repaired, nil
}

// GetSale retrieves a sale with its lines
func (e *Engine) GetSale(ctx context.Context, ownerID, saleID int64) (*models.Sale, error) {
	var sale *models.Sale
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		sale, err = tx.GetSale(ctx, ownerID, saleID)
		return err
	})
	return sale, err
}

// ListSales returns an owner's sales, newest first
func (e *Engine) ListSales(ctx context.Context, ownerID int64) ([]models.Sale, error) {
	var sales []models.Sale
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		sales, err = tx.ListSales(ctx, ownerID)
		return err
	})
	return sales, err
}

// ListReconciliationIssues returns an owner's issues, newest first
func (e *Engine) ListReconciliationIssues(ctx context.Context, ownerID int64) ([]models.ReconciliationIssue, error) {
	var issues []models.ReconciliationIssue
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		issues, err = tx.ListReconciliationIssues(ctx, ownerID)
		return err
	})
	return issues, err
}

func saleStockLines(sale *models.Sale) []models.StockLineData {
	lines := make([]models.StockLineData, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		lines = append(lines, models.StockLineData{
			ItemID:   line.ItemID,
			Barcode:  line.Barcode,
			Quantity: line.Quantity,
		})
	}
	return lines
}
