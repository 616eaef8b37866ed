package service

import (
	"context"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

// SubmitPurchaseOrder records a pending dealer order
func (e *Engine) SubmitPurchaseOrder(ctx context.Context, ownerID int64, req *SubmitPurchaseOrderRequest) (order *models.PurchaseOrder, err error) {
	ctx, span := util.StartSpan(ctx, "Engine.SubmitPurchaseOrder", ownerID)
	defer func() { util.EndSpan(span, err) }()

	if err := req.validate(); err != nil {
		return nil, err
	}

	err = e.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		order, err = e.orders.Submit(ctx, tx, ownerID, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	util.PurchaseOrdersSubmittedTotal.Inc()
	e.logger.Info("Purchase order submitted",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber))

	e.publish("PurchaseOrderSubmitted", func() error {
		return e.events.PublishPurchaseOrderSubmitted(ctx, &models.PurchaseOrderSubmittedEvent{
			BaseEvent:   e.newBaseEvent(models.EventTypePurchaseOrderSubmitted, ownerID),
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			TotalCost:   order.TotalCost,
		})
	})

	return order, nil
}

// MarkOrderArrived applies a pending order's stock exactly once. Repeating
// the call returns the arrived order unchanged. A failing line leaves the
// order pending with no stock applied.
func (e *Engine) MarkOrderArrived(ctx context.Context, ownerID, orderID int64) (order *models.PurchaseOrder, err error) {
	ctx, span := util.StartSpan(ctx, "Engine.MarkOrderArrived", ownerID)
	defer func() { util.EndSpan(span, err) }()

	var result *arrivalResult
	err = e.withLock(ctx, "mark_arrived", "purchase_order", orderID, func() error {
		start := time.Now()
		defer observeStockAdjust(start)

		return e.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			result, err = e.orders.MarkArrived(ctx, tx, ownerID, orderID)
			return err
		})
	})
	if err != nil {
		util.ArrivalFailuresTotal.WithLabelValues(failureReason(err)).Inc()
		e.logger.Warn("Purchase order arrival failed",
			zap.Int64("order_id", orderID),
			zap.Error(err))
		return nil, err
	}

	if !result.applied {
		util.ArrivalReplaysTotal.Inc()
		e.logger.Info("Purchase order already arrived", zap.Int64("order_id", orderID))
		return result.order, nil
	}

	util.PurchaseOrdersArrivedTotal.Inc()
	e.logger.Info("Purchase order arrival applied",
		zap.Int64("order_id", orderID),
		zap.Int("lines", len(result.order.Lines)))

	e.syncStock(ctx, result.items)
	e.publish("PurchaseOrderArrived", func() error {
		lines := make([]models.StockLineData, 0, len(result.order.Lines))
		for _, line := range result.order.Lines {
			data := models.StockLineData{Barcode: line.ItemBarcode, Quantity: line.Quantity}
			if line.ExistingItemID != nil {
				data.ItemID = *line.ExistingItemID
			}
			lines = append(lines, data)
		}
		return e.events.PublishPurchaseOrderArrived(ctx, &models.PurchaseOrderArrivedEvent{
			BaseEvent:   e.newBaseEvent(models.EventTypePurchaseOrderArrived, ownerID),
			OrderID:     result.order.ID,
			OrderNumber: result.order.OrderNumber,
			Lines:       lines,
		})
	})

	return result.order, nil
}

// CancelPurchaseOrder moves a pending order to cancelled
func (e *Engine) CancelPurchaseOrder(ctx context.Context, ownerID, orderID int64) (order *models.PurchaseOrder, err error) {
	ctx, span := util.StartSpan(ctx, "Engine.CancelPurchaseOrder", ownerID)
	defer func() { util.EndSpan(span, err) }()

	err = e.withLock(ctx, "cancel_purchase_order", "purchase_order", orderID, func() error {
		return e.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			order, err = e.orders.Cancel(ctx, tx, ownerID, orderID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Purchase order cancelled", zap.Int64("order_id", orderID))
	return order, nil
}

// DeletePurchaseOrder removes an order in any state. Stock already applied
// by its arrival stays in place.
func (e *Engine) DeletePurchaseOrder(ctx context.Context, ownerID, orderID int64) (err error) {
	ctx, span := util.StartSpan(ctx, "Engine.DeletePurchaseOrder", ownerID)
	defer func() { util.EndSpan(span, err) }()

	err = e.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.DeletePurchaseOrder(ctx, ownerID, orderID)
	})
	if err != nil {
		return err
	}

	e.logger.Info("Purchase order deleted", zap.Int64("order_id", orderID))
	return nil
}

// GetPurchaseOrder retrieves an order with its lines
func (e *Engine) GetPurchaseOrder(ctx context.Context, ownerID, orderID int64) (*models.PurchaseOrder, error) {
	var order *models.PurchaseOrder
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		order, err = tx.GetPurchaseOrder(ctx, ownerID, orderID)
		return err
	})
	return order, err
}

// ListPurchaseOrders returns an owner's orders, newest first
func (e *Engine) ListPurchaseOrders(ctx context.Context, ownerID int64) ([]models.PurchaseOrder, error) {
	var orders []models.PurchaseOrder
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		orders, err = tx.ListPurchaseOrders(ctx, ownerID)
		return err
	})
	return orders, err
}
