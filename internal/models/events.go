package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeSaleCreated            = "SALE_CREATED"
	EventTypeSaleCancelled          = "SALE_CANCELLED"
	EventTypePurchaseOrderSubmitted = "PURCHASE_ORDER_SUBMITTED"
	EventTypePurchaseOrderArrived   = "PURCHASE_ORDER_ARRIVED"
	EventTypeCompensationPending    = "COMPENSATION_PENDING"
	EventTypeStockAdjusted          = "STOCK_ADJUSTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	OwnerID   int64     `json:"owner_id"`
	Timestamp time.Time `json:"timestamp"`
}

// SaleCreatedEvent published after a sale commits
type SaleCreatedEvent struct {
	BaseEvent
	SaleID   int64           `json:"sale_id"`
	ClientID int64           `json:"client_id"`
	Total    decimal.Decimal `json:"total"`
	Lines    []StockLineData `json:"lines"`
}

// SaleCancelledEvent published once a sale's compensations are applied
type SaleCancelledEvent struct {
	BaseEvent
	SaleID   int64           `json:"sale_id"`
	ClientID int64           `json:"client_id"`
	Total    decimal.Decimal `json:"total"`
	Lines    []StockLineData `json:"lines"`
}

// CompensationPendingEvent asks the repair worker to finish a cancellation
type CompensationPendingEvent struct {
	BaseEvent
	SaleID int64  `json:"sale_id"`
	Reason string `json:"reason"`
}

// PurchaseOrderSubmittedEvent published when an order is accepted
type PurchaseOrderSubmittedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	TotalCost   decimal.Decimal `json:"total_cost"`
}

// PurchaseOrderArrivedEvent published when arrival effects are applied
type PurchaseOrderArrivedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Lines       []StockLineData `json:"lines"`
}

// StockAdjustedEvent carries the post-commit state of one item
type StockAdjustedEvent struct {
	BaseEvent
	ItemID   int64  `json:"item_id"`
	Quantity int    `json:"quantity"`
	Status   string `json:"status"`
}

// StockLineData represents one stock movement in events
type StockLineData struct {
	ItemID   int64  `json:"item_id"`
	Barcode  string `json:"barcode"`
	Quantity int    `json:"quantity"`
}
