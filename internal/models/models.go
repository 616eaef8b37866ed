package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LowStockThreshold is the highest quantity still reported as low stock.
const LowStockThreshold = 5

// MoneyPlaces is the minor-unit precision used for every monetary amount.
const MoneyPlaces = 2

// Item statuses
const (
	ItemStatusAvailable  = "available"
	ItemStatusLowStock   = "low_stock"
	ItemStatusOutOfStock = "out_of_stock"
)

// Sale statuses
const (
	SaleStatusCompleted = "completed"
	SaleStatusCancelled = "cancelled"
)

// Sale compensation states
const (
	CompensationNone    = "none"
	CompensationPending = "pending"
	CompensationApplied = "applied"
)

// Purchase order statuses
const (
	PurchaseOrderStatusPending   = "pending"
	PurchaseOrderStatusArrived   = "arrived"
	PurchaseOrderStatusCancelled = "cancelled"
)

// Payment methods
const (
	PaymentMethodCash         = "cash"
	PaymentMethodCard         = "card"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodOther        = "other"
)

// Item is a stock-keeping unit owned by one account.
type Item struct {
	ID        int64           `db:"id" json:"id"`
	OwnerID   int64           `db:"owner_id" json:"owner_id"`
	Barcode   string          `db:"barcode" json:"barcode"`
	Name      string          `db:"name" json:"name"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Status    string          `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// StockStatus derives the item status from a quantity.
func StockStatus(quantity int) string {
	switch {
	case quantity <= 0:
		return ItemStatusOutOfStock
	case quantity <= LowStockThreshold:
		return ItemStatusLowStock
	default:
		return ItemStatusAvailable
	}
}

// Client holds aggregate purchase statistics for a customer.
type Client struct {
	ID             int64           `db:"id" json:"id"`
	OwnerID        int64           `db:"owner_id" json:"owner_id"`
	Name           string          `db:"name" json:"name"`
	Email          string          `db:"email" json:"email,omitempty"`
	Phone          string          `db:"phone" json:"phone,omitempty"`
	TotalPurchases int             `db:"total_purchases" json:"total_purchases"`
	TotalSpent     decimal.Decimal `db:"total_spent" json:"total_spent"`
	LastPurchase   *time.Time      `db:"last_purchase" json:"last_purchase,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// Sale is a completed point-of-sale transaction. Only Status and
// Compensation change after creation.
type Sale struct {
	ID             int64           `db:"id" json:"id"`
	OwnerID        int64           `db:"owner_id" json:"owner_id"`
	ClientID       int64           `db:"client_id" json:"client_id"`
	ClientName     string          `db:"client_name" json:"client_name"`
	Subtotal       decimal.Decimal `db:"subtotal" json:"subtotal"`
	Tax            decimal.Decimal `db:"tax" json:"tax"`
	Discount       decimal.Decimal `db:"discount" json:"discount"`
	Total          decimal.Decimal `db:"total" json:"total"`
	PaymentMethod  string          `db:"payment_method" json:"payment_method"`
	Notes          string          `db:"notes" json:"notes,omitempty"`
	Status         string          `db:"status" json:"status"`
	Compensation   string          `db:"compensation" json:"compensation"`
	IdempotencyKey *string         `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	CancelledAt    *time.Time      `db:"cancelled_at" json:"cancelled_at,omitempty"`
	Lines          []SaleLine      `db:"-" json:"items"`
}

// SaleLine snapshots the item at the time of sale.
type SaleLine struct {
	ID        int64           `db:"id" json:"id"`
	SaleID    int64           `db:"sale_id" json:"sale_id"`
	ItemID    int64           `db:"item_id" json:"item_id"`
	ItemName  string          `db:"item_name" json:"item_name"`
	Barcode   string          `db:"barcode" json:"barcode"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	LineTotal decimal.Decimal `db:"line_total" json:"line_total"`
}

// PurchaseOrder is a dealer order that feeds stock on arrival.
type PurchaseOrder struct {
	ID                   int64               `db:"id" json:"id"`
	OwnerID              int64               `db:"owner_id" json:"owner_id"`
	OrderNumber          string              `db:"order_number" json:"order_number"`
	DealerName           string              `db:"dealer_name" json:"dealer_name"`
	DealerContact        string              `db:"dealer_contact" json:"dealer_contact,omitempty"`
	DealerEmail          string              `db:"dealer_email" json:"dealer_email,omitempty"`
	Subtotal             decimal.Decimal     `db:"subtotal" json:"subtotal"`
	Tax                  decimal.Decimal     `db:"tax" json:"tax"`
	ShippingCost         decimal.Decimal     `db:"shipping_cost" json:"shipping_cost"`
	TotalCost            decimal.Decimal     `db:"total_cost" json:"total_cost"`
	Status               string              `db:"status" json:"status"`
	ProcessedToInventory bool                `db:"processed_to_inventory" json:"processed_to_inventory"`
	Notes                string              `db:"notes" json:"notes,omitempty"`
	ExpectedDeliveryDate *time.Time          `db:"expected_delivery_date" json:"expected_delivery_date,omitempty"`
	ActualDeliveryDate   *time.Time          `db:"actual_delivery_date" json:"actual_delivery_date,omitempty"`
	CreatedAt            time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time           `db:"updated_at" json:"updated_at"`
	Lines                []PurchaseOrderLine `db:"-" json:"items"`
}

// PurchaseOrderLine references an existing item or describes one to create.
type PurchaseOrderLine struct {
	ID              int64           `db:"id" json:"id"`
	PurchaseOrderID int64           `db:"purchase_order_id" json:"purchase_order_id"`
	ItemName        string          `db:"item_name" json:"item_name"`
	ItemBarcode     string          `db:"item_barcode" json:"item_barcode"`
	Quantity        int             `db:"quantity" json:"quantity"`
	UnitCost        decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	TotalCost       decimal.Decimal `db:"total_cost" json:"total_cost"`
	SellingPrice    decimal.Decimal `db:"selling_price" json:"selling_price"`
	ExistingItemID  *int64          `db:"existing_item_id" json:"existing_item_id,omitempty"`
	IsNewItem       bool            `db:"is_new_item" json:"is_new_item"`
}

// ReconciliationIssue records a compensation that could not be applied.
type ReconciliationIssue struct {
	ID        int64     `db:"id" json:"id"`
	OwnerID   int64     `db:"owner_id" json:"owner_id"`
	SaleID    int64     `db:"sale_id" json:"sale_id"`
	ItemID    int64     `db:"item_id" json:"item_id"`
	Barcode   string    `db:"barcode" json:"barcode"`
	Quantity  int       `db:"quantity" json:"quantity"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

// Money rounds an amount to the minor unit.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}
