package store

import (
	"context"
	"time"

	"inventory-service/internal/models"

	"github.com/shopspring/decimal"
)

// Repository runs units of work against persistent storage.
type Repository interface {
	// WithTx runs fn as one atomic unit. Any error returned by fn rolls back
	// every write made through tx.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}

// Tx is the storage surface available inside a unit of work. Lookups scoped
// by owner return a models.NotFound error for foreign records.
type Tx interface {
	ItemStore
	ClientStore
	SaleStore
	PurchaseOrderStore
	ReconciliationStore
	EventStore
}

// ItemStore persists items.
type ItemStore interface {
	GetItem(ctx context.Context, ownerID, itemID int64) (*models.Item, error)
	// LockItems loads and row-locks the given items in id order. Missing ids
	// are absent from the result.
	LockItems(ctx context.Context, ownerID int64, itemIDs []int64) (map[int64]*models.Item, error)
	// FindItemByBarcode returns nil, nil when no item matches.
	FindItemByBarcode(ctx context.Context, ownerID int64, barcode string) (*models.Item, error)
	ListItems(ctx context.Context, ownerID int64) ([]models.Item, error)
	CreateItem(ctx context.Context, item *models.Item) error
	// AdjustItemQuantity applies quantity += delta as one conditional write
	// and recomputes status in the same statement.
	AdjustItemQuantity(ctx context.Context, itemID int64, delta int) (*models.Item, error)
	DeleteItem(ctx context.Context, ownerID, itemID int64) error
	CountItemReferences(ctx context.Context, ownerID, itemID int64) (int, error)
}

// ClientStore persists clients and their purchase aggregates.
type ClientStore interface {
	CreateClient(ctx context.Context, client *models.Client) error
	GetClient(ctx context.Context, ownerID, clientID int64) (*models.Client, error)
	RecordClientPurchase(ctx context.Context, clientID int64, amount decimal.Decimal, at time.Time) (*models.Client, error)
	ReverseClientPurchase(ctx context.Context, clientID int64, amount decimal.Decimal) (*models.Client, error)
	SetClientLastPurchase(ctx context.Context, clientID int64, at *time.Time) error
	// LatestCompletedSaleAt returns nil when the client has no completed sale.
	LatestCompletedSaleAt(ctx context.Context, clientID int64) (*time.Time, error)
}

// SaleStore persists sales.
type SaleStore interface {
	CreateSale(ctx context.Context, sale *models.Sale) error
	GetSale(ctx context.Context, ownerID, saleID int64) (*models.Sale, error)
	// ListSales returns the owner's sales with lines, newest first.
	ListSales(ctx context.Context, ownerID int64) ([]models.Sale, error)
	// GetSaleByIdempotencyKey returns nil, nil when the key is unused.
	GetSaleByIdempotencyKey(ctx context.Context, ownerID int64, key string) (*models.Sale, error)
	// TransitionSaleCancelled moves completed -> cancelled with a pending
	// compensation. It reports false when the sale was not completed.
	TransitionSaleCancelled(ctx context.Context, ownerID, saleID int64, at time.Time) (bool, error)
	// ClaimSaleCompensation moves compensation pending -> applied and reports
	// whether this caller won the claim.
	ClaimSaleCompensation(ctx context.Context, saleID int64) (bool, error)
	ListPendingCompensations(ctx context.Context, limit int) ([]models.Sale, error)
}

// PurchaseOrderStore persists purchase orders.
type PurchaseOrderStore interface {
	CreatePurchaseOrder(ctx context.Context, order *models.PurchaseOrder) error
	GetPurchaseOrder(ctx context.Context, ownerID, orderID int64) (*models.PurchaseOrder, error)
	// ListPurchaseOrders returns the owner's orders with lines, newest first.
	ListPurchaseOrders(ctx context.Context, ownerID int64) ([]models.PurchaseOrder, error)
	// ClaimPurchaseOrderArrival moves pending -> arrived, sets
	// processed_to_inventory and actual_delivery_date, and reports whether
	// this caller performed the transition.
	ClaimPurchaseOrderArrival(ctx context.Context, ownerID, orderID int64, at time.Time) (bool, error)
	LinkPurchaseOrderLine(ctx context.Context, lineID, itemID int64) error
	TransitionPurchaseOrderCancelled(ctx context.Context, ownerID, orderID int64) (bool, error)
	DeletePurchaseOrder(ctx context.Context, ownerID, orderID int64) error
}

// ReconciliationStore records compensations that need manual attention.
type ReconciliationStore interface {
	RecordReconciliationIssue(ctx context.Context, issue *models.ReconciliationIssue) error
	ListReconciliationIssues(ctx context.Context, ownerID int64) ([]models.ReconciliationIssue, error)
}

// EventStore tracks consumed events.
type EventStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

var (
	_ Repository = (*Store)(nil)
	_ Repository = (*Memory)(nil)
	_ Tx         = (*txStore)(nil)
	_ Tx         = (*memTx)(nil)
)
