package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"inventory-service/internal/models"

	"github.com/shopspring/decimal"
)

// Memory is a Repository kept in process memory. Units of work are
// serialized and run against a copy of the state that replaces the live
// state only when fn succeeds.
type Memory struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	nextID  int64
	items   map[int64]models.Item
	clients map[int64]models.Client
	sales   map[int64]models.Sale
	orders  map[int64]models.PurchaseOrder
	issues  []models.ReconciliationIssue
	events  map[string]models.ProcessedEvent
}

// NewMemory creates an empty in-memory repository
func NewMemory() *Memory {
	return &Memory{state: &memState{
		items:   make(map[int64]models.Item),
		clients: make(map[int64]models.Client),
		sales:   make(map[int64]models.Sale),
		orders:  make(map[int64]models.PurchaseOrder),
		events:  make(map[string]models.ProcessedEvent),
	}}
}

// WithTx runs fn against a snapshot and commits it on success
func (m *Memory) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := m.state.clone()
	if err := fn(ctx, &memTx{s: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

// Close is a no-op
func (m *Memory) Close() error {
	return nil
}

func (s *memState) clone() *memState {
	c := &memState{
		nextID:  s.nextID,
		items:   make(map[int64]models.Item, len(s.items)),
		clients: make(map[int64]models.Client, len(s.clients)),
		sales:   make(map[int64]models.Sale, len(s.sales)),
		orders:  make(map[int64]models.PurchaseOrder, len(s.orders)),
		issues:  append([]models.ReconciliationIssue(nil), s.issues...),
		events:  make(map[string]models.ProcessedEvent, len(s.events)),
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.clients {
		c.clients[k] = v
	}
	for k, v := range s.sales {
		c.sales[k] = cloneSale(v)
	}
	for k, v := range s.orders {
		c.orders[k] = cloneOrder(v)
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	return c
}

func cloneSale(s models.Sale) models.Sale {
	s.Lines = append([]models.SaleLine(nil), s.Lines...)
	return s
}

func cloneOrder(o models.PurchaseOrder) models.PurchaseOrder {
	o.Lines = append([]models.PurchaseOrderLine(nil), o.Lines...)
	return o
}

type memTx struct {
	s *memState
}

func (t *memTx) id() int64 {
	t.s.nextID++
	return t.s.nextID
}

func (t *memTx) GetItem(_ context.Context, ownerID, itemID int64) (*models.Item, error) {
	item, ok := t.s.items[itemID]
	if !ok || item.OwnerID != ownerID {
		return nil, models.NotFound("item", itemID)
	}
	return &item, nil
}

func (t *memTx) LockItems(_ context.Context, ownerID int64, itemIDs []int64) (map[int64]*models.Item, error) {
	result := make(map[int64]*models.Item, len(itemIDs))
	for _, id := range itemIDs {
		item, ok := t.s.items[id]
		if !ok || item.OwnerID != ownerID {
			continue
		}
		result[id] = &item
	}
	return result, nil
}

func (t *memTx) FindItemByBarcode(_ context.Context, ownerID int64, barcode string) (*models.Item, error) {
	for _, item := range t.s.items {
		if item.OwnerID == ownerID && item.Barcode == barcode {
			found := item
			return &found, nil
		}
	}
	return nil, nil
}

func (t *memTx) ListItems(_ context.Context, ownerID int64) ([]models.Item, error) {
	var items []models.Item
	for _, item := range t.s.items {
		if item.OwnerID == ownerID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (t *memTx) CreateItem(ctx context.Context, item *models.Item) error {
	existing, _ := t.FindItemByBarcode(ctx, item.OwnerID, item.Barcode)
	if existing != nil {
		return models.DuplicateBarcode(item.Barcode)
	}
	now := time.Now()
	item.ID = t.id()
	item.Status = models.StockStatus(item.Quantity)
	item.CreatedAt = now
	item.UpdatedAt = now
	t.s.items[item.ID] = *item
	return nil
}

func (t *memTx) AdjustItemQuantity(_ context.Context, itemID int64, delta int) (*models.Item, error) {
	item, ok := t.s.items[itemID]
	if !ok {
		return nil, models.NotFound("item", itemID)
	}
	if item.Quantity+delta < 0 {
		return nil, models.NegativeQuantity(itemID, item.Quantity, delta)
	}
	item.Quantity += delta
	item.Status = models.StockStatus(item.Quantity)
	item.UpdatedAt = time.Now()
	t.s.items[itemID] = item
	return &item, nil
}

func (t *memTx) DeleteItem(_ context.Context, ownerID, itemID int64) error {
	item, ok := t.s.items[itemID]
	if !ok || item.OwnerID != ownerID {
		return models.NotFound("item", itemID)
	}
	delete(t.s.items, itemID)
	return nil
}

func (t *memTx) CountItemReferences(_ context.Context, ownerID, itemID int64) (int, error) {
	count := 0
	for _, sale := range t.s.sales {
		if sale.OwnerID != ownerID {
			continue
		}
		for _, line := range sale.Lines {
			if line.ItemID == itemID {
				count++
			}
		}
	}
	for _, order := range t.s.orders {
		if order.OwnerID != ownerID {
			continue
		}
		for _, line := range order.Lines {
			if line.ExistingItemID != nil && *line.ExistingItemID == itemID {
				count++
			}
		}
	}
	return count, nil
}

func (t *memTx) CreateClient(_ context.Context, client *models.Client) error {
	client.ID = t.id()
	client.TotalPurchases = 0
	client.TotalSpent = decimal.Zero
	client.CreatedAt = time.Now()
	t.s.clients[client.ID] = *client
	return nil
}

func (t *memTx) GetClient(_ context.Context, ownerID, clientID int64) (*models.Client, error) {
	client, ok := t.s.clients[clientID]
	if !ok || client.OwnerID != ownerID {
		return nil, models.NotFound("client", clientID)
	}
	return &client, nil
}

func (t *memTx) RecordClientPurchase(_ context.Context, clientID int64, amount decimal.Decimal, at time.Time) (*models.Client, error) {
	client, ok := t.s.clients[clientID]
	if !ok {
		return nil, models.NotFound("client", clientID)
	}
	client.TotalPurchases++
	client.TotalSpent = client.TotalSpent.Add(amount)
	client.LastPurchase = &at
	t.s.clients[clientID] = client
	return &client, nil
}

func (t *memTx) ReverseClientPurchase(_ context.Context, clientID int64, amount decimal.Decimal) (*models.Client, error) {
	client, ok := t.s.clients[clientID]
	if !ok {
		return nil, models.NotFound("client", clientID)
	}
	client.TotalPurchases--
	client.TotalSpent = client.TotalSpent.Sub(amount)
	t.s.clients[clientID] = client
	return &client, nil
}

func (t *memTx) SetClientLastPurchase(_ context.Context, clientID int64, at *time.Time) error {
	client, ok := t.s.clients[clientID]
	if !ok {
		return models.NotFound("client", clientID)
	}
	client.LastPurchase = at
	t.s.clients[clientID] = client
	return nil
}

func (t *memTx) LatestCompletedSaleAt(_ context.Context, clientID int64) (*time.Time, error) {
	var latest *time.Time
	for _, sale := range t.s.sales {
		if sale.ClientID != clientID || sale.Status != models.SaleStatusCompleted {
			continue
		}
		if latest == nil || sale.CreatedAt.After(*latest) {
			at := sale.CreatedAt
			latest = &at
		}
	}
	return latest, nil
}

func (t *memTx) CreateSale(ctx context.Context, sale *models.Sale) error {
	if sale.IdempotencyKey != nil {
		existing, _ := t.GetSaleByIdempotencyKey(ctx, sale.OwnerID, *sale.IdempotencyKey)
		if existing != nil {
			return &models.Error{
				Kind:    models.KindDuplicateKey,
				Message: fmt.Sprintf("sale idempotency key already used: %s", *sale.IdempotencyKey),
				Entity:  "sale",
			}
		}
	}
	sale.ID = t.id()
	sale.CreatedAt = time.Now()
	for i := range sale.Lines {
		sale.Lines[i].ID = t.id()
		sale.Lines[i].SaleID = sale.ID
	}
	t.s.sales[sale.ID] = cloneSale(*sale)
	return nil
}

func (t *memTx) GetSale(_ context.Context, ownerID, saleID int64) (*models.Sale, error) {
	sale, ok := t.s.sales[saleID]
	if !ok || sale.OwnerID != ownerID {
		return nil, models.NotFound("sale", saleID)
	}
	sale = cloneSale(sale)
	return &sale, nil
}

func (t *memTx) ListSales(_ context.Context, ownerID int64) ([]models.Sale, error) {
	var sales []models.Sale
	for _, sale := range t.s.sales {
		if sale.OwnerID == ownerID {
			sales = append(sales, cloneSale(sale))
		}
	}
	sort.Slice(sales, func(i, j int) bool { return sales[i].ID > sales[j].ID })
	return sales, nil
}

func (t *memTx) GetSaleByIdempotencyKey(_ context.Context, ownerID int64, key string) (*models.Sale, error) {
	for _, sale := range t.s.sales {
		if sale.OwnerID == ownerID && sale.IdempotencyKey != nil && *sale.IdempotencyKey == key {
			found := cloneSale(sale)
			return &found, nil
		}
	}
	return nil, nil
}

func (t *memTx) TransitionSaleCancelled(_ context.Context, ownerID, saleID int64, at time.Time) (bool, error) {
	sale, ok := t.s.sales[saleID]
	if !ok || sale.OwnerID != ownerID || sale.Status != models.SaleStatusCompleted {
		return false, nil
	}
	sale.Status = models.SaleStatusCancelled
	sale.Compensation = models.CompensationPending
	sale.CancelledAt = &at
	t.s.sales[saleID] = sale
	return true, nil
}

func (t *memTx) ClaimSaleCompensation(_ context.Context, saleID int64) (bool, error) {
	sale, ok := t.s.sales[saleID]
	if !ok || sale.Compensation != models.CompensationPending {
		return false, nil
	}
	sale.Compensation = models.CompensationApplied
	t.s.sales[saleID] = sale
	return true, nil
}

func (t *memTx) ListPendingCompensations(_ context.Context, limit int) ([]models.Sale, error) {
	var sales []models.Sale
	for _, sale := range t.s.sales {
		if sale.Compensation == models.CompensationPending {
			sales = append(sales, cloneSale(sale))
		}
	}
	sort.Slice(sales, func(i, j int) bool { return sales[i].ID < sales[j].ID })
	if limit > 0 && len(sales) > limit {
		sales = sales[:limit]
	}
	return sales, nil
}

func (t *memTx) CreatePurchaseOrder(_ context.Context, order *models.PurchaseOrder) error {
	for _, existing := range t.s.orders {
		if existing.OwnerID == order.OwnerID && existing.OrderNumber == order.OrderNumber {
			return &models.Error{
				Kind:    models.KindDuplicateKey,
				Message: fmt.Sprintf("purchase order number already exists: %s", order.OrderNumber),
				Entity:  "purchase_order",
			}
		}
	}
	now := time.Now()
	order.ID = t.id()
	order.CreatedAt = now
	order.UpdatedAt = now
	for i := range order.Lines {
		order.Lines[i].ID = t.id()
		order.Lines[i].PurchaseOrderID = order.ID
	}
	t.s.orders[order.ID] = cloneOrder(*order)
	return nil
}

func (t *memTx) GetPurchaseOrder(_ context.Context, ownerID, orderID int64) (*models.PurchaseOrder, error) {
	order, ok := t.s.orders[orderID]
	if !ok || order.OwnerID != ownerID {
		return nil, models.NotFound("purchase_order", orderID)
	}
	order = cloneOrder(order)
	return &order, nil
}

func (t *memTx) ListPurchaseOrders(_ context.Context, ownerID int64) ([]models.PurchaseOrder, error) {
	var orders []models.PurchaseOrder
	for _, order := range t.s.orders {
		if order.OwnerID == ownerID {
			orders = append(orders, cloneOrder(order))
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID > orders[j].ID })
	return orders, nil
}

func (t *memTx) ClaimPurchaseOrderArrival(_ context.Context, ownerID, orderID int64, at time.Time) (bool, error) {
	order, ok := t.s.orders[orderID]
	if !ok || order.OwnerID != ownerID {
		return false, nil
	}
	if order.Status != models.PurchaseOrderStatusPending || order.ProcessedToInventory {
		return false, nil
	}
	order.Status = models.PurchaseOrderStatusArrived
	order.ProcessedToInventory = true
	order.ActualDeliveryDate = &at
	order.UpdatedAt = time.Now()
	t.s.orders[orderID] = order
	return true, nil
}

func (t *memTx) LinkPurchaseOrderLine(_ context.Context, lineID, itemID int64) error {
	for orderID, order := range t.s.orders {
		for i := range order.Lines {
			if order.Lines[i].ID != lineID {
				continue
			}
			id := itemID
			order.Lines[i].ExistingItemID = &id
			order.Lines[i].IsNewItem = false
			t.s.orders[orderID] = order
			return nil
		}
	}
	return nil
}

func (t *memTx) TransitionPurchaseOrderCancelled(_ context.Context, ownerID, orderID int64) (bool, error) {
	order, ok := t.s.orders[orderID]
	if !ok || order.OwnerID != ownerID || order.Status != models.PurchaseOrderStatusPending {
		return false, nil
	}
	order.Status = models.PurchaseOrderStatusCancelled
	order.UpdatedAt = time.Now()
	t.s.orders[orderID] = order
	return true, nil
}

func (t *memTx) DeletePurchaseOrder(_ context.Context, ownerID, orderID int64) error {
	order, ok := t.s.orders[orderID]
	if !ok || order.OwnerID != ownerID {
		return models.NotFound("purchase_order", orderID)
	}
	delete(t.s.orders, orderID)
	return nil
}

func (t *memTx) RecordReconciliationIssue(_ context.Context, issue *models.ReconciliationIssue) error {
	issue.ID = t.id()
	issue.CreatedAt = time.Now()
	t.s.issues = append(t.s.issues, *issue)
	return nil
}

func (t *memTx) ListReconciliationIssues(_ context.Context, ownerID int64) ([]models.ReconciliationIssue, error) {
	var issues []models.ReconciliationIssue
	for i := len(t.s.issues) - 1; i >= 0; i-- {
		if t.s.issues[i].OwnerID == ownerID {
			issues = append(issues, t.s.issues[i])
		}
	}
	return issues, nil
}

func (t *memTx) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	_, ok := t.s.events[eventID]
	return ok, nil
}

func (t *memTx) MarkEventProcessed(_ context.Context, eventID, eventType string) error {
	if _, ok := t.s.events[eventID]; ok {
		return nil
	}
	t.s.events[eventID] = models.ProcessedEvent{EventID: eventID, EventType: eventType, ProcessedAt: time.Now()}
	return nil
}
