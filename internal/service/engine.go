package service

import (
	"context"
	"fmt"
	"time"

	"inventory-service/config"
	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventPublisher receives domain events after their unit of work commits
type EventPublisher interface {
	PublishSaleCreated(ctx context.Context, event *models.SaleCreatedEvent) error
	PublishSaleCancelled(ctx context.Context, event *models.SaleCancelledEvent) error
	PublishCompensationPending(ctx context.Context, event *models.CompensationPendingEvent) error
	PublishPurchaseOrderSubmitted(ctx context.Context, event *models.PurchaseOrderSubmittedEvent) error
	PublishPurchaseOrderArrived(ctx context.Context, event *models.PurchaseOrderArrivedEvent) error
	PublishStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error
}

// Locker provides short-lived exclusive locks keyed by entity
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// StockCache mirrors committed item quantities
type StockCache interface {
	SetStock(ctx context.Context, ownerID, itemID int64, quantity int, status string, version int64) error
	GetStock(ctx context.Context, ownerID, itemID int64) (quantity int, status string, found bool, err error)
	DeleteStock(ctx context.Context, ownerID, itemID int64) error
}

// Options tunes engine behaviour
type Options struct {
	Policy  config.PolicyConfig
	LockTTL time.Duration
}

// Engine sequences the item ledger, client ledger, sale processor and
// purchase order workflow. Every request runs as one or more units of work
// against the repository; locks, cache and events are optional.
type Engine struct {
	repo    store.Repository
	locker  Locker
	cache   StockCache
	events  EventPublisher
	sales   *SaleProcessor
	orders  *PurchaseOrderWorkflow
	policy  config.PolicyConfig
	lockTTL time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewEngine creates a new engine. locker, cache and events may be nil.
func NewEngine(
	repo store.Repository,
	locker Locker,
	cache StockCache,
	events EventPublisher,
	opts Options,
) *Engine {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	if opts.Policy.ItemDelete == "" {
		opts.Policy.ItemDelete = config.ItemDeleteAllow
	}

	e := &Engine{
		repo:    repo,
		locker:  locker,
		cache:   cache,
		events:  events,
		policy:  opts.Policy,
		lockTTL: opts.LockTTL,
		now:     time.Now,
		logger:  util.GetLogger(),
	}
	e.sales = &SaleProcessor{policy: opts.Policy, now: e.clock}
	e.orders = &PurchaseOrderWorkflow{now: e.clock}
	return e
}

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

// withLock runs fn while holding the entity lock. A lock held by someone
// else fails with Conflict; an unreachable lock service is logged and
// ignored because storage conditional updates still guard correctness.
func (e *Engine) withLock(ctx context.Context, operation, entity string, id int64, fn func() error) error {
	if e.locker == nil {
		return fn()
	}

	key := fmt.Sprintf("%s:%d", entity, id)
	token, ok, err := e.locker.AcquireLock(ctx, key, e.lockTTL)
	if err != nil {
		e.logger.Warn("Lock service unavailable, continuing without lock",
			zap.String("key", key),
			zap.Error(err))
		return fn()
	}
	if !ok {
		util.LockContentionTotal.WithLabelValues(operation).Inc()
		return models.Conflict(entity, id, fmt.Sprintf("%s %d is being processed by another request", entity, id))
	}

	defer func() {
		if err := e.locker.ReleaseLock(context.Background(), key, token); err != nil {
			e.logger.Warn("Failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}()

	return fn()
}

// syncStock mirrors committed item state into the cache and announces it
func (e *Engine) syncStock(ctx context.Context, items []models.Item) {
	for i := range items {
		item := &items[i]
		if e.cache != nil {
			err := e.cache.SetStock(ctx, item.OwnerID, item.ID, item.Quantity, item.Status, item.UpdatedAt.UnixMicro())
			if err != nil {
				e.logger.Warn("Failed to update stock cache",
					zap.Int64("item_id", item.ID),
					zap.Error(err))
			}
		}

		e.publish("StockAdjusted", func() error {
			return e.events.PublishStockAdjusted(ctx, &models.StockAdjustedEvent{
				BaseEvent: e.newBaseEvent(models.EventTypeStockAdjusted, item.OwnerID),
				ItemID:    item.ID,
				Quantity:  item.Quantity,
				Status:    item.Status,
			})
		})
	}
}

// publish is best-effort: the unit of work has already committed
func (e *Engine) publish(name string, fn func() error) {
	if e.events == nil {
		return
	}
	if err := fn(); err != nil {
		e.logger.Error("Failed to publish event", zap.String("event", name), zap.Error(err))
	}
}

func (e *Engine) newBaseEvent(eventType string, ownerID int64) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		OwnerID:   ownerID,
		Timestamp: e.clock(),
	}
}

func observeStockAdjust(start time.Time) {
	util.StockAdjustLatency.Observe(time.Since(start).Seconds())
}

// failureReason labels a failure metric by error kind
func failureReason(err error) string {
	if kind := models.KindOf(err); kind != "" {
		return string(kind)
	}
	return "storage_error"
}
