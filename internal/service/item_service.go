package service

import (
	"context"
	"fmt"

	"inventory-service/config"
	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

// StockLevel is the current quantity of one item
type StockLevel struct {
	ItemID   int64  `json:"item_id"`
	Quantity int    `json:"quantity"`
	Status   string `json:"status"`
	Source   string `json:"source"`
}

// CreateItem adds an item by direct entry
func (e *Engine) CreateItem(ctx context.Context, ownerID int64, req *CreateItemRequest) (item *models.Item, err error) {
	ctx, span := util.StartSpan(ctx, "Engine.CreateItem", ownerID)
	defer func() { util.EndSpan(span, err) }()

	if err := req.validate(); err != nil {
		return nil, err
	}

	err = e.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		item, err = NewItemLedger(tx).CreateItem(ctx, ownerID, req.Barcode, req.Name, req.Quantity, req.Price)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Item created", zap.Int64("item_id", item.ID), zap.String("barcode", item.Barcode))
	e.syncStock(ctx, []models.Item{*item})
	return item, nil
}

// ListItems returns every item of an owner
func (e *Engine) ListItems(ctx context.Context, ownerID int64) ([]models.Item, error) {
	var items []models.Item
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		items, err = tx.ListItems(ctx, ownerID)
		return err
	})
	return items, err
}

// DeleteItem removes an item. Under the block_referenced policy an item
// still named by a sale or purchase order line is kept and Conflict is
// returned.
func (e *Engine) DeleteItem(ctx context.Context, ownerID, itemID int64) (err error) {
	ctx, span := util.StartSpan(ctx, "Engine.DeleteItem", ownerID)
	defer func() { util.EndSpan(span, err) }()

	err = e.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetItem(ctx, ownerID, itemID); err != nil {
			return err
		}

		if e.policy.ItemDelete == config.ItemDeleteBlockReferenced {
			refs, err := tx.CountItemReferences(ctx, ownerID, itemID)
			if err != nil {
				return fmt.Errorf("failed to count item references: %w", err)
			}
			if refs > 0 {
				return models.Conflict("item", itemID,
					fmt.Sprintf("item %d is referenced by %d sale or purchase order lines", itemID, refs))
			}
		}

		return tx.DeleteItem(ctx, ownerID, itemID)
	})
	if err != nil {
		return err
	}

	if e.cache != nil {
		if err := e.cache.DeleteStock(ctx, ownerID, itemID); err != nil {
			e.logger.Warn("Failed to evict stock cache", zap.Int64("item_id", itemID), zap.Error(err))
		}
	}

	e.logger.Info("Item deleted", zap.Int64("item_id", itemID))
	return nil
}

// GetItemStock reads an item's quantity from the cache, falling back to
// storage and refilling the cache on a miss.
func (e *Engine) GetItemStock(ctx context.Context, ownerID, itemID int64) (*StockLevel, error) {
	if e.cache != nil {
		qty, status, found, err := e.cache.GetStock(ctx, ownerID, itemID)
		if err != nil {
			e.logger.Warn("Stock cache read failed", zap.Int64("item_id", itemID), zap.Error(err))
		} else if found {
			return &StockLevel{ItemID: itemID, Quantity: qty, Status: status, Source: "cache"}, nil
		}
	}

	var item *models.Item
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		item, err = tx.GetItem(ctx, ownerID, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.SetStock(ctx, ownerID, itemID, item.Quantity, item.Status, item.UpdatedAt.UnixMicro()); err != nil {
			e.logger.Warn("Failed to fill stock cache", zap.Int64("item_id", itemID), zap.Error(err))
		}
	}
	return &StockLevel{ItemID: itemID, Quantity: item.Quantity, Status: item.Status, Source: "storage"}, nil
}

// CreateClient adds a client with empty purchase statistics
func (e *Engine) CreateClient(ctx context.Context, ownerID int64, req *CreateClientRequest) (client *models.Client, err error) {
	ctx, span := util.StartSpan(ctx, "Engine.CreateClient", ownerID)
	defer func() { util.EndSpan(span, err) }()

	if err := req.validate(); err != nil {
		return nil, err
	}

	client = &models.Client{OwnerID: ownerID, Name: req.Name, Email: req.Email, Phone: req.Phone}
	err = e.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.CreateClient(ctx, client)
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// GetClient retrieves a client with its purchase statistics
func (e *Engine) GetClient(ctx context.Context, ownerID, clientID int64) (*models.Client, error) {
	var client *models.Client
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		client, err = tx.GetClient(ctx, ownerID, clientID)
		return err
	})
	return client, err
}
