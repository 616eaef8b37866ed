package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"inventory-service/internal/models"

	"github.com/shopspring/decimal"
)

// CreateClient inserts a client with zeroed purchase statistics
func (t *txStore) CreateClient(ctx context.Context, client *models.Client) error {
	client.TotalPurchases = 0
	client.TotalSpent = decimal.Zero

	query := `
		INSERT INTO clients (owner_id, name, email, phone)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return t.tx.GetContext(ctx, client, query,
		client.OwnerID, client.Name, client.Email, client.Phone)
}

// GetClient retrieves a client owned by ownerID
func (t *txStore) GetClient(ctx context.Context, ownerID, clientID int64) (*models.Client, error) {
	var client models.Client
	err := t.tx.GetContext(ctx, &client,
		"SELECT * FROM clients WHERE id = $1 AND owner_id = $2", clientID, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound("client", clientID)
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// RecordClientPurchase increments the purchase aggregates in place
func (t *txStore) RecordClientPurchase(ctx context.Context, clientID int64, amount decimal.Decimal, at time.Time) (*models.Client, error) {
	query := `
		UPDATE clients SET
			total_purchases = total_purchases + 1,
			total_spent = total_spent + $1,
			last_purchase = $2
		WHERE id = $3
		RETURNING *`

	return t.updateClient(ctx, clientID, query, amount, at, clientID)
}

// ReverseClientPurchase decrements the purchase aggregates; last_purchase is untouched
func (t *txStore) ReverseClientPurchase(ctx context.Context, clientID int64, amount decimal.Decimal) (*models.Client, error) {
	query := `
		UPDATE clients SET
			total_purchases = total_purchases - 1,
			total_spent = total_spent - $1
		WHERE id = $2
		RETURNING *`

	return t.updateClient(ctx, clientID, query, amount, clientID)
}

func (t *txStore) updateClient(ctx context.Context, clientID int64, query string, args ...interface{}) (*models.Client, error) {
	var client models.Client
	err := t.tx.GetContext(ctx, &client, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound("client", clientID)
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// SetClientLastPurchase overwrites last_purchase
func (t *txStore) SetClientLastPurchase(ctx context.Context, clientID int64, at *time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE clients SET last_purchase = $1 WHERE id = $2", at, clientID)
	return err
}

// LatestCompletedSaleAt returns the creation time of the newest completed sale
func (t *txStore) LatestCompletedSaleAt(ctx context.Context, clientID int64) (*time.Time, error) {
	var at sql.NullTime
	err := t.tx.GetContext(ctx, &at,
		"SELECT MAX(created_at) FROM sales WHERE client_id = $1 AND status = $2",
		clientID, models.SaleStatusCompleted)
	if err != nil {
		return nil, err
	}
	if !at.Valid {
		return nil, nil
	}
	return &at.Time, nil
}
