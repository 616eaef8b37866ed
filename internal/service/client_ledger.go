package service

import (
	"context"
	"fmt"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"

	"github.com/shopspring/decimal"
)

// ClientLedger maintains a client's purchase aggregates incrementally
type ClientLedger struct {
	clients store.ClientStore
}

// NewClientLedger binds a ledger to a unit of work
func NewClientLedger(clients store.ClientStore) *ClientLedger {
	return &ClientLedger{clients: clients}
}

// RecordPurchase counts one more purchase of amount made at at
func (l *ClientLedger) RecordPurchase(ctx context.Context, clientID int64, amount decimal.Decimal, at time.Time) (*models.Client, error) {
	return l.clients.RecordClientPurchase(ctx, clientID, models.Money(amount), at)
}

// ReversePurchase removes one purchase of amount. LastPurchase is left as
// it was.
func (l *ClientLedger) ReversePurchase(ctx context.Context, clientID int64, amount decimal.Decimal) (*models.Client, error) {
	client, err := l.clients.ReverseClientPurchase(ctx, clientID, models.Money(amount))
	if err != nil {
		return nil, err
	}
	if client.TotalPurchases < 0 {
		return nil, &models.Error{
			Kind:    models.KindInvariantViolation,
			Message: fmt.Sprintf("reversing a purchase would leave client %d with %d purchases", clientID, client.TotalPurchases),
			Entity:  "client",
			ID:      clientID,
		}
	}
	return client, nil
}

// RestoreLastPurchase resets LastPurchase to the newest remaining completed
// sale, or clears it when there is none.
func (l *ClientLedger) RestoreLastPurchase(ctx context.Context, clientID int64) error {
	latest, err := l.clients.LatestCompletedSaleAt(ctx, clientID)
	if err != nil {
		return fmt.Errorf("failed to find latest sale for client %d: %w", clientID, err)
	}
	return l.clients.SetClientLastPurchase(ctx, clientID, latest)
}
