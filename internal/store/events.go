package store

import (
	"context"

	"inventory-service/internal/models"
)

// RecordReconciliationIssue stores a compensation that could not be applied
func (t *txStore) RecordReconciliationIssue(ctx context.Context, issue *models.ReconciliationIssue) error {
	query := `
		INSERT INTO reconciliation_issues (owner_id, sale_id, item_id, barcode, quantity, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return t.tx.GetContext(ctx, issue, query,
		issue.OwnerID, issue.SaleID, issue.ItemID, issue.Barcode, issue.Quantity, issue.Reason)
}

// ListReconciliationIssues lists issues for an owner, newest first
func (t *txStore) ListReconciliationIssues(ctx context.Context, ownerID int64) ([]models.ReconciliationIssue, error) {
	var issues []models.ReconciliationIssue
	err := t.tx.SelectContext(ctx, &issues,
		"SELECT * FROM reconciliation_issues WHERE owner_id = $1 ORDER BY created_at DESC", ownerID)
	return issues, err
}

// IsEventProcessed checks if an event has been processed
func (t *txStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := t.tx.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (t *txStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
