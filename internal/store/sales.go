package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/models"

	"github.com/lib/pq"
)

const salesIdempotencyConstraint = "sales_owner_idempotency_key"

// CreateSale inserts a sale and its lines
func (t *txStore) CreateSale(ctx context.Context, sale *models.Sale) error {
	query := `
		INSERT INTO sales (owner_id, client_id, client_name, subtotal, tax, discount, total,
			payment_method, notes, status, compensation, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`

	err := t.tx.GetContext(ctx, sale, query,
		sale.OwnerID, sale.ClientID, sale.ClientName, sale.Subtotal, sale.Tax, sale.Discount, sale.Total,
		sale.PaymentMethod, sale.Notes, sale.Status, sale.Compensation, sale.IdempotencyKey)
	if isUniqueViolation(err, salesIdempotencyConstraint) {
		return &models.Error{
			Kind:    models.KindDuplicateKey,
			Message: fmt.Sprintf("sale idempotency key already used: %s", *sale.IdempotencyKey),
			Entity:  "sale",
		}
	}
	if err != nil {
		return fmt.Errorf("failed to create sale: %w", err)
	}

	lineQuery := `
		INSERT INTO sale_lines (sale_id, item_id, item_name, barcode, quantity, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	for i := range sale.Lines {
		line := &sale.Lines[i]
		line.SaleID = sale.ID
		if err := t.tx.GetContext(ctx, &line.ID, lineQuery,
			line.SaleID, line.ItemID, line.ItemName, line.Barcode, line.Quantity, line.UnitPrice, line.LineTotal); err != nil {
			return fmt.Errorf("failed to create sale line: %w", err)
		}
	}

	return nil
}

// GetSale retrieves a sale with its lines
func (t *txStore) GetSale(ctx context.Context, ownerID, saleID int64) (*models.Sale, error) {
	var sale models.Sale
	err := t.tx.GetContext(ctx, &sale,
		"SELECT * FROM sales WHERE id = $1 AND owner_id = $2", saleID, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound("sale", saleID)
	}
	if err != nil {
		return nil, err
	}
	if err := t.loadSaleLines(ctx, &sale); err != nil {
		return nil, err
	}
	return &sale, nil
}

// GetSaleByIdempotencyKey retrieves a sale by idempotency key
func (t *txStore) GetSaleByIdempotencyKey(ctx context.Context, ownerID int64, key string) (*models.Sale, error) {
	var sale models.Sale
	err := t.tx.GetContext(ctx, &sale,
		"SELECT * FROM sales WHERE owner_id = $1 AND idempotency_key = $2", ownerID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := t.loadSaleLines(ctx, &sale); err != nil {
		return nil, err
	}
	return &sale, nil
}

// ListSales retrieves an owner's sales, newest first
func (t *txStore) ListSales(ctx context.Context, ownerID int64) ([]models.Sale, error) {
	var sales []models.Sale
	err := t.tx.SelectContext(ctx, &sales,
		"SELECT * FROM sales WHERE owner_id = $1 ORDER BY created_at DESC, id DESC", ownerID)
	if err != nil || len(sales) == 0 {
		return sales, err
	}

	ids := make([]int64, len(sales))
	for i := range sales {
		ids[i] = sales[i].ID
	}
	var lines []models.SaleLine
	err = t.tx.SelectContext(ctx, &lines,
		"SELECT * FROM sale_lines WHERE sale_id = ANY($1) ORDER BY id", pq.Array(ids))
	if err != nil {
		return nil, err
	}

	bySale := make(map[int64][]models.SaleLine, len(sales))
	for _, line := range lines {
		bySale[line.SaleID] = append(bySale[line.SaleID], line)
	}
	for i := range sales {
		sales[i].Lines = bySale[sales[i].ID]
	}
	return sales, nil
}

func (t *txStore) loadSaleLines(ctx context.Context, sale *models.Sale) error {
	return t.tx.SelectContext(ctx, &sale.Lines,
		"SELECT * FROM sale_lines WHERE sale_id = $1 ORDER BY id", sale.ID)
}

// TransitionSaleCancelled flips completed -> cancelled only once
func (t *txStore) TransitionSaleCancelled(ctx context.Context, ownerID, saleID int64, at time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE sales SET status = $1, compensation = $2, cancelled_at = $3
		WHERE id = $4 AND owner_id = $5 AND status = $6`,
		models.SaleStatusCancelled, models.CompensationPending, at,
		saleID, ownerID, models.SaleStatusCompleted)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ClaimSaleCompensation flips compensation pending -> applied only once
func (t *txStore) ClaimSaleCompensation(ctx context.Context, saleID int64) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE sales SET compensation = $1 WHERE id = $2 AND compensation = $3",
		models.CompensationApplied, saleID, models.CompensationPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ListPendingCompensations lists cancelled sales whose effects are not yet reversed
func (t *txStore) ListPendingCompensations(ctx context.Context, limit int) ([]models.Sale, error) {
	var sales []models.Sale
	err := t.tx.SelectContext(ctx, &sales,
		"SELECT * FROM sales WHERE compensation = $1 ORDER BY cancelled_at LIMIT $2",
		models.CompensationPending, limit)
	return sales, err
}
