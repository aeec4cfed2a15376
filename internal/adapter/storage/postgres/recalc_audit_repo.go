package postgres

import (
	"context"
	"fmt"

	"vendor-wallet-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// RecalcAuditRepo implements ports.RecalcAuditRepository.
type RecalcAuditRepo struct {
	pool Pool
}

// NewRecalcAuditRepo creates a new RecalcAuditRepo.
func NewRecalcAuditRepo(pool Pool) *RecalcAuditRepo {
	return &RecalcAuditRepo{pool: pool}
}

// Save persists one recalculation run's entries within the run's database
// transaction, so the audit trail commits atomically with the amounts it
// describes.
func (r *RecalcAuditRepo) Save(ctx context.Context, tx pgx.Tx, entries []domain.RecalcEntry) error {
	query := `INSERT INTO recalc_audit (id, vendor_id, transaction_id, old_amount, new_amount, difference, applied, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for _, e := range entries {
		_, err := tx.Exec(ctx, query,
			e.ID, e.VendorID, e.TransactionID,
			e.OldAmount, e.NewAmount, e.Difference, e.Applied, e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert recalc audit entry: %w", err)
		}
	}
	return nil
}

// ListByVendor fetches a vendor's audit entries, newest first.
func (r *RecalcAuditRepo) ListByVendor(ctx context.Context, vendorID string) ([]domain.RecalcEntry, error) {
	query := `SELECT id, vendor_id, transaction_id, old_amount, new_amount, difference, applied, created_at
		FROM recalc_audit WHERE vendor_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, vendorID)
	if err != nil {
		return nil, fmt.Errorf("list recalc audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.RecalcEntry
	for rows.Next() {
		e := domain.RecalcEntry{}
		err := rows.Scan(
			&e.ID, &e.VendorID, &e.TransactionID,
			&e.OldAmount, &e.NewAmount, &e.Difference, &e.Applied, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan recalc audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recalc audit rows: %w", err)
	}
	return entries, nil
}
