package postgres

import (
	"context"
	"errors"
	"fmt"

	"vendor-wallet-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// LegacyRepo implements ports.LegacyRepository. It reads the pre-ledger
// tables: the single mutable balance field and the flat transaction store the
// migration replays from. Both tables are read-only from this module.
type LegacyRepo struct {
	pool Pool
}

// NewLegacyRepo creates a new LegacyRepo.
func NewLegacyRepo(pool Pool) *LegacyRepo {
	return &LegacyRepo{pool: pool}
}

// GetVendor fetches the legacy vendor record.
func (r *LegacyRepo) GetVendor(ctx context.Context, vendorID string) (*domain.LegacyVendor, error) {
	query := `SELECT vendor_id, balance, security_deposit FROM legacy_vendors WHERE vendor_id = $1`

	v := &domain.LegacyVendor{}
	err := r.pool.QueryRow(ctx, query, vendorID).Scan(&v.VendorID, &v.Balance, &v.SecurityDeposit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get legacy vendor: %w", err)
	}
	return v, nil
}

// ListTransactions fetches the vendor's flat legacy rows, oldest first.
// Legacy data predates job details and may lack transaction IDs.
func (r *LegacyRepo) ListTransactions(ctx context.Context, vendorID string) ([]domain.Transaction, error) {
	query := `SELECT id, vendor_id, transaction_id, type, amount, status, description, created_at
		FROM legacy_transactions WHERE vendor_id = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, vendorID)
	if err != nil {
		return nil, fmt.Errorf("list legacy transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t := domain.Transaction{}
		err := rows.Scan(
			&t.ID, &t.VendorID, &t.TransactionID, &t.Type,
			&t.Amount, &t.Status, &t.Description, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan legacy transaction: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legacy transaction rows: %w", err)
	}
	return txns, nil
}
