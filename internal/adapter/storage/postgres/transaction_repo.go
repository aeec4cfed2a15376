package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vendor-wallet-ledger/internal/core/domain"
	"vendor-wallet-ledger/internal/core/ports"
	"vendor-wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, vendor_id, transaction_id, type, amount, status,
	description, admin_notes, case_id, billing_amount, spare_amount,
	travelling_amount, booking_amount, calculated_amount, payment_method,
	gst_included, created_at`

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Append inserts one ledger row within a database transaction. The sparse
// unique index on (vendor_id, transaction_id) rejects a replayed ID; that
// violation surfaces as LED_001.
func (r *TransactionRepo) Append(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	var (
		caseID, method                               *string
		billing, spare, travelling, booking, calcAmt *decimal.Decimal
		gstIncluded                                  *bool
	)
	if t.Job != nil {
		caseID = &t.Job.CaseID
		billing = &t.Job.BillingAmount
		spare = &t.Job.SpareAmount
		travelling = &t.Job.TravellingAmount
		booking = &t.Job.BookingAmount
		calcAmt = &t.Job.CalculatedAmount
		m := string(t.Job.PaymentMethod)
		method = &m
		gstIncluded = &t.Job.GSTIncluded
	}

	_, err := tx.Exec(ctx, query,
		t.ID, t.VendorID, t.TransactionID, t.Type, t.Amount, t.Status,
		t.Description, t.AdminNotes, caseID, billing, spare,
		travelling, booking, calcAmt, method, gstIncluded, t.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.ErrDuplicateTransaction()
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// Exists reports whether a transaction ID is already applied for the vendor.
func (r *TransactionRepo) Exists(ctx context.Context, vendorID, transactionID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM transactions WHERE vendor_id = $1 AND transaction_id = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, vendorID, transactionID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check transaction exists: %w", err)
	}
	return exists, nil
}

// ExistsRow reports whether a ledger row with the given primary key exists.
func (r *TransactionRepo) ExistsRow(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM transactions WHERE id = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check transaction row exists: %w", err)
	}
	return exists, nil
}

// List fetches ledger rows with filtering and pagination, oldest first.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("vendor_id = $%d", argIdx))
	args = append(args, params.VendorID)
	argIdx++

	if params.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, *params.Type)
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	query := fmt.Sprintf(`SELECT `+transactionColumns+` FROM transactions
		WHERE %s ORDER BY created_at ASC LIMIT $%d OFFSET $%d`,
		strings.Join(conditions, " AND "), argIdx, argIdx+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// ListNullIDs returns legacy rows missing a transaction ID, oldest first.
// MUST be called within a transaction holding the vendor's wallet lock.
func (r *TransactionRepo) ListNullIDs(ctx context.Context, tx pgx.Tx, vendorID string) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE vendor_id = $1 AND transaction_id IS NULL ORDER BY created_at ASC`

	rows, err := tx.Query(ctx, query, vendorID)
	if err != nil {
		return nil, fmt.Errorf("list null-id transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// SetTransactionID backfills a synthesized ID onto a legacy row.
func (r *TransactionRepo) SetTransactionID(ctx context.Context, tx pgx.Tx, id uuid.UUID, transactionID string) error {
	query := `UPDATE transactions SET transaction_id = $1 WHERE id = $2`

	tag, err := tx.Exec(ctx, query, transactionID, id)
	if err != nil {
		return fmt.Errorf("set transaction id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %s", id)
	}
	return nil
}

// UpdateAmounts rewrites a row's amount after an audited recalculation.
func (r *TransactionRepo) UpdateAmounts(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount, calculated decimal.Decimal) error {
	query := `UPDATE transactions SET amount = $1, calculated_amount = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, amount, calculated, id)
	if err != nil {
		return fmt.Errorf("update transaction amounts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %s", id)
	}
	return nil
}

// SumCompleted replays the vendor's completed rows server-side: the signed
// balance plus per-type totals.
func (r *TransactionRepo) SumCompleted(ctx context.Context, tx pgx.Tx, vendorID string) (domain.Aggregates, error) {
	query := `SELECT
		COALESCE(SUM(CASE WHEN type IN ('deposit', 'earning', 'refund', 'bonus') THEN amount ELSE -amount END), 0) AS balance,
		COALESCE(SUM(amount) FILTER (WHERE type = 'deposit'), 0) AS deposits,
		COALESCE(SUM(amount) FILTER (WHERE type = 'withdrawal'), 0) AS withdrawals,
		COALESCE(SUM(amount) FILTER (WHERE type = 'earning'), 0) AS earnings,
		COALESCE(SUM(amount) FILTER (WHERE type = 'penalty'), 0) AS penalties,
		COALESCE(SUM(amount) FILTER (WHERE type = 'refund'), 0) AS refunds,
		COALESCE(SUM(amount) FILTER (WHERE type = 'bonus'), 0) AS bonuses
		FROM transactions WHERE vendor_id = $1 AND status = 'completed'`

	agg := domain.Aggregates{}
	err := tx.QueryRow(ctx, query, vendorID).Scan(
		&agg.Balance, &agg.Deposits, &agg.Withdrawals,
		&agg.Earnings, &agg.Penalties, &agg.Refunds, &agg.Bonuses,
	)
	if err != nil {
		return domain.Aggregates{}, fmt.Errorf("sum completed transactions: %w", err)
	}
	return agg, nil
}

// collectTransactions drains a row set into domain transactions.
func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}

// scanTransaction scans one ledger row, reassembling JobDetails when the job
// columns are present.
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var (
		caseID, method                               *string
		billing, spare, travelling, booking, calcAmt *decimal.Decimal
		gstIncluded                                  *bool
	)

	err := row.Scan(
		&t.ID, &t.VendorID, &t.TransactionID, &t.Type, &t.Amount, &t.Status,
		&t.Description, &t.AdminNotes, &caseID, &billing, &spare,
		&travelling, &booking, &calcAmt, &method, &gstIncluded, &t.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	if caseID != nil {
		job := &domain.JobDetails{CaseID: *caseID}
		if billing != nil {
			job.BillingAmount = *billing
		}
		if spare != nil {
			job.SpareAmount = *spare
		}
		if travelling != nil {
			job.TravellingAmount = *travelling
		}
		if booking != nil {
			job.BookingAmount = *booking
		}
		if calcAmt != nil {
			job.CalculatedAmount = *calcAmt
		}
		if method != nil {
			job.PaymentMethod = domain.PaymentMethod(*method)
		}
		if gstIncluded != nil {
			job.GSTIncluded = *gstIncluded
		}
		t.Job = job
	}
	return t, nil
}
