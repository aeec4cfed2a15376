package postgres

import (
	"context"
	"errors"
	"fmt"

	"vendor-wallet-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const walletColumns = `id, vendor_id, current_balance, security_deposit,
	total_deposits, total_withdrawals, total_earnings, total_penalties,
	total_refunds, total_bonuses, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// GetByVendorID fetches a wallet projection (non-locking read).
func (r *WalletRepo) GetByVendorID(ctx context.Context, vendorID string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE vendor_id = $1`
	return scanWallet(r.pool.QueryRow(ctx, query, vendorID))
}

// GetForUpdate fetches a wallet with pessimistic locking. Serializes every
// same-vendor mutation. MUST be called within a transaction.
func (r *WalletRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, vendorID string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE vendor_id = $1 FOR UPDATE`
	return scanWallet(tx.QueryRow(ctx, query, vendorID))
}

// CreateIfAbsent inserts the wallet row on first use. A concurrent insert of
// the same vendor is a no-op.
func (r *WalletRepo) CreateIfAbsent(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `INSERT INTO wallets (id, vendor_id, security_deposit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (vendor_id) DO NOTHING`

	_, err := tx.Exec(ctx, query, w.ID, w.VendorID, w.SecurityDeposit, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// ApplyTransaction adjusts the balance and the matching per-type total in one
// server-side statement. amount is the signed delta; the per-type total moves
// by its magnitude in the type's direction.
func (r *WalletRepo) ApplyTransaction(ctx context.Context, tx pgx.Tx, vendorID string, kind domain.TransactionType, amount decimal.Decimal) error {
	column, err := totalColumn(kind)
	if err != nil {
		return err
	}

	totalDelta := amount
	if !kind.IsCredit() {
		totalDelta = amount.Neg()
	}

	query := fmt.Sprintf(`UPDATE wallets
		SET current_balance = current_balance + $1, %s = %s + $2, updated_at = NOW()
		WHERE vendor_id = $3`, column, column)

	tag, err := tx.Exec(ctx, query, amount, totalDelta, vendorID)
	if err != nil {
		return fmt.Errorf("apply transaction to wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", vendorID)
	}
	return nil
}

// OverwriteAggregates rewrites the projection from a replayed state.
func (r *WalletRepo) OverwriteAggregates(ctx context.Context, tx pgx.Tx, vendorID string, agg domain.Aggregates) error {
	query := `UPDATE wallets
		SET current_balance = $1, total_deposits = $2, total_withdrawals = $3,
			total_earnings = $4, total_penalties = $5, total_refunds = $6,
			total_bonuses = $7, updated_at = NOW()
		WHERE vendor_id = $8`

	tag, err := tx.Exec(ctx, query,
		agg.Balance, agg.Deposits, agg.Withdrawals,
		agg.Earnings, agg.Penalties, agg.Refunds, agg.Bonuses,
		vendorID,
	)
	if err != nil {
		return fmt.Errorf("overwrite wallet aggregates: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", vendorID)
	}
	return nil
}

// totalColumn maps a transaction type to its aggregate column. The type is
// validated upstream; the whitelist here keeps type names out of SQL
// interpolation.
func totalColumn(kind domain.TransactionType) (string, error) {
	switch kind {
	case domain.TransactionTypeDeposit:
		return "total_deposits", nil
	case domain.TransactionTypeWithdrawal:
		return "total_withdrawals", nil
	case domain.TransactionTypeEarning:
		return "total_earnings", nil
	case domain.TransactionTypePenalty:
		return "total_penalties", nil
	case domain.TransactionTypeRefund:
		return "total_refunds", nil
	case domain.TransactionTypeBonus:
		return "total_bonuses", nil
	}
	return "", fmt.Errorf("no aggregate column for transaction type %q", kind)
}

// scanWallet scans a single wallet row.
func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(
		&w.ID, &w.VendorID, &w.CurrentBalance, &w.SecurityDeposit,
		&w.TotalDeposits, &w.TotalWithdrawals, &w.TotalEarnings, &w.TotalPenalties,
		&w.TotalRefunds, &w.TotalBonuses, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	return w, nil
}
