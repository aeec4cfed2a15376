package ports

import (
	"context"
	"time"

	"vendor-wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletRepository defines persistence operations for wallet projections.
// Methods accepting pgx.Tx run inside a transaction block; GetForUpdate takes
// the vendor's row lock, serializing every same-vendor mutation.
type WalletRepository interface {
	GetByVendorID(ctx context.Context, vendorID string) (*domain.Wallet, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, vendorID string) (*domain.Wallet, error)
	// CreateIfAbsent lazily creates the wallet row on first use. No error
	// when the row already exists.
	CreateIfAbsent(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error
	// ApplyTransaction adjusts the balance and the per-type total with
	// server-side increments, in one statement. amount may be negative
	// (recalculation differences).
	ApplyTransaction(ctx context.Context, tx pgx.Tx, vendorID string, kind domain.TransactionType, amount decimal.Decimal) error
	// OverwriteAggregates rewrites the projection from a replayed state.
	// Reconciliation only.
	OverwriteAggregates(ctx context.Context, tx pgx.Tx, vendorID string, agg domain.Aggregates) error
}

// TransactionListParams holds filter + pagination for listing transactions.
// Results are ordered created_at ascending so a (Limit, Offset) walk is
// restartable.
type TransactionListParams struct {
	VendorID string
	Type     *domain.TransactionType
	Status   *domain.TransactionStatus
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// TransactionRepository defines persistence operations for ledger rows.
type TransactionRepository interface {
	// Append inserts one ledger row. Returns apperror.ErrDuplicateTransaction
	// when the sparse unique index on (vendor_id, transaction_id) rejects it.
	Append(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error
	// Exists reports whether a non-null transaction ID is already applied.
	Exists(ctx context.Context, vendorID, transactionID string) (bool, error)
	ExistsRow(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, error)
	// ListNullIDs returns legacy rows missing a transaction ID, oldest first.
	ListNullIDs(ctx context.Context, tx pgx.Tx, vendorID string) ([]domain.Transaction, error)
	SetTransactionID(ctx context.Context, tx pgx.Tx, id uuid.UUID, transactionID string) error
	// UpdateAmounts rewrites a row's amount after an audited recalculation.
	UpdateAmounts(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount, calculated decimal.Decimal) error
	// SumCompleted replays the log server-side: signed balance plus
	// per-type totals over completed rows.
	SumCompleted(ctx context.Context, tx pgx.Tx, vendorID string) (domain.Aggregates, error)
}

// LegacyRepository reads the pre-ledger data: the single mutable balance
// field and the flat transaction store migrations replay from.
type LegacyRepository interface {
	GetVendor(ctx context.Context, vendorID string) (*domain.LegacyVendor, error)
	ListTransactions(ctx context.Context, vendorID string) ([]domain.Transaction, error)
}

// RecalcAuditRepository persists recalculation audit reports.
type RecalcAuditRepository interface {
	Save(ctx context.Context, tx pgx.Tx, entries []domain.RecalcEntry) error
	ListByVendor(ctx context.Context, vendorID string) ([]domain.RecalcEntry, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
