package ports

import (
	"context"
	"time"

	"vendor-wallet-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// IdempotencyCache is the Redis-layer duplicate check (fast path). The
// database's sparse unique index remains the ground truth.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached snapshot JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// EventPublisher emits balance-changed facts for the notification
// collaborator. Delivery is fire-and-forget from the ledger's perspective.
type EventPublisher interface {
	PublishBalanceChanged(ctx context.Context, ev domain.BalanceChanged) error
}

// TokenService issues and validates the HS256 service tokens used on the
// boundary API.
type TokenService interface {
	Generate(service string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed service-token claims.
type TokenClaims struct {
	Service string
}

// --- Service Ports (Business Logic) ---

// JobRequest carries the payout-formula inputs for earning/penalty appends.
type JobRequest struct {
	CaseID           string
	BillingAmount    decimal.Decimal
	SpareAmount      decimal.Decimal
	TravellingAmount decimal.Decimal
	BookingAmount    decimal.Decimal
	PaymentMethod    domain.PaymentMethod
	GSTIncluded      bool
}

// AppendRequest holds validated input for one ledger append.
// For earning/penalty the amount is derived by the matching calculator and
// Amount is ignored; for the four manual types Amount must be positive.
type AppendRequest struct {
	VendorID      string
	TransactionID string
	Type          domain.TransactionType
	Amount        decimal.Decimal
	Description   string
	AdminNotes    *string
	Job           *JobRequest
}

// LedgerService is the wallet ledger's public contract.
type LedgerService interface {
	// Append validates, derives the amount, durably appends a completed
	// transaction and returns the updated wallet snapshot. On a duplicate
	// transaction ID it returns the current snapshot together with
	// apperror.ErrDuplicateTransaction (safe no-op for retries).
	Append(ctx context.Context, req AppendRequest) (*domain.Wallet, error)
	// GetBalance reads the wallet projection without replaying the log.
	GetBalance(ctx context.Context, vendorID string) (*domain.Wallet, error)
	ListTransactions(ctx context.Context, params TransactionListParams) ([]domain.Transaction, error)
}

// RecalculationReport is the outcome of one earning-recalculation run.
type RecalculationReport struct {
	VendorID          string               `json:"vendor_id"`
	Entries           []domain.RecalcEntry `json:"entries"`
	AppliedDifference decimal.Decimal      `json:"applied_difference"`
	Flagged           int                  `json:"flagged"`
}

// BalanceVerification is the outcome of one replay check.
type BalanceVerification struct {
	VendorID        string          `json:"vendor_id"`
	StoredBalance   decimal.Decimal `json:"stored_balance"`
	ReplayedBalance decimal.Decimal `json:"replayed_balance"`
	Drift           decimal.Decimal `json:"drift"`
	Repaired        bool            `json:"repaired"`
}

// ReconciliationService repairs and rebuilds ledger state from authoritative
// sources. Every operation is vendor-scoped, takes the vendor's wallet lock
// for its whole unit of work, and is safe to re-run.
type ReconciliationService interface {
	// MigrateLegacyBalance seeds a wallet from the legacy single-balance
	// field, backfills the log from the flat transaction store (skipping
	// rows already present) and records any residual difference as an
	// adjustment transaction so the replay invariant holds.
	MigrateLegacyBalance(ctx context.Context, vendorID string) (*domain.Wallet, error)
	// RepairNullIDs deterministically synthesizes IDs for legacy rows
	// missing one. Returns the number of repaired rows.
	RepairNullIDs(ctx context.Context, vendorID string) (int, error)
	// RecalculateEarnings replays earning rows through the current formula
	// and applies per-row differences to the balance and totalEarnings.
	RecalculateEarnings(ctx context.Context, vendorID string) (*RecalculationReport, error)
	// VerifyBalance replays completed rows and compares against the stored
	// projection; with repair set, drift is corrected from the log.
	VerifyBalance(ctx context.Context, vendorID string, repair bool) (*BalanceVerification, error)
}
