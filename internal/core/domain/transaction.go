package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeEarning    TransactionType = "earning"
	TransactionTypePenalty    TransactionType = "penalty"
	TransactionTypeRefund     TransactionType = "refund"
	TransactionTypeBonus      TransactionType = "bonus"
)

// Valid reports whether t is one of the six recognized kinds.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeEarning,
		TransactionTypePenalty, TransactionTypeRefund, TransactionTypeBonus:
		return true
	}
	return false
}

// IsCredit reports whether the type adds to the balance.
// deposit, earning, refund and bonus credit; withdrawal and penalty debit.
func (t TransactionType) IsCredit() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeEarning, TransactionTypeRefund, TransactionTypeBonus:
		return true
	}
	return false
}

// Prefix returns the short prefix used when synthesizing transaction IDs
// for legacy rows that were persisted without one.
func (t TransactionType) Prefix() string {
	switch t {
	case TransactionTypeDeposit:
		return "dep"
	case TransactionTypeWithdrawal:
		return "wdl"
	case TransactionTypeEarning:
		return "ern"
	case TransactionTypePenalty:
		return "pen"
	case TransactionTypeRefund:
		return "rfd"
	case TransactionTypeBonus:
		return "bns"
	}
	return "txn"
}

// TransactionStatus represents the lifecycle state of a transaction.
// completed and failed are terminal; only completed rows count toward
// balance aggregates.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// PaymentMethod is how the customer paid for the originating job.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodOnline PaymentMethod = "online"
)

// JobDetails carries the fields that exist only on earning and penalty
// transactions: the originating job reference and the inputs/outputs of the
// payout formula. Keeping them on a separate struct makes the "field is
// present only for earning/penalty" rule explicit at the type level.
type JobDetails struct {
	CaseID           string          `json:"case_id"`
	BillingAmount    decimal.Decimal `json:"billing_amount"`
	SpareAmount      decimal.Decimal `json:"spare_amount"`
	TravellingAmount decimal.Decimal `json:"travelling_amount"`
	BookingAmount    decimal.Decimal `json:"booking_amount"`
	// CalculatedAmount is the formula output at append time. It can diverge
	// from Transaction.Amount after an audited recalculation pass.
	CalculatedAmount decimal.Decimal `json:"calculated_amount"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	GSTIncluded      bool            `json:"gst_included"`
}

// Transaction is an immutable ledger entry. Once appended it is never
// deleted; its amount changes only through the reconciliation service's
// audited recalculation pass.
type Transaction struct {
	ID       uuid.UUID `json:"id"`
	VendorID string    `json:"vendor_id"`
	// TransactionID is the caller-supplied idempotency key. Nil only on
	// rows ingested from legacy data; the sparse unique index on
	// (vendor_id, transaction_id) ignores nulls so such rows never collide.
	TransactionID *string           `json:"transaction_id"`
	Type          TransactionType   `json:"type"`
	Amount        decimal.Decimal   `json:"amount"` // positive magnitude, sign comes from Type
	Status        TransactionStatus `json:"status"`
	Description   string            `json:"description"`
	AdminNotes    *string           `json:"admin_notes,omitempty"`
	Job           *JobDetails       `json:"job,omitempty"` // earning/penalty only
	CreatedAt     time.Time         `json:"created_at"`
}

// SignedAmount returns the delta this transaction applies to the balance:
// positive for credit types, negated for debit types. A negative Amount on a
// credit type (a surfaced calculator result) therefore yields a debit, which
// is intentional.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Type.IsCredit() {
		return t.Amount
	}
	return t.Amount.Neg()
}

// CountsTowardBalance reports whether this row contributes to the wallet
// projection.
func (t *Transaction) CountsTowardBalance() bool {
	return t.Status == TransactionStatusCompleted
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted || t.Status == TransactionStatusFailed
}

// BuildIdempotencyKey constructs the cache key guarding one append.
func BuildIdempotencyKey(vendorID, transactionID string) string {
	return vendorID + ":" + transactionID
}
