package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet is the per-vendor balance projection over the transaction log.
// CurrentBalance and the per-type totals are maintained incrementally but
// must always be re-derivable by replaying completed transactions from zero.
type Wallet struct {
	ID       uuid.UUID `json:"id"`
	VendorID string    `json:"vendor_id"`
	// CurrentBalance equals the running sum of signed completed-transaction
	// amounts. Divergence is a defect the reconciliation service repairs.
	CurrentBalance decimal.Decimal `json:"current_balance"`
	// SecurityDeposit is the funding threshold a vendor must reach before
	// payouts unlock.
	SecurityDeposit  decimal.Decimal `json:"security_deposit"`
	TotalDeposits    decimal.Decimal `json:"total_deposits"`
	TotalWithdrawals decimal.Decimal `json:"total_withdrawals"`
	TotalEarnings    decimal.Decimal `json:"total_earnings"`
	TotalPenalties   decimal.Decimal `json:"total_penalties"`
	TotalRefunds     decimal.Decimal `json:"total_refunds"`
	TotalBonuses     decimal.Decimal `json:"total_bonuses"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// AvailableBalance is the portion of the balance above the security deposit,
// clamped at zero.
func (w *Wallet) AvailableBalance() decimal.Decimal {
	available := w.CurrentBalance.Sub(w.SecurityDeposit)
	if available.IsNegative() {
		return decimal.Zero
	}
	return available
}

// IsFunded reports whether the vendor has reached the security deposit.
func (w *Wallet) IsFunded() bool {
	return w.CurrentBalance.GreaterThanOrEqual(w.SecurityDeposit)
}

// TotalFor returns the running aggregate for a transaction type.
func (w *Wallet) TotalFor(t TransactionType) decimal.Decimal {
	switch t {
	case TransactionTypeDeposit:
		return w.TotalDeposits
	case TransactionTypeWithdrawal:
		return w.TotalWithdrawals
	case TransactionTypeEarning:
		return w.TotalEarnings
	case TransactionTypePenalty:
		return w.TotalPenalties
	case TransactionTypeRefund:
		return w.TotalRefunds
	case TransactionTypeBonus:
		return w.TotalBonuses
	}
	return decimal.Zero
}

// Apply folds one completed transaction into the projection in memory.
// The storage layer performs the equivalent update server-side; this is used
// to produce the post-append snapshot without a reread.
func (w *Wallet) Apply(t *Transaction) {
	if !t.CountsTowardBalance() {
		return
	}
	w.CurrentBalance = w.CurrentBalance.Add(t.SignedAmount())
	switch t.Type {
	case TransactionTypeDeposit:
		w.TotalDeposits = w.TotalDeposits.Add(t.Amount)
	case TransactionTypeWithdrawal:
		w.TotalWithdrawals = w.TotalWithdrawals.Add(t.Amount)
	case TransactionTypeEarning:
		w.TotalEarnings = w.TotalEarnings.Add(t.Amount)
	case TransactionTypePenalty:
		w.TotalPenalties = w.TotalPenalties.Add(t.Amount)
	case TransactionTypeRefund:
		w.TotalRefunds = w.TotalRefunds.Add(t.Amount)
	case TransactionTypeBonus:
		w.TotalBonuses = w.TotalBonuses.Add(t.Amount)
	}
}

// Aggregates is a replayed projection: the balance plus per-type totals
// derived from the transaction log.
type Aggregates struct {
	Balance     decimal.Decimal
	Deposits    decimal.Decimal
	Withdrawals decimal.Decimal
	Earnings    decimal.Decimal
	Penalties   decimal.Decimal
	Refunds     decimal.Decimal
	Bonuses     decimal.Decimal
}

// LegacyVendor is the pre-ledger record whose balance lived on a single
// mutable field. Source data for the migration service.
type LegacyVendor struct {
	VendorID        string
	Balance         decimal.Decimal
	SecurityDeposit decimal.Decimal
}
