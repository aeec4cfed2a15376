package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceChanged is the fact emitted after every successful append. The
// notification collaborator consumes it; the ledger does not track delivery.
type BalanceChanged struct {
	VendorID         string          `json:"vendor_id"`
	TransactionID    string          `json:"transaction_id"`
	Type             TransactionType `json:"type"`
	Amount           decimal.Decimal `json:"amount"`
	CurrentBalance   decimal.Decimal `json:"current_balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	Description      string          `json:"description"`
	OccurredAt       time.Time       `json:"occurred_at"`
}

// RecalcEntry is one row of a recalculation audit report: a transaction
// whose stored amount diverged from the current formula output.
type RecalcEntry struct {
	ID            string          `json:"id"`
	VendorID      string          `json:"vendor_id"`
	TransactionID string          `json:"transaction_id"`
	OldAmount     decimal.Decimal `json:"old_amount"`
	NewAmount     decimal.Decimal `json:"new_amount"`
	Difference    decimal.Decimal `json:"difference"`
	// Applied is false when the difference exceeded the configured
	// tolerance and was left for operator review.
	Applied   bool      `json:"applied"`
	CreatedAt time.Time `json:"created_at"`
}
