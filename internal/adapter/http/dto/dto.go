package dto

import (
	"time"

	"vendor-wallet-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// JobDetailsRequest carries the payout-formula inputs for earning and
// cash-collection appends. Amount validation beyond shape (negative results,
// spare+travel vs billing) lives in the service layer.
type JobDetailsRequest struct {
	CaseID           string          `json:"case_id" binding:"required,max=100,safe_id"`
	BillingAmount    decimal.Decimal `json:"billing_amount"`
	SpareAmount      decimal.Decimal `json:"spare_amount"`
	TravellingAmount decimal.Decimal `json:"travelling_amount"`
	BookingAmount    decimal.Decimal `json:"booking_amount"`
	PaymentMethod    string          `json:"payment_method" binding:"required,oneof=cash online"`
	GSTIncluded      bool            `json:"gst_included"`
}

// AppendTransactionRequest is the request body for one ledger append.
type AppendTransactionRequest struct {
	TransactionID string             `json:"transaction_id" binding:"required,max=100,safe_id"`
	Type          string             `json:"type" binding:"required"`
	Amount        decimal.Decimal    `json:"amount"`
	Description   string             `json:"description" binding:"max=500"`
	AdminNotes    *string            `json:"admin_notes,omitempty" binding:"omitempty,max=500"`
	Job           *JobDetailsRequest `json:"job,omitempty"`
}

// TokenRequest is the request body for service-token issuance.
type TokenRequest struct {
	Service string `json:"service" binding:"required,oneof=booking admin"`
}

// TokenResponse is the response body for service-token issuance.
type TokenResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// WalletResponse is the wallet projection returned by the API.
type WalletResponse struct {
	VendorID         string          `json:"vendor_id"`
	CurrentBalance   decimal.Decimal `json:"current_balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	SecurityDeposit  decimal.Decimal `json:"security_deposit"`
	IsFunded         bool            `json:"is_funded"`
	TotalDeposits    decimal.Decimal `json:"total_deposits"`
	TotalWithdrawals decimal.Decimal `json:"total_withdrawals"`
	TotalEarnings    decimal.Decimal `json:"total_earnings"`
	TotalPenalties   decimal.Decimal `json:"total_penalties"`
	TotalRefunds     decimal.Decimal `json:"total_refunds"`
	TotalBonuses     decimal.Decimal `json:"total_bonuses"`
	UpdatedAt        string          `json:"updated_at"`
}

// JobDetailsResponse echoes the job fields on earning/penalty rows.
type JobDetailsResponse struct {
	CaseID           string          `json:"case_id"`
	BillingAmount    decimal.Decimal `json:"billing_amount"`
	SpareAmount      decimal.Decimal `json:"spare_amount"`
	TravellingAmount decimal.Decimal `json:"travelling_amount"`
	BookingAmount    decimal.Decimal `json:"booking_amount"`
	CalculatedAmount decimal.Decimal `json:"calculated_amount"`
	PaymentMethod    string          `json:"payment_method"`
	GSTIncluded      bool            `json:"gst_included"`
}

// TransactionResponse is one ledger row returned by the API.
type TransactionResponse struct {
	ID            string              `json:"id"`
	TransactionID *string             `json:"transaction_id"`
	Type          string              `json:"type"`
	Amount        decimal.Decimal     `json:"amount"`
	Status        string              `json:"status"`
	Description   string              `json:"description,omitempty"`
	AdminNotes    *string             `json:"admin_notes,omitempty"`
	Job           *JobDetailsResponse `json:"job,omitempty"`
	CreatedAt     string              `json:"created_at"`
}

// TransactionListResponse wraps a transaction page.
type TransactionListResponse struct {
	Items  []TransactionResponse `json:"items"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// FromWallet converts a domain wallet into its API shape.
func FromWallet(w *domain.Wallet) WalletResponse {
	return WalletResponse{
		VendorID:         w.VendorID,
		CurrentBalance:   w.CurrentBalance,
		AvailableBalance: w.AvailableBalance(),
		SecurityDeposit:  w.SecurityDeposit,
		IsFunded:         w.IsFunded(),
		TotalDeposits:    w.TotalDeposits,
		TotalWithdrawals: w.TotalWithdrawals,
		TotalEarnings:    w.TotalEarnings,
		TotalPenalties:   w.TotalPenalties,
		TotalRefunds:     w.TotalRefunds,
		TotalBonuses:     w.TotalBonuses,
		UpdatedAt:        w.UpdatedAt.Format(time.RFC3339),
	}
}

// FromTransaction converts a domain transaction into its API shape.
func FromTransaction(t *domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:            t.ID.String(),
		TransactionID: t.TransactionID,
		Type:          string(t.Type),
		Amount:        t.Amount,
		Status:        string(t.Status),
		Description:   t.Description,
		AdminNotes:    t.AdminNotes,
		CreatedAt:     t.CreatedAt.Format(time.RFC3339),
	}
	if t.Job != nil {
		resp.Job = &JobDetailsResponse{
			CaseID:           t.Job.CaseID,
			BillingAmount:    t.Job.BillingAmount,
			SpareAmount:      t.Job.SpareAmount,
			TravellingAmount: t.Job.TravellingAmount,
			BookingAmount:    t.Job.BookingAmount,
			CalculatedAmount: t.Job.CalculatedAmount,
			PaymentMethod:    string(t.Job.PaymentMethod),
			GSTIncluded:      t.Job.GSTIncluded,
		}
	}
	return resp
}
