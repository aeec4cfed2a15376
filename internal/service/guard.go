package service

import (
	"vendor-wallet-ledger/internal/core/domain"
	"vendor-wallet-ledger/internal/core/ports"
	"vendor-wallet-ledger/pkg/apperror"
)

// validateAppend enforces the append preconditions before any storage work.
// Every append must carry a transaction ID; null IDs exist only on rows
// ingested from legacy data.
func validateAppend(req ports.AppendRequest) error {
	if req.VendorID == "" {
		return apperror.Validation("Vendor ID is required")
	}
	if req.TransactionID == "" {
		return apperror.ErrMissingTransactionID()
	}
	if !req.Type.Valid() {
		return apperror.ErrUnsupportedTransactionType(string(req.Type))
	}

	isJobType := req.Type == domain.TransactionTypeEarning || req.Type == domain.TransactionTypePenalty
	if req.Job != nil && !isJobType {
		return apperror.Validation("Job details are only valid on earning and penalty transactions")
	}
	if req.Type == domain.TransactionTypeEarning && req.Job == nil {
		return apperror.Validation("Earning transactions require job details")
	}

	if req.Job != nil {
		return validateJob(req.Job)
	}

	// Manual amounts: deposit, withdrawal, refund, bonus and job-less penalty.
	if !req.Amount.IsPositive() {
		return apperror.ErrInvalidAmount()
	}
	return nil
}

// validateJob checks the payout-formula inputs. Amounts may legitimately
// combine into a negative payout; only structurally broken input is rejected.
func validateJob(job *ports.JobRequest) error {
	if job.CaseID == "" {
		return apperror.Validation("Job case ID is required")
	}
	if job.BillingAmount.IsNegative() {
		return apperror.Validation("Billing amount must not be negative")
	}
	if job.SpareAmount.IsNegative() || job.TravellingAmount.IsNegative() || job.BookingAmount.IsNegative() {
		return apperror.Validation("Job amounts must not be negative")
	}
	if !job.SpareAmount.IsZero() && !job.TravellingAmount.IsZero() {
		if job.SpareAmount.Add(job.TravellingAmount).GreaterThan(job.BillingAmount) {
			return apperror.Validation("Spare plus travelling amount exceeds billing amount")
		}
	}
	switch job.PaymentMethod {
	case domain.PaymentMethodCash, domain.PaymentMethodOnline:
	default:
		return apperror.Validation("Payment method must be cash or online")
	}
	return nil
}
