// Package payout holds the pure vendor-payout formulas. Calculators never
// error for well-formed numeric input; a negative result is surfaced to the
// caller so data-entry mistakes stay visible instead of being clamped away.
package payout

import "github.com/shopspring/decimal"

var (
	// vendorShare is the platform/vendor 50-50 split applied to the base.
	vendorShare = decimal.RequireFromString("0.5")
	// gstRate is applied to the billing amount when GST is included.
	gstRate = decimal.RequireFromString("0.18")
	// smallJobThreshold separates jobs whose flat booking fee is absorbed
	// into the split from jobs where it is carved out and returned in full.
	smallJobThreshold = decimal.NewFromInt(600)
)

// JobAmounts are the monetary inputs of a completed job.
type JobAmounts struct {
	BillingAmount    decimal.Decimal
	SpareAmount      decimal.Decimal
	TravellingAmount decimal.Decimal
	BookingAmount    decimal.Decimal
	GSTIncluded      bool
}

// Breakdown itemizes how a calculated amount was composed.
type Breakdown struct {
	BaseAmount       decimal.Decimal `json:"base_amount"`
	ShareAmount      decimal.Decimal `json:"share_amount"`
	GSTAmount        decimal.Decimal `json:"gst_amount"`
	SpareAmount      decimal.Decimal `json:"spare_amount"`
	TravellingAmount decimal.Decimal `json:"travelling_amount"`
	BookingAmount    decimal.Decimal `json:"booking_amount"`
}

// Result is a calculator output: the amount to move plus its breakdown.
type Result struct {
	CalculatedAmount decimal.Decimal `json:"calculated_amount"`
	Breakdown        Breakdown       `json:"breakdown"`
}

// CalculateEarning computes the vendor's payout share for a completed job
// paid online.
//
// Jobs billed at or under 600 absorb the flat booking fee into the 50% split:
//
//	base = billing - spare - travelling
//	payout = base*0.5 + spare + travelling
//
// Above 600 the booking fee is carved out and returned to the vendor in full:
//
//	base = billing - spare - travelling - booking
//	payout = base*0.5 + spare + travelling + booking
//
// GST never enters the earning path; the breakdown still reports the GST
// liability on the billing amount for visibility.
func CalculateEarning(in JobAmounts) Result {
	gst := decimal.Zero
	if in.GSTIncluded {
		gst = in.BillingAmount.Mul(gstRate)
	}

	var base, payout decimal.Decimal
	if in.BillingAmount.LessThanOrEqual(smallJobThreshold) {
		base = in.BillingAmount.Sub(in.SpareAmount).Sub(in.TravellingAmount)
		payout = base.Mul(vendorShare).Add(in.SpareAmount).Add(in.TravellingAmount)
	} else {
		base = in.BillingAmount.Sub(in.SpareAmount).Sub(in.TravellingAmount).Sub(in.BookingAmount)
		payout = base.Mul(vendorShare).Add(in.SpareAmount).Add(in.TravellingAmount).Add(in.BookingAmount)
	}

	share := base.Mul(vendorShare)
	return Result{
		CalculatedAmount: payout.Round(2),
		Breakdown: Breakdown{
			BaseAmount:       base.Round(2),
			ShareAmount:      share.Round(2),
			GSTAmount:        gst.Round(2),
			SpareAmount:      in.SpareAmount,
			TravellingAmount: in.TravellingAmount,
			BookingAmount:    in.BookingAmount,
		},
	}
}

// CalculateCashCollectionDeduction computes the amount withdrawn from a
// vendor's wallet when the customer paid the vendor in cash. Spare, travel
// and booking amounts were already handed to the vendor in cash, so only the
// platform's 50% cut is deducted, plus the GST liability when applicable:
//
//	base = billing - spare - travelling - booking
//	deduction = base*0.5 [+ billing*0.18]
func CalculateCashCollectionDeduction(in JobAmounts) Result {
	base := in.BillingAmount.Sub(in.SpareAmount).Sub(in.TravellingAmount).Sub(in.BookingAmount)
	share := base.Mul(vendorShare)

	gst := decimal.Zero
	deduction := share
	if in.GSTIncluded {
		gst = in.BillingAmount.Mul(gstRate)
		deduction = deduction.Add(gst)
	}

	return Result{
		CalculatedAmount: deduction.Round(2),
		Breakdown: Breakdown{
			BaseAmount:       base.Round(2),
			ShareAmount:      share.Round(2),
			GSTAmount:        gst.Round(2),
			SpareAmount:      in.SpareAmount,
			TravellingAmount: in.TravellingAmount,
			BookingAmount:    in.BookingAmount,
		},
	}
}
