package service

import (
	"context"
	"fmt"
	"time"

	"vendor-wallet-ledger/internal/core/domain"
	"vendor-wallet-ledger/internal/core/ports"
	"vendor-wallet-ledger/internal/payout"
	"vendor-wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// recalcPageSize bounds one List page during an earning recalculation run.
const recalcPageSize = 1000

// ReconciliationServiceImpl implements ports.ReconciliationService. Every
// operation takes the vendor's wallet lock for its whole unit of work, so it
// never interleaves with live appends, and every operation is safe to re-run.
type ReconciliationServiceImpl struct {
	walletRepo      ports.WalletRepository
	txRepo          ports.TransactionRepository
	legacyRepo      ports.LegacyRepository
	auditRepo       ports.RecalcAuditRepository
	transactor      ports.DBTransactor
	securityDeposit decimal.Decimal
	tolerance       decimal.Decimal
	log             zerolog.Logger
}

// NewReconciliationService creates a new ReconciliationServiceImpl.
func NewReconciliationService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	legacyRepo ports.LegacyRepository,
	auditRepo ports.RecalcAuditRepository,
	transactor ports.DBTransactor,
	securityDeposit decimal.Decimal,
	tolerance decimal.Decimal,
	log zerolog.Logger,
) *ReconciliationServiceImpl {
	return &ReconciliationServiceImpl{
		walletRepo:      walletRepo,
		txRepo:          txRepo,
		legacyRepo:      legacyRepo,
		auditRepo:       auditRepo,
		transactor:      transactor,
		securityDeposit: securityDeposit,
		tolerance:       tolerance,
		log:             log,
	}
}

// MigrateLegacyBalance seeds a wallet from the legacy single-balance field.
// Legacy rows are backfilled into the log, then any residual between the
// replayed balance and the legacy field is recorded as an adjustment
// transaction so the replay invariant holds from day one.
//
// Duplicate detection runs against the pool before the transaction begins: a
// unique-index violation inside a pgx transaction aborts the whole
// transaction, so conflicts must be avoided, not caught.
func (s *ReconciliationServiceImpl) MigrateLegacyBalance(ctx context.Context, vendorID string) (*domain.Wallet, error) {
	if vendorID == "" {
		return nil, apperror.Validation("Vendor ID is required")
	}

	legacy, err := s.legacyRepo.GetVendor(ctx, vendorID)
	if err != nil {
		return nil, mapStorageError("get legacy vendor", err)
	}
	if legacy == nil {
		return nil, apperror.ErrWalletNotFound("legacy vendor")
	}

	legacyRows, err := s.legacyRepo.ListTransactions(ctx, vendorID)
	if err != nil {
		return nil, mapStorageError("list legacy transactions", err)
	}

	adjID := "mig_" + vendorID
	adjExists, err := s.txRepo.Exists(ctx, vendorID, adjID)
	if err != nil {
		return nil, mapStorageError("check migration adjustment", err)
	}

	pending, err := s.filterAlreadyApplied(ctx, vendorID, legacyRows)
	if err != nil {
		return nil, err
	}

	deposit := legacy.SecurityDeposit
	if deposit.IsZero() {
		deposit = s.securityDeposit
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, mapStorageError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	if err := s.walletRepo.CreateIfAbsent(ctx, dbTx, &domain.Wallet{
		ID:              uuid.New(),
		VendorID:        vendorID,
		SecurityDeposit: deposit,
		CreatedAt:       now,
		UpdatedAt:       now,
	}); err != nil {
		return nil, mapStorageError("create wallet", err)
	}
	if _, err := s.walletRepo.GetForUpdate(ctx, dbTx, vendorID); err != nil {
		return nil, mapStorageError("lock wallet", err)
	}

	for i := range pending {
		if err := s.txRepo.Append(ctx, dbTx, &pending[i]); err != nil {
			return nil, mapStorageError("backfill legacy row", err)
		}
	}

	agg, err := s.txRepo.SumCompleted(ctx, dbTx, vendorID)
	if err != nil {
		return nil, mapStorageError("replay backfilled log", err)
	}

	residual := legacy.Balance.Sub(agg.Balance)
	if !residual.IsZero() && !adjExists {
		kind := domain.TransactionTypeDeposit
		if residual.IsNegative() {
			kind = domain.TransactionTypeWithdrawal
		}
		adj := &domain.Transaction{
			ID:            uuid.New(),
			VendorID:      vendorID,
			TransactionID: &adjID,
			Type:          kind,
			Amount:        residual.Abs(),
			Status:        domain.TransactionStatusCompleted,
			Description:   "Legacy balance migration adjustment",
			CreatedAt:     now,
		}
		if err := s.txRepo.Append(ctx, dbTx, adj); err != nil {
			return nil, mapStorageError("append migration adjustment", err)
		}
		agg, err = s.txRepo.SumCompleted(ctx, dbTx, vendorID)
		if err != nil {
			return nil, mapStorageError("replay adjusted log", err)
		}
	}

	if err := s.walletRepo.OverwriteAggregates(ctx, dbTx, vendorID, agg); err != nil {
		return nil, mapStorageError("write aggregates", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, mapStorageError("commit tx", err)
	}

	s.log.Info().
		Str("vendor_id", vendorID).
		Int("backfilled", len(pending)).
		Str("balance", agg.Balance.String()).
		Msg("legacy balance migrated")

	wallet, err := s.walletRepo.GetByVendorID(ctx, vendorID)
	if err != nil {
		return nil, mapStorageError("get wallet", err)
	}
	return wallet, nil
}

// filterAlreadyApplied drops legacy rows the ledger already holds, by row ID
// and by transaction ID. Makes re-running a partially failed migration safe.
func (s *ReconciliationServiceImpl) filterAlreadyApplied(ctx context.Context, vendorID string, rows []domain.Transaction) ([]domain.Transaction, error) {
	pending := make([]domain.Transaction, 0, len(rows))
	for i := range rows {
		row := rows[i]
		exists, err := s.txRepo.ExistsRow(ctx, row.ID)
		if err != nil {
			return nil, mapStorageError("check legacy row", err)
		}
		if exists {
			continue
		}
		if row.TransactionID != nil {
			applied, err := s.txRepo.Exists(ctx, vendorID, *row.TransactionID)
			if err != nil {
				return nil, mapStorageError("check legacy transaction id", err)
			}
			if applied {
				continue
			}
		}
		pending = append(pending, row)
	}
	return pending, nil
}

// RepairNullIDs synthesizes deterministic transaction IDs for legacy rows
// persisted without one. Returns the number of repaired rows.
func (s *ReconciliationServiceImpl) RepairNullIDs(ctx context.Context, vendorID string) (int, error) {
	if vendorID == "" {
		return 0, apperror.Validation("Vendor ID is required")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return 0, mapStorageError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetForUpdate(ctx, dbTx, vendorID)
	if err != nil {
		return 0, mapStorageError("lock wallet", err)
	}
	if wallet == nil {
		return 0, apperror.ErrWalletNotFound("wallet")
	}

	rows, err := s.txRepo.ListNullIDs(ctx, dbTx, vendorID)
	if err != nil {
		return 0, mapStorageError("list null-id rows", err)
	}

	stamp := time.Now().UTC().Unix()
	for i := range rows {
		synthesized := fmt.Sprintf("%s_%s_%d_%d", rows[i].Type.Prefix(), vendorID, stamp, i)
		if err := s.txRepo.SetTransactionID(ctx, dbTx, rows[i].ID, synthesized); err != nil {
			return 0, mapStorageError("set transaction id", err)
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return 0, mapStorageError("commit tx", err)
	}

	s.log.Info().Str("vendor_id", vendorID).Int("repaired", len(rows)).Msg("null transaction ids repaired")
	return len(rows), nil
}

// RecalculateEarnings replays completed earning rows through the current
// formula. Differences within the tolerance are applied to the row, the
// balance and totalEarnings; larger differences are flagged, left unapplied
// and reported via REC_001. Re-running after a clean pass yields zero diffs.
func (s *ReconciliationServiceImpl) RecalculateEarnings(ctx context.Context, vendorID string) (*ports.RecalculationReport, error) {
	if vendorID == "" {
		return nil, apperror.Validation("Vendor ID is required")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, mapStorageError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetForUpdate(ctx, dbTx, vendorID)
	if err != nil {
		return nil, mapStorageError("lock wallet", err)
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound("wallet")
	}

	kind := domain.TransactionTypeEarning
	status := domain.TransactionStatusCompleted

	now := time.Now().UTC()
	report := &ports.RecalculationReport{
		VendorID:          vendorID,
		Entries:           []domain.RecalcEntry{},
		AppliedDifference: decimal.Zero,
	}

	// Page through the whole earning log; the wallet lock keeps it stable
	// for the duration of the run, so a (Limit, Offset) walk sees every row.
	for offset := 0; ; offset += recalcPageSize {
		rows, err := s.txRepo.List(ctx, ports.TransactionListParams{
			VendorID: vendorID,
			Type:     &kind,
			Status:   &status,
			Limit:    recalcPageSize,
			Offset:   offset,
		})
		if err != nil {
			return nil, mapStorageError("list earnings", err)
		}

		for i := range rows {
			row := rows[i]
			if row.Job == nil {
				continue
			}
			res := payout.CalculateEarning(payout.JobAmounts{
				BillingAmount:    row.Job.BillingAmount,
				SpareAmount:      row.Job.SpareAmount,
				TravellingAmount: row.Job.TravellingAmount,
				BookingAmount:    row.Job.BookingAmount,
				GSTIncluded:      row.Job.GSTIncluded,
			})
			diff := res.CalculatedAmount.Sub(row.Amount)
			if diff.IsZero() {
				continue
			}

			entry := domain.RecalcEntry{
				ID:         uuid.NewString(),
				VendorID:   vendorID,
				OldAmount:  row.Amount,
				NewAmount:  res.CalculatedAmount,
				Difference: diff,
				CreatedAt:  now,
			}
			if row.TransactionID != nil {
				entry.TransactionID = *row.TransactionID
			}

			if diff.Abs().LessThanOrEqual(s.tolerance) {
				if err := s.txRepo.UpdateAmounts(ctx, dbTx, row.ID, res.CalculatedAmount, res.CalculatedAmount); err != nil {
					return nil, mapStorageError("update recalculated amount", err)
				}
				entry.Applied = true
				report.AppliedDifference = report.AppliedDifference.Add(diff)
			} else {
				report.Flagged++
			}
			report.Entries = append(report.Entries, entry)
		}

		if len(rows) < recalcPageSize {
			break
		}
	}

	if !report.AppliedDifference.IsZero() {
		if err := s.walletRepo.ApplyTransaction(ctx, dbTx, vendorID, domain.TransactionTypeEarning, report.AppliedDifference); err != nil {
			return nil, mapStorageError("apply recalculated difference", err)
		}
	}
	if len(report.Entries) > 0 {
		if err := s.auditRepo.Save(ctx, dbTx, report.Entries); err != nil {
			return nil, mapStorageError("save recalc audit", err)
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, mapStorageError("commit tx", err)
	}

	s.log.Info().
		Str("vendor_id", vendorID).
		Int("recalculated", len(report.Entries)).
		Int("flagged", report.Flagged).
		Str("applied_difference", report.AppliedDifference.String()).
		Msg("earning recalculation finished")

	if report.Flagged > 0 {
		return report, apperror.ErrReconciliationMismatch(report.Flagged)
	}
	return report, nil
}

// VerifyBalance replays completed rows server-side and compares against the
// stored projection. With repair set, the projection is rewritten from the
// replayed state.
func (s *ReconciliationServiceImpl) VerifyBalance(ctx context.Context, vendorID string, repair bool) (*ports.BalanceVerification, error) {
	if vendorID == "" {
		return nil, apperror.Validation("Vendor ID is required")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, mapStorageError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetForUpdate(ctx, dbTx, vendorID)
	if err != nil {
		return nil, mapStorageError("lock wallet", err)
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound("wallet")
	}

	agg, err := s.txRepo.SumCompleted(ctx, dbTx, vendorID)
	if err != nil {
		return nil, mapStorageError("replay log", err)
	}

	result := &ports.BalanceVerification{
		VendorID:        vendorID,
		StoredBalance:   wallet.CurrentBalance,
		ReplayedBalance: agg.Balance,
		Drift:           wallet.CurrentBalance.Sub(agg.Balance),
	}

	if repair && !result.Drift.IsZero() {
		if err := s.walletRepo.OverwriteAggregates(ctx, dbTx, vendorID, agg); err != nil {
			return nil, mapStorageError("repair aggregates", err)
		}
		result.Repaired = true
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, mapStorageError("commit tx", err)
	}

	if !result.Drift.IsZero() {
		s.log.Warn().
			Str("vendor_id", vendorID).
			Str("drift", result.Drift.String()).
			Bool("repaired", result.Repaired).
			Msg("balance drift detected")
	}
	return result, nil
}
