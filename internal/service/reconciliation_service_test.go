package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"vendor-wallet-ledger/internal/core/domain"
	"vendor-wallet-ledger/internal/core/ports"
	"vendor-wallet-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type reconTestDeps struct {
	svc        *ReconciliationServiceImpl
	walletRepo *mocks.MockWalletRepository
	txRepo     *mocks.MockTransactionRepository
	legacyRepo *mocks.MockLegacyRepository
	auditRepo  *mocks.MockRecalcAuditRepository
	transactor *mocks.MockDBTransactor
	ctrl       *gomock.Controller
}

func setupReconciliationService(t *testing.T) *reconTestDeps {
	ctrl := gomock.NewController(t)
	d := &reconTestDeps{
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
		legacyRepo: mocks.NewMockLegacyRepository(ctrl),
		auditRepo:  mocks.NewMockRecalcAuditRepository(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewReconciliationService(
		d.walletRepo, d.txRepo, d.legacyRepo, d.auditRepo, d.transactor,
		decimal.NewFromInt(3999), decimal.NewFromInt(500), zerolog.Nop(),
	)
	return d
}

func earningRow(vendorID, txnID string, stored int64, billing int64) domain.Transaction {
	id := txnID
	return domain.Transaction{
		ID:            uuid.New(),
		VendorID:      vendorID,
		TransactionID: &id,
		Type:          domain.TransactionTypeEarning,
		Amount:        decimal.NewFromInt(stored),
		Status:        domain.TransactionStatusCompleted,
		Job: &domain.JobDetails{
			CaseID:           "case-" + txnID,
			BillingAmount:    decimal.NewFromInt(billing),
			CalculatedAmount: decimal.NewFromInt(stored),
			PaymentMethod:    domain.PaymentMethodOnline,
		},
		CreatedAt: time.Now().UTC(),
	}
}

// ==================== MigrateLegacyBalance Tests ====================

func TestReconciliation_MigrateLegacyBalance(t *testing.T) {
	d := setupReconciliationService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	depID := "dep-legacy-1"
	legacyRow := domain.Transaction{
		ID:            uuid.New(),
		VendorID:      "vendor-1",
		TransactionID: &depID,
		Type:          domain.TransactionTypeDeposit,
		Amount:        decimal.NewFromInt(400),
		Status:        domain.TransactionStatusCompleted,
	}

	d.legacyRepo.EXPECT().GetVendor(ctx, "vendor-1").Return(&domain.LegacyVendor{
		VendorID:        "vendor-1",
		Balance:         decimal.NewFromInt(1000),
		SecurityDeposit: decimal.NewFromInt(3999),
	}, nil)
	d.legacyRepo.EXPECT().ListTransactions(ctx, "vendor-1").Return([]domain.Transaction{legacyRow}, nil)
	d.txRepo.EXPECT().Exists(ctx, "vendor-1", "mig_vendor-1").Return(false, nil)
	d.txRepo.EXPECT().ExistsRow(ctx, legacyRow.ID).Return(false, nil)
	d.txRepo.EXPECT().Exists(ctx, "vendor-1", depID).Return(false, nil)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().CreateIfAbsent(ctx, tx, gomock.Any()).Return(nil)
	d.walletRepo.EXPECT().GetForUpdate(ctx, tx, "vendor-1").Return(freshWallet("vendor-1"), nil)
	d.txRepo.EXPECT().Append(ctx, tx, gomock.Any()).Return(nil)
	// Backfilled log replays to 400; the legacy field says 1000
	d.txRepo.EXPECT().SumCompleted(ctx, tx, "vendor-1").Return(domain.Aggregates{
		Balance:  decimal.NewFromInt(400),
		Deposits: decimal.NewFromInt(400),
	}, nil)
	var adjustment *domain.Transaction
	d.txRepo.EXPECT().Append(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, txn *domain.Transaction) error {
			adjustment = txn
			return nil
		})
	d.txRepo.EXPECT().SumCompleted(ctx, tx, "vendor-1").Return(domain.Aggregates{
		Balance:  decimal.NewFromInt(1000),
		Deposits: decimal.NewFromInt(1000),
	}, nil)
	d.walletRepo.EXPECT().OverwriteAggregates(ctx, tx, "vendor-1", gomock.Any()).Return(nil)

	migrated := freshWallet("vendor-1")
	migrated.CurrentBalance = decimal.NewFromInt(1000)
	d.walletRepo.EXPECT().GetByVendorID(ctx, "vendor-1").Return(migrated, nil)

	wallet, err := d.svc.MigrateLegacyBalance(ctx, "vendor-1")
	require.NoError(t, err)
	assert.True(t, wallet.CurrentBalance.Equal(decimal.NewFromInt(1000)))

	// Residual 600 recorded as a deposit adjustment keyed mig_<vendor>
	require.NotNil(t, adjustment)
	assert.Equal(t, domain.TransactionTypeDeposit, adjustment.Type)
	assert.True(t, adjustment.Amount.Equal(decimal.NewFromInt(600)))
	require.NotNil(t, adjustment.TransactionID)
	assert.Equal(t, "mig_vendor-1", *adjustment.TransactionID)
}

func TestReconciliation_MigrateLegacyBalance_SkipsAppliedRows(t *testing.T) {
	d := setupReconciliationService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	depID := "dep-legacy-1"
	legacyRow := domain.Transaction{
		ID:            uuid.New(),
		VendorID:      "vendor-1",
		TransactionID: &depID,
		Type:          domain.TransactionTypeDeposit,
		Amount:        decimal.NewFromInt(1000),
		Status:        domain.TransactionStatusCompleted,
	}

	d.legacyRepo.EXPECT().GetVendor(ctx, "vendor-1").Return(&domain.LegacyVendor{
		VendorID: "vendor-1",
		Balance:  decimal.NewFromInt(1000),
	}, nil)
	d.legacyRepo.EXPECT().ListTransactions(ctx, "vendor-1").Return([]domain.Transaction{legacyRow}, nil)
	d.txRepo.EXPECT().Exists(ctx, "vendor-1", "mig_vendor-1").Return(false, nil)
	// Row already present from an earlier partial run: no Append for it
	d.txRepo.EXPECT().ExistsRow(ctx, legacyRow.ID).Return(true, nil)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().CreateIfAbsent(ctx, tx, gomock.Any()).Return(nil)
	d.walletRepo.EXPECT().GetForUpdate(ctx, tx, "vendor-1").Return(freshWallet("vendor-1"), nil)
	d.txRepo.EXPECT().SumCompleted(ctx, tx, "vendor-1").Return(domain.Aggregates{
		Balance:  decimal.NewFromInt(1000),
		Deposits: decimal.NewFromInt(1000),
	}, nil)
	// Replayed balance already matches the legacy field: no adjustment
	d.walletRepo.EXPECT().OverwriteAggregates(ctx, tx, "vendor-1", gomock.Any()).Return(nil)

	migrated := freshWallet("vendor-1")
	migrated.CurrentBalance = decimal.NewFromInt(1000)
	d.walletRepo.EXPECT().GetByVendorID(ctx, "vendor-1").Return(migrated, nil)

	wallet, err := d.svc.MigrateLegacyBalance(ctx, "vendor-1")
	require.NoError(t, err)
	assert.True(t, wallet.CurrentBalance.Equal(decimal.NewFromInt(1000)))
}

func TestReconciliation_MigrateLegacyBalance_UnknownVendor(t *testing.T) {
	d := setupReconciliationService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.legacyRepo.EXPECT().GetVendor(ctx, "ghost").Return(nil, nil)

	wallet, err := d.svc.MigrateLegacyBalance(ctx, "ghost")
	assert.Nil(t, wallet)
	assertAppError(t, err, "LED_002")
}

// ==================== RepairNullIDs Tests ====================

func TestReconciliation_RepairNullIDs(t *testing.T) {
	d := setupReconciliationService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	rows := []domain.Transaction{
		{ID: uuid.New(), VendorID: "vendor-1", Type: domain.TransactionTypeDeposit},
		{ID: uuid.New(), VendorID: "vendor-1", Type: domain.TransactionTypeEarning},
	}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetForUpdate(ctx, tx, "vendor-1").Return(freshWallet("vendor-1"), nil)
	d.txRepo.EXPECT().ListNullIDs(ctx, tx, "vendor-1").Return(rows, nil)

	var synthesized []string
	d.txRepo.EXPECT().SetTransactionID(ctx, tx, rows[0].ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, _ uuid.UUID, id string) error {
			synthesized = append(synthesized, id)
			return nil
		})
	d.txRepo.EXPECT().SetTransactionID(ctx, tx, rows[1].ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, _ uuid.UUID, id string) error {
			synthesized = append(synthesized, id)
			return nil
		})

	repaired, err := d.svc.RepairNullIDs(ctx, "vendor-1")
	require.NoError(t, err)
	assert.Equal(t, 2, repaired)
	require.Len(t, synthesized, 2)
	assert.Regexp(t, `^dep_vendor-1_\d+_0$`, synthesized[0])
	assert.Regexp(t, `^ern_vendor-1_\d+_1$`, synthesized[1])
}

func TestReconciliation_RepairNullIDs_WalletNotFound(t *testing.T) {
	d := setupReconciliationService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetForUpdate(ctx, tx, "ghost").Return(nil, nil)

	repaired, err := d.svc.RepairNullIDs(ctx, "ghost")
	assert.Zero(t, repaired)
	assertAppError(t, err, "LED_002")
}

// ==================== RecalculateEarnings Tests ====================

func TestReconciliation_RecalculateEarnings_AppliesWithinTolerance(t *testing.T) {
	d := setupReconciliationService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	// Stored under the legacy formula at 240; current formula yields 250
	row := earningRow("vendor-1", "job-1", 240, 500)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetForUpdate(ctx, tx, "vendor-1").Return(freshWallet("vendor-1"), nil)
	d.txRepo.EXPECT().List(ctx, gomock.Any()).Return([]domain.Transaction{row}, nil)
	d.txRepo.EXPECT().
		UpdateAmounts(ctx, tx, row.ID, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, _ uuid.UUID, amount, calculated decimal.Decimal) error {
			assert.True(t, amount.Equal(decimal.NewFromInt(250)))
			assert.True(t, calculated.Equal(decimal.NewFromInt(250)))
			return nil
		})
	d.walletRepo.EXPECT().
		ApplyTransaction(ctx, tx, "vendor-1", domain.TransactionTypeEarning, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, _ string, _ domain.TransactionType, diff decimal.Decimal) error {
			assert.True(t, diff.Equal(decimal.NewFromInt(10)))
			return nil
		})
	d.auditRepo.EXPECT().Save(ctx, tx, gomock.Any()).Return(nil)

	report, err := d.svc.RecalculateEarnings(ctx, "vendor-1")
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)
	assert.True(t, report.Entries[0].Applied)
	assert.True(t, report.AppliedDifference.Equal(decimal.NewFromInt(10)))
	assert.Zero(t, report.Flagged)
}

func TestReconciliation_RecalculateEarnings_FlagsBeyondTolerance(t *testing.T) {
	d := setupReconciliationService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	// Stored 1000 vs recomputed 250: way past the 500 tolerance
	row := earningRow("vendor-1", "job-1", 1000, 500)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetForUpdate(ctx, tx, "vendor-1").Return(freshWallet("vendor-1"), nil)
	d.txRepo.EXPECT().List(ctx, gomock.Any()).Return([]domain.Transaction{row}, nil)
	// No UpdateAmounts, no ApplyTransaction: flagged rows stay untouched
	d.auditRepo.EXPECT().Save(ctx, tx, gomock.Any()).Return(nil)

	report, err := d.svc.RecalculateEarnings(ctx, "vendor-1")
	assertAppError(t, err, "REC_001")
	require.NotNil(t, report)
	require.Len(t, report.Entries, 1)
	assert.False(t, report.Entries[0].Applied)
	assert.Equal(t, 1, report.Flagged)
	assert.True(t, report.AppliedDifference.IsZero())
}

func TestReconciliation_RecalculateEarnings_PagesThroughLargeLedger(t *testing.T) {
	d := setupReconciliationService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	// A full first page forces a second fetch; the only drifted row sits
	// beyond it and must still be recalculated.
	fullPage := make([]domain.Transaction, recalcPageSize)
	for i := range fullPage {
		fullPage[i] = earningRow("vendor-1", fmt.Sprintf("job-%d", i), 250, 500)
	}
	drifted := earningRow("vendor-1", "job-overflow", 240, 500)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetForUpdate(ctx, tx, "vendor-1").Return(freshWallet("vendor-1"), nil)
	gomock.InOrder(
		d.txRepo.EXPECT().List(ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, params ports.TransactionListParams) ([]domain.Transaction, error) {
				assert.Equal(t, 0, params.Offset)
				assert.Equal(t, recalcPageSize, params.Limit)
				return fullPage, nil
			}),
		d.txRepo.EXPECT().List(ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, params ports.TransactionListParams) ([]domain.Transaction, error) {
				assert.Equal(t, recalcPageSize, params.Offset)
				return []domain.Transaction{drifted}, nil
			}),
	)
	d.txRepo.EXPECT().UpdateAmounts(ctx, tx, drifted.ID, gomock.Any(), gomock.Any()).Return(nil)
	d.walletRepo.EXPECT().
		ApplyTransaction(ctx, tx, "vendor-1", domain.TransactionTypeEarning, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, _ string, _ domain.TransactionType, diff decimal.Decimal) error {
			assert.True(t, diff.Equal(decimal.NewFromInt(10)))
			return nil
		})
	d.auditRepo.EXPECT().Save(ctx, tx, gomock.Any()).Return(nil)

	report, err := d.svc.RecalculateEarnings(ctx, "vendor-1")
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)
	assert.Equal(t, "job-overflow", report.Entries[0].TransactionID)
	assert.True(t, report.AppliedDifference.Equal(decimal.NewFromInt(10)))
}

func TestReconciliation_RecalculateEarnings_NoDrift(t *testing.T) {
	d := setupReconciliationService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	row := earningRow("vendor-1", "job-1", 250, 500)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetForUpdate(ctx, tx, "vendor-1").Return(freshWallet("vendor-1"), nil)
	d.txRepo.EXPECT().List(ctx, gomock.Any()).Return([]domain.Transaction{row}, nil)

	report, err := d.svc.RecalculateEarnings(ctx, "vendor-1")
	require.NoError(t, err)
	assert.Empty(t, report.Entries)
	assert.True(t, report.AppliedDifference.IsZero())
}

// ==================== VerifyBalance Tests ====================

func TestReconciliation_VerifyBalance_CleanWallet(t *testing.T) {
	d := setupReconciliationService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	wallet := freshWallet("vendor-1")
	wallet.CurrentBalance = decimal.NewFromInt(4250)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetForUpdate(ctx, tx, "vendor-1").Return(wallet, nil)
	d.txRepo.EXPECT().SumCompleted(ctx, tx, "vendor-1").Return(domain.Aggregates{
		Balance: decimal.NewFromInt(4250),
	}, nil)

	result, err := d.svc.VerifyBalance(ctx, "vendor-1", true)
	require.NoError(t, err)
	assert.True(t, result.Drift.IsZero())
	assert.False(t, result.Repaired)
}

func TestReconciliation_VerifyBalance_RepairsDrift(t *testing.T) {
	d := setupReconciliationService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	wallet := freshWallet("vendor-1")
	wallet.CurrentBalance = decimal.NewFromInt(4300)

	replayed := domain.Aggregates{Balance: decimal.NewFromInt(4250)}
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetForUpdate(ctx, tx, "vendor-1").Return(wallet, nil)
	d.txRepo.EXPECT().SumCompleted(ctx, tx, "vendor-1").Return(replayed, nil)
	d.walletRepo.EXPECT().OverwriteAggregates(ctx, tx, "vendor-1", replayed).Return(nil)

	result, err := d.svc.VerifyBalance(ctx, "vendor-1", true)
	require.NoError(t, err)
	assert.True(t, result.Drift.Equal(decimal.NewFromInt(50)))
	assert.True(t, result.Repaired)
	assert.True(t, result.ReplayedBalance.Equal(decimal.NewFromInt(4250)))
}

func TestReconciliation_VerifyBalance_DriftWithoutRepair(t *testing.T) {
	d := setupReconciliationService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	wallet := freshWallet("vendor-1")
	wallet.CurrentBalance = decimal.NewFromInt(4300)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetForUpdate(ctx, tx, "vendor-1").Return(wallet, nil)
	d.txRepo.EXPECT().SumCompleted(ctx, tx, "vendor-1").Return(domain.Aggregates{
		Balance: decimal.NewFromInt(4250),
	}, nil)

	result, err := d.svc.VerifyBalance(ctx, "vendor-1", false)
	require.NoError(t, err)
	assert.True(t, result.Drift.Equal(decimal.NewFromInt(50)))
	assert.False(t, result.Repaired)
}
