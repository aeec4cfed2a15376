package postgres

import (
	"context"
	"testing"
	"time"

	"vendor-wallet-ledger/internal/core/domain"
	"vendor-wallet-ledger/internal/core/ports"
	"vendor-wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransaction(vendorID, txnID string) *domain.Transaction {
	id := txnID
	return &domain.Transaction{
		ID:            uuid.New(),
		VendorID:      vendorID,
		TransactionID: &id,
		Type:          domain.TransactionTypeDeposit,
		Amount:        decimal.NewFromInt(4000),
		Status:        domain.TransactionStatusCompleted,
		Description:   "Security deposit funding",
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
}

func transactionTestColumns() []string {
	return []string{
		"id", "vendor_id", "transaction_id", "type", "amount", "status",
		"description", "admin_notes", "case_id", "billing_amount", "spare_amount",
		"travelling_amount", "booking_amount", "calculated_amount", "payment_method",
		"gst_included", "created_at",
	}
}

func transactionRow(t *domain.Transaction) *pgxmock.Rows {
	rows := pgxmock.NewRows(transactionTestColumns())
	if t.Job != nil {
		method := string(t.Job.PaymentMethod)
		rows.AddRow(
			t.ID, t.VendorID, t.TransactionID, t.Type, t.Amount, t.Status,
			t.Description, t.AdminNotes, &t.Job.CaseID, &t.Job.BillingAmount, &t.Job.SpareAmount,
			&t.Job.TravellingAmount, &t.Job.BookingAmount, &t.Job.CalculatedAmount, &method,
			&t.Job.GSTIncluded, t.CreatedAt,
		)
		return rows
	}
	rows.AddRow(
		t.ID, t.VendorID, t.TransactionID, t.Type, t.Amount, t.Status,
		t.Description, t.AdminNotes, nil, nil, nil,
		nil, nil, nil, nil,
		nil, t.CreatedAt,
	)
	return rows
}

func TestTransactionRepo_Append(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction("vendor-1", "dep-001")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(txn.ID, txn.VendorID, txn.TransactionID, txn.Type, txn.Amount, txn.Status,
			txn.Description, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			txn.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Append(context.Background(), tx, txn)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_Append_DuplicateIndexViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction("vendor-1", "dep-001")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(txn.ID, txn.VendorID, txn.TransactionID, txn.Type, txn.Amount, txn.Status,
			txn.Description, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			txn.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "ux_transactions_vendor_txn"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Append(context.Background(), tx, txn)
	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "LED_001", appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_Exists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("vendor-1", "dep-001").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), "vendor-1", "dep-001")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_List_WithJobDetails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txnID := "job-001"
	txn := &domain.Transaction{
		ID:            uuid.New(),
		VendorID:      "vendor-1",
		TransactionID: &txnID,
		Type:          domain.TransactionTypeEarning,
		Amount:        decimal.NewFromInt(250),
		Status:        domain.TransactionStatusCompleted,
		Job: &domain.JobDetails{
			CaseID:           "case-1",
			BillingAmount:    decimal.NewFromInt(500),
			CalculatedAmount: decimal.NewFromInt(250),
			PaymentMethod:    domain.PaymentMethodOnline,
		},
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	kind := domain.TransactionTypeEarning
	mock.ExpectQuery("SELECT .+ FROM transactions .+ ORDER BY created_at ASC").
		WithArgs("vendor-1", kind, 50, 0).
		WillReturnRows(transactionRow(txn))

	rows, err := repo.List(context.Background(), ports.TransactionListParams{
		VendorID: "vendor-1",
		Type:     &kind,
		Limit:    50,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Job)
	assert.Equal(t, "case-1", rows[0].Job.CaseID)
	assert.True(t, rows[0].Job.BillingAmount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, domain.PaymentMethodOnline, rows[0].Job.PaymentMethod)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListNullIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction("vendor-1", "ignored")
	txn.TransactionID = nil

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM transactions .+ transaction_id IS NULL").
		WithArgs("vendor-1").
		WillReturnRows(transactionRow(txn))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	rows, err := repo.ListNullIDs(context.Background(), tx, "vendor-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].TransactionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_SetTransactionID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	rowID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions SET transaction_id").
		WithArgs("dep_vendor-1_1700000000_0", rowID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.SetTransactionID(context.Background(), tx, rowID, "dep_vendor-1_1700000000_0")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_UpdateAmounts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	rowID := uuid.New()
	amount := decimal.NewFromInt(250)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions SET amount").
		WithArgs(amount, amount, rowID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateAmounts(context.Background(), tx, rowID, amount, amount)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_SumCompleted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM transactions WHERE vendor_id .+ status = 'completed'").
		WithArgs("vendor-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"balance", "deposits", "withdrawals", "earnings", "penalties", "refunds", "bonuses",
		}).AddRow(
			decimal.NewFromInt(4150), decimal.NewFromInt(4000), decimal.NewFromInt(100),
			decimal.NewFromInt(250), decimal.Zero, decimal.Zero, decimal.Zero,
		))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	agg, err := repo.SumCompleted(context.Background(), tx, "vendor-1")
	require.NoError(t, err)
	assert.True(t, agg.Balance.Equal(decimal.NewFromInt(4150)))
	assert.True(t, agg.Deposits.Equal(decimal.NewFromInt(4000)))
	assert.True(t, agg.Earnings.Equal(decimal.NewFromInt(250)))
	assert.NoError(t, mock.ExpectationsWereMet())
}
