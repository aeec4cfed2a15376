package service

import (
	"context"
	"encoding/json"
	"errors"
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

const idempotencyTTL = 24 * time.Hour

// LedgerServiceImpl implements ports.LedgerService.
type LedgerServiceImpl struct {
	txRepo          ports.TransactionRepository
	walletRepo      ports.WalletRepository
	idempCache      ports.IdempotencyCache
	publisher       ports.EventPublisher
	transactor      ports.DBTransactor
	securityDeposit decimal.Decimal
	commitTimeout   time.Duration
	log             zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	txRepo ports.TransactionRepository,
	walletRepo ports.WalletRepository,
	idempCache ports.IdempotencyCache,
	publisher ports.EventPublisher,
	transactor ports.DBTransactor,
	securityDeposit decimal.Decimal,
	commitTimeout time.Duration,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		txRepo:          txRepo,
		walletRepo:      walletRepo,
		idempCache:      idempCache,
		publisher:       publisher,
		transactor:      transactor,
		securityDeposit: securityDeposit,
		commitTimeout:   commitTimeout,
		log:             log,
	}
}

// Append implements the ledger append algorithm with pessimistic locking.
// The vendor's wallet row lock serializes concurrent same-vendor appends;
// balance updates run server-side so no read-modify-write window exists.
func (s *LedgerServiceImpl) Append(ctx context.Context, req ports.AppendRequest) (*domain.Wallet, error) {
	if err := validateAppend(req); err != nil {
		return nil, err
	}

	amount, job := deriveAmount(req)

	idempKey := domain.BuildIdempotencyKey(req.VendorID, req.TransactionID)

	// Layer 1: Redis idempotency check
	cached, err := s.idempCache.Get(ctx, idempKey)
	if err != nil {
		s.log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != nil {
		wallet, err := s.unmarshalCachedWallet(cached)
		if err != nil {
			return nil, err
		}
		return wallet, apperror.ErrDuplicateTransaction()
	}

	// Layer 2: the ledger log itself is the idempotency record
	applied, err := s.txRepo.Exists(ctx, req.VendorID, req.TransactionID)
	if err != nil {
		return nil, mapStorageError("db idempotency check", err)
	}
	if applied {
		return s.duplicateSnapshot(ctx, req.VendorID)
	}

	// Begin database transaction with a commit deadline
	txCtx, cancel := context.WithTimeout(ctx, s.commitTimeout)
	defer cancel()

	dbTx, err := s.transactor.Begin(txCtx)
	if err != nil {
		return nil, mapStorageError("begin tx", err)
	}
	defer dbTx.Rollback(txCtx) //nolint:errcheck

	// Lazily create the wallet on first append, then lock it
	now := time.Now().UTC()
	if err := s.walletRepo.CreateIfAbsent(txCtx, dbTx, &domain.Wallet{
		ID:              uuid.New(),
		VendorID:        req.VendorID,
		SecurityDeposit: s.securityDeposit,
		CreatedAt:       now,
		UpdatedAt:       now,
	}); err != nil {
		return nil, mapStorageError("create wallet", err)
	}

	wallet, err := s.walletRepo.GetForUpdate(txCtx, dbTx, req.VendorID)
	if err != nil {
		return nil, mapStorageError("lock wallet", err)
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound("wallet")
	}

	// Business rule: withdrawals draw only from the available balance
	if req.Type == domain.TransactionTypeWithdrawal && wallet.AvailableBalance().LessThan(amount) {
		return nil, apperror.ErrInsufficientFunds()
	}

	transactionID := req.TransactionID
	txn := &domain.Transaction{
		ID:            uuid.New(),
		VendorID:      req.VendorID,
		TransactionID: &transactionID,
		Type:          req.Type,
		Amount:        amount,
		Status:        domain.TransactionStatusCompleted,
		Description:   req.Description,
		AdminNotes:    req.AdminNotes,
		Job:           job,
		CreatedAt:     now,
	}

	// Persist: append ledger row (the sparse unique index is the ground truth)
	if err := s.txRepo.Append(txCtx, dbTx, txn); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code == "LED_001" {
			// Lost the race to a concurrent retry; the committed state is
			// exactly what this call would have produced.
			_ = dbTx.Rollback(txCtx)
			return s.duplicateSnapshot(ctx, req.VendorID)
		}
		return nil, mapStorageError("append transaction", err)
	}

	// Persist: server-side balance and aggregate increment
	if err := s.walletRepo.ApplyTransaction(txCtx, dbTx, req.VendorID, txn.Type, txn.SignedAmount()); err != nil {
		return nil, mapStorageError("apply transaction", err)
	}

	// Commit
	if err := dbTx.Commit(txCtx); err != nil {
		return nil, mapStorageError("commit tx", err)
	}

	// Post-commit snapshot without a reread
	wallet.Apply(txn)
	wallet.UpdatedAt = now

	// Post-process: cache in Redis (best-effort)
	snapshot, err := json.Marshal(wallet)
	if err == nil {
		if cacheErr := s.idempCache.Set(ctx, idempKey, snapshot, idempotencyTTL); cacheErr != nil {
			s.log.Warn().Err(cacheErr).Str("key", idempKey).Msg("failed to cache wallet snapshot in redis")
		}
	}

	// Post-process: emit balance-changed fact (best-effort)
	if pubErr := s.publisher.PublishBalanceChanged(ctx, domain.BalanceChanged{
		VendorID:         req.VendorID,
		TransactionID:    req.TransactionID,
		Type:             txn.Type,
		Amount:           txn.Amount,
		CurrentBalance:   wallet.CurrentBalance,
		AvailableBalance: wallet.AvailableBalance(),
		Description:      txn.Description,
		OccurredAt:       now,
	}); pubErr != nil {
		s.log.Warn().Err(pubErr).Str("vendor_id", req.VendorID).Msg("failed to publish balance-changed event")
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("vendor_id", req.VendorID).
		Str("type", string(txn.Type)).
		Str("amount", txn.Amount.String()).
		Str("balance", wallet.CurrentBalance.String()).
		Msg("transaction appended")

	return wallet, nil
}

// GetBalance reads the wallet projection.
func (s *LedgerServiceImpl) GetBalance(ctx context.Context, vendorID string) (*domain.Wallet, error) {
	if vendorID == "" {
		return nil, apperror.Validation("Vendor ID is required")
	}
	wallet, err := s.walletRepo.GetByVendorID(ctx, vendorID)
	if err != nil {
		return nil, mapStorageError("get wallet", err)
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound("wallet")
	}
	return wallet, nil
}

// ListTransactions returns the vendor's ledger rows, oldest first.
func (s *LedgerServiceImpl) ListTransactions(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, error) {
	if params.VendorID == "" {
		return nil, apperror.Validation("Vendor ID is required")
	}
	if params.Type != nil && !params.Type.Valid() {
		return nil, apperror.ErrUnsupportedTransactionType(string(*params.Type))
	}
	if params.Limit <= 0 {
		params.Limit = 50
	} else if params.Limit > 200 {
		params.Limit = 200
	}
	if params.Offset < 0 {
		params.Offset = 0
	}
	rows, err := s.txRepo.List(ctx, params)
	if err != nil {
		return nil, mapStorageError("list transactions", err)
	}
	return rows, nil
}

// deriveAmount resolves the transaction amount: manual types carry it in the
// request, job types derive it from the matching payout calculator. Cash jobs
// arrive as penalties and run through the cash-collection deduction.
func deriveAmount(req ports.AppendRequest) (decimal.Decimal, *domain.JobDetails) {
	if req.Job == nil {
		return req.Amount, nil
	}

	in := payout.JobAmounts{
		BillingAmount:    req.Job.BillingAmount,
		SpareAmount:      req.Job.SpareAmount,
		TravellingAmount: req.Job.TravellingAmount,
		BookingAmount:    req.Job.BookingAmount,
		GSTIncluded:      req.Job.GSTIncluded,
	}

	var res payout.Result
	if req.Type == domain.TransactionTypeEarning {
		res = payout.CalculateEarning(in)
	} else {
		res = payout.CalculateCashCollectionDeduction(in)
	}

	return res.CalculatedAmount, &domain.JobDetails{
		CaseID:           req.Job.CaseID,
		BillingAmount:    req.Job.BillingAmount,
		SpareAmount:      req.Job.SpareAmount,
		TravellingAmount: req.Job.TravellingAmount,
		BookingAmount:    req.Job.BookingAmount,
		CalculatedAmount: res.CalculatedAmount,
		PaymentMethod:    req.Job.PaymentMethod,
		GSTIncluded:      req.Job.GSTIncluded,
	}
}

// duplicateSnapshot returns the committed wallet state alongside LED_001 so a
// retrying caller receives equivalent state.
func (s *LedgerServiceImpl) duplicateSnapshot(ctx context.Context, vendorID string) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByVendorID(ctx, vendorID)
	if err != nil {
		return nil, mapStorageError("get wallet after duplicate", err)
	}
	return wallet, apperror.ErrDuplicateTransaction()
}

// unmarshalCachedWallet deserializes a cached wallet snapshot.
func (s *LedgerServiceImpl) unmarshalCachedWallet(data []byte) (*domain.Wallet, error) {
	wallet := &domain.Wallet{}
	if err := json.Unmarshal(data, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached wallet: %w", err))
	}
	return wallet, nil
}
