package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"vendor-wallet-ledger/internal/core/domain"
	"vendor-wallet-ledger/internal/core/ports"
	"vendor-wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// --- In-Memory Wallet Repo ---

type inMemoryWalletRepo struct {
	mu      sync.RWMutex
	wallets map[string]*domain.Wallet
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{wallets: make(map[string]*domain.Wallet)}
}

func (r *inMemoryWalletRepo) GetByVendorID(ctx context.Context, vendorID string) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[vendorID]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, vendorID string) (*domain.Wallet, error) {
	// Row locking is provided by the locking transactor.
	return r.GetByVendorID(ctx, vendorID)
}

func (r *inMemoryWalletRepo) CreateIfAbsent(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.wallets[w.VendorID]; ok {
		return nil
	}
	cp := *w
	r.wallets[w.VendorID] = &cp
	return nil
}

func (r *inMemoryWalletRepo) ApplyTransaction(ctx context.Context, tx pgx.Tx, vendorID string, kind domain.TransactionType, amount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[vendorID]
	if !ok {
		return fmt.Errorf("wallet not found")
	}
	w.CurrentBalance = w.CurrentBalance.Add(amount)
	totalDelta := amount
	if !kind.IsCredit() {
		totalDelta = amount.Neg()
	}
	switch kind {
	case domain.TransactionTypeDeposit:
		w.TotalDeposits = w.TotalDeposits.Add(totalDelta)
	case domain.TransactionTypeWithdrawal:
		w.TotalWithdrawals = w.TotalWithdrawals.Add(totalDelta)
	case domain.TransactionTypeEarning:
		w.TotalEarnings = w.TotalEarnings.Add(totalDelta)
	case domain.TransactionTypePenalty:
		w.TotalPenalties = w.TotalPenalties.Add(totalDelta)
	case domain.TransactionTypeRefund:
		w.TotalRefunds = w.TotalRefunds.Add(totalDelta)
	case domain.TransactionTypeBonus:
		w.TotalBonuses = w.TotalBonuses.Add(totalDelta)
	}
	return nil
}

func (r *inMemoryWalletRepo) OverwriteAggregates(ctx context.Context, tx pgx.Tx, vendorID string, agg domain.Aggregates) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[vendorID]
	if !ok {
		return fmt.Errorf("wallet not found")
	}
	w.CurrentBalance = agg.Balance
	w.TotalDeposits = agg.Deposits
	w.TotalWithdrawals = agg.Withdrawals
	w.TotalEarnings = agg.Earnings
	w.TotalPenalties = agg.Penalties
	w.TotalRefunds = agg.Refunds
	w.TotalBonuses = agg.Bonuses
	return nil
}

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	mu   sync.RWMutex
	rows []*domain.Transaction
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{}
}

func (r *inMemoryTransactionRepo) Append(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.TransactionID != nil {
		for _, row := range r.rows {
			if row.VendorID == t.VendorID && row.TransactionID != nil && *row.TransactionID == *t.TransactionID {
				return apperror.ErrDuplicateTransaction()
			}
		}
	}
	cp := *t
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *inMemoryTransactionRepo) Exists(ctx context.Context, vendorID, transactionID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, row := range r.rows {
		if row.VendorID == vendorID && row.TransactionID != nil && *row.TransactionID == transactionID {
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryTransactionRepo) ExistsRow(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, row := range r.rows {
		if row.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryTransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for _, row := range r.rows {
		if row.VendorID != params.VendorID {
			continue
		}
		if params.Type != nil && row.Type != *params.Type {
			continue
		}
		if params.Status != nil && row.Status != *params.Status {
			continue
		}
		if params.From != nil && row.CreatedAt.Before(*params.From) {
			continue
		}
		if params.To != nil && row.CreatedAt.After(*params.To) {
			continue
		}
		result = append(result, *row)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	if params.Offset >= len(result) {
		return []domain.Transaction{}, nil
	}
	end := params.Offset + params.Limit
	if params.Limit <= 0 || end > len(result) {
		end = len(result)
	}
	return result[params.Offset:end], nil
}

func (r *inMemoryTransactionRepo) ListNullIDs(ctx context.Context, tx pgx.Tx, vendorID string) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for _, row := range r.rows {
		if row.VendorID == vendorID && row.TransactionID == nil {
			result = append(result, *row)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *inMemoryTransactionRepo) SetTransactionID(ctx context.Context, tx pgx.Tx, id uuid.UUID, transactionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id {
			tid := transactionID
			row.TransactionID = &tid
			return nil
		}
	}
	return fmt.Errorf("transaction not found")
}

func (r *inMemoryTransactionRepo) UpdateAmounts(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount, calculated decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id {
			row.Amount = amount
			if row.Job != nil {
				job := *row.Job
				job.CalculatedAmount = calculated
				row.Job = &job
			}
			return nil
		}
	}
	return fmt.Errorf("transaction not found")
}

func (r *inMemoryTransactionRepo) SumCompleted(ctx context.Context, tx pgx.Tx, vendorID string) (domain.Aggregates, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var agg domain.Aggregates
	for _, row := range r.rows {
		if row.VendorID != vendorID || !row.CountsTowardBalance() {
			continue
		}
		agg.Balance = agg.Balance.Add(row.SignedAmount())
		switch row.Type {
		case domain.TransactionTypeDeposit:
			agg.Deposits = agg.Deposits.Add(row.Amount)
		case domain.TransactionTypeWithdrawal:
			agg.Withdrawals = agg.Withdrawals.Add(row.Amount)
		case domain.TransactionTypeEarning:
			agg.Earnings = agg.Earnings.Add(row.Amount)
		case domain.TransactionTypePenalty:
			agg.Penalties = agg.Penalties.Add(row.Amount)
		case domain.TransactionTypeRefund:
			agg.Refunds = agg.Refunds.Add(row.Amount)
		case domain.TransactionTypeBonus:
			agg.Bonuses = agg.Bonuses.Add(row.Amount)
		}
	}
	return agg, nil
}

// --- In-Memory Legacy Repo ---

type inMemoryLegacyRepo struct {
	mu           sync.RWMutex
	vendors      map[string]*domain.LegacyVendor
	transactions map[string][]domain.Transaction
}

func newInMemoryLegacyRepo() *inMemoryLegacyRepo {
	return &inMemoryLegacyRepo{
		vendors:      make(map[string]*domain.LegacyVendor),
		transactions: make(map[string][]domain.Transaction),
	}
}

func (r *inMemoryLegacyRepo) seedVendor(v domain.LegacyVendor, rows []domain.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vendors[v.VendorID] = &v
	r.transactions[v.VendorID] = rows
}

func (r *inMemoryLegacyRepo) GetVendor(ctx context.Context, vendorID string) (*domain.LegacyVendor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vendors[vendorID]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (r *inMemoryLegacyRepo) ListTransactions(ctx context.Context, vendorID string) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Transaction(nil), r.transactions[vendorID]...), nil
}

// --- In-Memory Recalc Audit Repo ---

type inMemoryRecalcAuditRepo struct {
	mu      sync.RWMutex
	entries []domain.RecalcEntry
}

func newInMemoryRecalcAuditRepo() *inMemoryRecalcAuditRepo {
	return &inMemoryRecalcAuditRepo{}
}

func (r *inMemoryRecalcAuditRepo) Save(ctx context.Context, tx pgx.Tx, entries []domain.RecalcEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entries...)
	return nil
}

func (r *inMemoryRecalcAuditRepo) ListByVendor(ctx context.Context, vendorID string) ([]domain.RecalcEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.RecalcEntry
	for _, e := range r.entries {
		if e.VendorID == vendorID {
			result = append(result, e)
		}
	}
	return result, nil
}

// --- In-Memory Event Publisher ---

type capturePublisher struct {
	mu     sync.Mutex
	events []domain.BalanceChanged
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{}
}

func (p *capturePublisher) PublishBalanceChanged(ctx context.Context, ev domain.BalanceChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

// --- Locking Transactor ---

// lockingTransactor serializes transactions with one global mutex, standing in
// for the per-vendor wallet row lock a real database provides.
type lockingTransactor struct {
	mu sync.Mutex
}

func newLockingTransactor() *lockingTransactor {
	return &lockingTransactor{}
}

func (t *lockingTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	tx := &lockingTx{}
	tx.release = func() { t.mu.Unlock() }
	return tx, nil
}

// lockingTx is a no-op pgx.Tx that releases the transactor lock exactly once,
// on Commit or Rollback.
type lockingTx struct {
	once    sync.Once
	release func()
}

func (t *lockingTx) done() {
	t.once.Do(t.release)
}

func (t *lockingTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *lockingTx) Commit(ctx context.Context) error          { t.done(); return nil }
func (t *lockingTx) Rollback(ctx context.Context) error        { t.done(); return nil }
func (t *lockingTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *lockingTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *lockingTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *lockingTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *lockingTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *lockingTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *lockingTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *lockingTx) Conn() *pgx.Conn { return nil }
