package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Transactor is the unit-of-work entry point for ledger mutations: services
// open a pgx.Tx through it and pass the handle down to the repositories, so
// the wallet lock, the log append and the balance update commit atomically.
type Transactor struct {
	pool Pool
}

func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// Begin opens a transaction on the pool. Callers own commit and rollback.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return t.pool.Begin(ctx)
}
