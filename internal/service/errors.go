package service

import (
	"context"
	"errors"
	"fmt"

	"vendor-wallet-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5/pgconn"
)

// mapStorageError translates raw storage failures into the ledger taxonomy.
// AppErrors pass through untouched; deadline expiry and
// serialization/deadlock failures become retryable SYS errors, everything
// else is SYS_001.
func mapStorageError(op string, err error) *apperror.AppError {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.ErrPersistenceTimeout(fmt.Errorf("%s: %w", op, err))
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return apperror.ErrPersistenceConflict(fmt.Errorf("%s: %w", op, err))
		}
	}
	return apperror.InternalError(fmt.Errorf("%s: %w", op, err))
}
