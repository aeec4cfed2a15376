package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Validation (VAL) ----

// Validation returns a VAL_001 error with a caller-supplied message.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New("VAL_001", "Amount must be positive", http.StatusBadRequest)
}

func ErrMissingTransactionID() *AppError {
	return New("VAL_001", "Transaction ID is required", http.StatusBadRequest)
}

func ErrUnsupportedTransactionType(kind string) *AppError {
	return New("VAL_002", fmt.Sprintf("Unsupported transaction type %q", kind), http.StatusBadRequest)
}

// ---- Ledger Business Logic (LED) ----

func ErrDuplicateTransaction() *AppError {
	return New("LED_001", "Transaction already applied", http.StatusConflict)
}

func ErrWalletNotFound(entity string) *AppError {
	return New("LED_002", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrInsufficientFunds() *AppError {
	return New("LED_003", "Insufficient available balance", http.StatusPaymentRequired)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// ErrPersistenceTimeout signals that the storage layer failed to commit
// within its deadline. Safe to retry with the same transaction ID.
func ErrPersistenceTimeout(err error) *AppError {
	return Wrap("SYS_002", "Persistence operation timed out", http.StatusServiceUnavailable, err)
}

// ErrPersistenceConflict signals a serialization/deadlock failure.
// Safe to retry with the same transaction ID.
func ErrPersistenceConflict(err error) *AppError {
	return Wrap("SYS_003", "Persistence conflict, retry the operation", http.StatusServiceUnavailable, err)
}

// ---- Reconciliation (REC) ----

// ErrReconciliationMismatch signals that a recalculation run found
// discrepancies exceeding the configured tolerance. Flagged rows are left
// unapplied for operator review.
func ErrReconciliationMismatch(flagged int) *AppError {
	return New("REC_001",
		fmt.Sprintf("Recalculation found %d discrepancies exceeding tolerance", flagged),
		http.StatusUnprocessableEntity)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired service token", http.StatusUnauthorized)
}

func ErrForbiddenService() *AppError {
	return New("AUTH_002", "Service not permitted on this endpoint", http.StatusForbidden)
}
