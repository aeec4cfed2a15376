package handler

import (
	"errors"
	"strconv"
	"time"

	"vendor-wallet-ledger/internal/adapter/http/dto"
	"vendor-wallet-ledger/internal/core/domain"
	"vendor-wallet-ledger/internal/core/ports"
	"vendor-wallet-ledger/pkg/apperror"
	"vendor-wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet and transaction endpoints.
type WalletHandler struct {
	ledgerSvc ports.LedgerService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledgerSvc ports.LedgerService) *WalletHandler {
	return &WalletHandler{ledgerSvc: ledgerSvc}
}

// AppendTransaction handles POST /api/v1/wallets/:vendor_id/transactions.
// A replayed transaction ID answers 409 with the committed wallet snapshot in
// the error body, so retrying callers converge on the same state.
func (h *WalletHandler) AppendTransaction(c *gin.Context) {
	vendorID := c.Param("vendor_id")

	var req dto.AppendTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	appendReq := ports.AppendRequest{
		VendorID:      vendorID,
		TransactionID: req.TransactionID,
		Type:          domain.TransactionType(req.Type),
		Amount:        req.Amount,
		Description:   req.Description,
		AdminNotes:    req.AdminNotes,
	}
	if req.Job != nil {
		appendReq.Job = &ports.JobRequest{
			CaseID:           req.Job.CaseID,
			BillingAmount:    req.Job.BillingAmount,
			SpareAmount:      req.Job.SpareAmount,
			TravellingAmount: req.Job.TravellingAmount,
			BookingAmount:    req.Job.BookingAmount,
			PaymentMethod:    domain.PaymentMethod(req.Job.PaymentMethod),
			GSTIncluded:      req.Job.GSTIncluded,
		}
	}

	wallet, err := h.ledgerSvc.Append(c.Request.Context(), appendReq)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code == "LED_001" && wallet != nil {
			response.ErrorWithData(c, err, dto.FromWallet(wallet))
			return
		}
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromWallet(wallet))
}

// GetBalance handles GET /api/v1/wallets/:vendor_id.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	wallet, err := h.ledgerSvc.GetBalance(c.Request.Context(), c.Param("vendor_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromWallet(wallet))
}

// ListTransactions handles GET /api/v1/wallets/:vendor_id/transactions.
// Filters: type, status, from, to (RFC3339); pagination: limit, offset.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	params := ports.TransactionListParams{
		VendorID: c.Param("vendor_id"),
	}

	if v := c.Query("type"); v != "" {
		kind := domain.TransactionType(v)
		params.Type = &kind
	}
	if v := c.Query("status"); v != "" {
		status := domain.TransactionStatus(v)
		params.Status = &status
	}
	if v := c.Query("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.Error(c, apperror.Validation("from must be RFC3339"))
			return
		}
		params.From = &from
	}
	if v := c.Query("to"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.Error(c, apperror.Validation("to must be RFC3339"))
			return
		}
		params.To = &to
	}
	params.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	params.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	rows, err := h.ledgerSvc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(rows))
	for i := range rows {
		items = append(items, dto.FromTransaction(&rows[i]))
	}
	response.OK(c, dto.TransactionListResponse{
		Items:  items,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
}
