package handler

import (
	"errors"
	"strconv"

	"vendor-wallet-ledger/internal/adapter/http/dto"
	"vendor-wallet-ledger/internal/core/ports"
	"vendor-wallet-ledger/pkg/apperror"
	"vendor-wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// ReconciliationHandler exposes the admin-only repair and migration
// endpoints. Routes are mounted behind RequireService("admin").
type ReconciliationHandler struct {
	reconSvc ports.ReconciliationService
}

// NewReconciliationHandler creates a new ReconciliationHandler.
func NewReconciliationHandler(reconSvc ports.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconSvc: reconSvc}
}

// MigrateLegacyBalance handles POST /api/v1/reconciliation/:vendor_id/migrate.
func (h *ReconciliationHandler) MigrateLegacyBalance(c *gin.Context) {
	wallet, err := h.reconSvc.MigrateLegacyBalance(c.Request.Context(), c.Param("vendor_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromWallet(wallet))
}

// RepairNullIDs handles POST /api/v1/reconciliation/:vendor_id/repair-ids.
func (h *ReconciliationHandler) RepairNullIDs(c *gin.Context) {
	repaired, err := h.reconSvc.RepairNullIDs(c.Request.Context(), c.Param("vendor_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"repaired": repaired})
}

// RecalculateEarnings handles POST /api/v1/reconciliation/:vendor_id/recalculate.
// Flagged discrepancies answer 422 with the full report in the error body so
// operators see what was applied and what needs review.
func (h *ReconciliationHandler) RecalculateEarnings(c *gin.Context) {
	report, err := h.reconSvc.RecalculateEarnings(c.Request.Context(), c.Param("vendor_id"))
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code == "REC_001" && report != nil {
			response.ErrorWithData(c, err, report)
			return
		}
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// VerifyBalance handles POST /api/v1/reconciliation/:vendor_id/verify.
// With ?repair=true, drift is corrected from the log.
func (h *ReconciliationHandler) VerifyBalance(c *gin.Context) {
	repair, _ := strconv.ParseBool(c.DefaultQuery("repair", "false"))
	verification, err := h.reconSvc.VerifyBalance(c.Request.Context(), c.Param("vendor_id"), repair)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, verification)
}
