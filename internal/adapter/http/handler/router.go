package handler

import (
	"vendor-wallet-ledger/internal/adapter/http/middleware"
	"vendor-wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps bundles everything the router needs.
type RouterDeps struct {
	WalletHandler         *WalletHandler
	ReconciliationHandler *ReconciliationHandler
	AuthHandler           *AuthHandler
	TokenService          ports.TokenService
	HealthCheckers        []ports.HealthChecker
	Logger                zerolog.Logger
	Mode                  string
}

// SetupRouter wires middleware and routes.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(deps.Mode)

	router := gin.New()
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.MaxBodySize(1 << 20)) // 1 MiB

	router.GET("/health", HealthCheck(deps.HealthCheckers...))

	v1 := router.Group("/api/v1")

	v1.POST("/auth/token", deps.AuthHandler.IssueToken)

	wallets := v1.Group("/wallets")
	wallets.Use(middleware.ServiceAuth(deps.TokenService, deps.Logger))
	{
		wallets.POST("/:vendor_id/transactions", deps.WalletHandler.AppendTransaction)
		wallets.GET("/:vendor_id", deps.WalletHandler.GetBalance)
		wallets.GET("/:vendor_id/transactions", deps.WalletHandler.ListTransactions)
	}

	recon := v1.Group("/reconciliation")
	recon.Use(middleware.ServiceAuth(deps.TokenService, deps.Logger))
	recon.Use(middleware.RequireService("admin"))
	{
		recon.POST("/:vendor_id/migrate", deps.ReconciliationHandler.MigrateLegacyBalance)
		recon.POST("/:vendor_id/repair-ids", deps.ReconciliationHandler.RepairNullIDs)
		recon.POST("/:vendor_id/recalculate", deps.ReconciliationHandler.RecalculateEarnings)
		recon.POST("/:vendor_id/verify", deps.ReconciliationHandler.VerifyBalance)
	}

	return router
}
