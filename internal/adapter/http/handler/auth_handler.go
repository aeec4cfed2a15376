package handler

import (
	"crypto/subtle"
	"net/http"
	"time"

	"vendor-wallet-ledger/internal/adapter/http/dto"
	"vendor-wallet-ledger/internal/core/ports"
	"vendor-wallet-ledger/pkg/apperror"
	"vendor-wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler issues service tokens to collaborator systems. Issuance is
// guarded by the shared provisioning secret in the X-Provision-Key header.
type AuthHandler struct {
	tokenSvc     ports.TokenService
	provisionKey string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(tokenSvc ports.TokenService, provisionKey string) *AuthHandler {
	return &AuthHandler{tokenSvc: tokenSvc, provisionKey: provisionKey}
}

// IssueToken handles POST /api/v1/auth/token.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	key := c.GetHeader("X-Provision-Key")
	if h.provisionKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.provisionKey)) != 1 {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	token, expiry, err := h.tokenSvc.Generate(req.Service)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	response.OK(c, dto.TokenResponse{Token: token, Expiry: expiry.Unix()})
}

// HealthCheck returns a handler that pings every dependency and reports
// per-dependency status. Answers 503 when any dependency is down.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		deps := make(map[string]string, len(checkers))
		healthy := true
		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				deps[checker.Name()] = "down"
				healthy = false
			} else {
				deps[checker.Name()] = "up"
			}
		}

		status := "ok"
		code := http.StatusOK
		if !healthy {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":       status,
			"dependencies": deps,
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
		})
	}
}
