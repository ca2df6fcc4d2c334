package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/bridge"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/service"
	"go.uber.org/zap"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService   *service.AuthService
	walletService *service.WalletService
	logger        *zap.Logger
}

// NewAuthHandlers creates new auth handlers. walletService may be nil, in
// which case the wallet endpoint is not served.
func NewAuthHandlers(authService *service.AuthService, walletService *service.WalletService, logger *zap.Logger) *AuthHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandlers{
		authService:   authService,
		walletService: walletService,
		logger:        logger,
	}
}

// Challenge handles the challenge request
func (h *AuthHandlers) Challenge(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	token, nonce, err := h.authService.CreateChallenge(req.Address)
	if err != nil {
		if errors.Is(err, core.ErrInvalidAddress) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address"})
			return
		}
		h.logger.Error("failed to create challenge", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create challenge"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "nonce": nonce})
}

// Login handles the login request
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		ChallengeToken string                    `json:"challenge_token" binding:"required"`
		Address        string                    `json:"address" binding:"required"`
		Signatures     []core.CompositeSignature `json:"signatures" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.ChallengeToken, req.Address, req.Signatures)
	if err != nil {
		h.authError(c, err, "Authentication failed")
		return
	}

	c.JSON(http.StatusOK, tokenResponse(result))
}

// Proof handles login with an account proof
func (h *AuthHandlers) Proof(c *gin.Context) {
	var req core.AccountProof
	if err := c.ShouldBindJSON(&req); err != nil || req.Address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.authService.AuthenticateProof(c.Request.Context(), &req)
	if err != nil {
		h.authError(c, err, "Authentication failed")
		return
	}

	c.JSON(http.StatusOK, tokenResponse(result))
}

// Wallet obtains an account proof from a wallet service and logs in with it
func (h *AuthHandlers) Wallet(c *gin.Context) {
	var req struct {
		Method string         `json:"method"`
		Params map[string]any `json:"params"`
	}

	// the body is optional
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
	}
	if req.Method != "" && req.Method != bridge.MethodPopup && req.Method != bridge.MethodRedirect {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported method"})
		return
	}

	svc := h.walletService.Service(req.Method, req.Params)
	result, err := h.walletService.Authenticate(c.Request.Context(), svc)
	if err != nil {
		var declined *core.DeclinedError
		switch {
		case errors.As(err, &declined):
			c.JSON(http.StatusForbidden, gin.H{"error": "Declined", "reason": declined.Reason})
		case errors.Is(err, core.ErrExternallyHalted):
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Wallet closed before answering"})
		default:
			h.authError(c, err, "Authentication failed")
		}
		return
	}

	c.JSON(http.StatusOK, tokenResponse(result))
}

// Refresh handles token refresh
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorMsg := "Failed to refresh tokens"

		switch {
		case errors.Is(err, core.ErrTokenExpired):
			statusCode = http.StatusUnauthorized
			errorMsg = "Refresh token expired"
		case errors.Is(err, core.ErrTokenInvalidated):
			statusCode = http.StatusUnauthorized
			errorMsg = "Refresh token has been invalidated"
		case errors.Is(err, core.ErrInvalidToken):
			statusCode = http.StatusBadRequest
			errorMsg = "Invalid refresh token"
		default:
			h.logger.Error("failed to refresh tokens", zap.Error(err))
		}

		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}

	c.JSON(http.StatusOK, tokenResponse(result))
}

// Logout handles session logout
func (h *AuthHandlers) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	err := h.authService.Logout(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrTokenExpired):
			// nothing left to invalidate
			c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
		case errors.Is(err, core.ErrInvalidToken):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid refresh token"})
		default:
			h.logger.Error("failed to logout", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns information about the authenticated user
func (h *AuthHandlers) Me(c *gin.Context) {
	address, exists := c.Get(contextAddressKey)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address": address,
	})
}

// Authorize checks if a user is authorized. Reaching it means the middleware
// accepted the access token.
func (h *AuthHandlers) Authorize(c *gin.Context) {
	address, exists := c.Get(contextAddressKey)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authorized": true,
		"address":    address,
	})
}

// authError maps login failures to status codes
func (h *AuthHandlers) authError(c *gin.Context, err error, fallback string) {
	statusCode := http.StatusInternalServerError
	errorMsg := fallback

	switch {
	case errors.Is(err, core.ErrReplayedOrStaleTimestamp):
		statusCode = http.StatusUnauthorized
		errorMsg = "Replayed or stale timestamp"
	case errors.Is(err, core.ErrImplausibleTimestamp):
		statusCode = http.StatusUnauthorized
		errorMsg = "Implausible timestamp"
	case errors.Is(err, core.ErrInvalidSignature):
		statusCode = http.StatusUnauthorized
		errorMsg = "Invalid signature"
	case errors.Is(err, core.ErrChallengeUsed):
		statusCode = http.StatusUnauthorized
		errorMsg = "Challenge already used"
	case errors.Is(err, core.ErrTokenExpired):
		statusCode = http.StatusBadRequest
		errorMsg = "Challenge token expired"
	case errors.Is(err, core.ErrInvalidChallenge), errors.Is(err, core.ErrInvalidToken):
		statusCode = http.StatusBadRequest
		errorMsg = "Invalid challenge token"
	case errors.Is(err, core.ErrInvalidAddress), errors.Is(err, core.ErrMalformedProof),
		errors.Is(err, core.ErrDomainTagTooLong):
		statusCode = http.StatusBadRequest
		errorMsg = "Invalid request"
	default:
		h.logger.Error("authentication failed", zap.Error(err))
	}

	c.JSON(statusCode, gin.H{"error": errorMsg})
}

func tokenResponse(result *core.AuthResult) gin.H {
	return gin.H{
		"address":       result.Address,
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"token_type":    "Bearer",
		"expires_in":    int(result.ExpiresIn.Seconds()),
	}
}
