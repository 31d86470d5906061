package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// TokenStore keeps push notification device tokens.
type TokenStore interface {
	Register(token, platform string, at time.Time) error
	Unregister(token string)
	Count() int
}

type TokenHandler struct {
	store TokenStore
	now   func() time.Time
}

func NewTokenHandler(store TokenStore) *TokenHandler {
	return &TokenHandler{store: store, now: time.Now}
}

type RegisterTokenRequest struct {
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform"`
}

type TokenResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// Register handles POST /api/tokens
func (h *TokenHandler) Register(c *gin.Context) {
	var req RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}
	if err := h.store.Register(req.Token, req.Platform, h.now().UTC()); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, TokenResponse{
		Success: true,
		Message: "Token registered successfully",
		Count:   h.store.Count(),
	})
}

// Unregister handles DELETE /api/tokens
func (h *TokenHandler) Unregister(c *gin.Context) {
	var req RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}
	h.store.Unregister(req.Token)
	c.JSON(http.StatusOK, TokenResponse{
		Success: true,
		Message: "Token unregistered successfully",
		Count:   h.store.Count(),
	})
}

// Count handles GET /api/tokens/count
func (h *TokenHandler) Count(c *gin.Context) {
	c.JSON(http.StatusOK, TokenResponse{
		Success: true,
		Message: "Token count retrieved",
		Count:   h.store.Count(),
	})
}
