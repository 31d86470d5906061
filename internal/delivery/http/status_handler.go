package http

import (
	"net/http"

	"goldbot/internal/config"
	"goldbot/internal/domain"

	"github.com/gin-gonic/gin"
)

// StatusSource is the read-only view of the trading engine.
type StatusSource interface {
	Snapshot() domain.Snapshot
	Positions() []domain.Position
	Setups() map[domain.Mode]domain.Setup
	RiskState() domain.DailyRiskState
}

// Settings is the effective configuration shown by GET /api/settings.
type Settings struct {
	Instrument string              `json:"instrument"`
	Modes      []config.ModeConfig `json:"modes"`
	Risk       domain.RiskLimits   `json:"risk"`
	SpreadMax  float64             `json:"spreadMax"`
	PartialTP1 float64             `json:"partialCloseTp1"`
}

type StatusHandler struct {
	source   StatusSource
	settings Settings
}

func NewStatusHandler(source StatusSource, settings Settings) *StatusHandler {
	return &StatusHandler{source: source, settings: settings}
}

// Health handles GET /health
func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetStatus handles GET /api/status
func (h *StatusHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.source.Snapshot())
}

// GetPositions handles GET /api/positions
func (h *StatusHandler) GetPositions(c *gin.Context) {
	c.JSON(http.StatusOK, h.source.Positions())
}

// GetSetups handles GET /api/setups
func (h *StatusHandler) GetSetups(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"setups": h.source.Setups(),
		"risk":   h.source.RiskState(),
	})
}

// GetSettings handles GET /api/settings
func (h *StatusHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.settings)
}
