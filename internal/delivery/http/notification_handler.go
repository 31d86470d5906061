package http

import (
	"net/http"
	"time"

	"goldbot/internal/domain"

	"github.com/gin-gonic/gin"
)

// NotificationHandler lets an operator check the notification channels end to end.
type NotificationHandler struct {
	notifier domain.Notifier
}

func NewNotificationHandler(notifier domain.Notifier) *NotificationHandler {
	return &NotificationHandler{notifier: notifier}
}

// SendTest handles POST /api/notifications/test
func (h *NotificationHandler) SendTest(c *gin.Context) {
	n := domain.Notification{
		Title: "Test notification",
		Body:  "Notifications from the XAUUSD engine are working.",
		Data: map[string]string{
			"type":      "TEST",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := h.notifier.Notify(c.Request.Context(), n); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": "Failed to send notification: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Test notification sent"})
}
