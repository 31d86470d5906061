package websocket

import (
	"net/http"
	"time"

	"goldbot/internal/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SnapshotSource provides the status pushed to clients.
type SnapshotSource interface {
	Snapshot() domain.Snapshot
}

// Message is one frame of the status stream.
type Message struct {
	Timestamp int64           `json:"timestamp"`
	Status    domain.Snapshot `json:"status"`
}

type Handler struct {
	source   SnapshotSource
	interval time.Duration
	logger   *zap.Logger
}

func NewHandler(source SnapshotSource, interval time.Duration, logger *zap.Logger) *Handler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Handler{source: source, interval: interval, logger: logger}
}

// Handle upgrades the connection and pushes the status every interval until the client
// goes away or the request context ends.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Debug("websocket client connected", zap.String("remote", r.RemoteAddr))

	// reader only detects the close frame
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.send(conn); err != nil {
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			h.logger.Debug("websocket client disconnected", zap.String("remote", r.RemoteAddr))
			return
		case <-ticker.C:
			if err := h.send(conn); err != nil {
				return
			}
		}
	}
}

func (h *Handler) send(conn *websocket.Conn) error {
	msg := Message{Timestamp: time.Now().UnixMilli(), Status: h.source.Snapshot()}
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Debug("websocket write failed", zap.Error(err))
		return err
	}
	return nil
}
