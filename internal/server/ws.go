package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/minime/internal/logger"
	"github.com/ayusman/minime/internal/metrics"
	"github.com/ayusman/minime/internal/present"
)

const writeWait = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// PoseHandler streams one JSON pose message per tracked tick to each websocket client.
// Clients that fall behind miss messages instead of slowing the tracker down.
type PoseHandler struct {
	hub     *present.Broadcaster
	metrics *metrics.Metrics
}

// NewPoseHandler creates a PoseHandler fed by hub. m may be nil.
func NewPoseHandler(hub *present.Broadcaster, m *metrics.Metrics) *PoseHandler {
	return &PoseHandler{hub: hub, metrics: m}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *PoseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log().Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	msgs, cancel := h.hub.Subscribe()
	defer cancel()

	if h.metrics != nil {
		h.metrics.Clients.Inc()
		defer h.metrics.Clients.Dec()
	}

	// Keep reading so a client close is noticed
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case msg, ok := <-msgs:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "tracker stopped"))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
