package httpserver

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/predmarket/predmarket/internal/pricefeed"
	"go.uber.org/zap"
)

// FeedHandler upgrades clients onto the websocket price feed.
type FeedHandler struct {
	hub      *pricefeed.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewFeedHandler creates a price feed handler.
func NewFeedHandler(hub *pricefeed.Hub, logger *zap.Logger) *FeedHandler {
	return &FeedHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// HandleFeed handles GET /ws/prices.
func (h *FeedHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("pricefeed-upgrade-failed", zap.Error(err))
		return
	}
	if client := pricefeed.NewClient(h.hub, conn); client == nil {
		h.logger.Debug("pricefeed-client-rejected-hub-stopped")
	}
}
