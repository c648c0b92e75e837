package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yourorg/rentnest/internal/domain"
	"github.com/yourorg/rentnest/internal/featureflags"
	"github.com/yourorg/rentnest/internal/security/middleware"
)

const (
	feedWriteTimeout = 5 * time.Second
	feedSendBuffer   = 16
)

// FeedHandler pushes application events to connected users over WebSocket.
// It implements domain.Notifier, so it plugs into the same fanout as the
// message-queue publisher: the tenant and owner named on an event receive it
// if they are connected, everyone else is skipped.
type FeedHandler struct {
	logger         *slog.Logger
	allowedOrigins []string
	flags          *featureflags.Flags

	mu    sync.RWMutex
	conns map[string]map[*feedConn]struct{} // userID -> connections
}

type feedConn struct {
	ws   *websocket.Conn
	send chan []byte
}

// NewFeedHandler creates a new live feed handler
func NewFeedHandler(logger *slog.Logger, allowedOrigins []string, flags *featureflags.Flags) *FeedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedHandler{
		logger:         logger,
		allowedOrigins: allowedOrigins,
		flags:          flags,
		conns:          make(map[string]map[*feedConn]struct{}),
	}
}

// upgrader is initialized per-request to use instance's allowed origins
func (h *FeedHandler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Allow requests with no origin (e.g., non-browser clients)
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// ServeHTTP handles GET /ws/feed
func (h *FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.flags != nil && !h.flags.Enabled("live_feed") {
		http.Error(w, "live feed disabled", http.StatusServiceUnavailable)
		return
	}

	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing auth", http.StatusUnauthorized)
		return
	}

	upgrader := h.getUpgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	conn := &feedConn{ws: ws, send: make(chan []byte, feedSendBuffer)}
	h.register(actor.ID, conn)
	h.logger.Debug("feed client connected", slog.String("user_id", actor.ID))

	go h.writeLoop(actor.ID, conn)
	h.readLoop(actor.ID, conn)
}

// Notify implements domain.Notifier by delivering the event to connected
// recipients. A slow or full client is skipped rather than blocking the
// caller.
func (h *FeedHandler) Notify(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	for _, userID := range recipients(ev) {
		h.mu.RLock()
		for conn := range h.conns[userID] {
			select {
			case conn.send <- payload:
			default:
				h.logger.Warn("feed client slow, dropping event", slog.String("user_id", userID))
			}
		}
		h.mu.RUnlock()
	}
	return nil
}

// recipients picks who should see the event. Applications concern exactly
// the tenant who applied and the owner deciding.
func recipients(ev domain.Event) []string {
	switch ev.Type {
	case domain.EventApplicationCreated:
		return []string{ev.OwnerID}
	case domain.EventApplicationDecided:
		return []string{ev.TenantID, ev.OwnerID}
	}
	return nil
}

func (h *FeedHandler) register(userID string, conn *feedConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*feedConn]struct{})
	}
	h.conns[userID][conn] = struct{}{}
}

func (h *FeedHandler) unregister(userID string, conn *feedConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[userID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.conns, userID)
		}
	}
}

func (h *FeedHandler) writeLoop(userID string, conn *feedConn) {
	// Heartbeat ping to keep connection alive
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-conn.send:
			if !ok {
				return
			}
			conn.ws.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := conn.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Debug("feed websocket closed", slog.String("user_id", userID))
				}
				return
			}
		case <-ticker.C:
			_ = conn.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(feedWriteTimeout))
		}
	}
}

// readLoop drains client messages until the connection drops, then cleans
// up. Clients are not expected to send anything.
func (h *FeedHandler) readLoop(userID string, conn *feedConn) {
	defer func() {
		h.unregister(userID, conn)
		close(conn.send)
		conn.ws.Close()
		h.logger.Debug("feed client disconnected", slog.String("user_id", userID))
	}()

	for {
		if _, _, err := conn.ws.ReadMessage(); err != nil {
			return
		}
	}
}
