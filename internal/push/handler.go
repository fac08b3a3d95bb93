package push

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tendant/simple-org-admin/internal/httputil"
)

// TokenValidator resolves a bearer token to a user ID.
type TokenValidator interface {
	GetUserIDFromToken(token string) (uuid.UUID, error)
}

// Handler upgrades authenticated requests to push connections.
type Handler struct {
	hub      *Hub
	tokens   TokenValidator
	upgrader websocket.Upgrader
}

// NewHandler creates a push handler. allowedOrigins restricts browser
// origins; empty allows any.
func NewHandler(hub *Hub, tokens TokenValidator, allowedOrigins []string) *Handler {
	h := &Handler{hub: hub, tokens: tokens}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowedOrigins {
				if strings.EqualFold(o, origin) {
					return true
				}
			}
			return false
		},
	}
	return h
}

// ServeHTTP authenticates with the access_token query parameter, since
// browsers cannot set headers on websocket requests, or a bearer header.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("access_token")
	if token == "" {
		if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
			token = after
		}
	}
	if token == "" {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	userID, err := h.tokens.GetUserIDFromToken(token)
	if err != nil {
		httputil.Error(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.logger.Warn("push upgrade failed", "user_id", userID, "error", err)
		return
	}

	client := newClient(h.hub, userID, conn)
	h.hub.register(client)

	go client.writePump()
	go client.readPump()
}
