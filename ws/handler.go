package ws

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/devchat/devchat/models"
)

// TokenValidator checks the access token passed on the upgrade request.
// AuthService satisfies it.
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
}

// Browsers cannot send headers on a WebSocket upgrade, so CORS does not
// apply; the token is the only credential.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Handler struct {
	hub            *Hub
	tokenValidator TokenValidator
}

func NewHandler(hub *Hub, tokenValidator TokenValidator) *Handler {
	return &Handler{
		hub:            hub,
		tokenValidator: tokenValidator,
	}
}

// HandleConnection serves GET /ws?token=<access token>.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.tokenValidator.ValidateAccessToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for user %s: %v", claims.UserID, err)
		return
	}

	client := newClient(h.hub, conn, claims.UserID, claims.Username)

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	client.sendEvent(Event{Op: OpReady, Data: ReadyData{UserID: claims.UserID, Username: claims.Username}})

	go client.WritePump()
	client.ReadPump()
}
