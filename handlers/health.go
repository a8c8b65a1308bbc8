package handlers

import (
	"net/http"

	"github.com/devchat/devchat/pkg"
)

// ConnectionCounter reports open realtime connections on this instance.
type ConnectionCounter interface {
	ConnectionCount() int
}

type HealthHandler struct {
	counter ConnectionCounter
}

func NewHealthHandler(counter ConnectionCounter) *HealthHandler {
	return &HealthHandler{counter: counter}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	pkg.JSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": h.counter.ConnectionCount(),
	})
}
