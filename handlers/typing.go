package handlers

import (
	"net/http"

	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg"
	"github.com/devchat/devchat/services"
)

// TypingHandler is the HTTP twin of the typing_start / typing_stop socket
// ops, for clients that do not keep a socket open.
type TypingHandler struct {
	typingService services.TypingService
}

func NewTypingHandler(typingService services.TypingService) *TypingHandler {
	return &TypingHandler{typingService: typingService}
}

func (h *TypingHandler) Start(w http.ResponseWriter, r *http.Request) {
	user, req, ok := h.decode(w, r)
	if !ok {
		return
	}

	typing := models.TypingUser{UserID: user.ID, Username: user.Username}
	if err := h.typingService.Start(r.Context(), typing, req.ChannelKey); err != nil {
		pkg.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TypingHandler) Stop(w http.ResponseWriter, r *http.Request) {
	user, req, ok := h.decode(w, r)
	if !ok {
		return
	}

	if err := h.typingService.Stop(r.Context(), user.ID, req.ChannelKey); err != nil {
		pkg.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TypingHandler) decode(w http.ResponseWriter, r *http.Request) (*models.User, *models.TypingRequest, bool) {
	user, ok := currentUser(w, r)
	if !ok {
		return nil, nil, false
	}

	var req models.TypingRequest
	if !decodeBody(w, r, &req) {
		return nil, nil, false
	}
	if req.ChannelKey == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "channel_key is required")
		return nil, nil, false
	}
	return user, &req, true
}
