package handlers

import (
	"net/http"

	"github.com/devchat/devchat/pkg"
	"github.com/devchat/devchat/services"
)

type StarredHandler struct {
	starredService services.StarredService
}

func NewStarredHandler(starredService services.StarredService) *StarredHandler {
	return &StarredHandler{starredService: starredService}
}

func (h *StarredHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	starred, err := h.starredService.List(r.Context(), user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, starred)
}

// Star handles PUT /api/starred/{channelId}. Repeating it is harmless.
func (h *StarredHandler) Star(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	starred, err := h.starredService.Star(r.Context(), user.ID, r.PathValue("channelId"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, starred)
}

func (h *StarredHandler) Unstar(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.starredService.Unstar(r.Context(), user.ID, r.PathValue("channelId")); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "channel unstarred"})
}
