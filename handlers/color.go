package handlers

import (
	"net/http"

	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg"
	"github.com/devchat/devchat/services"
)

type ColorHandler struct {
	colorService services.ColorService
}

func NewColorHandler(colorService services.ColorService) *ColorHandler {
	return &ColorHandler{colorService: colorService}
}

func (h *ColorHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	colors, err := h.colorService.List(r.Context(), user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, colors)
}

func (h *ColorHandler) Save(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.SaveColorRequest
	if !decodeBody(w, r, &req) {
		return
	}

	theme, err := h.colorService.Save(r.Context(), user.ID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, theme)
}
