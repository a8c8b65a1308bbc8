package handlers

import (
	"net/http"

	"github.com/devchat/devchat/pkg"
	"github.com/devchat/devchat/services"
)

type UserHandler struct {
	userService   services.UserService
	uploadService services.UploadService
	maxUploadSize int64
}

func NewUserHandler(userService services.UserService, uploadService services.UploadService, maxUploadSize int64) *UserHandler {
	return &UserHandler{
		userService:   userService,
		uploadService: uploadService,
		maxUploadSize: maxUploadSize,
	}
}

// Me handles GET /api/users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	me, err := h.userService.Get(r.Context(), user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, me)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, users)
}

// UploadAvatar handles POST /api/users/me/avatar (multipart, field "file").
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	img, file, err := readImage(w, r, h.maxUploadSize)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	defer file.Close()

	url, err := h.uploadService.SaveAvatar(r.Context(), user.ID, img)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	updated, err := h.userService.UpdateAvatar(r.Context(), user.ID, url)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, updated)
}
