package handlers

import (
	"net/http"
	"strconv"

	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg"
	"github.com/devchat/devchat/pkg/ratelimit"
	"github.com/devchat/devchat/services"
)

// MessageHandler serves both /api/channels/{id}/... and /api/dm/{userId}/...
// The wildcard that is present decides the target.
type MessageHandler struct {
	messageService services.MessageService
	uploadService  services.UploadService
	dmService      services.DMService
	limiter        *ratelimit.Limiter
	maxUploadSize  int64
}

func NewMessageHandler(
	messageService services.MessageService,
	uploadService services.UploadService,
	dmService services.DMService,
	limiter *ratelimit.Limiter,
	maxUploadSize int64,
) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		uploadService:  uploadService,
		dmService:      dmService,
		limiter:        limiter,
		maxUploadSize:  maxUploadSize,
	}
}

func (h *MessageHandler) target(r *http.Request, user *models.User) (models.MessageTarget, error) {
	if peerID := r.PathValue("userId"); peerID != "" {
		return h.dmService.Target(r.Context(), user.ID, peerID)
	}
	return models.PublicTarget(r.PathValue("id")), nil
}

// resolve writes the error response itself and reports whether the
// handler should go on.
func (h *MessageHandler) resolve(w http.ResponseWriter, r *http.Request) (*models.User, models.MessageTarget, bool) {
	user, ok := currentUser(w, r)
	if !ok {
		return nil, models.MessageTarget{}, false
	}
	target, err := h.target(r, user)
	if err != nil {
		pkg.Error(w, err)
		return nil, models.MessageTarget{}, false
	}
	return user, target, true
}

func (h *MessageHandler) allow(w http.ResponseWriter, user *models.User) bool {
	if h.limiter == nil || h.limiter.Allow(user.ID) {
		return true
	}
	tooManyRequests(w, h.limiter.RetryAfter(user.ID), "you are sending messages too fast, please wait")
	return false
}

// List handles GET .../messages?before=<id>&limit=<n>.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	user, target, ok := h.resolve(w, r)
	if !ok {
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	messages, err := h.messageService.List(r.Context(), user.ID, target, r.URL.Query().Get("before"), limit)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, messages)
}

func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, target, ok := h.resolve(w, r)
	if !ok || !h.allow(w, user) {
		return
	}

	var req models.CreateMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}

	message, err := h.messageService.Send(r.Context(), user, target, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, message)
}

// CreateImage stores the uploaded image and sends it as an image message.
func (h *MessageHandler) CreateImage(w http.ResponseWriter, r *http.Request) {
	user, target, ok := h.resolve(w, r)
	if !ok || !h.allow(w, user) {
		return
	}

	img, file, err := readImage(w, r, h.maxUploadSize)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	defer file.Close()

	url, err := h.uploadService.SaveChatImage(r.Context(), user.ID, target, img)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	message, err := h.messageService.SendImage(r.Context(), user, target, url)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, message)
}

// Search handles GET .../search?q=<term>.
func (h *MessageHandler) Search(w http.ResponseWriter, r *http.Request) {
	user, target, ok := h.resolve(w, r)
	if !ok {
		return
	}

	messages, err := h.messageService.Search(r.Context(), user.ID, target, r.URL.Query().Get("q"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, messages)
}

func (h *MessageHandler) Stats(w http.ResponseWriter, r *http.Request) {
	user, target, ok := h.resolve(w, r)
	if !ok {
		return
	}

	stats, err := h.messageService.Stats(r.Context(), user.ID, target)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, stats)
}
