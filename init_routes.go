package main

import (
	"net/http"
	"strings"

	"github.com/devchat/devchat/middleware"
	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg/cache"
	"github.com/devchat/devchat/repository"
	"github.com/devchat/devchat/services"
)

// initRoutes wires every endpoint onto mux.
func initRoutes(
	mux *http.ServeMux,
	h *Handlers,
	authService services.AuthService,
	userRepo repository.UserRepository,
	userCache *cache.TTLCache[string, models.User],
	uploadDir string,
) {
	// ─── Middleware ───
	authMw := middleware.NewAuthMiddleware(authService, userRepo, userCache)
	auth := authMw.RequireFunc

	// Health
	mux.HandleFunc("GET /api/health", h.Health.Health)

	// Auth
	mux.HandleFunc("POST /api/auth/register", h.Auth.Register)
	mux.HandleFunc("POST /api/auth/login", h.Auth.Login)
	mux.HandleFunc("POST /api/auth/refresh", h.Auth.Refresh)
	mux.HandleFunc("POST /api/auth/logout", h.Auth.Logout)
	mux.HandleFunc("POST /api/auth/forgot-password", h.Auth.ForgotPassword)
	mux.HandleFunc("POST /api/auth/reset-password", h.Auth.ResetPassword)

	// Users
	mux.Handle("GET /api/users/me", auth(h.User.Me))
	mux.Handle("POST /api/users/me/avatar", auth(h.User.UploadAvatar))
	mux.Handle("GET /api/users", auth(h.User.List))

	// Channels
	mux.Handle("GET /api/channels", auth(h.Channel.List))
	mux.Handle("POST /api/channels", auth(h.Channel.Create))
	mux.Handle("GET /api/channels/{id}", auth(h.Channel.Get))
	mux.Handle("GET /api/channels/{id}/messages", auth(h.Message.List))
	mux.Handle("POST /api/channels/{id}/messages", auth(h.Message.Create))
	mux.Handle("POST /api/channels/{id}/images", auth(h.Message.CreateImage))
	mux.Handle("GET /api/channels/{id}/search", auth(h.Message.Search))
	mux.Handle("GET /api/channels/{id}/stats", auth(h.Message.Stats))

	// Direct messages
	mux.Handle("GET /api/dm", auth(h.DM.ListPeers))
	mux.Handle("GET /api/dm/{userId}/messages", auth(h.Message.List))
	mux.Handle("POST /api/dm/{userId}/messages", auth(h.Message.Create))
	mux.Handle("POST /api/dm/{userId}/images", auth(h.Message.CreateImage))
	mux.Handle("GET /api/dm/{userId}/search", auth(h.Message.Search))
	mux.Handle("GET /api/dm/{userId}/stats", auth(h.Message.Stats))

	// Starred channels
	mux.Handle("GET /api/starred", auth(h.Starred.List))
	mux.Handle("PUT /api/starred/{channelId}", auth(h.Starred.Star))
	mux.Handle("DELETE /api/starred/{channelId}", auth(h.Starred.Unstar))

	// Color themes
	mux.Handle("GET /api/colors", auth(h.Color.List))
	mux.Handle("POST /api/colors", auth(h.Color.Save))

	// Typing
	mux.Handle("POST /api/typing", auth(h.Typing.Start))
	mux.Handle("DELETE /api/typing", auth(h.Typing.Stop))

	// Uploaded files. Download URLs are unguessable and used directly in
	// <img> tags, so they are served without auth. Directory listings are
	// not served.
	files := http.StripPrefix(services.FilesRoute, http.FileServer(http.Dir(uploadDir)))
	mux.Handle("GET "+services.FilesRoute, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	}))

	// Realtime. Browsers cannot set headers on the upgrade request, so the
	// access token travels as ?token=.
	mux.HandleFunc("GET /ws", h.WS.HandleConnection)
}
