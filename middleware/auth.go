// Package middleware holds HTTP middleware shared by the routes.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/devchat/devchat/handlers"
	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg"
	"github.com/devchat/devchat/pkg/cache"
	"github.com/devchat/devchat/repository"
	"github.com/devchat/devchat/services"
)

// AuthMiddleware validates the bearer token and puts the user into the
// request context. Users are cached briefly so a burst of requests does
// not hit the database each time; profile writes invalidate the entry.
type AuthMiddleware struct {
	authService services.AuthService
	userRepo    repository.UserRepository
	userCache   *cache.TTLCache[string, models.User]
}

func NewAuthMiddleware(
	authService services.AuthService,
	userRepo repository.UserRepository,
	userCache *cache.TTLCache[string, models.User],
) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		userRepo:    userRepo,
		userCache:   userCache,
	}
}

func (m *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "authorization header required")
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "invalid authorization format, use: Bearer <token>")
			return
		}

		claims, err := m.authService.ValidateAccessToken(tokenString)
		if err != nil {
			pkg.Error(w, err)
			return
		}

		user, err := m.lookup(r.Context(), claims.UserID)
		if err != nil {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found")
			return
		}

		ctx := context.WithValue(r.Context(), handlers.UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireFunc is Require for a handler method.
func (m *AuthMiddleware) RequireFunc(fn http.HandlerFunc) http.Handler {
	return m.Require(fn)
}

func (m *AuthMiddleware) lookup(ctx context.Context, userID string) (*models.User, error) {
	user, err := m.userCache.GetOrLoad(userID, func() (models.User, error) {
		user, err := m.userRepo.GetByID(ctx, userID)
		if err != nil {
			return models.User{}, err
		}
		user.PasswordHash = ""
		return *user, nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
