package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg"
	"github.com/devchat/devchat/pkg/ratelimit"
	"github.com/devchat/devchat/services"
)

// AuthHandler serves /api/auth. None of its routes need a signed-in user.
type AuthHandler struct {
	auth    services.AuthService
	limiter *ratelimit.Limiter
}

// NewAuthHandler builds the handler. limiter may be nil in tests.
func NewAuthHandler(auth services.AuthService, limiter *ratelimit.Limiter) *AuthHandler {
	return &AuthHandler{auth: auth, limiter: limiter}
}

// authCall decodes a Req, runs fn and writes its result with status.
func authCall[Req, Resp any](w http.ResponseWriter, r *http.Request, status int, fn func(context.Context, *Req) (Resp, error)) {
	var req Req
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := fn(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, status, resp)
}

// ack adapts a call with no result to authCall, answering with message.
func ack[Req any](message string, fn func(context.Context, *Req) error) func(context.Context, *Req) (map[string]string, error) {
	return func(ctx context.Context, req *Req) (map[string]string, error) {
		if err := fn(ctx, req); err != nil {
			return nil, err
		}
		return map[string]string{"message": message}, nil
	}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	authCall(w, r, http.StatusCreated, h.auth.Register)
}

// Login handles POST /api/auth/login. Attempts are counted per client IP
// and a successful sign-in clears the count.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ip := ratelimit.ExtractIP(r)
	if h.limiter != nil && !h.limiter.Allow(ip) {
		tooManyRequests(w, h.limiter.RetryAfter(ip), "too many login attempts, please try again in")
		return
	}

	authCall(w, r, http.StatusOK, func(ctx context.Context, req *models.LoginRequest) (*models.AuthTokens, error) {
		tokens, err := h.auth.Login(ctx, req)
		if err == nil && h.limiter != nil {
			h.limiter.Reset(ip)
		}
		return tokens, err
	})
}

// Refresh rotates the token pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	authCall(w, r, http.StatusOK, func(ctx context.Context, req *models.RefreshRequest) (*models.AuthTokens, error) {
		if req.RefreshToken == "" {
			return nil, fmt.Errorf("%w: refresh_token is required", pkg.ErrBadRequest)
		}
		return h.auth.RefreshToken(ctx, req.RefreshToken)
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	authCall(w, r, http.StatusOK, ack("logged out", func(ctx context.Context, req *models.RefreshRequest) error {
		return h.auth.Logout(ctx, req.RefreshToken)
	}))
}

// ForgotPassword answers the same way whether or not the email exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	authCall(w, r, http.StatusOK, ack("if the email is registered, a reset link has been sent", h.auth.ForgotPassword))
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	authCall(w, r, http.StatusOK, ack("password updated", h.auth.ResetPassword))
}
