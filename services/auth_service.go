// Package services holds the business logic. Handlers stay thin: they
// decode the request, call a service and write the envelope. Services talk
// to repositories and emit realtime events through ws.EventPublisher.
package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg"
	"github.com/devchat/devchat/pkg/email"
	"github.com/devchat/devchat/repository"
	"github.com/devchat/devchat/ws"
)

// bcryptCost is a variable so tests can lower it.
var bcryptCost = 12

const (
	resetTokenExpiry   = 20 * time.Minute
	resetTokenCooldown = 60 * time.Second
	tokenIssuer        = "devchat"
)

type AuthService interface {
	Register(ctx context.Context, req *models.CreateUserRequest) (*models.AuthTokens, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.AuthTokens, error)
	RefreshToken(ctx context.Context, refreshToken string) (*models.AuthTokens, error)
	// Logout deletes the session. Unknown tokens are not an error.
	Logout(ctx context.Context, refreshToken string) error
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
	// ForgotPassword mails a reset link. It reports success for unknown
	// emails too, so it cannot be used to discover accounts.
	ForgotPassword(ctx context.Context, req *models.ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req *models.ResetPasswordRequest) error
}

type authService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	resetRepo   repository.PasswordResetRepository
	runTx       repository.AuthTxRunner
	mailer      email.EmailSender
	publisher   ws.EventPublisher
	jwtSecret   []byte
	accessExp   time.Duration
	refreshExp  time.Duration
}

// NewAuthService builds the service. mailer may be nil, which disables the
// forgot-password flow. runTx applies a password reset atomically.
func NewAuthService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	resetRepo repository.PasswordResetRepository,
	runTx repository.AuthTxRunner,
	mailer email.EmailSender,
	publisher ws.EventPublisher,
	jwtSecret string,
	accessExpMinutes int,
	refreshExpDays int,
) AuthService {
	return &authService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		resetRepo:   resetRepo,
		runTx:       runTx,
		mailer:      mailer,
		publisher:   publisher,
		jwtSecret:   []byte(jwtSecret),
		accessExp:   time.Duration(accessExpMinutes) * time.Minute,
		refreshExp:  time.Duration(refreshExpDays) * 24 * time.Hour,
	}
}

func (s *authService) Register(ctx context.Context, req *models.CreateUserRequest) (*models.AuthTokens, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		AvatarURL:    models.GravatarURL(req.Email),
		PasswordHash: string(hash),
		Status:       models.UserStatusOffline,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	log.Printf("[auth] user registered: %s (%s)", user.ID, user.Username)
	s.publisher.Publish(ws.ChildAdded(models.PathUsers, user.ID, user.Public()))

	return s.generateTokens(ctx, user)
}

func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthTokens, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid email or password", pkg.ErrUnauthorized)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", pkg.ErrUnauthorized)
	}

	return s.generateTokens(ctx, user)
}

// RefreshToken rotates the session: the old refresh token is deleted and a
// new pair is issued.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*models.AuthTokens, error) {
	session, err := s.sessionRepo.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid refresh token", pkg.ErrUnauthorized)
		}
		return nil, err
	}

	if err := s.sessionRepo.DeleteByID(ctx, session.ID); err != nil {
		return nil, fmt.Errorf("failed to delete old session: %w", err)
	}
	if time.Now().After(session.ExpiresAt) {
		return nil, fmt.Errorf("%w: refresh token expired", pkg.ErrUnauthorized)
	}

	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	return s.generateTokens(ctx, user)
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	session, err := s.sessionRepo.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.sessionRepo.DeleteByID(ctx, session.ID)
}

func (s *authService) ValidateAccessToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token", pkg.ErrUnauthorized)
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("%w: invalid token claims", pkg.ErrUnauthorized)
	}
	return claims, nil
}

func (s *authService) ForgotPassword(ctx context.Context, req *models.ForgotPasswordRequest) error {
	if s.mailer == nil {
		return fmt.Errorf("%w: password reset is not available", pkg.ErrBadRequest)
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	if err := s.resetRepo.DeleteExpired(ctx); err != nil {
		log.Printf("[auth] failed to purge expired reset tokens: %v", err)
	}

	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if errors.Is(err, pkg.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	latest, err := s.resetRepo.GetLatestByUserID(ctx, user.ID)
	if err == nil && time.Since(latest.CreatedAt) < resetTokenCooldown {
		log.Printf("[auth] reset requested again within cooldown: user=%s", user.ID)
		return nil
	}
	if err != nil && !errors.Is(err, pkg.ErrNotFound) {
		return err
	}

	token, err := randomHex(32)
	if err != nil {
		return err
	}

	if err := s.resetRepo.DeleteByUserID(ctx, user.ID); err != nil {
		return err
	}
	if err := s.resetRepo.Create(ctx, &models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: hashToken(token),
		ExpiresAt: time.Now().Add(resetTokenExpiry),
	}); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
		return fmt.Errorf("%w: could not send reset email", pkg.ErrInternal)
	}
	log.Printf("[auth] password reset mailed: user=%s", user.ID)
	return nil
}

// ResetPassword sets the new password and signs the user out everywhere.
func (s *authService) ResetPassword(ctx context.Context, req *models.ResetPasswordRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	stored, err := s.resetRepo.GetByTokenHash(ctx, hashToken(req.Token))
	if errors.Is(err, pkg.ErrNotFound) {
		return fmt.Errorf("%w: invalid or expired reset token", pkg.ErrBadRequest)
	}
	if err != nil {
		return err
	}
	if time.Now().After(stored.ExpiresAt) {
		if err := s.resetRepo.DeleteByID(ctx, stored.ID); err != nil {
			log.Printf("[auth] failed to drop expired reset token for user %s: %v", stored.UserID, err)
		}
		return fmt.Errorf("%w: invalid or expired reset token", pkg.ErrBadRequest)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// Consume goes first so a second reset racing on the same token waits
	// for the write lock and then finds nothing to delete.
	return s.runTx(ctx, func(repos repository.AuthRepos) error {
		if err := repos.ResetToken.Consume(ctx, stored.ID); err != nil {
			if errors.Is(err, pkg.ErrNotFound) {
				return fmt.Errorf("%w: invalid or expired reset token", pkg.ErrBadRequest)
			}
			return err
		}
		if err := repos.User.UpdatePassword(ctx, stored.UserID, string(hash)); err != nil {
			return err
		}
		if err := repos.ResetToken.DeleteByUserID(ctx, stored.UserID); err != nil {
			return err
		}
		return repos.Session.DeleteByUserID(ctx, stored.UserID)
	})
}

func (s *authService) generateTokens(ctx context.Context, user *models.User) (*models.AuthTokens, error) {
	now := time.Now()
	claims := &models.TokenClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessExp)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, err := randomHex(32)
	if err != nil {
		return nil, err
	}

	if err := s.sessionRepo.Create(ctx, &models.Session{
		UserID:       user.ID,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(s.refreshExp),
	}); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	out := *user
	out.PasswordHash = ""
	return &models.AuthTokens{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         out,
	}, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
