package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tokens, err := env.auth.Register(ctx, &models.CreateUserRequest{
		Username:             "ada",
		Email:                " Ada@Example.com ",
		Password:             "secret123",
		PasswordConfirmation: "secret123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.Len(t, tokens.RefreshToken, 64)
	assert.Equal(t, "ada@example.com", tokens.User.Email)
	assert.Equal(t, models.GravatarURL("ada@example.com"), tokens.User.AvatarURL)
	assert.Empty(t, tokens.User.PasswordHash)

	events := env.pub.on(models.PathUsers)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventChildAdded, events[0].Op)
	assert.Equal(t, tokens.User.ID, events[0].Key)
	published, ok := events[0].Data.(models.User)
	require.True(t, ok)
	assert.Empty(t, published.Email)

	claims, err := env.auth.ValidateAccessToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, tokens.User.ID, claims.UserID)
	assert.Equal(t, "ada", claims.Username)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ada")

	tests := []struct {
		name string
		req  models.CreateUserRequest
		want string
	}{
		{"missing fields", models.CreateUserRequest{Username: "bob"}, "Please fill in all fields"},
		{"short password", models.CreateUserRequest{Username: "bob", Email: "bob@example.com", Password: "abc", PasswordConfirmation: "abc"}, "Password is invalid"},
		{"mismatch", models.CreateUserRequest{Username: "bob", Email: "bob@example.com", Password: "secret123", PasswordConfirmation: "secret124"}, "Password is invalid"},
		{"bad email", models.CreateUserRequest{Username: "bob", Email: "bob", Password: "secret123", PasswordConfirmation: "secret123"}, "email address is badly formatted"},
		{"taken email", models.CreateUserRequest{Username: "ada2", Email: "ada@example.com", Password: "secret123", PasswordConfirmation: "secret123"}, "email already in use"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.Register(context.Background(), &tt.req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoginRefreshLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "ada")

	_, err := env.auth.Login(ctx, &models.LoginRequest{Email: "ada@example.com", Password: "wrong-pass"})
	require.ErrorIs(t, err, pkg.ErrUnauthorized)

	_, err = env.auth.Login(ctx, &models.LoginRequest{Email: "nobody@example.com", Password: "secret123"})
	require.ErrorIs(t, err, pkg.ErrUnauthorized)

	tokens, err := env.auth.Login(ctx, &models.LoginRequest{Email: "ADA@example.com", Password: "secret123"})
	require.NoError(t, err)

	rotated, err := env.auth.RefreshToken(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)

	_, err = env.auth.RefreshToken(ctx, tokens.RefreshToken)
	require.ErrorIs(t, err, pkg.ErrUnauthorized, "a refresh token is single use")

	require.NoError(t, env.auth.Logout(ctx, rotated.RefreshToken))
	require.NoError(t, env.auth.Logout(ctx, rotated.RefreshToken))

	_, err = env.auth.RefreshToken(ctx, rotated.RefreshToken)
	require.ErrorIs(t, err, pkg.ErrUnauthorized)
}

func TestValidateAccessTokenRejectsForeignSecret(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ada")

	other := NewAuthService(env.userRepo, nil, nil, nil, nil, env.pub, "another-secret", 15, 7)
	_, err := other.ValidateAccessToken("not-a-token")
	require.ErrorIs(t, err, pkg.ErrUnauthorized)

	tokens, err := env.auth.Login(context.Background(), &models.LoginRequest{Email: "ada@example.com", Password: "secret123"})
	require.NoError(t, err)
	_, err = other.ValidateAccessToken(tokens.AccessToken)
	require.ErrorIs(t, err, pkg.ErrUnauthorized)
}

func TestForgotAndResetPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "ada")

	session, err := env.auth.Login(ctx, &models.LoginRequest{Email: "ada@example.com", Password: "secret123"})
	require.NoError(t, err)

	require.NoError(t, env.auth.ForgotPassword(ctx, &models.ForgotPasswordRequest{Email: "nobody@example.com"}))
	assert.Empty(t, env.mailer.sent, "unknown emails are silently ignored")

	require.NoError(t, env.auth.ForgotPassword(ctx, &models.ForgotPasswordRequest{Email: "ada@example.com"}))
	require.Len(t, env.mailer.tokens, 1)

	require.NoError(t, env.auth.ForgotPassword(ctx, &models.ForgotPasswordRequest{Email: "ada@example.com"}))
	assert.Len(t, env.mailer.tokens, 1, "a second request within the cooldown sends nothing")

	err = env.auth.ResetPassword(ctx, &models.ResetPasswordRequest{Token: "bogus", NewPassword: "newsecret"})
	require.ErrorIs(t, err, pkg.ErrBadRequest)

	err = env.auth.ResetPassword(ctx, &models.ResetPasswordRequest{Token: env.mailer.tokens[0], NewPassword: "abc"})
	require.ErrorIs(t, err, pkg.ErrBadRequest)

	require.NoError(t, env.auth.ResetPassword(ctx, &models.ResetPasswordRequest{Token: env.mailer.tokens[0], NewPassword: "newsecret"}))

	_, err = env.auth.RefreshToken(ctx, session.RefreshToken)
	require.ErrorIs(t, err, pkg.ErrUnauthorized, "reset signs out every session")

	_, err = env.auth.Login(ctx, &models.LoginRequest{Email: "ada@example.com", Password: "secret123"})
	require.ErrorIs(t, err, pkg.ErrUnauthorized)
	_, err = env.auth.Login(ctx, &models.LoginRequest{Email: "ada@example.com", Password: "newsecret"})
	require.NoError(t, err)

	err = env.auth.ResetPassword(ctx, &models.ResetPasswordRequest{Token: env.mailer.tokens[0], NewPassword: "another1"})
	require.ErrorIs(t, err, pkg.ErrBadRequest, "tokens are single use")
}

func TestResetPasswordTokenIsSingleUseUnderConcurrency(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "ada")

	require.NoError(t, env.auth.ForgotPassword(ctx, &models.ForgotPasswordRequest{Email: "ada@example.com"}))
	require.Len(t, env.mailer.tokens, 1)
	token := env.mailer.tokens[0]

	passwords := []string{"firstpass", "secondpass"}
	errs := make([]error, len(passwords))
	var wg sync.WaitGroup
	for i, pw := range passwords {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = env.auth.ResetPassword(ctx, &models.ResetPasswordRequest{Token: token, NewPassword: pw})
		}()
	}
	wg.Wait()

	var winner string
	failures := 0
	for i, err := range errs {
		if err == nil {
			winner = passwords[i]
			continue
		}
		assert.ErrorIs(t, err, pkg.ErrBadRequest)
		failures++
	}
	require.Equal(t, 1, failures, "exactly one reset wins")

	_, err := env.auth.Login(ctx, &models.LoginRequest{Email: "ada@example.com", Password: winner})
	require.NoError(t, err)
}

func TestForgotPasswordWithoutMailer(t *testing.T) {
	env := newTestEnv(t)
	auth := NewAuthService(env.userRepo, nil, nil, nil, nil, env.pub, "test-secret", 15, 7)

	err := auth.ForgotPassword(context.Background(), &models.ForgotPasswordRequest{Email: "ada@example.com"})
	require.ErrorIs(t, err, pkg.ErrBadRequest)
}
