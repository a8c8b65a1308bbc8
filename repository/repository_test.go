package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devchat/devchat/database"
	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), database.Migrations())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, repo UserRepository, name string) *models.User {
	t.Helper()
	u := &models.User{
		Username:     name,
		Email:        name + "@example.com",
		AvatarURL:    models.GravatarURL(name + "@example.com"),
		PasswordHash: "hash",
	}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteUserRepo(newTestDB(t).Conn)

	ada := createUser(t, repo, "ada")
	assert.NotEmpty(t, ada.ID)
	assert.Equal(t, models.UserStatusOffline, ada.Status)

	dup := &models.User{Username: "other", Email: "ada@example.com", PasswordHash: "x"}
	err := repo.Create(ctx, dup)
	require.ErrorIs(t, err, pkg.ErrAlreadyExists)

	got, err := repo.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, ada.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	_, err = repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, pkg.ErrNotFound)

	require.NoError(t, repo.UpdateAvatar(ctx, ada.ID, "http://x/avatar"))
	require.NoError(t, repo.UpdateStatus(ctx, ada.ID, models.UserStatusOnline))
	got, err = repo.GetByID(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, "http://x/avatar", got.AvatarURL)
	assert.Equal(t, models.UserStatusOnline, got.Status)

	require.ErrorIs(t, repo.UpdatePassword(ctx, "missing", "h"), pkg.ErrNotFound)

	bob := createUser(t, repo, "bob")
	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, ada.ID, all[0].ID)
	assert.Equal(t, bob.ID, all[1].ID)

	require.NoError(t, repo.ResetAllStatuses(ctx))
	got, _ = repo.GetByID(ctx, ada.ID)
	assert.Equal(t, models.UserStatusOffline, got.Status)
}

func TestSessionAndResetTokens(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ada := createUser(t, NewSQLiteUserRepo(db.Conn), "ada")

	sessions := NewSQLiteSessionRepo(db.Conn)
	live := &models.Session{UserID: ada.ID, RefreshToken: "live", ExpiresAt: time.Now().Add(time.Hour)}
	stale := &models.Session{UserID: ada.ID, RefreshToken: "stale", ExpiresAt: time.Now().Add(-time.Hour)}
	require.NoError(t, sessions.Create(ctx, live))
	require.NoError(t, sessions.Create(ctx, stale))

	require.NoError(t, sessions.DeleteExpired(ctx))
	_, err := sessions.GetByRefreshToken(ctx, "stale")
	require.ErrorIs(t, err, pkg.ErrNotFound)
	got, err := sessions.GetByRefreshToken(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, ada.ID, got.UserID)

	tokens := NewSQLiteResetTokenRepo(db.Conn)
	require.NoError(t, tokens.Create(ctx, &models.PasswordResetToken{UserID: ada.ID, TokenHash: "h1", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, tokens.Create(ctx, &models.PasswordResetToken{UserID: ada.ID, TokenHash: "h2", ExpiresAt: time.Now().Add(time.Hour)}))

	latest, err := tokens.GetLatestByUserID(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, "h2", latest.TokenHash)

	require.NoError(t, tokens.DeleteByUserID(ctx, ada.ID))
	_, err = tokens.GetByTokenHash(ctx, "h1")
	require.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestAuthTxRunnerRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewSQLiteUserRepo(db.Conn)
	ada := createUser(t, users, "ada")
	tokens := NewSQLiteResetTokenRepo(db.Conn)
	token := &models.PasswordResetToken{UserID: ada.ID, TokenHash: "h1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, tokens.Create(ctx, token))

	runTx := NewSQLiteAuthTxRunner(db.Conn)
	err := runTx(ctx, func(repos AuthRepos) error {
		require.NoError(t, repos.ResetToken.Consume(ctx, token.ID))
		require.NoError(t, repos.User.UpdatePassword(ctx, ada.ID, "changed"))
		return pkg.ErrBadRequest
	})
	require.ErrorIs(t, err, pkg.ErrBadRequest)

	_, err = tokens.GetByTokenHash(ctx, "h1")
	require.NoError(t, err, "rolled back consume keeps the token")
	got, err := users.GetByID(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, ada.PasswordHash, got.PasswordHash)

	require.NoError(t, runTx(ctx, func(repos AuthRepos) error {
		return repos.ResetToken.Consume(ctx, token.ID)
	}))
	require.ErrorIs(t, tokens.Consume(ctx, token.ID), pkg.ErrNotFound)
}

func TestChannelRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ada := createUser(t, NewSQLiteUserRepo(db.Conn), "ada")
	repo := NewSQLiteChannelRepo(db.Conn)

	for _, id := range []string{"c2", "c1"} {
		require.NoError(t, repo.Create(ctx, &models.Channel{
			ID: id, Name: "name-" + id, Detail: "detail", CreatedByID: ada.ID,
			CreatedBy: models.Creator{Name: ada.Username, Avatar: ada.AvatarURL},
		}))
	}

	channels, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "c2", channels[0].ID, "creation order, not id order")
	assert.Equal(t, "ada", channels[0].CreatedBy.Name)

	_, err = repo.GetByID(ctx, "nope")
	require.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestMessageRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewSQLiteUserRepo(db.Conn)
	ada := createUser(t, users, "ada")
	bob := createUser(t, users, "bob")
	repo := NewSQLiteMessageRepo(db.Conn)

	target := models.PublicTarget("general")
	for i := 0; i < 5; i++ {
		author := ada
		if i%2 == 1 {
			author = bob
		}
		content := fmt.Sprintf("msg %d", i)
		require.NoError(t, repo.Create(ctx, &models.Message{
			ID: fmt.Sprintf("m%d", i), Scope: target.Scope, ChannelKey: target.Key,
			User: author.Author(), Content: &content,
		}))
	}
	image := "http://x/img.png"
	dm := models.PrivateTarget(ada.ID, bob.ID)
	require.NoError(t, repo.Create(ctx, &models.Message{
		ID: "p1", Scope: dm.Scope, ChannelKey: dm.Key, User: ada.Author(), Image: &image,
	}))

	page, err := repo.List(ctx, target, "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "m3", page[0].ID)
	assert.Equal(t, "m4", page[1].ID)

	page, err = repo.List(ctx, target, "m3", 10)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "m0", page[0].ID)

	n, err := repo.Count(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	private, err := repo.ListAll(ctx, dm)
	require.NoError(t, err)
	require.Len(t, private, 1)
	assert.Nil(t, private[0].Content)
	require.NotNil(t, private[0].Image)
	assert.Equal(t, image, *private[0].Image)

	require.NoError(t, users.UpdateAvatar(ctx, ada.ID, "new-avatar"))
	ada.AvatarURL = "new-avatar"
	content := "latest"
	require.NoError(t, repo.Create(ctx, &models.Message{
		ID: "m5", Scope: target.Scope, ChannelKey: target.Key, User: ada.Author(), Content: &content,
	}))

	posts, err := repo.UserPostCounts(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, []models.UserPostCount{
		{Name: "ada", Avatar: "new-avatar", Count: 4},
		{Name: "bob", Avatar: bob.AvatarURL, Count: 2},
	}, posts)
}

func TestMessageRequiresExactlyOneBody(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ada := createUser(t, NewSQLiteUserRepo(db.Conn), "ada")
	repo := NewSQLiteMessageRepo(db.Conn)

	err := repo.Create(ctx, &models.Message{
		ID: "x", Scope: models.ScopePublic, ChannelKey: "c", User: ada.Author(),
	})
	assert.Error(t, err)
}

func TestStarredRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ada := createUser(t, NewSQLiteUserRepo(db.Conn), "ada")
	channels := NewSQLiteChannelRepo(db.Conn)
	ch := &models.Channel{ID: "c1", Name: "general", Detail: "d", CreatedByID: ada.ID, CreatedBy: models.Creator{Name: "ada"}}
	require.NoError(t, channels.Create(ctx, ch))

	repo := NewSQLiteStarredRepo(db.Conn)
	s := models.StarredFromChannel(ch, time.Now())

	added, err := repo.Add(ctx, ada.ID, &s)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = repo.Add(ctx, ada.ID, &s)
	require.NoError(t, err)
	assert.False(t, added)

	exists, err := repo.Exists(ctx, ada.ID, "c1")
	require.NoError(t, err)
	assert.True(t, exists)

	list, err := repo.List(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "general", list[0].Name)

	removed, err := repo.Remove(ctx, ada.ID, "c1")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.Remove(ctx, ada.ID, "c1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestColorRepositoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ada := createUser(t, NewSQLiteUserRepo(db.Conn), "ada")
	repo := NewSQLiteColorRepo(db.Conn)

	require.NoError(t, repo.Create(ctx, &models.ColorTheme{ID: "k1", UserID: ada.ID, Primary: "#000000", Secondary: "#111111"}))
	require.NoError(t, repo.Create(ctx, &models.ColorTheme{ID: "k2", UserID: ada.ID, Primary: "#222222", Secondary: "#333333"}))

	colors, err := repo.ListByUser(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, colors, 2)
	assert.Equal(t, "k2", colors[0].ID)
	assert.Equal(t, "k1", colors[1].ID)
}
