package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg"
)

func TestPresenceFollowsConnections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.register(t, "ada")
	ch := env.channel(t, ada, "general")
	env.pub.reset()

	require.NoError(t, env.presence.Connect(ctx, ada.ID, ada.Username))
	require.NoError(t, env.presence.Connect(ctx, ada.ID, ada.Username))
	require.NoError(t, env.typing.Start(ctx, models.TypingUser{UserID: ada.ID, Username: ada.Username}, ch.ID))

	assert.Equal(t, []string{models.EventChildAdded}, ops(env.pub.on(models.PathPresence)))

	stored, err := env.userRepo.GetByID(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusOnline, stored.Status)

	online, err := env.presence.List(ctx)
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, "ada", online[0].Username)

	require.NoError(t, env.presence.Disconnect(ctx, ada.ID))
	assert.Len(t, env.pub.on(models.PathPresence), 1, "one connection is still open")

	require.NoError(t, env.presence.Disconnect(ctx, ada.ID))
	assert.Equal(t, []string{models.EventChildAdded, models.EventChildRemoved}, ops(env.pub.on(models.PathPresence)))
	assert.Equal(t, []string{models.EventChildAdded, models.EventChildRemoved}, ops(env.pub.on(models.TypingPath(ch.ID))))

	stored, err = env.userRepo.GetByID(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusOffline, stored.Status)

	typing, err := env.typing.List(ctx, ch.ID)
	require.NoError(t, err)
	assert.Empty(t, typing)
}

func TestTyping(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.register(t, "ada")
	bob := env.register(t, "bob")
	eve := env.register(t, "eve")
	ch := env.channel(t, ada, "general")
	env.pub.reset()

	adaTyping := models.TypingUser{UserID: ada.ID, Username: ada.Username}
	require.NoError(t, env.typing.Start(ctx, adaTyping, ch.ID))
	require.NoError(t, env.typing.Start(ctx, adaTyping, ch.ID))
	assert.Len(t, env.pub.on(models.TypingPath(ch.ID)), 1, "repeated start publishes once")

	err := env.typing.Start(ctx, adaTyping, "missing")
	require.ErrorIs(t, err, pkg.ErrNotFound)

	key := models.DMKey(ada.ID, bob.ID)
	err = env.typing.Start(ctx, models.TypingUser{UserID: eve.ID, Username: eve.Username}, key)
	require.ErrorIs(t, err, pkg.ErrForbidden)
	require.NoError(t, env.typing.Start(ctx, adaTyping, key))

	users, err := env.typing.List(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.TypingUser{adaTyping}, users)

	require.NoError(t, env.typing.Stop(ctx, ada.ID, ch.ID))
	require.NoError(t, env.typing.Stop(ctx, ada.ID, ch.ID))
	assert.Equal(t, []string{models.EventChildAdded, models.EventChildRemoved}, ops(env.pub.on(models.TypingPath(ch.ID))))
}

func TestUsersAndDMPeers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.register(t, "ada")
	bob := env.register(t, "bob")
	require.NoError(t, env.presence.Connect(ctx, bob.ID, bob.Username))

	users, err := env.users.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	for _, u := range users {
		assert.Empty(t, u.Email)
	}

	me, err := env.users.Get(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", me.Email)

	peers, err := env.dms.ListPeers(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, bob.ID, peers[0].ID)
	assert.Equal(t, models.UserStatusOnline, peers[0].Status)
	assert.Equal(t, models.DMKey(ada.ID, bob.ID), peers[0].ChannelKey)
	assert.Equal(t, "@bob", peers[0].DisplayName())

	target, err := env.dms.Target(ctx, bob.ID, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PrivateTarget(ada.ID, bob.ID), target)

	_, err = env.dms.Target(ctx, ada.ID, ada.ID)
	require.ErrorIs(t, err, pkg.ErrBadRequest)
	_, err = env.dms.Target(ctx, ada.ID, "missing")
	require.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestUpdateAvatarPublishesChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.register(t, "ada")
	env.pub.reset()

	user, err := env.users.UpdateAvatar(ctx, ada.ID, "http://chat.test/api/files/avatars/users/"+ada.ID+"?v=1")
	require.NoError(t, err)
	assert.Contains(t, user.AvatarURL, "?v=1")

	events := env.pub.on(models.PathUsers)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventChildChanged, events[0].Op)
	assert.Empty(t, events[0].Data.(models.User).Email)

	_, err = env.users.UpdateAvatar(ctx, "missing", "x")
	require.ErrorIs(t, err, pkg.ErrNotFound)
}
