package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg"
	"github.com/devchat/devchat/ws"
)

func keys(events []ws.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Key
	}
	return out
}

func TestSnapshotChildren(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.register(t, "ada")
	bob := env.register(t, "bob")
	general := env.channel(t, ada, "general")
	random := env.channel(t, bob, "random")

	events, err := env.snapshot.Snapshot(ctx, ada.ID, ws.Subscription{Path: models.PathChannels, Event: models.EventChildAdded})
	require.NoError(t, err)
	assert.Equal(t, []string{general.ID, random.ID}, keys(events))
	for _, e := range events {
		assert.Equal(t, models.EventChildAdded, e.Op)
		assert.Equal(t, models.PathChannels, e.Path)
	}

	m1 := send(t, env, ada, models.PublicTarget(general.ID), "one")
	m2 := send(t, env, bob, models.PublicTarget(general.ID), "two")
	events, err = env.snapshot.Snapshot(ctx, bob.ID, ws.Subscription{Path: models.MessagesPath(general.ID), Event: models.EventChildAdded})
	require.NoError(t, err)
	assert.Equal(t, []string{m1.ID, m2.ID}, keys(events))

	events, err = env.snapshot.Snapshot(ctx, bob.ID, ws.Subscription{Path: models.MessagesPath(general.ID), Event: models.EventValue})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ws.ValueData{Count: 2}, events[0].Data)

	events, err = env.snapshot.Snapshot(ctx, ada.ID, ws.Subscription{Path: models.PathUsers, Event: models.EventChildAdded})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	require.NoError(t, env.presence.Connect(ctx, bob.ID, bob.Username))
	events, err = env.snapshot.Snapshot(ctx, ada.ID, ws.Subscription{Path: models.PathPresence, Event: models.EventChildAdded})
	require.NoError(t, err)
	assert.Equal(t, []string{bob.ID}, keys(events))

	require.NoError(t, env.typing.Start(ctx, models.TypingUser{UserID: bob.ID, Username: bob.Username}, general.ID))
	events, err = env.snapshot.Snapshot(ctx, ada.ID, ws.Subscription{Path: models.TypingPath(general.ID), Event: models.EventChildAdded})
	require.NoError(t, err)
	assert.Equal(t, []string{bob.ID}, keys(events))

	_, err = env.starred.Star(ctx, ada.ID, random.ID)
	require.NoError(t, err)
	events, err = env.snapshot.Snapshot(ctx, ada.ID, ws.Subscription{Path: models.StarredPath(ada.ID), Event: models.EventChildAdded})
	require.NoError(t, err)
	assert.Equal(t, []string{random.ID}, keys(events))

	c1, err := env.colors.Save(ctx, ada.ID, &models.SaveColorRequest{Primary: "#111111", Secondary: "#222222"})
	require.NoError(t, err)
	c2, err := env.colors.Save(ctx, ada.ID, &models.SaveColorRequest{Primary: "#333333", Secondary: "#444444"})
	require.NoError(t, err)
	events, err = env.snapshot.Snapshot(ctx, ada.ID, ws.Subscription{Path: models.ColorsPath(ada.ID), Event: models.EventChildAdded})
	require.NoError(t, err)
	assert.Equal(t, []string{c1.ID, c2.ID}, keys(events), "replayed in insertion order")
}

func TestSnapshotEmptyAndRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.register(t, "ada")
	bob := env.register(t, "bob")
	eve := env.register(t, "eve")
	general := env.channel(t, ada, "general")
	send(t, env, ada, models.PublicTarget(general.ID), "hello")

	events, err := env.snapshot.Snapshot(ctx, ada.ID, ws.Subscription{Path: models.MessagesPath(general.ID), Event: models.EventChildRemoved})
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = env.snapshot.Snapshot(ctx, ada.ID, ws.Subscription{Path: models.PathUsers, Event: models.EventChildChanged})
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = env.snapshot.Snapshot(ctx, ada.ID, ws.Subscription{Path: models.PathChannels, Event: models.EventValue})
	require.ErrorIs(t, err, pkg.ErrBadRequest)

	_, err = env.snapshot.Snapshot(ctx, ada.ID, ws.Subscription{Path: models.MessagesPath("missing"), Event: models.EventChildAdded})
	require.ErrorIs(t, err, pkg.ErrNotFound)

	dm := models.PrivateMessagesPath(models.DMKey(ada.ID, bob.ID))
	_, err = env.snapshot.Snapshot(ctx, eve.ID, ws.Subscription{Path: dm, Event: models.EventChildAdded})
	require.ErrorIs(t, err, pkg.ErrForbidden)

	_, err = env.snapshot.Snapshot(ctx, ada.ID, ws.Subscription{Path: models.ColorsPath(bob.ID), Event: models.EventChildAdded})
	require.ErrorIs(t, err, pkg.ErrForbidden)

	_, err = env.snapshot.Snapshot(ctx, ada.ID, ws.Subscription{Path: "nowhere", Event: models.EventChildAdded})
	require.ErrorIs(t, err, pkg.ErrBadRequest)
}
