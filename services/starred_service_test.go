package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg"
)

func TestStarAndUnstar(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.register(t, "ada")
	ch := env.channel(t, ada, "general")
	path := models.StarredPath(ada.ID)

	starred, err := env.starred.Star(ctx, ada.ID, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, "general", starred.Name)
	assert.Equal(t, "general talk", starred.Detail)
	assert.Equal(t, models.Creator{Name: "ada", Avatar: ada.AvatarURL}, starred.CreatedBy)

	_, err = env.starred.Star(ctx, ada.ID, ch.ID)
	require.NoError(t, err)
	assert.Len(t, env.pub.on(path), 1, "starring twice publishes once")

	ok, err := env.starred.IsStarred(ctx, ada.ID, ch.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := env.starred.List(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ch.ID, list[0].ChannelID)

	require.NoError(t, env.starred.Unstar(ctx, ada.ID, ch.ID))
	require.NoError(t, env.starred.Unstar(ctx, ada.ID, ch.ID))
	assert.Equal(t, []string{models.EventChildAdded, models.EventChildRemoved}, ops(env.pub.on(path)))

	ok, err = env.starred.IsStarred(ctx, ada.ID, ch.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = env.starred.Star(ctx, ada.ID, "missing")
	require.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestColors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.register(t, "ada")

	_, err := env.colors.Save(ctx, ada.ID, &models.SaveColorRequest{Primary: "#112233"})
	require.ErrorIs(t, err, pkg.ErrBadRequest)
	assert.Contains(t, err.Error(), "Please pick both colors")

	_, err = env.colors.Save(ctx, ada.ID, &models.SaveColorRequest{Primary: "#112233", Secondary: "blue"})
	require.ErrorIs(t, err, pkg.ErrBadRequest)

	first, err := env.colors.Save(ctx, ada.ID, &models.SaveColorRequest{Primary: "#112233", Secondary: "#445566"})
	require.NoError(t, err)
	second, err := env.colors.Save(ctx, ada.ID, &models.SaveColorRequest{Primary: "#ABCDEF", Secondary: "#000000"})
	require.NoError(t, err)
	assert.Equal(t, "#abcdef", second.Primary)

	list, err := env.colors.List(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	events := env.pub.on(models.ColorsPath(ada.ID))
	require.Len(t, events, 2)
	assert.Equal(t, first.ID, events[0].Key)
}
