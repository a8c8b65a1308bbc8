package repository

import (
	"context"

	"github.com/devchat/devchat/models"
)

type ChannelRepository interface {
	// Create stores a channel whose ID was assigned by the caller.
	Create(ctx context.Context, channel *models.Channel) error
	GetByID(ctx context.Context, id string) (*models.Channel, error)
	// List returns channels in creation order.
	List(ctx context.Context) ([]models.Channel, error)
}

// StarredRepository keeps each user's starred channels.
type StarredRepository interface {
	// Add returns false when the channel was already starred.
	Add(ctx context.Context, userID string, starred *models.StarredChannel) (bool, error)
	// Remove returns false when the channel was not starred.
	Remove(ctx context.Context, userID, channelID string) (bool, error)
	List(ctx context.Context, userID string) ([]models.StarredChannel, error)
	Exists(ctx context.Context, userID, channelID string) (bool, error)
}

// ColorRepository keeps saved color themes.
type ColorRepository interface {
	Create(ctx context.Context, color *models.ColorTheme) error
	// ListByUser returns the newest theme first.
	ListByUser(ctx context.Context, userID string) ([]models.ColorTheme, error)
}
