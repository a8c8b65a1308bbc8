package services

import (
	"context"
	"time"

	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/repository"
	"github.com/devchat/devchat/ws"
)

type StarredService interface {
	Star(ctx context.Context, userID, channelID string) (*models.StarredChannel, error)
	Unstar(ctx context.Context, userID, channelID string) error
	List(ctx context.Context, userID string) ([]models.StarredChannel, error)
	IsStarred(ctx context.Context, userID, channelID string) (bool, error)
}

type starredService struct {
	starredRepo repository.StarredRepository
	channelRepo repository.ChannelRepository
	publisher   ws.EventPublisher
}

func NewStarredService(
	starredRepo repository.StarredRepository,
	channelRepo repository.ChannelRepository,
	publisher ws.EventPublisher,
) StarredService {
	return &starredService{
		starredRepo: starredRepo,
		channelRepo: channelRepo,
		publisher:   publisher,
	}
}

// Star is idempotent: starring twice publishes once.
func (s *starredService) Star(ctx context.Context, userID, channelID string) (*models.StarredChannel, error) {
	channel, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}

	starred := models.StarredFromChannel(channel, time.Now().UTC())
	added, err := s.starredRepo.Add(ctx, userID, &starred)
	if err != nil {
		return nil, err
	}
	if added {
		s.publisher.Publish(ws.ChildAdded(models.StarredPath(userID), channelID, starred))
	}
	return &starred, nil
}

func (s *starredService) Unstar(ctx context.Context, userID, channelID string) error {
	removed, err := s.starredRepo.Remove(ctx, userID, channelID)
	if err != nil {
		return err
	}
	if removed {
		s.publisher.Publish(ws.ChildRemoved(models.StarredPath(userID), channelID, models.StarredChannel{ChannelID: channelID}))
	}
	return nil
}

func (s *starredService) List(ctx context.Context, userID string) ([]models.StarredChannel, error) {
	return s.starredRepo.List(ctx, userID)
}

func (s *starredService) IsStarred(ctx context.Context, userID, channelID string) (bool, error) {
	return s.starredRepo.Exists(ctx, userID, channelID)
}
