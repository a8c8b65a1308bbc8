package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg"
	"github.com/devchat/devchat/repository"
	"github.com/devchat/devchat/ws"
)

type ChannelService interface {
	Create(ctx context.Context, creator *models.User, req *models.CreateChannelRequest) (*models.Channel, error)
	List(ctx context.Context) ([]models.Channel, error)
	Get(ctx context.Context, id string) (*models.Channel, error)
}

type channelService struct {
	channelRepo repository.ChannelRepository
	publisher   ws.EventPublisher
}

func NewChannelService(channelRepo repository.ChannelRepository, publisher ws.EventPublisher) ChannelService {
	return &channelService{channelRepo: channelRepo, publisher: publisher}
}

func (s *channelService) Create(ctx context.Context, creator *models.User, req *models.CreateChannelRequest) (*models.Channel, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	id, err := newKey()
	if err != nil {
		return nil, err
	}

	channel := &models.Channel{
		ID:          id,
		Name:        req.Name,
		Detail:      req.Detail,
		CreatedByID: creator.ID,
		CreatedBy: models.Creator{
			Name:   creator.Username,
			Avatar: creator.AvatarURL,
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := s.channelRepo.Create(ctx, channel); err != nil {
		return nil, err
	}

	log.Printf("[channels] created %s (%s) by %s", channel.DisplayName(), channel.ID, creator.ID)
	s.publisher.Publish(ws.ChildAdded(models.PathChannels, channel.ID, channel))
	return channel, nil
}

func (s *channelService) List(ctx context.Context) ([]models.Channel, error) {
	return s.channelRepo.List(ctx)
}

func (s *channelService) Get(ctx context.Context, id string) (*models.Channel, error) {
	return s.channelRepo.GetByID(ctx, id)
}
