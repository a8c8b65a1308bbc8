package services

import (
	"context"
	"log"

	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg/ephemeral"
	"github.com/devchat/devchat/repository"
	"github.com/devchat/devchat/ws"
)

// PresenceService turns connection lifecycle into the presence path. A
// user is online while at least one connection is open, on any instance.
type PresenceService interface {
	Connect(ctx context.Context, userID, username string) error
	Disconnect(ctx context.Context, userID string) error
	List(ctx context.Context) ([]models.Presence, error)
}

type presenceService struct {
	store     ephemeral.Store
	userRepo  repository.UserRepository
	typing    TypingService
	publisher ws.EventPublisher
}

func NewPresenceService(
	store ephemeral.Store,
	userRepo repository.UserRepository,
	typing TypingService,
	publisher ws.EventPublisher,
) PresenceService {
	return &presenceService{
		store:     store,
		userRepo:  userRepo,
		typing:    typing,
		publisher: publisher,
	}
}

func (s *presenceService) Connect(ctx context.Context, userID, username string) error {
	first, err := s.store.Connect(ctx, userID)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	if err := s.userRepo.UpdateStatus(ctx, userID, models.UserStatusOnline); err != nil {
		log.Printf("[presence] failed to persist online status for %s: %v", userID, err)
	}

	log.Printf("[presence] %s (%s) is online", userID, username)
	s.publisher.Publish(ws.ChildAdded(models.PathPresence, userID, models.Presence{
		UserID:   userID,
		Username: username,
		Status:   models.UserStatusOnline,
	}))
	return nil
}

// Disconnect also clears the user's typing indicators once the last
// connection is gone.
func (s *presenceService) Disconnect(ctx context.Context, userID string) error {
	last, err := s.store.Disconnect(ctx, userID)
	if err != nil {
		return err
	}
	if !last {
		return nil
	}

	if err := s.userRepo.UpdateStatus(ctx, userID, models.UserStatusOffline); err != nil {
		log.Printf("[presence] failed to persist offline status for %s: %v", userID, err)
	}

	log.Printf("[presence] %s is offline", userID)
	s.publisher.Publish(ws.ChildRemoved(models.PathPresence, userID, models.Presence{
		UserID: userID,
		Status: models.UserStatusOffline,
	}))

	return s.typing.ClearUser(ctx, userID)
}

func (s *presenceService) List(ctx context.Context) ([]models.Presence, error) {
	online, err := onlineSet(ctx, s.store)
	if err != nil {
		return nil, err
	}
	if len(online) == 0 {
		return []models.Presence{}, nil
	}

	users, err := s.userRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.Presence, 0, len(online))
	for _, u := range users {
		if online[u.ID] {
			out = append(out, models.Presence{UserID: u.ID, Username: u.Username, Status: models.UserStatusOnline})
		}
	}
	return out, nil
}
