package services

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg/cache"
	"github.com/devchat/devchat/pkg/ephemeral"
	"github.com/devchat/devchat/repository"
	"github.com/devchat/devchat/ws"
)

// UserService reads the user directory and updates profiles.
type UserService interface {
	// Get returns the full profile, email included. Only the owner sees it.
	Get(ctx context.Context, userID string) (*models.User, error)
	// List returns every user without email, status taken from live presence.
	List(ctx context.Context) ([]models.User, error)
	UpdateAvatar(ctx context.Context, userID, avatarURL string) (*models.User, error)
}

type userService struct {
	userRepo  repository.UserRepository
	store     ephemeral.Store
	userCache *cache.TTLCache[string, models.User]
	publisher ws.EventPublisher
}

func NewUserService(
	userRepo repository.UserRepository,
	store ephemeral.Store,
	userCache *cache.TTLCache[string, models.User],
	publisher ws.EventPublisher,
) UserService {
	return &userService{
		userRepo:  userRepo,
		store:     store,
		userCache: userCache,
		publisher: publisher,
	}
}

func (s *userService) Get(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Status = s.status(ctx, user.ID)
	return user, nil
}

func (s *userService) List(ctx context.Context) ([]models.User, error) {
	users, err := s.userRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	online, err := onlineSet(ctx, s.store)
	if err != nil {
		return nil, err
	}

	out := make([]models.User, 0, len(users))
	for _, u := range users {
		u.Status = models.UserStatusOffline
		if online[u.ID] {
			u.Status = models.UserStatusOnline
		}
		out = append(out, u.Public())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// UpdateAvatar stores the new avatar URL and announces the changed profile
// on the users path. Existing messages keep the avatar they were sent with.
func (s *userService) UpdateAvatar(ctx context.Context, userID, avatarURL string) (*models.User, error) {
	if err := s.userRepo.UpdateAvatar(ctx, userID, avatarURL); err != nil {
		return nil, fmt.Errorf("failed to update avatar: %w", err)
	}
	s.userCache.Delete(userID)

	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	log.Printf("[users] avatar updated: %s", userID)
	s.publisher.Publish(ws.ChildChanged(models.PathUsers, user.ID, user.Public()))
	return user, nil
}

func (s *userService) status(ctx context.Context, userID string) models.UserStatus {
	online, err := s.store.IsOnline(ctx, userID)
	if err != nil {
		log.Printf("[users] presence lookup failed for %s: %v", userID, err)
		return models.UserStatusOffline
	}
	if online {
		return models.UserStatusOnline
	}
	return models.UserStatusOffline
}

func onlineSet(ctx context.Context, store ephemeral.Store) (map[string]bool, error) {
	ids, err := store.OnlineUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read presence: %w", err)
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}
