package services

import (
	"context"
	"log"
	"sort"

	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg/ephemeral"
	"github.com/devchat/devchat/repository"
	"github.com/devchat/devchat/ws"
)

// TypingService maintains "who is typing" per channel key. Entries are
// ephemeral: they vanish when the user sends, stops, or disconnects.
type TypingService interface {
	Start(ctx context.Context, user models.TypingUser, channelKey string) error
	Stop(ctx context.Context, userID, channelKey string) error
	// ClearUser removes the user from every channel they were typing in.
	ClearUser(ctx context.Context, userID string) error
	List(ctx context.Context, channelKey string) ([]models.TypingUser, error)
}

type typingService struct {
	guard     accessGuard
	store     ephemeral.Store
	publisher ws.EventPublisher
}

func NewTypingService(
	channelRepo repository.ChannelRepository,
	userRepo repository.UserRepository,
	store ephemeral.Store,
	publisher ws.EventPublisher,
) TypingService {
	return &typingService{
		guard:     accessGuard{channelRepo: channelRepo, userRepo: userRepo},
		store:     store,
		publisher: publisher,
	}
}

func (s *typingService) Start(ctx context.Context, user models.TypingUser, channelKey string) error {
	if err := s.guard.checkTarget(ctx, user.UserID, targetForKey(channelKey)); err != nil {
		return err
	}

	added, err := s.store.SetTyping(ctx, channelKey, user.UserID, user.Username)
	if err != nil {
		return err
	}
	if added {
		s.publisher.Publish(ws.ChildAdded(models.TypingPath(channelKey), user.UserID, user))
	}
	return nil
}

func (s *typingService) Stop(ctx context.Context, userID, channelKey string) error {
	removed, err := s.store.ClearTyping(ctx, channelKey, userID)
	if err != nil {
		return err
	}
	if removed {
		s.publisher.Publish(ws.ChildRemoved(models.TypingPath(channelKey), userID, models.TypingUser{UserID: userID}))
	}
	return nil
}

func (s *typingService) ClearUser(ctx context.Context, userID string) error {
	keys, err := s.store.ClearUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, key := range keys {
		s.publisher.Publish(ws.ChildRemoved(models.TypingPath(key), userID, models.TypingUser{UserID: userID}))
	}
	if len(keys) > 0 {
		log.Printf("[typing] cleared %s from %d channel(s)", userID, len(keys))
	}
	return nil
}

func (s *typingService) List(ctx context.Context, channelKey string) ([]models.TypingUser, error) {
	entries, err := s.store.TypingUsers(ctx, channelKey)
	if err != nil {
		return nil, err
	}
	out := make([]models.TypingUser, 0, len(entries))
	for id, name := range entries {
		out = append(out, models.TypingUser{UserID: id, Username: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
