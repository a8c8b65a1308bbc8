package services

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg"
	"github.com/devchat/devchat/repository"
	"github.com/devchat/devchat/ws"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 100
)

// MessageService writes and reads messages of public channels and direct
// message pairs. Every call is authorized against the target first.
type MessageService interface {
	Send(ctx context.Context, author *models.User, target models.MessageTarget, req *models.CreateMessageRequest) (*models.Message, error)
	SendImage(ctx context.Context, author *models.User, target models.MessageTarget, imageURL string) (*models.Message, error)
	// List returns up to limit messages older than beforeID (newest page when
	// beforeID is empty), oldest first.
	List(ctx context.Context, userID string, target models.MessageTarget, beforeID string, limit int) ([]models.Message, error)
	Count(ctx context.Context, userID string, target models.MessageTarget) (int, error)
	Search(ctx context.Context, userID string, target models.MessageTarget, term string) ([]models.Message, error)
	Stats(ctx context.Context, userID string, target models.MessageTarget) (*models.ChannelStats, error)
}

type messageService struct {
	messageRepo repository.MessageRepository
	guard       accessGuard
	typing      TypingService
	publisher   ws.EventPublisher

	// Writes to one channel key are serialized so the count published after
	// each write never goes backwards.
	locks sync.Map // channel path → *sync.Mutex
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	channelRepo repository.ChannelRepository,
	userRepo repository.UserRepository,
	typing TypingService,
	publisher ws.EventPublisher,
) MessageService {
	return &messageService{
		messageRepo: messageRepo,
		guard:       accessGuard{channelRepo: channelRepo, userRepo: userRepo},
		typing:      typing,
		publisher:   publisher,
	}
}

func (s *messageService) Send(ctx context.Context, author *models.User, target models.MessageTarget, req *models.CreateMessageRequest) (*models.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	content := req.Content
	return s.create(ctx, author, target, &content, nil)
}

func (s *messageService) SendImage(ctx context.Context, author *models.User, target models.MessageTarget, imageURL string) (*models.Message, error) {
	if strings.TrimSpace(imageURL) == "" {
		return nil, fmt.Errorf("%w: image url is required", pkg.ErrBadRequest)
	}
	return s.create(ctx, author, target, nil, &imageURL)
}

func (s *messageService) create(ctx context.Context, author *models.User, target models.MessageTarget, content, image *string) (*models.Message, error) {
	if err := s.guard.checkTarget(ctx, author.ID, target); err != nil {
		return nil, err
	}

	id, err := newKey()
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:         id,
		ChannelKey: target.Key,
		Scope:      target.Scope,
		User:       author.Author(),
		Content:    content,
		Image:      image,
		Timestamp:  time.Now().UTC(),
	}

	path := target.Path()
	mu := s.lockFor(path)
	mu.Lock()
	defer mu.Unlock()

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	count, err := s.messageRepo.Count(ctx, target)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ws.ChildAdded(path, msg.ID, msg))
	s.publisher.Publish(ws.Value(path, count))

	if err := s.typing.Stop(ctx, author.ID, target.Key); err != nil {
		log.Printf("[messages] failed to clear typing for %s: %v", author.ID, err)
	}
	return msg, nil
}

func (s *messageService) lockFor(path string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *messageService) List(ctx context.Context, userID string, target models.MessageTarget, beforeID string, limit int) ([]models.Message, error) {
	if err := s.guard.checkTarget(ctx, userID, target); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}
	return s.messageRepo.List(ctx, target, beforeID, limit)
}

func (s *messageService) Count(ctx context.Context, userID string, target models.MessageTarget) (int, error) {
	if err := s.guard.checkTarget(ctx, userID, target); err != nil {
		return 0, err
	}
	return s.messageRepo.Count(ctx, target)
}

// Search matches term as a case-insensitive regular expression against
// text messages. A term that does not compile is matched literally.
func (s *messageService) Search(ctx context.Context, userID string, target models.MessageTarget, term string) ([]models.Message, error) {
	if err := s.guard.checkTarget(ctx, userID, target); err != nil {
		return nil, err
	}

	term = strings.TrimSpace(term)
	if term == "" {
		return []models.Message{}, nil
	}

	messages, err := s.messageRepo.ListAll(ctx, target)
	if err != nil {
		return nil, err
	}

	re := searchPattern(term)
	out := make([]models.Message, 0)
	for _, m := range messages {
		if m.Content != nil && re.MatchString(*m.Content) {
			out = append(out, m)
		}
	}
	return out, nil
}

func searchPattern(term string) *regexp.Regexp {
	re, err := regexp.Compile("(?i)" + term)
	if err != nil {
		return regexp.MustCompile("(?i)" + regexp.QuoteMeta(term))
	}
	return re
}

func (s *messageService) Stats(ctx context.Context, userID string, target models.MessageTarget) (*models.ChannelStats, error) {
	if err := s.guard.checkTarget(ctx, userID, target); err != nil {
		return nil, err
	}

	count, err := s.messageRepo.Count(ctx, target)
	if err != nil {
		return nil, err
	}
	posts, err := s.messageRepo.UserPostCounts(ctx, target)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []models.UserPostCount{}
	}

	return &models.ChannelStats{
		MessageCount: count,
		UniqueUsers:  len(posts),
		Label:        models.UniqueUsersLabel(len(posts)),
		UserPosts:    posts,
	}, nil
}
