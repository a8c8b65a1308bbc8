package services

import (
	"context"
	"fmt"

	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg"
	"github.com/devchat/devchat/repository"
	"github.com/devchat/devchat/ws"
)

// snapshotMessageLimit bounds the messages replayed on subscribe. Older
// messages are paged in over HTTP.
const snapshotMessageLimit = 200

// SnapshotService builds the replay a new subscription starts with: one
// child_added per existing child, or a single value event. child_removed
// and child_changed subscriptions start empty.
type SnapshotService interface {
	Snapshot(ctx context.Context, userID string, sub ws.Subscription) ([]ws.Event, error)
}

type snapshotService struct {
	guard       accessGuard
	channelRepo repository.ChannelRepository
	messageRepo repository.MessageRepository
	starredRepo repository.StarredRepository
	colorRepo   repository.ColorRepository
	users       UserService
	presence    PresenceService
	typing      TypingService
}

func NewSnapshotService(
	channelRepo repository.ChannelRepository,
	userRepo repository.UserRepository,
	messageRepo repository.MessageRepository,
	starredRepo repository.StarredRepository,
	colorRepo repository.ColorRepository,
	users UserService,
	presence PresenceService,
	typing TypingService,
) SnapshotService {
	return &snapshotService{
		guard:       accessGuard{channelRepo: channelRepo, userRepo: userRepo},
		channelRepo: channelRepo,
		messageRepo: messageRepo,
		starredRepo: starredRepo,
		colorRepo:   colorRepo,
		users:       users,
		presence:    presence,
		typing:      typing,
	}
}

func (s *snapshotService) Snapshot(ctx context.Context, userID string, sub ws.Subscription) ([]ws.Event, error) {
	parsed, err := models.ParsePath(sub.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	if !parsed.Readable(userID) {
		return nil, fmt.Errorf("%w: permission denied", pkg.ErrForbidden)
	}

	switch sub.Event {
	case models.EventChildAdded:
		return s.children(ctx, userID, sub.Path, parsed)
	case models.EventValue:
		return s.value(ctx, userID, sub.Path, parsed)
	case models.EventChildRemoved, models.EventChildChanged:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: unknown event %q", pkg.ErrBadRequest, sub.Event)
}

func (s *snapshotService) value(ctx context.Context, userID, path string, parsed models.ParsedPath) ([]ws.Event, error) {
	target, ok := messageTarget(parsed)
	if !ok {
		return nil, fmt.Errorf("%w: value events are only published on message paths", pkg.ErrBadRequest)
	}
	if err := s.guard.checkTarget(ctx, userID, target); err != nil {
		return nil, err
	}
	count, err := s.messageRepo.Count(ctx, target)
	if err != nil {
		return nil, err
	}
	return []ws.Event{ws.Value(path, count)}, nil
}

func (s *snapshotService) children(ctx context.Context, userID, path string, parsed models.ParsedPath) ([]ws.Event, error) {
	var events []ws.Event

	switch parsed.Kind {
	case models.KindChannels:
		channels, err := s.channelRepo.List(ctx)
		if err != nil {
			return nil, err
		}
		for i := range channels {
			events = append(events, ws.ChildAdded(path, channels[i].ID, &channels[i]))
		}

	case models.KindUsers:
		users, err := s.users.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			events = append(events, ws.ChildAdded(path, u.ID, u))
		}

	case models.KindPresence:
		online, err := s.presence.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range online {
			events = append(events, ws.ChildAdded(path, p.UserID, p))
		}

	case models.KindMessages, models.KindPrivateMessages:
		target, _ := messageTarget(parsed)
		if err := s.guard.checkTarget(ctx, userID, target); err != nil {
			return nil, err
		}
		messages, err := s.messageRepo.List(ctx, target, "", snapshotMessageLimit)
		if err != nil {
			return nil, err
		}
		for i := range messages {
			events = append(events, ws.ChildAdded(path, messages[i].ID, &messages[i]))
		}

	case models.KindTyping:
		typing, err := s.typing.List(ctx, parsed.Key)
		if err != nil {
			return nil, err
		}
		for _, t := range typing {
			events = append(events, ws.ChildAdded(path, t.UserID, t))
		}

	case models.KindStarred:
		starred, err := s.starredRepo.List(ctx, parsed.Key)
		if err != nil {
			return nil, err
		}
		for _, c := range starred {
			events = append(events, ws.ChildAdded(path, c.ChannelID, c))
		}

	case models.KindColors:
		themes, err := s.colorRepo.ListByUser(ctx, parsed.Key)
		if err != nil {
			return nil, err
		}
		// Stored newest first; replay in insertion order like live events.
		for i := len(themes) - 1; i >= 0; i-- {
			events = append(events, ws.ChildAdded(path, themes[i].ID, &themes[i]))
		}
	}

	return events, nil
}

func messageTarget(parsed models.ParsedPath) (models.MessageTarget, bool) {
	switch parsed.Kind {
	case models.KindMessages:
		return models.PublicTarget(parsed.Key), true
	case models.KindPrivateMessages:
		return models.MessageTarget{Scope: models.ScopePrivate, Key: parsed.Key}, true
	}
	return models.MessageTarget{}, false
}
