package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg"
	"github.com/devchat/devchat/repository"
)

// accessGuard decides whether a user may read or write a channel. Public
// channels are open to every signed-in user once they exist; a private
// channel is open to its two participants only.
type accessGuard struct {
	channelRepo repository.ChannelRepository
	userRepo    repository.UserRepository
}

func (g accessGuard) checkTarget(ctx context.Context, userID string, target models.MessageTarget) error {
	switch target.Scope {
	case models.ScopePublic:
		if _, err := g.channelRepo.GetByID(ctx, target.Key); err != nil {
			if errors.Is(err, pkg.ErrNotFound) {
				return fmt.Errorf("%w: channel not found", pkg.ErrNotFound)
			}
			return err
		}
		return nil

	case models.ScopePrivate:
		a, b, err := models.ParseDMKey(target.Key)
		if err != nil {
			return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
		}
		if a == b {
			return fmt.Errorf("%w: cannot message yourself", pkg.ErrBadRequest)
		}
		peer := a
		switch userID {
		case a:
			peer = b
		case b:
		default:
			return fmt.Errorf("%w: not a participant of this conversation", pkg.ErrForbidden)
		}
		if _, err := g.userRepo.GetByID(ctx, peer); err != nil {
			if errors.Is(err, pkg.ErrNotFound) {
				return fmt.Errorf("%w: user not found", pkg.ErrNotFound)
			}
			return err
		}
		return nil
	}

	return fmt.Errorf("%w: unknown message scope %q", pkg.ErrBadRequest, target.Scope)
}

// targetForKey maps a typing channel key back to a message target: a key
// containing "/" is a direct message pair, anything else a channel id.
func targetForKey(channelKey string) models.MessageTarget {
	if strings.Contains(channelKey, "/") {
		return models.MessageTarget{Scope: models.ScopePrivate, Key: channelKey}
	}
	return models.PublicTarget(channelKey)
}
