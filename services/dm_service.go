package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg"
	"github.com/devchat/devchat/repository"
)

// DMService resolves direct message targets and lists conversation peers.
type DMService interface {
	// Target returns the private target between userID and peerID after
	// checking the peer exists.
	Target(ctx context.Context, userID, peerID string) (models.MessageTarget, error)
	// ListPeers returns every other user with live status and the DM key.
	ListPeers(ctx context.Context, userID string) ([]models.DMPeer, error)
}

type dmService struct {
	userRepo repository.UserRepository
	users    UserService
}

func NewDMService(userRepo repository.UserRepository, users UserService) DMService {
	return &dmService{userRepo: userRepo, users: users}
}

func (s *dmService) Target(ctx context.Context, userID, peerID string) (models.MessageTarget, error) {
	if peerID == "" || peerID == userID {
		return models.MessageTarget{}, fmt.Errorf("%w: cannot message yourself", pkg.ErrBadRequest)
	}
	if _, err := s.userRepo.GetByID(ctx, peerID); err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return models.MessageTarget{}, fmt.Errorf("%w: user not found", pkg.ErrNotFound)
		}
		return models.MessageTarget{}, err
	}
	return models.PrivateTarget(userID, peerID), nil
}

func (s *dmService) ListPeers(ctx context.Context, userID string) ([]models.DMPeer, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}

	peers := make([]models.DMPeer, 0, len(users))
	for _, u := range users {
		if u.ID == userID {
			continue
		}
		peers = append(peers, models.DMPeer{User: u, ChannelKey: models.DMKey(userID, u.ID)})
	}
	return peers, nil
}
