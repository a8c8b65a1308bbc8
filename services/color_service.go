package services

import (
	"context"
	"fmt"
	"time"

	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg"
	"github.com/devchat/devchat/repository"
	"github.com/devchat/devchat/ws"
)

type ColorService interface {
	Save(ctx context.Context, userID string, req *models.SaveColorRequest) (*models.ColorTheme, error)
	// List returns the user's themes, newest first.
	List(ctx context.Context, userID string) ([]models.ColorTheme, error)
}

type colorService struct {
	colorRepo repository.ColorRepository
	publisher ws.EventPublisher
}

func NewColorService(colorRepo repository.ColorRepository, publisher ws.EventPublisher) ColorService {
	return &colorService{colorRepo: colorRepo, publisher: publisher}
}

func (s *colorService) Save(ctx context.Context, userID string, req *models.SaveColorRequest) (*models.ColorTheme, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	id, err := newKey()
	if err != nil {
		return nil, err
	}

	theme := &models.ColorTheme{
		ID:        id,
		UserID:    userID,
		Primary:   req.Primary,
		Secondary: req.Secondary,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.colorRepo.Create(ctx, theme); err != nil {
		return nil, err
	}

	s.publisher.Publish(ws.ChildAdded(models.ColorsPath(userID), theme.ID, theme))
	return theme, nil
}

func (s *colorService) List(ctx context.Context, userID string) ([]models.ColorTheme, error) {
	return s.colorRepo.ListByUser(ctx, userID)
}
