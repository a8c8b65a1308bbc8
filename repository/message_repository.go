package repository

import (
	"context"

	"github.com/devchat/devchat/models"
)

// MessageRepository stores public and private messages. A target is the
// (scope, channel key) pair a message belongs to.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	// List returns up to limit messages older than beforeID (or the newest
	// ones when beforeID is empty), oldest first.
	List(ctx context.Context, target models.MessageTarget, beforeID string, limit int) ([]models.Message, error)
	// ListAll returns every message of the target, oldest first.
	ListAll(ctx context.Context, target models.MessageTarget) ([]models.Message, error)
	Count(ctx context.Context, target models.MessageTarget) (int, error)
	// UserPostCounts groups the target's messages by author name, in order
	// of each author's first post, with the avatar of their latest post.
	UserPostCounts(ctx context.Context, target models.MessageTarget) ([]models.UserPostCount, error)
}
