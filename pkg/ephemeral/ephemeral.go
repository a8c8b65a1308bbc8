// Package ephemeral keeps state that lives only while users are connected:
// presence and typing indicators. Nothing here survives a restart of the
// backing store, and nothing needs to.
package ephemeral

import "context"

// Store is shared by every server instance when backed by Redis, or local
// to the process when in memory.
type Store interface {
	// Connect counts one more connection for the user. first is true when
	// this is the user's only connection.
	Connect(ctx context.Context, userID string) (first bool, err error)
	// Disconnect counts one connection less. last is true when the user has
	// no connection left.
	Disconnect(ctx context.Context, userID string) (last bool, err error)
	OnlineUsers(ctx context.Context) ([]string, error)
	IsOnline(ctx context.Context, userID string) (bool, error)

	// SetTyping records that userID is typing in channelKey. added is false
	// when the entry already existed.
	SetTyping(ctx context.Context, channelKey, userID, username string) (added bool, err error)
	// ClearTyping removes the entry. removed is false when there was none.
	ClearTyping(ctx context.Context, channelKey, userID string) (removed bool, err error)
	// TypingUsers maps user id to display name for channelKey.
	TypingUsers(ctx context.Context, channelKey string) (map[string]string, error)
	// ClearUser drops every typing entry of userID and returns the channel
	// keys it was removed from.
	ClearUser(ctx context.Context, userID string) ([]string, error)

	Close() error
}
