package models

import (
	"fmt"
	"strings"
)

// Event types delivered on a realtime path.
const (
	EventChildAdded   = "child_added"
	EventChildRemoved = "child_removed"
	EventChildChanged = "child_changed"
	EventValue        = "value"
)

// ValidEvent reports whether event is one of the known event types.
func ValidEvent(event string) bool {
	switch event {
	case EventChildAdded, EventChildRemoved, EventChildChanged, EventValue:
		return true
	}
	return false
}

// Top-level paths.
const (
	PathChannels = "channels"
	PathUsers    = "users"
	PathPresence = "presence"
)

func MessagesPath(channelID string) string   { return "messages/" + channelID }
func PrivateMessagesPath(dmKey string) string { return "privateMessages/" + dmKey }
func TypingPath(channelKey string) string     { return "typing/" + channelKey }
func StarredPath(userID string) string        { return "users/" + userID + "/starred" }
func ColorsPath(userID string) string         { return "users/" + userID + "/colors" }

// PathKind classifies a parsed path.
type PathKind int

const (
	KindChannels PathKind = iota + 1
	KindUsers
	KindPresence
	KindMessages
	KindPrivateMessages
	KindTyping
	KindStarred
	KindColors
)

// ParsedPath is a path split into its kind and key. Key is the channel id,
// the DM key or the user id, depending on Kind.
type ParsedPath struct {
	Kind PathKind
	Key  string
	// Private is set for typing paths whose key is a DM key.
	Private bool
}

// ParsePath validates a realtime path.
func ParsePath(path string) (ParsedPath, error) {
	parts := strings.Split(path, "/")
	for _, p := range parts {
		if p == "" {
			return ParsedPath{}, fmt.Errorf("invalid path %q", path)
		}
	}

	switch {
	case len(parts) == 1 && parts[0] == PathChannels:
		return ParsedPath{Kind: KindChannels}, nil
	case len(parts) == 1 && parts[0] == PathUsers:
		return ParsedPath{Kind: KindUsers}, nil
	case len(parts) == 1 && parts[0] == PathPresence:
		return ParsedPath{Kind: KindPresence}, nil
	case len(parts) == 2 && parts[0] == "messages":
		return ParsedPath{Kind: KindMessages, Key: parts[1]}, nil
	case len(parts) == 3 && parts[0] == "privateMessages":
		key := parts[1] + "/" + parts[2]
		if _, _, err := ParseDMKey(key); err != nil {
			return ParsedPath{}, err
		}
		return ParsedPath{Kind: KindPrivateMessages, Key: key, Private: true}, nil
	case len(parts) == 2 && parts[0] == "typing":
		return ParsedPath{Kind: KindTyping, Key: parts[1]}, nil
	case len(parts) == 3 && parts[0] == "typing":
		key := parts[1] + "/" + parts[2]
		if _, _, err := ParseDMKey(key); err != nil {
			return ParsedPath{}, err
		}
		return ParsedPath{Kind: KindTyping, Key: key, Private: true}, nil
	case len(parts) == 3 && parts[0] == PathUsers && parts[2] == "starred":
		return ParsedPath{Kind: KindStarred, Key: parts[1]}, nil
	case len(parts) == 3 && parts[0] == PathUsers && parts[2] == "colors":
		return ParsedPath{Kind: KindColors, Key: parts[1]}, nil
	}
	return ParsedPath{}, fmt.Errorf("unknown path %q", path)
}

// Readable reports whether userID may subscribe to the path.
func (p ParsedPath) Readable(userID string) bool {
	switch p.Kind {
	case KindPrivateMessages:
		return DMParticipant(p.Key, userID)
	case KindTyping:
		return !p.Private || DMParticipant(p.Key, userID)
	case KindStarred, KindColors:
		return p.Key == userID
	}
	return true
}
