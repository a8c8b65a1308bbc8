package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// MessageScope separates public channel messages from direct messages.
type MessageScope string

const (
	ScopePublic  MessageScope = "public"
	ScopePrivate MessageScope = "private"
)

// Author is the snapshot of the sender taken at write time. Later avatar
// changes do not rewrite old messages.
type Author struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Message is a chat message. Exactly one of Content and Image is set.
type Message struct {
	ID         string       `json:"id"`
	ChannelKey string       `json:"channel_id"`
	Scope      MessageScope `json:"scope"`
	User       Author       `json:"user"`
	Content    *string      `json:"content,omitempty"`
	Image      *string      `json:"image,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
}

// IsImage reports whether the message carries an image instead of text.
func (m *Message) IsImage() bool {
	return m.Image != nil
}

// MaxMessageLength caps text messages, counted in runes.
const MaxMessageLength = 2000

// CreateMessageRequest is the message form.
type CreateMessageRequest struct {
	Content string `json:"content"`
}

func (r *CreateMessageRequest) Validate() error {
	if strings.TrimSpace(r.Content) == "" {
		return fmt.Errorf("Add a message")
	}
	if utf8.RuneCountInString(r.Content) > MaxMessageLength {
		return fmt.Errorf("message must be at most %d characters", MaxMessageLength)
	}
	return nil
}

// MessageTarget identifies the channel a message belongs to.
type MessageTarget struct {
	Scope MessageScope
	Key   string
}

// PublicTarget targets the public channel channelID.
func PublicTarget(channelID string) MessageTarget {
	return MessageTarget{Scope: ScopePublic, Key: channelID}
}

// PrivateTarget targets the direct message channel of two users.
func PrivateTarget(a, b string) MessageTarget {
	return MessageTarget{Scope: ScopePrivate, Key: DMKey(a, b)}
}

// Path is the realtime path the target's messages are published on.
func (t MessageTarget) Path() string {
	if t.Scope == ScopePrivate {
		return PrivateMessagesPath(t.Key)
	}
	return MessagesPath(t.Key)
}

// UserPostCount is one row of the "posts per user" panel.
type UserPostCount struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Count  int    `json:"count"`
}

// ChannelStats summarizes who posted in a channel. Users are counted by
// display name.
type ChannelStats struct {
	MessageCount int             `json:"message_count"`
	UniqueUsers  int             `json:"unique_users"`
	Label        string          `json:"label"`
	UserPosts    []UserPostCount `json:"user_posts"`
}

// UniqueUsersLabel renders "1 User" or "N Users". Zero stays singular.
func UniqueUsersLabel(n int) string {
	if n > 1 {
		return strconv.Itoa(n) + " Users"
	}
	return strconv.Itoa(n) + " User"
}

// ComputeChannelStats derives stats from a list of messages.
func ComputeChannelStats(messages []Message) ChannelStats {
	index := make(map[string]int)
	var posts []UserPostCount
	for _, m := range messages {
		i, ok := index[m.User.Name]
		if !ok {
			index[m.User.Name] = len(posts)
			posts = append(posts, UserPostCount{Name: m.User.Name, Avatar: m.User.Avatar, Count: 1})
			continue
		}
		posts[i].Count++
		posts[i].Avatar = m.User.Avatar
	}
	if posts == nil {
		posts = []UserPostCount{}
	}
	return ChannelStats{
		MessageCount: len(messages),
		UniqueUsers:  len(posts),
		Label:        UniqueUsersLabel(len(posts)),
		UserPosts:    posts,
	}
}
