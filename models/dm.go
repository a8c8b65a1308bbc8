package models

import (
	"fmt"
	"strings"
)

// DMKey returns the key of the private channel between two users. It is
// symmetric: DMKey(a, b) == DMKey(b, a).
func DMKey(a, b string) string {
	if a < b {
		return a + "/" + b
	}
	return b + "/" + a
}

// ParseDMKey splits a DM key into its two user ids.
func ParseDMKey(key string) (string, string, error) {
	a, b, ok := strings.Cut(key, "/")
	if !ok || a == "" || b == "" || strings.Contains(b, "/") || a > b {
		return "", "", fmt.Errorf("invalid direct message key %q", key)
	}
	return a, b, nil
}

// DMParticipant reports whether userID is one of the two users of key.
func DMParticipant(key, userID string) bool {
	a, b, err := ParseDMKey(key)
	if err != nil {
		return false
	}
	return userID == a || userID == b
}

// DMPeer is an entry of the direct message list: another user and whether
// they are online right now.
type DMPeer struct {
	User
	ChannelKey string `json:"channel_key"`
}

// DisplayName is how the private channel is labelled: "@username".
func (p *DMPeer) DisplayName() string {
	return "@" + p.Username
}
