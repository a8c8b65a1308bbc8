package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Creator is the author snapshot taken when a channel is created.
type Creator struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Channel is a public channel. Channels are never deleted.
type Channel struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Detail      string    `json:"details"`
	CreatedByID string    `json:"-"`
	CreatedBy   Creator   `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// DisplayName is how the channel is labelled in headers: "#name".
func (c *Channel) DisplayName() string {
	return "#" + c.Name
}

// CreateChannelRequest is the "add channel" form.
type CreateChannelRequest struct {
	Name   string `json:"name"`
	Detail string `json:"details"`
}

func (r *CreateChannelRequest) Validate() error {
	r.Name = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(r.Name), "#"))
	r.Detail = strings.TrimSpace(r.Detail)

	if r.Name == "" || r.Detail == "" {
		return fmt.Errorf("Please fill in all fields")
	}
	if utf8.RuneCountInString(r.Name) > 64 {
		return fmt.Errorf("channel name must be at most 64 characters")
	}
	if utf8.RuneCountInString(r.Detail) > 256 {
		return fmt.Errorf("channel details must be at most 256 characters")
	}
	return nil
}
