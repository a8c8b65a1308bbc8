package models

import "time"

// StarredChannel is a channel a user starred, with the channel fields
// copied at star time.
type StarredChannel struct {
	ChannelID string    `json:"id"`
	Name      string    `json:"name"`
	Detail    string    `json:"details"`
	CreatedBy Creator   `json:"created_by"`
	StarredAt time.Time `json:"starred_at"`
}

// StarredFromChannel snapshots a channel.
func StarredFromChannel(c *Channel, at time.Time) StarredChannel {
	return StarredChannel{
		ChannelID: c.ID,
		Name:      c.Name,
		Detail:    c.Detail,
		CreatedBy: c.CreatedBy,
		StarredAt: at,
	}
}
