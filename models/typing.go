package models

// TypingUser is an entry under typing/<channelKey>. Entries are ephemeral
// and never stored in the database.
type TypingUser struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// TypingRequest is sent by a client when it starts or stops typing.
type TypingRequest struct {
	ChannelKey string `json:"channel_key"`
}
