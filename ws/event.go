// Package ws carries the realtime surface: clients subscribe to (path,
// event) pairs and receive child_added / child_removed / child_changed /
// value events for them.
//
// Flow of a write:
//  1. HTTP request -> service -> database
//  2. service calls EventPublisher.Publish with a path event
//  3. the Hub hands the event to every client subscribed to (path, op)
//  4. each client's WritePump writes it to the socket
package ws

import (
	"encoding/json"
	"fmt"

	"github.com/devchat/devchat/models"
)

// Event is the single frame format in both directions.
//
// For path events Op is the event type (child_added, ...), Path the
// subscribed path and Key the child key. Seq increases per hub.
type Event struct {
	Op   string `json:"op"`
	Path string `json:"path,omitempty"`
	Key  string `json:"key,omitempty"`
	Data any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

// Client -> server operations.
const (
	OpHeartbeat   = "heartbeat"
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpTypingStart = "typing_start"
	OpTypingStop  = "typing_stop"
)

// Server -> client operations. Path events use the models.Event* names.
const (
	OpReady        = "ready"
	OpHeartbeatAck = "heartbeat_ack"
	OpError        = "error"
)

// ReadyData is the first frame on a new connection.
type ReadyData struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// SubscribeData is the payload of subscribe and unsubscribe; the path is
// carried on the frame itself.
type SubscribeData struct {
	Event string `json:"event"`
}

// TypingData is the payload of typing_start and typing_stop.
type TypingData struct {
	ChannelKey string `json:"channel_key"`
}

// ValueData is the payload of a value event: the number of children under
// the path.
type ValueData struct {
	Count int `json:"count"`
}

// ErrorData reports a rejected client frame.
type ErrorData struct {
	Op      string `json:"op"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// Subscription identifies one stream a client listens to.
type Subscription struct {
	Path  string
	Event string
}

func (s Subscription) String() string {
	return s.Event + " " + s.Path
}

func ChildAdded(path, key string, value any) Event {
	return Event{Op: models.EventChildAdded, Path: path, Key: key, Data: value}
}

func ChildRemoved(path, key string, value any) Event {
	return Event{Op: models.EventChildRemoved, Path: path, Key: key, Data: value}
}

func ChildChanged(path, key string, value any) Event {
	return Event{Op: models.EventChildChanged, Path: path, Key: key, Data: value}
}

func Value(path string, count int) Event {
	return Event{Op: models.EventValue, Path: path, Data: ValueData{Count: count}}
}

// decodeData re-decodes the generic payload of an inbound frame.
func decodeData(event Event, out any) error {
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid %s payload: %w", event.Op, err)
	}
	return nil
}
