package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/devchat/devchat/models"
)

const (
	writeWait = 10 * time.Second

	// The client sends a heartbeat every 30s; three missed ones close it.
	pongWait = 90 * time.Second

	maxMessageSize = 4096

	// Large enough for a full message replay plus live traffic.
	sendBufferSize = 512

	maxSubscriptions = 256
)

var (
	errTooManySubscriptions = errors.New("too many subscriptions")
	errPathForbidden        = errors.New("permission denied")
)

// subState tracks one subscription. While pending, the replay is being
// built and live events are buffered so none is lost or reordered.
type subState struct {
	pending   bool
	buffered  []outbound
	lastCount int
	hasCount  bool
}

type outbound struct {
	event Event
	data  []byte
}

// Client is one WebSocket connection.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	userID   string
	username string
	send     chan []byte

	// subMu guards subs, closed and every write to send.
	subMu    sync.Mutex
	subs     map[Subscription]*subState
	closed   bool
	dropping bool

	writeMu sync.Mutex
}

func newClient(hub *Hub, conn *websocket.Conn, userID, username string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		userID:   userID,
		username: username,
		send:     make(chan []byte, sendBufferSize),
		subs:     make(map[Subscription]*subState),
	}
}

// ReadPump reads frames until the connection fails, then unregisters.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("[ws] failed to set read deadline for user %s: %v", c.userID, err)
		return
	}

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] unexpected close for user %s: %v", c.userID, err)
			}
			return
		}

		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			log.Printf("[ws] invalid frame from user %s: %v", c.userID, err)
			continue
		}

		c.handleEvent(event)
	}
}

// WritePump drains send. It exits when send is closed.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.writeMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.writeMessage(websocket.CloseMessage, nil)
}

func (c *Client) writeMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

func (c *Client) handleEvent(event Event) {
	switch event.Op {
	case OpHeartbeat:
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("[ws] failed to set read deadline for user %s: %v", c.userID, err)
			return
		}
		c.sendEvent(Event{Op: OpHeartbeatAck})

	case OpSubscribe, OpUnsubscribe:
		var data SubscribeData
		if err := decodeData(event, &data); err != nil {
			c.sendError(event, err.Error())
			return
		}
		sub := Subscription{Path: event.Path, Event: data.Event}
		if event.Op == OpUnsubscribe {
			c.unsubscribe(sub)
			return
		}
		if err := c.subscribe(sub); err != nil {
			log.Printf("[ws] subscribe rejected: user=%s sub=%s: %v", c.userID, sub, err)
			c.sendError(event, err.Error())
		}

	case OpTypingStart, OpTypingStop:
		var data TypingData
		if err := decodeData(event, &data); err != nil || data.ChannelKey == "" {
			c.sendError(event, "channel_key is required")
			return
		}
		if c.hub.onTyping == nil {
			return
		}
		if err := c.hub.onTyping(c.userID, c.username, data.ChannelKey, event.Op == OpTypingStart); err != nil {
			c.sendError(event, err.Error())
		}

	default:
		log.Printf("[ws] unknown op from user %s: %s", c.userID, event.Op)
	}
}

// subscribe registers sub, replays its current state and then streams
// live events. A repeated subscribe is a no-op.
func (c *Client) subscribe(sub Subscription) error {
	parsed, err := models.ParsePath(sub.Path)
	if err != nil {
		return err
	}
	if !models.ValidEvent(sub.Event) {
		return fmt.Errorf("unknown event %q", sub.Event)
	}
	if !parsed.Readable(c.userID) {
		return errPathForbidden
	}

	c.subMu.Lock()
	if c.closed {
		c.subMu.Unlock()
		return nil
	}
	if _, ok := c.subs[sub]; ok {
		c.subMu.Unlock()
		return nil
	}
	if len(c.subs) >= maxSubscriptions {
		c.subMu.Unlock()
		return errTooManySubscriptions
	}
	state := &subState{pending: true}
	c.subs[sub] = state
	c.subMu.Unlock()

	var replay []Event
	if c.hub.onSubscribe != nil {
		replay, err = c.hub.onSubscribe(c.userID, sub)
	}

	c.subMu.Lock()
	defer c.subMu.Unlock()

	if c.subs[sub] != state {
		// Unsubscribed while the replay was being built.
		return nil
	}
	if err != nil {
		delete(c.subs, sub)
		return err
	}

	for _, ev := range replay {
		ev.Seq = c.hub.nextSeq()
		data, err := json.Marshal(ev)
		if err != nil {
			log.Printf("[ws] failed to marshal replay event: %v", err)
			continue
		}
		c.deliverLocked(state, outbound{event: ev, data: data})
	}
	for _, out := range state.buffered {
		c.deliverLocked(state, out)
	}
	state.buffered = nil
	state.pending = false
	return nil
}

func (c *Client) unsubscribe(sub Subscription) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	delete(c.subs, sub)
}

// deliver is called by the hub for every published event.
func (c *Client) deliver(sub Subscription, event Event, data []byte) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	state, ok := c.subs[sub]
	if !ok || c.closed {
		return
	}
	out := outbound{event: event, data: data}
	if state.pending {
		state.buffered = append(state.buffered, out)
		return
	}
	c.deliverLocked(state, out)
}

// deliverLocked enqueues one frame. Value counts never go backwards on a
// subscription: a count lower than one already sent is stale and skipped.
func (c *Client) deliverLocked(state *subState, out outbound) {
	if out.event.Op == models.EventValue {
		if n, ok := valueCount(out.event); ok {
			if state.hasCount && n < state.lastCount {
				return
			}
			state.lastCount = n
			state.hasCount = true
		}
	}
	c.enqueueLocked(out.data)
}

func (c *Client) enqueueLocked(data []byte) {
	if c.closed || c.dropping {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("[ws] send buffer full for user %s, dropping connection", c.userID)
		c.dropping = true
		c.hub.drop(c)
	}
}

func (c *Client) sendEvent(event Event) {
	event.Seq = c.hub.nextSeq()
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal event for user %s: %v", c.userID, err)
		return
	}

	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.enqueueLocked(data)
}

func (c *Client) sendError(event Event, message string) {
	c.sendEvent(Event{Op: OpError, Data: ErrorData{Op: event.Op, Path: event.Path, Message: message}})
}

// close marks the client closed and closes send exactly once.
func (c *Client) close() {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func valueCount(event Event) (int, bool) {
	switch d := event.Data.(type) {
	case ValueData:
		return d.Count, true
	case *ValueData:
		return d.Count, d != nil
	case nil:
		return 0, false
	}
	var v ValueData
	if err := decodeData(event, &v); err != nil {
		return 0, false
	}
	return v.Count, true
}
