package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/ws"
)

const (
	heartbeatInterval = 30 * time.Second
	writeWait         = 10 * time.Second

	// Three missed heartbeat acks close the connection.
	readWait = 3 * heartbeatInterval

	handshakeWait = 10 * time.Second
)

// Event is a frame received from the server. Data is kept raw until a
// listener decodes it into the type it expects.
type Event struct {
	Op   string          `json:"op"`
	Path string          `json:"path,omitempty"`
	Key  string          `json:"key,omitempty"`
	Data json.RawMessage `json:"d,omitempty"`
	Seq  int64           `json:"seq,omitempty"`
}

// Decode unmarshals the payload into out.
func (e Event) Decode(out any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s event on %q has no payload", e.Op, e.Path)
	}
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("invalid %s payload on %q: %w", e.Op, e.Path, err)
	}
	return nil
}

// IsPathEvent reports whether the frame is a child_* or value event.
func (e Event) IsPathEvent() bool {
	return models.ValidEvent(e.Op) && e.Path != ""
}

// Conn is a realtime connection. Frames are read by a single goroutine and
// handed to the handler one at a time, so handlers never run concurrently.
type Conn struct {
	conn  *websocket.Conn
	ready ws.ReadyData

	writeMu sync.Mutex

	started   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
	closing   chan struct{}
	errMu     sync.Mutex
	err       error
}

// Dial opens the socket at socketURL (see API.SocketURL) and waits for the
// ready frame.
func Dial(ctx context.Context, socketURL string) (*Conn, error) {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = handshakeWait

	wsConn, resp, err := dialer.DialContext(ctx, socketURL, nil)
	if err != nil {
		if resp != nil {
			return nil, &APIError{Status: resp.StatusCode, Message: "websocket handshake failed"}
		}
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c := &Conn{
		conn:    wsConn,
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}

	if err := wsConn.SetReadDeadline(time.Now().Add(handshakeWait)); err != nil {
		wsConn.Close()
		return nil, err
	}
	var first Event
	if err := wsConn.ReadJSON(&first); err != nil {
		wsConn.Close()
		return nil, fmt.Errorf("failed to read ready frame: %w", err)
	}
	if first.Op != ws.OpReady {
		wsConn.Close()
		return nil, fmt.Errorf("expected %s frame, got %q", ws.OpReady, first.Op)
	}
	if err := first.Decode(&c.ready); err != nil {
		wsConn.Close()
		return nil, err
	}

	return c, nil
}

// Ready is the identity the server attached to this connection.
func (c *Conn) Ready() ws.ReadyData {
	return c.ready
}

// Start begins reading frames and sending heartbeats. Error frames from
// the server are logged and also passed to handler.
func (c *Conn) Start(handler func(Event)) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.readLoop(handler)
	go c.heartbeatLoop()
}

func (c *Conn) readLoop(handler func(Event)) {
	defer close(c.done)
	defer c.conn.Close()

	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(readWait)); err != nil {
			c.setErr(err)
			return
		}

		var event Event
		if err := c.conn.ReadJSON(&event); err != nil {
			select {
			case <-c.closing:
			default:
				c.setErr(err)
			}
			return
		}

		switch event.Op {
		case ws.OpHeartbeatAck:
			continue
		case ws.OpError:
			var data ws.ErrorData
			if err := event.Decode(&data); err == nil {
				log.Printf("[client] server rejected %s %s: %s", data.Op, data.Path, data.Message)
			}
		}

		handler(event)
	}
}

func (c *Conn) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.send(ws.Event{Op: ws.OpHeartbeat}); err != nil {
				log.Printf("[client] heartbeat failed: %v", err)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Conn) Subscribe(path, event string) error {
	return c.send(ws.Event{Op: ws.OpSubscribe, Path: path, Data: ws.SubscribeData{Event: event}})
}

func (c *Conn) Unsubscribe(path, event string) error {
	return c.send(ws.Event{Op: ws.OpUnsubscribe, Path: path, Data: ws.SubscribeData{Event: event}})
}

func (c *Conn) TypingStart(channelKey string) error {
	return c.send(ws.Event{Op: ws.OpTypingStart, Data: ws.TypingData{ChannelKey: channelKey}})
}

func (c *Conn) TypingStop(channelKey string) error {
	return c.send(ws.Event{Op: ws.OpTypingStop, Data: ws.TypingData{ChannelKey: channelKey}})
}

var errClosed = errors.New("connection closed")

func (c *Conn) send(event ws.Event) error {
	select {
	case <-c.done:
		return errClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(event)
}

// Close sends a close frame and waits for the read loop to stop. The
// server treats it as a disconnect and clears presence and typing.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closing)

		if c.started.CompareAndSwap(false, true) {
			c.conn.Close()
			close(c.done)
			return
		}

		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		c.writeMu.Unlock()

		select {
		case <-c.done:
		case <-time.After(writeWait):
			c.conn.Close()
		}
	})
	return c.Err()
}

// Done is closed once the read loop has stopped.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err is the error that stopped the read loop, or nil after Close.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Conn) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	c.err = err
}
