package ws

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
)

// EventPublisher is what services use to emit path events. The Hub
// implements it; KafkaFanout decorates it for multi-instance deployments.
type EventPublisher interface {
	Publish(event Event)
}

// SubscribeFunc returns the events replaying the current state of a
// subscription, or an error to reject it.
type SubscribeFunc func(userID string, sub Subscription) ([]Event, error)

// TypingFunc handles typing_start (typing=true) and typing_stop frames.
type TypingFunc func(userID, username, channelKey string, typing bool) error

type lifecycleEvent struct {
	userID    string
	username  string
	connected bool
}

// Hub tracks every connection of this process and routes path events to
// the clients subscribed to them.
type Hub struct {
	// userID -> connections (one user may have several tabs).
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	// Closed when Run and the lifecycle goroutine have returned.
	running       atomic.Bool
	runDone       chan struct{}
	lifecycleDone chan struct{}

	seq atomic.Int64

	// Connect/disconnect callbacks run on one goroutine, in order, so a
	// quick reconnect can never be seen as disconnect-before-connect.
	lifecycle    chan lifecycleEvent
	onConnect    func(userID, username string)
	onDisconnect func(userID string)

	onSubscribe SubscribeFunc
	onTyping    TypingFunc
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:          make(chan struct{}),
		runDone:       make(chan struct{}),
		lifecycleDone: make(chan struct{}),
		lifecycle:     make(chan lifecycleEvent, 1024),
	}
}

// OnClientConnect is called for every new connection.
func (h *Hub) OnClientConnect(fn func(userID, username string)) { h.onConnect = fn }

// OnClientDisconnect is called for every closed connection.
func (h *Hub) OnClientDisconnect(fn func(userID string)) { h.onDisconnect = fn }

// OnSubscribe sets the replay/authorization hook. It runs synchronously
// while the subscribing client's subscription set is locked, so it must
// not publish.
func (h *Hub) OnSubscribe(fn SubscribeFunc) { h.onSubscribe = fn }

func (h *Hub) OnTyping(fn TypingFunc) { h.onTyping = fn }

// Run is the registration loop. Start it with `go hub.Run()`.
func (h *Hub) Run() {
	if !h.running.CompareAndSwap(false, true) {
		return
	}
	defer close(h.runDone)
	go h.runLifecycle()

	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-h.done:
			return
		}
	}
}

func (h *Hub) runLifecycle() {
	defer close(h.lifecycleDone)
	for {
		select {
		case ev := <-h.lifecycle:
			h.dispatchLifecycle(ev)
		case <-h.done:
			return
		}
	}
}

func (h *Hub) dispatchLifecycle(ev lifecycleEvent) {
	if ev.connected {
		if h.onConnect != nil {
			h.onConnect(ev.userID, ev.username)
		}
	} else if h.onDisconnect != nil {
		h.onDisconnect(ev.userID)
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]bool)
	}
	h.clients[client.userID][client] = true
	count := len(h.clients[client.userID])
	h.mu.Unlock()

	log.Printf("[ws] client connected: user=%s (connections: %d)", client.userID, count)
	h.lifecycle <- lifecycleEvent{userID: client.userID, username: client.username, connected: true}
}

// removeClient drops the client and closes its send channel. Safe to call
// more than once for the same client.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	clients, ok := h.clients[client.userID]
	if !ok || !clients[client] {
		h.mu.Unlock()
		return
	}
	delete(clients, client)
	remaining := len(clients)
	if remaining == 0 {
		delete(h.clients, client.userID)
	}
	client.close()
	h.mu.Unlock()

	if remaining == 0 {
		log.Printf("[ws] user fully disconnected: %s", client.userID)
	} else {
		log.Printf("[ws] client disconnected: user=%s (remaining: %d)", client.userID, remaining)
	}
	h.lifecycle <- lifecycleEvent{userID: client.userID}
}

// Publish delivers a path event to every local client subscribed to
// (event.Path, event.Op).
func (h *Hub) Publish(event Event) {
	event.Seq = h.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal %s event: %v", event.Op, err)
		return
	}

	sub := Subscription{Path: event.Path, Event: event.Op}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.deliver(sub, event, data)
		}
	}
}

// nextSeq stamps frames sent to a single client.
func (h *Hub) nextSeq() int64 {
	return h.seq.Add(1)
}

// drop schedules a slow or broken client for removal without blocking the
// caller, which may hold locks.
func (h *Hub) drop(c *Client) {
	go func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()
}

// ConnectionCount is the number of open sockets.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, clients := range h.clients {
		n += len(clients)
	}
	return n
}

// Shutdown closes every connection and stops the loops. Once the loops
// have returned, queued lifecycle callbacks are flushed in order and the
// disconnect callback runs for every connection that was still open, so
// shared presence counters are released before the process exits.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() {
		close(h.done)
		if h.running.Load() {
			<-h.runDone
			<-h.lifecycleDone
		}

		h.mu.Lock()
		var open []*Client
		for _, clients := range h.clients {
			for client := range clients {
				client.close()
				open = append(open, client)
			}
		}
		h.clients = make(map[string]map[*Client]bool)
		h.mu.Unlock()

	flush:
		for {
			select {
			case ev := <-h.lifecycle:
				h.dispatchLifecycle(ev)
			default:
				break flush
			}
		}
		for _, client := range open {
			h.dispatchLifecycle(lifecycleEvent{userID: client.userID})
		}

		log.Printf("[ws] hub shut down, %d connections closed", len(open))
	})
}
