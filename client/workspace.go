package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/ws"
)

// Listener owners. Everything the workspace registers belongs to one of
// these, so a whole group can be torn down with OffAll.
const (
	ownerWorkspace = "workspace"
	ownerUnread    = "unread"
	ownerView      = "view"
)

// typingInterval is the minimum gap between typing_start frames.
const typingInterval = 3 * time.Second

// Socket is the realtime surface the workspace drives. *Conn implements it.
type Socket interface {
	Subscriber
	TypingStart(channelKey string) error
	TypingStop(channelKey string) error
}

// Hooks are called after the workspace state changes. They run on the
// connection's read goroutine, or on the caller's goroutine for local
// actions, and must not block.
type Hooks struct {
	// Message is called for each message that enters the active view.
	Message func(models.Message)
	// Changed is called after lists, counts or the typing set change.
	Changed func()
}

// View is the channel the message view shows.
type View struct {
	// Key is the channel id for public channels and the DM key otherwise.
	Key     string
	Name    string
	Private bool
	Target  Target
	Channel *models.Channel
	Peer    *models.User
}

func (v View) messagesPath() string {
	if v.Private {
		return models.PrivateMessagesPath(v.Key)
	}
	return models.MessagesPath(v.Key)
}

// ChannelItem is a row of the side panel.
type ChannelItem struct {
	Channel models.Channel
	Unread  int
	Active  bool
	Starred bool
}

// Workspace is the client-side state of a signed-in user: the channel
// list with unread counts, users and presence, starred channels and the
// active message view.
type Workspace struct {
	api    *API
	sock   Socket
	reg    *Registry
	unread *Reconciler
	me     models.User
	hooks  Hooks

	typingLimiter *rate.Limiter

	mu         sync.Mutex
	channels   []models.Channel
	channelIdx map[string]int
	users      map[string]models.User
	presence   map[string]models.Presence
	starred    map[string]models.StarredChannel
	view       View
	messages   []models.Message
	messageIDs map[string]struct{}
	typing     map[string]models.TypingUser
	typingSent bool
}

func NewWorkspace(api *API, sock Socket, me models.User, hooks Hooks) *Workspace {
	return &Workspace{
		api:           api,
		sock:          sock,
		reg:           NewRegistry(sock),
		unread:        NewReconciler(),
		me:            me,
		hooks:         hooks,
		typingLimiter: rate.NewLimiter(rate.Every(typingInterval), 1),
		channelIdx:    make(map[string]int),
		users:         make(map[string]models.User),
		presence:      make(map[string]models.Presence),
		starred:       make(map[string]models.StarredChannel),
		messageIDs:    make(map[string]struct{}),
		typing:        make(map[string]models.TypingUser),
	}
}

// Dispatch routes a frame from the connection to the listeners. Pass it
// to Conn.Start.
func (w *Workspace) Dispatch(event Event) {
	if event.IsPathEvent() {
		w.reg.Dispatch(event)
	}
}

// Start registers the workspace-wide listeners. The server replays the
// current children of each path, so the lists fill in as the replay
// arrives; the first channel seen becomes active.
func (w *Workspace) Start() error {
	listeners := []struct {
		path  string
		event string
		fn    Listener
	}{
		{models.PathChannels, models.EventChildAdded, w.onChannelAdded},
		{models.PathUsers, models.EventChildAdded, w.onUser},
		{models.PathUsers, models.EventChildChanged, w.onUser},
		{models.PathPresence, models.EventChildAdded, w.onPresenceAdded},
		{models.PathPresence, models.EventChildRemoved, w.onPresenceRemoved},
		{models.StarredPath(w.me.ID), models.EventChildAdded, w.onStarredAdded},
		{models.StarredPath(w.me.ID), models.EventChildRemoved, w.onStarredRemoved},
	}
	for _, l := range listeners {
		if err := w.reg.On(ownerWorkspace, l.path, l.event, l.fn); err != nil {
			return fmt.Errorf("failed to listen on %s: %w", l.path, err)
		}
	}
	return nil
}

// Close tears down every listener and clears our typing entry.
func (w *Workspace) Close() error {
	w.StopTyping()

	w.mu.Lock()
	ids := make([]string, len(w.channels))
	for i, c := range w.channels {
		ids[i] = c.ID
	}
	w.mu.Unlock()

	errs := []error{w.reg.OffAll(ownerView)}
	for _, id := range ids {
		errs = append(errs, w.reg.Off(ownerUnread, models.MessagesPath(id), models.EventValue))
		w.unread.Forget(id)
	}
	errs = append(errs, w.reg.OffAll(ownerWorkspace))
	return errors.Join(errs...)
}

func (w *Workspace) Me() models.User {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.me
}

// UploadAvatar replaces our avatar. Other clients learn about it through
// the users child_changed event.
func (w *Workspace) UploadAvatar(ctx context.Context, filename string, r io.Reader) (*models.User, error) {
	user, err := w.api.UploadAvatar(ctx, filename, r)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.me.AvatarURL = user.AvatarURL
	w.mu.Unlock()
	return user, nil
}

// SaveColor checks the pair locally before sending it, so a malformed
// color never costs a round trip.
func (w *Workspace) SaveColor(ctx context.Context, primary, secondary string) (*models.ColorTheme, error) {
	req := models.SaveColorRequest{Primary: primary, Secondary: secondary}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return w.api.SaveColor(ctx, req.Primary, req.Secondary)
}

// ─── Channel list ───

func (w *Workspace) onChannelAdded(event Event) {
	var channel models.Channel
	if err := event.Decode(&channel); err != nil {
		log.Printf("[client] %v", err)
		return
	}

	w.mu.Lock()
	if _, ok := w.channelIdx[channel.ID]; ok {
		w.mu.Unlock()
		return
	}
	w.channelIdx[channel.ID] = len(w.channels)
	w.channels = append(w.channels, channel)
	first := w.view.Key == ""
	w.mu.Unlock()

	err := w.reg.On(ownerUnread, models.MessagesPath(channel.ID), models.EventValue, func(e Event) {
		var data ws.ValueData
		if err := e.Decode(&data); err != nil {
			log.Printf("[client] %v", err)
			return
		}
		w.unread.OnSnapshot(channel.ID, data.Count)
		w.changed()
	})
	if err != nil {
		log.Printf("[client] failed to listen for counts on %s: %v", channel.ID, err)
	}

	if first {
		if err := w.SelectChannel(channel.ID); err != nil {
			log.Printf("[client] failed to open %s: %v", channel.DisplayName(), err)
		}
		return
	}
	w.changed()
}

// Channels returns the side panel rows in creation order.
func (w *Workspace) Channels() []ChannelItem {
	w.mu.Lock()
	defer w.mu.Unlock()

	items := make([]ChannelItem, len(w.channels))
	for i, channel := range w.channels {
		_, starred := w.starred[channel.ID]
		items[i] = ChannelItem{
			Channel: channel,
			Unread:  w.unread.Count(channel.ID),
			Active:  !w.view.Private && w.view.Key == channel.ID,
			Starred: starred,
		}
	}
	return items
}

// FindChannel looks a channel up by id or by name, ignoring case and a
// leading '#'.
func (w *Workspace) FindChannel(ref string) (models.Channel, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if i, ok := w.channelIdx[ref]; ok {
		return w.channels[i], true
	}
	name := strings.TrimPrefix(ref, "#")
	for _, channel := range w.channels {
		if strings.EqualFold(channel.Name, name) {
			return channel, true
		}
	}
	return models.Channel{}, false
}

func (w *Workspace) CreateChannel(ctx context.Context, name, detail string) (*models.Channel, error) {
	return w.api.CreateChannel(ctx, name, detail)
}

// Unread is the unread count of a public channel.
func (w *Workspace) Unread(channelID string) int {
	return w.unread.Count(channelID)
}

// UnreadEntry exposes the reconciler state of a channel; ok is false until
// its first count arrives.
func (w *Workspace) UnreadEntry(channelID string) (UnreadEntry, bool) {
	return w.unread.Entry(channelID)
}

// ─── Users and presence ───

func (w *Workspace) onUser(event Event) {
	var user models.User
	if err := event.Decode(&user); err != nil {
		log.Printf("[client] %v", err)
		return
	}
	w.mu.Lock()
	w.users[user.ID] = user
	w.mu.Unlock()
	w.changed()
}

func (w *Workspace) onPresenceAdded(event Event) {
	var p models.Presence
	if err := event.Decode(&p); err != nil {
		log.Printf("[client] %v", err)
		return
	}
	w.mu.Lock()
	w.presence[event.Key] = p
	w.mu.Unlock()
	w.changed()
}

func (w *Workspace) onPresenceRemoved(event Event) {
	w.mu.Lock()
	delete(w.presence, event.Key)
	w.mu.Unlock()
	w.changed()
}

func (w *Workspace) Online(userID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.presence[userID]
	return ok
}

// Peers lists every other user for the direct message panel, sorted by
// username, with their live status.
func (w *Workspace) Peers() []models.DMPeer {
	w.mu.Lock()
	defer w.mu.Unlock()

	peers := make([]models.DMPeer, 0, len(w.users))
	for id, user := range w.users {
		if id == w.me.ID {
			continue
		}
		user.Status = models.UserStatusOffline
		if _, ok := w.presence[id]; ok {
			user.Status = models.UserStatusOnline
		}
		peers = append(peers, models.DMPeer{User: user, ChannelKey: models.DMKey(w.me.ID, id)})
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].Username < peers[j].Username })
	return peers
}

// FindUser looks a user up by id or username, ignoring case and a
// leading '@'.
func (w *Workspace) FindUser(ref string) (models.User, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if user, ok := w.users[ref]; ok {
		return user, true
	}
	name := strings.TrimPrefix(ref, "@")
	for _, user := range w.users {
		if strings.EqualFold(user.Username, name) {
			return user, true
		}
	}
	return models.User{}, false
}

// ─── Starred ───

func (w *Workspace) onStarredAdded(event Event) {
	var s models.StarredChannel
	if err := event.Decode(&s); err != nil {
		log.Printf("[client] %v", err)
		return
	}
	w.mu.Lock()
	w.starred[s.ChannelID] = s
	w.mu.Unlock()
	w.changed()
}

func (w *Workspace) onStarredRemoved(event Event) {
	w.mu.Lock()
	delete(w.starred, event.Key)
	w.mu.Unlock()
	w.changed()
}

// Starred lists the starred channels, most recently starred first.
func (w *Workspace) Starred() []models.StarredChannel {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]models.StarredChannel, 0, len(w.starred))
	for _, s := range w.starred {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StarredAt.After(out[j].StarredAt) })
	return out
}

func (w *Workspace) IsStarred(channelID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.starred[channelID]
	return ok
}

// ToggleStar stars or unstars the active public channel and reports the
// new state. The starred list itself updates from the server event.
func (w *Workspace) ToggleStar(ctx context.Context) (bool, error) {
	view := w.View()
	if view.Key == "" || view.Private {
		return false, errors.New("only public channels can be starred")
	}
	if w.IsStarred(view.Key) {
		return false, w.api.Unstar(ctx, view.Key)
	}
	return true, w.api.Star(ctx, view.Key)
}

// ─── Active view ───

// SelectChannel opens a public channel in the message view.
func (w *Workspace) SelectChannel(channelID string) error {
	w.mu.Lock()
	i, ok := w.channelIdx[channelID]
	var channel models.Channel
	if ok {
		channel = w.channels[i]
	}
	w.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown channel %q", channelID)
	}

	return w.activate(View{
		Key:     channel.ID,
		Name:    channel.DisplayName(),
		Target:  ChannelTarget(channel.ID),
		Channel: &channel,
	})
}

// SelectDM opens the direct message conversation with peer.
func (w *Workspace) SelectDM(peer models.User) error {
	if peer.ID == w.me.ID {
		return errors.New("cannot message yourself")
	}
	dm := models.DMPeer{User: peer}
	return w.activate(View{
		Key:     models.DMKey(w.me.ID, peer.ID),
		Name:    dm.DisplayName(),
		Private: true,
		Target:  DMTarget(peer.ID),
		Peer:    &peer,
	})
}

// activate switches the message view. The previous channel is reconciled
// and its listeners torn down before the new channel's are registered.
func (w *Workspace) activate(next View) error {
	w.mu.Lock()
	prev := w.view
	if prev.Key == next.Key {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	if prev.Key != "" {
		w.StopTyping()
		if err := w.reg.OffAll(ownerView); err != nil {
			log.Printf("[client] failed to leave %s: %v", prev.Name, err)
		}
	}

	w.unread.OnChannelActivated(next.Key)

	w.mu.Lock()
	w.view = next
	w.messages = nil
	w.messageIDs = make(map[string]struct{})
	w.typing = make(map[string]models.TypingUser)
	w.mu.Unlock()

	typingPath := models.TypingPath(next.Key)
	if err := errors.Join(
		w.reg.On(ownerView, next.messagesPath(), models.EventChildAdded, w.onMessage),
		w.reg.On(ownerView, typingPath, models.EventChildAdded, w.onTypingAdded),
		w.reg.On(ownerView, typingPath, models.EventChildRemoved, w.onTypingRemoved),
	); err != nil {
		return fmt.Errorf("failed to open %s: %w", next.Name, err)
	}

	w.changed()
	return nil
}

func (w *Workspace) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.view
}

func (w *Workspace) onMessage(event Event) {
	var msg models.Message
	if err := event.Decode(&msg); err != nil {
		log.Printf("[client] %v", err)
		return
	}

	w.mu.Lock()
	if event.Path != w.view.messagesPath() {
		w.mu.Unlock()
		return
	}
	if _, dup := w.messageIDs[msg.ID]; dup {
		w.mu.Unlock()
		return
	}
	w.messageIDs[msg.ID] = struct{}{}
	w.messages = append(w.messages, msg)
	w.mu.Unlock()

	if w.hooks.Message != nil {
		w.hooks.Message(msg)
	}
	w.changed()
}

// Messages returns the active view's messages in arrival order.
func (w *Workspace) Messages() []models.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]models.Message(nil), w.messages...)
}

// Stats are computed from the messages loaded in the view.
func (w *Workspace) Stats() models.ChannelStats {
	return models.ComputeChannelStats(w.Messages())
}

// Search filters the loaded messages by content or author name. The term
// is a case-insensitive regular expression; if it does not compile it is
// matched literally.
func (w *Workspace) Search(term string) []models.Message {
	if strings.TrimSpace(term) == "" {
		return nil
	}
	re, err := regexp.Compile("(?i)" + term)
	if err != nil {
		re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(term))
	}

	var out []models.Message
	for _, msg := range w.Messages() {
		if (msg.Content != nil && re.MatchString(*msg.Content)) || re.MatchString(msg.User.Name) {
			out = append(out, msg)
		}
	}
	return out
}

func (w *Workspace) SendMessage(ctx context.Context, content string) (*models.Message, error) {
	view := w.View()
	if view.Key == "" {
		return nil, errors.New("no channel selected")
	}
	msg, err := w.api.SendMessage(ctx, view.Target, content)
	if err != nil {
		return nil, err
	}
	// The server clears our typing entry when a message is posted.
	w.mu.Lock()
	w.typingSent = false
	w.mu.Unlock()
	return msg, nil
}

func (w *Workspace) SendImage(ctx context.Context, filename string, r io.Reader) (*models.Message, error) {
	view := w.View()
	if view.Key == "" {
		return nil, errors.New("no channel selected")
	}
	return w.api.SendImage(ctx, view.Target, filename, r)
}

// ─── Typing ───

func (w *Workspace) onTypingAdded(event Event) {
	var user models.TypingUser
	if err := event.Decode(&user); err != nil {
		log.Printf("[client] %v", err)
		return
	}
	if user.UserID == w.me.ID {
		return
	}
	w.mu.Lock()
	if event.Path != models.TypingPath(w.view.Key) {
		w.mu.Unlock()
		return
	}
	w.typing[user.UserID] = user
	w.mu.Unlock()
	w.changed()
}

func (w *Workspace) onTypingRemoved(event Event) {
	w.mu.Lock()
	if event.Path != models.TypingPath(w.view.Key) {
		w.mu.Unlock()
		return
	}
	_, ok := w.typing[event.Key]
	delete(w.typing, event.Key)
	w.mu.Unlock()
	if ok {
		w.changed()
	}
}

// Typing lists the other users typing in the active view.
func (w *Workspace) Typing() []models.TypingUser {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]models.TypingUser, 0, len(w.typing))
	for _, u := range w.typing {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// NotifyTyping tells the server we are typing in the active view. Calls
// are throttled; dropped calls are not an error.
func (w *Workspace) NotifyTyping() error {
	view := w.View()
	if view.Key == "" || !w.typingLimiter.Allow() {
		return nil
	}
	if err := w.sock.TypingStart(view.Key); err != nil {
		return err
	}
	w.mu.Lock()
	w.typingSent = true
	w.mu.Unlock()
	return nil
}

// StopTyping removes our typing entry from the active view, if one was
// sent.
func (w *Workspace) StopTyping() {
	w.mu.Lock()
	key, sent := w.view.Key, w.typingSent
	w.typingSent = false
	w.mu.Unlock()

	if !sent || key == "" {
		return
	}
	if err := w.sock.TypingStop(key); err != nil {
		log.Printf("[client] failed to clear typing in %s: %v", key, err)
	}
}

func (w *Workspace) changed() {
	if w.hooks.Changed != nil {
		w.hooks.Changed()
	}
}
