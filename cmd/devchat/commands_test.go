package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devchat/devchat/client"
	"github.com/devchat/devchat/models"
)

type nopSocket struct{}

func (nopSocket) Subscribe(string, string) error   { return nil }
func (nopSocket) Unsubscribe(string, string) error { return nil }
func (nopSocket) TypingStart(string) error         { return nil }
func (nopSocket) TypingStop(string) error          { return nil }

func event(t *testing.T, op, path, key string, v any) client.Event {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return client.Event{Op: op, Path: path, Key: key, Data: data}
}

// typingSocket records typing frames.
type typingSocket struct {
	nopSocket
	mu     sync.Mutex
	frames []string
}

func (s *typingSocket) TypingStart(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, "start "+key)
	return nil
}

func (s *typingSocket) TypingStop(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, "stop "+key)
	return nil
}

func (s *typingSocket) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.frames...)
}

func newTestSession(t *testing.T) (*session, *bytes.Buffer) {
	return newTestSessionWith(t, client.NewAPI("http://devchat.invalid", nil), nopSocket{})
}

func newTestSessionWith(t *testing.T, api *client.API, sock client.Socket) (*session, *bytes.Buffer) {
	me := models.User{ID: "u1", Username: "ada"}
	ws := client.NewWorkspace(api, sock, me, client.Hooks{})
	require.NoError(t, ws.Start())

	ws.Dispatch(event(t, models.EventChildAdded, models.PathChannels, "c1", models.Channel{ID: "c1", Name: "general", Detail: "everything"}))
	ws.Dispatch(event(t, models.EventChildAdded, models.PathChannels, "c2", models.Channel{ID: "c2", Name: "random", Detail: "the rest"}))
	ws.Dispatch(event(t, models.EventValue, models.MessagesPath("c2"), "", map[string]int{"count": 1}))
	ws.Dispatch(event(t, models.EventValue, models.MessagesPath("c2"), "", map[string]int{"count": 3}))
	ws.Dispatch(event(t, models.EventChildAdded, models.PathUsers, "u2", models.User{ID: "u2", Username: "bob"}))

	var buf bytes.Buffer
	return &session{ws: ws, out: &printer{out: &buf}}, &buf
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line, cmd, arg string
	}{
		{"hello there", "", "hello there"},
		{"  /JOIN  general ", "/join", "general"},
		{"/new ops  on-call rota", "/new", "ops  on-call rota"},
		{"/quit", "/quit", ""},
	}
	for _, tt := range tests {
		cmd, arg := parseCommand(tt.line)
		assert.Equal(t, tt.cmd, cmd, tt.line)
		assert.Equal(t, tt.arg, arg, tt.line)
	}
}

func TestSessionChannelsAndJoin(t *testing.T) {
	sess, out := newTestSession(t)
	ctx := context.Background()

	quit, err := sess.run(ctx, "/channels")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Contains(t, out.String(), "> #general")
	assert.Contains(t, out.String(), "#random (2)")

	out.Reset()
	_, err = sess.run(ctx, "/join #Random")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "── #random ──")
	assert.Equal(t, 0, sess.ws.Unread("c2"))

	_, err = sess.run(ctx, "/join nowhere")
	assert.Error(t, err)
}

func TestSessionUsersAndDM(t *testing.T) {
	sess, out := newTestSession(t)
	ctx := context.Background()

	_, err := sess.run(ctx, "/users")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "@bob  offline")

	_, err = sess.run(ctx, "/dm bob")
	require.NoError(t, err)
	assert.Equal(t, models.DMKey("u1", "u2"), sess.ws.View().Key)

	_, err = sess.run(ctx, "/star")
	assert.Error(t, err)
}

func TestSessionQuitAndUnknown(t *testing.T) {
	sess, _ := newTestSession(t)

	quit, err := sess.run(context.Background(), "/quit")
	require.NoError(t, err)
	assert.True(t, quit)

	_, err = sess.run(context.Background(), "/frobnicate")
	assert.ErrorContains(t, err, "unknown command")

	quit, err = sess.run(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, quit)
}

func writeEnvelope(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func TestSessionDraftSignalsTyping(t *testing.T) {
	var posted []string
	var mu sync.Mutex
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/channels/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateMessageRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		posted = append(posted, r.PathValue("id")+": "+req.Content)
		mu.Unlock()
		writeEnvelope(w, http.StatusCreated, models.Message{ID: "m1", Content: &req.Content})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	sock := &typingSocket{}
	sess, out := newTestSessionWith(t, client.NewAPI(srv.URL, srv.Client()), sock)
	ctx := context.Background()
	assert.Equal(t, "#general> ", sess.prompt())

	_, err := sess.run(ctx, `scrap this \`)
	require.NoError(t, err)
	assert.Equal(t, []string{"start c1"}, sock.sent())
	assert.Equal(t, "... ", sess.prompt())

	_, err = sess.run(ctx, "/cancel")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "draft discarded")
	assert.Equal(t, []string{"start c1", "stop c1"}, sock.sent())
	assert.Equal(t, "#general> ", sess.prompt())

	_, err = sess.run(ctx, `first line \`)
	require.NoError(t, err)
	_, err = sess.run(ctx, "/join random")
	require.NoError(t, err, "commands inside a draft are text")
	_, err = sess.run(ctx, "the end")
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, []string{"c1: first line\n/join random\nthe end"}, posted)
	mu.Unlock()
	assert.Equal(t, "c1", sess.ws.View().Key)
}

func TestSessionAvatarAndColor(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/users/me/avatar", func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		writeEnvelope(w, http.StatusOK, models.User{ID: "u1", Username: "ada", AvatarURL: "http://chat.test/" + header.Filename})
	})
	mux.HandleFunc("POST /api/colors", func(w http.ResponseWriter, r *http.Request) {
		var req models.SaveColorRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeEnvelope(w, http.StatusCreated, models.ColorTheme{ID: "t1", Primary: req.Primary, Secondary: req.Secondary})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	sess, out := newTestSessionWith(t, client.NewAPI(srv.URL, srv.Client()), nopSocket{})
	ctx := context.Background()

	avatar := filepath.Join(t.TempDir(), "me.png")
	require.NoError(t, os.WriteFile(avatar, []byte("png"), 0o600))
	_, err := sess.run(ctx, "/avatar "+avatar)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "avatar updated")
	assert.Equal(t, "http://chat.test/me.png", sess.ws.Me().AvatarURL)

	_, err = sess.run(ctx, "/color #AABBCC #001122")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "saved colors #aabbcc #001122")

	_, err = sess.run(ctx, "/color #AABBCC")
	assert.ErrorContains(t, err, "usage")
	_, err = sess.run(ctx, "/color blue green")
	assert.Error(t, err)
	_, err = sess.run(ctx, "/avatar "+filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestFormatMessage(t *testing.T) {
	content := "hi"
	image := "http://chat.test/api/files/chat/public/x.png"
	ts := time.Date(2026, 1, 2, 9, 30, 0, 0, time.Local)

	assert.Equal(t, "[09:30] bob: hi", formatMessage(models.Message{User: models.Author{Name: "bob"}, Content: &content, Timestamp: ts}))
	assert.Equal(t, "[09:30] bob: <image> "+image, formatMessage(models.Message{User: models.Author{Name: "bob"}, Image: &image, Timestamp: ts}))
}
