package services

import (
	"context"
	"path/filepath"
	"sync"
	"time"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/devchat/devchat/database"
	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg/cache"
	"github.com/devchat/devchat/pkg/ephemeral"
	"github.com/devchat/devchat/repository"
	"github.com/devchat/devchat/ws"
)

func init() {
	bcryptCost = bcrypt.MinCost
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ws.Event
}

func (p *recordingPublisher) Publish(event ws.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) on(path string) []ws.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []ws.Event
	for _, e := range p.events {
		if e.Path == path {
			out = append(out, e)
		}
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type recordingMailer struct {
	mu     sync.Mutex
	sent   []string
	tokens []string
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, toEmail, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, toEmail)
	m.tokens = append(m.tokens, token)
	return nil
}

// testEnv wires every service against a fresh database.
type testEnv struct {
	pub    *recordingPublisher
	mailer *recordingMailer
	store  ephemeral.Store

	userRepo    repository.UserRepository
	channelRepo repository.ChannelRepository

	auth     AuthService
	users    UserService
	channels ChannelService
	messages MessageService
	dms      DMService
	starred  StarredService
	colors   ColorService
	typing   TypingService
	presence PresenceService
	snapshot SnapshotService
	uploads  UploadService

	uploadDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), database.Migrations())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := ephemeral.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	userCache := cache.New[string, models.User](time.Minute, time.Minute)
	t.Cleanup(userCache.Close)

	env := &testEnv{
		pub:       &recordingPublisher{},
		mailer:    &recordingMailer{},
		store:     store,
		uploadDir: t.TempDir(),
	}

	env.userRepo = repository.NewSQLiteUserRepo(db.Conn)
	env.channelRepo = repository.NewSQLiteChannelRepo(db.Conn)
	sessionRepo := repository.NewSQLiteSessionRepo(db.Conn)
	resetRepo := repository.NewSQLiteResetTokenRepo(db.Conn)
	messageRepo := repository.NewSQLiteMessageRepo(db.Conn)
	starredRepo := repository.NewSQLiteStarredRepo(db.Conn)
	colorRepo := repository.NewSQLiteColorRepo(db.Conn)

	env.auth = NewAuthService(env.userRepo, sessionRepo, resetRepo, repository.NewSQLiteAuthTxRunner(db.Conn), env.mailer, env.pub, "test-secret", 15, 7)
	env.users = NewUserService(env.userRepo, store, userCache, env.pub)
	env.channels = NewChannelService(env.channelRepo, env.pub)
	env.typing = NewTypingService(env.channelRepo, env.userRepo, store, env.pub)
	env.messages = NewMessageService(messageRepo, env.channelRepo, env.userRepo, env.typing, env.pub)
	env.dms = NewDMService(env.userRepo, env.users)
	env.starred = NewStarredService(starredRepo, env.channelRepo, env.pub)
	env.colors = NewColorService(colorRepo, env.pub)
	env.presence = NewPresenceService(store, env.userRepo, env.typing, env.pub)
	env.snapshot = NewSnapshotService(env.channelRepo, env.userRepo, messageRepo, starredRepo, colorRepo, env.users, env.presence, env.typing)
	env.uploads = NewUploadService(env.channelRepo, env.userRepo, env.uploadDir, "http://chat.test/", 1024*1024)

	return env
}

func (e *testEnv) register(t *testing.T, name string) *models.User {
	t.Helper()
	tokens, err := e.auth.Register(context.Background(), &models.CreateUserRequest{
		Username:             name,
		Email:                name + "@example.com",
		Password:             "secret123",
		PasswordConfirmation: "secret123",
	})
	require.NoError(t, err)
	user := tokens.User
	return &user
}

func (e *testEnv) channel(t *testing.T, creator *models.User, name string) *models.Channel {
	t.Helper()
	ch, err := e.channels.Create(context.Background(), creator, &models.CreateChannelRequest{Name: name, Detail: name + " talk"})
	require.NoError(t, err)
	return ch
}

func ops(events []ws.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Op
	}
	return out
}
