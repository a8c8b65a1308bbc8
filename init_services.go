package main

import (
	"log"
	"time"

	"github.com/devchat/devchat/config"
	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg/cache"
	"github.com/devchat/devchat/pkg/email"
	"github.com/devchat/devchat/pkg/ephemeral"
	"github.com/devchat/devchat/pkg/ratelimit"
	"github.com/devchat/devchat/services"
	"github.com/devchat/devchat/ws"
)

// Services holds every service instance plus the caches they share with
// the middleware.
type Services struct {
	Auth     services.AuthService
	User     services.UserService
	Channel  services.ChannelService
	Message  services.MessageService
	DM       services.DMService
	Upload   services.UploadService
	Starred  services.StarredService
	Color    services.ColorService
	Typing   services.TypingService
	Presence services.PresenceService
	Snapshot services.SnapshotService

	UserCache *cache.TTLCache[string, models.User]
}

type RateLimiters struct {
	Login   *ratelimit.Limiter
	Message *ratelimit.Limiter
}

// Close stops the background cleanup goroutines.
func (s *Services) Close() {
	s.UserCache.Close()
}

func (l *RateLimiters) Close() {
	l.Login.Close()
	l.Message.Close()
}

// initServices builds the services. Order matters where one service uses
// another: typing before message and presence, user before dm and
// snapshot.
func initServices(repos *Repositories, store ephemeral.Store, publisher ws.EventPublisher, cfg *config.Config) (*Services, *RateLimiters) {
	// ─── Email (optional) ───
	var mailer email.EmailSender
	if cfg.Email.Enabled() {
		mailer = email.NewResendSender(cfg.Email.ResendAPIKey, cfg.Email.FromEmail, cfg.Email.AppURL)
		log.Printf("[main] email enabled (from=%s)", cfg.Email.FromEmail)
	} else {
		log.Println("[main] email disabled (RESEND_API_KEY, RESEND_FROM or APP_URL not set)")
	}

	userCache := cache.New[string, models.User](30*time.Second, time.Minute)

	authService := services.NewAuthService(
		repos.User,
		repos.Session,
		repos.ResetToken,
		repos.AuthTx,
		mailer,
		publisher,
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)

	userService := services.NewUserService(repos.User, store, userCache, publisher)
	typingService := services.NewTypingService(repos.Channel, repos.User, store, publisher)
	presenceService := services.NewPresenceService(store, repos.User, typingService, publisher)

	svcs := &Services{
		Auth:     authService,
		User:     userService,
		Channel:  services.NewChannelService(repos.Channel, publisher),
		Message:  services.NewMessageService(repos.Message, repos.Channel, repos.User, typingService, publisher),
		DM:       services.NewDMService(repos.User, userService),
		Upload:   services.NewUploadService(repos.Channel, repos.User, cfg.Upload.Dir, cfg.Server.PublicURL, cfg.Upload.MaxSize),
		Starred:  services.NewStarredService(repos.Starred, repos.Channel, publisher),
		Color:    services.NewColorService(repos.Color, publisher),
		Typing:   typingService,
		Presence: presenceService,
		Snapshot: services.NewSnapshotService(
			repos.Channel, repos.User, repos.Message, repos.Starred, repos.Color,
			userService, presenceService, typingService,
		),
		UserCache: userCache,
	}

	// ─── Rate Limiters ───
	limiters := &RateLimiters{
		Login:   ratelimit.NewLoginLimiter(5, 2*time.Minute),
		Message: ratelimit.NewMessageLimiter(5, 5*time.Second, 15*time.Second),
	}

	return svcs, limiters
}
