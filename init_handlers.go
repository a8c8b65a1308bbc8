package main

import (
	"github.com/devchat/devchat/config"
	"github.com/devchat/devchat/handlers"
	"github.com/devchat/devchat/ws"
)

// Handlers holds every HTTP handler.
type Handlers struct {
	Auth    *handlers.AuthHandler
	User    *handlers.UserHandler
	Channel *handlers.ChannelHandler
	Message *handlers.MessageHandler
	DM      *handlers.DMHandler
	Starred *handlers.StarredHandler
	Color   *handlers.ColorHandler
	Typing  *handlers.TypingHandler
	Health  *handlers.HealthHandler
	WS      *ws.Handler
}

func initHandlers(svcs *Services, limiters *RateLimiters, hub *ws.Hub, cfg *config.Config) *Handlers {
	return &Handlers{
		Auth:    handlers.NewAuthHandler(svcs.Auth, limiters.Login),
		User:    handlers.NewUserHandler(svcs.User, svcs.Upload, cfg.Upload.MaxSize),
		Channel: handlers.NewChannelHandler(svcs.Channel),
		Message: handlers.NewMessageHandler(svcs.Message, svcs.Upload, svcs.DM, limiters.Message, cfg.Upload.MaxSize),
		DM:      handlers.NewDMHandler(svcs.DM),
		Starred: handlers.NewStarredHandler(svcs.Starred),
		Color:   handlers.NewColorHandler(svcs.Color),
		Typing:  handlers.NewTypingHandler(svcs.Typing),
		Health:  handlers.NewHealthHandler(hub),
		WS:      ws.NewHandler(hub, svcs.Auth),
	}
}
