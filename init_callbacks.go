package main

import (
	"context"
	"log"
	"time"

	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/ws"
)

const callbackTimeout = 5 * time.Second

// registerHubCallbacks connects socket events to the services. The hub
// runs connect and disconnect callbacks one at a time, in order.
func registerHubCallbacks(hub *ws.Hub, svcs *Services) {
	// ─── Presence ───
	hub.OnClientConnect(func(userID, username string) {
		ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
		defer cancel()
		if err := svcs.Presence.Connect(ctx, userID, username); err != nil {
			log.Printf("[presence] connect failed for %s: %v", userID, err)
		}
	})

	hub.OnClientDisconnect(func(userID string) {
		ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
		defer cancel()
		if err := svcs.Presence.Disconnect(ctx, userID); err != nil {
			log.Printf("[presence] disconnect failed for %s: %v", userID, err)
		}
	})

	// ─── Subscriptions ───
	hub.OnSubscribe(func(userID string, sub ws.Subscription) ([]ws.Event, error) {
		ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
		defer cancel()
		return svcs.Snapshot.Snapshot(ctx, userID, sub)
	})

	// ─── Typing ───
	hub.OnTyping(func(userID, username, channelKey string, typing bool) error {
		ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
		defer cancel()
		if typing {
			return svcs.Typing.Start(ctx, models.TypingUser{UserID: userID, Username: username}, channelKey)
		}
		return svcs.Typing.Stop(ctx, userID, channelKey)
	})
}
