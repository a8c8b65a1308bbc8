// Command devchat-server is the DevChat backend: a REST API plus a
// realtime socket that streams path events to subscribed clients.
//
// main wires the layers together:
//
//  1. Config
//  2. Database
//  3. Upload directory
//  4. Repositories
//  5. Ephemeral store (memory or Redis)
//  6. WebSocket hub and optional Kafka fanout
//  7. Services
//  8. Hub callbacks
//  9. Handlers and routes
//  10. CORS
//  11. HTTP server
//  12. Graceful shutdown
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/devchat/devchat/config"
	"github.com/devchat/devchat/database"
	"github.com/devchat/devchat/pkg/ephemeral"
	"github.com/devchat/devchat/ws"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] devchat server starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ─── 1. Config ───
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}
	log.Printf("[main] config loaded (port=%d)", cfg.Server.Port)

	// ─── 2. Database ───
	db, err := database.New(cfg.Database.Path, database.Migrations())
	if err != nil {
		log.Fatalf("[main] failed to initialize database: %v", err)
	}
	defer db.Close()

	// ─── 3. Upload Directory ───
	if err := os.MkdirAll(cfg.Upload.Dir, 0755); err != nil {
		log.Fatalf("[main] failed to create upload directory: %v", err)
	}

	// ─── 4. Repositories ───
	repos := initRepositories(db.Conn)

	// ─── 5. Ephemeral Store ───
	store, err := initEphemeralStore(ctx, cfg)
	if err != nil {
		log.Fatalf("[main] failed to initialize ephemeral store: %v", err)
	}
	defer store.Close()

	// Statuses left over from an unclean shutdown would show users online
	// forever. With a shared Redis store other instances may still hold
	// connections, so only a local store resets them.
	if cfg.Redis.Addr == "" {
		if err := repos.User.ResetAllStatuses(ctx); err != nil {
			log.Fatalf("[main] failed to reset user statuses: %v", err)
		}
	}

	// ─── 6. WebSocket Hub + Fanout ───
	hub := ws.NewHub()
	go hub.Run()

	var publisher ws.EventPublisher = hub
	if len(cfg.Kafka.Brokers) > 0 {
		fanout := ws.NewKafkaFanout(hub, cfg.Kafka.Brokers, cfg.Kafka.Topic, uuid.NewString())
		defer fanout.Close()
		go fanout.Run(ctx)
		publisher = fanout
		log.Printf("[main] kafka fanout enabled (topic=%s)", cfg.Kafka.Topic)
	}

	// ─── 7. Services ───
	svcs, limiters := initServices(repos, store, publisher, cfg)
	defer svcs.Close()
	defer limiters.Close()

	// ─── 8. Hub Callbacks ───
	registerHubCallbacks(hub, svcs)

	// ─── 9. Handlers + Routes ───
	h := initHandlers(svcs, limiters, hub, cfg)
	mux := http.NewServeMux()
	initRoutes(mux, h, svcs.Auth, repos.User, svcs.UserCache, cfg.Upload.Dir)

	// ─── 10. CORS ───
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	// ─── 11. HTTP Server ───
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      corsHandler.Handler(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("[main] server listening on %s", cfg.Server.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	// ─── 12. Graceful Shutdown ───
	<-ctx.Done()
	log.Println("[main] shutting down...")

	// Sockets first so clients see the close, then in-flight requests get
	// five seconds to finish.
	hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] forced shutdown: %v", err)
	}

	log.Println("[main] server stopped gracefully")
}

func initEphemeralStore(ctx context.Context, cfg *config.Config) (ephemeral.Store, error) {
	if cfg.Redis.Addr == "" {
		log.Println("[main] ephemeral store: memory")
		return ephemeral.NewMemoryStore(), nil
	}
	store, err := ephemeral.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	log.Printf("[main] ephemeral store: redis (%s)", cfg.Redis.Addr)
	return store, nil
}
