/*
Package main is the entry point for the chat server.

It loads configuration, initializes logging and the database pool, wires the
presence registry, content safety pipeline, message store, login throttle and
connection hub together, and runs the HTTP server with graceful shutdown on
SIGINT/SIGTERM.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/chat"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/db"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/friend"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/group"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/message"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/presence"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/safety"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/storage"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/throttle"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/user"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/configs"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/handler"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/logx"
)

// presenceReapInterval is how often expired presence entries are deleted.
const presenceReapInterval = 30 * time.Second

func main() {
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Dur("presence_ttl", cfg.PresenceTTL).
		Int("login_fail_threshold", cfg.LoginFailThreshold).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to initialize database")
	}
	defer pool.Close()

	storageService, err := storage.NewService(storage.ServiceConfig{
		S3BucketName:      cfg.S3BucketName,
		S3Endpoint:        cfg.S3Endpoint,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		logx.Fatal(err, "Failed to initialize storage service")
	}

	users := user.NewStore(pool)
	messages := message.NewPGStore(pool)

	registry := presence.NewRegistry(presence.NewPGStore(pool), cfg.PresenceTTL)
	go registry.RunReaper(ctx, presenceReapInterval)

	pipeline := safety.NewPipeline(
		safety.NewFilter(cfg.SensitiveWords),
		friend.NewPGChecker(pool),
		safety.NewPGAuditSink(pool),
	)

	loginThrottle := throttle.New(
		throttle.NewPGCounterStore(pool),
		users,
		cfg.LoginFailThreshold,
		cfg.LoginFailWindow,
	)

	hub := chat.NewHub()

	router := handler.Router(&handler.AppDeps{
		Config:   cfg,
		Hub:      hub,
		Presence: registry,
		Pipeline: pipeline,
		Messages: messages,
		Users:    users,
		Groups:   group.NewPGMembership(pool),
		Throttle: loginThrottle,
		Storage:  storageService,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Chat Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	hub.Shutdown()

	logx.Info("Server gracefully stopped.")
}
