package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/farm-assistant/backend/internal/clock"
	"github.com/zhouzirui/farm-assistant/backend/internal/config"
	"github.com/zhouzirui/farm-assistant/backend/internal/handler"
	"github.com/zhouzirui/farm-assistant/backend/internal/logging"
	"github.com/zhouzirui/farm-assistant/backend/internal/model/persona"
	"github.com/zhouzirui/farm-assistant/backend/internal/notification"
	"github.com/zhouzirui/farm-assistant/backend/internal/service/chat"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	profiles, err := cfg.Assistant.Profiles()
	if err != nil {
		logger.Fatal("failed to load assistant profiles", zap.String("path", cfg.Assistant.ProfilesPath), zap.Error(err))
	}
	personaStore := persona.NewMemoryStore(profiles)
	if _, ok := personaStore.FindByID(cfg.Assistant.DefaultID); !ok {
		logger.Fatal("default assistant not found", zap.String("assistant", cfg.Assistant.DefaultID))
	}

	sched := clock.NewReal()
	defer sched.Stop()

	factory := chat.NewPanelFactory(chat.Options{
		Panel:     cfg.Panel.Controller(),
		Greeting:  cfg.Panel.Greeting,
		Scheduler: sched,
		Notifier:  notification.FromMode(cfg.Notify.Mode, logger),
		Logger:    logger,
	})
	chatService := chat.NewService(personaStore, factory, logger.Named("chat"))
	defer chatService.CloseAll()

	router := handler.NewRouter(personaStore, chatService, cfg.Assistant.DefaultID, logger)

	logger.Info("farm assistant backend listening",
		zap.String("addr", cfg.Server.Addr),
		zap.Int("assistants", len(profiles)),
		zap.String("notify", string(cfg.Notify.Mode)))
	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		logger.Error("listen failed", zap.String("addr", cfg.Server.Addr), zap.Error(err))
		return
	}
	if err := runServer(ctx, newServer(cfg.Server, router, chatService.CloseAll), ln); err != nil {
		logger.Error("server error", zap.Error(err))
		return
	}
	logger.Info("server stopped", zap.Int("open_panels", chatService.Count()))
}

// newServer builds the HTTP server. onShutdown hooks run as soon as
// Shutdown starts; closing the panels there ends open streams and
// websockets, which Shutdown neither cancels nor tracks.
func newServer(serverCfg config.ServerConfig, router http.Handler, onShutdown ...func()) *http.Server {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	for _, fn := range onShutdown {
		srv.RegisterOnShutdown(fn)
	}
	return srv
}

func runServer(ctx context.Context, srv *http.Server, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
