package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"musicbox/config"
	"musicbox/core/session"
	"musicbox/db"
	"musicbox/logger"
	"musicbox/repository"
	"musicbox/storage"
)

// Start wires the application from cfg and serves HTTP until SIGINT or SIGTERM.
func Start(cfg *config.Config) error {
	ctx := context.Background()

	conn, dialect, err := db.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	// Initialize database schema
	if err := db.InitDB(ctx, conn, dialect); err != nil {
		return err
	}

	media, err := storage.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize media storage: %w", err)
	}
	if closer, ok := media.(io.Closer); ok {
		defer closer.Close()
	}

	store, closeStore, err := newSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.SessionSecret == "" {
		logger.Warn("SESSION_SECRET is not set; sessions will not survive a restart")
	}
	sessions, err := session.NewManager(store, session.Options{
		Lifetime: cfg.SessionLifetime,
		Secure:   cfg.SessionCookieSecure,
		Secret:   []byte(cfg.SessionSecret),
	})
	if err != nil {
		return err
	}

	handler, err := NewHandler(Deps{
		Users:          repository.NewUserRepository(conn),
		Songs:          repository.NewSongRepository(conn),
		Favorites:      repository.NewFavoriteRepository(conn),
		Media:          media,
		Sessions:       sessions,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		return err
	}

	// 设置服务器超时
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      NewRouter(handler),
		ReadTimeout:  5 * time.Minute, // uploads can be large
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			logger.String("addr", cfg.ServerAddr),
			logger.String("database", string(dialect)),
			logger.String("media", cfg.MediaBackend),
			logger.String("sessions", cfg.SessionStore))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 等待中断信号
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-stop:
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

func newSessionStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	switch cfg.SessionStore {
	case "", "memory":
		return session.NewMemoryStore(), func() {}, nil
	case "redis":
		client, err := db.ConnectRedis(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Successfully connected to Redis", logger.String("addr", cfg.RedisAddr()))
		return session.NewRedisStore(client), func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported session store %q", cfg.SessionStore)
	}
}
