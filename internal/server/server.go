// Package server wires the GameBox catalog server: library, access gate,
// save store and websocket notifications behind a gin router.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/gamebox/internal/db"
	"github.com/openmined/gamebox/internal/server/handlers/ws"
	"github.com/openmined/gamebox/internal/utils"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	config *Config
	server *http.Server
	hub    *ws.WebsocketHub
	svc    *Services
	db     *sqlx.DB
}

func New(ctx context.Context, config *Config) (*Server, error) {
	if err := utils.EnsureParent(config.DBPath); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	sqlDB, err := db.NewSqliteDB(db.WithPath(config.DBPath))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	svc, err := NewServices(ctx, config, sqlDB)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	hub := ws.NewHub()
	svc.Saves.OnSaveChange(hub.OnSaveChange)

	handler, err := SetupRoutes(&config.HTTP, svc, hub)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &Server{
		config: config,
		hub:    hub,
		svc:    svc,
		db:     sqlDB,
		server: &http.Server{
			Addr:              config.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Start serves until ctx is done or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	slog.Info("gamebox server start", "addr", s.config.HTTP.Addr, "library", s.config.Library.Dir)
	defer slog.Info("gamebox server stop")

	if err := s.svc.Start(ctx); err != nil {
		return err
	}

	go s.hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := s.runHttpServer(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("gamebox shutdown signal")
	case serveErr = <-errCh:
		if serveErr != nil {
			slog.Error("http server", "error", serveErr)
		}
	}

	if err := s.Stop(context.WithoutCancel(ctx)); err != nil {
		slog.Error("gamebox shutdown", "error", err)
		return errors.Join(serveErr, err)
	}
	return serveErr
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	s.hub.Shutdown(shutdownCtx)

	var errs []error
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := s.svc.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) runHttpServer() error {
	if s.config.HTTP.TLS() {
		slog.Info("server start tls", "addr", s.config.HTTP.Addr, "cert", s.config.HTTP.CertFile, "key", s.config.HTTP.KeyFile)
		return s.server.ListenAndServeTLS(s.config.HTTP.CertFile, s.config.HTTP.KeyFile)
	}
	slog.Info("server start http", "addr", s.config.HTTP.Addr)
	return s.server.ListenAndServe()
}
