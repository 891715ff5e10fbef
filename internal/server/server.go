// Package server собирает HTTP поверхность сервиса: cron endpoint,
// управление workflow, отчёты и служебные ручки.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"freightwatch/pkg/config"
	"freightwatch/pkg/logger"
)

// Server обёртка над http.Server с graceful shutdown
type Server struct {
	httpServer *http.Server
	cfg        *config.HTTPConfig
}

// New создаёт сервер поверх готового handler'а
func New(cfg *config.HTTPConfig, handler http.Handler) *Server {
	return &Server{
		cfg: cfg,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Start блокирует до остановки сервера
func (s *Server) Start() error {
	logger.Log.Info("HTTP server listening", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown мягко останавливает сервер
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.Log.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(shutdownCtx)
}
