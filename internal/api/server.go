package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/wonny/screener/pkg/config"
	"github.com/wonny/screener/pkg/logger"
)

// Server represents the HTTP API server
// ⭐ SSOT: API 서버 설정은 이 파일에서만
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
	config     *config.Config
}

// New creates a new API server
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	// 커멘터리는 여러 번의 외부 호출을 순차로 수행하므로 쓰기 타임아웃을 넉넉하게
	writeTimeout := 2*cfg.LLM.Timeout + 15*time.Second
	if writeTimeout < 30*time.Second {
		writeTimeout = 30 * time.Second
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: writeTimeout,
			IdleTimeout:  60 * time.Second,
		},
		logger: log,
		config: cfg,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithFields(map[string]interface{}{
		"port": s.config.Port,
		"env":  s.config.Env,
	}).Info("Starting API server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
