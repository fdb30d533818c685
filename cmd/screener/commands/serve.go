package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/screener/internal/analysis"
	"github.com/wonny/screener/internal/api"
	"github.com/wonny/screener/internal/api/handlers"
	"github.com/wonny/screener/pkg/metrics"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "API 서버 시작",
	Long: `REST / WebSocket API 서버를 시작합니다.

이 명령어는:
- 참조 데이터 (수익률, 유니버스, 펀더멘털) 를 한 번 로드
- 스크리닝 / 비교 / 커멘터리 엔드포인트 제공
- 파라미터 변경마다 전체 재계산하는 WebSocket 세션 제공

Endpoints:
  GET  /health               - Health check
  GET  /metrics              - Prometheus metrics
  GET  /api/reference        - 참조 데이터 요약
  POST /api/screen           - 스크리닝
  POST /api/screen/export    - 선별 결과 CSV 다운로드
  POST /api/returns          - 누적 수익률 비교
  POST /api/fundamentals     - 펀더멘털 비교
  POST /api/commentary       - LLM 분석
  GET  /ws/screen            - 인터랙티브 재계산

Example:
  go run ./cmd/screener serve
  go run ./cmd/screener serve --port 8080`,
	RunE: runServe,
}

var (
	servePort string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	// Flags
	serveCmd.Flags().StringVar(&servePort, "port", "", "API 서버 포트 (default: PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), "=== Theme Screener API Server ===")

	// 1. Load config
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	// Override port if flag is set
	if servePort != "" {
		cfg.Port = servePort
	}

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	ctx := context.Background()

	// 2. Load reference data (read-only for the process lifetime)
	store, closeStore, err := loadReference(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// 3. Commentary collaborator (optional)
	analyzer, closeAnalyzer, err := newAnalyzer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeAnalyzer()

	// 4. Metrics
	var recorder *metrics.Recorder
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		recorder = metrics.New()
		metricsHandler = recorder.Handler()
	}

	// 5. Service + handlers
	svc := analysis.NewService(store, analyzer, recorder, log)
	screenHandler := handlers.NewScreenHandler(svc, cfg.LLM.ChunkSize, log)
	streamHandler := handlers.NewStreamHandler(svc, log)

	// 6. Router + server
	router := api.NewRouter(screenHandler, streamHandler, metricsHandler, log)
	server := api.New(cfg, log, router)

	// 7. Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Info("API server started successfully")
	fmt.Fprintf(cmd.OutOrStdout(), "\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Fprintln(cmd.OutOrStdout(), "\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
