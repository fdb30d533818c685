package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/screener/pkg/config"
)

// DB wraps the pgxpool.Pool used for reference data
// ⭐ SSOT: DB 연결은 이 패키지에서만 생성
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a connection pool and verifies it with a ping
// ⭐ SSOT: 유일하게 pgxpool.NewWithConfig()를 호출하는 함수
func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the pool; safe to call twice
func (db *DB) Close() {
	if db != nil && db.Pool != nil {
		db.Pool.Close()
	}
}

// HealthStatus represents the health of the database
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	ResponseTime  time.Duration `json:"response_time"`
	Error         string        `json:"error,omitempty"`
	TotalConns    int32         `json:"total_conns"`
	AcquiredConns int32         `json:"acquired_conns"`
	IdleConns     int32         `json:"idle_conns"`
	MaxConns      int32         `json:"max_conns"`
}

// HealthCheck pings the database and reports pool statistics
func (db *DB) HealthCheck(ctx context.Context) *HealthStatus {
	status := &HealthStatus{}

	start := time.Now()
	if err := db.Pool.Ping(ctx); err != nil {
		status.Error = err.Error()
		return status
	}
	status.ResponseTime = time.Since(start)

	stats := db.Pool.Stat()
	status.TotalConns = stats.TotalConns()
	status.AcquiredConns = stats.AcquiredConns()
	status.IdleConns = stats.IdleConns()
	status.MaxConns = stats.MaxConns()
	status.Healthy = true
	return status
}
