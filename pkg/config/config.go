package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the screener
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (optional: reference data source)
	Database DatabaseConfig

	// Redis (optional: LLM response cache + rate limit)
	Redis RedisConfig

	// Reference data files
	Data DataConfig

	// Text-completion service used for commentary
	LLM LLMConfig

	// Screening profile (YAML)
	ProfilePath string

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether reference data should be read from Postgres
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DataConfig points at the reference data loaded once at startup
type DataConfig struct {
	ReturnsPath     string // 일별 수익률 매트릭스 (DATE x ID)
	UniversePath    string // 벤치마크 구성종목 ID 목록
	UniverseName    string
	FundamentalsDir string // metric 별 CSV (파일명 = metric)
	ReturnsMetric   string // Postgres 사용 시 수익률 metric 이름
}

// LLMConfig holds text-completion API configuration
type LLMConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	Timeout        time.Duration
	RequestsPerSec float64
	ChunkSize      int
	CacheTTL       time.Duration
}

// Enabled reports whether a completion endpoint is configured
func (l LLMConfig) Enabled() bool {
	return l.APIKey != "" && l.BaseURL != ""
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Data: DataConfig{
			ReturnsPath:     getEnv("DATA_RETURNS_PATH", "data/returns.csv"),
			UniversePath:    getEnv("DATA_UNIVERSE_PATH", "data/msci_wrld.csv"),
			UniverseName:    getEnv("DATA_UNIVERSE_NAME", "MSCI World"),
			FundamentalsDir: getEnv("DATA_FUNDAMENTALS_DIR", "data/fundamentals"),
			ReturnsMetric:   getEnv("DATA_RETURNS_METRIC", "daily_return"),
		},

		LLM: LLMConfig{
			BaseURL:        getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:         getEnv("LLM_API_KEY", ""),
			Model:          getEnv("LLM_MODEL", "gpt-4o-mini"),
			Timeout:        getEnvAsDuration("LLM_TIMEOUT", "60s"),
			RequestsPerSec: getEnvAsFloat("LLM_REQUESTS_PER_SEC", 1),
			ChunkSize:      getEnvAsInt("LLM_CHUNK_SIZE", 10),
			CacheTTL:       getEnvAsDuration("LLM_CACHE_TTL", "10m"),
		},

		ProfilePath: getEnv("PROFILE_PATH", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks configuration values that would break startup
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.LLM.ChunkSize < 1 {
		return fmt.Errorf("LLM_CHUNK_SIZE must be >= 1, got %d", c.LLM.ChunkSize)
	}

	if c.LLM.RequestsPerSec <= 0 {
		return fmt.Errorf("LLM_REQUESTS_PER_SEC must be > 0")
	}

	// 파일 기반 로딩이면 수익률 경로는 필수
	if !c.Database.Enabled() && c.Data.ReturnsPath == "" {
		return fmt.Errorf("DATA_RETURNS_PATH is required when DATABASE_URL is not set")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
