package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/screener/pkg/config"
)

func integrationConfig(t *testing.T) config.DatabaseConfig {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	return config.DatabaseConfig{
		URL:             url,
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

func TestNew(t *testing.T) {
	db, err := New(context.Background(), integrationConfig(t))
	require.NoError(t, err)
	defer db.Close()

	status := db.HealthCheck(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, int32(4), status.MaxConns)
}

func TestNewDisabled(t *testing.T) {
	_, err := New(context.Background(), config.DatabaseConfig{})
	assert.Error(t, err)
}

func TestNewWithInvalidURL(t *testing.T) {
	_, err := New(context.Background(), config.DatabaseConfig{
		URL:      "invalid://url",
		MaxConns: 4,
		MinConns: 1,
	})
	assert.Error(t, err)
}

func TestCloseTwice(t *testing.T) {
	db, err := New(context.Background(), integrationConfig(t))
	require.NoError(t, err)

	db.Close()
	db.Close()
}

func TestCloseNil(t *testing.T) {
	var db *DB
	assert.NotPanics(t, db.Close)
}
