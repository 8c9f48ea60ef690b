package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ESCROW_CLEARING_WINDOW", "")
	t.Setenv("STORE_BACKEND", "")

	cfg := Load()
	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, StoreBackendPostgres, cfg.StoreBackend)
	assert.Equal(t, 48*time.Hour, cfg.Escrow.ClearingWindow)
	assert.Equal(t, 500, cfg.Escrow.WriteChunkSize)
	assert.Equal(t, "gbp", cfg.Stripe.Currency)
	assert.Equal(t, "gigs", cfg.Elasticsearch.Index)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", StoreBackendMemory)
	t.Setenv("ESCROW_CLEARING_WINDOW", "1h")
	t.Setenv("ESCROW_WRITE_CHUNK", "50")
	t.Setenv("DB_PORT", "not-a-number")

	cfg := Load()
	assert.Equal(t, StoreBackendMemory, cfg.StoreBackend)
	assert.Equal(t, time.Hour, cfg.Escrow.ClearingWindow)
	assert.Equal(t, 50, cfg.Escrow.WriteChunkSize)
	assert.Equal(t, 5432, cfg.Database.Port)
}
