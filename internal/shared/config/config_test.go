package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	ctopics "github.com/radieske/parimutuel-settlement/pkg/contracts/topics"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "settlement-service")
	t.Setenv("DB_DRIVER", "sqlite")

	cfg := Load()
	assert.Equal(t, "8083", cfg.HTTPPort)
	assert.Equal(t, "9099", cfg.MetricsPort)
	assert.Equal(t, ctopics.MarketEvents, cfg.TopicMarketEvents)
	assert.Equal(t, "file:settlement.db", cfg.DSN())
	assert.Equal(t, "@every 15s", cfg.KeeperSchedule)
	assert.True(t, cfg.KeeperAutoClose)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "keeper-worker")
	t.Setenv("KEEPER_LOCK_TTL", "2m")
	t.Setenv("KEEPER_BATCH", "7")
	t.Setenv("KEEPER_AUTO_CANCEL", "false")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("KEEPER_SCHEDULE", "@hourly")
	t.Setenv("MARKET_CACHE_TTL", "garbage")

	cfg := Load()
	assert.Equal(t, "", cfg.HTTPPort)
	assert.Equal(t, "9097", cfg.MetricsPort)
	assert.Equal(t, 2*time.Minute, cfg.KeeperLockTTL)
	assert.Equal(t, 7, cfg.KeeperBatch)
	assert.False(t, cfg.KeeperAutoCancel)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, "@hourly", cfg.KeeperSchedule)
	assert.Equal(t, 30*time.Second, cfg.MarketCacheTTL)
}
