package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("RING_TEST_STR", "value")
	t.Setenv("RING_TEST_INT", " 42 ")
	t.Setenv("RING_TEST_BAD_INT", "4x")
	t.Setenv("RING_TEST_BOOL", "No")
	t.Setenv("RING_TEST_DUR", "250ms")
	t.Setenv("RING_TEST_NEG_DUR", "-1s")

	assert.Equal(t, "value", getEnv("RING_TEST_STR", "default"))
	assert.Equal(t, "default", getEnv("RING_TEST_MISSING", "default"))

	assert.Equal(t, 42, getEnvInt("RING_TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("RING_TEST_BAD_INT", 1))
	assert.Equal(t, 1, getEnvInt("RING_TEST_MISSING", 1))

	assert.False(t, getEnvBool("RING_TEST_BOOL", true))
	assert.True(t, getEnvBool("RING_TEST_MISSING", true))

	assert.Equal(t, 250*time.Millisecond, getEnvDuration("RING_TEST_DUR", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("RING_TEST_NEG_DUR", time.Second))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("AUTONOMOUS", "false")
	t.Setenv("EVENT_BUFFER", "64")

	cfg := loadConfig()
	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.False(t, cfg.Autonomous)
	assert.True(t, cfg.SignatureFeel)
	assert.Equal(t, 64, cfg.EventBuffer)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
}
