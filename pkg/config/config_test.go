package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, CacheDriverNone, cfg.Cache.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "教学人员：", cfg.Timetable.Marker)
	assert.Equal(t, int64(8<<20), cfg.Timetable.MaxPayloadBytes)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, 2, cfg.Imports.Workers)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_DRIVER", "Redis")
	t.Setenv("CACHE_TTL", "5m")
	t.Setenv("ENABLE_PERSISTENCE", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("TIMETABLE_TERM_START", "2024-09-02")
	t.Setenv("TIMETABLE_TIMEZONE", "UTC")
	t.Setenv("EXPORTS_SIGNED_URL_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, CacheDriverRedis, cfg.Cache.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 24*time.Hour, cfg.Exports.SignedURLTTL)

	start, err := cfg.Timetable.TermStartDate()
	require.NoError(t, err)
	assert.Equal(t, time.Monday, start.Weekday())
	assert.Equal(t, 2, start.Day())
}

func TestTermStartDateUnset(t *testing.T) {
	start, err := TimetableConfig{}.TermStartDate()
	require.NoError(t, err)
	assert.True(t, start.IsZero())
}
