package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, "600-M", cfg.RateLimit.Rate)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.JWT.Secret)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))
	yaml := "server:\n  port: 9090\ndatabase:\n  host: db.internal\nlog:\n  level: debug\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", "config.yaml"), []byte(yaml), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	t.Setenv("DB_HOST", "pg.example")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("RATE_LIMIT", "50-S")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "pg.example", cfg.Database.Host)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, "50-S", cfg.RateLimit.Rate)
	// 未覆盖的键保留默认值
	assert.Equal(t, "gmao", cfg.Database.DBName)
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: 5433, User: "u", Password: "p", DBName: "d", SSLMode: "require"}
	assert.Equal(t, "host=h port=5433 user=u password=p dbname=d sslmode=require TimeZone=UTC", c.DSN())
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("GMAO_TEST_KEY", "set")
	assert.Equal(t, "set", GetEnvOrDefault("GMAO_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnvOrDefault("GMAO_TEST_MISSING", "fallback"))
}
