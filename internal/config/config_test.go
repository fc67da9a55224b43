package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("MONGODB_URI", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "feedback", cfg.DBName)
	assert.Equal(t, StoreMongo, cfg.Store)
	assert.Equal(t, "admin", cfg.AdminEmail)
	assert.Equal(t, "admin", cfg.AdminPassword)
	assert.Equal(t, 720*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 50*time.Millisecond, cfg.JoinDebounce)

	assert.EqualError(t, cfg.Validate(), "MONGODB_URI is required")
	cfg.Store = StoreMemory
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvFile(t *testing.T) {
	// godotenv never overrides variables that are already set, even to ""
	for _, key := range []string{"PORT", "STORE", "JWT_SECRET"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=9999\nSTORE=memory\nJWT_SECRET=abc\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cfg := &Config{Store: "redis", JWTSecret: "x", TokenTTL: time.Hour}
	assert.EqualError(t, cfg.Validate(), `unknown store "redis"`)

	cfg = &Config{Store: StoreMemory, TokenTTL: time.Hour}
	assert.EqualError(t, cfg.Validate(), "JWT_SECRET is required")
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("TOKEN_TTL", "forever")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
