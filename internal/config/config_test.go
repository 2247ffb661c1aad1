package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("EVENT_BUS", "local")
	t.Setenv("TOKEN_TTL", "1800s")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string][2]string{
		"port":     {"PORT", "eighty"},
		"ttl":      {"TOKEN_TTL", "soon"},
		"rate":     {"AUTH_RATE_LIMIT", "fast"},
		"burst":    {"AUTH_RATE_BURST", "1.5"},
		"store":    {"STORE_DRIVER", "postgres"},
		"bus":      {"EVENT_BUS", "kafka"},
		"zero ttl": {"TOKEN_TTL", "0s"},
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidateRequiresSecretInProduction(t *testing.T) {
	cfg := &Config{AppEnv: "production", StoreDriver: "memory", EventBus: "local", TokenTTL: time.Minute}
	assert.Error(t, cfg.Validate())

	cfg.JWTSecret = "secret"
	assert.NoError(t, cfg.Validate())
}
