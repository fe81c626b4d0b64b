package config_test

import (
	"testing"
	"time"

	"charity-service/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults and env overrides", func(t *testing.T) {
		t.Setenv("ENV", "unit")
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("SERVER_PORT", "9999")
		t.Setenv("DB_USER", "charity")
		t.Setenv("EVENTS_DRIVER", "nats")

		cfg, err := config.Load()
		require.NoError(t, err)

		assert.Equal(t, "unit", cfg.Env)
		assert.Equal(t, "9999", cfg.Server.Port)
		assert.Equal(t, "charity", cfg.Database.User)
		assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
		assert.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
		assert.Equal(t, "nats", cfg.Events.Driver)
		assert.Equal(t, "charity.events", cfg.NATS.Subject)
		assert.Equal(t, 5*time.Minute, cfg.Reconcile.Interval)
	})

	t.Run("missing jwt secret", func(t *testing.T) {
		t.Setenv("ENV", "unit")
		t.Setenv("JWT_SECRET", "")

		_, err := config.Load()
		assert.Error(t, err)
	})

	t.Run("unknown events driver", func(t *testing.T) {
		t.Setenv("ENV", "unit")
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("EVENTS_DRIVER", "carrier-pigeon")

		_, err := config.Load()
		assert.ErrorContains(t, err, "carrier-pigeon")
	})
}
