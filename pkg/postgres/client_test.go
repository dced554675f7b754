package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSNFromParts(t *testing.T) {
	cfg := defaultConfig()
	WithHost("db", 6543)(cfg)
	WithCredentials("scanner", "secret")(cfg)
	WithDatabase("signals")(cfg)

	assert.Equal(t, "postgres://scanner:secret@db:6543/signals?sslmode=disable", cfg.dsn())
}

func TestDSNOverride(t *testing.T) {
	cfg := defaultConfig()
	WithDSN("host=x user=y")(cfg)
	WithHost("ignored", 1)(cfg)

	assert.Equal(t, "host=x user=y", cfg.dsn())
}

func TestDSNWithoutPassword(t *testing.T) {
	cfg := defaultConfig()
	WithCredentials("scanner", "")(cfg)
	WithSSLMode("require")(cfg)

	assert.Equal(t, "postgres://scanner@localhost:5432/pulsescan?sslmode=require", cfg.dsn())
}
