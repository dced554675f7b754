package postgres

import "time"

// ClientOption configures Client.
type ClientOption func(*ClientConfig)

// ClientConfig holds PostgreSQL configuration. A non-empty DSN wins over the parts.
type ClientConfig struct {
	DSN             string
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Silent          bool
}

func defaultConfig() *ClientConfig {
	return &ClientConfig{
		Host:            "localhost",
		Port:            5432,
		Database:        "pulsescan",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// WithDSN sets a full connection string.
func WithDSN(dsn string) ClientOption {
	return func(c *ClientConfig) {
		c.DSN = dsn
	}
}

// WithHost sets host and port.
func WithHost(host string, port int) ClientOption {
	return func(c *ClientConfig) {
		if host != "" {
			c.Host = host
		}
		if port > 0 {
			c.Port = port
		}
	}
}

// WithCredentials sets username and password.
func WithCredentials(user, password string) ClientOption {
	return func(c *ClientConfig) {
		c.User = user
		c.Password = password
	}
}

// WithDatabase sets database name.
func WithDatabase(name string) ClientOption {
	return func(c *ClientConfig) {
		if name != "" {
			c.Database = name
		}
	}
}

// WithSSLMode sets sslmode.
func WithSSLMode(mode string) ClientOption {
	return func(c *ClientConfig) {
		if mode != "" {
			c.SSLMode = mode
		}
	}
}

// WithPool sets pool limits.
func WithPool(maxOpen, maxIdle int, lifetime time.Duration) ClientOption {
	return func(c *ClientConfig) {
		if maxOpen > 0 {
			c.MaxOpenConns = maxOpen
		}
		if maxIdle > 0 {
			c.MaxIdleConns = maxIdle
		}
		if lifetime > 0 {
			c.ConnMaxLifetime = lifetime
		}
	}
}

// WithSilentLogger disables gorm query logging.
func WithSilentLogger(silent bool) ClientOption {
	return func(c *ClientConfig) {
		c.Silent = silent
	}
}
