package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string     `yaml:"environment" default:"development" validate:"oneof=development staging production"`
	Server      Server     `yaml:"server"`
	Logging     Logging    `yaml:"logging"`
	Profiling   Profiling  `yaml:"profiling"`
	Feed        Feed       `yaml:"feed"`
	Scanner     Scanner    `yaml:"scanner"`
	Positions   Positions  `yaml:"positions"`
	Kafka       Kafka      `yaml:"kafka"`
	ClickHouse  ClickHouse `yaml:"clickhouse"`
	Postgres    Postgres   `yaml:"postgres"`
	Redis       Redis      `yaml:"redis"`
	Analysis    Analysis   `yaml:"analysis"`
	Notify      Notify     `yaml:"notify"`
}

type Server struct {
	Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s" validate:"gt=0"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" default:"20" validate:"gte=0"`
	// AdminToken enables PUT /api/settings when set.
	AdminToken string `yaml:"admin_token"`
}

type Logging struct {
	Level              string        `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format             string        `yaml:"format" default:"json" validate:"oneof=json console"`
	Output             string        `yaml:"output" default:"stdout"`
	MaxSizeMB          int           `yaml:"max_size_mb" default:"100"`
	MaxBackups         int           `yaml:"max_backups" default:"5"`
	MaxAgeDays         int           `yaml:"max_age_days" default:"14"`
	Compress           bool          `yaml:"compress"`
	CollectorTopic     string        `yaml:"collector_topic"`
	CollectorInterval  time.Duration `yaml:"collector_interval" default:"30s"`
	CollectorThreshold int           `yaml:"collector_threshold" default:"100"`
}

type Profiling struct {
	Enabled       bool   `yaml:"enabled"`
	ServerAddress string `yaml:"server_address" default:"http://localhost:4040"`
	AppName       string `yaml:"app_name" default:"pulsescan"`
}

// Feed selects where ticks come from.
type Feed struct {
	Source         string        `yaml:"source" default:"binance" validate:"oneof=binance kafka"`
	URL            string        `yaml:"url" default:"wss://stream.binance.com:9443/ws" validate:"required,url"`
	Symbols        []string      `yaml:"symbols"` // empty accepts every symbol
	QuoteAsset     string        `yaml:"quote_asset" default:"USDT"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
	PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
	KafkaTopic     string        `yaml:"kafka_topic" default:"market.ticks"`
	MaxRPS         int           `yaml:"max_rps" default:"20" validate:"gte=0"`
	BufferSize     int           `yaml:"buffer_size" default:"1000" validate:"gt=0"`
}

type Breaker struct {
	Window    time.Duration `yaml:"window" default:"15m" validate:"gt=0"`
	Threshold float64       `yaml:"threshold" default:"0.05" validate:"gt=0,lt=1"`
	Cooldown  time.Duration `yaml:"cooldown" default:"30m" validate:"gt=0"`
}

// Scanner holds detector tuning. Status and Pairs only seed the settings
// store when no Redis is configured.
type Scanner struct {
	VolumeRatio       float64       `yaml:"volume_ratio" default:"3" validate:"gt=0"`
	PricePercent      float64       `yaml:"price_percent" default:"3" validate:"gt=0"`
	Cooldown          time.Duration `yaml:"cooldown" default:"5m" validate:"gt=0"`
	BaselineInterval  time.Duration `yaml:"baseline_interval" default:"1h" validate:"gt=0"`
	PriceWindow       time.Duration `yaml:"price_window" default:"5m" validate:"gt=0"`
	SettingsInterval  time.Duration `yaml:"settings_interval" default:"30s" validate:"gt=0"`
	LoopBuffer        int           `yaml:"loop_buffer" default:"1024" validate:"gt=0"`
	SideEffectTimeout time.Duration `yaml:"side_effect_timeout" default:"10s" validate:"gt=0"`
	Breaker           Breaker       `yaml:"breaker"`
	Status            string        `yaml:"status" default:"running" validate:"oneof=running stopped"`
	Pairs             []string      `yaml:"pairs"`
}

type Positions struct {
	Disabled       bool          `yaml:"disabled"`
	ReloadInterval time.Duration `yaml:"reload_interval" default:"15s" validate:"gt=0"`
	Epsilon        float64       `yaml:"epsilon" default:"0.001" validate:"gte=0,lt=1"`
	MinorMove      float64       `yaml:"minor_move" default:"0.001" validate:"gte=0,lt=1"`
	WriteTimeout   time.Duration `yaml:"write_timeout" default:"5s" validate:"gt=0"`
}

type Kafka struct {
	Brokers      []string `yaml:"brokers"`
	Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=gzip snappy lz4 zstd"`
	RequiredAcks int      `yaml:"required_acks" default:"1" validate:"oneof=-1 0 1"`
	GroupID      string   `yaml:"group_id" default:"pulsescan"`
	StartOffset  string   `yaml:"start_offset" default:"latest" validate:"oneof=earliest latest"`
	DLQTopic     string   `yaml:"dlq_topic"`
	RetryMax     int      `yaml:"retry_max" default:"2" validate:"gte=0"`
}

type ClickHouse struct {
	Enabled      bool          `yaml:"enabled"`
	Host         string        `yaml:"host" default:"localhost"`
	Port         int           `yaml:"port" default:"9000"`
	Database     string        `yaml:"database" default:"pulsescan"`
	User         string        `yaml:"user" default:"default"`
	Password     string        `yaml:"password"`
	UseHTTP      bool          `yaml:"use_http"`
	SyncInsert   bool          `yaml:"sync_insert"`
	DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	MaxExecution time.Duration `yaml:"max_execution_time" default:"30s"`
}

type Postgres struct {
	Enabled      bool   `yaml:"enabled"`
	DSN          string `yaml:"dsn"`
	Host         string `yaml:"host" default:"localhost"`
	Port         int    `yaml:"port" default:"5432"`
	User         string `yaml:"user" default:"postgres"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database" default:"pulsescan"`
	SSLMode      string `yaml:"ssl_mode" default:"disable"`
	MaxOpenConns int    `yaml:"max_open_conns" default:"10"`
	SkipMigrate  bool   `yaml:"skip_migrate"`
}

type Redis struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"pulsescan"`
	PoolSize int    `yaml:"pool_size" default:"10"`
	// Seed writes the scanner section's status, pairs and thresholds to keys
	// that do not exist yet.
	Seed bool `yaml:"seed"`
}

type Analysis struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"base_url" validate:"omitempty,url"`
	Timeout time.Duration `yaml:"timeout" default:"10s"`
}

type Notify struct {
	LogDisabled    bool          `yaml:"log_disabled"`
	KafkaTopic     string        `yaml:"kafka_topic"`
	DiscordWebhook string        `yaml:"discord_webhook" validate:"omitempty,url"`
	Timeout        time.Duration `yaml:"timeout" default:"5s"`
}

// envOverrides are read with the PULSESCAN_ prefix, e.g. PULSESCAN_KAFKA_BROKERS.
type envOverrides struct {
	KafkaBrokers       []string `envconfig:"KAFKA_BROKERS"`
	PostgresDSN        string   `envconfig:"POSTGRES_DSN"`
	ClickHousePassword string   `envconfig:"CLICKHOUSE_PASSWORD"`
	RedisAddr          string   `envconfig:"REDIS_ADDR"`
	RedisPassword      string   `envconfig:"REDIS_PASSWORD"`
	DiscordWebhook     string   `envconfig:"DISCORD_WEBHOOK"`
	AnalysisURL        string   `envconfig:"ANALYSIS_URL"`
	Symbols            []string `envconfig:"SYMBOLS"`
	LogLevel           string   `envconfig:"LOG_LEVEL"`
	AdminToken         string   `envconfig:"ADMIN_TOKEN"`
}

const envPrefix = "PULSESCAN"

var validate = validator.New()

// Load reads a YAML file, fills defaults and validates. No env overrides.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parse(b, nil)
}

// LoadWithEnv is Load plus .env loading and PULSESCAN_* overrides.
func LoadWithEnv(path string) (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var ov envOverrides
	if err := envconfig.Process(envPrefix, &ov); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	return parse(b, &ov)
}

func parse(b []byte, ov *envOverrides) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if ov != nil {
		ov.apply(&c)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (ov envOverrides) apply(c *Config) {
	if len(ov.KafkaBrokers) > 0 {
		c.Kafka.Brokers = ov.KafkaBrokers
	}
	if ov.AdminToken != "" {
		c.Server.AdminToken = ov.AdminToken
	}
	if ov.PostgresDSN != "" {
		c.Postgres.DSN = ov.PostgresDSN
		c.Postgres.Enabled = true
	}
	if ov.ClickHousePassword != "" {
		c.ClickHouse.Password = ov.ClickHousePassword
	}
	if ov.RedisAddr != "" {
		c.Redis.Addr = ov.RedisAddr
		c.Redis.Enabled = true
	}
	if ov.RedisPassword != "" {
		c.Redis.Password = ov.RedisPassword
	}
	if ov.DiscordWebhook != "" {
		c.Notify.DiscordWebhook = ov.DiscordWebhook
	}
	if ov.AnalysisURL != "" {
		c.Analysis.BaseURL = ov.AnalysisURL
		c.Analysis.Enabled = true
	}
	if len(ov.Symbols) > 0 {
		c.Feed.Symbols = ov.Symbols
	}
	if ov.LogLevel != "" {
		c.Logging.Level = ov.LogLevel
	}
}

// Validate checks field rules and the cross-section requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	needKafka := c.Feed.Source == "kafka" || c.Notify.KafkaTopic != "" || c.Logging.CollectorTopic != ""
	if needKafka && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required when the feed, notifications or log collector use kafka")
	}
	if c.Analysis.Enabled && c.Analysis.BaseURL == "" {
		return errors.New("analysis.base_url is required when analysis is enabled")
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" && c.Postgres.Host == "" {
		return errors.New("postgres.dsn or postgres.host is required")
	}
	return nil
}
