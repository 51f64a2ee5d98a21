package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env      string `env:"ENV" env-default:"local"`
	Timezone string `env:"TIMEZONE" env-default:"UTC"`
	HTTP     HTTPConfig
	Database DBConfig
	Redis    RedisConfig
	Market   MarketConfig
	Identity IdentityConfig
	Kafka    KafkaConfig
}

type HTTPConfig struct {
	Port    uint16        `env:"HTTP_PORT" env-default:"8080"`
	Timeout time.Duration `env:"HTTP_TIMEOUT" env-default:"30s"`
}

type DBConfig struct {
	Host     string `env:"POSTGRES_HOST" env-default:"localhost"`
	Port     uint16 `env:"POSTGRES_PORT" env-default:"5432"`
	User     string `env:"POSTGRES_USER" env-default:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" env-default:"postgres"`
	DBName   string `env:"POSTGRES_DB" env-default:"coinfolio"`
	SSLMode  string `env:"POSTGRES_SSLMODE" env-default:"disable"`

	ConnectAttempts int           `env:"POSTGRES_CONNECT_ATTEMPTS" env-default:"5"`
	ConnectWait     time.Duration `env:"POSTGRES_CONNECT_WAIT" env-default:"2s"`
}

type RedisConfig struct {
	Addr         string        `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password     string        `env:"REDIS_PASSWORD" env-default:""`
	DB           int           `env:"REDIS_DB" env-default:"0"`
	ScoreChannel string        `env:"REDIS_SCORE_CHANNEL" env-default:"post-scores"`
	CacheTTL     time.Duration `env:"MARKET_CACHE_TTL" env-default:"30s"`
}

type MarketConfig struct {
	BaseURL       string        `env:"MARKET_BASE_URL" env-default:"https://api.coincap.io/v2"`
	APIKey        string        `env:"MARKET_API_KEY" env-default:""`
	RetryAttempts int           `env:"MARKET_RETRY_ATTEMPTS" env-default:"3"`
	RetryDelay    time.Duration `env:"MARKET_RETRY_DELAY" env-default:"1s"`
	Timeout       time.Duration `env:"MARKET_TIMEOUT" env-default:"10s"`
}

type IdentityConfig struct {
	URL         string `env:"IDENTITY_URL" env-required:"true"`
	AnonKey     string `env:"IDENTITY_ANON_KEY" env-required:"true"`
	JWTSecret   string `env:"IDENTITY_JWT_SECRET" env-required:"true"`
	RedirectURL string `env:"IDENTITY_REDIRECT_URL" env-default:""`
}

type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `env:"KAFKA_ACTIVITY_TOPIC" env-default:"coinfolio-activity"`
	GroupID string   `env:"KAFKA_GROUP_ID" env-default:"activity-sink"`
}

type ClickHouseConfig struct {
	Addr     string `env:"CLICKHOUSE_ADDR" env-default:"localhost:9000"`
	Database string `env:"CLICKHOUSE_DB" env-default:"default"`
	User     string `env:"CLICKHOUSE_USER" env-default:"default"`
	Password string `env:"CLICKHOUSE_PASSWORD" env-default:""`
}

// SinkConfig configures cmd/activity-sink.
type SinkConfig struct {
	Env        string        `env:"ENV" env-default:"local"`
	BatchSize  int           `env:"SINK_BATCH_SIZE" env-default:"500"`
	FlushEvery time.Duration `env:"SINK_FLUSH_INTERVAL" env-default:"5s"`
	Kafka      KafkaConfig
	ClickHouse ClickHouseConfig
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func MustLoad() *Config {
	var cfg Config
	mustRead(&cfg)
	return &cfg
}

func MustLoadSink() *SinkConfig {
	var cfg SinkConfig
	mustRead(&cfg)
	return &cfg
}

func mustRead(cfg any) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment variables")
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		slog.Error("failed to read environment variables", "error", err)
		os.Exit(1)
	}
}
