package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	AppName   string `env:"APP_NAME" env-default:"task-api"`
	AppEnv    string `env:"APP_ENV" env-default:"development"`
	AppPort   string `env:"APP_PORT" env-default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `env:"LOG_FORMAT" env-default:"text"`

	DB        DBConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	JWT       JWTConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Worker    WorkerConfig
}

type DBConfig struct {
	Host        string `env:"DB_HOST" env-default:"localhost"`
	Port        string `env:"DB_PORT" env-default:"5432"`
	User        string `env:"DB_USER" env-default:"postgres"`
	Password    string `env:"DB_PASSWORD" env-default:""`
	Name        string `env:"DB_NAME" env-default:"tasks"`
	SSLMode     string `env:"DB_SSLMODE" env-default:"disable"`
	AutoMigrate bool   `env:"DB_AUTO_MIGRATE" env-default:"true"`
}

// DSN returns the key/value connection string understood by pgx.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// RedisConfig is optional: an empty Host disables the task cache and rate limiting.
type RedisConfig struct {
	Host     string        `env:"REDIS_HOST" env-default:""`
	Port     string        `env:"REDIS_PORT" env-default:"6379"`
	Password string        `env:"REDIS_PASSWORD" env-default:""`
	DB       int           `env:"REDIS_DB" env-default:"0"`
	CacheTTL time.Duration `env:"CACHE_TTL" env-default:"5m"`
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

// RabbitMQConfig is optional for the API: an empty URL disables task events.
type RabbitMQConfig struct {
	URL   string `env:"RABBITMQ_URL" env-default:""`
	Queue string `env:"RABBITMQ_QUEUE" env-default:"task_events"`
}

func (c RabbitMQConfig) Enabled() bool {
	return c.URL != ""
}

type JWTConfig struct {
	Secret string        `env:"JWT_SECRET" env-required:"true"`
	TTL    time.Duration `env:"JWT_TTL" env-default:"1h"`
}

type AuthConfig struct {
	BcryptCost int `env:"BCRYPT_COST" env-default:"10"`
}

type RateLimitConfig struct {
	APICapacity     int     `env:"RATE_LIMIT_API_CAPACITY" env-default:"20"`
	APIRefillRate   float64 `env:"RATE_LIMIT_API_REFILL" env-default:"10"`
	LoginCapacity   int     `env:"RATE_LIMIT_LOGIN_CAPACITY" env-default:"5"`
	LoginRefillRate float64 `env:"RATE_LIMIT_LOGIN_REFILL" env-default:"0.2"`
}

// WorkerConfig applies to cmd/worker only.
type WorkerConfig struct {
	Count       int    `env:"WORKER_COUNT" env-default:"3"`
	MetricsPort string `env:"WORKER_METRICS_PORT" env-default:"8088"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.JWT.TTL <= 0 {
		return nil, fmt.Errorf("JWT_TTL must be positive, got %s", cfg.JWT.TTL)
	}
	if err := cfg.RateLimit.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects buckets that would never refill or never admit a request.
func (c RateLimitConfig) validate() error {
	if c.APICapacity <= 0 {
		return fmt.Errorf("RATE_LIMIT_API_CAPACITY must be positive, got %d", c.APICapacity)
	}
	if c.APIRefillRate <= 0 {
		return fmt.Errorf("RATE_LIMIT_API_REFILL must be positive, got %g", c.APIRefillRate)
	}
	if c.LoginCapacity <= 0 {
		return fmt.Errorf("RATE_LIMIT_LOGIN_CAPACITY must be positive, got %d", c.LoginCapacity)
	}
	if c.LoginRefillRate <= 0 {
		return fmt.Errorf("RATE_LIMIT_LOGIN_REFILL must be positive, got %g", c.LoginRefillRate)
	}
	return nil
}
