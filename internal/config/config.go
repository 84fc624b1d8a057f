package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	ScoringModeBatch  = "batch"
	ScoringModePerJob = "per_job"
)

// Config holds all application configuration. It is built once in main and
// passed down explicitly; nothing below cmd/ reads the environment.
type Config struct {
	Env      string   `env:"APP_ENV" envDefault:"development"`
	Port     int      `env:"APP_PORT" envDefault:"8080"`
	LogLevel string   `env:"LOG_LEVEL" envDefault:"info"`
	DataDir  string   `env:"DATA_DIR" envDefault:"./data"`
	Origins  []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	ProfilePath string        `env:"PROFILE_PATH" envDefault:"./files/profile.md"`
	SessionTTL  time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	Database DatabaseConfig `envPrefix:"DB_"`
	LLM      LLMConfig      `envPrefix:"LLM_"`
	Pipeline PipelineConfig `envPrefix:"PIPELINE_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Telegram TelegramConfig `envPrefix:"TELEGRAM_"`
}

type DatabaseConfig struct {
	Driver string `env:"DRIVER" envDefault:"sqlite"`
	// DSN is a postgres connection string or a sqlite file path.
	DSN string `env:"URL" envDefault:"./data/jobs.db"`
}

type LLMConfig struct {
	Provider   string        `env:"PROVIDER" envDefault:"gemini"`
	APIKey     string        `env:"API_KEY"`
	Model      string        `env:"MODEL" envDefault:"gemini-2.5-flash"`
	BaseURL    string        `env:"BASE_URL"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"60s"`
	MaxRetries int           `env:"MAX_RETRIES" envDefault:"3"`
}

type PipelineConfig struct {
	BatchSize          int     `env:"BATCH_SIZE" envDefault:"3"`
	MinScore           float64 `env:"MIN_SCORE" envDefault:"7"`
	HighScore          float64 `env:"HIGH_SCORE" envDefault:"7"`
	RegenerateMinScore float64 `env:"REGENERATE_MIN_SCORE" envDefault:"1"`
	ScoringMode        string  `env:"SCORING_MODE" envDefault:"batch"`
}

type RedisConfig struct {
	Addr     string        `env:"ADDR"`
	Password string        `env:"PASSWORD"`
	DB       int           `env:"DB" envDefault:"0"`
	LockTTL  time.Duration `env:"LOCK_TTL" envDefault:"30m"`
}

type TelegramConfig struct {
	Token  string `env:"BOT_TOKEN"`
	ChatID int64  `env:"CHAT_ID"`
}

// Load reads an optional .env file and parses the environment into Config.
func Load() (*Config, error) {
	// a missing .env is fine outside of local development
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns a Config populated with envDefault values only.
func Default() Config {
	cfg, _ := env.ParseAsWithOptions[Config](env.Options{Environment: map[string]string{}})
	return cfg
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Env {
	case "development", "test", "production":
	default:
		errs = append(errs, fmt.Errorf("invalid APP_ENV %q", c.Env))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid APP_PORT %d", c.Port))
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver))
	}
	switch c.LLM.Provider {
	case "gemini", "openai", "groq":
	default:
		errs = append(errs, fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLM.Provider))
	}
	if c.Pipeline.BatchSize < 1 {
		errs = append(errs, errors.New("PIPELINE_BATCH_SIZE must be at least 1"))
	}
	if c.Pipeline.MinScore < 1 || c.Pipeline.MinScore > 10 {
		errs = append(errs, errors.New("PIPELINE_MIN_SCORE must be within [1,10]"))
	}
	if c.Pipeline.HighScore < 1 || c.Pipeline.HighScore > 10 {
		errs = append(errs, errors.New("PIPELINE_HIGH_SCORE must be within [1,10]"))
	}
	switch c.Pipeline.ScoringMode {
	case ScoringModeBatch, ScoringModePerJob:
	default:
		errs = append(errs, fmt.Errorf("unsupported PIPELINE_SCORING_MODE %q", c.Pipeline.ScoringMode))
	}
	if (c.Telegram.Token == "") != (c.Telegram.ChatID == 0) {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) ServerAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) TelegramEnabled() bool {
	return c.Telegram.Token != "" && c.Telegram.ChatID != 0
}

// CORSOrigins returns the trimmed origin list; empty means allow all.
func (c *Config) CORSOrigins() []string {
	out := make([]string, 0, len(c.Origins))
	for _, o := range c.Origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// String omits secrets.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env=%s, Port=%d, DB=%s, LLM=%s/%s, Batch=%d, MinScore=%g, HighScore=%g, Mode=%s, Redis=%t, Telegram=%t}",
		c.Env, c.Port, c.Database.Driver, c.LLM.Provider, c.LLM.Model,
		c.Pipeline.BatchSize, c.Pipeline.MinScore, c.Pipeline.HighScore, c.Pipeline.ScoringMode,
		c.Redis.Addr != "", c.TelegramEnabled())
}
