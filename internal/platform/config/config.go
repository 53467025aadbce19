package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/pscheid92/pxsession/internal/domain"
	"go-simpler.org/env"
)

const DefaultAPIBaseURL = "https://core.push.express/api/r/v2"

type Config struct {
	AppID          string `env:"PX_APP_ID"`
	ExtID          string `env:"PX_EXT_ID"`
	APIBaseURL     string `env:"PX_API_BASE_URL" default:"https://core.push.express/api/r/v2"`
	TransportType  string `env:"PX_TRANSPORT_TYPE" default:"fcm"`
	TransportToken string `env:"PX_TRANSPORT_TOKEN"`
	MaxTags        int    `env:"PX_MAX_TAGS" default:"32"`

	HTTPTimeout time.Duration `env:"PX_HTTP_TIMEOUT" default:"30s"`
	EventRate   float64       `env:"PX_EVENT_RATE" default:"20"`
	EventBurst  int           `env:"PX_EVENT_BURST" default:"50"`

	RedisURL         string `env:"REDIS_URL"`
	RedisKey         string `env:"PX_REDIS_KEY" default:"px:session"`
	LifecycleChannel string `env:"PX_LIFECYCLE_CHANNEL" default:"px:lifecycle"`

	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.AppID == "" {
		return errors.New("PX_APP_ID is required")
	}

	if !domain.TransportType(cfg.TransportType).Valid() {
		return fmt.Errorf("PX_TRANSPORT_TYPE must be one of fcm, fcm.data, onesignal, apns, got %q", cfg.TransportType)
	}

	u, err := url.Parse(cfg.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("PX_API_BASE_URL must be an absolute URL, got %q", cfg.APIBaseURL)
	}

	if cfg.MaxTags < 1 {
		return errors.New("PX_MAX_TAGS must be at least 1")
	}
	if cfg.HTTPTimeout <= 0 {
		return errors.New("PX_HTTP_TIMEOUT must be positive")
	}
	if cfg.EventRate <= 0 || cfg.EventBurst < 1 {
		return errors.New("PX_EVENT_RATE and PX_EVENT_BURST must be positive")
	}

	return nil
}
