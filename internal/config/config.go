package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Detector  DetectorConfig
	Upstream  UpstreamConfig
	Summary   SummaryConfig
	Cache     CacheConfig
	Alerts    AlertConfig
	Channels  ChannelConfig
	Cron      CronConfig
	DB        DatabaseConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DetectorConfig struct {
	Interval            time.Duration // how often a full detection cycle runs
	SweepInterval       time.Duration // how often overdue alerts are expired
	WallBudget          time.Duration // hard wall-clock budget for one cycle
	WorkerCount         int
	RetryBackoff        time.Duration // pause before the single upstream retry
	Regions             []string      // always-monitored regions, on top of subscriber regions
	DispatchOnSupersede bool          // re-notify subscribers when severity changes
}

type UpstreamConfig struct {
	WeatherBaseURL   string
	WeatherTimeout   time.Duration
	NominatimBaseURL string
	NominatimTimeout time.Duration
}

type SummaryConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	Timeout      time.Duration
	MaxNarrative int // rune cap on stored narratives
}

type CacheConfig struct {
	TTL time.Duration
}

type AlertConfig struct {
	TTL time.Duration // active alert horizon before the expiry sweep retires it
}

type ChannelConfig struct {
	TelegramToken   string
	TelegramBaseURL string
	TwilioSID       string
	TwilioToken     string
	TwilioFrom      string
	TwilioBaseURL   string
	SendTimeout     time.Duration
}

type CronConfig struct {
	Secret string // shared secret for the operational trigger endpoints
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

type RateLimitConfig struct {
	RPS int
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Detector: DetectorConfig{
			Interval:            getEnvDuration("DETECTOR_INTERVAL", 6*time.Hour),
			SweepInterval:       getEnvDuration("EXPIRY_SWEEP_INTERVAL", 30*time.Minute),
			WallBudget:          getEnvDuration("CYCLE_WALL_BUDGET", 10*time.Minute),
			WorkerCount:         getEnvInt("DETECTOR_WORKERS", 4),
			RetryBackoff:        getEnvDuration("RETRY_BACKOFF", 500*time.Millisecond),
			Regions:             getEnvList("MONITORED_REGIONS", nil),
			DispatchOnSupersede: getEnvBool("DISPATCH_ON_SUPERSEDE", true),
		},
		Upstream: UpstreamConfig{
			WeatherBaseURL:   getEnv("NASA_POWER_URL", "https://power.larc.nasa.gov/api/temporal/daily/point"),
			WeatherTimeout:   getEnvDuration("WEATHER_TIMEOUT", 30*time.Second),
			NominatimBaseURL: getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org/search"),
			NominatimTimeout: getEnvDuration("NOMINATIM_TIMEOUT", 10*time.Second),
		},
		Summary: SummaryConfig{
			APIKey:       getEnv("OPENROUTER_API_KEY", ""),
			BaseURL:      getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
			Model:        getEnv("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
			Timeout:      getEnvDuration("SUMMARY_TIMEOUT", 60*time.Second),
			MaxNarrative: getEnvInt("MAX_NARRATIVE_LEN", 2000),
		},
		Cache: CacheConfig{
			TTL: getEnvDuration("CACHE_TTL", 24*time.Hour),
		},
		Alerts: AlertConfig{
			TTL: getEnvDuration("ALERT_TTL", 72*time.Hour),
		},
		Channels: ChannelConfig{
			TelegramToken:   getEnv("TELEGRAM_BOT_TOKEN", ""),
			TelegramBaseURL: getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
			TwilioSID:       getEnv("TWILIO_ACCOUNT_SID", ""),
			TwilioToken:     getEnv("TWILIO_AUTH_TOKEN", ""),
			TwilioFrom:      getEnv("TWILIO_WHATSAPP_NUMBER", ""),
			TwilioBaseURL:   getEnv("TWILIO_API_URL", "https://api.twilio.com"),
			SendTimeout:     getEnvDuration("CHANNEL_SEND_TIMEOUT", 15*time.Second),
		},
		Cron: CronConfig{
			Secret: getEnv("CRON_SECRET", ""),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/climate-alerts.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		RateLimit: RateLimitConfig{
			RPS: getEnvInt("RATE_LIMIT_RPS", 5),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Detector.Interval < time.Minute {
		return fmt.Errorf("detector interval must be at least 1 minute")
	}
	if c.Detector.WorkerCount < 1 {
		return fmt.Errorf("detector worker count must be positive")
	}
	if c.Detector.WallBudget <= 0 {
		return fmt.Errorf("cycle wall budget must be positive")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	if c.Alerts.TTL <= 0 {
		return fmt.Errorf("alert TTL must be positive")
	}
	if c.Cron.Secret == "" {
		return fmt.Errorf("CRON_SECRET must be set")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
