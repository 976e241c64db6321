package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	DatabaseURL        string
	RedisURL           string
	NATSURL            string
	NATSSubject        string
	JWTSecret          string
	TokenTTL           time.Duration
	ActivityCacheTTL   time.Duration
	ActivityWindowDays int
	RecentFeedLimit    int
	StreamTickInterval time.Duration
	StreamKeepAlive    time.Duration
	SeedEnabled        bool
	SeedToken          string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PULSE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Pulseboard API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("nats.subject", "pulseboard.activity.delta")
	v.SetDefault("token.ttl", "24h")
	v.SetDefault("activity.cache_ttl", "30s")
	v.SetDefault("activity.window_days", 7)
	v.SetDefault("activity.recent_limit", 10)
	v.SetDefault("stream.tick_interval", "30s")
	v.SetDefault("stream.keep_alive", "30s")
	v.SetDefault("seed.enabled", false)

	tokenTTL, err := parseDurationKey(v, "token.ttl", 24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	cacheTTL, err := parseDurationKey(v, "activity.cache_ttl", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	tickInterval, err := parseDurationKey(v, "stream.tick_interval", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	keepAlive, err := parseDurationKey(v, "stream.keep_alive", 30*time.Second)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		DatabaseURL:        v.GetString("database.url"),
		RedisURL:           v.GetString("redis.url"),
		NATSURL:            v.GetString("nats.url"),
		NATSSubject:        v.GetString("nats.subject"),
		JWTSecret:          v.GetString("jwt.secret"),
		TokenTTL:           tokenTTL,
		ActivityCacheTTL:   cacheTTL,
		ActivityWindowDays: v.GetInt("activity.window_days"),
		RecentFeedLimit:    v.GetInt("activity.recent_limit"),
		StreamTickInterval: tickInterval,
		StreamKeepAlive:    keepAlive,
		SeedEnabled:        v.GetBool("seed.enabled"),
		SeedToken:          v.GetString("seed.token"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.ActivityWindowDays <= 0 {
		cfg.ActivityWindowDays = 7
	}

	if cfg.RecentFeedLimit <= 0 {
		cfg.RecentFeedLimit = 10
	}

	return cfg, nil
}

func parseDurationKey(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := v.GetString(key)
	if raw == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return parsed, nil
}
