package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/petpath/tracksync/internal/trackimo"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Trackimo  trackimo.Credentials
	Auth      AuthConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	// LockTTL bounds how long a crashed run can hold the sync lock
	LockTTL time.Duration
}

// AuthConfig guards the trigger and admin endpoints. When Secret is empty
// those endpoints run unauthenticated (dev/test only).
type AuthConfig struct {
	Secret string
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

// LoadConfig loads configuration from environment variables and a local
// .env file. Trackimo credentials are validated eagerly: a sync service
// without a complete credential set must fail at startup, not mid-run.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5020")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("MONGODB_DATABASE", "tracksync")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("SYNC_LOCK_TTL_MINUTES", 10)
	viper.SetDefault("RATE_LIMIT_RPS", 1.0)
	viper.SetDefault("RATE_LIMIT_BURST", 3)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       0,
			LockTTL:  time.Duration(viper.GetInt("SYNC_LOCK_TTL_MINUTES")) * time.Minute,
		},
		Trackimo: trackimo.Credentials{
			Username:     viper.GetString("TRACKIMO_USERNAME"),
			Password:     viper.GetString("TRACKIMO_PASSWORD"),
			ServerURL:    viper.GetString("TRACKIMO_SERVER_URL"),
			ClientID:     viper.GetString("TRACKIMO_CLIENT_ID"),
			ClientSecret: viper.GetString("TRACKIMO_CLIENT_SECRET"),
			RedirectURI:  viper.GetString("TRACKIMO_REDIRECT_URI"),
			Whitelabel:   viper.GetString("TRACKIMO_WHITELABEL"),
		},
		Auth: AuthConfig{
			Secret: viper.GetString("AUTH_SECRET"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}

	if err := cfg.Trackimo.Validate(); err != nil {
		return nil, fmt.Errorf("trackimo config: %w", err)
	}

	return cfg, nil
}
