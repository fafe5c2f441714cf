package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string

	StorageBaseURL string
	StoragePath    string

	ImageAPIKey     string
	ImageBaseURL    string
	ImageModel      string
	ImageTimeout    time.Duration
	VideoAPIKey     string
	VideoBaseURL    string
	VideoModel      string
	VideoTimeout    time.Duration
	VideoPollPeriod time.Duration

	RateLimitWindow        time.Duration
	RateLimitFreePerWin    int
	RateLimitProPerWin     int
	RateLimitPremiumPerWin int
	HTTPThrottlePerMin     int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),

		ImageAPIKey:     os.Getenv("IMAGE_API_KEY"),
		ImageBaseURL:    getEnv("IMAGE_BASE_URL", "https://api.imagesynth.example.com/v1"),
		ImageModel:      getEnv("IMAGE_MODEL", "frame-diffusion-xl"),
		ImageTimeout:    time.Second * time.Duration(getEnvInt("IMAGE_TIMEOUT_SECONDS", 45)),
		VideoAPIKey:     os.Getenv("VIDEO_API_KEY"),
		VideoBaseURL:    getEnv("VIDEO_BASE_URL", "https://api.frameblend.example.com/v1"),
		VideoModel:      getEnv("VIDEO_MODEL", "interpolate-v2"),
		VideoTimeout:    time.Second * time.Duration(getEnvInt("VIDEO_TIMEOUT_SECONDS", 300)),
		VideoPollPeriod: time.Second * time.Duration(getEnvInt("VIDEO_POLL_SECONDS", 5)),

		RateLimitWindow:        time.Minute * time.Duration(getEnvInt("RATE_LIMIT_WINDOW_MINUTES", 60)),
		RateLimitFreePerWin:    getEnvInt("RATE_LIMIT_FREE", 5),
		RateLimitProPerWin:     getEnvInt("RATE_LIMIT_PRO", 30),
		RateLimitPremiumPerWin: getEnvInt("RATE_LIMIT_PREMIUM", 120),
		HTTPThrottlePerMin:     getEnvInt("HTTP_THROTTLE_PER_MINUTE", 120),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
