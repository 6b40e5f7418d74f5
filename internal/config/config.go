package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the session core.
type Config struct {
	App    AppConfig
	API    APIConfig
	Stream StreamConfig
	Redis  RedisConfig
	Logger LoggerConfig
	Stub   StubConfig
}

// AppConfig controls agent level behavior.
type AppConfig struct {
	Name    string
	Env     string
	Version string
}

// APIConfig points the client at the protected REST surface.
type APIConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// StreamConfig controls the push-stream connection.
type StreamConfig struct {
	URL                   string
	ReconnectDelaySeconds int
}

// RedisConfig holds connection values for the preference store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// StubConfig configures the local development backend.
type StubConfig struct {
	Host                  string
	Port                  string
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	PushIntervalSeconds   int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "market-session"),
			Env:     getEnv("APP_ENV", "development"),
			Version: getEnv("APP_VERSION", "dev"),
		},
		API: APIConfig{
			BaseURL:        getEnv("API_BASE_URL", "http://localhost:8080"),
			TimeoutSeconds: getEnvAsInt("API_TIMEOUT_SECONDS", 15),
		},
		Stream: StreamConfig{
			URL:                   getEnv("STREAM_URL", "http://localhost:8080/sse"),
			ReconnectDelaySeconds: getEnvAsInt("STREAM_RECONNECT_DELAY_SECONDS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Stub: StubConfig{
			Host:                  getEnv("STUB_HOST", "0.0.0.0"),
			Port:                  getEnv("STUB_PORT", "8080"),
			JWTSecret:             getEnv("STUB_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("STUB_ACCESS_TOKEN_TTL_MINUTES", 15),
			BcryptCost:            getEnvAsInt("STUB_BCRYPT_COST", 10),
			PushIntervalSeconds:   getEnvAsInt("STUB_PUSH_INTERVAL_SECONDS", 20),
		},
	}

	return cfg, nil
}

// Timeout returns the configured request timeout duration.
func (a APIConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// ReconnectDelay returns the fixed delay before a reconnect attempt.
func (s StreamConfig) ReconnectDelay() time.Duration {
	if s.ReconnectDelaySeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.ReconnectDelaySeconds) * time.Second
}

// Addr returns the stub backend bind address.
func (s StubConfig) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

// PushInterval returns the delay between generated push batches.
func (s StubConfig) PushInterval() time.Duration {
	if s.PushIntervalSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(s.PushIntervalSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
