package config

import (
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/gsarma/codejudge/internal/code"
)

// Config is loaded once at process start and treated as immutable afterwards.
type Config struct {
	Judge0 code.Judge0Config

	DatabaseURL string
	NatsURL     string
	Mode        string
	Port        string
	Environment string

	// APIKey, when set, is required as a Bearer token on every HTTP route.
	APIKey string

	RateLimitRPS      float64
	RateLimitBurst    int
	WorkerConcurrency int
	NatsConcurrency   int
}

// Load reads .env (if present) and then the process environment.
// A missing RAPIDAPI_KEY is not an error here: the client reports it per call.
func Load(logger *zap.Logger) Config {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to load .env file", zap.Error(err))
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() Config {
	judgeURL := getEnv("JUDGE0_URL", code.DefaultJudge0URL)
	return Config{
		Judge0: code.Judge0Config{
			URL:     judgeURL,
			Host:    getEnv("JUDGE0_HOST", hostOf(judgeURL)),
			APIKey:  getEnv("RAPIDAPI_KEY", ""),
			Timeout: getEnvDuration("JUDGE0_TIMEOUT", 30*time.Second),
		},
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		NatsURL:           getEnv("NATS_URL", "nats://localhost:4222"),
		Mode:              getEnv("MODE", ""),
		Port:              getEnv("PORT", "8080"),
		Environment:       getEnv("ENVIRONMENT", "production"),
		APIKey:            getEnv("API_KEY", ""),
		RateLimitRPS:      getEnvFloat("RATE_LIMIT_RPS", 2),
		RateLimitBurst:    getEnvInt("RATE_LIMIT_BURST", 5),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 5),
		NatsConcurrency:   getEnvInt("NATS_CONCURRENCY", 8),
	}
}

// NewLogger builds the process logger for the configured environment.
func (c Config) NewLogger() (*zap.Logger, error) {
	if c.Environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
