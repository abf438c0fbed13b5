package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"brainsync-client/internal/pkg/validation"

	"github.com/joho/godotenv"
)

const (
	TransportWebSocket = "websocket"
	TransportNATS      = "nats"

	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	App      AppConfig
	API      APIConfig
	Realtime RealtimeConfig
	Session  SessionConfig
	Cache    CacheConfig
	Tracing  TracingConfig
}

type AppConfig struct {
	Environment         string `validate:"required"`
	LogFilePath         string `validate:"required"`
	RealtimeLogFilePath string `validate:"required"`
}

type APIConfig struct {
	BaseURL        string        `validate:"required,url"`
	RequestTimeout time.Duration `validate:"gt=0"`
}

type RealtimeConfig struct {
	Enabled    bool
	Transport  string        `validate:"oneof=websocket nats"`
	WSURL      string        `validate:"required_if=Transport websocket,omitempty,url"`
	NatsURL    string        `validate:"required_if=Transport nats"`
	MinBackoff time.Duration `validate:"gt=0"`
	MaxBackoff time.Duration `validate:"gtefield=MinBackoff"`
}

type SessionConfig struct {
	Store          string `validate:"oneof=file memory redis"`
	FilePath       string `validate:"required_if=Store file"`
	RedisURL       string `validate:"required_if=Store redis"`
	RedisKeyPrefix string
}

type CacheConfig struct {
	KeepUnusedFor time.Duration `validate:"gte=0"`
}

type TracingConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	baseURL := getEnv("API_URL", "http://localhost:5000/api/v1")

	return &Config{
		App: AppConfig{
			Environment:         getEnv("GO_ENV", "development"),
			LogFilePath:         getEnv("LOG_FILE_PATH", "brainsync.log"),
			RealtimeLogFilePath: getEnv("REALTIME_LOG_FILE_PATH", "brainsync-realtime.log"),
		},
		API: APIConfig{
			BaseURL:        baseURL,
			RequestTimeout: getEnvAsDuration("API_REQUEST_TIMEOUT", 30*time.Second),
		},
		Realtime: RealtimeConfig{
			Enabled:    getEnvAsBool("REALTIME_ENABLED", true),
			Transport:  getEnv("REALTIME_TRANSPORT", TransportWebSocket),
			WSURL:      getEnv("REALTIME_WS_URL", DefaultWSURL(baseURL)),
			NatsURL:    getEnv("NATS_URL", "nats://localhost:4222"),
			MinBackoff: getEnvAsDuration("REALTIME_MIN_BACKOFF", 500*time.Millisecond),
			MaxBackoff: getEnvAsDuration("REALTIME_MAX_BACKOFF", 30*time.Second),
		},
		Session: SessionConfig{
			Store:          getEnv("SESSION_STORE", StoreFile),
			FilePath:       getEnv("SESSION_FILE_PATH", defaultSessionFile()),
			RedisURL:       getEnv("REDIS_URL", ""),
			RedisKeyPrefix: getEnv("SESSION_REDIS_PREFIX", "brainsync:session:"),
		},
		Cache: CacheConfig{
			KeepUnusedFor: getEnvAsDuration("CACHE_KEEP_UNUSED_FOR", 60*time.Second),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvAsBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "brainsync-client"),
		},
	}
}

func (c *Config) Validate() error {
	return validation.ValidateRequest(c)
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// DefaultWSURL derives the push endpoint from the REST base URL:
// http://host/api/v1 -> ws://host/api/v1/ws
func DefaultWSURL(baseURL string) string {
	switch {
	case len(baseURL) >= 8 && baseURL[:8] == "https://":
		return "wss://" + baseURL[8:] + "/ws"
	case len(baseURL) >= 7 && baseURL[:7] == "http://":
		return "ws://" + baseURL[7:] + "/ws"
	}
	return baseURL + "/ws"
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".brainsync-session.json"
	}
	return filepath.Join(dir, "brainsync", "session.json")
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}
