package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Engine   EngineConfig
	Hub      HubConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	RealtimeLogPath    string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
}

type DatabaseConfig struct {
	Connection string // empty disables the transcript store
}

// EngineConfig describes how to reach the external inference engine.
type EngineConfig struct {
	BaseURL     string
	ProcessPath string
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

type HubConfig struct {
	SessionTimeout   time.Duration
	SweepInterval    time.Duration
	EventRetention   int
	HistoryCapacity  int
	SubmitRateLimit  int // 0 disables rate limiting
	SubmitRateWindow time.Duration
	ProcessTopic     string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			RealtimeLogPath:    getEnv("REALTIME_LOG_FILE_PATH", "logs/realtime.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			JwtSecret:          getEnv("JWT_SECRET", "default_secret"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Engine: EngineConfig{
			BaseURL:     getEnv("ENGINE_BASE_URL", "http://localhost:8000"),
			ProcessPath: getEnv("ENGINE_PROCESS_PATH", "/process"),
			Timeout:     getEnvAsDuration("ENGINE_TIMEOUT", 30*time.Second),
			MaxRetries:  getEnvAsInt("ENGINE_MAX_RETRIES", 3),
			BackoffBase: getEnvAsDuration("ENGINE_BACKOFF_BASE", time.Second),
			BackoffMax:  getEnvAsDuration("ENGINE_BACKOFF_MAX", 5*time.Second),
		},
		Hub: HubConfig{
			SessionTimeout:   getEnvAsDuration("SESSION_TIMEOUT", time.Hour),
			SweepInterval:    getEnvAsDuration("SWEEP_INTERVAL", 15*time.Minute),
			EventRetention:   getEnvAsInt("EVENT_RETENTION", 1000),
			HistoryCapacity:  getEnvAsInt("EVENT_HISTORY_CAPACITY", 100),
			SubmitRateLimit:  getEnvAsInt("SUBMIT_RATE_LIMIT", 0),
			SubmitRateWindow: getEnvAsDuration("SUBMIT_RATE_WINDOW", time.Minute),
			ProcessTopic:     getEnv("EVENT_PROCESS_TOPIC", "event.process"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("30s") or a bare number of milliseconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if d, err := time.ParseDuration(strValue); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
