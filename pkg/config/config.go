package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Daktela  DaktelaConfig
	Assembly AssemblyAIConfig
	Gemini   GeminiConfig
	Storage  StorageConfig
	Pipeline PipelineConfig
	Sync     SyncConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	Environment     string
	AllowedOrigins  []string
	ShutdownTimeout int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	Name        string
	SSLMode     string
	MaxConns    int
	MinConns    int
	AutoMigrate bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret        string
	Expiry        time.Duration
	AdminUsername string
	AdminPassword string
}

// DaktelaConfig holds call platform configuration
type DaktelaConfig struct {
	BaseURL  string
	Login    string
	Password string
	TokenTTL time.Duration
}

// AssemblyAIConfig holds speech-to-text configuration
type AssemblyAIConfig struct {
	APIKey       string
	LanguageCode string
	Keyterms     []string
}

// GeminiConfig holds LLM configuration
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// StorageConfig holds recording archive configuration
type StorageConfig struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	UseSSL          bool
}

// PipelineConfig holds scheduler and worker pool configuration
type PipelineConfig struct {
	Enabled                  bool
	Interval                 time.Duration
	BatchSize                int
	StaleThreshold           time.Duration
	StaleRetryLimit          int
	TranscriptionParallelism int
	AnalysisParallelism      int
	RetryMaxAttempts         int
	RetryInitialBackoff      time.Duration
	AnalysisMaxAttempts      int
	AnalysisRetryBaseDelay   time.Duration
}

// SyncConfig holds call ingestion configuration
type SyncConfig struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables or defaults")
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Host:            getEnv("HOST", "0.0.0.0"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			AllowedOrigins:  []string{getEnv("ALLOWED_ORIGINS", "http://localhost:3000")},
			ShutdownTimeout: getEnvAsInt("SHUTDOWN_TIMEOUT", 10),
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "5432"),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "postgres"),
			Name:        getEnv("DB_NAME", "callqa"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			MaxConns:    getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:    getEnvAsInt("DB_MIN_CONNS", 5),
			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:        getEnv("JWT_SECRET", "change-me-in-production"),
			Expiry:        getEnvAsDuration("JWT_EXPIRY", "24h"),
			AdminUsername: getEnv("AUTH_USERNAME", "admin"),
			AdminPassword: getEnv("AUTH_PASSWORD", ""),
		},
		Daktela: DaktelaConfig{
			BaseURL:  strings.TrimRight(getEnv("DAKTELA_URL", ""), "/"),
			Login:    getEnv("DAKTELA_LOGIN", ""),
			Password: getEnv("DAKTELA_PASSWORD", ""),
			TokenTTL: getEnvAsDuration("DAKTELA_TOKEN_TTL", "24h"),
		},
		Assembly: AssemblyAIConfig{
			APIKey:       getEnv("ASSEMBLYAI_API_KEY", ""),
			LanguageCode: getEnv("TRANSCRIPTION_LANGUAGE", "pl"),
			Keyterms:     getEnvAsSlice("TRANSCRIPTION_KEYTERMS", nil),
		},
		Gemini: GeminiConfig{
			APIKey:  getEnv("GEMINI_API_KEY", ""),
			BaseURL: getEnv("GEMINI_API_URL", "https://generativelanguage.googleapis.com"),
			Model:   getEnv("GEMINI_MODEL", "gemini-2.5-flash-lite"),
		},
		Storage: StorageConfig{
			Enabled:         getEnvAsBool("STORAGE_ENABLED", false),
			Endpoint:        getEnv("STORAGE_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
			SecretAccessKey: getEnv("STORAGE_SECRET_KEY", "minioadmin"),
			BucketName:      getEnv("STORAGE_BUCKET", "call-recordings"),
			UseSSL:          getEnvAsBool("STORAGE_USE_SSL", false),
		},
		Pipeline: PipelineConfig{
			Enabled:                  getEnvAsBool("PIPELINE_ENABLED", false),
			Interval:                 getEnvAsDuration("PIPELINE_INTERVAL", "1m"),
			BatchSize:                getEnvAsInt("PIPELINE_BATCH_SIZE", 10),
			StaleThreshold:           getEnvAsDuration("PIPELINE_STALE_THRESHOLD", "15m"),
			StaleRetryLimit:          getEnvAsInt("PIPELINE_STALE_RETRY_LIMIT", 3),
			TranscriptionParallelism: getEnvAsInt("TRANSCRIPTION_PARALLELISM", 3),
			AnalysisParallelism:      getEnvAsInt("ANALYSIS_PARALLELISM", 5),
			RetryMaxAttempts:         getEnvAsInt("POOL_RETRY_MAX_ATTEMPTS", 3),
			RetryInitialBackoff:      getEnvAsDuration("POOL_RETRY_INITIAL_BACKOFF", "5s"),
			AnalysisMaxAttempts:      getEnvAsInt("ANALYSIS_RETRY_MAX_ATTEMPTS", 5),
			AnalysisRetryBaseDelay:   getEnvAsDuration("ANALYSIS_RETRY_BASE_DELAY", "5s"),
		},
		Sync: SyncConfig{
			Enabled:   getEnvAsBool("SYNC_ENABLED", false),
			Interval:  getEnvAsDuration("SYNC_INTERVAL", "5m"),
			BatchSize: getEnvAsInt("SYNC_BATCH_SIZE", 100),
		},
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Pipeline.Enabled {
		if c.Assembly.APIKey == "" {
			return fmt.Errorf("ASSEMBLYAI_API_KEY is required when the pipeline is enabled")
		}
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when the pipeline is enabled")
		}
	}
	if (c.Pipeline.Enabled || c.Sync.Enabled) && c.Daktela.BaseURL == "" {
		return fmt.Errorf("DAKTELA_URL is required when the pipeline or sync is enabled")
	}
	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
