package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database Configuration
	Database DatabaseConfig

	// Redis Configuration
	Redis RedisConfig

	// Storage backend for the key/blob repositories
	Storage StorageConfig

	// JWT Configuration
	JWT JWTConfig

	// Service Ports
	Services ServiceConfig

	// Email Configuration
	Email EmailConfig

	// Security Configuration
	Security SecurityConfig

	// Background Jobs
	Jobs JobConfig

	// Catalog sources
	Catalog CatalogConfig

	// Logging
	Logger LoggerConfig

	// Internationalization
	I18n I18nConfig
}

type DatabaseConfig struct {
	Host           string
	Port           int
	Name           string
	User           string
	Password       string
	SSLMode        string
	MaxConnections int
	MaxIdle        int
}

type RedisConfig struct {
	Host           string
	Port           int
	Password       string
	DB             int
	MaxConnections int
}

type StorageConfig struct {
	Driver    string // memory, redis, postgres
	KeyPrefix string
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

type ServiceConfig struct {
	APIGateway       int
	NotificationHTTP int
	NotificationGRPC int
	NotificationURL  string
	NotificationRPC  string
	RelayTimeout     time.Duration
}

type EmailConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	From          string
	FromName      string
	OperatorEmail string
	OperatorName  string
	Enabled       bool
	// TestAnyRecipient lets /api/test-email mail addresses other than the
	// operator.
	TestAnyRecipient bool
}

type SecurityConfig struct {
	BCryptCost        int
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSOrigins       []string
	AdminEmails       []string
}

type JobConfig struct {
	WorkerCount    int
	RetryAttempts  int
	RetryDelay     time.Duration
	ReminderSpec   string
	PromoteSpec    string
	QueueKeyPrefix string
}

type CatalogConfig struct {
	CSVPath  string
	JSONPath string
}

type LoggerConfig struct {
	Mode       string // development, production
	Level      string
	FileEnable bool
	Filename   string
}

type I18nConfig struct {
	DefaultLanguage    string
	SupportedLanguages []string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() *Config {
	_ = godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),

		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnvInt("DB_PORT", 5432),
			Name:           getEnv("DB_NAME", "gear_rental"),
			User:           getEnv("DB_USER", "gear_rental"),
			Password:       getEnv("DB_PASSWORD", ""),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxConnections: getEnvInt("DB_MAX_CONNECTIONS", 20),
			MaxIdle:        getEnvInt("DB_MAX_IDLE", 5),
		},

		Redis: RedisConfig{
			Host:           getEnv("REDIS_HOST", "localhost"),
			Port:           getEnvInt("REDIS_PORT", 6379),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getEnvInt("REDIS_DB", 0),
			MaxConnections: getEnvInt("REDIS_MAX_CONNECTIONS", 20),
		},

		Storage: StorageConfig{
			Driver:    getEnv("STORAGE_DRIVER", "memory"),
			KeyPrefix: getEnv("STORAGE_KEY_PREFIX", "passionfruit"),
		},

		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your_jwt_secret_key"),
			Expiry: getEnvDuration("JWT_EXPIRY", 7*24*time.Hour),
		},

		Services: ServiceConfig{
			APIGateway:       getEnvInt("API_GATEWAY_PORT", 8080),
			NotificationHTTP: getEnvInt("NOTIFICATION_SERVICE_PORT", 8083),
			NotificationGRPC: getEnvInt("NOTIFICATION_SERVICE_GRPC_PORT", 50053),
			NotificationURL:  getEnv("NOTIFICATION_SERVICE_URL", "http://localhost:8083"),
			NotificationRPC:  getEnv("NOTIFICATION_SERVICE_GRPC_ADDR", "localhost:50053"),
			RelayTimeout:     getEnvDuration("NOTIFICATION_RELAY_TIMEOUT", 10*time.Second),
		},

		Email: EmailConfig{
			Host:          getEnv("EMAIL_HOST", "smtp.gmail.com"),
			Port:          getEnvInt("EMAIL_PORT", 587),
			User:          getEnv("EMAIL_USER", ""),
			Password:      getEnv("EMAIL_PASSWORD", ""),
			From:          getEnv("EMAIL_FROM", "noreply@passionfruit.in"),
			FromName:      getEnv("EMAIL_FROM_NAME", "PassionFruit"),
			OperatorEmail: getEnv("OPERATOR_EMAIL", "bookings@passionfruit.in"),
			OperatorName:  getEnv("OPERATOR_NAME", "PassionFruit Bookings"),
			Enabled:       getEnvBool("EMAIL_ENABLED", true),

			TestAnyRecipient: getEnvBool("EMAIL_TEST_ANY_RECIPIENT", false),
		},

		Security: SecurityConfig{
			BCryptCost:        getEnvInt("BCRYPT_COST", 12),
			RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 100),
			RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
			CORSOrigins:       splitList(getEnv("CORS_ORIGINS", "*")),
			AdminEmails:       splitList(getEnv("ADMIN_EMAILS", "")),
		},

		Jobs: JobConfig{
			WorkerCount:    getEnvInt("WORKER_COUNT", 2),
			RetryAttempts:  getEnvInt("JOB_RETRY_ATTEMPTS", 3),
			RetryDelay:     getEnvDuration("JOB_RETRY_DELAY", 30*time.Second),
			ReminderSpec:   getEnv("REMINDER_CRON", "0 9 * * *"),
			PromoteSpec:    getEnv("PROMOTE_CRON", "@every 5s"),
			QueueKeyPrefix: getEnv("JOB_QUEUE_PREFIX", "passionfruit:jobs"),
		},

		Catalog: CatalogConfig{
			CSVPath:  getEnv("CATALOG_CSV_PATH", "data/products.csv"),
			JSONPath: getEnv("CATALOG_JSON_PATH", "data/products.json"),
		},

		Logger: LoggerConfig{
			Mode:       getEnv("LOG_MODE", "development"),
			Level:      getEnv("LOG_LEVEL", "info"),
			FileEnable: getEnvBool("LOG_FILE_ENABLE", false),
			Filename:   getEnv("LOG_FILE", "logs/gear-rental.log"),
		},

		I18n: I18nConfig{
			DefaultLanguage:    getEnv("DEFAULT_LANGUAGE", "en"),
			SupportedLanguages: splitList(getEnv("SUPPORTED_LANGUAGES", "en,hi")),
		},
	}

	return config
}

// IsAdmin reports whether email is on the admin allow-list.
func (c *Config) IsAdmin(email string) bool {
	for _, admin := range c.Security.AdminEmails {
		if strings.EqualFold(admin, strings.TrimSpace(email)) {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
