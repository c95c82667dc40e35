package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DBDriver         string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	PostgresTable    string

	BaseURL         string
	CityID          string
	MaxPages        int
	PageWaitTimeout time.Duration
	ScrollPause     time.Duration
	RateLimitMs     int
	Headless        bool
	ChromeBin       string

	// Dataset constants stamped on every clean record.
	Currency string
	City     string

	RawCSVPath   string
	CleanCSVPath string

	StageRetries    int
	StageRetryDelay time.Duration
	VerifySample    int

	RedisURL string
	LockKey  string
	LockTTL  time.Duration

	MetricsAddr     string
	MetricsTextfile string
	LogLevel        string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		DBDriver:         getEnv("DB_DRIVER", "postgres"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "krisha"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "krisha"),
		PostgresDB:       getEnv("POSTGRES_DB", "krisha"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTable:    getEnv("POSTGRES_TABLE", "apartments"),

		BaseURL:         strings.TrimRight(getEnv("KRISHA_BASE_URL", "https://krisha.kz/arenda/kvartiry"), "/"),
		CityID:          getEnv("KRISHA_CITY", "almaty"),
		MaxPages:        getEnvInt("MAX_PAGES", 5),
		PageWaitTimeout: getEnvDuration("PAGE_WAIT_TIMEOUT", 10*time.Second),
		ScrollPause:     getEnvDuration("SCROLL_PAUSE", 2*time.Second),
		RateLimitMs:     getEnvInt("RATE_LIMIT_MS", 1500),
		Headless:        getEnvBool("HEADLESS", true),
		ChromeBin:       getEnv("CHROME_BIN", ""),

		Currency: getEnv("DATASET_CURRENCY", "KZT"),
		City:     getEnv("DATASET_CITY", "Алматы"),

		RawCSVPath:   getEnv("RAW_CSV_PATH", "./data/raw_apartments.csv"),
		CleanCSVPath: getEnv("CLEAN_CSV_PATH", "./data/cleaned_apartments.csv"),

		StageRetries:    getEnvInt("STAGE_RETRIES", 2),
		StageRetryDelay: getEnvDuration("STAGE_RETRY_DELAY", 5*time.Minute),
		VerifySample:    getEnvInt("VERIFY_SAMPLE", 5),

		RedisURL: getEnv("REDIS_URL", ""),
		LockKey:  getEnv("LOCK_KEY", "krisha:persist:lock"),
		LockTTL:  getEnvDuration("LOCK_TTL", 10*time.Minute),

		MetricsAddr:     getEnv("METRICS_ADDR", ""),
		MetricsTextfile: getEnv("METRICS_TEXTFILE", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "5m") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
