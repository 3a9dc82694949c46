package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database    DatabaseConfig
	Queue       QueueConfig
	Worker      WorkerConfig
	Maintenance MaintenanceConfig
	HTTP        HTTPConfig
	Scraper     ScraperConfig
	Log         LogConfig
}

// DatabaseConfig describes the PostgreSQL connection.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

// QueueConfig controls task retries and claiming.
type QueueConfig struct {
	MaxRetries        int
	RetryDelay        time.Duration
	VisibilityTimeout time.Duration
}

// WorkerConfig controls the consuming side of the queue.
type WorkerConfig struct {
	Queues       []string
	Concurrency  int
	PollInterval time.Duration
}

// MaintenanceConfig controls stale-listing deactivation.
type MaintenanceConfig struct {
	StaleAfterDays int
	Interval       time.Duration // 0 disables the periodic schedule
}

// HTTPConfig controls the listings API.
type HTTPConfig struct {
	Addr     string
	APIToken string
}

// ScraperConfig controls the headless scraping client.
type ScraperConfig struct {
	StartURL        string
	PagesToScrape   int
	ListingsPerPage int
	RateLimitMs     int
	MaxRetries      int
	ChromeBin       string
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string
	Format string // "json" or "text"
}

// Load reads the given .env file (if it exists) and returns a populated Config.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			DBName:   getEnv("POSTGRES_DB", "realestate"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns: getEnvInt("POSTGRES_MAX_CONNS", 10),
		},
		Queue: QueueConfig{
			MaxRetries:        getEnvInt("TASK_MAX_RETRIES", 3),
			RetryDelay:        getEnvDuration("TASK_RETRY_DELAY", 60*time.Second),
			VisibilityTimeout: getEnvDuration("TASK_VISIBILITY_TIMEOUT", 10*time.Minute),
		},
		Worker: WorkerConfig{
			Queues:       getEnvList("WORKER_QUEUES", []string{"listings", "maintenance"}),
			Concurrency:  getEnvInt("WORKER_CONCURRENCY", 4),
			PollInterval: getEnvDuration("WORKER_POLL_INTERVAL", time.Second),
		},
		Maintenance: MaintenanceConfig{
			StaleAfterDays: getEnvInt("STALE_AFTER_DAYS", 30),
			Interval:       getEnvDuration("MAINTENANCE_INTERVAL", 24*time.Hour),
		},
		HTTP: HTTPConfig{
			Addr:     getEnv("HTTP_ADDR", ":8000"),
			APIToken: getEnv("API_TOKEN", ""),
		},
		Scraper: ScraperConfig{
			StartURL:        getEnv("SCRAPER_START_URL", "https://www.airbnb.com/s/Berlin/homes"),
			PagesToScrape:   getEnvInt("PAGES_TO_SCRAPE", 2),
			ListingsPerPage: getEnvInt("LISTINGS_PER_PAGE", 20),
			RateLimitMs:     getEnvInt("RATE_LIMIT_MS", 2000),
			MaxRetries:      getEnvInt("SCRAPER_MAX_RETRIES", 3),
			ChromeBin:       getEnv("CHROME_BIN", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
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

// getEnvDuration accepts Go duration strings ("90s") or a bare number of seconds.
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

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
