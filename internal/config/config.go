package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppPort string

	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	RedisAddr string
	RedisDB   int

	IdempTTLSecs int

	// Transfer gateway (payment provider)
	GatewayBaseURL string
	GatewayAPIKey  string
	GatewayTimeout time.Duration

	// Notification webhook sink; empty disables dispatch.
	NotifyBaseURL string
	NotifyTimeout time.Duration

	// Repayment sweep
	SweepCron    string // cron spec with seconds field
	SweepWorkers int
	MaxRetries   int
	RetryBackoff time.Duration
	GraceDays    int
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getenvDuration(k string, d time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			return dur
		}
	}
	return d
}

func Load() *Config {
	return &Config{
		AppPort:   getenv("APP_PORT", "8080"),
		MySQLHost: getenv("MYSQL_HOST", "mysql"),
		MySQLPort: getenv("MYSQL_PORT", "3306"),
		MySQLDB:   getenv("MYSQL_DB", "hearthpay"),
		MySQLUser: getenv("MYSQL_USER", "hearthpay"),
		MySQLPass: getenv("MYSQL_PASS", "hearthpay"),

		RedisAddr:    getenv("REDIS_ADDR", "redis:6379"),
		RedisDB:      getenvInt("REDIS_DB", 0),
		IdempTTLSecs: getenvInt("IDEMPOTENCY_TTL_SECONDS", 300),

		GatewayBaseURL: getenv("GATEWAY_BASE_URL", "http://gateway:9090"),
		GatewayAPIKey:  getenv("GATEWAY_API_KEY", ""),
		GatewayTimeout: getenvDuration("GATEWAY_TIMEOUT", 10*time.Second),

		NotifyBaseURL: getenv("NOTIFY_BASE_URL", ""),
		NotifyTimeout: getenvDuration("NOTIFY_TIMEOUT", 5*time.Second),

		// Daily at 06:00 UTC; the leading field is seconds.
		SweepCron:    getenv("SWEEP_CRON", "0 0 6 * * *"),
		SweepWorkers: getenvInt("SWEEP_WORKERS", 8),
		MaxRetries:   getenvInt("MAX_RETRIES", 3),
		RetryBackoff: getenvDuration("RETRY_BACKOFF", 24*time.Hour),
		GraceDays:    getenvInt("GRACE_DAYS", 3),
	}
}

func (c *Config) Validate() error {
	if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
		return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
	}
	// ensure port is valid
	if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
		return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
	}
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	if c.GatewayBaseURL == "" {
		return errors.New("missing GATEWAY_BASE_URL")
	}
	if c.SweepWorkers < 1 {
		return errors.New("SWEEP_WORKERS must be at least 1")
	}
	if c.MaxRetries < 0 {
		return errors.New("MAX_RETRIES must not be negative")
	}
	if c.GraceDays < 0 {
		return errors.New("GRACE_DAYS must not be negative")
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// multiStatements=true is handy for migrations; parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?multiStatements=true&parseTime=true&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}
