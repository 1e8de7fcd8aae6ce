// Package config читает конфигурацию процессов из окружения.
//
// Файл .env подгружается в main через godotenv до вызова Load.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config — конфигурация всех процессов Courier.
type Config struct {
	// Инфраструктура
	DatabaseURL string
	RabbitMQURL string

	// Порты HTTP (healthz, metrics, API)
	SchedulerPort int
	ConductorPort int
	APIPort       int

	// Планировщик
	AlertBefore    time.Duration
	MaxAlertGap    time.Duration
	NudgeAfter     time.Duration
	LeaderTickSpec string
	LeaseTTL       time.Duration

	// Conductor
	GapTriggersAt       time.Duration
	DispatchMaxRetries  int
	DispatchRetryDelay  time.Duration
	TriggerPollInterval time.Duration
	DispatchStallAfter  time.Duration
	ConductorDrain      time.Duration

	// Внешние сервисы
	SenderURL        string
	SenderRatePerSec float64
	SenderTimeout    time.Duration
	ShortenerURL     string
	ShortenerToken   string
	AppURL           string
}

// Load читает конфигурацию из переменных окружения.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseURL = getEnv("DB_URL", "")
	cfg.RabbitMQURL = getEnv("RABBITMQ_URL", "")

	cfg.SchedulerPort = getEnvInt("SCHED_PORT", 8081)
	cfg.ConductorPort = getEnvInt("CONDUCTOR_PORT", 8083)
	cfg.APIPort = getEnvInt("API_PORT", 8080)

	cfg.AlertBefore = time.Duration(getEnvInt("ALERT_BEFORE_IN_MIN", 30)) * time.Minute
	cfg.MaxAlertGap = time.Duration(getEnvInt("MAX_ALERT_GAP_IN_MIN", 180)) * time.Minute
	cfg.NudgeAfter = getEnvDuration("NUDGE_AFTER", 24*time.Hour)
	cfg.LeaderTickSpec = getEnv("LEADER_TICK_SPEC", "@every 1m")
	cfg.LeaseTTL = getEnvDuration("LEASE_TTL", 3*time.Minute)

	cfg.GapTriggersAt = time.Duration(getEnvInt("GAP_TRIGGERS_AT", 60)) * time.Second
	cfg.DispatchMaxRetries = getEnvInt("DISPATCH_MAX_RETRIES", 3)
	cfg.DispatchRetryDelay = getEnvDuration("DISPATCH_RETRY_DELAY", time.Second)
	cfg.TriggerPollInterval = getEnvDuration("TRIGGER_POLL_INTERVAL", 10*time.Second)
	cfg.DispatchStallAfter = getEnvDuration("DISPATCH_STALL_AFTER", 5*time.Minute)
	cfg.ConductorDrain = getEnvDuration("CONDUCTOR_DRAIN_TIMEOUT", 10*time.Second)

	cfg.SenderURL = getEnv("SENDER_URL", "http://localhost:9090")
	cfg.SenderRatePerSec = getEnvFloat("SENDER_RATE_PER_SEC", 50)
	cfg.SenderTimeout = getEnvDuration("SENDER_TIMEOUT", 10*time.Second)
	cfg.ShortenerURL = getEnv("SHORTENER_URL", "")
	cfg.ShortenerToken = getEnv("SHORTENER_TOKEN", "")
	cfg.AppURL = getEnv("APP_URL", "http://localhost:3000")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность значений.
func (c *Config) Validate() error {
	var errs []error
	if c.AlertBefore < 0 {
		errs = append(errs, errors.New("ALERT_BEFORE_IN_MIN must not be negative"))
	}
	if c.MaxAlertGap <= c.AlertBefore {
		errs = append(errs, fmt.Errorf("MAX_ALERT_GAP_IN_MIN (%v) must exceed ALERT_BEFORE_IN_MIN (%v)", c.MaxAlertGap, c.AlertBefore))
	}
	if c.GapTriggersAt < 0 {
		errs = append(errs, errors.New("GAP_TRIGGERS_AT must not be negative"))
	}
	if c.DispatchMaxRetries < 0 {
		errs = append(errs, errors.New("DISPATCH_MAX_RETRIES must not be negative"))
	}
	if c.TriggerPollInterval <= 0 {
		errs = append(errs, errors.New("TRIGGER_POLL_INTERVAL must be positive"))
	}
	if c.DispatchStallAfter <= c.SenderTimeout+c.DispatchRetryDelay {
		errs = append(errs, fmt.Errorf("DISPATCH_STALL_AFTER (%v) must exceed SENDER_TIMEOUT + DISPATCH_RETRY_DELAY", c.DispatchStallAfter))
	}
	if c.SenderRatePerSec <= 0 {
		errs = append(errs, errors.New("SENDER_RATE_PER_SEC must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
