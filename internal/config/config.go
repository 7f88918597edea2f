package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the engine.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Calendar     CalendarConfig
	Compliance   ComplianceConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// CalendarConfig describes the business-hours week. Holidays is a CSV of
// ISO dates; a ":working" suffix keeps the date a working day.
type CalendarConfig struct {
	StartHour   int
	EndHour     int
	WorkingDays []string
	Holidays    []HolidayEntry
	Timezone    string
}

// HolidayEntry is one parsed holiday.
type HolidayEntry struct {
	Date    string
	Working bool
}

// ComplianceConfig controls the recurring SLA enforcement pass.
type ComplianceConfig struct {
	IntervalMinutes      int
	WarningWindowMinutes int
	WarningDedupMinutes  int
	BreachDedupHours     int
	WorkerLimit          int
}

// Interval returns the tick cadence.
func (c ComplianceConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// WarningWindow returns the approaching-deadline horizon.
func (c ComplianceConfig) WarningWindow() time.Duration {
	return time.Duration(c.WarningWindowMinutes) * time.Minute
}

// WarningDedup returns the warning suppression window.
func (c ComplianceConfig) WarningDedup() time.Duration {
	return time.Duration(c.WarningDedupMinutes) * time.Minute
}

// BreachDedup returns the breach suppression window.
func (c ComplianceConfig) BreachDedup() time.Duration {
	return time.Duration(c.BreachDedupHours) * time.Hour
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	holidays, err := parseHolidays(getEnv("CALENDAR_HOLIDAYS", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "sla-engine"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Calendar: CalendarConfig{
			StartHour:   getEnvAsInt("CALENDAR_START_HOUR", 9),
			EndHour:     getEnvAsInt("CALENDAR_END_HOUR", 17),
			WorkingDays: splitCSV(getEnv("CALENDAR_WORKING_DAYS", "Mon,Tue,Wed,Thu,Fri")),
			Holidays:    holidays,
			Timezone:    getEnv("CALENDAR_TIMEZONE", "UTC"),
		},
		Compliance: ComplianceConfig{
			IntervalMinutes:      getEnvAsInt("COMPLIANCE_INTERVAL_MINUTES", 15),
			WarningWindowMinutes: getEnvAsInt("COMPLIANCE_WARNING_WINDOW_MINUTES", 120),
			WarningDedupMinutes:  getEnvAsInt("COMPLIANCE_WARNING_DEDUP_MINUTES", 120),
			BreachDedupHours:     getEnvAsInt("COMPLIANCE_BREACH_DEDUP_HOURS", 24),
			WorkerLimit:          getEnvAsInt("COMPLIANCE_WORKER_LIMIT", 4),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func parseHolidays(raw string) ([]HolidayEntry, error) {
	entries := []HolidayEntry{}
	for _, item := range splitCSV(raw) {
		working := false
		date := item
		if strings.HasSuffix(item, ":working") {
			working = true
			date = strings.TrimSuffix(item, ":working")
		}
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return nil, fmt.Errorf("invalid holiday date %q: %w", date, err)
		}
		entries = append(entries, HolidayEntry{Date: date, Working: working})
	}
	return entries, nil
}

func splitCSV(raw string) []string {
	parts := []string{}
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
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

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
