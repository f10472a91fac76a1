package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "nfcattend/pkg/platform/strings"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Audit sinks.
const (
	AuditSinkNone  = "none"
	AuditSinkLog   = "log"
	AuditSinkKafka = "kafka"
)

// Config is the full process configuration.
type Config struct {
	Server     Server
	Database   DatabaseConfig
	Redis      RedisConfig
	Audit      AuditConfig
	Attendance AttendanceConfig
	Log        LogConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	CORSOrigins     []string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	// Only enable it behind a proxy that overwrites those headers.
	TrustProxy bool
}

// DatabaseConfig selects and tunes the storage backend.
type DatabaseConfig struct {
	Driver       string
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig configures the optional duplicate check-in cache.
// An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// CheckInGrace is how long a check-in marker outlives its day.
	CheckInGrace time.Duration
}

// AuditConfig selects where audit events go.
type AuditConfig struct {
	Sink       string
	Brokers    []string
	Topic      string
	BufferSize int
}

// AttendanceConfig holds the check-in business switches.
type AttendanceConfig struct {
	RequireActive   bool
	DefaultDeviceID string
	MaxRangeDays    int
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string
	Format string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var errs []string
	fail := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	addr := GetEnv("ATTENDANCE_ADDR", "")
	if addr == "" {
		addr = ":" + GetEnv("PORT", "5000")
	}

	requestTimeout, err := GetEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second)
	fail(err)
	shutdownTimeout, err := GetEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	fail(err)
	maxOpen, err := GetEnvAsInt("DATABASE_MAX_OPEN_CONNS", 10)
	fail(err)
	maxIdle, err := GetEnvAsInt("DATABASE_MAX_IDLE_CONNS", 5)
	fail(err)
	poolSize, err := GetEnvAsInt("REDIS_POOL_SIZE", 10)
	fail(err)
	minIdle, err := GetEnvAsInt("REDIS_MIN_IDLE_CONNS", 2)
	fail(err)
	dialTimeout, err := GetEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second)
	fail(err)
	readTimeout, err := GetEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second)
	fail(err)
	writeTimeout, err := GetEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second)
	fail(err)
	checkInGrace, err := GetEnvAsDuration("REDIS_CHECKIN_GRACE", 5*time.Minute)
	fail(err)
	bufferSize, err := GetEnvAsInt("AUDIT_BUFFER", 256)
	fail(err)
	trustProxy, err := GetEnvAsBool("TRUST_PROXY", false)
	fail(err)
	requireActive, err := GetEnvAsBool("ATTENDANCE_REQUIRE_ACTIVE", true)
	fail(err)
	maxRange, err := GetEnvAsInt("ATTENDANCE_MAX_RANGE_DAYS", 366)
	fail(err)

	cfg := Config{
		Server: Server{
			Addr:            addr,
			CORSOrigins:     GetEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			TrustProxy:      trustProxy,
			RequestTimeout:  requestTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(GetEnv("DATABASE_DRIVER", DriverSQLite)),
			URL:          GetEnv("DATABASE_URL", "attendance.db"),
			MaxOpenConns: maxOpen,
			MaxIdleConns: maxIdle,
		},
		Redis: RedisConfig{
			URL:          GetEnv("REDIS_URL", ""),
			PoolSize:     poolSize,
			MinIdleConns: minIdle,
			DialTimeout:  dialTimeout,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CheckInGrace: checkInGrace,
		},
		Audit: AuditConfig{
			Sink:       strings.ToLower(GetEnv("AUDIT_SINK", AuditSinkLog)),
			Brokers:    GetEnvAsList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:      GetEnv("AUDIT_TOPIC", "attendance.audit"),
			BufferSize: bufferSize,
		},
		Attendance: AttendanceConfig{
			RequireActive:   requireActive,
			DefaultDeviceID: GetEnv("ATTENDANCE_DEFAULT_DEVICE", "unknown"),
			MaxRangeDays:    maxRange,
		},
		Log: LogConfig{
			Level:  strings.ToLower(GetEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(GetEnv("LOG_FORMAT", "json")),
		},
	}

	fail(cfg.Validate())
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// Validate checks enumerated values and bounds.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverMemory, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("DATABASE_DRIVER %q is not one of memory, sqlite, postgres", c.Database.Driver)
	}
	if c.Database.Driver != DriverMemory && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required for driver %s", c.Database.Driver)
	}
	switch c.Audit.Sink {
	case AuditSinkNone, AuditSinkLog:
	case AuditSinkKafka:
		if len(c.Audit.Brokers) == 0 || c.Audit.Topic == "" {
			return fmt.Errorf("KAFKA_BROKERS and AUDIT_TOPIC are required for the kafka audit sink")
		}
	default:
		return fmt.Errorf("AUDIT_SINK %q is not one of none, log, kafka", c.Audit.Sink)
	}
	if c.Attendance.MaxRangeDays < 1 {
		return fmt.Errorf("ATTENDANCE_MAX_RANGE_DAYS must be positive")
	}
	if c.Redis.CheckInGrace <= 0 {
		return fmt.Errorf("REDIS_CHECKIN_GRACE must be positive")
	}
	if c.Audit.BufferSize < 1 {
		return fmt.Errorf("AUDIT_BUFFER must be positive")
	}
	return nil
}

// GetEnv returns the environment variable or the fallback when unset.
func GetEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// GetEnvAsInt parses an integer variable, returning the fallback when unset.
func GetEnvAsInt(key string, fallback int) (int, error) {
	valueStr := GetEnv(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return fallback, fmt.Errorf("%s must be an integer: %q", key, valueStr)
	}
	return value, nil
}

// GetEnvAsBool parses a boolean variable, returning the fallback when unset.
func GetEnvAsBool(key string, fallback bool) (bool, error) {
	valueStr := GetEnv(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return fallback, fmt.Errorf("%s must be a boolean: %q", key, valueStr)
	}
	return value, nil
}

// GetEnvAsDuration parses a time.Duration variable such as "5s".
func GetEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	valueStr := GetEnv(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallback, fmt.Errorf("%s must be a duration: %q", key, valueStr)
	}
	return value, nil
}

// GetEnvAsList splits a comma separated variable, dropping empty items.
func GetEnvAsList(key string, fallback []string) []string {
	valueStr := GetEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	out := platformstrings.DedupeAndTrim(strings.Split(valueStr, ","))
	if len(out) == 0 {
		return fallback
	}
	return out
}
