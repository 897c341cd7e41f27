// Package config loads engine configuration the way tyemirov-utils's
// viperconfig.Reporter does — viper.New(), AutomaticEnv, explicit defaults —
// in place of the teacher's raw os.Getenv/strconv pairs, while keeping the
// teacher's flat Config struct shape.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable the engine's components read at startup.
type Config struct {
	Env  string
	Port int

	DBURL string

	// Processor
	MaxConcurrentJobs  int
	JobTimeout         time.Duration
	DispatchInterval   time.Duration
	RetryBaseDelay     time.Duration
	RetryBackoffFactor float64
	RetryMaxDelay      time.Duration

	// Scheduler
	ScheduleCheckInterval time.Duration

	// Worker pool
	HealthCheckInterval     time.Duration
	GracefulShutdownTimeout time.Duration
	LoadBalanceStrategy     string

	// Monitor
	MetricsCollectionInterval time.Duration
	AlertCheckInterval        time.Duration
	HistoryCapacity           int

	// JWT (kept for the admin HTTP surface, grounded on the teacher's auth config)
	JWTSecret           string
	JWTAccessTTLMinutes int
	JWTRefreshTTLDays   int

	// Redis (event bus relay transport)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Operator account seeded at startup (internal/db.EnsureAdminUser)
	AdminEmail    string
	AdminPassword string
	AdminName     string
	AdminRole     string
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app_env", "dev")
	v.SetDefault("port", 8080)

	v.SetDefault("db_host", "127.0.0.1")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "jobforge")
	v.SetDefault("db_password", "jobforge")
	v.SetDefault("db_name", "jobforge")
	v.SetDefault("db_sslmode", "disable")

	v.SetDefault("max_concurrent_jobs", 10)
	v.SetDefault("job_timeout_seconds", 300)
	v.SetDefault("dispatch_interval_ms", 500)
	v.SetDefault("retry_base_delay_seconds", 2)
	v.SetDefault("retry_backoff_factor", 2.0)
	v.SetDefault("retry_max_delay_seconds", 3600)

	v.SetDefault("schedule_check_interval_seconds", 30)

	v.SetDefault("health_check_interval_seconds", 30)
	v.SetDefault("graceful_shutdown_timeout_seconds", 30)
	v.SetDefault("load_balance_strategy", "least_loaded")

	v.SetDefault("metrics_collection_interval_seconds", 60)
	v.SetDefault("alert_check_interval_seconds", 30)
	v.SetDefault("history_capacity", 1440)

	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_access_ttl_minutes", 60)
	v.SetDefault("jwt_refresh_ttl_days", 30)

	v.SetDefault("redis_addr", "127.0.0.1:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("admin_email", "")
	v.SetDefault("admin_password", "")
	v.SetDefault("admin_name", "operator")
	v.SetDefault("admin_role", "operator")

	return Config{
		Env:  v.GetString("app_env"),
		Port: v.GetInt("port"),

		DBURL: buildDBURL(v),

		MaxConcurrentJobs:  v.GetInt("max_concurrent_jobs"),
		JobTimeout:         time.Duration(v.GetInt("job_timeout_seconds")) * time.Second,
		DispatchInterval:   time.Duration(v.GetInt("dispatch_interval_ms")) * time.Millisecond,
		RetryBaseDelay:     time.Duration(v.GetInt("retry_base_delay_seconds")) * time.Second,
		RetryBackoffFactor: v.GetFloat64("retry_backoff_factor"),
		RetryMaxDelay:      time.Duration(v.GetInt("retry_max_delay_seconds")) * time.Second,

		ScheduleCheckInterval: time.Duration(v.GetInt("schedule_check_interval_seconds")) * time.Second,

		HealthCheckInterval:     time.Duration(v.GetInt("health_check_interval_seconds")) * time.Second,
		GracefulShutdownTimeout: time.Duration(v.GetInt("graceful_shutdown_timeout_seconds")) * time.Second,
		LoadBalanceStrategy:     v.GetString("load_balance_strategy"),

		MetricsCollectionInterval: time.Duration(v.GetInt("metrics_collection_interval_seconds")) * time.Second,
		AlertCheckInterval:        time.Duration(v.GetInt("alert_check_interval_seconds")) * time.Second,
		HistoryCapacity:           v.GetInt("history_capacity"),

		JWTSecret:           v.GetString("jwt_secret"),
		JWTAccessTTLMinutes: v.GetInt("jwt_access_ttl_minutes"),
		JWTRefreshTTLDays:   v.GetInt("jwt_refresh_ttl_days"),

		RedisAddr:     v.GetString("redis_addr"),
		RedisPassword: v.GetString("redis_password"),
		RedisDB:       v.GetInt("redis_db"),

		AdminEmail:    v.GetString("admin_email"),
		AdminPassword: v.GetString("admin_password"),
		AdminName:     v.GetString("admin_name"),
		AdminRole:     v.GetString("admin_role"),
	}
}

func buildDBURL(v *viper.Viper) string {
	host := v.GetString("db_host")
	port := v.GetString("db_port")
	user := v.GetString("db_user")
	pass := v.GetString("db_password")
	name := v.GetString("db_name")
	ssl := v.GetString("db_sslmode")

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, name, ssl)
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}
