package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config 应用配置
type Config struct {
	ListenAddr string // device protocol socket
	AdminAddr  string // operator HTTP API + metrics
	DBPath     string
	JWTSecret  string
	RedisURL   string
	LogLevel   string

	RouterURL     string
	RouterTimeout time.Duration
	SocketTimeout time.Duration

	SnapRadius           float64 // meters
	CongestionSnapRadius float64 // meters
	LeaseDuration        time.Duration
	CongestionMaxAge     time.Duration

	RateLimit  int
	RateWindow time.Duration

	Intervals Intervals
}

// Intervals holds the sleep time between two runs of each maintenance task.
type Intervals struct {
	CleanUp           time.Duration
	SetDirection      time.Duration
	RefreshRoutes     time.Duration
	PriceUserData     time.Duration
	UpdateSpeed       time.Duration
	AggregateSpeed    time.Duration
	RecurringProblems time.Duration
}

// Load 加载配置
//
// Variables from a .env file in the working directory are loaded first; the
// file is optional.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":10101"),
		AdminAddr:  getEnv("ADMIN_ADDR", ":8080"),
		DBPath:     getEnv("DB_PATH", "./data/traffic.db"),
		JWTSecret:  os.Getenv("JWT_SECRET"), // empty disables the operator endpoints
		RedisURL:   os.Getenv("REDIS_URL"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		RouterURL:  getEnv("ROUTER_URL", "http://navigation.cloudmade.com/api/0.3/"),
	}

	var err error
	if cfg.RouterTimeout, err = getEnvDuration("ROUTER_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.SocketTimeout, err = getEnvDuration("SOCKET_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.SnapRadius, err = getEnvFloat("SNAP_RADIUS_M", 80); err != nil {
		return nil, err
	}
	if cfg.CongestionSnapRadius, err = getEnvFloat("CONGESTION_SNAP_RADIUS_M", 80); err != nil {
		return nil, err
	}
	if cfg.LeaseDuration, err = getEnvDuration("LEASE_DURATION", 86399*time.Second); err != nil {
		return nil, err
	}
	if cfg.CongestionMaxAge, err = getEnvDuration("CONGESTION_MAX_AGE", 86399*time.Second); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = getEnvInt("RATE_LIMIT", 120); err != nil {
		return nil, err
	}
	if cfg.RateWindow, err = getEnvDuration("RATE_WINDOW", time.Minute); err != nil {
		return nil, err
	}

	intervals := []struct {
		key      string
		fallback time.Duration
		dest     *time.Duration
	}{
		{"CLEANUP_INTERVAL", 30 * time.Minute, &cfg.Intervals.CleanUp},
		{"SET_DIRECTION_INTERVAL", 30 * time.Minute, &cfg.Intervals.SetDirection},
		{"REFRESH_ROUTES_INTERVAL", 2 * time.Minute, &cfg.Intervals.RefreshRoutes},
		{"PRICE_INTERVAL", 5 * time.Minute, &cfg.Intervals.PriceUserData},
		{"UPDATE_SPEED_INTERVAL", 24 * time.Hour, &cfg.Intervals.UpdateSpeed},
		{"AGGREGATE_SPEED_INTERVAL", 5 * time.Minute, &cfg.Intervals.AggregateSpeed},
		{"RECURRING_PROBLEMS_INTERVAL", 24 * time.Hour, &cfg.Intervals.RecurringProblems},
	}
	for _, iv := range intervals {
		d, err := getEnvDuration(iv.key, iv.fallback)
		if err != nil {
			return nil, err
		}
		if d <= 0 {
			return nil, fmt.Errorf("invalid %s: must be positive", iv.key)
		}
		*iv.dest = d
	}

	if cfg.SnapRadius <= 0 || cfg.CongestionSnapRadius <= 0 {
		return nil, fmt.Errorf("snap radius must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
