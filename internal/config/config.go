// Package config loads controller configuration from a .env file
// overlaid by the process environment, the way the teacher's
// internal/config package loads MARBLE_ENV-gated settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment names the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

// ParseEnvironment maps a raw string to an Environment, defaulting to
// Development when unset or unrecognized.
func ParseEnvironment(raw string) Environment {
	switch Environment(raw) {
	case Testing:
		return Testing
	case Production:
		return Production
	default:
		return Development
	}
}

// StoreConfig configures the state store adapter (C1).
type StoreConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// BandwidthConfig carries the fixed capacity constants the allocation
// core (C7) needs but cannot derive from store data alone.
type BandwidthConfig struct {
	DiskCapMbps    float64
	ProxyCapMbps   float64
	NumProxies     int
	ShaveTolerance float64
}

// RESTConfig configures the HTTP transport.
type RESTConfig struct {
	BindAddr               string
	JWTPublicKeyPath       string
	AuthDisabled           bool
	LegacyParseErrorStatus bool
}

// Config is the controller's full runtime configuration.
type Config struct {
	Env Environment

	Store     StoreConfig
	Bandwidth BandwidthConfig
	REST      RESTConfig

	ActorStopDeadline    time.Duration
	ControllerPollJitter time.Duration

	ControllerSeedPath  string
	ObjectTypeSeedPath  string

	LogLevel  string
	LogFormat string
}

// Load reads a .env file (if present) and then overlays process
// environment variables, mirroring the teacher's Load() precedence.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: load env file: %w", err)
		}
	}

	cfg := &Config{
		Env: ParseEnvironment(getenv("POLICYCTL_ENV", string(Development))),
		Store: StoreConfig{
			RedisAddr:     getenv("POLICYCTL_REDIS_ADDR", "localhost:6379"),
			RedisPassword: getenv("POLICYCTL_REDIS_PASSWORD", ""),
			RedisDB:       getenvInt("POLICYCTL_REDIS_DB", 0),
		},
		Bandwidth: BandwidthConfig{
			DiskCapMbps:    getenvFloat("POLICYCTL_DISK_CAP_MBPS", 1000),
			ProxyCapMbps:   getenvFloat("POLICYCTL_PROXY_CAP_MBPS", 2000),
			NumProxies:     getenvInt("POLICYCTL_NUM_PROXIES", 3),
			ShaveTolerance: getenvFloat("POLICYCTL_SHAVE_TOLERANCE", 1e-6),
		},
		REST: RESTConfig{
			BindAddr:               getenv("POLICYCTL_BIND_ADDR", ":8080"),
			JWTPublicKeyPath:       getenv("POLICYCTL_JWT_PUBLIC_KEY", ""),
			AuthDisabled:           getenvBool("POLICYCTL_AUTH_DISABLED", false),
			LegacyParseErrorStatus: getenvBool("POLICYCTL_LEGACY_PARSE_ERROR_STATUS", false),
		},
		ActorStopDeadline:    getenvDuration("POLICYCTL_ACTOR_STOP_DEADLINE", 5*time.Second),
		ControllerPollJitter: getenvDuration("POLICYCTL_CONTROLLER_POLL_JITTER", 0),
		ControllerSeedPath:   getenv("POLICYCTL_CONTROLLERS_SEED", ""),
		ObjectTypeSeedPath:   getenv("POLICYCTL_OBJECT_TYPES_SEED", ""),
		LogLevel:             getenv("POLICYCTL_LOG_LEVEL", "info"),
		LogFormat:            getenv("POLICYCTL_LOG_FORMAT", "text"),
	}

	if cfg.Bandwidth.NumProxies <= 0 {
		return nil, fmt.Errorf("config: POLICYCTL_NUM_PROXIES must be positive, got %d", cfg.Bandwidth.NumProxies)
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
