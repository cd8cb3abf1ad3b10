package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all rider-core configuration
type Config struct {
	App        AppConfig
	Backend    BackendConfig
	Fare       FareConfig
	Booking    BookingConfig
	Lifecycle  LifecycleConfig
	Auth       AuthConfig
	Resilience ResilienceConfig
	Telemetry  TelemetryConfig
}

// AppConfig identifies the build
type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

// BackendConfig points the core at the hosted API
type BackendConfig struct {
	BaseURL      string
	WebSocketURL string
	APIKey       string
	Timeout      time.Duration
}

// FareConfig carries the rate card; whole rupees
type FareConfig struct {
	CarBaseFare   float64
	CarPerKmRate  float64
	BikeBaseFare  float64
	BikePerKmRate float64
}

// BookingConfig tunes the pre-booking flow
type BookingConfig struct {
	SearchRadiusM int
}

// LifecycleConfig tunes the in-ride trackers
type LifecycleConfig struct {
	StageAdvanceInterval time.Duration // fallback simulator cadence when no push arrives
	AccrualTick          time.Duration
	DistancePerTickKm    float64
}

// AuthConfig tunes the phone sign-in flow
type AuthConfig struct {
	OTPLength      int
	PhoneDigits    int
	ResendCooldown time.Duration
	SessionFile    string
}

// ResilienceConfig tunes retry and breaker behaviour for remote reads
type ResilienceConfig struct {
	RetryMaxAttempts        int
	RetryInitialBackoff     time.Duration
	BreakerFailureThreshold uint32
	BreakerTimeout          time.Duration
	BreakerInterval         time.Duration
}

// TelemetryConfig wires tracing and crash reporting
type TelemetryConfig struct {
	TracingEnabled  bool
	OTLPEndpoint    string
	TraceSampleRate float64
	SentryDSN       string
}

// Load reads configuration from the environment, with an optional .env
// overlay for local development. Defaults cover a local backend.
func Load() (*Config, error) {
	// Missing .env is fine; env vars win either way.
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "ecoride"),
			Version:     getEnv("APP_VERSION", "dev"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Backend: BackendConfig{
			BaseURL:      getEnv("BACKEND_BASE_URL", "http://localhost:8080"),
			WebSocketURL: getEnv("BACKEND_WS_URL", "ws://localhost:8080"),
			APIKey:       getEnv("BACKEND_API_KEY", ""),
			Timeout:      getEnvAsDuration("BACKEND_TIMEOUT", 10*time.Second),
		},
		Fare: FareConfig{
			CarBaseFare:   getEnvAsFloat("FARE_CAR_BASE", 30),
			CarPerKmRate:  getEnvAsFloat("FARE_CAR_PER_KM", 15),
			BikeBaseFare:  getEnvAsFloat("FARE_BIKE_BASE", 15),
			BikePerKmRate: getEnvAsFloat("FARE_BIKE_PER_KM", 6),
		},
		Booking: BookingConfig{
			SearchRadiusM: getEnvAsInt("BOOKING_SEARCH_RADIUS_M", 5000),
		},
		Lifecycle: LifecycleConfig{
			StageAdvanceInterval: getEnvAsDuration("LIFECYCLE_STAGE_INTERVAL", 10*time.Second),
			AccrualTick:          getEnvAsDuration("LIFECYCLE_ACCRUAL_TICK", time.Second),
			DistancePerTickKm:    getEnvAsFloat("LIFECYCLE_KM_PER_TICK", 0.1),
		},
		Auth: AuthConfig{
			OTPLength:      getEnvAsInt("AUTH_OTP_LENGTH", 4),
			PhoneDigits:    getEnvAsInt("AUTH_PHONE_DIGITS", 10),
			ResendCooldown: getEnvAsDuration("AUTH_RESEND_COOLDOWN", 30*time.Second),
			SessionFile:    getEnv("AUTH_SESSION_FILE", defaultSessionFile()),
		},
		Resilience: ResilienceConfig{
			RetryMaxAttempts:        getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			RetryInitialBackoff:     getEnvAsDuration("RETRY_INITIAL_BACKOFF", time.Second),
			BreakerFailureThreshold: uint32(getEnvAsInt("CB_FAILURE_THRESHOLD", 5)),
			BreakerTimeout:          getEnvAsDuration("CB_TIMEOUT", 30*time.Second),
			BreakerInterval:         getEnvAsDuration("CB_INTERVAL", 60*time.Second),
		},
		Telemetry: TelemetryConfig{
			TracingEnabled:  getEnvAsBool("TRACING_ENABLED", false),
			OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			TraceSampleRate: getEnvAsFloat("TRACE_SAMPLE_RATE", 1.0),
			SentryDSN:       getEnv("SENTRY_DSN", ""),
		},
	}

	if cfg.Booking.SearchRadiusM <= 0 {
		cfg.Booking.SearchRadiusM = 5000
	}
	if cfg.Lifecycle.StageAdvanceInterval <= 0 {
		cfg.Lifecycle.StageAdvanceInterval = 10 * time.Second
	}
	if cfg.Lifecycle.AccrualTick <= 0 {
		cfg.Lifecycle.AccrualTick = time.Second
	}
	if cfg.Auth.OTPLength <= 0 {
		cfg.Auth.OTPLength = 4
	}

	return cfg, nil
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ecoride-session.json"
	}
	return home + "/.ecoride/session.json"
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
