package errors

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/ecoride/ecoride/pkg/common"
	"github.com/ecoride/ecoride/pkg/logger"
)

// SentryConfig holds configuration for Sentry crash reporting.
type SentryConfig struct {
	DSN              string
	Environment      string
	Release          string
	SampleRate       float64
	Debug            bool
	AttachStacktrace bool
}

// DefaultSentryConfig reads the Sentry configuration from the environment.
func DefaultSentryConfig() *SentryConfig {
	return &SentryConfig{
		DSN:              os.Getenv("SENTRY_DSN"),
		Environment:      getEnvironment(),
		Release:          os.Getenv("SENTRY_RELEASE"),
		SampleRate:       getSampleRate(),
		Debug:            os.Getenv("SENTRY_DEBUG") == "true",
		AttachStacktrace: true,
	}
}

// InitSentry initializes the Sentry SDK with the given configuration.
func InitSentry(config *SentryConfig) error {
	if config.DSN == "" {
		return fmt.Errorf("sentry DSN is not configured")
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              config.DSN,
		Environment:      config.Environment,
		Release:          config.Release,
		SampleRate:       config.SampleRate,
		Debug:            config.Debug,
		AttachStacktrace: config.AttachStacktrace,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			if event.Level == sentry.LevelInfo || event.Level == sentry.LevelDebug {
				return nil
			}
			return event
		},
		BeforeBreadcrumb: func(breadcrumb *sentry.Breadcrumb, hint *sentry.BreadcrumbHint) *sentry.Breadcrumb {
			// Keep auth material out of crash reports
			if breadcrumb.Category == "http" && breadcrumb.Data != nil {
				delete(breadcrumb.Data, "Authorization")
				delete(breadcrumb.Data, "Cookie")
				delete(breadcrumb.Data, "X-API-Key")
			}
			return breadcrumb
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}

	return nil
}

// Flush flushes the Sentry buffer
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// CaptureError captures an error and sends it to Sentry. Expected
// domain failures are dropped; only unexpected errors are reported.
func CaptureError(err error) *sentry.EventID {
	if err == nil || !ShouldReport(err) {
		return nil
	}
	return sentry.CaptureException(err)
}

// CaptureErrorWithContext captures an error with correlation and extra data.
func CaptureErrorWithContext(ctx context.Context, err error, extras map[string]interface{}) *sentry.EventID {
	if err == nil || !ShouldReport(err) {
		return nil
	}

	var eventID *sentry.EventID
	sentry.WithScope(func(scope *sentry.Scope) {
		for key, value := range extras {
			scope.SetExtra(key, value)
		}
		if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
			scope.SetTag("correlation_id", correlationID)
		}
		eventID = sentry.CaptureException(err)
	})

	return eventID
}

// RecoverWithSentry recovers from panic, reports it, and re-panics.
func RecoverWithSentry() {
	if err := recover(); err != nil {
		sentry.CurrentHub().Recover(err)
		sentry.Flush(2 * time.Second)
		panic(err)
	}
}

// AddBreadcrumbForRequest records an HTTP request breadcrumb.
func AddBreadcrumbForRequest(method, url string, statusCode int, duration time.Duration) {
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "http",
		Category:  "http.request",
		Level:     sentry.LevelInfo,
		Message:   fmt.Sprintf("%s %s", method, url),
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"method":      method,
			"url":         url,
			"status_code": statusCode,
			"duration_ms": duration.Milliseconds(),
		},
	})
}

// AddRideBreadcrumb records a ride lifecycle event for crash context.
func AddRideBreadcrumb(rideID, event string) {
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "default",
		Category:  "ride",
		Level:     sentry.LevelInfo,
		Message:   event,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"ride_id": rideID,
		},
	})
}

// SetUser sets the user context for subsequent events.
func SetUser(userID, phoneNumber string) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetUser(sentry.User{
			ID:       userID,
			Username: phoneNumber,
		})
	})
}

// ClearUser removes the user context, e.g. after sign-out.
func ClearUser() {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetUser(sentry.User{})
	})
}

// ShouldReport determines whether an error is worth a crash report.
// Validation failures, auth rejections, and other expected domain
// outcomes are noise; network and unknown failures are signal.
func ShouldReport(err error) bool {
	if err == nil {
		return false
	}

	kind, ok := common.KindOf(err)
	if !ok {
		return true
	}

	switch kind {
	case common.KindValidation,
		common.KindNotFound,
		common.KindConflict,
		common.KindUnauthorized,
		common.KindPermissionDenied:
		return false
	default:
		return true
	}
}

func getEnvironment() string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = os.Getenv("SENTRY_ENVIRONMENT")
	}
	if env == "" {
		env = "development"
	}
	return env
}

func getSampleRate() float64 {
	rate := os.Getenv("SENTRY_SAMPLE_RATE")
	if rate == "" {
		return 1.0
	}

	var sampleRate float64
	fmt.Sscanf(rate, "%f", &sampleRate)
	return sampleRate
}
