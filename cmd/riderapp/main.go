// Command riderapp runs a scripted booking flow against a backend: sign
// in with a phone OTP, search drivers, book a ride, then follow the ride
// to completion. It doubles as an end-to-end smoke check of the rider
// core.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecoride/ecoride/internal/auth"
	"github.com/ecoride/ecoride/internal/booking"
	"github.com/ecoride/ecoride/internal/gateway"
	"github.com/ecoride/ecoride/internal/history"
	"github.com/ecoride/ecoride/internal/lifecycle"
	"github.com/ecoride/ecoride/pkg/config"
	"github.com/ecoride/ecoride/pkg/errors"
	"github.com/ecoride/ecoride/pkg/fare"
	"github.com/ecoride/ecoride/pkg/logger"
	"github.com/ecoride/ecoride/pkg/models"
	"github.com/ecoride/ecoride/pkg/resilience"
	"github.com/ecoride/ecoride/pkg/tracing"
)

const appName = "riderapp"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.App.Environment); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("starting rider app",
		zap.String("app", appName),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	if cfg.Telemetry.SentryDSN != "" {
		sentryConfig := errors.DefaultSentryConfig()
		sentryConfig.DSN = cfg.Telemetry.SentryDSN
		sentryConfig.Release = cfg.App.Version
		if err := errors.InitSentry(sentryConfig); err != nil {
			logger.Warn("continuing without crash reporting", zap.Error(err))
		} else {
			defer errors.Flush(2 * time.Second)
		}
	}

	if cfg.Telemetry.TracingEnabled {
		tp, err := tracing.InitTracer(tracing.Config{
			ServiceName:    appName,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Environment,
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
			SampleRate:     cfg.Telemetry.TraceSampleRate,
			Enabled:        true,
		}, logger.Get())
		if err != nil {
			logger.Warn("continuing without tracing", zap.Error(err))
		} else if tp != nil {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tracing.Shutdown(shutdownCtx)
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		if ctx.Err() != nil {
			logger.Info("interrupted")
			return
		}
		logger.Error("rider app failed", zap.Error(err))
		errors.CaptureErrorWithContext(ctx, err, map[string]interface{}{
			"app":     appName,
			"version": cfg.App.Version,
		})
		errors.Flush(2 * time.Second)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	sessions := auth.NewFileStore(cfg.Auth.SessionFile)

	// The token source reads through this pointer so the gateway can be
	// built before the auth service that feeds it.
	var authSvc *auth.Service

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Resilience.RetryMaxAttempts
	retry.InitialBackoff = cfg.Resilience.RetryInitialBackoff

	gw := gateway.New(gateway.Config{
		BaseURL:      cfg.Backend.BaseURL,
		WebSocketURL: cfg.Backend.WebSocketURL,
		APIKey:       cfg.Backend.APIKey,
		Timeout:      cfg.Backend.Timeout,
		Retry:        &retry,
		Breaker: &resilience.Settings{
			Name:             "backend_reads",
			Interval:         cfg.Resilience.BreakerInterval,
			Timeout:          cfg.Resilience.BreakerTimeout,
			FailureThreshold: cfg.Resilience.BreakerFailureThreshold,
		},
	}, gateway.WithTokenSource(func() string {
		if authSvc == nil {
			return ""
		}
		if session := authSvc.CurrentSession(); session != nil {
			return session.AccessToken
		}
		return ""
	}))

	authSvc = auth.NewService(gw, sessions,
		auth.WithOTPLength(cfg.Auth.OTPLength),
		auth.WithPhoneDigits(cfg.Auth.PhoneDigits),
		auth.WithResendCooldown(cfg.Auth.ResendCooldown),
	)

	session, err := signIn(ctx, authSvc)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	errors.SetUser(session.UserID.String(), session.PhoneNumber)
	defer errors.ClearUser()
	fmt.Printf("signed in as %s\n", session.PhoneNumber)

	rates := fare.RateTable{
		models.VehicleTypeCar:  {BaseFare: cfg.Fare.CarBaseFare, PerKmRate: cfg.Fare.CarPerKmRate},
		models.VehicleTypeBike: {BaseFare: cfg.Fare.BikeBaseFare, PerKmRate: cfg.Fare.BikePerKmRate},
	}

	ride, err := bookDemoRide(ctx, session, gw, rates, float64(cfg.Booking.SearchRadiusM))
	if err != nil {
		return fmt.Errorf("book ride: %w", err)
	}
	fmt.Printf("ride %s booked, fare ₹%d\n", ride.ID, ride.Fare)

	if err := followRide(ctx, cfg, gw, ride.ID, rates); err != nil {
		return fmt.Errorf("follow ride: %w", err)
	}

	stats, err := ecoImpact(ctx, gw, session.UserID)
	if err != nil {
		logger.Warn("skipping eco impact", zap.Error(err))
		return nil
	}
	fmt.Printf("%d rides, %.1f km, ₹%d spent, %.2f kg CO2 saved (≈ %.1f trees)\n",
		stats.TotalRides, stats.TotalDistanceKm, stats.TotalSpend, stats.CO2SavedKg, stats.TreesEquivalent)
	return nil
}

// signIn restores the stored session when it still refreshes, otherwise
// walks the phone OTP flow on the terminal.
func signIn(ctx context.Context, authSvc *auth.Service) (*models.Session, error) {
	if session, err := authSvc.Refresh(ctx); err == nil && session != nil {
		return session, nil
	}

	reader := bufio.NewReader(os.Stdin)
	phone, err := prompt(reader, "phone number: ")
	if err != nil {
		return nil, err
	}
	if err := authSvc.RequestOTP(ctx, phone); err != nil {
		return nil, err
	}
	code, err := prompt(reader, "verification code: ")
	if err != nil {
		return nil, err
	}
	return authSvc.VerifyOTP(ctx, phone, code)
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// bookDemoRide runs the pre-booking flow with a fixed Bengaluru trip.
func bookDemoRide(ctx context.Context, session *models.Session, gw *gateway.Gateway, rates fare.RateTable, radiusM float64) (*models.Ride, error) {
	b := booking.New(session.UserID, gw, gw,
		booking.WithSearchRadius(radiusM),
		booking.WithRates(rates),
	)
	defer b.Close()

	b.SetPickup(models.Location{
		Coordinate: models.Coordinate{Latitude: 12.9716, Longitude: 77.5946},
		Address:    "MG Road, Bengaluru",
	})
	b.SetDestination(models.Location{
		Coordinate: models.Coordinate{Latitude: 12.9698, Longitude: 77.7500},
		Address:    "Whitefield, Bengaluru",
	})

	if err := b.FetchNearbyDrivers(ctx); err != nil {
		logger.Warn("driver search degraded", zap.Error(err))
	}
	if err := b.EstimateFare(ctx); err != nil {
		return nil, err
	}

	snap := b.Snapshot()
	fmt.Printf("%d drivers nearby, estimated fare ₹%d\n", len(snap.NearbyDrivers), derefEstimate(snap.EstimatedFare))

	return b.BookRide(ctx)
}

func derefEstimate(estimate *int64) int64 {
	if estimate == nil {
		return 0
	}
	return *estimate
}

// followRide tracks the ride until it reaches a terminal stage. Pushed
// status events drive the tracker when the feed is up; the fallback
// ticker keeps the simulation moving when it is not.
func followRide(ctx context.Context, cfg *config.Config, gw *gateway.Gateway, rideID uuid.UUID, rates fare.RateTable) error {
	tracker, err := lifecycle.NewTracker(ctx, rideID, gw,
		lifecycle.WithRates(rates),
		lifecycle.WithIntervals(cfg.Lifecycle.StageAdvanceInterval, cfg.Lifecycle.AccrualTick),
		lifecycle.WithDistancePerTick(cfg.Lifecycle.DistancePerTickKm),
	)
	if err != nil {
		return err
	}
	defer tracker.Stop()

	if feed, err := gw.SubscribeRideStatus(ctx, rideID); err != nil {
		logger.Warn("status feed unavailable, falling back to polling cadence", zap.Error(err))
	} else {
		defer feed.Close()
		go func() {
			defer errors.RecoverWithSentry()
			if err := feed.Listen(ctx, tracker.ApplyStatus); err != nil && ctx.Err() == nil {
				logger.Warn("status feed dropped", zap.Error(err))
				errors.CaptureError(err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer errors.RecoverWithSentry()
		defer close(done)
		tracker.Run(ctx)
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			snap := tracker.Snapshot()
			fmt.Printf("ride %s: final fare ₹%d\n", snap.Stage, snap.LiveFare)
			return nil
		case <-ticker.C:
			snap := tracker.Snapshot()
			fmt.Printf("  %-14s elapsed %ds, %.1f km, fare ₹%d\n",
				snap.Stage, snap.ElapsedSeconds, snap.ElapsedKm, snap.LiveFare)
		}
	}
}

func ecoImpact(ctx context.Context, gw *gateway.Gateway, userID uuid.UUID) (*history.EcoStats, error) {
	rides, err := history.NewService(gw).List(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats := history.Stats(rides)
	return &stats, nil
}
