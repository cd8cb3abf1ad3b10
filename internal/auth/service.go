package auth

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecoride/ecoride/pkg/common"
	"github.com/ecoride/ecoride/pkg/logger"
	"github.com/ecoride/ecoride/pkg/models"
	"github.com/ecoride/ecoride/pkg/tracing"
	"github.com/ecoride/ecoride/pkg/validation"
)

const (
	// DefaultResendCooldown throttles repeat OTP requests per phone.
	DefaultResendCooldown = 30 * time.Second

	defaultPhoneDigits = 10
	defaultOTPLength   = 4
)

// Service manages phone-OTP sign-in and the persisted session.
type Service struct {
	mu sync.Mutex

	backend Backend
	store   SessionStore

	current     *models.Session
	lastRequest map[string]time.Time

	phoneDigits    int
	otpLength      int
	resendCooldown time.Duration
	now            func() time.Time
}

// Option configures the auth service.
type Option func(*Service)

// WithOTPLength overrides the expected verification code length.
func WithOTPLength(length int) Option {
	return func(s *Service) {
		if length > 0 {
			s.otpLength = length
		}
	}
}

// WithPhoneDigits overrides the expected mobile number length.
func WithPhoneDigits(digits int) Option {
	return func(s *Service) {
		if digits > 0 {
			s.phoneDigits = digits
		}
	}
}

// WithResendCooldown overrides the per-phone OTP throttle.
func WithResendCooldown(cooldown time.Duration) Option {
	return func(s *Service) {
		if cooldown > 0 {
			s.resendCooldown = cooldown
		}
	}
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the auth service.
func NewService(backend Backend, store SessionStore, opts ...Option) *Service {
	s := &Service{
		backend:        backend,
		store:          store,
		lastRequest:    make(map[string]time.Time),
		phoneDigits:    defaultPhoneDigits,
		otpLength:      defaultOTPLength,
		resendCooldown: DefaultResendCooldown,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestOTP asks the backend to send a verification code. The phone is
// validated locally first and repeat requests are throttled so the resend
// button cannot hammer the SMS gateway.
func (s *Service) RequestOTP(ctx context.Context, phone string) error {
	ctx, span := tracing.StartSpan(ctx, "auth", "RequestOTP")
	defer span.End()

	if err := validation.ValidatePhone(phone, s.phoneDigits); err != nil {
		return err
	}

	s.mu.Lock()
	if last, ok := s.lastRequest[phone]; ok {
		if wait := s.resendCooldown - s.now().Sub(last); wait > 0 {
			s.mu.Unlock()
			return common.NewConflictError("verification code already sent, retry shortly")
		}
	}
	s.mu.Unlock()

	if err := s.backend.RequestOTP(ctx, phone); err != nil {
		tracing.RecordError(ctx, err)
		return err
	}

	s.mu.Lock()
	s.lastRequest[phone] = s.now()
	s.mu.Unlock()

	logger.InfoContext(ctx, "verification code requested")
	return nil
}

// VerifyOTP exchanges the code for a session, persists it, and makes it
// current. The code is validated locally before any remote call.
func (s *Service) VerifyOTP(ctx context.Context, phone, code string) (*models.Session, error) {
	ctx, span := tracing.StartSpan(ctx, "auth", "VerifyOTP")
	defer span.End()

	if err := validation.ValidatePhone(phone, s.phoneDigits); err != nil {
		return nil, err
	}
	if err := validation.ValidateOTP(code, s.otpLength); err != nil {
		return nil, err
	}

	session, err := s.backend.VerifyOTP(ctx, phone, code)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	if session == nil {
		return nil, common.NewUnauthorizedError("verification produced no session")
	}
	if session.PhoneNumber == "" {
		session.PhoneNumber = phone
	}

	s.adoptSession(ctx, session)
	logger.InfoContext(ctx, "signed in", zap.String("user_id", session.UserID.String()))
	return s.CurrentSession(), nil
}

// Refresh restores the session without re-prompting: the stored session's
// refresh token is exchanged for a fresh one. A refresh the backend
// rejects clears the stored session so a stale token is never reused.
func (s *Service) Refresh(ctx context.Context) (*models.Session, error) {
	ctx, span := tracing.StartSpan(ctx, "auth", "Refresh")
	defer span.End()

	s.mu.Lock()
	session := s.current
	s.mu.Unlock()

	if session == nil {
		stored, err := s.store.Load()
		if err != nil {
			return nil, err
		}
		session = stored
	}
	if session == nil || session.RefreshToken == "" {
		return nil, common.NewUnauthorizedError("no stored session")
	}

	fresh, err := s.backend.RefreshSession(ctx, session.RefreshToken)
	if err != nil {
		tracing.RecordError(ctx, err)
		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()
		if clearErr := s.store.Clear(); clearErr != nil {
			logger.WarnContext(ctx, "failed to clear stale session", zap.Error(clearErr))
		}
		return nil, err
	}
	if fresh == nil {
		return nil, common.NewUnauthorizedError("refresh produced no session")
	}

	// Carry identity forward when the refresh response omits it
	if fresh.PhoneNumber == "" {
		fresh.PhoneNumber = session.PhoneNumber
	}
	if fresh.UserID == uuid.Nil {
		fresh.UserID = session.UserID
	}

	s.adoptSession(ctx, fresh)
	return s.CurrentSession(), nil
}

// SignOut revokes the session remotely and clears it locally. Local state
// is cleared even when the remote revoke fails: the user asked to leave.
func (s *Service) SignOut(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "auth", "SignOut")
	defer span.End()

	s.mu.Lock()
	session := s.current
	s.current = nil
	s.mu.Unlock()

	var revokeErr error
	if session != nil {
		revokeErr = s.backend.SignOut(ctx, session.AccessToken)
		if revokeErr != nil {
			logger.WarnContext(ctx, "remote sign-out failed", zap.Error(revokeErr))
		}
	}

	if err := s.store.Clear(); err != nil {
		return err
	}
	logger.InfoContext(ctx, "signed out")
	return revokeErr
}

// CurrentSession returns a copy of the in-memory session, or nil.
func (s *Service) CurrentSession() *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	session := *s.current
	return &session
}

// adoptSession fills the expiry from the token, persists, and sets current.
func (s *Service) adoptSession(ctx context.Context, session *models.Session) {
	if session.ExpiresAt.IsZero() {
		if exp, ok := tokenExpiry(session.AccessToken); ok {
			session.ExpiresAt = exp
		}
	}

	s.mu.Lock()
	s.current = session
	s.mu.Unlock()

	if err := s.store.Save(session); err != nil {
		logger.WarnContext(ctx, "failed to persist session", zap.Error(err))
	}
}

// tokenExpiry reads the exp claim without verifying the signature. The
// backend signs tokens; the client only needs to know when to refresh.
func tokenExpiry(accessToken string) (time.Time, bool) {
	if accessToken == "" {
		return time.Time{}, false
	}

	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(accessToken, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}

	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
