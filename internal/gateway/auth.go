package gateway

import (
	"context"

	"github.com/ecoride/ecoride/pkg/models"
)

type otpRequest struct {
	Phone string `json:"phone"`
}

type otpVerifyRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RequestOTP asks the backend to send a one-time code to the phone.
func (g *Gateway) RequestOTP(ctx context.Context, phone string) error {
	return g.postJSON(ctx, "/v1/auth/otp", "request otp", otpRequest{Phone: phone}, nil)
}

// VerifyOTP exchanges the code for a session. Single shot: a replayed
// verification would consume a fresh code.
func (g *Gateway) VerifyOTP(ctx context.Context, phone, code string) (*models.Session, error) {
	var session models.Session
	req := otpVerifyRequest{Phone: phone, Code: code}
	if err := g.postJSON(ctx, "/v1/auth/verify", "verify otp", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// RefreshSession exchanges a refresh token for a new session.
func (g *Gateway) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	var session models.Session
	req := refreshRequest{RefreshToken: refreshToken}
	if err := g.postJSON(ctx, "/v1/auth/refresh", "refresh session", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SignOut revokes the session server-side. The access token is passed
// explicitly so sign-out works even after the token source is cleared.
func (g *Gateway) SignOut(ctx context.Context, accessToken string) error {
	headers := map[string]string{"Authorization": "Bearer " + accessToken}
	_, err := g.client.Post(ctx, "/v1/auth/signout", nil, headers)
	if err != nil {
		return mapError(err, "sign out")
	}
	return nil
}
