package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/bbernstein/weathervis-go/internal/services/scope"
)

// SessionCookie is the cookie carrying the selected campaign.
const SessionCookie = "weathervis_session"

const sessionTTL = 30 * 24 * time.Hour

// sessionClaims is the signed cookie payload.
type sessionClaims struct {
	CampaignID string `json:"campaign_id,omitempty"`
	jwt.RegisteredClaims
}

// Sessions signs and reads the session cookie.
type Sessions struct {
	secret []byte
	secure bool
	clock  clockwork.Clock
}

// NewSessions creates a cookie codec. secure marks cookies HTTPS-only.
func NewSessions(secret string, secure bool, clock clockwork.Clock) *Sessions {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sessions{secret: []byte(secret), secure: secure, clock: clock}
}

// Encode signs a scope as an HS256 token.
func (s *Sessions) Encode(sc scope.Scope) (string, error) {
	now := s.clock.Now()
	claims := sessionClaims{
		CampaignID: sc.ID(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Decode verifies a token and returns the scope it carries.
func (s *Sessions) Decode(token string) (scope.Scope, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return scope.Scope{}, fmt.Errorf("invalid session: %w", err)
	}
	return scope.ForCampaign(claims.CampaignID), nil
}

// Write stores sc in the session cookie.
func (s *Sessions) Write(w http.ResponseWriter, sc scope.Scope) error {
	token, err := s.Encode(sc)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  s.clock.Now().Add(sessionTTL),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

type scopeKey struct{}

// Middleware decodes the session cookie into the request scope. A missing or
// invalid cookie selects no campaign.
func (s *Sessions) Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sc scope.Scope
			if c, err := r.Cookie(SessionCookie); err == nil {
				if sc, err = s.Decode(c.Value); err != nil {
					logger.Debug("ignoring session cookie", "error", err)
				}
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), scopeKey{}, sc)))
		})
	}
}

// ScopeFrom returns the scope of a request.
func ScopeFrom(ctx context.Context) scope.Scope {
	sc, _ := ctx.Value(scopeKey{}).(scope.Scope)
	return sc
}
