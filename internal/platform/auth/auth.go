// Package auth issues and verifies patient session tokens for the report
// viewer. Tokens are HS256 JWTs carrying the patient id; in development mode
// verification is skipped so the client can be exercised without a login.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid or expired token")
)

type contextKey string

const patientIDKey contextKey = "auth.patient_id"

// TokenTTL is the session token lifetime.
const TokenTTL = 12 * time.Hour

// Manager signs and verifies session tokens with a shared secret.
type Manager struct {
	secret []byte
}

func NewManager(secret string) *Manager {
	return &Manager{secret: []byte(secret)}
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// IssueToken returns a signed session token for the given patient id.
func (m *Manager) IssueToken(patientID string) (string, error) {
	if patientID == "" {
		return "", fmt.Errorf("patientId is required")
	}
	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   patientID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			Issuer:    "report-server",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// VerifyToken parses a session token and returns the patient id it carries.
func (m *Manager) VerifyToken(tokenString string) (string, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Middleware enforces a bearer session token on the wrapped routes and puts
// the patient id on the request context.
func (m *Manager) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, ErrMissingToken.Error())
			}
			patientID, err := m.VerifyToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}
			ctx := context.WithValue(c.Request().Context(), patientIDKey, patientID)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// DevMiddleware passes every request through. It keeps the middleware chain
// shape identical between modes so handlers never special-case development.
func DevMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(c)
		}
	}
}

// PatientIDFromContext returns the authenticated patient id, or "" when the
// request was not authenticated (development mode).
func PatientIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(patientIDKey).(string)
	return id
}
