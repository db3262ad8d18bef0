package server

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"chryso-hq/forms/pkg/telemetry/logging"
)

// ErrInvalidToken indicates the bearer token failed validation.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the JWT claims accepted by the admin API.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether role is among the token roles, ignoring case.
func (c *Claims) HasRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	return slices.ContainsFunc(c.Roles, func(r string) bool {
		return strings.ToLower(strings.TrimSpace(r)) == role
	})
}

// GenerateToken signs an HS256 token for subject with the given roles.
func GenerateToken(secret []byte, issuer, subject string, roles []string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("subject is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be greater than zero")
	}

	now := time.Now().UTC()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies the signature, expiry and, when issuer is set, the
// iss claim.
func ParseToken(token string, secret []byte, issuer string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(5 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}
	return claims, nil
}

// authenticate requires a bearer token carrying the configured role. The
// token subject is stored as the acting user.
func (s *Server) authenticate(next http.Handler) http.Handler {
	secret := []byte(s.auth.JWTSecret)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="chryso"`)
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		claims, err := ParseToken(strings.TrimSpace(token), secret, s.auth.Issuer)
		if err != nil {
			s.logger.WarnContext(r.Context(), "rejected bearer token", "error", err)
			w.Header().Set("WWW-Authenticate", `Bearer realm="chryso", error="invalid_token"`)
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "invalid bearer token")
			return
		}
		if !claims.HasRole(s.auth.RequiredRole) {
			writeError(w, r, http.StatusForbidden, "forbidden", fmt.Sprintf("role %q required", s.auth.RequiredRole))
			return
		}

		next.ServeHTTP(w, r.WithContext(logging.WithUser(r.Context(), claims.Subject)))
	})
}
