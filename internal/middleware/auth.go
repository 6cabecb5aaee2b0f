package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/blertbank/backend/internal/services"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const serviceNameKey contextKey = "serviceName"

const (
	HeaderServiceToken = "X-Service-Token"
	HeaderServiceName  = "X-Service-Name"

	// MaxServiceNameLength matches ledger_transactions.created_by_svc
	MaxServiceNameLength = 128
)

// ServiceAuth authenticates calling services, either by a shared token
// plus a self-declared service name, or by an HS256 bearer JWT whose
// subject is the service name.
type ServiceAuth struct {
	token     string
	jwtSecret []byte
}

func NewServiceAuth(token, jwtSecret string) *ServiceAuth {
	return &ServiceAuth{token: token, jwtSecret: []byte(jwtSecret)}
}

func (a *ServiceAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serviceName, err := a.authenticate(r)
		if err == nil && len(serviceName) > MaxServiceNameLength {
			err = errors.New("Service name too long")
		}
		if err != nil {
			services.SendErrorResponse(w, services.CodeUnauthorized, err.Error(), http.StatusUnauthorized, nil)
			return
		}

		ctx := context.WithValue(r.Context(), serviceNameKey, serviceName)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *ServiceAuth) authenticate(r *http.Request) (string, error) {
	if token := r.Header.Get(HeaderServiceToken); token != "" {
		if a.token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
			return "", errors.New("Invalid service token")
		}
		name := strings.TrimSpace(r.Header.Get(HeaderServiceName))
		if name == "" {
			name = "unknown"
		}
		return name, nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("Service credentials required")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("Invalid authorization header format")
	}

	return a.validateToken(parts[1])
}

func (a *ServiceAuth) validateToken(tokenString string) (string, error) {
	if len(a.jwtSecret) == 0 {
		return "", errors.New("Bearer tokens are not accepted")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return a.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", errors.New("Invalid token")
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", errors.New("Token has no service subject")
	}
	return subject, nil
}

// ServiceNameFromContext returns the authenticated caller, or "unknown"
func ServiceNameFromContext(ctx context.Context) string {
	if name, ok := ctx.Value(serviceNameKey).(string); ok && name != "" {
		return name
	}
	return "unknown"
}
