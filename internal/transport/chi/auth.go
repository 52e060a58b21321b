package chi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talentdex/internal/logger"
)

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	Leeway   time.Duration
}

type callerKey struct{}

// ContextWithCaller stores the authenticated person id.
func ContextWithCaller(ctx context.Context, personID string) context.Context {
	return context.WithValue(ctx, callerKey{}, personID)
}

// CallerFromContext returns the authenticated person id.
func CallerFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(callerKey{}).(string)
	return id, ok && id != ""
}

func callerID(r *http.Request) string {
	id, _ := CallerFromContext(r.Context())
	return id
}

// BearerAuthMiddleware returns a middleware that validates HS256 bearer
// tokens and stores their subject as the caller. With an empty secret every
// protected request is rejected.
func BearerAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	parser := jwt.NewParser(opts...)
	keyFunc := func(*jwt.Token) (any, error) { return cfg.Secret, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authorization header must use Bearer scheme")
				return
			}
			if len(cfg.Secret) == 0 {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid token")
				return
			}

			var claims jwt.RegisteredClaims
			if _, err := parser.ParseWithClaims(auth[len(bearerPrefix):], &claims, keyFunc); err != nil {
				logger.FromContext(r.Context()).Debug("token rejected", zap.Error(err))
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid token")
				return
			}
			if strings.TrimSpace(claims.Subject) == "" {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "token has no subject")
				return
			}

			ctx := ContextWithCaller(r.Context(), claims.Subject)
			ctx = logger.With(ctx, zap.String("caller", claims.Subject))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
