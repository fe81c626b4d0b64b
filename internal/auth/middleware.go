package auth

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"charity-service/internal/httputil"
)

const cookieName = "token"

// Identity is the authenticated caller of one request.
type Identity struct {
	UserID    int64
	Email     string
	Superuser bool
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity placed by Authenticate, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

type Middleware struct {
	tokens *TokenIssuer
	logger *slog.Logger
}

func NewMiddleware(tokens *TokenIssuer, logger *slog.Logger) *Middleware {
	return &Middleware{tokens: tokens, logger: logger}
}

// Authenticate resolves the caller from the Authorization header or the token
// cookie. Requests without credentials pass through anonymously. A bad bearer
// token is rejected, while a stale cookie is cleared and the request goes on
// anonymously so the client can still log in again or read public routes.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, fromCookie := tokenFromRequest(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		id, err := m.tokens.Parse(raw)
		if err != nil {
			m.logger.WarnContext(r.Context(), "invalid token", "path", r.URL.Path, "cookie", fromCookie, "error", err)
			if fromCookie {
				ClearAuthCookie(w)
				next.ServeHTTP(w, r)
				return
			}
			httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSuperuser rejects anonymous requests with 401 and ordinary users
// with 403.
func RequireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		if !ok {
			httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !id.Superuser {
			httputil.RespondWithError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// tokenFromRequest prefers the Authorization header and reports whether the
// token came from the cookie instead.
func tokenFromRequest(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token), false
		}
		return "", false
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return cookie.Value, true
	}
	return "", false
}

// SetAuthCookie sets JWT token in secure HttpOnly cookie
func SetAuthCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	sameSite := http.SameSiteStrictMode
	env := os.Getenv("ENV")
	if env == "development" || env == "local" {
		sameSite = http.SameSiteLaxMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   env == "production" || env == "prod",
		SameSite: sameSite,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
	})
}

// ClearAuthCookie removes the auth cookie
func ClearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   os.Getenv("ENV") != "local",
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   -1,
	})
}
