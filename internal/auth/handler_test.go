package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"charity-service/internal/auth"
	"charity-service/internal/logger"
	"charity-service/internal/metrics"
	"charity-service/testing/testdb"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	router  chi.Router
	service auth.Service
	tokens  *auth.TokenIssuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testdb.NewSQLite(t, (*auth.User)(nil))
	log := logger.Discard()
	tokens := auth.NewTokenIssuer("test-secret-key-for-testing", 15*time.Minute)
	service := auth.NewService(auth.NewRepository(db, metrics.NewMock()), tokens, log)

	router := chi.NewRouter()
	router.Use(auth.NewMiddleware(tokens, log).Authenticate)
	auth.NewHandler(service, tokens, log).RegisterRoutes(router)

	return &fixture{router: router, service: service, tokens: tokens}
}

func (f *fixture) do(method, path string, payload interface{}, token string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if payload != nil {
		json.NewEncoder(&body).Encode(payload)
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestAuthHandler(t *testing.T) {
	t.Run("Register_Success", func(t *testing.T) {
		f := newFixture(t)

		w := f.do(http.MethodPost, "/auth/register", map[string]string{
			"email":    "John.Doe@Example.com",
			"password": "password123",
		}, "")

		require.Equal(t, http.StatusCreated, w.Code)

		var response auth.AuthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.NotEmpty(t, response.AccessToken)
		assert.Equal(t, "bearer", response.TokenType)
		require.NotNil(t, response.User)
		assert.Equal(t, "john.doe@example.com", response.User.Email)
		assert.False(t, response.User.IsSuperuser)
		assert.NotContains(t, w.Body.String(), "hashed_password")

		var foundAuthCookie bool
		for _, cookie := range w.Result().Cookies() {
			if cookie.Name == "token" {
				foundAuthCookie = true
				assert.Equal(t, response.AccessToken, cookie.Value)
			}
		}
		assert.True(t, foundAuthCookie, "token cookie should be set")
	})

	t.Run("Register_DuplicateEmail", func(t *testing.T) {
		f := newFixture(t)
		payload := map[string]string{"email": "dup@example.com", "password": "password123"}
		require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/auth/register", payload, "").Code)

		w := f.do(http.MethodPost, "/auth/register", payload, "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "email already exists")
	})

	t.Run("Register_ValidationError", func(t *testing.T) {
		f := newFixture(t)

		w := f.do(http.MethodPost, "/auth/register", map[string]string{
			"email":    "invalid",
			"password": "short",
		}, "")

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Register_CannotClaimSuperuser", func(t *testing.T) {
		f := newFixture(t)

		w := f.do(http.MethodPost, "/auth/register", map[string]interface{}{
			"email":        "sneaky@example.com",
			"password":     "password123",
			"is_superuser": true,
		}, "")

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Login_Success", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.Register(context.Background(), auth.RegisterRequest{Email: "jane@example.com", Password: "password123"})
		require.NoError(t, err)

		w := f.do(http.MethodPost, "/auth/login", map[string]string{
			"email":    "jane@example.com",
			"password": "password123",
		}, "")

		require.Equal(t, http.StatusOK, w.Code)
		var response auth.AuthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.NotEmpty(t, response.AccessToken)
	})

	t.Run("Login_InvalidPassword", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.Register(context.Background(), auth.RegisterRequest{Email: "test@example.com", Password: "correctpassword"})
		require.NoError(t, err)

		w := f.do(http.MethodPost, "/auth/login", map[string]string{
			"email":    "test@example.com",
			"password": "wrongpassword",
		}, "")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "invalid email or password")
	})

	t.Run("Login_UserNotFound", func(t *testing.T) {
		f := newFixture(t)

		w := f.do(http.MethodPost, "/auth/login", map[string]string{
			"email":    "nonexistent@example.com",
			"password": "password123",
		}, "")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Me", func(t *testing.T) {
		f := newFixture(t)
		resp, err := f.service.Register(context.Background(), auth.RegisterRequest{Email: "me@example.com", Password: "password123"})
		require.NoError(t, err)

		w := f.do(http.MethodGet, "/users/me", nil, resp.AccessToken)
		require.Equal(t, http.StatusOK, w.Code)
		var user auth.User
		require.NoError(t, json.NewDecoder(w.Body).Decode(&user))
		assert.Equal(t, resp.User.ID, user.ID)

		assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/users/me", nil, "").Code)
		assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/users/me", nil, "garbage").Code)
	})

	t.Run("Me_FromCookie", func(t *testing.T) {
		f := newFixture(t)
		resp, err := f.service.Register(context.Background(), auth.RegisterRequest{Email: "cookie@example.com", Password: "password123"})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: resp.AccessToken})
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestEnsureSuperuser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.service.EnsureSuperuser(ctx, "root@example.com", "rootpassword")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = f.service.EnsureSuperuser(ctx, "ROOT@example.com", "other")
	require.NoError(t, err)
	assert.False(t, created)

	resp, err := f.service.Login(ctx, auth.LoginRequest{Email: "root@example.com", Password: "rootpassword"})
	require.NoError(t, err)
	assert.True(t, resp.User.IsSuperuser)

	id, err := f.tokens.Parse(resp.AccessToken)
	require.NoError(t, err)
	assert.True(t, id.Superuser)
}

func TestRequireSuperuser(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := auth.RequireSuperuser(ok)

	cases := []struct {
		name string
		ctx  context.Context
		want int
	}{
		{"anonymous", context.Background(), http.StatusUnauthorized},
		{"user", auth.WithIdentity(context.Background(), auth.Identity{UserID: 1}), http.StatusForbidden},
		{"superuser", auth.WithIdentity(context.Background(), auth.Identity{UserID: 1, Superuser: true}), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(tc.ctx)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

// racingRepository hides existing emails from the pre-check, as happens when
// two registrations for the same address run at once.
type racingRepository struct {
	auth.Repository
}

func (racingRepository) EmailExists(context.Context, string) (bool, error) {
	return false, nil
}

func TestRegisterDuplicateEmailRace(t *testing.T) {
	db := testdb.NewSQLite(t, (*auth.User)(nil))
	tokens := auth.NewTokenIssuer("test-secret-key-for-testing", 15*time.Minute)
	repo := racingRepository{Repository: auth.NewRepository(db, metrics.NewMock())}
	service := auth.NewService(repo, tokens, logger.Discard())
	ctx := context.Background()

	_, err := service.Register(ctx, auth.RegisterRequest{Email: "twin@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = service.Register(ctx, auth.RegisterRequest{Email: "twin@example.com", Password: "password456"})
	assert.ErrorIs(t, err, auth.ErrEmailExists)

	created, err := service.EnsureSuperuser(ctx, "twin@example.com", "password789")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestStaleCredentials(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Register(context.Background(), auth.RegisterRequest{Email: "stale@example.com", Password: "password123"})
	require.NoError(t, err)

	stale, err := auth.NewTokenIssuer("rotated-secret", time.Minute).Issue(&auth.User{ID: 1, Email: "stale@example.com"})
	require.NoError(t, err)

	withCookie := func(method, path string, payload interface{}) *httptest.ResponseRecorder {
		var body bytes.Buffer
		if payload != nil {
			json.NewEncoder(&body).Encode(payload)
		}
		req := httptest.NewRequest(method, path, &body)
		req.Header.Set("Content-Type", "application/json")
		req.AddCookie(&http.Cookie{Name: "token", Value: stale})
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		return w
	}

	t.Run("Login_WithStaleCookie", func(t *testing.T) {
		w := withCookie(http.MethodPost, "/auth/login", map[string]string{
			"email":    "stale@example.com",
			"password": "password123",
		})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Me_WithStaleCookieIsAnonymous", func(t *testing.T) {
		w := withCookie(http.MethodGet, "/users/me", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		var cleared bool
		for _, c := range w.Result().Cookies() {
			if c.Name == "token" && c.MaxAge < 0 {
				cleared = true
			}
		}
		assert.True(t, cleared, "stale cookie should be cleared")
	})

	t.Run("BadBearerIsRejected", func(t *testing.T) {
		w := f.do(http.MethodPost, "/auth/login", map[string]string{
			"email":    "stale@example.com",
			"password": "password123",
		}, stale)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
