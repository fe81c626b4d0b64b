package donation_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"charity-service/internal/auth"
	"charity-service/internal/donation"
	"charity-service/internal/ledger"
	"charity-service/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type api struct {
	*fixture
	router    chi.Router
	superuser string
	alice     string
	bob       string
}

func newAPI(t *testing.T) *api {
	t.Helper()

	f := newFixture(t)
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	log := logger.Discard()

	router := chi.NewRouter()
	router.Use(auth.NewMiddleware(tokens, log).Authenticate)
	donation.NewHandler(f.donations, log).RegisterRoutes(router)

	issue := func(u *auth.User) string {
		token, err := tokens.Issue(u)
		require.NoError(t, err)
		return token
	}

	return &api{
		fixture:   f,
		router:    router,
		superuser: issue(&auth.User{ID: 100, Email: "admin@example.com", IsSuperuser: true}),
		alice:     issue(&auth.User{ID: alice.UserID, Email: alice.Email}),
		bob:       issue(&auth.User{ID: bob.UserID, Email: bob.Email}),
	}
}

func (a *api) do(method, path, token string, payload interface{}) *httptest.ResponseRecorder {
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
	a.router.ServeHTTP(w, req)
	return w
}

func TestDonationHandler(t *testing.T) {
	t.Run("CreateDonation_ReducedView", func(t *testing.T) {
		a := newAPI(t)
		a.project(t, "P", 50)

		w := a.do(http.MethodPost, "/donation", a.alice, map[string]interface{}{"full_amount": 100, "comment": "hi"})

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, float64(1), body["id"])
		assert.Equal(t, float64(100), body["full_amount"])
		assert.Equal(t, "hi", body["comment"])
		assert.Contains(t, body, "create_date")
		for _, hidden := range []string{"user_id", "invested_amount", "fully_invested", "close_date"} {
			assert.NotContains(t, body, hidden)
		}
	})

	t.Run("CreateDonation_Anonymous", func(t *testing.T) {
		a := newAPI(t)

		w := a.do(http.MethodPost, "/donation", "", map[string]interface{}{"full_amount": 100})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("CreateDonation_Invalid", func(t *testing.T) {
		a := newAPI(t)

		for _, body := range []map[string]interface{}{
			{"full_amount": 0},
			{"full_amount": -10},
			{"comment": "no amount"},
			{"full_amount": 10, "invested_amount": 10},
			{"full_amount": 10, "user_id": 2},
		} {
			w := a.do(http.MethodPost, "/donation", a.alice, body)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "%v", body)
		}
	})

	t.Run("ListDonations_SuperuserOnly", func(t *testing.T) {
		a := newAPI(t)
		a.donate(t, alice, 10)
		a.donate(t, bob, 20)

		assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/donation", "", nil).Code)
		assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/donation", a.alice, nil).Code)

		w := a.do(http.MethodGet, "/donation", a.superuser, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var donations []ledger.Donation
		require.NoError(t, json.NewDecoder(w.Body).Decode(&donations))
		require.Len(t, donations, 2)
		require.NotNil(t, donations[1].UserID)
		assert.Equal(t, bob.UserID, *donations[1].UserID)
	})

	t.Run("ListMyDonations", func(t *testing.T) {
		a := newAPI(t)
		a.donate(t, alice, 10)
		a.donate(t, bob, 20)
		a.donate(t, alice, 30)

		w := a.do(http.MethodGet, "/donation/my", a.alice, nil)

		require.Equal(t, http.StatusOK, w.Code)
		var views []donation.View
		require.NoError(t, json.NewDecoder(w.Body).Decode(&views))
		require.Len(t, views, 2)
		assert.Equal(t, int64(10), views[0].FullAmount)
		assert.Equal(t, int64(30), views[1].FullAmount)
		assert.NotContains(t, w.Body.String(), "invested_amount")

		w = a.do(http.MethodGet, "/donation/my", a.superuser, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, "[]", w.Body.String())

		assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/donation/my", "", nil).Code)
	})
}
