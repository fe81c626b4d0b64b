package project_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"charity-service/internal/auth"
	"charity-service/internal/ledger"
	"charity-service/internal/logger"
	"charity-service/internal/project"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type api struct {
	*fixture
	router    chi.Router
	superuser string
	user      string
}

func newAPI(t *testing.T) *api {
	t.Helper()

	f := newFixture(t)
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	log := logger.Discard()

	router := chi.NewRouter()
	router.Use(auth.NewMiddleware(tokens, log).Authenticate)
	project.NewHandler(f.service, log).RegisterRoutes(router)

	superuser, err := tokens.Issue(&auth.User{ID: 1, Email: "admin@example.com", IsSuperuser: true})
	require.NoError(t, err)
	user, err := tokens.Issue(&auth.User{ID: 2, Email: "user@example.com"})
	require.NoError(t, err)

	return &api{fixture: f, router: router, superuser: superuser, user: user}
}

func (a *api) do(method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	var body bytes.Buffer
	switch p := payload.(type) {
	case nil:
	case string:
		body.WriteString(p)
	default:
		json.NewEncoder(&body).Encode(p)
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

func decodeProject(t *testing.T, w *httptest.ResponseRecorder) ledger.Project {
	t.Helper()
	var p ledger.Project
	require.NoError(t, json.NewDecoder(w.Body).Decode(&p))
	return p
}

func TestProjectHandler(t *testing.T) {
	valid := map[string]interface{}{
		"name":        "Chimichangas",
		"description": "Huge fan of chimichangas",
		"full_amount": 1000,
	}

	t.Run("CreateProject_Success", func(t *testing.T) {
		a := newAPI(t)

		w := a.do(http.MethodPost, "/charity_project", a.superuser, valid)

		require.Equal(t, http.StatusOK, w.Code)
		p := decodeProject(t, w)
		assert.Equal(t, int64(1), p.ID)
		assert.Equal(t, "Chimichangas", p.Name)
		assert.Equal(t, int64(1000), p.FullAmount)
		assert.Zero(t, p.InvestedAmount)
		assert.False(t, p.FullyInvested)
		assert.NotContains(t, w.Body.String(), "close_date")
	})

	t.Run("CreateProject_Auth", func(t *testing.T) {
		a := newAPI(t)

		assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, "/charity_project", "", valid).Code)
		assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/charity_project", a.user, valid).Code)
	})

	t.Run("CreateProject_Invalid", func(t *testing.T) {
		a := newAPI(t)

		bodies := []interface{}{
			map[string]interface{}{"name": "", "description": "d", "full_amount": 10},
			map[string]interface{}{"name": "n", "description": "", "full_amount": 10},
			map[string]interface{}{"name": "n", "description": "d", "full_amount": 0},
			map[string]interface{}{"name": "n", "description": "d", "full_amount": "10"},
			map[string]interface{}{"name": "n", "description": "d"},
			map[string]interface{}{"name": "n", "description": "d", "full_amount": 10, "invested_amount": 5},
			map[string]interface{}{"name": "n", "description": "d", "full_amount": 10, "id": 5},
			"{not json",
		}
		for i, body := range bodies {
			w := a.do(http.MethodPost, "/charity_project", a.superuser, body)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "body %d: %s", i, w.Body.String())
		}
	})

	t.Run("CreateProject_DuplicateName", func(t *testing.T) {
		a := newAPI(t)
		require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/charity_project", a.superuser, valid).Code)

		w := a.do(http.MethodPost, "/charity_project", a.superuser, valid)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), ledger.ErrDuplicateName.Error())
	})

	t.Run("ListProjects_Public", func(t *testing.T) {
		a := newAPI(t)
		a.create(t, "First", 10)
		a.create(t, "Second", 10)

		w := a.do(http.MethodGet, "/charity_project", "", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var projects []ledger.Project
		require.NoError(t, json.NewDecoder(w.Body).Decode(&projects))
		require.Len(t, projects, 2)
		assert.Equal(t, "First", projects[0].Name)
	})

	t.Run("ListProjects_Empty", func(t *testing.T) {
		a := newAPI(t)

		w := a.do(http.MethodGet, "/charity_project", "", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, "[]", w.Body.String())
	})

	t.Run("GetProject", func(t *testing.T) {
		a := newAPI(t)
		p := a.create(t, "First", 10)

		assert.Equal(t, http.StatusOK, a.do(http.MethodGet, fmt.Sprintf("/charity_project/%d", p.ID), "", nil).Code)
		assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/charity_project/999", "", nil).Code)
		assert.Equal(t, http.StatusUnprocessableEntity, a.do(http.MethodGet, "/charity_project/abc", "", nil).Code)
	})

	t.Run("UpdateProject", func(t *testing.T) {
		a := newAPI(t)
		a.donate(t, 100)
		p := a.create(t, "First", 500)
		path := fmt.Sprintf("/charity_project/%d", p.ID)

		w := a.do(http.MethodPatch, path, a.superuser, map[string]interface{}{"full_amount": 99})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = a.do(http.MethodPatch, path, a.superuser, map[string]interface{}{"fully_invested": true})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		w = a.do(http.MethodPatch, path, a.superuser, map[string]interface{}{})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		w = a.do(http.MethodPatch, path, a.user, map[string]interface{}{"name": "x"})
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = a.do(http.MethodPatch, "/charity_project/999", a.superuser, map[string]interface{}{"name": "x"})
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = a.do(http.MethodPatch, path, a.superuser, map[string]interface{}{"full_amount": 100})
		require.Equal(t, http.StatusOK, w.Code)
		updated := decodeProject(t, w)
		assert.True(t, updated.FullyInvested)
		assert.NotNil(t, updated.CloseDate)

		w = a.do(http.MethodPatch, path, a.superuser, map[string]interface{}{"name": "Closed"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), ledger.ErrEntityClosed.Error())
	})

	t.Run("DeleteProject", func(t *testing.T) {
		a := newAPI(t)
		p := a.create(t, "Empty", 500)
		path := fmt.Sprintf("/charity_project/%d", p.ID)

		assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodDelete, path, "", nil).Code)

		w := a.do(http.MethodDelete, path, a.superuser, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Empty", decodeProject(t, w).Name)

		assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, path, a.superuser, nil).Code)

		a.donate(t, 1)
		funded := a.create(t, "Funded", 500)
		w = a.do(http.MethodDelete, fmt.Sprintf("/charity_project/%d", funded.ID), a.superuser, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), ledger.ErrEntityHasFunds.Error())
	})
}
