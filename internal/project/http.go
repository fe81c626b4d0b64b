package project

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"charity-service/internal/auth"
	"charity-service/internal/httputil"
	"charity-service/internal/ledger"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes mounts /charity_project. Reads are public, writes need a
// superuser. router must already run auth.Middleware.Authenticate.
func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Route("/charity_project", func(r chi.Router) {
		r.Get("/", h.ListProjects)
		r.Get("/{projectID}", h.GetProject)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSuperuser)
			r.Post("/", h.CreateProject)
			r.Patch("/{projectID}", h.UpdateProject)
			r.Delete("/{projectID}", h.DeleteProject)
		})
	})
}

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.ListProjects(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, projects)
}

func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}

	project, err := h.service.GetProject(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, project)
}

func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httputil.DecodeStrict(r.Body, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "creating project", "name", req.Name, "full_amount", req.FullAmount)
	project, err := h.service.CreateProject(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, project)
}

func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := httputil.DecodeStrict(r.Body, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "updating project", "project_id", id)
	project, err := h.service.UpdateProject(r.Context(), id, req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, project)
}

func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}

	project, err := h.service.DeleteProject(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, project)
}

func projectID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
	if err != nil || id <= 0 {
		httputil.RespondWithError(w, http.StatusUnprocessableEntity, "invalid project id")
		return 0, false
	}
	return id, true
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, "project not found")
	case errors.Is(err, ledger.ErrDuplicateName),
		errors.Is(err, ledger.ErrInvalidAmountDecrease),
		errors.Is(err, ledger.ErrEntityClosed),
		errors.Is(err, ledger.ErrEntityHasFunds):
		h.logger.InfoContext(r.Context(), "project request rejected", "error", err)
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, httputil.ErrMalformedBody):
		httputil.RespondWithError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "project request failed", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
