package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"charity-service/internal/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	service  Service
	tokens   *TokenIssuer
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(service Service, tokens *TokenIssuer, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		tokens:   tokens,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterRoutes mounts the auth endpoints. router must already run
// Middleware.Authenticate.
func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Post("/auth/register", h.Register)
	router.Post("/auth/login", h.Login)
	router.Post("/auth/logout", h.Logout)
	router.With(RequireUser).Get("/users/me", h.Me)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	SetAuthCookie(w, resp.AccessToken, h.tokens.TTL())
	httputil.RespondWithJSON(w, http.StatusCreated, resp)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "user logged in", "user_id", resp.User.ID)
	SetAuthCookie(w, resp.AccessToken, h.tokens.TTL())
	httputil.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ClearAuthCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := FromContext(r.Context())

	user, err := h.service.Me(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, user)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := httputil.DecodeStrict(r.Body, dst); err != nil {
		h.logger.WarnContext(r.Context(), "failed to decode request", "error", err)
		httputil.RespondWithError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.logger.WarnContext(r.Context(), "validation failed", "error", err)
		httputil.RespondWithError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrEmailExists):
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInactiveUser):
		httputil.RespondWithError(w, http.StatusUnauthorized, ErrInvalidCredentials.Error())
	case errors.Is(err, ErrUserNotFound):
		httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
	default:
		h.logger.ErrorContext(r.Context(), "auth request failed", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
