package donation

import (
	"errors"
	"log/slog"
	"net/http"

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

// RegisterRoutes mounts /donation. router must already run
// auth.Middleware.Authenticate.
func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Route("/donation", func(r chi.Router) {
		r.With(auth.RequireUser).Post("/", h.CreateDonation)
		r.With(auth.RequireSuperuser).Get("/", h.ListDonations)
		r.With(auth.RequireUser).Get("/my", h.ListMyDonations)
	})
}

func (h *Handler) CreateDonation(w http.ResponseWriter, r *http.Request) {
	donor, _ := auth.FromContext(r.Context())

	var req CreateRequest
	if err := httputil.DecodeStrict(r.Body, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "creating donation", "user_id", donor.UserID, "full_amount", req.FullAmount)
	donation, err := h.service.CreateDonation(r.Context(), donor, req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, NewView(donation))
}

func (h *Handler) ListDonations(w http.ResponseWriter, r *http.Request) {
	donations, err := h.service.ListDonations(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, donations)
}

func (h *Handler) ListMyDonations(w http.ResponseWriter, r *http.Request) {
	donor, _ := auth.FromContext(r.Context())

	donations, err := h.service.ListUserDonations(r.Context(), donor)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, NewViews(donations))
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, httputil.ErrMalformedBody):
		httputil.RespondWithError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "donation request failed", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
