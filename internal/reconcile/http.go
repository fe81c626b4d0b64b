package reconcile

import (
	"log/slog"
	"net/http"

	"charity-service/internal/auth"
	"charity-service/internal/httputil"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	checker *Checker
	logger  *slog.Logger
}

func NewHandler(checker *Checker, logger *slog.Logger) *Handler {
	return &Handler{checker: checker, logger: logger}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.With(auth.RequireSuperuser).Get("/api/ledger/summary", h.Summary)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	report, err := h.checker.Check(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "ledger summary failed", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, report)
}
