package mapping

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/jiorblanc/estoque/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the mapping registry.
type Handler struct {
	logger   *slog.Logger
	registry *Registry
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, registry *Registry) *Handler {
	return &Handler{logger: logger, registry: registry, validate: validator.New()}
}

// MountRoutes registers mapping routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Put("/", h.handleUpsert)
	r.Delete("/{source}", h.handleDelete)
}

type entryResponse struct {
	ID        int64  `json:"id"`
	Source    string `json:"source"`
	LedgerSKU string `json:"ledger_sku"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.registry.List(r.Context())
	if err != nil {
		h.logger.Error("mapping list failed", slog.Any("error", err))
		httpx.Internal(w)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{ID: e.ID, Source: e.Source, LedgerSKU: e.LedgerSKU})
	}
	httpx.JSON(w, http.StatusOK, out)
}

type upsertRequest struct {
	Source    string `json:"source" validate:"required"`
	LedgerSKU string `json:"ledger_sku" validate:"required"`
}

func (h *Handler) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	if err := h.registry.Upsert(r.Context(), req.Source, req.LedgerSKU); err != nil {
		h.logger.Error("mapping upsert failed", slog.Any("error", err))
		httpx.Internal(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	err := h.registry.Delete(r.Context(), chi.URLParam(r, "source"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, ErrEntryNotFound):
		httpx.NotFound(w, err.Error())
	default:
		h.logger.Error("mapping delete failed", slog.Any("error", err))
		httpx.Internal(w)
	}
}
