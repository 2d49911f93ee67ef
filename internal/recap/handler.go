// Package recap exposes the sales-recap extraction and apply endpoints.
package recap

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/jiorblanc/estoque/internal/apply"
	"github.com/jiorblanc/estoque/internal/extract"
	"github.com/jiorblanc/estoque/internal/platform/httpx"
)

// Handler wires the two-step recap flow: extract candidates for review, then
// apply the reviewed lines.
type Handler struct {
	logger   *slog.Logger
	engine   *extract.Engine
	applier  *apply.Applier
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, engine *extract.Engine, applier *apply.Applier) *Handler {
	return &Handler{logger: logger, engine: engine, applier: applier, validate: validator.New()}
}

// MountRoutes registers recap routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/extract", h.handleExtract)
	r.Post("/apply", h.handleApply)
}

type extractRequest struct {
	Pages []string `json:"pages" validate:"required,min=1"`
}

func (h *Handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	candidates, err := h.engine.Extract(r.Context(), req.Pages)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}

type applyRequest struct {
	Candidates      []extract.Candidate `json:"candidates" validate:"required,min=1"`
	PersistMappings bool                `json:"persist_mappings"`
}

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	summary, err := h.applier.Run(r.Context(), req.Candidates, apply.Options{
		PersistMappings: req.PersistMappings,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	if errors.Is(err, extract.ErrNoItemsFound) {
		httpx.Problem(w, http.StatusUnprocessableEntity, "No Items Found", err.Error())
		return
	}
	h.logger.Error("recap request failed", slog.Any("error", err))
	httpx.Internal(w)
}
