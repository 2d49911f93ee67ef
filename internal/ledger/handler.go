package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/jiorblanc/estoque/internal/platform/httpx"
)

// StockValueCacheKey holds the serialized valued stock projection; the warmup
// job and the HTTP handler share it.
const StockValueCacheKey = "estoque:stock:value"

// StockValueCacheTTL bounds staleness of the cached projection.
const StockValueCacheTTL = 60 * time.Second

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	validate   *validator.Validate
	cache      *redis.Client
	group      singleflight.Group
	criticalAt int
}

// NewHandler constructs Handler. The cache client may be nil, the valued
// stock endpoint then recomputes on every request. criticalAt is the default
// threshold for the critical-stock filter.
func NewHandler(logger *slog.Logger, service *Service, cache *redis.Client, criticalAt int) *Handler {
	return &Handler{
		logger:     logger,
		service:    service,
		validate:   validator.New(),
		cache:      cache,
		criticalAt: criticalAt,
	}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.handleListProducts)
		r.Post("/", h.handleUpsertProduct)
		r.Post("/sku-base", h.handleUpdateSKUBase)
		r.Post("/cost", h.handleUpdateCost)
	})
	r.Route("/variants", func(r chi.Router) {
		r.Get("/", h.handleListVariants)
		r.Post("/", h.handleCreateVariant)
		r.Get("/{sku}", h.handleGetVariant)
		r.Put("/{sku}", h.handleUpdateVariant)
		r.Delete("/{sku}", h.handleDeleteVariant)
	})
	r.Route("/movements", func(r chi.Router) {
		r.Get("/", h.handleListMovements)
		r.Post("/", h.handleRecordMovement)
	})
	r.Route("/stock", func(r chi.Router) {
		r.Get("/", h.handleStock)
		r.Get("/value", h.handleStockValue)
	})
	r.Get("/sales/summary", h.handleSalesSummary)
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnknownSKU), errors.Is(err, ErrProductNotFound):
		httpx.NotFound(w, err.Error())
	case errors.Is(err, ErrDuplicateSKU):
		httpx.Conflict(w, err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidReason):
		httpx.BadRequest(w, err.Error())
	default:
		h.logger.Error("ledger request failed", slog.Any("error", err))
		httpx.Internal(w)
	}
}

type productResponse struct {
	ID       int64   `json:"id"`
	Category string  `json:"category"`
	Subtype  string  `json:"subtype"`
	SKUBase  string  `json:"sku_base,omitempty"`
	UnitCost float64 `json:"unit_cost"`
}

func toProductResponse(p Product) productResponse {
	return productResponse{ID: p.ID, Category: p.Category, Subtype: p.Subtype, SKUBase: p.SKUBase, UnitCost: p.UnitCost}
}

type variantResponse struct {
	ID               int64    `json:"id"`
	Category         string   `json:"category"`
	Subtype          string   `json:"subtype"`
	Color            string   `json:"color"`
	Size             string   `json:"size"`
	SKU              string   `json:"sku"`
	UnitCost         float64  `json:"unit_cost"`
	UnitCostOverride *float64 `json:"unit_cost_override,omitempty"`
}

func toVariantResponse(v Variant) variantResponse {
	return variantResponse{
		ID:               v.ID,
		Category:         v.Category,
		Subtype:          v.Subtype,
		Color:            v.Color,
		Size:             v.Size,
		SKU:              v.SKU,
		UnitCost:         v.EffectiveUnitCost(),
		UnitCostOverride: v.UnitCostOverride,
	}
}

type movementResponse struct {
	ID     int64     `json:"id"`
	SKU    string    `json:"sku"`
	Qty    int       `json:"qty"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// StockValueRow is the wire form of one valued stock line.
type StockValueRow struct {
	SKU      string  `json:"sku"`
	Category string  `json:"category"`
	Subtype  string  `json:"subtype"`
	Color    string  `json:"color"`
	Size     string  `json:"size"`
	Stock    int     `json:"stock"`
	UnitCost float64 `json:"unit_cost"`
	Value    float64 `json:"value"`
}

func toStockRows(rows []StockRow) []StockValueRow {
	out := make([]StockValueRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, StockValueRow(r))
	}
	return out
}

// StockValuePayload is the wire form of the valued stock projection. The
// stock-value endpoint and the warmup job both cache exactly this shape.
type StockValuePayload struct {
	Rows       []StockValueRow `json:"rows"`
	TotalItems int             `json:"total_items"`
	TotalUnits int             `json:"total_units"`
	TotalValue float64         `json:"total_value"`
}

// NewStockValuePayload converts the aggregate into its wire form.
func NewStockValuePayload(s StockSummary) StockValuePayload {
	return StockValuePayload{
		Rows:       toStockRows(s.Rows),
		TotalItems: s.TotalItems,
		TotalUnits: s.TotalUnits,
		TotalValue: s.TotalValue,
	}
}

type upsertProductRequest struct {
	Category string   `json:"category" validate:"required"`
	Subtype  string   `json:"subtype" validate:"required"`
	SKUBase  *string  `json:"sku_base"`
	UnitCost *float64 `json:"unit_cost" validate:"omitempty,gte=0"`
}

func (h *Handler) handleUpsertProduct(w http.ResponseWriter, r *http.Request) {
	var req upsertProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	var base StringPatch
	if req.SKUBase != nil {
		base = StringPatch{Set: true, Value: *req.SKUBase}
	}
	var cost FloatPatch
	if req.UnitCost != nil {
		cost = FloatPatch{Set: true, Value: *req.UnitCost}
	}
	p, err := h.service.UpsertProductType(r.Context(), req.Category, req.Subtype, base, cost)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProductResponse(p))
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

type updateSKUBaseRequest struct {
	Category string `json:"category" validate:"required"`
	Subtype  string `json:"subtype" validate:"required"`
	NewBase  string `json:"new_base" validate:"required"`
}

func (h *Handler) handleUpdateSKUBase(w http.ResponseWriter, r *http.Request) {
	var req updateSKUBaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	regenerated, err := h.service.UpdateSKUBaseBulk(r.Context(), req.Category, req.Subtype, req.NewBase)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.invalidateStockValue(r.Context())
	httpx.JSON(w, http.StatusOK, map[string]int{"regenerated": regenerated})
}

type updateCostRequest struct {
	Category string  `json:"category" validate:"required"`
	Subtype  string  `json:"subtype" validate:"required"`
	UnitCost float64 `json:"unit_cost" validate:"gte=0"`
}

func (h *Handler) handleUpdateCost(w http.ResponseWriter, r *http.Request) {
	var req updateCostRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	if err := h.service.UpdateProductCost(r.Context(), req.Category, req.Subtype, req.UnitCost); err != nil {
		h.respondErr(w, err)
		return
	}
	h.invalidateStockValue(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

type createVariantRequest struct {
	Category         string   `json:"category" validate:"required"`
	Subtype          string   `json:"subtype" validate:"required"`
	Color            string   `json:"color" validate:"required"`
	Size             string   `json:"size" validate:"required"`
	SKUBase          *string  `json:"sku_base"`
	SKU              string   `json:"sku"`
	ProductUnitCost  *float64 `json:"product_unit_cost" validate:"omitempty,gte=0"`
	UnitCostOverride *float64 `json:"unit_cost_override" validate:"omitempty,gte=0"`
}

func (h *Handler) handleCreateVariant(w http.ResponseWriter, r *http.Request) {
	var req createVariantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	input := CreateVariantInput{
		Category:        req.Category,
		Subtype:         req.Subtype,
		Color:           req.Color,
		Size:            req.Size,
		SKUOverride:     req.SKU,
		VariantUnitCost: req.UnitCostOverride,
	}
	if req.SKUBase != nil {
		input.SKUBase = StringPatch{Set: true, Value: *req.SKUBase}
	}
	if req.ProductUnitCost != nil {
		input.ProductUnitCost = FloatPatch{Set: true, Value: *req.ProductUnitCost}
	}
	v, err := h.service.CreateVariant(r.Context(), input)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toVariantResponse(v))
}

func (h *Handler) handleListVariants(w http.ResponseWriter, r *http.Request) {
	variants, err := h.service.ListVariants(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]variantResponse, 0, len(variants))
	for _, v := range variants {
		out = append(out, toVariantResponse(v))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetVariant(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.GetVariant(r.Context(), chi.URLParam(r, "sku"))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toVariantResponse(v))
}

type updateVariantRequest struct {
	SKU              string   `json:"sku" validate:"required"`
	Category         string   `json:"category" validate:"required"`
	Subtype          string   `json:"subtype" validate:"required"`
	Color            string   `json:"color" validate:"required"`
	Size             string   `json:"size" validate:"required"`
	SKUBase          *string  `json:"sku_base"`
	UnitCostOverride *float64 `json:"unit_cost_override" validate:"omitempty,gte=0"`
}

func (h *Handler) handleUpdateVariant(w http.ResponseWriter, r *http.Request) {
	var req updateVariantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	input := UpdateVariantInput{
		OldSKU:          chi.URLParam(r, "sku"),
		NewSKU:          req.SKU,
		Category:        req.Category,
		Subtype:         req.Subtype,
		Color:           req.Color,
		Size:            req.Size,
		VariantUnitCost: req.UnitCostOverride,
	}
	if req.SKUBase != nil {
		input.SKUBase = StringPatch{Set: true, Value: *req.SKUBase}
	}
	v, err := h.service.UpdateVariant(r.Context(), input)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.invalidateStockValue(r.Context())
	httpx.JSON(w, http.StatusOK, toVariantResponse(v))
}

func (h *Handler) handleDeleteVariant(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteVariant(r.Context(), chi.URLParam(r, "sku")); err != nil {
		h.respondErr(w, err)
		return
	}
	h.invalidateStockValue(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

type recordMovementRequest struct {
	SKU    string `json:"sku" validate:"required"`
	Qty    int    `json:"qty" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) handleRecordMovement(w http.ResponseWriter, r *http.Request) {
	var req recordMovementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	m, err := h.service.RecordMovement(r.Context(), req.SKU, req.Qty, Reason(req.Reason))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.invalidateStockValue(r.Context())
	httpx.JSON(w, http.StatusCreated, movementResponse{
		ID: m.ID, SKU: m.SKU, Qty: m.Qty, Reason: string(m.Reason), At: m.At,
	})
}

func (h *Handler) handleListMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := MovementFilter{
		SKU:    q.Get("sku"),
		Reason: Reason(q.Get("reason")),
	}
	if days, err := strconv.Atoi(q.Get("days")); err == nil && days > 0 {
		filter.Since = time.Now().UTC().AddDate(0, 0, -days)
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]movementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, movementResponse{
			ID: m.ID, SKU: m.SKU, Qty: m.Qty, Reason: string(m.Reason), At: m.At,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) stockFilterFromQuery(r *http.Request) StockFilter {
	q := r.URL.Query()
	filter := StockFilter{Text: q.Get("q")}
	if q.Get("critical") == "1" || q.Get("critical") == "true" {
		filter.CriticalOnly = true
		filter.CriticalAt = h.criticalAt
		if at, err := strconv.Atoi(q.Get("critical_at")); err == nil && at > 0 {
			filter.CriticalAt = at
		}
	}
	return filter
}

func (h *Handler) handleStock(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Stock(r.Context(), h.stockFilterFromQuery(r))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toStockRows(rows))
}

// handleStockValue serves the valued stock projection from cache, computing it
// at most once per TTL across concurrent callers.
func (h *Handler) handleStockValue(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		if raw, err := h.cache.Get(r.Context(), StockValueCacheKey).Bytes(); err == nil {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(raw)
			return
		}
	}

	payload, err, _ := h.group.Do(StockValueCacheKey, func() (any, error) {
		summary, err := h.service.StockSummary(r.Context(), StockFilter{})
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(NewStockValuePayload(summary))
		if err != nil {
			return nil, err
		}
		if h.cache != nil {
			if err := h.cache.Set(r.Context(), StockValueCacheKey, raw, StockValueCacheTTL).Err(); err != nil {
				h.logger.Warn("stock value cache set failed", slog.Any("error", err))
			}
		}
		return raw, nil
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload.([]byte))
}

func (h *Handler) invalidateStockValue(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Del(ctx, StockValueCacheKey).Err(); err != nil {
		h.logger.Warn("stock value cache invalidation failed", slog.Any("error", err))
	}
}

func (h *Handler) handleSalesSummary(w http.ResponseWriter, r *http.Request) {
	days := 0
	if d, err := strconv.Atoi(r.URL.Query().Get("days")); err == nil && d > 0 {
		days = d
	}
	rows, err := h.service.SalesSummary(r.Context(), days)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	type salesRowResponse struct {
		Category  string  `json:"category"`
		Subtype   string  `json:"subtype"`
		Color     string  `json:"color"`
		Size      string  `json:"size"`
		UnitsSold int     `json:"units_sold"`
		SaleCount int     `json:"sale_count"`
		UnitCost  float64 `json:"unit_cost"`
		Value     float64 `json:"value"`
	}
	out := make([]salesRowResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, salesRowResponse(row))
	}
	httpx.JSON(w, http.StatusOK, out)
}
