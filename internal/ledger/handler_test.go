package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*chi.Mux, *Service) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := newTestService(newMemoryRepo())
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, client, 3)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r, svc
}

func seedVariant(t *testing.T, svc *Service) Variant {
	t.Helper()
	v, err := svc.CreateVariant(context.Background(), CreateVariantInput{
		Category:        "Camiseta",
		Subtype:         "Lisa",
		Color:           "Azul",
		Size:            "M",
		SKUBase:         StringPatch{Set: true, Value: "CAM-LISA"},
		ProductUnitCost: FloatPatch{Set: true, Value: 10},
	})
	require.NoError(t, err)
	return v
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleRecordMovement(t *testing.T) {
	router, svc := newTestRouter(t)
	v := seedVariant(t, svc)

	rec := doJSON(t, router, http.MethodPost, "/movements/", map[string]any{
		"sku": v.SKU, "qty": 5, "reason": "entry",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp movementResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, v.SKU, resp.SKU)
	require.Equal(t, 5, resp.Qty)
}

func TestHandleRecordMovementUnknownSKU(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/movements/", map[string]any{
		"sku": "NAO-EXISTE-AZUL-M", "qty": 5, "reason": "entry",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCreateVariantValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/variants/", map[string]any{
		"category": "Camiseta",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "subtype")
}

func TestHandleStockValueCachesUntilInvalidated(t *testing.T) {
	router, svc := newTestRouter(t)
	v := seedVariant(t, svc)
	_, err := svc.RecordMovement(context.Background(), v.SKU, 4, ReasonEntry)
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodGet, "/stock/value", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var first StockValuePayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	require.Equal(t, 4, first.TotalUnits)
	require.InDelta(t, 40.0, first.TotalValue, 0.001)

	// Mutating behind the handler's back keeps serving the cached payload.
	_, err = svc.RecordMovement(context.Background(), v.SKU, 6, ReasonEntry)
	require.NoError(t, err)
	rec = doJSON(t, router, http.MethodGet, "/stock/value", nil)
	var second StockValuePayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	require.Equal(t, 4, second.TotalUnits)

	// A movement through the API invalidates the cache.
	rec = doJSON(t, router, http.MethodPost, "/movements/", map[string]any{
		"sku": v.SKU, "qty": 1, "reason": "entry",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/stock/value", nil)
	var third StockValuePayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &third))
	require.Equal(t, 11, third.TotalUnits)
}
