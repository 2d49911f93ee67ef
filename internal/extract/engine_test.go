package extract

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jiorblanc/estoque/internal/sku"
)

// stubResolver resolves against a fixed SKU list the way the mapping registry
// does on its normalized-key fallback path.
type stubResolver struct {
	skus []string
}

func (r *stubResolver) Resolve(ctx context.Context, documentID string) (string, bool, error) {
	norm := sku.NormalizeKey(documentID)
	if norm == "" {
		return "", false, nil
	}
	for _, s := range r.skus {
		if sku.NormalizeKey(s) == norm {
			return s, true, nil
		}
	}
	return "", false, nil
}

func newTestEngine(skus ...string) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(&stubResolver{skus: skus}, logger)
}

func TestExtractSimpleLine(t *testing.T) {
	eng := newTestEngine("CAM-LISA-AZUL-M")

	got, err := eng.Extract(context.Background(), []string{"CAM-LISA-AZUL-M 2"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "CAM-LISA-AZUL-M", got[0].Source)
	require.Equal(t, "CAM-LISA-AZUL-M", got[0].SKU)
	require.Equal(t, 2, got[0].Quantity)
	require.True(t, got[0].Mapped)
	require.False(t, got[0].HighQuantity)
}

func TestExtractMergesWrappedLines(t *testing.T) {
	eng := newTestEngine("CAM-LISA-AZUL-M")

	pages := []string{"CAM-LISA-AZU-\nL-M12"}
	got, err := eng.Extract(context.Background(), pages)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "CAM-LISA-AZUL-M", got[0].SKU)
	require.Equal(t, 12, got[0].Quantity)
	require.True(t, got[0].Mapped)
}

func TestExtractThreeDigitNumericSize(t *testing.T) {
	eng := newTestEngine("MOL-CARECA-AZUL-20")

	got, err := eng.Extract(context.Background(), []string{"MOL-CARECA-AZUL-205"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "MOL-CARECA-AZUL-20", got[0].Source)
	require.Equal(t, "MOL-CARECA-AZUL-20", got[0].SKU)
	require.Equal(t, 5, got[0].Quantity)
}

func TestExtractPeelsGluedQuantity(t *testing.T) {
	eng := newTestEngine()

	// Size 4 is recognized, the trailing 2 peels off as the quantity.
	got, err := eng.Extract(context.Background(), []string{"CJ-MOLETOM-PRETO-42"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "CJ-MOLETOM-PRETO-4", got[0].Source)
	require.Equal(t, 2, got[0].Quantity)
	require.False(t, got[0].Mapped)
}

func TestExtractSlashGuard(t *testing.T) {
	eng := newTestEngine()

	// A pagination fragment glued straight onto the quantity digits: only the
	// digit before the slash counts.
	got, err := eng.Extract(context.Background(), []string{"CAM-LISA-AZUL-M21/3"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "CAM-LISA-AZUL-M", got[0].Source)
	require.Equal(t, 2, got[0].Quantity)
}

func TestExtractPendingTail(t *testing.T) {
	eng := newTestEngine()

	// The quantity arrives after the identifier with a stray size glued on.
	got, err := eng.Extract(context.Background(), []string{"CAM-LISA-PRETO-GG M12"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "CAM-LISA-PRETO-GG", got[0].Source)
	require.Equal(t, 12, got[0].Quantity)
}

func TestExtractPendingDiscardedAtLineEnd(t *testing.T) {
	eng := newTestEngine()

	got, err := eng.Extract(context.Background(), []string{
		"CAM-LISA-PRETO-GG",
		"CAM-LISA-AZUL-M 3",
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "CAM-LISA-AZUL-M", got[0].Source)
}

func TestExtractDeduplicatesRepeatedPairs(t *testing.T) {
	eng := newTestEngine()

	got, err := eng.Extract(context.Background(), []string{
		"CAM-LISA-AZUL-M 2",
		"CAM-LISA-AZUL-M 2",
		"CAM-LISA-AZUL-M 3",
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 2, got[0].Quantity)
	require.Equal(t, 3, got[1].Quantity)
}

func TestExtractStripsStrayPrefacedSize(t *testing.T) {
	eng := newTestEngine()

	got, err := eng.Extract(context.Background(), []string{"M CAM-LISA-AZUL-M 10"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "CAM-LISA-AZUL-M", got[0].Source)
	require.Equal(t, 10, got[0].Quantity)
}

func TestExtractFlagsHighQuantity(t *testing.T) {
	eng := newTestEngine()

	got, err := eng.Extract(context.Background(), []string{"MOL-CARECA-AZUL-M 120"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 120, got[0].Quantity)
	require.True(t, got[0].HighQuantity)
}

func TestExtractNoItemsFound(t *testing.T) {
	eng := newTestEngine()

	_, err := eng.Extract(context.Background(), []string{
		"LISTA DE RESUMO DE ENVIOS",
		"SKU DE PRODUTO",
		"QTD.",
		"1/1",
	})
	require.ErrorIs(t, err, ErrNoItemsFound)
}

func TestExtractIgnoresBoilerplate(t *testing.T) {
	eng := newTestEngine()

	got, err := eng.Extract(context.Background(), []string{
		"LISTA DE RESUMO DE ENVIOS",
		"(PRODUTOS DO ARMAZÉM)",
		"VARIAÇÃO",
		"SKU DE PRODUTO",
		"QTD.",
		"CAM-LISA-AZUL-M 2",
		"IMPRIMIR COM UPSELLER",
		"HTTPS://EXEMPLO.COM/RESUMO",
		"12/08/2026",
		"TOTAL DE PRODUTOS: 2",
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "CAM-LISA-AZUL-M", got[0].Source)
}
