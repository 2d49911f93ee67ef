package apply

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jiorblanc/estoque/internal/extract"
	"github.com/jiorblanc/estoque/internal/ledger"
)

type fakeLedger struct {
	stock map[string]int
	calls []string
	fail  map[string]error
}

func (f *fakeLedger) ApplyClampedSale(ctx context.Context, skuID string, requested int, reason ledger.Reason) (int, int, int, error) {
	f.calls = append(f.calls, skuID)
	if err, ok := f.fail[skuID]; ok {
		return 0, 0, 0, err
	}
	before, ok := f.stock[skuID]
	if !ok {
		return 0, 0, 0, ledger.ErrUnknownSKU
	}
	applied := requested
	if before < applied {
		applied = before
	}
	if applied < 0 {
		applied = 0
	}
	f.stock[skuID] = before - applied
	return applied, requested - applied, before, nil
}

type fakeMapper struct {
	entries map[string]string
}

func (f *fakeMapper) Upsert(ctx context.Context, source, ledgerSKU string) error {
	if f.entries == nil {
		f.entries = make(map[string]string)
	}
	f.entries[source] = ledgerSKU
	return nil
}

func newTestApplier(stock map[string]int) (*Applier, *fakeLedger, *fakeMapper) {
	l := &fakeLedger{stock: stock}
	m := &fakeMapper{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewApplier(l, m, logger), l, m
}

func TestRunAppliesMappedCandidates(t *testing.T) {
	app, fl, _ := newTestApplier(map[string]int{"CAM-LISA-AZUL-M": 10})

	sum, err := app.Run(context.Background(), []extract.Candidate{
		{Source: "CAM-LISA-AZUL-M", SKU: "CAM-LISA-AZUL-M", Quantity: 3, Mapped: true},
	}, Options{})
	require.NoError(t, err)
	require.NotEmpty(t, sum.BatchID)
	require.Equal(t, 1, sum.Applied)
	require.Zero(t, sum.Unmapped)
	require.Zero(t, sum.TotalShortfall)
	require.Equal(t, 7, fl.stock["CAM-LISA-AZUL-M"])
	require.Equal(t, StatusApplied, sum.Lines[0].Status)
	require.Equal(t, 3, sum.Lines[0].Applied)
}

func TestRunClampsToStockAndReportsShortfall(t *testing.T) {
	app, fl, _ := newTestApplier(map[string]int{"CAM-LISA-AZUL-M": 2})

	sum, err := app.Run(context.Background(), []extract.Candidate{
		{Source: "CAM-LISA-AZUL-M", SKU: "CAM-LISA-AZUL-M", Quantity: 5, Mapped: true},
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Applied)
	require.Equal(t, 3, sum.TotalShortfall)
	require.Zero(t, fl.stock["CAM-LISA-AZUL-M"])
	require.Equal(t, StatusShortfall, sum.Lines[0].Status)
	require.Equal(t, 2, sum.Lines[0].Applied)
	require.Equal(t, 3, sum.Lines[0].Shortfall)
}

func TestRunSkipsUnmappedLines(t *testing.T) {
	app, fl, _ := newTestApplier(map[string]int{"CAM-LISA-AZUL-M": 10})

	sum, err := app.Run(context.Background(), []extract.Candidate{
		{Source: "DESCONHECIDO-AZUL-M", Quantity: 2},
		{Source: "CAM-LISA-AZUL-M", SKU: "CAM-LISA-AZUL-M", Quantity: 1, Mapped: true},
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Applied)
	require.Equal(t, 1, sum.Unmapped)
	require.Equal(t, StatusUnmapped, sum.Lines[0].Status)
	// The unmapped line never reaches the ledger.
	require.Equal(t, []string{"CAM-LISA-AZUL-M"}, fl.calls)
}

func TestRunContinuesPastLedgerErrors(t *testing.T) {
	app, fl, _ := newTestApplier(map[string]int{
		"CAM-LISA-AZUL-M": 10,
		"CAM-LISA-AZUL-G": 10,
	})
	fl.fail = map[string]error{"CAM-LISA-AZUL-M": errors.New("boom")}

	sum, err := app.Run(context.Background(), []extract.Candidate{
		{Source: "CAM-LISA-AZUL-M", SKU: "CAM-LISA-AZUL-M", Quantity: 1, Mapped: true},
		{Source: "CAM-LISA-AZUL-G", SKU: "CAM-LISA-AZUL-G", Quantity: 1, Mapped: true},
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Applied)
	require.Equal(t, 1, sum.Errored)
	require.Equal(t, StatusError, sum.Lines[0].Status)
	require.Equal(t, StatusApplied, sum.Lines[1].Status)
}

func TestRunPersistsMappingsWhenAsked(t *testing.T) {
	app, _, fm := newTestApplier(map[string]int{"CAM-LISA-AZUL-M": 10})

	cands := []extract.Candidate{
		{Source: "CAM-LISA-AZU-L-M", SKU: "CAM-LISA-AZUL-M", Quantity: 1, Mapped: true},
		{Source: "DESCONHECIDO-AZUL-M", Quantity: 1},
	}

	_, err := app.Run(context.Background(), cands, Options{PersistMappings: true})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"CAM-LISA-AZU-L-M": "CAM-LISA-AZUL-M"}, fm.entries)

	fm.entries = nil
	_, err = app.Run(context.Background(), cands, Options{})
	require.NoError(t, err)
	require.Empty(t, fm.entries)
}

func TestRunRejectsEmptyBatch(t *testing.T) {
	app, _, _ := newTestApplier(nil)

	_, err := app.Run(context.Background(), nil, Options{})
	require.ErrorIs(t, err, extract.ErrNoItemsFound)
}

func TestRunRejectsNonPositiveQuantity(t *testing.T) {
	app, fl, _ := newTestApplier(map[string]int{"CAM-LISA-AZUL-M": 10})

	sum, err := app.Run(context.Background(), []extract.Candidate{
		{Source: "CAM-LISA-AZUL-M", SKU: "CAM-LISA-AZUL-M", Quantity: 0, Mapped: true},
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Errored)
	require.Empty(t, fl.calls)
	require.Equal(t, 10, fl.stock["CAM-LISA-AZUL-M"])
}
