// Package apply turns extracted recap candidates into ledger movements.
package apply

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jiorblanc/estoque/internal/extract"
	"github.com/jiorblanc/estoque/internal/ledger"
)

// LineStatus classifies the outcome of one candidate.
type LineStatus string

const (
	StatusApplied   LineStatus = "applied"
	StatusShortfall LineStatus = "shortfall"
	StatusUnmapped  LineStatus = "unmapped"
	StatusError     LineStatus = "error"
)

// Line is the per-candidate outcome of an apply run.
type Line struct {
	Source    string     `json:"source"`
	SKU       string     `json:"sku,omitempty"`
	Requested int        `json:"requested"`
	Applied   int        `json:"applied"`
	Shortfall int        `json:"shortfall"`
	Status    LineStatus `json:"status"`
	Error     string     `json:"error,omitempty"`
}

// Summary aggregates one apply run. BatchID groups the movements it wrote.
type Summary struct {
	BatchID        string `json:"batch_id"`
	Applied        int    `json:"applied"`
	Unmapped       int    `json:"unmapped"`
	Errored        int    `json:"errored"`
	TotalShortfall int    `json:"total_shortfall"`
	Lines          []Line `json:"lines"`
}

// Ledger is the slice of the stock service the applier needs.
type Ledger interface {
	ApplyClampedSale(ctx context.Context, skuID string, requested int, reason ledger.Reason) (applied, shortfall, stockBefore int, err error)
}

// Mapper persists confirmed identifier mappings.
type Mapper interface {
	Upsert(ctx context.Context, source, ledgerSKU string) error
}

// Options tunes one apply run.
type Options struct {
	// PersistMappings records each successfully applied candidate's source
	// identifier in the mapping registry.
	PersistMappings bool
	// Reason defaults to ReasonSaleFromDocument when empty.
	Reason ledger.Reason
}

// Applier posts clamped sale movements for extracted candidates.
type Applier struct {
	ledger Ledger
	mapper Mapper
	logger *slog.Logger
}

// NewApplier builds Applier.
func NewApplier(l Ledger, m Mapper, logger *slog.Logger) *Applier {
	return &Applier{ledger: l, mapper: m, logger: logger}
}

// Run applies the candidates best-effort: unmapped or invalid lines are
// counted and skipped, never aborting the batch. Each applied quantity is
// clamped to available stock, so the run can only drain stock it has.
func (a *Applier) Run(ctx context.Context, candidates []extract.Candidate, opts Options) (Summary, error) {
	if len(candidates) == 0 {
		return Summary{}, extract.ErrNoItemsFound
	}
	reason := opts.Reason
	if reason == "" {
		reason = ledger.ReasonSaleFromDocument
	}

	sum := Summary{BatchID: uuid.NewString()}
	for _, c := range candidates {
		line := Line{Source: c.Source, SKU: c.SKU, Requested: c.Quantity}
		switch {
		case !c.Mapped:
			line.Status = StatusUnmapped
			sum.Unmapped++
		case c.Quantity <= 0:
			line.Status = StatusError
			line.Error = ledger.ErrInvalidQuantity.Error()
			sum.Errored++
		default:
			applied, shortfall, _, err := a.ledger.ApplyClampedSale(ctx, c.SKU, c.Quantity, reason)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return sum, err
				}
				line.Status = StatusError
				line.Error = err.Error()
				sum.Errored++
				a.logger.Warn("recap line failed",
					slog.String("sku", c.SKU), slog.Any("error", err))
				break
			}
			line.Applied = applied
			line.Shortfall = shortfall
			sum.TotalShortfall += shortfall
			if shortfall > 0 {
				line.Status = StatusShortfall
			} else {
				line.Status = StatusApplied
			}
			sum.Applied++
			if opts.PersistMappings {
				if err := a.mapper.Upsert(ctx, c.Source, c.SKU); err != nil {
					a.logger.Warn("mapping persist failed",
						slog.String("source", c.Source), slog.Any("error", err))
				}
			}
		}
		sum.Lines = append(sum.Lines, line)
	}

	a.logger.Info("recap applied",
		slog.String("batch_id", sum.BatchID),
		slog.Int("applied", sum.Applied),
		slog.Int("unmapped", sum.Unmapped),
		slog.Int("errored", sum.Errored),
		slog.Int("total_shortfall", sum.TotalShortfall))
	return sum, nil
}
