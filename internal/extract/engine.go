// Package extract turns sales-recap page text into identifier/quantity
// candidates ready to be applied against the stock ledger.
package extract

import (
	"context"
	"errors"
	"log/slog"
)

// HighQuantityThreshold flags candidates whose quantity is implausibly large
// for a single recap line and deserves operator review.
const HighQuantityThreshold = 99

// ErrNoItemsFound indicates the document contained no parseable item lines.
var ErrNoItemsFound = errors.New("extract: no items found in document")

// Resolver maps a document identifier to a ledger SKU. The boolean reports
// whether a match exists.
type Resolver interface {
	Resolve(ctx context.Context, documentID string) (string, bool, error)
}

// Candidate is one extracted movement proposal.
type Candidate struct {
	Source       string `json:"source"`
	SKU          string `json:"sku,omitempty"`
	Quantity     int    `json:"quantity"`
	Mapped       bool   `json:"mapped"`
	HighQuantity bool   `json:"high_quantity"`
}

// Engine runs the staged extraction pipeline over recap page text.
type Engine struct {
	resolver Resolver
	logger   *slog.Logger
}

// NewEngine builds Engine.
func NewEngine(resolver Resolver, logger *slog.Logger) *Engine {
	return &Engine{resolver: resolver, logger: logger}
}

// Extract normalizes and scans the pages, deduplicates repeated
// identifier/quantity pairs and resolves each against the ledger. It returns
// ErrNoItemsFound when nothing parseable remains after filtering.
func (e *Engine) Extract(ctx context.Context, pages []string) ([]Candidate, error) {
	lines := mergeWrapped(filterNoise(normalizeLines(pages)))

	var facts []fact
	for _, ln := range lines {
		facts = append(facts, scanLine(stripStraySizes(compact(ln)))...)
	}
	facts = dedupeFacts(facts)
	if len(facts) == 0 {
		return nil, ErrNoItemsFound
	}

	candidates := make([]Candidate, 0, len(facts))
	for _, f := range facts {
		c := Candidate{
			Source:       f.id,
			Quantity:     f.qty,
			HighQuantity: f.qty > HighQuantityThreshold,
		}
		resolved, ok, err := e.resolver.Resolve(ctx, f.id)
		if err != nil {
			return nil, err
		}
		if ok {
			c.SKU = resolved
			c.Mapped = true
		}
		candidates = append(candidates, c)
	}

	e.logger.Info("recap extracted",
		slog.Int("lines", len(lines)),
		slog.Int("candidates", len(candidates)))
	return candidates, nil
}
