// Package mapping reconciles document-local identifiers against ledger SKUs.
package mapping

import (
	"context"
	"errors"

	"github.com/jiorblanc/estoque/internal/sku"
)

// Entry links a source document identifier to a ledger SKU.
type Entry struct {
	ID        int64
	Source    string
	LedgerSKU string
}

// Store abstracts mapping persistence.
type Store interface {
	List(ctx context.Context) ([]Entry, error)
	Upsert(ctx context.Context, source, ledgerSKU string) error
	Delete(ctx context.Context, source string) error
	ListLedgerSKUs(ctx context.Context) ([]string, error)
}

// ErrEntryNotFound indicates no mapping entry matches the source identifier.
var ErrEntryNotFound = errors.New("mapping: entry not found")

// Registry resolves document identifiers to ledger SKUs, with a tolerant
// normalized-key fallback for punctuation and casing drift.
type Registry struct {
	store Store
}

// NewRegistry builds Registry.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Resolve sanitizes the document identifier and looks it up among persisted
// entries; on a miss it falls back to matching normalized keys against every
// known ledger SKU. The second return reports whether a match was found.
func (r *Registry) Resolve(ctx context.Context, documentID string) (string, bool, error) {
	key := sku.Sanitize(documentID)
	if key == "" {
		return "", false, nil
	}

	entries, err := r.store.List(ctx)
	if err != nil {
		return "", false, err
	}
	for _, e := range entries {
		if sku.Sanitize(e.Source) == key {
			return e.LedgerSKU, true, nil
		}
	}

	norm := sku.NormalizeKey(key)
	skus, err := r.store.ListLedgerSKUs(ctx)
	if err != nil {
		return "", false, err
	}
	for _, s := range skus {
		if sku.NormalizeKey(s) == norm {
			return s, true, nil
		}
	}
	return "", false, nil
}

// Upsert inserts or overwrites the entry for the sanitized source identifier.
func (r *Registry) Upsert(ctx context.Context, source, ledgerSKU string) error {
	key := sku.Sanitize(source)
	if key == "" {
		return errors.New("mapping: source identifier required")
	}
	if ledgerSKU == "" {
		return errors.New("mapping: ledger sku required")
	}
	return r.store.Upsert(ctx, key, ledgerSKU)
}

// List returns every persisted entry.
func (r *Registry) List(ctx context.Context) ([]Entry, error) {
	return r.store.List(ctx)
}

// Delete removes the entry for the sanitized source identifier.
func (r *Registry) Delete(ctx context.Context, source string) error {
	return r.store.Delete(ctx, sku.Sanitize(source))
}
