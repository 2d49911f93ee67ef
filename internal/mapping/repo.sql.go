package mapping

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists mapping entries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, source_identifier, ledger_sku FROM sku_mapping ORDER BY source_identifier`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Source, &e.LedgerSKU); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *Repository) Upsert(ctx context.Context, source, ledgerSKU string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sku_mapping (source_identifier, ledger_sku)
		VALUES ($1, $2)
		ON CONFLICT (source_identifier) DO UPDATE SET ledger_sku = EXCLUDED.ledger_sku`,
		source, ledgerSKU)
	return err
}

func (r *Repository) Delete(ctx context.Context, source string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sku_mapping WHERE source_identifier = $1`, source)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *Repository) ListLedgerSKUs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT sku FROM variants ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var skus []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		skus = append(skus, s)
	}
	return skus, rows.Err()
}
