package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaDDL is applied at startup. Every statement is idempotent so repeated
// boots against the same database are safe.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS products (
    id        BIGSERIAL PRIMARY KEY,
    category  TEXT NOT NULL,
    subtype   TEXT NOT NULL,
    sku_base  TEXT,
    unit_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
    UNIQUE (category, subtype)
);

CREATE TABLE IF NOT EXISTS variants (
    id                 BIGSERIAL PRIMARY KEY,
    product_id         BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
    color              TEXT NOT NULL,
    size               TEXT NOT NULL,
    sku                TEXT NOT NULL UNIQUE,
    unit_cost_override DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS movements (
    id         BIGSERIAL PRIMARY KEY,
    variant_id BIGINT NOT NULL REFERENCES variants(id) ON DELETE CASCADE,
    qty        INTEGER NOT NULL,
    reason     TEXT NOT NULL,
    ts         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_movements_variant ON movements (variant_id);
CREATE INDEX IF NOT EXISTS idx_movements_ts ON movements (ts);

CREATE TABLE IF NOT EXISTS sku_mapping (
    id                BIGSERIAL PRIMARY KEY,
    source_identifier TEXT NOT NULL UNIQUE,
    ledger_sku        TEXT NOT NULL
        REFERENCES variants(sku) ON UPDATE CASCADE ON DELETE CASCADE
);

CREATE OR REPLACE VIEW stock_view AS
SELECT variant_id, COALESCE(SUM(qty), 0) AS stock
FROM movements
GROUP BY variant_id;

CREATE OR REPLACE VIEW stock_value_view AS
SELECT v.sku,
       COALESCE(s.stock, 0) AS stock,
       COALESCE(v.unit_cost_override, p.unit_cost) AS unit_cost,
       GREATEST(COALESCE(s.stock, 0), 0) * COALESCE(v.unit_cost_override, p.unit_cost) AS value
FROM variants v
JOIN products p ON p.id = v.product_id
LEFT JOIN stock_view s ON s.variant_id = v.id;
`

// Migrate creates the schema objects the application expects.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("platform/db: migrate: %w", err)
	}
	return nil
}
