package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jiorblanc/estoque/internal/platform/db"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const variantColumns = `v.id, v.product_id, p.category, p.subtype, v.color, v.size, v.sku,
       v.unit_cost_override, COALESCE(p.sku_base, ''), p.sku_base IS NOT NULL, p.unit_cost`

func scanVariant(row pgx.Row) (Variant, error) {
	var v Variant
	var hasBase bool
	err := row.Scan(&v.ID, &v.ProductID, &v.Category, &v.Subtype, &v.Color, &v.Size, &v.SKU,
		&v.UnitCostOverride, &v.ProductSKUBase, &hasBase, &v.ProductUnitCost)
	if !hasBase {
		v.ProductSKUBase = ""
	}
	return v, err
}

func (r *Repository) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, category, subtype, COALESCE(sku_base, ''), sku_base IS NOT NULL, unit_cost
		FROM products ORDER BY category, subtype`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Category, &p.Subtype, &p.SKUBase, &p.HasBase, &p.UnitCost); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *Repository) ListVariants(ctx context.Context) ([]Variant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+variantColumns+`
		FROM variants v JOIN products p ON p.id = v.product_id
		ORDER BY p.category, p.subtype, v.color, v.size`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var variants []Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func (r *Repository) GetVariant(ctx context.Context, sku string) (Variant, error) {
	v, err := scanVariant(r.pool.QueryRow(ctx, `
		SELECT `+variantColumns+`
		FROM variants v JOIN products p ON p.id = v.product_id
		WHERE v.sku = $1`, sku))
	if errors.Is(err, pgx.ErrNoRows) {
		return Variant{}, ErrUnknownSKU
	}
	return v, err
}

func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	query := `
		SELECT m.id, m.variant_id, v.sku, p.category, p.subtype, v.color, v.size, m.qty, m.reason, m.ts
		FROM movements m
		JOIN variants v ON v.id = m.variant_id
		JOIN products p ON p.id = v.product_id`
	var conds []string
	var args []any
	if filter.SKU != "" {
		args = append(args, filter.SKU)
		conds = append(conds, fmt.Sprintf("v.sku = $%d", len(args)))
	}
	if filter.Reason != "" {
		args = append(args, string(filter.Reason))
		conds = append(conds, fmt.Sprintf("m.reason = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		conds = append(conds, fmt.Sprintf("m.ts >= $%d", len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY m.ts DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.VariantID, &m.SKU, &m.Category, &m.Subtype, &m.Color, &m.Size, &m.Qty, &m.Reason, &m.At); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (r *Repository) Stock(ctx context.Context, filter StockFilter) ([]StockRow, error) {
	query := `
		SELECT v.sku, p.category, p.subtype, v.color, v.size,
		       COALESCE(s.stock, 0),
		       COALESCE(v.unit_cost_override, p.unit_cost, 0),
		       COALESCE(s.stock, 0) * COALESCE(v.unit_cost_override, p.unit_cost, 0)
		FROM variants v
		JOIN products p ON p.id = v.product_id
		LEFT JOIN stock_view s ON s.variant_id = v.id`
	var args []any
	if filter.Text != "" {
		args = append(args, "%"+filter.Text+"%")
		query += ` WHERE (v.sku ILIKE $1 OR p.category ILIKE $1 OR p.subtype ILIKE $1 OR v.color ILIKE $1 OR v.size ILIKE $1)`
	}
	if filter.CriticalOnly && filter.CriticalAt > 0 {
		args = append(args, filter.CriticalAt)
		kw := " WHERE "
		if filter.Text != "" {
			kw = " AND "
		}
		query += fmt.Sprintf("%sCOALESCE(s.stock, 0) <= $%d", kw, len(args))
	}
	query += " ORDER BY p.category, p.subtype, v.color, v.size"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []StockRow
	for rows.Next() {
		var row StockRow
		if err := rows.Scan(&row.SKU, &row.Category, &row.Subtype, &row.Color, &row.Size, &row.Stock, &row.UnitCost, &row.Value); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (r *Repository) SalesSummary(ctx context.Context, days int) ([]SalesRow, error) {
	query := `
		SELECT p.category, p.subtype, v.color, v.size,
		       ABS(SUM(m.qty)), COUNT(*),
		       COALESCE(v.unit_cost_override, p.unit_cost, 0),
		       ABS(SUM(m.qty)) * COALESCE(v.unit_cost_override, p.unit_cost, 0)
		FROM movements m
		JOIN variants v ON v.id = m.variant_id
		JOIN products p ON p.id = v.product_id
		WHERE m.reason IN ('sale', 'sale_from_document')`
	var args []any
	if days > 0 {
		args = append(args, time.Now().UTC().AddDate(0, 0, -days))
		query += " AND m.ts >= $1"
	}
	query += `
		GROUP BY p.category, p.subtype, v.color, v.size, v.unit_cost_override, p.unit_cost
		ORDER BY ABS(SUM(m.qty)) DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SalesRow
	for rows.Next() {
		var row SalesRow
		if err := rows.Scan(&row.Category, &row.Subtype, &row.Color, &row.Size, &row.UnitsSold, &row.SaleCount, &row.UnitCost, &row.Value); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (t *txRepo) GetProduct(ctx context.Context, category, subtype string) (Product, error) {
	var p Product
	err := t.tx.QueryRow(ctx, `
		SELECT id, category, subtype, COALESCE(sku_base, ''), sku_base IS NOT NULL, unit_cost
		FROM products WHERE category = $1 AND subtype = $2`, category, subtype).
		Scan(&p.ID, &p.Category, &p.Subtype, &p.SKUBase, &p.HasBase, &p.UnitCost)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

func (t *txRepo) InsertProduct(ctx context.Context, p Product) (int64, error) {
	var base *string
	if p.HasBase {
		base = &p.SKUBase
	}
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO products (category, subtype, sku_base, unit_cost)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		p.Category, p.Subtype, base, p.UnitCost).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateProduct(ctx context.Context, id int64, skuBase StringPatch, unitCost FloatPatch) error {
	if skuBase.Set {
		var base *string
		if skuBase.Value != "" {
			base = &skuBase.Value
		}
		if _, err := t.tx.Exec(ctx, `UPDATE products SET sku_base = $1 WHERE id = $2`, base, id); err != nil {
			return err
		}
	}
	if unitCost.Set {
		if _, err := t.tx.Exec(ctx, `UPDATE products SET unit_cost = $1 WHERE id = $2`, unitCost.Value, id); err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepo) DeleteProduct(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	return err
}

func (t *txRepo) CountVariants(ctx context.Context, productID int64) (int64, error) {
	var count int64
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM variants WHERE product_id = $1`, productID).Scan(&count)
	return count, err
}

func (t *txRepo) ListProductVariants(ctx context.Context, productID int64) ([]Variant, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+variantColumns+`
		FROM variants v JOIN products p ON p.id = v.product_id
		WHERE v.product_id = $1
		ORDER BY v.color, v.size`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var variants []Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func (t *txRepo) GetVariantBySKU(ctx context.Context, sku string) (Variant, error) {
	v, err := scanVariant(t.tx.QueryRow(ctx, `
		SELECT `+variantColumns+`
		FROM variants v JOIN products p ON p.id = v.product_id
		WHERE v.sku = $1`, sku))
	if errors.Is(err, pgx.ErrNoRows) {
		return Variant{}, ErrUnknownSKU
	}
	return v, err
}

// GetVariantForUpdate locks the variant row so a read-clamp-write sequence on
// its stock cannot race another writer.
func (t *txRepo) GetVariantForUpdate(ctx context.Context, sku string) (Variant, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `SELECT id FROM variants WHERE sku = $1 FOR UPDATE`, sku).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Variant{}, ErrUnknownSKU
	}
	if err != nil {
		return Variant{}, err
	}
	return scanVariant(t.tx.QueryRow(ctx, `
		SELECT `+variantColumns+`
		FROM variants v JOIN products p ON p.id = v.product_id
		WHERE v.id = $1`, id))
}

func (t *txRepo) InsertVariant(ctx context.Context, v Variant) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO variants (product_id, color, size, sku, unit_cost_override)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		v.ProductID, v.Color, v.Size, v.SKU, v.UnitCostOverride).Scan(&id)
	if isUniqueViolation(err) {
		return 0, ErrDuplicateSKU
	}
	return id, err
}

func (t *txRepo) UpdateVariant(ctx context.Context, v Variant) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE variants SET sku = $1, color = $2, size = $3, product_id = $4, unit_cost_override = $5
		WHERE id = $6`,
		v.SKU, v.Color, v.Size, v.ProductID, v.UnitCostOverride, v.ID)
	if isUniqueViolation(err) {
		return ErrDuplicateSKU
	}
	return err
}

func (t *txRepo) UpdateVariantSKU(ctx context.Context, id int64, sku string) error {
	_, err := t.tx.Exec(ctx, `UPDATE variants SET sku = $1 WHERE id = $2`, sku, id)
	if isUniqueViolation(err) {
		return ErrDuplicateSKU
	}
	return err
}

func (t *txRepo) DeleteVariant(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM variants WHERE id = $1`, id)
	return err
}

func (t *txRepo) SumMovements(ctx context.Context, variantID int64) (int, error) {
	var sum int
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(qty), 0) FROM movements WHERE variant_id = $1`, variantID).Scan(&sum)
	return sum, err
}

func (t *txRepo) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO movements (variant_id, qty, reason, ts)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		m.VariantID, m.Qty, string(m.Reason), m.At).Scan(&id)
	return id, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
