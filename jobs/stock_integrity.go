package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewStockIntegrityHandler scans the ledger for rows that violate its
// bookkeeping assumptions: negative derived stock and movements with a reason
// outside the enumerated set. Findings are logged for operator follow-up, the
// ledger itself is never mutated.
func NewStockIntegrityHandler(pool *pgxpool.Pool, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload StockIntegrityPayload
		if len(t.Payload()) > 0 {
			if err := json.Unmarshal(t.Payload(), &payload); err != nil {
				return asynq.SkipRetry
			}
		}
		started := time.Now()

		negatives, err := scanNegativeStock(ctx, pool)
		if err != nil {
			return err
		}
		for _, sku := range negatives {
			logger.Warn("negative stock detected", slog.String("sku", sku))
		}

		badReasons, err := scanUnknownReasons(ctx, pool)
		if err != nil {
			return err
		}
		for reason, count := range badReasons {
			logger.Warn("unknown movement reason",
				slog.String("reason", reason), slog.Int("movements", count))
		}

		logger.Info("stock integrity scan finished",
			slog.Int("negative_skus", len(negatives)),
			slog.Int("unknown_reasons", len(badReasons)),
			slog.Duration("elapsed", time.Since(started)))
		return nil
	}
}

func scanNegativeStock(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	rows, err := pool.Query(ctx, `
		SELECT v.sku
		FROM stock_view s
		JOIN variants v ON v.id = s.variant_id
		WHERE s.stock < 0
		ORDER BY v.sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var skus []string
	for rows.Next() {
		var sku string
		if err := rows.Scan(&sku); err != nil {
			return nil, err
		}
		skus = append(skus, sku)
	}
	return skus, rows.Err()
}

func scanUnknownReasons(ctx context.Context, pool *pgxpool.Pool) (map[string]int, error) {
	rows, err := pool.Query(ctx, `
		SELECT reason, COUNT(*)
		FROM movements
		WHERE reason NOT IN ('entry', 'sale', 'sale_from_document', 'adjustment')
		GROUP BY reason`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := map[string]int{}
	for rows.Next() {
		var reason string
		var count int
		if err := rows.Scan(&reason, &count); err != nil {
			return nil, err
		}
		found[reason] = count
	}
	return found, rows.Err()
}
