package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/jiorblanc/estoque/internal/ledger"
)

// NewStockValueWarmupHandler recomputes the valued stock projection and
// refreshes the cache entry the stock-value endpoint serves from.
func NewStockValueWarmupHandler(svc *ledger.Service, cache *redis.Client, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		summary, err := svc.StockSummary(ctx, ledger.StockFilter{})
		if err != nil {
			return err
		}
		raw, err := json.Marshal(ledger.NewStockValuePayload(summary))
		if err != nil {
			return asynq.SkipRetry
		}
		if err := cache.Set(ctx, ledger.StockValueCacheKey, raw, ledger.StockValueCacheTTL).Err(); err != nil {
			return err
		}
		logger.Info("stock value cache warmed",
			slog.Int("items", summary.TotalItems),
			slog.Float64("total_value", summary.TotalValue))
		return nil
	}
}
