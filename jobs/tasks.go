package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockIntegrity triggers the periodic ledger consistency scan.
	TaskStockIntegrity = "stock:integrity"
	// TaskStockValueWarmup refreshes the cached valued stock projection.
	TaskStockValueWarmup = "stock:warmup"
)

// StockIntegrityPayload carries scheduling metadata.
type StockIntegrityPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewStockIntegrityTask constructs an Asynq task for the integrity scan.
func NewStockIntegrityTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(StockIntegrityPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockIntegrity, body, asynq.Queue(QueueDefault)), nil
}

// NewStockValueWarmupTask constructs an Asynq task for the cache warmup.
func NewStockValueWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskStockValueWarmup, nil, asynq.Queue(QueueDefault))
}
