package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueReceipts is the Redis list key for approved checkout receipts.
	QueueReceipts = "worker:receipts"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
	// dequeueTimeout bounds BLPOP so the worker notices shutdown.
	dequeueTimeout = 5 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeCheckoutReceipt JobType = "checkout_receipt"
)

// ReceiptLine is one purchased line inside a receipt.
type ReceiptLine struct {
	Name       string `json:"name"`
	UnitAmount string `json:"unit_amount"`
	Quantity   int    `json:"quantity"`
	Category   string `json:"category,omitempty"`
}

// ReceiptPayload is the payload for checkout receipt jobs.
type ReceiptPayload struct {
	OrderID       string        `json:"order_id"`
	TransactionID string        `json:"transaction_id"`
	PayerName     string        `json:"payer_name"`
	Amount        string        `json:"amount"`
	Currency      string        `json:"currency"`
	CaptureStatus string        `json:"capture_status"`
	Catalog       string        `json:"catalog"`
	Description   string        `json:"description"`
	Lines         []ReceiptLine `json:"lines"`
	CapturedAt    time.Time     `json:"captured_at"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client redis.Cmdable
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client redis.Cmdable, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// EnqueueReceipt enqueues a checkout receipt job.
func (q *Queue) EnqueueReceipt(ctx context.Context, payload ReceiptPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      JobTypeCheckoutReceipt,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, QueueReceipts, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued receipt job", zap.String("job_id", job.ID), zap.String("order_id", payload.OrderID))
	return nil
}

// Dequeue waits briefly for a job. A nil job with nil error means nothing arrived.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.BLPop(ctx, dequeueTimeout, QueueReceipts).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload, moving to DLQ", zap.String("raw", result[1]), zap.Error(err))
		if dlqErr := q.client.RPush(ctx, QueueDLQ, result[1]).Err(); dlqErr != nil {
			q.logger.Error("dlq push failed", zap.Error(dlqErr))
		}
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.client.RPush(ctx, QueueReceipts, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// DeadLetters returns up to limit raw jobs from the DLQ without removing them.
func (q *Queue) DeadLetters(ctx context.Context, limit int64) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	return q.client.LRange(ctx, QueueDLQ, 0, limit-1).Result()
}
