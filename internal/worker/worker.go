package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shul-site/backend/internal/models"
	"github.com/shul-site/backend/pkg/queue"
)

// jobTimeout bounds the work on a job once it has left the queue.
const jobTimeout = 30 * time.Second

// JobQueue is satisfied by *queue.Queue.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// PaymentStore is satisfied by *payments.Repository.
type PaymentStore interface {
	Record(ctx context.Context, p *models.Payment) (bool, error)
}

// ReceiptProcessor persists approved checkouts from the receipt queue into the payments table.
type ReceiptProcessor struct {
	payments PaymentStore
	queue    JobQueue
	logger   *zap.Logger
	backoff  time.Duration
}

// NewReceiptProcessor creates a receipt processor.
func NewReceiptProcessor(payments PaymentStore, q JobQueue, logger *zap.Logger) *ReceiptProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceiptProcessor{payments: payments, queue: q, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one receipt job. Replays of an already stored transaction succeed.
func (p *ReceiptProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeCheckoutReceipt {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ReceiptPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.TransactionID == "" {
		return fmt.Errorf("receipt for order %s has no transaction id", payload.OrderID)
	}
	amount, err := decimal.NewFromString(payload.Amount)
	if err != nil {
		return fmt.Errorf("parse amount %q: %w", payload.Amount, err)
	}
	lines, err := json.Marshal(payload.Lines)
	if err != nil {
		return fmt.Errorf("marshal lines: %w", err)
	}

	payment := &models.Payment{
		Provider:              models.PaymentProviderPayPal,
		ProviderOrderID:       payload.OrderID,
		ProviderTransactionID: payload.TransactionID,
		Catalog:               payload.Catalog,
		PayerName:             payload.PayerName,
		Amount:                amount,
		Currency:              payload.Currency,
		Status:                payload.CaptureStatus,
		Description:           payload.Description,
		LineItems:             lines,
		CapturedAt:            payload.CapturedAt,
	}
	if payment.CapturedAt.IsZero() {
		payment.CapturedAt = job.CreatedAt
	}

	created, err := p.payments.Record(ctx, payment)
	if err != nil {
		return fmt.Errorf("record payment: %w", err)
	}
	if !created {
		p.logger.Info("receipt already recorded", zap.String("transaction_id", payload.TransactionID))
		return nil
	}
	p.logger.Info("payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("transaction_id", payload.TransactionID),
		zap.String("catalog", payload.Catalog),
		zap.String("amount", amount.StringFixed(2)),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ReceiptProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("receipt worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		if err := p.handle(ctx, job); err != nil {
			p.sleep(ctx)
		}
	}
}

// handle processes a dequeued job and requeues it on failure. The job is no
// longer in the queue, so neither step may be cut short by shutdown.
func (p *ReceiptProcessor) handle(ctx context.Context, job *queue.Job) error {
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), jobTimeout)
	defer cancel()

	p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	err := p.Process(jobCtx, job)
	if err == nil {
		return nil
	}
	p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
	if reErr := p.queue.Retry(jobCtx, job); reErr != nil {
		p.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(reErr))
	}
	return err
}

func (p *ReceiptProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
