package payments

import (
	"context"
	"time"

	"github.com/shul-site/backend/internal/checkout"
	"github.com/shul-site/backend/pkg/queue"
)

// Enqueuer is satisfied by *queue.Queue.
type Enqueuer interface {
	EnqueueReceipt(ctx context.Context, payload queue.ReceiptPayload) error
}

// QueueRecorder hands approved checkouts to the worker as receipt jobs.
type QueueRecorder struct {
	queue Enqueuer
	now   func() time.Time
}

// NewQueueRecorder creates a checkout.Recorder backed by the job queue.
func NewQueueRecorder(q Enqueuer) *QueueRecorder {
	return &QueueRecorder{queue: q, now: time.Now}
}

// RecordApproval implements checkout.Recorder.
func (r *QueueRecorder) RecordApproval(ctx context.Context, rc checkout.Receipt) error {
	return r.queue.EnqueueReceipt(ctx, ReceiptPayload(rc, r.now().UTC()))
}

// ReceiptPayload converts a checkout receipt into its queue form.
func ReceiptPayload(rc checkout.Receipt, capturedAt time.Time) queue.ReceiptPayload {
	p := queue.ReceiptPayload{
		OrderID:       rc.OrderID,
		TransactionID: rc.TransactionID,
		PayerName:     rc.PayerName,
		Amount:        rc.Amount.StringFixed(2),
		Currency:      rc.Order.Currency,
		CaptureStatus: rc.CaptureStatus,
		Catalog:       rc.Order.CustomID,
		Description:   rc.Order.Description,
		Lines:         make([]queue.ReceiptLine, 0, len(rc.Order.LineItems)),
		CapturedAt:    capturedAt,
	}
	if p.Currency == "" {
		p.Currency = checkout.Currency
	}
	for _, li := range rc.Order.LineItems {
		p.Lines = append(p.Lines, queue.ReceiptLine{
			Name:       li.Name,
			UnitAmount: li.UnitAmount.StringFixed(2),
			Quantity:   li.Quantity,
			Category:   string(li.Category),
		})
	}
	return p
}
