package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shul-site/backend/internal/models"
	"github.com/shul-site/backend/pkg/queue"
)

type MockPayments struct {
	mock.Mock
}

func (m *MockPayments) Record(ctx context.Context, p *models.Payment) (bool, error) {
	args := m.Called(ctx, p)
	return args.Bool(0), args.Error(1)
}

type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Dequeue(ctx context.Context) (*queue.Job, error) {
	args := m.Called(ctx)
	job, _ := args.Get(0).(*queue.Job)
	return job, args.Error(1)
}

func (m *MockQueue) Retry(ctx context.Context, job *queue.Job) error {
	return m.Called(ctx, job).Error(0)
}

func receiptJob(t *testing.T, p queue.ReceiptPayload) *queue.Job {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return &queue.Job{ID: uuid.NewString(), Type: queue.JobTypeCheckoutReceipt, Payload: raw, CreatedAt: time.Now()}
}

func payload() queue.ReceiptPayload {
	return queue.ReceiptPayload{
		OrderID:       "ORDER-1",
		TransactionID: "TX-1",
		PayerName:     "Sarah Cohen",
		Amount:        "295.00",
		Currency:      "USD",
		CaptureStatus: "COMPLETED",
		Catalog:       "membership",
		Description:   "Membership - Members: Sarah Cohen",
		Lines:         []queue.ReceiptLine{{Name: "Family Membership", UnitAmount: "295.00", Quantity: 1}},
		CapturedAt:    time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestProcessRecordsPayment(t *testing.T) {
	store := new(MockPayments)
	p := NewReceiptProcessor(store, new(MockQueue), nil)
	ctx := context.Background()

	store.On("Record", ctx, mock.MatchedBy(func(pm *models.Payment) bool {
		return pm.ProviderTransactionID == "TX-1" &&
			pm.Provider == models.PaymentProviderPayPal &&
			pm.Amount.Equal(decimal.NewFromInt(295)) &&
			pm.Catalog == "membership" &&
			len(pm.LineItems) > 0
	})).Return(true, nil)

	require.NoError(t, p.Process(ctx, receiptJob(t, payload())))
	store.AssertExpectations(t)
}

func TestProcessDuplicateIsNotAnError(t *testing.T) {
	store := new(MockPayments)
	p := NewReceiptProcessor(store, new(MockQueue), nil)
	store.On("Record", mock.Anything, mock.Anything).Return(false, nil)
	assert.NoError(t, p.Process(context.Background(), receiptJob(t, payload())))
}

func TestProcessRejectsBadJobs(t *testing.T) {
	store := new(MockPayments)
	p := NewReceiptProcessor(store, new(MockQueue), nil)
	ctx := context.Background()

	assert.Error(t, p.Process(ctx, &queue.Job{Type: "email"}))
	assert.Error(t, p.Process(ctx, &queue.Job{Type: queue.JobTypeCheckoutReceipt, Payload: []byte("{")}))

	bad := payload()
	bad.Amount = "lots"
	assert.Error(t, p.Process(ctx, receiptJob(t, bad)))

	noTx := payload()
	noTx.TransactionID = ""
	assert.Error(t, p.Process(ctx, receiptJob(t, noTx)))

	store.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestRunRetriesFailedJobs(t *testing.T) {
	store := new(MockPayments)
	q := new(MockQueue)
	p := NewReceiptProcessor(store, q, nil)
	p.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	job := receiptJob(t, payload())

	q.On("Dequeue", mock.Anything).Return(job, nil).Once()
	q.On("Dequeue", mock.Anything).Return(nil, nil).Run(func(mock.Arguments) { cancel() })
	store.On("Record", mock.Anything, mock.Anything).Return(false, errors.New("db down"))
	q.On("Retry", mock.Anything, job).Return(nil).Once()

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	q.AssertExpectations(t)
}

// A job dequeued just before shutdown must still be requeued.
func TestRetrySurvivesShutdown(t *testing.T) {
	store := new(MockPayments)
	q := new(MockQueue)
	p := NewReceiptProcessor(store, q, nil)
	p.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	job := receiptJob(t, payload())

	q.On("Dequeue", mock.Anything).Return(job, nil).Run(func(mock.Arguments) { cancel() }).Once()
	store.On("Record", mock.Anything, mock.Anything).Return(false, errors.New("db down"))
	q.On("Retry", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), job).Return(nil).Once()

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	q.AssertExpectations(t)
}
