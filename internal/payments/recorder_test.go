package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shul-site/backend/internal/catalog"
	"github.com/shul-site/backend/internal/checkout"
	"github.com/shul-site/backend/pkg/queue"
)

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueReceipt(ctx context.Context, p queue.ReceiptPayload) error {
	return m.Called(ctx, p).Error(0)
}

func receipt() checkout.Receipt {
	return checkout.Receipt{
		OrderID:       "ORDER-1",
		TransactionID: "TX-1",
		PayerName:     "Sarah Cohen",
		Amount:        decimal.RequireFromString("237"),
		CaptureStatus: "COMPLETED",
		Order: checkout.OrderRequest{
			LineItems: []checkout.LineItem{
				{Name: "Family Membership", UnitAmount: decimal.NewFromInt(295), Quantity: 1, Category: catalog.CategoryMembership},
			},
			TotalAmount: decimal.NewFromInt(295),
			Currency:    "USD",
			Description: "Membership - Members: Sarah Cohen",
			CustomID:    "membership",
		},
	}
}

func TestReceiptPayload(t *testing.T) {
	at := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	p := ReceiptPayload(receipt(), at)

	assert.Equal(t, "237.00", p.Amount)
	assert.Equal(t, "membership", p.Catalog)
	assert.Equal(t, "USD", p.Currency)
	assert.Equal(t, at, p.CapturedAt)
	require.Len(t, p.Lines, 1)
	assert.Equal(t, "295.00", p.Lines[0].UnitAmount)
	assert.Equal(t, "membership", p.Lines[0].Category)
}

func TestQueueRecorder(t *testing.T) {
	q := new(MockEnqueuer)
	rec := NewQueueRecorder(q)
	ctx := context.Background()

	q.On("EnqueueReceipt", ctx, mock.MatchedBy(func(p queue.ReceiptPayload) bool {
		return p.TransactionID == "TX-1" && p.OrderID == "ORDER-1"
	})).Return(nil).Once()
	require.NoError(t, rec.RecordApproval(ctx, receipt()))

	q.On("EnqueueReceipt", ctx, mock.Anything).Return(errors.New("redis down")).Once()
	assert.Error(t, rec.RecordApproval(ctx, receipt()))
	q.AssertExpectations(t)
}
