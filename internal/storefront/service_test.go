package storefront

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shul-site/backend/internal/catalog"
	"github.com/shul-site/backend/internal/checkout"
)

// onceCapturingGateway behaves like PayPal: an order can be captured only once.
type onceCapturingGateway struct {
	mu       sync.Mutex
	captures int
}

func (g *onceCapturingGateway) CreateOrder(context.Context, checkout.OrderRequest) (string, error) {
	return "ORDER-42", nil
}

func (g *onceCapturingGateway) CaptureOrder(_ context.Context, orderID string) (checkout.Capture, error) {
	g.mu.Lock()
	g.captures++
	n := g.captures
	g.mu.Unlock()
	if n > 1 {
		return checkout.Capture{}, errors.New("paypal 422: ORDER_ALREADY_CAPTURED")
	}
	time.Sleep(50 * time.Millisecond)
	return checkout.Capture{TransactionID: "TX-42", PayerName: "Leah Stern", Amount: decimal.NewFromInt(165), Status: "COMPLETED"}, nil
}

// Two server instances share one session store; a double-clicked approval
// must capture once and leave the session approved.
func TestConcurrentApproveAcrossInstances(t *testing.T) {
	reg, err := catalog.LoadEmbedded()
	require.NoError(t, err)
	store := NewMemoryStore(time.Hour)
	gw := &onceCapturingGateway{}
	first := NewService(reg, store, checkout.NewOrchestrator(gw, true, nil, nil), nil)
	second := NewService(reg, store, checkout.NewOrchestrator(gw, true, nil, nil), nil)
	ctx := context.Background()

	v, err := first.Create(ctx, "membership")
	require.NoError(t, err)
	_, _, err = first.AddItem(ctx, v.ID, "single")
	require.NoError(t, err)
	v, err = first.Checkout(ctx, v.ID)
	require.NoError(t, err)
	require.Equal(t, checkout.StatusAwaiting, v.Outcome.Status)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, svc := range []*Service{first, second} {
		wg.Add(1)
		go func(i int, svc *Service) {
			defer wg.Done()
			_, errs[i] = svc.Approve(ctx, v.ID, "ORDER-42")
		}(i, svc)
	}
	wg.Wait()

	final, err := second.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gw.captures)
	assert.Equal(t, checkout.StatusApproved, final.Outcome.Status)
	assert.Equal(t, "TX-42", final.Outcome.TransactionID)
	assert.Equal(t, 0, final.ItemCount)

	var conflicts int
	for _, err := range errs {
		if errors.Is(err, checkout.ErrInvalidTransition) {
			conflicts++
		} else {
			assert.NoError(t, err)
		}
	}
	assert.Equal(t, 1, conflicts, "the late approval sees the approved outcome")
}

func TestMemoryStoreLockIsSharedByServices(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	unlock, err := store.Lock(ctx, "cart-1")
	require.NoError(t, err)
	acquired := make(chan struct{})
	go func() {
		release, err := store.Lock(ctx, "cart-1")
		if assert.NoError(t, err) {
			close(acquired)
			release()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second holder got the lock while the first still held it")
	case <-time.After(30 * time.Millisecond):
	}
	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock was not handed over")
	}
}
