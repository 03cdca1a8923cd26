// Package checkout drives a cart through the payment gateway's create/capture
// protocol and tracks the user-visible outcome.
package checkout

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shul-site/backend/internal/cart"
)

var (
	// ErrNotConfigured means the payment credential is missing or a placeholder.
	ErrNotConfigured = errors.New("payment not configured")
	// ErrEmptyCart is returned when submitting a cart with no lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidTransition is returned when an action does not apply to the current outcome.
	ErrInvalidTransition = errors.New("invalid checkout transition")
	// ErrOrderMismatch is returned when an approval names a different order than the one awaiting.
	ErrOrderMismatch = errors.New("order id does not match pending checkout")
	// ErrNothingToPay is returned when every line in the cart is free.
	ErrNothingToPay = errors.New("order total must be greater than zero")
)

// recordTimeout bounds the receipt hand-off after a capture.
const recordTimeout = 10 * time.Second

// PaymentGateway is the external payment collaborator.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (orderID string, err error)
	CaptureOrder(ctx context.Context, orderID string) (Capture, error)
}

// Capture is the result of a successful capture call.
type Capture struct {
	TransactionID string
	PayerName     string
	Amount        decimal.Decimal
	Status        string
}

// Receipt is handed to the Recorder once a checkout is approved.
type Receipt struct {
	OrderID       string          `json:"order_id"`
	TransactionID string          `json:"transaction_id"`
	PayerName     string          `json:"payer_name"`
	Amount        decimal.Decimal `json:"amount"`
	CaptureStatus string          `json:"capture_status"`
	Order         OrderRequest    `json:"order"`
}

// Recorder stores approved checkouts (receipts, accounting). Failures are logged only.
type Recorder interface {
	RecordApproval(ctx context.Context, r Receipt) error
}

// Orchestrator mediates between a cart and the payment gateway.
// It keeps no per-session state; callers pass the session's Outcome in.
type Orchestrator struct {
	gateway  PaymentGateway
	enabled  bool
	recorder Recorder
	logger   *zap.Logger
}

// NewOrchestrator creates an orchestrator. When enabled is false every Submit
// fails with ErrNotConfigured before touching the gateway. recorder may be nil.
func NewOrchestrator(gateway PaymentGateway, enabled bool, recorder Recorder, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{gateway: gateway, enabled: enabled && gateway != nil, recorder: recorder, logger: logger}
}

// Enabled reports whether checkout can be offered at all.
func (o *Orchestrator) Enabled() bool { return o.enabled }

// Submit creates the order with the gateway. Gateway failures become a Failed
// outcome; only caller errors are returned.
func (o *Orchestrator) Submit(ctx context.Context, st *Outcome, c *cart.Cart, note string) error {
	if !o.enabled {
		return ErrNotConfigured
	}
	if !st.IsPending() {
		return ErrInvalidTransition
	}
	if c.IsEmpty() {
		return ErrEmptyCart
	}
	if !c.Total().IsPositive() {
		return ErrNothingToPay
	}

	req := BuildOrderRequest(c, note)
	orderID, err := o.gateway.CreateOrder(ctx, req)
	if err != nil {
		o.logger.Warn("create order failed", zap.Error(err), zap.String("total", req.TotalAmount.StringFixed(2)))
		*st = Failed(err.Error())
		return nil
	}
	o.logger.Info("checkout awaiting approval", zap.String("order_id", orderID), zap.String("total", req.TotalAmount.StringFixed(2)))
	*st = Outcome{Status: StatusAwaiting, OrderID: orderID}
	return nil
}

// Approve captures the awaiting order. On success the cart is cleared; a
// capture failure leaves the cart intact and the outcome Failed.
func (o *Orchestrator) Approve(ctx context.Context, st *Outcome, c *cart.Cart, note, orderID string) error {
	if st.Status != StatusAwaiting {
		return ErrInvalidTransition
	}
	if orderID != st.OrderID {
		return ErrOrderMismatch
	}

	capture, err := o.gateway.CaptureOrder(ctx, orderID)
	if err != nil {
		o.logger.Error("capture failed", zap.Error(err), zap.String("order_id", orderID))
		*st = Failed("capture failed: " + err.Error())
		return nil
	}
	if declined(capture.Status) {
		o.logger.Warn("capture declined", zap.String("order_id", orderID), zap.String("status", capture.Status))
		*st = Failed("payment " + strings.ToLower(capture.Status))
		return nil
	}

	receipt := Receipt{
		OrderID:       orderID,
		TransactionID: capture.TransactionID,
		PayerName:     capture.PayerName,
		Amount:        capture.Amount,
		CaptureStatus: capture.Status,
		Order:         BuildOrderRequest(c, note),
	}
	amount := capture.Amount
	*st = Outcome{
		Status:         StatusApproved,
		OrderID:        orderID,
		TransactionID:  capture.TransactionID,
		PayerName:      capture.PayerName,
		AmountCaptured: &amount,
		CaptureStatus:  capture.Status,
	}
	c.Clear()
	o.logger.Info("checkout approved",
		zap.String("order_id", orderID),
		zap.String("transaction_id", capture.TransactionID),
		zap.String("amount", capture.Amount.StringFixed(2)),
	)

	o.record(ctx, receipt)
	return nil
}

// record hands the receipt to the recorder. The money has moved by now, so the
// hand-off must outlive a client that already went away.
func (o *Orchestrator) record(ctx context.Context, r Receipt) {
	if o.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := o.recorder.RecordApproval(ctx, r); err != nil {
		o.logger.Error("record approval failed",
			zap.Error(err),
			zap.String("order_id", r.OrderID),
			zap.String("transaction_id", r.TransactionID))
	}
}

// ReportError records a gateway-reported error. The cart is preserved for retry.
func (o *Orchestrator) ReportError(st *Outcome, reason string) error {
	if !st.IsPending() && st.Status != StatusAwaiting {
		return ErrInvalidTransition
	}
	if strings.TrimSpace(reason) == "" {
		reason = "payment failed"
	}
	o.logger.Warn("payment gateway reported error", zap.String("order_id", st.OrderID), zap.String("reason", reason))
	*st = Failed(reason)
	return nil
}

// Cancel handles a user cancellation inside the gateway's flow: back to pending, cart untouched.
func (o *Orchestrator) Cancel(st *Outcome) error {
	switch {
	case st.IsPending():
		return nil
	case st.Status == StatusAwaiting:
		o.logger.Info("checkout cancelled by payer", zap.String("order_id", st.OrderID))
		*st = Pending()
		return nil
	default:
		return ErrInvalidTransition
	}
}

// Retry returns a failed checkout to pending without touching the cart.
func (o *Orchestrator) Retry(st *Outcome) error {
	if st.Status != StatusFailed {
		return ErrInvalidTransition
	}
	*st = Pending()
	return nil
}

// Reset starts over after an approved checkout.
func (o *Orchestrator) Reset(st *Outcome, c *cart.Cart) error {
	if st.Status != StatusApproved {
		return ErrInvalidTransition
	}
	c.Clear()
	*st = Pending()
	return nil
}

func declined(status string) bool {
	switch strings.ToUpper(status) {
	case "DECLINED", "FAILED":
		return true
	}
	return false
}
