package checkout

import "github.com/shopspring/decimal"

// Status is the checkout state of one cart session.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAwaiting Status = "awaiting"
	StatusApproved Status = "approved"
	StatusFailed   Status = "failed"
)

// Outcome is the user-visible result of the latest checkout attempt.
type Outcome struct {
	Status         Status           `json:"status"`
	OrderID        string           `json:"order_id,omitempty"`
	TransactionID  string           `json:"transaction_id,omitempty"`
	PayerName      string           `json:"payer_name,omitempty"`
	AmountCaptured *decimal.Decimal `json:"amount_captured,omitempty"`
	CaptureStatus  string           `json:"capture_status,omitempty"`
	Reason         string           `json:"reason,omitempty"`
}

// Pending returns the initial outcome.
func Pending() Outcome { return Outcome{Status: StatusPending} }

// Failed returns a failed outcome with reason.
func Failed(reason string) Outcome { return Outcome{Status: StatusFailed, Reason: reason} }

// IsPending treats the zero value as pending.
func (o Outcome) IsPending() bool { return o.Status == StatusPending || o.Status == "" }

// AcceptsCartEdits reports whether the cart may change in this state.
func (o Outcome) AcceptsCartEdits() bool { return o.IsPending() }
