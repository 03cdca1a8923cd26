package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentProviderPayPal is the only provider the site uses.
const PaymentProviderPayPal = "paypal"

// Payment is a captured checkout, written by the receipt worker.
type Payment struct {
	ID                    uuid.UUID       `json:"id"`
	Provider              string          `json:"provider"`
	ProviderOrderID       string          `json:"provider_order_id"`
	ProviderTransactionID string          `json:"provider_transaction_id"`
	Catalog               string          `json:"catalog"`
	PayerName             string          `json:"payer_name,omitempty"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency"`
	Status                string          `json:"status"`
	Description           string          `json:"description"`
	LineItems             json.RawMessage `json:"line_items,omitempty"`
	CapturedAt            time.Time       `json:"captured_at"`
	CreatedAt             time.Time       `json:"created_at"`
}
