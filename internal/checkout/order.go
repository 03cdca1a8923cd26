package checkout

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/shul-site/backend/internal/cart"
	"github.com/shul-site/backend/internal/catalog"
)

// Currency is the only currency the site sells in.
const Currency = "USD"

// maxTextLen is PayPal's limit for description, custom_id and item name fields.
const maxTextLen = 127

// LineItem is one order line as handed to the payment gateway.
type LineItem struct {
	Name        string           `json:"name"`
	UnitAmount  decimal.Decimal  `json:"unit_amount"`
	Quantity    int              `json:"quantity"`
	Description string           `json:"description,omitempty"`
	Category    catalog.Category `json:"category"`
}

// OrderRequest describes the order to create.
type OrderRequest struct {
	LineItems   []LineItem      `json:"line_items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	CustomID    string          `json:"custom_id,omitempty"`
}

// BuildOrderRequest turns a cart and the free-text names field into an order.
// The label is chosen for the whole cart: any membership line makes it a
// membership order, even when tickets are mixed in.
func BuildOrderRequest(c *cart.Cart, note string) OrderRequest {
	lines := c.Lines()
	items := make([]LineItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, LineItem{
			Name:        truncate(l.Item.DisplayName),
			UnitAmount:  l.Item.UnitPrice,
			Quantity:    l.Quantity,
			Description: truncate(l.Item.Description),
			Category:    l.Item.Category,
		})
	}

	req := OrderRequest{
		LineItems:   items,
		TotalAmount: c.Total(),
		Currency:    Currency,
		Description: describe(c.HasCategory(catalog.CategoryMembership), note),
	}
	if cat := c.Catalog(); cat != nil {
		req.CustomID = truncate(cat.Key())
	}
	return req
}

func describe(membership bool, note string) string {
	label, who := "Tickets", "Attendees"
	if membership {
		label, who = "Membership", "Members"
	}
	note = strings.Join(strings.Fields(note), " ")
	if note == "" {
		return label
	}
	return truncate(label + " - " + who + ": " + note)
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxTextLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxTextLen])
}
