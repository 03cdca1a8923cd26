// Package cart holds the in-memory line items of one checkout session.
package cart

import (
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shul-site/backend/internal/catalog"
)

// ErrInvalidQuantity is returned for negative quantities.
var ErrInvalidQuantity = errors.New("quantity must not be negative")

// Line is one catalog item and its quantity. Quantity is always >= 1.
type Line struct {
	Item     catalog.Item `json:"item"`
	Quantity int          `json:"quantity"`
}

// Subtotal returns quantity * unit price.
func (l Line) Subtotal() decimal.Decimal {
	return l.Item.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is an ordered set of lines drawn from a single catalog.
// It holds at most one line per item id. Not safe for concurrent use.
type Cart struct {
	catalog *catalog.Catalog
	lines   []Line
	logger  *zap.Logger
}

// New creates an empty cart over cat.
func New(cat *catalog.Catalog, logger *zap.Logger) *Cart {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cart{catalog: cat, logger: logger}
}

// Restore rebuilds a cart from stored item ids and quantities. Lines whose item
// left the catalog or whose quantity is not positive are dropped.
func Restore(cat *catalog.Catalog, stored []StoredLine, logger *zap.Logger) *Cart {
	c := New(cat, logger)
	for _, s := range stored {
		if s.Quantity <= 0 {
			continue
		}
		item, ok := cat.Lookup(s.ItemID)
		if !ok {
			c.logger.Warn("dropping stale cart line", zap.String("catalog", cat.Key()), zap.String("item_id", s.ItemID))
			continue
		}
		if i := c.find(s.ItemID); i >= 0 {
			c.lines[i].Quantity += s.Quantity
			continue
		}
		c.lines = append(c.lines, Line{Item: item, Quantity: s.Quantity})
	}
	return c
}

// StoredLine is the persisted form of a line.
type StoredLine struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// Stored returns the lines in their persisted form.
func (c *Cart) Stored() []StoredLine {
	out := make([]StoredLine, len(c.lines))
	for i, l := range c.lines {
		out[i] = StoredLine{ItemID: l.Item.ID, Quantity: l.Quantity}
	}
	return out
}

// Catalog returns the catalog the cart draws from.
func (c *Cart) Catalog() *catalog.Catalog { return c.catalog }

// AddItem adds one unit of itemID. Unknown ids are logged and ignored; the
// return value reports whether the cart changed.
func (c *Cart) AddItem(itemID string) bool {
	if i := c.find(itemID); i >= 0 {
		c.lines[i].Quantity++
		return true
	}
	item, ok := c.catalog.Lookup(itemID)
	if !ok {
		c.logger.Warn("add to cart: unknown item", zap.String("catalog", c.catalog.Key()), zap.String("item_id", itemID))
		return false
	}
	c.lines = append(c.lines, Line{Item: item, Quantity: 1})
	return true
}

// UpdateQuantity sets the quantity of an existing line. Zero removes the line;
// ids not in the cart are ignored.
func (c *Cart) UpdateQuantity(itemID string, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	if quantity == 0 {
		c.RemoveItem(itemID)
		return nil
	}
	if i := c.find(itemID); i >= 0 {
		c.lines[i].Quantity = quantity
	}
	return nil
}

// RemoveItem deletes the line for itemID if present.
func (c *Cart) RemoveItem(itemID string) {
	i := c.find(itemID)
	if i < 0 {
		return
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
}

// Total is the sum of every line subtotal, recomputed on each call.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// ItemCount is the sum of all quantities.
func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

// HasCategory reports whether any line belongs to category.
func (c *Cart) HasCategory(category catalog.Category) bool {
	for _, l := range c.lines {
		if l.Item.Category == category {
			return true
		}
	}
	return false
}

// Clear removes every line.
func (c *Cart) Clear() { c.lines = nil }

func (c *Cart) find(itemID string) int {
	for i, l := range c.lines {
		if l.Item.ID == itemID {
			return i
		}
	}
	return -1
}
