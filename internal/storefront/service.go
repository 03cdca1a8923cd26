// Package storefront exposes cart sessions over one of the configured catalogs.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shul-site/backend/internal/cart"
	"github.com/shul-site/backend/internal/catalog"
	"github.com/shul-site/backend/internal/checkout"
)

// ErrCheckoutInProgress is returned for cart edits while a checkout is awaiting or approved.
var ErrCheckoutInProgress = errors.New("cart cannot change while checkout is in progress")

const maxNoteLen = 500

// LineView is one cart line as shown to the user.
type LineView struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// View is the rendered state of a session.
type View struct {
	ID              string           `json:"id"`
	Catalog         string           `json:"catalog"`
	Copy            catalog.Copy     `json:"copy"`
	Lines           []LineView       `json:"lines"`
	ItemCount       int              `json:"item_count"`
	Total           decimal.Decimal  `json:"total"`
	Note            string           `json:"note"`
	Outcome         checkout.Outcome `json:"outcome"`
	CheckoutEnabled bool             `json:"checkout_enabled"`
}

// Service applies cart and checkout actions to stored sessions, one mutator per session at a time.
type Service struct {
	catalogs *catalog.Registry
	store    Store
	checkout *checkout.Orchestrator
	locks    *keyedMutex
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a storefront service.
func NewService(catalogs *catalog.Registry, store Store, orchestrator *checkout.Orchestrator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		catalogs: catalogs,
		store:    store,
		checkout: orchestrator,
		locks:    newKeyedMutex(),
		logger:   logger,
		now:      time.Now,
	}
}

// CheckoutEnabled reports whether payment is configured.
func (s *Service) CheckoutEnabled() bool { return s.checkout.Enabled() }

// Create starts an empty session over the named catalog.
func (s *Service) Create(ctx context.Context, catalogKey string) (View, error) {
	cat, err := s.catalogs.Get(catalogKey)
	if err != nil {
		return View{}, err
	}
	sess := &Session{ID: uuid.NewString(), Catalog: cat.Key(), Outcome: checkout.Pending(), UpdatedAt: s.now().UTC()}
	if err := s.store.Put(ctx, sess); err != nil {
		return View{}, fmt.Errorf("save session: %w", err)
	}
	return s.view(sess, cart.New(cat, s.logger)), nil
}

// Get returns the session view.
func (s *Service) Get(ctx context.Context, id string) (View, error) {
	return s.mutate(ctx, id, nil)
}

// AddItem adds one unit of itemID. added is false for unknown items.
func (s *Service) AddItem(ctx context.Context, id, itemID string) (view View, added bool, err error) {
	view, err = s.mutate(ctx, id, func(sess *Session, c *cart.Cart) error {
		if !sess.Outcome.AcceptsCartEdits() {
			return ErrCheckoutInProgress
		}
		added = c.AddItem(itemID)
		return nil
	})
	return view, added, err
}

// UpdateQuantity sets the quantity of itemID; zero removes the line.
func (s *Service) UpdateQuantity(ctx context.Context, id, itemID string, quantity int) (View, error) {
	return s.mutate(ctx, id, func(sess *Session, c *cart.Cart) error {
		if !sess.Outcome.AcceptsCartEdits() {
			return ErrCheckoutInProgress
		}
		return c.UpdateQuantity(itemID, quantity)
	})
}

// RemoveItem deletes the line for itemID if present.
func (s *Service) RemoveItem(ctx context.Context, id, itemID string) (View, error) {
	return s.mutate(ctx, id, func(sess *Session, c *cart.Cart) error {
		if !sess.Outcome.AcceptsCartEdits() {
			return ErrCheckoutInProgress
		}
		c.RemoveItem(itemID)
		return nil
	})
}

// SetNote stores the free-text member or attendee names.
func (s *Service) SetNote(ctx context.Context, id, note string) (View, error) {
	return s.mutate(ctx, id, func(sess *Session, _ *cart.Cart) error {
		if !sess.Outcome.AcceptsCartEdits() {
			return ErrCheckoutInProgress
		}
		note = strings.TrimSpace(note)
		if r := []rune(note); len(r) > maxNoteLen {
			note = string(r[:maxNoteLen])
		}
		sess.Note = note
		return nil
	})
}

// Delete discards a session.
func (s *Service) Delete(ctx context.Context, id string) error {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()
	return s.store.Delete(ctx, id)
}

// Checkout submits the cart to the payment gateway.
func (s *Service) Checkout(ctx context.Context, id string) (View, error) {
	return s.mutate(ctx, id, func(sess *Session, c *cart.Cart) error {
		return s.checkout.Submit(ctx, &sess.Outcome, c, sess.Note)
	})
}

// Approve captures the awaiting order after the payer approved it. A capture,
// once started, runs to completion even if the buyer's connection drops.
func (s *Service) Approve(ctx context.Context, id, orderID string) (View, error) {
	return s.mutate(ctx, id, func(sess *Session, c *cart.Cart) error {
		if err := s.checkout.Approve(context.WithoutCancel(ctx), &sess.Outcome, c, sess.Note, orderID); err != nil {
			return err
		}
		if sess.Outcome.Status == checkout.StatusApproved {
			sess.Note = ""
		}
		return nil
	})
}

// Cancel returns an awaiting checkout to pending.
func (s *Service) Cancel(ctx context.Context, id string) (View, error) {
	return s.mutate(ctx, id, func(sess *Session, _ *cart.Cart) error {
		return s.checkout.Cancel(&sess.Outcome)
	})
}

// ReportError records an error raised inside the gateway's own checkout UI.
func (s *Service) ReportError(ctx context.Context, id, reason string) (View, error) {
	return s.mutate(ctx, id, func(sess *Session, _ *cart.Cart) error {
		return s.checkout.ReportError(&sess.Outcome, reason)
	})
}

// Retry clears a failure so the cart can be submitted again.
func (s *Service) Retry(ctx context.Context, id string) (View, error) {
	return s.mutate(ctx, id, func(sess *Session, _ *cart.Cart) error {
		return s.checkout.Retry(&sess.Outcome)
	})
}

// Reset starts a new purchase after an approved one.
func (s *Service) Reset(ctx context.Context, id string) (View, error) {
	return s.mutate(ctx, id, func(sess *Session, c *cart.Cart) error {
		if err := s.checkout.Reset(&sess.Outcome, c); err != nil {
			return err
		}
		sess.Note = ""
		return nil
	})
}

// lock serializes a session within this process first, then across processes via the store.
func (s *Service) lock(ctx context.Context, id string) (func(), error) {
	unlockLocal := s.locks.Lock(id)
	unlockStore, err := s.store.Lock(ctx, id)
	if err != nil {
		unlockLocal()
		return nil, err
	}
	return func() {
		unlockStore()
		unlockLocal()
	}, nil
}

// mutate loads the session under its lock, applies fn and saves the result.
// A nil fn is a read. The save is not tied to the request so an applied
// gateway result is never dropped.
func (s *Service) mutate(ctx context.Context, id string, fn func(*Session, *cart.Cart) error) (View, error) {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return View{}, err
	}
	defer unlock()

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	cat, err := s.catalogs.Get(sess.Catalog)
	if err != nil {
		return View{}, err
	}
	c := cart.Restore(cat, sess.Lines, s.logger)
	if fn == nil {
		return s.view(sess, c), nil
	}
	if err := fn(sess, c); err != nil {
		return View{}, err
	}
	sess.Lines = c.Stored()
	sess.UpdatedAt = s.now().UTC()
	if err := s.store.Put(context.WithoutCancel(ctx), sess); err != nil {
		return View{}, fmt.Errorf("save session: %w", err)
	}
	return s.view(sess, c), nil
}

func (s *Service) view(sess *Session, c *cart.Cart) View {
	lines := c.Lines()
	v := View{
		ID:              sess.ID,
		Catalog:         sess.Catalog,
		Copy:            c.Catalog().Copy(),
		Lines:           make([]LineView, 0, len(lines)),
		ItemCount:       c.ItemCount(),
		Total:           c.Total(),
		Note:            sess.Note,
		Outcome:         sess.Outcome,
		CheckoutEnabled: s.checkout.Enabled(),
	}
	if v.Outcome.Status == "" {
		v.Outcome = checkout.Pending()
	}
	for _, l := range lines {
		v.Lines = append(v.Lines, LineView{
			ItemID:    l.Item.ID,
			Name:      l.Item.DisplayName,
			UnitPrice: l.Item.UnitPrice,
			Quantity:  l.Quantity,
			Subtotal:  l.Subtotal(),
		})
	}
	return v
}
