// Package catalog defines the purchasable items offered by each storefront.
package catalog

import (
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed catalogs/*.yaml
var catalogsFS embed.FS

// Category classifies an item for order descriptions.
type Category string

const (
	CategoryMembership Category = "membership"
	CategoryTicket     Category = "ticket"
)

// ErrNotFound is returned when a catalog key is unknown.
var ErrNotFound = errors.New("catalog not found")

// Item is one purchasable SKU. Items are immutable once loaded.
type Item struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Description string          `json:"description,omitempty"`
	Category    Category        `json:"category"`
}

// Copy is the storefront text that differs between catalogs.
type Copy struct {
	Title           string `json:"title" yaml:"title"`
	Intro           string `json:"intro,omitempty" yaml:"intro"`
	NoteLabel       string `json:"note_label" yaml:"note_label"`
	NotePlaceholder string `json:"note_placeholder,omitempty" yaml:"note_placeholder"`
	EmptyMessage    string `json:"empty_message" yaml:"empty_message"`
	SuccessMessage  string `json:"success_message" yaml:"success_message"`
}

// Catalog is an ordered, read-only set of items plus its copy text.
type Catalog struct {
	key   string
	copy  Copy
	items []Item
	index map[string]int
}

type fileItem struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Price       string   `yaml:"price"`
	Description string   `yaml:"description"`
	Category    Category `yaml:"category"`
}

type file struct {
	Key   string     `yaml:"key"`
	Copy  Copy       `yaml:"copy"`
	Items []fileItem `yaml:"items"`
}

// New builds a catalog and validates ids, prices and categories.
func New(key string, text Copy, items []Item) (*Catalog, error) {
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("catalog key is required")
	}
	c := &Catalog{key: key, copy: text, items: make([]Item, 0, len(items)), index: make(map[string]int, len(items))}
	for _, it := range items {
		if it.ID == "" {
			return nil, fmt.Errorf("catalog %s: item without id", key)
		}
		if _, dup := c.index[it.ID]; dup {
			return nil, fmt.Errorf("catalog %s: duplicate item id %q", key, it.ID)
		}
		if it.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("catalog %s: item %q has negative price", key, it.ID)
		}
		if it.Category != CategoryMembership && it.Category != CategoryTicket {
			return nil, fmt.Errorf("catalog %s: item %q has unknown category %q", key, it.ID, it.Category)
		}
		c.index[it.ID] = len(c.items)
		c.items = append(c.items, it)
	}
	return c, nil
}

// Parse decodes a YAML catalog definition.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	items := make([]Item, 0, len(f.Items))
	for _, fi := range f.Items {
		price, err := decimal.NewFromString(fi.Price)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: item %q price %q: %w", f.Key, fi.ID, fi.Price, err)
		}
		items = append(items, Item{
			ID:          fi.ID,
			DisplayName: fi.Name,
			UnitPrice:   price,
			Description: fi.Description,
			Category:    fi.Category,
		})
	}
	return New(f.Key, f.Copy, items)
}

// Key returns the catalog identifier (e.g. "membership").
func (c *Catalog) Key() string { return c.key }

// Copy returns the storefront text.
func (c *Catalog) Copy() Copy { return c.copy }

// Items returns a copy of the items in definition order.
func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Lookup returns the item with the given id.
func (c *Catalog) Lookup(id string) (Item, bool) {
	i, ok := c.index[id]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// Registry holds every storefront catalog by key.
type Registry struct {
	catalogs map[string]*Catalog
}

// NewRegistry builds a registry from already parsed catalogs.
func NewRegistry(catalogs ...*Catalog) (*Registry, error) {
	r := &Registry{catalogs: make(map[string]*Catalog, len(catalogs))}
	for _, c := range catalogs {
		if _, dup := r.catalogs[c.Key()]; dup {
			return nil, fmt.Errorf("duplicate catalog %q", c.Key())
		}
		r.catalogs[c.Key()] = c
	}
	return r, nil
}

// LoadEmbedded parses the catalogs compiled into the binary.
func LoadEmbedded() (*Registry, error) {
	entries, err := catalogsFS.ReadDir("catalogs")
	if err != nil {
		return nil, fmt.Errorf("read catalogs dir: %w", err)
	}
	var list []*Catalog
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		data, err := catalogsFS.ReadFile("catalogs/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", e.Name(), err)
		}
		c, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", e.Name(), err)
		}
		list = append(list, c)
	}
	return NewRegistry(list...)
}

// Get returns the catalog for key.
func (r *Registry) Get(key string) (*Catalog, error) {
	c, ok := r.catalogs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// Keys returns the catalog keys sorted alphabetically.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.catalogs))
	for k := range r.catalogs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
