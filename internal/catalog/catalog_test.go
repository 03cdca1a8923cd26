package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbedded(t *testing.T) {
	reg, err := LoadEmbedded()
	require.NoError(t, err)
	assert.Equal(t, []string{"high-holy-days", "membership", "passover"}, reg.Keys())

	m, err := reg.Get("membership")
	require.NoError(t, err)
	family, ok := m.Lookup("family")
	require.True(t, ok)
	assert.True(t, family.UnitPrice.Equal(decimal.NewFromInt(295)))
	assert.Equal(t, CategoryMembership, family.Category)

	sustaining, ok := m.Lookup("sustaining")
	require.True(t, ok)
	assert.True(t, sustaining.UnitPrice.Equal(decimal.NewFromInt(1000)))

	single, ok := m.Lookup("single")
	require.True(t, ok)
	assert.True(t, single.UnitPrice.Equal(decimal.NewFromInt(165)))

	p, err := reg.Get("passover")
	require.NoError(t, err)
	for _, it := range p.Items() {
		assert.Equal(t, CategoryTicket, it.Category)
	}
	assert.Equal(t, "Names of attendees", p.Copy().NoteLabel)

	_, err = reg.Get("purim")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseRejectsBadDefinitions(t *testing.T) {
	cases := map[string]string{
		"missing key":    "items: []",
		"bad price":      "key: x\nitems:\n  - {id: a, price: abc, category: ticket}",
		"negative price": "key: x\nitems:\n  - {id: a, price: \"-1\", category: ticket}",
		"bad category":   "key: x\nitems:\n  - {id: a, price: \"1\", category: raffle}",
		"duplicate id":   "key: x\nitems:\n  - {id: a, price: \"1\", category: ticket}\n  - {id: a, price: \"2\", category: ticket}",
		"empty id":       "key: x\nitems:\n  - {price: \"1\", category: ticket}",
	}
	for name, def := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(def))
			assert.Error(t, err)
		})
	}
}

func TestItemsReturnsCopy(t *testing.T) {
	c, err := New("x", Copy{}, []Item{{ID: "a", UnitPrice: decimal.NewFromInt(1), Category: CategoryTicket}})
	require.NoError(t, err)
	items := c.Items()
	items[0].ID = "mutated"
	_, ok := c.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, "a", c.Items()[0].ID)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	a, _ := New("x", Copy{}, nil)
	b, _ := New("x", Copy{}, nil)
	_, err := NewRegistry(a, b)
	assert.Error(t, err)
}
