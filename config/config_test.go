package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayPalConfigured(t *testing.T) {
	assert.False(t, PayPalConfig{}.Configured())
	assert.False(t, PayPalConfig{ClientID: "   "}.Configured())
	assert.False(t, PayPalConfig{ClientID: PayPalPlaceholderClientID}.Configured())
	assert.True(t, PayPalConfig{ClientID: "AbC123"}.Configured())
}

func TestPayPalAPIBaseURL(t *testing.T) {
	assert.Equal(t, "https://api-m.sandbox.paypal.com", PayPalConfig{}.APIBaseURL())
	assert.Equal(t, "https://api-m.paypal.com", PayPalConfig{Environment: "LIVE"}.APIBaseURL())
	assert.Equal(t, "http://127.0.0.1:9000", PayPalConfig{Environment: "live", BaseURL: "http://127.0.0.1:9000/"}.APIBaseURL())
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: "5432", DBName: "shul", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/shul?sslmode=disable", c.DSN())
	c.URL = "postgres://other"
	assert.Equal(t, "postgres://other", c.DSN())
}

func TestLoad(t *testing.T) {
	t.Setenv("CART_STORE", "Memory")
	t.Setenv("CART_SESSION_TTL_MINUTES", "15")
	t.Setenv("PAYPAL_CLIENT_ID", "client")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Cart.Store)
	assert.Equal(t, 15, cfg.Cart.SessionTTLMinutes)
	assert.True(t, cfg.PayPal.Configured())

	t.Setenv("CART_STORE", "disk")
	_, err = Load()
	assert.Error(t, err)
}
