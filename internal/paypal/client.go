// Package paypal is a small client for the PayPal Orders v2 REST API.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shul-site/backend/internal/checkout"
)

// tokenSkew renews access tokens slightly before PayPal expires them.
const tokenSkew = time.Minute

// Config holds client credentials and the API base URL.
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	Timeout      time.Duration
}

// APIError is a non-2xx answer from PayPal.
type APIError struct {
	StatusCode int
	Name       string `json:"name"`
	Message    string `json:"message"`
	DebugID    string `json:"debug_id"`
	Details    []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

func (e *APIError) Error() string {
	msg := e.Name
	if len(e.Details) > 0 && e.Details[0].Issue != "" {
		msg = e.Details[0].Issue
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("paypal %d: %s", e.StatusCode, msg)
}

// Client implements checkout.PaymentGateway against PayPal.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a PayPal client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type item struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Quantity    string `json:"quantity"`
	UnitAmount  money  `json:"unit_amount"`
}

type amount struct {
	money
	Breakdown struct {
		ItemTotal money `json:"item_total"`
	} `json:"breakdown"`
}

type purchaseUnit struct {
	CustomID    string `json:"custom_id,omitempty"`
	Description string `json:"description,omitempty"`
	Amount      amount `json:"amount"`
	Items       []item `json:"items"`
}

type createOrderBody struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type captureResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Payer  struct {
		Name struct {
			GivenName string `json:"given_name"`
			Surname   string `json:"surname"`
		} `json:"name"`
	} `json:"payer"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
				Amount money  `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// CreateOrder creates a CAPTURE-intent order and returns its id.
func (c *Client) CreateOrder(ctx context.Context, req checkout.OrderRequest) (string, error) {
	unit := purchaseUnit{
		CustomID:    req.CustomID,
		Description: req.Description,
		Items:       make([]item, 0, len(req.LineItems)),
	}
	unit.Amount.money = money{CurrencyCode: req.Currency, Value: req.TotalAmount.StringFixed(2)}
	unit.Amount.Breakdown.ItemTotal = unit.Amount.money
	for _, li := range req.LineItems {
		unit.Items = append(unit.Items, item{
			Name:        li.Name,
			Description: li.Description,
			Quantity:    strconv.Itoa(li.Quantity),
			UnitAmount:  money{CurrencyCode: req.Currency, Value: li.UnitAmount.StringFixed(2)},
		})
	}

	var out orderResponse
	body := createOrderBody{Intent: "CAPTURE", PurchaseUnits: []purchaseUnit{unit}}
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", body, &out); err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("create order: empty order id")
	}
	c.logger.Debug("paypal order created", zap.String("order_id", out.ID), zap.String("status", out.Status))
	return out.ID, nil
}

// CaptureOrder captures an approved order.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (checkout.Capture, error) {
	var out captureResponse
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, &out); err != nil {
		return checkout.Capture{}, fmt.Errorf("capture order: %w", err)
	}

	result := checkout.Capture{
		Status:    out.Status,
		PayerName: strings.TrimSpace(out.Payer.Name.GivenName + " " + out.Payer.Name.Surname),
	}
	if len(out.PurchaseUnits) > 0 && len(out.PurchaseUnits[0].Payments.Captures) > 0 {
		cap0 := out.PurchaseUnits[0].Payments.Captures[0]
		result.TransactionID = cap0.ID
		if cap0.Status != "" {
			result.Status = cap0.Status
		}
		amt, err := decimal.NewFromString(cap0.Amount.Value)
		if err != nil {
			return checkout.Capture{}, fmt.Errorf("capture order: parse amount %q: %w", cap0.Amount.Value, err)
		}
		result.Amount = amt
	}
	if result.TransactionID == "" {
		return checkout.Capture{}, fmt.Errorf("capture order: no capture in response")
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := decode(resp, &tok); err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenSkew)
	return c.token, nil
}

func decode(resp *http.Response, out interface{}) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(body, apiErr)
		return apiErr
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
