// Package payway talks to the ABA PayWay hosted checkout: it builds signed
// purchase requests, verifies pushback signatures, and queries transaction
// status.
package payway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/angkor-storefront/pkg/config"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/angkor-storefront/pkg/errors"
	"github.com/angelmondragon/angkor-storefront/pkg/money"
)

const (
	purchasePath               = "/api/payment-gateway/v1/payments/purchase"
	checkTransactionPath       = "/api/payment-gateway/v1/payments/check-transaction-2"
	requestTimeLayout          = "20060102150405"
	responseReadLimit    int64 = 1 << 20
	errorBodyReadLimit   int64 = 1024
	purchaseType               = "purchase"
)

// purchaseFields is the full request field order. The hash is computed over
// the values in exactly this order, so every field is always sent.
var purchaseFields = []string{
	"req_time",
	"merchant_id",
	"tran_id",
	"amount",
	"items",
	"shipping",
	"firstname",
	"lastname",
	"email",
	"phone",
	"type",
	"payment_option",
	"return_url",
	"cancel_url",
	"continue_success_url",
	"return_deeplink",
	"currency",
	"custom_fields",
	"return_params",
	"payout",
	"lifetime",
	"additional_params",
	"google_pay_token",
	"skip_success_page",
}

// Client is safe for concurrent use.
type Client struct {
	cfg        config.PayWayConfig
	signer     *Signer
	httpClient *http.Client
	baseURL    string
	now        func() time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured gateway host.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithClock overrides the time source used for req_time and transaction ids.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

func NewClient(cfg config.PayWayConfig, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.MerchantID) == "" {
		return nil, errors.New("payway merchant id is required")
	}
	signer, err := NewSigner(cfg.SecretKey, cfg.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	if cfg.Currency == "" {
		cfg.Currency = string(enums.CurrencyUSD)
	}
	if _, err := enums.ParseCurrency(strings.ToUpper(cfg.Currency)); err != nil {
		return nil, fmt.Errorf("payway: %w", err)
	}

	client := &Client{
		cfg:        cfg,
		signer:     signer,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.Endpoint(),
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// VerificationEnabled reports whether inbound pushbacks must carry a valid hash.
func (c *Client) VerificationEnabled() bool {
	return c.cfg.VerifyWebhook
}

// Item is one order line as shown on the hosted checkout page.
type Item struct {
	Name       string
	Quantity   int
	PriceCents int64
}

// PurchaseOrder is the gateway view of an order, amounts in minor units.
type PurchaseOrder struct {
	OrderID       int64
	AmountCents   int64
	ShippingCents int64
	Currency      string
	Items         []Item
}

type Customer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// PurchaseRequest is posted by the shopper's browser to ActionURL.
type PurchaseRequest struct {
	ActionURL     string
	TransactionID string
	RequestTime   time.Time
	Params        *ParameterSet
}

type itemPayload struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

// BuildPurchaseRequest assembles the ordered, signed purchase field set.
func (c *Client) BuildPurchaseRequest(order PurchaseOrder, customer Customer) (*PurchaseRequest, error) {
	if order.OrderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if order.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order amount must be positive")
	}

	items := make([]itemPayload, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, itemPayload{Name: it.Name, Quantity: it.Quantity, Price: money.Format(it.PriceCents)})
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode purchase items")
	}

	currency := strings.ToUpper(strings.TrimSpace(order.Currency))
	if currency == "" {
		currency = strings.ToUpper(c.cfg.Currency)
	}
	if _, err := enums.ParseCurrency(currency); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency")
	}

	now := c.now().UTC()
	tranID := FormatTransactionID(order.OrderID, now)

	params := NewParameterSet(purchaseFields...)
	params.Set("req_time", now.Format(requestTimeLayout))
	params.Set("merchant_id", c.cfg.MerchantID)
	params.Set("tran_id", tranID)
	params.Set("amount", money.Format(order.AmountCents))
	params.Set("items", base64.StdEncoding.EncodeToString(itemsJSON))
	if order.ShippingCents > 0 {
		params.Set("shipping", money.Format(order.ShippingCents))
	}
	params.Set("firstname", customer.FirstName)
	params.Set("lastname", customer.LastName)
	params.Set("email", customer.Email)
	params.Set("phone", customer.Phone)
	params.Set("type", purchaseType)
	params.Set("payment_option", c.cfg.PaymentOption)
	params.Set("return_url", c.cfg.ReturnURL)
	params.Set("cancel_url", withTransactionID(c.cfg.CancelURL, tranID))
	params.Set("continue_success_url", withTransactionID(c.cfg.ContinueSuccessURL, tranID))
	params.Set("currency", currency)

	// Hash goes last and is never part of its own input.
	params.Set("hash", c.GenerateHash(params))

	return &PurchaseRequest{
		ActionURL:     c.baseURL + purchasePath,
		TransactionID: tranID,
		RequestTime:   now,
		Params:        params,
	}, nil
}

// GenerateHash signs the purchase fields of params in their fixed order.
func (c *Client) GenerateHash(params *ParameterSet) string {
	return c.signer.Sign(params.Values(purchaseFields)...)
}

func withTransactionID(raw, tranID string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set("tran_id", tranID)
	u.RawQuery = q.Encode()
	return u.String()
}

// VerifyCallback reports whether the pushback hash matches. Missing required
// fields yield false.
func (c *Client) VerifyCallback(payload CallbackPayload) bool {
	if payload.TranID == "" || payload.StatusCode == "" || payload.Hash == "" {
		return false
	}
	return c.signer.Verify(payload.Hash, payload.TranID, payload.APV, payload.StatusCode)
}

// SignCallback produces the hash the gateway attaches to a pushback.
func (c *Client) SignCallback(tranID, apv, statusCode string) string {
	return c.signer.Sign(tranID, apv, statusCode)
}

// TransactionResult never carries a Go error: failures are reported in Error.
type TransactionResult struct {
	Success  bool                `json:"success"`
	Data     *TransactionDetails `json:"data,omitempty"`
	Error    string              `json:"error,omitempty"`
	Attempts int                 `json:"-"`
}

type TransactionDetails struct {
	TransactionID string          `json:"tran_id"`
	StatusCode    string          `json:"status_code"`
	PaymentStatus string          `json:"payment_status"`
	APV           string          `json:"apv,omitempty"`
	TotalAmount   string          `json:"total_amount,omitempty"`
	Currency      string          `json:"currency,omitempty"`
	Raw           json.RawMessage `json:"raw"`
}

type checkTransactionRequest struct {
	ReqTime    string `json:"req_time"`
	MerchantID string `json:"merchant_id"`
	TranID     string `json:"tran_id"`
	Hash       string `json:"hash"`
}

type checkTransactionResponse struct {
	Data *struct {
		PaymentStatusCode any    `json:"payment_status_code"`
		PaymentStatus     string `json:"payment_status"`
		TotalAmount       any    `json:"total_amount"`
		PaymentCurrency   string `json:"payment_currency"`
		APV               string `json:"apv"`
	} `json:"data"`
	Status struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
}

// GetTransactionDetails queries the gateway, retrying transient failures with
// a doubling delay up to the configured attempt count.
func (c *Client) GetTransactionDetails(ctx context.Context, tranID string) TransactionResult {
	if strings.TrimSpace(tranID) == "" {
		return TransactionResult{Error: "transaction id is required"}
	}

	var errs error
	delay := c.cfg.RetryDelay
	attempt := 0
	for attempt < c.cfg.RetryAttempts {
		attempt++
		details, retryable, err := c.checkTransaction(ctx, tranID)
		if err == nil {
			return TransactionResult{Success: true, Data: details, Attempts: attempt}
		}
		errs = multierr.Append(errs, fmt.Errorf("attempt %d: %w", attempt, err))
		if !retryable || attempt >= c.cfg.RetryAttempts {
			break
		}
		if err := sleepContext(ctx, delay); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		delay *= 2
	}
	return TransactionResult{Error: errs.Error(), Attempts: attempt}
}

func (c *Client) checkTransaction(ctx context.Context, tranID string) (*TransactionDetails, bool, error) {
	reqTime := c.now().UTC().Format(requestTimeLayout)
	body, err := json.Marshal(checkTransactionRequest{
		ReqTime:    reqTime,
		MerchantID: c.cfg.MerchantID,
		TranID:     tranID,
		Hash:       c.signer.Sign(reqTime, c.cfg.MerchantID, tranID),
	})
	if err != nil {
		return nil, false, fmt.Errorf("marshal check request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+checkTransactionPath, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("build check request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("execute check request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		retryable := resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests
		return nil, retryable, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
	if err != nil {
		return nil, true, fmt.Errorf("read check response: %w", err)
	}
	var decoded checkTransactionResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, false, fmt.Errorf("decode check response: %w", err)
	}
	if decoded.Status.Code != "" && decoded.Status.Code != StatusCodeApproved {
		return nil, false, fmt.Errorf("gateway rejected status query: %s %s", decoded.Status.Code, decoded.Status.Message)
	}
	if decoded.Data == nil {
		return nil, false, errors.New("gateway response missing data")
	}

	return &TransactionDetails{
		TransactionID: tranID,
		StatusCode:    normalizeStatusCode(decoded.Data.PaymentStatusCode),
		PaymentStatus: decoded.Data.PaymentStatus,
		APV:           decoded.Data.APV,
		TotalAmount:   stringify(decoded.Data.TotalAmount),
		Currency:      decoded.Data.PaymentCurrency,
		Raw:           json.RawMessage(raw),
	}, false, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
