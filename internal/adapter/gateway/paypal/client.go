package paypal

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
	"sync"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements ports.PaymentGateway against the PayPal Orders v2 API.
// Every call carries the configured timeout via the underlying HTTP client;
// failures surface as GatewayError and are never retried here — the caller
// decides. The ledger never invokes these methods while holding a wallet
// lock.
type Client struct {
	baseURL       string
	clientID      string
	clientSecret  string
	webhookSecret string
	currency      string
	httpClient    HTTPClient
	sigSvc        ports.SignatureService
	log           zerolog.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a gateway client from configuration.
func NewClient(cfg config.GatewayConfig, sigSvc ports.SignatureService, log zerolog.Logger) *Client {
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		clientID:      cfg.ClientID,
		clientSecret:  cfg.ClientSecret,
		webhookSecret: cfg.WebhookSecret,
		currency:      cfg.Currency,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		sigSvc:        sigSvc,
		log:           log,
	}
}

// CreateCharge creates a provider order for the given amount (minor units)
// and returns the correlation id plus the buyer approval URL.
func (c *Client) CreateCharge(ctx context.Context, amount int64, returnURL, cancelURL string) (*ports.ChargeIntent, error) {
	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"amount": map[string]string{
				"currency_code": c.currency,
				"value":         FormatAmount(amount),
			},
		}},
		"application_context": map[string]string{
			"return_url": returnURL,
			"cancel_url": cancelURL,
		},
	}

	var resp struct {
		ID    string `json:"id"`
		Links []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := c.post(ctx, "/v2/checkout/orders", body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, apperror.ErrGateway(fmt.Errorf("order response missing id"))
	}

	approvalURL := ""
	for _, link := range resp.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			approvalURL = link.Href
			break
		}
	}
	if approvalURL == "" {
		return nil, apperror.ErrGateway(fmt.Errorf("order %s has no approval link", resp.ID))
	}

	return &ports.ChargeIntent{ExternalRef: resp.ID, ApprovalURL: approvalURL}, nil
}

// CaptureCharge captures a previously approved order. An order the provider
// already captured (an earlier attempt succeeded remotely but the caller never
// saw it) is reported as completed rather than as an error, so the caller can
// finish crediting instead of stranding the captured funds.
func (c *Client) CaptureCharge(ctx context.Context, externalRef string) (*ports.CaptureResult, error) {
	var resp struct {
		Status        string `json:"status"`
		PurchaseUnits []struct {
			Payments struct {
				Captures []struct {
					Amount struct {
						Value string `json:"value"`
					} `json:"amount"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}
	path := "/v2/checkout/orders/" + url.PathEscape(externalRef) + "/capture"
	if err := c.post(ctx, path, map[string]any{}, &resp); err != nil {
		if isAlreadyCaptured(err) {
			return &ports.CaptureResult{Status: "COMPLETED"}, nil
		}
		return nil, err
	}

	result := &ports.CaptureResult{Status: resp.Status}
	if len(resp.PurchaseUnits) > 0 && len(resp.PurchaseUnits[0].Payments.Captures) > 0 {
		minor, err := ParseAmount(resp.PurchaseUnits[0].Payments.Captures[0].Amount.Value)
		if err != nil {
			return nil, apperror.ErrGateway(fmt.Errorf("capture amount for %s: %w", externalRef, err))
		}
		result.Amount = minor
	}
	return result, nil
}

// isAlreadyCaptured reports whether a capture rejection means the order was
// captured by a previous request (PayPal 422, issue ORDER_ALREADY_CAPTURED).
func isAlreadyCaptured(err error) bool {
	var apiErr *apiError
	if !errors.As(err, &apiErr) || apiErr.status != http.StatusUnprocessableEntity {
		return false
	}
	return bytes.Contains(apiErr.body, []byte("ORDER_ALREADY_CAPTURED"))
}

// ParseWebhook validates the shape of a provider push notification. Only the
// event type and correlation id are extracted; nothing else is trusted.
func (c *Client) ParseWebhook(payload []byte) (*ports.WebhookEvent, error) {
	var body struct {
		EventType string `json:"event_type"`
		Resource  struct {
			ID string `json:"id"`
		} `json:"resource"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, apperror.ErrInvalidWebhook()
	}
	if body.EventType == "" || body.Resource.ID == "" {
		return nil, apperror.ErrInvalidWebhook()
	}
	return &ports.WebhookEvent{
		EventType:   body.EventType,
		ExternalRef: body.Resource.ID,
	}, nil
}

// VerifyWebhookSignature checks the HMAC-SHA256 signature of a raw webhook
// body against the shared webhook secret. The correlation id inside the
// payload must not be acted upon until this passes.
func (c *Client) VerifyWebhookSignature(payload []byte, signature string) bool {
	if c.webhookSecret == "" || signature == "" {
		return false
	}
	return c.sigSvc.Verify(c.webhookSecret, payload, signature)
}

// apiError preserves the provider status and body of a rejected call so
// callers can recognize specific provider rejections through the error chain.
type apiError struct {
	status int
	body   []byte
}

func (e *apiError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.body)
}

// post issues an authenticated JSON POST and decodes the response into out.
func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("marshal gateway request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return apperror.ErrGateway(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperror.ErrGateway(fmt.Errorf("%s: %w", path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperror.ErrGateway(fmt.Errorf("%s: %w", path, &apiError{status: resp.StatusCode, body: snippet}))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.ErrGateway(fmt.Errorf("decode %s response: %w", path, err))
	}
	return nil
}

// token returns a cached OAuth access token, fetching a fresh one via the
// client-credentials grant when the cached token is missing or near expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-30*time.Second)) {
		return c.accessToken, nil
	}

	form := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", form)
	if err != nil {
		return "", apperror.ErrGateway(fmt.Errorf("build token request: %w", err))
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperror.ErrGateway(fmt.Errorf("oauth token: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperror.ErrGateway(fmt.Errorf("oauth token: status %d", resp.StatusCode))
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", apperror.ErrGateway(fmt.Errorf("decode token response: %w", err))
	}
	if body.AccessToken == "" {
		return "", apperror.ErrGateway(fmt.Errorf("empty access token"))
	}

	c.accessToken = body.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	c.log.Debug().Time("expiry", c.tokenExpiry).Msg("gateway access token refreshed")

	return c.accessToken, nil
}

// FormatAmount renders minor units as a provider-facing decimal string,
// e.g. 5000 -> "50.00".
func FormatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

// ParseAmount converts a provider decimal string to minor units. Amounts
// with more than two fractional digits are rejected rather than rounded.
func ParseAmount(value string) (int64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", value, err)
	}
	shifted := d.Shift(2)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("amount %q has sub-cent precision", value)
	}
	return shifted.IntPart(), nil
}
