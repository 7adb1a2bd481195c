package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/service"
	"wallet-ledger/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(config.GatewayConfig{
		BaseURL:       server.URL,
		ClientID:      "client-id",
		ClientSecret:  "client-secret",
		WebhookSecret: "hook-secret",
		Currency:      "USD",
		Timeout:       5 * time.Second,
	}, service.NewHMACSignatureService(), zerolog.Nop())

	return client, server
}

func tokenHandler(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": "test-token",
		"expires_in":   3600,
	})
}

func TestClient_CreateCharge(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", tokenHandler)
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var body struct {
			Intent        string `json:"intent"`
			PurchaseUnits []struct {
				Amount struct {
					CurrencyCode string `json:"currency_code"`
					Value        string `json:"value"`
				} `json:"amount"`
			} `json:"purchase_units"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CAPTURE", body.Intent)
		require.Len(t, body.PurchaseUnits, 1)
		assert.Equal(t, "USD", body.PurchaseUnits[0].Amount.CurrencyCode)
		assert.Equal(t, "50.00", body.PurchaseUnits[0].Amount.Value)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "ORDER-5XY123",
			"links": []map[string]string{
				{"href": "https://provider/self", "rel": "self"},
				{"href": "https://provider/approve/ORDER-5XY123", "rel": "approve"},
			},
		})
	})

	client, _ := newTestClient(t, mux)

	intent, err := client.CreateCharge(context.Background(), 5000, "https://app/ok", "https://app/no")
	require.NoError(t, err)
	assert.Equal(t, "ORDER-5XY123", intent.ExternalRef)
	assert.Equal(t, "https://provider/approve/ORDER-5XY123", intent.ApprovalURL)
}

func TestClient_CreateCharge_GatewayError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", tokenHandler)
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"name":"UNPROCESSABLE_ENTITY"}`, http.StatusUnprocessableEntity)
	})

	client, _ := newTestClient(t, mux)

	intent, err := client.CreateCharge(context.Background(), 5000, "https://app/ok", "https://app/no")
	assert.Nil(t, intent)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "GW_001", appErr.Code)
}

func TestClient_CaptureCharge(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", tokenHandler)
	mux.HandleFunc("/v2/checkout/orders/ORDER-5XY123/capture", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "COMPLETED",
			"purchase_units": []map[string]any{{
				"payments": map[string]any{
					"captures": []map[string]any{{
						"amount": map[string]string{"value": "50.00"},
					}},
				},
			}},
		})
	})

	client, _ := newTestClient(t, mux)

	result, err := client.CaptureCharge(context.Background(), "ORDER-5XY123")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", result.Status)
	assert.Equal(t, int64(5000), result.Amount)
}

func TestClient_CaptureCharge_AlreadyCaptured(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", tokenHandler)
	mux.HandleFunc("/v2/checkout/orders/ORDER-5XY123/capture", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"ORDER_ALREADY_CAPTURED"}]}`,
			http.StatusUnprocessableEntity)
	})

	client, _ := newTestClient(t, mux)

	// A previous capture succeeded remotely; the repeat must report success so
	// the caller can finish crediting the already captured money.
	result, err := client.CaptureCharge(context.Background(), "ORDER-5XY123")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", result.Status)
}

func TestClient_CaptureCharge_BadAmount(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", tokenHandler)
	mux.HandleFunc("/v2/checkout/orders/ORDER-5XY123/capture", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "COMPLETED",
			"purchase_units": []map[string]any{{
				"payments": map[string]any{
					"captures": []map[string]any{{
						"amount": map[string]string{"value": "fifty"},
					}},
				},
			}},
		})
	})

	client, _ := newTestClient(t, mux)

	result, err := client.CaptureCharge(context.Background(), "ORDER-5XY123")
	assert.Nil(t, result)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "GW_001", appErr.Code)
}

func TestClient_TokenCached(t *testing.T) {
	var tokenCalls int64
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&tokenCalls, 1)
		tokenHandler(w, r)
	})
	mux.HandleFunc("/v2/checkout/orders/X/capture", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "COMPLETED"})
	})

	client, _ := newTestClient(t, mux)
	ctx := context.Background()

	_, err := client.CaptureCharge(ctx, "X")
	require.NoError(t, err)
	_, err = client.CaptureCharge(ctx, "X")
	require.NoError(t, err)

	assert.Equal(t, int64(1), atomic.LoadInt64(&tokenCalls), "second call should reuse the cached token")
}

func TestClient_ParseWebhook(t *testing.T) {
	client, _ := newTestClient(t, http.NewServeMux())

	event, err := client.ParseWebhook([]byte(`{
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource": {"id": "ORDER-5XY123"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "PAYMENT.CAPTURE.COMPLETED", event.EventType)
	assert.Equal(t, "ORDER-5XY123", event.ExternalRef)
	assert.True(t, event.Completed())
}

func TestClient_ParseWebhook_Invalid(t *testing.T) {
	client, _ := newTestClient(t, http.NewServeMux())

	cases := []string{
		`not json`,
		`{}`,
		`{"event_type": "PAYMENT.CAPTURE.COMPLETED"}`,
		`{"resource": {"id": "X"}}`,
	}
	for _, payload := range cases {
		_, err := client.ParseWebhook([]byte(payload))
		var appErr *apperror.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "GW_003", appErr.Code)
	}
}

func TestClient_VerifyWebhookSignature(t *testing.T) {
	client, _ := newTestClient(t, http.NewServeMux())
	sigSvc := service.NewHMACSignatureService()

	payload := []byte(`{"event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"X"}}`)
	good := sigSvc.Sign("hook-secret", payload)

	assert.True(t, client.VerifyWebhookSignature(payload, good))
	assert.False(t, client.VerifyWebhookSignature(payload, "bad-signature"))
	assert.False(t, client.VerifyWebhookSignature(payload, ""))
	assert.False(t, client.VerifyWebhookSignature([]byte("other"), good))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "50.00", FormatAmount(5000))
	assert.Equal(t, "0.01", FormatAmount(1))
	assert.Equal(t, "1234.56", FormatAmount(123456))
	assert.Equal(t, "0.00", FormatAmount(0))
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("50.00")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), v)

	v, err = ParseAmount("0.01")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = ParseAmount("100")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), v)

	_, err = ParseAmount("1.005")
	assert.Error(t, err, "sub-cent precision must be rejected")

	_, err = ParseAmount("abc")
	assert.Error(t, err)
}
