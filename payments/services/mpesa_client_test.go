package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestMpesaClient(t *testing.T, baseURL string) *MpesaClient {
	t.Helper()
	client := NewMpesaClient(MpesaConfig{
		BaseURL:        baseURL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		Shortcode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://example.com/payments/mobile-money/callback",
	}, zap.NewNop())
	client.now = func() time.Time {
		return time.Date(2024, 5, 1, 12, 30, 45, 0, time.UTC)
	}
	return client
}

func TestInitiatePush(t *testing.T) {
	var pushBody stkPushRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			user, pass, ok := r.BasicAuth()
			require.True(t, ok)
			assert.Equal(t, "key", user)
			assert.Equal(t, "secret", pass)
			assert.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
		case "/mpesa/stkpush/v1/processrequest":
			assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&pushBody))
			json.NewEncoder(w).Encode(GatewayAck{
				MerchantRequestID:   "mr-1",
				CheckoutRequestID:   "ws_CO_191220191020363925",
				ResponseCode:        "0",
				ResponseDescription: "Success. Request accepted for processing",
			})
		default:
			t.Fatalf("unexpected request path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTestMpesaClient(t, srv.URL)

	ack, err := client.InitiatePush(context.Background(),
		decimal.RequireFromString("25.00"), "254712345678", "corr-1")
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_191220191020363925", ack.CheckoutRequestID)

	assert.Equal(t, "20240501123045", pushBody.Timestamp)
	wantPassword := base64.StdEncoding.EncodeToString([]byte("174379" + "passkey" + "20240501123045"))
	assert.Equal(t, wantPassword, pushBody.Password)
	assert.Equal(t, "174379", pushBody.BusinessShortCode)
	assert.Equal(t, "CustomerPayBillOnline", pushBody.TransactionType)
	assert.Equal(t, int64(25), pushBody.Amount)
	assert.Equal(t, "254712345678", pushBody.PartyA)
	assert.Equal(t, "254712345678", pushBody.PhoneNumber)
	assert.Equal(t, "174379", pushBody.PartyB)
	assert.Equal(t, "corr-1", pushBody.AccountReference)
	assert.Equal(t, "https://example.com/payments/mobile-money/callback", pushBody.CallBackURL)
}

func TestInitiatePush_GatewayRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
		case "/mpesa/stkpush/v1/processrequest":
			json.NewEncoder(w).Encode(GatewayAck{
				ResponseCode:        "1",
				ResponseDescription: "Insufficient balance",
			})
		}
	}))
	defer srv.Close()

	client := newTestMpesaClient(t, srv.URL)

	_, err := client.InitiatePush(context.Background(),
		decimal.RequireFromString("25.00"), "254712345678", "corr-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Insufficient balance")
}

func TestInitiatePush_AuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		t.Fatal("push must not be attempted without a token")
	}))
	defer srv.Close()

	client := newTestMpesaClient(t, srv.URL)

	_, err := client.InitiatePush(context.Background(),
		decimal.RequireFromString("25.00"), "254712345678", "corr-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth")
}

func TestInitiatePush_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestMpesaClient(t, srv.URL)

	_, err := client.InitiatePush(context.Background(),
		decimal.RequireFromString("25.00"), "254712345678", "corr-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}
