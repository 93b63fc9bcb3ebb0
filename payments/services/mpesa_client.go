package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GatewayAck is the gateway's synchronous acknowledgement of a push
// request. It is not the financial outcome; that arrives via callback.
type GatewayAck struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// GatewayClient initiates mobile-money push payments.
type GatewayClient interface {
	InitiatePush(ctx context.Context, amount decimal.Decimal, payerPhone, correlationID string) (*GatewayAck, error)
}

type MpesaConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	CallbackURL    string
}

// MpesaClient talks to the M-Pesa STK push API. Each push obtains a fresh
// bearer token via client-credential exchange; the token is not cached.
type MpesaClient struct {
	cfg    MpesaConfig
	client *http.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewMpesaClient(cfg MpesaConfig, logger *zap.Logger) *MpesaClient {
	return &MpesaClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
		now:    time.Now,
	}
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

func (c *MpesaClient) InitiatePush(ctx context.Context, amount decimal.Decimal, payerPhone, correlationID string) (*GatewayAck, error) {
	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	// Request signature: base64(shortcode || passkey || timestamp), with
	// the timestamp at second precision.
	timestamp := c.now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString(
		[]byte(c.cfg.Shortcode + c.cfg.Passkey + timestamp))

	// The gateway accepts whole currency units only.
	payload := stkPushRequest{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount.Round(0).IntPart(),
		PartyA:            payerPhone,
		PartyB:            c.cfg.Shortcode,
		PhoneNumber:       payerPhone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  correlationID,
		TransactionDesc:   "Order payment",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stk push request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading stk push response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway rejected push: status %d: %s", resp.StatusCode, respBody)
	}

	var ack GatewayAck
	if err := json.Unmarshal(respBody, &ack); err != nil {
		return nil, fmt.Errorf("decoding stk push response: %w", err)
	}

	if ack.ResponseCode != "0" {
		return nil, fmt.Errorf("gateway rejected push: code %s: %s", ack.ResponseCode, ack.ResponseDescription)
	}

	c.logger.Info("STK push accepted",
		zap.String("checkout_request_id", ack.CheckoutRequestID),
		zap.String("correlation_id", correlationID),
	)
	return &ack, nil
}

func (c *MpesaClient) authenticate(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway auth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway auth returned %d", resp.StatusCode)
	}

	var auth struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", fmt.Errorf("decoding auth response: %w", err)
	}
	if auth.AccessToken == "" {
		return "", fmt.Errorf("gateway auth returned empty access token")
	}
	return auth.AccessToken, nil
}
