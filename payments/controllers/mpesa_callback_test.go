package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	omodels "opencart-backend/orders/models"
	"opencart-backend/payments/controllers"
	"opencart-backend/payments/models"
	"opencart-backend/payments/routes"
	"opencart-backend/payments/services"
)

// Minimal in-memory doubles, enough to route callbacks through the real
// payment service.

type fakeOrders struct {
	orders map[uuid.UUID]*omodels.Order
}

func (f *fakeOrders) FindByID(_ context.Context, id uuid.UUID) (*omodels.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (f *fakeOrders) MarkPaid(_ context.Context, orderID, paymentID uuid.UUID) (bool, error) {
	order, ok := f.orders[orderID]
	if !ok || order.Status != omodels.OrderStatusPending {
		return false, nil
	}
	order.Status = omodels.OrderStatusPaid
	order.PaymentID = &paymentID
	return true, nil
}

type fakePaymentRepo struct {
	payments map[uuid.UUID]*models.Payment
}

func (f *fakePaymentRepo) CreateExclusive(_ context.Context, p *models.Payment) error {
	f.payments[p.ID] = p
	return nil
}

func (f *fakePaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	p, ok := f.payments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (f *fakePaymentRepo) FindAll(_ context.Context) ([]models.Payment, error) {
	return nil, nil
}

func (f *fakePaymentRepo) FindByCallbackRef(_ context.Context, checkoutRequestID, correlationID string) (*models.Payment, error) {
	for _, p := range f.payments {
		if checkoutRequestID != "" && p.CheckoutRequestID != nil && *p.CheckoutRequestID == checkoutRequestID {
			return p, nil
		}
		if correlationID != "" && p.CorrelationID != nil && *p.CorrelationID == correlationID {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePaymentRepo) ActiveExistsForOrder(_ context.Context, _ uuid.UUID) (bool, error) {
	return false, nil
}

func (f *fakePaymentRepo) Finalize(_ context.Context, id uuid.UUID, status string, transactionID *string) (bool, error) {
	p, ok := f.payments[id]
	if !ok || p.Status != models.StatusPending {
		return false, nil
	}
	p.Status = status
	if transactionID != nil {
		p.TransactionID = transactionID
	}
	return true, nil
}

func (f *fakePaymentRepo) SetCheckoutRequestID(_ context.Context, id uuid.UUID, checkoutRequestID string) error {
	if p, ok := f.payments[id]; ok {
		p.CheckoutRequestID = &checkoutRequestID
	}
	return nil
}

func (f *fakePaymentRepo) Delete(_ context.Context, _ uuid.UUID) error { return nil }

func (f *fakePaymentRepo) SweepStalePending(_ context.Context, _ string, _ time.Time) (int64, error) {
	return 0, nil
}

func (f *fakePaymentRepo) FindCompletedWithUnpaidOrders(_ context.Context) ([]models.Payment, error) {
	return nil, nil
}

type fakeGateway struct {
	err error
}

func (g *fakeGateway) InitiatePush(_ context.Context, _ decimal.Decimal, _, _ string) (*services.GatewayAck, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &services.GatewayAck{CheckoutRequestID: "ws_CO_push", ResponseCode: "0"}, nil
}

type callbackFixture struct {
	router  *gin.Engine
	orders  *fakeOrders
	repo    *fakePaymentRepo
	gateway *fakeGateway
}

func newCallbackFixture() *callbackFixture {
	gin.SetMode(gin.TestMode)

	orders := &fakeOrders{orders: map[uuid.UUID]*omodels.Order{}}
	repo := &fakePaymentRepo{payments: map[uuid.UUID]*models.Payment{}}
	gateway := &fakeGateway{}

	svc := services.NewPaymentService(repo, orders, gateway, nil, zap.NewNop())
	controller := controllers.NewPaymentController(svc, gateway, zap.NewNop())

	router := gin.New()
	routes.RegisterPaymentRoutes(router, controller)

	return &callbackFixture{router: router, orders: orders, repo: repo, gateway: gateway}
}

func (f *callbackFixture) seedPendingMobileMoney(checkoutRequestID string) (*omodels.Order, *models.Payment) {
	order := &omodels.Order{
		ID:          uuid.New(),
		TotalAmount: decimal.RequireFromString("25.00"),
		Status:      omodels.OrderStatusPending,
	}
	f.orders.orders[order.ID] = order

	correlation := uuid.NewString()
	payment := &models.Payment{
		ID:                uuid.New(),
		OrderID:           order.ID,
		Method:            models.MethodMobileMoney,
		Amount:            decimal.RequireFromString("25.00"),
		Status:            models.StatusPending,
		CorrelationID:     &correlation,
		CheckoutRequestID: &checkoutRequestID,
	}
	f.repo.payments[payment.ID] = payment
	return order, payment
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func successCallbackBody(checkoutRequestID, receipt string) string {
	return fmt.Sprintf(`{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "mr-1",
				"CheckoutRequestID": %q,
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": 25.00},
						{"Name": "MpesaReceiptNumber", "Value": %q},
						{"Name": "PhoneNumber", "Value": 254712345678}
					]
				}
			}
		}
	}`, checkoutRequestID, receipt)
}

func TestMpesaCallback_SuccessCompletesPayment(t *testing.T) {
	f := newCallbackFixture()
	order, payment := f.seedPendingMobileMoney("ws_CO_1")

	w := postJSON(f.router, "/mobile-money/callback", successCallbackBody("ws_CO_1", "R123"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusCompleted, payment.Status)
	require.NotNil(t, payment.TransactionID)
	assert.Equal(t, "R123", *payment.TransactionID)
	assert.Equal(t, omodels.OrderStatusPaid, order.Status)
}

func TestMpesaCallback_FailureReleasesOrder(t *testing.T) {
	f := newCallbackFixture()
	order, payment := f.seedPendingMobileMoney("ws_CO_2")

	body := `{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "mr-1",
				"CheckoutRequestID": "ws_CO_2",
				"ResultCode": 1032,
				"ResultDesc": "Request cancelled by user"
			}
		}
	}`
	w := postJSON(f.router, "/mobile-money/callback", body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusFailed, payment.Status)
	assert.Equal(t, omodels.OrderStatusPending, order.Status)
}

func TestMpesaCallback_UnknownReferenceStillAcknowledged(t *testing.T) {
	f := newCallbackFixture()

	w := postJSON(f.router, "/mobile-money/callback", successCallbackBody("ws_CO_unknown", "R999"))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMpesaCallback_MalformedPayloadStillAcknowledged(t *testing.T) {
	f := newCallbackFixture()
	_, payment := f.seedPendingMobileMoney("ws_CO_3")

	w := postJSON(f.router, "/mobile-money/callback", `{"not": "a callback"`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusPending, payment.Status)
}

func TestMpesaCallback_DuplicateDeliveryIdempotent(t *testing.T) {
	f := newCallbackFixture()
	_, payment := f.seedPendingMobileMoney("ws_CO_4")

	body := successCallbackBody("ws_CO_4", "R123")
	assert.Equal(t, http.StatusOK, postJSON(f.router, "/mobile-money/callback", body).Code)
	assert.Equal(t, http.StatusOK, postJSON(f.router, "/mobile-money/callback", body).Code)

	assert.Equal(t, models.StatusCompleted, payment.Status)
	assert.Equal(t, "R123", *payment.TransactionID)
}

func TestMpesaPush_RejectsBadPhone(t *testing.T) {
	f := newCallbackFixture()

	w := postJSON(f.router, "/mobile-money/push", `{"amount": "25.00", "payerPhone": "0712345678"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMpesaPush_ReturnsGatewayAck(t *testing.T) {
	f := newCallbackFixture()

	w := postJSON(f.router, "/mobile-money/push", `{"amount": "25.00", "payerPhone": "254712345678"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var ack services.GatewayAck
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.Equal(t, "ws_CO_push", ack.CheckoutRequestID)
}

func TestMpesaPush_GatewayErrorReturns502(t *testing.T) {
	f := newCallbackFixture()
	f.gateway.err = fmt.Errorf("gateway unreachable")

	w := postJSON(f.router, "/mobile-money/push", `{"amount": "25.00", "payerPhone": "254712345678"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}
