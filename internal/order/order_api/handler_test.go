package order_api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-registration/internal/config"
	"ms-registration/internal/errs"
	"ms-registration/internal/logger"
	"ms-registration/internal/models"
	"ms-registration/internal/order"
	"ms-registration/internal/order/order_api"
	"ms-registration/internal/pricing"
	"ms-registration/internal/utils"
)

// stubDB is a map-backed DBLayer, enough for handler round trips.
type stubDB struct {
	orders   map[string]*models.Order
	mappings map[string]string
}

func newStubDB() *stubDB {
	return &stubDB{orders: map[string]*models.Order{}, mappings: map[string]string{}}
}

func (s *stubDB) CreateOrder(o models.Order) error {
	s.orders[o.OrderID] = &o
	return nil
}

func (s *stubDB) GetOrderByID(id string) (*models.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	copied := *o
	return &copied, nil
}

func (s *stubDB) GetOrderByGatewayRef(ref string) (*models.Order, error) {
	id, ok := s.mappings[ref]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return s.GetOrderByID(id)
}

func (s *stubDB) AttachGatewayOrder(orderID, ref string, amount int64, currency string) error {
	o, ok := s.orders[orderID]
	if !ok || o.Status != models.StatusPendingPayment {
		return errs.ErrInvalidTransition
	}
	o.GatewayOrderRef = ref
	s.mappings[ref] = orderID
	return nil
}

func (s *stubDB) MarkPendingVerification(orderID, proofRef string) (bool, error) {
	o, ok := s.orders[orderID]
	if !ok || o.Status != models.StatusPendingPayment {
		return false, nil
	}
	o.Status = models.StatusPendingVerification
	o.PaymentProofRef = proofRef
	return true, nil
}

func (s *stubDB) MarkPaid(orderID, paymentRef string) (bool, error) {
	o, ok := s.orders[orderID]
	if !ok || (o.Status != models.StatusPendingPayment && o.Status != models.StatusPendingVerification) {
		return false, nil
	}
	o.Status = models.StatusPaid
	o.GatewayPaymentRef = paymentRef
	return true, nil
}

func (s *stubDB) MarkGatewayOrderPaid(ref string) error { return nil }

type stubGateway struct{ failSignature bool }

func (g *stubGateway) KeyID() string { return "rzp_test_key" }

func (g *stubGateway) CreateRemoteOrder(ctx context.Context, total int64, currency, receipt string, metadata map[string]string) (string, error) {
	return "order_rzp_" + receipt, nil
}

func (g *stubGateway) VerifySignature(orderRef, paymentRef, signature string) error {
	if g.failSignature {
		return errs.ErrSignatureInvalid
	}
	return nil
}

type stubIssuer struct{}

func (stubIssuer) Issue(o models.Order) (*models.Ticket, error) {
	return &models.Ticket{
		TicketID: "ticket-" + o.OrderID,
		OrderID:  o.OrderID,
		Code:     "TKT-" + o.OrderID + "-1-abcd",
		IssuedAt: time.Now(),
	}, nil
}

type stubLock struct{}

func (stubLock) LockConfirmation(string) (bool, error) { return true, nil }
func (stubLock) UnlockConfirmation(string) error       { return nil }

type stubNotifier struct{}

func (stubNotifier) OrderCreated(models.Order, *models.PaymentInstructions) {}
func (stubNotifier) PaymentConfirmed(models.Order, *models.Ticket)          {}

func newHandler(t *testing.T, gw *stubGateway) (*order_api.Handler, *stubDB) {
	t.Helper()
	log := logger.NewLogger()
	t.Cleanup(func() { log.Close() })

	cfg := &config.Config{
		Pricing: config.PricingConfig{
			Tiers: []config.TierConfig{
				{Label: "Early Bird", Amount: 500000, Deadline: time.Now().Add(24 * time.Hour)},
			},
			FinalLabel:        "Final/On-spot",
			FinalAmount:       1500000,
			TaxRate:           0.18,
			AllowedCurrencies: []string{"INR"},
		},
		Manual: config.ManualPaymentConfig{UPIID: "istadigitalmedia@okaxis"},
	}

	db := newStubDB()
	svc := order.NewOrderService(db, gw, stubIssuer{}, stubLock{}, stubNotifier{}, pricing.NewEngine(cfg.Pricing), cfg, log)
	return &order_api.Handler{OrderService: svc, Logger: log}, db
}

func router(h *order_api.Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/api/registration/orders", h.CreateOrder)
	r.Post("/api/registration/orders/manual", h.CreateManualOrder)
	r.Post("/api/registration/payments/confirm", h.ConfirmPayment)
	r.Post("/api/registration/orders/{orderId}/attest", h.AttestPayment)
	r.Post("/api/registration/orders/{orderId}/verify", h.VerifyPayment)
	r.Get("/api/registration/orders/{orderId}", h.GetOrder)
	return r
}

func postJSON(t *testing.T, r http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body)))
	return rec
}

func validRequest() models.CreateOrderRequest {
	return models.CreateOrderRequest{
		Currency: "INR",
		Customer: models.CustomerDetails{
			FullName:   "Dr. Asha Rao",
			Email:      "asha.rao@example.com",
			Phone:      "9876543210",
			Speciality: "Cardiology",
			Hospital:   "City General",
			City:       "Bengaluru",
		},
	}
}

func TestCreateOrderEndpoint(t *testing.T) {
	h, _ := newHandler(t, &stubGateway{})
	r := router(h)

	rec := postJSON(t, r, "/api/registration/orders", validRequest())
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "rzp_test_key", data["gateway_key_id"])
	assert.Equal(t, "Early Bird", data["tier_label"])
	assert.Equal(t, float64(590000), data["total_amount"])
	assert.NotEmpty(t, data["gateway_order_ref"])
}

func TestCreateOrderEndpointValidation(t *testing.T) {
	h, _ := newHandler(t, &stubGateway{})
	r := router(h)

	req := validRequest()
	req.Customer.Email = "nope"

	rec := postJSON(t, r, "/api/registration/orders", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	fields := resp.Fields.(map[string]interface{})
	assert.Contains(t, fields, "email")
}

func TestConfirmPaymentEndpointRequiresAllFields(t *testing.T) {
	h, _ := newHandler(t, &stubGateway{})
	r := router(h)

	rec := postJSON(t, r, "/api/registration/payments/confirm", models.ConfirmPaymentRequest{
		GatewayOrderRef: "order_rzp_1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfirmPaymentEndpointBadSignature(t *testing.T) {
	h, _ := newHandler(t, &stubGateway{failSignature: true})
	r := router(h)

	rec := postJSON(t, r, "/api/registration/payments/confirm", models.ConfirmPaymentRequest{
		GatewayOrderRef:   "order_rzp_1",
		GatewayPaymentRef: "pay_1",
		Signature:         "forged",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "payment verification failed", resp.Error)
}

func TestFullGatewayFlow(t *testing.T) {
	h, db := newHandler(t, &stubGateway{})
	r := router(h)

	// Create
	rec := postJSON(t, r, "/api/registration/orders", validRequest())
	require.Equal(t, http.StatusCreated, rec.Code)

	var created utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	data := created.Data.(map[string]interface{})
	gatewayRef := data["gateway_order_ref"].(string)
	orderID := data["order_id"].(string)

	// Confirm
	rec = postJSON(t, r, "/api/registration/payments/confirm", models.ConfirmPaymentRequest{
		GatewayOrderRef:   gatewayRef,
		GatewayPaymentRef: "pay_1",
		Signature:         "valid",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var confirmed utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &confirmed))
	confirmData := confirmed.Data.(map[string]interface{})
	assert.Equal(t, models.StatusPaid, confirmData["status"])
	assert.NotEmpty(t, confirmData["ticket_code"])

	// A duplicate confirm settles to the same ticket
	rec = postJSON(t, r, "/api/registration/payments/confirm", models.ConfirmPaymentRequest{
		GatewayOrderRef:   gatewayRef,
		GatewayPaymentRef: "pay_1",
		Signature:         "valid",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var dup utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dup))
	dupData := dup.Data.(map[string]interface{})
	assert.Equal(t, confirmData["ticket_code"], dupData["ticket_code"])

	stored, err := db.GetOrderByID(orderID)
	require.NoError(t, err)
	assert.Equal(t, "pay_1", stored.GatewayPaymentRef)
}

func TestManualFlow(t *testing.T) {
	h, _ := newHandler(t, &stubGateway{})
	r := router(h)

	// Create on the manual path
	rec := postJSON(t, r, "/api/registration/orders/manual", validRequest())
	require.Equal(t, http.StatusCreated, rec.Code)

	var created utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	data := created.Data.(map[string]interface{})
	orderID := data["order_id"].(string)
	instructions := data["payment_instructions"].(map[string]interface{})
	assert.Equal(t, "istadigitalmedia@okaxis", instructions["upi_id"])

	// Attest
	rec = postJSON(t, r, "/api/registration/orders/"+orderID+"/attest", models.AttestPaymentRequest{ProofRef: "txn-001"})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	// Staff verify
	rec = postJSON(t, r, "/api/registration/orders/"+orderID+"/verify", models.AttestPaymentRequest{ProofRef: "txn-001"})
	require.Equal(t, http.StatusOK, rec.Code)

	var verified utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verified))
	verifyData := verified.Data.(map[string]interface{})
	assert.Equal(t, models.StatusPaid, verifyData["status"])
	assert.NotEmpty(t, verifyData["ticket_code"])
}

func TestGetOrderEndpointNotFound(t *testing.T) {
	h, _ := newHandler(t, &stubGateway{})
	r := router(h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/registration/orders/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
