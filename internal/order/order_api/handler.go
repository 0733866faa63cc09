package order_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-registration/internal/auth"
	"ms-registration/internal/errs"
	"ms-registration/internal/logger"
	"ms-registration/internal/models"
	"ms-registration/internal/order"
	"ms-registration/internal/utils"
)

type Handler struct {
	OrderService *order.OrderService
	Logger       *logger.Logger
}

// CreateOrder opens a gateway-hosted order and returns the checkout handle.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body"))
		return
	}

	resp, err := h.OrderService.CreateGatewayOrder(r.Context(), req)
	if err != nil {
		h.writeError(w, "CreateOrder", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("order created", resp))
}

// CreateManualOrder opens an order on the UPI/bank-transfer path.
func (h *Handler) CreateManualOrder(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateManualOrder: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body"))
		return
	}

	resp, err := h.OrderService.CreateManualOrder(req)
	if err != nil {
		h.writeError(w, "CreateManualOrder", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("order created, payment instructions attached", resp))
}

// ConfirmPayment settles a gateway payment after signature verification.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req models.ConfirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ConfirmPayment: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body"))
		return
	}
	if req.GatewayOrderRef == "" || req.GatewayPaymentRef == "" || req.Signature == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("gateway_order_ref, gateway_payment_ref and signature are required"))
		return
	}

	resp, err := h.OrderService.ConfirmGatewayPayment(req)
	if err != nil {
		h.writeError(w, "ConfirmPayment", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("payment confirmed", resp))
}

// AttestPayment records a manual-payment proof. Always a 202: the order only
// moves to pending_verification, staff confirm later.
func (h *Handler) AttestPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req models.AttestPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("AttestPayment: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body"))
		return
	}

	if err := h.OrderService.AttestManualPayment(orderID, req.ProofRef); err != nil {
		h.writeError(w, "AttestPayment", err)
		return
	}

	utils.WriteJSON(w, http.StatusAccepted, utils.SuccessResponse("payment submitted for verification", map[string]string{
		"order_id": orderID,
		"status":   models.StatusPendingVerification,
	}))
}

// VerifyPayment is the staff attestation for the manual path: it marks the
// order paid and issues the ticket. Routed behind the staff middleware.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req models.AttestPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("VerifyPayment: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body"))
		return
	}

	resp, err := h.OrderService.VerifyManualPayment(orderID, req.ProofRef)
	if err != nil {
		h.writeError(w, "VerifyPayment", err)
		return
	}

	h.Logger.LogPayment("VERIFIED", orderID, fmt.Sprintf("Manual payment verified by staff %s", auth.AuditSubject(r)))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("payment verified", resp))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	orderData, err := h.OrderService.GetOrder(orderID)
	if err != nil {
		h.writeError(w, "GetOrder", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("order found", orderData))
}

// writeError maps the error taxonomy onto HTTP. Gateway and signature
// details never reach the client; the full error goes to the log.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	var validationErr *errs.ValidationError
	if errors.As(err, &validationErr) {
		h.Logger.Warn("API", fmt.Sprintf("%s: validation failed: %v", op, err))
		resp := utils.ErrorResponse("validation failed")
		resp.Fields = validationErr.Fields
		utils.WriteJSON(w, http.StatusBadRequest, resp)
		return
	}

	var gatewayErr *errs.GatewayError
	if errors.As(err, &gatewayErr) {
		h.Logger.Error("API", fmt.Sprintf("%s: gateway failure: %v", op, err))
		utils.WriteJSON(w, http.StatusBadGateway, utils.ErrorResponse(gatewayErr.PublicMessage))
		return
	}

	switch {
	case errors.Is(err, errs.ErrSignatureInvalid):
		h.Logger.LogSecurity("SIGNATURE", fmt.Sprintf("%s: %v", op, err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("payment verification failed"))
	case errors.Is(err, errs.ErrNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("order not found"))
	case errors.Is(err, errs.ErrInvalidTransition):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("order is not in a valid state for this operation"))
	case errors.Is(err, errs.ErrDuplicateOperation):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("payment confirmation already in progress"))
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error"))
	}
}
