package ticket_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-registration/internal/auth"
	"ms-registration/internal/errs"
	"ms-registration/internal/logger"
	"ms-registration/internal/models"
	"ms-registration/internal/tickets"
	"ms-registration/internal/utils"
)

type Handler struct {
	TicketService *tickets.TicketService
	Logger        *logger.Logger
}

// Scan redeems a ticket at the door. The staff middleware has already run;
// the subject is only read here for the audit log.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	staffID := auth.AuditSubject(r)

	var req models.ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Scan: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body"))
		return
	}
	if req.Code == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("ticket code is required"))
		return
	}

	h.Logger.Info("API", fmt.Sprintf("Scan: staff=%s code=%s", staffID, req.Code))

	result, err := h.TicketService.Scan(req.Code)
	if err != nil {
		h.writeScanError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("check-in successful", result))
}

// GetTicket returns a ticket with its QR for display/reprint.
func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	ticket, err := h.TicketService.GetTicketByCode(code)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("ticket not found"))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("GetTicket: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error"))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ticket found", ticket))
}

func (h *Handler) writeScanError(w http.ResponseWriter, err error) {
	var used *errs.AlreadyUsedError
	if errors.As(err, &used) {
		resp := utils.ErrorResponse("ticket already used")
		resp.Data = map[string]interface{}{
			"checked_in_at": used.UsedAt.Format(time.RFC3339),
			"attendee": models.Attendee{
				Name:      used.AttendeeName,
				Email:     used.Email,
				Phone:     used.Phone,
				TierLabel: used.TierLabel,
			},
		}
		utils.WriteJSON(w, http.StatusConflict, resp)
		return
	}

	switch {
	case errors.Is(err, errs.ErrNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("invalid ticket code"))
	case errors.Is(err, errs.ErrNotPaid):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("ticket payment not verified"))
	default:
		h.Logger.Error("API", fmt.Sprintf("Scan: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error"))
	}
}
