package http

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/maxshopweb/checkout/internal/checkout"
	"github.com/maxshopweb/checkout/internal/domain"
	"github.com/maxshopweb/checkout/internal/identity"
	"github.com/maxshopweb/checkout/internal/order"
)

type ErrorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code,omitempty"`
	Field      string `json:"field,omitempty"`
	ReturnStep int    `json:"return_step,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Error("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// handleDomainError maps service-layer failures onto the HTTP surface:
// 401 auth expired, 422 validation, 409 busy or conflict, 502 retryable.
func handleDomainError(w http.ResponseWriter, err error) {
	var authErr *domain.AuthExpiredError
	if errors.As(err, &authErr) {
		respondJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:      authErr.Error(),
			Code:       "auth_expired",
			ReturnStep: authErr.ReturnStep,
		})
		return
	}

	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: vErr.Message,
			Code:  "validation_failed",
			Field: vErr.Field,
		})
		return
	}

	var rErr *order.RetryableError
	if errors.As(err, &rErr) {
		respondError(w, http.StatusBadGateway, "submission_failed", "order could not be submitted, please retry")
		return
	}

	switch {
	case errors.Is(err, checkout.ErrSubmissionInFlight):
		respondError(w, http.StatusConflict, "submission_in_flight", err.Error())
	case errors.Is(err, order.ErrDuplicateOrder):
		respondError(w, http.StatusConflict, "duplicate_order", err.Error())
	case errors.Is(err, order.ErrPaymentMethodRequired):
		respondError(w, http.StatusUnprocessableEntity, "payment_method_required", err.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusConflict, "empty_cart", err.Error())
	case errors.Is(err, checkout.ErrIllegalTransition):
		respondError(w, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, checkout.ErrUnknownDeliveryType):
		respondError(w, http.StatusBadRequest, "unknown_delivery_type", err.Error())
	case errors.Is(err, identity.ErrEmailRegistered):
		respondError(w, http.StatusConflict, "email_registered", err.Error())
	case errors.Is(err, order.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		log.WithError(err).Error("unhandled service error")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
