/**
 * @description
 * This file contains the HTTP handlers for the transfer-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: For URL parameter extraction.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/medtrail/transfer-service/internal/app"
	"github.com/medtrail/transfer-service/internal/domain"
	"github.com/medtrail/transfer-service/internal/store"
)

// TransferHandlers holds the application service that handlers will use.
type TransferHandlers struct {
	service *app.Service
}

// NewTransferHandlers creates a new instance of TransferHandlers.
func NewTransferHandlers(service *app.Service) *TransferHandlers {
	return &TransferHandlers{service: service}
}

// transferMutationResponse is sent back after a lifecycle event has been applied.
// It mirrors the shape the dashboard expects: the updated transfer plus, for
// deliveries, the verification outcome.
type transferMutationResponse struct {
	Message   string           `json:"message"`
	Transfer  *domain.Transfer `json:"transfer"`
	Anomalies []domain.Anomaly `json:"anomalies,omitempty"`
}

func (h *TransferHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func (h *TransferHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// mapTransferError translates service errors to HTTP status codes. Validation
// failures and invalid transitions carry their own caller-readable messages.
func mapTransferError(err error) (int, string) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, validationErr.Error()
	}
	var transitionErr *app.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		return http.StatusConflict, transitionErr.Error()
	}
	if errors.Is(err, store.ErrTransferNotFound) {
		return http.StatusNotFound, "Transfer not found."
	}
	return http.StatusInternalServerError, "Could not process transfer request."
}

// CreateTransferHandler handles POST /transfers.
func (h *TransferHandlers) CreateTransferHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=create_transfer outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	transfer, err := h.service.CreateTransfer(r.Context(), req)
	if err != nil {
		status, msg := mapTransferError(err)
		if status == http.StatusInternalServerError {
			log.Printf("level=error component=api endpoint=create_transfer outcome=failed err=%v", err)
		} else {
			log.Printf("level=warn component=api endpoint=create_transfer outcome=reject reason=validation err=%v", err)
		}
		h.writeError(w, status, msg)
		return
	}

	h.writeJSON(w, http.StatusCreated, transferMutationResponse{
		Message:  "Transfer created successfully",
		Transfer: transfer,
	})
}

// RecordPickupHandler handles POST /transfers/{id}/pickup.
func (h *TransferHandlers) RecordPickupHandler(w http.ResponseWriter, r *http.Request) {
	transferID := chi.URLParam(r, "id")

	var req domain.PickupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=record_pickup outcome=reject reason=invalid_json transfer_id=%s err=%v", transferID, err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	transfer, err := h.service.RecordPickup(r.Context(), transferID, req)
	if err != nil {
		status, msg := mapTransferError(err)
		if status == http.StatusInternalServerError {
			log.Printf("level=error component=api endpoint=record_pickup outcome=failed transfer_id=%s err=%v", transferID, err)
		} else {
			log.Printf("level=warn component=api endpoint=record_pickup outcome=reject transfer_id=%s err=%v", transferID, err)
		}
		h.writeError(w, status, msg)
		return
	}

	h.writeJSON(w, http.StatusOK, transferMutationResponse{
		Message:  "Pickup recorded successfully",
		Transfer: transfer,
	})
}

// RecordDeliveryHandler handles POST /transfers/{id}/deliver.
func (h *TransferHandlers) RecordDeliveryHandler(w http.ResponseWriter, r *http.Request) {
	transferID := chi.URLParam(r, "id")

	var req domain.DeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=record_delivery outcome=reject reason=invalid_json transfer_id=%s err=%v", transferID, err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	transfer, findings, err := h.service.RecordDelivery(r.Context(), transferID, req)
	if err != nil {
		status, msg := mapTransferError(err)
		if status == http.StatusInternalServerError {
			log.Printf("level=error component=api endpoint=record_delivery outcome=failed transfer_id=%s err=%v", transferID, err)
		} else {
			log.Printf("level=warn component=api endpoint=record_delivery outcome=reject transfer_id=%s err=%v", transferID, err)
		}
		h.writeError(w, status, msg)
		return
	}

	h.writeJSON(w, http.StatusOK, transferMutationResponse{
		Message:   "Delivery recorded successfully",
		Transfer:  transfer,
		Anomalies: findings,
	})
}

// GetTransferHandler handles GET /transfers/{id}.
func (h *TransferHandlers) GetTransferHandler(w http.ResponseWriter, r *http.Request) {
	transferID := chi.URLParam(r, "id")

	detail, err := h.service.GetTransferDetail(r.Context(), transferID)
	if err != nil {
		status, msg := mapTransferError(err)
		if status == http.StatusInternalServerError {
			log.Printf("level=error component=api endpoint=get_transfer outcome=failed transfer_id=%s err=%v", transferID, err)
		}
		h.writeError(w, status, msg)
		return
	}

	h.writeJSON(w, http.StatusOK, detail)
}

// VerifyTransferHandler handles GET /transfers/{id}/verify.
func (h *TransferHandlers) VerifyTransferHandler(w http.ResponseWriter, r *http.Request) {
	transferID := chi.URLParam(r, "id")

	report, err := h.service.VerifyTransfer(r.Context(), transferID)
	if err != nil {
		status, msg := mapTransferError(err)
		if status == http.StatusInternalServerError {
			log.Printf("level=error component=api endpoint=verify_transfer outcome=failed transfer_id=%s err=%v", transferID, err)
		}
		h.writeError(w, status, msg)
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

// ListTransfersHandler handles GET /transfers with optional filters.
func (h *TransferHandlers) ListTransfersHandler(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOptions(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.ListTransfers(r.Context(), opts)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_transfers outcome=failed err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Could not retrieve transfers.")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// ListPendingHandler handles GET /transfers/pending/list.
func (h *TransferHandlers) ListPendingHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ListPending(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=list_pending outcome=failed err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Could not retrieve pending transfers.")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// ListAnomalousHandler handles GET /transfers/anomalies/list.
func (h *TransferHandlers) ListAnomalousHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ListAnomalous(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=list_anomalous outcome=failed err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Could not retrieve anomalous transfers.")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// parseListOptions extracts and validates the listing filter query parameters.
func parseListOptions(r *http.Request) (domain.TransferListOptions, error) {
	opts := domain.TransferListOptions{
		FromDistrictID: strings.TrimSpace(r.URL.Query().Get("from_district")),
		ToDistrictID:   strings.TrimSpace(r.URL.Query().Get("to_district")),
		Limit:          50,
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := domain.TransferStatus(raw)
		switch status {
		case domain.StatusCreated, domain.StatusPickedUp, domain.StatusDelivered, domain.StatusVerified, domain.StatusDisputed:
			opts.Status = &status
		default:
			return opts, &domain.ValidationError{Field: "status", Reason: "unknown status filter"}
		}
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("has_discrepancy")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, &domain.ValidationError{Field: "has_discrepancy", Reason: "must be true or false"}
		}
		opts.HasDiscrepancy = &value
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return opts, &domain.ValidationError{Field: "limit", Reason: "must be a positive integer"}
		}
		if limit > 100 {
			limit = 100
		}
		opts.Limit = limit
	}

	return opts, nil
}
