/**
 * @description
 * This file defines the core domain models for the transfer-service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - A Transfer is an append-only audit record: lifecycle fields are set exactly once
 *   by their corresponding event and never rewritten. The only mutation path is the
 *   state machine in internal/app.
 * - Quantities are `int64` unit counts (tablets, vials, sachets), never fractional.
 */

package domain

import (
	"fmt"
	"time"
)

// TransferStatus enumerates the lifecycle states of a transfer.
// Progress is strictly ordered except the terminal fork: a delivered
// transfer resolves to exactly one of verified or disputed.
type TransferStatus string

const (
	StatusCreated   TransferStatus = "created"
	StatusPickedUp  TransferStatus = "picked_up"
	StatusDelivered TransferStatus = "delivered"
	StatusVerified  TransferStatus = "verified"
	StatusDisputed  TransferStatus = "disputed"
)

// IsTerminal reports whether no further lifecycle event is accepted.
func (s TransferStatus) IsTerminal() bool {
	return s == StatusVerified || s == StatusDisputed
}

// Priority classifies how quickly a shipment is expected to move.
// The anomaly detector applies shorter transit deadlines to urgent and critical transfers.
type Priority string

const (
	PriorityNormal   Priority = "normal"
	PriorityUrgent   Priority = "urgent"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is one of the known priority classes.
func (p Priority) Valid() bool {
	switch p {
	case PriorityNormal, PriorityUrgent, PriorityCritical:
		return true
	}
	return false
}

// Transfer is the central ledger record for one tracked shipment of a medicine
// lot between two districts. This struct maps directly to the `transfers` table.
type Transfer struct {
	ID             string         `json:"id"`
	MedicineID     string         `json:"medicine_id"`
	Quantity       int64          `json:"quantity"`
	FromDistrictID string         `json:"from_district_id"`
	ToDistrictID   string         `json:"to_district_id"`
	Priority       Priority       `json:"priority"`
	Status         TransferStatus `json:"status"`

	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
	SenderSignature string    `json:"sender_signature"`
	SenderNotes     *string   `json:"sender_notes,omitempty"`

	TransporterID        *string    `json:"transporter_id,omitempty"`
	PickupAt             *time.Time `json:"pickup_at,omitempty"`
	TransporterSignature *string    `json:"transporter_signature,omitempty"`
	PickupLocationLat    *float64   `json:"pickup_location_lat,omitempty"`
	PickupLocationLng    *float64   `json:"pickup_location_lng,omitempty"`

	ReceiverID          *string    `json:"receiver_id,omitempty"`
	DeliveredAt         *time.Time `json:"delivered_at,omitempty"`
	ReceiverSignature   *string    `json:"receiver_signature,omitempty"`
	ReceivedQuantity    *int64     `json:"received_quantity,omitempty"`
	ReceiverNotes       *string    `json:"receiver_notes,omitempty"`
	DeliveryLocationLat *float64   `json:"delivery_location_lat,omitempty"`
	DeliveryLocationLng *float64   `json:"delivery_location_lng,omitempty"`

	VerificationHash *string    `json:"verification_hash,omitempty"`
	IsVerified       bool       `json:"is_verified"`
	HasDiscrepancy   bool       `json:"has_discrepancy"`
	DiscrepancyType  *string    `json:"discrepancy_type,omitempty"`
	DiscrepancyNotes *string    `json:"discrepancy_notes,omitempty"`
	VerifiedAt       *time.Time `json:"verified_at,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// CreateTransferRequest is the DTO for incoming transfer creation API requests.
type CreateTransferRequest struct {
	MedicineID     string   `json:"medicine_id"`
	Quantity       int64    `json:"quantity"`
	FromDistrictID string   `json:"from_district_id"`
	ToDistrictID   string   `json:"to_district_id"`
	Priority       Priority `json:"priority"`
	CreatedBy      string   `json:"created_by"`
	SenderNotes    *string  `json:"sender_notes,omitempty"`
}

// PickupRequest is the DTO for a transporter acknowledging pickup.
type PickupRequest struct {
	TransporterID     string   `json:"transporter_id"`
	PickupLocationLat *float64 `json:"pickup_location_lat,omitempty"`
	PickupLocationLng *float64 `json:"pickup_location_lng,omitempty"`
}

// DeliveryRequest is the DTO for a receiver confirming delivery.
type DeliveryRequest struct {
	ReceiverID          string   `json:"receiver_id"`
	ReceivedQuantity    int64    `json:"received_quantity"`
	ReceiverNotes       *string  `json:"receiver_notes,omitempty"`
	DeliveryLocationLat *float64 `json:"delivery_location_lat,omitempty"`
	DeliveryLocationLng *float64 `json:"delivery_location_lng,omitempty"`
}

// TransferListOptions controls filtering for the transfer listing query.
type TransferListOptions struct {
	Status         *TransferStatus
	HasDiscrepancy *bool
	FromDistrictID string
	ToDistrictID   string
	Limit          int
}

// TransferSummary carries the aggregate counts returned alongside transfer listings.
type TransferSummary struct {
	ByStatus          map[TransferStatus]int64 `json:"by_status"`
	WithDiscrepancies int64                    `json:"with_discrepancies"`
}

// ValidationError reports a malformed or inconsistent input, rejected before
// any state change. Field names the offending input; Reason states the violated
// constraint in caller-readable form.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
