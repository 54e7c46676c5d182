package domain

import "time"

// AnomalyType tags a detector finding.
type AnomalyType string

const (
	AnomalyQuantityMismatch AnomalyType = "quantity_mismatch"
	AnomalyLatePickup       AnomalyType = "late_pickup"
	AnomalyExcessiveTransit AnomalyType = "excessive_transit"
	AnomalyMissingSignature AnomalyType = "missing_signature"
)

// AnomalySeverity ranks a finding. Critical findings force the disputed
// terminal state; warnings are recorded but do not block verification.
type AnomalySeverity string

const (
	SeverityCritical AnomalySeverity = "critical"
	SeverityWarning  AnomalySeverity = "warning"
)

// Anomaly is a typed, severity-tagged observation about a single transfer.
// MissingUnits is populated only for quantity mismatches: shipped minus
// received, so positive means loss and negative means overage.
type Anomaly struct {
	Type         AnomalyType     `json:"type"`
	Severity     AnomalySeverity `json:"severity"`
	Message      string          `json:"message"`
	MissingUnits *int64          `json:"missing_units,omitempty"`
}

// PendingAlertType tags an alert raised by the on-demand scan of
// not-yet-delivered transfers.
type PendingAlertType string

const (
	AlertStalledTransfer PendingAlertType = "stalled_transfer"
	AlertOverdueDelivery PendingAlertType = "overdue_delivery"
)

// PendingAlert flags a created or picked_up transfer that has exceeded its
// deadline without progressing. Computed from stored timestamps on demand;
// nothing is persisted.
type PendingAlert struct {
	TransferID     string           `json:"transfer_id"`
	Type           PendingAlertType `json:"type"`
	Severity       AnomalySeverity  `json:"severity"`
	Message        string           `json:"message"`
	FromDistrictID string           `json:"from_district"`
	ToDistrictID   string           `json:"to_district"`
}

// VerificationReport is the result of re-verifying a transfer's chain of
// custody from stored fields. It is recomputed on demand and never stored.
type VerificationReport struct {
	TransferID       string          `json:"transfer_id"`
	IsValid          bool            `json:"is_valid"`
	ChainComplete    bool            `json:"chain_complete"`
	ChainError       *string         `json:"chain_error,omitempty"`
	Signatures       map[string]bool `json:"signatures"`
	VerificationHash string          `json:"verification_hash"`
	Anomalies        []Anomaly       `json:"anomalies"`
	Status           TransferStatus  `json:"status"`
}

// TransferLifecycleEvent is the message payload published when a transfer
// changes state. Consumers (dashboard refresh, audit trail) key on EventType.
type TransferLifecycleEvent struct {
	EventID        string         `json:"event_id"`
	EventType      string         `json:"event_type"` // created | picked_up | verified | disputed
	TransferID     string         `json:"transfer_id"`
	Status         TransferStatus `json:"status"`
	MedicineID     string         `json:"medicine_id"`
	Quantity       int64          `json:"quantity"`
	FromDistrictID string         `json:"from_district_id"`
	ToDistrictID   string         `json:"to_district_id"`
	OccurredAt     time.Time      `json:"occurred_at"`
}
