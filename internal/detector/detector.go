/**
 * @description
 * This package inspects transfers for anomalies: quantity mismatches between what
 * was shipped and what was received, timing outliers against per-priority
 * deadlines, and missing custody signatures. Findings are pure derivations from
 * stored transfer fields; nothing here mutates state or consults a clock except
 * the on-demand pending scan, which takes `now` explicitly.
 *
 * The state machine controller runs Inspect at delivery time to decide the
 * terminal fork (verified vs disputed); the query service re-runs it when listing
 * anomalous transfers so corruption introduced in storage is still caught.
 */

package detector

import (
	"fmt"
	"time"

	"github.com/medtrail/transfer-service/internal/domain"
)

// Config carries the timing deadlines used for anomaly detection. Deadlines are
// configuration points, not fixed behavior: districts with long road distances
// run with laxer transit deadlines.
type Config struct {
	PickupDeadline  time.Duration
	TransitNormal   time.Duration
	TransitUrgent   time.Duration
	TransitCritical time.Duration
}

// TransitDeadline returns the maximum expected pickup-to-delivery window for a
// priority class. Unknown priorities fall back to the normal deadline.
func (c Config) TransitDeadline(p domain.Priority) time.Duration {
	switch p {
	case domain.PriorityCritical:
		return c.TransitCritical
	case domain.PriorityUrgent:
		return c.TransitUrgent
	}
	return c.TransitNormal
}

// Detector evaluates transfers against the configured deadlines.
type Detector struct {
	cfg Config
}

// New creates a Detector with the given deadlines.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Inspect returns the ordered list of findings for a transfer. Checks run in
// priority order: quantity mismatch first, then timing, then the defensive
// signature re-validation. Callers treat the first critical finding as the
// dominant anomaly.
func (d *Detector) Inspect(t *domain.Transfer) []domain.Anomaly {
	var findings []domain.Anomaly

	if t.ReceivedQuantity != nil && *t.ReceivedQuantity != t.Quantity {
		missing := t.Quantity - *t.ReceivedQuantity
		findings = append(findings, domain.Anomaly{
			Type:     domain.AnomalyQuantityMismatch,
			Severity: domain.SeverityCritical,
			Message: fmt.Sprintf("Quantity discrepancy: sent %d, received %d (missing: %d)",
				t.Quantity, *t.ReceivedQuantity, missing),
			MissingUnits: &missing,
		})
	}

	if t.PickupAt != nil {
		if delay := t.PickupAt.Sub(t.CreatedAt); delay > d.cfg.PickupDeadline {
			findings = append(findings, domain.Anomaly{
				Type:     domain.AnomalyLatePickup,
				Severity: domain.SeverityWarning,
				Message: fmt.Sprintf("Pickup delayed by %.1f hours (expected within %.0fh)",
					delay.Hours(), d.cfg.PickupDeadline.Hours()),
			})
		}
	}

	if t.PickupAt != nil && t.DeliveredAt != nil {
		deadline := d.cfg.TransitDeadline(t.Priority)
		if transit := t.DeliveredAt.Sub(*t.PickupAt); transit > deadline {
			findings = append(findings, domain.Anomaly{
				Type:     domain.AnomalyExcessiveTransit,
				Severity: domain.SeverityWarning,
				Message: fmt.Sprintf("Transit took %.1f hours (expected max %.0fh for %s priority)",
					transit.Hours(), deadline.Hours(), t.Priority),
			})
		}
	}

	if missing := missingSignatures(t); len(missing) > 0 {
		msg := "Missing signatures from: "
		for i, m := range missing {
			if i > 0 {
				msg += ", "
			}
			msg += m
		}
		findings = append(findings, domain.Anomaly{
			Type:     domain.AnomalyMissingSignature,
			Severity: domain.SeverityCritical,
			Message:  msg,
		})
	}

	return findings
}

// missingSignatures lists the parties whose signature the transfer's status
// implies but whose signature is absent. The controller's guards make this
// unreachable in normal operation; the detector re-validates independently so a
// corrupted record is still flagged.
func missingSignatures(t *domain.Transfer) []string {
	var missing []string
	if t.SenderSignature == "" {
		missing = append(missing, "sender")
	}
	if t.Status != domain.StatusCreated {
		if t.TransporterSignature == nil || *t.TransporterSignature == "" {
			missing = append(missing, "transporter")
		}
	}
	switch t.Status {
	case domain.StatusDelivered, domain.StatusVerified, domain.StatusDisputed:
		if t.ReceiverSignature == nil || *t.ReceiverSignature == "" {
			missing = append(missing, "receiver")
		}
	}
	return missing
}

// PendingAlerts scans not-yet-delivered transfers for ones that have exceeded
// their deadline without progressing. A created transfer past the pickup
// deadline is stalled; a picked_up transfer past its transit deadline is a
// possible diversion. Computed on demand from stored timestamps, never polled.
func (d *Detector) PendingAlerts(transfers []domain.Transfer, now time.Time) []domain.PendingAlert {
	var alerts []domain.PendingAlert
	for i := range transfers {
		t := &transfers[i]
		switch t.Status {
		case domain.StatusCreated:
			if age := now.Sub(t.CreatedAt); age > d.cfg.PickupDeadline {
				alerts = append(alerts, domain.PendingAlert{
					TransferID:     t.ID,
					Type:           domain.AlertStalledTransfer,
					Severity:       domain.SeverityWarning,
					Message:        fmt.Sprintf("Transfer awaiting pickup for %.1f hours", age.Hours()),
					FromDistrictID: t.FromDistrictID,
					ToDistrictID:   t.ToDistrictID,
				})
			}
		case domain.StatusPickedUp:
			if t.PickupAt == nil {
				continue
			}
			if transit := now.Sub(*t.PickupAt); transit > d.cfg.TransitDeadline(t.Priority) {
				alerts = append(alerts, domain.PendingAlert{
					TransferID:     t.ID,
					Type:           domain.AlertOverdueDelivery,
					Severity:       domain.SeverityCritical,
					Message:        fmt.Sprintf("In transit for %.1f hours - possible diversion", transit.Hours()),
					FromDistrictID: t.FromDistrictID,
					ToDistrictID:   t.ToDistrictID,
				})
			}
		}
	}
	return alerts
}
