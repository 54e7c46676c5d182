package detector

import (
	"strings"
	"testing"
	"time"

	"github.com/medtrail/transfer-service/internal/domain"
)

func testConfig() Config {
	return Config{
		PickupDeadline:  24 * time.Hour,
		TransitNormal:   48 * time.Hour,
		TransitUrgent:   24 * time.Hour,
		TransitCritical: 12 * time.Hour,
	}
}

// deliveredTransfer builds a delivered transfer with a clean signature set and
// timestamps well inside every deadline. Tests mutate it to trigger findings.
func deliveredTransfer(priority domain.Priority, sent, received int64) *domain.Transfer {
	createdAt := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	pickupAt := createdAt.Add(2 * time.Hour)
	deliveredAt := pickupAt.Add(4 * time.Hour)
	transporterSig := "t-sig"
	receiverSig := "r-sig"
	transporterID := "V-001"
	receiverID := "CMO-KOTA"

	return &domain.Transfer{
		ID:                   "TXN-DETECT000001",
		MedicineID:           "IV-RL",
		Quantity:             sent,
		FromDistrictID:       "RJ-JP",
		ToDistrictID:         "RJ-KT",
		Priority:             priority,
		Status:               domain.StatusDelivered,
		CreatedBy:            "DHO-JAIPUR",
		CreatedAt:            createdAt,
		SenderSignature:      "s-sig",
		TransporterID:        &transporterID,
		PickupAt:             &pickupAt,
		TransporterSignature: &transporterSig,
		ReceiverID:           &receiverID,
		DeliveredAt:          &deliveredAt,
		ReceivedQuantity:     &received,
		ReceiverSignature:    &receiverSig,
	}
}

func findingByType(findings []domain.Anomaly, at domain.AnomalyType) *domain.Anomaly {
	for i := range findings {
		if findings[i].Type == at {
			return &findings[i]
		}
	}
	return nil
}

func TestInspectCleanTransferHasNoFindings(t *testing.T) {
	d := New(testConfig())
	if findings := d.Inspect(deliveredTransfer(domain.PriorityNormal, 800, 800)); len(findings) != 0 {
		t.Fatalf("expected no findings, got %v", findings)
	}
}

func TestInspectQuantityMismatch(t *testing.T) {
	d := New(testConfig())

	findings := d.Inspect(deliveredTransfer(domain.PriorityNormal, 800, 700))
	f := findingByType(findings, domain.AnomalyQuantityMismatch)
	if f == nil {
		t.Fatalf("expected a quantity_mismatch finding, got %v", findings)
	}
	if f.Severity != domain.SeverityCritical {
		t.Errorf("expected critical severity, got %s", f.Severity)
	}
	if f.MissingUnits == nil || *f.MissingUnits != 100 {
		t.Errorf("expected 100 missing units, got %v", f.MissingUnits)
	}
	if !strings.Contains(f.Message, "sent 800, received 700") {
		t.Errorf("unexpected message: %q", f.Message)
	}
}

func TestInspectQuantityOverageReportsNegativeMissing(t *testing.T) {
	d := New(testConfig())

	findings := d.Inspect(deliveredTransfer(domain.PriorityNormal, 800, 900))
	f := findingByType(findings, domain.AnomalyQuantityMismatch)
	if f == nil {
		t.Fatalf("expected a quantity_mismatch finding for overage, got %v", findings)
	}
	if f.MissingUnits == nil || *f.MissingUnits != -100 {
		t.Errorf("expected -100 missing units, got %v", f.MissingUnits)
	}
}

func TestInspectLatePickup(t *testing.T) {
	d := New(testConfig())

	transfer := deliveredTransfer(domain.PriorityNormal, 500, 500)
	late := transfer.CreatedAt.Add(30 * time.Hour)
	transfer.PickupAt = &late
	delivered := late.Add(time.Hour)
	transfer.DeliveredAt = &delivered

	findings := d.Inspect(transfer)
	f := findingByType(findings, domain.AnomalyLatePickup)
	if f == nil {
		t.Fatalf("expected a late_pickup finding, got %v", findings)
	}
	if f.Severity != domain.SeverityWarning {
		t.Errorf("expected warning severity, got %s", f.Severity)
	}
	if !strings.Contains(f.Message, "30.0 hours") {
		t.Errorf("unexpected message: %q", f.Message)
	}
}

func TestInspectTransitDeadlinePerPriority(t *testing.T) {
	d := New(testConfig())

	tests := []struct {
		name     string
		priority domain.Priority
		transit  time.Duration
		flagged  bool
	}{
		{"normal within deadline", domain.PriorityNormal, 40 * time.Hour, false},
		{"normal past deadline", domain.PriorityNormal, 49 * time.Hour, true},
		{"urgent past deadline", domain.PriorityUrgent, 25 * time.Hour, true},
		{"critical past deadline", domain.PriorityCritical, 13 * time.Hour, true},
		{"critical within deadline", domain.PriorityCritical, 11 * time.Hour, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			transfer := deliveredTransfer(tc.priority, 500, 500)
			delivered := transfer.PickupAt.Add(tc.transit)
			transfer.DeliveredAt = &delivered

			f := findingByType(d.Inspect(transfer), domain.AnomalyExcessiveTransit)
			if tc.flagged && f == nil {
				t.Fatalf("expected an excessive_transit finding")
			}
			if !tc.flagged && f != nil {
				t.Fatalf("unexpected finding: %v", f)
			}
			if f != nil && f.Severity != domain.SeverityWarning {
				t.Errorf("expected warning severity, got %s", f.Severity)
			}
		})
	}
}

func TestInspectMissingSignatures(t *testing.T) {
	d := New(testConfig())

	transfer := deliveredTransfer(domain.PriorityNormal, 500, 500)
	transfer.TransporterSignature = nil
	transfer.ReceiverSignature = nil

	f := findingByType(d.Inspect(transfer), domain.AnomalyMissingSignature)
	if f == nil {
		t.Fatal("expected a missing_signature finding")
	}
	if f.Severity != domain.SeverityCritical {
		t.Errorf("expected critical severity, got %s", f.Severity)
	}
	if f.Message != "Missing signatures from: transporter, receiver" {
		t.Errorf("unexpected message: %q", f.Message)
	}
}

func TestInspectCreatedTransferIgnoresLaterSignatures(t *testing.T) {
	d := New(testConfig())

	transfer := &domain.Transfer{
		ID:              "TXN-DETECT000002",
		MedicineID:      "PARA-500",
		Quantity:        2000,
		FromDistrictID:  "RJ-JP",
		ToDistrictID:    "RJ-KT",
		Priority:        domain.PriorityNormal,
		Status:          domain.StatusCreated,
		CreatedBy:       "DHO-JAIPUR",
		CreatedAt:       time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC),
		SenderSignature: "s-sig",
	}
	if findings := d.Inspect(transfer); len(findings) != 0 {
		t.Fatalf("expected no findings for a freshly created transfer, got %v", findings)
	}
}

func TestPendingAlerts(t *testing.T) {
	d := New(testConfig())
	now := time.Date(2026, 3, 16, 12, 0, 0, 0, time.UTC)

	freshCreated := domain.Transfer{
		ID:        "TXN-FRESH0000001",
		Status:    domain.StatusCreated,
		Priority:  domain.PriorityNormal,
		CreatedAt: now.Add(-2 * time.Hour),
	}
	stalled := domain.Transfer{
		ID:             "TXN-STALL0000001",
		Status:         domain.StatusCreated,
		Priority:       domain.PriorityNormal,
		CreatedAt:      now.Add(-30 * time.Hour),
		FromDistrictID: "RJ-JP",
		ToDistrictID:   "RJ-KT",
	}
	overduePickup := now.Add(-50 * time.Hour)
	overdue := domain.Transfer{
		ID:             "TXN-OVERD0000001",
		Status:         domain.StatusPickedUp,
		Priority:       domain.PriorityNormal,
		CreatedAt:      now.Add(-52 * time.Hour),
		PickupAt:       &overduePickup,
		FromDistrictID: "RJ-JP",
		ToDistrictID:   "RJ-KT",
	}
	inTransitPickup := now.Add(-3 * time.Hour)
	inTransit := domain.Transfer{
		ID:        "TXN-TRANS0000001",
		Status:    domain.StatusPickedUp,
		Priority:  domain.PriorityCritical,
		CreatedAt: now.Add(-4 * time.Hour),
		PickupAt:  &inTransitPickup,
	}

	alerts := d.PendingAlerts([]domain.Transfer{freshCreated, stalled, overdue, inTransit}, now)
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d: %v", len(alerts), alerts)
	}

	if alerts[0].TransferID != stalled.ID || alerts[0].Type != domain.AlertStalledTransfer {
		t.Errorf("expected stalled_transfer alert for %s, got %+v", stalled.ID, alerts[0])
	}
	if alerts[0].Severity != domain.SeverityWarning {
		t.Errorf("expected warning severity for stalled transfer, got %s", alerts[0].Severity)
	}

	if alerts[1].TransferID != overdue.ID || alerts[1].Type != domain.AlertOverdueDelivery {
		t.Errorf("expected overdue_delivery alert for %s, got %+v", overdue.ID, alerts[1])
	}
	if alerts[1].Severity != domain.SeverityCritical {
		t.Errorf("expected critical severity for overdue delivery, got %s", alerts[1].Severity)
	}
	if !strings.Contains(alerts[1].Message, "possible diversion") {
		t.Errorf("unexpected message: %q", alerts[1].Message)
	}
}
