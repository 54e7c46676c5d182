package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/medtrail/transfer-service/internal/domain"
)

// recordingCache is a SummaryCache stub that records interactions.
type recordingCache struct {
	stored      *domain.TransferSummary
	gets        int
	sets        int
	invalidates int
}

func (c *recordingCache) Get(_ context.Context) (*domain.TransferSummary, bool) {
	c.gets++
	if c.stored == nil {
		return nil, false
	}
	return c.stored, true
}

func (c *recordingCache) Set(_ context.Context, summary *domain.TransferSummary) {
	c.sets++
	c.stored = summary
}

func (c *recordingCache) Invalidate(_ context.Context) {
	c.invalidates++
	c.stored = nil
}

func TestCreatedTransferIsPendingNotAnomalous(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	created, err := svc.CreateTransfer(ctx, createTestRequest())
	if err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}

	pending, err := svc.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if pending.Count != 1 || pending.PendingTransfers[0].ID != created.ID {
		t.Fatalf("expected the created transfer in the pending worklist, got %+v", pending)
	}
	if pending.AlertCount != 0 {
		t.Errorf("fresh transfer must not raise alerts, got %v", pending.Alerts)
	}

	anomalous, err := svc.ListAnomalous(ctx)
	if err != nil {
		t.Fatalf("ListAnomalous failed: %v", err)
	}
	if anomalous.Count != 0 {
		t.Errorf("created transfer must not appear in the anomalous listing, got %+v", anomalous)
	}
}

func TestDisputedTransferListedWithFindings(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	created, err := svc.CreateTransfer(ctx, createTestRequest())
	if err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}
	if _, err := svc.RecordPickup(ctx, created.ID, domain.PickupRequest{TransporterID: "V-001"}); err != nil {
		t.Fatalf("RecordPickup failed: %v", err)
	}
	if _, _, err := svc.RecordDelivery(ctx, created.ID, domain.DeliveryRequest{ReceiverID: "CMO-KOTA", ReceivedQuantity: 1800}); err != nil {
		t.Fatalf("RecordDelivery failed: %v", err)
	}

	anomalous, err := svc.ListAnomalous(ctx)
	if err != nil {
		t.Fatalf("ListAnomalous failed: %v", err)
	}
	if anomalous.Count != 1 {
		t.Fatalf("expected one anomalous transfer, got %d", anomalous.Count)
	}
	entry := anomalous.AnomalousTransfers[0]
	if entry.Transfer.ID != created.ID {
		t.Errorf("unexpected transfer id %s", entry.Transfer.ID)
	}
	if len(entry.Anomalies) == 0 || entry.Anomalies[0].Type != domain.AnomalyQuantityMismatch {
		t.Errorf("expected a recomputed quantity_mismatch finding, got %v", entry.Anomalies)
	}

	delivered, err := svc.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if delivered.Count != 0 {
		t.Errorf("disputed transfer must leave the pending worklist, got %+v", delivered.PendingTransfers)
	}
}

func TestVerifiedWithWarningAppearsInAnomalousListing(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	clock := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	// Urgent priority carries a 24h transit deadline; deliver far past it with
	// matching quantities so the transfer verifies with a warning finding.
	slow, err := svc.CreateTransfer(ctx, createTestRequest())
	if err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}
	if _, err := svc.RecordPickup(ctx, slow.ID, domain.PickupRequest{TransporterID: "V-001"}); err != nil {
		t.Fatalf("RecordPickup failed: %v", err)
	}
	clock = clock.Add(100 * time.Hour)
	delivered, findings, err := svc.RecordDelivery(ctx, slow.ID, domain.DeliveryRequest{ReceiverID: "CMO-KOTA", ReceivedQuantity: 2000})
	if err != nil {
		t.Fatalf("RecordDelivery failed: %v", err)
	}
	if delivered.Status != domain.StatusVerified {
		t.Fatalf("warnings must not block verification, got %s", delivered.Status)
	}
	if len(findings) != 1 || findings[0].Type != domain.AnomalyExcessiveTransit {
		t.Fatalf("expected a lone excessive_transit finding, got %v", findings)
	}

	// A clean transfer delivered immediately must stay out of the listing.
	fast, err := svc.CreateTransfer(ctx, createTestRequest())
	if err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}
	if _, err := svc.RecordPickup(ctx, fast.ID, domain.PickupRequest{TransporterID: "V-002"}); err != nil {
		t.Fatalf("RecordPickup failed: %v", err)
	}
	if _, _, err := svc.RecordDelivery(ctx, fast.ID, domain.DeliveryRequest{ReceiverID: "CMO-KOTA", ReceivedQuantity: 2000}); err != nil {
		t.Fatalf("RecordDelivery failed: %v", err)
	}

	anomalous, err := svc.ListAnomalous(ctx)
	if err != nil {
		t.Fatalf("ListAnomalous failed: %v", err)
	}
	if anomalous.Count != 1 {
		t.Fatalf("expected only the warning-flagged transfer, got %d entries", anomalous.Count)
	}
	entry := anomalous.AnomalousTransfers[0]
	if entry.Transfer.ID != slow.ID {
		t.Errorf("expected transfer %s, got %s", slow.ID, entry.Transfer.ID)
	}
	if entry.Transfer.HasDiscrepancy {
		t.Error("warning-only transfer must not be discrepancy-flagged")
	}
	if len(entry.Anomalies) != 1 || entry.Anomalies[0].Type != domain.AnomalyExcessiveTransit {
		t.Errorf("expected a recomputed excessive_transit finding, got %v", entry.Anomalies)
	}
	if entry.Anomalies[0].Severity != domain.SeverityWarning {
		t.Errorf("expected warning severity, got %s", entry.Anomalies[0].Severity)
	}
}

func TestListTransfersSummaryAndFilters(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	first, err := svc.CreateTransfer(ctx, createTestRequest())
	if err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}
	if _, err := svc.RecordPickup(ctx, first.ID, domain.PickupRequest{TransporterID: "V-001"}); err != nil {
		t.Fatalf("RecordPickup failed: %v", err)
	}
	if _, _, err := svc.RecordDelivery(ctx, first.ID, domain.DeliveryRequest{ReceiverID: "CMO-KOTA", ReceivedQuantity: 2000}); err != nil {
		t.Fatalf("RecordDelivery failed: %v", err)
	}
	if _, err := svc.CreateTransfer(ctx, createTestRequest()); err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}

	all, err := svc.ListTransfers(ctx, domain.TransferListOptions{})
	if err != nil {
		t.Fatalf("ListTransfers failed: %v", err)
	}
	if all.Count != 2 {
		t.Fatalf("expected 2 transfers, got %d", all.Count)
	}
	if all.Summary.ByStatus[domain.StatusVerified] != 1 || all.Summary.ByStatus[domain.StatusCreated] != 1 {
		t.Errorf("unexpected summary: %+v", all.Summary)
	}
	if all.Summary.WithDiscrepancies != 0 {
		t.Errorf("expected no discrepancies, got %d", all.Summary.WithDiscrepancies)
	}

	status := domain.StatusVerified
	filtered, err := svc.ListTransfers(ctx, domain.TransferListOptions{Status: &status})
	if err != nil {
		t.Fatalf("ListTransfers failed: %v", err)
	}
	if filtered.Count != 1 || filtered.Transfers[0].ID != first.ID {
		t.Fatalf("expected only the verified transfer, got %+v", filtered.Transfers)
	}
}

func TestSummaryCacheServesAndInvalidates(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	cache := &recordingCache{}
	svc.SetSummaryCache(cache)
	ctx := context.Background()

	if _, err := svc.CreateTransfer(ctx, createTestRequest()); err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}
	if cache.invalidates != 1 {
		t.Fatalf("mutation must invalidate the cache, got %d invalidations", cache.invalidates)
	}

	if _, err := svc.ListTransfers(ctx, domain.TransferListOptions{}); err != nil {
		t.Fatalf("ListTransfers failed: %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("cache miss must populate the cache, got %d sets", cache.sets)
	}

	second, err := svc.ListTransfers(ctx, domain.TransferListOptions{})
	if err != nil {
		t.Fatalf("ListTransfers failed: %v", err)
	}
	if cache.sets != 1 {
		t.Errorf("cache hit must not repopulate, got %d sets", cache.sets)
	}
	if second.Summary.ByStatus[domain.StatusCreated] != 1 {
		t.Errorf("cached summary mismatch: %+v", second.Summary)
	}
}

func TestVerifyTransferIntactChain(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	created, err := svc.CreateTransfer(ctx, createTestRequest())
	if err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}
	if _, err := svc.RecordPickup(ctx, created.ID, domain.PickupRequest{TransporterID: "V-001"}); err != nil {
		t.Fatalf("RecordPickup failed: %v", err)
	}
	if _, _, err := svc.RecordDelivery(ctx, created.ID, domain.DeliveryRequest{ReceiverID: "CMO-KOTA", ReceivedQuantity: 2000}); err != nil {
		t.Fatalf("RecordDelivery failed: %v", err)
	}

	report, err := svc.VerifyTransfer(ctx, created.ID)
	if err != nil {
		t.Fatalf("VerifyTransfer failed: %v", err)
	}
	if !report.IsValid || !report.ChainComplete || report.ChainError != nil {
		t.Fatalf("expected a valid report, got %+v", report)
	}
	for party, present := range report.Signatures {
		if !present {
			t.Errorf("expected %s signature to be present", party)
		}
	}
	if report.VerificationHash == "" {
		t.Error("expected a recomputed verification hash")
	}
	if report.Status != domain.StatusVerified {
		t.Errorf("expected verified status, got %s", report.Status)
	}
}

func TestVerifyTransferFlagsTamperedSignature(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.CreateTransfer(ctx, createTestRequest())
	if err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}
	if _, err := svc.RecordPickup(ctx, created.ID, domain.PickupRequest{TransporterID: "V-001"}); err != nil {
		t.Fatalf("RecordPickup failed: %v", err)
	}
	if _, _, err := svc.RecordDelivery(ctx, created.ID, domain.DeliveryRequest{ReceiverID: "CMO-KOTA", ReceivedQuantity: 2000}); err != nil {
		t.Fatalf("RecordDelivery failed: %v", err)
	}

	// Corrupt the stored transporter signature behind the service's back.
	repo.mu.Lock()
	tampered := "0000000000000000000000000000000000000000000000000000000000000000"
	repo.transfers[created.ID].TransporterSignature = &tampered
	repo.mu.Unlock()

	report, err := svc.VerifyTransfer(ctx, created.ID)
	if err != nil {
		t.Fatalf("VerifyTransfer failed: %v", err)
	}
	if report.IsValid {
		t.Fatal("tampered chain must not verify")
	}
	if report.ChainError == nil || !strings.Contains(*report.ChainError, "transporter signature mismatch") {
		t.Errorf("expected a transporter mismatch chain error, got %v", report.ChainError)
	}
	if report.VerificationHash != "" {
		t.Error("broken chain must not produce a verification hash")
	}
}
