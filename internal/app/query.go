/**
 * @description
 * This file contains the read side of the transfer-service: filtered listings
 * with aggregate summaries, the pending worklist with stalled/overdue alerts,
 * the anomalous-transfer listing, and on-demand chain re-verification. Every
 * operation here is read-only; none blocks writers. The listing summary may be
 * served from an optional cache with a short, configured TTL, which is the
 * documented staleness bound for aggregates.
 */

package app

import (
	"context"
	"fmt"
	"log"

	"github.com/medtrail/transfer-service/internal/domain"
	"github.com/medtrail/transfer-service/internal/integrity"
)

// TransferListResult is the response for the filtered transfer listing.
type TransferListResult struct {
	Transfers []domain.Transfer      `json:"transfers"`
	Count     int                    `json:"count"`
	Summary   domain.TransferSummary `json:"summary"`
}

// PendingListResult is the response for the pending worklist.
type PendingListResult struct {
	PendingTransfers []domain.Transfer     `json:"pending_transfers"`
	Count            int                   `json:"count"`
	Alerts           []domain.PendingAlert `json:"alerts"`
	AlertCount       int                   `json:"alert_count"`
}

// AnomalousTransfer pairs a disputed transfer with its recomputed findings.
type AnomalousTransfer struct {
	Transfer  domain.Transfer  `json:"transfer"`
	Anomalies []domain.Anomaly `json:"anomalies"`
}

// AnomalousListResult is the response for the anomalous-transfer listing.
type AnomalousListResult struct {
	AnomalousTransfers []AnomalousTransfer `json:"anomalous_transfers"`
	Count              int                 `json:"count"`
}

// TransferDetail pairs a transfer snapshot with its verification report.
type TransferDetail struct {
	Transfer     domain.Transfer           `json:"transfer"`
	Verification domain.VerificationReport `json:"verification"`
}

// ListTransfers returns transfers matching the filter plus aggregate counts.
func (s *Service) ListTransfers(ctx context.Context, opts domain.TransferListOptions) (*TransferListResult, error) {
	transfers, err := s.repo.ListTransfers(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}

	summary, err := s.transferSummary(ctx)
	if err != nil {
		return nil, err
	}

	if transfers == nil {
		transfers = []domain.Transfer{}
	}
	return &TransferListResult{
		Transfers: transfers,
		Count:     len(transfers),
		Summary:   *summary,
	}, nil
}

// transferSummary returns the aggregate counts, served from the cache when one
// is attached and fresh.
func (s *Service) transferSummary(ctx context.Context) (*domain.TransferSummary, error) {
	if s.summaryCache != nil {
		if cached, ok := s.summaryCache.Get(ctx); ok {
			return cached, nil
		}
	}

	byStatus, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count transfers by status: %w", err)
	}
	withDiscrepancies, err := s.repo.CountWithDiscrepancy(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count discrepancies: %w", err)
	}

	summary := &domain.TransferSummary{
		ByStatus:          byStatus,
		WithDiscrepancies: withDiscrepancies,
	}
	if s.summaryCache != nil {
		s.summaryCache.Set(ctx, summary)
	}
	return summary, nil
}

// ListPending returns transfers still requiring action, oldest first, plus
// deadline alerts computed from stored timestamps against the current time.
func (s *Service) ListPending(ctx context.Context) (*PendingListResult, error) {
	transfers, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transfers: %w", err)
	}

	alerts := s.detector.PendingAlerts(transfers, s.now().UTC())
	if transfers == nil {
		transfers = []domain.Transfer{}
	}
	if alerts == nil {
		alerts = []domain.PendingAlert{}
	}
	return &PendingListResult{
		PendingTransfers: transfers,
		Count:            len(transfers),
		Alerts:           alerts,
		AlertCount:       len(alerts),
	}, nil
}

// ListAnomalous returns every transfer with something to report: disputed or
// discrepancy-flagged transfers, and delivery-complete transfers whose
// recomputed findings are non-empty. A transfer verified despite a timing
// warning still appears here; a clean verified transfer does not.
func (s *Service) ListAnomalous(ctx context.Context) (*AnomalousListResult, error) {
	transfers, err := s.repo.ListAnomalous(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list anomalous transfers: %w", err)
	}

	results := make([]AnomalousTransfer, 0, len(transfers))
	for i := range transfers {
		findings := s.detector.Inspect(&transfers[i])
		if !transfers[i].HasDiscrepancy && len(findings) == 0 {
			continue
		}
		if findings == nil {
			findings = []domain.Anomaly{}
		}
		results = append(results, AnomalousTransfer{
			Transfer:  transfers[i],
			Anomalies: findings,
		})
	}
	return &AnomalousListResult{
		AnomalousTransfers: results,
		Count:              len(results),
	}, nil
}

// GetTransferDetail returns a transfer snapshot together with a freshly
// recomputed verification report.
func (s *Service) GetTransferDetail(ctx context.Context, transferID string) (*TransferDetail, error) {
	t, err := s.repo.GetTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	return &TransferDetail{
		Transfer:     *t,
		Verification: s.buildVerificationReport(t),
	}, nil
}

// VerifyTransfer re-verifies a transfer's chain of custody from stored fields.
func (s *Service) VerifyTransfer(ctx context.Context, transferID string) (*domain.VerificationReport, error) {
	t, err := s.repo.GetTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	report := s.buildVerificationReport(t)
	return &report, nil
}

// buildVerificationReport inspects signatures, recomputes the chain, and runs
// the detector. The report is valid only when the chain is complete, every
// stored signature reproduces exactly, and no critical finding fired. A chain
// break is flagged in the report and never repaired.
func (s *Service) buildVerificationReport(t *domain.Transfer) domain.VerificationReport {
	signatures := map[string]bool{
		"sender":      t.SenderSignature != "",
		"transporter": t.TransporterSignature != nil && *t.TransporterSignature != "",
		"receiver":    t.ReceiverSignature != nil && *t.ReceiverSignature != "",
	}
	chainComplete := signatures["sender"] && signatures["transporter"] && signatures["receiver"]

	report := domain.VerificationReport{
		TransferID: t.ID,
		Signatures: signatures,
		Status:     t.Status,
	}

	if err := integrity.VerifyChain(t); err != nil {
		msg := err.Error()
		report.ChainError = &msg
		log.Printf("level=warn component=app msg=\"signature chain broken\" transfer_id=%s err=%v", t.ID, err)
	}
	report.ChainComplete = chainComplete

	findings := s.detector.Inspect(t)
	if findings == nil {
		findings = []domain.Anomaly{}
	}
	report.Anomalies = findings

	if chainComplete && report.ChainError == nil {
		report.VerificationHash = integrity.VerificationHash(t.SenderSignature, *t.TransporterSignature, *t.ReceiverSignature)
	}
	report.IsValid = chainComplete && report.ChainError == nil && dominantCritical(findings) == nil
	return report
}
