/**
 * @description
 * This file contains the core business logic for the transfer-service. The `Service`
 * struct is the state machine controller for the Transfer Verification Protocol:
 * it validates and applies lifecycle transitions (create -> pickup -> deliver ->
 * verify/dispute), anchors each custody handoff with a signature from the
 * integrity engine, and consults the anomaly detector at delivery time to decide
 * the terminal fork.
 *
 * Key features:
 * - Per-transfer serialization via the store's status-guarded updates: of two
 *   concurrent delivery reports, exactly one commits and the other observes an
 *   InvalidTransitionError.
 * - Event timestamps are truncated to microsecond precision before signing so
 *   signatures recompute identically after a timestamptz round trip.
 * - Publishes lifecycle events to RabbitMQ for asynchronous consumers; a publish
 *   failure is logged and never fails the committed transition.
 *
 * @dependencies
 * - context, errors, fmt, log, strings, time: Standard Go libraries.
 * - github.com/google/uuid: For transfer and event id generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - internal/detector, internal/integrity: Anomaly findings and custody signatures.
 * - pkg/rabbitmq: For lifecycle event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medtrail/transfer-service/internal/detector"
	"github.com/medtrail/transfer-service/internal/domain"
	"github.com/medtrail/transfer-service/internal/integrity"
	"github.com/medtrail/transfer-service/internal/store"
	"github.com/medtrail/transfer-service/pkg/rabbitmq"
)

// InvalidTransitionError reports a lifecycle event that is not valid for the
// transfer's current status. Carrying both lets the caller distinguish
// "already done" from "out of order".
type InvalidTransitionError struct {
	TransferID    string
	CurrentStatus domain.TransferStatus
	Event         string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transfer %s: cannot %s while in '%s' status", e.TransferID, e.Event, e.CurrentStatus)
}

// SummaryCache is an optional read-side cache for listing aggregates. A nil
// cache disables caching entirely; queries then always hit the store.
type SummaryCache interface {
	Get(ctx context.Context) (*domain.TransferSummary, bool)
	Set(ctx context.Context, summary *domain.TransferSummary)
	Invalidate(ctx context.Context)
}

// Service provides the core business logic for transfer verification.
type Service struct {
	repo          store.Repository
	detector      *detector.Detector
	eventProducer rabbitmq.Publisher
	eventExchange string
	summaryCache  SummaryCache

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// NewService creates a new transfer service instance. producer may be nil when
// RabbitMQ is unavailable; events are then dropped with a warning.
func NewService(repo store.Repository, det *detector.Detector, producer rabbitmq.Publisher, eventExchange string) *Service {
	return &Service{
		repo:          repo,
		detector:      det,
		eventProducer: producer,
		eventExchange: eventExchange,
		now:           time.Now,
	}
}

// SetSummaryCache attaches an optional read-side summary cache.
func (s *Service) SetSummaryCache(cache SummaryCache) {
	s.summaryCache = cache
}

// GenerateTransferID produces a fresh opaque transfer id.
func GenerateTransferID() string {
	hexID := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "TXN-" + hexID[:12]
}

// eventTime returns the current time normalized for signing: UTC at microsecond
// precision, matching what PostgreSQL timestamptz preserves.
func (s *Service) eventTime() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// CreateTransfer validates the request, computes the sender signature, and
// persists a new transfer in status created. Rejected inputs leave no record.
func (s *Service) CreateTransfer(ctx context.Context, req domain.CreateTransferRequest) (*domain.Transfer, error) {
	if strings.TrimSpace(req.MedicineID) == "" {
		return nil, &domain.ValidationError{Field: "medicine_id", Reason: "must not be empty"}
	}
	if req.Quantity <= 0 {
		return nil, &domain.ValidationError{Field: "quantity", Reason: "must be a positive integer"}
	}
	if strings.TrimSpace(req.FromDistrictID) == "" {
		return nil, &domain.ValidationError{Field: "from_district_id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(req.ToDistrictID) == "" {
		return nil, &domain.ValidationError{Field: "to_district_id", Reason: "must not be empty"}
	}
	if req.FromDistrictID == req.ToDistrictID {
		return nil, &domain.ValidationError{Field: "to_district_id", Reason: "source and destination districts must be different"}
	}
	if strings.TrimSpace(req.CreatedBy) == "" {
		return nil, &domain.ValidationError{Field: "created_by", Reason: "must not be empty"}
	}
	if req.Priority == "" {
		req.Priority = domain.PriorityNormal
	}
	if !req.Priority.Valid() {
		return nil, &domain.ValidationError{Field: "priority", Reason: "must be one of normal, urgent, critical"}
	}

	createdAt := s.eventTime()
	t := &domain.Transfer{
		ID:             GenerateTransferID(),
		MedicineID:     req.MedicineID,
		Quantity:       req.Quantity,
		FromDistrictID: req.FromDistrictID,
		ToDistrictID:   req.ToDistrictID,
		Priority:       req.Priority,
		Status:         domain.StatusCreated,
		CreatedBy:      req.CreatedBy,
		CreatedAt:      createdAt,
		SenderNotes:    req.SenderNotes,
		UpdatedAt:      createdAt,
	}
	t.SenderSignature = integrity.SenderSignature(t)

	if err := s.repo.CreateTransfer(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create transfer: %w", err)
	}

	log.Printf("level=info component=app operation=create_transfer transfer_id=%s medicine_id=%s quantity=%d from=%s to=%s priority=%s",
		t.ID, t.MedicineID, t.Quantity, t.FromDistrictID, t.ToDistrictID, t.Priority)
	s.publishLifecycleEvent(ctx, t, "created")
	s.invalidateSummary(ctx)
	return t, nil
}

// RecordPickup applies the created -> picked_up transition. The transporter
// signature chains onto the sender signature.
func (s *Service) RecordPickup(ctx context.Context, transferID string, req domain.PickupRequest) (*domain.Transfer, error) {
	if strings.TrimSpace(req.TransporterID) == "" {
		return nil, &domain.ValidationError{Field: "transporter_id", Reason: "must not be empty"}
	}

	current, err := s.repo.GetTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if current.Status != domain.StatusCreated {
		return nil, &InvalidTransitionError{TransferID: transferID, CurrentStatus: current.Status, Event: "pickup"}
	}

	pickupAt := s.eventTime()
	signature := integrity.Sign(current.SenderSignature, req.TransporterID, transferID, pickupAt)

	updated, err := s.repo.ApplyPickup(ctx, store.PickupParams{
		TransferID:           transferID,
		TransporterID:        req.TransporterID,
		PickupAt:             pickupAt,
		TransporterSignature: signature,
		PickupLocationLat:    req.PickupLocationLat,
		PickupLocationLng:    req.PickupLocationLng,
	})
	if err != nil {
		return nil, s.mapGuardError(ctx, err, transferID, "pickup")
	}

	log.Printf("level=info component=app operation=record_pickup transfer_id=%s transporter_id=%s", transferID, req.TransporterID)
	s.publishLifecycleEvent(ctx, updated, "picked_up")
	s.invalidateSummary(ctx)
	return updated, nil
}

// RecordDelivery applies the picked_up -> verified|disputed transition. The
// receiver signature chains onto the transporter signature; the anomaly
// detector decides the terminal fork. A critical finding disputes the transfer;
// otherwise the verification hash over the completed chain is persisted.
func (s *Service) RecordDelivery(ctx context.Context, transferID string, req domain.DeliveryRequest) (*domain.Transfer, []domain.Anomaly, error) {
	if strings.TrimSpace(req.ReceiverID) == "" {
		return nil, nil, &domain.ValidationError{Field: "receiver_id", Reason: "must not be empty"}
	}
	if req.ReceivedQuantity < 0 {
		return nil, nil, &domain.ValidationError{Field: "received_quantity", Reason: "must not be negative"}
	}

	current, err := s.repo.GetTransfer(ctx, transferID)
	if err != nil {
		return nil, nil, err
	}
	if current.Status != domain.StatusPickedUp {
		return nil, nil, &InvalidTransitionError{TransferID: transferID, CurrentStatus: current.Status, Event: "deliver"}
	}
	if current.TransporterSignature == nil || *current.TransporterSignature == "" {
		// Guarded transitions make this unreachable unless the stored record was
		// corrupted; refuse rather than sign onto a broken chain.
		return nil, nil, &integrity.ChainError{TransferID: transferID, Reason: "transporter signature missing"}
	}

	deliveredAt := s.eventTime()
	receiverSig := integrity.Sign(*current.TransporterSignature, req.ReceiverID, transferID, deliveredAt, strconv.FormatInt(req.ReceivedQuantity, 10))

	// Build the delivered snapshot the detector inspects. Nothing is persisted
	// until the outcome is decided, so the whole transition commits atomically.
	candidate := *current
	candidate.Status = domain.StatusDelivered
	candidate.ReceiverID = &req.ReceiverID
	candidate.DeliveredAt = &deliveredAt
	candidate.ReceiverSignature = &receiverSig
	candidate.ReceivedQuantity = &req.ReceivedQuantity
	candidate.ReceiverNotes = req.ReceiverNotes

	findings := s.detector.Inspect(&candidate)
	dominant := dominantCritical(findings)

	params := store.DeliveryParams{
		TransferID:          transferID,
		ReceiverID:          req.ReceiverID,
		DeliveredAt:         deliveredAt,
		ReceiverSignature:   receiverSig,
		ReceivedQuantity:    req.ReceivedQuantity,
		ReceiverNotes:       req.ReceiverNotes,
		DeliveryLocationLat: req.DeliveryLocationLat,
		DeliveryLocationLng: req.DeliveryLocationLng,
	}
	if dominant != nil {
		discrepancyType := string(dominant.Type)
		notes := discrepancyNotes(req.ReceiverNotes, findings)
		params.Status = domain.StatusDisputed
		params.HasDiscrepancy = true
		params.DiscrepancyType = &discrepancyType
		params.DiscrepancyNotes = &notes
	} else {
		hash := integrity.VerificationHash(current.SenderSignature, *current.TransporterSignature, receiverSig)
		verifiedAt := deliveredAt
		params.Status = domain.StatusVerified
		params.IsVerified = true
		params.VerificationHash = &hash
		params.VerifiedAt = &verifiedAt
	}

	updated, err := s.repo.ApplyDelivery(ctx, params)
	if err != nil {
		return nil, nil, s.mapGuardError(ctx, err, transferID, "deliver")
	}

	log.Printf("level=info component=app operation=record_delivery transfer_id=%s receiver_id=%s received_quantity=%d outcome=%s findings=%d",
		transferID, req.ReceiverID, req.ReceivedQuantity, updated.Status, len(findings))
	s.publishLifecycleEvent(ctx, updated, string(updated.Status))
	s.invalidateSummary(ctx)
	return updated, findings, nil
}

// GetTransfer returns the current snapshot of a transfer.
func (s *Service) GetTransfer(ctx context.Context, transferID string) (*domain.Transfer, error) {
	return s.repo.GetTransfer(ctx, transferID)
}

// mapGuardError translates a store guard miss into the caller-facing error. The
// losing side of a concurrent transition lands here: the guarded update matched
// nothing, so re-read the record to report its current status.
func (s *Service) mapGuardError(ctx context.Context, err error, transferID, event string) error {
	if !errors.Is(err, store.ErrStatusConflict) {
		return err
	}
	current, readErr := s.repo.GetTransfer(ctx, transferID)
	if readErr != nil {
		return readErr
	}
	return &InvalidTransitionError{TransferID: transferID, CurrentStatus: current.Status, Event: event}
}

// dominantCritical returns the first critical finding, or nil. Findings are
// already ordered by check priority, so the first critical is the dominant one.
func dominantCritical(findings []domain.Anomaly) *domain.Anomaly {
	for i := range findings {
		if findings[i].Severity == domain.SeverityCritical {
			return &findings[i]
		}
	}
	return nil
}

// discrepancyNotes prefers the receiver's own account of the problem and falls
// back to the joined critical finding messages.
func discrepancyNotes(receiverNotes *string, findings []domain.Anomaly) string {
	if receiverNotes != nil && strings.TrimSpace(*receiverNotes) != "" {
		return *receiverNotes
	}
	var parts []string
	for _, f := range findings {
		if f.Severity == domain.SeverityCritical {
			parts = append(parts, f.Message)
		}
	}
	return strings.Join(parts, "; ")
}

func (s *Service) publishLifecycleEvent(ctx context.Context, t *domain.Transfer, eventType string) {
	if s.eventProducer == nil {
		return
	}
	event := domain.TransferLifecycleEvent{
		EventID:        uuid.New().String(),
		EventType:      eventType,
		TransferID:     t.ID,
		Status:         t.Status,
		MedicineID:     t.MedicineID,
		Quantity:       t.Quantity,
		FromDistrictID: t.FromDistrictID,
		ToDistrictID:   t.ToDistrictID,
		OccurredAt:     s.now().UTC(),
	}
	if err := s.eventProducer.Publish(ctx, s.eventExchange, "transfer."+eventType, event); err != nil {
		log.Printf("level=warn component=app msg=\"lifecycle event publish failed\" transfer_id=%s event_type=%s err=%v", t.ID, eventType, err)
	}
}

func (s *Service) invalidateSummary(ctx context.Context) {
	if s.summaryCache != nil {
		s.summaryCache.Invalidate(ctx)
	}
}
