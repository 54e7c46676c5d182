/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the transfer-service. By defining an interface,
 * we decouple the state machine and query logic from the specific database
 * implementation (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * The lifecycle mutations (ApplyPickup, ApplyDelivery) are status-guarded
 * compare-and-swap operations: the implementation must only apply the update when
 * the row is still in the expected prior status, and report ErrStatusConflict
 * otherwise. That guarantee is what serializes concurrent events per transfer.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/medtrail/transfer-service/internal/domain"
)

var (
	// ErrTransferNotFound indicates the transfer id does not exist.
	ErrTransferNotFound = errors.New("transfer not found")
	// ErrStatusConflict indicates a guarded update found the transfer in a
	// different status than the transition requires. The caller re-reads the
	// record to report the current status.
	ErrStatusConflict = errors.New("transfer status conflict")
)

// PickupParams carries every field set by the pickup event. All fields commit
// atomically or not at all.
type PickupParams struct {
	TransferID           string
	TransporterID        string
	PickupAt             time.Time
	TransporterSignature string
	PickupLocationLat    *float64
	PickupLocationLng    *float64
}

// DeliveryParams carries every field set by the delivery event, including the
// terminal outcome the controller decided. All fields commit atomically.
type DeliveryParams struct {
	TransferID          string
	ReceiverID          string
	DeliveredAt         time.Time
	ReceiverSignature   string
	ReceivedQuantity    int64
	ReceiverNotes       *string
	DeliveryLocationLat *float64
	DeliveryLocationLng *float64

	Status           domain.TransferStatus // verified or disputed
	VerificationHash *string
	IsVerified       bool
	HasDiscrepancy   bool
	DiscrepancyType  *string
	DiscrepancyNotes *string
	VerifiedAt       *time.Time
}

// Repository defines the set of methods for interacting with the transfer store.
type Repository interface {
	// CreateTransfer persists a new transfer in status created.
	CreateTransfer(ctx context.Context, t *domain.Transfer) error
	// GetTransfer returns the current snapshot or ErrTransferNotFound.
	GetTransfer(ctx context.Context, transferID string) (*domain.Transfer, error)

	// ApplyPickup moves created -> picked_up, guarded on the prior status.
	// Returns the updated row, ErrTransferNotFound, or ErrStatusConflict.
	ApplyPickup(ctx context.Context, p PickupParams) (*domain.Transfer, error)
	// ApplyDelivery moves picked_up -> verified|disputed, guarded on the prior
	// status. Returns the updated row, ErrTransferNotFound, or ErrStatusConflict.
	ApplyDelivery(ctx context.Context, p DeliveryParams) (*domain.Transfer, error)

	// Query-side reads. None of these take locks or block writers.
	ListTransfers(ctx context.Context, opts domain.TransferListOptions) ([]domain.Transfer, error)
	ListPending(ctx context.Context) ([]domain.Transfer, error)
	// ListAnomalous returns anomaly-listing candidates: discrepancy-flagged
	// transfers plus all delivery-complete transfers. The caller filters out
	// candidates with no findings.
	ListAnomalous(ctx context.Context) ([]domain.Transfer, error)
	CountByStatus(ctx context.Context) (map[domain.TransferStatus]int64, error)
	CountWithDiscrepancy(ctx context.Context) (int64, error)
}
