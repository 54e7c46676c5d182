/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the necessary SQL queries to interact with the `transfers` table.
 *
 * Lifecycle transitions are single guarded UPDATE statements with a status
 * precondition in the WHERE clause. Exactly one of two concurrent conflicting
 * events can match the row; the loser sees zero rows and gets ErrStatusConflict.
 * No explicit locking or transactions are needed because every transition writes
 * one row once.
 *
 * @dependencies
 * - context, errors, fmt, strings: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medtrail/transfer-service/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const transferColumns = `
	id, medicine_id, quantity, from_district_id, to_district_id, priority, status,
	created_by, created_at, sender_signature, sender_notes,
	transporter_id, pickup_at, transporter_signature, pickup_location_lat, pickup_location_lng,
	receiver_id, delivered_at, receiver_signature, received_quantity, receiver_notes,
	delivery_location_lat, delivery_location_lng,
	verification_hash, is_verified, has_discrepancy, discrepancy_type, discrepancy_notes,
	verified_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransfer(row rowScanner) (*domain.Transfer, error) {
	var t domain.Transfer
	err := row.Scan(
		&t.ID, &t.MedicineID, &t.Quantity, &t.FromDistrictID, &t.ToDistrictID, &t.Priority, &t.Status,
		&t.CreatedBy, &t.CreatedAt, &t.SenderSignature, &t.SenderNotes,
		&t.TransporterID, &t.PickupAt, &t.TransporterSignature, &t.PickupLocationLat, &t.PickupLocationLng,
		&t.ReceiverID, &t.DeliveredAt, &t.ReceiverSignature, &t.ReceivedQuantity, &t.ReceiverNotes,
		&t.DeliveryLocationLat, &t.DeliveryLocationLng,
		&t.VerificationHash, &t.IsVerified, &t.HasDiscrepancy, &t.DiscrepancyType, &t.DiscrepancyNotes,
		&t.VerifiedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTransfer inserts a new transfer row in status created.
func (r *PostgresRepository) CreateTransfer(ctx context.Context, t *domain.Transfer) error {
	query := `
		INSERT INTO transfers (
			id, medicine_id, quantity, from_district_id, to_district_id, priority, status,
			created_by, created_at, sender_signature, sender_notes, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $9)`
	_, err := r.db.Exec(ctx, query,
		t.ID, t.MedicineID, t.Quantity, t.FromDistrictID, t.ToDistrictID, t.Priority, t.Status,
		t.CreatedBy, t.CreatedAt, t.SenderSignature, t.SenderNotes,
	)
	return err
}

// GetTransfer retrieves a transfer by its id.
func (r *PostgresRepository) GetTransfer(ctx context.Context, transferID string) (*domain.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`
	t, err := scanTransfer(r.db.QueryRow(ctx, query, transferID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransferNotFound
		}
		return nil, err
	}
	return t, nil
}

// ApplyPickup performs the created -> picked_up transition as a guarded update.
func (r *PostgresRepository) ApplyPickup(ctx context.Context, p PickupParams) (*domain.Transfer, error) {
	query := `
		UPDATE transfers SET
			status = $2,
			transporter_id = $3,
			pickup_at = $4,
			transporter_signature = $5,
			pickup_location_lat = $6,
			pickup_location_lng = $7,
			updated_at = now()
		WHERE id = $1 AND status = $8
		RETURNING ` + transferColumns
	t, err := scanTransfer(r.db.QueryRow(ctx, query,
		p.TransferID, domain.StatusPickedUp,
		p.TransporterID, p.PickupAt, p.TransporterSignature,
		p.PickupLocationLat, p.PickupLocationLng,
		domain.StatusCreated,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyGuardMiss(ctx, p.TransferID)
		}
		return nil, err
	}
	return t, nil
}

// ApplyDelivery performs the picked_up -> verified|disputed transition as a guarded update.
func (r *PostgresRepository) ApplyDelivery(ctx context.Context, p DeliveryParams) (*domain.Transfer, error) {
	query := `
		UPDATE transfers SET
			status = $2,
			receiver_id = $3,
			delivered_at = $4,
			receiver_signature = $5,
			received_quantity = $6,
			receiver_notes = $7,
			delivery_location_lat = $8,
			delivery_location_lng = $9,
			verification_hash = $10,
			is_verified = $11,
			has_discrepancy = $12,
			discrepancy_type = $13,
			discrepancy_notes = $14,
			verified_at = $15,
			updated_at = now()
		WHERE id = $1 AND status = $16
		RETURNING ` + transferColumns
	t, err := scanTransfer(r.db.QueryRow(ctx, query,
		p.TransferID, p.Status,
		p.ReceiverID, p.DeliveredAt, p.ReceiverSignature, p.ReceivedQuantity, p.ReceiverNotes,
		p.DeliveryLocationLat, p.DeliveryLocationLng,
		p.VerificationHash, p.IsVerified, p.HasDiscrepancy, p.DiscrepancyType, p.DiscrepancyNotes, p.VerifiedAt,
		domain.StatusPickedUp,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyGuardMiss(ctx, p.TransferID)
		}
		return nil, err
	}
	return t, nil
}

// classifyGuardMiss distinguishes an unknown id from a status conflict after a
// guarded update matched zero rows.
func (r *PostgresRepository) classifyGuardMiss(ctx context.Context, transferID string) error {
	var status string
	err := r.db.QueryRow(ctx, `SELECT status FROM transfers WHERE id = $1`, transferID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTransferNotFound
		}
		return err
	}
	return ErrStatusConflict
}

// BuildListTransfersQuery assembles the filtered listing query. Exposed at
// package level so the filter assembly is testable without a database.
func BuildListTransfersQuery(opts domain.TransferListOptions) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	if opts.Status != nil {
		args = append(args, *opts.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if opts.HasDiscrepancy != nil {
		args = append(args, *opts.HasDiscrepancy)
		conditions = append(conditions, fmt.Sprintf("has_discrepancy = $%d", len(args)))
	}
	if opts.FromDistrictID != "" {
		args = append(args, opts.FromDistrictID)
		conditions = append(conditions, fmt.Sprintf("from_district_id = $%d", len(args)))
	}
	if opts.ToDistrictID != "" {
		args = append(args, opts.ToDistrictID)
		conditions = append(conditions, fmt.Sprintf("to_district_id = $%d", len(args)))
	}

	query := `SELECT ` + transferColumns + ` FROM transfers`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args
}

// ListTransfers returns transfers matching the filter, newest first.
func (r *PostgresRepository) ListTransfers(ctx context.Context, opts domain.TransferListOptions) ([]domain.Transfer, error) {
	query, args := BuildListTransfersQuery(opts)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransfers(rows)
}

// ListPending returns transfers that still require action, oldest first.
func (r *PostgresRepository) ListPending(ctx context.Context) ([]domain.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers
		WHERE status = ANY($1)
		ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, []string{string(domain.StatusCreated), string(domain.StatusPickedUp)})
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransfers(rows)
}

// ListAnomalous returns the candidate rows for the anomaly listing, newest
// first: every transfer flagged with a discrepancy plus every transfer whose
// delivery has completed. Terminal rows can carry warning findings without a
// discrepancy flag, so the query service re-inspects each candidate and keeps
// only those with findings.
func (r *PostgresRepository) ListAnomalous(ctx context.Context) ([]domain.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers
		WHERE has_discrepancy = TRUE OR status = ANY($1)
		ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, []string{
		string(domain.StatusDelivered),
		string(domain.StatusVerified),
		string(domain.StatusDisputed),
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransfers(rows)
}

func collectTransfers(rows pgx.Rows) ([]domain.Transfer, error) {
	var transfers []domain.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, *t)
	}
	return transfers, rows.Err()
}

// CountByStatus returns the number of transfers in each status.
func (r *PostgresRepository) CountByStatus(ctx context.Context) (map[domain.TransferStatus]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM transfers GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.TransferStatus]int64)
	for rows.Next() {
		var (
			status domain.TransferStatus
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// CountWithDiscrepancy returns the number of disputed transfers.
func (r *PostgresRepository) CountWithDiscrepancy(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM transfers WHERE has_discrepancy = TRUE`).Scan(&count)
	return count, err
}
