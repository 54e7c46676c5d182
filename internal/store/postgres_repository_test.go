package store

import (
	"strings"
	"testing"

	"github.com/medtrail/transfer-service/internal/domain"
)

func TestBuildListTransfersQuery_NoFilters(t *testing.T) {
	query, args := BuildListTransfersQuery(domain.TransferListOptions{})

	if strings.Contains(query, "WHERE") {
		t.Errorf("expected no WHERE clause, got %q", query)
	}
	if !strings.Contains(query, "ORDER BY created_at DESC") {
		t.Errorf("expected newest-first ordering, got %q", query)
	}
	if strings.Contains(query, "LIMIT") {
		t.Errorf("expected no LIMIT without a limit option, got %q", query)
	}
	if len(args) != 0 {
		t.Errorf("expected no args, got %v", args)
	}
}

func TestBuildListTransfersQuery_AllFilters(t *testing.T) {
	status := domain.StatusDisputed
	hasDiscrepancy := true
	query, args := BuildListTransfersQuery(domain.TransferListOptions{
		Status:         &status,
		HasDiscrepancy: &hasDiscrepancy,
		FromDistrictID: "RJ-JP",
		ToDistrictID:   "RJ-KT",
		Limit:          25,
	})

	wantClauses := []string{
		"status = $1",
		"has_discrepancy = $2",
		"from_district_id = $3",
		"to_district_id = $4",
		"LIMIT $5",
	}
	for _, clause := range wantClauses {
		if !strings.Contains(query, clause) {
			t.Errorf("expected query to contain %q, got %q", clause, query)
		}
	}
	if len(args) != 5 {
		t.Fatalf("expected 5 args, got %d: %v", len(args), args)
	}
	if args[0] != status || args[1] != hasDiscrepancy || args[2] != "RJ-JP" || args[3] != "RJ-KT" || args[4] != 25 {
		t.Errorf("unexpected arg values: %v", args)
	}
}

func TestBuildListTransfersQuery_PlaceholdersFollowPresentFilters(t *testing.T) {
	query, args := BuildListTransfersQuery(domain.TransferListOptions{
		ToDistrictID: "RJ-KT",
		Limit:        10,
	})

	if !strings.Contains(query, "to_district_id = $1") {
		t.Errorf("expected the only filter to take placeholder $1, got %q", query)
	}
	if !strings.Contains(query, "LIMIT $2") {
		t.Errorf("expected limit placeholder $2, got %q", query)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %v", args)
	}
}
