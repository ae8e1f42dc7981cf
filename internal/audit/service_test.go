package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{CaseID: "c1"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogStageApproved(context.Background(), "u1", "manager", "1.2.3.4", "case-1", "1st_pending"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].IPAddress != "1.2.3.4" {
		t.Fatalf("expected ip captured")
	}
	if evs[0].Type != EventTypeStageApproved {
		t.Fatalf("expected stage_approved")
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp filled in")
	}
}

func TestService_LogHelpers(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	if err := svc.LogCallRecorded(ctx, "u1", "agent", "", "case-1", "failure", `{"reason":"customer_busy"}`); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogOptOutDecision(ctx, "u2", "admin", "", "case-1", "req-1", "applied"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogRevenueChange(ctx, "u1", "agent", "", "case-1", "prop-1", "completed"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evs))
	}
	if evs[1].RequestID != "req-1" || evs[2].ProposalID != "prop-1" {
		t.Fatalf("target ids not captured: %+v", evs)
	}
}

func TestService_ListForCase(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	if err := svc.LogStageApproved(ctx, "u1", "manager", "", "case-1", "1st_pending"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogStageApproved(ctx, "u1", "manager", "", "case-2", "1st_pending"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs, err := svc.ListForCase(ctx, "case-1", 0)
	if err != nil {
		t.Fatalf("ListForCase: %v", err)
	}
	if len(evs) != 1 || evs[0].CaseID != "case-1" {
		t.Fatalf("expected only case-1 events, got %+v", evs)
	}

	if _, err := svc.ListForCase(ctx, "", 0); err == nil {
		t.Fatalf("expected error for empty case id")
	}
}
