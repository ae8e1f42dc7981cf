package optout

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type stubApplier struct {
	fail    bool
	applied []string // "scope:caseID" in call order
}

func (a *stubApplier) record(scope, caseID string) error {
	if a.fail {
		return fmt.Errorf("stub applier: down")
	}
	a.applied = append(a.applied, scope+":"+caseID)
	return nil
}

func (a *stubApplier) ApplyAll(_ context.Context, caseID, _ string) error {
	return a.record("all", caseID)
}
func (a *stubApplier) ApplyCurrentStage(_ context.Context, caseID, _ string) error {
	return a.record("current_stage", caseID)
}
func (a *stubApplier) ApplyRemaining(_ context.Context, caseID, _ string) error {
	return a.record("remaining", caseID)
}
func (a *stubApplier) ApplyCategories(_ context.Context, caseID string, _ []string) error {
	return a.record("categories", caseID)
}

func newTestService(t *testing.T) (*Service, *stubApplier) {
	t.Helper()
	applier := &stubApplier{}
	svc := NewService(NewMemoryRepository(), applier, nil)
	svc.clock = func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) }
	return svc, applier
}

func createRequest(t *testing.T, svc *Service, scope Scope) Request {
	t.Helper()
	req := CreateRequest{
		CaseID:      "case-1",
		Scope:       scope,
		Reason:      ReasonNotInterested,
		RequestedBy: "agent-7",
	}
	if scope == ScopeCategories {
		req.Categories = []string{"insurance"}
	}
	r, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return r
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	bad := []CreateRequest{
		{Scope: ScopeAll, Reason: ReasonOther, RequestedBy: "a"},
		{CaseID: "c", Scope: "everything", Reason: ReasonOther, RequestedBy: "a"},
		{CaseID: "c", Scope: ScopeAll, Reason: "tired", RequestedBy: "a"},
		{CaseID: "c", Scope: ScopeAll, Reason: ReasonOther},
		{CaseID: "c", Scope: ScopeCategories, Reason: ReasonOther, RequestedBy: "a"},
		{CaseID: "c", Scope: ScopeAll, Reason: ReasonOther, RequestedBy: "a", Categories: []string{"x"}},
	}
	for i, req := range bad {
		if _, err := svc.Create(context.Background(), req); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("bad request %d: got %v", i, err)
		}
	}
}

func TestDuplicateOpenScope(t *testing.T) {
	svc, _ := newTestService(t)
	createRequest(t, svc, ScopeAll)
	_, err := svc.Create(context.Background(), CreateRequest{
		CaseID: "case-1", Scope: ScopeAll, Reason: ReasonOther, RequestedBy: "agent-8",
	})
	if !errors.Is(err, ErrDuplicateOpen) {
		t.Fatalf("duplicate open scope: got %v", err)
	}
	// A different scope is fine.
	if _, err := svc.Create(context.Background(), CreateRequest{
		CaseID: "case-1", Scope: ScopeCurrentStage, Reason: ReasonOther, RequestedBy: "agent-8",
	}); err != nil {
		t.Fatalf("different scope: %v", err)
	}
}

func TestTwoLevelApproval(t *testing.T) {
	svc, applier := newTestService(t)
	ctx := context.Background()
	r := createRequest(t, svc, ScopeAll)

	// Admin cannot jump the queue.
	if _, err := svc.ApproveByAdmin(ctx, r.ID, "adm-1"); !errors.Is(err, ErrApprovalOrder) {
		t.Fatalf("admin before manager: got %v", err)
	}

	r, err := svc.ApproveByManager(ctx, r.ID, "mgr-1")
	if err != nil {
		t.Fatalf("manager approve: %v", err)
	}
	if r.Status != StatusManagerApproved || r.ManagerDecidedAt == nil {
		t.Fatalf("after manager = %+v", r)
	}
	if len(applier.applied) != 0 {
		t.Fatal("manager approval must not apply the request")
	}

	r, err = svc.ApproveByAdmin(ctx, r.ID, "adm-1")
	if err != nil {
		t.Fatalf("admin approve: %v", err)
	}
	if r.Status != StatusApplied || r.AppliedAt == nil {
		t.Fatalf("after admin = %+v", r)
	}
	if len(applier.applied) != 1 || applier.applied[0] != "all:case-1" {
		t.Fatalf("applied = %v", applier.applied)
	}

	// Every further decision on an applied request is rejected.
	if _, err := svc.ApproveByAdmin(ctx, r.ID, "adm-2"); !errors.Is(err, ErrAlreadyApplied) {
		t.Fatalf("re-approve applied: got %v", err)
	}
	if _, err := svc.ApproveByManager(ctx, r.ID, "mgr-2"); !errors.Is(err, ErrAlreadyApplied) {
		t.Fatalf("manager on applied: got %v", err)
	}
	if _, err := svc.Reject(ctx, r.ID, "adm-2", "no"); !errors.Is(err, ErrAlreadyApplied) {
		t.Fatalf("reject applied: got %v", err)
	}
	if len(applier.applied) != 1 {
		t.Fatalf("applied %d times", len(applier.applied))
	}
}

func TestApplyFailureKeepsRequestOpen(t *testing.T) {
	svc, applier := newTestService(t)
	ctx := context.Background()
	r := createRequest(t, svc, ScopeRemaining)
	if _, err := svc.ApproveByManager(ctx, r.ID, "mgr-1"); err != nil {
		t.Fatal(err)
	}

	applier.fail = true
	if _, err := svc.ApproveByAdmin(ctx, r.ID, "adm-1"); err == nil {
		t.Fatal("apply failure must surface")
	}
	got, _ := svc.Get(ctx, r.ID)
	if got.Status != StatusManagerApproved {
		t.Fatalf("status after failed apply = %s", got.Status)
	}

	// Retry succeeds once the case side recovers.
	applier.fail = false
	got, err := svc.ApproveByAdmin(ctx, r.ID, "adm-1")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got.Status != StatusApplied {
		t.Fatalf("status after retry = %s", got.Status)
	}
}

func TestRejectAtEitherLevel(t *testing.T) {
	svc, applier := newTestService(t)
	ctx := context.Background()

	r := createRequest(t, svc, ScopeCurrentStage)
	got, err := svc.Reject(ctx, r.ID, "mgr-1", "customer retracted")
	if err != nil {
		t.Fatalf("manager reject: %v", err)
	}
	if got.Status != StatusRejected || got.ManagerDecidedBy != "mgr-1" || got.RejectionComment == "" {
		t.Fatalf("after manager reject = %+v", got)
	}

	r2 := createRequest(t, svc, ScopeCategories)
	if _, err := svc.ApproveByManager(ctx, r2.ID, "mgr-1"); err != nil {
		t.Fatal(err)
	}
	got, err = svc.Reject(ctx, r2.ID, "adm-1", "policy")
	if err != nil {
		t.Fatalf("admin reject: %v", err)
	}
	if got.Status != StatusRejected || got.AdminDecidedBy != "adm-1" {
		t.Fatalf("after admin reject = %+v", got)
	}
	if len(applier.applied) != 0 {
		t.Fatal("rejected requests must never apply")
	}

	if _, err := svc.Reject(ctx, r.ID, "mgr-1", "again"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("double reject: got %v", err)
	}
}

func TestCategoriesScopeApplies(t *testing.T) {
	svc, applier := newTestService(t)
	ctx := context.Background()
	r := createRequest(t, svc, ScopeCategories)
	if _, err := svc.ApproveByManager(ctx, r.ID, "mgr-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ApproveByAdmin(ctx, r.ID, "adm-1"); err != nil {
		t.Fatal(err)
	}
	if len(applier.applied) != 1 || applier.applied[0] != "categories:case-1" {
		t.Fatalf("applied = %v", applier.applied)
	}
}
