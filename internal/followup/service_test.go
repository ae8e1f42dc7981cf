package followup

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubNotifier struct {
	calls        int
	reminders    int
	finalNotices int
	cycleNotices int
	lastCycleAt  time.Time
	last         struct {
		caseID, phone, reason string
		ordinal               int
	}
	result bool
}

func (n *stubNotifier) CallFailed(_ context.Context, caseID, _, phone string, ordinal int, reason string) bool {
	n.calls++
	n.last.caseID, n.last.phone, n.last.ordinal, n.last.reason = caseID, phone, ordinal, reason
	return n.result
}

func (n *stubNotifier) CallbackScheduled(_ context.Context, _, _, _ string, _ time.Time, finalAttempt bool) bool {
	if finalAttempt {
		n.finalNotices++
	} else {
		n.reminders++
	}
	return n.result
}

func (n *stubNotifier) MovedToNextCycle(_ context.Context, _, _, _ string, at time.Time) bool {
	n.cycleNotices++
	n.lastCycleAt = at
	return n.result
}

type stubLedger struct {
	deferred int64
	losses   []struct {
		caseID  string
		ordinal int
		reason  string
		smsSent bool
	}
}

func (l *stubLedger) DeferStage(_ context.Context, _ string, _ int) (int64, error) {
	return l.deferred, nil
}

func (l *stubLedger) RecordLoss(_ context.Context, caseID string, ordinal int, reason string, _ int64, smsSent bool) error {
	l.losses = append(l.losses, struct {
		caseID  string
		ordinal int
		reason  string
		smsSent bool
	}{caseID, ordinal, reason, smsSent})
	return nil
}

func newTestService(t *testing.T) (*Service, *stubNotifier, *stubLedger, *time.Time) {
	t.Helper()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	notifier := &stubNotifier{result: true}
	ledger := &stubLedger{}
	svc := NewService(NewMemoryRepository(), Options{Notifier: notifier, Revenue: ledger})
	svc.clock = func() time.Time { return now }
	return svc, notifier, ledger, &now
}

func createTestCase(t *testing.T, svc *Service) Case {
	t.Helper()
	c, err := svc.CreateCase(context.Background(), CreateCaseRequest{
		ServiceEventID:     "evt-1001",
		CustomerName:       "Kim Minjun",
		CustomerPhone:      "010-1234-5678",
		ServiceCompletedAt: time.Date(2025, 5, 25, 14, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateCase: %v", err)
	}
	return c
}

func TestCreateCase(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	c := createTestCase(t, svc)

	if got := c.Stage.Code(); got != "1st_pending_approval" {
		t.Fatalf("initial stage = %s", got)
	}
	wantFirst := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	if c.Calls[1].ScheduledAt == nil || !c.Calls[1].ScheduledAt.Equal(wantFirst) {
		t.Fatalf("first call scheduled at %v, want %v", c.Calls[1].ScheduledAt, wantFirst)
	}

	_, err := svc.CreateCase(context.Background(), CreateCaseRequest{
		ServiceEventID: "evt-1001",
		CustomerName:   "Kim Minjun",
		CustomerPhone:  "010-1234-5678",
	})
	if !errors.Is(err, ErrDuplicateCase) {
		t.Fatalf("duplicate service event: got %v", err)
	}
}

func TestApprovalFlow(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	c := createTestCase(t, svc)

	got, err := svc.ApproveStage(context.Background(), c.ID, "mgr-1", ApprovalManager)
	if err != nil {
		t.Fatalf("manager approve: %v", err)
	}
	if got.Stage.Phase != PhasePending {
		t.Fatalf("after manager approval stage = %s", got.Stage)
	}
	if got.ManagerApprovedBy != "mgr-1" || got.ManagerApprovedAt == nil {
		t.Fatal("manager approval not recorded")
	}

	// Approving an already-approved stage is rejected, not re-applied.
	if _, err := svc.ApproveStage(context.Background(), c.ID, "mgr-2", ApprovalManager); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double approve: got %v", err)
	}
}

func TestAdminApprovalRequiresManagerFirst(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	c, err := svc.CreateCase(context.Background(), CreateCaseRequest{
		ServiceEventID:        "evt-2001",
		CustomerName:          "Lee Seoyeon",
		CustomerPhone:         "010-9876-5432",
		RequiresAdminApproval: true,
	})
	if err != nil {
		t.Fatalf("CreateCase: %v", err)
	}

	if _, err := svc.ApproveStage(context.Background(), c.ID, "adm-1", ApprovalAdmin); !errors.Is(err, ErrApprovalOrder) {
		t.Fatalf("admin before manager: got %v", err)
	}

	got, err := svc.ApproveStage(context.Background(), c.ID, "mgr-1", ApprovalManager)
	if err != nil {
		t.Fatalf("manager approve: %v", err)
	}
	if got.Stage.Phase != PhasePendingApproval {
		t.Fatalf("manager alone should not clear an admin-gated case, stage = %s", got.Stage)
	}

	got, err = svc.ApproveStage(context.Background(), c.ID, "adm-1", ApprovalAdmin)
	if err != nil {
		t.Fatalf("admin approve: %v", err)
	}
	if got.Stage.Phase != PhasePending {
		t.Fatalf("after admin approval stage = %s", got.Stage)
	}
}

func TestExecuteSuccessAndAdvance(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	c := createTestCase(t, svc)
	ctx := context.Background()

	if _, err := svc.ApproveStage(ctx, c.ID, "mgr-1", ApprovalManager); err != nil {
		t.Fatalf("approve: %v", err)
	}
	res, err := svc.ExecuteCall(ctx, c.ID, ExecuteRequest{
		Agent:               "agent-7",
		Outcome:             OutcomeSuccess,
		OverallSatisfaction: 5,
		ServiceQuality:      4,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := res.Case.Stage.Code(); got != "1st_completed" {
		t.Fatalf("stage after success = %s", got)
	}
	if res.Callback != nil {
		t.Fatal("success must not open a callback")
	}
	if res.Case.Calls[1].Success == nil || !*res.Case.Calls[1].Success {
		t.Fatal("call record not marked successful")
	}
	if avg, ok := res.Case.AverageSatisfaction(); !ok || avg != 4.5 {
		t.Fatalf("average satisfaction = %v, %v", avg, ok)
	}

	adv, err := svc.Advance(ctx, c.ID)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if got := adv.Stage.Code(); got != "2nd_pending_approval" {
		t.Fatalf("stage after advance = %s", got)
	}
	if adv.ManagerApprovedBy != "" || adv.ManagerApprovedAt != nil {
		t.Fatal("approvals must reset on advance")
	}
}

func TestExecuteRejectedBeforeApproval(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	c := createTestCase(t, svc)
	_, err := svc.ExecuteCall(context.Background(), c.ID, ExecuteRequest{
		Agent: "agent-7", Outcome: OutcomeSuccess,
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("execute before approval: got %v", err)
	}
}

// A failed 2nd call with customer_busy must land on 2nd_failed, open exactly
// one callback scheduled fourteen days out, and record one loss entry
// carrying the notification outcome.
func TestExecuteFailureSecondStage(t *testing.T) {
	svc, notifier, ledger, now := newTestService(t)
	c := createTestCase(t, svc)
	ctx := context.Background()

	// Walk to 2nd_pending.
	if _, err := svc.ApproveStage(ctx, c.ID, "mgr-1", ApprovalManager); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ExecuteCall(ctx, c.ID, ExecuteRequest{Agent: "agent-7", Outcome: OutcomeSuccess}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Advance(ctx, c.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ApproveStage(ctx, c.ID, "mgr-1", ApprovalManager); err != nil {
		t.Fatal(err)
	}

	ledger.deferred = 30_000
	res, err := svc.ExecuteCall(ctx, c.ID, ExecuteRequest{
		Agent:   "agent-7",
		Outcome: OutcomeFailure,
		Reason:  FailureCustomerBusy,
	})
	if err != nil {
		t.Fatalf("execute failure: %v", err)
	}
	if got := res.Case.Stage.Code(); got != "2nd_failed" {
		t.Fatalf("stage after failure = %s", got)
	}
	if res.Callback == nil {
		t.Fatal("failure must open a callback")
	}

	cbs, err := svc.ListCallbacks(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(cbs) != 1 {
		t.Fatalf("callbacks opened = %d, want exactly 1", len(cbs))
	}
	cb := cbs[0]
	wantRetry := now.AddDate(0, 0, 14)
	if !cb.ScheduledAt.Equal(wantRetry) {
		t.Fatalf("callback at %v, want %v", cb.ScheduledAt, wantRetry)
	}
	if cb.OriginOrdinal != 2 || cb.Attempt != 1 || cb.MaxAttempts != 3 {
		t.Fatalf("callback chain fields: %+v", cb)
	}
	if cb.PotentialRevenue != 200_000+30_000 {
		t.Fatalf("callback potential = %d", cb.PotentialRevenue)
	}
	if res.Case.DeferredRevenue != 30_000 {
		t.Fatalf("case deferred revenue = %d", res.Case.DeferredRevenue)
	}

	if notifier.calls != 1 || notifier.last.ordinal != 2 || notifier.last.reason != string(FailureCustomerBusy) {
		t.Fatalf("notifier calls = %d, last = %+v", notifier.calls, notifier.last)
	}
	if !res.SMSSent {
		t.Fatal("sms result not propagated")
	}
	if len(ledger.losses) != 1 {
		t.Fatalf("loss entries = %d, want exactly 1", len(ledger.losses))
	}
	if loss := ledger.losses[0]; loss.ordinal != 2 || !loss.smsSent || loss.reason != string(FailureCustomerBusy) {
		t.Fatalf("loss entry = %+v", loss)
	}
}

func TestFailedSecondStageSkipsInsuranceCall(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	c := createTestCase(t, svc)
	ctx := context.Background()

	if _, err := svc.ApproveStage(ctx, c.ID, "mgr-1", ApprovalManager); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ExecuteCall(ctx, c.ID, ExecuteRequest{Agent: "a", Outcome: OutcomeSuccess}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Advance(ctx, c.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ApproveStage(ctx, c.ID, "mgr-1", ApprovalManager); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ExecuteCall(ctx, c.ID, ExecuteRequest{
		Agent: "a", Outcome: OutcomeFailure, Reason: FailureCustomerUnavailable,
	}); err != nil {
		t.Fatal(err)
	}

	adv, err := svc.Advance(ctx, c.ID)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if got := adv.Stage.Code(); got != "4th_pending_approval" {
		t.Fatalf("stage after failed 2nd = %s, want 4th_pending_approval", got)
	}
}

func TestInsuranceInterestRoutesToThirdStage(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	c := createTestCase(t, svc)
	ctx := context.Background()

	if _, err := svc.ApproveStage(ctx, c.ID, "mgr-1", ApprovalManager); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ExecuteCall(ctx, c.ID, ExecuteRequest{Agent: "a", Outcome: OutcomeSuccess}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Advance(ctx, c.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ApproveStage(ctx, c.ID, "mgr-1", ApprovalManager); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ExecuteCall(ctx, c.ID, ExecuteRequest{
		Agent:                "a",
		Outcome:              OutcomeSuccess,
		CarInsuranceInterest: InterestVeryInterested,
	}); err != nil {
		t.Fatal(err)
	}

	adv, err := svc.Advance(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got := adv.Stage.Code(); got != "3rd_pending_approval" {
		t.Fatalf("stage = %s, want 3rd_pending_approval", got)
	}
}

func TestStartCall(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	c := createTestCase(t, svc)
	ctx := context.Background()

	// Picking up before approval is not a thing.
	if _, err := svc.StartCall(ctx, c.ID, "agent-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("start from pending_approval: got %v", err)
	}

	if _, err := svc.ApproveStage(ctx, c.ID, "mgr-1", ApprovalManager); err != nil {
		t.Fatal(err)
	}
	got, err := svc.StartCall(ctx, c.ID, "agent-1")
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	if got.Stage.Code() != "1st_in_progress" {
		t.Fatalf("stage = %s", got.Stage)
	}
	if got.Calls[1].CallerID != "agent-1" {
		t.Fatalf("caller = %q", got.Calls[1].CallerID)
	}
	if _, err := svc.StartCall(ctx, c.ID, "agent-2"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double start: got %v", err)
	}

	// The outcome can still be recorded from the line.
	res, err := svc.ExecuteCall(ctx, c.ID, ExecuteRequest{Agent: "agent-1", Outcome: OutcomeSuccess})
	if err != nil {
		t.Fatalf("execute from in_progress: %v", err)
	}
	if res.Case.Stage.Code() != "1st_completed" {
		t.Fatalf("stage = %s", res.Case.Stage)
	}
}

func TestStartCallback(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	c := createTestCase(t, svc)
	ctx := context.Background()

	if _, err := svc.ApproveStage(ctx, c.ID, "mgr-1", ApprovalManager); err != nil {
		t.Fatal(err)
	}
	res, err := svc.ExecuteCall(ctx, c.ID, ExecuteRequest{
		Agent: "a", Outcome: OutcomeFailure, Reason: FailureCustomerBusy,
	})
	if err != nil {
		t.Fatal(err)
	}

	cb, err := svc.StartCallback(ctx, res.Callback.ID, "agent-2")
	if err != nil {
		t.Fatalf("StartCallback: %v", err)
	}
	if cb.Status != CallbackInProgress || cb.AttemptedAt == nil || cb.AssignedTo != "agent-2" {
		t.Fatalf("started callback = %+v", cb)
	}
	if _, err := svc.StartCallback(ctx, cb.ID, "agent-3"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double start: got %v", err)
	}

	// A started callback can still settle.
	done, err := svc.CompleteCallback(ctx, cb.ID, "reached")
	if err != nil {
		t.Fatalf("complete started callback: %v", err)
	}
	if done.Status != CallbackCompleted {
		t.Fatalf("status = %s", done.Status)
	}
}

func TestCallbackChain(t *testing.T) {
	svc, notifier, _, now := newTestService(t)
	c := createTestCase(t, svc)
	ctx := context.Background()

	if _, err := svc.ApproveStage(ctx, c.ID, "mgr-1", ApprovalManager); err != nil {
		t.Fatal(err)
	}
	res, err := svc.ExecuteCall(ctx, c.ID, ExecuteRequest{
		Agent: "a", Outcome: OutcomeFailure, Reason: FailureTechnicalIssue,
	})
	if err != nil {
		t.Fatal(err)
	}

	// First retry fails: successor a day out, still normal priority.
	fr, err := svc.FailCallback(ctx, res.Callback.ID, "no answer")
	if err != nil {
		t.Fatal(err)
	}
	if fr.Next == nil {
		t.Fatal("under the cap a failed callback must spawn a successor")
	}
	if fr.Next.Attempt != 2 || fr.Next.Priority != PriorityNormal {
		t.Fatalf("second attempt = %+v", fr.Next)
	}
	if want := now.AddDate(0, 0, 1); !fr.Next.ScheduledAt.Equal(want) {
		t.Fatalf("successor at %v, want %v", fr.Next.ScheduledAt, want)
	}
	if notifier.reminders != 1 {
		t.Fatalf("expected a reschedule SMS, got %d", notifier.reminders)
	}

	// Second retry fails: third attempt escalates.
	fr, err = svc.FailCallback(ctx, fr.Next.ID, "no answer")
	if err != nil {
		t.Fatal(err)
	}
	if fr.Next == nil || fr.Next.Attempt != 3 || fr.Next.Priority != PriorityHigh {
		t.Fatalf("third attempt = %+v", fr.Next)
	}
	// The last retry of the chain announces itself as such.
	if notifier.finalNotices != 1 || notifier.reminders != 1 {
		t.Fatalf("final-attempt SMS count = %d, reschedule count = %d", notifier.finalNotices, notifier.reminders)
	}

	// Final retry fails: chain exhausted, opportunity deferred, case moves on.
	fr, err = svc.FailCallback(ctx, fr.Next.ID, "gave up")
	if err != nil {
		t.Fatal(err)
	}
	if fr.Next != nil {
		t.Fatal("exhausted chain must not spawn another callback")
	}
	if !fr.Callback.MovedToNextCycle || fr.Callback.OpportunityMaintained {
		t.Fatalf("exhausted callback = %+v", fr.Callback)
	}
	if want := now.AddDate(0, 0, 90); fr.Callback.NextCycleAt == nil || !fr.Callback.NextCycleAt.Equal(want) {
		t.Fatalf("next cycle at %v, want %v", fr.Callback.NextCycleAt, want)
	}
	if fr.Case == nil || fr.Case.Stage.Code() != "2nd_pending_approval" {
		t.Fatalf("case after exhaustion = %+v", fr.Case)
	}
	if fr.Case.DeferredRevenue != fr.Callback.DeferredRevenue {
		t.Fatalf("deferred revenue mismatch: case %d callback %d", fr.Case.DeferredRevenue, fr.Callback.DeferredRevenue)
	}
	// Exhaustion tells the customer when contact resumes.
	if notifier.cycleNotices != 1 {
		t.Fatalf("next-cycle SMS count = %d, want 1", notifier.cycleNotices)
	}
	if !notifier.lastCycleAt.Equal(*fr.Callback.NextCycleAt) {
		t.Fatalf("next-cycle SMS dated %v, want %v", notifier.lastCycleAt, fr.Callback.NextCycleAt)
	}

	if _, err := svc.FailCallback(ctx, fr.Callback.ID, "again"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("re-failing a settled callback: got %v", err)
	}
}

func TestSaveFailureTransitionIsAllOrNothing(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	cb := CallbackRequest{ID: "cb-1", CaseID: "missing"}
	if err := repo.SaveFailureTransition(ctx, Case{ID: "missing"}, cb); !errors.Is(err, ErrNotFound) {
		t.Fatalf("save against missing case: got %v", err)
	}
	// The rejected write must not leave an orphan callback behind.
	if _, err := repo.GetCallback(ctx, cb.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("orphan callback persisted: got %v", err)
	}
}

func TestCompleteCallback(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	c := createTestCase(t, svc)
	ctx := context.Background()

	if _, err := svc.ApproveStage(ctx, c.ID, "mgr-1", ApprovalManager); err != nil {
		t.Fatal(err)
	}
	res, err := svc.ExecuteCall(ctx, c.ID, ExecuteRequest{
		Agent: "a", Outcome: OutcomeFailure, Reason: FailureCustomerUnavailable,
	})
	if err != nil {
		t.Fatal(err)
	}

	cb, err := svc.CompleteCallback(ctx, res.Callback.ID, "reached, rescheduled consult")
	if err != nil {
		t.Fatalf("complete callback: %v", err)
	}
	if cb.Status != CallbackCompleted || cb.CompletedAt == nil {
		t.Fatalf("completed callback = %+v", cb)
	}
	if _, err := svc.CompleteCallback(ctx, cb.ID, "again"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double complete: got %v", err)
	}
}

func TestOptOutAll(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	c := createTestCase(t, svc)
	ctx := context.Background()

	got, err := svc.ApplyOptOutAll(ctx, c.ID, "customer demanded no contact")
	if err != nil {
		t.Fatal(err)
	}
	if got.Stage != StageRejectedAll() || !got.NoCallRequest || got.RejectedAt == nil {
		t.Fatalf("after opt-out all: %+v", got.Stage)
	}
	if _, err := svc.ApproveStage(ctx, c.ID, "mgr-1", ApprovalManager); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("approve after rejected_all: got %v", err)
	}
}

func TestOptOutCurrentStage(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	c := createTestCase(t, svc)
	ctx := context.Background()

	got, err := svc.ApplyOptOutCurrentStage(ctx, c.ID, "skip this one")
	if err != nil {
		t.Fatal(err)
	}
	if got.Stage.Code() != "1st_rejected" {
		t.Fatalf("stage = %s", got.Stage)
	}

	// A rejected stage can still advance.
	adv, err := svc.Advance(ctx, c.ID)
	if err != nil {
		t.Fatalf("advance after stage rejection: %v", err)
	}
	if adv.Stage.Code() != "2nd_pending_approval" {
		t.Fatalf("stage after advance = %s", adv.Stage)
	}
}

func TestOptOutRemaining(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	c := createTestCase(t, svc)
	ctx := context.Background()

	if _, err := svc.ApproveStage(ctx, c.ID, "mgr-1", ApprovalManager); err != nil {
		t.Fatal(err)
	}
	// Mid-stage: the flag sticks but the stage in flight finishes first.
	got, err := svc.ApplyOptOutRemaining(ctx, c.ID, "only this call")
	if err != nil {
		t.Fatal(err)
	}
	if got.Stage.Code() != "1st_pending" || !got.RemainingStagesRejected {
		t.Fatalf("mid-stage opt-out: %s rejected=%v", got.Stage, got.RemainingStagesRejected)
	}
	if _, err := svc.ExecuteCall(ctx, c.ID, ExecuteRequest{Agent: "a", Outcome: OutcomeSuccess}); err != nil {
		t.Fatal(err)
	}
	adv, err := svc.Advance(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if adv.Stage != StageSkipped() {
		t.Fatalf("advance with remaining rejected = %s, want skip", adv.Stage)
	}
}

func TestOptOutCategories(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	c := createTestCase(t, svc)
	ctx := context.Background()

	got, err := svc.ApplyOptOutCategories(ctx, c.ID, []string{"insurance", "engine_oil", "insurance"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.ExcludedCategories) != 2 {
		t.Fatalf("excluded = %v", got.ExcludedCategories)
	}
	excluded, err := svc.CategoryExcluded(ctx, c.ID, "insurance")
	if err != nil || !excluded {
		t.Fatalf("CategoryExcluded = %v, %v", excluded, err)
	}
	excluded, err = svc.CategoryExcluded(ctx, c.ID, "tires")
	if err != nil || excluded {
		t.Fatalf("CategoryExcluded(tires) = %v, %v", excluded, err)
	}
}

func TestSetRevenueTotals(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	c := createTestCase(t, svc)
	ctx := context.Background()

	if err := svc.SetRevenueTotals(ctx, c.ID, 350_000, 2); err != nil {
		t.Fatal(err)
	}
	got, err := svc.GetCase(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalRevenue != 350_000 || got.RevenueCount != 2 {
		t.Fatalf("totals = %d/%d", got.TotalRevenue, got.RevenueCount)
	}
}

func TestExecuteValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	c := createTestCase(t, svc)
	ctx := context.Background()
	if _, err := svc.ApproveStage(ctx, c.ID, "mgr-1", ApprovalManager); err != nil {
		t.Fatal(err)
	}

	bad := []ExecuteRequest{
		{Outcome: OutcomeSuccess},                                // no agent
		{Agent: "a", Outcome: "connected"},                       // unknown outcome
		{Agent: "a", Outcome: OutcomeFailure},                    // failure without reason
		{Agent: "a", Outcome: OutcomeFailure, Reason: "no_ring"}, // unknown reason
		{Agent: "a", Outcome: OutcomeSuccess, OverallSatisfaction: 6},
	}
	for i, req := range bad {
		if _, err := svc.ExecuteCall(ctx, c.ID, req); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("bad request %d: got %v", i, err)
		}
	}
}
