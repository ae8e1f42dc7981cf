package revenue

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubDirectory struct {
	ordinal  int
	excluded map[string]bool
	totals   struct {
		total int64
		count int
		calls int
	}
}

func (d *stubDirectory) StageOrdinal(_ context.Context, _ string) (int, error) {
	return d.ordinal, nil
}

func (d *stubDirectory) CategoryExcluded(_ context.Context, _ string, category string) (bool, error) {
	return d.excluded[category], nil
}

func (d *stubDirectory) Contact(_ context.Context, _ string) (string, string, error) {
	return "Kim Minjun", "010-1234-5678", nil
}

func (d *stubDirectory) SetRevenueTotals(_ context.Context, _ string, total int64, count int) error {
	d.totals.total, d.totals.count = total, count
	d.totals.calls++
	return nil
}

func newTestService(t *testing.T) (*Service, *stubDirectory, *MemoryRepository) {
	t.Helper()
	dir := &stubDirectory{ordinal: 2, excluded: map[string]bool{}}
	repo := NewMemoryRepository()
	svc := NewService(repo, dir, nil)
	svc.clock = func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) }
	return svc, dir, repo
}

func createProposal(t *testing.T, svc *Service) Proposal {
	t.Helper()
	p, err := svc.Create(context.Background(), CreateRequest{
		CaseID:          "case-1",
		Category:        "engine_oil",
		EstimatedAmount: 80_000,
		CommissionRate:  10,
		ProposedBy:      "agent-7",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return p
}

func TestCreateProposal(t *testing.T) {
	svc, _, _ := newTestService(t)
	p := createProposal(t, svc)
	if p.Status != StatusProposed || p.StageOrdinal != 2 {
		t.Fatalf("proposal = %+v", p)
	}
}

func TestCreateRejectsExcludedCategory(t *testing.T) {
	svc, dir, _ := newTestService(t)
	dir.excluded["insurance"] = true
	_, err := svc.Create(context.Background(), CreateRequest{
		CaseID: "case-1", Category: "insurance", EstimatedAmount: 150_000, ProposedBy: "agent-7",
	})
	if !errors.Is(err, ErrCategoryExcluded) {
		t.Fatalf("got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	bad := []CreateRequest{
		{Category: "x", EstimatedAmount: 1, ProposedBy: "a"},
		{CaseID: "c", EstimatedAmount: 1, ProposedBy: "a"},
		{CaseID: "c", Category: "x", EstimatedAmount: 0, ProposedBy: "a"},
		{CaseID: "c", Category: "x", EstimatedAmount: -5, ProposedBy: "a"},
		{CaseID: "c", Category: "x", EstimatedAmount: 1, ProposedBy: "a", CommissionRate: 120},
		{CaseID: "c", Category: "x", EstimatedAmount: 1},
	}
	for i, req := range bad {
		if _, err := svc.Create(context.Background(), req); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("bad request %d: got %v", i, err)
		}
	}
}

func TestFullProposalLifecycle(t *testing.T) {
	svc, dir, _ := newTestService(t)
	ctx := context.Background()
	p := createProposal(t, svc)

	p, err := svc.Accept(ctx, p.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if p.Status != StatusAccepted || p.AcceptedAt == nil {
		t.Fatalf("after accept = %+v", p)
	}

	p, v, err := svc.ConvertToVoucher(ctx, p.ID, 75_000)
	if err != nil {
		t.Fatalf("ConvertToVoucher: %v", err)
	}
	if p.Status != StatusVoucherCreated || p.ActualAmount != 75_000 || p.VoucherID != v.ID {
		t.Fatalf("after voucher = %+v", p)
	}
	if v.Amount != 75_000 || v.IssuedTo != "Kim Minjun" || v.IssuedPhone != "010-1234-5678" {
		t.Fatalf("voucher = %+v", v)
	}
	if v.Source != "follow_up_call" {
		t.Fatalf("voucher source = %q", v.Source)
	}
	if !v.ExpiresAt.After(v.IssuedAt) {
		t.Fatal("voucher must expire after issuance")
	}

	p, err = svc.Complete(ctx, p.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if p.Status != StatusCompleted || p.Commission != 7_500 {
		t.Fatalf("after complete = %+v", p)
	}
	if dir.totals.total != 75_000 || dir.totals.count != 1 {
		t.Fatalf("case totals pushed = %+v", dir.totals)
	}

	// Completing twice is a status error, not a silent double-count.
	if _, err := svc.Complete(ctx, p.ID); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("double complete: got %v", err)
	}
	if dir.totals.calls != 1 {
		t.Fatalf("totals recomputed %d times", dir.totals.calls)
	}
}

func TestConvertKeepsEstimateWhenNoActual(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	p := createProposal(t, svc)
	if _, err := svc.Accept(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	p, _, err := svc.ConvertToVoucher(ctx, p.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if p.ActualAmount != 80_000 {
		t.Fatalf("actual = %d, want estimate carried over", p.ActualAmount)
	}
}

func TestStatusGuards(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	p := createProposal(t, svc)

	if _, _, err := svc.ConvertToVoucher(ctx, p.ID, 0); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("voucher before accept: got %v", err)
	}
	if _, err := svc.Complete(ctx, p.ID); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("complete before voucher: got %v", err)
	}
	if _, err := svc.Accept(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Accept(ctx, p.ID); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("double accept: got %v", err)
	}
}

func TestCancel(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	p := createProposal(t, svc)

	p, err := svc.Cancel(ctx, p.ID, "customer changed mind")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if p.Status != StatusCancelled || p.CancelledAt == nil {
		t.Fatalf("after cancel = %+v", p)
	}
	if _, err := svc.Cancel(ctx, p.ID, "again"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("double cancel: got %v", err)
	}
}

func TestDeferStage(t *testing.T) {
	svc, dir, _ := newTestService(t)
	ctx := context.Background()

	// Two open stage-2 proposals, one accepted; one at another stage; one
	// already completed.
	p1 := createProposal(t, svc)
	p2 := createProposal(t, svc)
	if _, err := svc.Accept(ctx, p2.ID); err != nil {
		t.Fatal(err)
	}
	dir.ordinal = 3
	p3, err := svc.Create(ctx, CreateRequest{
		CaseID: "case-1", Category: "insurance", EstimatedAmount: 150_000, ProposedBy: "agent-7",
	})
	if err != nil {
		t.Fatal(err)
	}
	dir.ordinal = 2

	total, err := svc.DeferStage(ctx, "case-1", 2)
	if err != nil {
		t.Fatalf("DeferStage: %v", err)
	}
	if total != 160_000 {
		t.Fatalf("deferred total = %d", total)
	}
	for _, id := range []string{p1.ID, p2.ID} {
		gp, _ := svc.Get(ctx, id)
		if gp.Status != StatusDeferred {
			t.Fatalf("proposal %s = %s", id, gp.Status)
		}
	}
	gp, _ := svc.Get(ctx, p3.ID)
	if gp.Status != StatusProposed {
		t.Fatalf("other-stage proposal touched: %s", gp.Status)
	}

	sum, err := svc.Summary(ctx, "case-1")
	if err != nil {
		t.Fatal(err)
	}
	if sum.DeferredAmount != 160_000 {
		t.Fatalf("summary deferred = %d", sum.DeferredAmount)
	}
}

func TestLossRecovery(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.RecordLoss(ctx, "case-1", 2, "customer_busy", 200_000, true); err != nil {
		t.Fatalf("RecordLoss: %v", err)
	}
	losses, err := svc.ListLosses(ctx, "case-1")
	if err != nil || len(losses) != 1 {
		t.Fatalf("losses = %v, %v", losses, err)
	}
	l := losses[0]
	if !l.SMSSent || l.StageOrdinal != 2 {
		t.Fatalf("loss = %+v", l)
	}

	if _, err := svc.MarkRecovered(ctx, l.ID, 250_000, ""); !errors.Is(err, ErrOverRecovery) {
		t.Fatalf("over-recovery: got %v", err)
	}

	rec, err := svc.MarkRecovered(ctx, l.ID, 150_000, "callback converted")
	if err != nil {
		t.Fatalf("MarkRecovered: %v", err)
	}
	if !rec.Recovered || rec.RecoveredAmount != 150_000 || rec.RecoveredAt == nil {
		t.Fatalf("recovered loss = %+v", rec)
	}
	if got := rec.RecoveryRate(); got != 75 {
		t.Fatalf("recovery rate = %v", got)
	}

	if _, err := svc.MarkRecovered(ctx, l.ID, 10_000, ""); !errors.Is(err, ErrAlreadyRecovered) {
		t.Fatalf("double recovery: got %v", err)
	}
}
