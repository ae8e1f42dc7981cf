package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestService(t *testing.T) (*Service, *MockGateway, *MemoryRepository) {
	t.Helper()
	gw := NewMockGateway()
	repo := NewMemoryRepository()
	svc := NewService(repo, gw, nil, time.Second)
	svc.clock = func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) }
	return svc, gw, repo
}

func TestCallFailedSendsAndLogs(t *testing.T) {
	svc, gw, _ := newTestService(t)
	ctx := context.Background()

	sent := svc.CallFailed(ctx, "case-1", "김민준", "010-1234-5678", 2, "customer_busy")
	if !sent {
		t.Fatal("send should report success")
	}
	msgs := gw.Messages()
	if len(msgs) != 1 {
		t.Fatalf("gateway sends = %d", len(msgs))
	}
	if msgs[0].Phone != "010-1234-5678" {
		t.Fatalf("phone = %s", msgs[0].Phone)
	}
	if !strings.Contains(msgs[0].Body, "김민준") {
		t.Fatalf("body missing customer name: %s", msgs[0].Body)
	}

	logged, err := svc.ListForCase(ctx, "case-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(logged) != 1 {
		t.Fatalf("log entries = %d", len(logged))
	}
	m := logged[0]
	if m.Status != StatusSent || m.Kind != KindFailedCall || m.StageOrdinal != 2 || m.Reason != "customer_busy" {
		t.Fatalf("log entry = %+v", m)
	}
	if m.ProviderRef == "" {
		t.Fatal("provider ref not recorded")
	}
}

func TestCallFailedGatewayDown(t *testing.T) {
	svc, gw, _ := newTestService(t)
	gw.Fail = true
	ctx := context.Background()

	sent := svc.CallFailed(ctx, "case-1", "김민준", "010-1234-5678", 1, "technical_issue")
	if sent {
		t.Fatal("send should report failure")
	}
	// The failed attempt still lands in the log.
	logged, err := svc.ListForCase(ctx, "case-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(logged) != 1 || logged[0].Status != StatusFailed || logged[0].Error == "" {
		t.Fatalf("log entries = %+v", logged)
	}
}

func TestUnknownReasonUsesDefaultTemplate(t *testing.T) {
	svc, gw, _ := newTestService(t)
	svc.CallFailed(context.Background(), "case-1", "이서연", "010-1111-2222", 1, "other")
	msgs := gw.Messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0].Body, "이서연") {
		t.Fatalf("messages = %+v", msgs)
	}
}

func TestDeliveryAndReadReceipts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	svc.CallFailed(ctx, "case-1", "김민준", "010-1234-5678", 1, "customer_unavailable")
	logged, _ := svc.ListForCase(ctx, "case-1")
	id := logged[0].ID

	at := time.Date(2025, 6, 1, 9, 5, 0, 0, time.UTC)
	m, err := svc.ConfirmDelivered(ctx, id, at)
	if err != nil {
		t.Fatalf("ConfirmDelivered: %v", err)
	}
	if m.Status != StatusDelivered || m.DeliveredAt == nil || !m.DeliveredAt.Equal(at) {
		t.Fatalf("after delivery receipt = %+v", m)
	}

	readAt := at.Add(2 * time.Minute)
	m, err = svc.ConfirmRead(ctx, id, readAt)
	if err != nil {
		t.Fatalf("ConfirmRead: %v", err)
	}
	if m.Status != StatusRead || m.ReadAt == nil || !m.ReadAt.Equal(readAt) {
		t.Fatalf("after read receipt = %+v", m)
	}
	// Delivery timestamp from the earlier receipt is preserved.
	if !m.DeliveredAt.Equal(at) {
		t.Fatalf("delivered at mutated to %v", m.DeliveredAt)
	}
}

func TestReadImpliesDelivery(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	svc.CallFailed(ctx, "case-1", "김민준", "010-1234-5678", 1, "customer_unavailable")
	logged, _ := svc.ListForCase(ctx, "case-1")

	readAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	m, err := svc.ConfirmRead(ctx, logged[0].ID, readAt)
	if err != nil {
		t.Fatal(err)
	}
	if m.DeliveredAt == nil || m.ReadAt == nil {
		t.Fatalf("read without prior delivery: %+v", m)
	}
}

func TestReceiptOnFailedMessage(t *testing.T) {
	svc, gw, _ := newTestService(t)
	gw.Fail = true
	ctx := context.Background()

	svc.CallFailed(ctx, "case-1", "김민준", "010-1234-5678", 1, "system_error")
	logged, _ := svc.ListForCase(ctx, "case-1")

	if _, err := svc.ConfirmDelivered(ctx, logged[0].ID, time.Now()); !errors.Is(err, ErrBadReceipt) {
		t.Fatalf("delivery receipt on failed send: got %v", err)
	}
	if _, err := svc.ConfirmRead(ctx, logged[0].ID, time.Now()); !errors.Is(err, ErrBadReceipt) {
		t.Fatalf("read receipt on failed send: got %v", err)
	}
}

func TestCallbackScheduledBody(t *testing.T) {
	svc, gw, _ := newTestService(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)
	svc.CallbackScheduled(ctx, "case-1", "김민준", "010-1234-5678", at, false)
	msgs := gw.Messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0].Body, "2025-06-15 14:00") {
		t.Fatalf("messages = %+v", msgs)
	}
	logged, _ := svc.ListForCase(ctx, "case-1")
	if len(logged) != 1 || logged[0].Kind != KindCallbackScheduled {
		t.Fatalf("log = %+v", logged)
	}
}

func TestFinalAttemptBody(t *testing.T) {
	svc, gw, _ := newTestService(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 16, 14, 0, 0, 0, time.UTC)
	svc.CallbackScheduled(ctx, "case-1", "김민준", "010-1234-5678", at, true)
	msgs := gw.Messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0].Body, "마지막으로") {
		t.Fatalf("messages = %+v", msgs)
	}
	logged, _ := svc.ListForCase(ctx, "case-1")
	if len(logged) != 1 || logged[0].Kind != KindFinalAttempt {
		t.Fatalf("log = %+v", logged)
	}
}

func TestNextCycleBody(t *testing.T) {
	svc, gw, _ := newTestService(t)
	ctx := context.Background()
	at := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	svc.MovedToNextCycle(ctx, "case-1", "김민준", "010-1234-5678", at)
	msgs := gw.Messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0].Body, "2025-09") {
		t.Fatalf("messages = %+v", msgs)
	}
	logged, _ := svc.ListForCase(ctx, "case-1")
	if len(logged) != 1 || logged[0].Kind != KindNextCycle {
		t.Fatalf("log = %+v", logged)
	}
}
