package utils

import (
	"context"
	"testing"
	"time"
)

func TestLockScriptCompiles(t *testing.T) {
	// Compile-time smoke test: the release script should be initialized.
	if lockReleaseScript == nil {
		t.Fatalf("expected release script to be initialized")
	}
}

func TestAcquireRecordLock_RejectsBadInput(t *testing.T) {
	ctx := context.Background()

	if _, err := AcquireRecordLock(ctx, nil, "k", "t", time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if err := ReleaseRecordLock(ctx, nil, "k", "t"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
