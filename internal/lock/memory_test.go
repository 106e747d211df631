package lock

import (
	"context"
	"testing"
)

func TestMemoryLockerExclusion(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	ok, err := locker.TryLock(ctx, "onboarding")
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}

	ok, err = locker.TryLock(ctx, "onboarding")
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatal("second acquire succeeded while lock held")
	}

	ok, err = locker.TryLock(ctx, "renewals")
	if err != nil || !ok {
		t.Fatalf("other key should be independent: ok=%v err=%v", ok, err)
	}

	if err := locker.Unlock(ctx, "onboarding"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	ok, err = locker.TryLock(ctx, "onboarding")
	if err != nil || !ok {
		t.Fatalf("reacquire after unlock: ok=%v err=%v", ok, err)
	}
}

func TestMemoryLockerUnlockUnheldKey(t *testing.T) {
	locker := NewMemoryLocker()
	if err := locker.Unlock(context.Background(), "never-held"); err != nil {
		t.Fatalf("unlock of unheld key: %v", err)
	}
}
