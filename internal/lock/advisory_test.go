package lock

import "testing"

func TestLockIDStableAndDistinct(t *testing.T) {
	if lockID("onboarding") != lockID("onboarding") {
		t.Fatal("lock id not stable for the same key")
	}
	if lockID("onboarding") == lockID("renewals") {
		t.Fatal("different keys mapped to the same lock id")
	}
}
