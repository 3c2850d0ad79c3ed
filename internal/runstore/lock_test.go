package runstore

import "testing"

func TestAcquireTargetLock_BlocksConcurrentAcquire(t *testing.T) {
	targetDir := t.TempDir()

	lock, err := AcquireTargetLock(targetDir)
	if err != nil {
		t.Fatalf("acquire first lock: %v", err)
	}
	defer func() {
		_ = lock.Release()
	}()

	if _, err := AcquireTargetLock(targetDir); err == nil {
		t.Fatalf("expected second acquire to fail")
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("release lock: %v", err)
	}

	lock2, err := AcquireTargetLock(targetDir)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if err := lock2.Release(); err != nil {
		t.Fatalf("release second lock: %v", err)
	}
}

func TestAcquireTargetLock_CreatesMissingTargetDir(t *testing.T) {
	targetDir := t.TempDir() + "/nested/target"

	lock, err := AcquireTargetLock(targetDir)
	if err != nil {
		t.Fatalf("acquire lock on missing dir: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("release lock: %v", err)
	}
}
