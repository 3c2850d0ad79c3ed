package runstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	targetLockDirName   = ".rescue.lock"
	targetLockOwnerFile = "owner.json"
)

// TargetLock serializes runs against one output target. The queue and the
// usage cache are plain JSON files, so two processes interleaving writes
// would corrupt resume state.
type TargetLock struct {
	lockDir string
}

type targetLockOwner struct {
	PID       int    `json:"pid"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

func AcquireTargetLock(targetDir string) (TargetLock, error) {
	target := strings.TrimSpace(targetDir)
	if target == "" {
		return TargetLock{}, fmt.Errorf("target directory is required")
	}
	if err := Mkdir(target); err != nil {
		return TargetLock{}, err
	}

	lockDir := filepath.Join(target, targetLockDirName)
	if err := os.Mkdir(lockDir, 0o755); err != nil {
		if os.IsExist(err) {
			ownerPath := filepath.Join(lockDir, targetLockOwnerFile)
			var owner targetLockOwner
			if readErr := ReadJSON(ownerPath, &owner); readErr == nil && owner.PID > 0 && owner.CreatedAt != "" {
				return TargetLock{}, fmt.Errorf(
					"output target is locked: %s (pid=%d created_at=%s host=%s)",
					target, owner.PID, owner.CreatedAt, owner.Hostname,
				)
			}
			return TargetLock{}, fmt.Errorf("output target is locked: %s", target)
		}
		return TargetLock{}, fmt.Errorf("acquire target lock for %s: %w", target, err)
	}

	owner := targetLockOwner{
		PID:       os.Getpid(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	}
	ownerPath := filepath.Join(lockDir, targetLockOwnerFile)
	if err := WriteJSON(ownerPath, owner); err != nil {
		_ = os.Remove(lockDir)
		return TargetLock{}, fmt.Errorf("write target lock owner for %s: %w", target, err)
	}

	return TargetLock{lockDir: lockDir}, nil
}

func (l TargetLock) Release() error {
	if strings.TrimSpace(l.lockDir) == "" {
		return nil
	}
	_ = os.Remove(filepath.Join(l.lockDir, targetLockOwnerFile))
	if err := os.Remove(l.lockDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release target lock %s: %w", l.lockDir, err)
	}
	return nil
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
