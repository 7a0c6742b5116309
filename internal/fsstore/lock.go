package fsstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	lockDirName   = ".fslocks"
	lockRetryWait = 25 * time.Millisecond
)

// Lock keys are dotted lowercase names such as "state.pending_approvals".
var lockKeyRE = regexp.MustCompile(`^[a-z0-9_-]+(\.[a-z0-9_-]+)*$`)

// LockRootFor returns the lock directory that sits next to a state file.
func LockRootFor(statePath string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(strings.TrimSpace(statePath))), lockDirName)
}

func BuildLockPath(lockRoot string, lockKey string) (string, error) {
	root, err := cleanPath(lockRoot)
	if err != nil {
		return "", err
	}
	if len(lockKey) > 120 || !lockKeyRE.MatchString(lockKey) {
		return "", fmt.Errorf("%w: bad lock key %q", ErrInvalidPath, lockKey)
	}
	return filepath.Join(root, lockKey+".lck"), nil
}

// WithLock runs fn while holding an exclusive advisory lock on lockPath.
// Waiting for the lock honours ctx.
func WithLock(ctx context.Context, lockPath string, fn func() error) error {
	path, err := cleanPath(lockPath)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("fsstore: lock dir: %w", err)
	}
	release, err := acquire(ctx, path)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

func sleepOrDone(ctx context.Context, lockPath string) error {
	t := time.NewTimer(lockRetryWait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %v", ErrLockTimeout, lockPath, ctx.Err())
	case <-t.C:
		return nil
	}
}
