//go:build !windows

package fsstore

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// acquire takes a non-blocking flock, polling until it is granted or ctx ends.
func acquire(ctx context.Context, path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, filePerm)
	if err != nil {
		return nil, fmt.Errorf("fsstore: open lock %s: %w", path, err)
	}
	fd := int(f.Fd())
	for {
		err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		switch {
		case err == nil:
			return func() {
				_ = unix.Flock(fd, unix.LOCK_UN)
				_ = f.Close()
			}, nil
		case errors.Is(err, unix.EINTR):
		case errors.Is(err, unix.EWOULDBLOCK):
			if err := sleepOrDone(ctx, path); err != nil {
				_ = f.Close()
				return nil, err
			}
		default:
			_ = f.Close()
			return nil, fmt.Errorf("fsstore: flock %s: %w", path, err)
		}
	}
}
