//go:build windows

package fsstore

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// acquire uses an exclusive-create marker file; there is no flock here.
func acquire(ctx context.Context, path string) (func(), error) {
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, filePerm)
		if err == nil {
			return func() {
				_ = f.Close()
				_ = os.Remove(path)
			}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("fsstore: open lock %s: %w", path, err)
		}
		if err := sleepOrDone(ctx, path); err != nil {
			return nil, err
		}
	}
}
