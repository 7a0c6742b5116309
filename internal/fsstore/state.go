// Package fsstore keeps the bot's small local state files: JSON documents
// rewritten atomically under an advisory lock, and rotating JSONL logs.
package fsstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidPath  = errors.New("fsstore: invalid path")
	ErrLockTimeout  = errors.New("fsstore: lock timeout")
	ErrWriterClosed = errors.New("fsstore: jsonl writer closed")
)

const (
	dirPerm  os.FileMode = 0o700
	filePerm os.FileMode = 0o600
)

// FileOptions overrides permissions for created files; zero fields keep the
// owner-only defaults.
type FileOptions struct {
	DirPerm  os.FileMode
	FilePerm os.FileMode
}

func (o FileOptions) withDefaults() FileOptions {
	if o.DirPerm == 0 {
		o.DirPerm = dirPerm
	}
	if o.FilePerm == 0 {
		o.FilePerm = filePerm
	}
	return o
}

func cleanPath(path string) (string, error) {
	if path = strings.TrimSpace(path); path == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	return filepath.Clean(path), nil
}

// ExpandHome resolves a leading "~" against the user's home directory.
func ExpandHome(path string) string {
	path = strings.TrimSpace(path)
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

// ReadJSON decodes path into out. A missing or blank file reports ok=false.
func ReadJSON(path string, out any) (bool, error) {
	path, err := cleanPath(path)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("fsstore: read %s: %w", path, err)
	case len(bytes.TrimSpace(data)) == 0:
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("fsstore: decode %s: %w", path, err)
	}
	return true, nil
}

// WriteJSONAtomic replaces path with the indented encoding of v. Readers see
// either the old document or the new one, never a partial write.
func WriteJSONAtomic(path string, v any, opts FileOptions) error {
	path, err := cleanPath(path)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("fsstore: encode %s: %w", path, err)
	}
	opts = opts.withDefaults()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, opts.DirPerm); err != nil {
		return fmt.Errorf("fsstore: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("fsstore: temp for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(append(data, '\n'))
	if err == nil {
		err = tmp.Sync()
	}
	if err == nil {
		err = tmp.Chmod(opts.FilePerm)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		return fmt.Errorf("fsstore: write %s: %w", path, err)
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// MutateJSON runs a read-modify-write cycle on a JSON state file under the
// given lock. fn receives the zero value of T when the file does not exist yet.
// The file is rewritten only when fn returns changed=true.
func MutateJSON[T any](ctx context.Context, path string, lockPath string, opts FileOptions, fn func(state *T) (bool, error)) error {
	if fn == nil {
		return errors.New("fsstore: nil mutator")
	}
	return WithLock(ctx, lockPath, func() error {
		var state T
		if _, err := ReadJSON(path, &state); err != nil {
			return err
		}
		changed, err := fn(&state)
		if err != nil || !changed {
			return err
		}
		return WriteJSONAtomic(path, state, opts)
	})
}
