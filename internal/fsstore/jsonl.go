package fsstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

const defaultRotateMaxBytes = 5 * 1024 * 1024

type JSONLOptions struct {
	DirPerm  os.FileMode
	FilePerm os.FileMode
	// RotateMaxBytes caps the active file. A value <= 0 selects 5 MiB.
	RotateMaxBytes int64
}

// JSONLWriter appends one JSON record per line to an active file. Before a
// record would push a non-empty active file past RotateMaxBytes, the file is
// renamed to "<path>.<UTC timestamp>" (with ".N" appended on collision).
type JSONLWriter struct {
	path     string
	maxBytes int64
	perms    FileOptions
	now      func() time.Time

	mu      sync.Mutex
	f       *os.File
	size    int64
	closed  bool
	rotated []string
}

func NewJSONLWriter(path string, opts JSONLOptions) (*JSONLWriter, error) {
	path, err := cleanPath(path)
	if err != nil {
		return nil, err
	}
	w := &JSONLWriter{
		path:     path,
		maxBytes: opts.RotateMaxBytes,
		perms:    FileOptions{DirPerm: opts.DirPerm, FilePerm: opts.FilePerm}.withDefaults(),
		now:      time.Now,
	}
	if w.maxBytes <= 0 {
		w.maxBytes = defaultRotateMaxBytes
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *JSONLWriter) Path() string {
	if w == nil {
		return ""
	}
	return w.path
}

// RotatedPaths lists the files this writer rotated away, oldest first.
func (w *JSONLWriter) RotatedPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.rotated...)
}

func (w *JSONLWriter) AppendJSON(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("fsstore: encode record for %s: %w", w.path, err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	if w.f == nil {
		// an earlier rotation closed the file and failed to reopen it
		if err := w.open(); err != nil {
			return err
		}
	}
	if w.size > 0 && w.size+int64(len(line)) > w.maxBytes {
		if err := w.rotate(); err != nil {
			return err
		}
	}
	n, err := w.f.Write(line)
	w.size += int64(n)
	return err
}

func (w *JSONLWriter) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

func (w *JSONLWriter) rotate() error {
	_ = w.f.Close()
	w.f, w.size = nil, 0

	base := w.path + "." + w.now().UTC().Format("20060102T150405Z")
	target := base
	for i := 1; ; i++ {
		_, err := os.Stat(target)
		if errors.Is(err, os.ErrNotExist) {
			break
		}
		if err != nil {
			return err
		}
		target = base + "." + strconv.Itoa(i)
	}
	switch err := os.Rename(w.path, target); {
	case err == nil:
		w.rotated = append(w.rotated, target)
	case !errors.Is(err, os.ErrNotExist):
		return err
	}
	return w.open()
}

func (w *JSONLWriter) open() error {
	if err := os.MkdirAll(filepath.Dir(w.path), w.perms.DirPerm); err != nil {
		return fmt.Errorf("fsstore: mkdir for %s: %w", w.path, err)
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, w.perms.FilePerm)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f, w.size = f, info.Size()
	return nil
}
