package settings

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/quailyquaily/auditdesk/internal/fsstore"
)

const settingsFileVersion = 1

type settingsFile struct {
	Version int              `json:"version"`
	Entries map[string]Entry `json:"entries"`
}

// FileStore keeps settings in a JSON file guarded by an fsstore lock.
type FileStore struct {
	path     string
	lockPath string
}

func NewFileStore(path string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("missing settings file path")
	}
	lockPath, err := fsstore.BuildLockPath(fsstore.LockRootFor(path), "state.settings")
	if err != nil {
		return nil, err
	}
	return &FileStore{path: path, lockPath: lockPath}, nil
}

func (s *FileStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	var file settingsFile
	if _, err := fsstore.ReadJSON(s.path, &file); err != nil {
		return Entry{}, false, err
	}
	e, ok := file.Entries[normalizeKey(key)]
	return e, ok, nil
}

func (s *FileStore) Set(ctx context.Context, e Entry) error {
	key := normalizeKey(e.Key)
	if key == "" {
		return fmt.Errorf("missing settings key")
	}
	e.Key = key
	e.Description = strings.TrimSpace(e.Description)
	e.UpdatedAt = time.Now().UTC()
	return fsstore.MutateJSON(ctx, s.path, s.lockPath, fsstore.FileOptions{}, func(file *settingsFile) (bool, error) {
		file.Version = settingsFileVersion
		if file.Entries == nil {
			file.Entries = map[string]Entry{}
		}
		file.Entries[key] = e
		return true, nil
	})
}

func (s *FileStore) List(ctx context.Context) ([]Entry, error) {
	var file settingsFile
	if _, err := fsstore.ReadJSON(s.path, &file); err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(file.Entries))
	for _, e := range file.Entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
