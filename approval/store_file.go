package approval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quailyquaily/auditdesk/internal/fsstore"
)

const pendingFileVersion = 1

type pendingFile struct {
	Version  int                `json:"version"`
	Requests map[string]Request `json:"requests"`
}

// FileStore persists the pending set to a JSON file so restarts do not lose
// undecided requests. Every mutation runs under an fsstore lock.
type FileStore struct {
	path     string
	lockPath string
}

func NewFileStore(path string, lockRoot string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("missing pending approvals file path")
	}
	if strings.TrimSpace(lockRoot) == "" {
		lockRoot = fsstore.LockRootFor(path)
	}
	lockPath, err := fsstore.BuildLockPath(lockRoot, "state.pending_approvals")
	if err != nil {
		return nil, err
	}
	return &FileStore{path: path, lockPath: lockPath}, nil
}

func (s *FileStore) mutate(ctx context.Context, fn func(f *pendingFile) (bool, error)) error {
	return fsstore.MutateJSON(ctx, s.path, s.lockPath, fsstore.FileOptions{}, func(f *pendingFile) (bool, error) {
		f.Version = pendingFileVersion
		if f.Requests == nil {
			f.Requests = map[string]Request{}
		}
		return fn(f)
	})
}

func (s *FileStore) load() (pendingFile, error) {
	var f pendingFile
	if _, err := fsstore.ReadJSON(s.path, &f); err != nil {
		return pendingFile{}, err
	}
	return f, nil
}

func (s *FileStore) Create(ctx context.Context, r Request) error {
	return s.mutate(ctx, func(f *pendingFile) (bool, error) {
		if _, exists := f.Requests[r.ID]; exists {
			return false, ErrDuplicateID
		}
		f.Requests[r.ID] = r
		return true, nil
	})
}

func (s *FileStore) Get(_ context.Context, id string) (Request, bool, error) {
	f, err := s.load()
	if err != nil {
		return Request{}, false, err
	}
	r, ok := f.Requests[strings.TrimSpace(id)]
	return r, ok, nil
}

func (s *FileStore) Claim(ctx context.Context, id string, now time.Time) (Request, bool, error) {
	id = strings.TrimSpace(id)
	var claimed Request
	var ok bool
	err := s.mutate(ctx, func(f *pendingFile) (bool, error) {
		r, exists := f.Requests[id]
		if !exists || r.Claimed(now) {
			return false, nil
		}
		r.ClaimedAt = now.UTC()
		f.Requests[id] = r
		claimed, ok = r, true
		return true, nil
	})
	if err != nil {
		return Request{}, false, err
	}
	return claimed, ok, nil
}

func (s *FileStore) SetInviteLink(ctx context.Context, id string, link string) error {
	return s.mutate(ctx, func(f *pendingFile) (bool, error) {
		r, ok := f.Requests[id]
		if !ok {
			return false, nil
		}
		r.GroupInviteLink = strings.TrimSpace(link)
		f.Requests[id] = r
		return true, nil
	})
}

func (s *FileStore) Remove(ctx context.Context, id string) error {
	return s.mutate(ctx, func(f *pendingFile) (bool, error) {
		if _, ok := f.Requests[id]; !ok {
			return false, nil
		}
		delete(f.Requests, id)
		return true, nil
	})
}

func (s *FileStore) List(_ context.Context) ([]Request, error) {
	f, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]Request, 0, len(f.Requests))
	for _, r := range f.Requests {
		out = append(out, r)
	}
	sortOldestFirst(out)
	return out, nil
}
