// Package debuglog is the append-only diagnostic trail shared by the assist
// adapter and the approval workflow. Writes never fail the caller.
package debuglog

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/quailyquaily/auditdesk/internal/fsstore"
)

const DefaultRotateMaxBytes = 5 * 1024 * 1024

type Record struct {
	TS      time.Time      `json:"ts"`
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload,omitempty"`
}

type Options struct {
	Path           string
	RotateMaxBytes int64
	// Logger receives write failures. Each distinct failure is reported once.
	Logger *slog.Logger
}

type Sink struct {
	writer *fsstore.JSONLWriter
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	reported map[string]bool
}

// Open creates the sink. An empty path yields a disabled sink, and so does a
// path that cannot be opened (the failure goes to the logger).
func Open(opts Options) *Sink {
	s := &Sink{
		logger:   opts.Logger,
		now:      time.Now,
		reported: map[string]bool{},
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return s
	}
	maxBytes := opts.RotateMaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultRotateMaxBytes
	}
	w, err := fsstore.NewJSONLWriter(path, fsstore.JSONLOptions{RotateMaxBytes: maxBytes})
	if err != nil {
		s.logger.Warn("debug_log_open_failed", "path", path, "error", err.Error())
		return s
	}
	s.writer = w
	return s
}

func (s *Sink) Enabled() bool { return s != nil && s.writer != nil }

func (s *Sink) Path() string {
	if !s.Enabled() {
		return ""
	}
	return s.writer.Path()
}

// Log appends one record. It never panics and never returns an error.
func (s *Sink) Log(event string, payload map[string]any) {
	if !s.Enabled() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.report("panic", nil)
		}
	}()
	rec := Record{
		TS:      s.now().UTC(),
		Event:   strings.TrimSpace(event),
		Payload: payload,
	}
	if err := s.writer.AppendJSON(rec); err != nil {
		s.report(event, err)
	}
}

func (s *Sink) Close() error {
	if !s.Enabled() {
		return nil
	}
	return s.writer.Close()
}

func (s *Sink) report(event string, err error) {
	msg := "recovered panic"
	if err != nil {
		msg = err.Error()
	}
	s.mu.Lock()
	seen := s.reported[msg]
	s.reported[msg] = true
	s.mu.Unlock()
	if seen {
		return
	}
	s.logger.Warn("debug_log_write_failed", "event", event, "error", msg)
}
