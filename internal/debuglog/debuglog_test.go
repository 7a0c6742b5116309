package debuglog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func readRecords(t *testing.T, paths ...string) []Record {
	t.Helper()
	var out []Record
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			t.Fatalf("open %s: %v", p, err)
		}
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			var rec Record
			if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
				t.Fatalf("decode %q: %v", sc.Text(), err)
			}
			out = append(out, rec)
		}
		_ = f.Close()
	}
	return out
}

func TestSinkWritesRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "debug.jsonl")
	sink := Open(Options{Path: path})
	if !sink.Enabled() {
		t.Fatalf("sink should be enabled")
	}
	sink.Log("assist_attempt", map[string]any{"attempt": 1, "auth": "header"})
	sink.Log("assist_result", nil)
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	recs := readRecords(t, path)
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if recs[0].Event != "assist_attempt" || recs[0].Payload["auth"] != "header" {
		t.Fatalf("unexpected first record: %+v", recs[0])
	}
	if recs[0].TS.IsZero() {
		t.Fatalf("record timestamp missing")
	}
}

func TestSinkRotationPreservesRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.jsonl")
	sink := Open(Options{Path: path, RotateMaxBytes: 512})

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				sink.Log("tick", map[string]any{"g": g, "i": i})
			}
		}(g)
	}
	wg.Wait()
	rotated := sink.writer.RotatedPaths()
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(rotated) == 0 {
		t.Fatalf("expected rotation with a 512 byte threshold")
	}

	recs := readRecords(t, append(rotated, path)...)
	if len(recs) != 100 {
		t.Fatalf("records = %d, want 100", len(recs))
	}
	seen := map[[2]float64]bool{}
	for _, rec := range recs {
		key := [2]float64{rec.Payload["g"].(float64), rec.Payload["i"].(float64)}
		if seen[key] {
			t.Fatalf("duplicate record %v", key)
		}
		seen[key] = true
	}
}

func TestDisabledSinkIsNoop(t *testing.T) {
	var nilSink *Sink
	nilSink.Log("x", nil)
	if nilSink.Enabled() {
		t.Fatalf("nil sink must be disabled")
	}

	sink := Open(Options{})
	sink.Log("x", map[string]any{"a": 1})
	if sink.Enabled() || sink.Path() != "" {
		t.Fatalf("empty path must give a disabled sink")
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestSinkSwallowsWriteErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.jsonl")
	sink := Open(Options{Path: path})
	_ = sink.writer.Close()
	// Writing after the writer closed must not panic or surface an error.
	sink.Log("after_close", nil)
	sink.Log("after_close", nil)
	if len(sink.reported) != 1 {
		t.Fatalf("reported = %d, want 1 distinct failure", len(sink.reported))
	}
}
