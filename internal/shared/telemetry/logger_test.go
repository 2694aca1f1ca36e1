package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"testing"
)

func TestWriteFlattensErrors(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stdout) })

	Warn("pipeline.persist_failed", map[string]any{"user_id": "u1", "err": errors.New("boom")})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json line %q: %v", buf.String(), err)
	}
	if entry["level"] != "warn" || entry["msg"] != "pipeline.persist_failed" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if entry["err"] != "boom" {
		t.Fatalf("expected flattened error, got %v", entry["err"])
	}
}
