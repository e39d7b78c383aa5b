package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return m
}

func TestContextAttrsAppended(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false)

	ctx := WithAttrs(context.Background(), slog.String("request_id", "r-1"))
	ctx = WithAttrs(ctx, slog.Int64("user_id", 7))
	logger.InfoContext(ctx, "hello")

	m := decode(t, &buf)
	if m["request_id"] != "r-1" || m["user_id"] != float64(7) {
		t.Fatalf("context attrs missing: %v", m)
	}
}

func TestWithAttrsDoesNotLeakBetweenSiblings(t *testing.T) {
	parent := WithAttrs(context.Background(), slog.String("a", "1"))
	left := WithAttrs(parent, slog.String("b", "2"))
	right := WithAttrs(parent, slog.String("c", "3"))

	if got := FromContext(left); len(got) != 2 || got[1].Key != "b" {
		t.Fatalf("left attrs = %v", got)
	}
	if got := FromContext(right); len(got) != 2 || got[1].Key != "c" {
		t.Fatalf("right attrs = %v", got)
	}
}

func TestDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, false).Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug record written at info level: %q", buf.String())
	}
	New(&buf, true).Debug("shown")
	if decode(t, &buf)["msg"] != "shown" {
		t.Fatalf("expected debug record")
	}
}
