package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"sf-orb/server/logging"
)

func TestJSONSinkEmitsNDJSON(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, 0)

	events := []logging.Event{
		{Type: "test.first", Tick: 1, Time: time.Unix(1_700_000_000, 0), Severity: logging.SeverityInfo},
		{Type: "test.second", Tick: 2, Time: time.Unix(1_700_000_001, 0), Severity: logging.SeverityWarn,
			Actor: logging.EntityRef{ID: "renderer-1", Kind: logging.EntityKindClient}},
	}
	for _, event := range events {
		if err := sink.Write(event); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 NDJSON lines, got %d", len(lines))
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("first line is not valid JSON: %v", err)
	}
	if first["type"] != "test.first" {
		t.Fatalf("unexpected type %v", first["type"])
	}

	var second map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("second line is not valid JSON: %v", err)
	}
	actor, ok := second["actor"].(map[string]any)
	if !ok || actor["id"] != "renderer-1" {
		t.Fatalf("unexpected actor %v", second["actor"])
	}
}

func TestJSONSinkFlushesOnClose(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, time.Hour)

	if err := sink.Write(logging.Event{Type: "test.buffered", Time: time.Unix(0, 0)}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatal("expected the event to stay buffered before flush")
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected close to flush the buffered event")
	}
}

func TestConsoleSinkFormatsEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsole(&buf, logging.ConsoleConfig{})

	err := sink.Write(logging.Event{
		Type:     "motion.mode_changed",
		Tick:     42,
		Severity: logging.SeverityInfo,
		Actor:    logging.EntityRef{ID: "sf-orb", Kind: logging.EntityKindOrb},
		Payload:  map[string]string{"from": "idle", "to": "avoiding"},
	})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	line := buf.String()
	for _, want := range []string{"motion.mode_changed", "tick=42", "orb:sf-orb", "severity=info", `"avoiding"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected console line to contain %q, got %q", want, line)
		}
	}
}

func TestMemorySinkRecordsAndResets(t *testing.T) {
	sink := NewMemory()
	sink.Write(logging.Event{Type: "test.one"})
	sink.Write(logging.Event{Type: "test.two"})

	if got := len(sink.Events()); got != 2 {
		t.Fatalf("expected 2 events, got %d", got)
	}

	sink.Reset()
	if got := len(sink.Events()); got != 0 {
		t.Fatalf("expected empty sink after reset, got %d", got)
	}
}
