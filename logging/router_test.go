package logging_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"sf-orb/server/logging"
	"sf-orb/server/logging/sinks"
)

func fixedClock(at time.Time) logging.Clock {
	return logging.ClockFunc(func() time.Time { return at })
}

func newMemoryRouter(t *testing.T, cfg logging.Config) (*logging.Router, *sinks.Memory) {
	t.Helper()
	memory := sinks.NewMemory()
	router, err := logging.NewRouter(fixedClock(time.Unix(1_700_000_000, 0)), cfg,
		[]logging.NamedSink{{Name: "memory", Sink: memory}})
	if err != nil {
		t.Fatalf("failed to construct router: %v", err)
	}
	return router, memory
}

func closeRouter(t *testing.T, router *logging.Router) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := router.Close(ctx); err != nil {
		t.Fatalf("failed to close router: %v", err)
	}
}

func TestRouterDeliversInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	router, memory := newMemoryRouter(t, logging.DefaultConfig())

	for i := 0; i < 5; i++ {
		router.Publish(context.Background(), logging.Event{
			Type:     "test.sequence",
			Tick:     uint64(i),
			Severity: logging.SeverityInfo,
		})
	}
	closeRouter(t, router)

	events := memory.Events()
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	for i, event := range events {
		if event.Tick != uint64(i) {
			t.Fatalf("expected tick %d at index %d, got %d", i, i, event.Tick)
		}
		if event.Time.IsZero() {
			t.Fatalf("expected router to stamp event time at index %d", i)
		}
	}

	stats := router.Stats()
	if stats.EventsTotal != 5 || stats.DroppedTotal != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestRouterFiltersBySeverity(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := logging.DefaultConfig()
	cfg.MinimumSeverity = logging.SeverityWarn
	router, memory := newMemoryRouter(t, cfg)

	router.Publish(context.Background(), logging.Event{Type: "test.debug", Severity: logging.SeverityDebug})
	router.Publish(context.Background(), logging.Event{Type: "test.info", Severity: logging.SeverityInfo})
	router.Publish(context.Background(), logging.Event{Type: "test.warn", Severity: logging.SeverityWarn})
	closeRouter(t, router)

	events := memory.Events()
	if len(events) != 1 {
		t.Fatalf("expected only the warn event, got %d events", len(events))
	}
	if events[0].Type != "test.warn" {
		t.Fatalf("unexpected event %q", events[0].Type)
	}
}

func TestRouterMergesBaseFields(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := logging.DefaultConfig()
	cfg.Fields = map[string]any{"service": "orb", "override": "base"}
	router, memory := newMemoryRouter(t, cfg)

	router.Publish(context.Background(), logging.Event{
		Type:     "test.fields",
		Severity: logging.SeverityInfo,
		Extra:    map[string]any{"override": "event"},
	})
	closeRouter(t, router)

	events := memory.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if got := events[0].Extra["service"]; got != "orb" {
		t.Fatalf("expected base field to merge, got %v", got)
	}
	if got := events[0].Extra["override"]; got != "event" {
		t.Fatalf("expected event field to win over base field, got %v", got)
	}
}

func TestRouterIgnoresUntypedAndPostCloseEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	router, memory := newMemoryRouter(t, logging.DefaultConfig())

	router.Publish(context.Background(), logging.Event{Severity: logging.SeverityError})
	closeRouter(t, router)
	router.Publish(context.Background(), logging.Event{Type: "test.late", Severity: logging.SeverityError})

	if events := memory.Events(); len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}

func TestRouterSinkLookup(t *testing.T) {
	defer goleak.VerifyNone(t)

	router, memory := newMemoryRouter(t, logging.DefaultConfig())
	defer closeRouter(t, router)

	if got := router.Sink("memory"); got != logging.Sink(memory) {
		t.Fatal("expected to find the memory sink by name")
	}
	if got := router.Sink("missing"); got != nil {
		t.Fatalf("expected nil for unknown sink, got %v", got)
	}
}
