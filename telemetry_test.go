package server

import (
	"testing"
	"time"
)

func TestTelemetrySnapshotReflectsCounters(t *testing.T) {
	counters := newTelemetryCounters()

	counters.RecordBroadcast(512)
	counters.RecordBroadcast(256)
	counters.IncrementPointer()
	counters.IncrementClick()
	counters.IncrementSummon()
	counters.IncrementPreferenceApplied()
	counters.IncrementPreferenceRejected()
	counters.IncrementQueryForwarded()
	counters.IncrementQueryResult()
	counters.IncrementMalformed()
	counters.IncrementUpstreamReconnect()
	counters.RecordTickDuration(16 * time.Millisecond)

	snapshot := counters.Snapshot()

	if snapshot.FramesBroadcast != 2 {
		t.Fatalf("expected 2 broadcast frames, got %d", snapshot.FramesBroadcast)
	}
	if snapshot.BytesSent != 768 {
		t.Fatalf("expected 768 bytes sent, got %d", snapshot.BytesSent)
	}
	for name, got := range map[string]uint64{
		"pointerEvents":       snapshot.PointerEvents,
		"clicks":              snapshot.Clicks,
		"summons":             snapshot.Summons,
		"preferencesApplied":  snapshot.PreferencesApplied,
		"preferencesRejected": snapshot.PreferencesRejected,
		"queriesForwarded":    snapshot.QueriesForwarded,
		"queryResults":        snapshot.QueryResults,
		"malformedMessages":   snapshot.MalformedMessages,
		"upstreamReconnects":  snapshot.UpstreamReconnects,
	} {
		if got != 1 {
			t.Fatalf("expected %s to be 1, got %d", name, got)
		}
	}
	if snapshot.TickDurationMicros != 16_000 {
		t.Fatalf("expected 16000 microseconds recorded, got %d", snapshot.TickDurationMicros)
	}
}

func TestTelemetryTickDurationKeepsLatest(t *testing.T) {
	counters := newTelemetryCounters()
	counters.RecordTickDuration(4 * time.Millisecond)
	counters.RecordTickDuration(9 * time.Millisecond)

	if got := counters.Snapshot().TickDurationMicros; got != 9_000 {
		t.Fatalf("expected latest tick duration, got %d", got)
	}
}
