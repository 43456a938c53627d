package server

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

type telemetryCounters struct {
	framesBroadcast      atomic.Uint64
	bytesSent            atomic.Uint64
	pointerEvents        atomic.Uint64
	clicks               atomic.Uint64
	summons              atomic.Uint64
	preferencesApplied   atomic.Uint64
	preferencesRejected  atomic.Uint64
	queriesForwarded     atomic.Uint64
	queryResults         atomic.Uint64
	malformedMessages    atomic.Uint64
	upstreamReconnects   atomic.Uint64
	lastBroadcastBytes   atomic.Uint64
	tickDurationMicros   atomic.Int64
	debug                bool
}

type telemetrySnapshot struct {
	FramesBroadcast     uint64 `json:"framesBroadcast"`
	BytesSent           uint64 `json:"bytesSent"`
	PointerEvents       uint64 `json:"pointerEvents"`
	Clicks              uint64 `json:"clicks"`
	Summons             uint64 `json:"summons"`
	PreferencesApplied  uint64 `json:"preferencesApplied"`
	PreferencesRejected uint64 `json:"preferencesRejected"`
	QueriesForwarded    uint64 `json:"queriesForwarded"`
	QueryResults        uint64 `json:"queryResults"`
	MalformedMessages   uint64 `json:"malformedMessages"`
	UpstreamReconnects  uint64 `json:"upstreamReconnects"`
	TickDurationMicros  int64  `json:"tickDurationMicros"`
}

func newTelemetryCounters() *telemetryCounters {
	t := &telemetryCounters{}
	if os.Getenv("DEBUG_TELEMETRY") == "1" {
		t.debug = true
	}
	return t
}

func (t *telemetryCounters) RecordBroadcast(bytes int) {
	if bytes < 0 {
		bytes = 0
	}
	t.framesBroadcast.Add(1)
	t.bytesSent.Add(uint64(bytes))
	t.lastBroadcastBytes.Store(uint64(bytes))
}

func (t *telemetryCounters) RecordTickDuration(duration time.Duration) {
	micros := duration.Microseconds()
	if micros < 0 {
		micros = 0
	}
	t.tickDurationMicros.Store(micros)
	if t.debug {
		fmt.Printf(
			"[telemetry] tick=%dµs bytes=%d totalBytes=%d frames=%d\n",
			micros,
			t.lastBroadcastBytes.Load(),
			t.bytesSent.Load(),
			t.framesBroadcast.Load(),
		)
	}
}

func (t *telemetryCounters) IncrementPointer()            { t.pointerEvents.Add(1) }
func (t *telemetryCounters) IncrementClick()              { t.clicks.Add(1) }
func (t *telemetryCounters) IncrementSummon()             { t.summons.Add(1) }
func (t *telemetryCounters) IncrementPreferenceApplied()  { t.preferencesApplied.Add(1) }
func (t *telemetryCounters) IncrementPreferenceRejected() { t.preferencesRejected.Add(1) }
func (t *telemetryCounters) IncrementQueryForwarded()     { t.queriesForwarded.Add(1) }
func (t *telemetryCounters) IncrementQueryResult()        { t.queryResults.Add(1) }
func (t *telemetryCounters) IncrementMalformed()          { t.malformedMessages.Add(1) }
func (t *telemetryCounters) IncrementUpstreamReconnect()  { t.upstreamReconnects.Add(1) }

func (t *telemetryCounters) Snapshot() telemetrySnapshot {
	return telemetrySnapshot{
		FramesBroadcast:     t.framesBroadcast.Load(),
		BytesSent:           t.bytesSent.Load(),
		PointerEvents:       t.pointerEvents.Load(),
		Clicks:              t.clicks.Load(),
		Summons:             t.summons.Load(),
		PreferencesApplied:  t.preferencesApplied.Load(),
		PreferencesRejected: t.preferencesRejected.Load(),
		QueriesForwarded:    t.queriesForwarded.Load(),
		QueryResults:        t.queryResults.Load(),
		MalformedMessages:   t.malformedMessages.Load(),
		UpstreamReconnects:  t.upstreamReconnects.Load(),
		TickDurationMicros:  t.tickDurationMicros.Load(),
	}
}
