// Package events implements the append-only event log every session's
// activity is recorded into: a strictly sequenced, replayable envelope
// stream persisted as line-delimited JSON.
package events

import (
	"encoding/json"
	"time"
)

// EventKind names the ~35 categories of envelope this log carries. Handlers
// that don't recognize a kind fall back to TelemetryEvent rather than
// dropping the record (see Store.append's schema-evolution contract).
type EventKind string

const (
	KindSessionCreated      EventKind = "SessionCreated"
	KindSessionStateChanged EventKind = "SessionStateChanged"
	KindRunStarted          EventKind = "RunStarted"
	KindRunCompleted        EventKind = "RunCompleted"
	KindRunFailed           EventKind = "RunFailed"
	KindMessageAppended     EventKind = "MessageAppended"
	KindToolProposed        EventKind = "ToolProposed"
	KindToolApproved        EventKind = "ToolApproved"
	KindToolDenied          EventKind = "ToolDenied"
	KindToolResult          EventKind = "ToolResult"
	KindCheckpointCreated   EventKind = "CheckpointCreated"
	KindPatchStaged         EventKind = "PatchStaged"
	KindPatchApplied        EventKind = "PatchApplied"
	KindRewindPerformed     EventKind = "RewindPerformed"
	KindCompactionPerformed EventKind = "CompactionPerformed"
	KindHookExecuted        EventKind = "HookExecuted"
	KindGuardNudged         EventKind = "GuardNudged"
	KindTelemetry           EventKind = "TelemetryEvent"

	// Named legacy discriminators: events written by an older build of this
	// log under a type name this version no longer emits directly, but
	// still recognizes so old JSONL files keep replaying cleanly.
	legacyRouterDecisionV1   = "RouterDecisionV1"
	legacyRouterEscalationV1 = "RouterEscalationV1"
)

// EventEnvelope is one record in the log: a monotonically increasing seq_no
// scoped to its session, a wall-clock timestamp, and a tagged-union payload
// whose shape depends on Kind.
type EventEnvelope struct {
	SeqNo     uint64          `json:"seq_no"`
	At        time.Time       `json:"at"`
	SessionID string          `json:"session_id"`
	Kind      EventKind       `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// TelemetryEvent is the fallback shape an unrecognized or legacy
// discriminator is translated into on load, so a newer writer's record never
// aborts an older reader's replay.
type TelemetryEvent struct {
	Name       string                 `json:"name"`
	Properties map[string]interface{} `json:"properties"`
}

// normalizeLegacyKind maps a named legacy discriminator to its
// "legacy.<name>" telemetry name. Returns "" if kind isn't a recognized
// legacy name.
func normalizeLegacyKind(kind string) string {
	switch kind {
	case legacyRouterDecisionV1:
		return "legacy.router_decision_v1"
	case legacyRouterEscalationV1:
		return "legacy.router_escalation_v1"
	default:
		return ""
	}
}

// knownKinds lists every discriminator this build emits and recognizes
// as-is, used by decodeEnvelope to decide between "pass through" and
// "translate to telemetry".
var knownKinds = map[EventKind]bool{
	KindSessionCreated:      true,
	KindSessionStateChanged: true,
	KindRunStarted:          true,
	KindRunCompleted:        true,
	KindRunFailed:           true,
	KindMessageAppended:     true,
	KindToolProposed:        true,
	KindToolApproved:        true,
	KindToolDenied:          true,
	KindToolResult:          true,
	KindCheckpointCreated:   true,
	KindPatchStaged:         true,
	KindPatchApplied:        true,
	KindRewindPerformed:     true,
	KindCompactionPerformed: true,
	KindHookExecuted:        true,
	KindGuardNudged:         true,
	KindTelemetry:           true,
}
