// Package events publishes dependency mutation events and critical-path
// recalculation requests to the pub/sub fabric. Publication is
// fire-and-forget and non-transactional with the store (spec.md §5):
// a crash between commit and publish loses the event, and no ordering is
// guaranteed between events from concurrent mutations.
package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/getailigned/dependency-service/internal/types"
)

// Subject prefixes, mirroring the exchange/routing-key naming of spec.md
// §6: "dependencies" with routing keys "dependency.{created,updated,deleted}"
// and "system" with routing key "critical_path.recalculate".
const (
	SubjectDependencyPrefix = "dependencies.dependency."
	SubjectRecalculate      = "system.critical_path.recalculate"
)

// SubjectForKind returns the publish subject for a DependencyEvent kind.
func SubjectForKind(kind types.EventKind) string {
	return SubjectDependencyPrefix + string(kind)
}

// Publisher is the fire-and-forget event sink consumed by the edge
// lifecycle. Every successful mutation calls PublishDependencyEvent exactly
// once and PublishRecalc exactly once, after the store transaction commits
// (spec.md §4.1, §8.1 event-on-success).
type Publisher interface {
	PublishDependencyEvent(ctx context.Context, event *types.DependencyEvent)
	PublishRecalc(ctx context.Context, event *types.RecalcEvent)
}

// NoopPublisher discards every event. Useful for tests that don't assert
// on event delivery.
type NoopPublisher struct{}

func (NoopPublisher) PublishDependencyEvent(context.Context, *types.DependencyEvent) {}
func (NoopPublisher) PublishRecalc(context.Context, *types.RecalcEvent)              {}

// RecordingPublisher captures every published event in memory, for tests
// that assert "exactly one event per successful mutation" (spec.md §8.1).
type RecordingPublisher struct {
	DependencyEvents []*types.DependencyEvent
	RecalcEvents     []*types.RecalcEvent
}

func (p *RecordingPublisher) PublishDependencyEvent(_ context.Context, event *types.DependencyEvent) {
	p.DependencyEvents = append(p.DependencyEvents, event)
}

func (p *RecordingPublisher) PublishRecalc(_ context.Context, event *types.RecalcEvent) {
	p.RecalcEvents = append(p.RecalcEvents, event)
}

// logOnly logs a publish failure without propagating it — publishing,
// once started, need not be cancelled and is best-effort (spec.md §5).
func logOnly(log *slog.Logger, subject string, err error) {
	if err != nil {
		log.Error("event publish failed", "subject", subject, "error", err)
		return
	}
}

// marshalOrLog marshals v to JSON, logging (rather than returning) any
// error, matching the teacher eventbus's "errors are logged but never
// propagated" stance on JetStream publication.
func marshalOrLog(log *slog.Logger, subject string, v interface{}) ([]byte, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("event marshal failed", "subject", subject, "error", err)
		return nil, false
	}
	return data, true
}
