package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"

	"github.com/getailigned/dependency-service/internal/types"
)

// JetStream stream names, mirroring the teacher eventbus's one-stream-per-
// concern convention (internal/eventbus/streams.go).
const (
	StreamDependencyEvents = "DEPENDENCY_EVENTS"
	StreamRecalcEvents     = "RECALC_EVENTS"
)

// NATSPublisher publishes dependency and recalc events to NATS JetStream.
// Publication is fire-and-forget: failures are logged, never returned,
// since the edge lifecycle has already committed its store transaction by
// the time PublishDependencyEvent/PublishRecalc are called.
type NATSPublisher struct {
	js  nats.JetStreamContext
	log *slog.Logger
}

// Connect dials url with exponential backoff (grounded on the teacher's
// use of cenkalti/backoff for retryable external connections) and ensures
// the JetStream streams this service publishes to exist.
func Connect(url string, log *slog.Logger) (*NATSPublisher, error) {
	var nc *nats.Conn
	operation := func() error {
		var err error
		nc, err = nats.Connect(url, nats.Timeout(5*time.Second))
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	if err := ensureStreams(js); err != nil {
		nc.Close()
		return nil, err
	}

	return &NATSPublisher{js: js, log: log}, nil
}

func ensureStreams(js nats.JetStreamContext) error {
	streams := []struct {
		name     string
		subjects string
	}{
		{StreamDependencyEvents, SubjectDependencyPrefix + ">"},
		{StreamRecalcEvents, SubjectRecalculate},
	}
	for _, s := range streams {
		if _, err := js.StreamInfo(s.name); err != nil {
			if _, err := js.AddStream(&nats.StreamConfig{
				Name:     s.name,
				Subjects: []string{s.subjects},
				Storage:  nats.FileStorage,
				MaxMsgs:  100_000,
				MaxBytes: 200 << 20,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// PublishDependencyEvent publishes to "dependencies.dependency.{kind}".
// Errors are logged but never propagated — JetStream delivery is
// supplementary to the already-committed store mutation, not a
// prerequisite for it (spec.md §5, event delivery).
func (p *NATSPublisher) PublishDependencyEvent(ctx context.Context, event *types.DependencyEvent) {
	subject := SubjectForKind(event.Kind)
	data, ok := marshalOrLog(p.log, subject, event)
	if !ok {
		return
	}
	_, err := p.js.Publish(subject, data)
	logOnly(p.log, subject, err)
}

// PublishRecalc publishes to "system.critical_path.recalculate".
func (p *NATSPublisher) PublishRecalc(ctx context.Context, event *types.RecalcEvent) {
	data, ok := marshalOrLog(p.log, SubjectRecalculate, event)
	if !ok {
		return
	}
	_, err := p.js.Publish(SubjectRecalculate, data)
	logOnly(p.log, SubjectRecalculate, err)
}
