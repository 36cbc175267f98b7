package telemetry

import (
	"context"

	"github.com/MarkJaven/thodemy-sub002/internal/telemetry/domain"
)

// EventEmitter emits telemetry events (e.g. to OTel Logs or Kafka).
// Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.Event) error
}

// Multi fans each event out to every non-nil emitter. A nil result means no
// emitter was given; callers treat that as telemetry disabled.
func Multi(emitters ...EventEmitter) EventEmitter {
	live := make([]EventEmitter, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			live = append(live, e)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	}
	return multiEmitter(live)
}

type multiEmitter []EventEmitter

func (m multiEmitter) Emit(ctx context.Context, event *domain.Event) error {
	var lastErr error
	for _, e := range m {
		if err := e.Emit(ctx, event); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
