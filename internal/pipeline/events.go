package pipeline

import (
	"context"
	stderrors "errors"
	"time"

	"git.home.luguber.info/inful/nextgen/internal/eventstore"
	"git.home.luguber.info/inful/nextgen/internal/logfields"
)

// EventSink persists or forwards build events. Both the SQLite event store
// and the NATS publisher satisfy it.
type EventSink interface {
	Append(ctx context.Context, buildID, eventType string, payload []byte, metadata map[string]string) error
}

// EventObserver turns observer notifications into build events. Sink
// failures are logged and never affect the build.
type EventObserver struct {
	Sinks []EventSink
	Steps []string
}

func (o EventObserver) OnBuildStart(bc *Context) {
	o.emit(bc, eventstore.TypeBuildStarted, eventstore.BuildStarted{
		Mode:  string(bc.Config.Mode),
		Root:  bc.Config.Root,
		Steps: o.Steps,
	})
}

func (EventObserver) OnStepStart(*Context, string) {}

func (o EventObserver) OnStepComplete(bc *Context, step string, d time.Duration, err error) {
	body := eventstore.StepFinished{Step: step, DurationMS: ms(d)}
	typ := eventstore.TypeStepCompleted
	if err != nil {
		typ = eventstore.TypeStepFailed
		body.Error = err.Error()
	}
	o.emit(bc, typ, body)
}

func (o EventObserver) OnBuildComplete(bc *Context, d time.Duration, err error) {
	body := eventstore.BuildFinished{DurationMS: ms(d), CacheKey: bc.CacheKey, CacheHit: bc.CacheHit, Files: bc.Files}
	typ := eventstore.TypeBuildCompleted
	if err != nil {
		typ = eventstore.TypeBuildFailed
		body.Error = err.Error()
		var se *StepError
		if stderrors.As(err, &se) {
			body.Step = se.Step
		}
	}
	o.emit(bc, typ, body)
}

func (o EventObserver) emit(bc *Context, eventType string, payload any) {
	if len(o.Sinks) == 0 {
		return
	}
	meta := map[string]string{"mode": string(bc.Config.Mode)}
	ev, err := eventstore.NewEvent(bc.BuildID, eventType, payload, meta)
	if err != nil {
		bc.Logger.Warn("Failed to encode build event", logfields.EventType(eventType), logfields.Error(err))
		return
	}
	// Events are recorded even when the build itself was cancelled.
	ctx := context.Background()
	for _, s := range o.Sinks {
		if err := s.Append(ctx, ev.BuildID(), ev.Type(), ev.Payload(), ev.Metadata()); err != nil {
			bc.Logger.Warn("Failed to record build event", logfields.EventType(eventType), logfields.Error(err))
		}
	}
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
