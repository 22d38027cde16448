package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/luocf/inferunity/pkg/observer"
)

// Observer implements observer.Observer, recording OpenTelemetry spans and
// metrics for each session run and node execution it is notified about.
type Observer struct {
	provider *Provider

	runSpan   trace.Span
	nodeSpans map[string]trace.Span

	runStartTime   time.Time
	nodeStartTimes map[string]time.Time
}

// NewObserver returns an Observer recording against provider.
func NewObserver(provider *Provider) *Observer {
	return &Observer{
		provider:       provider,
		nodeSpans:      make(map[string]trace.Span),
		nodeStartTimes: make(map[string]time.Time),
	}
}

// OnEvent implements observer.Observer.
func (o *Observer) OnEvent(ctx context.Context, event observer.Event) {
	switch event.Type {
	case observer.EventRunStart:
		o.handleRunStart(ctx, event)
	case observer.EventRunEnd:
		o.handleRunEnd(ctx, event)
	case observer.EventNodeStart:
		o.handleNodeStart(ctx, event)
	case observer.EventNodeSuccess:
		o.handleNodeEnd(ctx, event, true)
	case observer.EventNodeFailure:
		o.handleNodeEnd(ctx, event, false)
	}
}

func (o *Observer) handleRunStart(ctx context.Context, event observer.Event) {
	_, span := o.provider.Tracer().Start(ctx, "session.run",
		trace.WithAttributes(
			attribute.String("run.id", event.RunID),
			attribute.String("session.id", event.SessionID),
		),
	)
	o.runSpan = span
	o.runStartTime = event.Timestamp
}

func (o *Observer) handleRunEnd(ctx context.Context, event observer.Event) {
	duration := time.Since(o.runStartTime)

	nodesExecuted := 0
	if val, ok := event.Metadata["nodes_executed"]; ok {
		if count, ok := val.(int); ok {
			nodesExecuted = count
		}
	}

	success := event.Status == observer.StatusSuccess
	o.provider.RecordRun(ctx, event.SessionID, duration, success, nodesExecuted)

	if o.runSpan != nil {
		if event.Error != nil {
			o.runSpan.RecordError(event.Error)
			o.runSpan.SetStatus(codes.Error, event.Error.Error())
		} else {
			o.runSpan.SetStatus(codes.Ok, "run completed")
		}
		o.runSpan.End()
		o.runSpan = nil
	}
}

func (o *Observer) handleNodeStart(ctx context.Context, event observer.Event) {
	spanCtx := ctx
	if o.runSpan != nil {
		spanCtx = trace.ContextWithSpan(ctx, o.runSpan)
	}

	_, span := o.provider.Tracer().Start(spanCtx, "node.execute",
		trace.WithAttributes(
			attribute.String("node.id", event.NodeID),
			attribute.String("op.type", event.OpType),
			attribute.String("run.id", event.RunID),
		),
	)

	o.nodeSpans[event.NodeID] = span
	o.nodeStartTimes[event.NodeID] = event.Timestamp
}

func (o *Observer) handleNodeEnd(ctx context.Context, event observer.Event, success bool) {
	var duration time.Duration
	if startTime, ok := o.nodeStartTimes[event.NodeID]; ok {
		duration = time.Since(startTime)
		delete(o.nodeStartTimes, event.NodeID)
	}

	o.provider.RecordNodeExecution(ctx, event.NodeID, event.OpType, duration, success)

	if span, ok := o.nodeSpans[event.NodeID]; ok {
		if event.Error != nil {
			span.RecordError(event.Error)
			span.SetStatus(codes.Error, event.Error.Error())
		} else {
			span.SetStatus(codes.Ok, "node completed")
		}
		span.End()
		delete(o.nodeSpans, event.NodeID)
	}
}
