package chat

import (
	"context"

	"github.com/hrygo/skinsense/ai/core/llm"
	"github.com/hrygo/skinsense/ai/metrics"
	"github.com/hrygo/skinsense/ai/normalize"
	"github.com/hrygo/skinsense/ai/observability/logging"
)

// orchestrator is the request-scoped sink for provider events. It normalizes
// payloads, suppresses duplicates, writes events in arrival order and
// schedules the audit record of everything that reached the client.
type orchestrator struct {
	ctx       context.Context
	log       *logging.Logger
	tr        *Transport
	tasks     *taskGroup
	store     ContextStore
	metrics   *metrics.Exporter
	sessionID string

	sigs       signatures
	sendFailed bool
}

// send writes e and reports whether it reached the wire. Only the first
// failure is logged.
func (o *orchestrator) send(e StreamEvent) bool {
	if err := o.tr.Send(e); err != nil {
		if !o.sendFailed {
			o.sendFailed = true
			o.log.Warn(o.ctx, "chat.send_failed", "event", e.Type, "error", err)
		}
		return false
	}
	o.metrics.RecordStreamEvent(string(e.Type))
	return true
}

// emit implements llm.Emit.
func (o *orchestrator) emit(ev llm.Event) {
	switch ev.Kind {
	case llm.EventToken:
		if ev.Token != "" {
			o.send(StreamEvent{Type: EventDelta, Text: ev.Token})
		}
	case llm.EventSummary:
		o.emitSummary(ev.Payload)
	case llm.EventProducts:
		o.emitProducts(ev.Payload)
	case llm.EventRoutine:
		o.emitRoutine(ev.Payload)
	}
}

func (o *orchestrator) emitSummary(payload any) {
	patch, _ := payload.(map[string]any)
	sig := summarySignature(patch)
	if o.sigs.duplicate(EventSummary, sig) {
		o.metrics.RecordSuppressed(string(EventSummary))
		return
	}
	if o.send(StreamEvent{Type: EventSummary, Summary: patch}) {
		o.sigs.sent(EventSummary, sig)
	}
}

// emitProducts sends a products event unless the batch normalizes to nothing
// or matches the last batch sent. Empty batches leave the signature alone.
func (o *orchestrator) emitProducts(payload any) {
	raw, _ := payload.([]any)
	products := normalize.SanitizeProducts(raw)
	if len(products) == 0 {
		return
	}
	sig := productsSignature(products)
	if o.sigs.duplicate(EventProducts, sig) {
		o.metrics.RecordSuppressed(string(EventProducts))
		return
	}
	if o.send(StreamEvent{Type: EventProducts, Products: products}) {
		o.sigs.sent(EventProducts, sig)
		o.appendMessage("append_tool_products", RoleTool, toolEnvelope{Name: "products", Products: products}.encode())
	}
}

func (o *orchestrator) emitRoutine(payload any) {
	routine := normalize.SanitizeRoutine(payload)
	if routine == nil {
		return
	}
	sig := routineSignature(routine)
	if o.sigs.duplicate(EventRoutine, sig) {
		o.metrics.RecordSuppressed(string(EventRoutine))
		return
	}
	if o.send(StreamEvent{Type: EventRoutine, Routine: routine}) {
		o.sigs.sent(EventRoutine, sig)
		o.appendMessage("append_tool_routine", RoleTool, toolEnvelope{Name: "routine", Routine: routine}.encode())
	}
}

// appendMessage schedules an ordered append. A summary recompute requested by
// the store runs unordered, so later appends do not queue behind it.
func (o *orchestrator) appendMessage(task string, role Role, content string) {
	sessionID := o.sessionID
	o.tasks.GoOrdered(task, func(ctx context.Context) error {
		res, err := o.store.AppendMessage(ctx, sessionID, role, content)
		if err != nil {
			return err
		}
		if res != nil && res.NeedsSummary {
			o.tasks.Go("recompute_summary", func(ctx context.Context) error {
				return o.store.RecomputeSummaries(ctx, sessionID)
			})
		}
		return nil
	})
}

// fail sends the terminal error event.
func (o *orchestrator) fail(message string) {
	o.send(StreamEvent{Type: EventError, SessionID: o.sessionID, Message: message})
}
