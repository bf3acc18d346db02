package guard

import (
	"time"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
)

// Hook receives guard lifecycle events for passive measurement. Emit is
// fire-and-forget: implementations must not block, and nothing they do can
// influence control flow.
type Hook interface {
	Emit(ev models.Event)
}

func (o *Orchestrator[I, O]) emit(ev models.Event) {
	ev.At = time.Now()
	for _, h := range o.hooks {
		h.Emit(ev)
	}
}

func (o *Orchestrator[I, O]) emitStarted(input models.CheckInput) {
	o.emit(models.Event{
		Type:      models.EventInvocationStarted,
		RequestID: input.RequestID,
		Input:     input,
	})
}

func (o *Orchestrator[I, O]) emitAttempt(requestID string, rec models.AttemptRecord) {
	o.emit(models.Event{
		Type:      models.EventAttemptCompleted,
		RequestID: requestID,
		Attempt:   rec,
	})
}

func (o *Orchestrator[I, O]) emitFinished(input models.CheckInput, status models.RunStatus, output any) {
	o.emit(models.Event{
		Type:      models.EventInvocationFinished,
		RequestID: input.RequestID,
		Status:    status,
		Input:     input,
		Output:    output,
	})
}
