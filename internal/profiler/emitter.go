package profiler

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
)

// Emitter publishes guard lifecycle events to a Redis stream for external
// measurement. Emit never blocks: when the buffer is full the event is
// dropped, because the hook must not slow the guard pipeline down.
type Emitter struct {
	client *redis.Client
	stream string
	events chan models.Event
	logger *zerolog.Logger
}

func NewEmitter(client *redis.Client, stream string, logger *zerolog.Logger) *Emitter {
	return &Emitter{
		client: client,
		stream: stream,
		events: make(chan models.Event, 256),
		logger: logger,
	}
}

// Start drains the event buffer until ctx is cancelled.
func (e *Emitter) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-e.events:
				e.publish(ctx, ev)
			}
		}
	}()
}

func (e *Emitter) Emit(ev models.Event) {
	select {
	case e.events <- ev:
	default:
		e.logger.Debug().Str("type", string(ev.Type)).Msg("metrics buffer full, event dropped")
	}
}

func (e *Emitter) publish(ctx context.Context, ev models.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to encode event")
		return
	}

	err = e.client.XAdd(ctx, &redis.XAddArgs{
		Stream: e.stream,
		Values: map[string]any{"payload": string(payload)},
	}).Err()
	if err != nil {
		e.logger.Error().Err(err).Str("stream", e.stream).Msg("failed to publish event")
	}
}
