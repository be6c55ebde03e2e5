package protocol

import (
	"context"

	"github.com/vyomtech/automation/pkg/events"
)

// EventCallback delivers a domain event raised by a source into the engine's
// ingestion path.
type EventCallback func(ctx context.Context, event events.DomainEvent) error

// EventSource produces the trigger stream: schedules, queues, webhooks. It is
// an external collaborator; the engine only consumes the events it emits.
type EventSource interface {
	Start(ctx context.Context, callback EventCallback) error
	Stop(ctx context.Context) error
}
