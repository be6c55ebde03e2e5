// Package main provides the automation worker: it consumes domain events
// from the bus, evaluates triggers, and runs workflow instances.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyomtech/automation/pkg/engine"
	"github.com/vyomtech/automation/pkg/eventbus"
	"github.com/vyomtech/automation/pkg/events"
	"github.com/vyomtech/automation/pkg/otelhelper"
	"github.com/vyomtech/automation/pkg/persistence"
	"github.com/vyomtech/automation/pkg/protocol"
	"github.com/vyomtech/automation/pkg/registry"
	"github.com/vyomtech/automation/pkg/sources/queue"
	"github.com/vyomtech/automation/pkg/sources/schedule"
	"github.com/vyomtech/automation/pkg/trigger"
)

var errInvalidEventType = errors.New("invalid event type on domain event subscription")

type Worker struct {
	id          string
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	registry    *registry.Registry
	redisURL    string
	queueKey    string

	dispatcher *engine.Dispatcher
	scheduler  *engine.Scheduler
	sources    []protocol.EventSource
	tracer     trace.Tracer
}

func NewWorker(
	id string,
	logger *slog.Logger,
	p persistence.Persistence,
	eventBus eventbus.EventBus,
	reg *registry.Registry,
	redisURL string,
	queueKey string,
) *Worker {
	return &Worker{
		id:          id,
		logger:      logger,
		persistence: p,
		eventBus:    eventBus,
		registry:    reg,
		redisURL:    redisURL,
		queueKey:    queueKey,
	}
}

// Start wires the engine, subscribes to the event bus, starts the event
// sources, and blocks until SIGINT or SIGTERM.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tracer, err := otelhelper.NewTracer(ctx, "automation-worker")
	if err != nil {
		w.logger.WarnContext(ctx, "Tracing disabled", "error", err)
	}

	w.tracer = tracer

	evaluator := trigger.NewEvaluator(w.logger)
	tracker := engine.NewTracker(w.logger, w.persistence, w.eventBus)
	executor := engine.NewExecutor(w.logger, w.registry, engine.DefaultRetryPolicy())
	w.scheduler = engine.NewScheduler(w.logger, w.persistence, executor, tracker, w.eventBus)
	w.dispatcher = engine.NewDispatcher(w.logger, w.persistence, evaluator, w.scheduler)

	if err := w.eventBus.Handle(events.DomainEventReceived, w.handleDomainEvent); err != nil {
		return err
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		return err
	}

	if err := w.startSources(ctx); err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Worker started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	w.logger.InfoContext(ctx, "Shutting down worker")

	for _, source := range w.sources {
		if err := source.Stop(ctx); err != nil {
			w.logger.ErrorContext(ctx, "Failed to stop event source", "error", err)
		}
	}

	cancel()
	w.scheduler.Drain()

	w.logger.Info("Worker stopped")

	return nil
}

func (w *Worker) startSources(ctx context.Context) error {
	w.sources = append(w.sources, schedule.NewSource(w.logger, w.persistence))

	if w.redisURL != "" {
		queueSource, err := queue.NewSource(w.logger, w.redisURL, w.queueKey)
		if err != nil {
			return err
		}

		w.sources = append(w.sources, queueSource)
	}

	// Sources feed the bus rather than the dispatcher directly, so their
	// events take the same path as externally published ones.
	callback := func(ctx context.Context, event events.DomainEvent) error {
		return w.eventBus.Publish(ctx, event.ID, event)
	}

	for _, source := range w.sources {
		if err := source.Start(ctx, callback); err != nil {
			return err
		}
	}

	return nil
}

func (w *Worker) handleDomainEvent(ctx context.Context, event any) error {
	domainEvent, ok := event.(*events.DomainEvent)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type on domain event subscription")

		return errInvalidEventType
	}

	if w.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, w.tracer, "worker.handle_domain_event",
			attribute.String(otelhelper.EventIDKey, domainEvent.ID),
			attribute.String(otelhelper.TriggerTypeKey, domainEvent.Type),
			attribute.String(otelhelper.TenantIDKey, domainEvent.TenantID),
			attribute.String(otelhelper.WorkerIDKey, w.id),
		)
		defer span.End()
	}

	return w.dispatcher.OnEvent(ctx, *domainEvent)
}
