// Package schedule emits trigger events for workflow definitions carrying a
// "schedule" trigger. Each such trigger declares a cron expression in its
// config; due definitions are started directly, without condition evaluation.
package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vyomtech/automation/pkg/events"
	"github.com/vyomtech/automation/pkg/persistence"
	"github.com/vyomtech/automation/pkg/protocol"
)

// TriggerType is the trigger type served by this source.
const TriggerType = "schedule"

const refreshInterval = 1 * time.Minute

// Source polls definitions for schedule triggers and drives them with a cron
// runner. The runner is rebuilt on every refresh so definition edits take
// effect within one interval.
type Source struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	callback    protocol.EventCallback

	mu      sync.Mutex
	runner  *cron.Cron
	done    chan struct{}
	started bool
}

func NewSource(logger *slog.Logger, p persistence.Persistence) *Source {
	return &Source{
		logger:      logger.With("module", "schedule_source"),
		persistence: p,
	}
}

func (s *Source) Start(ctx context.Context, callback protocol.EventCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.callback = callback
	s.done = make(chan struct{})
	s.started = true

	s.reload(ctx)

	go s.refreshLoop(ctx)

	s.logger.Info("Schedule source started")

	return nil
}

func (s *Source) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	close(s.done)

	if s.runner != nil {
		s.runner.Stop()
		s.runner = nil
	}

	s.started = false
	s.logger.Info("Schedule source stopped")

	return nil
}

func (s *Source) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			s.reload(ctx)
			s.mu.Unlock()
		}
	}
}

// reload rebuilds the cron runner from the current set of enabled
// definitions. Caller holds the lock.
func (s *Source) reload(ctx context.Context) {
	enabled := true

	definitions, err := s.persistence.Definitions().List(ctx, persistence.ListDefinitionsOptions{Enabled: &enabled})
	if err != nil {
		s.logger.Error("Failed to load definitions for scheduling", "error", err)

		return
	}

	runner := cron.New()
	entries := 0

	for _, def := range definitions {
		for _, trig := range def.Triggers {
			if trig.TriggerType != TriggerType {
				continue
			}

			expression, _ := trig.TriggerConfig["cron"].(string)
			if expression == "" {
				s.logger.Warn("Schedule trigger without cron expression",
					"definition_id", def.ID, "trigger_id", trig.ID)

				continue
			}

			definitionID := def.ID
			tenantID := def.TenantID

			_, err := runner.AddFunc(expression, func() {
				s.fire(ctx, tenantID, definitionID, expression)
			})
			if err != nil {
				s.logger.Warn("Invalid cron expression",
					"definition_id", def.ID, "trigger_id", trig.ID,
					"cron", expression, "error", err)

				continue
			}

			entries++
		}
	}

	if s.runner != nil {
		s.runner.Stop()
	}

	runner.Start()
	s.runner = runner

	s.logger.Debug("Schedule source reloaded", "entries", entries)
}

func (s *Source) fire(ctx context.Context, tenantID, definitionID, expression string) {
	event := events.NewDomainEvent(events.ManualTriggerType, tenantID, map[string]any{
		"definition_id": definitionID,
		"triggered_by":  TriggerType,
		"trigger_data": map[string]any{
			"cron_expression": expression,
			"fired_at":        time.Now().UTC().Format(time.RFC3339),
		},
	})

	if err := s.callback(ctx, event); err != nil {
		s.logger.Error("Failed to deliver schedule event",
			"definition_id", definitionID, "error", err)

		return
	}

	s.logger.Info("Schedule fired", "definition_id", definitionID, "cron", expression)
}
