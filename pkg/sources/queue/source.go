// Package queue consumes domain events from a Redis list. Producers push
// JSON-encoded events; the source delivers them to the engine in arrival
// order.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vyomtech/automation/pkg/events"
	"github.com/vyomtech/automation/pkg/protocol"
)

const DefaultKey = "automation:events"

const popTimeout = 5 * time.Second

type Source struct {
	logger *slog.Logger
	client *redis.Client
	key    string

	mu      sync.Mutex
	done    chan struct{}
	started bool
}

func NewSource(logger *slog.Logger, redisURL, key string) (*Source, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	if key == "" {
		key = DefaultKey
	}

	return &Source{
		logger: logger.With("module", "queue_source", "key", key),
		client: redis.NewClient(opts),
		key:    key,
	}, nil
}

func (s *Source) Start(ctx context.Context, callback protocol.EventCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if err := s.client.Ping(ctx).Err(); err != nil {
		return err
	}

	s.done = make(chan struct{})
	s.started = true

	go s.consume(ctx, callback)

	s.logger.Info("Queue source started")

	return nil
}

func (s *Source) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	close(s.done)
	s.started = false

	if err := s.client.Close(); err != nil {
		return err
	}

	s.logger.Info("Queue source stopped")

	return nil
}

func (s *Source) consume(ctx context.Context, callback protocol.EventCallback) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		values, err := s.client.BRPop(ctx, popTimeout, s.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}

			if ctx.Err() != nil {
				return
			}

			s.logger.Error("Failed to pop from queue", "error", err)
			time.Sleep(time.Second)

			continue
		}

		// BRPop returns [key, value].
		if len(values) < 2 {
			continue
		}

		var event events.DomainEvent
		if err := json.Unmarshal([]byte(values[1]), &event); err != nil {
			s.logger.Warn("Discarding malformed queue entry", "error", err)

			continue
		}

		if err := callback(ctx, event); err != nil {
			s.logger.Error("Failed to deliver queue event", "event_id", event.ID, "error", err)
		}
	}
}
