package audit

import (
	"context"
	"log/slog"
	"sync"
)

// Store persists or forwards audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// InMemoryStore keeps events per user; used by tests and the memory backend.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

// ListAll returns every event in append order.
func (s *InMemoryStore) ListAll(_ context.Context) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event(nil), s.events...)
}

// LogStore writes each event as a structured log line.
type LogStore struct {
	logger *slog.Logger
}

func NewLogStore(logger *slog.Logger) *LogStore {
	return &LogStore{logger: logger}
}

func (s *LogStore) Append(ctx context.Context, event Event) error {
	s.logger.InfoContext(ctx, "audit",
		"action", event.Action,
		"user_id", event.UserID,
		"tag_id", event.TagID,
		"day", event.Day,
		"device_id", event.DeviceID,
		"request_id", event.RequestID,
		"detail", event.Detail,
		"at", event.Timestamp,
	)
	return nil
}

// NopStore discards events.
type NopStore struct{}

func (NopStore) Append(context.Context, Event) error { return nil }
