package ledger

import (
	"context"
	"iter"
	"sort"
	"sync"

	"nfcattend/internal/attendance/models"
	"nfcattend/pkg/domain"
	"nfcattend/pkg/platform/sentinel"
)

type dayPartition struct {
	count       int
	departments map[string]int
	events      map[string]*models.AttendanceEvent // keyed by user id
}

// InMemoryStore keeps day partitions in a map. Every method is atomic
// under the store mutex.
type InMemoryStore struct {
	mu       sync.RWMutex
	days     map[domain.Day]*dayPartition
	eventIDs map[string]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		days:     make(map[domain.Day]*dayPartition),
		eventIDs: make(map[string]struct{}),
	}
}

func (s *InMemoryStore) EnsureDay(_ context.Context, day domain.Day) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureDayLocked(day)
	return nil
}

func (s *InMemoryStore) ensureDayLocked(day domain.Day) *dayPartition {
	p, ok := s.days[day]
	if !ok {
		p = &dayPartition{
			departments: make(map[string]int),
			events:      make(map[string]*models.AttendanceEvent),
		}
		s.days[day] = p
	}
	return p
}

func (s *InMemoryStore) HasEventFor(_ context.Context, userID string, day domain.Day) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.days[day]
	if !ok {
		return false, nil
	}
	_, exists := p.events[userID]
	return exists, nil
}

func (s *InMemoryStore) Append(ctx context.Context, event *models.AttendanceEvent) error {
	inserted, err := s.Import(ctx, event)
	if err != nil {
		return err
	}
	if !inserted {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *InMemoryStore) Import(_ context.Context, event *models.AttendanceEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.days[event.Day]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if _, exists := p.events[event.UserID]; exists {
		return false, nil
	}
	if _, exists := s.eventIDs[event.ID]; exists {
		return false, nil
	}
	c := *event
	p.events[event.UserID] = &c
	s.eventIDs[event.ID] = struct{}{}
	return true, nil
}

func (s *InMemoryStore) RecordIncrement(_ context.Context, day domain.Day, department string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.days[day]
	if !ok {
		return sentinel.ErrNotFound
	}
	p.count++
	p.departments[department]++
	return nil
}

func (s *InMemoryStore) Aggregate(_ context.Context, day domain.Day) (*models.DailyAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.days[day]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.aggregate(day), nil
}

// EventsForDay snapshots the day's events under the lock, then yields them
// in timestamp order.
func (s *InMemoryStore) EventsForDay(_ context.Context, day domain.Day) iter.Seq2[*models.AttendanceEvent, error] {
	return func(yield func(*models.AttendanceEvent, error) bool) {
		s.mu.RLock()
		p, ok := s.days[day]
		var events []*models.AttendanceEvent
		if ok {
			events = make([]*models.AttendanceEvent, 0, len(p.events))
			for _, e := range p.events {
				c := *e
				events = append(events, &c)
			}
		}
		s.mu.RUnlock()

		sort.Slice(events, func(i, j int) bool {
			if !events[i].Timestamp.Equal(events[j].Timestamp) {
				return events[i].Timestamp.Before(events[j].Timestamp)
			}
			return events[i].ID < events[j].ID
		})
		for _, e := range events {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (s *InMemoryStore) AggregatesForRange(_ context.Context, start, end domain.Day) iter.Seq2[*models.DailyAggregate, error] {
	return func(yield func(*models.DailyAggregate, error) bool) {
		s.mu.RLock()
		var aggs []*models.DailyAggregate
		for day, p := range s.days {
			if day.Before(start) || end.Before(day) {
				continue
			}
			aggs = append(aggs, p.aggregate(day))
		}
		s.mu.RUnlock()

		sort.Slice(aggs, func(i, j int) bool { return aggs[i].Day.Before(aggs[j].Day) })
		for _, agg := range aggs {
			if !yield(agg, nil) {
				return
			}
		}
	}
}

func (p *dayPartition) aggregate(day domain.Day) *models.DailyAggregate {
	agg := models.NewDailyAggregate(day)
	agg.Count = p.count
	for dept, n := range p.departments {
		agg.Departments[dept] = n
	}
	return agg
}
