package ledger_test

import (
	"context"
	"fmt"
	"iter"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"nfcattend/internal/attendance/models"
	"nfcattend/internal/attendance/store/ledger"
	"nfcattend/internal/platform/config"
	"nfcattend/internal/platform/database"
	"nfcattend/pkg/domain"
	"nfcattend/pkg/platform/sentinel"
)

// Store is the ledger contract both backends satisfy.
type Store interface {
	EnsureDay(ctx context.Context, day domain.Day) error
	HasEventFor(ctx context.Context, userID string, day domain.Day) (bool, error)
	Append(ctx context.Context, event *models.AttendanceEvent) error
	Import(ctx context.Context, event *models.AttendanceEvent) (bool, error)
	RecordIncrement(ctx context.Context, day domain.Day, department string) error
	Aggregate(ctx context.Context, day domain.Day) (*models.DailyAggregate, error)
	EventsForDay(ctx context.Context, day domain.Day) iter.Seq2[*models.AttendanceEvent, error]
	AggregatesForRange(ctx context.Context, start, end domain.Day) iter.Seq2[*models.DailyAggregate, error]
}

var (
	_ Store = (*ledger.InMemoryStore)(nil)
	_ Store = (*ledger.SQLStore)(nil)
)

type StoreContractSuite struct {
	suite.Suite
	newStore func() Store
	store    Store
}

func (s *StoreContractSuite) SetupTest() {
	s.store = s.newStore()
}

func TestInMemoryStore(t *testing.T) {
	suite.Run(t, &StoreContractSuite{newStore: func() Store { return ledger.NewInMemoryStore() }})
}

func TestSQLiteStore(t *testing.T) {
	suite.Run(t, &StoreContractSuite{newStore: func() Store {
		return ledger.NewSQL(openSQLite(t))
	}})
}

func openSQLite(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{
		Driver: config.DriverSQLite,
		URL:    filepath.Join(t.TempDir(), "ledger.db"),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(ctx, db, nil); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}

const day = domain.Day("2024-05-01")

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func event(id, userID, dept string, offset time.Duration) *models.AttendanceEvent {
	return &models.AttendanceEvent{
		ID:         id,
		UserID:     userID,
		TagID:      "tag-" + userID,
		Name:       "name-" + userID,
		Department: dept,
		Day:        day,
		Timestamp:  base.Add(offset),
		Action:     models.ActionCheckIn,
		DeviceID:   "gate-1",
	}
}

func (s *StoreContractSuite) record(e *models.AttendanceEvent) {
	ctx := context.Background()
	s.Require().NoError(s.store.EnsureDay(ctx, e.Day))
	s.Require().NoError(s.store.Append(ctx, e))
	s.Require().NoError(s.store.RecordIncrement(ctx, e.Day, e.Department))
}

func collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *StoreContractSuite) TestEnsureDayIsIdempotent() {
	ctx := context.Background()
	s.Require().NoError(s.store.EnsureDay(ctx, day))
	s.Require().NoError(s.store.EnsureDay(ctx, day))

	agg, err := s.store.Aggregate(ctx, day)
	s.Require().NoError(err)
	s.Equal(0, agg.Count)
	s.Empty(agg.Departments)
}

func (s *StoreContractSuite) TestAggregateMissingDay() {
	_, err := s.store.Aggregate(context.Background(), day)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreContractSuite) TestAppendIsConditional() {
	ctx := context.Background()
	s.record(event("e1", "U1", "Eng", 0))

	has, err := s.store.HasEventFor(ctx, "U1", day)
	s.Require().NoError(err)
	s.True(has)

	err = s.store.Append(ctx, event("e2", "U1", "Eng", time.Minute))
	s.ErrorIs(err, sentinel.ErrConflict)

	events, err := collect(s.store.EventsForDay(ctx, day))
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("e1", events[0].ID)
}

func (s *StoreContractSuite) TestHasEventForOtherDay() {
	s.record(event("e1", "U1", "Eng", 0))

	has, err := s.store.HasEventFor(context.Background(), "U1", day.AddDays(1))
	s.Require().NoError(err)
	s.False(has)
}

func (s *StoreContractSuite) TestImportReportsExistingRows() {
	ctx := context.Background()
	s.Require().NoError(s.store.EnsureDay(ctx, day))

	inserted, err := s.store.Import(ctx, event("legacy-1", "U1", "Eng", 0))
	s.Require().NoError(err)
	s.True(inserted)

	inserted, err = s.store.Import(ctx, event("legacy-1", "U1", "Eng", 0))
	s.Require().NoError(err)
	s.False(inserted)

	inserted, err = s.store.Import(ctx, event("legacy-2", "U1", "Eng", time.Hour))
	s.Require().NoError(err)
	s.False(inserted, "second event for the same user and day")
}

func (s *StoreContractSuite) TestRecordIncrementCountsDepartments() {
	ctx := context.Background()
	s.record(event("e1", "U1", "Eng", 0))
	s.record(event("e2", "U2", "Eng", time.Minute))
	s.record(event("e3", "U3", "Ops", 2*time.Minute))

	agg, err := s.store.Aggregate(ctx, day)
	s.Require().NoError(err)
	s.Equal(3, agg.Count)
	s.Equal(map[string]int{"Eng": 2, "Ops": 1}, agg.Departments)
}

func (s *StoreContractSuite) TestRecordIncrementWithoutDay() {
	err := s.store.RecordIncrement(context.Background(), day, "Eng")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreContractSuite) TestEventsForDayOrderedByTimestamp() {
	ctx := context.Background()
	s.record(event("e-b", "U2", "Eng", 2*time.Minute))
	s.record(event("e-a", "U1", "Eng", time.Minute))
	s.record(event("e-c", "U3", "Ops", 3*time.Minute+500*time.Millisecond))

	events, err := collect(s.store.EventsForDay(ctx, day))
	s.Require().NoError(err)
	s.Require().Len(events, 3)
	s.Equal([]string{"e-a", "e-b", "e-c"}, []string{events[0].ID, events[1].ID, events[2].ID})
	s.Equal("Ops", events[2].Department)
	s.Equal("gate-1", events[2].DeviceID)
	s.True(base.Add(3*time.Minute + 500*time.Millisecond).Equal(events[2].Timestamp))
}

func (s *StoreContractSuite) TestEventsForDayStopsEarly() {
	for i := range 5 {
		s.record(event(fmt.Sprintf("e%d", i), fmt.Sprintf("U%d", i), "Eng", time.Duration(i)*time.Second))
	}

	seen := 0
	for _, err := range s.store.EventsForDay(context.Background(), day) {
		s.Require().NoError(err)
		seen++
		if seen == 2 {
			break
		}
	}
	s.Equal(2, seen)
}

func (s *StoreContractSuite) TestEventsForEmptyDay() {
	events, err := collect(s.store.EventsForDay(context.Background(), day))
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *StoreContractSuite) TestAggregatesForRangeAscending() {
	ctx := context.Background()
	for i, d := range []domain.Day{"2024-05-03", "2024-05-01", "2024-04-30", "2024-05-05"} {
		e := event(fmt.Sprintf("e%d", i), "U1", "Eng", 0)
		e.Day = d
		s.record(e)
	}
	s.Require().NoError(s.store.EnsureDay(ctx, "2024-05-02"))

	aggs, err := collect(s.store.AggregatesForRange(ctx, "2024-05-01", "2024-05-03"))
	s.Require().NoError(err)
	s.Require().Len(aggs, 3, "2024-05-02 exists with count 0")
	s.Equal(domain.Day("2024-05-01"), aggs[0].Day)
	s.Equal(domain.Day("2024-05-02"), aggs[1].Day)
	s.Equal(0, aggs[1].Count)
	s.Empty(aggs[1].Departments)
	s.Equal(domain.Day("2024-05-03"), aggs[2].Day)
	s.Equal(map[string]int{"Eng": 1}, aggs[2].Departments)
}
