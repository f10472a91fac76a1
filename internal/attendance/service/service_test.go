package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"nfcattend/internal/attendance/metrics"
	"nfcattend/internal/attendance/models"
	"nfcattend/internal/attendance/store/checkincache"
	"nfcattend/internal/attendance/store/ledger"
	"nfcattend/internal/attendance/store/legacy"
	"nfcattend/internal/attendance/store/user"
	"nfcattend/internal/audit"
	"nfcattend/pkg/domain"
	dErrors "nfcattend/pkg/domain-errors"
	"nfcattend/pkg/platform/sentinel"
	"nfcattend/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	users     *user.InMemoryStore
	ledger    *ledger.InMemoryStore
	legacy    *legacy.InMemoryStore
	cache     *checkincache.InMemoryCache
	publisher *audit.Publisher
	metrics   *metrics.Metrics
	service   *Service
	now       time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.users = user.NewInMemoryStore()
	s.ledger = ledger.NewInMemoryStore()
	s.legacy = legacy.NewInMemoryStore()
	s.cache = checkincache.NewInMemory()
	s.publisher = audit.NewPublisher(64)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.now = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	s.service = New(s.users, s.ledger,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithLegacySource(s.legacy),
		WithCache(s.cache),
		WithAuditPublisher(s.publisher),
		WithDefaultDevice("front-door"),
	)
}

func (s *ServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) seedUser(id, tag, name, dept string, status models.UserStatus) {
	s.Require().NoError(s.users.Create(context.Background(), &models.User{
		ID: id, TagID: tag, Name: name, Department: dept, Status: status, RegisteredAt: s.now.Add(-24 * time.Hour),
	}))
}

func (s *ServiceSuite) requireCode(err error, code dErrors.Code) {
	s.T().Helper()
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, code), "expected %s, got %v", code, err)
}

func (s *ServiceSuite) events(day domain.Day) []*models.AttendanceEvent {
	var out []*models.AttendanceEvent
	for e, err := range s.ledger.EventsForDay(context.Background(), day) {
		s.Require().NoError(err)
		out = append(out, e)
	}
	return out
}

func (s *ServiceSuite) TestCheckInRecordsEventAndAggregate() {
	s.seedUser("U1", "A1", "Ada", "Eng", models.UserStatusActive)

	result, err := s.service.CheckIn(s.ctx(), models.CheckInRequest{UID: "  A1 ", DeviceID: "gate-3"})
	s.Require().NoError(err)
	s.Equal("Ada", result.UserName)
	s.Equal("U1", result.Event.UserID)
	s.Equal("A1", result.Event.TagID)
	s.Equal("Eng", result.Event.Department)
	s.Equal(domain.Day("2024-05-01"), result.Event.Day)
	s.True(s.now.Equal(result.Event.Timestamp))
	s.Equal(models.ActionCheckIn, result.Event.Action)
	s.Equal("gate-3", result.Event.DeviceID)

	agg, err := s.ledger.Aggregate(context.Background(), "2024-05-01")
	s.Require().NoError(err)
	s.Equal(1, agg.Count)
	s.Equal(map[string]int{"Eng": 1}, agg.Departments)

	u, err := s.users.FindByID(context.Background(), "U1")
	s.Require().NoError(err)
	s.Equal(models.UserStatusPresent, u.Status)
	s.Require().NotNil(u.LastCheckInAt)
	s.True(s.now.Equal(*u.LastCheckInAt))

	ev := <-s.publisher.Events()
	s.Equal(audit.ActionCheckedIn, ev.Action)
	s.Equal("U1", ev.UserID)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.CheckIns.WithLabelValues(metrics.OutcomeRecorded)))
}

func (s *ServiceSuite) TestCheckInUsesDefaultDevice() {
	s.seedUser("U1", "A1", "Ada", "Eng", models.UserStatusActive)

	result, err := s.service.CheckIn(s.ctx(), models.CheckInRequest{UID: "A1"})
	s.Require().NoError(err)
	s.Equal("front-door", result.Event.DeviceID)
}

func (s *ServiceSuite) TestCheckInMissingUID() {
	for _, uid := range []string{"", "   ", "\t\n"} {
		_, err := s.service.CheckIn(s.ctx(), models.CheckInRequest{UID: uid})
		s.requireCode(err, dErrors.CodeBadRequest)
		s.Equal(MsgMissingUID, err.(*dErrors.Error).Message)
	}
}

func (s *ServiceSuite) TestCheckInUnknownTagLeavesLedgerUntouched() {
	_, err := s.service.CheckIn(s.ctx(), models.CheckInRequest{UID: "ZZ"})
	s.requireCode(err, dErrors.CodeNotFound)

	_, aggErr := s.ledger.Aggregate(context.Background(), domain.DayOf(s.now))
	s.ErrorIs(aggErr, sentinel.ErrNotFound)
	s.Empty(s.events(domain.DayOf(s.now)))
}

func (s *ServiceSuite) TestCheckInInactiveUserForbidden() {
	s.seedUser("U1", "A1", "Ada", "Eng", models.UserStatusInactive)

	_, err := s.service.CheckIn(s.ctx(), models.CheckInRequest{UID: "A1"})
	s.requireCode(err, dErrors.CodeForbidden)
	s.Empty(s.events(domain.DayOf(s.now)))
}

func (s *ServiceSuite) TestCheckInInactiveAllowedWhenCheckDisabled() {
	s.service.requireActive = false
	s.seedUser("U1", "A1", "Ada", "Eng", models.UserStatusInactive)

	_, err := s.service.CheckIn(s.ctx(), models.CheckInRequest{UID: "A1"})
	s.Require().NoError(err)

	u, err := s.users.FindByID(context.Background(), "U1")
	s.Require().NoError(err)
	s.Equal(models.UserStatusInactive, u.Status, "inactive users are never promoted to present")
}

func (s *ServiceSuite) TestSecondScanSameDayConflicts() {
	s.seedUser("U1", "A1", "Ada", "Eng", models.UserStatusActive)
	_, err := s.service.CheckIn(s.ctx(), models.CheckInRequest{UID: "A1"})
	s.Require().NoError(err)

	s.now = s.now.Add(3 * time.Hour)
	_, err = s.service.CheckIn(s.ctx(), models.CheckInRequest{UID: "A1"})
	s.requireCode(err, dErrors.CodeConflict)

	s.Len(s.events(domain.DayOf(s.now)), 1)
	agg, err := s.ledger.Aggregate(context.Background(), domain.DayOf(s.now))
	s.Require().NoError(err)
	s.Equal(1, agg.Count)
}

func (s *ServiceSuite) TestDuplicateDetectedByLedgerWithoutCache() {
	s.service.cache = nil
	s.seedUser("U1", "A1", "Ada", "Eng", models.UserStatusActive)
	_, err := s.service.CheckIn(s.ctx(), models.CheckInRequest{UID: "A1"})
	s.Require().NoError(err)

	_, err = s.service.CheckIn(s.ctx(), models.CheckInRequest{UID: "A1"})
	s.requireCode(err, dErrors.CodeConflict)
	s.Len(s.events(domain.DayOf(s.now)), 1)
}

func (s *ServiceSuite) TestPresentUserChecksInNextDay() {
	s.seedUser("U1", "A1", "Ada", "Eng", models.UserStatusActive)
	_, err := s.service.CheckIn(s.ctx(), models.CheckInRequest{UID: "A1"})
	s.Require().NoError(err)

	s.now = s.now.Add(24 * time.Hour)
	result, err := s.service.CheckIn(s.ctx(), models.CheckInRequest{UID: "A1"})
	s.Require().NoError(err)
	s.Equal(domain.Day("2024-05-02"), result.Event.Day)
}

type stubCache struct {
	seen    bool
	seenErr error
	stored  atomic.Int32
}

func (c *stubCache) Seen(context.Context, domain.Day, string) (bool, error) {
	return c.seen, c.seenErr
}

func (c *stubCache) Remember(context.Context, domain.Day, string) error {
	c.stored.Add(1)
	return errors.New("redis down")
}

func (s *ServiceSuite) TestCacheHitShortCircuits() {
	s.service.cache = &stubCache{seen: true}
	s.seedUser("U1", "A1", "Ada", "Eng", models.UserStatusActive)

	_, err := s.service.CheckIn(s.ctx(), models.CheckInRequest{UID: "A1"})
	s.requireCode(err, dErrors.CodeConflict)
	s.Empty(s.events(domain.DayOf(s.now)))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.DuplicateCacheHits))
}

func (s *ServiceSuite) TestCacheFailuresAreIgnored() {
	cache := &stubCache{seenErr: errors.New("redis down")}
	s.service.cache = cache
	s.seedUser("U1", "A1", "Ada", "Eng", models.UserStatusActive)

	_, err := s.service.CheckIn(s.ctx(), models.CheckInRequest{UID: "A1"})
	s.Require().NoError(err)
	s.Equal(int32(1), cache.stored.Load())
}

func (s *ServiceSuite) TestAggregateAcrossDepartments() {
	s.seedUser("U1", "A1", "Ada", "Eng", models.UserStatusActive)
	s.seedUser("U2", "A2", "Grace", "Eng", models.UserStatusActive)
	s.seedUser("U3", "A3", "Linus", "Ops", models.UserStatusActive)
	s.seedUser("U4", "A4", "Ken", "", models.UserStatusActive)

	for i, tag := range []string{"A1", "A2", "A3", "A4"} {
		s.now = s.now.Add(time.Duration(i) * time.Minute)
		_, err := s.service.CheckIn(s.ctx(), models.CheckInRequest{UID: tag})
		s.Require().NoError(err)
	}

	report, err := s.service.DailyReport(s.ctx(), "2024-05-01")
	s.Require().NoError(err)
	s.Equal(4, report.Count)
	s.Equal(map[string]int{"Eng": 2, "Ops": 1, "Unknown": 1}, report.Departments)
	s.Require().Len(report.Records, 4)
	for i := 1; i < len(report.Records); i++ {
		s.False(report.Records[i].Timestamp.Before(report.Records[i-1].Timestamp))
	}
}

func (s *ServiceSuite) TestConcurrentScansOfOneTag() {
	s.service.cache = nil
	s.seedUser("U1", "A1", "Ada", "Eng", models.UserStatusActive)

	const goroutines = 50
	var wg sync.WaitGroup
	var recorded, conflicts atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.CheckIn(s.ctx(), models.CheckInRequest{UID: "A1"})
			switch {
			case err == nil:
				recorded.Add(1)
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), recorded.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
	agg, err := s.ledger.Aggregate(context.Background(), domain.DayOf(s.now))
	s.Require().NoError(err)
	s.Equal(1, agg.Count)
	s.Len(s.events(domain.DayOf(s.now)), 1)
}

func (s *ServiceSuite) TestConcurrentScansOfManyTags() {
	const users = 40
	for i := range users {
		dept := "Eng"
		if i%2 == 1 {
			dept = "Ops"
		}
		s.seedUser(fmt.Sprintf("U%d", i), fmt.Sprintf("T%d", i), fmt.Sprintf("User %d", i), dept, models.UserStatusActive)
	}

	var wg sync.WaitGroup
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.service.CheckIn(s.ctx(), models.CheckInRequest{UID: fmt.Sprintf("T%d", i)})
			s.NoError(err)
		}(i)
	}
	wg.Wait()

	agg, err := s.ledger.Aggregate(context.Background(), domain.DayOf(s.now))
	s.Require().NoError(err)
	s.Equal(users, agg.Count)
	s.Equal(map[string]int{"Eng": users / 2, "Ops": users / 2}, agg.Departments)
}

// TestScannerScenario walks the register, scan, rescan, unknown tag and
// report flow for one employee.
func (s *ServiceSuite) TestScannerScenario() {
	s.seedUser("U1", "A1", "Ada", "Eng", models.UserStatusActive)

	first, err := s.service.CheckIn(s.ctx(), models.CheckInRequest{UID: "A1"})
	s.Require().NoError(err)
	s.Equal("Ada", first.UserName)

	_, err = s.service.CheckIn(s.ctx(), models.CheckInRequest{UID: "A1"})
	s.requireCode(err, dErrors.CodeConflict)

	_, err = s.service.CheckIn(s.ctx(), models.CheckInRequest{UID: "ZZ"})
	s.requireCode(err, dErrors.CodeNotFound)

	report, err := s.service.DailyReport(s.ctx(), "")
	s.Require().NoError(err)
	s.Equal(domain.Day("2024-05-01"), report.Day)
	s.Equal(1, report.Count)
	s.Equal(map[string]int{"Eng": 1}, report.Departments)
	s.Require().Len(report.Records, 1)
	s.Equal(first.Event.ID, report.Records[0].ID)
}

func (s *ServiceSuite) TestDailyReportEmptyDay() {
	report, err := s.service.DailyReport(s.ctx(), "2023-01-01")
	s.Require().NoError(err)
	s.Equal(0, report.Count)
	s.NotNil(report.Departments)
	s.Empty(report.Departments)
	s.Empty(report.Records)
}

func (s *ServiceSuite) TestDailyReportRejectsBadDate() {
	for _, date := range []string{"2024-13-01", "01/05/2024", "yesterday"} {
		_, err := s.service.DailyReport(s.ctx(), date)
		s.requireCode(err, dErrors.CodeBadRequest)
	}
}

func (s *ServiceSuite) TestRangeReportAscendingAndOmitsEmptyDays() {
	s.seedUser("U1", "A1", "Ada", "Eng", models.UserStatusActive)
	s.seedUser("U2", "A2", "Grace", "Ops", models.UserStatusActive)

	scan := func(at time.Time, tag string) {
		s.now = at
		_, err := s.service.CheckIn(s.ctx(), models.CheckInRequest{UID: tag})
		s.Require().NoError(err)
	}
	scan(time.Date(2024, 5, 3, 9, 0, 0, 0, time.UTC), "A1")
	scan(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), "A1")
	scan(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), "A2")
	s.Require().NoError(s.ledger.EnsureDay(context.Background(), "2024-05-02"))

	report, err := s.service.RangeReport(s.ctx(), "2024-05-01", "2024-05-03")
	s.Require().NoError(err)
	s.Require().Len(report.Days, 2)
	s.Equal(domain.Day("2024-05-01"), report.Days[0].Day)
	s.Equal(2, report.Days[0].Count)
	s.Equal(map[string]int{"Eng": 1, "Ops": 1}, report.Days[0].Departments)
	s.Equal(domain.Day("2024-05-03"), report.Days[1].Day)
}

func (s *ServiceSuite) TestRangeReportDefaultsToTrailingWeek() {
	report, err := s.service.RangeReport(s.ctx(), "", "")
	s.Require().NoError(err)
	s.Equal(domain.Day("2024-05-01"), report.End)
	s.Equal(domain.Day("2024-04-25"), report.Start)
	s.Empty(report.Days)

	report, err = s.service.RangeReport(s.ctx(), "", "2024-03-10")
	s.Require().NoError(err)
	s.Equal(domain.Day("2024-03-04"), report.Start)
}

func (s *ServiceSuite) TestRangeReportValidation() {
	_, err := s.service.RangeReport(s.ctx(), "2024-05-03", "2024-05-01")
	s.requireCode(err, dErrors.CodeBadRequest)

	_, err = s.service.RangeReport(s.ctx(), "2022-01-01", "2024-01-01")
	s.requireCode(err, dErrors.CodeBadRequest)

	_, err = s.service.RangeReport(s.ctx(), "2023-01-01", "2024-01-01")
	s.Require().NoError(err, "366 inclusive days is allowed")

	_, err = s.service.RangeReport(s.ctx(), "bad", "")
	s.requireCode(err, dErrors.CodeBadRequest)
}

func (s *ServiceSuite) TestRegister() {
	u, err := s.service.Register(s.ctx(), models.RegisterRequest{Name: " Ada ", UID: " A1", Department: "Eng "})
	s.Require().NoError(err)
	s.NotEmpty(u.ID)
	s.Equal("Ada", u.Name)
	s.Equal("A1", u.TagID)
	s.Equal("Eng", u.Department)
	s.Equal(models.UserStatusActive, u.Status)
	s.True(s.now.Equal(u.RegisteredAt))

	resolved, err := s.users.ResolveByTag(context.Background(), "A1")
	s.Require().NoError(err)
	s.Equal(u.ID, resolved.ID)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.UsersRegistered))
}

func (s *ServiceSuite) TestRegisterMissingFields() {
	_, err := s.service.Register(s.ctx(), models.RegisterRequest{Name: "Ada", UID: "   "})
	s.requireCode(err, dErrors.CodeBadRequest)

	var coded *dErrors.Error
	s.Require().True(errors.As(err, &coded))
	s.Equal("Missing required fields: department, uid", coded.Message)
}

func (s *ServiceSuite) TestRegisterDuplicateTag() {
	_, err := s.service.Register(s.ctx(), models.RegisterRequest{Name: "Ada", UID: "A1", Department: "Eng"})
	s.Require().NoError(err)

	_, err = s.service.Register(s.ctx(), models.RegisterRequest{Name: "Grace", UID: "A1", Department: "Ops"})
	s.requireCode(err, dErrors.CodeConflict)
}

func (s *ServiceSuite) TestSetUserStatus() {
	s.seedUser("U1", "A1", "Ada", "Eng", models.UserStatusActive)

	u, err := s.service.SetUserStatus(s.ctx(), "U1", models.SetStatusRequest{Status: models.UserStatusInactive})
	s.Require().NoError(err)
	s.Equal(models.UserStatusInactive, u.Status)

	_, err = s.service.CheckIn(s.ctx(), models.CheckInRequest{UID: "A1"})
	s.requireCode(err, dErrors.CodeForbidden)

	_, err = s.service.SetUserStatus(s.ctx(), "U1", models.SetStatusRequest{Status: models.UserStatusActive})
	s.Require().NoError(err)
	_, err = s.service.CheckIn(s.ctx(), models.CheckInRequest{UID: "A1"})
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestSetUserStatusValidation() {
	_, err := s.service.SetUserStatus(s.ctx(), "U1", models.SetStatusRequest{Status: models.UserStatusPresent})
	s.requireCode(err, dErrors.CodeBadRequest)

	_, err = s.service.SetUserStatus(s.ctx(), " ", models.SetStatusRequest{Status: models.UserStatusActive})
	s.requireCode(err, dErrors.CodeBadRequest)

	_, err = s.service.SetUserStatus(s.ctx(), "nobody", models.SetStatusRequest{Status: models.UserStatusActive})
	s.requireCode(err, dErrors.CodeNotFound)
}

func (s *ServiceSuite) TestListUsersOrdered() {
	s.seedUser("U2", "A2", "Grace", "Ops", models.UserStatusActive)
	s.seedUser("U1", "A1", "Ada", "Eng", models.UserStatusActive)

	users, err := s.service.ListUsers(s.ctx())
	s.Require().NoError(err)
	s.Require().Len(users, 2)
	s.Equal("Ada", users[0].Name)
}

func (s *ServiceSuite) seedLegacy(recs ...*models.LegacyRecord) {
	for _, r := range recs {
		s.Require().NoError(s.legacy.Insert(context.Background(), r))
	}
}

func (s *ServiceSuite) TestMigrateLegacy() {
	ts := time.Date(2024, 4, 2, 8, 30, 0, 0, time.UTC)
	s.seedLegacy(
		&models.LegacyRecord{ID: "L1", UserID: "U1", TagID: "A1", Name: "Ada", Department: "Eng", Date: "2024-04-02", Timestamp: &ts},
		&models.LegacyRecord{ID: "L2", UserID: "U2", TagID: "A2", Name: "Grace", Date: "2024-04-02"},
		&models.LegacyRecord{ID: "L3", UserID: "U3", Date: ""},
		&models.LegacyRecord{ID: "L4", UserID: "U4", Date: "02-04-2024"},
		&models.LegacyRecord{ID: "L5", UserID: "", Date: "2024-04-02"},
		&models.LegacyRecord{ID: "L6", UserID: "U1", Date: "2024-04-02"},
	)

	summary, err := s.service.MigrateLegacy(s.ctx())
	s.Require().NoError(err)
	s.Equal(models.MigrationSummary{Migrated: 2, Failed: 2, Skipped: 2}, *summary)

	agg, err := s.ledger.Aggregate(context.Background(), "2024-04-02")
	s.Require().NoError(err)
	s.Equal(2, agg.Count)
	s.Equal(map[string]int{"Eng": 1, "Unknown": 1}, agg.Departments)

	events := s.events("2024-04-02")
	s.Require().Len(events, 2)
	s.Equal("L2", events[0].ID, "row without timestamp sorts at midnight")
	s.Equal("front-door", events[0].DeviceID)
	s.Equal("L1", events[1].ID)
	s.True(ts.Equal(events[1].Timestamp))
}

func (s *ServiceSuite) TestMigrateLegacyTwiceDoesNotDoubleCount() {
	s.seedLegacy(
		&models.LegacyRecord{ID: "L1", UserID: "U1", Department: "Eng", Date: "2024-04-02"},
		&models.LegacyRecord{ID: "L2", UserID: "U2", Department: "Ops", Date: "2024-04-03"},
	)

	first, err := s.service.MigrateLegacy(s.ctx())
	s.Require().NoError(err)
	s.Equal(2, first.Migrated)

	second, err := s.service.MigrateLegacy(s.ctx())
	s.Require().NoError(err)
	s.Equal(models.MigrationSummary{Migrated: 0, Failed: 0, Skipped: 2}, *second)

	for _, day := range []domain.Day{"2024-04-02", "2024-04-03"} {
		agg, err := s.ledger.Aggregate(context.Background(), day)
		s.Require().NoError(err)
		s.Equal(1, agg.Count)
	}
}

func (s *ServiceSuite) TestMigrateLegacyRespectsExistingCheckIns() {
	s.seedUser("U1", "A1", "Ada", "Eng", models.UserStatusActive)
	_, err := s.service.CheckIn(s.ctx(), models.CheckInRequest{UID: "A1"})
	s.Require().NoError(err)
	s.seedLegacy(&models.LegacyRecord{ID: "L1", UserID: "U1", Department: "Eng", Date: "2024-05-01"})

	summary, err := s.service.MigrateLegacy(s.ctx())
	s.Require().NoError(err)
	s.Equal(1, summary.Skipped)

	agg, err := s.ledger.Aggregate(context.Background(), "2024-05-01")
	s.Require().NoError(err)
	s.Equal(1, agg.Count)
}

type brokenLegacy struct{}

func (brokenLegacy) All(context.Context) iter.Seq2[*models.LegacyRecord, error] {
	return func(yield func(*models.LegacyRecord, error) bool) {
		yield(nil, sentinel.ErrUnavailable)
	}
}

func (s *ServiceSuite) TestMigrateLegacySourceFailure() {
	s.service.legacy = brokenLegacy{}
	_, err := s.service.MigrateLegacy(s.ctx())
	s.requireCode(err, dErrors.CodeInternal)
}

type unavailableUsers struct {
	*user.InMemoryStore
}

func (unavailableUsers) ResolveByTag(context.Context, string) (*models.User, error) {
	return nil, fmt.Errorf("resolve: %w", sentinel.ErrUnavailable)
}

func (s *ServiceSuite) TestStorageUnavailable() {
	s.service.users = unavailableUsers{s.users}
	_, err := s.service.CheckIn(s.ctx(), models.CheckInRequest{UID: "A1"})
	s.requireCode(err, dErrors.CodeUnavailable)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.CheckIns.WithLabelValues(metrics.OutcomeError)))
}

func (s *ServiceSuite) TestCancelledContextTimesOut() {
	s.seedUser("U1", "A1", "Ada", "Eng", models.UserStatusActive)
	ctx, cancel := context.WithCancel(s.ctx())
	cancel()

	_, err := s.service.CheckIn(ctx, models.CheckInRequest{UID: "A1"})
	s.requireCode(err, dErrors.CodeTimeout)
}

func (s *ServiceSuite) TestHealth() {
	s.NoError(s.service.Health(context.Background()))
}

func TestShardSelection(t *testing.T) {
	tx := NewShardedTx(ledger.NewInMemoryStore())
	a := tx.selectShard(WithTxUser(context.Background(), "U1"))
	b := tx.selectShard(WithTxUser(context.Background(), "U1"))
	if a != b {
		t.Fatalf("same user mapped to shards %d and %d", a, b)
	}
	if got := tx.selectShard(context.Background()); got != 0 {
		t.Fatalf("expected shard 0 without a user, got %d", got)
	}
}

func TestHashUserIDIsFNV1a(t *testing.T) {
	vectors := map[string]uint32{
		"":  0x811c9dc5,
		"a": 0xe40c292c,
	}
	for in, want := range vectors {
		if got := hashUserID(in); got != want {
			t.Fatalf("hashUserID(%q) = %#x, want %#x", in, got, want)
		}
	}
}
