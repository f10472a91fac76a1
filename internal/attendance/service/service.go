// Package service implements check-in, registration, reporting and legacy
// migration on top of the user directory and the partitioned ledger.
package service

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nfcattend/internal/attendance/metrics"
	"nfcattend/internal/attendance/models"
	"nfcattend/internal/audit"
	"nfcattend/pkg/domain"
	dErrors "nfcattend/pkg/domain-errors"
	"nfcattend/pkg/platform/sentinel"
)

const (
	defaultDeviceID     = "unknown"
	defaultMaxRangeDays = 366
)

var tracer = otel.Tracer("nfcattend/internal/attendance/service")

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	ResolveByTag(ctx context.Context, tagID string) (*models.User, error)
	FindByID(ctx context.Context, userID string) (*models.User, error)
	MarkCheckedIn(ctx context.Context, userID string, at time.Time) error
	SetStatus(ctx context.Context, userID string, status models.UserStatus) error
	List(ctx context.Context) ([]*models.User, error)
	Ping(ctx context.Context) error
}

// LedgerStore is the partitioned attendance ledger and its daily aggregates.
type LedgerStore interface {
	EnsureDay(ctx context.Context, day domain.Day) error
	HasEventFor(ctx context.Context, userID string, day domain.Day) (bool, error)
	Append(ctx context.Context, event *models.AttendanceEvent) error
	Import(ctx context.Context, event *models.AttendanceEvent) (bool, error)
	RecordIncrement(ctx context.Context, day domain.Day, department string) error
	Aggregate(ctx context.Context, day domain.Day) (*models.DailyAggregate, error)
	EventsForDay(ctx context.Context, day domain.Day) iter.Seq2[*models.AttendanceEvent, error]
	AggregatesForRange(ctx context.Context, start, end domain.Day) iter.Seq2[*models.DailyAggregate, error]
}

type LegacySource interface {
	All(ctx context.Context) iter.Seq2[*models.LegacyRecord, error]
}

// CheckInCache short-circuits repeated scans. It is advisory only.
type CheckInCache interface {
	Seen(ctx context.Context, day domain.Day, userID string) (bool, error)
	Remember(ctx context.Context, day domain.Day, userID string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) bool
}

// Service orchestrates attendance use cases.
type Service struct {
	users         UserStore
	ledger        LedgerStore
	tx            LedgerTx
	legacy        LegacySource
	cache         CheckInCache
	audit         AuditPublisher
	logger        *slog.Logger
	metrics       *metrics.Metrics
	validate      *validator.Validate
	requireActive bool
	defaultDevice string
	maxRangeDays  int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTx replaces the in-memory sharded transaction, typically with one
// backed by a SQL transaction.
func WithTx(tx LedgerTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithLegacySource(src LegacySource) Option {
	return func(s *Service) {
		s.legacy = src
	}
}

func WithCache(cache CheckInCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

// WithRequireActive toggles refusing scans from inactive users.
func WithRequireActive(require bool) Option {
	return func(s *Service) {
		s.requireActive = require
	}
}

func WithDefaultDevice(deviceID string) Option {
	return func(s *Service) {
		if deviceID != "" {
			s.defaultDevice = deviceID
		}
	}
}

func WithMaxRangeDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.maxRangeDays = days
		}
	}
}

// New constructs a Service. Without WithTx the ledger is guarded by an
// in-memory sharded transaction.
func New(users UserStore, ledger LedgerStore, opts ...Option) *Service {
	s := &Service{
		users:         users,
		ledger:        ledger,
		requireActive: true,
		defaultDevice: defaultDeviceID,
		maxRangeDays:  defaultMaxRangeDays,
		validate:      newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tx == nil {
		s.tx = NewShardedTx(ledger)
	}
	return s
}

// Health reports whether the user directory backend is reachable.
func (s *Service) Health(ctx context.Context) error {
	return s.users.Ping(ctx)
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// storageError turns a store failure into a coded error and logs the cause.
func (s *Service) storageError(ctx context.Context, err error, msg string) error {
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	s.logger.ErrorContext(ctx, msg, "error", err)
	switch {
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "storage unavailable")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if !s.audit.Emit(ctx, event) {
		s.logger.WarnContext(ctx, "audit event dropped", "action", event.Action, "user_id", event.UserID)
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
}
