package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"nfcattend/internal/attendance/metrics"
	"nfcattend/internal/attendance/models"
	"nfcattend/internal/audit"
	"nfcattend/pkg/domain"
	dErrors "nfcattend/pkg/domain-errors"
	"nfcattend/pkg/platform/sentinel"
	"nfcattend/pkg/requestcontext"
)

// Messages returned to scanners.
const (
	MsgMissingUID      = "Missing NFC UID"
	MsgUserNotFound    = "User not found"
	MsgUserInactive    = "User is not active"
	MsgAlreadyRecorded = "Attendance already recorded for today"
)

// CheckIn records the first scan of a tag for the current UTC day.
//
// The tag is resolved to a user, eligibility and duplicates are checked, and
// the event is appended and counted in one ledger transaction. Follow-up work
// (cache, user status, audit) is best effort and never undoes the event.
func (s *Service) CheckIn(ctx context.Context, req models.CheckInRequest) (*models.CheckInResult, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "attendance.CheckIn")
	defer span.End()

	req.Normalize()
	result, outcome, err := s.checkIn(ctx, req)

	if s.metrics != nil {
		s.metrics.IncrementCheckIn(outcome)
		s.metrics.ObserveCheckInDuration(time.Since(start).Seconds())
	}
	span.SetAttributes(attribute.String("attendance.outcome", outcome))
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return result, nil
}

func (s *Service) checkIn(ctx context.Context, req models.CheckInRequest) (*models.CheckInResult, string, error) {
	if req.UID == "" {
		return nil, metrics.OutcomeInvalid, dErrors.New(dErrors.CodeBadRequest, MsgMissingUID)
	}

	now := requestcontext.Now(ctx).UTC()
	day := domain.DayOf(now)
	deviceID := req.DeviceID
	if deviceID == "" {
		deviceID = s.defaultDevice
	}
	logAttrs := []any{
		"tag_id", req.UID,
		"day", day.String(),
		"device_id", deviceID,
		"request_id", requestcontext.RequestID(ctx),
	}

	user, err := s.users.ResolveByTag(ctx, req.UID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "scan of unregistered tag", logAttrs...)
			return nil, metrics.OutcomeUnknownTag, dErrors.New(dErrors.CodeNotFound, MsgUserNotFound)
		}
		return nil, metrics.OutcomeError, s.storageError(ctx, err, "failed to resolve tag")
	}
	logAttrs = append(logAttrs, "user_id", user.ID)

	if s.requireActive && !user.CanCheckIn() {
		s.logger.WarnContext(ctx, "scan refused for inactive user", logAttrs...)
		return nil, metrics.OutcomeInactive, dErrors.New(dErrors.CodeForbidden, MsgUserInactive)
	}

	if s.cache != nil {
		seen, err := s.cache.Seen(ctx, day, user.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "check-in cache lookup failed", append(logAttrs, "error", err)...)
		} else if seen {
			if s.metrics != nil {
				s.metrics.IncrementDuplicateCacheHit()
			}
			return nil, metrics.OutcomeDuplicate, dErrors.New(dErrors.CodeConflict, MsgAlreadyRecorded)
		}
	}

	event := &models.AttendanceEvent{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		TagID:      req.UID,
		Name:       user.Name,
		Department: models.DepartmentOrUnknown(user.Department),
		Day:        day,
		Timestamp:  now,
		Action:     models.ActionCheckIn,
		DeviceID:   deviceID,
	}

	txCtx := WithTxUser(ctx, user.ID)
	err = s.tx.RunInTx(txCtx, func(ledger LedgerStore) error {
		exists, err := ledger.HasEventFor(txCtx, user.ID, day)
		if err != nil {
			return err
		}
		if exists {
			return sentinel.ErrConflict
		}
		if err := ledger.EnsureDay(txCtx, day); err != nil {
			return err
		}
		if err := ledger.Append(txCtx, event); err != nil {
			return err
		}
		return ledger.RecordIncrement(txCtx, day, event.Department)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.logger.InfoContext(ctx, "duplicate scan", logAttrs...)
			s.remember(ctx, day, user.ID)
			return nil, metrics.OutcomeDuplicate, dErrors.New(dErrors.CodeConflict, MsgAlreadyRecorded)
		}
		return nil, metrics.OutcomeError, s.storageError(ctx, err, "failed to record attendance")
	}

	s.afterCheckIn(ctx, user, event)
	s.logger.InfoContext(ctx, "attendance recorded", append(logAttrs, "department", event.Department)...)

	return &models.CheckInResult{Event: event, UserName: user.Name}, metrics.OutcomeRecorded, nil
}

func (s *Service) afterCheckIn(ctx context.Context, user *models.User, event *models.AttendanceEvent) {
	s.remember(ctx, event.Day, user.ID)

	if err := s.users.MarkCheckedIn(ctx, user.ID, event.Timestamp); err != nil {
		s.logger.WarnContext(ctx, "failed to update user after check-in",
			"user_id", user.ID,
			"error", err,
		)
	}

	s.emit(ctx, audit.Event{
		Timestamp: event.Timestamp,
		Action:    audit.ActionCheckedIn,
		UserID:    user.ID,
		TagID:     event.TagID,
		Day:       event.Day.String(),
		DeviceID:  event.DeviceID,
		RequestID: requestcontext.RequestID(ctx),
		Detail:    map[string]string{"event_id": event.ID, "department": event.Department},
	})
}

func (s *Service) remember(ctx context.Context, day domain.Day, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Remember(ctx, day, userID); err != nil {
		s.logger.WarnContext(ctx, "check-in cache store failed", "user_id", userID, "day", day.String(), "error", err)
	}
}
