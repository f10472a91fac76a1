package service

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"nfcattend/internal/attendance/models"
	"nfcattend/internal/audit"
	"nfcattend/pkg/domain"
	dErrors "nfcattend/pkg/domain-errors"
	"nfcattend/pkg/requestcontext"
)

type migrateResult int

const (
	migrated migrateResult = iota
	skipped
	failed
)

// MigrateLegacy copies flat legacy rows into the partitioned ledger.
//
// Rows without a date are skipped, rows with a bad date or no user are
// failed. Each remaining row is imported under its original id and counted
// only when actually inserted, so running the sweep again changes nothing.
func (s *Service) MigrateLegacy(ctx context.Context) (*models.MigrationSummary, error) {
	ctx, span := tracer.Start(ctx, "attendance.MigrateLegacy")
	defer span.End()

	if s.legacy == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "legacy migration is not configured")
	}

	summary := &models.MigrationSummary{}
	for rec, err := range s.legacy.All(ctx) {
		if err != nil {
			s.logger.ErrorContext(ctx, "legacy sweep aborted",
				"migrated", summary.Migrated,
				"failed", summary.Failed,
				"skipped", summary.Skipped,
				"error", err,
			)
			err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to read legacy records")
			recordSpanError(span, err)
			return nil, err
		}
		switch s.migrateRecord(ctx, rec) {
		case migrated:
			summary.Migrated++
		case skipped:
			summary.Skipped++
		case failed:
			summary.Failed++
		}
	}

	span.SetAttributes(
		attribute.Int("attendance.migrated", summary.Migrated),
		attribute.Int("attendance.failed", summary.Failed),
		attribute.Int("attendance.skipped", summary.Skipped),
	)
	if s.metrics != nil {
		s.metrics.AddLegacyRows(summary.Migrated, summary.Failed, summary.Skipped)
	}
	s.logger.InfoContext(ctx, "legacy migration finished",
		"migrated", summary.Migrated,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)
	s.emit(ctx, audit.Event{
		Timestamp: requestcontext.Now(ctx).UTC(),
		Action:    audit.ActionLegacyMigrate,
		RequestID: requestcontext.RequestID(ctx),
		Detail: map[string]string{
			"migrated": strconv.Itoa(summary.Migrated),
			"failed":   strconv.Itoa(summary.Failed),
			"skipped":  strconv.Itoa(summary.Skipped),
		},
	})
	return summary, nil
}

func (s *Service) migrateRecord(ctx context.Context, rec *models.LegacyRecord) migrateResult {
	if rec.Date == "" {
		return skipped
	}
	day, err := domain.ParseDay(rec.Date)
	if err != nil {
		s.logger.WarnContext(ctx, "legacy row has invalid date", "legacy_id", rec.ID, "date", rec.Date)
		return failed
	}
	if rec.UserID == "" {
		s.logger.WarnContext(ctx, "legacy row has no user", "legacy_id", rec.ID)
		return failed
	}

	event := &models.AttendanceEvent{
		ID:         rec.ID,
		UserID:     rec.UserID,
		TagID:      rec.TagID,
		Name:       rec.Name,
		Department: models.DepartmentOrUnknown(rec.Department),
		Day:        day,
		Timestamp:  day.Time(),
		Action:     models.ActionCheckIn,
		DeviceID:   rec.DeviceID,
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if rec.Timestamp != nil {
		event.Timestamp = rec.Timestamp.UTC()
	}
	if event.DeviceID == "" {
		event.DeviceID = s.defaultDevice
	}

	var inserted bool
	txCtx := WithTxUser(ctx, rec.UserID)
	err = s.tx.RunInTx(txCtx, func(ledger LedgerStore) error {
		if err := ledger.EnsureDay(txCtx, day); err != nil {
			return err
		}
		var err error
		if inserted, err = ledger.Import(txCtx, event); err != nil || !inserted {
			return err
		}
		return ledger.RecordIncrement(txCtx, day, event.Department)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to migrate legacy row", "legacy_id", rec.ID, "error", err)
		return failed
	}
	if !inserted {
		return skipped
	}
	return migrated
}
