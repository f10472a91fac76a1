package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"nfcattend/internal/attendance/models"
	"nfcattend/pkg/domain"
	dErrors "nfcattend/pkg/domain-errors"
	"nfcattend/pkg/platform/sentinel"
	"nfcattend/pkg/requestcontext"
)

// defaultRangeDays is the trailing window used when no start is given.
const defaultRangeDays = 7

// DailyReport returns the aggregate and the time-ordered events of a day.
// An empty date means today. A day without activity yields an empty report.
func (s *Service) DailyReport(ctx context.Context, date string) (*models.DailyReport, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "attendance.DailyReport")
	defer span.End()

	day, err := s.parseDayOrToday(ctx, date, "date")
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("attendance.day", day.String()))

	var (
		agg     *models.DailyAggregate
		records []*models.AttendanceEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := s.ledger.Aggregate(gctx, day)
		if errors.Is(err, sentinel.ErrNotFound) {
			agg = models.NewDailyAggregate(day)
			return nil
		}
		if err != nil {
			return err
		}
		agg = a
		return nil
	})
	g.Go(func() error {
		for e, err := range s.ledger.EventsForDay(gctx, day) {
			if err != nil {
				return err
			}
			records = append(records, e)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		err = s.storageError(ctx, err, "failed to load daily report")
		recordSpanError(span, err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveReportDuration("daily", time.Since(start).Seconds())
	}
	return &models.DailyReport{
		Day:         day,
		Count:       agg.Count,
		Departments: agg.Departments,
		Records:     records,
	}, nil
}

// RangeReport returns the aggregates of the days in [start, end] that saw
// activity, ascending. Missing bounds default to the trailing week ending today.
func (s *Service) RangeReport(ctx context.Context, startDate, endDate string) (*models.RangeReport, error) {
	begin := time.Now()
	ctx, span := tracer.Start(ctx, "attendance.RangeReport")
	defer span.End()

	end, err := s.parseDayOrToday(ctx, endDate, "end")
	if err != nil {
		return nil, err
	}
	start := end.AddDays(-(defaultRangeDays - 1))
	if strings.TrimSpace(startDate) != "" {
		if start, err = parseDay(startDate, "start"); err != nil {
			return nil, err
		}
	}
	if end.Before(start) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "start date must not be after end date")
	}
	if n := start.DaysUntil(end); n > s.maxRangeDays {
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("date range of %d days exceeds the maximum of %d", n, s.maxRangeDays))
	}
	span.SetAttributes(
		attribute.String("attendance.start", start.String()),
		attribute.String("attendance.end", end.String()),
	)

	report := &models.RangeReport{Start: start, End: end}
	for agg, err := range s.ledger.AggregatesForRange(ctx, start, end) {
		if err != nil {
			err = s.storageError(ctx, err, "failed to load range report")
			recordSpanError(span, err)
			return nil, err
		}
		if agg.Count == 0 {
			continue
		}
		report.Days = append(report.Days, agg)
	}

	if s.metrics != nil {
		s.metrics.ObserveReportDuration("range", time.Since(begin).Seconds())
	}
	return report, nil
}

func (s *Service) parseDayOrToday(ctx context.Context, value, field string) (domain.Day, error) {
	if strings.TrimSpace(value) == "" {
		return domain.DayOf(requestcontext.Now(ctx)), nil
	}
	return parseDay(value, field)
}

func parseDay(value, field string) (domain.Day, error) {
	day, err := domain.ParseDay(strings.TrimSpace(value))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeBadRequest, fmt.Sprintf("invalid %s, expected YYYY-MM-DD", field))
	}
	return day, nil
}
