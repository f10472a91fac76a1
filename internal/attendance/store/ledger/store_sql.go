package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"nfcattend/internal/attendance/models"
	"nfcattend/internal/platform/database"
	"nfcattend/pkg/domain"
	"nfcattend/pkg/platform/sentinel"
)

const eventColumns = "id, user_id, tag_id, name, department, day, recorded_at, action, device_id"

// SQLStore persists the partitioned ledger in Postgres or SQLite. It runs
// against either the pool or a transaction.
type SQLStore struct {
	q       database.Querier
	dialect database.Dialect
}

// NewSQL constructs a ledger store on the pool.
func NewSQL(db *database.DB) *SQLStore {
	return &SQLStore{q: db.DB, dialect: db.Dialect}
}

// NewSQLTx constructs a ledger store bound to an open transaction.
func NewSQLTx(tx *sql.Tx, dialect database.Dialect) *SQLStore {
	return &SQLStore{q: tx, dialect: dialect}
}

func (s *SQLStore) rebind(query string) string {
	return s.dialect.Rebind(query)
}

func (s *SQLStore) EnsureDay(ctx context.Context, day domain.Day) error {
	_, err := s.q.ExecContext(ctx, s.rebind(`
		INSERT INTO attendance_days (day, count) VALUES ($1, 0)
		ON CONFLICT (day) DO NOTHING`), day.String())
	if err != nil {
		return fmt.Errorf("ensure day %s: %w", day, database.Classify(err))
	}
	return nil
}

func (s *SQLStore) HasEventFor(ctx context.Context, userID string, day domain.Day) (bool, error) {
	var exists int
	err := s.q.QueryRowContext(ctx, s.rebind(`
		SELECT 1 FROM attendance_events WHERE day = $1 AND user_id = $2`), day.String(), userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check event for %s: %w", day, database.Classify(err))
	}
	return true, nil
}

// Append inserts the event unless the user already has one for the day.
func (s *SQLStore) Append(ctx context.Context, event *models.AttendanceEvent) error {
	inserted, err := s.Import(ctx, event)
	if err != nil {
		return err
	}
	if !inserted {
		return sentinel.ErrConflict
	}
	return nil
}

// Import is Append that reports an existing row as false instead of an error.
func (s *SQLStore) Import(ctx context.Context, event *models.AttendanceEvent) (bool, error) {
	res, err := s.q.ExecContext(ctx, s.rebind(`
		INSERT INTO attendance_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING`),
		event.ID, event.UserID, event.TagID, event.Name, event.Department,
		event.Day.String(), event.Timestamp.UTC(), event.Action, event.DeviceID,
	)
	if err != nil {
		return false, fmt.Errorf("insert event: %w", database.Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert event: %w", err)
	}
	return n == 1, nil
}

// RecordIncrement bumps the day total and the department counter in place.
func (s *SQLStore) RecordIncrement(ctx context.Context, day domain.Day, department string) error {
	res, err := s.q.ExecContext(ctx, s.rebind(`
		UPDATE attendance_days SET count = count + 1 WHERE day = $1`), day.String())
	if err != nil {
		return fmt.Errorf("increment day %s: %w", day, database.Classify(err))
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("increment day %s: %w", day, err)
	} else if n == 0 {
		return sentinel.ErrNotFound
	}

	_, err = s.q.ExecContext(ctx, s.rebind(`
		INSERT INTO attendance_day_departments (day, department, count) VALUES ($1, $2, 1)
		ON CONFLICT (day, department) DO UPDATE
		SET count = attendance_day_departments.count + 1`), day.String(), department)
	if err != nil {
		return fmt.Errorf("increment department %s/%s: %w", day, department, database.Classify(err))
	}
	return nil
}

func (s *SQLStore) Aggregate(ctx context.Context, day domain.Day) (*models.DailyAggregate, error) {
	var found *models.DailyAggregate
	for agg, err := range s.aggregates(ctx, `WHERE d.day = $1`, day.String()) {
		if err != nil {
			return nil, err
		}
		found = agg
	}
	if found == nil {
		return nil, sentinel.ErrNotFound
	}
	return found, nil
}

func (s *SQLStore) AggregatesForRange(ctx context.Context, start, end domain.Day) iter.Seq2[*models.DailyAggregate, error] {
	return s.aggregates(ctx, `WHERE d.day BETWEEN $1 AND $2`, start.String(), end.String())
}

// aggregates reads days joined with their department rows in one statement
// and folds consecutive rows of a day into one aggregate.
func (s *SQLStore) aggregates(ctx context.Context, where string, args ...any) iter.Seq2[*models.DailyAggregate, error] {
	return func(yield func(*models.DailyAggregate, error) bool) {
		rows, err := s.q.QueryContext(ctx, s.rebind(`
			SELECT d.day, d.count, dd.department, dd.count
			FROM attendance_days d
			LEFT JOIN attendance_day_departments dd ON dd.day = d.day
			`+where+`
			ORDER BY d.day, dd.department`), args...)
		if err != nil {
			yield(nil, fmt.Errorf("query aggregates: %w", database.Classify(err)))
			return
		}
		defer rows.Close()

		var current *models.DailyAggregate
		for rows.Next() {
			var (
				day       string
				count     int
				dept      sql.NullString
				deptCount sql.NullInt64
			)
			if err := rows.Scan(&day, &count, &dept, &deptCount); err != nil {
				yield(nil, fmt.Errorf("scan aggregate: %w", err))
				return
			}
			if current != nil && current.Day.String() != day {
				if !yield(current, nil) {
					return
				}
				current = nil
			}
			if current == nil {
				current = models.NewDailyAggregate(domain.Day(day))
				current.Count = count
			}
			if dept.Valid {
				current.Departments[dept.String] = int(deptCount.Int64)
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("iterate aggregates: %w", database.Classify(err)))
			return
		}
		if current != nil {
			yield(current, nil)
		}
	}
}

func (s *SQLStore) EventsForDay(ctx context.Context, day domain.Day) iter.Seq2[*models.AttendanceEvent, error] {
	return func(yield func(*models.AttendanceEvent, error) bool) {
		rows, err := s.q.QueryContext(ctx, s.rebind(`
			SELECT `+eventColumns+` FROM attendance_events
			WHERE day = $1
			ORDER BY recorded_at, id`), day.String())
		if err != nil {
			yield(nil, fmt.Errorf("query events for %s: %w", day, database.Classify(err)))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				e      models.AttendanceEvent
				dayStr string
			)
			if err := rows.Scan(&e.ID, &e.UserID, &e.TagID, &e.Name, &e.Department, &dayStr, &e.Timestamp, &e.Action, &e.DeviceID); err != nil {
				yield(nil, fmt.Errorf("scan event: %w", err))
				return
			}
			e.Day = domain.Day(dayStr)
			e.Timestamp = e.Timestamp.UTC()
			if !yield(&e, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("iterate events for %s: %w", day, database.Classify(err)))
		}
	}
}
