package legacy

import (
	"context"
	"database/sql"
	"fmt"
	"iter"

	"nfcattend/internal/attendance/models"
	"nfcattend/internal/platform/database"
)

const defaultPageSize = 500

// SQLStore reads the flat attendance_legacy table.
type SQLStore struct {
	db       *database.DB
	pageSize int
}

// NewSQL constructs a SQL-backed legacy store.
func NewSQL(db *database.DB) *SQLStore {
	return &SQLStore{db: db, pageSize: defaultPageSize}
}

// Insert adds a legacy row; existing ids are left untouched.
func (s *SQLStore) Insert(ctx context.Context, rec *models.LegacyRecord) error {
	var ts sql.NullTime
	if rec.Timestamp != nil {
		ts = sql.NullTime{Time: rec.Timestamp.UTC(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, s.db.Dialect.Rebind(`
		INSERT INTO attendance_legacy (id, user_id, tag_id, name, department, day, recorded_at, device_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`),
		rec.ID, nullString(rec.UserID), nullString(rec.TagID), nullString(rec.Name),
		nullString(rec.Department), nullString(rec.Date), ts, nullString(rec.DeviceID),
	)
	if err != nil {
		return fmt.Errorf("insert legacy row: %w", database.Classify(err))
	}
	return nil
}

// All pages through the table by id. Each page is read and its rows closed
// before anything is yielded, so consumers may run their own queries, even
// on a single-connection pool.
func (s *SQLStore) All(ctx context.Context) iter.Seq2[*models.LegacyRecord, error] {
	return func(yield func(*models.LegacyRecord, error) bool) {
		after := ""
		for {
			page, err := s.page(ctx, after)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, rec := range page {
				if !yield(rec, nil) {
					return
				}
			}
			if len(page) < s.pageSize {
				return
			}
			after = page[len(page)-1].ID
		}
	}
}

func (s *SQLStore) page(ctx context.Context, after string) ([]*models.LegacyRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Dialect.Rebind(`
		SELECT id, user_id, tag_id, name, department, day, recorded_at, device_id
		FROM attendance_legacy
		WHERE id > $1
		ORDER BY id
		LIMIT $2`), after, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("query legacy rows: %w", database.Classify(err))
	}
	defer rows.Close()

	var out []*models.LegacyRecord
	for rows.Next() {
		var (
			rec                                    models.LegacyRecord
			userID, tagID, name, dept, day, device sql.NullString
			ts                                     sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &userID, &tagID, &name, &dept, &day, &ts, &device); err != nil {
			return nil, fmt.Errorf("scan legacy row: %w", err)
		}
		rec.UserID, rec.TagID, rec.Name = userID.String, tagID.String, name.String
		rec.Department, rec.Date, rec.DeviceID = dept.String, day.String, device.String
		if ts.Valid {
			t := ts.Time.UTC()
			rec.Timestamp = &t
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legacy rows: %w", database.Classify(err))
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
