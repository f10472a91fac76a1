package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nfcattend/internal/attendance/models"
	"nfcattend/internal/platform/database"
	"nfcattend/pkg/platform/sentinel"
)

const userColumns = "id, tag_id, name, department, status, registered_at, last_check_in_at"

// SQLStore persists users in Postgres or SQLite.
type SQLStore struct {
	db *database.DB
}

// NewSQL constructs a SQL-backed user store.
func NewSQL(db *database.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) q(query string) string {
	return s.db.Dialect.Rebind(query)
}

func (s *SQLStore) Create(ctx context.Context, u *models.User) error {
	var tag sql.NullString
	if u.TagID != "" {
		tag = sql.NullString{String: u.TagID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO users (id, tag_id, name, department, status, registered_at, last_check_in_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`),
		u.ID, tag, u.Name, u.Department, string(u.Status), u.RegisteredAt.UTC(), nullTime(u.LastCheckInAt),
	)
	if err != nil {
		return fmt.Errorf("create user: %w", database.Classify(err))
	}
	return nil
}

// ResolveByTag takes the earliest registration for the tag so the lookup
// stays deterministic even against rows written before the unique index.
func (s *SQLStore) ResolveByTag(ctx context.Context, tagID string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT `+userColumns+` FROM users
		WHERE tag_id = $1
		ORDER BY registered_at, id
		LIMIT 1`), tagID)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("resolve user by tag: %w", database.Classify(err))
	}
	return u, nil
}

func (s *SQLStore) FindByID(ctx context.Context, userID string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+userColumns+` FROM users WHERE id = $1`), userID)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user by id: %w", database.Classify(err))
	}
	return u, nil
}

func (s *SQLStore) MarkCheckedIn(ctx context.Context, userID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE users
		SET last_check_in_at = $2,
		    status = CASE WHEN status = 'inactive' THEN status ELSE 'present' END
		WHERE id = $1`), userID, at.UTC())
	if err != nil {
		return fmt.Errorf("mark user checked in: %w", database.Classify(err))
	}
	return requireRow(res)
}

func (s *SQLStore) SetStatus(ctx context.Context, userID string, status models.UserStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("set user status %q: %w", status, sentinel.ErrInvalidState)
	}
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE users SET status = $2 WHERE id = $1`), userID, string(status))
	if err != nil {
		return fmt.Errorf("set user status: %w", database.Classify(err))
	}
	return requireRow(res)
}

func (s *SQLStore) List(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", database.Classify(err))
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", database.Classify(err))
	}
	return out, nil
}

// Ping reports backend connectivity for the liveness endpoint.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	var (
		u           models.User
		tag         sql.NullString
		status      string
		lastCheckIn sql.NullTime
	)
	if err := row.Scan(&u.ID, &tag, &u.Name, &u.Department, &status, &u.RegisteredAt, &lastCheckIn); err != nil {
		return nil, err
	}
	u.TagID = tag.String
	u.Status = models.UserStatus(status)
	u.RegisteredAt = u.RegisteredAt.UTC()
	if lastCheckIn.Valid {
		t := lastCheckIn.Time.UTC()
		u.LastCheckInAt = &t
	}
	return &u, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
