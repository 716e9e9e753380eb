package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/teemow/duety/internal/sync"
)

const (
	sqlCalendarColumns = `id, username, url, name, created_at, updated_at`

	sqlInsertCalendar = `INSERT INTO calendars (` + sqlCalendarColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)`

	sqlGetCalendar = `SELECT ` + sqlCalendarColumns + ` FROM calendars WHERE id = ?`

	sqlListCalendars = `SELECT ` + sqlCalendarColumns + ` FROM calendars
		WHERE username = ? ORDER BY created_at, id`

	sqlDeleteCalendar = `DELETE FROM calendars WHERE id = ? AND username = ?`
)

// CreateCalendar registers a feed for username. Registering the same URL
// twice for one user returns ErrDuplicate.
func (s *Store) CreateCalendar(ctx context.Context, username, url, name string) (sync.Calendar, error) {
	now := s.now()
	cal := sync.Calendar{
		ID:        uuid.NewString(),
		Username:  username,
		URL:       url,
		Name:      name,
		CreatedAt: fromUnixNano(now),
		UpdatedAt: fromUnixNano(now),
	}

	_, err := s.db.ExecContext(ctx, sqlInsertCalendar, cal.ID, cal.Username, cal.URL, cal.Name, now, now)
	if isUniqueViolation(err) {
		return sync.Calendar{}, fmt.Errorf("store: calendar %s for %s: %w", url, username, ErrDuplicate)
	}
	if err != nil {
		return sync.Calendar{}, fmt.Errorf("store: creating calendar: %w", err)
	}
	return cal, nil
}

// GetCalendar returns the calendar with id.
func (s *Store) GetCalendar(ctx context.Context, id string) (sync.Calendar, error) {
	cal, err := scanCalendar(s.db.QueryRowContext(ctx, sqlGetCalendar, id))
	if errors.Is(err, sql.ErrNoRows) {
		return sync.Calendar{}, fmt.Errorf("store: calendar %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return sync.Calendar{}, fmt.Errorf("store: getting calendar %s: %w", id, err)
	}
	return cal, nil
}

// ListCalendars returns the user's calendars, oldest first.
func (s *Store) ListCalendars(ctx context.Context, username string) ([]sync.Calendar, error) {
	rows, err := s.db.QueryContext(ctx, sqlListCalendars, username)
	if err != nil {
		return nil, fmt.Errorf("store: listing calendars: %w", err)
	}
	defer rows.Close()

	cals := []sync.Calendar{}
	for rows.Next() {
		cal, err := scanCalendar(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scanning calendar: %w", err)
		}
		cals = append(cals, cal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating calendars: %w", err)
	}
	return cals, nil
}

// DeleteCalendar removes a calendar owned by username together with its
// sync records.
func (s *Store) DeleteCalendar(ctx context.Context, username, id string) error {
	res, err := s.db.ExecContext(ctx, sqlDeleteCalendar, id, username)
	if err != nil {
		return fmt.Errorf("store: deleting calendar %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: deleting calendar %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("store: calendar %s: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCalendar(row rowScanner) (sync.Calendar, error) {
	var (
		cal                  sync.Calendar
		createdAt, updatedAt int64
	)
	if err := row.Scan(&cal.ID, &cal.Username, &cal.URL, &cal.Name, &createdAt, &updatedAt); err != nil {
		return sync.Calendar{}, err
	}
	cal.CreatedAt = fromUnixNano(createdAt)
	cal.UpdatedAt = fromUnixNano(updatedAt)
	return cal, nil
}
