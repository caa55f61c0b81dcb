package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"visa-portal/internal/models"
)

const selectMeeting = `SELECT id, name, start_date, end_date, location, active, created_at FROM meetings`

type meetingStore struct {
	q DBTX
}

func scanMeeting(sc rowScanner) (*models.Meeting, error) {
	var m models.Meeting
	if err := sc.Scan(&m.ID, &m.Name, &m.StartDate, &m.EndDate, &m.Location, &m.Active, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.StartDate = m.StartDate.UTC()
	m.EndDate = m.EndDate.UTC()
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

func (s *meetingStore) getOne(ctx context.Context, query string, arg string) (*models.Meeting, error) {
	m, err := scanMeeting(s.q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query meeting: %w", err)
	}
	return m, nil
}

func (s *meetingStore) GetByID(ctx context.Context, id string) (*models.Meeting, error) {
	return s.getOne(ctx, selectMeeting+" WHERE id = $1", id)
}

// GetByName matches the name exactly, including case.
func (s *meetingStore) GetByName(ctx context.Context, name string) (*models.Meeting, error) {
	return s.getOne(ctx, selectMeeting+" WHERE name = $1", name)
}

func (s *meetingStore) Create(ctx context.Context, m *models.Meeting) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO meetings (id, name, start_date, end_date, location, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.Name, m.StartDate.UTC(), m.EndDate.UTC(), m.Location, m.Active, m.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert meeting: %w", err)
	}
	return nil
}

func (s *meetingStore) List(ctx context.Context, activeOnly bool) ([]*models.Meeting, error) {
	query := selectMeeting
	if activeOnly {
		query += " WHERE active = TRUE"
	}
	query += " ORDER BY start_date DESC"

	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	var out []*models.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
