package store

import (
	"context"
	"database/sql"
	"time"
)

// timeFormat sorts lexicographically in the same order as the instants it
// encodes.
const timeFormat = "2006-01-02T15:04:05.000Z"

type Repository interface {
	CreateGeneration(ctx context.Context, g *Generation) error
	GetGeneration(ctx context.Context, id string) (*Generation, error)
	ListGenerations(ctx context.Context, limit int) ([]*Generation, error)
	CompleteGeneration(ctx context.Context, id, status, draftID, errorMsg string) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateGeneration(ctx context.Context, g *Generation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO generations (id, template_id, request, status, draft_id, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, g.ID, nullString(g.TemplateID), string(g.Request), g.Status,
		nullString(g.DraftID), nullString(g.Error),
		formatTime(g.CreatedAt), formatTime(g.UpdatedAt))
	return err
}

// GetGeneration returns nil, nil when id is unknown.
func (r *SQLiteRepository) GetGeneration(ctx context.Context, id string) (*Generation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, template_id, request, status, draft_id, error, created_at, updated_at
		FROM generations WHERE id = ?
	`, id)
	g, err := scanGeneration(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return g, err
}

// ListGenerations returns the newest generations first.
func (r *SQLiteRepository) ListGenerations(ctx context.Context, limit int) ([]*Generation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, template_id, request, status, draft_id, error, created_at, updated_at
		FROM generations ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	generations := []*Generation{}
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		generations = append(generations, g)
	}
	return generations, rows.Err()
}

func (r *SQLiteRepository) CompleteGeneration(ctx context.Context, id, status, draftID, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE generations SET status = ?, draft_id = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, nullString(draftID), nullString(errorMsg), formatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGeneration(s scanner) (*Generation, error) {
	var g Generation
	var request string
	var templateID, draftID, errMsg sql.NullString
	var createdAt, updatedAt string

	if err := s.Scan(&g.ID, &templateID, &request, &g.Status, &draftID, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	g.TemplateID = templateID.String
	g.Request = []byte(request)
	g.DraftID = draftID.String
	g.Error = errMsg.String
	g.CreatedAt = parseTime(createdAt)
	g.UpdatedAt = parseTime(updatedAt)
	return &g, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
