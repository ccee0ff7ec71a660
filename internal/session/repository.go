package session

import (
	"context"
	"database/sql"
	"time"

	"github.com/clipforge/clipforge-server/internal/project"
)

// Job statuses.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Record is the registry row for a session. Media files and the project
// descriptor live in the session directory; the row lets the server re-attach
// sessions after a restart.
type Record struct {
	ID           string
	Dir          string
	CurrentFile  string
	OriginalName string
	EditCount    int
	CreatedAt    time.Time
}

// Job is a registry row for a long-running operation (render, dead-air
// removal, gif creation, transcription).
type Job struct {
	ID        string
	SessionID string
	Type      string
	Status    string
	Progress  int
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Repository interface {
	CreateSession(ctx context.Context, rec *Record) error
	GetSession(ctx context.Context, id string) (*Record, error)
	ListSessions(ctx context.Context) ([]*Record, error)
	DeleteSession(ctx context.Context, id string) error
	UpdateSessionCurrent(ctx context.Context, id, currentFile, originalName string) error
	UpdateSessionEditCount(ctx context.Context, id string, editCount int) error

	SaveAsset(ctx context.Context, sessionID string, a *project.Asset) error
	DeleteAsset(ctx context.Context, id string) error
	ListAssets(ctx context.Context, sessionID string) ([]project.Asset, error)

	CreateJob(ctx context.Context, j *Job) error
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateJobProgress(ctx context.Context, id string, progress int) error
	ListJobs(ctx context.Context, sessionID string, limit int) ([]*Job, error)
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, rec *Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, dir, current_file, original_name, edit_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Dir, nullString(rec.CurrentFile), nullString(rec.OriginalName), rec.EditCount, rec.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, dir, current_file, original_name, edit_count, created_at
		FROM sessions WHERE id = ?
	`, id)
	return scanSession(row)
}

func scanSession(row *sql.Row) (*Record, error) {
	var rec Record
	var createdAt string
	var currentFile sql.NullString
	var originalName sql.NullString

	err := row.Scan(&rec.ID, &rec.Dir, &currentFile, &originalName, &rec.EditCount, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec.CurrentFile = currentFile.String
	rec.OriginalName = originalName.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &rec, nil
}

func (r *SQLiteRepository) ListSessions(ctx context.Context) ([]*Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, dir, current_file, original_name, edit_count, created_at
		FROM sessions ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var rec Record
		var createdAt string
		var currentFile sql.NullString
		var originalName sql.NullString

		if err := rows.Scan(&rec.ID, &rec.Dir, &currentFile, &originalName, &rec.EditCount, &createdAt); err != nil {
			return nil, err
		}
		rec.CurrentFile = currentFile.String
		rec.OriginalName = originalName.String
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) UpdateSessionCurrent(ctx context.Context, id, currentFile, originalName string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET current_file = ?, original_name = ? WHERE id = ?",
		nullString(currentFile), nullString(originalName), id)
	return err
}

func (r *SQLiteRepository) UpdateSessionEditCount(ctx context.Context, id string, editCount int) error {
	_, err := r.db.ExecContext(ctx, "UPDATE sessions SET edit_count = ? WHERE id = ?", editCount, id)
	return err
}

func (r *SQLiteRepository) SaveAsset(ctx context.Context, sessionID string, a *project.Asset) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO assets (id, session_id, type, filename, path, thumbnail_path, duration, size, width, height, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, sessionID, string(a.Type), a.Filename, a.Path, nullString(a.ThumbnailPath),
		a.Duration, a.Size, a.Width, a.Height, a.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) DeleteAsset(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM assets WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) ListAssets(ctx context.Context, sessionID string) ([]project.Asset, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, filename, path, thumbnail_path, duration, size, width, height, created_at
		FROM assets WHERE session_id = ? ORDER BY created_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []project.Asset
	for rows.Next() {
		var a project.Asset
		var assetType string
		var createdAt string
		var thumbnailPath sql.NullString

		if err := rows.Scan(&a.ID, &assetType, &a.Filename, &a.Path, &thumbnailPath,
			&a.Duration, &a.Size, &a.Width, &a.Height, &createdAt); err != nil {
			return nil, err
		}
		a.Type = project.AssetType(assetType)
		a.ThumbnailPath = thumbnailPath.String
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, session_id, type, status, progress, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.SessionID, j.Type, j.Status, j.Progress, nullString(j.Error),
		j.CreatedAt.Format(time.RFC3339), j.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?",
		status, nullString(errorMsg), time.Now().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE jobs SET progress = ?, updated_at = ? WHERE id = ?",
		progress, time.Now().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, sessionID string, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, type, status, progress, error, created_at, updated_at
		FROM jobs WHERE session_id = ? ORDER BY created_at DESC LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		var j Job
		var createdAt, updatedAt string
		var errorMsg sql.NullString

		if err := rows.Scan(&j.ID, &j.SessionID, &j.Type, &j.Status, &j.Progress, &errorMsg, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		j.Error = errorMsg.String
		j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
