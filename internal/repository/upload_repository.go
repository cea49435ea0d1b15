package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/sketchstacker/server/internal/models"
)

const uploadColumns = `id, object_key, file_hash, file_size, width, height, uploaded_at`

// UploadRepository handles upload persistence on SQLite
type UploadRepository struct {
	db Querier
}

// NewUploadRepository creates a new UploadRepository
func NewUploadRepository(db Querier) *UploadRepository {
	return &UploadRepository{db: db}
}

// GetByHash retrieves an upload by its content hash
func (r *UploadRepository) GetByHash(ctx context.Context, hash string) (*models.Upload, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE file_hash = ? ORDER BY uploaded_at LIMIT 1`
	return scanUpload(r.db.QueryRowContext(ctx, query, strings.ToLower(hash)))
}

// GetByKey retrieves an upload by its object key
func (r *UploadRepository) GetByKey(ctx context.Context, key string) (*models.Upload, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE object_key = ?`
	return scanUpload(r.db.QueryRowContext(ctx, query, key))
}

// GetAll retrieves uploads newest first with pagination
func (r *UploadRepository) GetAll(ctx context.Context, skip, take int) ([]*models.Upload, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads ORDER BY uploaded_at DESC LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, take, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanUploads(rows)
}

// GetCount returns the total number of uploads
func (r *UploadRepository) GetCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM uploads`).Scan(&count)
	return count, err
}

// Add inserts a new upload
func (r *UploadRepository) Add(ctx context.Context, upload *models.Upload) error {
	query := `
		INSERT INTO uploads (` + uploadColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		upload.ID,
		upload.ObjectKey,
		strings.ToLower(upload.FileHash),
		upload.FileSize,
		upload.Width,
		upload.Height,
		upload.UploadedAt,
	)
	return err
}

// DeleteByKey removes the ledger entry for key
func (r *UploadRepository) DeleteByKey(ctx context.Context, key string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM uploads WHERE object_key = ?`, key)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func scanUpload(row *sql.Row) (*models.Upload, error) {
	var upload models.Upload
	err := row.Scan(
		&upload.ID,
		&upload.ObjectKey,
		&upload.FileHash,
		&upload.FileSize,
		&upload.Width,
		&upload.Height,
		&upload.UploadedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &upload, nil
}

func scanUploads(rows *sql.Rows) ([]*models.Upload, error) {
	uploads := []*models.Upload{}
	for rows.Next() {
		var upload models.Upload
		if err := rows.Scan(
			&upload.ID,
			&upload.ObjectKey,
			&upload.FileHash,
			&upload.FileSize,
			&upload.Width,
			&upload.Height,
			&upload.UploadedAt,
		); err != nil {
			return nil, err
		}
		uploads = append(uploads, &upload)
	}
	return uploads, rows.Err()
}
