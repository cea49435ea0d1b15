package repository

import (
	"context"
	"strings"

	"github.com/sketchstacker/server/internal/models"
)

// UploadRepositoryPostgres handles upload persistence on PostgreSQL
type UploadRepositoryPostgres struct {
	db Querier
}

// NewUploadRepositoryPostgres creates a new UploadRepositoryPostgres
func NewUploadRepositoryPostgres(db Querier) *UploadRepositoryPostgres {
	return &UploadRepositoryPostgres{db: db}
}

func (r *UploadRepositoryPostgres) GetByHash(ctx context.Context, hash string) (*models.Upload, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE file_hash = $1 ORDER BY uploaded_at LIMIT 1`
	return scanUpload(r.db.QueryRowContext(ctx, query, strings.ToLower(hash)))
}

func (r *UploadRepositoryPostgres) GetByKey(ctx context.Context, key string) (*models.Upload, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE object_key = $1`
	return scanUpload(r.db.QueryRowContext(ctx, query, key))
}

func (r *UploadRepositoryPostgres) GetAll(ctx context.Context, skip, take int) ([]*models.Upload, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads ORDER BY uploaded_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, take, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanUploads(rows)
}

func (r *UploadRepositoryPostgres) GetCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM uploads`).Scan(&count)
	return count, err
}

func (r *UploadRepositoryPostgres) Add(ctx context.Context, upload *models.Upload) error {
	query := `
		INSERT INTO uploads (` + uploadColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
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

func (r *UploadRepositoryPostgres) DeleteByKey(ctx context.Context, key string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM uploads WHERE object_key = $1`, key)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

var (
	_ UploadRepo = (*UploadRepository)(nil)
	_ UploadRepo = (*UploadRepositoryPostgres)(nil)
)
