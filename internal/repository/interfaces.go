package repository

import (
	"context"
	"database/sql"

	"github.com/sketchstacker/server/internal/models"
)

// Querier is satisfied by *sql.DB and *observability.TraceDB
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// UploadRepo defines the interface for the upload ledger
type UploadRepo interface {
	// GetByHash and GetByKey return (nil, nil) when nothing matches.
	GetByHash(ctx context.Context, hash string) (*models.Upload, error)
	GetByKey(ctx context.Context, key string) (*models.Upload, error)
	GetAll(ctx context.Context, skip, take int) ([]*models.Upload, error)
	GetCount(ctx context.Context) (int, error)
	Add(ctx context.Context, upload *models.Upload) error
	DeleteByKey(ctx context.Context, key string) (bool, error)
}
