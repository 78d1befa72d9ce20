package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-matchmaker/internal/db"
)

// FileRepository stores metadata of user uploaded files.
type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(database *gorm.DB) *FileRepository {
	return &FileRepository{db: database}
}

func (r *FileRepository) Create(ctx context.Context, rec *db.FileRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// ListByUser returns the users files, oldest first.
func (r *FileRepository) ListByUser(ctx context.Context, userID int64) ([]db.FileRecord, error) {
	var files []db.FileRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&files).Error
	return files, err
}
