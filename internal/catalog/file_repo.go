package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormFileRepository struct{ db *gorm.DB }

// NewFileRepository returns a FileRepository backed by the given *gorm.DB.
func NewFileRepository(db *gorm.DB) FileRepository {
	return &gormFileRepository{db: db}
}

func (r *gormFileRepository) GetByID(ctx context.Context, id uuid.UUID) (*File, error) {
	var f File
	if err := r.db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("files: get by id: %w", err)
	}
	return &f, nil
}

func (r *gormFileRepository) GetByHash(ctx context.Context, hash string) (*File, error) {
	var f File
	if err := r.db.WithContext(ctx).First(&f, "hash = ?", hash).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("files: get by hash: %w", err)
	}
	return &f, nil
}

func (r *gormFileRepository) Insert(ctx context.Context, f *File) error {
	if err := r.db.WithContext(ctx).Create(f).Error; err != nil {
		return fmt.Errorf("files: insert: %w", err)
	}
	return nil
}

func (r *gormFileRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&File{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("files: delete: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormFileRepository) GetAll(ctx context.Context, opts ListOptions) ([]File, int64, error) {
	var (
		files []File
		count int64
	)
	q := r.db.WithContext(ctx).Model(&File{})
	if opts.Contains != "" {
		q = q.Where("filename LIKE ?", "%"+opts.Contains+"%")
	}
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("files: count: %w", err)
	}
	order := opts.OrderBy
	if order == "" {
		order = "created_at desc"
	}
	if err := q.Order(order).Limit(opts.Limit).Offset(opts.Offset).Find(&files).Error; err != nil {
		return nil, 0, fmt.Errorf("files: list: %w", err)
	}
	return files, count, nil
}
