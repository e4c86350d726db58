package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormWorkRepository struct{ db *gorm.DB }

// NewWorkRepository returns a WorkRepository backed by the given *gorm.DB.
func NewWorkRepository(db *gorm.DB) WorkRepository {
	return &gormWorkRepository{db: db}
}

func (r *gormWorkRepository) GetByID(ctx context.Context, id uuid.UUID) (*Work, error) {
	var w Work
	if err := r.db.WithContext(ctx).First(&w, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("works: get by id: %w", err)
	}
	return &w, nil
}

func (r *gormWorkRepository) GetByName(ctx context.Context, name string) ([]Work, error) {
	var works []Work
	if err := r.db.WithContext(ctx).Where("name = ?", name).Find(&works).Error; err != nil {
		return nil, fmt.Errorf("works: get by name: %w", err)
	}
	return works, nil
}

func (r *gormWorkRepository) Insert(ctx context.Context, w *Work) error {
	if err := r.db.WithContext(ctx).Create(w).Error; err != nil {
		return fmt.Errorf("works: insert: %w", err)
	}
	return nil
}

func (r *gormWorkRepository) GetAll(ctx context.Context, opts ListOptions) ([]Work, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Model(&Work{}), opts)
}

func (r *gormWorkRepository) GetForPlatform(ctx context.Context, platform string, opts ListOptions) ([]Work, int64, error) {
	q := r.db.WithContext(ctx).Model(&Work{}).Where("platform = ?", platform)
	return r.list(ctx, q, opts)
}

func (r *gormWorkRepository) list(ctx context.Context, q *gorm.DB, opts ListOptions) ([]Work, int64, error) {
	var (
		works []Work
		count int64
	)
	if opts.Contains != "" {
		q = q.Where("name LIKE ?", "%"+opts.Contains+"%")
	}
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("works: count: %w", err)
	}
	order := opts.OrderBy
	if order == "" {
		order = "created_at desc"
	}
	if err := q.Order(order).Limit(opts.Limit).Offset(opts.Offset).Find(&works).Error; err != nil {
		return nil, 0, fmt.Errorf("works: list: %w", err)
	}
	return works, count, nil
}
