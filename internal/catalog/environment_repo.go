package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormEnvironmentRepository struct{ db *gorm.DB }

// NewEnvironmentRepository returns an EnvironmentRepository backed by the
// given *gorm.DB.
func NewEnvironmentRepository(db *gorm.DB) EnvironmentRepository {
	return &gormEnvironmentRepository{db: db}
}

func (r *gormEnvironmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*Environment, error) {
	var e Environment
	if err := r.db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("environments: get by id: %w", err)
	}
	return &e, nil
}

func (r *gormEnvironmentRepository) Insert(ctx context.Context, e *Environment) error {
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("environments: insert: %w", err)
	}
	return nil
}

func (r *gormEnvironmentRepository) GetAll(ctx context.Context, opts ListOptions) ([]Environment, int64, error) {
	var (
		envs  []Environment
		count int64
	)
	q := r.db.WithContext(ctx).Model(&Environment{})
	if opts.Contains != "" {
		q = q.Where("name LIKE ?", "%"+opts.Contains+"%")
	}
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("environments: count: %w", err)
	}
	order := opts.OrderBy
	if order == "" {
		order = "created_at desc"
	}
	if err := q.Order(order).Limit(opts.Limit).Offset(opts.Offset).Find(&envs).Error; err != nil {
		return nil, 0, fmt.Errorf("environments: list: %w", err)
	}
	return envs, count, nil
}
