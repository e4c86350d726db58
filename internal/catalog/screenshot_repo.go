package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormScreenshotRepository struct{ db *gorm.DB }

// NewScreenshotRepository returns a ScreenshotRepository backed by the
// given *gorm.DB. Screenshots are stored in-band as blob columns, not in
// the Blob Store, so there is no physical file to reconcile on delete.
func NewScreenshotRepository(db *gorm.DB) ScreenshotRepository {
	return &gormScreenshotRepository{db: db}
}

func (r *gormScreenshotRepository) GetByID(ctx context.Context, id uuid.UUID) (*Screenshot, error) {
	var s Screenshot
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("screenshots: get by id: %w", err)
	}
	return &s, nil
}

func (r *gormScreenshotRepository) Insert(ctx context.Context, s *Screenshot) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("screenshots: insert: %w", err)
	}
	return nil
}

func (r *gormScreenshotRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&Screenshot{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("screenshots: delete: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
