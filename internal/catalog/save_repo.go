package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormSaveRepository struct{ db *gorm.DB }

// NewSaveRepository returns a SaveRepository backed by the given *gorm.DB.
func NewSaveRepository(db *gorm.DB) SaveRepository {
	return &gormSaveRepository{db: db}
}

func (r *gormSaveRepository) GetByID(ctx context.Context, id uuid.UUID) (*Save, error) {
	var s Save
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("saves: get by id: %w", err)
	}
	return &s, nil
}

// GetByHash joins through File. Unlike State, Save ingest does not reject
// duplicate hashes — this lookup exists for informational dedup, not
// insert-time enforcement.
func (r *gormSaveRepository) GetByHash(ctx context.Context, hash string) (*Save, error) {
	var s Save
	err := r.db.WithContext(ctx).
		Joins("JOIN files ON files.id = saves.file_id").
		Where("files.hash = ?", hash).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("saves: get by hash: %w", err)
	}
	return &s, nil
}

func (r *gormSaveRepository) Insert(ctx context.Context, s *Save) error {
	var exists int64
	if err := r.db.WithContext(ctx).Model(&File{}).Where("id = ?", s.FileID).Count(&exists).Error; err != nil {
		return fmt.Errorf("saves: insert: check file: %w", err)
	}
	if exists == 0 {
		return ErrMissingParentFile
	}
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("saves: insert: %w", err)
	}
	return nil
}

// Stream chunks every Save row to fn in created_at order.
func (r *gormSaveRepository) Stream(ctx context.Context, chunkSize int, fn func([]Save) error) error {
	offset := 0
	for {
		var chunk []Save
		err := r.db.WithContext(ctx).Order("created_at asc").
			Limit(chunkSize).Offset(offset).Find(&chunk).Error
		if err != nil {
			return fmt.Errorf("saves: stream: %w", err)
		}
		if len(chunk) == 0 {
			return nil
		}
		if err := fn(chunk); err != nil {
			return err
		}
		if len(chunk) < chunkSize {
			return nil
		}
		offset += chunkSize
	}
}

func (r *gormSaveRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s Save
		if err := tx.First(&s, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("saves: delete: get: %w", err)
		}
		if err := tx.Delete(&s).Error; err != nil {
			return fmt.Errorf("saves: delete: %w", err)
		}
		if err := tx.Delete(&File{}, "id = ?", s.FileID).Error; err != nil {
			return fmt.Errorf("saves: delete: file: %w", err)
		}
		return nil
	})
}
