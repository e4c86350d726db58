package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormReplayRepository struct{ db *gorm.DB }

// NewReplayRepository returns a ReplayRepository backed by the given *gorm.DB.
func NewReplayRepository(db *gorm.DB) ReplayRepository {
	return &gormReplayRepository{db: db}
}

func (r *gormReplayRepository) GetByID(ctx context.Context, id uuid.UUID) (*Replay, error) {
	var rep Replay
	if err := r.db.WithContext(ctx).First(&rep, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("replays: get by id: %w", err)
	}
	return &rep, nil
}

func (r *gormReplayRepository) Insert(ctx context.Context, rep *Replay) error {
	var exists int64
	if err := r.db.WithContext(ctx).Model(&File{}).Where("id = ?", rep.FileID).Count(&exists).Error; err != nil {
		return fmt.Errorf("replays: insert: check file: %w", err)
	}
	if exists == 0 {
		return ErrMissingParentFile
	}
	if err := r.db.WithContext(ctx).Create(rep).Error; err != nil {
		return fmt.Errorf("replays: insert: %w", err)
	}
	return nil
}

// Stream chunks every Replay row to fn in created_at order.
func (r *gormReplayRepository) Stream(ctx context.Context, chunkSize int, fn func([]Replay) error) error {
	offset := 0
	for {
		var chunk []Replay
		err := r.db.WithContext(ctx).Order("created_at asc").
			Limit(chunkSize).Offset(offset).Find(&chunk).Error
		if err != nil {
			return fmt.Errorf("replays: stream: %w", err)
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

func (r *gormReplayRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rep Replay
		if err := tx.First(&rep, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("replays: delete: get: %w", err)
		}
		if err := tx.Delete(&rep).Error; err != nil {
			return fmt.Errorf("replays: delete: %w", err)
		}
		if err := tx.Delete(&File{}, "id = ?", rep.FileID).Error; err != nil {
			return fmt.Errorf("replays: delete: file: %w", err)
		}
		return nil
	})
}
