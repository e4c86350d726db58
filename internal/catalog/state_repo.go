package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormStateRepository struct{ db *gorm.DB }

// NewStateRepository returns a StateRepository backed by the given *gorm.DB.
func NewStateRepository(db *gorm.DB) StateRepository {
	return &gormStateRepository{db: db}
}

func (r *gormStateRepository) GetByID(ctx context.Context, id uuid.UUID) (*State, error) {
	var s State
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("states: get by id: %w", err)
	}
	return &s, nil
}

func (r *gormStateRepository) GetByHash(ctx context.Context, hash string) (*State, error) {
	var s State
	err := r.db.WithContext(ctx).
		Joins("JOIN files ON files.id = states.file_id").
		Where("files.hash = ?", hash).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("states: get by hash: %w", err)
	}
	return &s, nil
}

// Insert rejects duplicate-hash State ingest outright (testable invariant
// 4: no two States share a file hash) and verifies the referenced File
// exists, matching the File-backed-parent referential invariant.
func (r *gormStateRepository) Insert(ctx context.Context, s *State) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var file File
		if err := tx.First(&file, "id = ?", s.FileID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMissingParentFile
			}
			return fmt.Errorf("states: insert: check file: %w", err)
		}
		var dupCount int64
		if err := tx.Model(&State{}).
			Joins("JOIN files ON files.id = states.file_id").
			Where("files.hash = ?", file.Hash).
			Count(&dupCount).Error; err != nil {
			return fmt.Errorf("states: insert: check dup: %w", err)
		}
		if dupCount > 0 {
			return ErrConflict
		}
		if err := tx.Create(s).Error; err != nil {
			return fmt.Errorf("states: insert: %w", err)
		}
		return nil
	})
}

// Stream chunks every State row to fn in created_at order, for the search
// indexer's full reindex (component C).
func (r *gormStateRepository) Stream(ctx context.Context, chunkSize int, fn func([]State) error) error {
	offset := 0
	for {
		var chunk []State
		err := r.db.WithContext(ctx).Order("created_at asc").
			Limit(chunkSize).Offset(offset).Find(&chunk).Error
		if err != nil {
			return fmt.Errorf("states: stream: %w", err)
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

func (r *gormStateRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s State
		if err := tx.First(&s, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("states: delete: get: %w", err)
		}
		if err := tx.Delete(&s).Error; err != nil {
			return fmt.Errorf("states: delete: %w", err)
		}
		if err := tx.Delete(&File{}, "id = ?", s.FileID).Error; err != nil {
			return fmt.Errorf("states: delete: file: %w", err)
		}
		return nil
	})
}
