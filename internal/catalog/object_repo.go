package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormObjectRepository struct{ db *gorm.DB }

// NewObjectRepository returns an ObjectRepository backed by the given *gorm.DB.
func NewObjectRepository(db *gorm.DB) ObjectRepository {
	return &gormObjectRepository{db: db}
}

func (r *gormObjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*Object, error) {
	var o Object
	if err := r.db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("objects: get by id: %w", err)
	}
	return &o, nil
}

// GetByHash joins through File, matching Object::get_by_hash in the
// original catalog: the first Object whose File has this hash.
func (r *gormObjectRepository) GetByHash(ctx context.Context, hash string) (*Object, error) {
	var o Object
	err := r.db.WithContext(ctx).
		Joins("JOIN files ON files.id = objects.file_id").
		Where("files.hash = ?", hash).
		First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("objects: get by hash: %w", err)
	}
	return &o, nil
}

// Insert verifies the referenced File exists before inserting — every
// File-backed parent enforces this referential invariant at the catalog
// layer rather than relying solely on the foreign key constraint, so the
// caller gets a typed ErrMissingParentFile instead of a raw SQL error.
func (r *gormObjectRepository) Insert(ctx context.Context, o *Object) error {
	var exists int64
	if err := r.db.WithContext(ctx).Model(&File{}).Where("id = ?", o.FileID).Count(&exists).Error; err != nil {
		return fmt.Errorf("objects: insert: check file: %w", err)
	}
	if exists == 0 {
		return ErrMissingParentFile
	}
	if err := r.db.WithContext(ctx).Create(o).Error; err != nil {
		return fmt.Errorf("objects: insert: %w", err)
	}
	return nil
}

// DeleteByID deletes the Object row, then its File row, then the caller is
// responsible for the physical blob (see blob store delete). Matches the
// "resolve File, delete parent, delete File row, delete blob" order from
// the referential-enforcement contract.
func (r *gormObjectRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o Object
		if err := tx.First(&o, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("objects: delete: get: %w", err)
		}
		if err := tx.Delete(&InstanceObject{}, "object_id = ?", id).Error; err != nil {
			return fmt.Errorf("objects: delete: unlink: %w", err)
		}
		if err := tx.Delete(&o).Error; err != nil {
			return fmt.Errorf("objects: delete: %w", err)
		}
		if err := tx.Delete(&File{}, "id = ?", o.FileID).Error; err != nil {
			return fmt.Errorf("objects: delete: file: %w", err)
		}
		return nil
	})
}

func (r *gormObjectRepository) GetAll(ctx context.Context, opts ListOptions) ([]Object, int64, error) {
	var (
		objects []Object
		count   int64
	)
	q := r.db.WithContext(ctx).Model(&Object{})
	if opts.Contains != "" {
		q = q.Where("description LIKE ?", "%"+opts.Contains+"%")
	}
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("objects: count: %w", err)
	}
	order := opts.OrderBy
	if order == "" {
		order = "created_at desc"
	}
	if err := q.Order(order).Limit(opts.Limit).Offset(opts.Offset).Find(&objects).Error; err != nil {
		return nil, 0, fmt.Errorf("objects: list: %w", err)
	}
	return objects, count, nil
}

// NextRoleIndex computes MAX(role_index)+1 for (instanceID, role), or 0
// when there is no such link, resolving Open Question 1. It runs as its own
// query on the repository's connection, not in a transaction with the
// LinkToInstance insert that follows it.
func (r *gormObjectRepository) NextRoleIndex(ctx context.Context, instanceID uuid.UUID, role ObjectRole) (int, error) {
	var max *int
	err := r.db.WithContext(ctx).Model(&InstanceObject{}).
		Where("instance_id = ? AND role = ?", instanceID, role).
		Select("MAX(role_index)").Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("objects: next role index: %w", err)
	}
	if max == nil {
		return 0, nil
	}
	return *max + 1, nil
}

func (r *gormObjectRepository) LinkToInstance(ctx context.Context, objectID, instanceID uuid.UUID, role ObjectRole, roleIndex int) error {
	link := InstanceObject{
		InstanceID: instanceID,
		ObjectID:   objectID,
		Role:       role,
		RoleIndex:  roleIndex,
	}
	if err := r.db.WithContext(ctx).Create(&link).Error; err != nil {
		return fmt.Errorf("objects: link to instance: %w", err)
	}
	return nil
}

func (r *gormObjectRepository) GetInstanceLink(ctx context.Context, objectID, instanceID uuid.UUID) (*InstanceObject, error) {
	var link InstanceObject
	err := r.db.WithContext(ctx).
		Where("object_id = ? AND instance_id = ?", objectID, instanceID).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("objects: get instance link: %w", err)
	}
	return &link, nil
}

func (r *gormObjectRepository) UnlinkFromInstance(ctx context.Context, objectID, instanceID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("object_id = ? AND instance_id = ?", objectID, instanceID).
		Delete(&InstanceObject{})
	if res.Error != nil {
		return fmt.Errorf("objects: unlink: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
