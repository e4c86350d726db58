package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormObjectLinkRepository struct{ db *gorm.DB }

// NewObjectLinkRepository returns an ObjectLinkRepository backed by the
// given *gorm.DB.
func NewObjectLinkRepository(db *gorm.DB) ObjectLinkRepository {
	return &gormObjectLinkRepository{db: db}
}

// GetAllForInstanceID returns the ordered (role, role_index, file hash,
// filename, dest_path) tuples needed to render the player manifest,
// ordered by (role, role_index) as the Delivery API requires.
func (r *gormObjectLinkRepository) GetAllForInstanceID(ctx context.Context, instanceID uuid.UUID) ([]ObjectLink, error) {
	var links []ObjectLink
	err := r.db.WithContext(ctx).Table("instance_objects").
		Select(`
			instance_objects.object_id AS object_id,
			instance_objects.instance_id AS instance_id,
			instance_objects.role AS role,
			instance_objects.role_index AS role_index,
			files.hash AS file_hash,
			files.filename AS file_name,
			files.dest_path AS file_dest`).
		Joins("JOIN objects ON objects.id = instance_objects.object_id").
		Joins("JOIN files ON files.id = objects.file_id").
		Where("instance_objects.instance_id = ?", instanceID).
		Order("instance_objects.role asc, instance_objects.role_index asc").
		Scan(&links).Error
	if err != nil {
		return nil, fmt.Errorf("object_links: get all for instance: %w", err)
	}
	return links, nil
}
