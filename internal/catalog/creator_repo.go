package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormCreatorRepository struct{ db *gorm.DB }

// NewCreatorRepository returns a CreatorRepository backed by the given
// *gorm.DB.
func NewCreatorRepository(db *gorm.DB) CreatorRepository {
	return &gormCreatorRepository{db: db}
}

func (r *gormCreatorRepository) GetByID(ctx context.Context, id uuid.UUID) (*Creator, error) {
	var c Creator
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("creators: get by id: %w", err)
	}
	return &c, nil
}

func (r *gormCreatorRepository) Insert(ctx context.Context, c *Creator) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("creators: insert: %w", err)
	}
	return nil
}

func (r *gormCreatorRepository) Update(ctx context.Context, c *Creator) error {
	res := r.db.WithContext(ctx).Model(&Creator{}).Where("id = ?", c.ID).Updates(map[string]any{
		"username":  c.Username,
		"full_name": c.FullName,
	})
	if res.Error != nil {
		return fmt.Errorf("creators: update: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormCreatorRepository) GetAll(ctx context.Context, opts ListOptions) ([]Creator, int64, error) {
	var (
		creators []Creator
		count    int64
	)
	q := r.db.WithContext(ctx).Model(&Creator{})
	if opts.Contains != "" {
		q = q.Where("username LIKE ?", "%"+opts.Contains+"%")
	}
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("creators: count: %w", err)
	}
	if err := q.Order("created_at desc").Limit(opts.Limit).Offset(opts.Offset).Find(&creators).Error; err != nil {
		return nil, 0, fmt.Errorf("creators: list: %w", err)
	}
	return creators, count, nil
}

// Stream chunks every Creator row to fn in created_at order.
func (r *gormCreatorRepository) Stream(ctx context.Context, chunkSize int, fn func([]Creator) error) error {
	offset := 0
	for {
		var chunk []Creator
		err := r.db.WithContext(ctx).Order("created_at asc").
			Limit(chunkSize).Offset(offset).Find(&chunk).Error
		if err != nil {
			return fmt.Errorf("creators: stream: %w", err)
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

func (r *gormCreatorRepository) GetAllStateInfo(ctx context.Context, creatorID uuid.UUID, opts ListOptions) ([]CreatorStateInfo, int64, error) {
	var (
		rows  []CreatorStateInfo
		count int64
	)
	q := r.db.WithContext(ctx).Table("states").
		Joins("JOIN instances ON instances.id = states.instance_id").
		Joins("JOIN works ON works.id = instances.work_id").
		Where("states.creator_id = ?", creatorID)
	if opts.Contains != "" {
		q = q.Where("states.name LIKE ? OR states.description LIKE ?", "%"+opts.Contains+"%", "%"+opts.Contains+"%")
	}
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("creators: state info: count: %w", err)
	}
	err := q.Select(`
		states.id AS state_id,
		states.instance_id AS instance_id,
		works.name AS work_name,
		works.platform AS work_platform,
		states.name AS name,
		states.description AS description,
		states.created_at AS created_at`).
		Order("states.created_at desc").Limit(opts.Limit).Offset(opts.Offset).Scan(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("creators: state info: %w", err)
	}
	return rows, count, nil
}

func (r *gormCreatorRepository) GetAllReplayInfo(ctx context.Context, creatorID uuid.UUID, opts ListOptions) ([]CreatorReplayInfo, int64, error) {
	var (
		rows  []CreatorReplayInfo
		count int64
	)
	q := r.db.WithContext(ctx).Table("replays").
		Joins("JOIN instances ON instances.id = replays.instance_id").
		Joins("JOIN works ON works.id = instances.work_id").
		Where("replays.creator_id = ?", creatorID)
	if opts.Contains != "" {
		q = q.Where("replays.name LIKE ? OR replays.description LIKE ?", "%"+opts.Contains+"%", "%"+opts.Contains+"%")
	}
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("creators: replay info: count: %w", err)
	}
	err := q.Select(`
		replays.id AS replay_id,
		replays.instance_id AS instance_id,
		works.name AS work_name,
		works.platform AS work_platform,
		replays.name AS name,
		replays.description AS description,
		replays.created_at AS created_at`).
		Order("replays.created_at desc").Limit(opts.Limit).Offset(opts.Offset).Scan(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("creators: replay info: %w", err)
	}
	return rows, count, nil
}

func (r *gormCreatorRepository) GetAllSaveInfo(ctx context.Context, creatorID uuid.UUID, opts ListOptions) ([]CreatorSaveInfo, int64, error) {
	var (
		rows  []CreatorSaveInfo
		count int64
	)
	q := r.db.WithContext(ctx).Table("saves").
		Joins("JOIN instances ON instances.id = saves.instance_id").
		Joins("JOIN works ON works.id = instances.work_id").
		Where("saves.creator_id = ?", creatorID)
	if opts.Contains != "" {
		q = q.Where("saves.short_desc LIKE ? OR saves.description LIKE ?", "%"+opts.Contains+"%", "%"+opts.Contains+"%")
	}
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("creators: save info: count: %w", err)
	}
	err := q.Select(`
		saves.id AS save_id,
		saves.instance_id AS instance_id,
		works.name AS work_name,
		works.platform AS work_platform,
		saves.short_desc AS short_desc,
		saves.description AS description,
		saves.created_at AS created_at`).
		Order("saves.created_at desc").Limit(opts.Limit).Offset(opts.Offset).Scan(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("creators: save info: %w", err)
	}
	return rows, count, nil
}
