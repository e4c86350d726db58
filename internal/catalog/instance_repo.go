package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormInstanceRepository struct{ db *gorm.DB }

// NewInstanceRepository returns an InstanceRepository backed by the given
// *gorm.DB.
func NewInstanceRepository(db *gorm.DB) InstanceRepository {
	return &gormInstanceRepository{db: db}
}

func (r *gormInstanceRepository) GetByID(ctx context.Context, id uuid.UUID) (*Instance, error) {
	var i Instance
	if err := r.db.WithContext(ctx).First(&i, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("instances: get by id: %w", err)
	}
	return &i, nil
}

func (r *gormInstanceRepository) Insert(ctx context.Context, i *Instance) error {
	if err := r.db.WithContext(ctx).Create(i).Error; err != nil {
		return fmt.Errorf("instances: insert: %w", err)
	}
	return nil
}

func (r *gormInstanceRepository) GetAll(ctx context.Context, opts ListOptions) ([]Instance, int64, error) {
	var (
		instances []Instance
		count     int64
	)
	q := r.db.WithContext(ctx).Model(&Instance{})
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("instances: count: %w", err)
	}
	order := opts.OrderBy
	if order == "" {
		order = "created_at desc"
	}
	if err := q.Order(order).Limit(opts.Limit).Offset(opts.Offset).Find(&instances).Error; err != nil {
		return nil, 0, fmt.Errorf("instances: list: %w", err)
	}
	return instances, count, nil
}

func (r *gormInstanceRepository) GetAllForWorkID(ctx context.Context, workID uuid.UUID) ([]Instance, error) {
	var instances []Instance
	if err := r.db.WithContext(ctx).Where("work_id = ?", workID).Find(&instances).Error; err != nil {
		return nil, fmt.Errorf("instances: get all for work: %w", err)
	}
	return instances, nil
}

func scopedCreator(q *gorm.DB, creatorID *uuid.UUID) *gorm.DB {
	if creatorID != nil {
		return q.Where("creator_id = ?", *creatorID)
	}
	return q
}

func (r *gormInstanceRepository) GetAllStates(ctx context.Context, instanceID uuid.UUID, creatorID *uuid.UUID, opts ListOptions) ([]State, int64, error) {
	var (
		states []State
		count  int64
	)
	q := scopedCreator(r.db.WithContext(ctx).Model(&State{}).Where("instance_id = ?", instanceID), creatorID)
	if opts.Contains != "" {
		q = q.Where("name LIKE ? OR description LIKE ?", "%"+opts.Contains+"%", "%"+opts.Contains+"%")
	}
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("instances: get all states: count: %w", err)
	}
	if err := q.Order("created_at desc").Limit(opts.Limit).Offset(opts.Offset).Find(&states).Error; err != nil {
		return nil, 0, fmt.Errorf("instances: get all states: %w", err)
	}
	return states, count, nil
}

func (r *gormInstanceRepository) GetAllReplays(ctx context.Context, instanceID uuid.UUID, creatorID *uuid.UUID, opts ListOptions) ([]Replay, int64, error) {
	var (
		replays []Replay
		count   int64
	)
	q := scopedCreator(r.db.WithContext(ctx).Model(&Replay{}).Where("instance_id = ?", instanceID), creatorID)
	if opts.Contains != "" {
		q = q.Where("name LIKE ? OR description LIKE ?", "%"+opts.Contains+"%", "%"+opts.Contains+"%")
	}
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("instances: get all replays: count: %w", err)
	}
	if err := q.Order("created_at desc").Limit(opts.Limit).Offset(opts.Offset).Find(&replays).Error; err != nil {
		return nil, 0, fmt.Errorf("instances: get all replays: %w", err)
	}
	return replays, count, nil
}

func (r *gormInstanceRepository) GetAllSaves(ctx context.Context, instanceID uuid.UUID, creatorID *uuid.UUID, opts ListOptions) ([]Save, int64, error) {
	var (
		saves []Save
		count int64
	)
	q := scopedCreator(r.db.WithContext(ctx).Model(&Save{}).Where("instance_id = ?", instanceID), creatorID)
	if opts.Contains != "" {
		q = q.Where("short_desc LIKE ? OR description LIKE ?", "%"+opts.Contains+"%", "%"+opts.Contains+"%")
	}
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("instances: get all saves: count: %w", err)
	}
	if err := q.Order("created_at desc").Limit(opts.Limit).Offset(opts.Offset).Find(&saves).Error; err != nil {
		return nil, 0, fmt.Errorf("instances: get all saves: %w", err)
	}
	return saves, count, nil
}

const instanceWorkSelect = `
instances.id AS instance_id,
instances.environment_id AS environment_id,
works.name AS work_name,
works.version AS work_version,
works.platform AS work_platform,
instances.config AS config,
instances.created_at AS created_at`

func (r *gormInstanceRepository) GetInstanceWork(ctx context.Context, instanceID uuid.UUID) (*InstanceWork, error) {
	var iw InstanceWork
	err := r.db.WithContext(ctx).Table("instances").
		Select(instanceWorkSelect).
		Joins("JOIN works ON works.id = instances.work_id").
		Where("instances.id = ?", instanceID).
		Scan(&iw).Error
	if err != nil {
		return nil, fmt.Errorf("instances: get instance work: %w", err)
	}
	if iw.InstanceID == uuid.Nil {
		return nil, ErrNotFound
	}
	return &iw, nil
}

// StreamInstanceWork streams the InstanceWork projection in chunks of
// chunkSize rows, invoking fn once per chunk — the shape the search
// indexer's reindex path consumes (component C, ~10k rows per chunk).
func (r *gormInstanceRepository) StreamInstanceWork(ctx context.Context, chunkSize int, fn func([]InstanceWork) error) error {
	offset := 0
	for {
		var chunk []InstanceWork
		err := r.db.WithContext(ctx).Table("instances").
			Select(instanceWorkSelect).
			Joins("JOIN works ON works.id = instances.work_id").
			Order("instances.created_at asc").
			Limit(chunkSize).Offset(offset).
			Scan(&chunk).Error
		if err != nil {
			return fmt.Errorf("instances: stream instance work: %w", err)
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
