package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormUserRepository struct{ db *gorm.DB }

// NewUserRepository returns a UserRepository backed by the given *gorm.DB.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

func (r *gormUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("users: get by id: %w", err)
	}
	return &u, nil
}

func (r *gormUserRepository) GetByIssSub(ctx context.Context, iss, sub string) (*User, error) {
	var u User
	if err := r.db.WithContext(ctx).First(&u, "iss = ? AND sub = ?", iss, sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("users: get by iss/sub: %w", err)
	}
	return &u, nil
}

// Upsert inserts a new User or, on (iss, sub) conflict, refreshes the
// profile fields in place — testable invariant 5.
func (r *gormUserRepository) Upsert(ctx context.Context, u *User) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "iss"}, {Name: "sub"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email", "display_name", "updated_at",
		}),
	}).Create(u).Error
	if err != nil {
		return fmt.Errorf("users: upsert: %w", err)
	}
	return nil
}
