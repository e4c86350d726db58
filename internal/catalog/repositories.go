package catalog

import (
	"context"

	"github.com/google/uuid"
)

// ListOptions contains common pagination, ordering, and substring-filter
// options for list queries across the catalog.
type ListOptions struct {
	Limit    int
	Offset   int
	OrderBy  string
	Contains string
}

// FileRepository is the Catalog API for the File entity.
type FileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*File, error)
	GetByHash(ctx context.Context, hash string) (*File, error)
	Insert(ctx context.Context, f *File) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
	GetAll(ctx context.Context, opts ListOptions) ([]File, int64, error)
}

// ObjectRepository is the Catalog API for the Object entity.
type ObjectRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Object, error)
	GetByHash(ctx context.Context, hash string) (*Object, error)
	Insert(ctx context.Context, o *Object) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
	GetAll(ctx context.Context, opts ListOptions) ([]Object, int64, error)

	// LinkToInstance appends an ordered InstanceObject row.
	LinkToInstance(ctx context.Context, objectID, instanceID uuid.UUID, role ObjectRole, roleIndex int) error
	// NextRoleIndex returns the next gapless role_index for (instanceID, role).
	NextRoleIndex(ctx context.Context, instanceID uuid.UUID, role ObjectRole) (int, error)
	GetInstanceLink(ctx context.Context, objectID, instanceID uuid.UUID) (*InstanceObject, error)
	UnlinkFromInstance(ctx context.Context, objectID, instanceID uuid.UUID) error
}

// WorkRepository is the Catalog API for the Work entity.
type WorkRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Work, error)
	GetByName(ctx context.Context, name string) ([]Work, error)
	Insert(ctx context.Context, w *Work) error
	GetAll(ctx context.Context, opts ListOptions) ([]Work, int64, error)
	GetForPlatform(ctx context.Context, platform string, opts ListOptions) ([]Work, int64, error)
}

// EnvironmentRepository is the Catalog API for the Environment entity.
type EnvironmentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Environment, error)
	Insert(ctx context.Context, e *Environment) error
	GetAll(ctx context.Context, opts ListOptions) ([]Environment, int64, error)
}

// InstanceRepository is the Catalog API for the Instance entity.
type InstanceRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Instance, error)
	Insert(ctx context.Context, i *Instance) error
	GetAll(ctx context.Context, opts ListOptions) ([]Instance, int64, error)
	GetAllForWorkID(ctx context.Context, workID uuid.UUID) ([]Instance, error)

	GetAllStates(ctx context.Context, instanceID uuid.UUID, creatorID *uuid.UUID, opts ListOptions) ([]State, int64, error)
	GetAllReplays(ctx context.Context, instanceID uuid.UUID, creatorID *uuid.UUID, opts ListOptions) ([]Replay, int64, error)
	GetAllSaves(ctx context.Context, instanceID uuid.UUID, creatorID *uuid.UUID, opts ListOptions) ([]Save, int64, error)

	// GetInstanceWork returns the denormalized (work, instance) projection
	// shared by the search indexer and the listing endpoints.
	GetInstanceWork(ctx context.Context, instanceID uuid.UUID) (*InstanceWork, error)
	StreamInstanceWork(ctx context.Context, chunkSize int, fn func([]InstanceWork) error) error
}

// ObjectLinkRepository resolves the ordered ObjectLink projection used by
// the player manifest and by the Clone Engine.
type ObjectLinkRepository interface {
	GetAllForInstanceID(ctx context.Context, instanceID uuid.UUID) ([]ObjectLink, error)
}

// StateRepository is the Catalog API for the State entity.
type StateRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*State, error)
	GetByHash(ctx context.Context, hash string) (*State, error)
	Insert(ctx context.Context, s *State) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
	// Stream chunks every State row to fn, ordered by created_at, for the
	// search indexer's full reindex.
	Stream(ctx context.Context, chunkSize int, fn func([]State) error) error
}

// ReplayRepository is the Catalog API for the Replay entity.
type ReplayRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Replay, error)
	Insert(ctx context.Context, r *Replay) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
	Stream(ctx context.Context, chunkSize int, fn func([]Replay) error) error
}

// SaveRepository is the Catalog API for the Save entity.
type SaveRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Save, error)
	GetByHash(ctx context.Context, hash string) (*Save, error)
	Insert(ctx context.Context, s *Save) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
	Stream(ctx context.Context, chunkSize int, fn func([]Save) error) error
}

// ScreenshotRepository is the Catalog API for the Screenshot entity.
type ScreenshotRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Screenshot, error)
	Insert(ctx context.Context, s *Screenshot) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// CreatorRepository is the Catalog API for the Creator entity, plus the
// denormalized listings joining Work through Instance.
type CreatorRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Creator, error)
	Insert(ctx context.Context, c *Creator) error
	Update(ctx context.Context, c *Creator) error
	GetAll(ctx context.Context, opts ListOptions) ([]Creator, int64, error)

	GetAllStateInfo(ctx context.Context, creatorID uuid.UUID, opts ListOptions) ([]CreatorStateInfo, int64, error)
	GetAllReplayInfo(ctx context.Context, creatorID uuid.UUID, opts ListOptions) ([]CreatorReplayInfo, int64, error)
	GetAllSaveInfo(ctx context.Context, creatorID uuid.UUID, opts ListOptions) ([]CreatorSaveInfo, int64, error)
	Stream(ctx context.Context, chunkSize int, fn func([]Creator) error) error
}

// UserRepository is the Catalog API for the User entity. Upsert inserts on
// the (Iss, Sub) unique key or, on conflict, refreshes the stored email and
// display name in place (testable property 5).
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByIssSub(ctx context.Context, iss, sub string) (*User, error)
	Upsert(ctx context.Context, u *User) error
}
