package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// base contains the fields shared by every catalog entity. ID uses UUID v7
// (time-ordered) so B-tree indexes stay append-mostly and rows sort
// chronologically without a separate created-at index. CreatedAt is the
// entity's created_on field throughout this package; UpdatedAt exists for
// operational auditing even though most entities are immutable after
// creation (see Lifecycles in the data model).
type base struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate generates a time-ordered UUID v7 if the ID has not already
// been set by the caller.
func (b *base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == (uuid.UUID{}) {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		b.ID = id
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	return nil
}

// ObjectRole is the semantic role of an InstanceObject link.
type ObjectRole string

const (
	ObjectRoleContent    ObjectRole = "content"
	ObjectRoleDependency ObjectRole = "dependency"
	ObjectRoleConfig     ObjectRole = "config"
)

// Framework identifies the emulator core family an Environment targets.
type Framework string

const (
	FrameworkRetroArch Framework = "retroarch"
	FrameworkV86       Framework = "v86"
)

// File is the canonical record of a byte sequence living in the Blob Store.
// hash is unique except when explicitly duplicated via the reuse-data dedup
// policy (see InsertFileObject). The physical file lives at
// {storage_root}/{DestPath}/{Hash}-{Filename} with a gzip sibling.
type File struct {
	ID               uuid.UUID `gorm:"type:text;primaryKey"`
	Hash             string    `gorm:"not null;index:idx_file_hash"`
	Filename         string    `gorm:"not null"`
	SourcePath       string    `gorm:"not null;default:''"`
	DestPath         string    `gorm:"not null"`
	Size             int64     `gorm:"not null"`
	CompressedSize   *int64
	CreatedAt        time.Time `gorm:"not null;index"`
}

func (f *File) BeforeCreate(tx *gorm.DB) error {
	if f.ID == (uuid.UUID{}) {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		f.ID = id
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Object is a content artifact backed by a File. Many Objects may reference
// one File (dedup of bytes across descriptions).
type Object struct {
	base
	FileID      uuid.UUID `gorm:"type:text;not null;index"`
	Description string    `gorm:"type:text;default:''"`
}

// Work describes a piece of software, independent of any runtime binding.
type Work struct {
	base
	Name          string `gorm:"not null"`
	Version       string `gorm:"not null;default:''"`
	Platform      string `gorm:"not null;index"`
	DerivedFromID *uuid.UUID `gorm:"type:text"`
}

// Environment is a runtime configuration: emulator framework + core.
type Environment struct {
	base
	Name          string     `gorm:"not null"`
	Framework     Framework  `gorm:"not null;index"`
	CoreName      string     `gorm:"not null"`
	CoreVersion   string     `gorm:"not null;default:''"`
	DerivedFromID *uuid.UUID `gorm:"type:text"`
	Config        string     `gorm:"type:text;default:''"` // JSON, framework-specific
}

// Instance binds a Work to an Environment with optional per-instance
// config. It is the central queryable unit of the catalog.
type Instance struct {
	base
	WorkID                uuid.UUID  `gorm:"type:text;not null;index"`
	EnvironmentID         uuid.UUID  `gorm:"type:text;not null;index"`
	Config                string     `gorm:"type:text;default:''"` // JSON
	DerivedFromInstanceID *uuid.UUID `gorm:"type:text;index"`
	DerivedFromStateID    *uuid.UUID `gorm:"type:text"`

	// Objects is not populated by any repository method in this package;
	// object links are read through ObjectLinkRepository instead. gorm:"-"
	// keeps GORM from treating it as an association.
	Objects []InstanceObject `gorm:"-"`
}

// InstanceObject links an Object to an Instance with a semantic role and an
// ordering index. Content-role links form a gapless sequence [0, n).
type InstanceObject struct {
	InstanceID uuid.UUID  `gorm:"type:text;primaryKey"`
	ObjectID   uuid.UUID  `gorm:"type:text;primaryKey"`
	Role       ObjectRole `gorm:"type:text;not null;primaryKey"`
	RoleIndex  int        `gorm:"not null"`
	Config     string     `gorm:"type:text;default:''"`
	CreatedAt  time.Time  `gorm:"not null"`
}

// State is a captured emulator snapshot. FileID points at the state blob;
// uniqueness of the state's file hash is enforced at ingest time.
type State struct {
	base
	InstanceID       uuid.UUID  `gorm:"type:text;not null;index"`
	IsCheckpoint     bool       `gorm:"not null;default:false"`
	FileID           uuid.UUID  `gorm:"type:text;not null"`
	Name             string     `gorm:"not null;default:''"`
	Description      string     `gorm:"type:text;default:''"`
	ScreenshotID     *uuid.UUID `gorm:"type:text"`
	ReplayID         *uuid.UUID `gorm:"type:text"`
	CreatorID        uuid.UUID  `gorm:"type:text;not null;index"`
	ReplayIndex      *int
	DerivedFromID    *uuid.UUID `gorm:"type:text"`
	SaveDerivedFromID *uuid.UUID `gorm:"type:text"`
}

// Replay is a recorded input stream for later playback.
type Replay struct {
	base
	Name         string     `gorm:"not null"`
	Description  string     `gorm:"type:text;default:''"`
	InstanceID   uuid.UUID  `gorm:"type:text;not null;index"`
	CreatorID    uuid.UUID  `gorm:"type:text;not null;index"`
	ForkedFromID *uuid.UUID `gorm:"type:text"`
	FileID       uuid.UUID  `gorm:"type:text;not null"`
}

// Save is a persistent in-game save file.
type Save struct {
	base
	InstanceID         uuid.UUID  `gorm:"type:text;not null;index"`
	ShortDesc          string     `gorm:"not null;default:''"`
	Description        string     `gorm:"type:text;default:''"`
	FileID             uuid.UUID  `gorm:"type:text;not null"`
	CreatorID          uuid.UUID  `gorm:"type:text;not null;index"`
	StateDerivedFromID *uuid.UUID `gorm:"type:text"`
	SaveDerivedFromID  *uuid.UUID `gorm:"type:text"`
	ReplayDerivedFromID *uuid.UUID `gorm:"type:text"`
}

// Screenshot is stored in-band in the catalog, not in the blob store.
type Screenshot struct {
	ID   uuid.UUID `gorm:"type:text;primaryKey"`
	Data []byte    `gorm:"type:blob;not null"`
}

func (s *Screenshot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == (uuid.UUID{}) {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		s.ID = id
	}
	return nil
}

// Creator is the author attribution for States, Replays, and Saves.
type Creator struct {
	base
	Username string `gorm:"not null;uniqueIndex"`
	FullName string `gorm:"not null;default:''"`
}

// User is a login identity, unique on (Iss, Sub) — the OIDC issuer and
// subject claims. Sessions are stateless JWTs minted at login time; no
// password or refresh token is ever persisted here.
type User struct {
	base
	Iss         string    `gorm:"not null;uniqueIndex:idx_user_iss_sub"`
	Sub         string    `gorm:"not null;uniqueIndex:idx_user_iss_sub"`
	CreatorID   uuid.UUID `gorm:"type:text;not null;index"`
	Email       string    `gorm:"default:''"`
	DisplayName string    `gorm:"default:''"`
}

// InstanceWork is the denormalized (work fields, instance_id) projection
// consumed by the search indexer's instance upsert and by listing
// endpoints, so both share one source of truth per the schema-projection
// design note.
type InstanceWork struct {
	InstanceID    uuid.UUID
	EnvironmentID uuid.UUID
	WorkName      string
	WorkVersion   string
	WorkPlatform  string
	Config        string
	CreatedAt     time.Time
}

// ObjectLink is the ordered (role, role_index, file hash, filename,
// dest_path) tuple needed to render a player manifest or drive a clone.
type ObjectLink struct {
	ObjectID   uuid.UUID
	InstanceID uuid.UUID
	Role       ObjectRole
	RoleIndex  int
	FileHash   string
	FileName   string
	FileDest   string
}

// CreatorStateInfo / CreatorReplayInfo / CreatorSaveInfo are the
// denormalized listings joining Work through Instance, used by the
// creator-scoped catalog listing endpoints and the search indexer.
type CreatorStateInfo struct {
	StateID      uuid.UUID
	InstanceID   uuid.UUID
	WorkName     string
	WorkPlatform string
	Name         string
	Description  string
	CreatedAt    time.Time
}

type CreatorReplayInfo struct {
	ReplayID     uuid.UUID
	InstanceID   uuid.UUID
	WorkName     string
	WorkPlatform string
	Name         string
	Description  string
	CreatedAt    time.Time
}

type CreatorSaveInfo struct {
	SaveID       uuid.UUID
	InstanceID   uuid.UUID
	WorkName     string
	WorkPlatform string
	ShortDesc    string
	Description  string
	CreatedAt    time.Time
}

// AllModels lists every GORM-managed struct for AutoMigrate-adjacent
// tooling. The schema itself comes from the embedded SQL migrations that
// db.go runs; nothing in this repository calls AllModels.
func AllModels() []any {
	return []any{
		&File{}, &Object{}, &Work{}, &Environment{}, &Instance{},
		&InstanceObject{}, &State{}, &Replay{}, &Save{}, &Screenshot{},
		&Creator{}, &User{},
	}
}
