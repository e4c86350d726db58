package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/gisst-archive/gisst/internal/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DuplicatePolicy selects what happens when an ingested Object's bytes
// hash-match an existing File, grounding the original's Duplicate enum.
type DuplicatePolicy string

const (
	// DuplicateReuseObject returns the existing Object untouched: no new
	// File or Object row is created.
	DuplicateReuseObject DuplicatePolicy = "reuse-object"
	// DuplicateReuseData creates a new File row (new id, filename,
	// source_path) pointing at the same hash and dest_path — and a new
	// Object row over it — without rewriting the physical blob.
	DuplicateReuseData DuplicatePolicy = "reuse-data"
)

// InsertFileObject is the Object ingest path: write bytes to the Blob
// Store (unless an identical hash is already present, in which case the
// physical write is skipped per policy), then insert the catalog rows.
// Grounded directly in insert_file_object / the Duplicate enum.
func InsertFileObject(
	ctx context.Context,
	db *gorm.DB,
	store *storage.Store,
	fileRepo FileRepository,
	objectRepo ObjectRepository,
	data []byte,
	filename string,
	description string,
	shardID uuid.UUID,
	policy DuplicatePolicy,
) (*Object, error) {
	hash := storage.GetMD5Hash(data)

	existingFile, err := fileRepo.GetByHash(ctx, hash)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("insert file object: lookup file: %w", err)
	}

	if existingFile != nil {
		if policy == DuplicateReuseObject {
			existingObject, err := objectRepo.GetByHash(ctx, hash)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return nil, fmt.Errorf("insert file object: %w: hash %q has a File but no Object", ErrOrphanObject, hash)
				}
				return nil, fmt.Errorf("insert file object: lookup object: %w", err)
			}
			return existingObject, nil
		}

		// DuplicateReuseData: new File row over the same bytes, no
		// physical rewrite.
		var object *Object
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			newFile := File{
				Hash:           hash,
				Filename:       filename,
				SourcePath:     filename,
				DestPath:       existingFile.DestPath,
				Size:           existingFile.Size,
				CompressedSize: existingFile.CompressedSize,
			}
			if err := tx.Create(&newFile).Error; err != nil {
				return fmt.Errorf("insert reused file: %w", err)
			}
			obj := Object{FileID: newFile.ID, Description: description}
			if err := tx.Create(&obj).Error; err != nil {
				return fmt.Errorf("insert object over reused file: %w", err)
			}
			object = &obj
			return nil
		})
		if err != nil {
			return nil, err
		}
		return object, nil
	}

	info, err := store.WriteFileToUUIDFolder(shardID, filename, data)
	if err != nil {
		return nil, fmt.Errorf("insert file object: write blob: %w", err)
	}

	var object *Object
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		size := int64(len(data))
		compressed := info.CompressedSize
		newFile := File{
			Hash:           info.FileHash,
			Filename:       info.SourceFilename,
			SourcePath:     info.SourcePath,
			DestPath:       info.DestPath,
			Size:           size,
			CompressedSize: &compressed,
		}
		if err := tx.Create(&newFile).Error; err != nil {
			return fmt.Errorf("insert file: %w", err)
		}
		obj := Object{FileID: newFile.ID, Description: description}
		if err := tx.Create(&obj).Error; err != nil {
			return fmt.Errorf("insert object: %w", err)
		}
		object = &obj
		return nil
	})
	if err != nil {
		// Physical blob was already written; it is orphaned on this path
		// and reclaimed by whatever out-of-band sweep the operator runs
		// against files with no matching catalog row.
		return nil, err
	}
	return object, nil
}

// InsertStateFile inserts a State's backing File, rejecting any hash that
// already exists — States, unlike Objects, never share bytes (testable
// invariant 4).
func InsertStateFile(
	ctx context.Context,
	db *gorm.DB,
	store *storage.Store,
	fileRepo FileRepository,
	data []byte,
	filename string,
	shardID uuid.UUID,
) (*File, error) {
	hash := storage.GetMD5Hash(data)
	if _, err := fileRepo.GetByHash(ctx, hash); err == nil {
		return nil, ErrConflict
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("insert state file: lookup: %w", err)
	}

	info, err := store.WriteFileToUUIDFolder(shardID, filename, data)
	if err != nil {
		return nil, fmt.Errorf("insert state file: write blob: %w", err)
	}

	size := int64(len(data))
	compressed := info.CompressedSize
	f := File{
		Hash:           info.FileHash,
		Filename:       info.SourceFilename,
		SourcePath:     info.SourcePath,
		DestPath:       info.DestPath,
		Size:           size,
		CompressedSize: &compressed,
	}
	if err := fileRepo.Insert(ctx, &f); err != nil {
		return nil, fmt.Errorf("insert state file: %w", err)
	}
	return &f, nil
}
