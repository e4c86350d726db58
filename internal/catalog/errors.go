package catalog

import "errors"

// ErrNotFound is returned by repository methods when the requested record
// does not exist in the database. Callers should check for this error
// explicitly using errors.Is to distinguish missing records from other
// database errors.
//
//	file, err := repo.GetByID(ctx, id)
//	if errors.Is(err, catalog.ErrNotFound) {
//	    handle not found
//	}
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when an insert or update violates a unique
// constraint, for example inserting a second State with the same file hash.
var ErrConflict = errors.New("record already exists")

// ErrMissingParentFile is returned when a File-backed parent (Object, State,
// Replay, Save) is inserted but the referenced File row does not exist.
var ErrMissingParentFile = errors.New("referenced file does not exist")

// ErrOrphanObject is returned by the dedup helper when a duplicate hash is
// found on the File table but the corresponding Object row is missing.
var ErrOrphanObject = errors.New("file hash has no corresponding object")
