// Package apierr is the error taxonomy shared by every component,
// grounded in error.rs's RecordSQLError/StorageError/FSListError/
// V86CloneError/InsertFileError hierarchy. Each component wraps its
// underlying error in an *Error carrying a Kind, so the Delivery API can
// translate it to an HTTP status without inspecting component internals.
package apierr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for HTTP status mapping and logging, collapsing
// error.rs's several enums into one cross-cutting taxonomy.
type Kind string

const (
	KindNotFound         Kind = "not_found"         // record or file absent
	KindReferential      Kind = "referential"       // parent row missing (ErrMissingParentFile, ErrOrphanObject)
	KindDuplicate        Kind = "duplicate"         // unique-hash conflict (State/Replay dedup invariant)
	KindInput            Kind = "input"             // malformed request: missing/invalid field
	KindConflict         Kind = "conflict"          // upload chunk offset mismatch
	KindForbidden        Kind = "forbidden"         // oversize upload chunk body
	KindUnsupportedMedia Kind = "unsupported_media" // unrecognized upload Content-Type
	KindAuth             Kind = "auth"              // missing/invalid bearer token, OIDC failure
	KindProtocol         Kind = "protocol"          // framework/type mismatch: wrong Environment framework, wrong Instance for State
	KindStorage          Kind = "storage"           // blob store IO failure
	KindImage            Kind = "image"             // MBR/FAT parse failure in the Image Mount Service
	KindExternal         Kind = "external"          // external process failure (node v86dump, Meilisearch unreachable)
	KindInternal         Kind = "internal"          // unclassified / programmer error
)

// HTTPStatus returns the HTTP status code this Kind maps to.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return 404
	case KindReferential:
		return 422
	case KindDuplicate:
		return 409
	case KindInput:
		return 400
	case KindConflict:
		return 409
	case KindForbidden:
		return 403
	case KindUnsupportedMedia:
		return 415
	case KindAuth:
		return 401
	case KindProtocol:
		return 422
	case KindStorage, KindImage, KindExternal, KindInternal:
		return 500
	default:
		return 500
	}
}

// Error is the wrapped error type every component should return across
// its public boundary.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error of the given kind.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// NotFound, Referential, Duplicate, Input, Conflict, Forbidden,
// UnsupportedMedia, Auth, Protocol, Storage, Image, External, and Internal
// are constructors for each Kind, used at the call site that first detects
// the condition.
func NotFound(message string, err error) *Error         { return New(KindNotFound, message, err) }
func Referential(message string, err error) *Error      { return New(KindReferential, message, err) }
func Duplicate(message string, err error) *Error         { return New(KindDuplicate, message, err) }
func Input(message string, err error) *Error             { return New(KindInput, message, err) }
func Conflict(message string, err error) *Error          { return New(KindConflict, message, err) }
func Forbidden(message string, err error) *Error         { return New(KindForbidden, message, err) }
func UnsupportedMedia(message string, err error) *Error  { return New(KindUnsupportedMedia, message, err) }
func Auth(message string, err error) *Error              { return New(KindAuth, message, err) }
func Protocol(message string, err error) *Error          { return New(KindProtocol, message, err) }
func Storage(message string, err error) *Error           { return New(KindStorage, message, err) }
func Image(message string, err error) *Error             { return New(KindImage, message, err) }
func External(message string, err error) *Error          { return New(KindExternal, message, err) }
func Internal(message string, err error) *Error          { return New(KindInternal, message, err) }

// KindOf extracts the Kind from err if it is (or wraps) an *Error,
// defaulting to KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
