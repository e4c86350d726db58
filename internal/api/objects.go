package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gisst-archive/gisst/internal/catalog"
	"github.com/gisst-archive/gisst/internal/mount"
	"github.com/gisst-archive/gisst/internal/storage"
)

// ObjectHandler serves Object detail (with directory listing when the
// backing File is a disk image) and sub-file extraction.
type ObjectHandler struct {
	objects catalog.ObjectRepository
	files   catalog.FileRepository
	store   *storage.Store
	logger  *zap.Logger
}

func NewObjectHandler(objects catalog.ObjectRepository, files catalog.FileRepository, store *storage.Store, logger *zap.Logger) *ObjectHandler {
	return &ObjectHandler{objects: objects, files: files, store: store, logger: logger.Named("object_handler")}
}

// GetByID handles GET /objects/{id}: the Object's metadata plus, when the
// backing File is a disk image, its interior file listing.
func (h *ObjectHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		ErrBadRequest(w, "invalid object id")
		return
	}

	object, err := h.objects.GetByID(r.Context(), id)
	if err != nil {
		Err(w, wrapCatalogErr(err, "object", id))
		return
	}
	file, err := h.files.GetByID(r.Context(), object.FileID)
	if err != nil {
		Err(w, wrapCatalogErr(err, "file", object.FileID))
		return
	}

	resp := map[string]any{"object": object, "file": file}

	absPath := h.store.AbsolutePath(file.DestPath, file.Hash, file.Filename)
	if mount.IsDiskImage(absPath) {
		entries, err := mount.List(absPath)
		if err != nil {
			h.logger.Warn("disk image listing failed", zap.Stringer("object_id", id), zap.Error(err))
		} else {
			resp["entries"] = entries
		}
	}
	Ok(w, resp)
}

// GetSubpath handles GET /objects/{id}/{subpath…}: resolves Object→File→
// disk path via the Blob Store, delegates to the Mount Service, and
// returns the bytes with a sniffed Content-Type and Content-Disposition.
func (h *ObjectHandler) GetSubpath(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		ErrBadRequest(w, "invalid object id")
		return
	}
	subpath := chi.URLParam(r, "*")
	if subpath == "" {
		ErrBadRequest(w, "missing subpath")
		return
	}

	object, err := h.objects.GetByID(r.Context(), id)
	if err != nil {
		Err(w, wrapCatalogErr(err, "object", id))
		return
	}
	file, err := h.files.GetByID(r.Context(), object.FileID)
	if err != nil {
		Err(w, wrapCatalogErr(err, "file", object.FileID))
		return
	}

	absPath := h.store.AbsolutePath(file.DestPath, file.Hash, file.Filename)
	mimeType, data, err := mount.ReadFile(absPath, subpath)
	if err != nil {
		Err(w, err)
		return
	}

	basename := subpath
	if idx := strings.LastIndexByte(subpath, '/'); idx >= 0 {
		basename = subpath[idx+1:]
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", basename))
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
