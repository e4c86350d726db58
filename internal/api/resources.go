package api

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gisst-archive/gisst/internal/apierr"
	"github.com/gisst-archive/gisst/internal/catalog"
	"github.com/gisst-archive/gisst/internal/storage"
	"github.com/gisst-archive/gisst/internal/upload"
)

const tusResumableVersion = "1.0.0"

// ResourceHandler implements the TUS-like resumable upload protocol
// (component D) over HTTP: POST /resources, HEAD/PATCH /resources/{id}.
type ResourceHandler struct {
	uploads *upload.Manager
	store   *storage.Store
	files   catalog.FileRepository
	logger  *zap.Logger
}

func NewResourceHandler(uploads *upload.Manager, store *storage.Store, files catalog.FileRepository, logger *zap.Logger) *ResourceHandler {
	return &ResourceHandler{uploads: uploads, store: store, files: files, logger: logger.Named("resource_handler")}
}

// parseUploadMetadata parses the TUS "Upload-Metadata" header: a comma-separated
// list of "key base64value" pairs.
func parseUploadMetadata(header string) map[string]string {
	out := make(map[string]string)
	for _, pair := range splitComma(header) {
		key, b64, ok := cutSpace(pair)
		if !ok {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			continue
		}
		out[key] = string(decoded)
	}
	return out
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, trimSpace(s[start:i]))
			start = i + 1
		}
	}
	out = append(out, trimSpace(s[start:]))
	return out
}

func trimSpace(s string) string {
	for len(s) > 0 && s[0] == ' ' {
		s = s[1:]
	}
	for len(s) > 0 && s[len(s)-1] == ' ' {
		s = s[:len(s)-1]
	}
	return s
}

func cutSpace(s string) (key, value string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

// Create handles POST /resources.
func (h *ResourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	lengthHeader := r.Header.Get("Upload-Length")
	totalSize, err := strconv.ParseInt(lengthHeader, 10, 64)
	if err != nil || totalSize <= 0 {
		ErrBadRequest(w, "missing or invalid Upload-Length header")
		return
	}

	meta := parseUploadMetadata(r.Header.Get("Upload-Metadata"))
	filename := meta["filename"]
	if filename == "" {
		ErrBadRequest(w, "missing filename in Upload-Metadata")
		return
	}
	if meta["hash"] == "" {
		ErrBadRequest(w, "missing hash in Upload-Metadata")
		return
	}

	session, err := h.uploads.Create(filename, r.Header.Get("Content-Type"), totalSize)
	if err != nil {
		Err(w, err)
		return
	}

	w.Header().Set("Location", "/resources/"+session.ID.String())
	w.Header().Set("Tus-Resumable", tusResumableVersion)
	w.WriteHeader(http.StatusCreated)
}

// Head handles HEAD /resources/{id}.
func (h *ResourceHandler) Head(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		ErrBadRequest(w, "invalid resource id")
		return
	}

	session, err := h.uploads.Head(id)
	if err != nil {
		if file, fileErr := h.files.GetByID(r.Context(), id); fileErr == nil {
			w.Header().Set("Upload-Offset", strconv.FormatInt(file.Size, 10))
			w.Header().Set("Upload-Length", strconv.FormatInt(file.Size, 10))
			w.Header().Set("Tus-Resumable", tusResumableVersion)
			w.Header().Set("Cache-Control", "no-store")
			w.WriteHeader(http.StatusOK)
			return
		}
		Err(w, err)
		return
	}

	w.Header().Set("Upload-Offset", strconv.FormatInt(session.Offset, 10))
	w.Header().Set("Upload-Length", strconv.FormatInt(session.TotalSize, 10))
	w.Header().Set("Tus-Resumable", tusResumableVersion)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
}

// Patch handles PATCH /resources/{id}. On the chunk that reaches the
// declared total length, it commits the upload: promotes the temp file and
// inserts the File row.
func (h *ResourceHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		ErrBadRequest(w, "invalid resource id")
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "application/offset+octet-stream" {
		Err(w, apierr.UnsupportedMedia(fmt.Sprintf("unsupported content-type %q", ct), nil))
		return
	}
	offset, err := strconv.ParseInt(r.Header.Get("Upload-Offset"), 10, 64)
	if err != nil {
		ErrBadRequest(w, "missing or invalid Upload-Offset header")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		ErrBadRequest(w, "failed to read request body")
		return
	}

	session, err := h.uploads.Patch(r.Context(), id, offset, r.Header.Get("Content-Type"), body)
	if err != nil {
		Err(w, err)
		return
	}

	if session.Offset >= session.TotalSize {
		shardID, err := uuid.NewV7()
		if err != nil {
			Err(w, apierr.Internal("generate shard id", err))
			return
		}
		destPath := storage.ShardPath(shardID, h.store.Depth)

		commitErr := h.uploads.Commit(r.Context(), id, destPath, func(info storage.FileInfo) error {
			data, readErr := h.store.Read(info.DestPath, info.DestFilename)
			if readErr != nil {
				return apierr.Storage("read promoted upload", readErr)
			}
			hash := storage.GetMD5Hash(data)

			file := &catalog.File{
				ID:             id,
				Hash:           hash,
				Filename:       session.Filename,
				SourcePath:     session.Filename,
				DestPath:       info.DestPath,
				Size:           int64(len(data)),
				CompressedSize: &info.CompressedSize,
			}
			return h.files.Insert(r.Context(), file)
		})
		if commitErr != nil {
			Err(w, commitErr)
			return
		}
	}

	w.Header().Set("Upload-Offset", strconv.FormatInt(session.Offset, 10))
	w.Header().Set("Tus-Resumable", tusResumableVersion)
	w.WriteHeader(http.StatusNoContent)
}
