package api

import (
	"encoding/base64"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gisst-archive/gisst/internal/apierr"
	"github.com/gisst-archive/gisst/internal/catalog"
	"github.com/gisst-archive/gisst/internal/metrics"
	"github.com/gisst-archive/gisst/internal/search"
	"github.com/gisst-archive/gisst/internal/storage"
)

// RecordsHandler serves creation and lookup of the derivative record types
// (State, Replay, Save, Screenshot) plus read-only lookup of Work. State,
// Replay and Save share the ingest-then-index pattern: write the blob,
// insert the row, upsert the search projection. Screenshots store their
// image data inline in the row and are not indexed.
type RecordsHandler struct {
	db          *gorm.DB
	store       *storage.Store
	files       catalog.FileRepository
	states      catalog.StateRepository
	replays     catalog.ReplayRepository
	saves       catalog.SaveRepository
	screenshots catalog.ScreenshotRepository
	works       catalog.WorkRepository
	instances   catalog.InstanceRepository
	indexer     *search.Indexer
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewRecordsHandler(
	db *gorm.DB,
	store *storage.Store,
	files catalog.FileRepository,
	states catalog.StateRepository,
	replays catalog.ReplayRepository,
	saves catalog.SaveRepository,
	screenshots catalog.ScreenshotRepository,
	works catalog.WorkRepository,
	instances catalog.InstanceRepository,
	indexer *search.Indexer,
	m *metrics.Metrics,
	logger *zap.Logger,
) *RecordsHandler {
	return &RecordsHandler{
		db: db, store: store, files: files, states: states, replays: replays,
		saves: saves, screenshots: screenshots, works: works, instances: instances,
		indexer: indexer, metrics: m, logger: logger.Named("records_handler"),
	}
}

func (h *RecordsHandler) countCreated(entity string) {
	if h.metrics != nil {
		h.metrics.RecordsCreated.WithLabelValues(entity).Inc()
	}
}

type createStateRequest struct {
	InstanceID        uuid.UUID  `json:"instance_id"`
	IsCheckpoint      bool       `json:"is_checkpoint"`
	Name              string     `json:"name"`
	Description       string     `json:"description"`
	Filename          string     `json:"filename"`
	Data              string     `json:"data"` // base64
	CreatorID         uuid.UUID  `json:"creator_id"`
	ScreenshotID      *uuid.UUID `json:"screenshot_id"`
	ReplayID          *uuid.UUID `json:"replay_id"`
	ReplayIndex       *int       `json:"replay_index"`
	DerivedFromID     *uuid.UUID `json:"derived_from_id"`
	SaveDerivedFromID *uuid.UUID `json:"save_derived_from_id"`
}

// CreateState handles POST /states/create.
func (h *RecordsHandler) CreateState(w http.ResponseWriter, r *http.Request) {
	var req createStateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		ErrBadRequest(w, "data is not valid base64")
		return
	}
	shardID, err := uuid.NewV7()
	if err != nil {
		Err(w, apierr.Internal("generate shard id", err))
		return
	}

	file, err := catalog.InsertStateFile(r.Context(), h.db, h.store, h.files, data, req.Filename, shardID)
	if err != nil {
		Err(w, translateCatalogErr(err))
		return
	}

	state := &catalog.State{
		InstanceID:        req.InstanceID,
		IsCheckpoint:      req.IsCheckpoint,
		FileID:            file.ID,
		Name:              req.Name,
		Description:       req.Description,
		ScreenshotID:      req.ScreenshotID,
		ReplayID:          req.ReplayID,
		CreatorID:         req.CreatorID,
		ReplayIndex:       req.ReplayIndex,
		DerivedFromID:     req.DerivedFromID,
		SaveDerivedFromID: req.SaveDerivedFromID,
	}
	if err := h.states.Insert(r.Context(), state); err != nil {
		Err(w, translateCatalogErr(err))
		return
	}

	if iw, err := h.instances.GetInstanceWork(r.Context(), state.InstanceID); err == nil {
		if err := h.indexer.UpsertState(r.Context(), *state, iw.WorkName, iw.WorkPlatform); err != nil {
			h.logger.Warn("state search upsert failed", zap.Stringer("state_id", state.ID), zap.Error(err))
		}
	}
	h.countCreated("state")

	Created(w, state)
}

// GetState handles GET /states/{id}.
func (h *RecordsHandler) GetState(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		ErrBadRequest(w, "invalid state id")
		return
	}
	state, err := h.states.GetByID(r.Context(), id)
	if err != nil {
		Err(w, wrapCatalogErr(err, "state", id))
		return
	}
	Ok(w, state)
}

type createReplayRequest struct {
	InstanceID   uuid.UUID  `json:"instance_id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Filename     string     `json:"filename"`
	Data         string     `json:"data"`
	CreatorID    uuid.UUID  `json:"creator_id"`
	ForkedFromID *uuid.UUID `json:"forked_from_id"`
}

// CreateReplay handles POST /replays/create.
func (h *RecordsHandler) CreateReplay(w http.ResponseWriter, r *http.Request) {
	var req createReplayRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		ErrBadRequest(w, "data is not valid base64")
		return
	}
	shardID, err := uuid.NewV7()
	if err != nil {
		Err(w, apierr.Internal("generate shard id", err))
		return
	}

	file, err := catalog.InsertStateFile(r.Context(), h.db, h.store, h.files, data, req.Filename, shardID)
	if err != nil {
		Err(w, translateCatalogErr(err))
		return
	}

	replay := &catalog.Replay{
		Name:         req.Name,
		Description:  req.Description,
		InstanceID:   req.InstanceID,
		CreatorID:    req.CreatorID,
		ForkedFromID: req.ForkedFromID,
		FileID:       file.ID,
	}
	if err := h.replays.Insert(r.Context(), replay); err != nil {
		Err(w, translateCatalogErr(err))
		return
	}

	if iw, err := h.instances.GetInstanceWork(r.Context(), replay.InstanceID); err == nil {
		if err := h.indexer.UpsertReplay(r.Context(), *replay, iw.WorkName, iw.WorkPlatform); err != nil {
			h.logger.Warn("replay search upsert failed", zap.Stringer("replay_id", replay.ID), zap.Error(err))
		}
	}
	h.countCreated("replay")

	Created(w, replay)
}

// GetReplay handles GET /replays/{id}.
func (h *RecordsHandler) GetReplay(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		ErrBadRequest(w, "invalid replay id")
		return
	}
	replay, err := h.replays.GetByID(r.Context(), id)
	if err != nil {
		Err(w, wrapCatalogErr(err, "replay", id))
		return
	}
	Ok(w, replay)
}

type createSaveRequest struct {
	InstanceID          uuid.UUID  `json:"instance_id"`
	ShortDesc           string     `json:"short_desc"`
	Description         string     `json:"description"`
	Filename            string     `json:"filename"`
	Data                string     `json:"data"`
	CreatorID           uuid.UUID  `json:"creator_id"`
	StateDerivedFromID  *uuid.UUID `json:"state_derived_from_id"`
	SaveDerivedFromID   *uuid.UUID `json:"save_derived_from_id"`
	ReplayDerivedFromID *uuid.UUID `json:"replay_derived_from_id"`
	DuplicatePolicy     string     `json:"duplicate_policy"`
}

// CreateSave handles POST /saves/create. Unlike State, Save ingest allows
// the reuse-data dedup policy (the base spec scopes the outright-reject
// invariant to State only).
func (h *RecordsHandler) CreateSave(w http.ResponseWriter, r *http.Request) {
	var req createSaveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		ErrBadRequest(w, "data is not valid base64")
		return
	}

	hash := storage.GetMD5Hash(data)
	var fileID uuid.UUID
	existing, err := h.files.GetByHash(r.Context(), hash)
	if err == nil {
		if req.DuplicatePolicy == string(catalog.DuplicateReuseData) {
			newFile := &catalog.File{
				Hash: hash, Filename: req.Filename, SourcePath: req.Filename,
				DestPath: existing.DestPath, Size: existing.Size, CompressedSize: existing.CompressedSize,
			}
			if err := h.files.Insert(r.Context(), newFile); err != nil {
				Err(w, translateCatalogErr(err))
				return
			}
			fileID = newFile.ID
		} else {
			fileID = existing.ID
		}
	} else if err == catalog.ErrNotFound {
		shardID, shardErr := uuid.NewV7()
		if shardErr != nil {
			Err(w, apierr.Internal("generate shard id", shardErr))
			return
		}
		file, writeErr := catalog.InsertStateFile(r.Context(), h.db, h.store, h.files, data, req.Filename, shardID)
		if writeErr != nil {
			Err(w, translateCatalogErr(writeErr))
			return
		}
		fileID = file.ID
	} else {
		Err(w, apierr.External("file lookup", err))
		return
	}

	save := &catalog.Save{
		InstanceID:          req.InstanceID,
		ShortDesc:           req.ShortDesc,
		Description:         req.Description,
		FileID:              fileID,
		CreatorID:           req.CreatorID,
		StateDerivedFromID:  req.StateDerivedFromID,
		SaveDerivedFromID:   req.SaveDerivedFromID,
		ReplayDerivedFromID: req.ReplayDerivedFromID,
	}
	if err := h.saves.Insert(r.Context(), save); err != nil {
		Err(w, translateCatalogErr(err))
		return
	}

	if iw, err := h.instances.GetInstanceWork(r.Context(), save.InstanceID); err == nil {
		if err := h.indexer.UpsertSave(r.Context(), *save, iw.WorkName, iw.WorkPlatform); err != nil {
			h.logger.Warn("save search upsert failed", zap.Stringer("save_id", save.ID), zap.Error(err))
		}
	}
	h.countCreated("save")

	Created(w, save)
}

// GetSave handles GET /saves/{id}.
func (h *RecordsHandler) GetSave(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		ErrBadRequest(w, "invalid save id")
		return
	}
	save, err := h.saves.GetByID(r.Context(), id)
	if err != nil {
		Err(w, wrapCatalogErr(err, "save", id))
		return
	}
	Ok(w, save)
}

type createScreenshotRequest struct {
	Data string `json:"data"` // base64
}

// CreateScreenshot handles POST /screenshots/create. Screenshots are
// stored in-band in the catalog, not through the Blob Store.
func (h *RecordsHandler) CreateScreenshot(w http.ResponseWriter, r *http.Request) {
	var req createScreenshotRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		ErrBadRequest(w, "data is not valid base64")
		return
	}
	screenshot := &catalog.Screenshot{Data: data}
	if err := h.screenshots.Insert(r.Context(), screenshot); err != nil {
		Err(w, translateCatalogErr(err))
		return
	}
	h.countCreated("screenshot")
	Created(w, map[string]any{"id": screenshot.ID})
}

// GetScreenshot handles GET /screenshots/{id}.
func (h *RecordsHandler) GetScreenshot(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		ErrBadRequest(w, "invalid screenshot id")
		return
	}
	screenshot, err := h.screenshots.GetByID(r.Context(), id)
	if err != nil {
		Err(w, wrapCatalogErr(err, "screenshot", id))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(screenshot.Data)
}

// GetWork handles GET /works/{id}. Works are read-only through the
// Delivery API — they are populated by the ingestion CLI, not this server.
func (h *RecordsHandler) GetWork(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		ErrBadRequest(w, "invalid work id")
		return
	}
	work, err := h.works.GetByID(r.Context(), id)
	if err != nil {
		Err(w, wrapCatalogErr(err, "work", id))
		return
	}
	Ok(w, work)
}

// translateCatalogErr maps sentinel catalog errors not already wrapped in
// *apierr.Error onto the taxonomy.
func translateCatalogErr(err error) error {
	switch err {
	case catalog.ErrNotFound:
		return apierr.NotFound("record", err)
	case catalog.ErrConflict:
		return apierr.Duplicate("duplicate hash", err)
	case catalog.ErrMissingParentFile, catalog.ErrOrphanObject:
		return apierr.Referential("referential integrity violation", err)
	default:
		if apierr.KindOf(err) != apierr.KindInternal {
			return err
		}
		return apierr.External("catalog operation", err)
	}
}
